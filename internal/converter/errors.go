package converter

import "errors"

var (
	// ErrUnsupportedFeature marks compose features with no quadlet or
	// Kubernetes equivalent. Distinguishable from malformed input via
	// errors.Is.
	ErrUnsupportedFeature = errors.New("unsupported compose feature")

	// ErrMissingName is returned when the top-level `name` field is absent
	// but required by the selected output mode.
	ErrMissingName = errors.New("missing required `name` field")

	// ErrDuplicateFile is returned when two generated files would share a
	// file name.
	ErrDuplicateFile = errors.New("duplicate file name")
)
