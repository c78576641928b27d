package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/withobsrvr/quadctl/internal/compose"
)

// validateDocument rejects document-level features that cannot be expressed
// as quadlet files. It runs before any conversion; there is no partial
// output.
func validateDocument(doc *compose.Document) error {
	if len(doc.Include) > 0 {
		return fmt.Errorf("`include` is not supported: %w", ErrUnsupportedFeature)
	}
	if len(doc.Configs) > 0 {
		return fmt.Errorf("`configs` is not supported: %w", ErrUnsupportedFeature)
	}
	for _, secret := range doc.Secrets {
		if secret.Resource == nil || !secret.Resource.IsExternal() {
			return fmt.Errorf("only external `secrets` are supported (%q): %w", secret.Name, ErrUnsupportedFeature)
		}
	}
	if len(doc.Extensions) > 0 {
		return fmt.Errorf("compose extensions (%s) are not supported: %w", extensionKeys(doc.Extensions), ErrUnsupportedFeature)
	}
	return nil
}

// validateKubeDocument applies the stricter Kubernetes-mode checks: a pod
// spec has no per-resource network or secret equivalent, so those
// collections must be absent entirely.
func validateKubeDocument(doc *compose.Document) error {
	if len(doc.Include) > 0 {
		return fmt.Errorf("`include` is not supported: %w", ErrUnsupportedFeature)
	}
	if len(doc.Networks) > 0 {
		return fmt.Errorf("`networks` is not supported: %w", ErrUnsupportedFeature)
	}
	if len(doc.Configs) > 0 {
		return fmt.Errorf("`configs` is not supported: %w", ErrUnsupportedFeature)
	}
	if len(doc.Secrets) > 0 {
		return fmt.Errorf("`secrets` is not supported: %w", ErrUnsupportedFeature)
	}
	if len(doc.Extensions) > 0 {
		return fmt.Errorf("compose extensions (%s) are not supported: %w", extensionKeys(doc.Extensions), ErrUnsupportedFeature)
	}
	return nil
}

func extensionKeys(extensions map[string]any) string {
	keys := make([]string, 0, len(extensions))
	for key := range extensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
