package compose

// resourceKind discriminates the two ways a top-level network, volume, or
// secret can be declared in a compose document.
type resourceKind int

const (
	kindComposeManaged resourceKind = iota
	kindExternal
)

// Resource is a top-level compose resource that is either managed by the
// compose document itself or declared as pre-existing (`external: true`).
//
// Consumers must match both cases explicitly; an external resource carries no
// configuration and must never be treated as convertible.
type Resource[T any] struct {
	kind   resourceKind
	config T
}

// ComposeManaged returns a Resource holding a document-managed configuration.
func ComposeManaged[T any](config T) Resource[T] {
	return Resource[T]{kind: kindComposeManaged, config: config}
}

// ExternallyManaged returns a Resource declared as pre-existing.
func ExternallyManaged[T any]() Resource[T] {
	return Resource[T]{kind: kindExternal}
}

// AsCompose returns the managed configuration, or false for an external
// resource.
func (r Resource[T]) AsCompose() (T, bool) {
	if r.kind != kindComposeManaged {
		var zero T
		return zero, false
	}
	return r.config, true
}

// IsExternal reports whether the resource is externally managed.
func (r Resource[T]) IsExternal() bool {
	return r.kind == kindExternal
}

// TopLevel is one entry of a top-level `networks:`, `volumes:`, or `secrets:`
// mapping. A nil Resource means the entry was declared with no body at all
// (e.g. `pgdata:`), which compose treats the same as an empty configuration.
type TopLevel[T any] struct {
	Name     string
	Resource *Resource[T]
}
