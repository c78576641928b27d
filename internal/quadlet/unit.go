package quadlet

import (
	"errors"
	"fmt"
)

// ErrConflictingDependency is returned when the same dependency target is
// recorded twice for one unit.
var ErrConflictingDependency = errors.New("conflicting dependency")

// Dependency describes how a unit depends on another service.
type Dependency struct {
	// Condition is the compose readiness predicate (service_started,
	// service_healthy, service_completed_successfully). It is tracked to
	// detect conflicting declarations for the same target; readiness itself
	// is enforced by the target unit's own notify configuration.
	Condition string

	// Required maps to Requires= instead of Wants=.
	Required bool

	// Restart links the lifecycle of the two units with BindsTo=.
	Restart bool
}

// Unit is the [Unit] section of a quadlet file. It accumulates ordering and
// requirement directives, one per dependency target.
type Unit struct {
	Description string

	deps  map[string]Dependency
	order []string
}

// AddDependency records a dependency on target. Recording the same target a
// second time is an error: a later declaration must not silently overwrite
// the condition already recorded.
func (u *Unit) AddDependency(target string, dep Dependency) error {
	if existing, ok := u.deps[target]; ok {
		return fmt.Errorf(
			"dependency on %q already declared with condition %q (got %q): %w",
			target, existing.Condition, dep.Condition, ErrConflictingDependency,
		)
	}
	if u.deps == nil {
		u.deps = make(map[string]Dependency)
	}
	u.deps[target] = dep
	u.order = append(u.order, target)
	return nil
}

// HasDependencies reports whether any dependency has been recorded.
func (u *Unit) HasDependencies() bool {
	return len(u.order) > 0
}

// Dependencies returns the recorded targets in insertion order.
func (u *Unit) Dependencies() []string {
	out := make([]string, len(u.order))
	copy(out, u.order)
	return out
}

// RenameTargets rewrites dependency targets according to rename. Used when
// pod wrapping renames the container files the dependencies point at.
func (u *Unit) RenameTargets(rename map[string]string) {
	for i, target := range u.order {
		updated, ok := rename[target]
		if !ok {
			continue
		}
		u.order[i] = updated
		u.deps[updated] = u.deps[target]
		delete(u.deps, target)
	}
}

// Clone returns a deep copy. The run-level unit template is cloned into every
// generated file so accumulating dependencies never mutates the template.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	clone := &Unit{Description: u.Description}
	if len(u.order) > 0 {
		clone.order = append([]string(nil), u.order...)
		clone.deps = make(map[string]Dependency, len(u.deps))
		for target, dep := range u.deps {
			clone.deps[target] = dep
		}
	}
	return clone
}

// IsEmpty reports whether the section would render nothing.
func (u *Unit) IsEmpty() bool {
	return u == nil || (u.Description == "" && len(u.order) == 0)
}

func (u *Unit) writeSection(w *sectionWriter) {
	w.section("Unit")
	w.kv("Description", u.Description)
	for _, target := range u.order {
		dep := u.deps[target]
		service := target + ".service"
		w.kv("After", service)
		switch {
		case dep.Restart:
			w.kv("BindsTo", service)
		case dep.Required:
			w.kv("Requires", service)
		default:
			w.kv("Wants", service)
		}
	}
}
