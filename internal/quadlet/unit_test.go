package quadlet

import (
	"errors"
	"strings"
	"testing"
)

func TestUnitAddDependency(t *testing.T) {
	unit := &Unit{}

	err := unit.AddDependency("db", Dependency{Condition: "service_started", Required: true})
	if err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}
	err = unit.AddDependency("cache", Dependency{Condition: "service_healthy"})
	if err != nil {
		t.Fatalf("Failed to add second dependency: %v", err)
	}

	deps := unit.Dependencies()
	if len(deps) != 2 {
		t.Fatalf("Expected 2 dependencies, got %d", len(deps))
	}
	if deps[0] != "db" || deps[1] != "cache" {
		t.Errorf("Dependencies out of insertion order: %v", deps)
	}
}

func TestUnitAddDependencyConflict(t *testing.T) {
	unit := &Unit{}

	if err := unit.AddDependency("db", Dependency{Condition: "service_started"}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}

	err := unit.AddDependency("db", Dependency{Condition: "service_healthy"})
	if err == nil {
		t.Fatal("Expected error for conflicting dependency, got nil")
	}
	if !errors.Is(err, ErrConflictingDependency) {
		t.Errorf("Expected ErrConflictingDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), "db") {
		t.Errorf("Error should name the target, got %q", err)
	}

	// A duplicate with the identical condition must not silently overwrite
	// either.
	err = unit.AddDependency("db", Dependency{Condition: "service_started"})
	if err == nil {
		t.Fatal("Expected error for duplicate dependency, got nil")
	}
}

func TestUnitRenderDirectives(t *testing.T) {
	unit := &Unit{Description: "test unit"}
	if err := unit.AddDependency("db", Dependency{Condition: "service_started", Required: true}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}
	if err := unit.AddDependency("cache", Dependency{Condition: "service_started"}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}
	if err := unit.AddDependency("proxy", Dependency{Condition: "service_started", Restart: true}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}

	var w sectionWriter
	unit.writeSection(&w)
	out := w.String()

	expected := []string{
		"Description=test unit",
		"After=db.service",
		"Requires=db.service",
		"After=cache.service",
		"Wants=cache.service",
		"After=proxy.service",
		"BindsTo=proxy.service",
	}
	for _, line := range expected {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("Expected rendered unit to contain %q, got:\n%s", line, out)
		}
	}
}

func TestUnitClone(t *testing.T) {
	unit := &Unit{Description: "template"}
	if err := unit.AddDependency("db", Dependency{Condition: "service_started"}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}

	clone := unit.Clone()
	if err := clone.AddDependency("cache", Dependency{Condition: "service_started"}); err != nil {
		t.Fatalf("Failed to add dependency to clone: %v", err)
	}

	if len(unit.Dependencies()) != 1 {
		t.Errorf("Adding to the clone mutated the template: %v", unit.Dependencies())
	}
	if len(clone.Dependencies()) != 2 {
		t.Errorf("Expected 2 dependencies on the clone, got %v", clone.Dependencies())
	}

	var nilUnit *Unit
	if nilUnit.Clone() != nil {
		t.Error("Cloning a nil unit should return nil")
	}
}

func TestUnitRenameTargets(t *testing.T) {
	unit := &Unit{}
	if err := unit.AddDependency("web", Dependency{Condition: "service_started"}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}
	if err := unit.AddDependency("db", Dependency{Condition: "service_healthy", Required: true}); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}

	unit.RenameTargets(map[string]string{"web": "app-web"})

	deps := unit.Dependencies()
	if deps[0] != "app-web" {
		t.Errorf("Expected renamed target app-web, got %q", deps[0])
	}
	if deps[1] != "db" {
		t.Errorf("Target without a rename entry should be untouched, got %q", deps[1])
	}

	var w sectionWriter
	unit.writeSection(&w)
	out := w.String()
	if !strings.Contains(out, "After=app-web.service") {
		t.Errorf("Expected After=app-web.service, got:\n%s", out)
	}
	if !strings.Contains(out, "Requires=db.service") {
		t.Errorf("Renaming must keep the dependency semantics, got:\n%s", out)
	}
}
