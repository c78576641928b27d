package converter

import (
	"errors"
	"strings"
	"testing"

	"github.com/withobsrvr/quadctl/internal/compose"
	"github.com/withobsrvr/quadctl/internal/quadlet"
)

func managedVolume(name string, cfg compose.Volume) compose.TopLevel[compose.Volume] {
	r := compose.ComposeManaged(cfg)
	return compose.TopLevel[compose.Volume]{Name: name, Resource: &r}
}

func externalVolume(name string) compose.TopLevel[compose.Volume] {
	r := compose.ExternallyManaged[compose.Volume]()
	return compose.TopLevel[compose.Volume]{Name: name, Resource: &r}
}

func externalNetwork(name string) compose.TopLevel[compose.Network] {
	r := compose.ExternallyManaged[compose.Network]()
	return compose.TopLevel[compose.Network]{Name: name, Resource: &r}
}

func TestConvertRejectsInclude(t *testing.T) {
	doc := &compose.Document{
		Include:  []string{"other.yaml"},
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for include, got nil")
	}
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Expected ErrUnsupportedFeature, got %v", err)
	}
}

func TestConvertRejectsNonExternalSecrets(t *testing.T) {
	r := compose.ComposeManaged(compose.Secret{Name: "token"})
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
		Secrets:  []compose.TopLevel[compose.Secret]{{Name: "token", Resource: &r}},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for non-external secret, got nil")
	}
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Expected ErrUnsupportedFeature, got %v", err)
	}
	if !strings.Contains(err.Error(), "token") {
		t.Errorf("Error should name the secret, got %q", err)
	}
}

func TestConvertAcceptsExternalSecrets(t *testing.T) {
	r := compose.ExternallyManaged[compose.Secret]()
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
		Secrets:  []compose.TopLevel[compose.Secret]{{Name: "token", Resource: &r}},
	}

	if _, err := Convert(doc, Options{}); err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
}

func TestConvertRejectsExternalNetwork(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
		Networks: []compose.TopLevel[compose.Network]{externalNetwork("backend")},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for external network, got nil")
	}
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Expected ErrUnsupportedFeature, got %v", err)
	}
	if !strings.Contains(err.Error(), "backend") {
		t.Errorf("Error should name the network, got %q", err)
	}
}

func TestConvertRejectsExternalVolume(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
		Volumes:  []compose.TopLevel[compose.Volume]{externalVolume("data")},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for external volume, got nil")
	}
	if !strings.Contains(err.Error(), "data") {
		t.Errorf("Error should name the volume, got %q", err)
	}
}

func TestConvertVolumeOptionLinking(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{
			{
				Name:  "db",
				Image: "postgres:16",
				Volumes: []compose.Mount{
					{Type: compose.MountTypeVolume, Source: "data", Target: "/var/lib/postgresql/data"},
					{Type: compose.MountTypeVolume, Source: "scratch", Target: "/scratch"},
					{Type: compose.MountTypeBind, Source: "/etc/certs", Target: "/certs", ReadOnly: true},
				},
			},
		},
		Volumes: []compose.TopLevel[compose.Volume]{
			managedVolume("data", compose.Volume{Driver: "local"}),
		},
	}

	files, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	// One container plus the standalone volume file.
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}

	container := files[0].Resource.(*quadlet.Container)
	expected := []string{
		"data.volume:/var/lib/postgresql/data",
		"scratch:/scratch",
		"/etc/certs:/certs:ro",
	}
	if len(container.Volume) != len(expected) {
		t.Fatalf("Expected %d mounts, got %v", len(expected), container.Volume)
	}
	for i, mount := range expected {
		if container.Volume[i] != mount {
			t.Errorf("Mount %d = %q, expected %q", i, container.Volume[i], mount)
		}
	}

	if files[1].FileName() != "data.volume" {
		t.Errorf("Expected standalone data.volume file, got %q", files[1].FileName())
	}

	// Converting the same document again must not rewrite sources twice.
	again, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Second conversion failed: %v", err)
	}
	container = again[0].Resource.(*quadlet.Container)
	if container.Volume[0] != "data.volume:/var/lib/postgresql/data" {
		t.Errorf("Second conversion mutated the document: %q", container.Volume[0])
	}
}

func TestConvertOptionlessVolumesFiltered(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
		Volumes: []compose.TopLevel[compose.Volume]{
			{Name: "plain"},
			managedVolume("empty", compose.Volume{}),
		},
	}

	files, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Volumes without options must not produce files, got %d files", len(files))
	}
}

func TestConvertPodWrapping(t *testing.T) {
	doc := &compose.Document{
		Name: "app",
		Services: []compose.Service{
			{Name: "web", Image: "nginx", Ports: []compose.PortMapping{{Target: 80, Published: "8080"}}},
			{
				Name:  "db",
				Image: "postgres:16",
				Ports: []compose.PortMapping{{Target: 5432, Published: "5432"}},
				DependsOn: []compose.Dependency{
					{Target: "web", Condition: compose.ConditionStarted, Required: true},
				},
			},
		},
	}

	files, err := Convert(doc, Options{Pod: true})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(files))
	}
	if files[0].FileName() != "app-web.container" {
		t.Errorf("Expected app-web.container first, got %q", files[0].FileName())
	}
	if files[1].FileName() != "app-db.container" {
		t.Errorf("Expected app-db.container second, got %q", files[1].FileName())
	}
	if files[2].FileName() != "app.pod" {
		t.Errorf("Expected app.pod last, got %q", files[2].FileName())
	}

	// Dependency targets follow the renamed container files.
	deps := files[1].Unit.Dependencies()
	if len(deps) != 1 || deps[0] != "app-web" {
		t.Errorf("Expected dependency on app-web, got %v", deps)
	}

	// Published ports move from the containers into the pod, in service
	// order.
	pod := files[2].Resource.(*quadlet.Pod)
	if len(pod.PublishPort) != 2 || pod.PublishPort[0] != "8080:80" || pod.PublishPort[1] != "5432:5432" {
		t.Errorf("Expected pod ports [8080:80 5432:5432], got %v", pod.PublishPort)
	}
	for _, file := range files[:2] {
		container := file.Resource.(*quadlet.Container)
		if len(container.PublishPort) != 0 {
			t.Errorf("Container %q should have no ports after wrapping, got %v", file.Name, container.PublishPort)
		}
		if container.Pod != "app.pod" {
			t.Errorf("Container %q should join app.pod, got %q", file.Name, container.Pod)
		}
	}
}

func TestConvertPodRequiresName(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
	}

	_, err := Convert(doc, Options{Pod: true})
	if err == nil {
		t.Fatal("Expected error for missing name, got nil")
	}
	if !errors.Is(err, ErrMissingName) {
		t.Errorf("Expected ErrMissingName, got %v", err)
	}
}

func TestConvertPodAndKubeExclusive(t *testing.T) {
	doc := &compose.Document{
		Name:     "app",
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
	}

	if _, err := Convert(doc, Options{Pod: true, Kube: true}); err == nil {
		t.Fatal("Expected error for pod+kube, got nil")
	}
}

func TestConvertConflictingDependency(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{
			{
				Name:  "web",
				Image: "nginx",
				DependsOn: []compose.Dependency{
					{Target: "db", Condition: compose.ConditionStarted},
					{Target: "db", Condition: compose.ConditionHealthy},
				},
			},
		},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for conflicting dependency, got nil")
	}
	if !errors.Is(err, quadlet.ErrConflictingDependency) {
		t.Errorf("Expected ErrConflictingDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), "web") || !strings.Contains(err.Error(), "db") {
		t.Errorf("Error should name both service and target, got %q", err)
	}
}

func TestConvertMissingImage(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web"}},
	}

	_, err := Convert(doc, Options{})
	if err == nil {
		t.Fatal("Expected error for missing image, got nil")
	}
	if !strings.Contains(err.Error(), "web") {
		t.Errorf("Error should name the service, got %q", err)
	}
}

func TestConvertTemplatesClonedPerFile(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{
			{
				Name:  "web",
				Image: "nginx",
				DependsOn: []compose.Dependency{
					{Target: "db", Condition: compose.ConditionStarted},
				},
			},
			{Name: "db", Image: "postgres:16"},
		},
		Networks: []compose.TopLevel[compose.Network]{{Name: "backend"}},
	}

	template := &quadlet.Unit{Description: "managed by quadctl"}
	install := &quadlet.Install{WantedBy: []string{"default.target"}}

	files, err := Convert(doc, Options{Unit: template, Install: install})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	// web accumulated a dependency into its clone; the template and the
	// other files must be untouched.
	if template.HasDependencies() {
		t.Errorf("Conversion mutated the unit template: %v", template.Dependencies())
	}
	if !files[0].Unit.HasDependencies() {
		t.Error("Expected web to record its dependency")
	}
	if files[1].Unit.HasDependencies() {
		t.Errorf("db should not share web's dependencies: %v", files[1].Unit.Dependencies())
	}
	for _, file := range files {
		if file.Unit.IsEmpty() || file.Unit.Description != "managed by quadctl" {
			t.Errorf("File %q should carry the template description", file.Name)
		}
		if file.Install == nil || len(file.Install.WantedBy) != 1 {
			t.Errorf("File %q should carry the install template", file.Name)
		}
	}
}

func TestConvertNoUnitWithoutDependencies(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx"}},
	}

	files, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if !files[0].Unit.IsEmpty() {
		t.Errorf("Expected no unit section without dependencies or a template")
	}
}

func TestConvertDefaultNetwork(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx", Networks: []string{"backend"}}},
		Networks: []compose.TopLevel[compose.Network]{{Name: "backend"}},
	}

	files, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files[1].FileName() != "backend.network" {
		t.Errorf("Expected backend.network, got %q", files[1].FileName())
	}

	container := files[0].Resource.(*quadlet.Container)
	if len(container.Network) != 1 || container.Network[0] != "backend.network" {
		t.Errorf("Expected container to link backend.network, got %v", container.Network)
	}
}

func TestConvertRestartOverride(t *testing.T) {
	doc := &compose.Document{
		Services: []compose.Service{{Name: "web", Image: "nginx", Restart: "unless-stopped"}},
	}

	files, err := Convert(doc, Options{})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if files[0].Service == nil || files[0].Service.Restart != "always" {
		t.Errorf("Expected Restart=always override, got %+v", files[0].Service)
	}
}
