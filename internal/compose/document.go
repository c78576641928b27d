// Package compose holds the in-memory model of a compose document and the
// boundary that builds it from YAML via compose-go.
//
// The model preserves the document's declaration order for services,
// networks, and volumes: that order is observable in the generated output.
package compose

// Document is a fully loaded compose document.
type Document struct {
	// Name is the top-level `name` field. Required for pod and Kubernetes
	// output modes, optional otherwise.
	Name string

	// Services in document declaration order.
	Services []Service

	// Networks and Volumes in document declaration order.
	Networks []TopLevel[Network]
	Volumes  []TopLevel[Volume]

	// Secrets as declared. Only external secrets convert.
	Secrets []TopLevel[Secret]

	// Include holds the raw top-level `include` entries. The converter
	// rejects documents that use them.
	Include []string

	// Configs holds the names of top-level `configs` entries. Unsupported.
	Configs []string

	// Extensions holds top-level `x-` keys. Unsupported.
	Extensions map[string]any
}

// Service is one service entry of the document.
type Service struct {
	Name string

	Image      string
	Command    []string
	Entrypoint []string

	Environment map[string]string
	Labels      map[string]string

	Ports    []PortMapping
	Volumes  []Mount
	Networks []string

	// DependsOn is the normalized long form of `depends_on`, sorted by
	// target name for deterministic output.
	DependsOn []Dependency

	Restart     string
	HealthCheck *HealthCheck

	User       string
	WorkingDir string
	Init       bool
	ReadOnly   bool
	PullPolicy string

	// PodmanArgs carries the `x-podman-args` service extension: arguments
	// passed through to podman ahead of the generated container options.
	PodmanArgs []string
}

// Dependency is one normalized `depends_on` entry.
type Dependency struct {
	Target    string
	Condition string
	Restart   bool
	Required  bool
}

// Dependency conditions as written in compose documents.
const (
	ConditionStarted   = "service_started"
	ConditionHealthy   = "service_healthy"
	ConditionCompleted = "service_completed_successfully"
)

// PortMapping is one published port of a service.
type PortMapping struct {
	Target    uint32
	Published string
	HostIP    string
	Protocol  string
}

// Mount is one volume entry of a service.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// MountType is the kind of a service volume entry.
type MountType string

const (
	MountTypeBind   MountType = "bind"
	MountTypeVolume MountType = "volume"
	MountTypeTmpfs  MountType = "tmpfs"
)

// HealthCheck is a service healthcheck block.
type HealthCheck struct {
	Test        []string
	Interval    string
	Timeout     string
	StartPeriod string
	Retries     int
}

// Network is a top-level network configuration.
type Network struct {
	Driver     string
	DriverOpts map[string]string
	Internal   bool
	IPv6       bool
	Subnets    []Subnet
	Labels     map[string]string
}

// Subnet is one IPAM pool of a network.
type Subnet struct {
	Subnet  string
	Gateway string
}

// IsZero reports whether the network declares no options at all.
func (n Network) IsZero() bool {
	return n.Driver == "" &&
		len(n.DriverOpts) == 0 &&
		!n.Internal &&
		!n.IPv6 &&
		len(n.Subnets) == 0 &&
		len(n.Labels) == 0
}

// Volume is a top-level volume configuration.
type Volume struct {
	Driver     string
	DriverOpts map[string]string
	Labels     map[string]string
}

// IsZero reports whether the volume declares no options at all. Volumes
// without options need no standalone unit file; they fall back to the
// runtime's anonymous volume handling.
func (v Volume) IsZero() bool {
	return v.Driver == "" && len(v.DriverOpts) == 0 && len(v.Labels) == 0
}

// Secret is a top-level secret. Only the name survives loading; secrets that
// are not external are rejected before conversion.
type Secret struct {
	Name string
}
