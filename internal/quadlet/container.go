package quadlet

import "strconv"

// Container is the [Container] section of a .container quadlet file.
type Container struct {
	Image      string
	Exec       []string
	Entrypoint []string

	Environment map[string]string
	Label       map[string]string

	PublishPort []string
	Volume      []string
	Tmpfs       []string
	Network     []string

	// Pod links the container into a pod unit ("name.pod"). Set by the pod
	// aggregation pass.
	Pod string

	HealthCmd         string
	HealthInterval    string
	HealthTimeout     string
	HealthStartPeriod string
	HealthRetries     int

	User       string
	WorkingDir string
	RunInit    bool
	ReadOnly   bool
	Pull       string

	// PodmanArgs are passed through to podman verbatim.
	PodmanArgs []string
}

func (c *Container) Type() UnitType { return UnitTypeContainer }

func (c *Container) writeSection(w *sectionWriter) {
	w.section("Container")
	w.kv("Image", c.Image)
	if len(c.Entrypoint) > 0 {
		w.kv("Entrypoint", joinArgs(c.Entrypoint))
	}
	if len(c.Exec) > 0 {
		w.kv("Exec", joinArgs(c.Exec))
	}
	w.sortedKV("Environment", c.Environment)
	w.sortedKV("Label", c.Label)
	w.list("PublishPort", c.PublishPort)
	w.list("Volume", c.Volume)
	w.list("Tmpfs", c.Tmpfs)
	w.list("Network", c.Network)
	w.kv("Pod", c.Pod)
	w.kv("HealthCmd", c.HealthCmd)
	w.kv("HealthInterval", c.HealthInterval)
	w.kv("HealthTimeout", c.HealthTimeout)
	w.kv("HealthStartPeriod", c.HealthStartPeriod)
	if c.HealthRetries > 0 {
		w.kv("HealthRetries", strconv.Itoa(c.HealthRetries))
	}
	w.kv("User", c.User)
	w.kv("WorkingDir", c.WorkingDir)
	w.flag("RunInit", c.RunInit)
	w.flag("ReadOnly", c.ReadOnly)
	w.kv("Pull", c.Pull)
	if len(c.PodmanArgs) > 0 {
		w.kv("PodmanArgs", joinArgs(c.PodmanArgs))
	}
}
