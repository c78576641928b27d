package quadlet

// Network is the [Network] section of a .network quadlet file.
type Network struct {
	Driver   string
	Options  map[string]string
	Internal bool
	IPv6     bool
	Subnet   []string
	Gateway  []string
	Label    map[string]string
}

func (n *Network) Type() UnitType { return UnitTypeNetwork }

func (n *Network) writeSection(w *sectionWriter) {
	w.section("Network")
	w.kv("Driver", n.Driver)
	w.sortedKV("Options", n.Options)
	w.flag("Internal", n.Internal)
	w.flag("IPv6", n.IPv6)
	w.list("Subnet", n.Subnet)
	w.list("Gateway", n.Gateway)
	w.sortedKV("Label", n.Label)
}

// Volume is the [Volume] section of a .volume quadlet file.
type Volume struct {
	Driver  string
	Device  string
	VolType string
	Options string
	Label   map[string]string
}

func (v *Volume) Type() UnitType { return UnitTypeVolume }

func (v *Volume) writeSection(w *sectionWriter) {
	w.section("Volume")
	w.kv("Driver", v.Driver)
	w.kv("Device", v.Device)
	w.kv("Type", v.VolType)
	w.kv("Options", v.Options)
	w.sortedKV("Label", v.Label)
}

// Pod is the [Pod] section of a .pod quadlet file. Its published ports are
// gathered from the wrapped containers.
type Pod struct {
	PublishPort []string
}

func (p *Pod) Type() UnitType { return UnitTypePod }

func (p *Pod) writeSection(w *sectionWriter) {
	w.section("Pod")
	w.list("PublishPort", p.PublishPort)
}

// Kube is the [Kube] section of a .kube quadlet file pointing at a generated
// Kubernetes YAML file.
type Kube struct {
	Yaml string
}

func (k *Kube) Type() UnitType { return UnitTypeKube }

func (k *Kube) writeSection(w *sectionWriter) {
	w.section("Kube")
	w.kv("Yaml", k.Yaml)
}
