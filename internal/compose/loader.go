package compose

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	shellwords "github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyInput is returned when the document is empty.
	ErrEmptyInput = errors.New("compose document is empty")

	// ErrInvalidYAML is returned when the document is not valid YAML or not a
	// valid compose file.
	ErrInvalidYAML = errors.New("invalid compose document")
)

// podmanArgsExtension is the service extension carrying extra podman
// arguments through to the generated unit file.
const podmanArgsExtension = "x-podman-args"

// Parse builds a Document from raw compose YAML.
//
// compose-go returns services, networks, and volumes as maps, so a yaml.v3
// pre-pass over the raw document recovers the declaration order of each
// collection. That order is preserved in the Document and, from there, in the
// generated files.
func Parse(data []byte) (*Document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	order, err := documentOrder(data)
	if err != nil {
		return nil, err
	}

	var dict map[string]any
	if err := yaml.Unmarshal(data, &dict); err != nil || dict == nil {
		return nil, fmt.Errorf("%w: not a YAML mapping", ErrInvalidYAML)
	}

	// `include` is rejected later by the converter; remove it before loading
	// so compose-go does not try to resolve the included files.
	include := includeEntries(dict)
	delete(dict, "include")

	project, err := loadProject(data, dict)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Name:       stringValue(dict["name"]),
		Include:    include,
		Extensions: project.Extensions,
	}

	for _, name := range order.services {
		svc, ok := project.Services[name]
		if !ok {
			continue
		}
		converted, err := convertService(name, svc)
		if err != nil {
			return nil, err
		}
		doc.Services = append(doc.Services, converted)
	}

	for _, name := range order.networks {
		cfg, ok := project.Networks[name]
		if !ok {
			continue
		}
		doc.Networks = append(doc.Networks, convertNetwork(name, cfg))
	}

	for _, name := range order.volumes {
		cfg, ok := project.Volumes[name]
		if !ok {
			continue
		}
		doc.Volumes = append(doc.Volumes, convertVolume(name, cfg))
	}

	for name, cfg := range project.Secrets {
		entry := TopLevel[Secret]{Name: name}
		if bool(cfg.External) {
			r := ExternallyManaged[Secret]()
			entry.Resource = &r
		} else {
			r := ComposeManaged(Secret{Name: name})
			entry.Resource = &r
		}
		doc.Secrets = append(doc.Secrets, entry)
	}
	sort.Slice(doc.Secrets, func(i, j int) bool { return doc.Secrets[i].Name < doc.Secrets[j].Name })

	for name := range project.Configs {
		doc.Configs = append(doc.Configs, name)
	}
	sort.Strings(doc.Configs)

	return doc, nil
}

// loadProject runs the compose-go loader over the document.
func loadProject(data []byte, dict map[string]any) (*types.Project, error) {
	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: data,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("quadctl", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// No path resolution or implicit default network; the document is
		// converted as written. Undeclared named volumes are legal input
		// (they become anonymous volumes), so the consistency check is off.
		opts.SkipNormalization = true
		opts.SkipConsistencyCheck = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidYAML, err)
	}
	return project, nil
}

// keyOrder holds the declaration order of the ordered top-level collections.
type keyOrder struct {
	services []string
	networks []string
	volumes  []string
}

// documentOrder walks the YAML node tree and records the key order of the
// `services`, `networks`, and `volumes` mappings.
func documentOrder(data []byte) (keyOrder, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return keyOrder{}, fmt.Errorf("%w: %s", ErrInvalidYAML, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return keyOrder{}, fmt.Errorf("%w: not a YAML mapping", ErrInvalidYAML)
	}

	var order keyOrder
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return keyOrder{}, fmt.Errorf("%w: not a YAML mapping", ErrInvalidYAML)
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		if value.Kind != yaml.MappingNode {
			continue
		}
		switch key.Value {
		case "services":
			order.services = mappingKeys(value)
		case "networks":
			order.networks = mappingKeys(value)
		case "volumes":
			order.volumes = mappingKeys(value)
		}
	}
	return order, nil
}

func mappingKeys(node *yaml.Node) []string {
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// includeEntries extracts the top-level `include` list, normalizing both the
// short (string) and long (mapping with `path`) forms to their paths.
func includeEntries(dict map[string]any) []string {
	raw, ok := dict["include"].([]any)
	if !ok {
		return nil
	}
	entries := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			entries = append(entries, v)
		case map[string]any:
			entries = append(entries, stringValue(v["path"]))
		}
	}
	return entries
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func convertService(name string, svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:       name,
		Image:      svc.Image,
		Command:    svc.Command,
		Entrypoint: svc.Entrypoint,
		Restart:    svc.Restart,
		User:       svc.User,
		WorkingDir: svc.WorkingDir,
		ReadOnly:   svc.ReadOnly,
		PullPolicy: svc.PullPolicy,
	}

	if svc.Init != nil {
		service.Init = *svc.Init
	}

	if len(svc.Environment) > 0 {
		service.Environment = make(map[string]string, len(svc.Environment))
		for k, v := range svc.Environment {
			if v != nil {
				service.Environment[k] = *v
			}
		}
	}

	if len(svc.Labels) > 0 {
		service.Labels = make(map[string]string, len(svc.Labels))
		for k, v := range svc.Labels {
			service.Labels[k] = v
		}
	}

	for _, p := range svc.Ports {
		service.Ports = append(service.Ports, PortMapping{
			Target:    p.Target,
			Published: p.Published,
			HostIP:    p.HostIP,
			Protocol:  p.Protocol,
		})
	}

	for _, v := range svc.Volumes {
		service.Volumes = append(service.Volumes, convertMount(v))
	}

	for network := range svc.Networks {
		service.Networks = append(service.Networks, network)
	}
	sort.Strings(service.Networks)

	for target, dep := range svc.DependsOn {
		condition := dep.Condition
		if condition == "" {
			condition = ConditionStarted
		}
		service.DependsOn = append(service.DependsOn, Dependency{
			Target:    target,
			Condition: condition,
			Restart:   dep.Restart,
			Required:  dep.Required,
		})
	}
	sort.Slice(service.DependsOn, func(i, j int) bool {
		return service.DependsOn[i].Target < service.DependsOn[j].Target
	})

	if hc := svc.HealthCheck; hc != nil && !hc.Disable {
		check := &HealthCheck{Test: hc.Test}
		if hc.Interval != nil {
			check.Interval = hc.Interval.String()
		}
		if hc.Timeout != nil {
			check.Timeout = hc.Timeout.String()
		}
		if hc.StartPeriod != nil {
			check.StartPeriod = hc.StartPeriod.String()
		}
		if hc.Retries != nil {
			check.Retries = int(*hc.Retries)
		}
		service.HealthCheck = check
	}

	args, err := podmanArgs(svc.Extensions)
	if err != nil {
		return Service{}, fmt.Errorf("service %q: %w", name, err)
	}
	service.PodmanArgs = args

	return service, nil
}

func convertMount(v types.ServiceVolumeConfig) Mount {
	mount := Mount{
		Source:   v.Source,
		Target:   v.Target,
		ReadOnly: v.ReadOnly,
	}
	switch v.Type {
	case "bind":
		mount.Type = MountTypeBind
	case "volume":
		mount.Type = MountTypeVolume
	case "tmpfs":
		mount.Type = MountTypeTmpfs
	default:
		if strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "~") {
			mount.Type = MountTypeBind
		} else {
			mount.Type = MountTypeVolume
		}
	}
	return mount
}

// podmanArgs parses the x-podman-args service extension. Both a single
// shell-style string and a list of strings are accepted.
func podmanArgs(extensions types.Extensions) ([]string, error) {
	raw, ok := extensions[podmanArgsExtension]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		args, err := shellwords.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", podmanArgsExtension, err)
		}
		return args, nil
	case []any:
		args := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s: entries must be strings", podmanArgsExtension)
			}
			args = append(args, s)
		}
		return args, nil
	default:
		return nil, fmt.Errorf("invalid %s: expected string or list", podmanArgsExtension)
	}
}

func convertNetwork(name string, cfg types.NetworkConfig) TopLevel[Network] {
	entry := TopLevel[Network]{Name: name}
	if bool(cfg.External) {
		r := ExternallyManaged[Network]()
		entry.Resource = &r
		return entry
	}

	network := Network{
		Driver:   cfg.Driver,
		Internal: cfg.Internal,
	}
	if cfg.EnableIPv6 != nil {
		network.IPv6 = *cfg.EnableIPv6
	}
	if len(cfg.DriverOpts) > 0 {
		network.DriverOpts = make(map[string]string, len(cfg.DriverOpts))
		for k, v := range cfg.DriverOpts {
			network.DriverOpts[k] = v
		}
	}
	if len(cfg.Labels) > 0 {
		network.Labels = make(map[string]string, len(cfg.Labels))
		for k, v := range cfg.Labels {
			network.Labels[k] = v
		}
	}
	for _, pool := range cfg.Ipam.Config {
		if pool == nil {
			continue
		}
		network.Subnets = append(network.Subnets, Subnet{
			Subnet:  pool.Subnet,
			Gateway: pool.Gateway,
		})
	}

	// A bare `frontend:` entry carries no configuration; leave the resource
	// unset so the converter emits a default network.
	if network.IsZero() {
		return entry
	}
	r := ComposeManaged(network)
	entry.Resource = &r
	return entry
}

func convertVolume(name string, cfg types.VolumeConfig) TopLevel[Volume] {
	entry := TopLevel[Volume]{Name: name}
	if bool(cfg.External) {
		r := ExternallyManaged[Volume]()
		entry.Resource = &r
		return entry
	}

	volume := Volume{Driver: cfg.Driver}
	if len(cfg.DriverOpts) > 0 {
		volume.DriverOpts = make(map[string]string, len(cfg.DriverOpts))
		for k, v := range cfg.DriverOpts {
			volume.DriverOpts[k] = v
		}
	}
	if len(cfg.Labels) > 0 {
		volume.Labels = make(map[string]string, len(cfg.Labels))
		for k, v := range cfg.Labels {
			volume.Labels[k] = v
		}
	}

	if volume.IsZero() {
		return entry
	}
	r := ComposeManaged(volume)
	entry.Resource = &r
	return entry
}
