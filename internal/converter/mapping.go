package converter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/withobsrvr/quadctl/internal/compose"
	"github.com/withobsrvr/quadctl/internal/quadlet"
)

// containerFromService is the mechanical per-field mapper from a compose
// service to a [Container] section. Dependency, restart, and global-argument
// extraction happen before this runs; the volume option linker has already
// rewritten named-volume sources.
func containerFromService(svc compose.Service) (*quadlet.Container, error) {
	if svc.Image == "" {
		return nil, errors.New("`image` is required")
	}

	container := &quadlet.Container{
		Image:       svc.Image,
		Entrypoint:  svc.Entrypoint,
		Exec:        svc.Command,
		Environment: svc.Environment,
		Label:       svc.Labels,
		User:        svc.User,
		WorkingDir:  svc.WorkingDir,
		RunInit:     svc.Init,
		ReadOnly:    svc.ReadOnly,
		Pull:        svc.PullPolicy,
	}

	for _, port := range svc.Ports {
		container.PublishPort = append(container.PublishPort, publishPort(port))
	}

	for _, mount := range svc.Volumes {
		switch mount.Type {
		case compose.MountTypeTmpfs:
			container.Tmpfs = append(container.Tmpfs, mount.Target)
		default:
			container.Volume = append(container.Volume, mountString(mount))
		}
	}

	// Service network references link to the generated .network files.
	for _, network := range svc.Networks {
		container.Network = append(container.Network, network+".network")
	}

	if err := applyHealthCheck(container, svc.HealthCheck); err != nil {
		return nil, err
	}

	return container, nil
}

func publishPort(port compose.PortMapping) string {
	var b strings.Builder
	if port.HostIP != "" {
		b.WriteString(port.HostIP)
		b.WriteByte(':')
	}
	if port.Published != "" {
		b.WriteString(port.Published)
		b.WriteByte(':')
	} else if port.HostIP != "" {
		b.WriteByte(':')
	}
	fmt.Fprintf(&b, "%d", port.Target)
	if port.Protocol != "" && port.Protocol != "tcp" {
		b.WriteByte('/')
		b.WriteString(port.Protocol)
	}
	return b.String()
}

func mountString(mount compose.Mount) string {
	s := mount.Source + ":" + mount.Target
	if mount.ReadOnly {
		s += ":ro"
	}
	return s
}

func applyHealthCheck(container *quadlet.Container, check *compose.HealthCheck) error {
	if check == nil || len(check.Test) == 0 {
		return nil
	}
	switch check.Test[0] {
	case "NONE":
		container.HealthCmd = "none"
		return nil
	case "CMD-SHELL":
		container.HealthCmd = strings.Join(check.Test[1:], " ")
	case "CMD":
		container.HealthCmd = strings.Join(check.Test[1:], " ")
	default:
		return fmt.Errorf("invalid healthcheck test %q", check.Test[0])
	}
	container.HealthInterval = check.Interval
	container.HealthTimeout = check.Timeout
	container.HealthStartPeriod = check.StartPeriod
	container.HealthRetries = check.Retries
	return nil
}

// networkFromCompose maps a top-level network to a [Network] section. A
// network declared with no body maps to the zero value, which renders as a
// default network.
func networkFromCompose(cfg compose.Network) *quadlet.Network {
	network := &quadlet.Network{
		Driver:   cfg.Driver,
		Options:  cfg.DriverOpts,
		Internal: cfg.Internal,
		IPv6:     cfg.IPv6,
		Label:    cfg.Labels,
	}
	for _, subnet := range cfg.Subnets {
		if subnet.Subnet != "" {
			network.Subnet = append(network.Subnet, subnet.Subnet)
		}
		if subnet.Gateway != "" {
			network.Gateway = append(network.Gateway, subnet.Gateway)
		}
	}
	return network
}

// volumeFromCompose maps a top-level volume to a [Volume] section. Driver
// options with no quadlet key are a conversion failure, not a silent drop.
func volumeFromCompose(cfg compose.Volume) (*quadlet.Volume, error) {
	volume := &quadlet.Volume{
		Driver: cfg.Driver,
		Label:  cfg.Labels,
	}

	opts := make([]string, 0, len(cfg.DriverOpts))
	for opt := range cfg.DriverOpts {
		opts = append(opts, opt)
	}
	sort.Strings(opts)
	for _, opt := range opts {
		value := cfg.DriverOpts[opt]
		switch opt {
		case "device":
			volume.Device = value
		case "type":
			volume.VolType = value
		case "o":
			volume.Options = value
		default:
			return nil, fmt.Errorf("unsupported volume driver option %q", opt)
		}
	}

	return volume, nil
}
