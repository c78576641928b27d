// Package converter turns a compose document into quadlet unit files or a
// Kubernetes pod definition.
//
// The per-entity field mapping lives in mapping.go; this file holds the
// cross-referencing engine: dependency ordering, shared-pod membership,
// named-volume option linking, and published-port aggregation.
package converter

import (
	"errors"
	"fmt"

	"github.com/withobsrvr/quadctl/internal/compose"
	"github.com/withobsrvr/quadctl/internal/quadlet"
)

// Options selects the output mode and seeds the shared section templates.
type Options struct {
	// Pod wraps every container into a shared pod unit. Requires the
	// document's top-level `name`.
	Pod bool

	// Kube selects the Kubernetes output path instead of per-service unit
	// files. Mutually exclusive with Pod.
	Kube bool

	// Unit and Install are optional templates cloned into every generated
	// file.
	Unit    *quadlet.Unit
	Install *quadlet.Install
}

// Convert converts the document into an ordered list of quadlet files.
//
// Ordering is part of the contract: container files appear in service
// declaration order, then networks, then volumes, and the synthesized pod
// file, if any, is always last.
func Convert(doc *compose.Document, opts Options) ([]*quadlet.File, error) {
	if opts.Pod && opts.Kube {
		return nil, errors.New("pod and kube output modes are mutually exclusive")
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	podName := ""
	if opts.Pod {
		if doc.Name == "" {
			return nil, fmt.Errorf("top-level `name` is required when wrapping services in a pod: %w", ErrMissingName)
		}
		podName = doc.Name
	}

	// Built once; read for every named-volume reference in every service.
	hasOptions := volumeOptionsIndex(doc.Volumes)

	files := make([]*quadlet.File, 0, len(doc.Services)+len(doc.Networks)+len(doc.Volumes)+1)
	for _, svc := range doc.Services {
		file, err := resolveService(svc, opts, hasOptions)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	// Pod aggregation is a second pass over the already-built container
	// files: per-service resolution stays independent of pod wrapping.
	var podPorts []string
	if podName != "" {
		podPorts = aggregateIntoPod(files, podName)
	}

	networkFiles, err := convertNetworks(doc.Networks, opts)
	if err != nil {
		return nil, err
	}
	files = append(files, networkFiles...)

	volumeFiles, err := convertVolumes(doc.Volumes, opts)
	if err != nil {
		return nil, err
	}
	files = append(files, volumeFiles...)

	if podName != "" {
		files = append(files, &quadlet.File{
			Name:     podName,
			Unit:     opts.Unit.Clone(),
			Install:  opts.Install.Clone(),
			Resource: &quadlet.Pod{PublishPort: podPorts},
		})
	}

	if err := checkUniqueNames(files); err != nil {
		return nil, err
	}
	return files, nil
}

// volumeOptionsIndex maps each declared volume name to whether it carries
// non-default options. Volumes with options need their own .volume file, and
// containers referencing them must link to it.
func volumeOptionsIndex(volumes []compose.TopLevel[compose.Volume]) map[string]bool {
	index := make(map[string]bool, len(volumes))
	for _, entry := range volumes {
		hasOpts := false
		if entry.Resource != nil {
			if cfg, ok := entry.Resource.AsCompose(); ok {
				hasOpts = !cfg.IsZero()
			}
		}
		index[entry.Name] = hasOpts
	}
	return index
}

// resolveService converts one service into a .container quadlet file.
//
// Dependencies, the restart policy, and pass-through podman arguments are
// extracted first; the remaining fields go through the container field
// mapper.
func resolveService(svc compose.Service, opts Options, hasOptions map[string]bool) (*quadlet.File, error) {
	unit := opts.Unit.Clone()
	if len(svc.DependsOn) > 0 {
		if unit == nil {
			unit = &quadlet.Unit{}
		}
		for _, dep := range svc.DependsOn {
			err := unit.AddDependency(dep.Target, quadlet.Dependency{
				Condition: dep.Condition,
				Required:  dep.Required,
				Restart:   dep.Restart,
			})
			if err != nil {
				return nil, fmt.Errorf("error adding dependency on %q to service %q: %w", dep.Target, svc.Name, err)
			}
		}
	}
	svc.DependsOn = nil

	restart := svc.Restart
	svc.Restart = ""

	globalArgs := svc.PodmanArgs
	svc.PodmanArgs = nil

	// Volume option linking: a named volume with options is provided by a
	// generated .volume file; rewrite the mount source to reference it.
	// Named volumes never declared at top level stay untouched and fall back
	// to anonymous volume handling.
	mounts := make([]compose.Mount, len(svc.Volumes))
	copy(mounts, svc.Volumes)
	for i, mount := range mounts {
		if mount.Type == compose.MountTypeVolume && hasOptions[mount.Source] {
			mounts[i].Source = mount.Source + ".volume"
		}
	}
	svc.Volumes = mounts

	container, err := containerFromService(svc)
	if err != nil {
		return nil, fmt.Errorf("error converting service %q into a quadlet container: %w", svc.Name, err)
	}
	container.PodmanArgs = globalArgs

	return &quadlet.File{
		Name:     svc.Name,
		Unit:     unit,
		Install:  opts.Install.Clone(),
		Resource: container,
		Service:  quadlet.ServiceFromRestart(restart),
	}, nil
}

// aggregateIntoPod renames every container file to "{pod}-{name}", moves its
// published ports into the shared pod, and links it to the pod unit.
// Dependency targets pointing at renamed containers are rewritten to match.
// Returns the accumulated ports in service order.
func aggregateIntoPod(files []*quadlet.File, podName string) []string {
	rename := make(map[string]string, len(files))
	for _, file := range files {
		rename[file.Name] = podName + "-" + file.Name
	}

	var ports []string
	for _, file := range files {
		container, ok := file.Resource.(*quadlet.Container)
		if !ok {
			continue
		}
		file.Name = rename[file.Name]
		ports = append(ports, container.PublishPort...)
		container.PublishPort = nil
		container.Pod = podName + ".pod"
		if file.Unit != nil {
			file.Unit.RenameTargets(rename)
		}
	}
	return ports
}

// convertNetworks converts each top-level network into a .network file.
// Externally-managed networks cannot be emulated and are rejected.
func convertNetworks(networks []compose.TopLevel[compose.Network], opts Options) ([]*quadlet.File, error) {
	files := make([]*quadlet.File, 0, len(networks))
	for _, entry := range networks {
		var cfg compose.Network
		if entry.Resource != nil {
			if entry.Resource.IsExternal() {
				return nil, fmt.Errorf("external networks (%q) are not supported: %w", entry.Name, ErrUnsupportedFeature)
			}
			cfg, _ = entry.Resource.AsCompose()
		}
		files = append(files, &quadlet.File{
			Name:     entry.Name,
			Unit:     opts.Unit.Clone(),
			Install:  opts.Install.Clone(),
			Resource: networkFromCompose(cfg),
		})
	}
	return files, nil
}

// convertVolumes converts options-bearing top-level volumes into .volume
// files. Volumes without options need no file; externally-managed volumes
// are rejected.
func convertVolumes(volumes []compose.TopLevel[compose.Volume], opts Options) ([]*quadlet.File, error) {
	var files []*quadlet.File
	for _, entry := range volumes {
		if entry.Resource == nil {
			continue
		}
		if entry.Resource.IsExternal() {
			return nil, fmt.Errorf("external volumes (%q) are not supported: %w", entry.Name, ErrUnsupportedFeature)
		}
		cfg, _ := entry.Resource.AsCompose()
		if cfg.IsZero() {
			continue
		}
		volume, err := volumeFromCompose(cfg)
		if err != nil {
			return nil, fmt.Errorf("error converting volume %q into a quadlet volume: %w", entry.Name, err)
		}
		files = append(files, &quadlet.File{
			Name:     entry.Name,
			Unit:     opts.Unit.Clone(),
			Install:  opts.Install.Clone(),
			Resource: volume,
		})
	}
	return files, nil
}

func checkUniqueNames(files []*quadlet.File) error {
	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		name := file.FileName()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateFile, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
