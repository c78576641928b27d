package converter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/withobsrvr/quadctl/internal/compose"
)

// Annotations understood by `podman kube play` for recreating volume options
// from a persistent volume claim.
const (
	annotationDriver       = "volume.podman.io/driver"
	annotationDevice       = "volume.podman.io/device"
	annotationType         = "volume.podman.io/type"
	annotationMountOptions = "volume.podman.io/mount-options"
)

// defaultClaimStorage is the storage request put on generated claims; the
// actual size is decided by whoever provisions the claim.
var defaultClaimStorage = resource.MustParse("1Gi")

// KubeFile is the Kubernetes output: one pod with every service folded in,
// plus one persistent volume claim per options-bearing volume.
type KubeFile struct {
	// Name is the file name stem, without extension, taken from the
	// document's top-level `name`.
	Name string

	Pod corev1.Pod

	PersistentVolumeClaims []corev1.PersistentVolumeClaim
}

// ConvertKube folds the whole document into a single Kubernetes pod.
func ConvertKube(doc *compose.Document) (*KubeFile, error) {
	if err := validateKubeDocument(doc); err != nil {
		return nil, err
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("top-level `name` is required for Kubernetes output: %w", ErrMissingName)
	}

	hasOptions := volumeOptionsIndex(doc.Volumes)

	var spec corev1.PodSpec
	for _, svc := range doc.Services {
		if err := addToPodSpec(&spec, svc, hasOptions); err != nil {
			return nil, fmt.Errorf("error adding service %q to Kubernetes pod spec: %w", svc.Name, err)
		}
	}

	claims, err := convertClaims(doc.Volumes)
	if err != nil {
		return nil, err
	}

	return &KubeFile{
		Name: doc.Name,
		Pod: corev1.Pod{
			TypeMeta: metav1.TypeMeta{
				APIVersion: "v1",
				Kind:       "Pod",
			},
			ObjectMeta: metav1.ObjectMeta{Name: doc.Name},
			Spec:       spec,
		},
		PersistentVolumeClaims: claims,
	}, nil
}

// Render emits the claims, each followed by a document separator, then the
// pod. Claims come first so the pod's volume references resolve when the
// documents are applied in order.
func (f *KubeFile) Render() (string, error) {
	var b strings.Builder
	for i := range f.PersistentVolumeClaims {
		data, err := yaml.Marshal(&f.PersistentVolumeClaims[i])
		if err != nil {
			return "", fmt.Errorf("error rendering persistent volume claim %q: %w", f.PersistentVolumeClaims[i].Name, err)
		}
		b.Write(data)
		b.WriteString("---\n")
	}
	data, err := yaml.Marshal(&f.Pod)
	if err != nil {
		return "", fmt.Errorf("error rendering pod: %w", err)
	}
	b.Write(data)
	return b.String(), nil
}

// addToPodSpec folds one service into the shared pod spec.
func addToPodSpec(spec *corev1.PodSpec, svc compose.Service, hasOptions map[string]bool) error {
	if svc.Image == "" {
		return errors.New("`image` is required")
	}

	container := corev1.Container{
		Name:       svc.Name,
		Image:      svc.Image,
		Command:    svc.Entrypoint,
		Args:       svc.Command,
		WorkingDir: svc.WorkingDir,
	}

	envNames := make([]string, 0, len(svc.Environment))
	for name := range svc.Environment {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)
	for _, name := range envNames {
		container.Env = append(container.Env, corev1.EnvVar{Name: name, Value: svc.Environment[name]})
	}

	for _, port := range svc.Ports {
		converted, err := containerPort(port)
		if err != nil {
			return err
		}
		container.Ports = append(container.Ports, converted)
	}

	if svc.User != "" {
		uid, err := strconv.ParseInt(svc.User, 10, 64)
		if err != nil {
			return fmt.Errorf("`user` must be a numeric UID for Kubernetes output, got %q", svc.User)
		}
		container.SecurityContext = securityContext(container.SecurityContext)
		container.SecurityContext.RunAsUser = &uid
	}
	if svc.ReadOnly {
		readOnly := true
		container.SecurityContext = securityContext(container.SecurityContext)
		container.SecurityContext.ReadOnlyRootFilesystem = &readOnly
	}

	if err := applyProbe(&container, svc.HealthCheck); err != nil {
		return err
	}

	for _, mount := range svc.Volumes {
		volume, volumeMount, err := podVolume(mount, hasOptions)
		if err != nil {
			return err
		}
		container.VolumeMounts = append(container.VolumeMounts, volumeMount)
		addPodVolume(spec, volume)
	}

	if svc.Restart != "" {
		policy, err := restartPolicy(svc.Restart)
		if err != nil {
			return err
		}
		if spec.RestartPolicy != "" && spec.RestartPolicy != policy {
			return fmt.Errorf("restart policy %q conflicts with %q declared by an earlier service", svc.Restart, spec.RestartPolicy)
		}
		spec.RestartPolicy = policy
	}

	spec.Containers = append(spec.Containers, container)
	return nil
}

func containerPort(port compose.PortMapping) (corev1.ContainerPort, error) {
	converted := corev1.ContainerPort{
		ContainerPort: int32(port.Target),
		HostIP:        port.HostIP,
	}
	if port.Published != "" {
		host, err := strconv.ParseInt(port.Published, 10, 32)
		if err != nil {
			return corev1.ContainerPort{}, fmt.Errorf("published port ranges (%q) are not supported for Kubernetes output", port.Published)
		}
		converted.HostPort = int32(host)
	}
	switch port.Protocol {
	case "", "tcp":
		converted.Protocol = corev1.ProtocolTCP
	case "udp":
		converted.Protocol = corev1.ProtocolUDP
	case "sctp":
		converted.Protocol = corev1.ProtocolSCTP
	default:
		return corev1.ContainerPort{}, fmt.Errorf("unsupported port protocol %q", port.Protocol)
	}
	return converted, nil
}

func securityContext(ctx *corev1.SecurityContext) *corev1.SecurityContext {
	if ctx == nil {
		return &corev1.SecurityContext{}
	}
	return ctx
}

func applyProbe(container *corev1.Container, check *compose.HealthCheck) error {
	if check == nil || len(check.Test) == 0 {
		return nil
	}

	var command []string
	switch check.Test[0] {
	case "NONE":
		return nil
	case "CMD":
		command = check.Test[1:]
	case "CMD-SHELL":
		command = []string{"/bin/sh", "-c", strings.Join(check.Test[1:], " ")}
	default:
		return fmt.Errorf("invalid healthcheck test %q", check.Test[0])
	}

	probe := &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			Exec: &corev1.ExecAction{Command: command},
		},
		FailureThreshold: int32(check.Retries),
	}
	var err error
	if probe.PeriodSeconds, err = durationSeconds(check.Interval); err != nil {
		return err
	}
	if probe.TimeoutSeconds, err = durationSeconds(check.Timeout); err != nil {
		return err
	}
	if probe.InitialDelaySeconds, err = durationSeconds(check.StartPeriod); err != nil {
		return err
	}
	container.LivenessProbe = probe
	return nil
}

func durationSeconds(value string) (int32, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid healthcheck duration %q: %w", value, err)
	}
	return int32(d / time.Second), nil
}

// podVolume builds the pod-level volume and the container-level mount for
// one service volume entry. Named volumes with options become claim
// references; anonymous named volumes and tmpfs mounts become emptyDirs;
// bind mounts become hostPaths.
func podVolume(mount compose.Mount, hasOptions map[string]bool) (corev1.Volume, corev1.VolumeMount, error) {
	var volume corev1.Volume
	switch mount.Type {
	case compose.MountTypeVolume:
		volume.Name = mount.Source
		if hasOptions[mount.Source] {
			volume.PersistentVolumeClaim = &corev1.PersistentVolumeClaimVolumeSource{
				ClaimName: mount.Source,
			}
		} else {
			volume.EmptyDir = &corev1.EmptyDirVolumeSource{}
		}
	case compose.MountTypeBind:
		volume.Name = sanitizeVolumeName(mount.Source) + "-host"
		volume.HostPath = &corev1.HostPathVolumeSource{Path: mount.Source}
	case compose.MountTypeTmpfs:
		volume.Name = sanitizeVolumeName(mount.Target)
		medium := corev1.StorageMediumMemory
		volume.EmptyDir = &corev1.EmptyDirVolumeSource{Medium: medium}
	default:
		return corev1.Volume{}, corev1.VolumeMount{}, fmt.Errorf("unsupported volume type %q", mount.Type)
	}

	return volume, corev1.VolumeMount{
		Name:      volume.Name,
		MountPath: mount.Target,
		ReadOnly:  mount.ReadOnly,
	}, nil
}

// addPodVolume appends the volume unless an identical reference exists;
// services sharing a named volume share the pod-level entry.
func addPodVolume(spec *corev1.PodSpec, volume corev1.Volume) {
	for _, existing := range spec.Volumes {
		if existing.Name == volume.Name {
			return
		}
	}
	spec.Volumes = append(spec.Volumes, volume)
}

func restartPolicy(restart string) (corev1.RestartPolicy, error) {
	switch restart {
	case "always", "unless-stopped":
		return corev1.RestartPolicyAlways, nil
	case "on-failure":
		return corev1.RestartPolicyOnFailure, nil
	case "no":
		return corev1.RestartPolicyNever, nil
	default:
		return "", fmt.Errorf("unsupported restart policy %q", restart)
	}
}

// convertClaims produces one persistent volume claim per options-bearing
// compose-managed volume. External and option-less volumes are skipped; they
// have no claim to generate.
func convertClaims(volumes []compose.TopLevel[compose.Volume]) ([]corev1.PersistentVolumeClaim, error) {
	var claims []corev1.PersistentVolumeClaim
	for _, entry := range volumes {
		if entry.Resource == nil {
			continue
		}
		cfg, ok := entry.Resource.AsCompose()
		if !ok || cfg.IsZero() {
			continue
		}
		claim, err := persistentVolumeClaim(entry.Name, cfg)
		if err != nil {
			return nil, fmt.Errorf("error converting volume %q to a persistent volume claim: %w", entry.Name, err)
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

func persistentVolumeClaim(name string, cfg compose.Volume) (corev1.PersistentVolumeClaim, error) {
	annotations := make(map[string]string)
	if cfg.Driver != "" {
		annotations[annotationDriver] = cfg.Driver
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
			annotations[annotationDevice] = value
		case "type":
			annotations[annotationType] = value
		case "o":
			annotations[annotationMountOptions] = value
		default:
			return corev1.PersistentVolumeClaim{}, fmt.Errorf("unsupported volume driver option %q", opt)
		}
	}
	if len(annotations) == 0 {
		annotations = nil
	}

	return corev1.PersistentVolumeClaim{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "PersistentVolumeClaim",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Labels:      cfg.Labels,
			Annotations: annotations,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: defaultClaimStorage,
				},
			},
		},
	}, nil
}

// sanitizeVolumeName turns a path into a DNS-label style volume name, the
// same shape `podman kube generate` uses for host paths.
func sanitizeVolumeName(path string) string {
	name := strings.Trim(path, "/")
	name = strings.NewReplacer("/", "-", ".", "-", "_", "-", "~", "").Replace(name)
	name = strings.ToLower(name)
	if name == "" {
		return "root"
	}
	return name
}
