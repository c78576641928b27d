// Package quadlet models generated quadlet unit files: one single-resource
// descriptor per file plus optional [Unit], [Service], and [Install]
// sections, and renders them in systemd unit syntax.
package quadlet

import (
	"fmt"
	"sort"
	"strings"
)

// UnitType identifies the resource kind of a quadlet file and its extension.
type UnitType struct {
	Name string
	Ext  string
}

var (
	UnitTypeContainer = UnitType{Name: "container", Ext: ".container"}
	UnitTypeNetwork   = UnitType{Name: "network", Ext: ".network"}
	UnitTypeVolume    = UnitType{Name: "volume", Ext: ".volume"}
	UnitTypePod       = UnitType{Name: "pod", Ext: ".pod"}
	UnitTypeKube      = UnitType{Name: "kube", Ext: ".kube"}
)

// Resource is the single resource section of a quadlet file. Exactly one of
// Container, Network, Volume, Pod, or Kube.
type Resource interface {
	Type() UnitType
	writeSection(w *sectionWriter)
}

// File is one generated quadlet file.
type File struct {
	// Name is the file name stem, without the extension.
	Name string

	Unit    *Unit
	Install *Install

	Resource Resource

	// Service overrides the generated [Service] section. Only set for
	// containers with a compose restart policy.
	Service *Service
}

// FileName returns the full file name, extension included.
func (f *File) FileName() string {
	return f.Name + f.Resource.Type().Ext
}

// String renders the file in systemd unit syntax.
func (f *File) String() string {
	var w sectionWriter
	if !f.Unit.IsEmpty() {
		f.Unit.writeSection(&w)
	}
	f.Resource.writeSection(&w)
	if f.Service != nil {
		f.Service.writeSection(&w)
	}
	if f.Install != nil && !f.Install.IsEmpty() {
		f.Install.writeSection(&w)
	}
	return w.String()
}

// Install is the [Install] section of a quadlet file.
type Install struct {
	WantedBy   []string
	RequiredBy []string
}

// Clone returns a deep copy of the install template.
func (i *Install) Clone() *Install {
	if i == nil {
		return nil
	}
	return &Install{
		WantedBy:   append([]string(nil), i.WantedBy...),
		RequiredBy: append([]string(nil), i.RequiredBy...),
	}
}

// IsEmpty reports whether the section would render nothing.
func (i *Install) IsEmpty() bool {
	return i == nil || (len(i.WantedBy) == 0 && len(i.RequiredBy) == 0)
}

func (i *Install) writeSection(w *sectionWriter) {
	w.section("Install")
	w.list("WantedBy", i.WantedBy)
	w.list("RequiredBy", i.RequiredBy)
}

// Service is the [Service] override section, currently restart policy only.
type Service struct {
	Restart string
}

// ServiceFromRestart maps a compose restart policy to a [Service] override.
// Policies that match the systemd default produce no override.
func ServiceFromRestart(restart string) *Service {
	switch restart {
	case "always", "unless-stopped":
		return &Service{Restart: "always"}
	case "on-failure":
		return &Service{Restart: "on-failure"}
	default:
		return nil
	}
}

func (s *Service) writeSection(w *sectionWriter) {
	w.section("Service")
	w.kv("Restart", s.Restart)
}

// sectionWriter accumulates unit file text section by section.
type sectionWriter struct {
	b     strings.Builder
	wrote bool
}

func (w *sectionWriter) section(name string) {
	if w.wrote {
		w.b.WriteByte('\n')
	}
	w.wrote = true
	fmt.Fprintf(&w.b, "[%s]\n", name)
}

func (w *sectionWriter) kv(key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(&w.b, "%s=%s\n", key, value)
}

func (w *sectionWriter) flag(key string, set bool) {
	if set {
		w.kv(key, "true")
	}
}

func (w *sectionWriter) list(key string, values []string) {
	for _, value := range values {
		w.kv(key, value)
	}
}

// sortedKV writes one line per map entry as key=value, sorted for
// deterministic output.
func (w *sectionWriter) sortedKV(key string, values map[string]string) {
	entries := make([]string, 0, len(values))
	for k, v := range values {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	w.list(key, entries)
}

func (w *sectionWriter) String() string {
	return w.b.String()
}

// joinArgs joins argv-style values into a single directive value, quoting
// arguments that contain whitespace.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t\"") {
			quoted[i] = fmt.Sprintf("%q", arg)
		} else {
			quoted[i] = arg
		}
	}
	return strings.Join(quoted, " ")
}
