// Package compose implements the `quadctl compose` subcommand.
package compose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	composedoc "github.com/withobsrvr/quadctl/internal/compose"
	"github.com/withobsrvr/quadctl/internal/converter"
	"github.com/withobsrvr/quadctl/internal/quadlet"
	"github.com/withobsrvr/quadctl/internal/utils/logger"
)

// defaultFileNames are looked up, in order, when no compose file is given
// and stdin is a terminal.
var defaultFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
}

// Options contains the compose command options
type Options struct {
	Pod         bool
	Kube        bool
	UnitDir     string
	Overwrite   bool
	Description string
	WantedBy    []string
	Watch       bool
}

var opts Options

// NewCommand creates the compose command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose [compose-file]",
		Short: "Convert a compose document into quadlet files",
		Long: `Convert a compose document into quadlet unit files, one per service,
network, and options-bearing volume.

If the compose file is "-" or stdin is piped, the document is read from
stdin. With no argument, compose.yaml, compose.yml, docker-compose.yaml, and
docker-compose.yml are looked up in the current directory, in order.

Examples:
  # Print quadlet files to stdout
  quadctl compose compose.yaml

  # Wrap all services into one pod; requires the top-level name field
  quadctl compose --pod compose.yaml

  # Generate Kubernetes pod YAML plus a .kube unit file
  quadctl compose --kube -d ~/.config/containers/systemd compose.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompose,
	}

	cmd.Flags().BoolVar(&opts.Pod, "pod", false, "wrap all services into a shared pod unit")
	cmd.Flags().BoolVar(&opts.Kube, "kube", false, "generate a Kubernetes pod YAML and a .kube unit file")
	cmd.MarkFlagsMutuallyExclusive("pod", "kube")
	cmd.Flags().StringVarP(&opts.UnitDir, "unit-directory", "d", "", "write files to this directory instead of stdout")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "overwrite existing files")
	cmd.Flags().StringVar(&opts.Description, "description", "", "seed every generated [Unit] section with this description")
	cmd.Flags().StringSliceVar(&opts.WantedBy, "wanted-by", nil, "seed every generated file with an [Install] WantedBy target")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "regenerate whenever the compose file changes (requires -d)")

	return cmd
}

// runCompose handles the execution of the compose command
func runCompose(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	if opts.Watch {
		if opts.UnitDir == "" {
			return errors.New("--watch requires --unit-directory")
		}
		if path == "" || path == "-" {
			return errors.New("--watch requires a compose file path")
		}
		return watchAndConvert(path, func() error { return convertOnce(path) })
	}

	return convertOnce(path)
}

// convertOnce runs one full conversion of the compose file.
func convertOnce(path string) error {
	data, source, err := readComposeFile(path)
	if err != nil {
		return err
	}

	doc, err := composedoc.Parse(data)
	if err != nil {
		return fmt.Errorf("%s is not a valid compose file: %w", source, err)
	}

	artifacts, err := buildArtifacts(doc)
	if err != nil {
		return err
	}

	if opts.UnitDir == "" {
		return printArtifacts(artifacts)
	}
	return writeArtifacts(artifacts)
}

// artifact is one named output file.
type artifact struct {
	name    string
	content string
}

// buildArtifacts runs the conversion for the selected output mode.
func buildArtifacts(doc *composedoc.Document) ([]artifact, error) {
	var unit *quadlet.Unit
	if opts.Description != "" {
		unit = &quadlet.Unit{Description: opts.Description}
	}
	var install *quadlet.Install
	if len(opts.WantedBy) > 0 {
		install = &quadlet.Install{WantedBy: opts.WantedBy}
	}

	if opts.Kube {
		kubeFile, err := converter.ConvertKube(doc)
		if err != nil {
			return nil, fmt.Errorf("error converting compose file into Kubernetes YAML: %w", err)
		}
		rendered, err := kubeFile.Render()
		if err != nil {
			return nil, err
		}

		yamlName := kubeFile.Name + "-kube.yaml"
		unitFile := &quadlet.File{
			Name:     kubeFile.Name,
			Unit:     unit,
			Install:  install,
			Resource: &quadlet.Kube{Yaml: yamlName},
		}
		return []artifact{
			{name: unitFile.FileName(), content: unitFile.String()},
			{name: yamlName, content: rendered},
		}, nil
	}

	files, err := converter.Convert(doc, converter.Options{
		Pod:     opts.Pod,
		Unit:    unit,
		Install: install,
	})
	if err != nil {
		return nil, fmt.Errorf("error converting compose file into quadlet files: %w", err)
	}

	artifacts := make([]artifact, 0, len(files))
	for _, file := range files {
		artifacts = append(artifacts, artifact{name: file.FileName(), content: file.String()})
	}
	return artifacts, nil
}

// readComposeFile resolves the compose document from the given path, stdin,
// or the default file names.
func readComposeFile(path string) ([]byte, string, error) {
	if path == "-" {
		return readStdin()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("could not read compose file: %w", err)
		}
		return data, path, nil
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return readStdin()
	}

	for _, name := range defaultFileNames {
		data, err := os.ReadFile(name)
		if err == nil {
			return data, name, nil
		}
	}
	return nil, "", fmt.Errorf(
		"a compose file was not provided and none of %v exist in the current directory",
		defaultFileNames,
	)
}

func readStdin() ([]byte, string, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, "", errors.New("cannot read compose file from stdin, stdin is a terminal")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, "", fmt.Errorf("error reading compose file from stdin: %w", err)
	}
	return data, "stdin", nil
}

// printArtifacts writes every artifact to stdout, each preceded by a comment
// header naming the file it belongs in.
func printArtifacts(artifacts []artifact) error {
	header := color.New(color.FgCyan)
	for _, a := range artifacts {
		header.Printf("# %s\n", a.name)
		fmt.Println(a.content)
	}
	return nil
}

// writeArtifacts writes every artifact into the unit directory.
func writeArtifacts(artifacts []artifact) error {
	if err := os.MkdirAll(opts.UnitDir, 0o755); err != nil {
		return fmt.Errorf("could not create unit directory: %w", err)
	}

	for _, a := range artifacts {
		path := filepath.Join(opts.UnitDir, a.name)
		if !opts.Overwrite {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("file %s already exists, use --overwrite to replace it", path)
			}
		}
		if err := os.WriteFile(path, []byte(a.content), 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
		logger.Info("Wrote file", zap.String("path", path))
	}
	return nil
}
