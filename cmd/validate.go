package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	composedoc "github.com/withobsrvr/quadctl/internal/compose"
	"github.com/withobsrvr/quadctl/internal/converter"
)

var validateKube bool

var validateCmd = &cobra.Command{
	Use:   "validate [compose-file]",
	Short: "Check that a compose file can be converted",
	Long: `Run the full conversion without writing any files.

This catches the same errors the compose command would report: unsupported
features (include, non-external secrets, external networks and volumes),
conflicting depends_on entries, missing images, and invalid YAML.

Examples:
  # Validate a compose file
  quadctl validate compose.yaml

  # Validate against the Kubernetes output rules
  quadctl validate --kube compose.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "compose.yaml"
		if len(args) > 0 {
			path = args[0]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read compose file: %w", err)
		}

		doc, err := composedoc.Parse(data)
		if err != nil {
			return fmt.Errorf("%s is not a valid compose file: %w", path, err)
		}

		if validateKube {
			_, err = converter.ConvertKube(doc)
		} else {
			_, err = converter.Convert(doc, converter.Options{})
		}
		if err != nil {
			return fmt.Errorf("%s cannot be converted: %w", path, err)
		}

		fmt.Printf("%s is valid\n", path)
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateKube, "kube", false, "validate against the Kubernetes output rules")
	rootCmd.AddCommand(validateCmd)
}
