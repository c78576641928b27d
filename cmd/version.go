package cmd

import (
	"github.com/withobsrvr/quadctl/cmd/version"
)

func init() {
	rootCmd.AddCommand(version.NewCommand())
}
