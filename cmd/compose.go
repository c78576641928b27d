package cmd

import (
	composecmd "github.com/withobsrvr/quadctl/cmd/compose"
)

func init() {
	rootCmd.AddCommand(composecmd.NewCommand())
}
