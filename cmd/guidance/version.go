package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/guidance"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of guidance",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "guidance version %s\n", strings.TrimSpace(guidance.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
