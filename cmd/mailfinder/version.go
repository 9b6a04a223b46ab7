package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/mailfinder/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Current)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
