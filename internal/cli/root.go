// Package cli implements the drivetracker command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// Version and Commit are set at build time via ldflags.
	Version = "dev"
	Commit  = ""
)

// appFs is the file system commands read from. Tests swap it for a
// memory file system.
var appFs afero.Fs = afero.NewOsFs()

var configPath string

var rootCmd = &cobra.Command{
	Use:   "drivetracker",
	Short: "Track file changes in a shared folder hierarchy",
	Long: `drivetracker polls a folder listing, compares it with the previous one
and posts added, removed, renamed and state-changed files to a webhook.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}
