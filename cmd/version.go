package cmd

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

// GetVersion returns the build version, normalised when it is a valid
// semantic version.
func GetVersion() string {
	if Version == "" || Version == "dev" {
		return "dev"
	}
	v, err := semver.NewVersion(Version)
	if err != nil {
		return Version
	}
	return v.String()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "cargo-uber %s\n", GetVersion())
	return err
}
