package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"thoreinstein.com/uber/pkg/git"
	"thoreinstein.com/uber/pkg/logging"
	"thoreinstein.com/uber/pkg/rewrite"
	"thoreinstein.com/uber/pkg/ui"
)

// localPathCmd represents the local-path command
var localPathCmd = &cobra.Command{
	Use:   "local-path",
	Short: "Point dependencies between scanned packages at their local checkouts",
	Long: `Rewrite git dependencies on packages found in the workspace into path
dependencies relative to the depending package.

A git dependency is matched by crate name (its "package" key when renamed).
Names that match more than one scanned package are left unchanged and
reported as skipped.

Examples:
  cargo uber local-path
  cargo uber local-path --dry-run -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(cmd.OutOrStdout(), rewrite.ModeLocalPath)
	},
}

// gitRefCmd represents the git-ref command
var gitRefCmd = &cobra.Command{
	Use:   "git-ref",
	Short: "Point cross-repository dependencies at the upstream remote",
	Long: `Rewrite path dependencies that cross from one cloned repository into
another into git dependencies on the target repository's upstream remote.

The current branch of the target repository is used; a detached HEAD pins
the current commit instead. Path dependencies inside one repository stay
as they are. Only local git metadata is read, nothing is fetched.

Examples:
  cargo uber git-ref
  cargo uber git-ref -d ~/src/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(cmd.OutOrStdout(), rewrite.ModeGitRef)
	},
}

func init() {
	rootCmd.AddCommand(localPathCmd)
	rootCmd.AddCommand(gitRefCmd)
}

// runSwitch rewrites every scanned package into mode and prints the report.
// The command fails when any package could not be rewritten.
func runSwitch(out io.Writer, mode rewrite.Mode) error {
	res, err := scanWorkspace()
	if err != nil {
		return err
	}

	resolver := git.NewRemoteResolver(verbose, logging.New("git"))
	rewriter := rewrite.New(mode, resolver, logging.New("rewrite"), rewrite.Options{
		DryRun: dryRun,
		Write:  writeOptions(),
	})

	report := rewriter.Run(res)
	if err := ui.NewPrinter(out, outputFormat).Report(report); err != nil {
		return err
	}
	return report.Err()
}
