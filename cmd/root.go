package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"thoreinstein.com/uber/pkg/bootstrap"
	"thoreinstein.com/uber/pkg/config"
	uberrors "thoreinstein.com/uber/pkg/errors"
	"thoreinstein.com/uber/pkg/logging"
	"thoreinstein.com/uber/pkg/ui"
)

var (
	cfgFile      string
	verbose      bool
	dryRun       bool
	workDir      string
	outputFormat ui.Format
	showVersion  bool
	appConfig    *config.Config
)

// rootCmd represents the base command. Run without a subcommand it
// generates the workspace manifest.
var rootCmd = &cobra.Command{
	Use:   "cargo-uber",
	Short: "cargo-uber - one Cargo workspace over many cloned repositories",
	Long: `cargo-uber aggregates several independently cloned Cargo repositories that
sit side by side in one directory into a single parent workspace.

Run without arguments it scans the directory for cloned repositories and
writes a Cargo.toml whose [workspace] lists every package as a member and
excludes the repository roots that contain nested packages.

The local-path and git-ref commands switch the dependencies between those
repositories from path references to git references on the "upstream"
remote and back.

Examples:
  cargo uber                 # generate ./Cargo.toml
  cargo uber local-path      # develop across repositories with path deps
  cargo uber git-ref         # share work with git deps on upstream
  cargo-uber -d ~/src/ws --dry-run`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Version output needs no configuration, so a broken config cannot block it.
		if showVersion || cmd.Name() == "version" {
			return nil
		}
		return initRuntime(cmd.ErrOrStderr(), cmd.Flags().Changed("output"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return printVersion(cmd.OutOrStdout())
		}
		return runGenerate(cmd.OutOrStdout())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	args := cargoArgs(os.Args[1:])

	// Pre-parse global flags so logging follows the configuration even for
	// errors raised while cobra parses the command line.
	flags := bootstrap.PreParseGlobalFlags(append([]string{os.Args[0]}, args...))
	cfgFile, workDir, verbose = flags.ConfigFile, flags.Dir, flags.Verbose
	if err := initRuntime(os.Stderr, false); err != nil && !infoOnly(args) {
		fmt.Fprintln(os.Stderr, uberrors.FormatUserError(err))
		os.Exit(1)
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, uberrors.FormatUserError(err))
		os.Exit(1)
	}
}

// cargoArgs drops the subcommand name cargo passes when the binary runs as
// `cargo uber`.
func cargoArgs(args []string) []string {
	if len(args) > 0 && args[0] == "uber" {
		return args[1:]
	}
	return args
}

// infoOnly reports whether args only ask for help or version output.
func infoOnly(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--":
			return false
		case "-h", "--help", "-V", "--version", "help", "version":
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/cargo-uber/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing any manifest")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", "", "workspace directory (default is the current directory)")
	rootCmd.PersistentFlags().VarP(&outputFormat, "output", "o", "output format: text, json or yaml")

	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print version information and exit")
}

// initRuntime loads the configuration and sets up logging. The output format
// from the configuration applies unless --output was given.
func initRuntime(stderr io.Writer, outputFlagSet bool) error {
	cfg, err := bootstrap.InitConfig(cfgFile, workDir, verbose)
	if err != nil {
		return err
	}
	appConfig = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return uberrors.NewConfigErrorWithCause("log.level", err.Error(), err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.Log.Format, stderr)

	if !outputFlagSet {
		if err := outputFormat.Set(cfg.Output.Format); err != nil {
			return uberrors.NewConfigErrorWithCause("output.format", err.Error(), err)
		}
	}
	return nil
}

// workspaceRoot returns the directory to scan.
func workspaceRoot() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", uberrors.NewFilesystemError("read", ".", err)
	}
	return dir, nil
}

// resetConfig clears the cached configuration.
// This is primarily used in tests to ensure each test starts with a fresh config.
func resetConfig() {
	appConfig = nil
	bootstrap.Reset()
	viper.Reset()
}
