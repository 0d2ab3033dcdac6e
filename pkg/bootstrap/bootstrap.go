package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"thoreinstein.com/uber/pkg/config"
)

// LocalConfigName is the workspace-local configuration file merged on top of
// the global one.
const LocalConfigName = ".uber.toml"

var (
	lastLoadedConfig  string
	lastLoadedDir     string
	lastLoadedVerbose bool
	loadedConfig      *config.Config
)

// Flags holds the global flags needed before cobra runs.
type Flags struct {
	ConfigFile string
	Dir        string
	Verbose    bool
}

// PreParseGlobalFlags manually scans os.Args for --config, --dir and
// --verbose flags before the main Cobra execution. This is a bootstrap step
// for configuration. It stops scanning at the "--" marker; positional
// arguments such as the mode are skipped.
func PreParseGlobalFlags(args []string) Flags {
	var f Flags

	for i := 1; i < len(args); i++ {
		arg := args[i]

		// Stop parsing at the standard end-of-options marker
		if arg == "--" {
			break
		}

		if !strings.HasPrefix(arg, "-") {
			continue
		}

		switch {
		case arg == "--config" || arg == "-C":
			if i+1 < len(args) {
				f.ConfigFile = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			f.ConfigFile = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-C="):
			f.ConfigFile = strings.TrimPrefix(arg, "-C=")
		case strings.HasPrefix(arg, "-C") && len(arg) > 2:
			f.ConfigFile = arg[2:]
		case arg == "--dir" || arg == "-d":
			if i+1 < len(args) {
				f.Dir = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--dir="):
			f.Dir = strings.TrimPrefix(arg, "--dir=")
		case strings.HasPrefix(arg, "-d="):
			f.Dir = strings.TrimPrefix(arg, "-d=")
		case arg == "--verbose" || arg == "-v":
			f.Verbose = true
		}
	}

	return f
}

// InitConfig reads in config file and ENV variables if set, then merges the
// workspace-local config from dir (the current directory when empty).
func InitConfig(cfgFile, dir string, verbose bool) (*config.Config, error) {
	// Skip if already loaded with same parameters (unless in test)
	if os.Getenv("GO_TEST") != "true" && loadedConfig != nil &&
		cfgFile == lastLoadedConfig && dir == lastLoadedDir && verbose == lastLoadedVerbose {
		return loadedConfig, nil
	}

	// Reset Viper state to avoid carrying over stale settings from previous loads.
	viper.Reset()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		globalDir, err := config.GlobalDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(globalDir)
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("UBER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		return nil, config.NewReadError(cfgFile, err)
	}

	LoadLocalConfig(dir, verbose)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// Update state
	lastLoadedConfig = cfgFile
	lastLoadedDir = dir
	lastLoadedVerbose = verbose
	loadedConfig = cfg

	return cfg, nil
}

// LoadLocalConfig merges .uber.toml from the workspace directory, if present.
func LoadLocalConfig(dir string, verbose bool) {
	if dir == "" {
		dir = "."
	}
	configPath := filepath.Join(dir, LocalConfigName)

	if _, err := os.Stat(configPath); err != nil {
		return
	}

	localViper := viper.New()
	localViper.SetConfigFile(configPath)
	localViper.SetConfigType("toml")

	if err := localViper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read local config %s: %v\n", configPath, err)
		return
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Using workspace config: %s\n", configPath)
	}

	if err := viper.MergeConfigMap(localViper.AllSettings()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not merge local config: %v\n", err)
	}
}

// Reset clears the cached configuration state.
func Reset() {
	lastLoadedConfig = ""
	lastLoadedDir = ""
	lastLoadedVerbose = false
	loadedConfig = nil
}
