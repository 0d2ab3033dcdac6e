package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

func TestPreParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Flags
	}{
		{name: "none", args: []string{"cargo-uber"}, want: Flags{}},
		{name: "long config", args: []string{"cargo-uber", "--config", "/tmp/c.toml"}, want: Flags{ConfigFile: "/tmp/c.toml"}},
		{name: "config equals", args: []string{"cargo-uber", "--config=/tmp/c.toml"}, want: Flags{ConfigFile: "/tmp/c.toml"}},
		{name: "short config", args: []string{"cargo-uber", "-C", "c.toml"}, want: Flags{ConfigFile: "c.toml"}},
		{name: "short config attached", args: []string{"cargo-uber", "-Cc.toml"}, want: Flags{ConfigFile: "c.toml"}},
		{name: "short config equals", args: []string{"cargo-uber", "-C=c.toml"}, want: Flags{ConfigFile: "c.toml"}},
		{name: "dir", args: []string{"cargo-uber", "--dir", "/ws"}, want: Flags{Dir: "/ws"}},
		{name: "dir equals", args: []string{"cargo-uber", "--dir=/ws"}, want: Flags{Dir: "/ws"}},
		{name: "short dir", args: []string{"cargo-uber", "-d", "/ws"}, want: Flags{Dir: "/ws"}},
		{name: "short dir equals", args: []string{"cargo-uber", "-d=/ws"}, want: Flags{Dir: "/ws"}},
		{name: "verbose", args: []string{"cargo-uber", "-v"}, want: Flags{Verbose: true}},
		{
			name: "mode positional skipped",
			args: []string{"cargo-uber", "uber", "git-ref", "--verbose", "-d", "/ws"},
			want: Flags{Dir: "/ws", Verbose: true},
		},
		{
			name: "stops at end of options",
			args: []string{"cargo-uber", "-v", "--", "--config", "ignored.toml"},
			want: Flags{Verbose: true},
		},
		{name: "missing value", args: []string{"cargo-uber", "--config"}, want: Flags{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreParseGlobalFlags(tt.args))
		})
	}
}

func TestInitConfig_GlobalAndLocal(t *testing.T) {
	// Don't run in parallel - modifies global viper state and HOME
	t.Setenv("GO_TEST", "true")
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	defer viper.Reset()
	defer Reset()

	globalDir := filepath.Join(home, ".config", "cargo-uber")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config.toml"), []byte(`
[log]
level = "warn"

[output]
format = "json"
`), 0644))

	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, LocalConfigName), []byte(`
[output]
format = "yaml"
`), 0644))

	cfg, err := InitConfig("", ws, false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level, "global value survives")
	assert.Equal(t, "yaml", cfg.Output.Format, "local value wins")
}

func TestInitConfig_EnvironmentOverride(t *testing.T) {
	t.Setenv("GO_TEST", "true")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UBER_LOG_LEVEL", "debug")
	viper.Reset()
	defer viper.Reset()
	defer Reset()

	cfg, err := InitConfig("", t.TempDir(), false)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitConfig_ExplicitFileMissing(t *testing.T) {
	t.Setenv("GO_TEST", "true")
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	defer viper.Reset()
	defer Reset()

	_, err := InitConfig(filepath.Join(t.TempDir(), "missing.toml"), "", false)
	require.Error(t, err)
	assert.True(t, uberrors.IsConfigError(err))
}

func TestInitConfig_NoConfigFiles(t *testing.T) {
	t.Setenv("GO_TEST", "true")
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	defer viper.Reset()
	defer Reset()

	cfg, err := InitConfig("", t.TempDir(), false)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestInitConfig_CachesOutsideTests(t *testing.T) {
	t.Setenv("GO_TEST", "")
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	defer viper.Reset()
	Reset()
	defer Reset()

	dir := t.TempDir()
	first, err := InitConfig("", dir, false)
	require.NoError(t, err)
	second, err := InitConfig("", dir, false)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
