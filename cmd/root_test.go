package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoreinstein.com/uber/pkg/manifest"
	"thoreinstein.com/uber/pkg/ui"
)

// executeCommand runs rootCmd with args and returns stdout and stderr.
// Not parallel safe: commands share package level flag variables.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetConfig()
	resetFlags := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	resetFlags(rootCmd.PersistentFlags())
	resetFlags(rootCmd.Flags())
	outputFormat = ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	mkdirAll(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

// setupWorkspace creates alpha (virtual manifest, core + tools/cli) and
// beta (single package) as cloned repositories under a fresh directory.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()

	mkdirAll(t, filepath.Join(ws, "alpha", ".git"))
	writeManifest(t, filepath.Join(ws, "alpha"), "[workspace]\nmembers = [\"core\", \"tools/cli\"]\n")
	writeManifest(t, filepath.Join(ws, "alpha", "core"), "[package]\nname = \"core\"\nversion = \"0.1.0\"\n")
	writeManifest(t, filepath.Join(ws, "alpha", "tools", "cli"), `[package]
name = "cli"
version = "0.1.0"

[dependencies]
core = { path = "../../core" }
beta = { path = "../../../beta" }
`)

	mkdirAll(t, filepath.Join(ws, "beta", ".git"))
	writeManifest(t, filepath.Join(ws, "beta"), "[package]\nname = \"beta\"\nversion = \"0.1.0\"\n")

	return ws
}

func TestRootCommandStructure(t *testing.T) {
	cmd := rootCmd

	if cmd.Use != "cargo-uber" {
		t.Errorf("root command Use = %q, want %q", cmd.Use, "cargo-uber")
	}
	if cmd.Short == "" {
		t.Error("root command should have Short description")
	}

	for _, keyword := range []string{"workspace", "local-path", "git-ref", "upstream"} {
		if !strings.Contains(cmd.Long, keyword) {
			t.Errorf("root command Long description should mention %q", keyword)
		}
	}

	want := map[string]bool{"local-path": false, "git-ref": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("root command should have %q subcommand", name)
		}
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "config", shorthand: "C", defValue: ""},
		{name: "verbose", shorthand: "v", defValue: "false"},
		{name: "dry-run", defValue: "false"},
		{name: "dir", shorthand: "d", defValue: ""},
		{name: "output", shorthand: "o", defValue: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rootCmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, f, "missing --%s", tt.name)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.defValue, f.DefValue)
			assert.NotEmpty(t, f.Usage)
		})
	}

	configFlag := rootCmd.PersistentFlags().Lookup("config")
	assert.Contains(t, configFlag.Usage, "$HOME/.config/cargo-uber")

	versionFlag := rootCmd.Flags().Lookup("version")
	require.NotNil(t, versionFlag)
	assert.Equal(t, "V", versionFlag.Shorthand)
}

func TestCargoArgs(t *testing.T) {
	assert.Equal(t, []string{"git-ref"}, cargoArgs([]string{"uber", "git-ref"}))
	assert.Equal(t, []string{}, cargoArgs([]string{"uber"}))
	assert.Equal(t, []string{"local-path"}, cargoArgs([]string{"local-path"}))
	assert.Empty(t, cargoArgs(nil))
}

func TestUnknownArgumentIsRejected(t *testing.T) {
	_, _, err := executeCommand(t, "-d", t.TempDir(), "svn-ref")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cargo-uber "+GetVersion()+"\n", stdout)

	stdout, _, err = executeCommand(t, "-V")
	require.NoError(t, err)
	assert.Equal(t, "cargo-uber "+GetVersion()+"\n", stdout)
}

func TestInfoOnly(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{args: []string{"--help"}, want: true},
		{args: []string{"-d", "/ws", "-h"}, want: true},
		{args: []string{"-V"}, want: true},
		{args: []string{"--version"}, want: true},
		{args: []string{"version"}, want: true},
		{args: []string{"help", "git-ref"}, want: true},
		{args: []string{"git-ref"}, want: false},
		{args: []string{"-d", "/ws", "--dry-run"}, want: false},
		{args: []string{"--", "-V"}, want: false},
		{args: nil, want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, infoOnly(tt.args), "args=%v", tt.args)
	}
}

func TestHelpAndVersion_WithInvalidConfig(t *testing.T) {
	ws := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".uber.toml"), []byte("[output]\nformat = \"xml\"\n"), 0644))

	_, _, err := executeCommand(t, "-d", ws)
	require.Error(t, err, "generate needs a valid configuration")

	stdout, _, err := executeCommand(t, "-d", ws, "-V")
	require.NoError(t, err)
	assert.Equal(t, "cargo-uber "+GetVersion()+"\n", stdout)

	stdout, _, err = executeCommand(t, "-d", ws, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cargo-uber ")

	stdout, _, err = executeCommand(t, "-d", ws, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage:")
}

func TestGetVersion(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	tests := []struct {
		version string
		want    string
	}{
		{version: "dev", want: "dev"},
		{version: "", want: "dev"},
		{version: "v1.2.3", want: "1.2.3"},
		{version: "1.0.0-alpha", want: "1.0.0-alpha"},
		{version: "nightly", want: "nightly"},
	}

	for _, tt := range tests {
		Version = tt.version
		assert.Equal(t, tt.want, GetVersion(), "Version=%q", tt.version)
	}
}

func TestGenerate(t *testing.T) {
	ws := setupWorkspace(t)

	stdout, _, err := executeCommand(t, "-d", ws)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created")

	doc, err := manifest.Load(filepath.Join(ws, "Cargo.toml"))
	require.NoError(t, err)
	members, _ := doc.Lookup("workspace", "members")
	exclude, _ := doc.Lookup("workspace", "exclude")
	assert.Equal(t, []any{"alpha/core", "alpha/tools/cli", "beta"}, members)
	assert.Equal(t, []any{"alpha"}, exclude)

	first := string(doc.Bytes())

	stdout, _, err = executeCommand(t, "-d", ws)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Up to date")

	second, err := os.ReadFile(filepath.Join(ws, "Cargo.toml"))
	require.NoError(t, err)
	assert.Equal(t, first, string(second), "generation is idempotent")
}

func TestGenerate_DryRun(t *testing.T) {
	ws := setupWorkspace(t)

	stdout, _, err := executeCommand(t, "-d", ws, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Would write")
	assert.Contains(t, stdout, "[workspace]")
	assert.NoFileExists(t, filepath.Join(ws, "Cargo.toml"))
}

func TestGenerate_JSONOutput(t *testing.T) {
	ws := setupWorkspace(t)

	stdout, _, err := executeCommand(t, "-d", ws, "-o", "json")
	require.NoError(t, err)

	var summary ui.WorkspaceSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, []string{"alpha/core", "alpha/tools/cli", "beta"}, summary.Members)
	assert.Equal(t, []string{"alpha"}, summary.Exclude)
	assert.Equal(t, []string{"alpha", "beta"}, summary.Roots)
}

func TestGenerate_OutputFormatFromLocalConfig(t *testing.T) {
	ws := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".uber.toml"), []byte("[output]\nformat = \"yaml\"\n"), 0644))

	stdout, _, err := executeCommand(t, "-d", ws)
	require.NoError(t, err)
	assert.Contains(t, stdout, "members:\n")
}

func TestGenerate_InvalidExistingManifest(t *testing.T) {
	ws := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "Cargo.toml"), []byte("[workspace\n"), 0644))

	_, _, err := executeCommand(t, "-d", ws)
	require.Error(t, err)

	got, readErr := os.ReadFile(filepath.Join(ws, "Cargo.toml"))
	require.NoError(t, readErr)
	assert.Equal(t, "[workspace\n", string(got), "an unparsable manifest is never overwritten")
}

func TestSwitchModes_WithGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ws := setupWorkspace(t)
	beta := filepath.Join(ws, "beta")
	require.NoError(t, os.RemoveAll(filepath.Join(beta, ".git")))
	for _, args := range [][]string{
		{"init", "--quiet"},
		{"symbolic-ref", "HEAD", "refs/heads/main"},
		{"remote", "add", "upstream", "https://example.com/beta.git"},
	} {
		c := exec.Command("git", args...)
		c.Dir = beta
		out, err := c.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	cliManifest := filepath.Join(ws, "alpha", "tools", "cli", "Cargo.toml")
	original, err := os.ReadFile(cliManifest)
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "-d", ws, "git-ref")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rewrote 1 dependencies in 1 packages (git-ref)")

	doc, err := manifest.Load(cliManifest)
	require.NoError(t, err)
	betaDep, _ := doc.Lookup("dependencies", "beta")
	assert.Equal(t, map[string]any{"git": "https://example.com/beta.git", "branch": "main"}, betaDep)
	coreDep, _ := doc.Lookup("dependencies", "core")
	assert.Equal(t, map[string]any{"path": "../../core"}, coreDep)

	stdout, _, err = executeCommand(t, "-d", ws, "local-path")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(local-path)")

	restored, err := manifest.Load(cliManifest)
	require.NoError(t, err)
	originalDoc, err := manifest.Parse(cliManifest, original)
	require.NoError(t, err)
	betaBefore, _ := originalDoc.Lookup("dependencies", "beta")
	betaAfter, _ := restored.Lookup("dependencies", "beta")
	assert.Equal(t, betaBefore, betaAfter)
}

func TestSwitchGitRef_MissingRemoteIsReported(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ws := setupWorkspace(t)
	beta := filepath.Join(ws, "beta")
	require.NoError(t, os.RemoveAll(filepath.Join(beta, ".git")))
	c := exec.Command("git", "init", "--quiet")
	c.Dir = beta
	out, err := c.CombinedOutput()
	require.NoError(t, err, "git init: %s", out)

	stdout, _, err := executeCommand(t, "-d", ws, "git-ref", "-o", "json")
	require.NoError(t, err, "skipped entries do not fail the run")

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Len(t, report["skipped"], 1)
	assert.Len(t, report["rewritten"], 0)
}

func TestSwitchGitRef_OnlyUpstreamIsConsulted(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ws := setupWorkspace(t)
	beta := filepath.Join(ws, "beta")
	require.NoError(t, os.RemoveAll(filepath.Join(beta, ".git")))
	for _, args := range [][]string{
		{"init", "--quiet"},
		{"remote", "add", "origin", "https://example.com/fork/beta.git"},
	} {
		c := exec.Command("git", args...)
		c.Dir = beta
		out, err := c.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	// A remote name from the environment or a config file is ignored.
	t.Setenv("UBER_GIT_REMOTE", "origin")
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".uber.toml"), []byte("[git]\nremote = \"origin\"\n"), 0644))

	stdout, _, err := executeCommand(t, "-d", ws, "git-ref", "-o", "json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Len(t, report["rewritten"], 0)
	require.Len(t, report["skipped"], 1)
	skipped := report["skipped"].([]any)[0].(map[string]any)
	assert.Contains(t, skipped["reason"], "upstream")

	cli, err := os.ReadFile(filepath.Join(ws, "alpha", "tools", "cli", "Cargo.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(cli), "fork")
}
