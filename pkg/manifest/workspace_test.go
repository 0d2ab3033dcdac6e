package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

func lookupStrings(t *testing.T, doc *Document, path ...string) []string {
	t.Helper()
	v, ok := doc.Lookup(path...)
	require.True(t, ok, "missing %v", path)
	list, ok := v.([]any)
	require.True(t, ok, "%v is %T, not an array", path, v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		require.True(t, ok)
		out = append(out, s)
	}
	return out
}

func TestRenderWorkspace_NewManifest(t *testing.T) {
	out, err := RenderWorkspace("Cargo.toml", nil, []string{"beta", "alpha/core"}, []string{"alpha"})
	require.NoError(t, err)

	doc, err := Parse("Cargo.toml", out)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha/core", "beta"}, lookupStrings(t, doc, "workspace", "members"))
	assert.Equal(t, []string{"alpha"}, lookupStrings(t, doc, "workspace", "exclude"))
	assert.False(t, doc.HasPackage())
}

func TestRenderWorkspace_EmptyLists(t *testing.T) {
	out, err := RenderWorkspace("Cargo.toml", nil, nil, nil)
	require.NoError(t, err)

	doc, err := Parse("Cargo.toml", out)
	require.NoError(t, err)
	assert.Empty(t, lookupStrings(t, doc, "workspace", "members"))
	assert.Empty(t, lookupStrings(t, doc, "workspace", "exclude"))
}

func TestRenderWorkspace_PreservesUnrelatedContent(t *testing.T) {
	existing := `# Workspace for local development
[workspace]
resolver = "2" # keep the resolver
members = ["stale"]

[workspace.dependencies]
serde = "1"

[profile.release]
lto = true
`
	out, err := RenderWorkspace("Cargo.toml", []byte(existing), []string{"b", "a"}, nil)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# Workspace for local development\n[workspace]\nresolver = \"2\" # keep the resolver\n")
	assert.Contains(t, text, "[workspace.dependencies]\nserde = \"1\"\n")
	assert.Contains(t, text, "[profile.release]\nlto = true\n")
	assert.NotContains(t, text, "stale")

	doc, err := Parse("Cargo.toml", out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lookupStrings(t, doc, "workspace", "members"))
	assert.Empty(t, lookupStrings(t, doc, "workspace", "exclude"))
}

func TestRenderWorkspace_Idempotent(t *testing.T) {
	members := []string{"alpha/core", "alpha/tools/cli", "beta"}
	exclude := []string{"alpha"}

	first, err := RenderWorkspace("Cargo.toml", []byte("[workspace]\nresolver = \"2\"\n"), members, exclude)
	require.NoError(t, err)

	second, err := RenderWorkspace("Cargo.toml", first, members, exclude)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRenderWorkspace_InlineWorkspace(t *testing.T) {
	existing := "workspace = { members = [\"x\"], resolver = \"2\" }\n\n[patch.crates-io]\n"
	out, err := RenderWorkspace("Cargo.toml", []byte(existing), []string{"y"}, []string{"z"})
	require.NoError(t, err)

	doc, err := Parse("Cargo.toml", out)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, lookupStrings(t, doc, "workspace", "members"))
	assert.Equal(t, []string{"z"}, lookupStrings(t, doc, "workspace", "exclude"))
	resolver, _ := doc.Lookup("workspace", "resolver")
	assert.Equal(t, "2", resolver)
	assert.Contains(t, string(out), "[patch.crates-io]")
}

func TestRenderWorkspace_DottedWorkspaceKeys(t *testing.T) {
	existing := "workspace.members = [\"x\"]\n[package]\nname = \"p\"\n"
	out, err := RenderWorkspace("Cargo.toml", []byte(existing), []string{"y"}, []string{"z"})
	require.NoError(t, err)

	text := string(out)
	assert.NotContains(t, text, "[workspace]", "dotted form is kept, no header is added")
	assert.Contains(t, text, "workspace.exclude = ")
	assert.Contains(t, text, "[package]\nname = \"p\"\n")

	doc, err := Parse("Cargo.toml", out)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, lookupStrings(t, doc, "workspace", "members"))
	assert.Equal(t, []string{"z"}, lookupStrings(t, doc, "workspace", "exclude"))
	assert.Equal(t, "p", doc.PackageName())

	again, err := RenderWorkspace("Cargo.toml", out, []string{"y"}, []string{"z"})
	require.NoError(t, err)
	assert.Equal(t, text, string(again))
}

func TestRenderWorkspace_InvalidExisting(t *testing.T) {
	_, err := RenderWorkspace("Cargo.toml", []byte("[workspace\n"), nil, nil)
	require.Error(t, err)
	assert.True(t, uberrors.IsManifestParseError(err))
}

func TestUpdateWorkspace(t *testing.T) {
	root := t.TempDir()

	res, err := UpdateWorkspace(root, []string{"a"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Changed)
	assert.Equal(t, filepath.Join(root, FileName), res.Path)
	assert.NoFileExists(t, res.Path, "UpdateWorkspace must not write")

	require.NoError(t, WriteFile(res.Path, res.Data, WriteOptions{}))

	again, err := UpdateWorkspace(root, []string{"a"}, nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.Changed)

	onDisk, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(again.Data))
}

func TestWriteWorkspace(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	require.NoError(t, os.WriteFile(path, []byte("# parent\n[workspace]\nresolver = \"2\"\n"), 0644))

	res, err := WriteWorkspace(root, []string{"beta", "alpha/core"}, []string{"alpha"}, WriteOptions{Lock: true})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Created)

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha/core", "beta"}, lookupStrings(t, doc, "workspace", "members"))
	assert.Contains(t, string(doc.Bytes()), "# parent\n")

	info, err := os.Stat(path)
	require.NoError(t, err)
	modTime := info.ModTime()

	res, err = WriteWorkspace(root, []string{"alpha/core", "beta"}, []string{"alpha"}, WriteOptions{Lock: true})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, modTime, info.ModTime(), "an unchanged manifest is not rewritten")
}
