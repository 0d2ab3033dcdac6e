// Package manifest reads and edits Cargo manifests.
//
// Documents are validated and inspected through go-toml; edits are applied to
// the original text so comments, key order and formatting of everything that
// is not being rewritten survive byte for byte.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

// FileName is the manifest file name looked for in every directory.
const FileName = "Cargo.toml"

// Document is a parsed manifest together with its source text.
type Document struct {
	Path string
	raw  []byte
	data map[string]any
}

// Parse validates b as TOML and returns the document.
func Parse(path string, b []byte) (*Document, error) {
	data := make(map[string]any)
	if err := toml.Unmarshal(b, &data); err != nil {
		return nil, uberrors.NewManifestParseError(path, err)
	}
	return &Document{Path: path, raw: b, data: data}, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, uberrors.NewFilesystemError("read", path, err)
	}
	return Parse(path, b)
}

// Dir returns the directory containing the manifest.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Bytes returns the current manifest text.
func (d *Document) Bytes() []byte {
	return d.raw
}

// Lookup returns the value at a dotted key path.
func (d *Document) Lookup(path ...string) (any, bool) {
	var cur any = d.data
	for _, p := range path {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = table[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// HasPackage reports whether the manifest declares a [package].
func (d *Document) HasPackage() bool {
	v, ok := d.Lookup("package")
	if !ok {
		return false
	}
	_, isTable := v.(map[string]any)
	return isTable
}

// PackageName returns package.name, or "" for virtual manifests.
func (d *Document) PackageName() string {
	v, _ := d.Lookup("package", "name")
	name, _ := v.(string)
	return name
}

// apply runs an edit against the document text and re-validates the result.
// The document is left unchanged when the edit produces invalid TOML.
func (d *Document) apply(edit func(e *editor) error) error {
	e := newEditor(d.raw)
	if err := edit(e); err != nil {
		return err
	}

	next, err := Parse(d.Path, e.bytes())
	if err != nil {
		return errors.Wrap(err, "edit produced an invalid manifest")
	}
	d.raw = next.raw
	d.data = next.data
	return nil
}
