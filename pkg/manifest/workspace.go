package manifest

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

var workspaceTable = []string{"workspace"}

// RenderWorkspace merges members and exclude into the manifest text existing
// (which may be empty) and returns the new text. Only workspace.members and
// workspace.exclude are replaced; everything else is kept as written.
func RenderWorkspace(path string, existing []byte, members, exclude []string) ([]byte, error) {
	doc, err := Parse(path, existing)
	if err != nil {
		return nil, err
	}

	members = normalizeList(members)
	exclude = normalizeList(exclude)

	// workspace = { ... } cannot be extended line by line, rewrite it whole.
	if v, ok := doc.Lookup("workspace"); ok && inlineWorkspace(doc) {
		ws, _ := v.(map[string]any)
		dep := &Dependency{Name: "workspace", Extra: make(map[string]any, len(ws)+2)}
		for k, val := range ws {
			dep.Extra[k] = val
		}
		dep.Extra["members"] = members
		dep.Extra["exclude"] = exclude
		fields, err := dep.fields()
		if err != nil {
			return nil, err
		}
		if err := doc.apply(func(e *editor) error {
			return e.replaceEntry(workspaceTable, fields)
		}); err != nil {
			return nil, err
		}
		return doc.Bytes(), nil
	}

	for _, kv := range []struct {
		key  string
		list []string
	}{
		{key: "members", list: members},
		{key: "exclude", list: exclude},
	} {
		value, err := renderValue(kv.list, true)
		if err != nil {
			return nil, err
		}
		if err := doc.apply(func(e *editor) error {
			return e.setKey(workspaceTable, kv.key, value)
		}); err != nil {
			return nil, errors.Wrapf(err, "failed to set workspace.%s", kv.key)
		}
	}

	return doc.Bytes(), nil
}

// inlineWorkspace reports whether the workspace table is written as an
// inline table assignment at the top level.
func inlineWorkspace(doc *Document) bool {
	e := newEditor(doc.Bytes())
	_, ok := findKeyValue(e.spans(), workspaceTable)
	return ok
}

// normalizeList sorts and de-duplicates list, never returning nil.
func normalizeList(list []string) []string {
	out := slices.Clone(list)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// WorkspaceResult describes a workspace manifest update.
type WorkspaceResult struct {
	Path    string
	Data    []byte
	Changed bool
	Created bool
}

// UpdateWorkspace computes the workspace manifest for root. Nothing is
// written; pass the result to WriteFile.
func UpdateWorkspace(root string, members, exclude []string) (*WorkspaceResult, error) {
	path := filepath.Join(root, FileName)

	existing, err := os.ReadFile(path)
	created := false
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, uberrors.NewFilesystemError("read", path, err)
		}
		existing = nil
		created = true
	}

	data, err := RenderWorkspace(path, existing, members, exclude)
	if err != nil {
		return nil, err
	}

	return &WorkspaceResult{
		Path:    path,
		Data:    data,
		Changed: created || string(existing) != string(data),
		Created: created,
	}, nil
}

// WriteWorkspace updates the workspace manifest for root and writes it when
// its content changed.
func WriteWorkspace(root string, members, exclude []string, opts WriteOptions) (*WorkspaceResult, error) {
	res, err := UpdateWorkspace(root, members, exclude)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return res, nil
	}
	if err := WriteFile(res.Path, res.Data, opts); err != nil {
		return nil, err
	}
	return res, nil
}
