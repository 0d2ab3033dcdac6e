package manifest

import (
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
)

// Source is where a dependency is fetched from. It is a closed union:
// PathSource or GitSource.
type Source interface {
	isSource()
}

// PathSource is a dependency on a crate in a local directory.
type PathSource struct {
	Path string
}

// GitSource is a dependency on a crate in a git repository.
type GitSource struct {
	URL string
	Ref GitRef
}

func (PathSource) isSource() {}
func (GitSource) isSource()  {}

// RefKind selects which git coordinate a GitSource pins.
type RefKind int

const (
	// RefDefault follows the remote's default branch.
	RefDefault RefKind = iota
	RefBranch
	RefTag
	RefRev
)

// GitRef is the git coordinate of a GitSource.
type GitRef struct {
	Kind  RefKind
	Value string
}

// Branch returns a ref pinned to a branch.
func Branch(name string) GitRef { return GitRef{Kind: RefBranch, Value: name} }

// Rev returns a ref pinned to a commit.
func Rev(commit string) GitRef { return GitRef{Kind: RefRev, Value: commit} }

// key returns the manifest key carrying the ref, or "" for RefDefault.
func (r GitRef) key() string {
	switch r.Kind {
	case RefBranch:
		return "branch"
	case RefTag:
		return "tag"
	case RefRev:
		return "rev"
	default:
		return ""
	}
}

// ToGit converts a path source into a git source.
func (p PathSource) ToGit(url string, ref GitRef) GitSource {
	return GitSource{URL: url, Ref: ref}
}

// ToPath converts a git source into a path source.
func (g GitSource) ToPath(path string) PathSource {
	return PathSource{Path: path}
}

// sourceKeys are the keys owned by a Source; everything else is carried over
// untouched when the source changes.
var sourceKeys = []string{"path", "git", "branch", "tag", "rev"}

// leadingKeys are rendered right after the source keys, in this order.
var leadingKeys = []string{"version", "package"}

// Dependency is one entry of a dependency table.
type Dependency struct {
	Table  []string // e.g. [dependencies] or [target, cfg(unix), dev-dependencies]
	Name   string   // Entry key
	Source Source   // nil for registry, workspace-inherited or mixed entries
	Extra  map[string]any
}

// Path returns the full key path of the entry.
func (dep *Dependency) Path() []string {
	return append(slices.Clone(dep.Table), dep.Name)
}

// CrateName is the name of the depended-on package, honouring renames.
func (dep *Dependency) CrateName() string {
	if pkg, ok := dep.Extra["package"].(string); ok && pkg != "" {
		return pkg
	}
	return dep.Name
}

// WithSource returns a copy of dep using src; all other keys are kept.
func (dep *Dependency) WithSource(src Source) *Dependency {
	next := *dep
	next.Source = src
	next.Table = slices.Clone(dep.Table)
	return &next
}

// parseDependency builds a Dependency from a decoded entry. Plain version
// strings and tables without exactly one of path/git have a nil Source.
func parseDependency(table []string, name string, v any) *Dependency {
	dep := &Dependency{Table: slices.Clone(table), Name: name, Extra: map[string]any{}}

	entry, ok := v.(map[string]any)
	if !ok {
		dep.Extra["version"] = v
		return dep
	}

	for k, val := range entry {
		if !slices.Contains(sourceKeys, k) {
			dep.Extra[k] = val
		}
	}

	path, hasPath := entry["path"].(string)
	url, hasGit := entry["git"].(string)

	switch {
	case hasPath && !hasGit:
		dep.Source = PathSource{Path: path}
	case hasGit && !hasPath:
		src := GitSource{URL: url}
		for _, kind := range []RefKind{RefBranch, RefTag, RefRev} {
			ref := GitRef{Kind: kind}
			if s, ok := entry[ref.key()].(string); ok {
				ref.Value = s
				src.Ref = ref
				break
			}
		}
		dep.Source = src
	default:
		// Keep everything so an untouched entry renders identically.
		for _, k := range sourceKeys {
			if val, ok := entry[k]; ok {
				dep.Extra[k] = val
			}
		}
	}

	return dep
}

// fields renders the entry in a stable order: source keys, then version and
// package, then every other key sorted by name.
func (dep *Dependency) fields() ([]field, error) {
	var out []field

	switch src := dep.Source.(type) {
	case PathSource:
		out = append(out, field{Key: "path", Value: src.Path})
	case GitSource:
		out = append(out, field{Key: "git", Value: src.URL})
		if k := src.Ref.key(); k != "" {
			out = append(out, field{Key: k, Value: src.Ref.Value})
		}
	case nil:
	default:
		return nil, errors.Newf("unknown dependency source %T", src)
	}

	for _, k := range leadingKeys {
		if v, ok := dep.Extra[k]; ok {
			out = append(out, field{Key: k, Value: v})
		}
	}

	rest := make([]string, 0, len(dep.Extra))
	for k := range dep.Extra {
		if !slices.Contains(leadingKeys, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, field{Key: k, Value: dep.Extra[k]})
	}

	return out, nil
}

// dependencyKinds are the table names holding dependencies.
var dependencyKinds = []string{
	"dependencies",
	"dev-dependencies",
	"build-dependencies",
	"dev_dependencies",
	"build_dependencies",
}

// Dependencies lists every dependency entry in the manifest, including
// target-specific tables and [workspace.dependencies], in a stable order.
func (d *Document) Dependencies() []*Dependency {
	var deps []*Dependency

	collect := func(table []string) {
		v, ok := d.Lookup(table...)
		if !ok {
			return
		}
		entries, ok := v.(map[string]any)
		if !ok {
			return
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			deps = append(deps, parseDependency(table, name, entries[name]))
		}
	}

	for _, kind := range dependencyKinds {
		collect([]string{kind})
	}

	if targets, ok := d.Lookup("target"); ok {
		if tm, ok := targets.(map[string]any); ok {
			cfgs := make([]string, 0, len(tm))
			for cfg := range tm {
				cfgs = append(cfgs, cfg)
			}
			sort.Strings(cfgs)
			for _, cfg := range cfgs {
				for _, kind := range dependencyKinds {
					collect([]string{"target", cfg, kind})
				}
			}
		}
	}

	collect([]string{"workspace", "dependencies"})

	return deps
}

// SetDependency replaces the entry for dep in the manifest text.
func (d *Document) SetDependency(dep *Dependency) error {
	fields, err := dep.fields()
	if err != nil {
		return err
	}
	return d.apply(func(e *editor) error {
		return e.replaceEntry(dep.Path(), fields)
	})
}

// String describes the source for reports.
func (p PathSource) String() string {
	return "path " + p.Path
}

// String describes the source for reports.
func (g GitSource) String() string {
	if k := g.Ref.key(); k != "" {
		return "git " + g.URL + " " + k + " " + g.Ref.Value
	}
	return "git " + g.URL
}
