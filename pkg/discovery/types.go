package discovery

import (
	"time"

	"thoreinstein.com/uber/pkg/manifest"
)

// Kind classifies a visited directory.
type Kind int

const (
	// KindNeither is a directory without a manifest; the walk descends into it.
	KindNeither Kind = iota
	// KindProjectRoot is a top-level directory holding git metadata.
	KindProjectRoot
	// KindMember is a directory whose manifest declares a [package].
	KindMember
	// KindContainer holds a manifest without [package] (a virtual
	// workspace); the walk descends into it.
	KindContainer
	// KindUnreadable holds a manifest that could not be parsed; the walk
	// stops there without listing it.
	KindUnreadable
)

func (k Kind) String() string {
	switch k {
	case KindProjectRoot:
		return "project-root"
	case KindMember:
		return "member"
	case KindContainer:
		return "container"
	case KindUnreadable:
		return "unreadable"
	default:
		return "neither"
	}
}

// Node is the classification of one visited directory.
type Node struct {
	Kind     Kind
	Path     string             // Absolute path
	Manifest *manifest.Document // Nil when there is no readable manifest
}

// ProjectRoot is a cloned repository directly below the workspace root.
type ProjectRoot struct {
	Name string // Basename of the directory
	Path string // Absolute path
	Rel  string // Slash separated path relative to the workspace root
}

// MemberPackage is a package found at or below a ProjectRoot.
type MemberPackage struct {
	Name     string // package.name
	Path     string // Absolute path of the package directory
	Rel      string // Slash separated path relative to the workspace root
	Root     *ProjectRoot
	Manifest *manifest.Document
}

// Result represents the result of a workspace scan
type Result struct {
	Root     string // Absolute workspace root
	Roots    []*ProjectRoot
	Members  []*MemberPackage
	Excluded []*ProjectRoot // Roots with at least one member strictly below them
	Warnings []string
	Scanned  int           // Number of directories scanned
	Duration time.Duration // Time taken to scan
}

// MemberPaths returns the sorted relative paths of all members.
func (r *Result) MemberPaths() []string {
	out := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.Rel)
	}
	return out
}

// ExcludePaths returns the sorted relative paths of excluded roots.
func (r *Result) ExcludePaths() []string {
	out := make([]string, 0, len(r.Excluded))
	for _, root := range r.Excluded {
		out = append(out, root.Rel)
	}
	return out
}

// MemberAt returns the member whose directory is the absolute path dir.
func (r *Result) MemberAt(dir string) *MemberPackage {
	for _, m := range r.Members {
		if m.Path == dir {
			return m
		}
	}
	return nil
}

// MembersNamed returns every member whose package name is name.
func (r *Result) MembersNamed(name string) []*MemberPackage {
	var out []*MemberPackage
	for _, m := range r.Members {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
