package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"thoreinstein.com/uber/pkg/errors"
	"thoreinstein.com/uber/pkg/git"
	"thoreinstein.com/uber/pkg/manifest"
)

// DefaultExclusions are directory names never descended into.
var DefaultExclusions = []string{
	".git",
	"target",
	"node_modules",
	"vendor",
	".idea",
	".vscode",
}

// Scanner scans a workspace directory for cloned repositories and the
// packages inside them
type Scanner struct {
	MaxDepth   int // Maximum depth below a project root; 0 means unlimited
	Exclusions map[string]bool
	Logger     *slog.Logger
}

// NewScanner creates a new scanner with the given exclusions, or the
// defaults when none are given
func NewScanner(exclusions []string, depth int) *Scanner {
	if len(exclusions) == 0 {
		exclusions = DefaultExclusions
	}
	excl := make(map[string]bool, len(exclusions))
	for _, name := range exclusions {
		excl[name] = true
	}
	return &Scanner{
		MaxDepth:   depth,
		Exclusions: excl,
		Logger:     slog.Default(),
	}
}

// Scan walks root and classifies every directory below it. Only an
// unreadable root is an error; problems further down are recorded as
// warnings and the affected directory is skipped.
func (s *Scanner) Scan(root string) (*Result, error) {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewFilesystemError("read", root, err)
	}
	// Resolve symlinks for root
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, errors.NewFilesystemError("read", abs, err)
	}

	res := &Result{Root: abs}

	for _, entry := range entries {
		if !s.descendable(entry) {
			continue
		}
		dir := filepath.Join(abs, entry.Name())
		res.Scanned++

		node := s.classifyTop(res, dir)
		if node.Kind != KindProjectRoot {
			continue // Not a cloned repository
		}

		pr := &ProjectRoot{Name: entry.Name(), Path: dir, Rel: entry.Name()}
		res.Roots = append(res.Roots, pr)
		s.scanRoot(res, pr, node)
	}

	sort.Slice(res.Roots, func(i, j int) bool { return res.Roots[i].Rel < res.Roots[j].Rel })
	sort.Slice(res.Excluded, func(i, j int) bool { return res.Excluded[i].Rel < res.Excluded[j].Rel })
	sort.Slice(res.Members, func(i, j int) bool { return res.Members[i].Rel < res.Members[j].Rel })

	res.Duration = time.Since(start)
	return res, nil
}

// scanRoot collects the members of a project root. The root's own manifest,
// if it declares a [package], is a member only when nothing is nested below.
func (s *Scanner) scanRoot(res *Result, pr *ProjectRoot, self Node) {
	isPackage := self.Manifest != nil && self.Manifest.HasPackage()

	var nested []*MemberPackage
	s.walk(res, pr, pr.Path, 1, &nested)

	switch {
	case len(nested) > 0:
		// The root's own package, if any, would overlap its members.
		res.Excluded = append(res.Excluded, pr)
		res.Members = append(res.Members, nested...)
		if isPackage {
			s.warn(res, "excluding package at project root %s: it contains nested packages", pr.Rel)
		}
	case isPackage:
		res.Members = append(res.Members, s.member(res, pr, self))
	}
}

// walk descends dir, stopping each branch at the first package manifest.
func (s *Scanner) walk(res *Result, pr *ProjectRoot, dir string, depth int, out *[]*MemberPackage) {
	if s.MaxDepth > 0 && depth > s.MaxDepth {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn(res, "skipping unreadable directory %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		if !s.descendable(entry) {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		res.Scanned++

		node := s.classify(res, child)
		switch node.Kind {
		case KindMember:
			*out = append(*out, s.member(res, pr, node))
		case KindNeither, KindContainer:
			s.walk(res, pr, child, depth+1, out)
		}
	}
}

// classifyTop tags an immediate child of the workspace root. Only a cloned
// repository is a project root; anything else is ignored entirely.
func (s *Scanner) classifyTop(res *Result, dir string) Node {
	if !git.IsGitRepo(dir) {
		return Node{Kind: KindNeither, Path: dir}
	}
	node := s.classify(res, dir)
	node.Kind = KindProjectRoot
	return node
}

// classify inspects the manifest in dir, if any. A manifest that cannot be
// parsed is reported and treated as a package boundary that is not listed.
func (s *Scanner) classify(res *Result, dir string) Node {
	path := filepath.Join(dir, manifest.FileName)
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Node{Kind: KindNeither, Path: dir}
	}

	doc, err := manifest.Load(path)
	if err != nil {
		s.warn(res, "skipping %s: %v", path, err)
		return Node{Kind: KindUnreadable, Path: dir}
	}

	if doc.HasPackage() {
		return Node{Kind: KindMember, Path: dir, Manifest: doc}
	}
	return Node{Kind: KindContainer, Path: dir, Manifest: doc}
}

func (s *Scanner) member(res *Result, pr *ProjectRoot, node Node) *MemberPackage {
	rel, err := filepath.Rel(res.Root, node.Path)
	if err != nil {
		rel = node.Path
	}
	name := node.Manifest.PackageName()
	if name == "" {
		name = filepath.Base(node.Path)
	}
	return &MemberPackage{
		Name:     name,
		Path:     node.Path,
		Rel:      filepath.ToSlash(rel),
		Root:     pr,
		Manifest: node.Manifest,
	}
}

// descendable reports whether entry is a real directory worth visiting.
// Symlinks are never followed.
func (s *Scanner) descendable(entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink != 0 || !entry.IsDir() {
		return false
	}
	return !s.Exclusions[entry.Name()]
}

func (s *Scanner) warn(res *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)
	s.logger().Warn(msg)
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
