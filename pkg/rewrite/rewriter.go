// Package rewrite switches inter-package dependencies between local path
// references and git references.
package rewrite

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"thoreinstein.com/uber/pkg/discovery"
	uberrors "thoreinstein.com/uber/pkg/errors"
	"thoreinstein.com/uber/pkg/git"
	"thoreinstein.com/uber/pkg/manifest"
)

// Mode selects the direction of a rewrite.
type Mode string

const (
	// ModeLocalPath turns git references into path references.
	ModeLocalPath Mode = "local-path"
	// ModeGitRef turns cross-project path references into git references.
	ModeGitRef Mode = "git-ref"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocalPath, ModeGitRef:
		return Mode(s), nil
	}
	return "", errors.Newf("unknown mode %q: must be one of: %s, %s", s, ModeLocalPath, ModeGitRef)
}

// Resolver produces the remote identity of a project root.
type Resolver interface {
	Resolve(root string) (*git.RemoteDescriptor, error)
}

// Options configures a Rewriter.
type Options struct {
	DryRun bool
	Write  manifest.WriteOptions
}

// Rewriter rewrites the manifests of every member of a scan.
type Rewriter struct {
	Mode     Mode
	opts     Options
	resolver Resolver
	logger   *slog.Logger
	remotes  map[string]resolution
}

type resolution struct {
	desc *git.RemoteDescriptor
	err  error
}

// New creates a Rewriter. The resolver is only consulted in git-ref mode.
func New(mode Mode, resolver Resolver, logger *slog.Logger, opts Options) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		Mode:     mode,
		opts:     opts,
		resolver: resolver,
		logger:   logger,
		remotes:  make(map[string]resolution),
	}
}

// Run rewrites every member of res. A package that fails does not stop the
// others; check Report.Err for the overall outcome.
func (r *Rewriter) Run(res *discovery.Result) *Report {
	report := &Report{Mode: r.Mode, DryRun: r.opts.DryRun}

	for _, m := range res.Members {
		if err := r.rewritePackage(res, m, report); err != nil {
			r.logger.Error("failed to rewrite package", "package", m.Rel, "error", err)
			report.Failed = append(report.Failed, Failure{Package: m.Rel, Error: err.Error(), err: err})
		}
	}

	return report
}

func (r *Rewriter) rewritePackage(res *discovery.Result, m *discovery.MemberPackage, report *Report) error {
	doc := m.Manifest
	var changes []Change

	for _, dep := range doc.Dependencies() {
		next, err := r.rewriteDependency(res, m, dep)
		if err != nil {
			if uberrors.IsFatal(err) {
				return err
			}
			r.logger.Warn("skipping dependency", "package", m.Rel, "dependency", dep.Name, "reason", err)
			report.Skipped = append(report.Skipped, Skip{
				Package:    m.Rel,
				Dependency: dep.Name,
				Table:      strings.Join(dep.Table, "."),
				Reason:     err.Error(),
			})
			continue
		}
		if next == nil {
			continue
		}

		if err := doc.SetDependency(next); err != nil {
			return errors.Wrapf(err, "failed to rewrite %s", dep.Name)
		}
		changes = append(changes, Change{
			Package:    m.Rel,
			Dependency: dep.Name,
			Table:      strings.Join(dep.Table, "."),
			From:       fmt.Sprint(dep.Source),
			To:         fmt.Sprint(next.Source),
		})
		r.logger.Debug("rewrote dependency", "package", m.Rel, "dependency", dep.Name, "to", next.Source)
	}

	if len(changes) == 0 {
		return nil
	}

	if !r.opts.DryRun {
		if err := doc.Save(r.opts.Write); err != nil {
			return err
		}
	}
	report.Rewritten = append(report.Rewritten, changes...)
	return nil
}

// rewriteDependency returns the replacement for dep, or nil when dep stays
// as it is. Non-fatal errors mean the entry is skipped.
func (r *Rewriter) rewriteDependency(res *discovery.Result, m *discovery.MemberPackage, dep *manifest.Dependency) (*manifest.Dependency, error) {
	switch src := dep.Source.(type) {
	case manifest.PathSource:
		if r.Mode != ModeGitRef {
			return nil, nil
		}
		return r.toGit(res, m, dep, src)
	case manifest.GitSource:
		if r.Mode != ModeLocalPath {
			return nil, nil
		}
		return r.toPath(res, m, dep, src)
	default:
		return nil, nil
	}
}

func (r *Rewriter) toGit(res *discovery.Result, m *discovery.MemberPackage, dep *manifest.Dependency, src manifest.PathSource) (*manifest.Dependency, error) {
	dir := filepath.Clean(filepath.Join(m.Path, filepath.FromSlash(src.Path)))
	target := res.MemberAt(dir)
	if target == nil {
		return nil, nil // Not part of the workspace
	}
	if target.Root == m.Root {
		return nil, nil // Same project, the path stays valid everywhere
	}

	desc, err := r.resolve(target.Root)
	if err != nil {
		return nil, err
	}

	ref := manifest.Branch(desc.Branch)
	if desc.Detached() {
		ref = manifest.Rev(desc.Commit)
	}
	return dep.WithSource(src.ToGit(desc.URL, ref)), nil
}

func (r *Rewriter) toPath(res *discovery.Result, m *discovery.MemberPackage, dep *manifest.Dependency, src manifest.GitSource) (*manifest.Dependency, error) {
	candidates := res.MembersNamed(dep.CrateName())
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
	default:
		rels := make([]string, len(candidates))
		for i, c := range candidates {
			rels[i] = c.Rel
		}
		return nil, uberrors.NewAmbiguousDependencyError(dep.CrateName(), rels)
	}

	target := candidates[0]
	if target == m {
		return nil, nil
	}

	rel, err := filepath.Rel(m.Path, target.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compute path from %s to %s", m.Rel, target.Rel)
	}
	return dep.WithSource(src.ToPath(filepath.ToSlash(rel))), nil
}

// resolve memoises remote resolution per project root.
func (r *Rewriter) resolve(root *discovery.ProjectRoot) (*git.RemoteDescriptor, error) {
	if cached, ok := r.remotes[root.Path]; ok {
		return cached.desc, cached.err
	}
	if r.resolver == nil {
		return nil, errors.New("no remote resolver configured")
	}

	desc, err := r.resolver.Resolve(root.Path)
	switch {
	case err != nil:
		r.logger.Debug("remote resolution failed", "root", root.Rel, "error", err)
	case desc.Detached():
		r.logger.Warn("project root is on a detached HEAD, pinning commit", "root", root.Rel, "commit", desc.Ref())
	default:
		r.logger.Debug("resolved upstream", "root", root.Rel, "url", desc.URL, "branch", desc.Ref())
	}
	r.remotes[root.Path] = resolution{desc: desc, err: err}
	return desc, err
}
