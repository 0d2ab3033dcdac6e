package git

import (
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

// UpstreamRemote is the only remote consulted when resolving git references.
// It is not configurable.
const UpstreamRemote = "upstream"

var (
	// ErrNoRemote is the cause of a RemoteResolutionError when the remote is absent.
	ErrNoRemote = errors.New("no remote configured")
	// ErrNoRef is the cause of a RemoteResolutionError when neither a branch
	// nor a commit could be read.
	ErrNoRef = errors.New("no branch or commit could be determined")
)

// RemoteDescriptor is the resolved remote identity of a project root.
type RemoteDescriptor struct {
	URL    string
	Branch string // Empty when HEAD is detached
	Commit string // Set only when HEAD is detached
}

// Detached reports whether the descriptor falls back to a commit hash.
func (d *RemoteDescriptor) Detached() bool {
	return d.Branch == ""
}

// Ref returns the branch name, or the commit hash when detached.
func (d *RemoteDescriptor) Ref() string {
	if d.Detached() {
		return d.Commit
	}
	return d.Branch
}

// RemoteResolver reads the upstream URL and current ref from a local
// repository. It never contacts the network and no other remote is read.
type RemoteResolver struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewRemoteResolver creates a resolver backed by the git binary.
func NewRemoteResolver(verbose bool, logger *slog.Logger) *RemoteResolver {
	return NewRemoteResolverWithRunner(&RealCommandRunner{Verbose: verbose}, logger)
}

// NewRemoteResolverWithRunner creates a resolver with a custom CommandRunner (for testing)
func NewRemoteResolverWithRunner(runner CommandRunner, logger *slog.Logger) *RemoteResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteResolver{
		runner: runner,
		logger: logger,
	}
}

// Resolve returns the remote descriptor of the repository at root.
// A missing remote or unreadable HEAD yields a *errors.RemoteResolutionError.
func (r *RemoteResolver) Resolve(root string) (*RemoteDescriptor, error) {
	url, err := r.remoteURL(root)
	if err != nil {
		return nil, uberrors.NewRemoteResolutionError(root, UpstreamRemote, ErrNoRemote.Error(), errors.WithSecondaryError(ErrNoRemote, err))
	}

	desc := &RemoteDescriptor{URL: url}

	branch, err := r.currentBranch(root)
	if err == nil && branch != "" {
		desc.Branch = branch
		return desc, nil
	}

	commit, err := r.headCommit(root)
	if err != nil {
		return nil, uberrors.NewRemoteResolutionError(root, UpstreamRemote, ErrNoRef.Error(), errors.WithSecondaryError(ErrNoRef, err))
	}

	r.logger.Warn("detached HEAD, falling back to commit", "root", root, "commit", commit)
	desc.Commit = commit
	return desc, nil
}

func (r *RemoteResolver) remoteURL(root string) (string, error) {
	out, err := r.runner.Output(root, "git", "config", "--get", "remote."+UpstreamRemote+".url")
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", errors.Newf("remote.%s.url is empty", UpstreamRemote)
	}
	return url, nil
}

// currentBranch returns the checked out branch; symbolic-ref fails when detached.
func (r *RemoteResolver) currentBranch(root string) (string, error) {
	out, err := r.runner.Output(root, "git", "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *RemoteResolver) headCommit(root string) (string, error) {
	out, err := r.runner.Output(root, "git", "rev-parse", "--verify", "HEAD")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return "", errors.New("rev-parse returned no commit")
	}
	return commit, nil
}
