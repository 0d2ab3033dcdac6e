// Package errors provides typed errors for cargo-uber.
//
// This package defines the error taxonomy used while scanning a workspace,
// rewriting manifests and resolving git remotes. All error types implement
// the standard error interface and support errors.Is() and errors.As() from
// the standard library and cockroachdb/errors.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// FilesystemError represents an unreadable or unwritable path.
type FilesystemError struct {
	Path      string
	Operation string // e.g., "read", "write", "lock"
	Cause     error
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot %s %s: %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("cannot %s %s", e.Operation, e.Path)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *FilesystemError) Unwrap() error {
	return e.Cause
}

// NewFilesystemError creates a new FilesystemError.
func NewFilesystemError(operation, path string, cause error) *FilesystemError {
	return &FilesystemError{Operation: operation, Path: path, Cause: cause}
}

// ManifestParseError represents malformed manifest content.
type ManifestParseError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ManifestParseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid manifest %s: %s", e.Path, e.Message)
	}
	return "invalid manifest " + e.Path
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ManifestParseError) Unwrap() error {
	return e.Cause
}

// NewManifestParseError creates a new ManifestParseError from a decoder error.
func NewManifestParseError(path string, cause error) *ManifestParseError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &ManifestParseError{Path: path, Message: msg, Cause: cause}
}

// RemoteResolutionError represents a project root whose git remote or ref
// could not be resolved.
type RemoteResolutionError struct {
	Root    string
	Remote  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RemoteResolutionError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("cannot resolve remote %q for %s: %s", e.Remote, e.Root, e.Message)
	}
	return fmt.Sprintf("cannot resolve remote for %s: %s", e.Root, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *RemoteResolutionError) Unwrap() error {
	return e.Cause
}

// NewRemoteResolutionError creates a new RemoteResolutionError.
func NewRemoteResolutionError(root, remote, message string, cause error) *RemoteResolutionError {
	return &RemoteResolutionError{Root: root, Remote: remote, Message: message, Cause: cause}
}

// AmbiguousDependencyError is returned when a dependency name matches more
// than one scanned package.
type AmbiguousDependencyError struct {
	Dependency string
	Candidates []string
}

// Error implements the error interface.
func (e *AmbiguousDependencyError) Error() string {
	return fmt.Sprintf("dependency %q is ambiguous: matches %s", e.Dependency, strings.Join(e.Candidates, ", "))
}

// NewAmbiguousDependencyError creates a new AmbiguousDependencyError.
func NewAmbiguousDependencyError(dependency string, candidates []string) *AmbiguousDependencyError {
	return &AmbiguousDependencyError{Dependency: dependency, Candidates: candidates}
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsFilesystemError checks if an error or any error in its chain is a FilesystemError.
func IsFilesystemError(err error) bool {
	var fsErr *FilesystemError
	return errors.As(err, &fsErr)
}

// IsManifestParseError checks if an error or any error in its chain is a ManifestParseError.
func IsManifestParseError(err error) bool {
	var parseErr *ManifestParseError
	return errors.As(err, &parseErr)
}

// IsRemoteResolutionError checks if an error or any error in its chain is a RemoteResolutionError.
func IsRemoteResolutionError(err error) bool {
	var remoteErr *RemoteResolutionError
	return errors.As(err, &remoteErr)
}

// IsAmbiguousDependencyError checks if an error or any error in its chain is an AmbiguousDependencyError.
func IsAmbiguousDependencyError(err error) bool {
	var ambErr *AmbiguousDependencyError
	return errors.As(err, &ambErr)
}

// IsFatal reports whether err must abort a run before any mutation.
// Remote and ambiguity errors only ever skip a single entry.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsRemoteResolutionError(err) && !IsAmbiguousDependencyError(err)
}
