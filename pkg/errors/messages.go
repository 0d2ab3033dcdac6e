package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return formatConfigError(configErr)
	}

	var parseErr *ManifestParseError
	if errors.As(err, &parseErr) {
		return formatManifestParseError(parseErr)
	}

	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return formatFilesystemError(fsErr)
	}

	var remoteErr *RemoteResolutionError
	if errors.As(err, &remoteErr) {
		return formatRemoteResolutionError(remoteErr)
	}

	var ambErr *AmbiguousDependencyError
	if errors.As(err, &ambErr) {
		return formatAmbiguousDependencyError(ambErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/cargo-uber/config.toml\n")
	b.WriteString("  • Check the workspace-local .uber.toml, if any\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatManifestParseError formats a ManifestParseError with actionable guidance.
func formatManifestParseError(err *ManifestParseError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Could not parse %s: %s\n", err.Path, err.Message)
	b.WriteString("\nNothing was written. To fix this:\n")
	b.WriteString("  • Correct the TOML syntax in the file above\n")
	b.WriteString("  • Or move the file aside and run cargo-uber again to regenerate it\n")

	return b.String()
}

// formatFilesystemError formats a FilesystemError with actionable guidance.
func formatFilesystemError(err *FilesystemError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Filesystem error: cannot %s %s\n", err.Operation, err.Path)

	switch err.Operation {
	case "lock":
		b.WriteString("\nAnother cargo-uber run may be in progress. To fix this:\n")
		b.WriteString("  • Wait for the other run to finish\n")
		b.WriteString("  • Remove a stale lock file if no other run is active\n")
	default:
		b.WriteString("\nTo fix this:\n")
		b.WriteString("  • Check that the path exists and that you have permission to access it\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatRemoteResolutionError formats a RemoteResolutionError with actionable guidance.
func formatRemoteResolutionError(err *RemoteResolutionError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", err.Error())
	b.WriteString("\nTo fix this:\n")
	fmt.Fprintf(&b, "  • Add the remote: git -C %s remote add %s <url>\n", err.Root, remoteName(err.Remote))
	b.WriteString("  • Check out a branch instead of a detached commit\n")

	return b.String()
}

// formatAmbiguousDependencyError formats an AmbiguousDependencyError with actionable guidance.
func formatAmbiguousDependencyError(err *AmbiguousDependencyError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", err.Error())
	b.WriteString("\nThe entry was left unchanged. To fix this:\n")
	b.WriteString("  • Rename one of the crates, or\n")
	b.WriteString("  • Edit the dependency by hand\n")

	return b.String()
}

func remoteName(name string) string {
	if name == "" {
		return "upstream"
	}
	return name
}
