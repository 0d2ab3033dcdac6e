package git

import (
	"os"
	"path/filepath"
)

// IsGitRepo checks if a path is the top of a git working tree.
// Bare repositories are not considered: they have no checked out packages.
func IsGitRepo(path string) bool {
	// Check for .git directory or file (for worktrees and submodules)
	gitPath := filepath.Join(path, ".git")
	info, err := os.Lstat(gitPath)
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}
