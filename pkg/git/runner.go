package git

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// CommandRunner executes external commands. It exists so git plumbing can be
// faked in tests.
type CommandRunner interface {
	// Output executes a command in dir and returns its stdout.
	Output(dir, name string, args ...string) ([]byte, error)
}

// RealCommandRunner runs commands with os/exec.
type RealCommandRunner struct {
	Verbose bool
}

// Output executes the command and returns stdout. Stderr is folded into the
// returned error.
func (r *RealCommandRunner) Output(dir, name string, args ...string) ([]byte, error) {
	if r.Verbose {
		fmt.Fprintf(os.Stderr, "+ (%s) %s %s\n", dir, name, strings.Join(args, " "))
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	// Never prompt; resolution only reads local metadata.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), msg)
		}
		return out, errors.Wrapf(err, "%s %s", name, strings.Join(args, " "))
	}
	return out, nil
}
