package rewrite

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Change is one rewritten dependency entry.
type Change struct {
	Package    string `json:"package" yaml:"package"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Table      string `json:"table" yaml:"table"`
	From       string `json:"from" yaml:"from"`
	To         string `json:"to" yaml:"to"`
}

// Skip is a dependency entry left unchanged because it could not be rewritten.
type Skip struct {
	Package    string `json:"package" yaml:"package"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Table      string `json:"table" yaml:"table"`
	Reason     string `json:"reason" yaml:"reason"`
}

// Failure is a package whose manifest could not be rewritten.
type Failure struct {
	Package string `json:"package" yaml:"package"`
	Error   string `json:"error" yaml:"error"`
	err     error
}

// Report summarises a mode switch.
type Report struct {
	Mode      Mode      `json:"mode" yaml:"mode"`
	DryRun    bool      `json:"dry_run" yaml:"dry_run"`
	Rewritten []Change  `json:"rewritten" yaml:"rewritten"`
	Skipped   []Skip    `json:"skipped" yaml:"skipped"`
	Failed    []Failure `json:"failed" yaml:"failed"`
}

// Packages returns the sorted, de-duplicated packages with at least one change.
func (r *Report) Packages() []string {
	var out []string
	for _, c := range r.Rewritten {
		out = append(out, c.Package)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Err returns a combined error when any package failed.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var err error
	for _, f := range r.Failed {
		cause := f.err
		if cause == nil {
			cause = errors.New(f.Error)
		}
		err = errors.CombineErrors(err, errors.Wrapf(cause, "package %s", f.Package))
	}
	return errors.Wrapf(err, "%d package(s) failed", len(r.Failed))
}
