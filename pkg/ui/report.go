package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"thoreinstein.com/uber/pkg/rewrite"
)

// WorkspaceSummary describes a generated workspace manifest.
type WorkspaceSummary struct {
	Path     string   `json:"path" yaml:"path"`
	Created  bool     `json:"created" yaml:"created"`
	Changed  bool     `json:"changed" yaml:"changed"`
	DryRun   bool     `json:"dry_run" yaml:"dry_run"`
	Roots    []string `json:"roots" yaml:"roots"`
	Members  []string `json:"members" yaml:"members"`
	Exclude  []string `json:"exclude" yaml:"exclude"`
	Warnings []string `json:"warnings" yaml:"warnings"`
}

// Printer writes summaries in one output format.
type Printer struct {
	Out    io.Writer
	Format Format

	heading lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
}

// NewPrinter creates a printer for w. Colors are only used when w is a
// terminal that supports them.
func NewPrinter(w io.Writer, format Format) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		Out:     w,
		Format:  format,
		heading: r.NewStyle().Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Workspace prints the outcome of a workspace manifest generation.
func (p *Printer) Workspace(s WorkspaceSummary) error {
	s.Roots = nonNil(s.Roots)
	s.Members = nonNil(s.Members)
	s.Exclude = nonNil(s.Exclude)
	s.Warnings = nonNil(s.Warnings)

	switch p.Format {
	case FormatJSON:
		return p.json(s)
	case FormatYAML:
		return p.yaml(s)
	}

	var b strings.Builder
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "%s %s\n", p.warn.Render("warning:"), w)
	}

	var verb string
	switch {
	case s.DryRun:
		verb = "Would write"
	case !s.Changed:
		verb = "Up to date"
	case s.Created:
		verb = "Created"
	default:
		verb = "Updated"
	}
	fmt.Fprintf(&b, "%s %s (%d members, %d excluded, %d project roots)\n",
		p.heading.Render(verb), s.Path, len(s.Members), len(s.Exclude), len(s.Roots))

	for _, m := range s.Members {
		fmt.Fprintf(&b, "  %s %s\n", p.ok.Render("+"), m)
	}
	for _, e := range s.Exclude {
		fmt.Fprintf(&b, "  %s %s\n", p.dim.Render("-"), e)
	}

	_, err := io.WriteString(p.Out, b.String())
	return err
}

// Report prints the outcome of a dependency rewrite.
func (p *Printer) Report(r *rewrite.Report) error {
	out := *r
	out.Rewritten = nonNil(out.Rewritten)
	out.Skipped = nonNil(out.Skipped)
	out.Failed = nonNil(out.Failed)

	switch p.Format {
	case FormatJSON:
		return p.json(out)
	case FormatYAML:
		return p.yaml(out)
	}

	var b strings.Builder

	verb := "Rewrote"
	if out.DryRun {
		verb = "Would rewrite"
	}
	fmt.Fprintf(&b, "%s %d dependencies in %d packages (%s)\n",
		p.heading.Render(verb), len(out.Rewritten), len(out.Packages()), out.Mode)

	for _, c := range out.Rewritten {
		fmt.Fprintf(&b, "  %s %s: %s [%s] %s -> %s\n", p.ok.Render("~"), c.Package, c.Dependency, c.Table, c.From, c.To)
	}

	if len(out.Skipped) > 0 {
		fmt.Fprintf(&b, "%s %d\n", p.warn.Render("Skipped"), len(out.Skipped))
		for _, s := range out.Skipped {
			fmt.Fprintf(&b, "  %s: %s [%s]: %s\n", s.Package, s.Dependency, s.Table, s.Reason)
		}
	}

	if len(out.Failed) > 0 {
		fmt.Fprintf(&b, "%s %d\n", p.fail.Render("Failed"), len(out.Failed))
		for _, f := range out.Failed {
			fmt.Fprintf(&b, "  %s: %s\n", f.Package, f.Error)
		}
	}

	_, err := io.WriteString(p.Out, b.String())
	return err
}

func (p *Printer) json(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode JSON output")
	}
	return nil
}

func (p *Printer) yaml(v any) error {
	enc := yaml.NewEncoder(p.Out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode YAML output")
	}
	return errors.Wrap(enc.Close(), "failed to encode YAML output")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
