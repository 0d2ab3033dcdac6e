package cmd

import (
	"fmt"
	"io"

	"thoreinstein.com/uber/pkg/discovery"
	"thoreinstein.com/uber/pkg/logging"
	"thoreinstein.com/uber/pkg/manifest"
	"thoreinstein.com/uber/pkg/ui"
)

// scanWorkspace scans the configured workspace directory.
func scanWorkspace() (*discovery.Result, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}

	scanner := discovery.NewScanner(appConfig.Scan.Exclusions, appConfig.Scan.MaxDepth)
	scanner.Logger = logging.New("scan")

	res, err := scanner.Scan(root)
	if err != nil {
		return nil, err
	}
	scanner.Logger.Debug("scan complete",
		"root", res.Root,
		"roots", len(res.Roots),
		"members", len(res.Members),
		"scanned", res.Scanned,
		"duration", res.Duration,
	)
	return res, nil
}

func writeOptions() manifest.WriteOptions {
	return manifest.WriteOptions{Lock: appConfig.Lock.Enabled}
}

// runGenerate writes the workspace manifest for the scanned members.
func runGenerate(out io.Writer) error {
	res, err := scanWorkspace()
	if err != nil {
		return err
	}

	members, exclude := res.MemberPaths(), res.ExcludePaths()

	var wr *manifest.WorkspaceResult
	if dryRun {
		wr, err = manifest.UpdateWorkspace(res.Root, members, exclude)
	} else {
		wr, err = manifest.WriteWorkspace(res.Root, members, exclude, writeOptions())
	}
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(res.Roots))
	for _, r := range res.Roots {
		roots = append(roots, r.Rel)
	}

	printer := ui.NewPrinter(out, outputFormat)
	if err := printer.Workspace(ui.WorkspaceSummary{
		Path:     wr.Path,
		Created:  wr.Created,
		Changed:  wr.Changed,
		DryRun:   dryRun,
		Roots:    roots,
		Members:  members,
		Exclude:  exclude,
		Warnings: res.Warnings,
	}); err != nil {
		return err
	}

	if dryRun && outputFormat == ui.FormatText {
		fmt.Fprintln(out)
		_, err = out.Write(wr.Data)
	}
	return err
}
