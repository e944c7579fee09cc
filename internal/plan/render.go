package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Render writes the plan in the given format.
func (p *Plan) Render(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(p); err != nil {
			return errors.New(err)
		}

		return nil
	case FormatText, "":
		return p.renderText(w)
	}

	return errors.Errorf("invalid plan format %q, supported formats: %s, %s", format, FormatText, FormatJSON)
}

func (p *Plan) renderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd

	fmt.Fprintf(tw, "Teardown plan for %s (scope %s)\n", p.PipelineName, p.Scope)
	fmt.Fprintf(tw, "Management account %s, running as %s, home region %s\n", p.Management, p.Executing, p.HomeRegion)
	fmt.Fprintf(tw, "Regions: %s\n\n", strings.Join(p.Regions, ", "))

	fmt.Fprintln(tw, "STEP\tRANK\tSTACK\tACCOUNT\tREGION\tNOTE")

	for i, step := range p.Steps {
		for _, entry := range step.Entries {
			note := ""
			if entry.DeferReaping {
				note = "reaping deferred"
			}

			fmt.Fprintf(tw, "%d\t%d.%d\t%s\t%s\t%s\t%s\n", i+1, step.StageOrder, step.Order, entry.StackName, entry.AccountID, entry.Region, note)
		}
	}

	for _, extra := range []struct {
		entry *PipelineStackEntry
		note  string
	}{
		{p.PipelineStack, "pipeline"},
		{p.InstallerStack, "installer"},
	} {
		if extra.entry != nil {
			fmt.Fprintf(tw, "-\t-\t%s\t%s\t%s\t%s\n", extra.entry.StackName, extra.entry.AccountID, extra.entry.Region, extra.note)
		}
	}

	for _, entry := range p.Bootstrap {
		fmt.Fprintf(tw, "-\t-\t%s\t%s\t%s\tbootstrap\n", entry.StackName, entry.AccountID, entry.Region)
	}

	fmt.Fprintln(tw)

	if p.ConfigRepo != "" {
		fmt.Fprintf(tw, "Configuration repository %s will be deleted\n", p.ConfigRepo)
	}

	if len(p.SweepPrefixes) > 0 {
		fmt.Fprintf(tw, "Log groups matching %s will be swept in every account and region\n", strings.Join(p.SweepPrefixes, ", "))
	}

	if !p.ReapData {
		fmt.Fprintln(tw, "Retained data (buckets, log groups, keys, vaults, tables) will be kept")
	}

	if err := tw.Flush(); err != nil {
		return errors.New(err)
	}

	return nil
}
