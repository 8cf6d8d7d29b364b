package cleanup

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"docsweep/internal/config"
)

var rule = strings.Repeat("=", 70)

// printer writes the operator-facing report. Write errors on the console
// are not actionable and are dropped.
type printer struct {
	w io.Writer
}

func (p printer) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p printer) println(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

func (p printer) section(title string) {
	p.println("\n" + rule)
	p.println(title)
	p.println(rule)
}

// writePlan prints what will be deleted and what is kept
func writePlan(p printer, cfg *config.Config, plan *Plan) {
	p.println(rule)
	p.println("MARKDOWN FILE CONSOLIDATION - DELETION PHASE")
	p.println(rule)
	p.printf("\nOriginal markdown files to delete: %d\n", plan.ManifestCount())
	p.printf("Helper scripts to delete: %d\n", plan.HelperCount())
	p.printf("Total files to delete: %d\n", plan.Len())

	p.section("DELETION SUMMARY BY CATEGORY")
	for _, c := range plan.Manifest.Categories {
		p.printf("\n%s: %d files\n", c.Name, len(c.Files))
		for _, name := range preview(c.Files, cfg.PreviewLimit) {
			p.printf("  - %s\n", name)
		}
		if extra := len(c.Files) - cfg.PreviewLimit; extra > 0 {
			p.printf("  ... and %d more\n", extra)
		}
	}

	if plan.HelperCount() > 0 {
		p.section("HELPER FILES")
		for _, t := range plan.HelperTargets() {
			p.printf("  - %s\n", t.Name)
		}
	}

	if len(cfg.Preserved) > 0 {
		p.section("CONSOLIDATED FILES (PRESERVED)")
		for _, f := range cfg.Preserved {
			if f.Note != "" {
				p.printf("  - %s (%s)\n", f.Name, f.Note)
				continue
			}
			p.printf("  - %s\n", f.Name)
		}
	}
}

// preview returns the first n names in sorted order
func preview(files []string, n int) []string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func writeSummary(p printer, cfg *config.Config, res *Result) {
	p.section("DELETION COMPLETE")
	p.printf("Successfully deleted: %d files\n", res.Deleted)
	if res.Failed > 0 {
		p.printf("Failed to delete: %d files\n", res.Failed)
	}
	if res.Missing > 0 {
		p.printf("Already absent: %d files\n", res.Missing)
	}

	if len(cfg.Consolidated) == 0 && len(cfg.SummaryNotes) == 0 {
		return
	}

	// Static account of the earlier merge step, not read from disk
	p.section("CONSOLIDATION SUMMARY")
	if len(cfg.Consolidated) > 0 {
		p.printf("\n✓ Consolidated %d markdown files into %d organized documents:\n",
			cfg.ConsolidatedTotal(), len(cfg.Consolidated))
		for i, d := range cfg.Consolidated {
			p.printf("  %d. %s - %d files\n", i+1, d.Name, d.Files)
		}
	}
	if len(cfg.SummaryNotes) > 0 {
		p.println("")
		for _, note := range cfg.SummaryNotes {
			p.printf("✓ %s\n", note)
		}
	}
}
