package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docsweep/internal/database"
	"docsweep/internal/exitcodes"
)

type historyOptions struct {
	dbPath   string
	recent   int
	runs     int
	runID    string
	action   string
	category string
	stats    bool
	days     int
	prune    int
	json     bool
}

func newHistoryCommand() *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the run and deletion history database",
		Long: `Query the run and deletion history database.

Examples:
  docsweep history --runs 5              # Show the 5 most recent runs
  docsweep history --run <id>            # Show every attempt of one run
  docsweep history --recent 20           # Show 20 most recent attempts
  docsweep history --action ERROR        # Show only failed removals
  docsweep history --category deploy     # Show deletions from one category
  docsweep history --stats --days 7      # Show statistics for a week
  docsweep history --prune 90            # Drop runs older than 90 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", "", "Path to history database (defaults to database_path from config)")
	f.IntVar(&opts.recent, "recent", 0, "Show N most recent deletion attempts")
	f.IntVar(&opts.runs, "runs", 0, "Show N most recent runs")
	f.StringVar(&opts.runID, "run", "", "Show the attempts of a single run")
	f.StringVar(&opts.action, "action", "", "Filter by action (DELETE, MISSING, ERROR, BLOCKED)")
	f.StringVar(&opts.category, "category", "", "Filter by manifest category")
	f.BoolVar(&opts.stats, "stats", false, "Show deletion statistics")
	f.IntVar(&opts.days, "days", 30, "Number of days for statistics")
	f.IntVar(&opts.prune, "prune", 0, "Delete runs older than N days and vacuum the database")
	f.BoolVar(&opts.json, "json", false, "Output in JSON format")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	path := opts.dbPath
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.DatabasePath
	}
	if path == "" {
		return withCode(exitcodes.InvalidConfig, errors.New("no history database: set database_path or pass --db"))
	}

	db, err := database.NewDeletionDB(path)
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("open database %s: %w", path, err))
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	switch {
	case opts.prune > 0:
		err = prune(w, db, opts.prune)
	case opts.stats:
		err = showStats(w, db, opts.days, opts.json)
	case opts.runs > 0:
		err = showRuns(w, db, opts.runs, opts.json)
	case opts.runID != "":
		err = showRecords(w, opts.json, fmt.Sprintf("Attempts of run %s", opts.runID),
			func() ([]database.DeletionRecord, error) { return db.GetDeletionsForRun(opts.runID) })
	case opts.recent > 0:
		err = showRecords(w, opts.json, "",
			func() ([]database.DeletionRecord, error) { return db.GetRecentDeletions(opts.recent) })
	case opts.action != "":
		action := strings.ToUpper(opts.action)
		err = showRecords(w, opts.json, "Records with action: "+action,
			func() ([]database.DeletionRecord, error) { return db.GetDeletionsByAction(action) })
	case opts.category != "":
		err = showRecords(w, opts.json, "Records in category: "+opts.category,
			func() ([]database.DeletionRecord, error) { return db.GetDeletionsByCategory(opts.category) })
	default:
		_ = cmd.Help()
		return withCode(exitcodes.InvalidConfig, nil)
	}

	if err != nil {
		return withCode(exitcodes.RuntimeError, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func showStats(w io.Writer, db *database.DeletionDB, days int, jsonOutput bool) error {
	stats, err := db.GetDeletionStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Deletion Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Total Runs:       %d\n", stats.TotalRuns)
	fmt.Fprintf(w, "Total Deleted:    %d\n", stats.TotalDeleted)
	fmt.Fprintf(w, "Total Missing:    %d\n", stats.TotalMissing)
	fmt.Fprintf(w, "Total Failed:     %d\n\n", stats.TotalFailed)

	printCounts(w, "By Category:", stats.ByCategory)
	printCounts(w, "By Action:", stats.ByAction)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, title)
	for _, k := range keys {
		label := k
		if label == "" {
			label = "(helpers)"
		}
		fmt.Fprintf(w, "  %-30s %d\n", label, counts[k])
	}
	fmt.Fprintln(w)
}

func showRuns(w io.Writer, db *database.DeletionDB, limit int, jsonOutput bool) error {
	runs, err := db.GetRecentRuns(limit)
	if err != nil {
		return fmt.Errorf("get recent runs: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tStarted\tDuration\tMode\tState\tPlanned\tDeleted\tMissing\tFailed")
	_, _ = fmt.Fprintln(tw, "--\t-------\t--------\t----\t-----\t-------\t-------\t-------\t------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), formatDuration(r),
			r.Mode, r.State, r.Planned, r.Deleted, r.Missing, r.Failed)
	}
	return tw.Flush()
}

func showRecords(w io.Writer, jsonOutput bool, title string, query func() ([]database.DeletionRecord, error)) error {
	records, err := query()
	if err != nil {
		return fmt.Errorf("query deletions: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, records)
	}
	if title != "" {
		fmt.Fprintf(w, "%s\n\n", title)
	}
	return printRecords(w, records)
}

func printRecords(w io.Writer, records []database.DeletionRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTimestamp\tAction\tCategory\tFile\tError")
	_, _ = fmt.Fprintln(tw, "--\t---------\t------\t--------\t----\t-----")

	for _, r := range records {
		category := r.Category
		if category == "" {
			category = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, category, r.FileName, r.ErrorMessage)
	}
	return tw.Flush()
}

func prune(w io.Writer, db *database.DeletionDB, days int) error {
	n, err := db.DeleteOldRecords(days)
	if err != nil {
		return fmt.Errorf("delete old records: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	fmt.Fprintf(w, "Removed %d deletion records older than %d days\n", n, days)
	return nil
}

func formatDuration(r database.RunRecord) string {
	if r.FinishedAt == nil {
		return "-"
	}
	d := r.FinishedAt.Sub(r.StartedAt)
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
