package cleanup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"docsweep/internal/config"
	"docsweep/internal/database"
	"docsweep/internal/exitcodes"
	"docsweep/internal/fsops"
	"docsweep/internal/manifest"
	"docsweep/internal/metrics"
	"docsweep/internal/safety"
)

// Mode selects whether the operator has to confirm before deletion
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeInteractive Mode = "interactive"
)

// ParseMode accepts "auto" or "interactive"
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeInteractive:
		return ModeInteractive, nil
	default:
		return "", fmt.Errorf("unknown confirm mode %q (want auto or interactive)", s)
	}
}

// State of a run. AWAITING_CONFIRMATION leads to DELETING then DONE, or
// straight to CANCELLED.
type State string

const (
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateDeleting             State = "DELETING"
	StateDone                 State = "DONE"
	StateCancelled            State = "CANCELLED"
)

// ErrIsDirectory is returned for targets that turn out to be directories
var ErrIsDirectory = errors.New("is a directory")

// FileError is a per-file failure. It is counted and the run continues.
type FileError struct {
	Name string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Result holds the counters of a single run
type Result struct {
	RunID    string
	State    State
	Planned  int
	Deleted  int
	Failed   int
	Missing  int
	Failures []*FileError
}

// Blocked reports whether any failure was a safety rejection
func (r *Result) Blocked() bool {
	for _, f := range r.Failures {
		if safety.IsViolation(f.Err) {
			return true
		}
	}
	return false
}

// ExitCode maps the outcome to the process exit code
func (r *Result) ExitCode() int {
	switch {
	case r.Blocked():
		return exitcodes.SafetyViolation
	case r.Failed > 0:
		return exitcodes.PartialFailure
	default:
		return exitcodes.Success
	}
}

// Logger interface for structured logging in cleanup
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// cleanupStdLogger wraps standard log.Logger to implement Logger interface
type cleanupStdLogger struct {
	*log.Logger
}

func (l *cleanupStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *cleanupStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *cleanupStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Runner loads the manifest, reports the deletion set and removes it
type Runner struct {
	cfg       *config.Config
	logger    Logger
	out       printer
	in        io.Reader
	deleter   fsops.Deleter
	validator *safety.Validator
	db        *database.DeletionDB // optional run history
}

// NewRunner creates a Runner writing its report to stdout and reading the
// confirmation from stdin. db may be nil.
func NewRunner(cfg *config.Config, logger *log.Logger, db *database.DeletionDB) *Runner {
	metrics.Init()

	cleanupLogger := &cleanupStdLogger{Logger: logger}
	if logger == nil {
		cleanupLogger.Logger = log.Default()
	}
	return &Runner{
		cfg:       cfg,
		logger:    cleanupLogger,
		out:       printer{w: os.Stdout},
		in:        os.Stdin,
		deleter:   fsops.OSDeleter{},
		validator: safety.NewValidator(cfg.BaseDir, nil),
		db:        db,
	}
}

func (r *Runner) SetDeleter(d fsops.Deleter) { r.deleter = d }

func (r *Runner) SetValidator(v *safety.Validator) { r.validator = v }

func (r *Runner) SetOutput(w io.Writer) { r.out = printer{w: w} }

func (r *Runner) SetInput(in io.Reader) { r.in = in }

// Plan loads the manifest and prints the report without deleting anything
func (r *Runner) Plan(ctx context.Context) (*Plan, error) {
	m, err := manifest.Load(r.cfg.ManifestLocation())
	if err != nil {
		metrics.ErrorsTotal.Inc()
		r.logger.Error("Failed to load manifest", "error", err)
		return nil, err
	}

	plan := BuildPlan(m, r.cfg.HelperFiles)
	for _, c := range m.Categories {
		metrics.SetPlanned(c.Name, len(c.Files))
	}
	metrics.SetPlanned("helpers", plan.HelperCount())

	writePlan(r.out, r.cfg, plan)
	return plan, nil
}

// Run executes the cleanup. A manifest error is returned before anything is
// touched; per-file failures end up in the Result, never in the error.
func (r *Runner) Run(ctx context.Context, mode Mode) (*Result, error) {
	start := time.Now()

	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{State: StateAwaitingConfirmation, Planned: plan.Len()}

	if mode == ModeInteractive && !r.confirm() {
		res.State = StateCancelled
		r.out.println("Deletion cancelled.")
		r.logger.Info("Run cancelled by operator", "planned", res.Planned)
		metrics.RecordRun(string(res.State), time.Since(start))
		return res, nil
	}

	res.RunID, err = nanoid.New()
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return res, fmt.Errorf("generate run id: %w", err)
	}

	run := &database.RunRecord{
		ID:           res.RunID,
		StartedAt:    start,
		Mode:         string(mode),
		State:        string(StateDeleting),
		BaseDir:      r.cfg.BaseDir,
		ManifestPath: plan.Manifest.Path,
		Planned:      plan.Len(),
	}
	if r.db != nil {
		// Nothing has been deleted yet, so a broken history store is still safe to abort on
		if err := r.db.StartRun(ctx, run); err != nil {
			metrics.ErrorsTotal.Inc()
			return res, fmt.Errorf("record run start: %w", err)
		}
	}

	res.State = StateDeleting
	r.logger.Info("Starting cleanup", "run_id", res.RunID, "total_targets", plan.Len(), "base_dir", r.cfg.BaseDir)

	r.out.section("DELETING FILES...")
	r.out.println("")
	for _, t := range plan.ManifestTargets() {
		r.deleteTarget(ctx, res, t)
	}

	if plan.HelperCount() > 0 {
		r.out.println("\nDeleting helper scripts...")
		for _, t := range plan.HelperTargets() {
			r.deleteTarget(ctx, res, t)
		}
	}

	res.State = StateDone
	elapsed := time.Since(start)

	if r.db != nil {
		finished := time.Now()
		run.FinishedAt = &finished
		run.State = string(res.State)
		run.Deleted, run.Failed, run.Missing = res.Deleted, res.Failed, res.Missing
		if err := r.db.FinishRun(ctx, run); err != nil {
			// Files are already gone; losing the summary row must not change the outcome
			r.logger.Error("Failed to record run to database", "run_id", res.RunID, "error", err)
		}
	}

	writeSummary(r.out, r.cfg, res)

	r.logger.Info("Cleanup complete",
		"run_id", res.RunID,
		"deleted", res.Deleted,
		"failed", res.Failed,
		"missing", res.Missing,
		"duration", elapsed.Round(time.Millisecond),
	)
	metrics.RecordRun(string(res.State), elapsed)

	return res, nil
}

func (r *Runner) confirm() bool {
	r.out.println("\nReady to delete all original files?")
	r.out.printf("Type '%s' to proceed or 'NO' to cancel: ", r.cfg.ConfirmToken)

	line, err := bufio.NewReader(r.in).ReadString('\n')
	if err != nil && line == "" {
		r.out.println("")
		return false
	}
	return strings.ToUpper(strings.TrimSpace(line)) == r.cfg.ConfirmToken
}

// deleteTarget attempts one removal. It never aborts the run.
func (r *Runner) deleteTarget(ctx context.Context, res *Result, t Target) {
	path, err := r.validator.ValidateTarget(t.Name)
	if err != nil {
		r.fail(ctx, res, t, path, err, database.ActionBlocked)
		return
	}

	info, err := r.deleter.Lstat(path)
	if err == nil && info.Mode()&fs.ModeSymlink != 0 {
		// A link whose target is gone counts as absent; the link stays
		_, err = r.deleter.Stat(path)
	}
	if err != nil {
		if isAbsent(err) {
			res.Missing++
			metrics.FilesMissingTotal.Inc()
			r.logStructured(database.ActionMissing, path, t)
			r.record(ctx, res.RunID, t, path, database.ActionMissing, "")
			return
		}
		r.fail(ctx, res, t, path, err, database.ActionError)
		return
	}
	if info.IsDir() {
		r.fail(ctx, res, t, path, ErrIsDirectory, database.ActionError)
		return
	}

	if err := r.deleter.Remove(path); err != nil {
		r.fail(ctx, res, t, path, err, database.ActionError)
		return
	}

	res.Deleted++
	metrics.FilesDeletedTotal.Inc()
	r.out.printf("  ✓ Deleted %s\n", t.Name)
	r.logStructured(database.ActionDelete, path, t)
	r.record(ctx, res.RunID, t, path, database.ActionDelete, "")
}

func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ELOOP)
}

func (r *Runner) fail(ctx context.Context, res *Result, t Target, path string, err error, action string) {
	res.Failed++
	res.Failures = append(res.Failures, &FileError{Name: t.Name, Path: path, Err: err})
	metrics.RecordFailure(strings.ToLower(action))

	r.out.printf("  ✗ Failed to delete %s: %v\n", t.Name, err)
	r.logger.Error("Failed to delete", "name", t.Name, "path", path, "error", err)
	r.record(ctx, res.RunID, t, path, action, err.Error())
}

func (r *Runner) record(ctx context.Context, runID string, t Target, path, action, errMsg string) {
	if r.db == nil {
		return
	}
	err := r.db.RecordDeletion(ctx, database.DeletionRecord{
		RunID:        runID,
		Action:       action,
		Category:     t.Category,
		FileName:     t.Name,
		Path:         path,
		ErrorMessage: errMsg,
	})
	if err != nil {
		r.logger.Error("Failed to record to database", "name", t.Name, "error", err)
	}
}

// logStructured logs with structured format: timestamp, action, path, object kind, category
func (r *Runner) logStructured(action, path string, t Target) {
	kind := "manifest"
	if t.Helper {
		kind = "helper"
	}
	entry := fmt.Sprintf("[%s] %s path=%s object=%s",
		time.Now().UTC().Format(time.RFC3339),
		action,
		path,
		kind,
	)
	if t.Category != "" {
		entry += fmt.Sprintf(" category=%q", t.Category)
	}
	r.logger.Info(entry)
}
