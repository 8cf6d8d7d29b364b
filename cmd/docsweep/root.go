package main

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"docsweep/internal/config"
	"docsweep/internal/exitcodes"
	"docsweep/internal/logging"
)

// exitError carries the process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcodes.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// newRootCommand builds a fresh command tree so tests do not share flag state
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsweep",
		Short: "Delete documentation files that were merged into consolidated documents",
		Long: `docsweep reads a manifest mapping categories to markdown filenames and
removes those files, plus the helper scripts used to build it, from the
documentation directory.

Examples:
   docsweep plan                         # Show what would be deleted
   docsweep run                          # Delete after typing YES
   docsweep run --yes --base-dir ./docs  # Delete without a prompt
   docsweep history --runs 5             # Show the last five runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to configuration file (built-in defaults when empty)")
	cmd.PersistentFlags().String("base-dir", "", "Directory the manifest filenames are relative to")
	cmd.PersistentFlags().String("manifest", "", "Path to the manifest (relative paths resolve against the base directory)")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}

// execute runs the command tree and maps the outcome to an exit code
func execute(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return exitCode(cmd.Execute(), cmd.ErrOrStderr())
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitcodes.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "ERROR: %v\n", ee.err)
		}
		return ee.code
	}

	// flag and argument errors from cobra
	_, _ = fmt.Fprintf(stderr, "ERROR: %v\n", err)
	return exitcodes.InvalidConfig
}

// loadConfig reads --config (or the defaults) and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, withCode(exitcodes.InvalidConfig, fmt.Errorf("load config: %w", err))
		}
	}

	if v, _ := cmd.Flags().GetString("base-dir"); v != "" {
		cfg.BaseDir = v
	}
	if v, _ := cmd.Flags().GetString("manifest"); v != "" {
		cfg.ManifestPath = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, withCode(exitcodes.InvalidConfig, fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *log.Logger {
	return logging.NewWithConfig(cfg, cmd.ErrOrStderr())
}
