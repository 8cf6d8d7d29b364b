package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docsweep/internal/cleanup"
	"docsweep/internal/database"
	"docsweep/internal/exitcodes"
	"docsweep/internal/manifest"
	"docsweep/internal/metrics"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Delete every file listed in the manifest and the helper scripts",
		Args:  cobra.NoArgs,
		RunE:  runCleanup,
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().String("mode", "", "Confirmation mode: interactive or auto (overrides --yes)")
	return cmd
}

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the deletion report without deleting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			runner := cleanup.NewRunner(cfg, logger, nil)
			runner.SetOutput(cmd.OutOrStdout())
			if _, err := runner.Plan(cmd.Context()); err != nil {
				return withCode(exitcodes.InvalidManifest, err)
			}
			return nil
		},
	}
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	mode := cleanup.ModeInteractive
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		mode = cleanup.ModeAuto
	}
	if s, _ := cmd.Flags().GetString("mode"); s != "" {
		m, err := cleanup.ParseMode(s)
		if err != nil {
			return withCode(exitcodes.InvalidConfig, err)
		}
		mode = m
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)
	logger.Printf("Base directory: %s", cfg.BaseDir)
	logger.Printf("Manifest: %s", cfg.ManifestLocation())

	// Initialize database for deletion history
	var db *database.DeletionDB
	if cfg.DatabasePath != "" {
		logger.Printf("Opening deletion database: %s", cfg.DatabasePath)
		db, err = database.NewDeletionDB(cfg.DatabasePath)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("open database: %w", err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
	}

	runner := cleanup.NewRunner(cfg, logger, db)
	runner.SetOutput(cmd.OutOrStdout())
	runner.SetInput(cmd.InOrStdin())

	res, err := runner.Run(cmd.Context(), mode)
	if err != nil {
		var merr *manifest.Error
		if errors.As(err, &merr) {
			return withCode(exitcodes.InvalidManifest, err)
		}
		return withCode(exitcodes.RuntimeError, err)
	}
	code := res.ExitCode()

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Printf("ERROR: %v", err)
			if code == exitcodes.Success {
				return withCode(exitcodes.RuntimeError, err)
			}
		}
	}

	if code != exitcodes.Success {
		return withCode(code, fmt.Errorf("%d of %d targets could not be deleted", res.Failed, res.Planned))
	}
	return nil
}
