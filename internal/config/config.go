package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"docsweep/internal/safety"
)

// PreservedFile is listed in the report as kept. It is informational only.
type PreservedFile struct {
	Name string `yaml:"name" json:"name"`
	Note string `yaml:"note" json:"note"` // e.g. "NOT MODIFIED"
}

// ConsolidatedDoc describes one document produced by the earlier merge step.
type ConsolidatedDoc struct {
	Name  string `yaml:"name" json:"name"`
	Files int    `yaml:"files" json:"files"` // number of originals merged into it
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"` // node_exporter textfile collector target
}

type LoggingCfg struct {
	File         string `yaml:"file" json:"file"`                   // Optional log file, stderr only when empty
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type Config struct {
	BaseDir      string            `yaml:"base_dir" json:"base_dir"`
	ManifestPath string            `yaml:"manifest_path" json:"manifest_path"`
	HelperFiles  []string          `yaml:"helper_files" json:"helper_files"`
	Preserved    []PreservedFile   `yaml:"preserved" json:"preserved"`
	Consolidated []ConsolidatedDoc `yaml:"consolidated" json:"consolidated"`
	SummaryNotes []string          `yaml:"summary_notes" json:"summary_notes"`
	PreviewLimit int               `yaml:"preview_limit" json:"preview_limit"` // Names shown per category in the report
	ConfirmToken string            `yaml:"confirm_token" json:"confirm_token"` // Exact answer that unlocks deletion
	DatabasePath string            `yaml:"database_path" json:"database_path"` // SQLite run history, disabled when empty
	Metrics      MetricsCfg        `yaml:"metrics" json:"metrics"`
	Logging      LoggingCfg        `yaml:"logging" json:"logging"`
}

const (
	DefaultManifestName = "file_categorization.json"
	DefaultPreviewLimit = 3
	DefaultConfirmToken = "YES"
)

var (
	errInvalidBaseDir  = errors.New("base_dir must not be empty")
	errNoManifest      = errors.New("manifest_path must not be empty")
	errNegativePreview = errors.New("preview_limit cannot be negative")
	errEmptyHelper     = errors.New("helper_files entries must not be empty")
)

// Default returns the configuration used when no file is given. Its lists
// reproduce the documentation consolidation this tool was written for.
func Default() *Config {
	return &Config{
		BaseDir:      ".",
		ManifestPath: DefaultManifestName,
		HelperFiles: []string{
			"consolidate-files.ps1",
			"categorize_files.py",
			"create_consolidated_files.py",
		},
		Preserved: []PreservedFile{
			{Name: "DEPLOYMENT_AND_INFRASTRUCTURE.md"},
			{Name: "FIXES_AND_TROUBLESHOOTING.md"},
			{Name: "FEATURES_AND_ENHANCEMENTS.md"},
			{Name: "MIGRATION_AND_DATABASE.md"},
			{Name: "README.md", Note: "NOT MODIFIED"},
			{Name: DefaultManifestName, Note: "PRESERVED FOR REFERENCE"},
		},
		Consolidated: []ConsolidatedDoc{
			{Name: "DEPLOYMENT_AND_INFRASTRUCTURE.md", Files: 43},
			{Name: "FIXES_AND_TROUBLESHOOTING.md", Files: 43},
			{Name: "FEATURES_AND_ENHANCEMENTS.md", Files: 18},
			{Name: "MIGRATION_AND_DATABASE.md", Files: 9},
		},
		SummaryNotes: []string{
			"All original content preserved exactly (no changes to punctuation or meaning)",
			"Organized into meaningful, logical structure",
			"Each file includes table of contents for easy navigation",
		},
		PreviewLimit: DefaultPreviewLimit,
		ConfirmToken: DefaultConfirmToken,
	}
}

// Load reads a YAML config file. Keys missing from the file keep the values
// from Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate applies defaults and normalises paths. It must be called again
// after flags override any field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return errInvalidBaseDir
	}
	abs, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return fmt.Errorf("resolve base_dir %s: %w", c.BaseDir, err)
	}
	c.BaseDir = filepath.Clean(abs)
	if err := safety.ValidateBaseDir(c.BaseDir, nil); err != nil {
		return fmt.Errorf("base_dir rejected, every target would be blocked: %w", err)
	}

	if strings.TrimSpace(c.ManifestPath) == "" {
		return errNoManifest
	}

	if c.PreviewLimit < 0 {
		return errNegativePreview
	}
	if c.PreviewLimit == 0 {
		c.PreviewLimit = DefaultPreviewLimit
	}

	c.ConfirmToken = strings.ToUpper(strings.TrimSpace(c.ConfirmToken))
	if c.ConfirmToken == "" {
		c.ConfirmToken = DefaultConfirmToken
	}

	for _, h := range c.HelperFiles {
		if strings.TrimSpace(h) == "" {
			return errEmptyHelper
		}
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	return nil
}

// ManifestLocation returns the manifest path, resolving relative paths
// against the base directory.
func (c *Config) ManifestLocation() string {
	if filepath.IsAbs(c.ManifestPath) {
		return filepath.Clean(c.ManifestPath)
	}
	return filepath.Join(c.BaseDir, c.ManifestPath)
}

// ConsolidatedTotal sums the file counts of all consolidated documents.
func (c *Config) ConsolidatedTotal() int {
	total := 0
	for _, d := range c.Consolidated {
		total += d.Files
	}
	return total
}
