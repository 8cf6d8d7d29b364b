package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestProtectedPathBlocking verifies protected paths are blocked
func TestProtectedPathBlocking(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root slash", "/", true},
		{"etc", "/etc", true},
		{"etc subdir", "/etc/ssh", true},
		{"bin file", "/bin/bash", true},
		{"usr local", "/usr/local", true},
		{"boot grub", "/boot/grub2", true},
		{"lib64", "/lib64", true},
		{"docsweep config", "/etc/docsweep/docsweep.yaml", true},
		{"docsweep db", "/var/lib/docsweep/history.db", true},
		{"tmp file", "/tmp/file.md", false},
		{"home docs", "/home/user/docs/README.md", false},
		{"etc lookalike", "/etcetera/file.md", false},
	}

	protected := defaultProtected(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsProtectedPath(tt.path, protected)
			if result != tt.expected {
				t.Errorf("IsProtectedPath(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestValidateBaseDir verifies protected base directories are refused up front
func TestValidateBaseDir(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		extra   []string
		wantErr bool
	}{
		{"filesystem root", "/", nil, true},
		{"under usr", "/usr/local/share/docs", nil, true},
		{"etc itself", "/etc", nil, true},
		{"docsweep state", "/var/lib/docsweep/docs", nil, true},
		{"extra protected", "/srv/keep/docs", []string{"/srv/keep"}, true},
		{"tmp", "/tmp/docs", nil, false},
		{"home", "/home/user/project/docs", nil, false},
		{"usr lookalike", "/usrdocs", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseDir(tt.base, tt.extra)
			if tt.wantErr && !errors.Is(err, ErrProtectedPath) {
				t.Errorf("ValidateBaseDir(%s) = %v, expected ErrProtectedPath", tt.base, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateBaseDir(%s) = %v, expected nil", tt.base, err)
			}
		})
	}

	if err := ValidateBaseDir("  ", nil); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("ValidateBaseDir(blank) = %v, expected ErrInvalidPath", err)
	}
}

// TestTraversalDetection verifies ".." segments are detected
func TestTraversalDetection(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"plain name", "NOTES.md", false},
		{"nested name", "docs/NOTES.md", false},
		{"dotdot at start", "../etc/passwd", true},
		{"dotdot middle", "docs/../../secret.md", true},
		{"dotdot at end", "docs/..", true},
		{"backslash separated", `docs\..\x.md`, filepath.Separator == '\\'},
		{"single dot ok", "./NOTES.md", false},
		{"dots in name ok", "v1..2.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectTraversal(tt.path)
			if result != tt.expected {
				t.Errorf("DetectTraversal(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestSymlinkEscapeDetection verifies symlinked directories leaving the base are detected
func TestSymlinkEscapeDetection(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "base")
	outsideDir := filepath.Join(tmpDir, "outside")
	insideDir := filepath.Join(baseDir, "docs")

	for _, d := range []string{insideDir, outsideDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}

	escapeLink := filepath.Join(baseDir, "elsewhere")
	if err := os.Symlink(outsideDir, escapeLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	safeLink := filepath.Join(baseDir, "alias")
	if err := os.Symlink(insideDir, safeLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name         string
		dir          string
		expectEscape bool
		expectError  bool
	}{
		{"symlink escapes", escapeLink, true, false},
		{"symlink stays inside", safeLink, false, false},
		{"regular dir inside", insideDir, false, false},
		{"nonexistent dir", filepath.Join(baseDir, "nonexistent"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escaped, err := DetectSymlinkEscape(tt.dir, baseDir)
			if tt.expectError {
				if err == nil {
					t.Errorf("DetectSymlinkEscape(%s) expected error, got nil", tt.dir)
				}
				return
			}
			if err != nil {
				t.Errorf("DetectSymlinkEscape(%s) unexpected error: %v", tt.dir, err)
			}
			if escaped != tt.expectEscape {
				t.Errorf("DetectSymlinkEscape(%s) = %v, expected %v", tt.dir, escaped, tt.expectEscape)
			}
		})
	}
}

// TestValidateTarget is the integration test for the full safety contract
func TestValidateTarget(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "base")
	outsideDir := filepath.Join(tmpDir, "outside")

	for _, d := range []string{filepath.Join(baseDir, "docs"), outsideDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	if err := os.Symlink(outsideDir, filepath.Join(baseDir, "elsewhere")); err != nil {
		t.Fatalf("Failed to create escaping symlink: %v", err)
	}
	// A symlink as the target itself is fine: Remove only drops the link
	fileLink := filepath.Join(baseDir, "link.md")
	if err := os.Symlink(filepath.Join(outsideDir, "keep.md"), fileLink); err != nil {
		t.Fatalf("Failed to create file symlink: %v", err)
	}

	validator := NewValidator(baseDir, []string{filepath.Join(baseDir, "vault")})

	tests := []struct {
		name        string
		target      string
		expectPath  string
		expectError error
	}{
		{"plain file", "NOTES.md", filepath.Join(baseDir, "NOTES.md"), nil},
		{"nested file", "docs/NOTES.md", filepath.Join(baseDir, "docs", "NOTES.md"), nil},
		{"missing parent", "gone/NOTES.md", filepath.Join(baseDir, "gone", "NOTES.md"), nil},
		{"symlinked file", "link.md", fileLink, nil},
		{"absolute name", "/etc/passwd", "", ErrOutsideBase},
		{"traversal attempt", "../outside/keep.md", "", ErrTraversal},
		{"escaping symlink dir", "elsewhere/keep.md", "", ErrSymlinkEscape},
		{"extra protected", "vault/secret.md", "", ErrProtectedPath},
		{"base itself", ".", "", ErrInvalidPath},
		{"empty name", "", "", ErrInvalidPath},
		{"whitespace name", "  ", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := validator.ValidateTarget(tt.target)
			if tt.expectError == nil {
				if err != nil {
					t.Fatalf("ValidateTarget(%q) unexpected error: %v", tt.target, err)
				}
				if path != tt.expectPath {
					t.Errorf("ValidateTarget(%q) = %s, expected %s", tt.target, path, tt.expectPath)
				}
				return
			}
			if err != tt.expectError {
				t.Errorf("ValidateTarget(%q) = %v, expected %v", tt.target, err, tt.expectError)
			}
			if !IsViolation(err) {
				t.Errorf("IsViolation(%v) = false", err)
			}
		})
	}
}

func TestIsViolation(t *testing.T) {
	if IsViolation(errors.New("permission denied")) {
		t.Error("plain error must not count as a safety violation")
	}
	if !IsViolation(fmt.Errorf("wrapped: %w", ErrTraversal)) {
		t.Error("wrapped sentinel should count as a safety violation")
	}
}

// TestHasPathPrefix verifies the path prefix checking logic
func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{"exact match", "/srv/docs", "/srv/docs", true},
		{"subdirectory", "/srv/docs/sub", "/srv/docs", true},
		{"not a prefix", "/srv/other", "/srv/docs", false},
		{"partial match", "/srv/docsother", "/srv/docs", false},
		{"root prefix only matches root", "/srv", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasPathPrefix(tt.path, tt.prefix)
			if result != tt.expected {
				t.Errorf("hasPathPrefix(%s, %s) = %v, expected %v", tt.path, tt.prefix, result, tt.expected)
			}
		})
	}
}
