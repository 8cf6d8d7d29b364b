package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
	ErrOutsideBase   = errors.New("outside base directory")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// IsViolation reports whether err came from the validator.
func IsViolation(err error) bool {
	return errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrProtectedPath) ||
		errors.Is(err, ErrOutsideBase) ||
		errors.Is(err, ErrTraversal) ||
		errors.Is(err, ErrSymlinkEscape)
}

// Validator guards every delete: targets are manifest names joined onto a
// single base directory and must stay inside it.
type Validator struct {
	BaseDir        string
	ProtectedPaths []string

	resolvedBase string
}

// NewValidator creates a validator for baseDir with optional additional protected paths
func NewValidator(baseDir string, extraProtected []string) *Validator {
	base := normalizeRoot(baseDir)
	resolved := base
	if r, err := filepath.EvalSymlinks(base); err == nil {
		resolved = filepath.Clean(r)
	}
	return &Validator{
		BaseDir:        base,
		ProtectedPaths: defaultProtected(extraProtected),
		resolvedBase:   resolved,
	}
}

// ValidateTarget turns a manifest name into the absolute path to delete.
// It is the single source of truth for delete authorization.
func (v *Validator) ValidateTarget(name string) (string, error) {
	if strings.TrimSpace(name) == "" || v.BaseDir == "" {
		return "", ErrInvalidPath
	}

	// 1. Names are relative to the base directory
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", ErrOutsideBase
	}

	// 2. Detect path traversal in raw input
	if DetectTraversal(name) {
		return "", ErrTraversal
	}

	p := filepath.Join(v.BaseDir, name)
	if p == v.BaseDir {
		return "", ErrInvalidPath
	}

	// 3. Ensure within base directory
	if !hasPathPrefix(p, v.BaseDir) {
		return "", ErrOutsideBase
	}

	// 4. Block protected paths (system-critical)
	if IsProtectedPath(p, v.ProtectedPaths) {
		return "", ErrProtectedPath
	}

	// 5. The target itself may be a symlink (removing it only drops the
	// link), but its parent directory must resolve inside the base.
	escaped, err := DetectSymlinkEscape(filepath.Dir(p), v.resolvedBase)
	if err != nil {
		// Missing parent: the file cannot exist either, let Lstat report it
		if os.IsNotExist(err) {
			return p, nil
		}
		return "", err
	}
	if escaped {
		return "", ErrSymlinkEscape
	}

	return p, nil
}

// ValidateBaseDir rejects a base directory that is itself protected or lies
// under a protected path. Every target below it would be blocked.
func ValidateBaseDir(baseDir string, extraProtected []string) error {
	base := normalizeRoot(baseDir)
	if base == "" {
		return ErrInvalidPath
	}
	if base == string(os.PathSeparator) {
		return fmt.Errorf("%w: %s is the filesystem root", ErrProtectedPath, base)
	}
	for _, prot := range defaultProtected(extraProtected) {
		prot = filepath.Clean(prot)
		if prot == string(os.PathSeparator) {
			continue
		}
		if hasPathPrefix(base, prot) {
			return fmt.Errorf("%w: %s is inside %s", ErrProtectedPath, base, prot)
		}
	}
	return nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves dir and reports whether it leaves root
func DetectSymlinkEscape(dir, root string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !hasPathPrefix(filepath.Clean(resolvedAbs), root), nil
}

// IsProtectedPath checks if path matches protected system paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" exact
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if p == prot || hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func normalizeRoot(root string) string {
	if strings.TrimSpace(root) == "" {
		return ""
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	return filepath.Clean(abs)
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/var/lib/docsweep",
		"/etc/docsweep",
	}
	return append(base, extra...)
}
