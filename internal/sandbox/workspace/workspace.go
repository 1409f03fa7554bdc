// Package workspace manages the private per-session working directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a freshly created, uniquely named directory owned by one
// session for its entire lifetime. It is removed on every exit path.
type Workspace struct {
	ID         string
	Root       string
	SourcePath string

	cleaned bool
}

// Create makes the session directory under workRoot. The uuid name keeps
// concurrent sessions from colliding; mode 0700 keeps other users out.
func Create(workRoot string) (*Workspace, error) {
	if workRoot == "" {
		workRoot = filepath.Join(os.TempDir(), "sandrun")
	}
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	id := uuid.NewString()
	root := filepath.Join(workRoot, id)
	if err := os.Mkdir(root, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	// Resolve symlinks once so the directory recorded in the policy is
	// the same path the kernel sees (os.TempDir is a symlink on some
	// hosts).
	resolved, err := filepath.EvalSymlinks(root)
	if err == nil {
		root = resolved
	}
	return &Workspace{ID: id, Root: root}, nil
}

// Populate writes the user source into the session directory.
func (w *Workspace) Populate(code, sourceFile string) error {
	if sourceFile == "" {
		return fmt.Errorf("source file name is required")
	}
	path := filepath.Join(w.Root, sourceFile)
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		return fmt.Errorf("write user source: %w", err)
	}
	w.SourcePath = path
	return nil
}

// Cleanup removes the session directory. Safe to call more than once.
func (w *Workspace) Cleanup() error {
	if w == nil || w.cleaned {
		return nil
	}
	w.cleaned = true
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}
