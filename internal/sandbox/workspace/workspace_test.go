package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"sandrun/internal/sandbox/workspace"
)

func TestCreatePopulateCleanup(t *testing.T) {
	root := t.TempDir()

	ws, err := workspace.Create(root)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ws.ID == "" {
		t.Fatal("expected a session id")
	}
	info, err := os.Stat(ws.Root)
	if err != nil {
		t.Fatalf("stat session dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("session path is not a directory: %s", ws.Root)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("session dir mode: got %o, want 700", info.Mode().Perm())
	}

	const code = "print('hello')\n"
	if err := ws.Populate(code, "main.py"); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if ws.SourcePath != filepath.Join(ws.Root, "main.py") {
		t.Fatalf("unexpected source path: %s", ws.SourcePath)
	}
	data, err := os.ReadFile(ws.SourcePath)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != code {
		t.Fatalf("source content: got %q", data)
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("session dir still exists after cleanup: %v", err)
	}
	// idempotent
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
}

func TestCreateUniqueDirs(t *testing.T) {
	root := t.TempDir()
	a, err := workspace.Create(root)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	defer a.Cleanup()
	b, err := workspace.Create(root)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	defer b.Cleanup()
	if a.Root == b.Root {
		t.Fatalf("sessions share a directory: %s", a.Root)
	}
}

func TestPopulateRequiresFileName(t *testing.T) {
	ws, err := workspace.Create(t.TempDir())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer ws.Cleanup()
	if err := ws.Populate("code", ""); err == nil {
		t.Fatal("expected error for empty source file name")
	}
}
