// Package profile defines runtime profiles for supported interpreters.
package profile

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// RuntimeProfile defines how one interpreter executes a user source file.
type RuntimeProfile struct {
	ID   string
	Name string
	// CommandTpl is the interpreter invocation with a {source} placeholder,
	// e.g. "python3 -I -B {source}".
	CommandTpl string
	// SourceFile is the filename the user code is written to inside the
	// session working directory.
	SourceFile string
	// RuntimePaths are read-only host paths the interpreter needs to start
	// (binary, shared libraries, standard library).
	RuntimePaths []string
	// AllowDegradedFS lets the session proceed when the kernel cannot
	// enforce the filesystem gate. The network and resource layers still
	// apply; the reduced guarantee is logged.
	AllowDegradedFS bool
}

// Python3 returns the default profile: CPython in isolated mode, so the
// interpreter ignores PYTHONPATH, user site-packages and startup hooks.
func Python3() RuntimeProfile {
	return RuntimeProfile{
		ID:         "python3",
		Name:       "Python 3",
		CommandTpl: "python3 -I -B {source}",
		SourceFile: "main.py",
		RuntimePaths: []string{
			"/usr",
			"/lib",
			"/lib64",
			"/etc/ld.so.cache",
		},
	}
}

// BuildCommand expands the command template against the user source path.
func (p RuntimeProfile) BuildCommand(sourcePath string) ([]string, error) {
	if p.CommandTpl == "" {
		return nil, fmt.Errorf("profile %q has no command template", p.ID)
	}
	expanded := strings.ReplaceAll(p.CommandTpl, "{source}", sourcePath)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command is empty after expansion")
	}
	return fields, nil
}

// BuildEnv returns the hardened environment for the child process. It is
// built from scratch rather than filtered, so ambient proxy settings and
// interpreter customization hooks never reach the sandbox.
func (p RuntimeProfile) BuildEnv(workDir string) []string {
	return []string{
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"LANG=C.UTF-8",
		"PYTHONNOUSERSITE=1",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
	}
}
