package profile_test

import (
	"strings"
	"testing"

	"sandrun/internal/sandbox/profile"
)

func TestBuildCommand(t *testing.T) {
	cases := []struct {
		name    string
		tpl     string
		source  string
		want    []string
		wantErr bool
	}{
		{
			name:   "python_default",
			tpl:    "python3 -I -B {source}",
			source: "/work/main.py",
			want:   []string{"python3", "-I", "-B", "/work/main.py"},
		},
		{
			name:   "quoted_argument",
			tpl:    `python3 -c 'import sys' {source}`,
			source: "/work/main.py",
			want:   []string{"python3", "-c", "import sys", "/work/main.py"},
		},
		{
			name:    "empty_template",
			tpl:     "",
			wantErr: true,
		},
		{
			name:    "whitespace_only",
			tpl:     "   ",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := profile.RuntimeProfile{ID: "test", CommandTpl: tc.tpl}
			cmd, err := p.BuildCommand(tc.source)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", cmd)
				}
				return
			}
			if err != nil {
				t.Fatalf("build command: %v", err)
			}
			if len(cmd) != len(tc.want) {
				t.Fatalf("got %v, want %v", cmd, tc.want)
			}
			for i := range cmd {
				if cmd[i] != tc.want[i] {
					t.Fatalf("arg %d: got %q, want %q", i, cmd[i], tc.want[i])
				}
			}
		})
	}
}

func TestBuildEnvIsHardened(t *testing.T) {
	p := profile.Python3()
	env := p.BuildEnv("/work/session")

	byKey := map[string]string{}
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			t.Fatalf("malformed env entry %q", kv)
		}
		byKey[parts[0]] = parts[1]
	}

	if byKey["HOME"] != "/work/session" {
		t.Fatalf("HOME: got %q", byKey["HOME"])
	}
	if byKey["TMPDIR"] != "/work/session" {
		t.Fatalf("TMPDIR: got %q", byKey["TMPDIR"])
	}
	if byKey["PYTHONNOUSERSITE"] != "1" {
		t.Fatal("user site-packages not disabled")
	}

	// Nothing ambient may leak: proxy hints and interpreter hooks must
	// never appear.
	for _, banned := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "ALL_PROXY", "PYTHONSTARTUP", "PYTHONPATH"} {
		if _, ok := byKey[banned]; ok {
			t.Fatalf("env contains %s", banned)
		}
	}
}

func TestPython3Profile(t *testing.T) {
	p := profile.Python3()
	if p.SourceFile != "main.py" {
		t.Fatalf("source file: got %q", p.SourceFile)
	}
	if !strings.Contains(p.CommandTpl, "-I") {
		t.Fatalf("expected isolated mode flag in %q", p.CommandTpl)
	}
	if len(p.RuntimePaths) == 0 {
		t.Fatal("expected runtime paths for the interpreter")
	}
	if p.AllowDegradedFS {
		t.Fatal("default profile must not allow a degraded filesystem gate")
	}
}
