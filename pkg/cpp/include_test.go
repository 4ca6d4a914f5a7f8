package cpp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestResolver returns a resolver that will never consult the host
// compiler or filesystem defaults, so search-order tests stay hermetic.
func newTestResolver() *IncludeResolver {
	r := NewIncludeResolver()
	r.systemDetected = true
	return r
}

func TestResolveQuotedSearchesIncludingDirFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.h", "")

	r := newTestResolver()
	r.SetCurrentFile(filepath.Join(dir, "main.c"))

	path, err := r.Resolve("local.h", IncludeQuoted)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("resolved into %q, want %q", filepath.Dir(path), dir)
	}
}

func TestResolveAngledSkipsIncludingDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.h", "")

	r := newTestResolver()
	r.SetCurrentFile(filepath.Join(dir, "main.c"))

	if _, err := r.Resolve("local.h", IncludeAngled); err == nil {
		t.Fatal("angled include must not search the including file's directory")
	}
}

func TestResolveSearchOrder(t *testing.T) {
	currentDir := t.TempDir()
	userDir := t.TempDir()
	systemDir := t.TempDir()
	for _, d := range []string{currentDir, userDir, systemDir} {
		writeFile(t, d, "dup.h", "")
	}

	r := newTestResolver()
	r.SetCurrentFile(filepath.Join(currentDir, "main.c"))
	r.AddUserPath(userDir)
	r.AddSystemPath(systemDir)

	tests := []struct {
		name    string
		kind    IncludeKind
		wantDir string
	}{
		{"quoted prefers including dir", IncludeQuoted, currentDir},
		{"angled prefers -I over -isystem", IncludeAngled, userDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := r.Resolve("dup.h", tt.kind)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if filepath.Dir(path) != tt.wantDir {
				t.Errorf("resolved into %q, want %q", filepath.Dir(path), tt.wantDir)
			}
		})
	}
}

func TestResolveUserPathServesBothForms(t *testing.T) {
	userDir := t.TempDir()
	writeFile(t, userDir, "shared.h", "")

	r := newTestResolver()
	r.AddUserPath(userDir)

	for _, kind := range []IncludeKind{IncludeQuoted, IncludeAngled} {
		if _, err := r.Resolve("shared.h", kind); err != nil {
			t.Errorf("kind %v: %v", kind, err)
		}
	}
}

func TestResolveSystemPathAngled(t *testing.T) {
	sysDir := t.TempDir()
	writeFile(t, sysDir, "sys.h", "")

	r := newTestResolver()
	r.AddSystemPath(sysDir)

	if _, err := r.Resolve("sys.h", IncludeAngled); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestResolveRelativeSubdirectoryPath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "net")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "proto.h", "")

	r := newTestResolver()
	r.AddUserPath(root)

	path, err := r.Resolve("net/proto.h", IncludeQuoted)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(path) != "proto.h" {
		t.Errorf("got %q", path)
	}
}

func TestResolveNotFoundReportsIncludeError(t *testing.T) {
	r := newTestResolver()
	_, err := r.Resolve("no_such_header.h", IncludeQuoted)
	incErr, ok := err.(*IncludeError)
	if !ok {
		t.Fatalf("got %T (%v), want *IncludeError", err, err)
	}
	if incErr.Filename != "no_such_header.h" {
		t.Errorf("Filename = %q", incErr.Filename)
	}
	if !strings.Contains(incErr.Error(), "quoted") {
		t.Errorf("message should name the include form: %q", incErr.Error())
	}
}

func TestPushFileRejectsCycle(t *testing.T) {
	r := newTestResolver()
	for _, p := range []string{"/a.h", "/b.h", "/c.h"} {
		if err := r.PushFile(p); err != nil {
			t.Fatalf("PushFile(%s): %v", p, err)
		}
	}

	err := r.PushFile("/a.h")
	circ, ok := err.(*CircularIncludeError)
	if !ok {
		t.Fatalf("got %T (%v), want *CircularIncludeError", err, err)
	}
	if !strings.Contains(circ.Error(), "a.h") {
		t.Errorf("message should name the repeated header: %q", circ.Error())
	}
}

func TestPushPopTracksDepth(t *testing.T) {
	r := newTestResolver()
	r.PushFile("/a.h")
	r.PushFile("/b.h")
	if r.IncludeDepth() != 2 {
		t.Fatalf("depth = %d, want 2", r.IncludeDepth())
	}
	r.PopFile()
	r.PopFile()
	if r.IncludeDepth() != 0 {
		t.Fatalf("depth = %d, want 0", r.IncludeDepth())
	}
	// A popped path may be opened again: only live nesting is a cycle.
	if err := r.PushFile("/a.h"); err != nil {
		t.Fatalf("re-push after pop: %v", err)
	}
}

func TestDetectSystemPathsRunsOnce(t *testing.T) {
	r := NewIncludeResolver()
	r.DetectSystemPaths()
	n := len(r.SystemPaths)
	r.DetectSystemPaths()
	if len(r.SystemPaths) != n {
		t.Errorf("second detection changed the path list: %d -> %d", n, len(r.SystemPaths))
	}
}

func TestParseCompilerOutputFiltersBanner(t *testing.T) {
	real1 := t.TempDir()
	real2 := t.TempDir()
	output := "Using built-in specs.\n" +
		"Target: x86_64-linux-gnu\n" +
		"#include \"...\" search starts here:\n" +
		"#include <...> search starts here:\n" +
		" " + real1 + "\n" +
		" " + real2 + "\n" +
		" /no/such/dir/anywhere\n" +
		" /System/Library/Frameworks (framework directory)\n" +
		"End of search list.\n" +
		"trailing noise\n"

	got := parseCompilerOutput(output)
	want := []string{real1, real2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}
}
