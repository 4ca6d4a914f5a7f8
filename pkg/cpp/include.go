package cpp

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// compilerProbeTimeout bounds how long DetectSystemPaths will wait on a
// misbehaving "cc"/"gcc"/"clang" before giving up and falling back to
// defaultSystemPaths; a hung compiler invocation must not hang the whole
// preprocessor run.
const compilerProbeTimeout = 2 * time.Second

var (
	searchListAngledStart = regexp.MustCompile(`#include <\.\.\.> search starts here:`)
	searchListQuotedStart = regexp.MustCompile(`#include "\.\.\." search starts here:`)
	searchListEnd         = regexp.MustCompile(`End of search list\.?`)
)

// IncludeKind distinguishes #include "file" from #include <file>: the former searches the including file's own directory before
// falling through to the angle-bracket search list; the latter skips
// straight to it.
type IncludeKind int

const (
	IncludeQuoted IncludeKind = iota
	IncludeAngled
)

// MaxIncludeDepth bounds #include nesting, so a runaway include chain
// fails with a diagnosable error instead of exhausting file descriptors.
const MaxIncludeDepth = 200

// IncludeResolver owns the header-search configuration and the
// include stack used for cycle detection. One resolver is shared by a root
// Context and every #include it processes; it does not own any open file
// handles itself (Context.openInclude does that).
type IncludeResolver struct {
	UserPaths   []string // -I directories, searched after the current file's own directory
	SystemPaths []string // -isystem directories plus auto-detected/default system paths

	// CurrentDir is the directory of the file currently being lexed, used
	// as the first search location for a quote-form #include.
	CurrentDir string

	includeStack   []string        // absolute paths of files currently open, innermost last
	openSet        map[string]bool // same paths, for an O(1) cycle check
	systemDetected bool            // DetectSystemPaths has already run
}

// NewIncludeResolver returns a resolver with empty search paths; system
// paths are populated lazily on first Resolve call (or explicitly via
// DetectSystemPaths).
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{openSet: make(map[string]bool)}
}

// AddUserPath appends a -I directory to the quote/angle search list.
func (r *IncludeResolver) AddUserPath(path string) {
	r.UserPaths = append(r.UserPaths, path)
}

// AddSystemPath appends a -isystem directory, searched after -I paths.
func (r *IncludeResolver) AddSystemPath(path string) {
	r.SystemPaths = append(r.SystemPaths, path)
}

// SetCurrentFile records the directory of the file now being processed, so
// a subsequent quote-form #include searches relative to it.
func (r *IncludeResolver) SetCurrentFile(filename string) {
	r.CurrentDir = filepath.Dir(filename)
}

// DetectSystemPaths populates SystemPaths from the host's C compiler (or a
// hard-coded fallback) exactly once; later calls are no-ops. Detection is
// deferred until Resolve actually needs to search system paths.
func (r *IncludeResolver) DetectSystemPaths() {
	if r.systemDetected {
		return
	}
	r.systemDetected = true

	if detected := queryCompilerIncludePaths(); len(detected) > 0 {
		r.SystemPaths = append(r.SystemPaths, detected...)
		return
	}
	r.SystemPaths = append(r.SystemPaths, defaultSystemPaths()...)
}

// searchList builds the ordered list of directories Resolve walks for kind:
// quote-form includes try the including file's own directory first; both
// forms then fall through -I paths and finally -isystem/default paths.
func (r *IncludeResolver) searchList(kind IncludeKind) []string {
	r.DetectSystemPaths()

	var dirs []string
	if kind == IncludeQuoted && r.CurrentDir != "" {
		dirs = append(dirs, r.CurrentDir)
	}
	dirs = append(dirs, r.UserPaths...)
	dirs = append(dirs, r.SystemPaths...)
	return dirs
}

// Resolve finds filename along kind's search list and returns its absolute
// path, or an *IncludeError if no directory in the list contains it.
func (r *IncludeResolver) Resolve(filename string, kind IncludeKind) (string, error) {
	for _, dir := range r.searchList(kind) {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}
		return abs, nil
	}
	return "", &IncludeError{Filename: filename, Kind: kind}
}

// PushFile records path as the innermost open file, failing with a
// *CircularIncludeError if it already appears on the stack (a header that
// (transitively) includes itself). Membership is tracked in openSet so the
// check stays O(1) regardless of how deep the include chain runs; the slice
// is kept alongside it purely for the ordered stack a diagnostic wants.
func (r *IncludeResolver) PushFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if r.openSet == nil {
		r.openSet = make(map[string]bool)
	}
	if r.openSet[abs] {
		return &CircularIncludeError{Path: abs, Stack: r.includeStack}
	}
	r.openSet[abs] = true
	r.includeStack = append(r.includeStack, abs)
	return nil
}

// PopFile removes the innermost open file from the include stack, mirroring
// a lexer frame's EOF.
func (r *IncludeResolver) PopFile() {
	if len(r.includeStack) == 0 {
		return
	}
	last := r.includeStack[len(r.includeStack)-1]
	r.includeStack = r.includeStack[:len(r.includeStack)-1]
	delete(r.openSet, last)
}

// IncludeStack returns the paths currently open, innermost last, for a
// diagnostic that wants to show the full include chain.
func (r *IncludeResolver) IncludeStack() []string {
	return r.includeStack
}

// IncludeDepth reports how many files are currently nested.
func (r *IncludeResolver) IncludeDepth() int {
	return len(r.includeStack)
}

// IncludeError reports that filename could not be located on kind's search
// list.
type IncludeError struct {
	Filename string
	Kind     IncludeKind
}

func (e *IncludeError) Error() string {
	kind := "quoted"
	if e.Kind == IncludeAngled {
		kind = "angled"
	}
	return "include file not found: " + e.Filename + " (" + kind + ")"
}

// CircularIncludeError reports a header transitively including itself,
// carrying the full include chain for diagnostics.
type CircularIncludeError struct {
	Path  string
	Stack []string
}

func (e *CircularIncludeError) Error() string {
	var sb strings.Builder
	sb.WriteString("circular include detected: ")
	sb.WriteString(e.Path)
	sb.WriteString("\ninclude stack:\n")
	for i, f := range e.Stack {
		sb.WriteString(strings.Repeat("  ", i+1))
		sb.WriteString(filepath.Base(f))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// queryCompilerIncludePaths asks the first of cc/gcc/clang found on PATH
// for its built-in system include search list, the same way a "what would
// the real compiler see" driver would bootstrap its own -isystem defaults.
func queryCompilerIncludePaths() []string {
	for _, compiler := range []string{"cc", "gcc", "clang"} {
		path, err := exec.LookPath(compiler)
		if err != nil {
			continue
		}
		if paths := queryCompiler(path); len(paths) > 0 {
			return paths
		}
	}
	return nil
}

// queryCompiler runs `compiler -v -E -x c -` over empty input and parses
// the include search list gcc/clang print to stderr in verbose mode. The
// call is bounded by compilerProbeTimeout so a broken or hanging compiler
// on PATH can't stall header resolution indefinitely.
func queryCompiler(compiler string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), compilerProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, compiler, "-v", "-E", "-x", "c", "-")
	cmd.Stdin = strings.NewReader("")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run() // the compiler "succeeding" is irrelevant; only stderr is read
	return parseCompilerOutput(stderr.String())
}

// parseCompilerOutput extracts the directory list between a compiler's
// "#include <...> search starts here:" banner and "End of search list.",
// dropping macOS framework-directory entries and anything that no longer
// exists on disk.
func parseCompilerOutput(output string) []string {
	var paths []string
	inList := false
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case searchListAngledStart.MatchString(line), searchListQuotedStart.MatchString(line):
			inList = true
			continue
		case searchListEnd.MatchString(line):
			inList = false
			continue
		}
		if !inList {
			continue
		}
		path := strings.TrimSpace(line)
		if strings.HasSuffix(path, " (framework directory)") {
			continue
		}
		if path != "" && dirExists(path) {
			paths = append(paths, path)
		}
	}
	return paths
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// defaultSystemPaths is the last-resort system include list when no host
// compiler could be queried; a plain configuration default.
func defaultSystemPaths() []string {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Library/Developer/CommandLineTools/SDKs/MacOSX.sdk/usr/include",
			"/Applications/Xcode.app/Contents/Developer/Platforms/MacOSX.platform/Developer/SDKs/MacOSX.sdk/usr/include",
			"/usr/local/include",
		}
	default:
		candidates = []string{"/usr/include", "/usr/local/include"}
	}

	var paths []string
	for _, p := range candidates {
		if dirExists(p) {
			paths = append(paths, p)
		}
	}
	if runtime.GOOS == "linux" {
		paths = append(paths, gccIncludePaths()...)
	}
	return paths
}

// gccIncludePaths walks /usr/lib/gcc looking for version-specific "include"
// directories gcc installs alongside itself, the way a Linux distribution
// typically lays them out.
func gccIncludePaths() []string {
	const gccBase = "/usr/lib/gcc"
	if !dirExists(gccBase) {
		return nil
	}
	var paths []string
	_ = filepath.Walk(gccBase, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && info.Name() == "include" {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}
