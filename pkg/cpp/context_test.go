package cpp

import (
	"os"
	"path/filepath"
	"testing"
)

func preprocess(t *testing.T, src string) string {
	t.Helper()
	ctx, err := NewContext(Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	out, err := ctx.PreprocessString(src, "t.c")
	if err != nil {
		t.Fatalf("preprocess error: %v", err)
	}
	return out
}

func preprocessExpectErr(t *testing.T, src string) error {
	t.Helper()
	ctx, err := NewContext(Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	_, err = ctx.PreprocessString(src, "t.c")
	return err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestObjectLikeMacroChainReactivation(t *testing.T) {
	// Classic self-reference chain: X -> Y -> Z -> X, the final X must
	// survive unexpanded, and a second, independent use of X right after
	// must expand normally again (the chain's disablement doesn't leak).
	src := "#define X Y\n#define Y Z\n#define Z X\nX\nX\n"
	got := preprocess(t, src)
	want := "\nX\nX"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFunctionLikeMacroArgumentPreExpansion(t *testing.T) {
	src := "#define f(a) a*g\n#define g(a) f(a)\nf(2)(9)\n"
	got := preprocess(t, src)
	want := "\n2*9*g"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestObjectAndFunctionMacroInteraction(t *testing.T) {
	src := "#define x 3\n#define f(a) f(x * (a))\n#undef x\n#define x 2\nf(y+1)\n"
	got := preprocess(t, src)
	want := "\nf(2 * (y+1))"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVariadicMacroWithPunctuationArguments(t *testing.T) {
	src := "#define showlist(...) puts(#__VA_ARGS__)\nshowlist(The first, second, and third items.);\n"
	got := preprocess(t, src)
	want := "\nputs(\"The first, second, and third items.\");"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPasteAndStringizeCombination(t *testing.T) {
	src := "" +
		"#define hash_hash # ## #\n" +
		"#define mkstr(a) # a\n" +
		"#define in_between(a) mkstr(a)\n" +
		"#define join(c, d) in_between(c hash_hash d)\n" +
		"char p[] = join(x, y);\n"
	got := preprocess(t, src)
	want := "\nchar p[] = \"x ## y\";"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVariadicStringize(t *testing.T) {
	src := "#define report(fmt, ...) mkstr(fmt, __VA_ARGS__)\n#define mkstr(...) #__VA_ARGS__\nreport(\"x\", 1, 2)\n"
	got := preprocess(t, src)
	want := "\n\"\\\"x\\\", 1, 2\""
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNestedConditionalSkip(t *testing.T) {
	src := "" +
		"#if 0\n" +
		"#if 1\n" +
		"nope\n" +
		"#endif\n" +
		"also_nope\n" +
		"#else\n" +
		"yes\n" +
		"#endif\n"
	got := preprocess(t, src)
	want := "\nyes"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefineUndefSkippedInsideInactiveBranch(t *testing.T) {
	src := "#if 0\n#define A 1\n#endif\nA\n"
	got := preprocess(t, src)
	want := "\nA"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUndefSkippedInsideInactiveBranchLeavesMacroIntact(t *testing.T) {
	src := "#define A 1\n#if 0\n#undef A\n#endif\nA\n"
	got := preprocess(t, src)
	want := "\n1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIncludeSkippedInsideInactiveBranchDoesNotOpenFile(t *testing.T) {
	src := "#if 0\n#include \"missing.h\"\n#endif\nok\n"
	got := preprocess(t, src)
	want := "\nok"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIncludeSearchOrderAcrossDirectories(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	writeFile(t, dir1, "h.h", "int from_dir1;")
	writeFile(t, dir2, "h.h", "int from_dir2;")

	ctx, err := NewContext(Options{IncludePaths: []string{dir1, dir2}})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	src := "#include \"h.h\"\n"
	srcPath := writeFile(t, t.TempDir(), "main.c", src)
	out, err := ctx.PreprocessFile(srcPath)
	if err != nil {
		t.Fatalf("preprocess error: %v", err)
	}
	if out != "int from_dir1;" {
		t.Errorf("got %q", out)
	}
}

func TestUndefinedMacroNameRemainsLiteral(t *testing.T) {
	got := preprocess(t, "foo bar\n")
	if got != "foo bar" {
		t.Errorf("got %q", got)
	}
}

func TestObjectMacroSimpleSubstitution(t *testing.T) {
	got := preprocess(t, "#define N 42\nN + N\n")
	if got != "\n42 + 42" {
		t.Errorf("got %q", got)
	}
}

func TestFunctionMacroNotFollowedByParenIsLiteral(t *testing.T) {
	got := preprocess(t, "#define F(x) x+1\nF F(2)\n")
	if got != "\nF 2+1" {
		t.Errorf("got %q", got)
	}
}

func TestUndefRemovesMacro(t *testing.T) {
	got := preprocess(t, "#define X 1\n#undef X\nX\n")
	if got != "\nX" {
		t.Errorf("got %q", got)
	}
}

func TestElifChainPicksFirstTrueBranch(t *testing.T) {
	src := "#define V 2\n#if V == 1\none\n#elif V == 2\ntwo\n#elif V == 3\nthree\n#else\nother\n#endif\n"
	got := preprocess(t, src)
	want := "\ntwo"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCommandLineDefine(t *testing.T) {
	ctx, err := NewContext(Options{Defines: []string{"FOO=99"}})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	out, err := ctx.PreprocessString("FOO\n", "t.c")
	if err != nil {
		t.Fatalf("preprocess error: %v", err)
	}
	if out != "99" {
		t.Errorf("got %q", out)
	}
}

func TestErrorOnUnterminatedConditional(t *testing.T) {
	if err := preprocessExpectErr(t, "#if 1\nx\n"); err == nil {
		t.Fatalf("expected error for unterminated #if")
	}
}

func TestErrorOnElifWithoutIf(t *testing.T) {
	if err := preprocessExpectErr(t, "#elif 1\n"); err == nil {
		t.Fatalf("expected error for #elif without #if")
	}
}

func TestAngleIncludeSearchesDirectoriesInOrder(t *testing.T) {
	d1 := t.TempDir()
	d2 := t.TempDir()
	writeFile(t, d1, "h1.h", "#define M 1\n")
	writeFile(t, d2, "h1.h", "#define M 2\n")

	ctx, err := NewContext(Options{IncludePaths: []string{d1, d2}})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	srcPath := writeFile(t, t.TempDir(), "main.c", "#include <h1.h>\nM\n")
	out, err := ctx.PreprocessFile(srcPath)
	if err != nil {
		t.Fatalf("preprocess error: %v", err)
	}
	if out != "\n1" {
		t.Errorf("got %q, want %q", out, "\n1")
	}
}

func TestQuoteIncludeFallsBackToAngleSearch(t *testing.T) {
	// "h.h" is not next to the including file, but is on the -I list.
	inc := t.TempDir()
	writeFile(t, inc, "h.h", "found\n")

	ctx, err := NewContext(Options{IncludePaths: []string{inc}})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	srcPath := writeFile(t, t.TempDir(), "main.c", "#include \"h.h\"\n")
	out, err := ctx.PreprocessFile(srcPath)
	if err != nil {
		t.Fatalf("preprocess error: %v", err)
	}
	if out != "found" {
		t.Errorf("got %q", out)
	}
}

func TestIncludeMissingHeaderIsFatal(t *testing.T) {
	ctx, err := NewContext(Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	srcPath := writeFile(t, t.TempDir(), "main.c", "#include \"definitely_not_here.h\"\n")
	if _, err := ctx.PreprocessFile(srcPath); err == nil {
		t.Fatalf("expected include failure")
	}
}

func TestNonDirectiveStreamMatchesBareLexer(t *testing.T) {
	// With no directive lines and no macro names defined, pp output is the
	// lexer's own token stream, flags intact.
	src := "int main(void) {\n  return 1 + 2;\n}\n"
	toks := lexAll(t, src)
	got := preprocess(t, src)
	var want string
	for _, tok := range toks {
		if tok.LNew {
			want += "\n"
		} else if tok.LWhite {
			want += " "
		}
		want += tok.Text()
	}
	if got != want {
		t.Errorf("pp output %q diverges from lexer stream %q", got, want)
	}
}
