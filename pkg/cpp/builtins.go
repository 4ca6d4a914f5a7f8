package cpp

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/kukrimate/mcc/pkg/pptoken"
)

// builtin is a pre-defined macro's expansion handler. It returns the single
// token the macro expands to (tryExpandIdentifier pushes it as a one-token
// list frame), using ctx to reach the innermost lexer frame (for
// __FILE__/__LINE__) or the context's start time (for __DATE__/__TIME__).
type builtin func(ctx *Context) *pptoken.Token

var builtins = map[string]builtin{
	"__DATE__":         builtinDate,
	"__TIME__":         builtinTime,
	"__FILE__":         builtinFile,
	"__LINE__":         builtinLine,
	"__STDC__":         builtinOne,
	"__STDC_HOSTED__":  builtinOne,
	"__STDC_VERSION__": builtinVersion,
	// These keep glibc system headers happy when preprocessing real C.
	"__x86_64__":    builtinOne,
	"__amd64":       builtinOne,
	"__amd64__":     builtinOne,
	"__LP64__":      builtinOne,
	"_LP64":         builtinOne,
	"__ELF__":       builtinOne,
	"__gnu_linux__": builtinOne,
	"__linux":       builtinOne,
	"__linux__":     builtinOne,
	"__unix":        builtinOne,
	"__unix__":      builtinOne,
}

// IsBuiltin reports whether name is a pre-defined macro. Pre-defined macros
// cannot be #undef'd or shadowed by a user #define.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func builtinOne(ctx *Context) *pptoken.Token     { return pptoken.New(pptoken.Number, "1") }
func builtinVersion(ctx *Context) *pptoken.Token { return pptoken.New(pptoken.Number, "199901L") }

func builtinDate(ctx *Context) *pptoken.Token {
	return pptoken.New(pptoken.StringLit, ctx.startTime.Format("Jan  2 2006"))
}

func builtinTime(ctx *Context) *pptoken.Token {
	return pptoken.New(pptoken.StringLit, ctx.startTime.Format("15:04:05"))
}

// builtinFile emits the basename of the innermost lexer frame's source,
// never the directory component.
func builtinFile(ctx *Context) *pptoken.Token {
	f := ctx.innermostLexerFrame()
	name := "unknown"
	if f != nil {
		name = filepath.Base(f.lex.Filename())
	}
	return pptoken.New(pptoken.StringLit, name)
}

func builtinLine(ctx *Context) *pptoken.Token {
	f := ctx.innermostLexerFrame()
	line := 1
	if f != nil {
		line = f.lex.Line()
	}
	return pptoken.New(pptoken.Number, strconv.Itoa(line))
}

// startTimeNow is overridden in tests to keep __DATE__/__TIME__
// deterministic.
var startTimeNow = time.Now
