// context.go implements the preprocessor's root aggregate: the frame
// stack, the macro table, and the pp_read/pp_next driver loop described by
// C99 6.10's processing model. Directive dispatch lives in directive.go; macro
// substitution in expand.go; constant-expression evaluation in eval.go.
package cpp

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kukrimate/mcc/pkg/pptoken"
	"github.com/kukrimate/mcc/pkg/reader"
)

// Options configures a Context: header search paths and command-line
// macro definitions/undefinitions, applied in the same order a compiler
// driver would apply its -I/-isystem/-D/-U flags.
type Options struct {
	Defines      []string // -D NAME or NAME=VALUE
	Undefines    []string // -U NAME
	IncludePaths []string // -I directories (quote and angle search)
	SystemPaths  []string // -isystem directories (searched after -I, for both forms)
}

// Context is the preprocessor's root aggregate: the frame
// stack, the macro table, the header-search configuration, and the
// translation start time __DATE__/__TIME__ report. A child context
// spawned to pre-expand macro actuals or evaluate a #if expression shares
// macros by reference but owns its own frame stack.
type Context struct {
	macros    *MacroTable
	resolver  *IncludeResolver
	startTime time.Time

	frames []*frame
}

// NewContext builds a root context, applying command-line -D/-U/-I/-isystem
// options the way cmd/mcc-cpp's flags do.
func NewContext(opts Options) (*Context, error) {
	c := &Context{
		macros:    NewMacroTable(),
		resolver:  NewIncludeResolver(),
		startTime: startTimeNow(),
	}
	for _, p := range opts.IncludePaths {
		c.resolver.AddUserPath(p)
	}
	for _, p := range opts.SystemPaths {
		c.resolver.AddSystemPath(p)
	}
	for _, d := range opts.Defines {
		if err := c.applyCmdlineDefine(d); err != nil {
			return nil, err
		}
	}
	for _, u := range opts.Undefines {
		c.macros.Delete(u)
	}
	return c, nil
}

// spawnChild returns a transient context that shares the macro table but
// owns an independent, empty frame stack -- used to pre-expand a macro
// actual and to expand a #if/#elif expression.
func (c *Context) spawnChild() *Context {
	return &Context{macros: c.macros, resolver: c.resolver, startTime: c.startTime}
}

// applyCmdlineDefine parses a -D argument ("NAME" or "NAME=VALUE", VALUE
// defaulting to "1") the same way a #define line is parsed, by feeding the
// reconstructed text through a throwaway lexer frame.
func (c *Context) applyCmdlineDefine(spec string) error {
	name, value, hasEq := strings.Cut(spec, "=")
	if !hasEq {
		value = "1"
	}
	rd := reader.NewString("<command-line>", name+" "+value)
	f := &frame{kind: frameLexer, lex: NewLexer(rd)}
	c.frames = append(c.frames, f)
	defer func() { c.frames = c.frames[:len(c.frames)-1] }()
	return c.doDefine(f)
}

// PreprocessFile reads and preprocesses path, returning the serialized
// output token stream (one newline per line-initial token, one space per
// whitespace-preceded token).
func (c *Context) PreprocessFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rd, err := reader.NewFile(abs)
	if err != nil {
		return "", err
	}
	c.resolver.SetCurrentFile(abs)
	if err := c.resolver.PushFile(abs); err != nil {
		return "", err
	}
	c.frames = append(c.frames, &frame{kind: frameLexer, lex: NewLexer(rd)})
	return c.run()
}

// PreprocessString preprocesses an in-memory source, reporting filename in
// diagnostics and __FILE__.
func (c *Context) PreprocessString(source, filename string) (string, error) {
	rd := reader.NewString(filename, source)
	c.resolver.SetCurrentFile(filename)
	c.frames = append(c.frames, &frame{kind: frameLexer, lex: NewLexer(rd)})
	return c.run()
}

func (c *Context) run() (string, error) {
	var out []*pptoken.Token
	for {
		tok, err := c.Next()
		if err != nil {
			return "", err
		}
		if tok == nil {
			break
		}
		out = append(out, tok)
	}
	return pptoken.Serialize(out), nil
}

// Next is the driver loop: pull a raw token, dispatch directives,
// drop tokens under an inactive conditional branch, expand macro names,
// and repeat until a token survives to hand back to the caller.
func (c *Context) Next() (*pptoken.Token, error) {
	for {
		tok, err := c.read()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, nil
		}

		// A directive line is always dispatched, even under an inactive
		// conditional branch: the #if/#ifdef/#elif/#else/#endif family must
		// still see every nested directive to track its own nesting depth
		// (C99 6.10.1). handleDirective's non-conditional handlers
		// (doDefine/doUndef/doInclude) are themselves responsible for
		// checking isActiveFrame and only draining their line, with no
		// macro-table or include side effect, while inactive.
		//
		// The Directive flag alone decides: it is only ever set by a lexer
		// on the first token of a logical line, and a '#' replayed out of a
		// macro expansion has had it cleared -- so a directive-introducing
		// '#' keeps working even when it reaches us through the one-token
		// pushback frame a previous directive's line-end lookahead left
		// behind.
		if tok.Type == pptoken.Hash && tok.Directive {
			if err := c.handleDirective(); err != nil {
				return nil, err
			}
			continue
		}

		if !c.isActive() {
			continue
		}

		if tok.Type == pptoken.Identifier && !tok.NoExpand {
			expanded, err := c.tryExpandIdentifier(tok)
			if err != nil {
				return nil, err
			}
			if expanded {
				continue
			}
		}

		return tok, nil
	}
}

// read is pp_read: the primitive that pops exhausted frames and returns the
// next raw token with no directive handling and no expansion.
func (c *Context) read() (*pptoken.Token, error) {
	for {
		if len(c.frames) == 0 {
			return nil, nil
		}
		f := c.frames[len(c.frames)-1]
		switch f.kind {
		case frameLexer:
			tok, err := f.lex.Next(false)
			if err != nil {
				return nil, err
			}
			if tok == nil {
				if len(f.conds) != 0 {
					return nil, &PpError{File: f.lex.Filename(), Line: f.lex.Line(),
						Msg: "unterminated conditional directive at end of file"}
				}
				f.lex.Close()
				if f.onPop != nil {
					f.onPop()
				}
				c.frames = c.frames[:len(c.frames)-1]
				continue
			}
			return tok, nil
		case frameList:
			if f.pos >= len(f.list) {
				if f.source != nil {
					f.source.Enabled = true
				}
				c.frames = c.frames[:len(c.frames)-1]
				continue
			}
			tok := f.list[f.pos]
			f.pos++
			return tok, nil
		}
	}
}

// pushList pushes a finite token list as a new frame, optionally naming the
// macro it expanded from so the macro is re-enabled when the frame empties
// (ending its self-reference protection).
func (c *Context) pushList(toks []*pptoken.Token, source *Macro) {
	c.frames = append(c.frames, &frame{kind: frameList, list: toks, source: source})
}

// innermostLexerFrame returns the topmost lexer frame, skipping any list
// frames stacked above it mid-rescan -- used for __FILE__/__LINE__ and for
// diagnostics.
func (c *Context) innermostLexerFrame() *frame {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].kind == frameLexer {
			return c.frames[i]
		}
	}
	return nil
}

func (c *Context) currentLocation() (string, int) {
	f := c.innermostLexerFrame()
	if f == nil {
		return "<unknown>", 0
	}
	return f.lex.Filename(), f.lex.Line()
}

// isActive reports whether the innermost lexer frame's conditional stack
// currently selects output.
func (c *Context) isActive() bool {
	f := c.innermostLexerFrame()
	if f == nil {
		return true
	}
	return isActiveFrame(f)
}

func isActiveFrame(f *frame) bool {
	for _, s := range f.conds {
		if !s.active {
			return false
		}
	}
	return true
}

func (c *Context) isDefinedName(name string) bool {
	if IsBuiltin(name) {
		return true
	}
	return c.macros.IsDefined(name)
}
