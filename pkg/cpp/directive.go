package cpp

import (
	"strings"

	"github.com/kukrimate/mcc/pkg/pptoken"
	"github.com/kukrimate/mcc/pkg/reader"
)

// handleDirective dispatches the directive whose leading '#' was just
// consumed. Only #define, #undef, #include and the conditional-inclusion
// family are recognized; #line, #error, #pragma and anything else fall
// through to the "unknown directive" error -- unless the directive sits
// inside an inactive conditional branch, where only the nesting of the
// conditional family matters and everything else is drained unexamined
// (so `#if 0` can fence off a `#error` line, the way it is meant to).
//
// The '#' may have reached the driver through the one-token pushback
// frame a previous directive's lookahead left behind, so the rest of the
// line is read from the innermost lexer frame, not the stack top.
func (c *Context) handleDirective() error {
	f := c.innermostLexerFrame()
	if f == nil {
		return c.errf("preprocessing directive inside a macro argument")
	}

	tok, err := c.nextOnLine(f)
	if err != nil {
		return err
	}
	if tok == nil {
		// "#" alone on a logical line: the null directive.
		return nil
	}
	if tok.Type != pptoken.Identifier {
		if !isActiveFrame(f) {
			_, err := c.collectLine(f)
			return err
		}
		return c.errf("invalid preprocessing directive")
	}

	switch tok.Spelling {
	case "define":
		return c.doDefine(f)
	case "undef":
		return c.doUndef(f)
	case "include":
		return c.doInclude(f)
	case "if":
		return c.doIf(f)
	case "ifdef":
		return c.doIfdef(f, true)
	case "ifndef":
		return c.doIfdef(f, false)
	case "elif":
		return c.doElif(f)
	case "else":
		return c.doElse(f)
	case "endif":
		return c.doEndif(f)
	default:
		if !isActiveFrame(f) {
			_, err := c.collectLine(f)
			return err
		}
		return c.errf("unknown preprocessing directive #%s", tok.Spelling)
	}
}

// nextOnLine reads the next token from f's own lexer, refusing to cross a
// logical-line boundary: if the token turns out to be the first token of
// a new line, it is replayed (via a one-token list frame) for the normal
// driver loop to see later, and nextOnLine reports the line as exhausted.
func (c *Context) nextOnLine(f *frame) (*pptoken.Token, error) {
	tok, err := f.lex.Next(false)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if tok.LNew {
		c.pushList([]*pptoken.Token{tok}, nil)
		return nil, nil
	}
	return tok, nil
}

// collectLine drains the remainder of f's current logical line.
func (c *Context) collectLine(f *frame) ([]*pptoken.Token, error) {
	var out []*pptoken.Token
	for {
		tok, err := c.nextOnLine(f)
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return out, nil
		}
		out = append(out, tok)
	}
}

// doDefine implements #define (C99 6.10.3), building a Macro from the
// directive line and installing it, replacing any earlier definition.
// While the enclosing conditional branch is inactive the logical line is
// only drained; the name/formal-list parsing and the macro-table insert
// are both skipped.
func (c *Context) doDefine(f *frame) error {
	if !isActiveFrame(f) {
		_, err := c.collectLine(f)
		return err
	}

	nameTok, err := c.nextOnLine(f)
	if err != nil {
		return err
	}
	if nameTok == nil || nameTok.Type != pptoken.Identifier {
		return c.errf("macro name must be an identifier")
	}
	name := nameTok.Spelling
	if IsBuiltin(name) {
		return c.errf("%q is a predefined macro and cannot be redefined", name)
	}

	m := &Macro{Name: name, Enabled: true}

	peek, err := c.nextOnLine(f)
	if err != nil {
		return err
	}

	var raw []*pptoken.Token
	switch {
	case peek != nil && peek.Type == pptoken.LParen && !peek.LWhite:
		m.FunctionLike = true
		if err := c.parseFormals(f, m); err != nil {
			return err
		}
		raw, err = c.collectLine(f)
		if err != nil {
			return err
		}
	case peek != nil:
		raw = append(raw, peek)
		rest, err := c.collectLine(f)
		if err != nil {
			return err
		}
		raw = append(raw, rest...)
	}

	if err := c.buildReplacement(m, raw); err != nil {
		return err
	}
	c.macros.Insert(m)
	return nil
}

// parseFormals reads a function-like macro's parameter list, up to and
// including the closing ')'; the opening '(' has already been consumed.
func (c *Context) parseFormals(f *frame, m *Macro) error {
	tok, err := c.nextOnLine(f)
	if err != nil {
		return err
	}
	if tok != nil && tok.Type == pptoken.RParen {
		return nil
	}

	for {
		if tok == nil {
			return c.errf("unterminated macro parameter list")
		}
		switch tok.Type {
		case pptoken.Ellipsis:
			m.HasVarargs = true
			m.Formals = append(m.Formals, "__VA_ARGS__")
			closeTok, err := c.nextOnLine(f)
			if err != nil {
				return err
			}
			if closeTok == nil || closeTok.Type != pptoken.RParen {
				return c.errf("expected ')' after '...' in macro parameter list")
			}
			return nil
		case pptoken.Identifier:
			if m.FindFormal(tok.Spelling) >= 0 {
				return c.errf("duplicate macro parameter %q", tok.Spelling)
			}
			m.Formals = append(m.Formals, tok.Spelling)
		default:
			return c.errf("invalid token in macro parameter list")
		}

		sep, err := c.nextOnLine(f)
		if err != nil {
			return err
		}
		if sep == nil {
			return c.errf("unterminated macro parameter list")
		}
		if sep.Type == pptoken.RParen {
			return nil
		}
		if sep.Type != pptoken.Comma {
			return c.errf("expected ',' or ')' in macro parameter list")
		}

		tok, err = c.nextOnLine(f)
		if err != nil {
			return err
		}
	}
}

// buildReplacement decomposes a macro's raw replacement-list tokens into
// m.Replacement, recognizing '#' (stringize, function-like macros only),
// '##' (paste) and occurrences of the macro's own formals.
func (c *Context) buildReplacement(m *Macro, raw []*pptoken.Token) error {
	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		switch {
		case tok.Type == pptoken.Hash && m.FunctionLike:
			if i+1 >= len(raw) {
				return c.errf("'#' is not followed by a macro parameter")
			}
			next := raw[i+1]
			idx := -1
			if next.Type == pptoken.Identifier {
				idx = m.FindFormal(next.Spelling)
			}
			if idx < 0 {
				return c.errf("'#' is not followed by a macro parameter")
			}
			m.Replacement = append(m.Replacement, Replace{Kind: RParamStr, ParamIdx: idx, Token: next})
			i++
		case tok.Type == pptoken.HashHash:
			if len(m.Replacement) == 0 {
				return c.errf("'##' cannot appear at the start of macro %q's replacement list", m.Name)
			}
			if i+1 >= len(raw) {
				return c.errf("'##' cannot appear at the end of macro %q's replacement list", m.Name)
			}
			m.Replacement = append(m.Replacement, Replace{Kind: RGlue})
		case tok.Type == pptoken.Identifier && m.FindFormal(tok.Spelling) >= 0:
			idx := m.FindFormal(tok.Spelling)
			kind := RParamExp
			adjacentGlue := (i+1 < len(raw) && raw[i+1].Type == pptoken.HashHash) ||
				(i > 0 && raw[i-1].Type == pptoken.HashHash)
			if adjacentGlue {
				kind = RParamGlu
			}
			m.Replacement = append(m.Replacement, Replace{Kind: kind, ParamIdx: idx, Token: tok})
		default:
			m.Replacement = append(m.Replacement, Replace{Kind: RToken, Token: pptoken.Duplicate(tok)})
		}
	}
	return nil
}

// doUndef implements #undef (C99 6.10.3.5). Like doDefine, it is a no-op
// beyond draining its logical line when the enclosing branch is inactive.
func (c *Context) doUndef(f *frame) error {
	if !isActiveFrame(f) {
		_, err := c.collectLine(f)
		return err
	}

	tok, err := c.nextOnLine(f)
	if err != nil {
		return err
	}
	if tok == nil || tok.Type != pptoken.Identifier {
		return c.errf("macro name must be an identifier")
	}
	if IsBuiltin(tok.Spelling) {
		return c.errf("%q is a predefined macro and cannot be undefined", tok.Spelling)
	}
	if _, err := c.collectLine(f); err != nil {
		return err
	}
	c.macros.Delete(tok.Spelling)
	return nil
}

// doInclude implements #include (C99 6.10.2): a literal header-name token,
// or else a sequence of tokens that must macro-expand to one. When the
// enclosing branch is inactive, the header is never opened or even
// header-name-lexed -- its line is drained as ordinary tokens, so a
// skipped `#include "missing.h"` never attempts to resolve "missing.h".
func (c *Context) doInclude(f *frame) error {
	if !isActiveFrame(f) {
		_, err := c.collectLine(f)
		return err
	}

	tok, err := f.lex.Next(true)
	if err != nil {
		return err
	}
	if tok == nil || tok.LNew {
		return c.errf("expected a header name after #include")
	}

	switch tok.Type {
	case pptoken.HeaderNameQuoted:
		if _, err := c.collectLine(f); err != nil {
			return err
		}
		return c.openInclude(f, tok.Spelling, IncludeQuoted)
	case pptoken.HeaderNameAngled:
		if _, err := c.collectLine(f); err != nil {
			return err
		}
		return c.openInclude(f, tok.Spelling, IncludeAngled)
	default:
		rest, err := c.collectLine(f)
		if err != nil {
			return err
		}
		raw := append([]*pptoken.Token{tok}, rest...)
		filename, kind, err := c.resolveMacroInclude(raw)
		if err != nil {
			return err
		}
		return c.openInclude(f, filename, kind)
	}
}

// resolveMacroInclude macro-expands the remainder of a #include line and
// interprets the result as either a string literal or a <...> sequence.
func (c *Context) resolveMacroInclude(raw []*pptoken.Token) (string, IncludeKind, error) {
	expanded, err := c.expandArgument(raw)
	if err != nil {
		return "", 0, err
	}
	if len(expanded) == 1 && expanded[0].Type == pptoken.StringLit {
		return expanded[0].Spelling, IncludeQuoted, nil
	}
	if len(expanded) >= 2 && expanded[0].Type == pptoken.Lt && expanded[len(expanded)-1].Type == pptoken.Gt {
		var sb strings.Builder
		for _, t := range expanded[1 : len(expanded)-1] {
			sb.WriteString(t.Text())
		}
		return sb.String(), IncludeAngled, nil
	}
	return "", 0, c.errf("malformed #include directive")
}

// openInclude resolves filename/kind to a path, pushes it as a new lexer
// frame, and arranges for the resolver's current-directory and
// cycle-detection state to unwind when that frame is exhausted.
func (c *Context) openInclude(f *frame, filename string, kind IncludeKind) error {
	if c.resolver.IncludeDepth() >= MaxIncludeDepth {
		return c.errf("#include nested too deeply")
	}
	path, err := c.resolver.Resolve(filename, kind)
	if err != nil {
		return err
	}
	rd, err := reader.NewFile(path)
	if err != nil {
		return c.errf("cannot open include file %q: %v", filename, err)
	}
	if err := c.resolver.PushFile(path); err != nil {
		return err
	}

	savedDir := c.resolver.CurrentDir
	c.resolver.SetCurrentFile(path)

	nf := &frame{kind: frameLexer, lex: NewLexer(rd)}
	nf.onPop = func() {
		c.resolver.PopFile()
		c.resolver.CurrentDir = savedDir
	}
	c.frames = append(c.frames, nf)
	return nil
}

// doIf implements #if (C99 6.10.1), evaluating its controlling expression
// only when the enclosing scope is itself active.
func (c *Context) doIf(f *frame) error {
	raw, err := c.collectLine(f)
	if err != nil {
		return err
	}
	parentActive := isActiveFrame(f)
	var matched bool
	if parentActive {
		val, err := c.evalConstExpr(raw)
		if err != nil {
			return err
		}
		matched = val != 0
	}
	f.conds = append(f.conds, condState{kind: condIf, active: parentActive && matched, everTrue: matched, parentActive: parentActive})
	return nil
}

// doIfdef implements #ifdef (want=true) and #ifndef (want=false). Inside
// an inactive branch the name is never checked -- the directive only has
// to push a (dead) conditional state so the matching #endif balances.
func (c *Context) doIfdef(f *frame, want bool) error {
	parentActive := isActiveFrame(f)
	tok, err := c.nextOnLine(f)
	if err != nil {
		return err
	}
	if tok != nil {
		if _, err := c.collectLine(f); err != nil {
			return err
		}
	}
	if !parentActive {
		f.conds = append(f.conds, condState{kind: condIf})
		return nil
	}
	if tok == nil || tok.Type != pptoken.Identifier {
		return c.errf("macro name must be an identifier")
	}
	matched := c.isDefinedName(tok.Spelling) == want
	f.conds = append(f.conds, condState{kind: condIf, active: matched, everTrue: matched, parentActive: true})
	return nil
}

// doElif implements #elif, evaluating its expression only when no earlier
// branch of the chain has already matched and the chain's parent scope is
// itself active.
func (c *Context) doElif(f *frame) error {
	raw, err := c.collectLine(f)
	if err != nil {
		return err
	}
	if len(f.conds) == 0 {
		return c.errf("#elif without #if")
	}
	top := &f.conds[len(f.conds)-1]
	if top.kind == condElse {
		return c.errf("#elif after #else")
	}

	var matched bool
	if top.parentActive && !top.everTrue {
		val, err := c.evalConstExpr(raw)
		if err != nil {
			return err
		}
		matched = val != 0
	}
	top.kind = condElif
	top.active = top.parentActive && !top.everTrue && matched
	if matched {
		top.everTrue = true
	}
	return nil
}

// doElse implements #else.
func (c *Context) doElse(f *frame) error {
	if _, err := c.collectLine(f); err != nil {
		return err
	}
	if len(f.conds) == 0 {
		return c.errf("#else without #if")
	}
	top := &f.conds[len(f.conds)-1]
	if top.kind == condElse {
		return c.errf("#else after #else")
	}
	top.kind = condElse
	top.active = top.parentActive && !top.everTrue
	if top.active {
		top.everTrue = true
	}
	return nil
}

// doEndif implements #endif.
func (c *Context) doEndif(f *frame) error {
	if _, err := c.collectLine(f); err != nil {
		return err
	}
	if len(f.conds) == 0 {
		return c.errf("#endif without #if")
	}
	f.conds = f.conds[:len(f.conds)-1]
	return nil
}
