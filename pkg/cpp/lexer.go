// Package cpp implements the C99 preprocessing core: a lexer producing
// pptoken.Token values from a pkg/reader character source, a macro table
// and frame-stack expansion engine, a directive handler, and a
// constant-expression evaluator for conditional inclusion.
package cpp

import (
	"fmt"

	"github.com/kukrimate/mcc/pkg/pptoken"
	"github.com/kukrimate/mcc/pkg/reader"
)

// Lexer turns the character stream from a *reader.Reader into preprocessing
// tokens, tracking the whitespace/newline/directive flags a rescan or
// directive dispatch depends on.
type Lexer struct {
	rd *reader.Reader

	lwhite    bool
	lnew      bool
	directive bool // true until the next real token is produced
}

// NewLexer wraps rd. The first token it produces is always flagged as a
// potential directive start, matching a fresh logical line.
func NewLexer(rd *reader.Reader) *Lexer {
	return &Lexer{rd: rd, directive: true}
}

// Filename reports the underlying reader's name, for diagnostics and
// __FILE__.
func (l *Lexer) Filename() string { return l.rd.Filename() }

// Line reports the underlying reader's current logical line, for
// diagnostics and __LINE__.
func (l *Lexer) Line() int { return l.rd.Line() }

// Close releases the underlying reader's resources.
func (l *Lexer) Close() error { return l.rd.Close() }

// LexError reports a lexical failure together with the file:line it
// occurred at.
type LexError struct {
	File string
	Line int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (l *Lexer) errf(format string, args ...any) error {
	return &LexError{File: l.rd.Filename(), Line: l.rd.Line(), Msg: fmt.Sprintf(format, args...)}
}

func isIdentStart(c int) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c int) bool { return c >= '0' && c <= '9' }

func isIdentCont(c int) bool { return isIdentStart(c) || isDigit(c) }

// Next returns the next preprocessing token, or (nil, nil) at end of input.
// wantHeaderName switches '<' and the first '"' encountered into header-name
// scanning mode, for use immediately after #include.
func (l *Lexer) Next(wantHeaderName bool) (*pptoken.Token, error) {
	for {
		c := l.rd.Peek()
		switch {
		case c == reader.EOF:
			return nil, nil
		case c == '\r' || c == '\f' || c == '\v':
			l.rd.ReadByte()
			l.lwhite = true
			continue
		case c == ' ' || c == '\t':
			l.rd.ReadByte()
			l.lwhite = true
			continue
		case c == '\n':
			l.rd.ReadByte()
			l.lwhite = false
			l.lnew = true
			l.directive = true
			continue
		case c == '/' && l.rd.Peek2() == '/':
			l.rd.ReadByte()
			l.rd.ReadByte()
			for l.rd.Peek() != '\n' && l.rd.Peek() != reader.EOF {
				l.rd.ReadByte()
			}
			l.lwhite = true
			continue
		case c == '/' && l.rd.Peek2() == '*':
			l.rd.ReadByte()
			l.rd.ReadByte()
			if err := l.skipBlockComment(); err != nil {
				return nil, err
			}
			l.lwhite = true
			continue
		}
		return l.scanToken(wantHeaderName)
	}
}

func (l *Lexer) skipBlockComment() error {
	for {
		c := l.rd.ReadByte()
		if c == reader.EOF {
			return l.errf("unterminated block comment")
		}
		if c == '*' && l.rd.Peek() == '/' {
			l.rd.ReadByte()
			return nil
		}
	}
}

func (l *Lexer) flags() (lwhite, lnew, directive bool) {
	lwhite, lnew, directive = l.lwhite, l.lnew, l.directive
	l.lwhite, l.lnew, l.directive = false, false, false
	return
}

func (l *Lexer) finish(tok *pptoken.Token) *pptoken.Token {
	tok.LWhite, tok.LNew, tok.Directive = l.flags()
	return tok
}

func (l *Lexer) scanToken(wantHeaderName bool) (*pptoken.Token, error) {
	c := l.rd.Peek()

	if wantHeaderName && c == '<' {
		l.rd.ReadByte()
		spelling, err := l.scanRawUntil('>')
		if err != nil {
			return nil, err
		}
		return l.finish(pptoken.New(pptoken.HeaderNameAngled, spelling)), nil
	}
	if wantHeaderName && c == '"' {
		l.rd.ReadByte()
		spelling, err := l.scanRawUntil('"')
		if err != nil {
			return nil, err
		}
		return l.finish(pptoken.New(pptoken.HeaderNameQuoted, spelling)), nil
	}

	// Wide character/string literal: a bare 'L' immediately followed by a
	// quote is consumed as the literal's prefix rather than a standalone
	// identifier.
	if c == 'L' && (l.rd.Peek2() == '\'' || l.rd.Peek2() == '"') {
		l.rd.ReadByte()
		quote := l.rd.ReadByte()
		ty := pptoken.CharConst
		if quote == '"' {
			ty = pptoken.StringLit
		}
		spelling, err := l.scanEscapedUntil(byte(quote))
		if err != nil {
			return nil, err
		}
		tok := pptoken.New(ty, spelling)
		tok.Wide = true
		return l.finish(tok), nil
	}

	switch {
	case isIdentStart(c):
		return l.finish(l.scanIdentifier()), nil
	case isDigit(c) || (c == '.' && isDigit(l.rd.Peek2())):
		return l.finish(l.scanNumber()), nil
	case c == '\'':
		l.rd.ReadByte()
		spelling, err := l.scanEscapedUntil('\'')
		if err != nil {
			return nil, err
		}
		return l.finish(pptoken.New(pptoken.CharConst, spelling)), nil
	case c == '"':
		l.rd.ReadByte()
		spelling, err := l.scanEscapedUntil('"')
		if err != nil {
			return nil, err
		}
		return l.finish(pptoken.New(pptoken.StringLit, spelling)), nil
	}

	p, err := l.scanPunctuator()
	if err != nil {
		return nil, err
	}
	return l.finish(p), nil
}

func (l *Lexer) scanIdentifier() *pptoken.Token {
	buf := []byte{byte(l.rd.ReadByte())}
	for isIdentCont(l.rd.Peek()) {
		buf = append(buf, byte(l.rd.ReadByte()))
	}
	return pptoken.New(pptoken.Identifier, string(buf))
}

func (l *Lexer) scanNumber() *pptoken.Token {
	buf := []byte{byte(l.rd.ReadByte())}
	for {
		c := l.rd.Peek()
		switch {
		case c == '.' || c == '_' || isIdentCont(c):
			ch := l.rd.ReadByte()
			buf = append(buf, byte(ch))
			if ch == 'e' || ch == 'E' || ch == 'p' || ch == 'P' {
				if n := l.rd.Peek(); n == '+' || n == '-' {
					buf = append(buf, byte(l.rd.ReadByte()))
				}
			}
		default:
			return pptoken.New(pptoken.Number, string(buf))
		}
	}
}

// scanRawUntil copies characters verbatim (no escape processing) up to but
// not including end, for header names.
func (l *Lexer) scanRawUntil(end byte) (string, error) {
	var buf []byte
	for {
		c := l.rd.ReadByte()
		switch c {
		case int(end):
			return string(buf), nil
		case reader.EOF, '\n':
			return "", l.errf("unterminated header name")
		default:
			buf = append(buf, byte(c))
		}
	}
}

// scanEscapedUntil copies characters up to but not including end,
// preserving backslash escape sequences verbatim (decoding is the constant
// expression evaluator's job, not the lexer's).
func (l *Lexer) scanEscapedUntil(end byte) (string, error) {
	var buf []byte
	for {
		c := l.rd.ReadByte()
		switch c {
		case int(end):
			return string(buf), nil
		case reader.EOF, '\n':
			return "", l.errf("unterminated literal")
		case '\\':
			buf = append(buf, '\\')
			nc := l.rd.ReadByte()
			if nc == reader.EOF {
				return "", l.errf("unterminated literal")
			}
			buf = append(buf, byte(nc))
		default:
			buf = append(buf, byte(c))
		}
	}
}

func (l *Lexer) scanPunctuator() (*pptoken.Token, error) {
	c := l.rd.ReadByte()
	p := func(ty pptoken.Type) *pptoken.Token { return pptoken.NewPunct(ty, "") }
	digraph := func(ty pptoken.Type, spelling string) *pptoken.Token { return pptoken.NewPunct(ty, spelling) }

	switch byte(c) {
	case '[':
		return p(pptoken.LBracket), nil
	case ']':
		return p(pptoken.RBracket), nil
	case '(':
		return p(pptoken.LParen), nil
	case ')':
		return p(pptoken.RParen), nil
	case '{':
		return p(pptoken.LBrace), nil
	case '}':
		return p(pptoken.RBrace), nil
	case '~':
		return p(pptoken.Tilde), nil
	case '?':
		return p(pptoken.Question), nil
	case ';':
		return p(pptoken.Semicolon), nil
	case ',':
		return p(pptoken.Comma), nil
	case '.':
		if l.rd.ConsumeIfString("..") {
			return p(pptoken.Ellipsis), nil
		}
		return p(pptoken.Dot), nil
	case '-':
		switch {
		case l.rd.ConsumeIfChar('>'):
			return p(pptoken.Arrow), nil
		case l.rd.ConsumeIfChar('-'):
			return p(pptoken.Dec), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.SubAssign), nil
		}
		return p(pptoken.Minus), nil
	case '+':
		switch {
		case l.rd.ConsumeIfChar('+'):
			return p(pptoken.Inc), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.AddAssign), nil
		}
		return p(pptoken.Plus), nil
	case '&':
		switch {
		case l.rd.ConsumeIfChar('&'):
			return p(pptoken.AndAnd), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.AndAssign), nil
		}
		return p(pptoken.Amp), nil
	case '*':
		if l.rd.ConsumeIfChar('=') {
			return p(pptoken.MulAssign), nil
		}
		return p(pptoken.Star), nil
	case '!':
		if l.rd.ConsumeIfChar('=') {
			return p(pptoken.Ne), nil
		}
		return p(pptoken.Not), nil
	case '/':
		if l.rd.ConsumeIfChar('=') {
			return p(pptoken.DivAssign), nil
		}
		return p(pptoken.Slash), nil
	case '%':
		switch {
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.ModAssign), nil
		case l.rd.ConsumeIfChar('>'):
			return digraph(pptoken.RBrace, "%>"), nil
		case l.rd.ConsumeIfChar(':'):
			if l.rd.ConsumeIfString("%:") {
				return digraph(pptoken.HashHash, "%:%:"), nil
			}
			return digraph(pptoken.Hash, "%:"), nil
		}
		return p(pptoken.Percent), nil
	case '<':
		switch {
		case l.rd.ConsumeIfChar('<'):
			if l.rd.ConsumeIfChar('=') {
				return p(pptoken.ShlAssign), nil
			}
			return p(pptoken.Shl), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.Le), nil
		case l.rd.ConsumeIfChar(':'):
			return digraph(pptoken.LBracket, "<:"), nil
		case l.rd.ConsumeIfChar('%'):
			return digraph(pptoken.LBrace, "<%"), nil
		}
		return p(pptoken.Lt), nil
	case '>':
		switch {
		case l.rd.ConsumeIfChar('>'):
			if l.rd.ConsumeIfChar('=') {
				return p(pptoken.ShrAssign), nil
			}
			return p(pptoken.Shr), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.Ge), nil
		}
		return p(pptoken.Gt), nil
	case '=':
		if l.rd.ConsumeIfChar('=') {
			return p(pptoken.EqEq), nil
		}
		return p(pptoken.Assign), nil
	case '^':
		if l.rd.ConsumeIfChar('=') {
			return p(pptoken.XorAssign), nil
		}
		return p(pptoken.Caret), nil
	case '|':
		switch {
		case l.rd.ConsumeIfChar('|'):
			return p(pptoken.OrOr), nil
		case l.rd.ConsumeIfChar('='):
			return p(pptoken.OrAssign), nil
		}
		return p(pptoken.Pipe), nil
	case ':':
		if l.rd.ConsumeIfChar('>') {
			return digraph(pptoken.RBracket, ":>"), nil
		}
		return p(pptoken.Colon), nil
	case '#':
		if l.rd.ConsumeIfChar('#') {
			return p(pptoken.HashHash), nil
		}
		return p(pptoken.Hash), nil
	}

	return nil, l.errf("unlexable character %q", rune(c))
}
