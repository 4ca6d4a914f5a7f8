package cpp

import (
	"github.com/kukrimate/mcc/pkg/pptoken"
	"github.com/kukrimate/mcc/pkg/reader"
)

// paste implements the ## operator (C99 6.10.3.3): the spelling of left and
// right are concatenated and the result is re-lexed as a single
// preprocessing token. If left or right is a placemarker (an empty macro
// argument pasted against a real token), the paste degenerates to the
// non-placemarker operand; pasting two placemarkers yields a placemarker.
// A concatenation that does not lex back to exactly one token is a fatal
// error (C99 6.10.3.3p3).
func (c *Context) paste(left, right *pptoken.Token) (*pptoken.Token, error) {
	if left.Type == pptoken.Placemarker && right.Type == pptoken.Placemarker {
		return pptoken.New(pptoken.Placemarker, ""), nil
	}
	if left.Type == pptoken.Placemarker {
		return pptoken.Duplicate(right), nil
	}
	if right.Type == pptoken.Placemarker {
		return pptoken.Duplicate(left), nil
	}

	// Text, not Spelling: a literal operand must re-enter the lexer with
	// its delimiters, or "a" ## "b" would come back as the identifier ab.
	text := left.Text() + right.Text()
	rd := reader.NewString("<paste>", text)
	lex := NewLexer(rd)

	tok, err := lex.Next(false)
	if err != nil {
		return nil, c.errf("pasting %q and %q does not form a valid preprocessing token",
			left.Text(), right.Text())
	}
	if tok == nil {
		return nil, c.errf("pasting %q and %q produces an empty token", left.Text(), right.Text())
	}
	extra, err := lex.Next(false)
	if err != nil || extra != nil {
		return nil, c.errf("pasting %q and %q does not form a single preprocessing token",
			left.Text(), right.Text())
	}
	tok.LWhite, tok.LNew = left.LWhite, left.LNew
	return tok, nil
}
