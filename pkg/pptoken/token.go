// Package pptoken defines the preprocessing-token model shared by the
// lexer, macro expander and directive handler, plus the token utilities
// (stringize, list duplication) that do not require a live lexer.
package pptoken

import "strings"

// Type is the closed set of C99 preprocessing-token categories this core
// produces. Header names (HeaderNameQuoted/HeaderNameAngled) are only ever
// produced while the lexer is in header-name mode and never escape the
// directive handler that requested them.
type Type int

const (
	Identifier Type = iota
	Number
	CharConst
	StringLit

	HeaderNameQuoted // "name" form
	HeaderNameAngled // <name> form

	// Punctuators, including the digraphs, which lex to the same Type as
	// their primary spelling.
	LBracket
	RBracket
	LParen
	RParen
	LBrace
	RBrace
	Dot
	Arrow
	Inc
	Dec
	Amp
	Star
	Plus
	Minus
	Tilde
	Not
	Slash
	Percent
	Shl
	Shr
	Lt
	Gt
	Le
	Ge
	EqEq
	Ne
	Caret
	Pipe
	AndAnd
	OrOr
	Question
	Colon
	Semicolon
	Ellipsis
	Assign
	MulAssign
	DivAssign
	ModAssign
	AddAssign
	SubAssign
	ShlAssign
	ShrAssign
	AndAssign
	XorAssign
	OrAssign
	Comma
	Hash
	HashHash

	// Other is the C99 grammar's catch-all "each non-white-space character
	// that cannot be one of the above"; reserved for fidelity with the
	// token model this core was distilled from, but the lexer never
	// produces it (an unrecognized byte is a lexical error instead).
	Other

	// Placemarker stands in for an empty macro argument during ## pasting
	// and parameter substitution (cpp.RParamGlu/RParamExp); it never reaches a token consumer
	// outside the expansion engine.
	Placemarker
)

var punctuatorSpelling = map[Type]string{
	LBracket:  "[",
	RBracket:  "]",
	LParen:    "(",
	RParen:    ")",
	LBrace:    "{",
	RBrace:    "}",
	Dot:       ".",
	Arrow:     "->",
	Inc:       "++",
	Dec:       "--",
	Amp:       "&",
	Star:      "*",
	Plus:      "+",
	Minus:     "-",
	Tilde:     "~",
	Not:       "!",
	Slash:     "/",
	Percent:   "%",
	Shl:       "<<",
	Shr:       ">>",
	Lt:        "<",
	Gt:        ">",
	Le:        "<=",
	Ge:        ">=",
	EqEq:      "==",
	Ne:        "!=",
	Caret:     "^",
	Pipe:      "|",
	AndAnd:    "&&",
	OrOr:      "||",
	Question:  "?",
	Colon:     ":",
	Semicolon: ";",
	Ellipsis:  "...",
	Assign:    "=",
	MulAssign: "*=",
	DivAssign: "/=",
	ModAssign: "%=",
	AddAssign: "+=",
	SubAssign: "-=",
	ShlAssign: "<<=",
	ShrAssign: ">>=",
	AndAssign: "&=",
	XorAssign: "^=",
	OrAssign:  "|=",
	Comma:     ",",
	Hash:      "#",
	HashHash:  "##",
}

// IsPunctuator reports whether t is one of the fixed punctuator kinds
// (including Hash/HashHash).
func IsPunctuator(t Type) bool {
	_, ok := punctuatorSpelling[t]
	return ok
}

// Token is a single preprocessing token. Spelling holds the token's raw
// text: the identifier/number text, the literal content with surrounding
// quotes/brackets stripped (re-added on demand by Text), or the
// as-scanned punctuator spelling (so a digraph like "<:" stringizes using
// its own spelling rather than "["'s).
type Token struct {
	Type      Type
	Spelling  string
	Wide      bool // literal carried an L prefix (CharConst/StringLit only)
	LWhite    bool // preceded by whitespace on this logical line
	LNew      bool // first token of a new logical line
	Directive bool // first non-whitespace token of its logical line
	NoExpand  bool // blue-painted: permanently ineligible for expansion
}

// New constructs a token with no flags set.
func New(t Type, spelling string) *Token {
	return &Token{Type: t, Spelling: spelling}
}

// NewPunct constructs a punctuator token, deriving its canonical spelling
// from t unless spelling is supplied (for digraphs, which keep their own
// surface form).
func NewPunct(t Type, spelling string) *Token {
	if spelling == "" {
		spelling = punctuatorSpelling[t]
	}
	return &Token{Type: t, Spelling: spelling}
}

// Duplicate returns a deep copy of tok with no lexer-specific state aliased.
func Duplicate(tok *Token) *Token {
	cp := *tok
	return &cp
}

// DuplicateList deep-copies an entire token slice in order.
func DuplicateList(toks []*Token) []*Token {
	out := make([]*Token, len(toks))
	for i, t := range toks {
		out[i] = Duplicate(t)
	}
	return out
}

// Text reconstructs the token's surface spelling, re-adding the quotes or
// angle brackets that Spelling omits for literal and header-name tokens.
func (t *Token) Text() string {
	prefix := ""
	if t.Wide {
		prefix = "L"
	}
	switch t.Type {
	case CharConst:
		return prefix + "'" + t.Spelling + "'"
	case StringLit:
		return prefix + "\"" + t.Spelling + "\""
	case HeaderNameQuoted:
		return "\"" + t.Spelling + "\""
	case HeaderNameAngled:
		return "<" + t.Spelling + ">"
	case Placemarker:
		return ""
	default:
		return t.Spelling
	}
}

// Serialize writes a token sequence the way a preprocessor output pass
// would: a newline where LNew is set, else a single space where LWhite is
// set, then the token's surface text.
func Serialize(toks []*Token) string {
	var sb strings.Builder
	for _, t := range toks {
		if t.LNew {
			sb.WriteByte('\n')
		} else if t.LWhite {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// Stringize implements the # operator (C99 6.10.3.2): the spelling of each
// token is concatenated with a single space standing in for any run of
// whitespace between tokens (leading/trailing whitespace of the whole
// sequence is dropped), and any " or \ appearing in the spelling of a
// string or character literal operand is escaped so the result is a valid
// string literal.
func Stringize(toks []*Token) *Token {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && (t.LWhite || t.LNew) {
			sb.WriteByte(' ')
		}
		sb.WriteString(escapedSpelling(t))
	}
	return New(StringLit, sb.String())
}

func escapedSpelling(t *Token) string {
	text := t.Text()
	if t.Type != StringLit && t.Type != CharConst {
		return text
	}
	var sb strings.Builder
	for _, c := range []byte(text) {
		if c == '"' || c == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
