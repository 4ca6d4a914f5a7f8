package cpp

import "github.com/kukrimate/mcc/pkg/pptoken"

// frameKind distinguishes the two kinds of frame on the preprocessor's
// frame stack.
type frameKind int

const (
	frameLexer frameKind = iota
	frameList
)

// frame is one entry of the frame stack. A lexer frame reads tokens
// directly from an open file or in-memory source and owns a conditional
// (#if/#ifdef/...) nesting stack scoped to that source. A list frame
// replays an in-memory token slice -- the result of a macro expansion, or
// tokens pushed back after a failed lookahead -- and optionally carries a
// back-reference to the macro it originated from, so the macro can be
// re-enabled once the frame is exhausted (ending its self-reference
// protection).
type frame struct {
	kind frameKind

	// frameLexer
	lex   *Lexer
	conds []condState // this source's own #if/#ifdef/.../#endif nesting

	// onPop runs once, when a lexer frame is discarded at EOF (list frames
	// never run it) -- used by #include to restore the
	// include resolver's current-directory and cycle-detection stack.
	onPop func()

	// frameList
	source *Macro
	list   []*pptoken.Token
	pos    int
}

// condKind is the kind of an open conditional-inclusion block.
type condKind int

const (
	condIf condKind = iota
	condElif
	condElse
)

// condState is one entry of a lexer frame's conditional-inclusion stack,
// one #if/#ifdef/#ifndef through its matching #endif. kind names the most
// recently opened branch of the chain (#if, #elif or #else);
// active reports whether tokens under the CURRENT branch should reach the
// caller; everTrue records whether some earlier branch of this chain
// already matched, so later #elif/#else know to stay closed; parentActive
// is a frozen snapshot of whether the enclosing scope was active when this
// #if was opened, so a chain nested inside a skipped block never turns on.
type condState struct {
	kind         condKind
	active       bool
	everTrue     bool
	parentActive bool
}
