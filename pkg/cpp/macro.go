package cpp

import "github.com/kukrimate/mcc/pkg/pptoken"

// ReplaceKind distinguishes the five ways a replacement-list entry can
// contribute tokens during substitution.
type ReplaceKind int

const (
	RToken    ReplaceKind = iota // a literal token, copied verbatim
	RParamExp                    // a formal parameter, substituted fully macro-expanded
	RParamGlu                    // a formal parameter, substituted unexpanded (operand of ##)
	RParamStr                    // a formal parameter, substituted stringized (operand of #)
	RGlue                     // the ## operator itself, joining its neighbors
)

// Replace is one entry of a macro's replacement list.
type Replace struct {
	Kind     ReplaceKind
	Token    *pptoken.Token // the literal token (RToken) or the formal's own token (diagnostics)
	ParamIdx int            // formal index, for RParam*; zero and unused otherwise
}

// Macro is a single macro definition: either object-like or function-like,
// with its replacement list already decomposed into Replace entries so
// substitution never has to re-scan for # or ##.
type Macro struct {
	Name         string
	Enabled      bool // false while its own expansion is being rescanned
	FunctionLike bool
	Formals      []string // ordered formal names; last is "__VA_ARGS__" when HasVarargs
	HasVarargs   bool
	Replacement  []Replace
}

// FindFormal returns the index of name among macro's formals, or -1.
func (m *Macro) FindFormal(name string) int {
	for i, f := range m.Formals {
		if f == name {
			return i
		}
	}
	return -1
}

// MacroTable is the preprocessor's user-defined macro database. Pre-defined
// macros (see builtins.go) are looked up separately and are never stored
// here, so they cannot be redefined or undefined through this interface.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable returns an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Insert adds or replaces the definition of m.Name.
func (t *MacroTable) Insert(m *Macro) {
	t.macros[m.Name] = m
}

// Lookup returns the macro named name, if any.
func (t *MacroTable) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

// Delete removes the macro named name, if defined. Deleting an undefined
// name is not an error.
func (t *MacroTable) Delete(name string) {
	delete(t.macros, name)
}

// IsDefined reports whether name has a user-defined macro (built-ins are
// not considered; see IsBuiltin).
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}
