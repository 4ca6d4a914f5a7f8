package cpp

import "github.com/kukrimate/mcc/pkg/pptoken"

// tryExpandIdentifier attempts to treat tok as a macro invocation. It
// returns true if the replacement (possibly empty) was pushed onto the
// frame stack in tok's place, false if tok must be emitted literally (not
// a macro, blue-painted against self-reference, or a function-like macro
// name not followed by '(').
func (c *Context) tryExpandIdentifier(tok *pptoken.Token) (bool, error) {
	name := tok.Spelling

	if _, shadowed := c.macros.Lookup(name); !shadowed {
		if b, ok := builtins[name]; ok {
			rep := b(c)
			rep.LWhite, rep.LNew = tok.LWhite, tok.LNew
			c.pushList([]*pptoken.Token{rep}, nil)
			return true, nil
		}
	}

	m, ok := c.macros.Lookup(name)
	if !ok {
		return false, nil
	}
	if !m.Enabled {
		// self-reference: paint permanently so a later rescan (after this
		// macro's own expansion eventually finishes and re-enables it)
		// still emits the name literally.
		tok.NoExpand = true
		return false, nil
	}

	if !m.FunctionLike {
		toks, err := c.substitute(m, nil)
		if err != nil {
			return false, err
		}
		c.finishExpansion(m, tok, toks)
		return true, nil
	}

	next, err := c.lookAheadParen()
	if err != nil {
		return false, err
	}
	if next == nil || next.Type != pptoken.LParen {
		if next != nil {
			c.pushList([]*pptoken.Token{next}, nil)
		}
		return false, nil
	}

	rawArgs, err := c.captureArgs(m)
	if err != nil {
		return false, err
	}
	args, err := c.checkArity(m, rawArgs)
	if err != nil {
		return false, err
	}
	toks, err := c.substitute(m, args)
	if err != nil {
		return false, err
	}
	c.finishExpansion(m, tok, toks)
	return true, nil
}

// lookAheadParen pulls the next token a function-like macro invocation
// would consume, processing any directive line and skipping any inactive
// conditional region along the way -- exactly like Next, minus the macro
// expansion step, so a '#' that belongs to a later directive is never
// mistaken for ordinary text.
func (c *Context) lookAheadParen() (*pptoken.Token, error) {
	for {
		tok, err := c.read()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, nil
		}
		if tok.Type == pptoken.Hash && tok.Directive {
			if err := c.handleDirective(); err != nil {
				return nil, err
			}
			continue
		}
		if !c.isActive() {
			continue
		}
		return tok, nil
	}
}

// captureArgs reads the comma-separated argument lists of a function-like
// macro invocation, up to and including the matching ')' (the opening '('
// has already been consumed by the caller). Commas and closing parens
// nested inside a deeper paren level belong to the current argument, not
// the invocation's own delimiters. Once the fixed formals are satisfied,
// a variadic macro's remaining commas are likewise kept inside the final
// (__VA_ARGS__) argument rather than splitting it further.
func (c *Context) captureArgs(m *Macro) ([][]*pptoken.Token, error) {
	nFixed := len(m.Formals)
	if m.HasVarargs {
		nFixed--
	}

	var args [][]*pptoken.Token
	var current []*pptoken.Token
	depth := 0

	for {
		tok, err := c.read()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, c.errf("unterminated argument list invoking macro %q", m.Name)
		}
		// A newline inside an argument list is just whitespace.
		if tok.LNew {
			tok.LNew = false
			tok.LWhite = true
			tok.Directive = false
		}
		switch tok.Type {
		case pptoken.LParen:
			depth++
			current = append(current, tok)
		case pptoken.RParen:
			if depth == 0 {
				args = append(args, current)
				return args, nil
			}
			depth--
			current = append(current, tok)
		case pptoken.Comma:
			if depth == 0 && (!m.HasVarargs || len(args) < nFixed) {
				args = append(args, current)
				current = nil
			} else {
				current = append(current, tok)
			}
		default:
			current = append(current, tok)
		}
	}
}

// checkArity validates the captured argument count against m's formals and,
// for a variadic macro, folds every argument past the fixed formals back
// together (re-inserting the commas between them) into a single trailing
// __VA_ARGS__ actual -- padding in an empty one if none were supplied.
func (c *Context) checkArity(m *Macro, raw [][]*pptoken.Token) ([][]*pptoken.Token, error) {
	nFixed := len(m.Formals)
	if m.HasVarargs {
		nFixed--
	}

	if !m.HasVarargs && len(m.Formals) == 0 {
		if len(raw) == 1 && len(raw[0]) == 0 {
			return nil, nil
		}
		return nil, c.errf("macro %q passed %d arguments, but takes just 0", m.Name, len(raw))
	}

	if len(raw) < nFixed {
		return nil, c.errf("macro %q requires %d arguments, but only %d given", m.Name, nFixed, len(raw))
	}
	if !m.HasVarargs && len(raw) > nFixed {
		return nil, c.errf("macro %q passed %d arguments, but takes just %d", m.Name, len(raw), nFixed)
	}

	args := make([][]*pptoken.Token, nFixed, len(m.Formals))
	copy(args, raw[:nFixed])
	if !m.HasVarargs {
		return args, nil
	}

	var tail []*pptoken.Token
	for i := nFixed; i < len(raw); i++ {
		if i > nFixed {
			tail = append(tail, pptoken.NewPunct(pptoken.Comma, ","))
		}
		tail = append(tail, raw[i]...)
	}
	return append(args, tail), nil
}

// expandArgument fully macro-expands a captured argument in a throwaway
// child context, as required before substituting it into a non-#/##
// position of the replacement list (C99 6.10.3.1).
func (c *Context) expandArgument(raw []*pptoken.Token) ([]*pptoken.Token, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	child := c.spawnChild()
	child.pushList(pptoken.DuplicateList(raw), nil)
	var out []*pptoken.Token
	for {
		tok, err := child.Next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return out, nil
		}
		out = append(out, tok)
	}
}

func placemarker() *pptoken.Token { return pptoken.New(pptoken.Placemarker, "") }

// substitute builds a macro's replacement tokens from its decomposed
// Replace list and (for a function-like macro) its actual arguments,
// performing stringize and paste inline so the caller never has to
// re-scan for # or ##.
func (c *Context) substitute(m *Macro, args [][]*pptoken.Token) ([]*pptoken.Token, error) {
	pieces := make([][]*pptoken.Token, len(m.Replacement))
	for i, e := range m.Replacement {
		switch e.Kind {
		case RToken:
			pieces[i] = []*pptoken.Token{pptoken.Duplicate(e.Token)}
		case RParamStr:
			pieces[i] = []*pptoken.Token{pptoken.Stringize(args[e.ParamIdx])}
		case RParamGlu:
			raw := args[e.ParamIdx]
			if len(raw) == 0 {
				pieces[i] = []*pptoken.Token{placemarker()}
			} else {
				pieces[i] = pptoken.DuplicateList(raw)
			}
		case RParamExp:
			raw := args[e.ParamIdx]
			if len(raw) == 0 {
				pieces[i] = []*pptoken.Token{placemarker()}
			} else {
				exp, err := c.expandArgument(raw)
				if err != nil {
					return nil, err
				}
				if len(exp) == 0 {
					exp = []*pptoken.Token{placemarker()}
				}
				pieces[i] = exp
			}
		case RGlue:
			// merged below, alongside its neighbors
		}
	}

	var result []*pptoken.Token
	for i := 0; i < len(m.Replacement); i++ {
		if m.Replacement[i].Kind != RGlue {
			result = append(result, pieces[i]...)
			continue
		}
		if len(result) == 0 {
			return nil, c.errf("'##' cannot appear at the start of macro %q's replacement list", m.Name)
		}
		if i+1 >= len(m.Replacement) {
			return nil, c.errf("'##' cannot appear at the end of macro %q's replacement list", m.Name)
		}
		left := result[len(result)-1]
		result = result[:len(result)-1]

		next := pieces[i+1]
		var right *pptoken.Token
		if len(next) == 0 {
			right = placemarker()
		} else {
			right = next[0]
		}
		pasted, err := c.paste(left, right)
		if err != nil {
			return nil, err
		}
		result = append(result, pasted)
		if len(next) > 1 {
			result = append(result, next[1:]...)
		}
		i++ // consume the piece we just merged into the paste
	}

	out := result[:0:0]
	for _, t := range result {
		if t.Type == pptoken.Placemarker {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// finishExpansion gives the replacement tokens the invoking token's line
// position, disables m for the duration of the rescan (self-reference
// protection), and pushes the replacement as a new list frame.
func (c *Context) finishExpansion(m *Macro, site *pptoken.Token, toks []*pptoken.Token) {
	for i, t := range toks {
		t.Directive = false
		if i > 0 {
			t.LNew = false
		}
	}
	if len(toks) > 0 {
		toks[0].LWhite = site.LWhite
		toks[0].LNew = site.LNew
	}
	m.Enabled = false
	c.pushList(toks, m)
}
