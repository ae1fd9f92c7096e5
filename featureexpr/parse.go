package featureexpr

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads a feature expression such as "A && !(B || C) => D". Operators in
// increasing precedence: <=>, =>, ||, &&, !. The constants true/false/1/0 and the
// wrapper def(NAME) are accepted. Unknown features are declared on first use.
func (s *Space) Parse(text string) (Expr, error) {
	p := &parser{space: s, src: text}
	p.next()
	e, err := p.equiv()
	if err != nil {
		return False(), err
	}
	if p.tok != "" {
		return False(), p.errorf("unexpected %q", p.tok)
	}
	return e, nil
}

// MustParse is Parse for constant expressions in tests and defaults
func (s *Space) MustParse(text string) Expr {
	e, err := s.Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	space *Space
	src   string
	pos   int
	tok   string
	start int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("feature expression %q at offset %d: %s", p.src, p.start, fmt.Sprintf(format, args...))
}

var operators = []string{"<=>", "=>", "&&", "||", "&", "|", "!", "(", ")"}

func (p *parser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	p.start = p.pos
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	rest := p.src[p.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			p.tok = op
			p.pos += len(op)
			return
		}
	}
	end := p.pos
	for end < len(p.src) && isIdentChar(rune(p.src[end])) {
		end++
	}
	if end == p.pos {
		// single unknown character, reported by the caller
		end++
	}
	p.tok = p.src[p.pos:end]
	p.pos = end
}

func isIdentChar(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *parser) equiv() (Expr, error) {
	left, err := p.implies()
	if err != nil {
		return left, err
	}
	for p.tok == "<=>" {
		p.next()
		right, err := p.implies()
		if err != nil {
			return right, err
		}
		left = left.Equiv(right)
	}
	return left, nil
}

func (p *parser) implies() (Expr, error) {
	left, err := p.or()
	if err != nil {
		return left, err
	}
	if p.tok == "=>" {
		p.next()
		right, err := p.implies()
		if err != nil {
			return right, err
		}
		return left.Implies(right), nil
	}
	return left, nil
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return left, err
	}
	for p.tok == "||" || p.tok == "|" {
		p.next()
		right, err := p.and()
		if err != nil {
			return right, err
		}
		left = left.Or(right)
	}
	return left, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return left, err
	}
	for p.tok == "&&" || p.tok == "&" {
		p.next()
		right, err := p.unary()
		if err != nil {
			return right, err
		}
		left = left.And(right)
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.tok == "!" {
		p.next()
		e, err := p.unary()
		if err != nil {
			return e, err
		}
		return e.Not(), nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	tok := p.tok
	switch {
	case tok == "":
		return False(), p.errorf("unexpected end of expression")
	case tok == "(":
		p.next()
		e, err := p.equiv()
		if err != nil {
			return e, err
		}
		if p.tok != ")" {
			return False(), p.errorf("expected ')'")
		}
		p.next()
		return e, nil
	case strings.EqualFold(tok, "true") || tok == "1":
		p.next()
		return True(), nil
	case strings.EqualFold(tok, "false") || tok == "0":
		p.next()
		return False(), nil
	case tok == "def" || tok == "defined":
		p.next()
		if p.tok != "(" {
			return False(), p.errorf("expected '(' after %s", tok)
		}
		p.next()
		name := p.tok
		if !isIdentifier(name) {
			return False(), p.errorf("expected feature name")
		}
		p.next()
		if p.tok != ")" {
			return False(), p.errorf("expected ')'")
		}
		p.next()
		return p.space.Var(name), nil
	case isIdentifier(tok):
		p.next()
		return p.space.Var(tok), nil
	}
	return False(), p.errorf("unexpected %q", tok)
}

func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	for i, r := range tok {
		if !isIdentChar(r) || (i == 0 && unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
