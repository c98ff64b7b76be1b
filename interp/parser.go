package interp

import (
	"context"
	"strings"

	"github.com/wippyai/pickle-host/errors"
)

// parser splits a script into commands and words, substituting as it goes.
// In literal mode it parses a list: no $ or [] substitution, and newlines
// and semicolons are ordinary blanks and characters.
type parser struct {
	ctx     context.Context
	in      *Interp
	src     string
	pos     int
	literal bool
}

// command parses the next command. more is false once input is exhausted.
func (p *parser) command() (words []string, more bool, err error) {
	for {
		p.skipBlanks()
		if p.pos >= len(p.src) {
			return nil, false, nil
		}
		c := p.src[p.pos]
		if p.separator(c) {
			p.pos++
			continue
		}
		if c == '#' && !p.literal {
			p.skipComment()
			continue
		}
		break
	}

	for {
		p.skipBlanks()
		if p.pos >= len(p.src) {
			return words, false, nil
		}
		if p.separator(p.src[p.pos]) {
			p.pos++
			return words, true, nil
		}
		w, err := p.word()
		if err != nil {
			return nil, false, err
		}
		words = append(words, w)
	}
}

func (p *parser) separator(c byte) bool {
	return !p.literal && (c == '\n' || c == ';')
}

func (p *parser) skipBlanks() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\n' && p.literal:
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		default:
			return
		}
	}
}

func (p *parser) skipComment() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		if c == '\\' && p.pos < len(p.src) {
			p.pos++
			continue
		}
		if c == '\n' {
			return
		}
	}
}

func (p *parser) atWordEnd() bool {
	if p.pos >= len(p.src) {
		return true
	}
	switch c := p.src[p.pos]; c {
	case ' ', '\t', '\r', '\n':
		return true
	case ';':
		return !p.literal
	case '\\':
		return p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n'
	}
	return false
}

func (p *parser) word() (string, error) {
	switch p.src[p.pos] {
	case '{':
		return p.braced()
	case '"':
		return p.quoted()
	default:
		return p.bare()
	}
}

func (p *parser) braced() (string, error) {
	start := p.pos + 1
	depth := 1
	for i := start; i < len(p.src); i++ {
		switch p.src[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos = i + 1
				if !p.atWordEnd() {
					return "", errors.Syntax("extra characters after close-brace")
				}
				return p.src[start:i], nil
			}
		}
	}
	return "", errors.Syntax("missing close-brace")
}

func (p *parser) quoted() (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case '"':
			p.pos++
			if !p.atWordEnd() {
				return "", errors.Syntax("extra characters after close-quote")
			}
			return b.String(), nil
		default:
			if err := p.char(&b); err != nil {
				return "", err
			}
		}
	}
	return "", errors.Syntax("missing close-quote")
}

func (p *parser) bare() (string, error) {
	var b strings.Builder
	for !p.atWordEnd() {
		if err := p.char(&b); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// char consumes one unit of a substitutable word: a plain byte, an escape,
// a variable reference or a command substitution.
func (p *parser) char(b *strings.Builder) error {
	c := p.src[p.pos]
	switch {
	case c == '\\':
		p.escape(b)
		return nil
	case c == '$' && !p.literal:
		return p.variable(b)
	case c == '[' && !p.literal:
		return p.substitute(b)
	default:
		b.WriteByte(c)
		p.pos++
		return nil
	}
}

func (p *parser) escape(b *strings.Builder) {
	p.pos++
	if p.pos >= len(p.src) {
		b.WriteByte('\\')
		return
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '\n':
		b.WriteByte(' ')
	default:
		b.WriteByte(c)
	}
}

func (p *parser) variable(b *strings.Builder) error {
	p.pos++
	var name string
	if p.pos < len(p.src) && p.src[p.pos] == '{' {
		end := strings.IndexByte(p.src[p.pos+1:], '}')
		if end < 0 {
			return errors.Syntax("missing close-brace for variable name")
		}
		name = p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
	} else {
		start := p.pos
		for p.pos < len(p.src) && isVarChar(p.src[p.pos]) {
			p.pos++
		}
		name = p.src[start:p.pos]
		if name == "" {
			b.WriteByte('$')
			return nil
		}
	}
	v, ok := p.in.vars[name]
	if !ok {
		return noVariable(name)
	}
	b.WriteString(v)
	return nil
}

func (p *parser) substitute(b *strings.Builder) error {
	start := p.pos + 1
	depth, braces := 1, 0
	for i := start; i < len(p.src); i++ {
		switch p.src[i] {
		case '\\':
			i++
		case '{':
			braces++
		case '}':
			if braces > 0 {
				braces--
			}
		case '[':
			if braces == 0 {
				depth++
			}
		case ']':
			if braces > 0 {
				continue
			}
			depth--
			if depth == 0 {
				out, err := p.in.eval(p.ctx, p.src[start:i])
				if err != nil {
					return err
				}
				b.WriteString(out)
				p.pos = i + 1
				return nil
			}
		}
	}
	return errors.Syntax("missing close-bracket")
}

func isVarChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
