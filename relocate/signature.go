package relocate

import (
	"fmt"
	"strings"

	"github.com/c360studio/semshade/classfile"
	"github.com/c360studio/semshade/mapping"
)

// remapper rewrites the names a class file spells through the binary lookup
// of a mapping table.
type remapper struct {
	table *mapping.Table
}

func (m remapper) name(kind classfile.NameKind, value string) (string, error) {
	if kind == classfile.InternalName && !strings.HasPrefix(value, "[") {
		if out, ok := m.table.LookupBinary(value); ok {
			return out, nil
		}
		return value, nil
	}
	return m.signature(value)
}

// signature rewrites a descriptor or generic signature, which covers array
// class names too. Only the outer class name of each class type is looked
// up; inner class suffixes and type variables are copied.
func (m remapper) signature(s string) (string, error) {
	p := &sigParser{s: s, table: m.table}
	p.out.Grow(len(s))
	if p.peek() == '<' {
		p.typeParameters()
	}
	if p.peek() == '(' {
		p.method()
	} else {
		for p.err == nil && p.i < len(p.s) {
			p.javaType()
		}
	}
	if p.err == nil && p.i != len(p.s) {
		p.fail("trailing characters")
	}
	if p.err != nil {
		return "", p.err
	}
	if !p.changed {
		return s, nil
	}
	return p.out.String(), nil
}

type sigParser struct {
	s       string
	i       int
	out     strings.Builder
	table   *mapping.Table
	changed bool
	err     error
}

func (p *sigParser) fail(reason string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: signature %q at %d: %s", classfile.ErrMalformed, p.s, p.i, reason)
	}
}

func (p *sigParser) peek() byte {
	if p.err != nil || p.i >= len(p.s) {
		return 0
	}
	return p.s[p.i]
}

// copyByte copies the current byte, which must be c.
func (p *sigParser) copyByte(c byte) {
	if p.peek() != c {
		p.fail(fmt.Sprintf("want %q", c))
		return
	}
	p.out.WriteByte(c)
	p.i++
}

// copyUntil copies bytes up to, not including, the first of stops.
func (p *sigParser) copyUntil(stops string) string {
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune(stops, rune(p.s[p.i])) {
		p.i++
	}
	if p.i >= len(p.s) {
		p.fail("unterminated name")
	}
	id := p.s[start:p.i]
	p.out.WriteString(id)
	return id
}

func (p *sigParser) typeParameters() {
	p.copyByte('<')
	for p.err == nil && p.peek() != '>' {
		if p.copyUntil(":") == "" {
			p.fail("empty type parameter")
			return
		}
		p.copyByte(':')
		// Class bound, possibly empty.
		if c := p.peek(); c != ':' && c != '>' {
			p.referenceType()
		}
		for p.err == nil && p.peek() == ':' {
			p.copyByte(':')
			p.referenceType()
		}
	}
	p.copyByte('>')
}

func (p *sigParser) method() {
	p.copyByte('(')
	for p.err == nil && p.peek() != ')' {
		p.javaType()
	}
	p.copyByte(')')
	p.javaType()
	for p.err == nil && p.peek() == '^' {
		p.copyByte('^')
		p.referenceType()
	}
}

func (p *sigParser) javaType() {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		p.copyByte(c)
	default:
		p.referenceType()
	}
}

func (p *sigParser) referenceType() {
	switch p.peek() {
	case 'L':
		p.classType()
	case 'T':
		p.copyByte('T')
		p.copyUntil(";")
		p.copyByte(';')
	case '[':
		p.copyByte('[')
		p.javaType()
	case 0:
		p.fail("truncated")
	default:
		p.fail("unexpected character")
	}
}

func (p *sigParser) classType() {
	p.copyByte('L')
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune("<.;", rune(p.s[p.i])) {
		p.i++
	}
	if p.i >= len(p.s) || p.i == start {
		p.fail("bad class type")
		return
	}
	name := p.s[start:p.i]
	if out, ok := p.table.LookupBinary(name); ok {
		name = out
		p.changed = true
	}
	p.out.WriteString(name)
	for p.err == nil {
		switch p.peek() {
		case '<':
			p.typeArguments()
		case '.':
			p.copyByte('.')
			p.copyUntil("<.;")
		case ';':
			p.copyByte(';')
			return
		default:
			p.fail("unterminated class type")
		}
	}
}

func (p *sigParser) typeArguments() {
	p.copyByte('<')
	for p.err == nil && p.peek() != '>' {
		switch c := p.peek(); c {
		case '*':
			p.copyByte('*')
		case '+', '-':
			p.copyByte(c)
			p.referenceType()
		default:
			p.referenceType()
		}
	}
	p.copyByte('>')
}
