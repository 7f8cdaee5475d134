package adapters

import (
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// pyParser reads the declarative literal subset of Python used by
// package.py files: identifiers, '=', strings, numbers, booleans,
// None, lists, tuples, and dicts. Values may span lines inside
// brackets; '#' comments are skipped everywhere.
type pyParser struct {
	src []byte
	pos int
}

func parsePythonAssignments(data []byte) (map[string]any, error) {
	p := &pyParser{src: data}
	fields := map[string]any{}
	for {
		p.skipSpace()
		if p.eof() {
			return fields, nil
		}
		name, err := p.readIdent()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume('=') {
			return nil, p.errorf("expected '=' after %q", name)
		}
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
}

func (p *pyParser) errorf(format string, args ...any) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: package.py offset %d: %s", p.pos, fmt.Sprintf(format, args...)))
}

func (p *pyParser) eof() bool { return p.pos >= len(p.src) }

func (p *pyParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *pyParser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

// skipSpace advances over whitespace, newlines, comments, and line
// continuations.
func (p *pyParser) skipSpace() {
	for !p.eof() {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func identByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func (p *pyParser) readIdent() (string, error) {
	start := p.pos
	for !p.eof() && identByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected identifier")
	}
	return string(p.src[start:p.pos]), nil
}

func (p *pyParser) readValue() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("expected value")
	}
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		return p.readString()
	case c == '[':
		return p.readSequence('[', ']')
	case c == '(':
		return p.readSequence('(', ')')
	case c == '{':
		return p.readDict()
	case c >= '0' && c <= '9' || c == '-':
		return p.readNumber()
	default:
		word, err := p.readIdent()
		if err != nil {
			return nil, err
		}
		switch word {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		}
		return nil, p.errorf("unsupported expression %q", word)
	}
}

func (p *pyParser) readString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	// Triple-quoted strings collapse to their body.
	triple := false
	if p.pos+1 < len(p.src) && p.src[p.pos] == quote && p.src[p.pos+1] == quote {
		triple = true
		p.pos += 2
	}
	var out []byte
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			next := p.src[p.pos+1]
			switch next {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, next)
			}
			p.pos += 2
		case c == quote && !triple:
			p.pos++
			return string(out), nil
		case c == quote && triple && p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote:
			p.pos += 3
			return string(out), nil
		default:
			out = append(out, c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *pyParser) readNumber() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for !p.eof() {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	text := string(p.src[start:p.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf("bad number %q", text)
	}
	return n, nil
}

func (p *pyParser) readSequence(opener, closer byte) ([]any, error) {
	if !p.consume(opener) {
		return nil, p.errorf("expected %q", string(opener))
	}
	var out []any
	for {
		p.skipSpace()
		if p.consume(closer) {
			return out, nil
		}
		if p.eof() {
			return nil, p.errorf("unterminated sequence")
		}
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		out = append(out, value)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(closer) {
			return out, nil
		}
		return nil, p.errorf("expected ',' or %q", string(closer))
	}
}

func (p *pyParser) readDict() (map[string]any, error) {
	if !p.consume('{') {
		return nil, p.errorf("expected '{'")
	}
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.consume('}') {
			return out, nil
		}
		if p.eof() {
			return nil, p.errorf("unterminated dict")
		}
		key, err := p.readValue()
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			return nil, p.errorf("dict keys must be strings")
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' after dict key")
		}
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		out[keyStr] = value
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, p.errorf("expected ',' or '}'")
	}
}
