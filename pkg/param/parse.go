// SPDX-License-Identifier: MPL-2.0

package param

import (
	"strconv"
	"strings"
	"unicode"
)

// scalarTypes maps the names usable in chain definition files to their types.
var scalarTypes = map[string]Type{
	"any":          Any,
	"str":          Str,
	"string":       Str,
	"nonemptystr":  NonEmptyStr,
	"int":          Int,
	"float":        Float,
	"bool":         Bool,
	"abspath":      AbsolutePath,
	"relpath":      RelativePath,
	"path":         ExpandedPath,
	"expandedpath": ExpandedPath,
	"subdir":       Subdir,
	"ipv4":         IPv4,
	"host":         Host,
	"mail":         MailAddress,
}

// ParseType parses a textual type expression such as "int",
// "listof(str)", "oneof(ext4, vfat)", "intrange(1, 10)" or
// "dictof(str, listof(int))".
func ParseType(expr string) (Type, error) {
	p := &typeParser{src: expr}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected trailing input")
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) fail(reason string) error {
	return &TypeExprError{Expr: p.src, Reason: reason + " at offset " + strconv.Itoa(p.pos)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return strings.ToLower(p.src[start:p.pos])
}

func (p *typeParser) parseType() (Type, error) {
	name := p.ident()
	if name == "" {
		return nil, p.fail("expected type name")
	}
	p.skipSpace()
	if p.peek() != '(' {
		if t, ok := scalarTypes[name]; ok {
			return t, nil
		}
		return nil, p.fail("unknown type " + strconv.Quote(name))
	}
	p.pos++

	switch name {
	case "listof", "nonemptylistof", "none_or", "noneor":
		args, err := p.typeArgs(1)
		if err != nil {
			return nil, err
		}
		switch name {
		case "listof":
			return ListOf(args[0]), nil
		case "nonemptylistof":
			return NonEmptyListOf(args[0]), nil
		default:
			return NoneOr(args[0]), nil
		}
	case "dictof":
		args, err := p.typeArgs(2)
		if err != nil {
			return nil, err
		}
		return DictOf(args[0], args[1]), nil
	case "tupleof":
		args, err := p.typeArgs(-1)
		if err != nil {
			return nil, err
		}
		return TupleOf(args...), nil
	case "oneof":
		lits, err := p.literalArgs()
		if err != nil {
			return nil, err
		}
		if len(lits) == 0 {
			return nil, p.fail("oneof needs at least one value")
		}
		return OneOf(lits...), nil
	case "intrange", "floatrange":
		lits, err := p.literalArgs()
		if err != nil {
			return nil, err
		}
		if len(lits) != 2 {
			return nil, p.fail(name + " needs exactly two bounds")
		}
		if name == "intrange" {
			lo, err1 := strconv.Atoi(lits[0])
			hi, err2 := strconv.Atoi(lits[1])
			if err1 != nil || err2 != nil {
				return nil, p.fail("intrange bounds must be integers")
			}
			return IntRange(lo, hi), nil
		}
		lo, err1 := strconv.ParseFloat(lits[0], 64)
		hi, err2 := strconv.ParseFloat(lits[1], 64)
		if err1 != nil || err2 != nil {
			return nil, p.fail("floatrange bounds must be numbers")
		}
		return FloatRange(lo, hi), nil
	}
	return nil, p.fail("unknown type constructor " + strconv.Quote(name))
}

// typeArgs parses a comma separated list of type expressions up to the
// closing parenthesis. want < 0 accepts any positive count.
func (p *typeParser) typeArgs(want int) ([]Type, error) {
	var args []Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case ')':
			p.pos++
		default:
			return nil, p.fail("expected ',' or ')'")
		}
		break
	}
	if want >= 0 && len(args) != want {
		return nil, p.fail("expected " + strconv.Itoa(want) + " type arguments")
	}
	return args, nil
}

// literalArgs parses bare or quoted literals up to the closing parenthesis.
func (p *typeParser) literalArgs() ([]string, error) {
	var lits []string
	for {
		p.skipSpace()
		if p.peek() == ')' && len(lits) == 0 {
			p.pos++
			return lits, nil
		}
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return lits, nil
		default:
			return nil, p.fail("expected ',' or ')'")
		}
	}
}

func (p *typeParser) literal() (string, error) {
	if q := p.peek(); q == '"' || q == '\'' {
		end := strings.IndexByte(p.src[p.pos+1:], q)
		if end < 0 {
			return "", p.fail("unterminated quote")
		}
		lit := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return lit, nil
	}
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != ')' {
		p.pos++
	}
	lit := strings.TrimSpace(p.src[start:p.pos])
	if lit == "" {
		return "", p.fail("empty literal")
	}
	return lit, nil
}
