package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/approval/model/state"
	"github.com/viant/parsly"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("invalid condition expression")

type lexeme struct {
	code int
	text string
	pos  int
}

type (
	// Expression is a compiled condition.
	Expression struct {
		source string
		root   expr
	}

	expr interface {
		// value resolves the node; ok is false when a referenced variable is missing.
		value(vars state.Variables) (ret state.Value, ok bool)
	}

	logical struct {
		op          string
		left, right expr
	}

	comparison struct {
		op          string
		left, right expr
	}

	literal struct {
		val state.Value
	}

	variable struct {
		path string
	}
)

var compiled sync.Map

// Compile parses expression, caching the result.
func Compile(expression string) (*Expression, error) {
	if cached, ok := compiled.Load(expression); ok {
		return cached.(*Expression), nil
	}
	ret, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	compiled.Store(expression, ret)
	return ret, nil
}

// Parse parses expression into a new Expression.
func Parse(expression string) (*Expression, error) {
	lexemes, err := tokenize(expression)
	if err != nil {
		return nil, err
	}
	if len(lexemes) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	p := &parser{source: expression, lexemes: lexemes}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.index < len(p.lexemes) {
		return nil, p.errorf("unexpected %q", p.lexemes[p.index].text)
	}
	return &Expression{source: expression, root: root}, nil
}

// String returns the expression source.
func (e *Expression) String() string {
	return e.source
}

func tokenize(expression string) ([]*lexeme, error) {
	cursor := parsly.NewCursor("", []byte(expression), 0)
	var result []*lexeme
	for {
		cursor.MatchOne(whitespaceToken)
		if cursor.Pos >= cursor.InputSize {
			return result, nil
		}
		pos := cursor.Pos
		matched := cursor.MatchAny(openParenToken, closeParenToken, andToken, orToken, comparisonToken, numberToken, stringToken, identifierToken)
		switch matched.Code {
		case openParenCode, closeParenCode, andCode, orCode, comparisonCode, numberCode, stringCode, identifierCode:
			result = append(result, &lexeme{code: matched.Code, text: matched.Text(cursor), pos: pos})
		default:
			return nil, fmt.Errorf("%w: %q: unexpected input at position %d", ErrSyntax, expression, pos)
		}
	}
}

type parser struct {
	source  string
	lexemes []*lexeme
	index   int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	pos := len(p.source)
	if p.index < len(p.lexemes) {
		pos = p.lexemes[p.index].pos
	}
	return fmt.Errorf("%w: %q: %s at position %d", ErrSyntax, p.source, fmt.Sprintf(format, args...), pos)
}

func (p *parser) peek(code int) bool {
	return p.index < len(p.lexemes) && p.lexemes[p.index].code == code
}

func (p *parser) next() *lexeme {
	ret := p.lexemes[p.index]
	p.index++
	return ret
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek(orCode) {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logical{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek(andCode) {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &logical{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.peek(comparisonCode) {
		switch left.(type) {
		case *logical, *comparison:
			return left, nil
		}
		return nil, p.errorf("comparison operator expected")
	}
	op := p.next().text
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek(comparisonCode) {
		return nil, p.errorf("chained comparison")
	}
	return &comparison{op: op, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (expr, error) {
	if p.index >= len(p.lexemes) {
		return nil, p.errorf("unexpected end of expression")
	}
	current := p.next()
	switch current.code {
	case openParenCode:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peek(closeParenCode) {
			return nil, p.errorf("missing ')'")
		}
		p.next()
		return inner, nil
	case numberCode:
		f, err := strconv.ParseFloat(current.text, 64)
		if err != nil {
			p.index--
			return nil, p.errorf("invalid number %q", current.text)
		}
		return &literal{val: state.Number(f)}, nil
	case stringCode:
		return &literal{val: state.String(unquote(current.text))}, nil
	case identifierCode:
		switch current.text {
		case "true":
			return &literal{val: state.Bool(true)}, nil
		case "false":
			return &literal{val: state.Bool(false)}, nil
		case "null":
			return &literal{val: state.Null}, nil
		}
		for _, segment := range strings.Split(current.text, ".") {
			if segment == "" {
				p.index--
				return nil, p.errorf("invalid variable path %q", current.text)
			}
		}
		return &variable{path: current.text}, nil
	}
	p.index--
	return nil, p.errorf("unexpected %q", current.text)
}

func unquote(text string) string {
	body := text[1 : len(text)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
