package condition

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	openParenCode
	closeParenCode
	andCode
	orCode
	comparisonCode
	numberCode
	stringCode
	identifierCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	andToken        = parsly.NewToken(andCode, "&&", newFragmentMatcher("&&"))
	orToken         = parsly.NewToken(orCode, "||", newFragmentMatcher("||"))
	comparisonToken = parsly.NewToken(comparisonCode, "Comparison", &comparisonMatcher{})
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	stringToken     = parsly.NewToken(stringCode, "String", &stringMatcher{})
	identifierToken = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
)

func newFragmentMatcher(value string) parsly.Matcher {
	return &fragmentMatcher{value: []byte(value)}
}

// fragmentMatcher matches a fixed byte sequence
type fragmentMatcher struct {
	value []byte
}

func (m *fragmentMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+len(m.value) > cursor.InputSize {
		return 0
	}
	for i, b := range m.value {
		if input[pos+i] != b {
			return 0
		}
	}
	return len(m.value)
}

// comparisonMatcher matches >= <= == != > <
type comparisonMatcher struct{}

func (m *comparisonMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	hasEq := pos+1 < size && input[pos+1] == '='
	switch input[pos] {
	case '>', '<':
		if hasEq {
			return 2
		}
		return 1
	case '=', '!':
		if hasEq {
			return 2
		}
	}
	return 0
}

// numberMatcher matches an optionally signed decimal literal
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	i := pos
	if i < size && input[i] == '-' {
		i++
	}
	digits := 0
	for ; i < size && isDigit(input[i]); i++ {
		digits++
	}
	if digits == 0 {
		return 0
	}
	if i+1 < size && input[i] == '.' && isDigit(input[i+1]) {
		i++
		for ; i < size && isDigit(input[i]); i++ {
		}
	}
	return i - pos
}

// stringMatcher matches a single or double quoted literal with backslash escapes
type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	quote := input[pos]
	if quote != '"' && quote != '\'' {
		return 0
	}
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i - pos + 1
		}
	}
	return 0
}

// identifierMatcher matches dotted variable paths
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '.' {
			matched++
			continue
		}
		break
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
