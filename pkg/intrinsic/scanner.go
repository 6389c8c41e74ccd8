package intrinsic

import (
	"strings"
	"unicode"

	"github.com/lyzr/wkflws/pkg/wkerrors"
	"github.com/shopspring/decimal"
)

// Scan tokenizes a single-line intrinsic-function source string, e.g.
// "States.Format('Hello, {}', $.name)". It always terminates the
// stream with an EOF token.
func Scan(src string) ([]Token, error) {
	s := &scanner{src: []rune(src)}
	for !s.atEnd() {
		s.start = s.current
		if err := s.scanOne(); err != nil {
			return nil, err
		}
	}
	s.addToken(EOF, nil)
	return s.tokens, nil
}

type scanner struct {
	src     []rune
	start   int
	current int
	tokens  []Token
}

func (s *scanner) atEnd() bool { return s.current >= len(s.src) }

func (s *scanner) advance() rune {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *scanner) peek() rune {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *scanner) peekAt(offset int) rune {
	if s.current+offset >= len(s.src) {
		return 0
	}
	return s.src[s.current+offset]
}

func (s *scanner) lexeme() string { return string(s.src[s.start:s.current]) }

func (s *scanner) addToken(kind TokenKind, literal interface{}) {
	s.tokens = append(s.tokens, Token{
		Kind:    kind,
		Lexeme:  s.lexeme(),
		Literal: literal,
		Start:   s.start,
		End:     s.current,
	})
}

func (s *scanner) scanOne() error {
	c := s.advance()
	switch {
	case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		return nil
	case c == '(':
		s.addToken(LParen, nil)
	case c == ')':
		s.addToken(RParen, nil)
	case c == ',':
		s.addToken(Comma, nil)
	case c == '.':
		s.addToken(Dot, nil)
	case c == '+':
		s.addToken(Plus, nil)
	case c == '-':
		s.addToken(Minus, nil)
	case c == '*':
		s.addToken(Star, nil)
	case c == '/':
		s.addToken(Slash, nil)
	case c == '\'':
		return s.scanString()
	case c == '$':
		return s.scanJSONPath()
	case unicode.IsDigit(c):
		s.scanNumber()
	case isIdentStart(c):
		s.scanIdent()
	default:
		return &wkerrors.ScanError{Source: string(s.src), Start: s.start, End: s.current, Msg: "unexpected character"}
	}
	return nil
}

func (s *scanner) scanString() error {
	var buf strings.Builder
	for {
		if s.atEnd() {
			return &wkerrors.ScanError{Source: string(s.src), Start: s.start, End: s.current, Msg: "unterminated string"}
		}
		c := s.advance()
		if c == '\'' {
			break
		}
		if c == '\\' && s.peek() == '\'' {
			buf.WriteRune(s.advance())
			continue
		}
		buf.WriteRune(c)
	}
	s.addToken(String, buf.String())
	return nil
}

func (s *scanner) scanNumber() {
	for unicode.IsDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && unicode.IsDigit(s.peekAt(1)) {
		s.advance()
		for unicode.IsDigit(s.peek()) {
			s.advance()
		}
	}
	d, err := decimal.NewFromString(s.lexeme())
	if err != nil {
		d = decimal.Zero
	}
	s.addToken(Number, d)
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentContinue(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func (s *scanner) scanIdent() {
	for isIdentContinue(s.peek()) {
		s.advance()
	}
	s.addToken(Ident, nil)
}

// scanJSONPath consumes a compound "$..." or "$$..." lexeme: the root
// marker followed by zero or more dot, descendant, or bracket segments.
func (s *scanner) scanJSONPath() error {
	if s.peek() == '$' {
		s.advance()
	}
	for {
		switch {
		case s.peek() == '.':
			if err := s.scanDotSegment(); err != nil {
				return err
			}
		case s.peek() == '[':
			if err := s.scanBracketSegment(); err != nil {
				return err
			}
		default:
			s.addToken(JSONPath, nil)
			return nil
		}
	}
}

func (s *scanner) scanDotSegment() error {
	s.advance() // consume '.'
	if s.peek() == '.' {
		s.advance() // descendant '..'
	}
	if s.peek() == '*' {
		s.advance()
		return nil
	}
	first := s.peek()
	if first == 0 || !(first == '_' || unicode.IsLetter(first) || first > unicode.MaxASCII) {
		return &wkerrors.ScanError{Source: string(s.src), Start: s.start, End: s.current, Msg: "invalid dot-member first character"}
	}
	for isIdentContinue(s.peek()) || s.peek() > unicode.MaxASCII {
		s.advance()
	}
	return nil
}

func (s *scanner) scanBracketSegment() error {
	bracketStart := s.current
	s.advance() // consume '['
	depth := 1
	for depth > 0 {
		if s.atEnd() {
			return &wkerrors.ScanError{Source: string(s.src), Start: s.start, End: s.current, Msg: "unterminated [ selector"}
		}
		c := s.advance()
		if c == '[' {
			depth++
		} else if c == ']' {
			depth--
		}
	}
	inner := string(s.src[bracketStart+1 : s.current-1])
	if strings.Contains(inner, "*") && strings.TrimSpace(inner) != "*" && inner != "*" {
		return &wkerrors.ScanError{Source: string(s.src), Start: bracketStart, End: s.current, Msg: "malformed wildcard selector"}
	}
	return nil
}
