// Package expr implements the lexer, AST and recursive-descent parser
// for template binding and action expressions.
package expr

import (
	"strconv"
	"strings"

	"github.com/ngx-tools/template/pkg/chars"
)

// TokenType classifies expression tokens.
type TokenType int

const (
	TokenCharacter TokenType = iota
	TokenIdentifier
	TokenPrivateIdentifier
	TokenKeyword
	TokenString
	TokenOperator
	TokenNumber
	TokenRegExpBody
	TokenRegExpFlags
	TokenError
)

// StringTokenKind distinguishes plain strings from template-literal
// segments.
type StringTokenKind int

const (
	StringPlain StringTokenKind = iota
	StringTemplateLiteralPart
	StringTemplateLiteralEnd
)

var keywords = map[string]bool{
	"var": true, "let": true, "as": true, "null": true, "undefined": true,
	"true": true, "false": true, "if": true, "else": true, "this": true,
	"typeof": true, "void": true, "in": true,
}

// Token is a single lexed expression token. Index and End are rune
// offsets into the input.
type Token struct {
	Index      int
	End        int
	Type       TokenType
	NumValue   float64
	StrValue   string
	StringKind StringTokenKind
}

// EOF is the sentinel returned when the parser reads past the last token.
var EOF = &Token{Index: -1, End: -1, Type: TokenCharacter}

func (t *Token) IsCharacter(code int) bool {
	return t.Type == TokenCharacter && int(t.NumValue) == code
}

func (t *Token) IsNumber() bool            { return t.Type == TokenNumber }
func (t *Token) IsString() bool            { return t.Type == TokenString }
func (t *Token) IsIdentifier() bool        { return t.Type == TokenIdentifier }
func (t *Token) IsPrivateIdentifier() bool { return t.Type == TokenPrivateIdentifier }
func (t *Token) IsKeyword() bool           { return t.Type == TokenKeyword }
func (t *Token) IsError() bool             { return t.Type == TokenError }
func (t *Token) IsRegExpBody() bool        { return t.Type == TokenRegExpBody }
func (t *Token) IsRegExpFlags() bool       { return t.Type == TokenRegExpFlags }

func (t *Token) IsOperator(op string) bool {
	return t.Type == TokenOperator && t.StrValue == op
}

func (t *Token) isKeyword(kw string) bool {
	return t.Type == TokenKeyword && t.StrValue == kw
}

func (t *Token) IsKeywordLet() bool       { return t.isKeyword("let") }
func (t *Token) IsKeywordAs() bool        { return t.isKeyword("as") }
func (t *Token) IsKeywordNull() bool      { return t.isKeyword("null") }
func (t *Token) IsKeywordUndefined() bool { return t.isKeyword("undefined") }
func (t *Token) IsKeywordTrue() bool      { return t.isKeyword("true") }
func (t *Token) IsKeywordFalse() bool     { return t.isKeyword("false") }
func (t *Token) IsKeywordThis() bool      { return t.isKeyword("this") }
func (t *Token) IsKeywordTypeof() bool    { return t.isKeyword("typeof") }
func (t *Token) IsKeywordVoid() bool      { return t.isKeyword("void") }
func (t *Token) IsKeywordIn() bool        { return t.isKeyword("in") }

func (t *Token) IsTemplateLiteralPart() bool {
	return t.IsString() && t.StringKind == StringTemplateLiteralPart
}

func (t *Token) IsTemplateLiteralEnd() bool {
	return t.IsString() && t.StringKind == StringTemplateLiteralEnd
}

func (t *Token) IsTemplateLiteralInterpolationStart() bool {
	return t.IsOperator("${")
}

func (t *Token) ToNumber() float64 {
	if t.Type == TokenNumber {
		return t.NumValue
	}
	return -1
}

func (t *Token) String() string {
	if t.Type == TokenNumber {
		return strconv.FormatFloat(t.NumValue, 'f', -1, 64)
	}
	return t.StrValue
}

// Lexer tokenizes expression source text.
type Lexer struct{}

func NewLexer() *Lexer { return &Lexer{} }

func (l *Lexer) Tokenize(text string) []*Token {
	s := newScanner(text)
	for tok := s.scanToken(); tok != nil; tok = s.scanToken() {
		s.tokens = append(s.tokens, tok)
	}
	return s.tokens
}

type braceKind int

const (
	braceExpression braceKind = iota
	braceInterpolation
)

type scanner struct {
	input      []rune
	peek       rune
	index      int
	tokens     []*Token
	braceStack []braceKind
}

func newScanner(input string) *scanner {
	s := &scanner{input: []rune(input), index: -1}
	s.advance()
	return s
}

func (s *scanner) advance() {
	s.index++
	if s.index >= len(s.input) {
		s.peek = chars.EOF
	} else {
		s.peek = s.input[s.index]
	}
}

func (s *scanner) scanToken() *Token {
	for s.peek != chars.EOF && (int(s.peek) <= chars.Space || int(s.peek) == chars.NBSP) {
		s.advance()
	}
	if s.index >= len(s.input) {
		return nil
	}

	peek := s.peek
	start := s.index

	if isIdentifierStart(peek) {
		return s.scanIdentifier()
	}
	if chars.IsDigit(int(peek)) {
		return s.scanNumber(start)
	}

	switch int(peek) {
	case chars.Period:
		s.advance()
		if chars.IsDigit(int(s.peek)) {
			return s.scanNumber(start)
		}
		return newCharacterToken(start, s.index, chars.Period)
	case chars.LParen, chars.RParen, chars.LBracket, chars.RBracket,
		chars.Comma, chars.Colon, chars.Semicolon:
		s.advance()
		return newCharacterToken(start, s.index, int(peek))
	case chars.LBrace:
		s.braceStack = append(s.braceStack, braceExpression)
		s.advance()
		return newCharacterToken(start, s.index, chars.LBrace)
	case chars.RBrace:
		return s.scanCloseBrace(start)
	case chars.SQ, chars.DQ:
		return s.scanString()
	case chars.Backtick:
		s.advance()
		return s.scanTemplateLiteralPart(start)
	case chars.Hash:
		return s.scanPrivateIdentifier()
	case chars.Plus:
		return s.scanComplexOperator(start, "+", chars.EQ, "=")
	case chars.Minus:
		return s.scanComplexOperator(start, "-", chars.EQ, "=")
	case chars.Slash:
		if s.isStartOfRegex() {
			return s.scanRegex(start)
		}
		return s.scanComplexOperator(start, "/", chars.EQ, "=")
	case chars.Percent:
		return s.scanComplexOperator(start, "%", chars.EQ, "=")
	case chars.Caret:
		s.advance()
		return newOperatorToken(start, s.index, "^")
	case chars.Star:
		return s.scanStar(start)
	case chars.Question:
		return s.scanQuestion(start)
	case chars.LT, chars.GT:
		return s.scanComplexOperator(start, string(peek), chars.EQ, "=")
	case chars.Bang, chars.EQ:
		return s.scanComplexOperator(start, string(peek), chars.EQ, "=", chars.EQ)
	case chars.Ampersand:
		return s.scanComplexOperator(start, "&", chars.Ampersand, "&", chars.EQ)
	case chars.Bar:
		return s.scanComplexOperator(start, "|", chars.Bar, "|", chars.EQ)
	}

	s.advance()
	return s.error("Unexpected character ["+string(peek)+"]", 0)
}

func (s *scanner) scanCloseBrace(start int) *Token {
	s.advance()
	if n := len(s.braceStack); n > 0 {
		top := s.braceStack[n-1]
		s.braceStack = s.braceStack[:n-1]
		// A `}` inside a template literal resumes the literal text.
		if top == braceInterpolation {
			s.tokens = append(s.tokens, newCharacterToken(start, s.index, chars.RBrace))
			return s.scanTemplateLiteralPart(s.index)
		}
	}
	return newCharacterToken(start, s.index, chars.RBrace)
}

// scanComplexOperator scans a one, two or three character operator where
// the second and third characters are optional continuations.
func (s *scanner) scanComplexOperator(start int, one string, twoCode int, two string, threeCode ...int) *Token {
	s.advance()
	op := one
	if int(s.peek) == twoCode {
		s.advance()
		op += two
	}
	if len(threeCode) > 0 && int(s.peek) == threeCode[0] {
		s.advance()
		op += string(rune(threeCode[0]))
	}
	return newOperatorToken(start, s.index, op)
}

func (s *scanner) scanIdentifier() *Token {
	start := s.index
	s.advance()
	for isIdentifierPart(s.peek) {
		s.advance()
	}
	str := string(s.input[start:s.index])
	if keywords[str] {
		return &Token{Index: start, End: s.index, Type: TokenKeyword, StrValue: str}
	}
	return &Token{Index: start, End: s.index, Type: TokenIdentifier, StrValue: str}
}

func (s *scanner) scanPrivateIdentifier() *Token {
	start := s.index
	s.advance()
	if !isIdentifierStart(s.peek) {
		return s.error("Invalid character [#]", -1)
	}
	for isIdentifierPart(s.peek) {
		s.advance()
	}
	return &Token{Index: start, End: s.index, Type: TokenPrivateIdentifier, StrValue: string(s.input[start:s.index])}
}

func (s *scanner) scanNumber(start int) *Token {
	simple := s.index == start
	hasSeparators := false
	s.advance()
	for {
		if chars.IsDigit(int(s.peek)) {
			// continue
		} else if int(s.peek) == chars.Underscore {
			if s.index == 0 || s.index >= len(s.input)-1 ||
				!chars.IsDigit(int(s.input[s.index-1])) ||
				!chars.IsDigit(int(s.input[s.index+1])) {
				return s.error("Invalid numeric separator", 0)
			}
			hasSeparators = true
		} else if int(s.peek) == chars.Period {
			simple = false
		} else if isExponentStart(s.peek) {
			s.advance()
			if isExponentSign(s.peek) {
				s.advance()
			}
			if !chars.IsDigit(int(s.peek)) {
				return s.error("Invalid exponent", -1)
			}
			simple = false
		} else {
			break
		}
		s.advance()
	}

	str := string(s.input[start:s.index])
	if hasSeparators {
		str = strings.ReplaceAll(str, "_", "")
	}
	var value float64
	if simple {
		if v, err := strconv.ParseInt(str, 0, 64); err == nil {
			value = float64(v)
		}
	} else {
		if v, err := strconv.ParseFloat(str, 64); err == nil {
			value = v
		}
	}
	return &Token{Index: start, End: s.index, Type: TokenNumber, NumValue: value}
}

func (s *scanner) scanString() *Token {
	start := s.index
	quote := s.peek
	s.advance()

	var buffer strings.Builder
	marker := s.index

	for s.peek != quote {
		switch {
		case int(s.peek) == chars.Backslash:
			if errTok := s.scanStringBackslash(&buffer, marker); errTok != nil {
				return errTok
			}
			marker = s.index
		case s.peek == chars.EOF:
			return s.error("Unterminated quote", 0)
		default:
			s.advance()
		}
	}

	buffer.WriteString(string(s.input[marker:s.index]))
	s.advance()
	return &Token{Index: start, End: s.index, Type: TokenString, StrValue: buffer.String(), StringKind: StringPlain}
}

func (s *scanner) scanQuestion(start int) *Token {
	s.advance()
	op := "?"
	if int(s.peek) == chars.Question {
		op += "?"
		s.advance()
		if int(s.peek) == chars.EQ {
			op += "="
			s.advance()
		}
	} else if int(s.peek) == chars.Period {
		op += "."
		s.advance()
	}
	return newOperatorToken(start, s.index, op)
}

func (s *scanner) scanStar(start int) *Token {
	s.advance()
	op := "*"
	if int(s.peek) == chars.Star {
		op += "*"
		s.advance()
		if int(s.peek) == chars.EQ {
			op += "="
			s.advance()
		}
	} else if int(s.peek) == chars.EQ {
		op += "="
		s.advance()
	}
	return newOperatorToken(start, s.index, op)
}

func (s *scanner) scanTemplateLiteralPart(start int) *Token {
	var buffer strings.Builder
	marker := s.index

	for int(s.peek) != chars.Backtick {
		switch {
		case int(s.peek) == chars.Backslash:
			if errTok := s.scanStringBackslash(&buffer, marker); errTok != nil {
				return errTok
			}
			marker = s.index
		case int(s.peek) == chars.Dollar:
			dollar := s.index
			s.advance()
			if int(s.peek) == chars.LBrace {
				s.braceStack = append(s.braceStack, braceInterpolation)
				buffer.WriteString(string(s.input[marker:dollar]))
				s.tokens = append(s.tokens, &Token{
					Index: start, End: dollar, Type: TokenString,
					StrValue: buffer.String(), StringKind: StringTemplateLiteralPart,
				})
				s.advance()
				return newOperatorToken(dollar, s.index, string(s.input[dollar:s.index]))
			}
		case s.peek == chars.EOF:
			return s.error("Unterminated template literal", 0)
		default:
			s.advance()
		}
	}

	buffer.WriteString(string(s.input[marker:s.index]))
	s.advance()
	return &Token{Index: start, End: s.index, Type: TokenString, StrValue: buffer.String(), StringKind: StringTemplateLiteralEnd}
}

// scanStringBackslash consumes an escape sequence, appending the decoded
// text plus any pending literal text to buffer. Returns a non-nil error
// token on a malformed escape.
func (s *scanner) scanStringBackslash(buffer *strings.Builder, marker int) *Token {
	buffer.WriteString(string(s.input[marker:s.index]))
	s.advance()
	var decoded rune
	if int(s.peek) == chars.LowerU {
		if s.index+5 > len(s.input) {
			return s.error("Invalid unicode escape", 0)
		}
		hex := string(s.input[s.index+1 : s.index+5])
		v, err := strconv.ParseInt(hex, 16, 32)
		if err != nil {
			return s.error("Invalid unicode escape [\\u"+hex+"]", 0)
		}
		decoded = rune(v)
		for i := 0; i < 5; i++ {
			s.advance()
		}
	} else {
		decoded = unescape(s.peek)
		s.advance()
	}
	buffer.WriteRune(decoded)
	return nil
}

// isStartOfRegex decides whether a `/` begins a regex literal or is the
// division operator, based on the previous token.
func (s *scanner) isStartOfRegex() bool {
	if len(s.tokens) == 0 {
		return true
	}
	prev := s.tokens[len(s.tokens)-1]

	// `!` may be a negation (regex can follow) or a non-null assertion
	// (division follows).
	if prev.IsOperator("!") {
		var beforePrev *Token
		if len(s.tokens) > 1 {
			beforePrev = s.tokens[len(s.tokens)-2]
		}
		return beforePrev == nil ||
			(beforePrev.Type != TokenIdentifier &&
				!beforePrev.IsCharacter(chars.RParen) &&
				!beforePrev.IsCharacter(chars.RBracket))
	}

	return prev.Type == TokenOperator ||
		prev.IsCharacter(chars.LParen) ||
		prev.IsCharacter(chars.LBracket) ||
		prev.IsCharacter(chars.Comma) ||
		prev.IsCharacter(chars.Colon)
}

func (s *scanner) scanRegex(tokenStart int) *Token {
	s.advance()
	textStart := s.index
	inEscape := false
	inCharacterClass := false

	for {
		switch {
		case s.peek == chars.EOF:
			return s.error("Unterminated regular expression", 0)
		case inEscape:
			inEscape = false
		case int(s.peek) == chars.Backslash:
			inEscape = true
		case int(s.peek) == chars.LBracket:
			inCharacterClass = true
		case int(s.peek) == chars.RBracket:
			inCharacterClass = false
		case int(s.peek) == chars.Slash && !inCharacterClass:
			// The slashes stay inside the span but not the value.
			value := string(s.input[textStart:s.index])
			s.advance()
			body := &Token{Index: tokenStart, End: s.index, Type: TokenRegExpBody, StrValue: value}
			if flags := s.scanRegexFlags(s.index); flags != nil {
				s.tokens = append(s.tokens, body)
				return flags
			}
			return body
		}
		s.advance()
	}
}

func (s *scanner) scanRegexFlags(start int) *Token {
	if !chars.IsAsciiLetter(int(s.peek)) {
		return nil
	}
	for chars.IsAsciiLetter(int(s.peek)) {
		s.advance()
	}
	return &Token{Index: start, End: s.index, Type: TokenRegExpFlags, StrValue: string(s.input[start:s.index])}
}

func (s *scanner) error(message string, offset int) *Token {
	position := s.index + offset
	return &Token{
		Index: position,
		End:   s.index,
		Type:  TokenError,
		StrValue: "Lexer Error: " + message + " at column " + strconv.Itoa(position) +
			" in expression [" + string(s.input) + "]",
	}
}

func newCharacterToken(index, end, code int) *Token {
	return &Token{Index: index, End: end, Type: TokenCharacter, NumValue: float64(code), StrValue: string(rune(code))}
}

func newOperatorToken(index, end int, op string) *Token {
	return &Token{Index: index, End: end, Type: TokenOperator, StrValue: op}
}

func isIdentifierStart(code rune) bool {
	return (chars.UpperA <= int(code) && int(code) <= chars.UpperZ) ||
		(chars.LowerA <= int(code) && int(code) <= chars.LowerZ) ||
		int(code) == chars.Underscore || int(code) == chars.Dollar
}

func isIdentifierPart(code rune) bool {
	return chars.IsAsciiLetter(int(code)) || chars.IsDigit(int(code)) ||
		int(code) == chars.Underscore || int(code) == chars.Dollar
}

func isExponentStart(code rune) bool {
	return int(code) == chars.UpperE || int(code) == chars.LowerE
}

func isExponentSign(code rune) bool {
	return int(code) == chars.Minus || int(code) == chars.Plus
}

func unescape(code rune) rune {
	switch int(code) {
	case chars.LowerN:
		return chars.LF
	case chars.LowerF:
		return chars.FF
	case chars.LowerR:
		return chars.CR
	case chars.LowerT:
		return chars.Tab
	case chars.LowerV:
		return chars.VTab
	}
	return code
}
