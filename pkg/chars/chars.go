// Package chars holds the character-code constants and predicates shared
// by the template tokenizer and the expression lexer.
package chars

const (
	EOF       = 0
	BSpace    = 8
	Tab       = 9
	LF        = 10
	VTab      = 11
	FF        = 12
	CR        = 13
	Space     = 32
	Bang      = 33
	DQ        = 34
	Hash      = 35
	Dollar    = 36
	Percent   = 37
	Ampersand = 38
	SQ        = 39
	LParen    = 40
	RParen    = 41
	Star      = 42
	Plus      = 43
	Comma     = 44
	Minus     = 45
	Period    = 46
	Slash     = 47
	Colon     = 58
	Semicolon = 59
	LT        = 60
	EQ        = 61
	GT        = 62
	Question  = 63
	At        = 64

	Digit0 = 48
	Digit7 = 55
	Digit9 = 57

	UpperA = 65
	UpperE = 69
	UpperF = 70
	UpperX = 88
	UpperZ = 90

	LBracket   = 91
	Backslash  = 92
	RBracket   = 93
	Caret      = 94
	Underscore = 95
	Backtick   = 96

	LowerA = 97
	LowerB = 98
	LowerE = 101
	LowerF = 102
	LowerN = 110
	LowerR = 114
	LowerT = 116
	LowerU = 117
	LowerV = 118
	LowerX = 120
	LowerZ = 122

	LBrace = 123
	Bar    = 124
	RBrace = 125
	Tilde  = 126
	NBSP   = 160
)

func IsWhitespace(code int) bool {
	return (code >= Tab && code <= Space) || code == NBSP
}

func IsDigit(code int) bool {
	return Digit0 <= code && code <= Digit9
}

func IsAsciiLetter(code int) bool {
	return (code >= LowerA && code <= LowerZ) || (code >= UpperA && code <= UpperZ)
}

func IsAsciiHexDigit(code int) bool {
	return (code >= LowerA && code <= LowerF) || (code >= UpperA && code <= UpperF) || IsDigit(code)
}

func IsNewLine(code int) bool {
	return code == LF || code == CR
}

func IsOctalDigit(code int) bool {
	return Digit0 <= code && code <= Digit7
}

func IsQuote(code int) bool {
	return code == SQ || code == DQ || code == Backtick
}
