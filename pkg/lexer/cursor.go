package lexer

import (
	"fmt"

	"github.com/ngx-tools/template/pkg/chars"
	"github.com/ngx-tools/template/pkg/span"
)

// Range narrows tokenization to a window of the source. EndPos is
// exclusive; StartLine and StartCol seed the location bookkeeping for
// templates embedded in a larger file.
type Range struct {
	StartPos  int
	StartLine int
	StartCol  int
	EndPos    int
}

// CharacterCursor walks the decoded input one logical character at a
// time. All offsets are rune indices.
type CharacterCursor interface {
	Init()
	Peek() int
	Advance()
	GetSpan(start CharacterCursor, leadingTriviaCodePoints []int) *span.SourceSpan
	GetChars(start CharacterCursor) string
	CharsLeft() int
	Diff(other CharacterCursor) int
	Clone() CharacterCursor
}

// CursorError is raised via panic for malformed input discovered while
// advancing a cursor and recovered at the tokenizer boundary.
type CursorError struct {
	Msg    string
	Cursor CharacterCursor
}

func (c *CursorError) Error() string { return c.Msg }

type cursorState struct {
	peek   int
	offset int
	line   int
	column int
}

// PlainCursor reads the input as-is.
type PlainCursor struct {
	state cursorState
	file  *span.SourceFile
	input []rune
	end   int
}

func NewPlainCursor(file *span.SourceFile, rng *Range) *PlainCursor {
	return &PlainCursor{
		file:  file,
		input: file.Runes(),
		end:   rng.EndPos,
		state: cursorState{
			peek:   -1,
			offset: rng.StartPos,
			line:   rng.StartLine,
			column: rng.StartCol,
		},
	}
}

func (p *PlainCursor) Clone() CharacterCursor {
	clone := *p
	return &clone
}

func (p *PlainCursor) Init() {
	p.updatePeek(&p.state)
}

func (p *PlainCursor) Peek() int {
	return p.state.peek
}

func (p *PlainCursor) Advance() {
	p.advanceState(&p.state)
}

func (p *PlainCursor) GetSpan(start CharacterCursor, leadingTriviaCodePoints []int) *span.SourceSpan {
	if start == nil {
		start = p
	}
	fullStart := start

	if len(leadingTriviaCodePoints) > 0 {
		for p.Diff(start) > 0 && containsCode(leadingTriviaCodePoints, start.Peek()) {
			if fullStart == start {
				start = start.Clone()
			}
			start.Advance()
		}
	}

	startState := plainOf(start).state
	startLocation := span.NewLocation(p.file, startState.offset, startState.line, startState.column)
	endLocation := span.NewLocation(p.file, p.state.offset, p.state.line, p.state.column)

	fullStartLocation := startLocation
	if fullStart != start {
		fullState := plainOf(fullStart).state
		fullStartLocation = span.NewLocation(p.file, fullState.offset, fullState.line, fullState.column)
	}
	return span.NewSourceSpan(startLocation, endLocation, fullStartLocation, "")
}

func (p *PlainCursor) GetChars(start CharacterCursor) string {
	return string(p.input[plainOf(start).state.offset:p.state.offset])
}

func (p *PlainCursor) CharsLeft() int {
	return p.end - p.state.offset
}

func (p *PlainCursor) Diff(other CharacterCursor) int {
	return p.state.offset - plainOf(other).state.offset
}

func (p *PlainCursor) charAt(pos int) int {
	if pos >= p.end || pos >= len(p.input) {
		return chars.EOF
	}
	return int(p.input[pos])
}

// advanceState moves exactly one rune. A CRLF pair occupies two offsets
// but one visual line break: the CR half leaves line and column alone so
// the following LF does the bookkeeping.
func (p *PlainCursor) advanceState(state *cursorState) {
	if state.offset >= p.end {
		p.state = *state
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(chars.EOF), Cursor: p.Clone()})
	}
	current := p.charAt(state.offset)
	switch {
	case current == chars.LF:
		state.line++
		state.column = 0
	case current == chars.CR:
		if p.charAt(state.offset+1) != chars.LF {
			state.line++
			state.column = 0
		}
	case chars.IsNewLine(current):
		state.column = 0
	default:
		state.column++
	}
	state.offset++
	p.updatePeek(state)
}

func (p *PlainCursor) updatePeek(state *cursorState) {
	if state.offset >= p.end {
		state.peek = chars.EOF
	} else {
		state.peek = p.charAt(state.offset)
	}
}

func plainOf(c CharacterCursor) *PlainCursor {
	switch cur := c.(type) {
	case *PlainCursor:
		return cur
	case *EscapedCursor:
		return cur.PlainCursor
	default:
		panic(fmt.Sprintf("unexpected cursor type: %T", c))
	}
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// EscapedCursor decodes backslash escape sequences on the fly, for
// templates whose source arrives as an escaped string. The internal
// state tracks the raw position while the visible state exposes the
// decoded character.
type EscapedCursor struct {
	*PlainCursor
	internalState cursorState
}

func NewEscapedCursor(file *span.SourceFile, rng *Range) *EscapedCursor {
	plain := NewPlainCursor(file, rng)
	return &EscapedCursor{PlainCursor: plain, internalState: plain.state}
}

func (e *EscapedCursor) Clone() CharacterCursor {
	return &EscapedCursor{
		PlainCursor:   e.PlainCursor.Clone().(*PlainCursor),
		internalState: e.internalState,
	}
}

func (e *EscapedCursor) Advance() {
	e.state = e.internalState
	e.PlainCursor.Advance()
	e.internalState = e.state
	e.processEscapeSequence()
}

func (e *EscapedCursor) Init() {
	e.PlainCursor.Init()
	e.internalState = e.state
	e.processEscapeSequence()
}

func (e *EscapedCursor) GetSpan(start CharacterCursor, leadingTriviaCodePoints []int) *span.SourceSpan {
	if start == nil {
		return e.PlainCursor.GetSpan(nil, leadingTriviaCodePoints)
	}
	return e.PlainCursor.GetSpan(plainOf(start), leadingTriviaCodePoints)
}

// GetChars re-reads the raw input between the internal offsets so escape
// sequences come back decoded exactly once.
func (e *EscapedCursor) GetChars(start CharacterCursor) string {
	from, ok := start.(*EscapedCursor)
	if !ok {
		return e.PlainCursor.GetChars(start)
	}
	return string(e.input[from.internalState.offset:e.internalState.offset])
}

func (e *EscapedCursor) processEscapeSequence() {
	if e.internalState.peek != chars.Backslash {
		return
	}

	// The escape starts at the visible position; walk the raw characters
	// behind it.
	e.internalState = e.state
	e.advanceState(&e.internalState)

	switch e.internalState.peek {
	case chars.LowerN:
		e.state.peek = chars.LF
	case chars.LowerR:
		e.state.peek = chars.CR
	case chars.LowerV:
		e.state.peek = chars.VTab
	case chars.LowerT:
		e.state.peek = chars.Tab
	case chars.LowerB:
		e.state.peek = chars.BSpace
	case chars.LowerF:
		e.state.peek = chars.FF
	case chars.LowerU:
		e.advanceState(&e.internalState)
		if e.internalState.peek == chars.LBrace {
			// Variable length code point, e.g. `\u{123}`.
			e.advanceState(&e.internalState)
			digitStart := e.Clone().(*EscapedCursor)
			length := 0
			for e.internalState.peek != chars.RBrace {
				e.advanceState(&e.internalState)
				length++
			}
			e.state.peek = e.decodeHexDigits(digitStart, length)
		} else {
			// Fixed length, four hex digits after the marker.
			digitStart := e.Clone().(*EscapedCursor)
			e.advanceState(&e.internalState)
			e.advanceState(&e.internalState)
			e.advanceState(&e.internalState)
			e.state.peek = e.decodeHexDigits(digitStart, 4)
		}
	case chars.LowerX:
		e.advanceState(&e.internalState)
		digitStart := e.Clone().(*EscapedCursor)
		e.advanceState(&e.internalState)
		e.state.peek = e.decodeHexDigits(digitStart, 2)
	default:
		if chars.IsOctalDigit(e.internalState.peek) {
			codePoint := 0
			length := 0
			previous := e.Clone().(*EscapedCursor)
			for chars.IsOctalDigit(e.internalState.peek) && length < 3 {
				previous = e.Clone().(*EscapedCursor)
				codePoint = codePoint*8 + (e.internalState.peek - chars.Digit0)
				e.advanceState(&e.internalState)
				length++
			}
			e.state.peek = codePoint
			e.internalState = previous.internalState
		} else if chars.IsNewLine(e.internalState.peek) {
			// Line continuation: the backslash-newline pair vanishes.
			e.advanceState(&e.internalState)
			e.state = e.internalState
		} else {
			e.state.peek = e.internalState.peek
		}
	}
}

func (e *EscapedCursor) decodeHexDigits(start *EscapedCursor, length int) int {
	from := start.internalState.offset
	if from+length > len(e.input) {
		panic(&CursorError{Msg: "Invalid hexadecimal escape sequence", Cursor: start})
	}
	codePoint := 0
	for _, ch := range e.input[from : from+length] {
		var digit int
		switch {
		case ch >= '0' && ch <= '9':
			digit = int(ch - '0')
		case ch >= 'a' && ch <= 'f':
			digit = int(ch-'a') + 10
		case ch >= 'A' && ch <= 'F':
			digit = int(ch-'A') + 10
		default:
			panic(&CursorError{Msg: "Invalid hexadecimal escape sequence", Cursor: start})
		}
		codePoint = codePoint*16 + digit
	}
	return codePoint
}

func unexpectedCharacterErrorMsg(charCode int) string {
	char := string(rune(charCode))
	if charCode == chars.EOF {
		char = "EOF"
	}
	return fmt.Sprintf("Unexpected character %q", char)
}
