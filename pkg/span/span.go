// Package span models source files, locations within them, character
// spans and the parse errors reported against those spans. All offsets
// are rune indices into the decoded file content.
package span

import (
	"fmt"
)

// SourceFile is a template source being tokenized or parsed.
type SourceFile struct {
	Content string
	URL     string
}

func NewSourceFile(content, url string) *SourceFile {
	return &SourceFile{Content: content, URL: url}
}

// Runes returns the decoded content. Callers that index repeatedly should
// hold on to the result.
func (f *SourceFile) Runes() []rune {
	return []rune(f.Content)
}

// Location is a single position inside a SourceFile. Line and Col are
// zero-based.
type Location struct {
	File   *SourceFile
	Offset int
	Line   int
	Col    int
}

func NewLocation(file *SourceFile, offset, line, col int) *Location {
	return &Location{File: file, Offset: offset, Line: line, Col: col}
}

func (l *Location) String() string {
	if l.Offset >= 0 {
		return fmt.Sprintf("%s@%d:%d", l.File.URL, l.Line, l.Col)
	}
	return l.File.URL
}

// MoveBy returns a new Location delta runes away, recomputing line and
// column by walking the content.
func (l *Location) MoveBy(delta int) *Location {
	source := l.File.Runes()
	offset, line, col := l.Offset, l.Line, l.Col

	for offset > 0 && delta < 0 {
		offset--
		delta++
		if source[offset] == '\n' {
			line--
			col = offset - lastLineStart(source, offset)
		} else {
			col--
		}
	}
	for offset < len(source) && delta > 0 {
		ch := source[offset]
		offset++
		delta--
		if ch == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return NewLocation(l.File, offset, line, col)
}

func lastLineStart(source []rune, before int) int {
	for i := before - 1; i >= 0; i-- {
		if source[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// Context is the source text surrounding a location.
type Context struct {
	Before string
	After  string
}

// GetContext returns up to maxChars of context on each side of the
// location, bounded to maxLines lines per side.
func (l *Location) GetContext(maxChars, maxLines int) *Context {
	content := l.File.Runes()
	if l.Offset < 0 || len(content) == 0 {
		return nil
	}
	start := l.Offset
	if start > len(content)-1 {
		start = len(content) - 1
	}
	end := start
	ctxChars, ctxLines := 0, 0

	for ctxChars < maxChars && start > 0 {
		start--
		ctxChars++
		if content[start] == '\n' {
			ctxLines++
			if ctxLines == maxLines {
				break
			}
		}
	}
	ctxChars, ctxLines = 0, 0
	for ctxChars < maxChars && end < len(content)-1 {
		end++
		ctxChars++
		if content[end] == '\n' {
			ctxLines++
			if ctxLines == maxLines {
				break
			}
		}
	}

	anchor := l.Offset
	if anchor > len(content) {
		anchor = len(content)
	}
	return &Context{
		Before: string(content[start:anchor]),
		After:  string(content[anchor : end+1]),
	}
}

// SourceSpan is a contiguous region of a SourceFile. FullStart is the
// start including any leading trivia that was skipped to reach Start.
type SourceSpan struct {
	Start     *Location
	End       *Location
	FullStart *Location
	Details   string
}

func NewSourceSpan(start, end, fullStart *Location, details string) *SourceSpan {
	if fullStart == nil {
		fullStart = start
	}
	return &SourceSpan{Start: start, End: end, FullStart: fullStart, Details: details}
}

// String returns the source text covered by the span.
func (s *SourceSpan) String() string {
	runes := s.Start.File.Runes()
	return string(runes[s.Start.Offset:s.End.Offset])
}

// ErrorLevel distinguishes fatal parse errors from advisory warnings.
type ErrorLevel int

const (
	Warning ErrorLevel = iota
	Error
)

func (l ErrorLevel) String() string {
	if l == Warning {
		return "WARNING"
	}
	return "ERROR"
}

// ParseError is an error (or warning) reported against a source span.
type ParseError struct {
	Span  *SourceSpan
	Msg   string
	Level ErrorLevel
}

func NewError(s *SourceSpan, msg string) *ParseError {
	return &ParseError{Span: s, Msg: msg, Level: Error}
}

func NewWarning(s *SourceSpan, msg string) *ParseError {
	return &ParseError{Span: s, Msg: msg, Level: Warning}
}

func (e *ParseError) Error() string { return e.String() }

// ContextualMessage renders the message with a marker inside the
// surrounding source text.
func (e *ParseError) ContextualMessage() string {
	if e.Span == nil || e.Span.Start == nil {
		return e.Msg
	}
	ctx := e.Span.Start.GetContext(100, 3)
	if ctx == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s (%q[%s ->]%q)", e.Msg, ctx.Before, e.Level, ctx.After)
}

func (e *ParseError) String() string {
	if e.Span == nil {
		return e.Msg
	}
	details := ""
	if e.Span.Details != "" {
		details = ", " + e.Span.Details
	}
	if e.Span.Start == nil {
		return e.ContextualMessage() + details
	}
	return fmt.Sprintf("%s: %s%s", e.ContextualMessage(), e.Span.Start, details)
}
