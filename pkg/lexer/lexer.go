// Package lexer tokenizes Angular-style HTML templates: tags, attributes,
// interpolations, ICU expansion forms, control-flow blocks, @let
// declarations and selectorless component/directive syntax.
package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ngx-tools/template/pkg/chars"
	"github.com/ngx-tools/template/pkg/span"
)

const (
	interpolationStart = "{{"
	interpolationEnd   = "}}"
)

// supportedBlocks are the @-block names recognized when block tokenization
// is enabled. "@else" also covers "@else if".
var supportedBlocks = []string{
	"@if",
	"@else",
	"@for",
	"@switch",
	"@case",
	"@default",
	"@empty",
	"@defer",
	"@placeholder",
	"@loading",
	"@error",
}

// Options control tokenization. The zero value disables everything
// optional; start from DefaultOptions for the production defaults.
type Options struct {
	// TokenizeExpansionForms enables ICU expansion form tokens.
	TokenizeExpansionForms bool
	// Range restricts tokenization to a window of the source.
	Range *Range
	// EscapedString decodes backslash escape sequences while reading.
	EscapedString bool
	// I18nNormalizeLineEndingsInICUs normalizes \r\n inside ICU
	// expressions even when PreserveLineEndings is set.
	I18nNormalizeLineEndingsInICUs bool
	// LeadingTriviaChars are skipped when computing token span starts;
	// the skipped region is still covered by FullStart.
	LeadingTriviaChars []string
	// PreserveLineEndings keeps \r\n pairs in token text.
	PreserveLineEndings bool
	// TokenizeBlocks enables @if/@for/... block tokens.
	TokenizeBlocks bool
	// TokenizeLet enables @let declaration tokens.
	TokenizeLet bool
	// SelectorlessEnabled enables component tags and @directive syntax.
	SelectorlessEnabled bool
	// TagDefinition resolves content types per tag; defaults to
	// GetHtmlTagDefinition.
	TagDefinition func(tagName string) TagDefinition
}

// DefaultOptions returns the production defaults: blocks and @let on,
// everything else off.
func DefaultOptions() Options {
	return Options{TokenizeBlocks: true, TokenizeLet: true}
}

// TokenizeResult is the full output of a tokenizer run.
type TokenizeResult struct {
	Tokens []*Token
	Errors []*span.ParseError
	// NonNormalizedIcuExpressions are ICU expression tokens whose text
	// was kept raw but differs from its normalized form.
	NonNormalizedIcuExpressions []*Token
}

// Tokenize converts template source into a token stream. Errors are
// collected, not returned: malformed input degrades to INCOMPLETE_* or
// TEXT tokens wherever possible and tokenization runs to the end.
func Tokenize(source, url string, opts Options) *TokenizeResult {
	file := span.NewSourceFile(source, url)
	t := newTokenizer(file, opts)
	t.tokenize()
	return &TokenizeResult{
		Tokens:                      mergeTextTokens(t.tokens),
		Errors:                      t.errors,
		NonNormalizedIcuExpressions: t.nonNormalizedIcuExpressions,
	}
}

type tokenizer struct {
	cursor                         CharacterCursor
	tokenizeIcu                    bool
	leadingTriviaCodePoints        []int
	currentTokenStart              CharacterCursor
	currentTokenType               TokenType
	expansionCaseStack             []TokenType
	openDirectiveCount             int
	inInterpolation                bool
	preserveLineEndings            bool
	i18nNormalizeLineEndingsInICUs bool
	tokenizeBlocks                 bool
	tokenizeLet                    bool
	selectorlessEnabled            bool
	tokens                         []*Token
	errors                         []*span.ParseError
	nonNormalizedIcuExpressions    []*Token
	getTagDefinition               func(tagName string) TagDefinition
	budget                         int
}

func newTokenizer(file *span.SourceFile, opts Options) *tokenizer {
	rng := opts.Range
	if rng == nil {
		rng = &Range{EndPos: len(file.Runes())}
	}

	var cursor CharacterCursor
	if opts.EscapedString {
		cursor = NewEscapedCursor(file, rng)
	} else {
		cursor = NewPlainCursor(file, rng)
	}

	var trivia []int
	for _, c := range opts.LeadingTriviaChars {
		for _, r := range c {
			trivia = append(trivia, int(r))
			break
		}
	}

	getTagDefinition := opts.TagDefinition
	if getTagDefinition == nil {
		getTagDefinition = GetHtmlTagDefinition
	}

	t := &tokenizer{
		cursor:                         cursor,
		tokenizeIcu:                    opts.TokenizeExpansionForms,
		leadingTriviaCodePoints:        trivia,
		currentTokenType:               tokenTypeNone,
		preserveLineEndings:            opts.PreserveLineEndings,
		i18nNormalizeLineEndingsInICUs: opts.I18nNormalizeLineEndingsInICUs,
		tokenizeBlocks:                 opts.TokenizeBlocks,
		tokenizeLet:                    opts.TokenizeLet,
		selectorlessEnabled:            opts.SelectorlessEnabled,
		getTagDefinition:               getTagDefinition,
		budget:                         (rng.EndPos-rng.StartPos)*8 + 1024,
	}
	t.cursor.Init()
	return t
}

func (t *tokenizer) tokenize() {
	t.run()
	t.beginToken(EOF, t.cursor.Clone())
	t.endToken([]string{}, nil)
}

func (t *tokenizer) run() {
	iterations := 0
	for t.cursor.Peek() != chars.EOF {
		iterations++
		start := t.cursor.Clone()
		if iterations > t.budget {
			t.stall(start)
			return
		}

		errorsBefore := len(t.errors)
		t.tryConsume(func() { t.dispatch(start) })

		// Every iteration must move the cursor. A recovered error may
		// leave it in place; force one character of progress so the next
		// iteration resumes from fresh input. Anything else stuck here is
		// a liveness bug, recorded rather than looping forever.
		if t.cursor.Diff(start) <= 0 {
			if len(t.errors) == errorsBefore {
				t.stall(start)
				return
			}
			if t.cursor.Peek() != chars.EOF {
				t.cursor.Advance()
			}
		}
	}
}

func (t *tokenizer) dispatch(start CharacterCursor) {
	if t.attemptCharCode(chars.LT) {
		if t.attemptCharCode(chars.Bang) {
			if t.attemptCharCode(chars.LBracket) {
				t.consumeCdata(start)
			} else if t.attemptCharCode(chars.Minus) {
				t.consumeComment(start)
			} else {
				t.consumeDocType(start)
			}
		} else if t.attemptCharCode(chars.Slash) {
			t.consumeTagClose(start)
		} else {
			info := t.consumeTagOpen(start)
			if info != nil && !info.isSelfClosing {
				t.consumeRawTextIfNeeded(info)
			}
		}
	} else if t.tokenizeLet && t.cursor.Peek() == chars.At && !t.inInterpolation && t.isLetStart() {
		t.consumeLetDeclaration(start)
	} else {
		handled := false
		if t.tokenizeIcu && !t.inInterpolation {
			handled = t.tokenizeExpansionForm()
		}
		if !handled && t.tokenizeBlocks {
			if t.isBlockStart() {
				t.consumeBlockStart(start)
				handled = true
			} else if !t.inInterpolation && !t.isInExpansionCase() && !t.isInExpansionForm() &&
				t.attemptCharCode(chars.RBrace) {
				t.consumeBlockEnd(start)
				handled = true
			}
		}
		if !handled {
			t.consumeWithInterpolation(Text, Interpolation, t.isTextEnd, t.isTagStart)
		}
	}
}

func (t *tokenizer) stall(start CharacterCursor) {
	t.errors = append(t.errors, t.createError("Tokenizer stalled", t.cursor.GetSpan(start, nil)))
}

// tryConsume runs one scanner and records any panic as a lexical error so
// the main loop can keep going.
func (t *tokenizer) tryConsume(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.handleError(r)
		}
	}()
	fn()
}

func (t *tokenizer) consumeCdata(start CharacterCursor) {
	t.beginToken(CdataStart, start)
	t.requireStr("CDATA[")
	t.endToken([]string{}, nil)
	t.consumeRawText(false, func() bool { return t.attemptStr("]]>") })
	t.beginToken(CdataEnd, nil)
	t.requireStr("]]>")
	t.endToken([]string{}, nil)
}

func (t *tokenizer) consumeComment(start CharacterCursor) {
	defer func() {
		if r := recover(); r != nil {
			// Move past the malformed comment so tokenization can resume
			// after the error is recorded.
			for t.cursor.Peek() != chars.EOF {
				if t.attemptStr("-->") {
					break
				}
				if t.cursor.Peek() == chars.GT {
					t.cursor.Advance()
					break
				}
				t.cursor.Advance()
			}
			panic(r)
		}
	}()
	t.beginToken(CommentStart, start)
	t.requireCharCode(chars.Minus)
	t.endToken([]string{}, nil)
	t.consumeRawText(false, func() bool { return t.attemptStr("-->") })
	t.beginToken(CommentEnd, nil)
	t.requireStr("-->")
	t.endToken([]string{}, nil)
}

func (t *tokenizer) consumeDocType(start CharacterCursor) {
	t.beginToken(DocType, start)
	contentStart := t.cursor.Clone()
	t.attemptUntilChar(chars.GT)
	content := t.cursor.GetChars(contentStart)
	t.cursor.Advance()
	t.endToken([]string{content}, nil)
}

func (t *tokenizer) consumeTagClose(start CharacterCursor) {
	if t.selectorlessEnabled {
		clone := start.Clone()
		for clone.Peek() != chars.GT && !isSelectorlessNameStart(clone.Peek()) {
			clone.Advance()
		}
		if isSelectorlessNameStart(clone.Peek()) {
			t.beginToken(ComponentClose, start)
			parts := t.consumeComponentName()
			t.attemptCharCodeUntilFn(isNotWhitespace)
			t.requireCharCode(chars.GT)
			t.endToken(parts, nil)
			return
		}
	}

	t.beginToken(TagClose, start)
	t.attemptCharCodeUntilFn(isNotWhitespace)
	prefixAndName := t.consumePrefixAndName(isNameEnd)
	t.attemptCharCodeUntilFn(isNotWhitespace)
	t.requireCharCode(chars.GT)
	t.endToken(prefixAndName, nil)
}

type tagInfo struct {
	prefix        string
	name          string
	isSelfClosing bool
	// closingTagName is the name the matching close tag must carry; for
	// component tags it is the composed "Name:prefix:tagName" form.
	closingTagName string
}

func (t *tokenizer) consumeTagOpen(start CharacterCursor) (info *tagInfo) {
	openTokenStarted := false

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		msg, recoverable := panicMessage(r)
		if !recoverable {
			panic(r)
		}
		if !openTokenStarted {
			// No tag name was consumed, so treat "<" and everything up to
			// the closing ">" as text. Adjacent text tokens are merged in
			// the final pass.
			for t.cursor.Peek() != chars.GT && t.cursor.Peek() != chars.EOF {
				t.cursor.Advance()
			}
			if t.cursor.Peek() == chars.GT {
				t.cursor.Advance()
			}
			t.beginToken(Text, start)
			t.endToken([]string{t.cursor.GetChars(start)}, nil)
			return
		}
		// The opening tag was cut short: degrade its token. Errors raised
		// after attributes were seen (for example a missing closing quote)
		// are still reported; a bare EOF in the tag header is expected for
		// incomplete tags and stays silent.
		t.rewriteLastOpenToken()
		if t.lastOpenTagHasAttributes() || msg != unexpectedCharacterErrorMsg(chars.EOF) {
			panic(r)
		}
	}()

	var openToken *Token
	var closingTagName, prefix, name string

	if t.selectorlessEnabled && isSelectorlessNameStart(t.cursor.Peek()) {
		t.beginToken(ComponentOpenStart, start)
		openTokenStarted = true
		parts := t.consumeComponentName()
		openToken = t.endToken(parts, nil)
		closingTagName = parts[0]
		prefix = parts[1]
		name = parts[2]
		if prefix != "" {
			closingTagName += ":" + prefix
		}
		if name != "" {
			closingTagName += ":" + name
		}
		t.attemptCharCodeUntilFn(isNotWhitespace)
	} else {
		if !chars.IsAsciiLetter(t.cursor.Peek()) {
			panic(t.createError(
				unexpectedCharacterErrorMsg(t.cursor.Peek()),
				t.cursor.GetSpan(start, nil),
			))
		}
		prefixAndName := t.consumePrefixAndName(func(code int) bool {
			return isNameEnd(code) || code == chars.Slash
		})
		prefix = prefixAndName[0]
		name = prefixAndName[1]
		closingTagName = name
		t.beginToken(TagOpenStart, start)
		openTokenStarted = true
		openToken = t.endToken(prefixAndName, nil)
		t.attemptCharCodeUntilFn(isNotWhitespace)
	}

	t.consumeAttributesAndDirectives()

	// A stray quote, a square-bracket attribute name cut off by a newline
	// or a new tag start all mean the opening tag never closed.
	if peek := t.cursor.Peek(); peek == chars.SQ || peek == chars.DQ || peek == chars.LT ||
		t.hasIncompleteBracketAttr() {
		t.rewriteLastOpenToken()
		if t.cursor.Peek() == chars.Slash {
			t.cursor.Advance()
		}
		textStart := t.cursor.Clone()
		if t.cursor.Peek() == chars.SQ || t.cursor.Peek() == chars.DQ {
			for t.cursor.Peek() != chars.GT && t.cursor.Peek() != chars.LT && t.cursor.Peek() != chars.EOF {
				t.cursor.Advance()
			}
			if t.cursor.Peek() == chars.GT {
				t.cursor.Advance()
			}
			t.beginToken(Text, textStart)
			t.endToken([]string{t.cursor.GetChars(textStart)}, nil)
			return &tagInfo{prefix: prefix, name: name, closingTagName: closingTagName}
		}
		if t.cursor.Peek() == chars.LT {
			// Leave the "<" for the main loop.
			return &tagInfo{prefix: prefix, name: name, closingTagName: closingTagName}
		}
		for t.cursor.Peek() != chars.GT && t.cursor.Peek() != chars.EOF {
			t.cursor.Advance()
		}
		if t.cursor.Peek() == chars.GT {
			t.cursor.Advance()
		}
		t.beginToken(Text, textStart)
		t.endToken([]string{t.cursor.GetChars(textStart)}, nil)
		return &tagInfo{prefix: prefix, name: name, closingTagName: closingTagName}
	}

	if t.attemptCharCode(chars.Slash) {
		if openToken.Type == ComponentOpenStart {
			t.beginToken(ComponentOpenEndVoid, nil)
		} else {
			t.beginToken(TagOpenEndVoid, nil)
		}
		if !t.attemptCharCode(chars.GT) {
			panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: t.cursor.Clone()})
		}
		t.endToken([]string{}, nil)
		return &tagInfo{prefix: prefix, name: name, isSelfClosing: true, closingTagName: closingTagName}
	}

	if t.cursor.Peek() == chars.EOF {
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(chars.EOF), Cursor: t.cursor.Clone()})
	}
	if openToken.Type == ComponentOpenStart {
		t.beginToken(ComponentOpenEnd, nil)
	} else {
		t.beginToken(TagOpenEnd, nil)
	}
	if !t.attemptCharCode(chars.GT) {
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: t.cursor.Clone()})
	}
	t.endToken([]string{}, nil)
	return &tagInfo{prefix: prefix, name: name, closingTagName: closingTagName}
}

// rewriteLastOpenToken degrades the most recent tag or component open
// token to its INCOMPLETE_* form.
func (t *tokenizer) rewriteLastOpenToken() {
	for i := len(t.tokens) - 1; i >= 0; i-- {
		switch t.tokens[i].Type {
		case TagOpenStart:
			t.tokens[i].Type = IncompleteTagOpen
			return
		case ComponentOpenStart:
			t.tokens[i].Type = IncompleteComponentOpen
			return
		case IncompleteTagOpen, IncompleteComponentOpen:
			return
		}
	}
}

func (t *tokenizer) lastOpenTagHasAttributes() bool {
	for i := len(t.tokens) - 1; i >= 0; i-- {
		switch t.tokens[i].Type {
		case AttrName, AttrQuote, AttrValueText, AttrValueInterpolation:
			return true
		case TagOpenStart, IncompleteTagOpen, ComponentOpenStart, IncompleteComponentOpen:
			return false
		}
	}
	return false
}

// hasIncompleteBracketAttr reports whether the current tag contains a
// square-bracket attribute name that was cut off by a newline.
func (t *tokenizer) hasIncompleteBracketAttr() bool {
	for i := len(t.tokens) - 1; i >= 0; i-- {
		tok := t.tokens[i]
		if tok.Type == AttrName && len(tok.Parts) > 0 {
			name := tok.Parts[len(tok.Parts)-1]
			if len(name) > 0 && name[0] == '[' && name[len(name)-1] != ']' {
				return true
			}
		}
		if tok.Type == TagOpenStart || tok.Type == ComponentOpenStart ||
			tok.Type == IncompleteTagOpen || tok.Type == IncompleteComponentOpen {
			break
		}
	}
	return false
}

func (t *tokenizer) consumeComponentName() []string {
	nameStart := t.cursor.Clone()
	for isSelectorlessNameChar(t.cursor.Peek()) {
		t.cursor.Advance()
	}
	name := t.cursor.GetChars(nameStart)
	prefix, tagName := "", ""
	if t.cursor.Peek() == chars.Colon {
		t.cursor.Advance()
		prefixAndName := t.consumePrefixAndName(isNameEnd)
		prefix = prefixAndName[0]
		tagName = prefixAndName[1]
	}
	return []string{name, prefix, tagName}
}

func (t *tokenizer) consumeRawTextIfNeeded(info *tagInfo) {
	definition := t.getTagDefinition(info.name)
	if definition == nil {
		return
	}
	var prefix *string
	if info.prefix != "" {
		prefix = &info.prefix
	}
	contentType := definition.GetContentType(prefix)
	if contentType != ContentRawText && contentType != ContentEscapableRawText {
		return
	}

	var openToken *Token
	for i := len(t.tokens) - 1; i >= 0; i-- {
		if t.tokens[i].Type == TagOpenStart || t.tokens[i].Type == ComponentOpenStart {
			openToken = t.tokens[i]
			break
		}
	}
	t.consumeRawTextWithTagClose(openToken, info.closingTagName, contentType == ContentEscapableRawText)
}

func (t *tokenizer) consumeRawTextWithTagClose(openToken *Token, closingTagName string, consumeEntities bool) {
	t.consumeRawText(consumeEntities, func() bool {
		if !t.attemptCharCode(chars.LT) {
			return false
		}
		if !t.attemptCharCode(chars.Slash) {
			return false
		}
		t.attemptCharCodeUntilFn(isNotWhitespace)
		if !t.attemptStrCaseInsensitive(closingTagName) {
			return false
		}
		t.attemptCharCodeUntilFn(isNotWhitespace)
		return t.attemptCharCode(chars.GT)
	})

	closeType := TagClose
	parts := []string{"", closingTagName}
	if openToken != nil {
		parts = openToken.Parts
		if openToken.Type == ComponentOpenStart {
			closeType = ComponentClose
		}
	}
	t.beginToken(closeType, t.cursor.Clone())
	t.requireCharCodeUntilFn(func(code int) bool { return code == chars.GT }, 3)
	t.cursor.Advance()
	t.endToken(parts, nil)
}

func (t *tokenizer) consumeRawText(consumeEntities bool, endMarkerPredicate func() bool) {
	tokenType := RawText
	if consumeEntities {
		tokenType = EscapableRawText
	}
	t.beginToken(tokenType, nil)
	var parts []string
	for {
		endMarkerStart := t.cursor.Clone()
		if endMarkerPredicate() {
			// Rewind so the caller can consume the end marker itself.
			t.cursor = endMarkerStart
			break
		}
		t.cursor = endMarkerStart
		if consumeEntities && t.cursor.Peek() == chars.Ampersand {
			t.endToken([]string{t.processCarriageReturns(strings.Join(parts, ""))}, nil)
			parts = nil
			t.consumeEntity(EscapableRawText)
			t.beginToken(EscapableRawText, nil)
		} else {
			parts = append(parts, t.readChar())
		}
	}
	t.endToken([]string{t.processCarriageReturns(strings.Join(parts, ""))}, nil)
}

func (t *tokenizer) consumeEntity(textTokenType TokenType) {
	t.beginToken(EncodedEntity, nil)
	start := t.cursor.Clone()
	t.cursor.Advance() // skip "&"

	if t.attemptCharCode(chars.Hash) {
		isHex := t.attemptCharCode(chars.LowerX) || t.attemptCharCode(chars.UpperX)
		codeStart := t.cursor.Clone()
		t.attemptCharCodeUntilFn(isDigitEntityEnd)
		if t.cursor.Peek() != chars.Semicolon {
			// Include the offending character in the reported entity text.
			t.cursor.Advance()
			entityType := "decimal"
			if isHex {
				entityType = "hexadecimal"
			}
			panic(t.createError(
				fmt.Sprintf("Unable to parse entity %q - %s character reference entities must end with \";\"",
					t.cursor.GetChars(start), entityType),
				t.cursor.GetSpan(nil, nil),
			))
		}
		strNum := t.cursor.GetChars(codeStart)
		t.cursor.Advance()

		base := 10
		if isHex {
			base = 16
		}
		charCode, err := strconv.ParseInt(strNum, base, 32)
		if err != nil || charCode < 0 || charCode > 0x10FFFF {
			panic(t.createError(
				fmt.Sprintf("Unknown entity %q - invalid code point", t.cursor.GetChars(start)),
				t.cursor.GetSpan(start, nil),
			))
		}
		t.endToken([]string{string(rune(charCode)), t.cursor.GetChars(start)}, nil)
		return
	}

	nameStart := t.cursor.Clone()
	t.attemptCharCodeUntilFn(isNamedEntityEnd)
	if t.cursor.Peek() != chars.Semicolon {
		// Not a terminated reference: keep it as literal text.
		entityName := t.cursor.GetChars(nameStart)
		t.beginToken(textTokenType, start)
		t.endToken([]string{"&" + entityName}, nil)
		return
	}
	name := t.cursor.GetChars(nameStart)
	t.cursor.Advance()

	decoded, ok := GetNamedEntity(name)
	if !ok {
		// Unknown names pass through as literal text.
		t.beginToken(textTokenType, start)
		t.endToken([]string{t.cursor.GetChars(start)}, nil)
		return
	}
	t.endToken([]string{decoded, "&" + name + ";"}, nil)
}

func (t *tokenizer) consumeAttributesAndDirectives() {
	for !isAttributeTerminator(t.cursor.Peek()) {
		t.attemptCharCodeUntilFn(isNotWhitespace)
		peek := t.cursor.Peek()
		if isAttributeTerminator(peek) || peek == chars.SQ || peek == chars.DQ {
			// A stray quote means the tag is malformed; stop here and let
			// the caller degrade it.
			break
		}
		if peek == chars.EQ {
			t.cursor.Advance()
			t.attemptCharCodeUntilFn(isNotWhitespace)
			t.consumeAttributeValue()
			continue
		}
		if peek == chars.At {
			t.consumeDirective()
			continue
		}
		before := t.cursor.Clone()
		t.consumeAttr()
		if t.cursor.Diff(before) <= 0 {
			t.cursor.Advance()
		}
	}
}

func (t *tokenizer) consumeAttr() {
	t.beginToken(AttrName, nil)

	attrNameStart := t.cursor.Peek()
	var nameEndPredicate func(code int) bool
	switch {
	case t.openDirectiveCount > 0:
		// Inside directive syntax the first unmatched ")" closes the
		// directive, not an event binding name.
		openParens := 0
		nameEndPredicate = func(code int) bool {
			if code == chars.LParen {
				openParens++
			} else if code == chars.RParen {
				if openParens == 0 {
					return true
				}
				openParens--
			}
			return isNameEnd(code)
		}
	case attrNameStart == chars.LBracket:
		// Square-bracketed names may contain almost anything while the
		// brackets are unbalanced, but never a newline.
		openBrackets := 0
		nameEndPredicate = func(code int) bool {
			if code == chars.LBracket {
				openBrackets++
			} else if code == chars.RBracket {
				openBrackets--
			}
			if openBrackets > 0 {
				return chars.IsNewLine(code)
			}
			return isNameEnd(code) || code == chars.EQ
		}
	default:
		nameEndPredicate = func(code int) bool {
			return isNameEnd(code) || code == chars.EQ
		}
	}

	t.endToken(t.consumePrefixAndName(nameEndPredicate), nil)

	if t.attemptCharCode(chars.EQ) {
		t.attemptCharCodeUntilFn(isNotWhitespace)
		t.consumeAttributeValue()
	}
}

func (t *tokenizer) consumeAttributeValue() {
	if peek := t.cursor.Peek(); peek == chars.SQ || peek == chars.DQ {
		quoteChar := peek
		t.consumeQuote(quoteChar)
		// Both the end of the value and a premature end to an inner
		// interpolation are signalled by the quote character.
		endPredicate := func() bool { return t.cursor.Peek() == quoteChar }
		t.consumeWithInterpolation(AttrValueText, AttrValueInterpolation, endPredicate, t.isTagStart)
		if t.cursor.Peek() != quoteChar {
			if t.cursor.Peek() == chars.EOF {
				panic(t.createError(unexpectedCharacterErrorMsg(chars.EOF), t.cursor.GetSpan(nil, nil)))
			}
			if t.cursor.Peek() == chars.GT {
				t.cursor.Advance()
				panic(t.createError(unexpectedCharacterErrorMsg(chars.EOF), t.cursor.GetSpan(nil, nil)))
			}
		}
		t.consumeQuote(quoteChar)
		return
	}
	endPredicate := func() bool { return isNameEnd(t.cursor.Peek()) }
	t.consumeWithInterpolation(AttrValueText, AttrValueInterpolation, endPredicate, t.isTagStart)
}

func (t *tokenizer) consumeQuote(quoteChar int) {
	t.beginToken(AttrQuote, nil)
	t.requireCharCode(quoteChar)
	t.endToken([]string{string(rune(quoteChar))}, nil)
}

func (t *tokenizer) consumeDirective() {
	start := t.cursor.Clone()
	t.requireCharCode(chars.At)
	nameStart := t.cursor.Clone()
	for isSelectorlessNameChar(t.cursor.Peek()) {
		t.cursor.Advance()
	}
	t.beginToken(DirectiveName, start)
	t.endToken([]string{t.cursor.GetChars(nameStart)}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)

	// Attributes bound to the directive are optional.
	if t.cursor.Peek() != chars.LParen {
		return
	}

	t.openDirectiveCount++
	t.beginToken(DirectiveOpen, nil)
	t.cursor.Advance()
	t.endToken([]string{}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)

	for !isAttributeTerminator(t.cursor.Peek()) && t.cursor.Peek() != chars.RParen {
		t.attemptCharCodeUntilFn(isNotWhitespace)
		if isAttributeTerminator(t.cursor.Peek()) || t.cursor.Peek() == chars.RParen {
			break
		}
		if t.cursor.Peek() == chars.At {
			t.consumeDirective()
		} else {
			t.consumeAttr()
		}
	}

	t.attemptCharCodeUntilFn(isNotWhitespace)
	t.openDirectiveCount--

	if t.cursor.Peek() != chars.RParen {
		// Hitting the end of the tag stops parsing instead of erroring.
		if t.cursor.Peek() == chars.GT || t.cursor.Peek() == chars.Slash {
			return
		}
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: t.cursor.Clone()})
	}

	t.beginToken(DirectiveClose, nil)
	t.cursor.Advance()
	t.endToken([]string{}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)
}

func (t *tokenizer) isLetStart() bool {
	return t.cursor.Peek() == chars.At && t.peekStr("@let")
}

func (t *tokenizer) consumeLetDeclaration(start CharacterCursor) {
	t.requireStr("@let")
	t.beginToken(LetStart, start)

	// At least one whitespace character must follow the keyword.
	if chars.IsWhitespace(t.cursor.Peek()) {
		t.attemptCharCodeUntilFn(isNotWhitespace)
	} else {
		token := t.endToken([]string{t.cursor.GetChars(start)}, nil)
		token.Type = IncompleteLet
		return
	}

	startToken := t.endToken([]string{t.getLetDeclarationName()}, nil)

	t.attemptCharCodeUntilFn(isNotWhitespace)
	if !t.attemptCharCode(chars.EQ) {
		startToken.Type = IncompleteLet
		return
	}

	t.attemptCharCodeUntilFn(func(code int) bool {
		return isNotWhitespace(code) && !chars.IsNewLine(code)
	})
	t.consumeLetDeclarationValue()

	if t.cursor.Peek() == chars.Semicolon {
		t.beginToken(LetEnd, nil)
		t.endToken([]string{}, nil)
		t.cursor.Advance()
	} else {
		startToken.Type = IncompleteLet
		startToken.SourceSpan = t.cursor.GetSpan(start, nil)
	}
}

func (t *tokenizer) getLetDeclarationName() string {
	nameCursor := t.cursor.Clone()
	allowDigit := false
	t.attemptCharCodeUntilFn(func(code int) bool {
		if chars.IsAsciiLetter(code) || code == chars.Dollar || code == chars.Underscore ||
			(allowDigit && chars.IsDigit(code)) {
			// Names cannot start with a digit but may contain them.
			allowDigit = true
			return false
		}
		return true
	})
	return strings.TrimSpace(t.cursor.GetChars(nameCursor))
}

func (t *tokenizer) consumeLetDeclarationValue() {
	start := t.cursor.Clone()
	t.beginToken(LetValue, start)

	for t.cursor.Peek() != chars.EOF {
		char := t.cursor.Peek()
		if char == chars.Semicolon {
			break
		}
		if chars.IsQuote(char) {
			// Skip over quoted content; the terminator cannot be inside it.
			t.cursor.Advance()
			t.attemptCharCodeUntilFn(func(inner int) bool {
				if inner == chars.Backslash {
					t.cursor.Advance()
					return false
				}
				return inner == char
			})
		}
		t.cursor.Advance()
	}
	t.endToken([]string{t.cursor.GetChars(start)}, nil)
}

func (t *tokenizer) isBlockStart() bool {
	if t.cursor.Peek() != chars.At {
		return false
	}
	for _, blockName := range supportedBlocks {
		if t.peekStr(blockName) {
			return true
		}
	}
	return false
}

func (t *tokenizer) consumeBlockStart(start CharacterCursor) {
	t.requireCharCode(chars.At)
	t.beginToken(BlockOpenStart, start)
	startToken := t.endToken([]string{t.getBlockName()}, nil)

	if t.cursor.Peek() == chars.LParen {
		t.cursor.Advance()
		t.consumeBlockParameters()
		t.attemptCharCodeUntilFn(isNotWhitespace)
		if t.attemptCharCode(chars.RParen) {
			t.attemptCharCodeUntilFn(isNotWhitespace)
		} else {
			startToken.Type = IncompleteBlockOpen
			return
		}
	}

	if t.attemptCharCode(chars.LBrace) {
		t.beginToken(BlockOpenEnd, nil)
		t.endToken([]string{}, nil)
	} else {
		startToken.Type = IncompleteBlockOpen
	}
}

func (t *tokenizer) consumeBlockEnd(start CharacterCursor) {
	t.beginToken(BlockClose, start)
	t.endToken([]string{}, nil)
}

// getBlockName reads a block name, allowing an inner space once at least
// one name character was seen so that "@else if" parses as one name.
func (t *tokenizer) getBlockName() string {
	spacesInNameAllowed := false
	nameCursor := t.cursor.Clone()

	t.attemptCharCodeUntilFn(func(code int) bool {
		if chars.IsWhitespace(code) {
			return !spacesInNameAllowed
		}
		if isBlockNameChar(code) {
			spacesInNameAllowed = true
			return false
		}
		return true
	})
	return strings.TrimSpace(t.cursor.GetChars(nameCursor))
}

func (t *tokenizer) consumeBlockParameters() {
	t.attemptCharCodeUntilFn(isBlockParameterChar)

	for t.cursor.Peek() != chars.RParen && t.cursor.Peek() != chars.EOF {
		t.beginToken(BlockParameter, nil)
		start := t.cursor.Clone()
		inQuote := 0
		openParens := 0

		// A parameter ends at a top-level ";" or the closing paren;
		// both are ignored inside quotes.
		for (t.cursor.Peek() != chars.Semicolon && t.cursor.Peek() != chars.EOF) || inQuote != 0 {
			char := t.cursor.Peek()
			if char == chars.Backslash {
				t.cursor.Advance()
			} else if inQuote != 0 && char == inQuote {
				inQuote = 0
			} else if inQuote == 0 && chars.IsQuote(char) {
				inQuote = char
			} else if char == chars.LParen && inQuote == 0 {
				openParens++
			} else if char == chars.RParen && inQuote == 0 {
				if openParens == 0 {
					break
				}
				openParens--
			}
			t.cursor.Advance()
		}

		t.endToken([]string{t.cursor.GetChars(start)}, nil)

		if t.cursor.Peek() == chars.Semicolon {
			t.cursor.Advance()
		}
		t.attemptCharCodeUntilFn(isBlockParameterChar)
	}
}

func (t *tokenizer) tokenizeExpansionForm() bool {
	if t.isExpansionFormStart() {
		t.consumeExpansionFormStart()
		return true
	}
	if t.isExpansionCaseStart() {
		t.consumeExpansionCaseStart()
		return true
	}
	if t.cursor.Peek() == chars.RBrace {
		if t.isInExpansionCase() {
			t.consumeExpansionCaseEnd()
			return true
		}
		if t.isInExpansionForm() {
			t.consumeExpansionFormEnd()
			return true
		}
	}
	return false
}

// isExpansionFormStart distinguishes "{count, plural, ..." from the "{{"
// of an interpolation.
func (t *tokenizer) isExpansionFormStart() bool {
	if t.cursor.Peek() != chars.LBrace {
		return false
	}
	next := t.cursor.Clone()
	next.Advance()
	return next.Peek() != chars.LBrace
}

func (t *tokenizer) consumeExpansionFormStart() {
	t.beginToken(ExpansionFormStart, nil)
	t.requireCharCode(chars.LBrace)
	t.endToken([]string{}, nil)
	t.expansionCaseStack = append(t.expansionCaseStack, ExpansionFormStart)

	t.beginToken(RawText, nil)
	conditionStart := t.cursor.Clone()
	t.attemptUntilChar(chars.Comma)
	condition := t.cursor.GetChars(conditionStart)
	normalized := t.processCarriageReturns(condition)
	if t.i18nNormalizeLineEndingsInICUs {
		t.endToken([]string{normalized}, nil)
	} else {
		// Keep the raw text but remember the token so callers can warn
		// about the difference.
		conditionToken := t.endToken([]string{condition}, nil)
		if normalized != condition {
			t.nonNormalizedIcuExpressions = append(t.nonNormalizedIcuExpressions, conditionToken)
		}
	}
	t.requireCharCode(chars.Comma)
	t.attemptCharCodeUntilFn(isNotWhitespace)

	t.beginToken(RawText, nil)
	typeStart := t.cursor.Clone()
	t.attemptUntilChar(chars.Comma)
	t.endToken([]string{t.cursor.GetChars(typeStart)}, nil)
	t.requireCharCode(chars.Comma)
	t.attemptCharCodeUntilFn(isNotWhitespace)
}

func (t *tokenizer) isExpansionCaseStart() bool {
	peek := t.cursor.Peek()
	return t.isInExpansionForm() &&
		(peek == chars.EQ || chars.IsAsciiLetter(peek) || chars.IsDigit(peek))
}

func (t *tokenizer) consumeExpansionCaseStart() {
	t.beginToken(ExpansionCaseValue, nil)
	start := t.cursor.Clone()
	t.attemptUntilChar(chars.LBrace)
	t.endToken([]string{strings.TrimSpace(t.cursor.GetChars(start))}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)

	t.beginToken(ExpansionCaseExpStart, nil)
	t.requireCharCode(chars.LBrace)
	t.endToken([]string{}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)
	t.expansionCaseStack = append(t.expansionCaseStack, ExpansionCaseExpStart)
}

func (t *tokenizer) consumeExpansionCaseEnd() {
	t.beginToken(ExpansionCaseExpEnd, nil)
	t.requireCharCode(chars.RBrace)
	t.endToken([]string{}, nil)
	t.attemptCharCodeUntilFn(isNotWhitespace)
	t.expansionCaseStack = t.expansionCaseStack[:len(t.expansionCaseStack)-1]
}

func (t *tokenizer) consumeExpansionFormEnd() {
	t.beginToken(ExpansionFormEnd, nil)
	t.requireCharCode(chars.RBrace)
	t.endToken([]string{}, nil)
	t.expansionCaseStack = t.expansionCaseStack[:len(t.expansionCaseStack)-1]
}

func (t *tokenizer) isInExpansionCase() bool {
	return len(t.expansionCaseStack) > 0 &&
		t.expansionCaseStack[len(t.expansionCaseStack)-1] == ExpansionCaseExpStart
}

func (t *tokenizer) isInExpansionForm() bool {
	return len(t.expansionCaseStack) > 0 &&
		t.expansionCaseStack[len(t.expansionCaseStack)-1] == ExpansionFormStart
}

func (t *tokenizer) consumeWithInterpolation(textTokenType, interpolationTokenType TokenType, isTextEnd, isTagStart func() bool) {
	inAttributeValue := textTokenType == AttrValueText
	t.beginToken(textTokenType, nil)
	var parts []string

	for !isTextEnd() && t.cursor.Peek() != chars.EOF &&
		!(inAttributeValue && t.cursor.Peek() == chars.GT) {
		markerStart := t.cursor.Clone()
		if t.attemptStr(interpolationStart) {
			t.endToken([]string{t.normalizeCarriageReturns(strings.Join(parts, ""))}, markerStart)
			parts = nil
			t.consumeInterpolation(interpolationTokenType, markerStart, isTextEnd, isTagStart, inAttributeValue)
			t.beginToken(textTokenType, nil)
		} else if t.cursor.Peek() == chars.Ampersand {
			t.consumeTextEntity(textTokenType, &parts)
		} else if isTagStart() {
			break
		} else {
			parts = append(parts, t.readChar())
		}
	}
	t.endToken([]string{t.normalizeCarriageReturns(strings.Join(parts, ""))}, nil)
}

// consumeTextEntity handles "&" inside (possibly interpolated) text.
// Numeric references always go through the entity scanner so bad ones are
// reported; named references without a terminating semicolon stay text.
func (t *tokenizer) consumeTextEntity(textTokenType TokenType, parts *[]string) {
	entityStart := t.cursor.Clone()
	t.cursor.Advance() // skip "&"

	if t.attemptCharCode(chars.Hash) {
		t.cursor = entityStart
		t.endToken([]string{t.normalizeCarriageReturns(strings.Join(*parts, ""))}, nil)
		*parts = nil
		t.consumeEntity(textTokenType)
		t.beginToken(textTokenType, nil)
		return
	}

	nameStart := t.cursor.Clone()
	t.attemptCharCodeUntilFn(isNamedEntityEnd)
	if t.cursor.Peek() != chars.Semicolon {
		*parts = append(*parts, "&"+t.cursor.GetChars(nameStart))
		return
	}
	t.cursor = entityStart
	t.endToken([]string{t.normalizeCarriageReturns(strings.Join(*parts, ""))}, nil)
	*parts = nil
	t.consumeEntity(textTokenType)
	t.beginToken(textTokenType, nil)
}

// consumeInterpolation reads from just before the "{{" marker to past the
// matching "}}", ignoring end markers inside quoted strings and honoring
// "//" comments. A tag start or (in attribute values) the closing quote
// terminates the token prematurely without an end marker part.
func (t *tokenizer) consumeInterpolation(interpolationTokenType TokenType, markerStart CharacterCursor, isTextEnd, isTagStart func() bool, inAttributeValue bool) {
	t.beginToken(interpolationTokenType, markerStart)

	wasInInterpolation := t.inInterpolation
	t.inInterpolation = true
	defer func() { t.inInterpolation = wasInInterpolation }()

	var parts []string
	inQuote := 0
	inComment := false
	foundEnd := false

	for {
		peek := t.cursor.Peek()
		if peek == chars.EOF || isTagStart() {
			break
		}
		if inAttributeValue && peek == chars.GT {
			break
		}
		if inQuote == 0 {
			if t.attemptStr(interpolationEnd) {
				foundEnd = true
				break
			}
			if !inComment && t.attemptStr("//") {
				parts = append(parts, "//")
				inComment = true
				continue
			}
		}
		if inAttributeValue && isTextEnd() {
			break
		}

		code := t.cursor.Peek()
		parts = append(parts, t.readChar())
		switch {
		case code == chars.Backslash:
			// The next character is escaped.
			if t.cursor.Peek() != chars.EOF {
				parts = append(parts, t.readChar())
			}
		case inQuote != 0 && code == inQuote:
			inQuote = 0
		case !inComment && inQuote == 0 && (code == chars.SQ || code == chars.DQ):
			inQuote = code
		}
	}

	expression := t.processCarriageReturns(strings.Join(parts, ""))
	if foundEnd {
		t.endToken([]string{interpolationStart, expression, interpolationEnd}, nil)
	} else {
		t.endToken([]string{interpolationStart, expression}, nil)
	}
}

func (t *tokenizer) isTextEnd() bool {
	if t.cursor.Peek() == chars.EOF || t.isTagStart() {
		return true
	}

	if t.tokenizeIcu && !t.inInterpolation {
		if t.isExpansionFormStart() || t.isExpansionCaseStart() {
			return true
		}
		if t.cursor.Peek() == chars.RBrace && (t.isInExpansionCase() || t.isInExpansionForm()) {
			return true
		}
	}

	if t.tokenizeBlocks && !t.inInterpolation && !t.isInExpansionCase() && !t.isInExpansionForm() {
		if t.isBlockStart() {
			return true
		}
		if t.tokenizeLet && t.isLetStart() {
			return true
		}
		if t.cursor.Peek() == chars.RBrace {
			return true
		}
	}

	return false
}

// isTagStart reports whether the cursor sits on a "<" that begins markup
// rather than a literal less-than in text.
func (t *tokenizer) isTagStart() bool {
	if t.cursor.Peek() != chars.LT {
		return false
	}
	next := t.cursor.Clone()
	next.Advance()
	nextChar := next.Peek()
	return nextChar == chars.Bang ||
		nextChar == chars.Slash ||
		chars.IsAsciiLetter(nextChar) ||
		nextChar == chars.Question ||
		nextChar == chars.EOF
}

func (t *tokenizer) beginToken(tokenType TokenType, start CharacterCursor) {
	if start == nil {
		start = t.cursor.Clone()
	}
	t.currentTokenStart = start
	t.currentTokenType = tokenType
}

func (t *tokenizer) endToken(parts []string, end CharacterCursor) *Token {
	if t.currentTokenStart == nil {
		panic("lexer: attempted to end a token that was never started")
	}
	if t.currentTokenType == tokenTypeNone {
		panic("lexer: attempted to end a token that has no type")
	}
	if end == nil {
		end = t.cursor
	}
	token := &Token{
		Type:       t.currentTokenType,
		Parts:      parts,
		SourceSpan: end.GetSpan(t.currentTokenStart, t.leadingTriviaCodePoints),
	}
	t.tokens = append(t.tokens, token)
	t.currentTokenStart = nil
	t.currentTokenType = tokenTypeNone
	return token
}

func (t *tokenizer) createError(msg string, sp *span.SourceSpan) *span.ParseError {
	if t.isInExpansionForm() {
		msg += ` (Do you have an unescaped "{" in your template? Use "{{ '{' }}") to escape it.)`
	}
	t.currentTokenStart = nil
	t.currentTokenType = tokenTypeNone
	return span.NewError(sp, msg)
}

func (t *tokenizer) handleError(e any) {
	switch err := e.(type) {
	case *CursorError:
		t.errors = append(t.errors, t.createError(err.Msg, t.cursor.GetSpan(err.Cursor, t.leadingTriviaCodePoints)))
	case *span.ParseError:
		t.errors = append(t.errors, err)
	default:
		panic(e)
	}
}

func panicMessage(e any) (string, bool) {
	switch err := e.(type) {
	case *CursorError:
		return err.Msg, true
	case *span.ParseError:
		return err.Msg, true
	default:
		return "", false
	}
}

func (t *tokenizer) attemptCharCode(charCode int) bool {
	if t.cursor.Peek() == charCode {
		t.cursor.Advance()
		return true
	}
	return false
}

func (t *tokenizer) attemptCharCodeCaseInsensitive(charCode int) bool {
	if compareCharCodeCaseInsensitive(t.cursor.Peek(), charCode) {
		t.cursor.Advance()
		return true
	}
	return false
}

func (t *tokenizer) requireCharCode(charCode int) {
	location := t.cursor.Clone()
	if !t.attemptCharCode(charCode) {
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: location})
	}
}

func (t *tokenizer) attemptStr(str string) bool {
	if t.cursor.CharsLeft() < len(str) {
		return false
	}
	initialPosition := t.cursor.Clone()
	for i := 0; i < len(str); i++ {
		if !t.attemptCharCode(int(str[i])) {
			t.cursor = initialPosition
			return false
		}
	}
	return true
}

func (t *tokenizer) attemptStrCaseInsensitive(str string) bool {
	for i := 0; i < len(str); i++ {
		if !t.attemptCharCodeCaseInsensitive(int(str[i])) {
			return false
		}
	}
	return true
}

func (t *tokenizer) requireStr(str string) {
	location := t.cursor.Clone()
	if !t.attemptStr(str) {
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: location})
	}
}

func (t *tokenizer) attemptCharCodeUntilFn(predicate func(code int) bool) {
	for !predicate(t.cursor.Peek()) {
		t.cursor.Advance()
	}
}

func (t *tokenizer) requireCharCodeUntilFn(predicate func(code int) bool, minLength int) {
	start := t.cursor.Clone()
	t.attemptCharCodeUntilFn(predicate)
	if t.cursor.Diff(start) < minLength {
		panic(&CursorError{Msg: unexpectedCharacterErrorMsg(t.cursor.Peek()), Cursor: start})
	}
}

func (t *tokenizer) attemptUntilChar(char int) {
	for t.cursor.Peek() != char {
		t.cursor.Advance()
	}
}

// readChar reads the current (possibly escape-decoded) character rather
// than slicing the raw input.
func (t *tokenizer) readChar() string {
	char := string(rune(t.cursor.Peek()))
	t.cursor.Advance()
	return char
}

func (t *tokenizer) peekStr(str string) bool {
	if t.cursor.CharsLeft() < len(str) {
		return false
	}
	cursor := t.cursor.Clone()
	for i := 0; i < len(str); i++ {
		if cursor.Peek() != int(str[i]) {
			return false
		}
		cursor.Advance()
	}
	return true
}

// consumePrefixAndName reads an optional "prefix:" followed by a name that
// runs until endPredicate holds, returning [prefix, name].
func (t *tokenizer) consumePrefixAndName(endPredicate func(code int) bool) []string {
	nameOrPrefixStart := t.cursor.Clone()
	prefix := ""
	for t.cursor.Peek() != chars.Colon && !isPrefixEnd(t.cursor.Peek()) {
		t.cursor.Advance()
	}
	var nameStart CharacterCursor
	if t.cursor.Peek() == chars.Colon {
		prefix = t.cursor.GetChars(nameOrPrefixStart)
		t.cursor.Advance()
		nameStart = t.cursor.Clone()
	} else {
		nameStart = nameOrPrefixStart
	}
	minLength := 0
	if prefix != "" {
		minLength = 1
	}
	t.requireCharCodeUntilFn(endPredicate, minLength)
	return []string{prefix, t.cursor.GetChars(nameStart)}
}

func (t *tokenizer) processCarriageReturns(content string) string {
	if t.preserveLineEndings {
		return content
	}
	return t.normalizeCarriageReturns(content)
}

func (t *tokenizer) normalizeCarriageReturns(content string) string {
	return strings.ReplaceAll(strings.ReplaceAll(content, "\r\n", "\n"), "\r", "\n")
}

// mergeTextTokens folds adjacent TEXT tokens into one and drops the empty
// interstitials produced around interpolations. Merging is idempotent.
func mergeTextTokens(tokens []*Token) []*Token {
	merged := make([]*Token, 0, len(tokens))
	var lastText *Token
	for _, tok := range tokens {
		if tok.Type == Text {
			if len(tok.Parts) == 0 || tok.Parts[0] == "" {
				continue
			}
			if lastText != nil {
				lastText.Parts = []string{lastText.Parts[0] + tok.Parts[0]}
				lastText.SourceSpan = span.NewSourceSpan(
					lastText.SourceSpan.Start,
					tok.SourceSpan.End,
					lastText.SourceSpan.FullStart,
					lastText.SourceSpan.Details,
				)
				continue
			}
			lastText = tok
		} else {
			lastText = nil
		}
		merged = append(merged, tok)
	}
	return merged
}

func isNotWhitespace(code int) bool {
	return !chars.IsWhitespace(code) || code == chars.EOF
}

func isNameEnd(code int) bool {
	return chars.IsWhitespace(code) || code == chars.GT || code == chars.Slash ||
		code == chars.SQ || code == chars.DQ || code == chars.EQ ||
		code == chars.LT || code == chars.EOF
}

func isPrefixEnd(code int) bool {
	return (code < chars.LowerA || code > chars.LowerZ) &&
		(code < chars.UpperA || code > chars.UpperZ) &&
		(code < chars.Digit0 || code > chars.Digit9)
}

func isSelectorlessNameStart(code int) bool {
	return code == chars.Underscore || (code >= chars.UpperA && code <= chars.UpperZ)
}

func isSelectorlessNameChar(code int) bool {
	return chars.IsAsciiLetter(code) || chars.IsDigit(code) ||
		code == chars.Minus || code == chars.Underscore
}

func isAttributeTerminator(code int) bool {
	return code == chars.GT || code == chars.Slash || code == chars.LT || code == chars.EOF
}

func isBlockNameChar(code int) bool {
	return chars.IsAsciiLetter(code) || chars.IsDigit(code) || code == chars.Underscore
}

func isBlockParameterChar(code int) bool {
	return code != chars.Semicolon && isNotWhitespace(code)
}

func isDigitEntityEnd(code int) bool {
	return !chars.IsDigit(code) && !chars.IsAsciiHexDigit(code)
}

func isNamedEntityEnd(code int) bool {
	return !chars.IsAsciiLetter(code) && !chars.IsDigit(code)
}

func compareCharCodeCaseInsensitive(code1, code2 int) bool {
	return toUpperCaseCharCode(code1) == toUpperCaseCharCode(code2)
}

func toUpperCaseCharCode(code int) int {
	if code >= chars.LowerA && code <= chars.LowerZ {
		return code - 32
	}
	return code
}
