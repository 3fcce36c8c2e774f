package expr

import (
	"fmt"
	"strings"

	"github.com/ngx-tools/template/pkg/chars"
	"github.com/ngx-tools/template/pkg/span"
)

// InterpolationPiece is a string or expression segment of an interpolated
// string, with its rune offsets in the original input.
type InterpolationPiece struct {
	Text  string
	Start int
	End   int
}

// SplitInterpolation is the result of slicing an interpolated string into
// its static and expression parts. Strings always has one more element
// than Expressions.
type SplitInterpolation struct {
	Strings     []InterpolationPiece
	Expressions []InterpolationPiece
	Offsets     []int
}

// TemplateBindingParseResult holds the bindings parsed out of a
// microsyntax attribute.
type TemplateBindingParseResult struct {
	TemplateBindings []TemplateBinding
	Warnings         []string
	Errors           []*span.ParseError
}

// ParseFlags selects the parse mode.
type ParseFlags int

const (
	FlagsNone ParseFlags = 0
	// FlagsAction parses an output binding: chains and assignments are
	// allowed, pipes are not.
	FlagsAction ParseFlags = 1 << 0
)

type parseContextFlags int

const (
	contextNone parseContextFlags = 0
	// contextWritable marks positions where an assignment target may
	// appear, which widens error recovery to stop at `=`.
	contextWritable parseContextFlags = 1
)

const (
	interpStart = "{{"
	interpEnd   = "}}"
)

// Parser parses binding and action expressions into ASTs.
type Parser struct {
	lexer *Lexer
	// supportsDirectPipeReferences enables `value | PipeClass` references
	// for selectorless components.
	supportsDirectPipeReferences bool
}

func NewParser(lexer *Lexer, supportsDirectPipeReferences bool) *Parser {
	return &Parser{lexer: lexer, supportsDirectPipeReferences: supportsDirectPipeReferences}
}

// ParseAction parses an event handler expression. Chains and assignments
// are legal, pipes are not.
func (p *Parser) ParseAction(input, location string, absoluteOffset int) *ASTWithSource {
	var errors []*span.ParseError
	p.checkNoInterpolation(&errors, input, location)
	stripped, _ := stripComments(input)
	tokens := p.lexer.Tokenize(stripped)
	ast := p.newParseAST(input, location, absoluteOffset, tokens, FlagsAction, &errors, 0).parseChain()
	return NewASTWithSource(ast, input, location, absoluteOffset, errors)
}

// ParseBinding parses a property binding expression.
func (p *Parser) ParseBinding(input, location string, absoluteOffset int) *ASTWithSource {
	var errors []*span.ParseError
	ast := p.parseBindingAST(input, location, absoluteOffset, &errors)
	return NewASTWithSource(ast, input, location, absoluteOffset, errors)
}

// ParseSimpleBinding parses a host binding expression, which additionally
// must not contain pipes.
func (p *Parser) ParseSimpleBinding(input, location string, absoluteOffset int) *ASTWithSource {
	var errors []*span.ParseError
	ast := p.parseBindingAST(input, location, absoluteOffset, &errors)
	if issues := checkSimpleExpression(ast); len(issues) > 0 {
		errors = append(errors, parseError(
			"Host binding expression cannot contain "+strings.Join(issues, " "),
			input, "", location))
	}
	return NewASTWithSource(ast, input, location, absoluteOffset, errors)
}

func (p *Parser) parseBindingAST(input, location string, absoluteOffset int, errors *[]*span.ParseError) AST {
	p.checkNoInterpolation(errors, input, location)
	stripped, _ := stripComments(input)
	tokens := p.lexer.Tokenize(stripped)
	return p.newParseAST(input, location, absoluteOffset, tokens, FlagsNone, errors, 0).parseChain()
}

// ParseTemplateBindings parses the microsyntax of a structural directive
// attribute, e.g. `*ngFor="let item of items; trackBy: trackFn"`.
func (p *Parser) ParseTemplateBindings(templateKey, templateValue, location string, absoluteKeyOffset, absoluteValueOffset int) *TemplateBindingParseResult {
	tokens := p.lexer.Tokenize(templateValue)
	var errors []*span.ParseError
	parser := p.newParseAST(templateValue, location, absoluteValueOffset, tokens, FlagsNone, &errors, 0)
	return parser.parseTemplateBindings(&TemplateBindingIdentifier{
		Source: templateKey,
		Span:   NewAbsoluteSourceSpan(absoluteKeyOffset, absoluteKeyOffset+len([]rune(templateKey))),
	})
}

// ParseInterpolation parses a string with embedded `{{ }}` expressions.
// Returns nil when the input contains no interpolations.
func (p *Parser) ParseInterpolation(input, location string, absoluteOffset int) *ASTWithSource {
	var errors []*span.ParseError
	split := p.SplitInterpolation(input, location, &errors)
	if len(split.Expressions) == 0 {
		return nil
	}

	var expressionNodes []AST
	for i := range split.Expressions {
		expressionText := split.Expressions[i].Text
		stripped, hasComments := stripComments(expressionText)
		tokens := p.lexer.Tokenize(stripped)

		if hasComments && strings.TrimSpace(stripped) == "" && len(tokens) == 0 {
			errors = append(errors, parseError(
				"Interpolation expression cannot only contain a comment",
				input, fmt.Sprintf("at column %d in", split.Expressions[i].Start), location))
			// Keep strings and expressions parallel: a comment-only piece
			// still occupies an expression slot.
			pieceSpan := NewParseSpan(split.Expressions[i].Start, split.Expressions[i].End)
			expressionNodes = append(expressionNodes,
				NewEmptyExpr(pieceSpan, pieceSpan.ToAbsolute(absoluteOffset)))
			continue
		}

		ast := p.newParseAST(expressionText, location, absoluteOffset, tokens, FlagsNone, &errors, split.Offsets[i]).parseChain()
		expressionNodes = append(expressionNodes, ast)
	}

	return p.createInterpolationAST(split.Strings, expressionNodes, input, location, absoluteOffset, errors)
}

// ParseInterpolationExpression parses a bare expression as if it were the
// sole interpolation of a string, used for ICU switch values.
func (p *Parser) ParseInterpolationExpression(expression, location string, absoluteOffset int) *ASTWithSource {
	stripped, _ := stripComments(expression)
	tokens := p.lexer.Tokenize(stripped)
	var errors []*span.ParseError
	ast := p.newParseAST(expression, location, absoluteOffset, tokens, FlagsNone, &errors, 0).parseChain()
	pieces := []InterpolationPiece{{Text: ""}, {Text: ""}}
	return p.createInterpolationAST(pieces, []AST{ast}, expression, location, absoluteOffset, errors)
}

// WrapLiteralPrimitive wraps a raw string as a literal expression.
func (p *Parser) WrapLiteralPrimitive(input, location string, absoluteOffset int) *ASTWithSource {
	ps := NewParseSpan(0, len([]rune(input)))
	return NewASTWithSource(
		NewLiteralPrimitive(ps, ps.ToAbsolute(absoluteOffset), input),
		input, location, absoluteOffset, nil)
}

func (p *Parser) newParseAST(input, location string, absoluteOffset int, tokens []*Token, flags ParseFlags, errors *[]*span.ParseError, offset int) *parseAST {
	return &parseAST{
		input:                        input,
		runes:                        []rune(input),
		location:                     location,
		absoluteOffset:               absoluteOffset,
		tokens:                       tokens,
		parseFlags:                   flags,
		errors:                       errors,
		offset:                       offset,
		supportsDirectPipeReferences: p.supportsDirectPipeReferences,
	}
}

func (p *Parser) checkNoInterpolation(errors *[]*span.ParseError, input, location string) {
	runes := []rune(input)
	startIndex, endIndex := -1, -1

	forEachUnquotedChar(runes, 0, func(i int) bool {
		if startIndex == -1 {
			if hasRunePrefix(runes, i, interpStart) {
				startIndex = i
			}
		} else {
			endIndex = getInterpolationEndIndex(runes, interpEnd, i)
			if endIndex > -1 {
				return false
			}
		}
		return true
	})

	if startIndex > -1 && endIndex > -1 {
		*errors = append(*errors, parseError(
			"Got interpolation ({{}}) where expression was expected",
			input, fmt.Sprintf("at column %d in", startIndex), location))
	}
}

// SplitInterpolation slices an interpolated string into its static and
// expression pieces, ignoring interpolation markers inside quotes.
func (p *Parser) SplitInterpolation(input, location string, errors *[]*span.ParseError) *SplitInterpolation {
	runes := []rune(input)
	var stringPieces, expressions []InterpolationPiece
	var offsets []int

	i := 0
	atInterpolation := false
	extendLastString := false
	for i < len(runes) {
		if !atInterpolation {
			start := i
			idx := runeIndex(runes, i, interpStart)
			if idx == -1 {
				i = len(runes)
			} else {
				i = idx
			}
			stringPieces = append(stringPieces, InterpolationPiece{Text: string(runes[start:i]), Start: start, End: i})
			atInterpolation = true
		} else {
			fullStart := i
			exprStart := fullStart + len(interpStart)
			exprEnd := getInterpolationEndIndex(runes, interpEnd, exprStart)
			if exprEnd == -1 {
				// No terminating `}}`; the rest extends the last string.
				atInterpolation = false
				extendLastString = true
				break
			}
			fullEnd := exprEnd + len(interpEnd)

			text := string(runes[exprStart:exprEnd])
			if strings.TrimSpace(text) == "" {
				*errors = append(*errors, parseError(
					"Blank expressions are not allowed in interpolated strings",
					input, fmt.Sprintf("at column %d in", i), location))
			}
			expressions = append(expressions, InterpolationPiece{Text: text, Start: fullStart, End: fullEnd})
			offsets = append(offsets, exprStart)

			i = fullEnd
			atInterpolation = false
		}
	}
	if !atInterpolation {
		if extendLastString {
			if len(stringPieces) > 0 {
				piece := &stringPieces[len(stringPieces)-1]
				piece.Text += string(runes[i:])
				piece.End = len(runes)
			}
		} else {
			stringPieces = append(stringPieces, InterpolationPiece{Text: string(runes[i:]), Start: i, End: len(runes)})
		}
	}
	return &SplitInterpolation{Strings: stringPieces, Expressions: expressions, Offsets: offsets}
}

func (p *Parser) createInterpolationAST(pieces []InterpolationPiece, expressions []AST, input, location string, absoluteOffset int, errors []*span.ParseError) *ASTWithSource {
	strs := make([]string, len(pieces))
	for i, s := range pieces {
		strs[i] = s.Text
	}
	ps := NewParseSpan(0, len([]rune(input)))
	interpolation := NewInterpolation(ps, ps.ToAbsolute(absoluteOffset), strs, expressions)
	return NewASTWithSource(interpolation, input, location, absoluteOffset, errors)
}

func stripComments(input string) (stripped string, hasComments bool) {
	if i := commentStart(input); i >= 0 {
		return input[:i], true
	}
	return input, false
}

// commentStart finds the offset of an unquoted `//`, or -1.
func commentStart(input string) int {
	runes := []rune(input)
	var outerQuote rune
	for i := 0; i < len(runes)-1; i++ {
		char, next := runes[i], runes[i+1]
		if int(char) == chars.Slash && int(next) == chars.Slash && outerQuote == 0 {
			return i
		}
		if outerQuote == char {
			outerQuote = 0
		} else if outerQuote == 0 && chars.IsQuote(int(char)) {
			outerQuote = char
		}
	}
	return -1
}

// getInterpolationEndIndex finds the unquoted end marker at or after
// start. After an unquoted `//` comment, anything goes and only the raw
// marker matters.
func getInterpolationEndIndex(runes []rune, expressionEnd string, start int) int {
	result := -1
	forEachUnquotedChar(runes, start, func(i int) bool {
		if hasRunePrefix(runes, i, expressionEnd) {
			result = i
			return false
		}
		if hasRunePrefix(runes, i, "//") {
			result = runeIndex(runes, i, expressionEnd)
			return false
		}
		return true
	})
	return result
}

// forEachUnquotedChar calls fn with the index of every character outside
// of quotes, accounting for escapes. fn returns false to stop.
func forEachUnquotedChar(runes []rune, start int, fn func(i int) bool) {
	var currentQuote rune
	escapeCount := 0
	for i := start; i < len(runes); i++ {
		char := runes[i]
		if chars.IsQuote(int(char)) && (currentQuote == 0 || currentQuote == char) && escapeCount%2 == 0 {
			if currentQuote == 0 {
				currentQuote = char
			} else {
				currentQuote = 0
			}
		} else if currentQuote == 0 {
			if !fn(i) {
				return
			}
		}
		if char == '\\' {
			escapeCount++
		} else {
			escapeCount = 0
		}
	}
}

func hasRunePrefix(runes []rune, at int, prefix string) bool {
	for i, r := range prefix {
		if at+i >= len(runes) || runes[at+i] != r {
			return false
		}
	}
	return true
}

func runeIndex(runes []rune, from int, needle string) int {
	for i := from; i <= len(runes)-len(needle); i++ {
		if hasRunePrefix(runes, i, needle) {
			return i
		}
	}
	return -1
}

func checkSimpleExpression(ast AST) []string {
	if hasPipe(ast) {
		return []string{"pipes"}
	}
	return nil
}

func hasPipe(ast AST) bool {
	switch node := ast.(type) {
	case *BindingPipe:
		return true
	case *ASTWithSource:
		return hasPipe(node.AST)
	case *Unary:
		return hasPipe(node.Expr)
	case *Binary:
		return hasPipe(node.Left) || hasPipe(node.Right)
	case *Chain:
		return anyHasPipe(node.Expressions)
	case *Conditional:
		return hasPipe(node.Condition) || hasPipe(node.TrueExp) || hasPipe(node.FalseExp)
	case *Interpolation:
		return anyHasPipe(node.Expressions)
	case *KeyedRead:
		return hasPipe(node.Receiver) || hasPipe(node.Key)
	case *SafeKeyedRead:
		return hasPipe(node.Receiver) || hasPipe(node.Key)
	case *LiteralArray:
		return anyHasPipe(node.Expressions)
	case *LiteralMap:
		return anyHasPipe(node.Values)
	case *PrefixNot:
		return hasPipe(node.Expression)
	case *TypeofExpression:
		return hasPipe(node.Expression)
	case *VoidExpression:
		return hasPipe(node.Expression)
	case *NonNullAssert:
		return hasPipe(node.Expression)
	case *PropertyRead:
		return hasPipe(node.Receiver)
	case *SafePropertyRead:
		return hasPipe(node.Receiver)
	case *Call:
		return hasPipe(node.Receiver) || anyHasPipe(node.Args)
	case *SafeCall:
		return hasPipe(node.Receiver) || anyHasPipe(node.Args)
	case *TemplateLiteral:
		return anyHasPipe(node.Expressions)
	case *TaggedTemplateLiteral:
		return hasPipe(node.Tag) || hasPipe(AST(node.Template))
	case *ParenthesizedExpression:
		return hasPipe(node.Expression)
	}
	return false
}

func anyHasPipe(asts []AST) bool {
	for _, a := range asts {
		if hasPipe(a) {
			return true
		}
	}
	return false
}

// parseAST is the stateful recursive-descent parser over one token list.
type parseAST struct {
	input                        string
	runes                        []rune
	location                     string
	absoluteOffset               int
	tokens                       []*Token
	parseFlags                   ParseFlags
	errors                       *[]*span.ParseError
	offset                       int
	supportsDirectPipeReferences bool

	index             int
	rparensExpected   int
	rbracketsExpected int
	rbracesExpected   int
	context           parseContextFlags
}

func (p *parseAST) peek(offset int) *Token {
	if i := p.index + offset; i < len(p.tokens) {
		return p.tokens[i]
	}
	return EOF
}

func (p *parseAST) next() *Token { return p.peek(0) }

func (p *parseAST) atEOF() bool { return p.index >= len(p.tokens) }

// inputIndex is the rune index of the next token, in interpolation
// coordinates (shifted by offset).
func (p *parseAST) inputIndex() int {
	if p.atEOF() {
		return p.currentEndIndex()
	}
	return p.next().Index + p.offset
}

func (p *parseAST) currentEndIndex() int {
	if p.index > 0 {
		return p.peek(-1).End + p.offset
	}
	if len(p.tokens) == 0 {
		return len(p.runes) + p.offset
	}
	return p.next().Index + p.offset
}

func (p *parseAST) currentAbsoluteOffset() int {
	return p.absoluteOffset + p.inputIndex()
}

// parseSpan builds a span from start to the current position, or to
// artificialEndIndex when that lies further.
func (p *parseAST) parseSpan(start int, artificialEndIndex ...int) *ParseSpan {
	end := p.currentEndIndex()
	if len(artificialEndIndex) > 0 && artificialEndIndex[0] > end {
		end = artificialEndIndex[0]
	}
	if start > end {
		start, end = end, start
	}
	return NewParseSpan(start, end)
}

func (p *parseAST) sourceSpan(start int, artificialEndIndex ...int) *AbsoluteSourceSpan {
	return p.parseSpan(start, artificialEndIndex...).ToAbsolute(p.absoluteOffset)
}

func (p *parseAST) advance() { p.index++ }

func (p *parseAST) withContext(ctx parseContextFlags, cb func() AST) AST {
	p.context |= ctx
	ret := cb()
	p.context ^= ctx
	return ret
}

func (p *parseAST) consumeOptionalCharacter(code int) bool {
	if p.next().IsCharacter(code) {
		p.advance()
		return true
	}
	return false
}

func (p *parseAST) peekKeywordLet() bool { return p.next().IsKeywordLet() }
func (p *parseAST) peekKeywordAs() bool  { return p.next().IsKeywordAs() }

func (p *parseAST) expectCharacter(code int) {
	if !p.consumeOptionalCharacter(code) {
		p.error(fmt.Sprintf("Missing expected %c", rune(code)))
	}
}

func (p *parseAST) consumeOptionalOperator(op string) bool {
	if p.next().IsOperator(op) {
		p.advance()
		return true
	}
	return false
}

func (p *parseAST) isAssignmentOperator(token *Token) bool {
	return token.Type == TokenOperator && IsAssignmentOperation(token.StrValue)
}

func (p *parseAST) expectOperator(operator string) {
	if !p.consumeOptionalOperator(operator) {
		p.error(fmt.Sprintf("Missing expected operator %s", operator))
	}
}

func (p *parseAST) prettyPrintToken(tok *Token) string {
	if tok == EOF {
		return "end of input"
	}
	return fmt.Sprintf("token %s", tok)
}

func (p *parseAST) expectIdentifierOrKeyword() (string, bool) {
	n := p.next()
	if !n.IsIdentifier() && !n.IsKeyword() {
		if n.IsPrivateIdentifier() {
			p.reportErrorForPrivateIdentifier(n, "expected identifier or keyword")
		} else {
			p.error(fmt.Sprintf("Unexpected %s, expected identifier or keyword", p.prettyPrintToken(n)))
		}
		return "", false
	}
	p.advance()
	return n.String(), true
}

func (p *parseAST) expectIdentifierOrKeywordOrString() string {
	n := p.next()
	if !n.IsIdentifier() && !n.IsKeyword() && !n.IsString() {
		if n.IsPrivateIdentifier() {
			p.reportErrorForPrivateIdentifier(n, "expected identifier, keyword or string")
		} else {
			p.error(fmt.Sprintf("Unexpected %s, expected identifier, keyword, or string", p.prettyPrintToken(n)))
		}
		return ""
	}
	p.advance()
	return n.String()
}

func (p *parseAST) parseChain() AST {
	var exprs []AST
	start := p.inputIndex()
	for p.index < len(p.tokens) {
		expr := p.parsePipe()
		exprs = append(exprs, expr)

		if p.consumeOptionalCharacter(chars.Semicolon) {
			if p.parseFlags&FlagsAction == 0 {
				p.error("Binding expression cannot contain chained expression")
			}
			for p.consumeOptionalCharacter(chars.Semicolon) {
			}
		} else if p.index < len(p.tokens) {
			errorIndex := p.index
			p.error(fmt.Sprintf("Unexpected token '%s'", p.next()))
			// Guard against a stuck parser; skip() normally advances.
			if p.index == errorIndex {
				break
			}
		}
	}
	if len(exprs) == 0 {
		artificialStart := p.offset
		artificialEnd := p.offset + len(p.runes)
		return NewEmptyExpr(
			p.parseSpan(artificialStart, artificialEnd),
			p.sourceSpan(artificialStart, artificialEnd))
	}
	if len(exprs) == 1 {
		return exprs[0]
	}
	return NewChain(p.parseSpan(start), p.sourceSpan(start), exprs)
}

func (p *parseAST) parsePipe() AST {
	start := p.inputIndex()
	result := p.parseExpression()
	if !p.consumeOptionalOperator("|") {
		return result
	}
	if p.parseFlags&FlagsAction != 0 {
		p.error("Cannot have a pipe in an action expression")
	}

	for {
		nameStart := p.inputIndex()
		nameID, ok := p.expectIdentifierOrKeyword()
		var nameSpan *AbsoluteSourceSpan
		fullSpanEnd := -1
		if ok {
			nameSpan = p.sourceSpan(nameStart)
		} else {
			// No name found; assume an empty pipe name and stretch the
			// span over any whitespace up to the next token.
			nameID = ""
			if nextIdx := p.next().Index; nextIdx != -1 {
				fullSpanEnd = nextIdx
			} else {
				fullSpanEnd = len(p.runes) + p.offset
			}
			nameSpan = NewParseSpan(fullSpanEnd, fullSpanEnd).ToAbsolute(p.absoluteOffset)
		}

		var args []AST
		for p.consumeOptionalCharacter(chars.Colon) {
			args = append(args, p.parseExpression())
		}

		pipeType := ReferencedByName
		if p.supportsDirectPipeReferences && nameID != "" {
			if c := int(nameID[0]); c == chars.Underscore || (c >= chars.UpperA && c <= chars.UpperZ) {
				pipeType = ReferencedDirectly
			}
		}

		if fullSpanEnd >= 0 {
			result = NewBindingPipe(p.parseSpan(start, fullSpanEnd), p.sourceSpan(start, fullSpanEnd),
				result, nameID, args, pipeType, nameSpan)
		} else {
			result = NewBindingPipe(p.parseSpan(start), p.sourceSpan(start),
				result, nameID, args, pipeType, nameSpan)
		}
		if !p.consumeOptionalOperator("|") {
			return result
		}
	}
}

func (p *parseAST) parseExpression() AST {
	return p.parseConditional()
}

func (p *parseAST) parseConditional() AST {
	start := p.inputIndex()
	result := p.parseLogicalOr()

	if !p.consumeOptionalOperator("?") {
		return result
	}
	yes := p.parsePipe()
	var no AST
	if !p.consumeOptionalCharacter(chars.Colon) {
		end := p.inputIndex()
		expression := string(p.runes[start-p.offset : end-p.offset])
		p.error(fmt.Sprintf("Conditional expression %s requires all 3 expressions", expression))
		no = NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))
	} else {
		no = p.parsePipe()
	}
	return NewConditional(p.parseSpan(start), p.sourceSpan(start), result, yes, no)
}

func (p *parseAST) parseLogicalOr() AST {
	start := p.inputIndex()
	result := p.parseLogicalAnd()
	for p.consumeOptionalOperator("||") {
		right := p.parseLogicalAnd()
		result = NewBinary(p.parseSpan(start), p.sourceSpan(start), "||", result, right)
	}
	return result
}

func (p *parseAST) parseLogicalAnd() AST {
	start := p.inputIndex()
	result := p.parseNullishCoalescing()
	for p.consumeOptionalOperator("&&") {
		right := p.parseNullishCoalescing()
		result = NewBinary(p.parseSpan(start), p.sourceSpan(start), "&&", result, right)
	}
	return result
}

func (p *parseAST) parseNullishCoalescing() AST {
	start := p.inputIndex()
	result := p.parseEquality()
	for p.consumeOptionalOperator("??") {
		right := p.parseEquality()
		result = NewBinary(p.parseSpan(start), p.sourceSpan(start), "??", result, right)
	}
	return result
}

func (p *parseAST) parseEquality() AST {
	// '==','!=','===','!=='
	start := p.inputIndex()
	result := p.parseRelational()
	for p.next().Type == TokenOperator {
		operator := p.next().StrValue
		switch operator {
		case "==", "===", "!=", "!==":
			p.advance()
			right := p.parseRelational()
			result = NewBinary(p.parseSpan(start), p.sourceSpan(start), operator, result, right)
			continue
		}
		break
	}
	return result
}

func (p *parseAST) parseRelational() AST {
	// '<', '>', '<=', '>=', 'in'
	start := p.inputIndex()
	result := p.parseAdditive()
	for p.next().Type == TokenOperator || p.next().IsKeywordIn() {
		operator := p.next().StrValue
		switch operator {
		case "<", ">", "<=", ">=", "in":
			p.advance()
			right := p.parseAdditive()
			result = NewBinary(p.parseSpan(start), p.sourceSpan(start), operator, result, right)
			continue
		}
		break
	}
	return result
}

func (p *parseAST) parseAdditive() AST {
	start := p.inputIndex()
	result := p.parseMultiplicative()
	for p.next().Type == TokenOperator {
		operator := p.next().StrValue
		switch operator {
		case "+", "-":
			p.advance()
			right := p.parseMultiplicative()
			result = NewBinary(p.parseSpan(start), p.sourceSpan(start), operator, result, right)
			continue
		}
		break
	}
	return result
}

func (p *parseAST) parseMultiplicative() AST {
	start := p.inputIndex()
	result := p.parseExponentiation()
	for p.next().Type == TokenOperator {
		operator := p.next().StrValue
		switch operator {
		case "*", "%", "/":
			p.advance()
			right := p.parseExponentiation()
			result = NewBinary(p.parseSpan(start), p.sourceSpan(start), operator, result, right)
			continue
		}
		break
	}
	return result
}

func (p *parseAST) parseExponentiation() AST {
	start := p.inputIndex()
	result := p.parsePrefix()
	for p.next().IsOperator("**") {
		// An unparenthesized unary operand is ambiguous, same as in JS.
		switch result.(type) {
		case *Unary, *PrefixNot, *TypeofExpression, *VoidExpression:
			p.error("Unary operator used immediately before exponentiation expression. Parenthesis must be used to disambiguate operator precedence")
		}
		p.advance()
		right := p.parseExponentiation()
		result = NewBinary(p.parseSpan(start), p.sourceSpan(start), "**", result, right)
	}
	return result
}

func (p *parseAST) parsePrefix() AST {
	if p.next().Type == TokenOperator {
		start := p.inputIndex()
		switch p.next().StrValue {
		case "+":
			p.advance()
			result := p.parsePrefix()
			return CreatePlus(p.parseSpan(start), p.sourceSpan(start), result)
		case "-":
			p.advance()
			result := p.parsePrefix()
			return CreateMinus(p.parseSpan(start), p.sourceSpan(start), result)
		case "!":
			p.advance()
			result := p.parsePrefix()
			return NewPrefixNot(p.parseSpan(start), p.sourceSpan(start), result)
		}
	} else if p.next().IsKeywordTypeof() {
		p.advance()
		start := p.inputIndex()
		result := p.parsePrefix()
		return NewTypeofExpression(p.parseSpan(start), p.sourceSpan(start), result)
	} else if p.next().IsKeywordVoid() {
		p.advance()
		start := p.inputIndex()
		result := p.parsePrefix()
		return NewVoidExpression(p.parseSpan(start), p.sourceSpan(start), result)
	}
	return p.parseCallChain()
}

func (p *parseAST) parseCallChain() AST {
	start := p.inputIndex()
	result := p.parsePrimary()
	for {
		switch {
		case p.consumeOptionalCharacter(chars.Period):
			result = p.parseAccessMember(result, start, false)
		case p.consumeOptionalOperator("?."):
			switch {
			case p.consumeOptionalCharacter(chars.LParen):
				result = p.parseCall(result, start, true)
			case p.consumeOptionalCharacter(chars.LBracket):
				result = p.parseKeyedReadOrWrite(result, start, true)
			default:
				result = p.parseAccessMember(result, start, true)
			}
		case p.consumeOptionalCharacter(chars.LBracket):
			result = p.parseKeyedReadOrWrite(result, start, false)
		case p.consumeOptionalCharacter(chars.LParen):
			result = p.parseCall(result, start, false)
		case p.consumeOptionalOperator("!"):
			result = NewNonNullAssert(p.parseSpan(start), p.sourceSpan(start), result)
		case p.next().IsTemplateLiteralEnd():
			result = p.parseNoInterpolationTaggedTemplateLiteral(result, start)
		case p.next().IsTemplateLiteralPart():
			result = p.parseTaggedTemplateLiteral(result, start)
		default:
			return result
		}
	}
}

func (p *parseAST) parsePrimary() AST {
	start := p.inputIndex()
	switch {
	case p.consumeOptionalCharacter(chars.LParen):
		p.rparensExpected++
		result := p.parsePipe()
		if !p.consumeOptionalCharacter(chars.RParen) {
			p.error("Missing closing parentheses")
			// error() recovers up to the next closing paren; consume it
			// to salvage the rest of the expression.
			p.consumeOptionalCharacter(chars.RParen)
		}
		p.rparensExpected--
		return NewParenthesizedExpression(p.parseSpan(start), p.sourceSpan(start), result)

	case p.next().IsKeywordNull():
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), nil)

	case p.next().IsKeywordUndefined():
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), UndefinedValue{})

	case p.next().IsKeywordTrue():
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), true)

	case p.next().IsKeywordFalse():
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), false)

	case p.next().IsKeywordIn():
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), "in")

	case p.next().IsKeywordThis():
		p.advance()
		return NewThisReceiver(p.parseSpan(start), p.sourceSpan(start))

	case p.consumeOptionalCharacter(chars.LBracket):
		p.rbracketsExpected++
		elements := p.parseExpressionList(chars.RBracket)
		p.rbracketsExpected--
		p.expectCharacter(chars.RBracket)
		return NewLiteralArray(p.parseSpan(start), p.sourceSpan(start), elements)

	case p.next().IsCharacter(chars.LBrace):
		return p.parseLiteralMap()

	case p.next().IsIdentifier():
		return p.parseAccessMember(
			NewImplicitReceiver(p.parseSpan(start), p.sourceSpan(start)), start, false)

	case p.next().IsNumber():
		value := p.next().NumValue
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), value)

	case p.next().IsTemplateLiteralEnd():
		return p.parseNoInterpolationTemplateLiteral()

	case p.next().IsTemplateLiteralPart():
		return p.parseTemplateLiteral()

	case p.next().IsString() && p.next().StringKind == StringPlain:
		literalValue := p.next().String()
		p.advance()
		return NewLiteralPrimitive(p.parseSpan(start), p.sourceSpan(start), literalValue)

	case p.next().IsPrivateIdentifier():
		p.reportErrorForPrivateIdentifier(p.next(), "")
		return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))

	case p.next().IsRegExpBody():
		return p.parseRegularExpressionLiteral()

	case p.atEOF():
		p.error("Unexpected end of expression: " + p.input)
		return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))

	default:
		p.error(fmt.Sprintf("Unexpected token %s", p.next()))
		return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))
	}
}

func (p *parseAST) parseExpressionList(terminator int) []AST {
	var result []AST
	for !p.next().IsCharacter(terminator) {
		result = append(result, p.parsePipe())
		if !p.consumeOptionalCharacter(chars.Comma) {
			break
		}
	}
	return result
}

func (p *parseAST) parseLiteralMap() *LiteralMap {
	var keys []LiteralMapKey
	var values []AST
	start := p.inputIndex()
	p.expectCharacter(chars.LBrace)
	if !p.consumeOptionalCharacter(chars.RBrace) {
		p.rbracesExpected++
		for {
			keyStart := p.inputIndex()
			quoted := p.next().IsString()
			key := p.expectIdentifierOrKeywordOrString()
			mapKey := LiteralMapKey{Key: key, Quoted: quoted}

			// Quoted keys cannot use the shorthand syntax.
			if quoted {
				p.expectCharacter(chars.Colon)
				values = append(values, p.parsePipe())
			} else if p.consumeOptionalCharacter(chars.Colon) {
				values = append(values, p.parsePipe())
			} else {
				mapKey.IsShorthandInitialized = true
				ps := p.parseSpan(keyStart)
				ss := p.sourceSpan(keyStart)
				values = append(values, NewPropertyRead(ps, ss, ss, NewImplicitReceiver(ps, ss), key))
			}
			keys = append(keys, mapKey)

			if !p.consumeOptionalCharacter(chars.Comma) {
				break
			}
			if p.next().IsCharacter(chars.RBrace) {
				break
			}
		}
		p.rbracesExpected--
		p.expectCharacter(chars.RBrace)
	}
	return NewLiteralMap(p.parseSpan(start), p.sourceSpan(start), keys, values)
}

func (p *parseAST) parseAccessMember(readReceiver AST, start int, isSafe bool) AST {
	nameStart := p.inputIndex()
	var id string
	p.withContext(contextWritable, func() AST {
		id, _ = p.expectIdentifierOrKeyword()
		if len(id) == 0 {
			p.error("Expected identifier for property access", readReceiver.Span().End)
		}
		return nil
	})
	nameSpan := p.sourceSpan(nameStart)

	if isSafe {
		if p.isAssignmentOperator(p.next()) {
			p.advance()
			p.error("The '?.' operator cannot be used in the assignment")
			return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))
		}
		return NewSafePropertyRead(p.parseSpan(start), p.sourceSpan(start), nameSpan, readReceiver, id)
	}

	if p.isAssignmentOperator(p.next()) {
		operation := p.next().StrValue
		if p.parseFlags&FlagsAction == 0 {
			p.advance()
			p.error("Bindings cannot contain assignments")
			return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))
		}
		receiver := NewPropertyRead(p.parseSpan(start), p.sourceSpan(start), nameSpan, readReceiver, id)
		p.advance()
		value := p.parseConditional()
		return NewBinary(p.parseSpan(start), p.sourceSpan(start), operation, receiver, value)
	}
	return NewPropertyRead(p.parseSpan(start), p.sourceSpan(start), nameSpan, readReceiver, id)
}

func (p *parseAST) parseCall(receiver AST, start int, isSafe bool) AST {
	argumentStart := p.inputIndex()
	p.rparensExpected++
	args := p.parseCallArguments()
	argumentSpan := p.parseSpan(argumentStart, p.inputIndex()).ToAbsolute(p.absoluteOffset)
	p.expectCharacter(chars.RParen)
	p.rparensExpected--
	ps := p.parseSpan(start)
	ss := p.sourceSpan(start)
	if isSafe {
		return NewSafeCall(ps, ss, receiver, args, argumentSpan)
	}
	return NewCall(ps, ss, receiver, args, argumentSpan)
}

func (p *parseAST) parseCallArguments() []AST {
	if p.next().IsCharacter(chars.RParen) {
		return nil
	}
	var positionals []AST
	for {
		positionals = append(positionals, p.parsePipe())
		if !p.consumeOptionalCharacter(chars.Comma) {
			break
		}
	}
	return positionals
}

func (p *parseAST) parseKeyedReadOrWrite(receiver AST, start int, isSafe bool) AST {
	return p.withContext(contextWritable, func() AST {
		p.rbracketsExpected++
		key := p.parsePipe()
		if _, empty := key.(*EmptyExpr); empty {
			p.error("Key access cannot be empty")
		}
		p.rbracketsExpected--
		p.expectCharacter(chars.RBracket)

		if p.isAssignmentOperator(p.next()) {
			operation := p.next().StrValue
			if isSafe {
				p.advance()
				p.error("The '?.' operator cannot be used in the assignment")
				return NewEmptyExpr(p.parseSpan(start), p.sourceSpan(start))
			}
			binaryReceiver := NewKeyedRead(p.parseSpan(start), p.sourceSpan(start), receiver, key)
			p.advance()
			value := p.parseConditional()
			return NewBinary(p.parseSpan(start), p.sourceSpan(start), operation, binaryReceiver, value)
		}
		if isSafe {
			return NewSafeKeyedRead(p.parseSpan(start), p.sourceSpan(start), receiver, key)
		}
		return NewKeyedRead(p.parseSpan(start), p.sourceSpan(start), receiver, key)
	})
}

func (p *parseAST) parseTemplateLiteral() *TemplateLiteral {
	var elements []*TemplateLiteralElement
	var expressions []AST
	start := p.inputIndex()

	for p.next() != EOF {
		token := p.next()
		switch {
		case token.IsTemplateLiteralPart() || token.IsTemplateLiteralEnd():
			partStart := p.inputIndex()
			p.advance()
			elements = append(elements, NewTemplateLiteralElement(
				p.parseSpan(partStart), p.sourceSpan(partStart), token.StrValue))
			if token.IsTemplateLiteralEnd() {
				return NewTemplateLiteral(p.parseSpan(start), p.sourceSpan(start), elements, expressions)
			}
		case token.IsTemplateLiteralInterpolationStart():
			p.advance()
			p.rbracesExpected++
			expression := p.parsePipe()
			if _, empty := expression.(*EmptyExpr); empty {
				p.error("Template literal interpolation cannot be empty")
			} else {
				expressions = append(expressions, expression)
			}
			p.rbracesExpected--
		default:
			p.advance()
		}
	}
	return NewTemplateLiteral(p.parseSpan(start), p.sourceSpan(start), elements, expressions)
}

func (p *parseAST) parseNoInterpolationTemplateLiteral() *TemplateLiteral {
	text := p.next().StrValue
	start := p.inputIndex()
	p.advance()
	ps := p.parseSpan(start)
	ss := p.sourceSpan(start)
	return NewTemplateLiteral(ps, ss,
		[]*TemplateLiteralElement{NewTemplateLiteralElement(ps, ss, text)}, nil)
}

func (p *parseAST) parseTaggedTemplateLiteral(tag AST, start int) AST {
	template := p.parseTemplateLiteral()
	return NewTaggedTemplateLiteral(p.parseSpan(start), p.sourceSpan(start), tag, template)
}

func (p *parseAST) parseNoInterpolationTaggedTemplateLiteral(tag AST, start int) AST {
	template := p.parseNoInterpolationTemplateLiteral()
	return NewTaggedTemplateLiteral(p.parseSpan(start), p.sourceSpan(start), tag, template)
}

var supportedRegexFlags = map[rune]bool{
	'd': true, 'g': true, 'i': true, 'm': true, 's': true, 'u': true, 'v': true, 'y': true,
}

func (p *parseAST) parseRegularExpressionLiteral() AST {
	bodyToken := p.next()
	p.advance()

	var flagsToken *Token
	if p.next().IsRegExpFlags() {
		flagsToken = p.next()
		p.advance()
		seen := make(map[rune]bool)
		for i, char := range flagsToken.StrValue {
			if !supportedRegexFlags[char] {
				p.error(fmt.Sprintf(
					"Unsupported regular expression flag %q. The supported flags are: \"d\", \"g\", \"i\", \"m\", \"s\", \"u\", \"v\", \"y\"",
					char), flagsToken.Index+i)
			} else if seen[char] {
				p.error(fmt.Sprintf("Duplicate regular expression flag %q", char), flagsToken.Index+i)
			} else {
				seen[char] = true
			}
		}
	}

	start := bodyToken.Index
	end := bodyToken.End
	flags := ""
	if flagsToken != nil {
		end = flagsToken.End
		flags = flagsToken.StrValue
	}
	return NewRegularExpressionLiteral(
		p.parseSpan(start, end), p.sourceSpan(start, end), bodyToken.StrValue, flags)
}

func (p *parseAST) expectTemplateBindingKey() *TemplateBindingIdentifier {
	result := ""
	start := p.currentAbsoluteOffset()
	for {
		result += p.expectIdentifierOrKeywordOrString()
		if !p.consumeOptionalOperator("-") {
			break
		}
		result += "-"
	}
	return &TemplateBindingIdentifier{
		Source: result,
		Span:   NewAbsoluteSourceSpan(start, start+len(result)),
	}
}

// parseTemplateBindings parses the microsyntax bindings of a structural
// directive. templateKey is the directive name from the attribute, e.g.
// ngFor for `*ngFor="let item of items"`.
func (p *parseAST) parseTemplateBindings(templateKey *TemplateBindingIdentifier) *TemplateBindingParseResult {
	var bindings []TemplateBinding

	// The first binding is for the directive key itself.
	bindings = append(bindings, p.parseDirectiveKeywordBindings(templateKey)...)

	for p.index < len(p.tokens) {
		if letBinding := p.parseLetBinding(); letBinding != nil {
			bindings = append(bindings, letBinding)
		} else {
			// Either `value as key` or `directive-keyword expression`;
			// both start with a binding key.
			key := p.expectTemplateBindingKey()
			if binding := p.parseAsBinding(key); binding != nil {
				bindings = append(bindings, binding)
			} else {
				// The key is a directive keyword like `of`; compose it
				// with the directive name: of -> ngForOf.
				if len(key.Source) > 0 {
					key.Source = templateKey.Source + strings.ToUpper(key.Source[:1]) + key.Source[1:]
				}
				bindings = append(bindings, p.parseDirectiveKeywordBindings(key)...)
			}
		}
		p.consumeStatementTerminator()
	}

	return &TemplateBindingParseResult{
		TemplateBindings: bindings,
		Errors:           *p.errors,
	}
}

func (p *parseAST) parseDirectiveKeywordBindings(key *TemplateBindingIdentifier) []TemplateBinding {
	var bindings []TemplateBinding
	p.consumeOptionalCharacter(chars.Colon) // trackBy: trackByFunction
	value := p.getDirectiveBoundTarget()
	spanEnd := p.currentAbsoluteOffset()

	// The binding may be followed by `as`, e.g. *ngIf="cond | pipe as x":
	// the key of the as-binding is `x` and its value is the directive key.
	asBinding := p.parseAsBinding(key)
	if asBinding == nil {
		p.consumeStatementTerminator()
		spanEnd = p.currentAbsoluteOffset()
	}
	sourceSpan := NewAbsoluteSourceSpan(key.Span.Start, spanEnd)
	bindings = append(bindings, NewExpressionBinding(sourceSpan, key, value))
	if asBinding != nil {
		bindings = append(bindings, asBinding)
	}
	return bindings
}

func (p *parseAST) getDirectiveBoundTarget() *ASTWithSource {
	if p.next() == EOF || p.peekKeywordAs() || p.peekKeywordLet() {
		return nil
	}
	ast := p.parsePipe()
	s := ast.Span()
	value := string(p.runes[s.Start-p.offset : s.End-p.offset])
	return NewASTWithSource(ast, value, p.location, p.absoluteOffset+s.Start, *p.errors)
}

func (p *parseAST) parseAsBinding(value *TemplateBindingIdentifier) TemplateBinding {
	if !p.peekKeywordAs() {
		return nil
	}
	p.advance()
	key := p.expectTemplateBindingKey()
	p.consumeStatementTerminator()
	sourceSpan := NewAbsoluteSourceSpan(value.Span.Start, p.currentAbsoluteOffset())
	return NewVariableBinding(sourceSpan, key, value)
}

func (p *parseAST) parseLetBinding() TemplateBinding {
	if !p.peekKeywordLet() {
		return nil
	}
	spanStart := p.currentAbsoluteOffset()
	p.advance()
	key := p.expectTemplateBindingKey()
	var value *TemplateBindingIdentifier
	if p.consumeOptionalOperator("=") {
		value = p.expectTemplateBindingKey()
	}
	p.consumeStatementTerminator()
	sourceSpan := NewAbsoluteSourceSpan(spanStart, p.currentAbsoluteOffset())
	return NewVariableBinding(sourceSpan, key, value)
}

func (p *parseAST) consumeStatementTerminator() {
	if !p.consumeOptionalCharacter(chars.Semicolon) {
		p.consumeOptionalCharacter(chars.Comma)
	}
}

// error records a parse error and skips ahead to a recoverable position.
func (p *parseAST) error(message string, index ...int) {
	idx := p.index
	if len(index) > 0 {
		idx = index[0]
	}
	*p.errors = append(*p.errors, parseError(message, p.input, p.getErrorLocationText(idx), p.location))
	p.skip()
}

func (p *parseAST) getErrorLocationText(index int) string {
	if index < len(p.tokens) {
		return fmt.Sprintf("at column %d in", p.tokens[index].Index+1)
	}
	return "at the end of the expression"
}

func (p *parseAST) reportErrorForPrivateIdentifier(token *Token, extraMessage string) {
	msg := fmt.Sprintf("Private identifiers are not supported. Unexpected private identifier: %s", token)
	if extraMessage != "" {
		msg += ", " + extraMessage
	}
	p.error(msg)
}

// skip advances past tokens until one that plausibly resynchronizes the
// parse: a semicolon, a pipe, or a closer we are inside of. In a writable
// context an assignment operator also stops the skip, so that
// `a[b] = "" 1` still reports the write.
func (p *parseAST) skip() {
	n := p.next()
	for p.index < len(p.tokens) &&
		!n.IsCharacter(chars.Semicolon) &&
		!n.IsOperator("|") &&
		(p.rparensExpected <= 0 || !n.IsCharacter(chars.RParen)) &&
		(p.rbracesExpected <= 0 || !n.IsCharacter(chars.RBrace)) &&
		(p.rbracketsExpected <= 0 || !n.IsCharacter(chars.RBracket)) &&
		(p.context&contextWritable == 0 || !p.isAssignmentOperator(n)) {
		if p.next().IsError() {
			*p.errors = append(*p.errors, parseError(
				p.next().String(), p.input, p.getErrorLocationText(p.next().Index), p.location))
		}
		p.advance()
		n = p.next()
	}
}

func parseError(message, input, locationText, location string) *span.ParseError {
	if locationText != "" {
		locationText = " " + locationText + " "
	}
	if location == "" {
		location = "(unknown)"
	}
	return span.NewError(nil, fmt.Sprintf("Parser Error: %s%s[%s] in %s", message, locationText, input, location))
}
