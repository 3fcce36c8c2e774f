package expr

import (
	"github.com/ngx-tools/template/pkg/span"
)

// ParseSpan is a span relative to the start of the expression source.
type ParseSpan struct {
	Start int
	End   int
}

func NewParseSpan(start, end int) *ParseSpan {
	return &ParseSpan{Start: start, End: end}
}

// ToAbsolute shifts the span into template coordinates.
func (p *ParseSpan) ToAbsolute(absoluteOffset int) *AbsoluteSourceSpan {
	return &AbsoluteSourceSpan{Start: absoluteOffset + p.Start, End: absoluteOffset + p.End}
}

// AbsoluteSourceSpan is a span in template coordinates, counted from the
// start of the template rather than the start of the expression.
type AbsoluteSourceSpan struct {
	Start int
	End   int
}

func NewAbsoluteSourceSpan(start, end int) *AbsoluteSourceSpan {
	return &AbsoluteSourceSpan{Start: start, End: end}
}

// AST is an expression tree node.
type AST interface {
	Span() *ParseSpan
	SourceSpan() *AbsoluteSourceSpan
	Visit(v Visitor)
}

type baseNode struct {
	span       *ParseSpan
	sourceSpan *AbsoluteSourceSpan
}

func (n *baseNode) Span() *ParseSpan                { return n.span }
func (n *baseNode) SourceSpan() *AbsoluteSourceSpan { return n.sourceSpan }

func newBase(s *ParseSpan, ss *AbsoluteSourceSpan) baseNode {
	return baseNode{span: s, sourceSpan: ss}
}

// UndefinedValue is the LiteralPrimitive value for the `undefined` keyword,
// distinct from nil which represents `null`.
type UndefinedValue struct{}

// EmptyExpr stands in for a missing expression, e.g. an empty action.
type EmptyExpr struct{ baseNode }

func NewEmptyExpr(s *ParseSpan, ss *AbsoluteSourceSpan) *EmptyExpr {
	return &EmptyExpr{newBase(s, ss)}
}

func (e *EmptyExpr) Visit(v Visitor) {}

// ImplicitReceiver is the receiver of a top-level property access.
type ImplicitReceiver struct{ baseNode }

func NewImplicitReceiver(s *ParseSpan, ss *AbsoluteSourceSpan) *ImplicitReceiver {
	return &ImplicitReceiver{newBase(s, ss)}
}

func (e *ImplicitReceiver) Visit(v Visitor) { v.VisitImplicitReceiver(e) }

// ThisReceiver is the receiver of an explicit `this.` access.
type ThisReceiver struct{ ImplicitReceiver }

func NewThisReceiver(s *ParseSpan, ss *AbsoluteSourceSpan) *ThisReceiver {
	return &ThisReceiver{ImplicitReceiver{newBase(s, ss)}}
}

func (e *ThisReceiver) Visit(v Visitor) { v.VisitThisReceiver(e) }

// Chain is a sequence of statements separated by semicolons, only legal
// in action expressions.
type Chain struct {
	baseNode
	Expressions []AST
}

func NewChain(s *ParseSpan, ss *AbsoluteSourceSpan, exprs []AST) *Chain {
	return &Chain{newBase(s, ss), exprs}
}

func (e *Chain) Visit(v Visitor) { v.VisitChain(e) }

// Conditional is the ternary operator.
type Conditional struct {
	baseNode
	Condition AST
	TrueExp   AST
	FalseExp  AST
}

func NewConditional(s *ParseSpan, ss *AbsoluteSourceSpan, cond, trueExp, falseExp AST) *Conditional {
	return &Conditional{newBase(s, ss), cond, trueExp, falseExp}
}

func (e *Conditional) Visit(v Visitor) { v.VisitConditional(e) }

// PropertyRead is `receiver.name` (or a bare identifier against the
// implicit receiver).
type PropertyRead struct {
	baseNode
	NameSpan *AbsoluteSourceSpan
	Receiver AST
	Name     string
}

func NewPropertyRead(s *ParseSpan, ss, nameSpan *AbsoluteSourceSpan, receiver AST, name string) *PropertyRead {
	return &PropertyRead{newBase(s, ss), nameSpan, receiver, name}
}

func (e *PropertyRead) Visit(v Visitor) { v.VisitPropertyRead(e) }

// SafePropertyRead is `receiver?.name`.
type SafePropertyRead struct {
	baseNode
	NameSpan *AbsoluteSourceSpan
	Receiver AST
	Name     string
}

func NewSafePropertyRead(s *ParseSpan, ss, nameSpan *AbsoluteSourceSpan, receiver AST, name string) *SafePropertyRead {
	return &SafePropertyRead{newBase(s, ss), nameSpan, receiver, name}
}

func (e *SafePropertyRead) Visit(v Visitor) { v.VisitSafePropertyRead(e) }

// KeyedRead is `receiver[key]`.
type KeyedRead struct {
	baseNode
	Receiver AST
	Key      AST
}

func NewKeyedRead(s *ParseSpan, ss *AbsoluteSourceSpan, receiver, key AST) *KeyedRead {
	return &KeyedRead{newBase(s, ss), receiver, key}
}

func (e *KeyedRead) Visit(v Visitor) { v.VisitKeyedRead(e) }

// SafeKeyedRead is `receiver?.[key]`.
type SafeKeyedRead struct {
	baseNode
	Receiver AST
	Key      AST
}

func NewSafeKeyedRead(s *ParseSpan, ss *AbsoluteSourceSpan, receiver, key AST) *SafeKeyedRead {
	return &SafeKeyedRead{newBase(s, ss), receiver, key}
}

func (e *SafeKeyedRead) Visit(v Visitor) { v.VisitSafeKeyedRead(e) }

// BindingPipeType says how a pipe was referenced.
type BindingPipeType int

const (
	// ReferencedByName is the usual `value | lowercase` form.
	ReferencedByName BindingPipeType = iota
	// ReferencedDirectly references the pipe class itself, available only
	// when the parser supports direct pipe references.
	ReferencedDirectly
)

// BindingPipe is `exp | name:arg0:arg1`.
type BindingPipe struct {
	baseNode
	NameSpan *AbsoluteSourceSpan
	Exp      AST
	Name     string
	Args     []AST
	Type     BindingPipeType
}

func NewBindingPipe(s *ParseSpan, ss *AbsoluteSourceSpan, exp AST, name string, args []AST, typ BindingPipeType, nameSpan *AbsoluteSourceSpan) *BindingPipe {
	return &BindingPipe{newBase(s, ss), nameSpan, exp, name, args, typ}
}

func (e *BindingPipe) Visit(v Visitor) { v.VisitPipe(e) }

// LiteralPrimitive holds a number, string, boolean, null (nil) or
// undefined (UndefinedValue) literal.
type LiteralPrimitive struct {
	baseNode
	Value any
}

func NewLiteralPrimitive(s *ParseSpan, ss *AbsoluteSourceSpan, value any) *LiteralPrimitive {
	return &LiteralPrimitive{newBase(s, ss), value}
}

func (e *LiteralPrimitive) Visit(v Visitor) { v.VisitLiteralPrimitive(e) }

// LiteralArray is `[a, b, c]`.
type LiteralArray struct {
	baseNode
	Expressions []AST
}

func NewLiteralArray(s *ParseSpan, ss *AbsoluteSourceSpan, exprs []AST) *LiteralArray {
	return &LiteralArray{newBase(s, ss), exprs}
}

func (e *LiteralArray) Visit(v Visitor) { v.VisitLiteralArray(e) }

// LiteralMapKey is one key of an object literal.
type LiteralMapKey struct {
	Key                    string
	Quoted                 bool
	IsShorthandInitialized bool
}

// LiteralMap is `{a: 1, "b": 2, c}`.
type LiteralMap struct {
	baseNode
	Keys   []LiteralMapKey
	Values []AST
}

func NewLiteralMap(s *ParseSpan, ss *AbsoluteSourceSpan, keys []LiteralMapKey, values []AST) *LiteralMap {
	return &LiteralMap{newBase(s, ss), keys, values}
}

func (e *LiteralMap) Visit(v Visitor) { v.VisitLiteralMap(e) }

// Interpolation holds the static strings and embedded expressions of an
// interpolated string. len(Strings) == len(Expressions)+1 always.
type Interpolation struct {
	baseNode
	Strings     []string
	Expressions []AST
}

func NewInterpolation(s *ParseSpan, ss *AbsoluteSourceSpan, strs []string, exprs []AST) *Interpolation {
	return &Interpolation{newBase(s, ss), strs, exprs}
}

func (e *Interpolation) Visit(v Visitor) { v.VisitInterpolation(e) }

// Binary is a binary operation, including assignment forms.
type Binary struct {
	baseNode
	Operation string
	Left      AST
	Right     AST
}

func NewBinary(s *ParseSpan, ss *AbsoluteSourceSpan, op string, left, right AST) *Binary {
	return &Binary{newBase(s, ss), op, left, right}
}

func (e *Binary) Visit(v Visitor) { v.VisitBinary(e) }

// IsAssignmentOperation reports whether op writes to its left side.
func IsAssignmentOperation(op string) bool {
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=", "**=", "&&=", "||=", "??=":
		return true
	}
	return false
}

// Unary is unary plus or minus. It doubles as an equivalent Binary
// against zero so that consumers which only understand Binary keep
// working.
type Unary struct {
	Binary
	Operator string
	Expr     AST
}

func newUnary(s *ParseSpan, ss *AbsoluteSourceSpan, operator string, expr AST, binOp string, left, right AST) *Unary {
	return &Unary{Binary{newBase(s, ss), binOp, left, right}, operator, expr}
}

// CreateMinus builds `-x` as `0 - x`.
func CreateMinus(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *Unary {
	return newUnary(s, ss, "-", expr, "-", NewLiteralPrimitive(s, ss, float64(0)), expr)
}

// CreatePlus builds `+x` as `x - 0`.
func CreatePlus(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *Unary {
	return newUnary(s, ss, "+", expr, "-", expr, NewLiteralPrimitive(s, ss, float64(0)))
}

func (e *Unary) Visit(v Visitor) { v.VisitUnary(e) }

// PrefixNot is `!expr`.
type PrefixNot struct {
	baseNode
	Expression AST
}

func NewPrefixNot(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *PrefixNot {
	return &PrefixNot{newBase(s, ss), expr}
}

func (e *PrefixNot) Visit(v Visitor) { v.VisitPrefixNot(e) }

// TypeofExpression is `typeof expr`.
type TypeofExpression struct {
	baseNode
	Expression AST
}

func NewTypeofExpression(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *TypeofExpression {
	return &TypeofExpression{newBase(s, ss), expr}
}

func (e *TypeofExpression) Visit(v Visitor) { v.VisitTypeofExpression(e) }

// VoidExpression is `void expr`.
type VoidExpression struct {
	baseNode
	Expression AST
}

func NewVoidExpression(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *VoidExpression {
	return &VoidExpression{newBase(s, ss), expr}
}

func (e *VoidExpression) Visit(v Visitor) { v.VisitVoidExpression(e) }

// NonNullAssert is `expr!`.
type NonNullAssert struct {
	baseNode
	Expression AST
}

func NewNonNullAssert(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *NonNullAssert {
	return &NonNullAssert{newBase(s, ss), expr}
}

func (e *NonNullAssert) Visit(v Visitor) { v.VisitNonNullAssert(e) }

// Call is `receiver(args)`.
type Call struct {
	baseNode
	Receiver     AST
	Args         []AST
	ArgumentSpan *AbsoluteSourceSpan
}

func NewCall(s *ParseSpan, ss *AbsoluteSourceSpan, receiver AST, args []AST, argumentSpan *AbsoluteSourceSpan) *Call {
	return &Call{newBase(s, ss), receiver, args, argumentSpan}
}

func (e *Call) Visit(v Visitor) { v.VisitCall(e) }

// SafeCall is `receiver?.(args)`.
type SafeCall struct {
	baseNode
	Receiver     AST
	Args         []AST
	ArgumentSpan *AbsoluteSourceSpan
}

func NewSafeCall(s *ParseSpan, ss *AbsoluteSourceSpan, receiver AST, args []AST, argumentSpan *AbsoluteSourceSpan) *SafeCall {
	return &SafeCall{newBase(s, ss), receiver, args, argumentSpan}
}

func (e *SafeCall) Visit(v Visitor) { v.VisitSafeCall(e) }

// TemplateLiteralElement is a static text segment of a template literal.
type TemplateLiteralElement struct {
	baseNode
	Text string
}

func NewTemplateLiteralElement(s *ParseSpan, ss *AbsoluteSourceSpan, text string) *TemplateLiteralElement {
	return &TemplateLiteralElement{newBase(s, ss), text}
}

func (e *TemplateLiteralElement) Visit(v Visitor) { v.VisitTemplateLiteralElement(e) }

// TemplateLiteral is a backtick string with ${} interpolations.
type TemplateLiteral struct {
	baseNode
	Elements    []*TemplateLiteralElement
	Expressions []AST
}

func NewTemplateLiteral(s *ParseSpan, ss *AbsoluteSourceSpan, elements []*TemplateLiteralElement, exprs []AST) *TemplateLiteral {
	return &TemplateLiteral{newBase(s, ss), elements, exprs}
}

func (e *TemplateLiteral) Visit(v Visitor) { v.VisitTemplateLiteral(e) }

// TaggedTemplateLiteral is `tag`+template literal.
type TaggedTemplateLiteral struct {
	baseNode
	Tag      AST
	Template *TemplateLiteral
}

func NewTaggedTemplateLiteral(s *ParseSpan, ss *AbsoluteSourceSpan, tag AST, template *TemplateLiteral) *TaggedTemplateLiteral {
	return &TaggedTemplateLiteral{newBase(s, ss), tag, template}
}

func (e *TaggedTemplateLiteral) Visit(v Visitor) { v.VisitTaggedTemplateLiteral(e) }

// ParenthesizedExpression preserves explicit grouping.
type ParenthesizedExpression struct {
	baseNode
	Expression AST
}

func NewParenthesizedExpression(s *ParseSpan, ss *AbsoluteSourceSpan, expr AST) *ParenthesizedExpression {
	return &ParenthesizedExpression{newBase(s, ss), expr}
}

func (e *ParenthesizedExpression) Visit(v Visitor) { v.VisitParenthesizedExpression(e) }

// RegularExpressionLiteral is `/body/flags`.
type RegularExpressionLiteral struct {
	baseNode
	Body  string
	Flags string
}

func NewRegularExpressionLiteral(s *ParseSpan, ss *AbsoluteSourceSpan, body, flags string) *RegularExpressionLiteral {
	return &RegularExpressionLiteral{newBase(s, ss), body, flags}
}

func (e *RegularExpressionLiteral) Visit(v Visitor) { v.VisitRegularExpressionLiteral(e) }

// ASTWithSource pairs a parsed tree with the text it came from and any
// errors collected while parsing it.
type ASTWithSource struct {
	baseNode
	AST            AST
	Source         string
	Location       string
	AbsoluteOffset int
	Errors         []*span.ParseError
}

func NewASTWithSource(ast AST, source, location string, absoluteOffset int, errors []*span.ParseError) *ASTWithSource {
	ps := NewParseSpan(0, len([]rune(source)))
	return &ASTWithSource{
		baseNode:       newBase(ps, ps.ToAbsolute(absoluteOffset)),
		AST:            ast,
		Source:         source,
		Location:       location,
		AbsoluteOffset: absoluteOffset,
		Errors:         errors,
	}
}

func (e *ASTWithSource) Visit(v Visitor) { e.AST.Visit(v) }

func (e *ASTWithSource) String() string {
	return e.Source + " in " + e.Location
}

// TemplateBindingIdentifier is a key or variable name inside a
// microsyntax expression.
type TemplateBindingIdentifier struct {
	Source string
	Span   *AbsoluteSourceSpan
}

// TemplateBinding is one binding produced by the microsyntax parser.
type TemplateBinding interface {
	SourceSpan() *AbsoluteSourceSpan
}

// VariableBinding declares a local variable, e.g. `let item` or
// `as local`.
type VariableBinding struct {
	sourceSpan *AbsoluteSourceSpan
	Key        *TemplateBindingIdentifier
	Value      *TemplateBindingIdentifier
}

func NewVariableBinding(ss *AbsoluteSourceSpan, key, value *TemplateBindingIdentifier) *VariableBinding {
	return &VariableBinding{sourceSpan: ss, Key: key, Value: value}
}

func (b *VariableBinding) SourceSpan() *AbsoluteSourceSpan { return b.sourceSpan }

// ExpressionBinding binds a directive input to an expression, e.g. the
// `ngForOf` part of `*ngFor="let x of items"`.
type ExpressionBinding struct {
	sourceSpan *AbsoluteSourceSpan
	Key        *TemplateBindingIdentifier
	Value      *ASTWithSource
}

func NewExpressionBinding(ss *AbsoluteSourceSpan, key *TemplateBindingIdentifier, value *ASTWithSource) *ExpressionBinding {
	return &ExpressionBinding{sourceSpan: ss, Key: key, Value: value}
}

func (b *ExpressionBinding) SourceSpan() *AbsoluteSourceSpan { return b.sourceSpan }

// Visitor walks expression trees.
type Visitor interface {
	VisitUnary(ast *Unary)
	VisitBinary(ast *Binary)
	VisitChain(ast *Chain)
	VisitConditional(ast *Conditional)
	VisitThisReceiver(ast *ThisReceiver)
	VisitImplicitReceiver(ast *ImplicitReceiver)
	VisitInterpolation(ast *Interpolation)
	VisitKeyedRead(ast *KeyedRead)
	VisitLiteralArray(ast *LiteralArray)
	VisitLiteralMap(ast *LiteralMap)
	VisitLiteralPrimitive(ast *LiteralPrimitive)
	VisitPipe(ast *BindingPipe)
	VisitPrefixNot(ast *PrefixNot)
	VisitTypeofExpression(ast *TypeofExpression)
	VisitVoidExpression(ast *VoidExpression)
	VisitNonNullAssert(ast *NonNullAssert)
	VisitPropertyRead(ast *PropertyRead)
	VisitSafePropertyRead(ast *SafePropertyRead)
	VisitSafeKeyedRead(ast *SafeKeyedRead)
	VisitCall(ast *Call)
	VisitSafeCall(ast *SafeCall)
	VisitTemplateLiteral(ast *TemplateLiteral)
	VisitTemplateLiteralElement(ast *TemplateLiteralElement)
	VisitTaggedTemplateLiteral(ast *TaggedTemplateLiteral)
	VisitParenthesizedExpression(ast *ParenthesizedExpression)
	VisitRegularExpressionLiteral(ast *RegularExpressionLiteral)
}

// RecursiveVisitor visits every child node and does nothing else. Embed
// it to override only the methods you care about.
type RecursiveVisitor struct{}

func (r *RecursiveVisitor) visitAll(asts []AST) {
	for _, a := range asts {
		a.Visit(r)
	}
}

func (r *RecursiveVisitor) VisitUnary(ast *Unary) { ast.Expr.Visit(r) }
func (r *RecursiveVisitor) VisitBinary(ast *Binary) {
	ast.Left.Visit(r)
	ast.Right.Visit(r)
}
func (r *RecursiveVisitor) VisitChain(ast *Chain) { r.visitAll(ast.Expressions) }
func (r *RecursiveVisitor) VisitConditional(ast *Conditional) {
	ast.Condition.Visit(r)
	ast.TrueExp.Visit(r)
	ast.FalseExp.Visit(r)
}
func (r *RecursiveVisitor) VisitThisReceiver(ast *ThisReceiver)         {}
func (r *RecursiveVisitor) VisitImplicitReceiver(ast *ImplicitReceiver) {}
func (r *RecursiveVisitor) VisitInterpolation(ast *Interpolation)       { r.visitAll(ast.Expressions) }
func (r *RecursiveVisitor) VisitKeyedRead(ast *KeyedRead) {
	ast.Receiver.Visit(r)
	ast.Key.Visit(r)
}
func (r *RecursiveVisitor) VisitLiteralArray(ast *LiteralArray)         { r.visitAll(ast.Expressions) }
func (r *RecursiveVisitor) VisitLiteralMap(ast *LiteralMap)             { r.visitAll(ast.Values) }
func (r *RecursiveVisitor) VisitLiteralPrimitive(ast *LiteralPrimitive) {}
func (r *RecursiveVisitor) VisitPipe(ast *BindingPipe) {
	ast.Exp.Visit(r)
	r.visitAll(ast.Args)
}
func (r *RecursiveVisitor) VisitPrefixNot(ast *PrefixNot)               { ast.Expression.Visit(r) }
func (r *RecursiveVisitor) VisitTypeofExpression(ast *TypeofExpression) { ast.Expression.Visit(r) }
func (r *RecursiveVisitor) VisitVoidExpression(ast *VoidExpression)     { ast.Expression.Visit(r) }
func (r *RecursiveVisitor) VisitNonNullAssert(ast *NonNullAssert)       { ast.Expression.Visit(r) }
func (r *RecursiveVisitor) VisitPropertyRead(ast *PropertyRead)         { ast.Receiver.Visit(r) }
func (r *RecursiveVisitor) VisitSafePropertyRead(ast *SafePropertyRead) { ast.Receiver.Visit(r) }
func (r *RecursiveVisitor) VisitSafeKeyedRead(ast *SafeKeyedRead) {
	ast.Receiver.Visit(r)
	ast.Key.Visit(r)
}
func (r *RecursiveVisitor) VisitCall(ast *Call) {
	ast.Receiver.Visit(r)
	r.visitAll(ast.Args)
}
func (r *RecursiveVisitor) VisitSafeCall(ast *SafeCall) {
	ast.Receiver.Visit(r)
	r.visitAll(ast.Args)
}
func (r *RecursiveVisitor) VisitTemplateLiteral(ast *TemplateLiteral) {
	for i, el := range ast.Elements {
		el.Visit(r)
		if i < len(ast.Expressions) {
			ast.Expressions[i].Visit(r)
		}
	}
}
func (r *RecursiveVisitor) VisitTemplateLiteralElement(ast *TemplateLiteralElement) {}
func (r *RecursiveVisitor) VisitTaggedTemplateLiteral(ast *TaggedTemplateLiteral) {
	ast.Tag.Visit(r)
	ast.Template.Visit(r)
}
func (r *RecursiveVisitor) VisitParenthesizedExpression(ast *ParenthesizedExpression) {
	ast.Expression.Visit(r)
}
func (r *RecursiveVisitor) VisitRegularExpressionLiteral(ast *RegularExpressionLiteral) {}
