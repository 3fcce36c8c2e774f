package expr

import (
	"fmt"
	"strings"
)

// Unparse renders an AST back to expression source text. The output is
// normalized (pipes parenthesized, strings double-quoted) rather than a
// byte-exact round trip.
func Unparse(ast AST) string {
	u := &unparser{}
	ast.Visit(u)
	return u.out.String()
}

type unparser struct {
	out strings.Builder
}

func (u *unparser) VisitUnary(ast *Unary) {
	u.out.WriteString(ast.Operator)
	ast.Expr.Visit(u)
}

func (u *unparser) VisitBinary(ast *Binary) {
	ast.Left.Visit(u)
	u.out.WriteString(" " + ast.Operation + " ")
	ast.Right.Visit(u)
}

func (u *unparser) VisitChain(ast *Chain) {
	for i, e := range ast.Expressions {
		e.Visit(u)
		if i < len(ast.Expressions)-1 {
			u.out.WriteString("; ")
		} else {
			u.out.WriteString(";")
		}
	}
}

func (u *unparser) VisitConditional(ast *Conditional) {
	ast.Condition.Visit(u)
	u.out.WriteString(" ? ")
	ast.TrueExp.Visit(u)
	u.out.WriteString(" : ")
	ast.FalseExp.Visit(u)
}

func (u *unparser) VisitThisReceiver(ast *ThisReceiver)         {}
func (u *unparser) VisitImplicitReceiver(ast *ImplicitReceiver) {}

func (u *unparser) VisitInterpolation(ast *Interpolation) {
	for i, s := range ast.Strings {
		u.out.WriteString(s)
		if i < len(ast.Expressions) {
			u.out.WriteString("{{ ")
			ast.Expressions[i].Visit(u)
			u.out.WriteString(" }}")
		}
	}
}

func (u *unparser) VisitKeyedRead(ast *KeyedRead) {
	ast.Receiver.Visit(u)
	u.out.WriteString("[")
	ast.Key.Visit(u)
	u.out.WriteString("]")
}

func (u *unparser) VisitLiteralArray(ast *LiteralArray) {
	u.out.WriteString("[")
	for i, e := range ast.Expressions {
		if i > 0 {
			u.out.WriteString(", ")
		}
		e.Visit(u)
	}
	u.out.WriteString("]")
}

func (u *unparser) VisitLiteralMap(ast *LiteralMap) {
	u.out.WriteString("{")
	for i, key := range ast.Keys {
		if i > 0 {
			u.out.WriteString(", ")
		}
		if key.Quoted {
			u.out.WriteString(`"` + strings.ReplaceAll(key.Key, `"`, `\"`) + `"`)
		} else {
			u.out.WriteString(key.Key)
		}
		u.out.WriteString(": ")
		ast.Values[i].Visit(u)
	}
	u.out.WriteString("}")
}

func (u *unparser) VisitLiteralPrimitive(ast *LiteralPrimitive) {
	switch v := ast.Value.(type) {
	case nil:
		u.out.WriteString("null")
	case UndefinedValue:
		u.out.WriteString("undefined")
	case float64:
		u.out.WriteString(fmt.Sprintf("%g", v))
	case bool:
		u.out.WriteString(fmt.Sprintf("%t", v))
	case string:
		u.out.WriteString(`"` + strings.ReplaceAll(v, `"`, `\"`) + `"`)
	default:
		fmt.Fprintf(&u.out, "%v", v)
	}
}

func (u *unparser) VisitPipe(ast *BindingPipe) {
	u.out.WriteString("(")
	ast.Exp.Visit(u)
	u.out.WriteString(" | " + ast.Name)
	for _, arg := range ast.Args {
		u.out.WriteString(":")
		arg.Visit(u)
	}
	u.out.WriteString(")")
}

func (u *unparser) VisitPrefixNot(ast *PrefixNot) {
	u.out.WriteString("!")
	ast.Expression.Visit(u)
}

func (u *unparser) VisitTypeofExpression(ast *TypeofExpression) {
	u.out.WriteString("typeof ")
	ast.Expression.Visit(u)
}

func (u *unparser) VisitVoidExpression(ast *VoidExpression) {
	u.out.WriteString("void ")
	ast.Expression.Visit(u)
}

func (u *unparser) VisitNonNullAssert(ast *NonNullAssert) {
	ast.Expression.Visit(u)
	u.out.WriteString("!")
}

func (u *unparser) VisitPropertyRead(ast *PropertyRead) {
	ast.Receiver.Visit(u)
	if isImplicitReceiver(ast.Receiver) {
		u.out.WriteString(ast.Name)
	} else {
		u.out.WriteString("." + ast.Name)
	}
}

func (u *unparser) VisitSafePropertyRead(ast *SafePropertyRead) {
	ast.Receiver.Visit(u)
	u.out.WriteString("?." + ast.Name)
}

func (u *unparser) VisitSafeKeyedRead(ast *SafeKeyedRead) {
	ast.Receiver.Visit(u)
	u.out.WriteString("?.[")
	ast.Key.Visit(u)
	u.out.WriteString("]")
}

func (u *unparser) VisitCall(ast *Call) {
	ast.Receiver.Visit(u)
	u.out.WriteString("(")
	for i, arg := range ast.Args {
		if i > 0 {
			u.out.WriteString(", ")
		}
		arg.Visit(u)
	}
	u.out.WriteString(")")
}

func (u *unparser) VisitSafeCall(ast *SafeCall) {
	ast.Receiver.Visit(u)
	u.out.WriteString("?.(")
	for i, arg := range ast.Args {
		if i > 0 {
			u.out.WriteString(", ")
		}
		arg.Visit(u)
	}
	u.out.WriteString(")")
}

func (u *unparser) VisitTemplateLiteral(ast *TemplateLiteral) {
	u.out.WriteString("`")
	for i, el := range ast.Elements {
		el.Visit(u)
		if i < len(ast.Expressions) {
			u.out.WriteString("${")
			ast.Expressions[i].Visit(u)
			u.out.WriteString("}")
		}
	}
	u.out.WriteString("`")
}

func (u *unparser) VisitTemplateLiteralElement(ast *TemplateLiteralElement) {
	u.out.WriteString(ast.Text)
}

func (u *unparser) VisitTaggedTemplateLiteral(ast *TaggedTemplateLiteral) {
	ast.Tag.Visit(u)
	ast.Template.Visit(u)
}

func (u *unparser) VisitParenthesizedExpression(ast *ParenthesizedExpression) {
	u.out.WriteString("(")
	ast.Expression.Visit(u)
	u.out.WriteString(")")
}

func (u *unparser) VisitRegularExpressionLiteral(ast *RegularExpressionLiteral) {
	u.out.WriteString("/" + ast.Body + "/" + ast.Flags)
}

func isImplicitReceiver(ast AST) bool {
	switch ast.(type) {
	case *ImplicitReceiver, *ThisReceiver:
		return true
	}
	return false
}
