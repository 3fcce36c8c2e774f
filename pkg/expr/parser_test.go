package expr_test

import (
	"strings"
	"testing"

	"github.com/ngx-tools/template/pkg/expr"
)

func newParser(supportsDirectPipeReferences bool) *expr.Parser {
	return expr.NewParser(expr.NewLexer(), supportsDirectPipeReferences)
}

func parseAction(expression string) *expr.ASTWithSource {
	return newParser(false).ParseAction(expression, "action", 0)
}

func parseBinding(expression string, supportsDirectPipeReferences ...bool) *expr.ASTWithSource {
	supportsDirect := false
	if len(supportsDirectPipeReferences) > 0 {
		supportsDirect = supportsDirectPipeReferences[0]
	}
	return newParser(supportsDirect).ParseBinding(expression, "binding", 0)
}

func checkAction(exp string, expected ...string) func(*testing.T) {
	return func(t *testing.T) {
		ast := parseAction(exp)
		expectedStr := exp
		if len(expected) > 0 {
			expectedStr = expected[0]
		}
		if result := expr.Unparse(ast.AST); result != expectedStr {
			t.Errorf("Expected %q, got %q", expectedStr, result)
		}
	}
}

func checkBinding(exp string, expected ...string) func(*testing.T) {
	return func(t *testing.T) {
		ast := parseBinding(exp)
		expectedStr := exp
		if len(expected) > 0 {
			expectedStr = expected[0]
		}
		if result := expr.Unparse(ast.AST); result != expectedStr {
			t.Errorf("Expected %q, got %q", expectedStr, result)
		}
	}
}

func expectError(t *testing.T, ast *expr.ASTWithSource, message string) {
	t.Helper()
	if len(ast.Errors) == 0 {
		t.Errorf("Expected an error containing %q, but got no errors", message)
		return
	}
	for _, err := range ast.Errors {
		if strings.Contains(err.Msg, message) {
			return
		}
	}
	msgs := make([]string, len(ast.Errors))
	for i, err := range ast.Errors {
		msgs[i] = err.Msg
	}
	t.Errorf("Expected an error containing %q, but got:\n%s", message, strings.Join(msgs, "\n"))
}

func expectActionError(text, message string) func(*testing.T) {
	return func(t *testing.T) {
		expectError(t, parseAction(text), message)
	}
}

func expectBindingError(text, message string) func(*testing.T) {
	return func(t *testing.T) {
		expectError(t, parseBinding(text), message)
	}
}

func checkActionWithError(text, expected, message string) func(*testing.T) {
	return func(t *testing.T) {
		checkAction(text, expected)(t)
		expectActionError(text, message)(t)
	}
}

func TestParseAction(t *testing.T) {
	t.Run("should parse numbers", checkAction("1"))

	t.Run("should parse strings", func(t *testing.T) {
		checkAction("'1'", `"1"`)(t)
		checkAction(`"1"`)(t)
	})

	t.Run("should parse null and undefined", func(t *testing.T) {
		checkAction("null")(t)
		checkAction("undefined")(t)
	})

	t.Run("should parse unary - and + expressions", func(t *testing.T) {
		checkAction("-1", "-1")(t)
		checkAction("+1", "+1")(t)
		checkAction(`-'1'`, `-"1"`)(t)
	})

	t.Run("should parse unary ! expressions", func(t *testing.T) {
		checkAction("!true")(t)
		checkAction("!!true")(t)
	})

	t.Run("should parse postfix ! expressions", func(t *testing.T) {
		checkAction("true!")(t)
		checkAction("a!.b")(t)
		checkAction("a!()")(t)
	})

	t.Run("should parse exponentiation expressions", func(t *testing.T) {
		checkAction("1*2**3", "1 * 2 ** 3")(t)
	})

	t.Run("should reject unary operands of exponentiation", func(t *testing.T) {
		expectActionError("-1 ** 2", "Parenthesis must be used to disambiguate operator precedence")(t)
	})

	t.Run("should parse multiplicative expressions", func(t *testing.T) {
		checkAction("3*4/2%5", "3 * 4 / 2 % 5")(t)
	})

	t.Run("should parse additive expressions", checkAction("3 + 6 - 2"))

	t.Run("should parse relational expressions", func(t *testing.T) {
		checkAction("2 < 3")(t)
		checkAction("2 >= 2")(t)
	})

	t.Run("should parse equality expressions", func(t *testing.T) {
		checkAction("2 == 3")(t)
		checkAction("2 != 3")(t)
		checkAction("2 === 3")(t)
		checkAction("2 !== 3")(t)
	})

	t.Run("should parse logical expressions", func(t *testing.T) {
		checkAction("true && true")(t)
		checkAction("true || false")(t)
		checkAction("null ?? 0")(t)
		checkAction("null ?? undefined ?? 0")(t)
	})

	t.Run("should parse typeof and void expressions", func(t *testing.T) {
		checkAction(`typeof {} === "object"`)(t)
		checkAction("void 0")(t)
	})

	t.Run("should parse grouped expressions", checkAction("(1 + 2) * 3"))

	t.Run("should parse in expressions", func(t *testing.T) {
		checkAction(`'key' in obj`, `"key" in obj`)(t)
	})

	t.Run("should ignore comments", checkAction("a //comment", "a"))

	t.Run("should retain // in string literals", checkAction(`"http://www.google.com"`))

	t.Run("should parse an empty string", checkAction(""))

	t.Run("should parse assignment operators with property reads", func(t *testing.T) {
		for _, op := range []string{"=", "+=", "-=", "*=", "/=", "%=", "**=", "&&=", "||=", "??="} {
			checkAction("a " + op + " b")(t)
		}
	})

	t.Run("should parse assignment operators with keyed reads", func(t *testing.T) {
		checkAction("a[0] = b")(t)
		checkAction("a[0] ??= b")(t)
	})

	t.Run("literals", func(t *testing.T) {
		t.Run("should parse array literals", func(t *testing.T) {
			checkAction("[1][0]")(t)
			checkAction("[]")(t)
			checkAction("[].length")(t)
			checkAction("[1, 2,]", "[1, 2]")(t)
		})

		t.Run("should parse map literals", func(t *testing.T) {
			checkAction("{}")(t)
			checkAction(`{a: 1, "b": 2}[2]`)(t)
			checkAction(`{a: 1, b: 2,}`, `{a: 1, b: 2}`)(t)
		})

		t.Run("should only allow identifier, string, or keyword as map key", func(t *testing.T) {
			expectActionError("{(:0}", "expected identifier, keyword, or string")(t)
			expectActionError("{1234:0}", "expected identifier, keyword, or string")(t)
			expectActionError("{#myField:0}", "expected identifier, keyword or string")(t)
		})

		t.Run("should parse property shorthand declarations", func(t *testing.T) {
			checkAction("{a, b, c}", "{a: a, b: b, c: c}")(t)
			checkAction("{a: 1, b}", "{a: 1, b: b}")(t)
		})

		t.Run("should not allow shorthand on quoted properties", func(t *testing.T) {
			expectActionError(`{"a-b"}`, "expected : at column 7")(t)
		})

		t.Run("should not infer invalid identifiers as shorthand declarations", func(t *testing.T) {
			expectActionError("{a.b}", "expected } at column 3")(t)
		})
	})

	t.Run("member access", func(t *testing.T) {
		t.Run("should parse field access", func(t *testing.T) {
			checkAction("a")(t)
			checkAction("this.a", "a")(t)
			checkAction("a.a")(t)
		})

		t.Run("should error for private identifiers with implicit receiver", func(t *testing.T) {
			checkActionWithError("#privateField", "",
				"Private identifiers are not supported. Unexpected private identifier: #privateField")(t)
		})

		t.Run("should only allow identifier or keyword as member names", func(t *testing.T) {
			checkActionWithError("x.", "x.", "identifier or keyword")(t)
			checkActionWithError("x. 1234", "x.", "identifier or keyword")(t)
		})

		t.Run("should parse safe field access", func(t *testing.T) {
			checkAction("a?.a")(t)
			checkAction("a.a?.a")(t)
		})

		t.Run("should parse incomplete safe field accesses", func(t *testing.T) {
			checkActionWithError("a?.a.", "a?.a.", "identifier or keyword")(t)
		})
	})

	t.Run("property write", func(t *testing.T) {
		t.Run("should parse property writes", func(t *testing.T) {
			checkAction("a.a = 1 + 2")(t)
			checkAction("this.a.a = 1 + 2", "a.a = 1 + 2")(t)
		})

		t.Run("should recover on empty rvalues", func(t *testing.T) {
			checkActionWithError("a.a = ", "a.a = ", "Unexpected end of expression")(t)
		})

		t.Run("should recover on missing properties", func(t *testing.T) {
			checkActionWithError("a. = 1", "a. = 1", "Expected identifier for property access")(t)
		})

		t.Run("should report on safe field assignments", func(t *testing.T) {
			expectActionError("a?.a = 123", "cannot be used in the assignment")(t)
		})
	})

	t.Run("calls", func(t *testing.T) {
		t.Run("should parse calls", func(t *testing.T) {
			checkAction("fn()")(t)
			checkAction("add(1, 2)")(t)
			checkAction("fn().add(1, 2)")(t)
			checkAction("fn()(1, 2)")(t)
		})

		t.Run("should parse safe calls", func(t *testing.T) {
			checkAction("fn?.()")(t)
			checkAction("a.add?.(1, 2)")(t)
			checkAction("fn?.()?.(1, 2)")(t)
		})
	})

	t.Run("keyed access", func(t *testing.T) {
		t.Run("should parse keyed reads and writes", func(t *testing.T) {
			checkAction(`a["a"]`)(t)
			checkAction(`a.a["a"] = 1 + 2`)(t)
		})

		t.Run("should parse safe keyed reads", func(t *testing.T) {
			checkAction(`a?.["a"]`)(t)
		})

		t.Run("should report on safe keyed writes", func(t *testing.T) {
			expectActionError(`a?.["a"] = 123`, "cannot be used in the assignment")(t)
		})

		t.Run("should recover on missing keys", func(t *testing.T) {
			checkActionWithError("a[] = 1", "a[] = 1", "Key access cannot be empty")(t)
		})

		t.Run("should recover on unterminated keys", func(t *testing.T) {
			checkActionWithError("a[1 + 2", "a[1 + 2]",
				"Missing expected ] at the end of the expression")(t)
		})
	})

	t.Run("conditional", func(t *testing.T) {
		t.Run("should parse ternary expressions", func(t *testing.T) {
			checkAction("7 == 3 + 4 ? 10 : 20")(t)
		})

		t.Run("should report incomplete ternary syntax", func(t *testing.T) {
			expectActionError("true?1", "Conditional expression true?1 requires all 3 expressions")(t)
		})
	})

	t.Run("should support chained statements", checkAction("a = 123; b = 234;"))

	t.Run("should error when using pipes", func(t *testing.T) {
		expectActionError("x|blah", "Cannot have a pipe")(t)
	})

	t.Run("should report when encountering interpolation", func(t *testing.T) {
		expectActionError("{{a()}}", "Got interpolation ({{}}) where expression was expected")(t)
	})

	t.Run("should not report interpolation inside a string", func(t *testing.T) {
		if errs := parseAction(`"{{a()}}"`).Errors; len(errs) != 0 {
			t.Errorf("Expected no errors, got %d", len(errs))
		}
		if errs := parseAction(`'{{a()}}'`).Errors; len(errs) != 0 {
			t.Errorf("Expected no errors, got %d", len(errs))
		}
	})

	t.Run("template literals", func(t *testing.T) {
		t.Run("should parse template literals without interpolations", func(t *testing.T) {
			checkAction("`hello world`")(t)
			checkAction("`foo $`")(t)
		})

		t.Run("should parse template literals with interpolations", func(t *testing.T) {
			checkAction("`hello ${name}`")(t)
			checkAction("`${a} - ${b} - ${c}`")(t)
			checkAction("`hello ${name}` + 123")(t)
		})

		t.Run("should parse pipes inside interpolations", func(t *testing.T) {
			checkBinding("`hello ${name | capitalize}!!!`", "`hello ${(name | capitalize)}!!!`")(t)
		})

		t.Run("should report empty interpolations", func(t *testing.T) {
			expectBindingError("`hello ${}`", "Template literal interpolation cannot be empty")(t)
		})

		t.Run("should parse tagged template literals", func(t *testing.T) {
			checkAction("tag`hello!`")(t)
			checkAction("tags.first`hello ${name}!`")(t)
			checkAction("tag!`hello!`")(t)
		})

		t.Run("should not mistake operator for tagged literal tag", func(t *testing.T) {
			checkAction("typeof `hello!`")(t)
		})
	})

	t.Run("regular expression literals", func(t *testing.T) {
		t.Run("should parse regular expression literals", func(t *testing.T) {
			checkBinding("/abc/")(t)
			checkBinding("/[a/]$/gi")(t)
			checkBinding(`/abc/.test("foo")`)(t)
		})

		t.Run("should report invalid flags", func(t *testing.T) {
			expectBindingError(`"foo".match(/abc/O)`, `Unsupported regular expression flag "O"`)(t)
		})

		t.Run("should report duplicated flags", func(t *testing.T) {
			expectBindingError(`"foo".match(/abc/gig)`, `Duplicate regular expression flag "g"`)(t)
		})
	})
}

func TestParseBinding(t *testing.T) {
	t.Run("should parse pipes", func(t *testing.T) {
		checkBinding("a(b | c)", "a((b | c))")(t)
		checkBinding("[1, 2, 3] | a", "([1, 2, 3] | a)")(t)
		checkBinding("a | b:c | d", "((a | b:c) | d)")(t)
		checkBinding("a | b:(c | d)", "(a | b:((c | d)))")(t)
	})

	t.Run("should parse incomplete pipes", func(t *testing.T) {
		cases := []struct {
			input  string
			output string
			err    string
		}{
			{"a | b | ", "((a | b) | )", "Unexpected end of input, expected identifier or keyword"},
			{"a | | b", "((a | ) | b)", "Unexpected token |, expected identifier or keyword"},
			{" | a | b", "(( | a) | b)", "Unexpected token |"},
			{"a | b | c: ", "((a | b) | c:)", "Unexpected end of expression"},
		}
		for _, tc := range cases {
			checkBinding(tc.input, tc.output)(t)
			expectBindingError(tc.input, tc.err)(t)
		}
	})

	t.Run("should span an incomplete pipe to the end of the input", func(t *testing.T) {
		binding := parseBinding("foo | ")
		pipe, ok := binding.AST.(*expr.BindingPipe)
		if !ok {
			t.Fatalf("Expected BindingPipe, got %T", binding.AST)
		}
		if pipe.SourceSpan().Start != 0 || pipe.SourceSpan().End != 6 {
			t.Errorf("Expected sourceSpan [0, 6], got [%d, %d]", pipe.SourceSpan().Start, pipe.SourceSpan().End)
		}
		if pipe.NameSpan.Start != 6 || pipe.NameSpan.End != 6 {
			t.Errorf("Expected nameSpan [6, 6], got [%d, %d]", pipe.NameSpan.Start, pipe.NameSpan.End)
		}
	})

	t.Run("should type pipes by reference kind", func(t *testing.T) {
		pipe := parseBinding("0 | Foo", true).AST.(*expr.BindingPipe)
		if pipe.Type != expr.ReferencedDirectly {
			t.Errorf("Expected ReferencedDirectly, got %v", pipe.Type)
		}
		pipe = parseBinding("0 | foo", true).AST.(*expr.BindingPipe)
		if pipe.Type != expr.ReferencedByName {
			t.Errorf("Expected ReferencedByName, got %v", pipe.Type)
		}
		pipe = parseBinding("0 | Foo", false).AST.(*expr.BindingPipe)
		if pipe.Type != expr.ReferencedByName {
			t.Errorf("Expected ReferencedByName, got %v", pipe.Type)
		}
	})

	t.Run("should only allow identifier or keyword as pipe names", func(t *testing.T) {
		expectBindingError(`"Foo"|(`, "identifier or keyword")(t)
		expectBindingError(`"Foo"|1234`, "identifier or keyword")(t)
	})

	t.Run("should store the source in the result", func(t *testing.T) {
		if ast := parseBinding("someExpr"); ast.Source != "someExpr" {
			t.Errorf("Expected source 'someExpr', got %q", ast.Source)
		}
	})

	t.Run("should report chain expressions", func(t *testing.T) {
		expectBindingError("1;2", "contain chained expression")(t)
	})

	t.Run("should report assignment", func(t *testing.T) {
		expectBindingError("a=2", "contain assignments")(t)
	})

	t.Run("should report when encountering interpolation", func(t *testing.T) {
		expectBindingError("{{a.b}}", "Got interpolation ({{}}) where expression was expected")(t)
	})

	t.Run("should parse conditional expression", checkBinding("a < b ? a : b"))

	t.Run("should mark shorthand map keys", func(t *testing.T) {
		ast := parseBinding("{bla}")
		m, ok := ast.AST.(*expr.LiteralMap)
		if !ok {
			t.Fatalf("Expected LiteralMap, got %T", ast.AST)
		}
		if !m.Keys[0].IsShorthandInitialized {
			t.Error("Expected shorthand key to be marked as initialized")
		}
	})
}

func TestParseSimpleBinding(t *testing.T) {
	t.Run("should parse a field access", func(t *testing.T) {
		ast := newParser(false).ParseSimpleBinding("name", "host", 0)
		if len(ast.Errors) != 0 {
			t.Fatalf("Expected no errors, got %d", len(ast.Errors))
		}
		if result := expr.Unparse(ast.AST); result != "name" {
			t.Errorf("Expected 'name', got %q", result)
		}
	})

	t.Run("should report pipes", func(t *testing.T) {
		ast := newParser(false).ParseSimpleBinding("a | b", "host", 0)
		expectError(t, ast, "Host binding expression cannot contain pipes")
	})
}

func TestParseInterpolation(t *testing.T) {
	t.Run("should return nil if no interpolation", func(t *testing.T) {
		if ast := newParser(false).ParseInterpolation("nothing", "interp", 0); ast != nil {
			t.Errorf("Expected nil, got %v", ast)
		}
	})

	t.Run("should parse no prefix/suffix interpolation", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation("{{a}}", "interp", 0)
		interpolation := ast.AST.(*expr.Interpolation)
		if got := interpolation.Strings; len(got) != 2 || got[0] != "" || got[1] != "" {
			t.Errorf("Expected two empty strings, got %v", got)
		}
		if len(interpolation.Expressions) != 1 {
			t.Fatalf("Expected 1 expression, got %d", len(interpolation.Expressions))
		}
		if result := expr.Unparse(interpolation.Expressions[0]); result != "a" {
			t.Errorf("Expected 'a', got %q", result)
		}
	})

	t.Run("should parse prefix/interpolation/suffix", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation("before {{ a }} middle {{ b }} after", "interp", 0)
		if result := expr.Unparse(ast.AST); result != "before {{ a }} middle {{ b }} after" {
			t.Errorf("Unexpected unparse result %q", result)
		}
	})

	t.Run("should report blank expressions", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation("{{ }}", "interp", 0)
		expectError(t, ast, "Blank expressions are not allowed in interpolated strings")
	})

	t.Run("should report comment-only expressions", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation("{{ // comment }}", "interp", 0)
		expectError(t, ast, "Interpolation expression cannot only contain a comment")
	})

	t.Run("should keep strings and expressions parallel for comment-only expressions", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation("a {{ // c }} b", "interp", 0)
		expectError(t, ast, "Interpolation expression cannot only contain a comment")
		interpolation := ast.AST.(*expr.Interpolation)
		if len(interpolation.Strings) != len(interpolation.Expressions)+1 {
			t.Fatalf("Expected %d expressions for %d strings, got %d",
				len(interpolation.Strings)-1, len(interpolation.Strings), len(interpolation.Expressions))
		}
		if _, ok := interpolation.Expressions[0].(*expr.EmptyExpr); !ok {
			t.Errorf("Expected an EmptyExpr placeholder, got %T", interpolation.Expressions[0])
		}
	})

	t.Run("should ignore interpolation markers inside quotes", func(t *testing.T) {
		ast := newParser(false).ParseInterpolation(`{{ "{{" }}`, "interp", 0)
		interpolation := ast.AST.(*expr.Interpolation)
		if len(interpolation.Expressions) != 1 {
			t.Fatalf("Expected 1 expression, got %d", len(interpolation.Expressions))
		}
		if result := expr.Unparse(interpolation.Expressions[0]); result != `"{{"` {
			t.Errorf("Expected quoted marker, got %q", result)
		}
	})

	t.Run("should support custom interpolation handled upstream", func(t *testing.T) {
		ast := newParser(false).ParseInterpolationExpression("a", "interp", 0)
		interpolation := ast.AST.(*expr.Interpolation)
		if len(interpolation.Strings) != 2 || len(interpolation.Expressions) != 1 {
			t.Errorf("Expected a single wrapped expression, got %d/%d",
				len(interpolation.Strings), len(interpolation.Expressions))
		}
	})
}

func TestParseTemplateBindings(t *testing.T) {
	parse := func(templateValue string) *expr.TemplateBindingParseResult {
		return newParser(false).ParseTemplateBindings("ngFor", templateValue, "micro", 0, 0)
	}

	keySources := func(result *expr.TemplateBindingParseResult) []string {
		var keys []string
		for _, b := range result.TemplateBindings {
			switch binding := b.(type) {
			case *expr.ExpressionBinding:
				keys = append(keys, binding.Key.Source)
			case *expr.VariableBinding:
				keys = append(keys, binding.Key.Source)
			}
		}
		return keys
	}

	t.Run("should parse a let binding with a directive keyword", func(t *testing.T) {
		result := parse("let item of items")
		if len(result.Errors) != 0 {
			t.Fatalf("Expected no errors, got %v", result.Errors)
		}
		got := keySources(result)
		want := []string{"ngFor", "item", "ngForOf"}
		if len(got) != len(want) {
			t.Fatalf("Expected keys %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Expected key %q at %d, got %q", want[i], i, got[i])
			}
		}
	})

	t.Run("should camel-case composed directive keys", func(t *testing.T) {
		result := parse("let item of items; trackBy: trackByFn")
		got := keySources(result)
		found := false
		for _, k := range got {
			if k == "ngForTrackBy" {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected composed key ngForTrackBy, got %v", got)
		}
	})

	t.Run("should bind the directive keyword expression", func(t *testing.T) {
		result := parse("let item of items")
		last := result.TemplateBindings[len(result.TemplateBindings)-1]
		binding, ok := last.(*expr.ExpressionBinding)
		if !ok {
			t.Fatalf("Expected ExpressionBinding, got %T", last)
		}
		if binding.Value == nil || binding.Value.Source != "items" {
			t.Errorf("Expected bound value 'items', got %v", binding.Value)
		}
	})

	t.Run("should parse as bindings", func(t *testing.T) {
		result := parse("let item of items | slice:0:1 as collection")
		var variable *expr.VariableBinding
		for _, b := range result.TemplateBindings {
			if v, ok := b.(*expr.VariableBinding); ok && v.Key.Source == "collection" {
				variable = v
			}
		}
		if variable == nil {
			t.Fatal("Expected a variable binding for 'collection'")
		}
		if variable.Value == nil || variable.Value.Source != "ngForOf" {
			t.Errorf("Expected value ngForOf, got %v", variable.Value)
		}
	})

	t.Run("should parse let bindings with initializers", func(t *testing.T) {
		result := parse("let item; let i = index")
		var value string
		for _, b := range result.TemplateBindings {
			if v, ok := b.(*expr.VariableBinding); ok && v.Key.Source == "i" && v.Value != nil {
				value = v.Value.Source
			}
		}
		if value != "index" {
			t.Errorf("Expected let initializer 'index', got %q", value)
		}
	})

	t.Run("should accept comma as a statement separator", func(t *testing.T) {
		result := parse("let item, of: items")
		if len(result.Errors) != 0 {
			t.Fatalf("Expected no errors, got %v", result.Errors)
		}
	})
}
