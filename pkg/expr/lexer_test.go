package expr_test

import (
	"strings"
	"testing"

	"github.com/ngx-tools/template/pkg/expr"
)

func lex(text string) []*expr.Token {
	return expr.NewLexer().Tokenize(text)
}

func expectToken(t *testing.T, token *expr.Token, index, end int) {
	t.Helper()
	if token == nil {
		t.Fatal("Expected token, got nil")
	}
	if token.Index != index {
		t.Errorf("Expected token.Index = %d, got %d", index, token.Index)
	}
	if token.End != end {
		t.Errorf("Expected token.End = %d, got %d", end, token.End)
	}
}

func expectCharacterToken(t *testing.T, token *expr.Token, index, end int, character string) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsCharacter(int(character[0])) {
		t.Errorf("Expected character token %q, got %q", character, token.String())
	}
}

func expectOperatorToken(t *testing.T, token *expr.Token, index, end int, operator string) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsOperator(operator) {
		t.Errorf("Expected operator token %q, got %q", operator, token.String())
	}
}

func expectNumberToken(t *testing.T, token *expr.Token, index, end int, n float64) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsNumber() {
		t.Errorf("Expected number token, got type %v", token.Type)
	}
	if token.ToNumber() != n {
		t.Errorf("Expected number %v, got %v", n, token.ToNumber())
	}
}

func expectStringToken(t *testing.T, token *expr.Token, index, end int, str string, kind expr.StringTokenKind) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsString() {
		t.Errorf("Expected string token, got type %v", token.Type)
	}
	if token.StringKind != kind {
		t.Errorf("Expected string kind %v, got %v", kind, token.StringKind)
	}
	if token.String() != str {
		t.Errorf("Expected string %q, got %q", str, token.String())
	}
}

func expectIdentifierToken(t *testing.T, token *expr.Token, index, end int, identifier string) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsIdentifier() {
		t.Errorf("Expected identifier token, got type %v", token.Type)
	}
	if token.String() != identifier {
		t.Errorf("Expected identifier %q, got %q", identifier, token.String())
	}
}

func expectKeywordToken(t *testing.T, token *expr.Token, index, end int, keyword string) {
	t.Helper()
	expectToken(t, token, index, end)
	if !token.IsKeyword() {
		t.Errorf("Expected keyword token, got type %v", token.Type)
	}
	if token.String() != keyword {
		t.Errorf("Expected keyword %q, got %q", keyword, token.String())
	}
}

func expectErrorToken(t *testing.T, token *expr.Token, message string) {
	t.Helper()
	if !token.IsError() {
		t.Fatalf("Expected error token, got type %v", token.Type)
	}
	if !strings.Contains(token.String(), message) {
		t.Errorf("Expected error containing %q, got %q", message, token.String())
	}
}

func expectTokenCount(t *testing.T, tokens []*expr.Token, n int) {
	t.Helper()
	if len(tokens) != n {
		t.Fatalf("Expected %d tokens, got %d", n, len(tokens))
	}
}

func TestLexer(t *testing.T) {
	t.Run("should tokenize a simple identifier", func(t *testing.T) {
		tokens := lex("j")
		expectTokenCount(t, tokens, 1)
		expectIdentifierToken(t, tokens[0], 0, 1, "j")
	})

	t.Run("should tokenize this as a keyword", func(t *testing.T) {
		tokens := lex("this")
		expectTokenCount(t, tokens, 1)
		expectKeywordToken(t, tokens[0], 0, 4, "this")
	})

	t.Run("should tokenize a dotted identifier", func(t *testing.T) {
		tokens := lex("j.k")
		expectTokenCount(t, tokens, 3)
		expectIdentifierToken(t, tokens[0], 0, 1, "j")
		expectCharacterToken(t, tokens[1], 1, 2, ".")
		expectIdentifierToken(t, tokens[2], 2, 3, "k")
	})

	t.Run("should tokenize a private identifier", func(t *testing.T) {
		tokens := lex("#a")
		expectTokenCount(t, tokens, 1)
		expectToken(t, tokens[0], 0, 2)
		if !tokens[0].IsPrivateIdentifier() {
			t.Errorf("Expected private identifier, got type %v", tokens[0].Type)
		}
	})

	t.Run("should reject a bare hash", func(t *testing.T) {
		tokens := lex("#")
		expectTokenCount(t, tokens, 1)
		expectErrorToken(t, tokens[0], "Invalid character [#]")
	})

	t.Run("should tokenize operators", func(t *testing.T) {
		tokens := lex("j-k")
		expectTokenCount(t, tokens, 3)
		expectOperatorToken(t, tokens[1], 1, 2, "-")
	})

	t.Run("should tokenize compound operators", func(t *testing.T) {
		tokens := lex("a === b !== c")
		expectTokenCount(t, tokens, 5)
		expectOperatorToken(t, tokens[1], 2, 5, "===")
		expectOperatorToken(t, tokens[3], 8, 11, "!==")
	})

	t.Run("should tokenize logical assignment operators", func(t *testing.T) {
		tokens := lex("a &&= b ||= c ??= d")
		expectTokenCount(t, tokens, 7)
		expectOperatorToken(t, tokens[1], 2, 5, "&&=")
		expectOperatorToken(t, tokens[3], 8, 11, "||=")
		expectOperatorToken(t, tokens[5], 14, 17, "??=")
	})

	t.Run("should tokenize exponentiation operators", func(t *testing.T) {
		tokens := lex("a ** b **= c")
		expectTokenCount(t, tokens, 5)
		expectOperatorToken(t, tokens[1], 2, 4, "**")
		expectOperatorToken(t, tokens[3], 7, 10, "**=")
	})

	t.Run("should tokenize the safe navigation operator", func(t *testing.T) {
		tokens := lex("a?.b")
		expectTokenCount(t, tokens, 3)
		expectOperatorToken(t, tokens[1], 1, 3, "?.")
	})

	t.Run("should tokenize number literals", func(t *testing.T) {
		tokens := lex("10")
		expectTokenCount(t, tokens, 1)
		expectNumberToken(t, tokens[0], 0, 2, 10)

		tokens = lex("12.3")
		expectNumberToken(t, tokens[0], 0, 4, 12.3)

		tokens = lex(".5")
		expectNumberToken(t, tokens[0], 0, 2, 0.5)

		tokens = lex("1e2")
		expectNumberToken(t, tokens[0], 0, 3, 100)

		tokens = lex("1e-2")
		expectNumberToken(t, tokens[0], 0, 4, 0.01)
	})

	t.Run("should tokenize numbers with separators", func(t *testing.T) {
		tokens := lex("1_000_000")
		expectTokenCount(t, tokens, 1)
		expectNumberToken(t, tokens[0], 0, 9, 1000000)
	})

	t.Run("should reject invalid numeric separators", func(t *testing.T) {
		tokens := lex("1_")
		expectErrorToken(t, tokens[0], "Invalid numeric separator")

		tokens = lex("1__0")
		expectErrorToken(t, tokens[0], "Invalid numeric separator")
	})

	t.Run("should reject invalid exponents", func(t *testing.T) {
		tokens := lex("1e")
		expectErrorToken(t, tokens[0], "Invalid exponent")
	})

	t.Run("should tokenize simple quoted strings", func(t *testing.T) {
		tokens := lex(`"a"`)
		expectTokenCount(t, tokens, 1)
		expectStringToken(t, tokens[0], 0, 3, "a", expr.StringPlain)

		tokens = lex("'a'")
		expectStringToken(t, tokens[0], 0, 3, "a", expr.StringPlain)
	})

	t.Run("should decode escape sequences in strings", func(t *testing.T) {
		tokens := lex(`"a\"b"`)
		expectStringToken(t, tokens[0], 0, 6, `a"b`, expr.StringPlain)

		tokens = lex(`"a\nb"`)
		expectStringToken(t, tokens[0], 0, 6, "a\nb", expr.StringPlain)

		tokens = lex(`"\u0041"`)
		expectStringToken(t, tokens[0], 0, 8, "A", expr.StringPlain)
	})

	t.Run("should reject malformed unicode escapes", func(t *testing.T) {
		tokens := lex(`"\u00G0"`)
		expectErrorToken(t, tokens[0], "Invalid unicode escape [\\u00G0]")
	})

	t.Run("should reject unterminated strings", func(t *testing.T) {
		tokens := lex("'abc")
		expectErrorToken(t, tokens[0], "Unterminated quote")
	})

	t.Run("should tokenize template literals without interpolations", func(t *testing.T) {
		tokens := lex("`hello`")
		expectTokenCount(t, tokens, 1)
		expectStringToken(t, tokens[0], 0, 7, "hello", expr.StringTemplateLiteralEnd)
	})

	t.Run("should tokenize template literals with interpolations", func(t *testing.T) {
		tokens := lex("`a ${b} c`")
		expectTokenCount(t, tokens, 5)
		expectStringToken(t, tokens[0], 0, 3, "a ", expr.StringTemplateLiteralPart)
		expectOperatorToken(t, tokens[1], 3, 5, "${")
		expectIdentifierToken(t, tokens[2], 5, 6, "b")
		expectCharacterToken(t, tokens[3], 6, 7, "}")
		expectStringToken(t, tokens[4], 7, 10, " c", expr.StringTemplateLiteralEnd)
	})

	t.Run("should keep plain braces distinct from interpolation ends", func(t *testing.T) {
		tokens := lex("`a ${{b: 1}} c`")
		if !tokens[len(tokens)-1].IsTemplateLiteralEnd() {
			t.Errorf("Expected final token to end the template literal, got %q", tokens[len(tokens)-1].String())
		}
	})

	t.Run("should reject unterminated template literals", func(t *testing.T) {
		tokens := lex("`abc")
		expectErrorToken(t, tokens[0], "Unterminated template literal")
	})

	t.Run("should tokenize a regular expression literal", func(t *testing.T) {
		tokens := lex("/ab/")
		expectTokenCount(t, tokens, 1)
		expectToken(t, tokens[0], 0, 4)
		if !tokens[0].IsRegExpBody() || tokens[0].String() != "ab" {
			t.Errorf("Expected regexp body 'ab', got %q", tokens[0].String())
		}
	})

	t.Run("should tokenize regular expression flags", func(t *testing.T) {
		tokens := lex("/ab/gi")
		expectTokenCount(t, tokens, 2)
		if !tokens[1].IsRegExpFlags() || tokens[1].String() != "gi" {
			t.Errorf("Expected regexp flags 'gi', got %q", tokens[1].String())
		}
	})

	t.Run("should keep a slash in a character class inside the body", func(t *testing.T) {
		tokens := lex("/[a/]$/")
		expectTokenCount(t, tokens, 1)
		if tokens[0].String() != "[a/]$" {
			t.Errorf("Expected body '[a/]$', got %q", tokens[0].String())
		}
	})

	t.Run("should treat a slash after an identifier as division", func(t *testing.T) {
		tokens := lex("a / b")
		expectTokenCount(t, tokens, 3)
		expectOperatorToken(t, tokens[1], 2, 3, "/")
	})

	t.Run("should allow a regex after an operator", func(t *testing.T) {
		tokens := lex("a = /b/")
		expectTokenCount(t, tokens, 3)
		if !tokens[2].IsRegExpBody() {
			t.Errorf("Expected regexp body, got type %v", tokens[2].Type)
		}
	})

	t.Run("should distinguish negation from non-null assertion before a slash", func(t *testing.T) {
		// `!` after an identifier asserts non-null, so the slash divides.
		tokens := lex("a! / b")
		expectOperatorToken(t, tokens[2], 3, 4, "/")

		// `!` at the start negates, so the slash opens a regex.
		tokens = lex("!/b/.test(c)")
		if !tokens[1].IsRegExpBody() {
			t.Errorf("Expected regexp body, got type %v", tokens[1].Type)
		}
	})

	t.Run("should reject unterminated regular expressions", func(t *testing.T) {
		tokens := lex("(/ab")
		expectErrorToken(t, tokens[1], "Unterminated regular expression")
	})

	t.Run("should tokenize keywords", func(t *testing.T) {
		tokens := lex("let as null undefined typeof void in")
		expectTokenCount(t, tokens, 7)
		for _, tok := range tokens {
			if !tok.IsKeyword() {
				t.Errorf("Expected keyword, got %q of type %v", tok.String(), tok.Type)
			}
		}
	})

	t.Run("should skip whitespace", func(t *testing.T) {
		tokens := lex(" \t\n a   b ")
		expectTokenCount(t, tokens, 2)
		expectIdentifierToken(t, tokens[0], 4, 5, "a")
	})

	t.Run("should report unexpected characters", func(t *testing.T) {
		tokens := lex("@")
		expectErrorToken(t, tokens[0], "Unexpected character [@]")
	})
}
