package lexer

import "github.com/ngx-tools/template/pkg/span"

// TokenizeWithBudget runs the tokenizer with a fixed iteration ceiling so
// liveness tests can trigger the guard on short inputs.
func TokenizeWithBudget(source, url string, opts Options, budget int) *TokenizeResult {
	file := span.NewSourceFile(source, url)
	t := newTokenizer(file, opts)
	t.budget = budget
	t.tokenize()
	return &TokenizeResult{
		Tokens:                      mergeTextTokens(t.tokens),
		Errors:                      t.errors,
		NonNormalizedIcuExpressions: t.nonNormalizedIcuExpressions,
	}
}

// MergeTextTokens exposes the text-merge post-pass.
var MergeTextTokens = mergeTextTokens
