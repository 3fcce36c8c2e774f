package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ngx-tools/template/pkg/expr"
)

func newExprCommand() *cobra.Command {
	var action bool
	var interpolation bool

	cmd := &cobra.Command{
		Use:   "expr <expression>",
		Short: "Parse a binding or action expression",
		Long: `Parse an expression and print its normalized form.

Bindings allow pipes but no assignments; actions allow assignments and
statement chains but no pipes.

Examples:
  ngtpl expr 'user.name | uppercase'
  ngtpl expr --action 'count = count + 1; save()'
  ngtpl expr --interpolation 'Hello {{ user.name }}!'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpr(cmd, args[0], action, interpolation)
		},
	}

	cmd.Flags().BoolVar(&action, "action", false, "parse as an action (event handler) expression")
	cmd.Flags().BoolVar(&interpolation, "interpolation", false, "parse as interpolated text")

	return cmd
}

func runExpr(cmd *cobra.Command, input string, action, interpolation bool) error {
	colorMode, _ := cmd.Flags().GetString("color")
	out := cmd.OutOrStdout()
	styles := NewStyles(IsColorEnabled(colorMode, out))

	parser := expr.NewParser(expr.NewLexer(), false)

	var result *expr.ASTWithSource
	switch {
	case action:
		result = parser.ParseAction(input, "expr", 0)
	case interpolation:
		result = parser.ParseInterpolation(input, "expr", 0)
		if result == nil {
			fmt.Fprintln(out, styles.Part.Render(input))
			return nil
		}
	default:
		result = parser.ParseBinding(input, "expr", 0)
	}

	if result.AST != nil {
		fmt.Fprintln(out, styles.Part.Render(expr.Unparse(result.AST)))
	}

	errOut := cmd.ErrOrStderr()
	for _, e := range result.Errors {
		fmt.Fprintln(errOut, styles.Issue.Render(e.Msg))
	}
	if len(result.Errors) > 0 {
		return ErrParseIssuesFound
	}
	return nil
}
