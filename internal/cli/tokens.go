package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ngx-tools/template/internal/configloader"
	"github.com/ngx-tools/template/internal/logging"
	"github.com/ngx-tools/template/pkg/lexer"
)

type tokensFlags struct {
	icu                 bool
	selectorless        bool
	preserveLineEndings bool
	escaped             bool
	spans               bool
}

func newTokensCommand() *cobra.Command {
	flags := &tokensFlags{}

	cmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Tokenize a template and print one token per line",
		Long: `Tokenize a template and print one token per line.

Reads from stdin when no file is given. Tokenizer options come from a
discovered .ngtpl.yaml (or --config) and can be overridden per run with
flags.

Examples:
  ngtpl tokens view.html          # Tokenize a file
  cat view.html | ngtpl tokens    # Tokenize stdin
  ngtpl tokens --icu view.html    # Enable ICU expansion forms
  ngtpl tokens --spans view.html  # Include source locations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.icu, "icu", false, "tokenize ICU expansion forms")
	cmd.Flags().BoolVar(&flags.selectorless, "selectorless", false, "enable selectorless component syntax")
	cmd.Flags().BoolVar(&flags.preserveLineEndings, "preserve-line-endings", false, "keep \\r\\n pairs in token text")
	cmd.Flags().BoolVar(&flags.escaped, "escaped", false, "decode backslash escape sequences in the input")
	cmd.Flags().BoolVar(&flags.spans, "spans", false, "print the start location of each token")

	return cmd
}

func runTokens(cmd *cobra.Command, args []string, flags *tokensFlags) error {
	logger := logging.Default()

	source, url, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	opts, err := resolveTokenizeOptions(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("icu") {
		opts.TokenizeExpansionForms = flags.icu
	}
	if cmd.Flags().Changed("selectorless") {
		opts.SelectorlessEnabled = flags.selectorless
	}
	if cmd.Flags().Changed("preserve-line-endings") {
		opts.PreserveLineEndings = flags.preserveLineEndings
	}
	if flags.escaped {
		opts.EscapedString = true
	}

	logger.Debug("tokenizing", "url", url, "bytes", len(source))
	result := lexer.Tokenize(source, url, opts)

	colorMode, _ := cmd.Flags().GetString("color")
	out := cmd.OutOrStdout()
	styles := NewStyles(IsColorEnabled(colorMode, out))

	for _, tok := range result.Tokens {
		fmt.Fprintln(out, formatToken(tok, flags.spans, styles))
	}

	errOut := cmd.ErrOrStderr()
	for _, e := range result.Errors {
		fmt.Fprintln(errOut, styles.Issue.Render(e.String()))
	}
	if len(result.Errors) > 0 {
		return ErrParseIssuesFound
	}
	return nil
}

func formatToken(tok *lexer.Token, withSpan bool, styles *Styles) string {
	var b strings.Builder
	b.WriteString(styles.TokenType.Render(tok.Type.String()))
	if len(tok.Parts) > 0 {
		quoted := make([]string, len(tok.Parts))
		for i, p := range tok.Parts {
			quoted[i] = strconv.Quote(p)
		}
		b.WriteString(" ")
		b.WriteString(styles.Part.Render(strings.Join(quoted, " ")))
	}
	if withSpan && tok.SourceSpan != nil && tok.SourceSpan.Start != nil {
		loc := fmt.Sprintf("@%d:%d", tok.SourceSpan.Start.Line, tok.SourceSpan.Start.Col)
		b.WriteString(" ")
		b.WriteString(styles.Span.Render(loc))
	}
	return b.String()
}

func resolveTokenizeOptions(cmd *cobra.Command) (lexer.Options, error) {
	configPath, _ := cmd.Flags().GetString("config")

	workDir, err := os.Getwd()
	if err != nil {
		return lexer.Options{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, loadedFrom, err := configloader.Resolve(configPath, workDir)
	if err != nil {
		return lexer.Options{}, err
	}
	if loadedFrom != "" {
		logging.Default().Debug("loaded config", "path", loadedFrom)
	}
	return cfg.TokenizeOptions(), nil
}

func readInput(cmd *cobra.Command, args []string) (source, url string, err error) {
	if len(args) == 1 && args[0] != "-" {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("read input: %w", err)
		}
		return string(content), args[0], nil
	}

	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return string(content), "stdin", nil
}
