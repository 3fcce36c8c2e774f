package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCommand(BuildInfo{Version: "test", Commit: "none", Date: "unknown"})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "view.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTokensCommand(t *testing.T) {
	t.Run("tokenizes a file", func(t *testing.T) {
		path := writeTemplate(t, "<div>{{ title }}</div>")

		out, errOut, err := executeCommand(t, "tokens", path)
		require.NoError(t, err)
		assert.Empty(t, errOut)
		assert.Contains(t, out, "TAG_OPEN_START")
		assert.Contains(t, out, "INTERPOLATION")
		assert.Contains(t, out, "TAG_CLOSE")
		assert.Contains(t, out, "EOF")
	})

	t.Run("reads stdin when no file is given", func(t *testing.T) {
		root := NewRootCommand(BuildInfo{})
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetIn(bytes.NewBufferString("<br/>"))
		root.SetArgs([]string{"tokens"})

		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), "TAG_OPEN_START")
	})

	t.Run("reports lexical errors and exits non-zero", func(t *testing.T) {
		path := writeTemplate(t, "<!-x")

		_, errOut, err := executeCommand(t, "tokens", path)
		assert.ErrorIs(t, err, ErrParseIssuesFound)
		assert.Contains(t, errOut, "Unexpected character")
	})

	t.Run("spans flag includes start locations", func(t *testing.T) {
		path := writeTemplate(t, "<div></div>")

		out, _, err := executeCommand(t, "tokens", "--spans", path)
		require.NoError(t, err)
		assert.Contains(t, out, "@0:0")
	})

	t.Run("icu flag enables expansion forms", func(t *testing.T) {
		path := writeTemplate(t, "{n, plural, =0 {none}}")

		out, _, err := executeCommand(t, "tokens", "--icu", path)
		require.NoError(t, err)
		assert.Contains(t, out, "EXPANSION_FORM_START")
		assert.Contains(t, out, "EXPANSION_CASE_VALUE")
	})

	t.Run("config file sets tokenizer defaults", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("tokenizer:\n  expansionForms: true\n"), 0o644))
		templatePath := filepath.Join(dir, "view.html")
		require.NoError(t, os.WriteFile(templatePath, []byte("{n, plural, =0 {none}}"), 0o644))

		out, _, err := executeCommand(t, "tokens", "--config", configPath, templatePath)
		require.NoError(t, err)
		assert.Contains(t, out, "EXPANSION_FORM_START")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := executeCommand(t, "tokens", filepath.Join(t.TempDir(), "nope.html"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrParseIssuesFound)
	})
}

func TestExprCommand(t *testing.T) {
	t.Run("parses a binding", func(t *testing.T) {
		out, errOut, err := executeCommand(t, "expr", "a.b + 1")
		require.NoError(t, err)
		assert.Empty(t, errOut)
		assert.Contains(t, out, "a.b + 1")
	})

	t.Run("parses a pipe binding", func(t *testing.T) {
		out, _, err := executeCommand(t, "expr", "name | uppercase")
		require.NoError(t, err)
		assert.Contains(t, out, "uppercase")
	})

	t.Run("parses an action chain", func(t *testing.T) {
		out, _, err := executeCommand(t, "expr", "--action", "a = 1; b()")
		require.NoError(t, err)
		assert.Contains(t, out, "a = 1")
		assert.Contains(t, out, "b()")
	})

	t.Run("rejects pipes in actions", func(t *testing.T) {
		_, errOut, err := executeCommand(t, "expr", "--action", "a | b")
		assert.ErrorIs(t, err, ErrParseIssuesFound)
		assert.Contains(t, errOut, "Cannot have a pipe")
	})

	t.Run("parses interpolated text", func(t *testing.T) {
		out, _, err := executeCommand(t, "expr", "--interpolation", "Hello {{ user.name }}!")
		require.NoError(t, err)
		assert.Contains(t, out, "{{ user.name }}")
	})

	t.Run("reports recoverable parse errors", func(t *testing.T) {
		_, errOut, err := executeCommand(t, "expr", "a.")
		assert.ErrorIs(t, err, ErrParseIssuesFound)
		assert.Contains(t, errOut, "Parser Error")
	})
}

func TestVersionCommand(t *testing.T) {
	// The version command logs to os.Stdout; just check it runs clean.
	_, _, err := executeCommand(t, "version")
	require.NoError(t, err)
}

func TestIsColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, IsColorEnabled("always", &buf))
	assert.False(t, IsColorEnabled("never", &buf))
	assert.False(t, IsColorEnabled("auto", &buf), "non-file writers are never terminals")
}
