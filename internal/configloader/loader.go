// Package configloader resolves tokenizer defaults from an on-disk
// .ngtpl.yaml file, searching upward from the working directory.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ngx-tools/template/pkg/lexer"
)

// DefaultConfigFile is the project config file name looked up by Discover.
const DefaultConfigFile = ".ngtpl.yaml"

// Config mirrors the .ngtpl.yaml layout. Pointer fields distinguish "not
// set" from an explicit false so absent keys keep the built-in defaults.
type Config struct {
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
}

// TokenizerConfig holds the tokenizer section of the config file.
type TokenizerConfig struct {
	ExpansionForms          *bool    `yaml:"expansionForms"`
	Blocks                  *bool    `yaml:"blocks"`
	Let                     *bool    `yaml:"let"`
	Selectorless            *bool    `yaml:"selectorless"`
	PreserveLineEndings     *bool    `yaml:"preserveLineEndings"`
	NormalizeIcuLineEndings *bool    `yaml:"normalizeIcuLineEndings"`
	LeadingTriviaChars      []string `yaml:"leadingTriviaChars"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Discover walks from dir toward the filesystem root looking for the
// default config file. An empty path means no config was found.
func Discover(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	for {
		candidate := filepath.Join(current, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// Resolve loads the explicit path when given, otherwise discovers a
// project config. A missing config yields the built-in defaults; the
// returned path is the file actually loaded, empty when none was.
func Resolve(explicitPath, workDir string) (*Config, string, error) {
	path := explicitPath
	if path == "" {
		discovered, err := Discover(workDir)
		if err != nil {
			return nil, "", err
		}
		path = discovered
	}
	if path == "" {
		return &Config{}, "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// TokenizeOptions maps the config onto tokenizer options, starting from
// the production defaults.
func (c *Config) TokenizeOptions() lexer.Options {
	opts := lexer.DefaultOptions()
	tc := c.Tokenizer

	if tc.ExpansionForms != nil {
		opts.TokenizeExpansionForms = *tc.ExpansionForms
	}
	if tc.Blocks != nil {
		opts.TokenizeBlocks = *tc.Blocks
	}
	if tc.Let != nil {
		opts.TokenizeLet = *tc.Let
	}
	if tc.Selectorless != nil {
		opts.SelectorlessEnabled = *tc.Selectorless
	}
	if tc.PreserveLineEndings != nil {
		opts.PreserveLineEndings = *tc.PreserveLineEndings
	}
	if tc.NormalizeIcuLineEndings != nil {
		opts.I18nNormalizeLineEndingsInICUs = *tc.NormalizeIcuLineEndings
	}
	if len(tc.LeadingTriviaChars) > 0 {
		opts.LeadingTriviaChars = tc.LeadingTriviaChars
	}
	return opts
}
