package lexer

import "github.com/ngx-tools/template/pkg/span"

// TokenType identifies the kind of a template token.
type TokenType int

const (
	TagOpenStart TokenType = iota
	TagOpenEnd
	TagOpenEndVoid
	TagClose
	IncompleteTagOpen
	Text
	EscapableRawText
	RawText
	Interpolation
	EncodedEntity
	CommentStart
	CommentEnd
	CdataStart
	CdataEnd
	AttrName
	AttrQuote
	AttrValueText
	AttrValueInterpolation
	DocType
	ExpansionFormStart
	ExpansionCaseValue
	ExpansionCaseExpStart
	ExpansionCaseExpEnd
	ExpansionFormEnd
	BlockOpenStart
	BlockOpenEnd
	BlockClose
	BlockParameter
	IncompleteBlockOpen
	LetStart
	LetValue
	LetEnd
	IncompleteLet
	ComponentOpenStart
	ComponentOpenEnd
	ComponentOpenEndVoid
	ComponentClose
	IncompleteComponentOpen
	DirectiveName
	DirectiveOpen
	DirectiveClose
	EOF
)

// tokenTypeNone marks the tokenizer as having no token in flight.
const tokenTypeNone TokenType = -1

var tokenTypeNames = [...]string{
	TagOpenStart:            "TAG_OPEN_START",
	TagOpenEnd:              "TAG_OPEN_END",
	TagOpenEndVoid:          "TAG_OPEN_END_VOID",
	TagClose:                "TAG_CLOSE",
	IncompleteTagOpen:       "INCOMPLETE_TAG_OPEN",
	Text:                    "TEXT",
	EscapableRawText:        "ESCAPABLE_RAW_TEXT",
	RawText:                 "RAW_TEXT",
	Interpolation:           "INTERPOLATION",
	EncodedEntity:           "ENCODED_ENTITY",
	CommentStart:            "COMMENT_START",
	CommentEnd:              "COMMENT_END",
	CdataStart:              "CDATA_START",
	CdataEnd:                "CDATA_END",
	AttrName:                "ATTR_NAME",
	AttrQuote:               "ATTR_QUOTE",
	AttrValueText:           "ATTR_VALUE_TEXT",
	AttrValueInterpolation:  "ATTR_VALUE_INTERPOLATION",
	DocType:                 "DOC_TYPE",
	ExpansionFormStart:      "EXPANSION_FORM_START",
	ExpansionCaseValue:      "EXPANSION_CASE_VALUE",
	ExpansionCaseExpStart:   "EXPANSION_CASE_EXP_START",
	ExpansionCaseExpEnd:     "EXPANSION_CASE_EXP_END",
	ExpansionFormEnd:        "EXPANSION_FORM_END",
	BlockOpenStart:          "BLOCK_OPEN_START",
	BlockOpenEnd:            "BLOCK_OPEN_END",
	BlockClose:              "BLOCK_CLOSE",
	BlockParameter:          "BLOCK_PARAMETER",
	IncompleteBlockOpen:     "INCOMPLETE_BLOCK_OPEN",
	LetStart:                "LET_START",
	LetValue:                "LET_VALUE",
	LetEnd:                  "LET_END",
	IncompleteLet:           "INCOMPLETE_LET",
	ComponentOpenStart:      "COMPONENT_OPEN_START",
	ComponentOpenEnd:        "COMPONENT_OPEN_END",
	ComponentOpenEndVoid:    "COMPONENT_OPEN_END_VOID",
	ComponentClose:          "COMPONENT_CLOSE",
	IncompleteComponentOpen: "INCOMPLETE_COMPONENT_OPEN",
	DirectiveName:           "DIRECTIVE_NAME",
	DirectiveOpen:           "DIRECTIVE_OPEN",
	DirectiveClose:          "DIRECTIVE_CLOSE",
	EOF:                     "EOF",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "UNKNOWN"
}

// Token is a single template token. The meaning of Parts depends on Type:
// tag tokens carry [prefix, name], text-like tokens carry [text],
// interpolations carry [startMarker, expression, endMarker?], encoded
// entities carry [decoded, encoded] and component tokens carry
// [componentName, prefix, tagName].
type Token struct {
	Type       TokenType
	Parts      []string
	SourceSpan *span.SourceSpan
}
