package lexer

import (
	"strings"
	"sync"
)

// HtmlTagDefinition is the TagDefinition used for HTML elements.
type HtmlTagDefinition struct {
	closedByChildren            map[string]bool
	contentType                 TagContentType
	contentTypeByPrefix         map[string]TagContentType
	closedByParent              bool
	implicitNamespacePrefix     *string
	isVoid                      bool
	ignoreFirstLf               bool
	canSelfClose                bool
	preventNamespaceInheritance bool
}

type htmlTagOptions struct {
	closedByChildren            []string
	closedByParent              bool
	implicitNamespacePrefix     string
	contentType                 TagContentType
	contentTypeByPrefix         map[string]TagContentType
	isVoid                      bool
	ignoreFirstLf               bool
	preventNamespaceInheritance bool
	canSelfClose                *bool
}

func newHtmlTagDefinition(opts htmlTagOptions) *HtmlTagDefinition {
	closedByChildren := make(map[string]bool, len(opts.closedByChildren))
	for _, tagName := range opts.closedByChildren {
		closedByChildren[tagName] = true
	}

	canSelfClose := opts.isVoid
	if opts.canSelfClose != nil {
		canSelfClose = *opts.canSelfClose
	}

	var nsPrefix *string
	if opts.implicitNamespacePrefix != "" {
		prefix := opts.implicitNamespacePrefix
		nsPrefix = &prefix
	}

	return &HtmlTagDefinition{
		closedByChildren:            closedByChildren,
		contentType:                 opts.contentType,
		contentTypeByPrefix:         opts.contentTypeByPrefix,
		closedByParent:              opts.closedByParent || opts.isVoid,
		implicitNamespacePrefix:     nsPrefix,
		isVoid:                      opts.isVoid,
		ignoreFirstLf:               opts.ignoreFirstLf,
		canSelfClose:                canSelfClose,
		preventNamespaceInheritance: opts.preventNamespaceInheritance,
	}
}

func (h *HtmlTagDefinition) ClosedByParent() bool              { return h.closedByParent }
func (h *HtmlTagDefinition) ImplicitNamespacePrefix() *string  { return h.implicitNamespacePrefix }
func (h *HtmlTagDefinition) IsVoid() bool                      { return h.isVoid }
func (h *HtmlTagDefinition) IgnoreFirstLf() bool               { return h.ignoreFirstLf }
func (h *HtmlTagDefinition) CanSelfClose() bool                { return h.canSelfClose }
func (h *HtmlTagDefinition) PreventNamespaceInheritance() bool { return h.preventNamespaceInheritance }

func (h *HtmlTagDefinition) IsClosedByChild(name string) bool {
	return h.isVoid || h.closedByChildren[strings.ToLower(name)]
}

func (h *HtmlTagDefinition) GetContentType(prefix *string) TagContentType {
	if h.contentTypeByPrefix != nil {
		if prefix != nil {
			if override, ok := h.contentTypeByPrefix[*prefix]; ok {
				return override
			}
		}
		if def, ok := h.contentTypeByPrefix["default"]; ok {
			return def
		}
	}
	return h.contentType
}

var (
	tagDefinitionsOnce   sync.Once
	defaultTagDefinition *HtmlTagDefinition
	tagDefinitions       map[string]*HtmlTagDefinition
)

// GetHtmlTagDefinition returns the definition for an HTML tag name,
// falling back to a permissive default for unknown elements.
func GetHtmlTagDefinition(tagName string) TagDefinition {
	tagDefinitionsOnce.Do(initHtmlTagDefinitions)

	if def, ok := tagDefinitions[tagName]; ok {
		return def
	}
	if def, ok := tagDefinitions[strings.ToLower(tagName)]; ok {
		return def
	}
	return defaultTagDefinition
}

func initHtmlTagDefinitions() {
	yes := true
	no := false

	defaultTagDefinition = newHtmlTagDefinition(htmlTagOptions{
		contentType:  ContentParsableData,
		canSelfClose: &yes,
	})

	tagDefinitions = make(map[string]*HtmlTagDefinition)
	add := func(def *HtmlTagDefinition, names ...string) {
		for _, name := range names {
			tagDefinitions[name] = def
		}
	}

	add(newHtmlTagDefinition(htmlTagOptions{isVoid: true, contentType: ContentParsableData}),
		"base", "meta", "area", "embed", "link", "img", "input", "param",
		"hr", "br", "source", "track", "wbr", "col")

	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{
			"address", "article", "aside", "blockquote", "div", "dl", "fieldset",
			"footer", "form", "h1", "h2", "h3", "h4", "h5", "h6", "header",
			"hgroup", "hr", "main", "nav", "ol", "p", "pre", "section", "table", "ul",
		},
		closedByParent: true,
		contentType:    ContentParsableData,
	}), "p")

	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"tbody", "tfoot"}, contentType: ContentParsableData,
	}), "thead")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"tbody", "tfoot"}, closedByParent: true, contentType: ContentParsableData,
	}), "tbody")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"tbody"}, closedByParent: true, contentType: ContentParsableData,
	}), "tfoot")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"tr"}, closedByParent: true, contentType: ContentParsableData,
	}), "tr")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"td", "th"}, closedByParent: true, contentType: ContentParsableData,
	}), "td", "th")

	add(newHtmlTagDefinition(htmlTagOptions{
		implicitNamespacePrefix: "svg", contentType: ContentParsableData,
	}), "svg")
	add(newHtmlTagDefinition(htmlTagOptions{
		implicitNamespacePrefix:     "svg",
		preventNamespaceInheritance: true,
		contentType:                 ContentParsableData,
	}), "foreignObject")
	add(newHtmlTagDefinition(htmlTagOptions{
		implicitNamespacePrefix: "math", contentType: ContentParsableData,
	}), "math")

	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"li"}, closedByParent: true, contentType: ContentParsableData,
	}), "li")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"dt", "dd"}, contentType: ContentParsableData,
	}), "dt")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"dt", "dd"}, closedByParent: true, contentType: ContentParsableData,
	}), "dd")

	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"rb", "rt", "rtc", "rp"}, closedByParent: true, contentType: ContentParsableData,
	}), "rb", "rt", "rp")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"rb", "rtc", "rp"}, closedByParent: true, contentType: ContentParsableData,
	}), "rtc")

	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"optgroup"}, closedByParent: true, contentType: ContentParsableData,
	}), "optgroup")
	add(newHtmlTagDefinition(htmlTagOptions{
		closedByChildren: []string{"option", "optgroup"}, closedByParent: true, contentType: ContentParsableData,
	}), "option")

	add(newHtmlTagDefinition(htmlTagOptions{
		ignoreFirstLf: true, contentType: ContentParsableData,
	}), "pre", "listing")
	add(newHtmlTagDefinition(htmlTagOptions{contentType: ContentRawText}), "style", "script")
	add(newHtmlTagDefinition(htmlTagOptions{
		contentTypeByPrefix: map[string]TagContentType{
			"default": ContentEscapableRawText,
			"svg":     ContentParsableData,
		},
	}), "title")
	add(newHtmlTagDefinition(htmlTagOptions{
		contentType:   ContentEscapableRawText,
		ignoreFirstLf: true,
	}), "textarea")

	// Standard HTML elements never self-close.
	standard := newHtmlTagDefinition(htmlTagOptions{contentType: ContentParsableData, canSelfClose: &no})
	for _, tag := range []string{
		"a", "abbr", "address", "article", "aside", "b", "bdi", "bdo", "blockquote",
		"body", "button", "canvas", "caption", "cite", "code", "colgroup", "data",
		"datalist", "del", "details", "dfn", "dialog", "div", "dl", "em", "fieldset",
		"figcaption", "figure", "footer", "form", "h1", "h2", "h3", "h4", "h5", "h6",
		"head", "header", "hgroup", "html", "i", "iframe", "ins", "kbd", "label",
		"legend", "main", "map", "mark", "menu", "meter", "nav", "noscript", "object",
		"ol", "output", "progress", "q", "s", "samp", "section", "small", "span",
		"strong", "sub", "summary", "sup", "table", "time", "u", "ul", "var", "video",
	} {
		if _, exists := tagDefinitions[tag]; !exists {
			tagDefinitions[tag] = standard
		}
	}
}
