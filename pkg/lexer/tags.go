package lexer

import (
	"fmt"
	"strings"
)

// TagContentType describes how the content of an element is tokenized.
type TagContentType int

const (
	ContentRawText TagContentType = iota
	ContentEscapableRawText
	ContentParsableData
)

// TagDefinition describes the parsing rules of a known element.
type TagDefinition interface {
	ClosedByParent() bool
	ImplicitNamespacePrefix() *string
	IsVoid() bool
	IgnoreFirstLf() bool
	CanSelfClose() bool
	PreventNamespaceInheritance() bool
	IsClosedByChild(name string) bool
	GetContentType(prefix *string) TagContentType
}

// SplitNsName splits a ":namespace:name" element name into its namespace
// and local parts. Names without the leading colon have no namespace.
func SplitNsName(elementName string, fatal bool) (string, string) {
	if elementName == "" || elementName[0] != ':' {
		return "", elementName
	}
	colon := strings.Index(elementName[1:], ":")
	if colon == -1 {
		if fatal {
			panic(fmt.Sprintf("Unsupported format %q expecting \":namespace:name\"", elementName))
		}
		return "", elementName
	}
	return elementName[1 : colon+1], elementName[colon+2:]
}

func IsNgContainer(tagName string) bool {
	_, name := SplitNsName(tagName, false)
	return name == "ng-container"
}

func IsNgContent(tagName string) bool {
	_, name := SplitNsName(tagName, false)
	return name == "ng-content"
}

func IsNgTemplate(tagName string) bool {
	_, name := SplitNsName(tagName, false)
	return name == "ng-template"
}

// GetNsPrefix returns the namespace prefix of a full element name, or nil
// when the name itself is nil.
func GetNsPrefix(fullName *string) *string {
	if fullName == nil {
		return nil
	}
	prefix, _ := SplitNsName(*fullName, false)
	return &prefix
}

// MergeNsAndName joins a prefix and a local name back into the
// ":namespace:name" form.
func MergeNsAndName(prefix, localName string) string {
	if prefix != "" {
		return ":" + prefix + ":" + localName
	}
	return localName
}
