package htmlutil

import (
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

var headRe = regexp.MustCompile(`(?is)<head.*?</head>`)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// PageText converts a full HTML document to plain text, dropping the head
// so styles and metadata do not leak into the output.
func PageText(doc string) string {
	return strings.TrimSpace(ToText(headRe.ReplaceAllString(doc, "")))
}
