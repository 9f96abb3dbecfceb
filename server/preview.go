package server

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// sanitizer strips anything an approval UI should not render: scripts, raw
// HTML, event handlers. Formatting and links survive.
var sanitizer = bluemonday.UGCPolicy()

// renderPreview converts a suspension's markdown preview into sanitized
// HTML. Parsers are single-use, so one is built per call; the policy is
// shared.
func renderPreview(md string) string {
	if md == "" {
		return ""
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	rendered := markdown.Render(doc, renderer)

	return string(sanitizer.SanitizeBytes(rendered))
}
