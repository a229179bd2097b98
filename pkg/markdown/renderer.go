// Package markdown renders the bridge's embedded documentation to HTML.
package markdown

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// RenderToHTML converts markdown text to sanitized HTML. blackfriday does
// the parsing, bluemonday strips anything unsafe afterwards, so the result
// can be embedded into a page directly.
func RenderToHTML(markdown string) string {
	unsafeHTML := blackfriday.Run(
		[]byte(markdown),
		blackfriday.WithExtensions(
			blackfriday.CommonExtensions|blackfriday.AutoHeadingIDs,
		),
	)

	policy := bluemonday.UGCPolicy()
	// Fenced code blocks carry a language class; headings carry anchor ids.
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	policy.AllowAttrs("id").Matching(bluemonday.SpaceSeparatedTokens).OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	return string(policy.SanitizeBytes(unsafeHTML))
}
