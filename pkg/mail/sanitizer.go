package mail

import "github.com/microcosm-cc/bluemonday"

var sanitizePolicy = newSanitizePolicy()

// newSanitizePolicy builds the allow-list policy applied to every HTML
// body before it leaves the core. The mode is "keep content, drop
// markup": text inside a disallowed tag survives, the tag does not.
// Script and style contents are removed entirely.
func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "strong", "em", "u", "s", "a", "img",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"table", "thead", "tbody", "tr", "th", "td",
		"div", "span", "hr",
	)
	p.AllowAttrs(
		"href", "src", "alt", "title", "class", "id",
		"width", "height", "style", "target", "rel",
	).Globally()

	// Everything else, notably script-executing schemes, is stripped.
	p.AllowURLSchemes("http", "https", "ftp", "ftps", "mailto", "tel", "callto", "cid", "xmpp", "data")
	p.AllowRelativeURLs(true)
	p.SkipElementsContent("script", "style")

	return p
}

// Sanitize runs untrusted HTML through the allow-list policy.
func Sanitize(html string) string {
	return sanitizePolicy.Sanitize(html)
}
