package publisher

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// RenderHTML converts a markdown article to sanitized HTML headed by its title.
func RenderHTML(title, markdown string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")
	if err := markdownEngine.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
