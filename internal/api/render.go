package api

import (
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sym01/htmlsanitizer"
)

const summaryLength = 200

var stripPolicy = bluemonday.StrictPolicy()

// Renders a stored body into html that's safe to drop into a page. Posts are stored
// as their author wrote them, this only shapes the response.
func bodyHTML(body string) string {
	contents, err := htmlsanitizer.NewHTMLSanitizer().SanitizeString(body)
	if err != nil {
		slog.Error("error sanitizing post body", "error", err)
		return html.EscapeString(body)
	}

	return contents
}

// A plain text preview of a body for feed listings.
func summary(body string) string {
	text := strings.Join(strings.Fields(html.UnescapeString(stripPolicy.Sanitize(body))), " ")
	if utf8.RuneCountInString(text) <= summaryLength {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:summaryLength])) + "…"
}
