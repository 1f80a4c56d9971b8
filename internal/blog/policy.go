package blog

import (
	"net/http"
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"

	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
)

const maxTitleLength = 255

// cleanPost validates what an author submitted. Titles are trimmed, bodies are kept
// exactly as written.
func cleanPost(in PostInput) (PostInput, error) {
	var (
		details []blogerrs.Detail
		title   = strings.TrimSpace(in.Title)
	)

	switch {
	case title == "":
		details = append(details, blogerrs.Detail{Field: "title", Error: "is required"})
	case utf8.RuneCountInString(title) > maxTitleLength:
		details = append(details, blogerrs.Detail{Field: "title", Error: "must be at most 255 characters"})
	}
	if strings.TrimSpace(in.Body) == "" {
		details = append(details, blogerrs.Detail{Field: "body", Error: "is required"})
	}

	if len(details) > 0 {
		return PostInput{}, blogerrs.E(http.StatusUnprocessableEntity, "invalid post", details)
	}

	return PostInput{Title: title, Body: in.Body}, nil
}

// Precheck flags a draft for the author before it's submitted, like running a profanity
// check. Nothing is stored, and creating the post does not depend on it.
func Precheck(in PostInput) error {
	var details []blogerrs.Detail
	if goaway.IsProfane(in.Title) {
		details = append(details, blogerrs.Detail{Field: "title", Error: "contains profanity"})
	}
	if goaway.IsProfane(in.Body) {
		details = append(details, blogerrs.Detail{Field: "body", Error: "contains profanity"})
	}
	if len(details) > 0 {
		return blogerrs.E(http.StatusUnprocessableEntity, "profanity detected in post", details)
	}

	return nil
}
