package application

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AI reviewers decorate their comments with badge markup, collapsed details
// blocks, and HTML comments that would dominate the text handed to an agent.
// sanitizeBody strips all of that down to the prose.

const (
	maxBodyLength    = 2000
	truncationMarker = "... [truncated]"
)

var (
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	detailsPattern     = regexp.MustCompile(`(?s)<details[^>]*>\s*<summary[^>]*>(.*?)</summary>.*?</details>`)
	blankLinesPattern  = regexp.MustCompile(`\n[ \t]*\n[ \t]*(\n[ \t]*)+`)

	// stripTags removes every remaining HTML element, keeping text content.
	stripTags = bluemonday.StrictPolicy()
)

// sanitizeBody cleans a raw comment body: HTML comments are removed entirely,
// <details> blocks collapse to "[details: <summary>]", remaining tags are
// stripped, runs of 3+ blank lines collapse to one blank line, and the result
// is truncated to maxBodyLength runes with a marker.
func sanitizeBody(body string) string {
	s := htmlCommentPattern.ReplaceAllString(body, "")
	s = detailsPattern.ReplaceAllString(s, "[details: $1]")
	s = stripTags.Sanitize(s)
	// bluemonday escapes entities in the surviving text; undo that so bodies
	// read as plain markdown.
	s = html.UnescapeString(s)
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return truncateRunes(s, maxBodyLength)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}

// snippet returns the first n runes of a body for compact triage output.
func snippet(body string, n int) string {
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	return string(runes[:n])
}
