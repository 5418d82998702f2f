package ingest

import (
	"regexp"
	"strings"
)

var (
	reCodeFence   = regexp.MustCompile("(?s)```[^`]*```")
	reInlineCode  = regexp.MustCompile("`([^`]+)`")
	reImage       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	reLink        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBoldItalic  = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	reBlockquote  = regexp.MustCompile(`(?m)^>\s?`)
	reListMarker  = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)
	reHorizRule   = regexp.MustCompile(`(?m)^(\*{3,}|-{3,}|_{3,})\s*$`)
	reHTMLTag     = regexp.MustCompile(`<[^>]+>`)
	reMultiBlank  = regexp.MustCompile(`\n+`)
	reMultiSpace  = regexp.MustCompile(` +`)
)

// stripMarkdown renders markdown-ish markup down to plain text. It keeps
// the text of links, inline code and emphasis while dropping the markers,
// and removes fenced code blocks and images outright.
func stripMarkdown(content string) string {
	content = reCodeFence.ReplaceAllString(content, "")
	content = reImage.ReplaceAllString(content, "")
	content = reLink.ReplaceAllString(content, "$1")
	content = reInlineCode.ReplaceAllString(content, "$1")
	content = reHeading.ReplaceAllString(content, "")
	content = reBoldItalic.ReplaceAllString(content, "$2")
	content = reHorizRule.ReplaceAllString(content, "")
	content = reBlockquote.ReplaceAllString(content, "")
	content = reListMarker.ReplaceAllString(content, "")
	content = reHTMLTag.ReplaceAllString(content, "")
	return content
}

// normalizeText collapses repeated blank lines and repeated spaces and trims
// surrounding whitespace.
func normalizeText(text string) string {
	text = reMultiBlank.ReplaceAllString(text, "\n")
	text = reMultiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
