package receipt

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// EmailText flattens a raw RFC 5322 message into one text blob for pattern
// matching: every text/plain and text/html part is decoded using its declared
// charset (go-message replaces undecodable bytes) and the results are joined
// with newlines in part order. A part that cannot be decoded is skipped, it
// never aborts the message.
func EmailText(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return ""
	}

	var parts []string
	collectText(entity, &parts)
	return strings.Join(parts, "\n")
}

func collectText(e *message.Entity, parts *[]string) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil && !message.IsUnknownCharset(err) {
				return
			}
			if part == nil {
				return
			}
			collectText(part, parts)
		}
	}

	ctype, _, err := e.Header.ContentType()
	if err != nil {
		return
	}
	if ctype != "text/plain" && ctype != "text/html" {
		return
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return
	}
	*parts = append(*parts, string(body))
}

var (
	styleBlockPattern = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes markup but keeps text content. Style blocks go first so
// CSS text does not leak into the output, then remaining tags become single
// spaces, whitespace runs collapse, and entities are unescaped last so
// multi-character entities survive tag stripping intact.
func StripHTML(s string) string {
	s = styleBlockPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}
