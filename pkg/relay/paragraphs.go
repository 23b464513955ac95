package relay

import (
	"regexp"
	"strings"
)

// EndMarker closes an utterance in the broadcaster's buffer. It is never
// shown to listeners.
const EndMarker = "[[END]]"

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits text on blank lines, drops the end marker and any
// segment left empty.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, EndMarker, "")

	paragraphs := []string{}
	for _, segment := range paragraphBreak.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			paragraphs = append(paragraphs, segment)
		}
	}
	return paragraphs
}
