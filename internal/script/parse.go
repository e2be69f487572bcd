package script

import (
	"errors"
	"regexp"
	"strings"
)

// Segment is a contiguous run of text attributed to one speaker. Segments are
// immutable once produced; their order is the narrative order and is preserved
// through grouping and reassembly.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ErrNoSegments is returned when the input contains no recognized voice tags
// (or every tagged span normalizes to empty text).
var ErrNoSegments = errors.New("no valid voice tags")

// tagPattern matches speaker tags of the form {{@Name}}. Whether a match acts
// as a segment boundary depends on Name being in the catalog; unknown names
// stay in the surrounding text untouched.
var tagPattern = regexp.MustCompile(`\{\{@([A-Za-z0-9_]+)\}\}`)

// Parse scans annotated text into ordered speaker segments. Text before the
// first recognized tag has no speaker and is discarded. A recognized tag always
// closes the previous segment, even when the speaker repeats.
func Parse(text string) ([]Segment, error) {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)

	type boundary struct {
		speaker string
		start   int // index just past the tag
		end     int // start of the next recognized tag, or len(text)
	}

	var bounds []boundary
	for _, m := range matches {
		name := text[m[2]:m[3]]
		if !KnownVoice(name) {
			continue
		}
		if n := len(bounds); n > 0 {
			bounds[n-1].end = m[0]
		}
		bounds = append(bounds, boundary{speaker: name, start: m[1], end: len(text)})
	}

	var segments []Segment
	for _, b := range bounds {
		normalized := normalizeWhitespace(text[b.start:b.end])
		if normalized == "" {
			continue
		}
		segments = append(segments, Segment{Speaker: b.speaker, Text: normalized})
	}

	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	return segments, nil
}

// normalizeWhitespace collapses whitespace runs to a single space and trims
// the ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
