package session

import "strings"

// MarkerKeyword opens a suggestions marker. Matching is ASCII case
// insensitive; the marker runs to the next ']'.
const MarkerKeyword = "[SUGGESTIONS:"

// Sanitized is the display-safe form of an accumulated answer.
type Sanitized struct {
	Text        string
	Suggestions []string
}

type markerState int

const (
	// markerNone also covers a partially matched keyword; matched > 0 then.
	markerNone markerState = iota
	markerOpen
)

// Sanitize strips suggestion markers from buf. Complete markers are removed
// and their '|' separated payload returned; an unclosed marker hides the rest
// of buf; a trailing prefix of the keyword is held back so it never shows up
// mid stream. Whitespace left in front of a hidden marker is trimmed.
//
// The keyword contains a single '[' at its start, so a mismatch can restart
// matching at the mismatching byte without losing an overlapping match.
func Sanitize(buf string) Sanitized {
	var (
		out      strings.Builder
		payload  strings.Builder
		items    []string
		state    = markerNone
		matched  int
		heldFrom int
	)

	out.Grow(len(buf))

	for i := 0; i < len(buf); i++ {
		c := buf[i]

		if state == markerOpen {
			if c == ']' {
				items = splitSuggestions(payload.String())
				payload.Reset()
				state = markerNone
				continue
			}
			payload.WriteByte(c)
			continue
		}

		if matched > 0 && lower(c) != lower(MarkerKeyword[matched]) {
			out.WriteString(buf[heldFrom:i])
			matched = 0
		}

		if lower(c) == lower(MarkerKeyword[matched]) {
			if matched == 0 {
				heldFrom = i
			}
			matched++
			if matched == len(MarkerKeyword) {
				trimTrailingSpace(&out)
				state = markerOpen
				matched = 0
			}
			continue
		}

		out.WriteByte(c)
	}

	if matched > 0 {
		trimTrailingSpace(&out)
	}

	return Sanitized{
		Text:        out.String(),
		Suggestions: items,
	}
}

func splitSuggestions(payload string) []string {
	var items []string
	for _, part := range strings.Split(payload, "|") {
		if s := strings.TrimSpace(part); s != "" {
			items = append(items, s)
		}
	}
	return items
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRight(s, " \t\r\n")
	if len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
