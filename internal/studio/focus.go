package studio

import "unicode"

// Range is a half-open span of character offsets into the lyric buffer.
// Offsets count Unicode code points, not bytes or UTF-16 units.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Focus is the word under the cursor or selection. Word is always the text
// covered by Range.
type Focus struct {
	Word  string `json:"word"`
	Range Range  `json:"range"`
}

// Selection is what the editing surface reports: a collapsed cursor when
// Start == End, a selection otherwise. Offsets are code points like Range;
// browser editors report UTF-16 units and must convert before sending.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func Cursor(offset int) Selection {
	return Selection{Start: offset, End: offset}
}

func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// clamp orders the bounds and keeps them inside a buffer of n characters.
func (s Selection) clamp(n int) Selection {
	if s.Start > s.End {
		s.Start, s.End = s.End, s.Start
	}
	s.Start = min(max(s.Start, 0), n)
	s.End = min(max(s.End, 0), n)
	return s
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '\'' || r == '-':
		return true
	}
	return false
}

// DetectFocus finds the word around sel in text. A collapsed cursor expands
// over adjacent word characters; a selection is taken as is. Surrounding
// whitespace is trimmed from the result, and anything that is not a single
// run of word characters yields no focus.
func DetectFocus(text string, sel Selection) (Focus, bool) {
	runes := []rune(text)
	sel = sel.clamp(len(runes))
	start, end := sel.Start, sel.End

	if sel.Collapsed() {
		for start > 0 && isWordRune(runes[start-1]) {
			start--
		}
		for end < len(runes) && isWordRune(runes[end]) {
			end++
		}
	}

	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return Focus{}, false
	}

	for _, r := range runes[start:end] {
		if !isWordRune(r) {
			return Focus{}, false
		}
	}

	return Focus{Word: string(runes[start:end]), Range: Range{Start: start, End: end}}, true
}

// contextWindow returns up to radius characters on each side of r, clamped
// to the buffer.
func contextWindow(text string, r Range, radius int) string {
	runes := []rune(text)
	start := max(0, r.Start-radius)
	end := min(len(runes), r.End+radius)
	if start > end {
		return ""
	}
	return string(runes[start:end])
}
