package diff

import (
	"strings"
	"unicode"
)

// chars splits a line into single-rune elements for character matching
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func dump(out []string, tag byte, x []string, lo, hi int) []string {
	prefix := string(tag) + " "
	for i := lo; i < hi; i++ {
		out = append(out, prefix+x[i])
	}
	return out
}

// plainReplace emits a replaced region without pairing lines, the shorter
// side first
func plainReplace(out []string, a []string, alo, ahi int, b []string, blo, bhi int) []string {
	if bhi-blo < ahi-alo {
		out = dump(out, '+', b, blo, bhi)
		return dump(out, '-', a, alo, ahi)
	}
	out = dump(out, '-', a, alo, ahi)
	return dump(out, '+', b, blo, bhi)
}

// qformat emits a paired line edit with its guide lines
func qformat(out []string, aline, bline, atags, btags string) []string {
	atags = strings.TrimRightFunc(keepOriginalWS(aline, atags), unicode.IsSpace)
	btags = strings.TrimRightFunc(keepOriginalWS(bline, btags), unicode.IsSpace)

	out = append(out, PrefixRemoved+aline)
	if atags != "" {
		out = append(out, PrefixHint+atags)
	}
	out = append(out, PrefixAdded+bline)
	if btags != "" {
		out = append(out, PrefixHint+btags)
	}
	return out
}

// keepOriginalWS copies whitespace of s into the unmarked columns of tags so
// that tabs line up in the guide line
func keepOriginalWS(s, tags string) string {
	sr, tr := []rune(s), []rune(tags)
	n := min(len(sr), len(tr))
	out := make([]rune, n)
	for i := 0; i < n; i++ {
		if tr[i] == ' ' && unicode.IsSpace(sr[i]) {
			out[i] = sr[i]
		} else {
			out[i] = tr[i]
		}
	}
	return string(out)
}

func runeIndexes(s string, marker rune) []int {
	var out []int
	i := 0
	for _, r := range s {
		if r == marker {
			out = append(out, i)
		}
		i++
	}
	return out
}
