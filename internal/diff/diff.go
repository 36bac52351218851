// internal/diff/diff.go
package diff

import (
	"strings"

	"sos/shared/types"

	"github.com/pmezard/go-difflib/difflib"
)

// Line prefixes of Compare output
const (
	PrefixEqual   = "  "
	PrefixRemoved = "- "
	PrefixAdded   = "+ "
	PrefixHint    = "? "
)

// Similarity above which two differing lines are shown as an edit of each other
const (
	matchCutoff = 0.75
	matchFloor  = 0.74
)

// Differ produces human-readable line deltas. Lines that are similar enough
// are paired and followed by "? " guide lines marking the differing columns
// with '^' (changed), '-' (only in a) and '+' (only in b).
type Differ struct {
	// LineJunk marks lines ignored while synchronizing, nil for none
	LineJunk func(string) bool
	// CharJunk marks characters ignored while pairing lines, nil for none
	CharJunk func(string) bool
}

// NewDiffer creates a differ without junk filters
func NewDiffer() *Differ {
	return &Differ{}
}

// Compare returns the delta turning a into b, one prefixed line per entry
func (d *Differ) Compare(a, b []string) []string {
	var m *difflib.SequenceMatcher
	if d.LineJunk != nil {
		m = difflib.NewMatcherWithJunk(a, b, true, d.LineJunk)
	} else {
		m = difflib.NewMatcher(a, b)
	}

	var out []string
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			out = d.fancyReplace(out, a, op.I1, op.I2, b, op.J1, op.J2)
		case 'd':
			out = dump(out, '-', a, op.I1, op.I2)
		case 'i':
			out = dump(out, '+', b, op.J1, op.J2)
		case 'e':
			out = dump(out, ' ', a, op.I1, op.I2)
		}
	}
	return out
}

// fancyReplace pairs the most similar lines of a replaced region and
// recurses on the parts before and after the pair
func (d *Differ) fancyReplace(out []string, a []string, alo, ahi int, b []string, blo, bhi int) []string {
	bestRatio := matchFloor
	bestI, bestJ := -1, -1
	eqi, eqj := -1, -1

	cruncher := difflib.NewMatcherWithJunk(nil, nil, true, d.CharJunk)
	for j := blo; j < bhi; j++ {
		bj := b[j]
		cruncher.SetSeq2(chars(bj))
		for i := alo; i < ahi; i++ {
			ai := a[i]
			if ai == bj {
				if eqi < 0 {
					eqi, eqj = i, j
				}
				continue
			}
			cruncher.SetSeq1(chars(ai))
			if cruncher.RealQuickRatio() > bestRatio &&
				cruncher.QuickRatio() > bestRatio &&
				cruncher.Ratio() > bestRatio {
				bestRatio, bestI, bestJ = cruncher.Ratio(), i, j
			}
		}
	}

	if bestRatio < matchCutoff {
		if eqi < 0 {
			return plainReplace(out, a, alo, ahi, b, blo, bhi)
		}
		bestI, bestJ = eqi, eqj
	} else {
		eqi = -1
	}

	out = d.fancyHelper(out, a, alo, bestI, b, blo, bestJ)

	aelt, belt := a[bestI], b[bestJ]
	if eqi < 0 {
		var atags, btags strings.Builder
		cruncher.SetSeqs(chars(aelt), chars(belt))
		for _, op := range cruncher.GetOpCodes() {
			la, lb := op.I2-op.I1, op.J2-op.J1
			switch op.Tag {
			case 'r':
				atags.WriteString(strings.Repeat("^", la))
				btags.WriteString(strings.Repeat("^", lb))
			case 'd':
				atags.WriteString(strings.Repeat("-", la))
			case 'i':
				btags.WriteString(strings.Repeat("+", lb))
			case 'e':
				atags.WriteString(strings.Repeat(" ", la))
				btags.WriteString(strings.Repeat(" ", lb))
			}
		}
		out = qformat(out, aelt, belt, atags.String(), btags.String())
	} else {
		out = append(out, PrefixEqual+aelt)
	}

	return d.fancyHelper(out, a, bestI+1, ahi, b, bestJ+1, bhi)
}

func (d *Differ) fancyHelper(out []string, a []string, alo, ahi int, b []string, blo, bhi int) []string {
	switch {
	case alo < ahi && blo < bhi:
		return d.fancyReplace(out, a, alo, ahi, b, blo, bhi)
	case alo < ahi:
		return dump(out, '-', a, alo, ahi)
	case blo < bhi:
		return dump(out, '+', b, blo, bhi)
	}
	return out
}

// IntraLineMarkers reads a guide line (without its "? " prefix) into the
// columns it marks. '^' takes precedence over '+', which takes precedence
// over '-'.
func IntraLineMarkers(line string) shared.Range {
	for _, m := range []struct {
		marker rune
		tipe   shared.MergeBlockType
	}{
		{'^', shared.MODIFY},
		{'+', shared.INSERT},
		{'-', shared.REMOVE},
	} {
		if strings.ContainsRune(line, m.marker) {
			return shared.Range{Tipe: m.tipe, Indexes: runeIndexes(line, m.marker)}
		}
	}
	return shared.Range{Tipe: shared.KEEP, Indexes: []int{}}
}
