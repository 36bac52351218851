package merge

import (
	"sos/internal/diff"
	"sos/shared/types"
)

// sentinel flushes the last run of diff output
const sentinel = "X"

// Classify folds the prefixed output of diff.Differ.Compare into merge
// blocks. Equal-sized removal and insertion runs become a REPLACE block, or a
// MODIFY block when a single line pair carries intra-line markers.
func Classify(delta []string) []shared.MergeBlock {
	var (
		blocks []shared.MergeBlock
		run    []string
		last   byte = ' '
	)

	lines := append(append(make([]string, 0, len(delta)+1), delta...), sentinel)
	for no, line := range lines {
		if line == "" {
			continue
		}
		marker := line[0]
		if marker == last {
			run = append(run, content(line))
			continue
		}

		switch {
		case last == ' ' && len(run) > 0:
			blocks = append(blocks, shared.MergeBlock{Tipe: shared.KEEP, Lines: run, Line: no - len(run)})

		case last == '-' && len(run) > 0:
			blocks = append(blocks, shared.MergeBlock{Tipe: shared.REMOVE, Lines: run, Line: no - len(run)})

		case last == '+' && len(run) > 0:
			blocks = append(blocks, shared.MergeBlock{Tipe: shared.INSERT, Lines: run, Line: no - len(run)})
			blocks = pairReplacement(blocks, no, len(run))

		case last == '?' && len(run) > 0 && len(blocks) > 0:
			markers := diff.IntraLineMarkers(run[0])
			prev := blocks[len(blocks)-1]
			if prev.Replaces != nil {
				prev = prev.WithTipe(shared.MODIFY)
			}
			blocks[len(blocks)-1] = prev.WithChanges(markers)
		}

		last = marker
		run = []string{content(line)}
	}
	return blocks
}

// pairReplacement collapses a removal directly followed by an insertion of
// the same size into one block
func pairReplacement(blocks []shared.MergeBlock, no, runLen int) []shared.MergeBlock {
	n := len(blocks)
	if n < 2 {
		return blocks
	}
	removed, inserted := blocks[n-2], blocks[n-1]
	if removed.Tipe != shared.REMOVE || len(removed.Lines) != len(inserted.Lines) {
		return blocks
	}

	replaces := removed
	if runLen >= 2 || (removed.Changes == nil && inserted.Changes == nil) {
		blocks[n-2] = shared.MergeBlock{
			Tipe:     shared.REPLACE,
			Lines:    inserted.Lines,
			Line:     no - runLen - 1,
			Replaces: &replaces,
		}
	} else {
		blocks[n-2] = shared.MergeBlock{
			Tipe:     shared.MODIFY,
			Lines:    inserted.Lines,
			Line:     no - runLen - 1,
			Replaces: &replaces,
			Changes:  inserted.Changes,
		}
	}
	return blocks[:n-1]
}

func content(line string) string {
	if len(line) < 2 {
		return ""
	}
	return line[2:]
}
