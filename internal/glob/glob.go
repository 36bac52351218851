// Package glob tokenizes file patterns and translates file names matched by
// one pattern into names following another, as used by pattern moves.
package glob

import (
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"sos/internal/errors"
	"sos/shared/types"
)

// bracket-escaped wildcards matching the literal character
var escapes = []string{"[?]", "[*]", "[[]", "[]]"}

// Action renames Source to Target
type Action struct {
	Source string
	Target string
}

// TokenizePattern splits a glob pattern into literal and wildcard blocks.
// Indexes are rune offsets into pattern.
func TokenizePattern(pattern string) []shared.GlobBlock {
	rs := []rune(pattern)
	var out []shared.GlobBlock

	for index := 0; index < len(rs); {
		if index+3 <= len(rs) && slices.Contains(escapes, string(rs[index:index+3])) {
			out = append(out, shared.GlobBlock{Content: string(rs[index : index+3]), Index: index})
			index += 3
			continue
		}

		switch rs[index] {
		case '*':
			out = append(out, shared.GlobBlock{Content: "*", Index: index})
			index++
			continue
		case '?':
			count := 1
			for index+count < len(rs) && rs[index+count] == '?' {
				count++
			}
			out = append(out, shared.GlobBlock{Content: string(rs[index : index+count]), Index: index})
			index += count
			continue
		case '[':
			if end := closingBracket(rs, index); end > 0 {
				out = append(out, shared.GlobBlock{Content: string(rs[index : end+1]), Index: index})
				index = end + 1
				continue
			}
		}

		// literal run; an unclosed '[' is taken literally
		count := 1
		for index+count < len(rs) && !strings.ContainsRune("*?[", rs[index+count]) {
			count++
		}
		out = append(out, shared.GlobBlock{IsLiteral: true, Content: string(rs[index : index+count]), Index: index})
		index += count
	}

	return out
}

// closingBracket returns the index of the ']' closing the class at start, or -1
func closingBracket(rs []rune, start int) int {
	for i := start + 2; i < len(rs); i++ {
		if rs[i] == ']' {
			return i
		}
	}
	return -1
}

func wildcards(tokens []shared.GlobBlock) []shared.GlobBlock {
	var out []shared.GlobBlock
	for _, t := range tokens {
		if !t.IsLiteral {
			out = append(out, t)
		}
	}
	return out
}

// TokenizePatterns tokenizes a source and a target pattern and checks that the
// target's wildcards can be filled from what the source's wildcards capture.
func TokenizePatterns(oldPattern, newPattern string) ([]shared.GlobBlock, []shared.GlobBlock, error) {
	ot := TokenizePattern(oldPattern)
	nt := TokenizePattern(newPattern)

	ow, nw := wildcards(ot), wildcards(nt)
	if len(ow) < len(nw) {
		return nil, nil, errors.Exit("Source and target file patterns contain differing number of glob markers and cannot be moved")
	}
	for i := range nw {
		if ow[i].Content != nw[i].Content {
			return nil, nil, errors.Exit("Source and target file patterns differ in semantics: %q at %d vs %q at %d",
				ow[i].Content, ow[i].Index, nw[i].Content, nw[i].Index)
		}
	}

	return ot, nt, nil
}

// ConvertFiles translates each file name matched by oldTokens into the name
// described by newTokens. Wildcards of the target receive the captures of the
// source wildcards in order of occurrence.
func ConvertFiles(filenames []string, oldTokens, newTokens []shared.GlobBlock) ([]Action, error) {
	pairs := make([]Action, 0, len(filenames))

	for _, filename := range filenames {
		matches, err := capture(filename, oldTokens)
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		for _, token := range newTokens {
			if token.IsLiteral {
				b.WriteString(token.Content)
				continue
			}
			if len(matches) == 0 {
				return nil, errors.Exit("Target pattern needs more glob matches than %q provides", filename)
			}
			b.WriteString(matches[0].Matches)
			matches = matches[1:]
		}

		pairs = append(pairs, Action{Source: filename, Target: b.String()})
	}

	return pairs, nil
}

// capture walks the source tokens over filename and records what each
// wildcard consumed. Literals are assumed to match and are skipped.
func capture(filename string, tokens []shared.GlobBlock) ([]shared.GlobBlock2, error) {
	rs := []rune(filename)
	index := 0
	var out []shared.GlobBlock2

	take := func(n int) string {
		end := min(index+n, len(rs))
		start := min(index, end)
		index = end
		return string(rs[start:end])
	}

	for i, token := range tokens {
		switch {
		case token.IsLiteral:
			take(utf8.RuneCountInString(token.Content))
		case strings.Trim(token.Content, "?") == "":
			out = append(out, shared.GlobBlock2{Content: token.Content, Matches: take(utf8.RuneCountInString(token.Content))})
		case strings.HasPrefix(token.Content, "["):
			out = append(out, shared.GlobBlock2{Content: token.Content, Matches: take(1)})
		case token.Content == "*":
			if i == len(tokens)-1 {
				out = append(out, shared.GlobBlock2{Content: token.Content, Matches: take(len(rs))})
				break
			}
			next := tokens[i+1]
			if !next.IsLiteral {
				return nil, errors.Exit("Invalid file pattern specified for move/rename: '*' must be followed by a literal")
			}
			rest := string(rs[min(index, len(rs)):])
			pos := strings.Index(rest, next.Content)
			if pos < 0 {
				return nil, errors.Exit("File %q does not match the source pattern", filename)
			}
			out = append(out, shared.GlobBlock2{Content: token.Content, Matches: take(utf8.RuneCountInString(rest[:pos]))})
		default:
			return nil, errors.Exit("Invalid file pattern specified for move/rename: %q", token.Content)
		}
	}

	return out, nil
}

// ReorderRenameActions orders renames so that no file is overwritten before it
// has been moved away itself. With exitOnConflict, an ordering that still
// clobbers a file is reported as an error.
func ReorderRenameActions(actions []Action, exitOnConflict bool) ([]Action, error) {
	out := slices.Clone(actions)

	// each pass may bubble several actions up; the tail of the list holds the
	// fewest conflicts, so the scan window shrinks by one per pass
	for last := len(out); last > 1; last-- {
		clean := true
		for i := 1; i < last; i++ {
			if j := targetIndex(out[:i], out[i].Source); j >= 0 {
				action := out[i]
				out = slices.Delete(out, i, i+1)
				out = slices.Insert(out, j, action)
				clean = false
			}
		}
		if clean {
			break
		}
	}

	if exitOnConflict {
		for i := 1; i < len(out); i++ {
			if targetIndex(out[:i], out[i].Source) >= 0 {
				return nil, errors.Exit("There is no order of renaming actions that avoids copying over not-yet-moved files: '%s' -> '%s'", out[i].Source, out[i].Target)
			}
		}
	}

	return out, nil
}

// DuplicateTarget returns the first target that more than one action renames
// onto, or "" when all targets are distinct
func DuplicateTarget(actions []Action) string {
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		if seen[a.Target] {
			return a.Target
		}
		seen[a.Target] = true
	}
	return ""
}

func targetIndex(actions []Action, target string) int {
	for i, a := range actions {
		if a.Target == target {
			return i
		}
	}
	return -1
}

// Match reports whether a slash-separated relative path matches pattern.
// Patterns without a slash are matched against the base name only.
func Match(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		name = path.Base(name)
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// MatchAny reports whether name matches one of patterns
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if Match(p, name) {
			return true
		}
	}
	return false
}

// Select returns the names whose full slash-separated path matches pattern,
// in input order
func Select(pattern string, names []string) []string {
	var out []string
	for _, name := range names {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			out = append(out, name)
		}
	}
	return out
}
