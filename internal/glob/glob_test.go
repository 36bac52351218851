package glob

import (
	"testing"

	"sos/internal/errors"
	"sos/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    []shared.GlobBlock
	}{
		{
			pattern: "file*.txt",
			want: []shared.GlobBlock{
				{IsLiteral: true, Content: "file", Index: 0},
				{Content: "*", Index: 4},
				{IsLiteral: true, Content: ".txt", Index: 5},
			},
		},
		{
			pattern: "a??b[!x]c[?]",
			want: []shared.GlobBlock{
				{IsLiteral: true, Content: "a", Index: 0},
				{Content: "??", Index: 1},
				{IsLiteral: true, Content: "b", Index: 3},
				{Content: "[!x]", Index: 4},
				{IsLiteral: true, Content: "c", Index: 8},
				{Content: "[?]", Index: 9},
			},
		},
		{
			pattern: "[*][[][]]",
			want: []shared.GlobBlock{
				{Content: "[*]", Index: 0},
				{Content: "[[]", Index: 3},
				{Content: "[]]", Index: 6},
			},
		},
		{
			pattern: "x[ab]y",
			want: []shared.GlobBlock{
				{IsLiteral: true, Content: "x", Index: 0},
				{Content: "[ab]", Index: 1},
				{IsLiteral: true, Content: "y", Index: 5},
			},
		},
		{
			pattern: "open[end",
			want: []shared.GlobBlock{
				{IsLiteral: true, Content: "open", Index: 0},
				{IsLiteral: true, Content: "[end", Index: 4},
			},
		},
		{pattern: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizePattern(tt.pattern))
		})
	}
}

func TestTokenizePatterns(t *testing.T) {
	_, _, err := TokenizePatterns("*.txt", "*.bak")
	require.NoError(t, err)

	_, _, err = TokenizePatterns("*_?.txt", "*.txt")
	require.NoError(t, err, "dropping trailing wildcards is allowed")

	_, _, err = TokenizePatterns("a.txt", "*.txt")
	require.Error(t, err)
	assert.True(t, errors.IsExit(err))
	assert.Contains(t, err.Error(), "differing number of glob markers")

	_, _, err = TokenizePatterns("*.txt", "?.txt")
	require.Error(t, err)
	assert.True(t, errors.IsExit(err))
	assert.Contains(t, err.Error(), "differ in semantics")
}

func convert(t *testing.T, oldPattern, newPattern string, names ...string) []Action {
	ot, nt, err := TokenizePatterns(oldPattern, newPattern)
	require.NoError(t, err)
	pairs, err := ConvertFiles(names, ot, nt)
	require.NoError(t, err)
	return pairs
}

func TestConvertFiles(t *testing.T) {
	assert.Equal(t,
		[]Action{{Source: "file42.txt", Target: "archive_42.txt"}},
		convert(t, "file*.txt", "archive_*.txt", "file42.txt"))

	assert.Equal(t,
		[]Action{{Source: "img01.png", Target: "pic01.png"}, {Source: "img22.png", Target: "pic22.png"}},
		convert(t, "img??.png", "pic??.png", "img01.png", "img22.png"))

	assert.Equal(t,
		[]Action{{Source: "a_b.c", Target: "a-b.c"}},
		convert(t, "*_*.c", "*-*.c", "a_b.c"))

	assert.Equal(t,
		[]Action{{Source: "v1.log", Target: "old/v1"}},
		convert(t, "v[0-9].log", "old/v[0-9]", "v1.log"))

	assert.Equal(t,
		[]Action{{Source: "readme.md", Target: "docs/readme.md"}},
		convert(t, "*", "docs/*", "readme.md"))
}

func TestConvertFilesLiteralOnly(t *testing.T) {
	for _, name := range []string{"a.txt", "anything else", ""} {
		assert.Equal(t,
			[]Action{{Source: name, Target: "b.txt"}},
			convert(t, "a.txt", "b.txt", name))
	}
}

func TestConvertFilesErrors(t *testing.T) {
	ot, nt, err := TokenizePatterns("*.txt", "*.bak")
	require.NoError(t, err)
	_, err = ConvertFiles([]string{"nodot"}, ot, nt)
	assert.True(t, errors.IsExit(err))

	ot, nt, err = TokenizePatterns("*?x", "*")
	require.NoError(t, err)
	_, err = ConvertFiles([]string{"abx"}, ot, nt)
	assert.True(t, errors.IsExit(err))
}

func sources(actions []Action) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Source)
	}
	return out
}

func assertNoClobber(t *testing.T, actions []Action) {
	for i := range actions {
		for j := 0; j < i; j++ {
			assert.NotEqual(t, actions[j].Target, actions[i].Source, "action %d clobbers %s", i, actions[i].Source)
		}
	}
}

func TestReorderRenameActions(t *testing.T) {
	t.Run("already ordered", func(t *testing.T) {
		in := []Action{{"b", "c"}, {"a", "b"}}
		out, err := ReorderRenameActions(in, true)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("swap needed", func(t *testing.T) {
		out, err := ReorderRenameActions([]Action{{"a", "b"}, {"b", "c"}}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, sources(out))
		assertNoClobber(t, out)
	})

	t.Run("chain", func(t *testing.T) {
		out, err := ReorderRenameActions([]Action{{"a", "b"}, {"b", "c"}, {"c", "d"}}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, sources(out))
		assertNoClobber(t, out)
	})

	t.Run("longer chain", func(t *testing.T) {
		out, err := ReorderRenameActions([]Action{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "e"}}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "c", "b", "a"}, sources(out))
		assertNoClobber(t, out)
	})

	t.Run("several moves per pass", func(t *testing.T) {
		in := []Action{{"5", "4"}, {"1", "7"}, {"7", "3"}, {"3", "6"}, {"6", "2"}, {"4", "3"}}
		out, err := ReorderRenameActions(in, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"6", "3", "4", "5", "7", "1"}, sources(out))
		assertNoClobber(t, out)
	})

	t.Run("input is not modified", func(t *testing.T) {
		in := []Action{{"a", "b"}, {"b", "c"}}
		_, err := ReorderRenameActions(in, true)
		require.NoError(t, err)
		assert.Equal(t, "a", in[0].Source)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := ReorderRenameActions([]Action{{"a", "b"}, {"b", "a"}}, true)
		require.Error(t, err)
		assert.True(t, errors.IsExit(err))
		assert.Contains(t, err.Error(), "no order of renaming actions")
	})

	t.Run("cycle without exit", func(t *testing.T) {
		out, err := ReorderRenameActions([]Action{{"a", "b"}, {"b", "a"}}, false)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestDuplicateTarget(t *testing.T) {
	assert.Equal(t, "", DuplicateTarget(nil))
	assert.Equal(t, "", DuplicateTarget([]Action{{"a", "x"}, {"b", "y"}}))
	assert.Equal(t, "x", DuplicateTarget([]Action{{"a", "x"}, {"b", "y"}, {"c", "x"}}))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("*.txt", "dir/a.txt"))
	assert.False(t, Match("*.txt", "dir/a.md"))
	assert.True(t, Match("dir/*.txt", "dir/a.txt"))
	assert.False(t, Match("dir/*.txt", "other/a.txt"))
	assert.True(t, MatchAny([]string{"*.md", "*.txt"}, "a.txt"))
	assert.False(t, MatchAny(nil, "a.txt"))
}

func TestSelect(t *testing.T) {
	names := []string{"a.txt", "b.md", "dir/c.txt"}
	assert.Equal(t, []string{"a.txt"}, Select("*.txt", names))
	assert.Equal(t, []string{"dir/c.txt"}, Select("dir/*", names))
	assert.Nil(t, Select("[", names))
}
