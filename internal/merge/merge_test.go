package merge

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"sos/internal/errors"
	"sos/internal/textenc"
	"sos/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestMerger(prompter ConflictPrompter) (*Merger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	return NewMerger(logger, textenc.NewLoader(logger, textenc.UTF8), prompter), logs
}

func mergeStrings(t *testing.T, m *Merger, file, into string, op shared.MergeOperation, res shared.ConflictResolution) string {
	out, err := m.Merge(Input{File: []byte(file), Into: []byte(into)}, op, res)
	require.NoError(t, err)
	return string(out)
}

func TestMergeOperations(t *testing.T) {
	m, _ := newTestMerger(&ScriptedPrompter{})
	file, into := "a\nb\ncc\nd", "a\nb\nee\nd"

	assert.Equal(t, "a\nb\ncc\nd", mergeStrings(t, m, file, into, shared.MergeBoth, shared.Ask))
	assert.Equal(t, "a\nb\ncc\nee\nd", mergeStrings(t, m, file, into, shared.MergeInsert, shared.Ask))
	assert.Equal(t, "a\nb\nd", mergeStrings(t, m, file, into, shared.MergeRemove, shared.Ask))
}

func TestMergeBlocks(t *testing.T) {
	m, _ := newTestMerger(nil)
	blocks, err := m.Blocks(Input{File: []byte("a\nb\ncc\nd"), Into: []byte("a\nb\nee\nd")})
	require.NoError(t, err)

	want := []shared.MergeBlock{
		{Tipe: shared.KEEP, Lines: []string{"a", "b"}, Line: 0},
		{
			Tipe:     shared.REPLACE,
			Lines:    []string{"ee"},
			Line:     2,
			Replaces: &shared.MergeBlock{Tipe: shared.REMOVE, Lines: []string{"cc"}, Line: 2},
		},
		{Tipe: shared.KEEP, Lines: []string{"d"}, Line: 4},
	}
	assert.Equal(t, want, blocks)
}

func TestMergeIdentical(t *testing.T) {
	inputs := []string{"", "x", "a\nb\n", "a\r\nb\r\n", "one\ntwo\nthree"}
	ops := []shared.MergeOperation{shared.MergeInsert, shared.MergeRemove, shared.MergeBoth}
	resolutions := []shared.ConflictResolution{shared.Theirs, shared.Mine, shared.Ask, shared.Next}

	prompter := &ScriptedPrompter{}
	m, _ := newTestMerger(prompter)
	for _, x := range inputs {
		for _, op := range ops {
			for _, res := range resolutions {
				assert.Equal(t, x, mergeStrings(t, m, x, x, op, res), "%q %s %s", x, op, res)
			}
		}
	}
	assert.Empty(t, prompter.Asked)
}

func TestMergeIntraLineInsert(t *testing.T) {
	m, _ := newTestMerger(nil)
	blocks, err := m.Blocks(Input{File: []byte("abc"), Into: []byte("abXc")})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, shared.MODIFY, blocks[0].Tipe)
	assert.Equal(t, 0, blocks[0].Line)
	assert.Equal(t, &shared.Range{Tipe: shared.INSERT, Indexes: []int{2}}, blocks[0].Changes)
	assert.Equal(t, []string{"abc"}, blocks[0].Replaces.Lines)

	assert.Equal(t, "abXc", mergeStrings(t, m, "abc", "abXc", shared.MergeInsert, shared.Ask))
	assert.Equal(t, "abXc", mergeStrings(t, m, "abc", "abXc", shared.MergeBoth, shared.Ask))
	assert.Equal(t, "abc", mergeStrings(t, m, "abc", "abXc", shared.MergeRemove, shared.Ask))
}

func TestMergeIntraLineRemove(t *testing.T) {
	m, _ := newTestMerger(nil)
	blocks, err := m.Blocks(Input{File: []byte("abXc"), Into: []byte("abc")})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, shared.MODIFY, blocks[0].Tipe)
	assert.Equal(t, 1, blocks[0].Line)
	assert.Nil(t, blocks[0].Changes)
	assert.Equal(t, &shared.Range{Tipe: shared.REMOVE, Indexes: []int{2}}, blocks[0].Replaces.Changes)

	assert.Equal(t, "abc", mergeStrings(t, m, "abXc", "abc", shared.MergeRemove, shared.Ask))
	assert.Equal(t, "abc", mergeStrings(t, m, "abXc", "abc", shared.MergeBoth, shared.Ask))
	assert.Equal(t, "abXc", mergeStrings(t, m, "abXc", "abc", shared.MergeInsert, shared.Ask))
}

func TestMergeConflict(t *testing.T) {
	file, into := "abcdefgh", "abcdXfgh"

	m, _ := newTestMerger(nil)
	blocks, err := m.Blocks(Input{File: []byte(file), Into: []byte(into)})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, shared.MODIFY, blocks[0].Tipe)
	assert.Equal(t, &shared.Range{Tipe: shared.MODIFY, Indexes: []int{4}}, blocks[0].Changes)

	t.Run("policies", func(t *testing.T) {
		m, logs := newTestMerger(&ScriptedPrompter{})
		assert.Equal(t, file, mergeStrings(t, m, file, into, shared.MergeBoth, shared.Theirs))
		assert.Equal(t, into, mergeStrings(t, m, file, into, shared.MergeBoth, shared.Mine))
		assert.Equal(t, file, mergeStrings(t, m, file, into, shared.MergeBoth, shared.Next))
		assert.Equal(t, 1, logs.FilterMessageSnippet("not implemented").Len())
	})

	t.Run("ask", func(t *testing.T) {
		tests := []struct {
			answer string
			want   string
		}{
			{"t", file},
			{"i", into},
			{"", into},
			{"?", into},
			{"m", file},
			{"u", ""},
		}
		for _, tt := range tests {
			prompter := &ScriptedPrompter{Answers: []string{tt.answer}}
			m, _ := newTestMerger(prompter)
			assert.Equal(t, tt.want, mergeStrings(t, m, file, into, shared.MergeBoth, shared.Ask), "answer %q", tt.answer)
			require.Len(t, prompter.Asked, 1)
			assert.Equal(t, []string{into}, prompter.Asked[0].Lines)
		}
	})
}

func TestMergeEOL(t *testing.T) {
	m, logs := newTestMerger(nil)
	out := mergeStrings(t, m, "a\r\nb", "a\nb", shared.MergeBoth, shared.Ask)
	assert.Equal(t, "a\r\nb", out)
	assert.Equal(t, 1, logs.FilterMessage("differing EOL styles").Len())

	m.EOL = "\r"
	assert.Equal(t, "a\rb", mergeStrings(t, m, "a\nb", "a\nb", shared.MergeBoth, shared.Ask))
}

func TestMergeCP1252(t *testing.T) {
	m, _ := newTestMerger(nil)
	file, into := "caf\xe9\nx\nend", "caf\xe9\nna\xefve\nend"

	out := mergeStrings(t, m, file, into, shared.MergeBoth, shared.Mine)
	assert.Equal(t, file, out, "result keeps the cp1252 bytes")

	out = mergeStrings(t, m, file, into, shared.MergeInsert, shared.Mine)
	assert.Equal(t, "caf\xe9\nx\nna\xefve\nend", out)
}

func TestMergeUnexpectedModifyBlock(t *testing.T) {
	m, logs := newTestMerger(nil)
	blocks := []shared.MergeBlock{
		{Tipe: shared.KEEP, Lines: []string{"a"}, Line: 0},
		{Tipe: shared.MODIFY, Lines: []string{"b"}, Line: 1},
	}

	out, err := m.assemble(blocks, shared.MergeBoth, shared.Ask)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
	assert.Equal(t, 1, logs.FilterMessage("investigate this case").Len())
}

func TestMergeLoadFailure(t *testing.T) {
	m, _ := newTestMerger(nil)
	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, err := m.Merge(Input{FileName: missing, Into: []byte("x")}, shared.MergeBoth, shared.Mine)
	require.Error(t, err)
	assert.True(t, errors.IsExit(err))
	assert.Contains(t, err.Error(), "Cannot merge '"+missing+"' into '<buffer>'")
}

func TestParseChoice(t *testing.T) {
	assert.Equal(t, ChoiceMine, ParseChoice(""))
	assert.Equal(t, ChoiceMine, ParseChoice("i\n"))
	assert.Equal(t, ChoiceTheirs, ParseChoice("T"))
	assert.Equal(t, ChoiceNext, ParseChoice("m"))
	assert.Equal(t, ChoiceManual, ParseChoice("  u  "))
	assert.Equal(t, ChoiceMine, ParseChoice("x"))
}

func TestConsolePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &ConsolePrompter{In: bufio.NewReader(strings.NewReader("t\n")), Out: &out}

	choice, err := p.Choose(shared.MergeBlock{
		Tipe:     shared.MODIFY,
		Lines:    []string{"mine"},
		Replaces: &shared.MergeBlock{Tipe: shared.REMOVE, Lines: []string{"theirs"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ChoiceTheirs, choice)
	assert.Contains(t, out.String(), "THR")
	assert.Contains(t, out.String(), "theirs")
	assert.Contains(t, out.String(), "MIN")

	p = &ConsolePrompter{In: bufio.NewReader(strings.NewReader("")), Out: &out}
	choice, err = p.Choose(shared.MergeBlock{Lines: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, ChoiceMine, choice)
}

func TestClassifyIgnoresEmptyInput(t *testing.T) {
	assert.Empty(t, Classify(nil))
	assert.Equal(t,
		[]shared.MergeBlock{{Tipe: shared.INSERT, Lines: []string{"x"}, Line: 0}},
		Classify([]string{"+ x"}))
}
