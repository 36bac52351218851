package diff

import (
	"testing"

	"sos/shared/types"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []string
	}{
		{
			name: "equal",
			a:    []string{"a", "b"},
			b:    []string{"a", "b"},
			want: []string{"  a", "  b"},
		},
		{
			name: "dissimilar lines",
			a:    []string{"a"},
			b:    []string{"b"},
			want: []string{"- a", "+ b"},
		},
		{
			name: "shorter replacement goes first",
			a:    []string{"one", "two"},
			b:    []string{"zzz"},
			want: []string{"+ zzz", "- one", "- two"},
		},
		{
			name: "changed character",
			a:    []string{"abcdefgh"},
			b:    []string{"abcdXfgh"},
			want: []string{"- abcdefgh", "?     ^", "+ abcdXfgh", "?     ^"},
		},
		{
			name: "inserted character",
			a:    []string{"abc"},
			b:    []string{"abXc"},
			want: []string{"- abc", "+ abXc", "?   +"},
		},
		{
			name: "removed character",
			a:    []string{"abXc"},
			b:    []string{"abc"},
			want: []string{"- abXc", "?   -", "+ abc"},
		},
		{
			name: "tabs survive in guide lines",
			a:    []string{"\tabcdef"},
			b:    []string{"\tXbcdef"},
			want: []string{"- \tabcdef", "? \t^", "+ \tXbcdef", "? \t^"},
		},
		{
			name: "insert and delete around context",
			a:    []string{"keep", "gone"},
			b:    []string{"new", "keep"},
			want: []string{"+ new", "  keep", "- gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewDiffer().Compare(tt.a, tt.b))
		})
	}
}

func TestCompareEmpty(t *testing.T) {
	d := NewDiffer()
	assert.Empty(t, d.Compare(nil, nil))
	assert.Equal(t, []string{"+ x"}, d.Compare(nil, []string{"x"}))
	assert.Equal(t, []string{"- x"}, d.Compare([]string{"x"}, []string{}))
}

func TestIntraLineMarkers(t *testing.T) {
	tests := []struct {
		line string
		want shared.Range
	}{
		{"  ^ ^", shared.Range{Tipe: shared.MODIFY, Indexes: []int{2, 4}}},
		{"+ - ^", shared.Range{Tipe: shared.MODIFY, Indexes: []int{4}}},
		{" + -", shared.Range{Tipe: shared.INSERT, Indexes: []int{1}}},
		{"  --", shared.Range{Tipe: shared.REMOVE, Indexes: []int{2, 3}}},
		{"   ", shared.Range{Tipe: shared.KEEP, Indexes: []int{}}},
		{"", shared.Range{Tipe: shared.KEEP, Indexes: []int{}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IntraLineMarkers(tt.line))
		})
	}
}
