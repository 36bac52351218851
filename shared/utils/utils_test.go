package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStr(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HashStr(tt.text), "%q", tt.text)
		assert.Equal(t, tt.want, HashContent([]byte(tt.text)))
	}
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 3, "a": 1, "b": 2}))
	assert.Empty(t, SortedKeys(map[string]int{}))
}
