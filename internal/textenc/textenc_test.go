package textenc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDetectEOL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lf", "a\nb", LF},
		{"crlf", "a\r\nb\r\n", CRLF},
		{"cr", "\ra\rb", CR},
		{"empty", "", ""},
		{"no eol", "sdf", ""},
		{"mixed without crlf equal", "a\nb\r", ""},
		{"mixed without crlf lf wins", "a\nb\nc\r", LF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEOL([]byte(tt.in), nil))
		})
	}
}

func TestDetectEOLWarnsOnMixedStyles(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	assert.Equal(t, CRLF, DetectEOL([]byte("a\r\nb\nc"), logger))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "inconsistent mixed EOL style", logs.All()[0].Message)

	assert.Equal(t, CRLF, DetectEOL([]byte("a\r\nb\r\n"), logger))
	assert.Equal(t, 1, logs.Len())

	DetectEOL([]byte("a\nb\r"), logger)
	assert.Equal(t, "inconsistent mixed EOL without CRLF", logs.All()[1].Message)
}

func TestDetectEncoding(t *testing.T) {
	assert.Equal(t, UTF8, DetectEncoding([]byte("plain")))
	assert.Equal(t, UTF8, DetectEncoding([]byte("grüße")))
	assert.Equal(t, UTF16, DetectEncoding([]byte{0xff, 0xfe, 'a', 0, 0xe4, 0}))
	assert.Equal(t, CP1252, DetectEncoding([]byte{'a', 0xe4, 'b'}))
	assert.Equal(t, CP1252, DetectEncoding([]byte("caf\xe9")))
	assert.Equal(t, ASCII, DetectEncoding([]byte{'a', 0x81, 0xe4}))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for _, enc := range []string{UTF8, UTF16, CP1252} {
		t.Run(enc, func(t *testing.T) {
			data, err := Encode("Grüße\nzusammen", enc)
			require.NoError(t, err)

			text, err := Decode(data, enc)
			require.NoError(t, err)
			assert.Equal(t, "Grüße\nzusammen", text)
		})
	}

	_, err := Decode([]byte{0xe4}, ASCII)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	l := NewLoader(nil, "")

	t.Run("neither filename nor content", func(t *testing.T) {
		text, err := l.Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, UTF8, text.Encoding)
		assert.Equal(t, LF, text.EOL)
		assert.Empty(t, text.Lines)
	})

	t.Run("empty content", func(t *testing.T) {
		text, err := l.Load("", []byte{})
		require.NoError(t, err)
		assert.Equal(t, "", text.EOL)
		assert.Equal(t, []string{}, text.Lines)
	})

	t.Run("crlf content", func(t *testing.T) {
		text, err := l.Load("", []byte("a\r\nb\r\n"))
		require.NoError(t, err)
		assert.Equal(t, CRLF, text.EOL)
		assert.Equal(t, []string{"a", "b", ""}, text.Lines)
	})

	t.Run("no eol splits as single line", func(t *testing.T) {
		text, err := l.Load("", []byte("single"))
		require.NoError(t, err)
		assert.Equal(t, "", text.EOL)
		assert.Equal(t, []string{"single"}, text.Lines)
	})

	t.Run("cp1252 content", func(t *testing.T) {
		text, err := l.Load("", []byte("caf\xe9\nna\xefve"))
		require.NoError(t, err)
		assert.Equal(t, CP1252, text.Encoding)
		assert.Equal(t, []string{"café", "naïve"}, text.Lines)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(path, []byte("x\ny"), 0644))

		text, err := l.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, text.Lines)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(filepath.Join(t.TempDir(), "missing"), nil)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
