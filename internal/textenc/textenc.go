// Package textenc detects text encodings and end-of-line conventions and
// splits byte buffers into lines for diffing and merging.
package textenc

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"sos/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	LF   = "\n"
	CRLF = "\r\n"
	CR   = "\r"
)

// Encoding names produced by DetectEncoding
const (
	UTF8   = "utf-8"
	UTF16  = "utf-16"
	CP1252 = "cp1252"
	ASCII  = "ascii"
)

// bytes left undefined by windows-1252
var cp1252Undefined = []byte{0x81, 0x8d, 0x8f, 0x90, 0x9d}

// DetectEOL returns the dominant end-of-line marker of data, or "" when none
// can be determined. Mixed styles are reported as warnings.
func DetectEOL(data []byte, logger *zap.Logger) string {
	lf := bytes.Count(data, []byte(LF))
	cr := bytes.Count(data, []byte(CR))
	crlf := bytes.Count(data, []byte(CRLF))

	if crlf > 0 {
		if lf != crlf || cr != crlf {
			logging.OrNop(logger).Warn("inconsistent mixed EOL style",
				zap.Int("lf", lf), zap.Int("cr", cr), zap.Int("crlf", crlf))
		}
		return CRLF
	}
	if lf != 0 && cr != 0 {
		logging.OrNop(logger).Warn("inconsistent mixed EOL without CRLF",
			zap.Int("lf", lf), zap.Int("cr", cr))
	}
	switch {
	case lf > cr:
		return LF
	case cr > lf:
		return CR
	}
	return ""
}

// DetectEncoding guesses the encoding of data: UTF-8, then BOM-marked UTF-16,
// then CP1252, and ASCII as the last resort.
func DetectEncoding(data []byte) string {
	if utf8.Valid(data) {
		return UTF8
	}
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		if len(data)%2 == 0 {
			if _, err := utf16().NewDecoder().Bytes(data); err == nil {
				return UTF16
			}
		}
	}
	if !cp1252Invalid(data) {
		return CP1252
	}
	return ASCII
}

// cp1252Invalid reports whether data holds a byte CP1252 leaves unassigned
func cp1252Invalid(data []byte) bool {
	return slices.ContainsFunc(data, func(b byte) bool {
		return bytes.IndexByte(cp1252Undefined, b) >= 0
	})
}

func utf16() encoding.Encoding {
	return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
}

// Decode converts data in the named encoding to a Go string
func Decode(data []byte, enc string) (string, error) {
	switch strings.ToLower(enc) {
	case UTF8, "utf8":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid %s content", UTF8)
		}
		return string(data), nil
	case UTF16, "utf16":
		out, err := utf16().NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding %s: %w", UTF16, err)
		}
		return string(out), nil
	case CP1252, "windows-1252":
		if cp1252Invalid(data) {
			return "", fmt.Errorf("invalid %s content", CP1252)
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding %s: %w", CP1252, err)
		}
		return string(out), nil
	case ASCII:
		for i, b := range data {
			if b >= 0x80 {
				return "", fmt.Errorf("non-ascii byte 0x%02x at offset %d", b, i)
			}
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported encoding %q", enc)
}

// Encode converts text back into the named encoding
func Encode(text string, enc string) ([]byte, error) {
	switch strings.ToLower(enc) {
	case UTF8, "utf8", ASCII, "":
		return []byte(text), nil
	case UTF16, "utf16":
		return utf16().NewEncoder().Bytes([]byte(text))
	case CP1252, "windows-1252":
		return charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	}
	return nil, fmt.Errorf("unsupported encoding %q", enc)
}

// Text is a decoded buffer split into lines
type Text struct {
	Encoding string
	EOL      string // detected marker, "" when undetectable
	Lines    []string
}

// Loader reads files or buffers into Text
type Loader struct {
	Logger          *zap.Logger
	DefaultEncoding string
}

func NewLoader(logger *zap.Logger, defaultEncoding string) *Loader {
	if defaultEncoding == "" {
		defaultEncoding = UTF8
	}
	return &Loader{Logger: logging.OrNop(logger), DefaultEncoding: defaultEncoding}
}

// Load decodes the file at filename, or content when filename is empty.
// With neither, it returns the default encoding, LF and no lines.
func (l *Loader) Load(filename string, content []byte) (Text, error) {
	def := l.DefaultEncoding
	if def == "" {
		def = UTF8
	}

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return Text{}, err
		}
		content = data
	} else if content == nil {
		return Text{Encoding: def, EOL: LF}, nil
	}

	enc := DetectEncoding(content)
	eol := DetectEOL(content, l.Logger)

	text, err := Decode(content, enc)
	if err != nil {
		return Text{}, err
	}

	return Text{Encoding: enc, EOL: eol, Lines: SplitLines(text, eol)}, nil
}

// SplitLines splits text on eol (LF when eol is empty). Empty text has no lines.
func SplitLines(text, eol string) []string {
	if text == "" {
		return []string{}
	}
	if eol == "" {
		eol = LF
	}
	return strings.Split(text, eol)
}

// Name returns a printable name for an EOL marker
func Name(eol string) string {
	switch eol {
	case LF:
		return "LF"
	case CRLF:
		return "CRLF"
	case CR:
		return "CR"
	}
	return "none"
}
