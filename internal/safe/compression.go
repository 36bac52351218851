package safe

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// PackPolicy decides which blobs are stored zstd-packed
type PackPolicy struct {
	MinSize int64    // smaller files are stored as is
	Packed  []string // extensions of formats that are already compressed
}

func DefaultPackPolicy() PackPolicy {
	return PackPolicy{
		MinSize: 64,
		Packed: []string{
			".7z", ".bz2", ".gz", ".xz", ".zip", ".zst",
			".gif", ".jpeg", ".jpg", ".png", ".webp",
			".avi", ".mkv", ".mp3", ".mp4",
			".docx", ".pdf", ".xlsx",
		},
	}
}

// worth reports whether packing a file of the given name and size pays off
func (p PackPolicy) worth(name string, size int64) bool {
	if size < p.MinSize {
		return false
	}
	return !slices.Contains(p.Packed, strings.ToLower(filepath.Ext(name)))
}

// unpacker reuses zstd decoders across blob reads
type unpacker struct {
	pool sync.Pool
}

func newUnpacker() (*unpacker, error) {
	probe, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	u := &unpacker{}
	u.pool.Put(probe)
	u.pool.New = func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	}
	return u, nil
}

func (u *unpacker) all(blob []byte) ([]byte, error) {
	d := u.pool.Get().(*zstd.Decoder)
	defer u.pool.Put(d)
	return d.DecodeAll(blob, nil)
}

// stream decodes r into w on a decoder of its own; pooled decoders only
// serve DecodeAll
func (u *unpacker) stream(w io.Writer, r io.Reader) error {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("zstd decoder: %w", err)
	}
	defer d.Close()

	if _, err := io.Copy(w, d); err != nil {
		return fmt.Errorf("unpacking: %w", err)
	}
	return nil
}
