// internal/safe/hash.go
package safe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ChunkSize bounds memory use while hashing arbitrarily large files
const ChunkSize = 1 << 20

// HashFile computes the SHA-256 of the file at path. When saveTo is set the
// content is streamed into a new file there, zstd-compressed if compress is
// true, and the size of that file is returned; otherwise the size is 0.
func HashFile(path string, compress bool, saveTo string) (string, int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	h := sha256.New()

	var (
		out  *os.File
		sink io.Writer
		enc  *zstd.Encoder
	)
	if saveTo != "" {
		out, err = os.Create(saveTo)
		if err != nil {
			return "", 0, err
		}
		defer out.Close()
		sink = out

		if compress {
			enc, err = zstd.NewWriter(out, zstd.WithEncoderConcurrency(1))
			if err != nil {
				return "", 0, fmt.Errorf("creating encoder: %w", err)
			}
			sink = enc
		}
	}

	buf := make([]byte, ChunkSize)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			if sink != nil {
				if _, err := sink.Write(buf[:n]); err != nil {
					if enc != nil {
						enc.Close()
					}
					return "", 0, fmt.Errorf("writing %s: %w", saveTo, err)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if enc != nil {
				enc.Close()
			}
			return "", 0, rerr
		}
	}

	hash := hex.EncodeToString(h.Sum(nil))
	if out == nil {
		return hash, 0, nil
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return "", 0, fmt.Errorf("finalizing compression: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}

	info, err := os.Stat(saveTo)
	if err != nil {
		return "", 0, err
	}
	return hash, info.Size(), nil
}
