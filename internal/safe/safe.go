package safe

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sos/internal/logging"
	"sos/shared/utils"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidHash     = errors.New("invalid content hash")
)

const metaPrefix = "blob:"

// BlobMeta stores metadata about a stored blob
type BlobMeta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`        // original size
	StoredSize int64     `json:"stored_size"` // size on disk
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Safe is a content-addressed, deduplicated blob store
type Safe struct {
	root   string                     // Root directory for blob files
	db     *badger.DB                 // Metadata database
	cache  *lru.Cache[string, []byte] // Decoded content cache
	mu     sync.Mutex
	pack   PackPolicy
	unpack *unpacker
	logger *zap.Logger
}

// Options for New; a nil Pack uses DefaultPackPolicy
type Options struct {
	Root      string // blob directory
	CacheSize int    // decoded blobs kept in memory
	Pack      *PackPolicy
	Logger    *zap.Logger
}

// New opens a safe over db that keeps its blob files below opts.Root
func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}

	if err := os.MkdirAll(filepath.Join(opts.Root, "tmp"), 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	pack := DefaultPackPolicy()
	if opts.Pack != nil {
		pack = *opts.Pack
	}
	unpack, err := newUnpacker()
	if err != nil {
		return nil, err
	}

	return &Safe{
		root:   opts.Root,
		db:     db,
		cache:  cache,
		pack:   pack,
		unpack: unpack,
		logger: logging.OrNop(opts.Logger),
	}, nil
}

// StoreFile copies the file at path into the safe and returns its metadata.
// Content that is already present only gains a reference.
func (s *Safe) StoreFile(path string, compress bool) (BlobMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return BlobMeta{}, err
	}
	compress = compress && s.pack.worth(path, info.Size())

	tmp := filepath.Join(s.root, "tmp", uuid.NewString())
	hash, stored, err := HashFile(path, compress, tmp)
	if err != nil {
		os.Remove(tmp)
		return BlobMeta{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err == nil {
		os.Remove(tmp)
		meta.RefCount++
		if err := s.storeMeta(meta); err != nil {
			return BlobMeta{}, fmt.Errorf("incrementing ref count: %w", err)
		}
		return meta, nil
	}
	if !errors.Is(err, ErrContentNotFound) {
		os.Remove(tmp)
		return BlobMeta{}, fmt.Errorf("checking existence: %w", err)
	}

	contentPath := s.contentPath(hash)
	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		os.Remove(tmp)
		return BlobMeta{}, fmt.Errorf("creating content directory: %w", err)
	}
	if err := os.Rename(tmp, contentPath); err != nil {
		os.Remove(tmp)
		return BlobMeta{}, fmt.Errorf("moving blob into place: %w", err)
	}

	meta = BlobMeta{
		Hash:       hash,
		Size:       info.Size(),
		StoredSize: stored,
		RefCount:   1,
		Compressed: compress,
		CreatedAt:  time.Now(),
	}
	if err := s.storeMeta(meta); err != nil {
		// drop the orphaned blob
		os.Remove(contentPath)
		return BlobMeta{}, fmt.Errorf("storing metadata: %w", err)
	}

	s.logger.Debug("stored blob",
		zap.String("hash", hash),
		zap.Int64("size", meta.Size),
		zap.Int64("stored", stored),
		zap.Bool("compressed", compress))
	return meta, nil
}

// Get returns the decoded content of a blob, verifying its hash
func (s *Safe) Get(hash string) ([]byte, error) {
	if !s.isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, fmt.Errorf("getting metadata: %w", err)
	}

	content, err := os.ReadFile(s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if meta.Compressed {
		content, err = s.unpack.all(content)
		if err != nil {
			return nil, fmt.Errorf("decompressing content: %w", err)
		}
	}

	if utils.HashContent(content) != hash {
		return nil, fmt.Errorf("content hash mismatch")
	}

	s.cache.Add(hash, content)
	return content, nil
}

// Restore writes the content of a blob to dst, replacing any existing file
func (s *Safe) Restore(hash, dst string) error {
	if !s.isValidHash(hash) {
		return ErrInvalidHash
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return fmt.Errorf("getting metadata: %w", err)
	}

	in, err := os.Open(s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrContentNotFound
		}
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}
	tmp := dst + "." + uuid.NewString()[:8] + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if meta.Compressed {
		err = s.unpack.stream(out, in)
	} else {
		_, err = io.Copy(out, in)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("restoring %s: %w", dst, err)
	}

	return os.Rename(tmp, dst)
}

// Delete drops one reference and removes the blob when none remain
func (s *Safe) Delete(hash string) error {
	if !s.isValidHash(hash) {
		return ErrInvalidHash
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err != nil {
		return fmt.Errorf("getting metadata: %w", err)
	}

	meta.RefCount--
	if meta.RefCount > 0 {
		return s.storeMeta(meta)
	}

	if err := os.Remove(s.contentPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing content file: %w", err)
	}
	if err := s.deleteMeta(hash); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	s.cache.Remove(hash)
	return nil
}

// Exists reports whether metadata for hash is present
func (s *Safe) Exists(hash string) (bool, error) {
	if !s.isValidHash(hash) {
		return false, ErrInvalidHash
	}

	if s.cache.Contains(hash) {
		return true, nil
	}

	_, err := s.getMeta(hash)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Meta returns the stored metadata of a blob
func (s *Safe) Meta(hash string) (BlobMeta, error) {
	if !s.isValidHash(hash) {
		return BlobMeta{}, ErrInvalidHash
	}
	return s.getMeta(hash)
}

// Verify re-reads a blob from disk and checks its hash
func (s *Safe) Verify(hash string) error {
	s.cache.Remove(hash)
	_, err := s.Get(hash)
	return err
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func (s *Safe) isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

func (s *Safe) storeMeta(meta BlobMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+meta.Hash), data)
	})
}

func (s *Safe) getMeta(hash string) (BlobMeta, error) {
	var meta BlobMeta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + hash))
		if err == badger.ErrKeyNotFound {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	return meta, err
}

func (s *Safe) deleteMeta(hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(metaPrefix + hash))
	})
}
