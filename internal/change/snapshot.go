package change

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"sos/internal/glob"
	"sos/internal/logging"
	"sos/internal/safe"
	"sos/shared/types"
	"sos/shared/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetaDir holds the repository metadata and is never snapshotted
const MetaDir = ".sos"

// SnapshotOptions controls which files a snapshot covers and how they are hashed
type SnapshotOptions struct {
	Ignores    []string // file name globs to skip
	IgnoreDirs []string // directory names to skip
	Tracked    []string // when set, only paths matching one of these globs
	Previous   map[string]shared.PathInfo
	Strict     bool // re-hash even when size and mtime are unchanged
	Workers    int
	Logger     *zap.Logger
}

// Filter reports whether a slash-separated relative path is part of snapshots
func (o SnapshotOptions) Filter(rel string) bool {
	if glob.MatchAny(o.Ignores, rel) {
		return false
	}
	if len(o.Tracked) > 0 && !glob.MatchAny(o.Tracked, rel) {
		return false
	}
	return true
}

func (o SnapshotOptions) ignoreDir(name string) bool {
	return name == MetaDir || slices.Contains(o.IgnoreDirs, name)
}

// covers reports whether a snapshot would walk to rel and include it
func (o SnapshotOptions) covers(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if o.ignoreDir(dir) {
			return false
		}
	}
	return o.Filter(rel)
}

// Snapshot walks the tree under root and returns the state of every included
// file. Files unchanged in size and mtime since Previous keep their old info.
// Paths of Previous that are gone get deletion markers, unless the options
// exclude them.
func Snapshot(ctx context.Context, root string, opts SnapshotOptions) (map[string]shared.PathInfo, error) {
	logger := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		result = make(map[string]shared.PathInfo)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if d.IsDir() {
			if p != root && opts.ignoreDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !opts.Filter(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		size, mtime := info.Size(), info.ModTime().UnixMilli()

		if prev, ok := opts.Previous[rel]; ok && !opts.Strict && !prev.Deleted() &&
			prev.SizeOr(-1) == size && prev.MTime == mtime {
			mu.Lock()
			result[rel] = prev
			mu.Unlock()
			return nil
		}

		g.Go(func() error {
			hash, _, err := safe.HashFile(p, false, "")
			if err != nil {
				return fmt.Errorf("hashing %s: %w", rel, err)
			}
			mu.Lock()
			result[rel] = shared.NewPathInfo(utils.HashStr(rel), size, mtime, hash)
			mu.Unlock()
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	for rel, prev := range opts.Previous {
		if _, ok := result[rel]; ok || prev.Deleted() || !opts.covers(rel) {
			continue
		}
		result[rel] = shared.DeletedPathInfo(prev.NameHash, prev.MTime)
	}

	logger.Debug("snapshot taken", zap.String("root", root), zap.Int("paths", len(result)))
	return result, nil
}

// Stat builds the info of a single file relative to root
func Stat(root, rel string) (shared.PathInfo, error) {
	p := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil {
		return shared.PathInfo{}, err
	}
	hash, _, err := safe.HashFile(p, false, "")
	if err != nil {
		return shared.PathInfo{}, err
	}
	return shared.NewPathInfo(utils.HashStr(rel), info.Size(), info.ModTime().UnixMilli(), hash), nil
}
