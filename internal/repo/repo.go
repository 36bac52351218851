// internal/repo/repo.go
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sos/internal/change"
	"sos/internal/config"
	"sos/internal/errors"
	"sos/internal/logging"
	"sos/internal/safe"
	"sos/internal/storage"
	"sos/shared/types"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	dbDir      = "db"
	blobDir    = "blobs"
	configFile = "config.yaml"

	// TrunkName is the name of the branch created by Init
	TrunkName = "trunk"
)

// state is the single record describing the checked out branch
type state struct {
	Branch  int    `json:"branch"`
	Version string `json:"version"`
	Created int64  `json:"created"`
}

func (s state) GetID() string { return "current" }

// revisionChanges is the change set recorded by one commit
type revisionChanges struct {
	Branch  int              `json:"branch"`
	Number  int              `json:"number"`
	Changes shared.ChangeSet `json:"changes"`
}

func (r revisionChanges) GetID() string {
	return shared.CommitInfo{Branch: r.Branch, Number: r.Number}.GetID()
}

// Repo is an offline repository rooted at a working tree
type Repo struct {
	Root   string
	Config *config.Config
	DB     *badger.DB
	Safe   *safe.Safe
	Logger *zap.Logger

	branches *storage.BadgerStore[shared.BranchInfo]
	commits  *storage.BadgerStore[shared.CommitInfo]
	changes  *storage.BadgerStore[revisionChanges]
	state    *storage.BadgerStore[state]

	mu sync.Mutex
}

func metaDir(root string) string {
	return filepath.Join(root, change.MetaDir)
}

// FindRoot searches startDir and its parents for a repository
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(metaDir(dir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NotFound(fmt.Sprintf("no repository found at or above %s", startDir))
}

// Init creates a repository in root, records the current tree as revision 0
// of the trunk branch and returns the opened repository
func Init(root string, cfg *config.Config, logger *zap.Logger) (*Repo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if _, err := os.Stat(metaDir(absRoot)); err == nil {
		return nil, errors.Exit("Repository already exists in %s", absRoot)
	}

	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{dbDir, blobDir} {
		if err := os.MkdirAll(filepath.Join(metaDir(absRoot), dir), 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := cfg.Save(filepath.Join(metaDir(absRoot), configFile)); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	r, err := open(absRoot, cfg, logger)
	if err != nil {
		return nil, err
	}

	name := TrunkName
	trunk := shared.BranchInfo{Number: 0, CTime: time.Now().UnixMilli(), Name: &name, InSync: true}
	if err := r.branches.Create(trunk); err != nil {
		r.Close()
		return nil, fmt.Errorf("creating trunk: %w", err)
	}
	if err := r.state.Put(state{Branch: 0, Version: "1", Created: trunk.CTime}); err != nil {
		r.Close()
		return nil, fmt.Errorf("storing state: %w", err)
	}

	if _, err := r.commitTree(trunk, "Offline repository created", true); err != nil {
		r.Close()
		return nil, err
	}

	r.Logger.Info("repository initialized", zap.String("root", absRoot))
	return r, nil
}

// Open opens the repository rooted at root
func Open(root string, logger *zap.Logger) (*Repo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if _, err := os.Stat(metaDir(absRoot)); err != nil {
		return nil, errors.NotFound(fmt.Sprintf("no repository in %s", absRoot))
	}

	cfg, err := config.LoadDir(metaDir(absRoot))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return open(absRoot, cfg, logger)
}

func open(root string, cfg *config.Config, logger *zap.Logger) (*Repo, error) {
	logger = logging.OrNop(logger)

	opts := badger.DefaultOptions(filepath.Join(metaDir(root), dbDir))
	opts.Logger = nil // Disable logging noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	contentSafe, err := safe.New(db, safe.Options{
		Root:      filepath.Join(metaDir(root), blobDir),
		CacheSize: cfg.CacheSize,
		Logger:    logger.Named("safe"),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing content safe: %w", err)
	}

	return &Repo{
		Root:     root,
		Config:   cfg,
		DB:       db,
		Safe:     contentSafe,
		Logger:   logger,
		branches: storage.NewBadgerStore[shared.BranchInfo](db, "branch"),
		commits:  storage.NewBadgerStore[shared.CommitInfo](db, "commit"),
		changes:  storage.NewBadgerStore[revisionChanges](db, "changes"),
		state:    storage.NewBadgerStore[state](db, "repo"),
	}, nil
}

func (r *Repo) Close() error {
	return r.DB.Close()
}

// snapshotOptions builds the walk settings for a branch
func (r *Repo) snapshotOptions(branch shared.BranchInfo, previous map[string]shared.PathInfo) change.SnapshotOptions {
	return change.SnapshotOptions{
		Ignores:    r.Config.Ignores,
		IgnoreDirs: r.Config.IgnoreDirs,
		Tracked:    branch.Tracked,
		Previous:   previous,
		Strict:     r.Config.Strict,
		Workers:    r.Config.Workers,
		Logger:     r.Logger.Named("snapshot"),
	}
}

func (r *Repo) abs(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}
