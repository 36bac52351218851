package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"sos/internal/change"
	"sos/internal/errors"
	"sos/internal/glob"
	"sos/internal/merge"
	"sos/internal/textenc"
	"sos/shared/types"
	"sos/shared/utils"

	"go.uber.org/zap"
)

// Move renames every working tree file matching oldPattern as translated
// into newPattern. Renames are ordered so no file is overwritten before it
// has moved. A tracked oldPattern is replaced by newPattern.
func (r *Repo) Move(ctx context.Context, oldPattern, newPattern string) ([]glob.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.Current()
	if err != nil {
		return nil, err
	}

	opts := r.snapshotOptions(branch, nil)
	opts.Tracked = nil
	tree, err := change.Snapshot(ctx, r.Root, opts)
	if err != nil {
		return nil, err
	}

	names := glob.Select(oldPattern, utils.SortedKeys(tree))
	if len(names) == 0 {
		return nil, errors.Exit("No file matches '%s'", oldPattern)
	}

	ot, nt, err := glob.TokenizePatterns(oldPattern, newPattern)
	if err != nil {
		return nil, err
	}
	actions, err := glob.ConvertFiles(names, ot, nt)
	if err != nil {
		return nil, err
	}
	if target := glob.DuplicateTarget(actions); target != "" {
		return nil, errors.Exit("Several files would be moved onto '%s'", target)
	}
	actions, err = glob.ReorderRenameActions(actions, true)
	if err != nil {
		return nil, err
	}

	for _, a := range actions {
		if slices.Contains(names, a.Target) {
			continue
		}
		if _, err := os.Lstat(r.abs(a.Target)); err == nil {
			return nil, errors.Exit("Target '%s' already exists", a.Target)
		}
	}

	for _, a := range actions {
		if a.Source == a.Target {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(r.abs(a.Target)), 0755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", a.Target, err)
		}
		if err := os.Rename(r.abs(a.Source), r.abs(a.Target)); err != nil {
			return nil, fmt.Errorf("renaming %s: %w", a.Source, err)
		}
		r.Logger.Debug("renamed", zap.String("from", a.Source), zap.String("to", a.Target))
	}

	if i := slices.Index(branch.Tracked, oldPattern); i >= 0 {
		branch.Tracked[i] = newPattern
		if err := r.branches.Update(branch); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

// revisionFile looks up a path in a revision of the current branch
func (r *Repo) revisionFile(path string, revision int) (shared.PathInfo, error) {
	branch, err := r.Current()
	if err != nil {
		return shared.PathInfo{}, err
	}
	snapshot, err := r.Revision(branch.Number, revision)
	if err != nil {
		return shared.PathInfo{}, err
	}
	pinfo, ok := snapshot[path]
	if !ok {
		return shared.PathInfo{}, errors.Exit("'%s' is not part of revision %d of branch %s", path, revision, branch.Label())
	}
	return pinfo, nil
}

// Restore overwrites a working tree file with its content at a revision of
// the current branch. A negative revision selects the latest.
func (r *Repo) Restore(path string, revision int) error {
	pinfo, err := r.revisionFile(path, revision)
	if err != nil {
		return err
	}
	return r.restoreFile(path, pinfo)
}

func (r *Repo) restoreFile(path string, pinfo shared.PathInfo) error {
	dst := r.abs(path)
	if err := r.Safe.Restore(pinfo.HashOr(""), dst); err != nil {
		return fmt.Errorf("restoring %s: %w", path, err)
	}
	mtime := time.UnixMilli(pinfo.MTime)
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return fmt.Errorf("setting modification time of %s: %w", path, err)
	}
	return nil
}

// MergeFile merges the content of path at a revision of the current branch
// into the working tree file and writes the result back
func (r *Repo) MergeFile(path string, revision int, op shared.MergeOperation, res shared.ConflictResolution, prompter merge.ConflictPrompter) error {
	pinfo, err := r.revisionFile(path, revision)
	if err != nil {
		return err
	}
	theirs, err := r.Safe.Get(pinfo.HashOr(""))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	dst := r.abs(path)
	mine, err := os.ReadFile(dst)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	eol, err := r.Config.OutputEOL()
	if err != nil {
		return err
	}
	logger := r.Logger.Named("merge")
	merger := merge.NewMerger(logger, textenc.NewLoader(logger, r.Config.DefaultEncoding), prompter)
	merger.EOL = eol

	out, err := merger.Merge(merge.Input{File: theirs, Into: mine}, op, res)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, out, 0644)
}

// Watch reports working tree changes against the latest revision until ctx
// is done. Pending changes are reported right away.
func (r *Repo) Watch(ctx context.Context, onChange func(shared.ChangeSet)) error {
	branch, err := r.Current()
	if err != nil {
		return err
	}
	baseline, err := r.Revision(branch.Number, -1)
	if err != nil {
		return err
	}

	tracker, err := change.NewAutoTracker(r.Root, baseline, r.snapshotOptions(branch, nil), onChange)
	if err != nil {
		return err
	}
	defer tracker.Close()

	if _, err := tracker.Rescan(ctx); err != nil {
		return err
	}
	return tracker.Run(ctx)
}
