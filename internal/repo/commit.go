package repo

import (
	"context"
	"fmt"
	"time"

	"sos/internal/change"
	"sos/internal/errors"
	"sos/shared/types"
	"sos/shared/utils"

	"go.uber.org/zap"
)

// Current returns the checked out branch
func (r *Repo) Current() (shared.BranchInfo, error) {
	st, err := r.state.Get("current")
	if err != nil {
		return shared.BranchInfo{}, fmt.Errorf("reading repository state: %w", err)
	}
	return r.branches.Get(fmt.Sprintf("%d", st.Branch))
}

// Log lists the revisions of a branch, oldest first
func (r *Repo) Log(branch int) ([]shared.CommitInfo, error) {
	return r.commits.ListPrefix(fmt.Sprintf("%d:", branch))
}

// Revision replays the change sets of a branch up to and including revision
// number. A negative number selects the latest revision.
func (r *Repo) Revision(branch, number int) (map[string]shared.PathInfo, error) {
	log, err := r.Log(branch)
	if err != nil {
		return nil, err
	}
	if number < 0 && len(log) > 0 {
		number = log[len(log)-1].Number
	}

	snapshot := map[string]shared.PathInfo{}
	found := false
	for _, commit := range log {
		if commit.Number > number {
			break
		}
		rc, err := r.changes.Get(commit.GetID())
		if err != nil {
			return nil, fmt.Errorf("reading changes of revision %s: %w", commit.GetID(), err)
		}
		snapshot = change.Apply(snapshot, rc.Changes)
		found = commit.Number == number
	}
	if !found && len(log) > 0 {
		return nil, errors.Exit("Unknown revision %d of branch %d", number, branch)
	}
	return snapshot, nil
}

// Status compares the working tree with the latest revision of the current branch
func (r *Repo) Status(ctx context.Context) (shared.ChangeSet, error) {
	branch, err := r.Current()
	if err != nil {
		return shared.ChangeSet{}, err
	}
	changes, _, err := r.status(ctx, branch)
	return changes, err
}

func (r *Repo) status(ctx context.Context, branch shared.BranchInfo) (shared.ChangeSet, map[string]shared.PathInfo, error) {
	last, err := r.Revision(branch.Number, -1)
	if err != nil {
		return shared.ChangeSet{}, nil, err
	}
	current, err := change.Snapshot(ctx, r.Root, r.snapshotOptions(branch, last))
	if err != nil {
		return shared.ChangeSet{}, nil, err
	}
	return change.DiffPathSets(last, current), current, nil
}

// Commit records the working tree changes as a new revision of the current branch
func (r *Repo) Commit(ctx context.Context, message string) (shared.CommitInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.Current()
	if err != nil {
		return shared.CommitInfo{}, err
	}

	changes, _, err := r.status(ctx, branch)
	if err != nil {
		return shared.CommitInfo{}, err
	}
	if changes.Empty() {
		return shared.CommitInfo{}, errors.Exit("Nothing to commit")
	}
	return r.record(branch, changes, message)
}

// commitTree records the whole tree of a fresh branch as its first revision
func (r *Repo) commitTree(branch shared.BranchInfo, message string, allowEmpty bool) (shared.CommitInfo, error) {
	current, err := change.Snapshot(context.Background(), r.Root, r.snapshotOptions(branch, nil))
	if err != nil {
		return shared.CommitInfo{}, err
	}
	changes := change.DiffPathSets(nil, current)
	if changes.Empty() && !allowEmpty {
		return shared.CommitInfo{}, errors.Exit("Nothing to commit")
	}
	return r.record(branch, changes, message)
}

// record stores the blobs of added and modified files and persists the
// change set under the next revision number
func (r *Repo) record(branch shared.BranchInfo, changes shared.ChangeSet, message string) (shared.CommitInfo, error) {
	for _, m := range []map[string]shared.PathInfo{changes.Additions, changes.Modifications} {
		for _, path := range utils.SortedKeys(m) {
			pinfo := m[path]
			if pinfo.Deleted() {
				continue
			}
			meta, err := r.Safe.StoreFile(r.abs(path), r.Config.Compress)
			if err != nil {
				return shared.CommitInfo{}, fmt.Errorf("storing %s: %w", path, err)
			}
			if hash := pinfo.HashOr(""); hash != meta.Hash {
				r.Logger.Warn("file changed while committing", zap.String("path", path))
				m[path] = shared.NewPathInfo(pinfo.NameHash, meta.Size, pinfo.MTime, meta.Hash)
			}
		}
	}

	log, err := r.Log(branch.Number)
	if err != nil {
		return shared.CommitInfo{}, err
	}
	number := 0
	if len(log) > 0 {
		number = log[len(log)-1].Number + 1
	}

	commit := shared.CommitInfo{Branch: branch.Number, Number: number, CTime: time.Now().UnixMilli()}
	if message != "" {
		commit.Message = &message
	}
	if err := r.changes.Put(revisionChanges{Branch: branch.Number, Number: number, Changes: changes}); err != nil {
		return shared.CommitInfo{}, fmt.Errorf("storing change set: %w", err)
	}
	if err := r.commits.Create(commit); err != nil {
		return shared.CommitInfo{}, fmt.Errorf("storing commit: %w", err)
	}

	if !branch.InSync {
		branch.InSync = true
		if err := r.branches.Update(branch); err != nil {
			return shared.CommitInfo{}, err
		}
	}

	r.Logger.Info("revision committed",
		zap.String("branch", branch.Label()),
		zap.Int("revision", number),
		zap.Int("changes", changes.Len()))
	return commit, nil
}
