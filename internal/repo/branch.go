package repo

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"sos/internal/errors"
	"sos/shared/types"
	"sos/shared/utils"

	"go.uber.org/zap"
)

// Branches lists all branches by number
func (r *Repo) Branches() ([]shared.BranchInfo, error) {
	branches, err := r.branches.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Number < branches[j].Number })
	return branches, nil
}

// Branch finds a branch by name, by number or by "b<number>"
func (r *Repo) Branch(ref string) (shared.BranchInfo, error) {
	branches, err := r.Branches()
	if err != nil {
		return shared.BranchInfo{}, err
	}
	for _, b := range branches {
		if b.Name != nil && *b.Name == ref {
			return b, nil
		}
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "b")); err == nil {
		for _, b := range branches {
			if b.Number == n {
				return b, nil
			}
		}
	}
	return shared.BranchInfo{}, errors.Exit("Unknown branch '%s'", ref)
}

// CreateBranch forks the latest revision of the current branch into a new
// branch and checks it out. The working tree is left untouched.
func (r *Repo) CreateBranch(ctx context.Context, name string) (shared.BranchInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if _, err := r.Branch(name); err == nil {
			return shared.BranchInfo{}, errors.Exit("Branch '%s' already exists", name)
		}
	}

	current, err := r.Current()
	if err != nil {
		return shared.BranchInfo{}, err
	}
	branches, err := r.Branches()
	if err != nil {
		return shared.BranchInfo{}, err
	}

	pending, _, err := r.status(ctx, current)
	if err != nil {
		return shared.BranchInfo{}, err
	}

	fork := shared.BranchInfo{
		Number:  branches[len(branches)-1].Number + 1,
		CTime:   time.Now().UnixMilli(),
		InSync:  pending.Empty(),
		Tracked: slices.Clone(current.Tracked),
	}
	if name != "" {
		fork.Name = &name
	}
	if err := r.branches.Create(fork); err != nil {
		return shared.BranchInfo{}, fmt.Errorf("creating branch: %w", err)
	}

	snapshot, err := r.Revision(current.Number, -1)
	if err != nil {
		return shared.BranchInfo{}, err
	}
	changes := shared.NewChangeSet()
	for path, pinfo := range snapshot {
		changes.Additions[path] = pinfo
	}
	rc := revisionChanges{Branch: fork.Number, Number: 0, Changes: changes}
	if err := r.changes.Put(rc); err != nil {
		return shared.BranchInfo{}, fmt.Errorf("storing change set: %w", err)
	}
	message := fmt.Sprintf("Branched from %s", current.Label())
	commit := shared.CommitInfo{Branch: fork.Number, Number: 0, CTime: fork.CTime, Message: &message}
	if err := r.commits.Create(commit); err != nil {
		return shared.BranchInfo{}, fmt.Errorf("storing commit: %w", err)
	}

	if err := r.checkout(fork); err != nil {
		return shared.BranchInfo{}, err
	}
	r.Logger.Info("branch created", zap.String("branch", fork.Label()), zap.String("from", current.Label()))
	return fork, nil
}

// Switch checks out the latest revision of another branch. Uncommitted
// changes are refused unless force is set, in which case they are lost.
func (r *Repo) Switch(ctx context.Context, ref string, force bool) (shared.BranchInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.Branch(ref)
	if err != nil {
		return shared.BranchInfo{}, err
	}
	current, err := r.Current()
	if err != nil {
		return shared.BranchInfo{}, err
	}

	if !force {
		pending, _, err := r.status(ctx, current)
		if err != nil {
			return shared.BranchInfo{}, err
		}
		if !pending.Empty() {
			return shared.BranchInfo{}, errors.Exit("Cannot switch with %d uncommitted changes, commit them or use --force", pending.Len())
		}
	}

	from, err := r.Revision(current.Number, -1)
	if err != nil {
		return shared.BranchInfo{}, err
	}
	to, err := r.Revision(target.Number, -1)
	if err != nil {
		return shared.BranchInfo{}, err
	}

	for _, path := range utils.SortedKeys(from) {
		if _, ok := to[path]; ok {
			continue
		}
		if err := os.Remove(r.abs(path)); err != nil && !os.IsNotExist(err) {
			return shared.BranchInfo{}, fmt.Errorf("removing %s: %w", path, err)
		}
	}
	for _, path := range utils.SortedKeys(to) {
		pinfo := to[path]
		if old, ok := from[path]; ok && old.SameContent(pinfo) && !force {
			continue
		}
		if err := r.restoreFile(path, pinfo); err != nil {
			return shared.BranchInfo{}, err
		}
	}

	if err := r.checkout(target); err != nil {
		return shared.BranchInfo{}, err
	}
	r.Logger.Info("switched branch", zap.String("from", current.Label()), zap.String("to", target.Label()))
	return target, nil
}

func (r *Repo) checkout(branch shared.BranchInfo) error {
	st, err := r.state.Get("current")
	if err != nil {
		return err
	}
	st.Branch = branch.Number
	return r.state.Put(st)
}

// Track adds file patterns to the tracked patterns of the current branch.
// A branch without patterns tracks every file.
func (r *Repo) Track(patterns ...string) (shared.BranchInfo, error) {
	return r.updateTracked(func(tracked []string) []string {
		for _, p := range patterns {
			if !slices.Contains(tracked, p) {
				tracked = append(tracked, p)
			}
		}
		return tracked
	})
}

// Untrack removes file patterns from the current branch
func (r *Repo) Untrack(patterns ...string) (shared.BranchInfo, error) {
	branch, err := r.Current()
	if err != nil {
		return branch, err
	}
	for _, p := range patterns {
		if !slices.Contains(branch.Tracked, p) {
			return branch, errors.Exit("Pattern '%s' is not tracked", p)
		}
	}
	return r.updateTracked(func(tracked []string) []string {
		return slices.DeleteFunc(tracked, func(t string) bool { return slices.Contains(patterns, t) })
	})
}

func (r *Repo) updateTracked(update func([]string) []string) (shared.BranchInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.Current()
	if err != nil {
		return branch, err
	}
	branch.Tracked = update(slices.Clone(branch.Tracked))
	if err := r.branches.Update(branch); err != nil {
		return branch, err
	}
	return branch, nil
}
