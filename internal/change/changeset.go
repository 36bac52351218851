// Package change computes change sets between path snapshots and takes
// snapshots of a working tree.
package change

import (
	"fmt"

	"sos/shared/types"
)

// DiffPathSets computes the change set that turns last into diff.
//
// Only paths present in diff are considered: a path missing from diff is not
// a deletion, deletions must be passed as markers (nil Size). A marker in last
// that reappears in diff is reported as an addition of the last entry.
func DiffPathSets(last, diff map[string]shared.PathInfo) shared.ChangeSet {
	changes := shared.NewChangeSet()

	for path, pinfo := range last {
		vs, ok := diff[path]
		if !ok {
			continue
		}
		if vs.Deleted() {
			changes.Deletions[path] = pinfo
			continue
		}
		if pinfo.Deleted() {
			changes.Additions[path] = pinfo
			continue
		}
		if !pinfo.SameContent(vs) {
			changes.Modifications[path] = vs
		}
	}

	for path, pinfo := range diff {
		if _, ok := last[path]; !ok {
			changes.Additions[path] = pinfo
		}
	}

	for path := range changes.Additions {
		if _, ok := changes.Deletions[path]; ok {
			panic(fmt.Sprintf("path %q is both added and deleted", path))
		}
	}

	return changes
}

// Apply returns a copy of snapshot with the change set applied.
// Deleted paths are removed instead of kept as markers.
func Apply(snapshot map[string]shared.PathInfo, changes shared.ChangeSet) map[string]shared.PathInfo {
	out := make(map[string]shared.PathInfo, len(snapshot)+len(changes.Additions))
	for path, pinfo := range snapshot {
		out[path] = pinfo
	}
	for _, m := range []map[string]shared.PathInfo{changes.Additions, changes.Modifications} {
		for path, pinfo := range m {
			if pinfo.Deleted() {
				delete(out, path)
				continue
			}
			out[path] = pinfo
		}
	}
	for path := range changes.Deletions {
		delete(out, path)
	}
	return out
}

// Compact drops deletion markers from a snapshot
func Compact(snapshot map[string]shared.PathInfo) map[string]shared.PathInfo {
	out := make(map[string]shared.PathInfo, len(snapshot))
	for path, pinfo := range snapshot {
		if !pinfo.Deleted() {
			out[path] = pinfo
		}
	}
	return out
}
