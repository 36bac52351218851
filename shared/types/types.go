// Package shared holds the value types exchanged between the sos packages.
package shared

import (
	"fmt"
	"strings"
)

// PathInfo is the state of one path at a point in time.
// A nil Size marks the path as deleted in that revision; Hash is set iff Size is.
type PathInfo struct {
	NameHash string  `json:"name_hash"`
	Size     *int64  `json:"size"`
	MTime    int64   `json:"mtime"`
	Hash     *string `json:"hash"`
}

// NewPathInfo creates the info of an existing file
func NewPathInfo(nameHash string, size, mtime int64, hash string) PathInfo {
	return PathInfo{
		NameHash: nameHash,
		Size:     &size,
		MTime:    mtime,
		Hash:     &hash,
	}
}

// DeletedPathInfo creates a deletion marker
func DeletedPathInfo(nameHash string, mtime int64) PathInfo {
	return PathInfo{NameHash: nameHash, MTime: mtime}
}

// Deleted reports whether the info is a deletion marker
func (p PathInfo) Deleted() bool {
	return p.Size == nil
}

// SizeOr returns the size or def for deletion markers
func (p PathInfo) SizeOr(def int64) int64 {
	if p.Size == nil {
		return def
	}
	return *p.Size
}

// HashOr returns the content hash or def for deletion markers
func (p PathInfo) HashOr(def string) string {
	if p.Hash == nil {
		return def
	}
	return *p.Hash
}

// SameContent compares size, mtime and hash of two infos.
func (p PathInfo) SameContent(o PathInfo) bool {
	return equalPtr(p.Size, o.Size) && p.MTime == o.MTime && equalPtr(p.Hash, o.Hash)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ChangeSet is the difference between two path snapshots
type ChangeSet struct {
	Additions     map[string]PathInfo `json:"additions"`
	Deletions     map[string]PathInfo `json:"deletions"`
	Modifications map[string]PathInfo `json:"modifications"`
}

// NewChangeSet returns a change set with empty, non-nil maps
func NewChangeSet() ChangeSet {
	return ChangeSet{
		Additions:     map[string]PathInfo{},
		Deletions:     map[string]PathInfo{},
		Modifications: map[string]PathInfo{},
	}
}

// Len returns the total number of changed paths
func (c ChangeSet) Len() int {
	return len(c.Additions) + len(c.Deletions) + len(c.Modifications)
}

// Empty reports whether nothing changed
func (c ChangeSet) Empty() bool {
	return c.Len() == 0
}

// BranchInfo describes one branch
type BranchInfo struct {
	Number  int      `json:"number"`
	CTime   int64    `json:"ctime"`
	Name    *string  `json:"name,omitempty"`
	InSync  bool     `json:"in_sync"`
	Tracked []string `json:"tracked"`
}

// GetID implements storage.Entity
func (b BranchInfo) GetID() string {
	return fmt.Sprintf("%d", b.Number)
}

// Label returns the branch name, or its number when unnamed
func (b BranchInfo) Label() string {
	if b.Name != nil && *b.Name != "" {
		return *b.Name
	}
	return fmt.Sprintf("b%d", b.Number)
}

// CommitInfo describes one revision of a branch
type CommitInfo struct {
	Branch  int     `json:"branch"`
	Number  int     `json:"number"`
	CTime   int64   `json:"ctime"`
	Message *string `json:"message,omitempty"`
}

// GetID implements storage.Entity. Revisions sort by number within a branch.
func (c CommitInfo) GetID() string {
	return fmt.Sprintf("%d:%08d", c.Branch, c.Number)
}

// MergeBlockType classifies a run of diff lines
type MergeBlockType int

const (
	KEEP MergeBlockType = iota
	INSERT
	REMOVE
	REPLACE
	MODIFY
	MOVE
)

func (t MergeBlockType) String() string {
	switch t {
	case KEEP:
		return "KEEP"
	case INSERT:
		return "INSERT"
	case REMOVE:
		return "REMOVE"
	case REPLACE:
		return "REPLACE"
	case MODIFY:
		return "MODIFY"
	case MOVE:
		return "MOVE"
	}
	return fmt.Sprintf("MergeBlockType(%d)", int(t))
}

// Range lists the character columns that differ within a pair of lines
type Range struct {
	Tipe    MergeBlockType
	Indexes []int
}

// MergeBlock is a classified run of lines produced while merging
type MergeBlock struct {
	Tipe     MergeBlockType
	Lines    []string
	Line     int
	Replaces *MergeBlock
	Changes  *Range
}

// WithTipe returns a copy of the block with a different type
func (b MergeBlock) WithTipe(t MergeBlockType) MergeBlock {
	b.Tipe = t
	return b
}

// WithChanges returns a copy of the block carrying intra-line markers
func (b MergeBlock) WithChanges(r Range) MergeBlock {
	b.Changes = &r
	return b
}

// GlobBlock is one token of a tokenized glob pattern
type GlobBlock struct {
	IsLiteral bool
	Content   string
	Index     int
}

// GlobBlock2 is a wildcard token together with the text it matched
type GlobBlock2 struct {
	IsLiteral bool
	Content   string
	Matches   string
}

// MergeOperation selects which changes of the incoming side are applied
type MergeOperation int

const (
	MergeInsert MergeOperation = 1
	MergeRemove MergeOperation = 2
	MergeBoth   MergeOperation = MergeInsert | MergeRemove
)

// Has reports whether all bits of o are set
func (m MergeOperation) Has(o MergeOperation) bool {
	return m&o == o
}

func (m MergeOperation) String() string {
	switch m {
	case MergeInsert:
		return "insert"
	case MergeRemove:
		return "remove"
	case MergeBoth:
		return "both"
	}
	return fmt.Sprintf("MergeOperation(%d)", int(m))
}

// ParseMergeOperation parses "insert", "remove" or "both"
func ParseMergeOperation(s string) (MergeOperation, error) {
	switch strings.ToLower(s) {
	case "insert", "i":
		return MergeInsert, nil
	case "remove", "r":
		return MergeRemove, nil
	case "both", "b", "":
		return MergeBoth, nil
	}
	return 0, fmt.Errorf("unknown merge operation %q", s)
}

// ConflictResolution decides which side wins a true intra-line conflict
type ConflictResolution int

const (
	Theirs ConflictResolution = iota
	Mine
	Ask
	Next
)

func (c ConflictResolution) String() string {
	switch c {
	case Theirs:
		return "theirs"
	case Mine:
		return "mine"
	case Ask:
		return "ask"
	case Next:
		return "next"
	}
	return fmt.Sprintf("ConflictResolution(%d)", int(c))
}

// ParseConflictResolution parses "theirs", "mine", "ask" or "next"
func ParseConflictResolution(s string) (ConflictResolution, error) {
	switch strings.ToLower(s) {
	case "theirs", "t":
		return Theirs, nil
	case "mine", "i":
		return Mine, nil
	case "ask", "":
		return Ask, nil
	case "next", "m":
		return Next, nil
	}
	return 0, fmt.Errorf("unknown conflict resolution %q", s)
}
