// Package gitrepo provides read access to a local git repository snapshot.
// The resolver and the scanner only ever read from a snapshot: tags, branch
// tips, commit ancestry and file contents at a given commit. Two
// implementations exist, one shelling out to the git binary and one fully
// in-memory for tests.
package gitrepo

import (
	"errors"
)

// Repository errors.
var (
	// ErrRefNotFound indicates a branch, tag or commit is absent from the snapshot.
	ErrRefNotFound = errors.New("reference not found")

	// ErrNotGitRepo indicates the directory is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrDetachedHead indicates the snapshot has no checked-out branch.
	ErrDetachedHead = errors.New("detached HEAD state")

	// ErrFileNotFound indicates a path does not exist at the given commit.
	ErrFileNotFound = errors.New("file not found at commit")
)

// Ref is a resolved revision.
type Ref struct {
	Name   string // short name as given (branch, tag or commit id)
	Ref    string // full ref name, empty when Name was taken as a raw commit id
	Commit string // peeled commit id
}

// Tag associates a tag name with its peeled commit.
type Tag struct {
	Name   string
	Commit string
}

// RepositoryView is a read-only snapshot of a git repository.
// All methods are pure reads; implementations must be safe for concurrent
// use by independent resolutions.
type RepositoryView interface {
	// CurrentBranch returns the checked-out branch name.
	// Returns ErrDetachedHead if the snapshot has no current branch.
	CurrentBranch() (string, error)

	// BranchRef returns the full ref for a branch name, preferring local
	// branches over remote-tracking ones (refs/heads/X, then
	// refs/remotes/origin/X). Returns ErrRefNotFound if neither exists.
	BranchRef(name string) (string, error)

	// RemoteBranches lists the short names of all remote-tracking branches
	// under origin, excluding the symbolic HEAD.
	RemoteBranches() ([]string, error)

	// ResolveRev resolves a revision to a commit. Branches take priority
	// over tags, tags over raw commit ids.
	ResolveRev(rev string) (Ref, error)

	// TagCommit returns the peeled commit for a tag name.
	TagCommit(tag string) (string, error)

	// MergedTags returns the tags whose commits are reachable from the given
	// branch, in ancestry order oldest first. Tag-name order is deliberately
	// not used: tags are not guaranteed to sort correctly as versions.
	MergedTags(branch string) ([]Tag, error)

	// RevList returns the commits selected by a git revision range such as
	// "v1..main" or "v1^..v2", newest first, matching git rev-list.
	RevList(selection string) ([]string, error)

	// ReadFile returns the content of path at the given commit.
	// Returns ErrFileNotFound if the path does not exist at that commit.
	ReadFile(commit, path string) ([]byte, error)

	// IsDir reports whether path at the given commit is a directory.
	IsDir(commit, path string) (bool, error)
}
