package gitrepo

import (
	"fmt"
	"sort"
	"strings"
)

// Compile-time check that MemRepository implements RepositoryView.
var _ RepositoryView = (*MemRepository)(nil)

// MemRepository is an in-memory repository snapshot for tests. Commits form
// a parent-linked graph; branches, remote-tracking branches and tags point
// at commits; file trees are stored per commit.
type MemRepository struct {
	current  string
	branches map[string]string
	remotes  map[string]string
	tags     map[string]string
	parents  map[string][]string
	order    []string // commit insertion order, oldest first
	files    map[string]map[string][]byte
}

// NewMemRepository creates an empty repository with the given current branch.
func NewMemRepository(currentBranch string) *MemRepository {
	return &MemRepository{
		current:  currentBranch,
		branches: make(map[string]string),
		remotes:  make(map[string]string),
		tags:     make(map[string]string),
		parents:  make(map[string][]string),
		files:    make(map[string]map[string][]byte),
	}
}

// AddCommit records a commit with the given parents.
func (m *MemRepository) AddCommit(id string, parents ...string) *MemRepository {
	m.parents[id] = parents
	m.order = append(m.order, id)
	return m
}

// SetBranch points a local branch at a commit.
func (m *MemRepository) SetBranch(name, commit string) *MemRepository {
	m.branches[name] = commit
	return m
}

// SetRemoteBranch points a remote-tracking branch (origin) at a commit.
func (m *MemRepository) SetRemoteBranch(name, commit string) *MemRepository {
	m.remotes[name] = commit
	return m
}

// SetTag points a tag at a commit.
func (m *MemRepository) SetTag(name, commit string) *MemRepository {
	m.tags[name] = commit
	return m
}

// PutFile stores file content for a path at a commit.
func (m *MemRepository) PutFile(commit, path string, content []byte) *MemRepository {
	if m.files[commit] == nil {
		m.files[commit] = make(map[string][]byte)
	}
	m.files[commit][path] = content
	return m
}

// CurrentBranch returns the configured current branch.
func (m *MemRepository) CurrentBranch() (string, error) {
	if m.current == "" {
		return "", ErrDetachedHead
	}
	return m.current, nil
}

// BranchRef returns the full ref for a branch, local before remote.
func (m *MemRepository) BranchRef(name string) (string, error) {
	if _, ok := m.branches[name]; ok {
		return "refs/heads/" + name, nil
	}
	if _, ok := m.remotes[name]; ok {
		return "refs/remotes/origin/" + name, nil
	}
	return "", fmt.Errorf("%w: branch %q", ErrRefNotFound, name)
}

// RemoteBranches lists remote-tracking branch names.
func (m *MemRepository) RemoteBranches() ([]string, error) {
	var names []string
	for name := range m.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ResolveRev resolves a revision, branches before tags before commit ids.
// Fully qualified refs resolve directly.
func (m *MemRepository) ResolveRev(rev string) (Ref, error) {
	if name, ok := strings.CutPrefix(rev, "refs/heads/"); ok {
		if commit, ok := m.branches[name]; ok {
			return Ref{Name: name, Ref: rev, Commit: commit}, nil
		}
		return Ref{}, fmt.Errorf("%w: %q", ErrRefNotFound, rev)
	}
	if name, ok := strings.CutPrefix(rev, "refs/remotes/origin/"); ok {
		if commit, ok := m.remotes[name]; ok {
			return Ref{Name: name, Ref: rev, Commit: commit}, nil
		}
		return Ref{}, fmt.Errorf("%w: %q", ErrRefNotFound, rev)
	}
	if name, ok := strings.CutPrefix(rev, "refs/tags/"); ok {
		if commit, ok := m.tags[name]; ok {
			return Ref{Name: name, Ref: rev, Commit: commit}, nil
		}
		return Ref{}, fmt.Errorf("%w: %q", ErrRefNotFound, rev)
	}
	if commit, ok := m.branches[rev]; ok {
		return Ref{Name: rev, Ref: "refs/heads/" + rev, Commit: commit}, nil
	}
	if commit, ok := m.remotes[rev]; ok {
		return Ref{Name: rev, Ref: "refs/remotes/origin/" + rev, Commit: commit}, nil
	}
	if commit, ok := m.tags[rev]; ok {
		return Ref{Name: rev, Ref: "refs/tags/" + rev, Commit: commit}, nil
	}
	if _, ok := m.parents[rev]; ok {
		return Ref{Name: rev, Commit: rev}, nil
	}
	return Ref{}, fmt.Errorf("%w: %q", ErrRefNotFound, rev)
}

// TagCommit returns the commit a tag points at.
func (m *MemRepository) TagCommit(tag string) (string, error) {
	commit, ok := m.tags[tag]
	if !ok {
		return "", fmt.Errorf("%w: tag %q", ErrRefNotFound, tag)
	}
	return commit, nil
}

// tipOf returns the commit a branch points at, local before remote.
func (m *MemRepository) tipOf(branch string) (string, error) {
	if commit, ok := m.branches[branch]; ok {
		return commit, nil
	}
	if commit, ok := m.remotes[branch]; ok {
		return commit, nil
	}
	return "", fmt.Errorf("%w: branch %q", ErrRefNotFound, branch)
}

// reachable returns all commits reachable from start, inclusive.
func (m *MemRepository) reachable(start string) map[string]bool {
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[c] {
			continue
		}
		if _, ok := m.parents[c]; !ok {
			continue
		}
		seen[c] = true
		stack = append(stack, m.parents[c]...)
	}
	return seen
}

// newestFirst orders the members of set newest first, using commit insertion
// order as the ancestry clock.
func (m *MemRepository) newestFirst(set map[string]bool) []string {
	var out []string
	for i := len(m.order) - 1; i >= 0; i-- {
		if set[m.order[i]] {
			out = append(out, m.order[i])
		}
	}
	return out
}

// MergedTags returns tags reachable from branch, oldest first.
func (m *MemRepository) MergedTags(branch string) ([]Tag, error) {
	tip, err := m.tipOf(branch)
	if err != nil {
		return nil, err
	}
	onBranch := m.reachable(tip)

	var tags []Tag
	for name, commit := range m.tags {
		if onBranch[commit] {
			tags = append(tags, Tag{Name: name, Commit: commit})
		}
	}

	position := make(map[string]int, len(m.order))
	for i, c := range m.order {
		position[c] = i
	}
	sort.SliceStable(tags, func(i, j int) bool {
		pi, pj := position[tags[i].Commit], position[tags[j].Commit]
		if pi != pj {
			return pi < pj // insertion order is oldest first
		}
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

// RevList evaluates a limited revision-range grammar: "X..Y" excludes
// commits reachable from X, "X^..Y" additionally re-admits X itself.
// A selection without ".." lists everything reachable from it.
func (m *MemRepository) RevList(selection string) ([]string, error) {
	if !strings.Contains(selection, "..") {
		ref, err := m.ResolveRev(selection)
		if err != nil {
			return nil, err
		}
		return m.newestFirst(m.reachable(ref.Commit)), nil
	}

	left, right, _ := strings.Cut(selection, "..")

	included := make(map[string]bool)
	if right != "" {
		ref, err := m.ResolveRev(right)
		if err != nil {
			return nil, err
		}
		included = m.reachable(ref.Commit)
	}

	if left != "" {
		parentOf := strings.HasSuffix(left, "^")
		name := strings.TrimSuffix(left, "^")
		ref, err := m.ResolveRev(name)
		if err != nil {
			return nil, err
		}
		var excluded map[string]bool
		if parentOf {
			// X^ names the first parent of X: X stays in the range.
			excluded = make(map[string]bool)
			for _, p := range m.parents[ref.Commit] {
				for c := range m.reachable(p) {
					excluded[c] = true
				}
			}
		} else {
			excluded = m.reachable(ref.Commit)
		}
		for c := range excluded {
			delete(included, c)
		}
	}

	return m.newestFirst(included), nil
}

// ReadFile returns file content stored for path at commit.
func (m *MemRepository) ReadFile(commit, path string) ([]byte, error) {
	tree, ok := m.files[commit]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrFileNotFound, commit, path)
	}
	content, ok := tree[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrFileNotFound, commit, path)
	}
	return content, nil
}

// IsDir reports whether any stored file lives under path at commit.
func (m *MemRepository) IsDir(commit, path string) (bool, error) {
	if path == "" || path == "." || path == "./" {
		return len(m.files[commit]) > 0, nil
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range m.files[commit] {
		if strings.HasPrefix(p, prefix) {
			return true, nil
		}
	}
	return false, nil
}
