package gitrepo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// linearRepo builds A -> B -> C on main with tags v1@A, v2@B, v3@C.
func linearRepo() *MemRepository {
	return NewMemRepository("main").
		AddCommit("aaa1111").
		AddCommit("bbb2222", "aaa1111").
		AddCommit("ccc3333", "bbb2222").
		SetBranch("main", "ccc3333").
		SetTag("v1", "aaa1111").
		SetTag("v2", "bbb2222").
		SetTag("v3", "ccc3333")
}

func TestMemRepository_CurrentBranch(t *testing.T) {
	repo := linearRepo()
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	detached := NewMemRepository("")
	_, err = detached.CurrentBranch()
	require.ErrorIs(t, err, ErrDetachedHead)
}

func TestMemRepository_BranchRef(t *testing.T) {
	repo := linearRepo().SetRemoteBranch("develop", "bbb2222")

	ref, err := repo.BranchRef("main")
	require.NoError(t, err)
	require.Equal(t, "refs/heads/main", ref)

	ref, err = repo.BranchRef("develop")
	require.NoError(t, err)
	require.Equal(t, "refs/remotes/origin/develop", ref)

	_, err = repo.BranchRef("missing")
	require.ErrorIs(t, err, ErrRefNotFound)
}

func TestMemRepository_ResolveRev_Priority(t *testing.T) {
	// A name that is both a branch and a tag resolves to the branch.
	repo := linearRepo().
		SetBranch("v2", "ccc3333") // deliberately shadows tag v2

	ref, err := repo.ResolveRev("v2")
	require.NoError(t, err)
	require.Equal(t, "refs/heads/v2", ref.Ref)
	require.Equal(t, "ccc3333", ref.Commit)

	ref, err = repo.ResolveRev("v1")
	require.NoError(t, err)
	require.Equal(t, "refs/tags/v1", ref.Ref)
	require.Equal(t, "aaa1111", ref.Commit)

	ref, err = repo.ResolveRev("bbb2222")
	require.NoError(t, err)
	require.Empty(t, ref.Ref)
	require.Equal(t, "bbb2222", ref.Commit)

	_, err = repo.ResolveRev("nope")
	require.ErrorIs(t, err, ErrRefNotFound)
}

func TestMemRepository_MergedTags_AncestryOrder(t *testing.T) {
	repo := linearRepo()

	tags, err := repo.MergedTags("main")
	require.NoError(t, err)
	require.Equal(t, []Tag{
		{Name: "v1", Commit: "aaa1111"},
		{Name: "v2", Commit: "bbb2222"},
		{Name: "v3", Commit: "ccc3333"},
	}, tags)
}

func TestMemRepository_MergedTags_ExcludesUnreachable(t *testing.T) {
	// Side branch with its own tag must not appear on main.
	repo := linearRepo().
		AddCommit("ddd4444", "aaa1111").
		SetBranch("feature", "ddd4444").
		SetTag("v9", "ddd4444")

	tags, err := repo.MergedTags("main")
	require.NoError(t, err)
	for _, tag := range tags {
		require.NotEqual(t, "v9", tag.Name)
	}

	tags, err = repo.MergedTags("feature")
	require.NoError(t, err)
	require.Equal(t, []Tag{
		{Name: "v1", Commit: "aaa1111"},
		{Name: "v9", Commit: "ddd4444"},
	}, tags)
}

func TestMemRepository_RevList(t *testing.T) {
	repo := linearRepo()

	t.Run("full branch", func(t *testing.T) {
		commits, err := repo.RevList("main")
		require.NoError(t, err)
		require.Equal(t, []string{"ccc3333", "bbb2222", "aaa1111"}, commits)
	})

	t.Run("exclusive range", func(t *testing.T) {
		commits, err := repo.RevList("v1..main")
		require.NoError(t, err)
		require.Equal(t, []string{"ccc3333", "bbb2222"}, commits)
	})

	t.Run("parent-inclusive range", func(t *testing.T) {
		commits, err := repo.RevList("v1^..main")
		require.NoError(t, err)
		require.Equal(t, []string{"ccc3333", "bbb2222", "aaa1111"}, commits)
	})

	t.Run("bounded range", func(t *testing.T) {
		commits, err := repo.RevList("v1..v2")
		require.NoError(t, err)
		require.Equal(t, []string{"bbb2222"}, commits)
	})

	t.Run("empty range", func(t *testing.T) {
		commits, err := repo.RevList("main..main")
		require.NoError(t, err)
		require.Empty(t, commits)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := repo.RevList("nope..main")
		require.ErrorIs(t, err, ErrRefNotFound)
	})
}

func TestMemRepository_RevList_UntaggedBoundary(t *testing.T) {
	// The boundary commit carries no tag; position in ancestry still counts.
	repo := NewMemRepository("main").
		AddCommit("aaa1111").
		AddCommit("bbb2222", "aaa1111"). // untagged
		AddCommit("ccc3333", "bbb2222").
		SetBranch("main", "ccc3333").
		SetTag("v1", "aaa1111").
		SetTag("v3", "ccc3333")

	commits, err := repo.RevList("bbb2222..main")
	require.NoError(t, err)
	require.Equal(t, []string{"ccc3333"}, commits)
}

func TestMemRepository_ReadFile(t *testing.T) {
	repo := linearRepo().
		PutFile("bbb2222", "setup.cfg", []byte("[metadata]\nname = demo\n"))

	content, err := repo.ReadFile("bbb2222", "setup.cfg")
	require.NoError(t, err)
	require.Contains(t, string(content), "name = demo")

	_, err = repo.ReadFile("bbb2222", "missing.txt")
	require.ErrorIs(t, err, ErrFileNotFound)

	_, err = repo.ReadFile("aaa1111", "setup.cfg")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestMemRepository_IsDir(t *testing.T) {
	repo := linearRepo().
		PutFile("ccc3333", ".aiidalab/setup.cfg", []byte("x"))

	isDir, err := repo.IsDir("ccc3333", ".aiidalab")
	require.NoError(t, err)
	require.True(t, isDir)

	isDir, err = repo.IsDir("ccc3333", "nope")
	require.NoError(t, err)
	require.False(t, isDir)

	isDir, err = repo.IsDir("ccc3333", ".")
	require.NoError(t, err)
	require.True(t, isDir)
}

func TestMemRepository_RemoteBranches(t *testing.T) {
	repo := linearRepo().
		SetRemoteBranch("main", "ccc3333").
		SetRemoteBranch("develop", "bbb2222")

	branches, err := repo.RemoteBranches()
	require.NoError(t, err)
	require.Equal(t, []string{"develop", "main"}, branches)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	require.False(t, errors.Is(ErrRefNotFound, ErrFileNotFound))
	require.False(t, errors.Is(ErrNotGitRepo, ErrDetachedHead))
}
