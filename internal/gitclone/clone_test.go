package gitclone

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSourceRepo 在临时目录创建一个带一次提交的仓库。
func newSourceRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := worktree.Add(name)
		require.NoError(t, err)
	}

	_, err = worktree.Commit("initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

// requireGit 本地路径克隆依赖 git-upload-pack。
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestCloneLocalRepository(t *testing.T) {
	requireGit(t)
	source := newSourceRepo(t, map[string]string{
		"main.go":        "package main\n",
		"scripts/run.sh": "echo run\n",
	})
	dest := filepath.Join(t.TempDir(), "repo")

	err := New(WithDepth(0)).Clone(context.Background(), source, dest)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
	assert.FileExists(t, filepath.Join(dest, "scripts", "run.sh"))
}

func TestCloneMissingRepository(t *testing.T) {
	requireGit(t)
	dest := filepath.Join(t.TempDir(), "repo")

	err := New(WithDepth(0)).Clone(context.Background(), filepath.Join(t.TempDir(), "missing"), dest)
	require.Error(t, err)
	assert.NotEqual(t, errors.CodeUnknown, errors.GetCode(err))
}

func TestClassify(t *testing.T) {
	cases := map[error]errors.ErrorCode{
		transport.ErrRepositoryNotFound:     errors.CodeNotFound,
		transport.ErrAuthenticationRequired: errors.CodeUnauthorized,
		transport.ErrAuthorizationFailed:    errors.CodeUnauthorized,
		context.Canceled:                    errors.CodeTimeout,
		os.ErrPermission:                    errors.CodeExecutionFailed,
	}
	for input, want := range cases {
		got := classify(input)
		assert.Equal(t, want, errors.GetCode(got), input.Error())
		assert.ErrorIs(t, got, input)
	}
}

func TestNewDefaults(t *testing.T) {
	cloner := New()
	assert.Equal(t, 1, cloner.depth)
	assert.Empty(t, cloner.token)

	cloner = New(WithToken("secret"), WithDepth(-1))
	assert.Equal(t, "secret", cloner.token)
	assert.Equal(t, 1, cloner.depth)
}
