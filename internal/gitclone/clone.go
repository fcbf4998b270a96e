// Package gitclone 使用 go-git 把远程仓库浅克隆到本地目录。
package gitclone

import (
	"context"
	"io"
	"os"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/jmgilman/go/errors"
)

// tokenUser 是令牌认证时 GitHub 接受的用户名。
const tokenUser = "x-access-token"

// Cloner 实现 walker.Cloner。
type Cloner struct {
	token    string
	depth    int
	progress io.Writer
}

// Option 配置 Cloner。
type Option func(*Cloner)

// WithToken 使用访问令牌做 HTTP basic 认证，空字符串表示匿名克隆。
func WithToken(token string) Option {
	return func(c *Cloner) {
		c.token = token
	}
}

// WithDepth 设置克隆深度，0 表示完整历史。
func WithDepth(depth int) Option {
	return func(c *Cloner) {
		if depth >= 0 {
			c.depth = depth
		}
	}
}

// WithProgress 把 git 的进度输出写入 w。
func WithProgress(w io.Writer) Option {
	return func(c *Cloner) {
		c.progress = w
	}
}

// New 创建 Cloner，默认只拉取默认分支的最新一次提交。
func New(opts ...Option) *Cloner {
	cloner := &Cloner{depth: 1}
	for _, opt := range opts {
		opt(cloner)
	}
	return cloner
}

// Clone 把 cloneURL 克隆到 dest。空仓库不视为错误，只创建空目录。
func (c *Cloner) Clone(ctx context.Context, cloneURL string, dest string) error {
	options := &gogit.CloneOptions{
		URL:          cloneURL,
		Depth:        c.depth,
		SingleBranch: true,
		Tags:         gogit.NoTags,
		Progress:     c.progress,
	}
	if c.token != "" {
		options.Auth = &http.BasicAuth{Username: tokenUser, Password: c.token}
	}

	_, err := gogit.PlainCloneContext(ctx, dest, false, options)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
			return errors.Wrap(mkErr, errors.CodeInternal, "failed to create clone directory")
		}
		return nil
	}
	if err != nil {
		return errors.WithContext(classify(err), "url", cloneURL)
	}
	return nil
}

// classify 把 go-git 错误映射为带错误码的错误，未知错误保留原链。
func classify(err error) error {
	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return errors.Wrap(err, errors.CodeNotFound, "repository not found")
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return errors.Wrap(err, errors.CodeUnauthorized, "repository access denied")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, "clone interrupted")
	default:
		return errors.Wrap(err, errors.CodeExecutionFailed, "git clone failed")
	}
}
