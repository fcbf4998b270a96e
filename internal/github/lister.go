// Package github 通过 GitHub REST API 列出某个账号下需要统计的仓库。
package github

import (
	"context"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v67/github"
	"github.com/jmgilman/go/errors"

	"repoloc/internal/model"
)

// defaultPerPage 是 GitHub 允许的最大分页大小。
const defaultPerPage = 100

// Lister 列出账号的非 fork 仓库。
type Lister struct {
	client  *gh.Client
	perPage int
}

// Option 配置 Lister。
type Option func(*Lister) error

// WithToken 使用访问令牌，空字符串表示匿名访问（只能看到公开仓库且限流更严格）。
func WithToken(token string) Option {
	return func(l *Lister) error {
		if token != "" {
			l.client = l.client.WithAuthToken(token)
		}
		return nil
	}
}

// WithBaseURL 指向 GitHub Enterprise 或测试服务器。
func WithBaseURL(rawURL string) Option {
	return func(l *Lister) error {
		if rawURL == "" {
			return nil
		}
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		baseURL, err := l.client.BaseURL.Parse(rawURL)
		if err != nil {
			err = errors.Wrap(err, errors.CodeInvalidConfig, "invalid GitHub API URL")
			return errors.WithContext(err, "api_url", rawURL)
		}
		l.client.BaseURL = baseURL
		return nil
	}
}

// WithClient 替换底层 go-github 客户端。
func WithClient(client *gh.Client) Option {
	return func(l *Lister) error {
		if client == nil {
			return errors.New(errors.CodeInvalidInput, "client cannot be nil")
		}
		l.client = client
		return nil
	}
}

// WithPerPage 设置每页数量。
func WithPerPage(perPage int) Option {
	return func(l *Lister) error {
		if perPage <= 0 || perPage > defaultPerPage {
			return errors.Newf(errors.CodeInvalidInput, "per page must be in 1..%d", defaultPerPage)
		}
		l.perPage = perPage
		return nil
	}
}

// NewLister 创建 Lister。选项按顺序应用，WithClient 应放在最前面。
func NewLister(opts ...Option) (*Lister, error) {
	lister := &Lister{
		client:  gh.NewClient(nil),
		perPage: defaultPerPage,
	}
	for _, opt := range opts {
		if err := opt(lister); err != nil {
			return nil, err
		}
	}
	return lister, nil
}

// ListProjects 翻页读取 /users/{username}/repos，丢弃 fork，保持 API 返回顺序。
func (l *Lister) ListProjects(ctx context.Context, username string) ([]model.Project, error) {
	if username == "" {
		return nil, errors.New(errors.CodeInvalidInput, "username is required")
	}

	options := &gh.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: gh.ListOptions{PerPage: l.perPage},
	}

	var projects []model.Project
	for {
		repos, resp, err := l.client.Repositories.ListByUser(ctx, username, options)
		if err != nil {
			return nil, errors.WithContext(wrapError(err, resp, "failed to list repositories"), "username", username)
		}

		for _, repo := range repos {
			if repo.GetFork() {
				continue
			}
			projects = append(projects, toProject(repo))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		options.Page = resp.NextPage
	}

	return projects, nil
}

// toProject 只保留聚合需要的三个字段。
func toProject(repo *gh.Repository) model.Project {
	return model.Project{
		CloneURL: repo.GetCloneURL(),
		PushedAt: repo.GetPushedAt().Time.UTC(),
		Name:     repo.GetName(),
	}
}

// wrapError 根据 HTTP 状态码映射错误码。
func wrapError(err error, resp *gh.Response, message string) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return errors.Wrap(err, errors.CodeRateLimit, message)
	}

	statusCode := 0
	if resp != nil && resp.Response != nil {
		statusCode = resp.StatusCode
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		statusCode = ghErr.Response.StatusCode
	}

	switch {
	case statusCode == 0:
		return errors.Wrap(err, errors.CodeNetwork, message)
	case statusCode == http.StatusNotFound:
		return errors.Wrap(err, errors.CodeNotFound, message)
	case statusCode == http.StatusUnauthorized:
		return errors.Wrap(err, errors.CodeUnauthorized, message)
	case statusCode == http.StatusForbidden:
		return errors.Wrap(err, errors.CodeForbidden, message)
	case statusCode == http.StatusTooManyRequests:
		return errors.Wrap(err, errors.CodeRateLimit, message)
	case statusCode >= http.StatusInternalServerError:
		return errors.Wrap(err, errors.CodeNetwork, message)
	default:
		return errors.Wrap(err, errors.CodeInternal, message)
	}
}
