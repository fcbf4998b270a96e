// Package walker 按仓库逐个决定复用缓存还是重新克隆扫描，并累加总计报告。
package walker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmgilman/go/errors"

	"repoloc/internal/logging"
	"repoloc/internal/model"
)

// Store 是 walker 需要的缓存能力，由 cache.Store 实现。
type Store interface {
	Contains(name string) (bool, error)
	LastUpdate(name string) (time.Time, error)
	Get(name string) (*model.RepoReport, error)
	Register(report *model.RepoReport) error
}

// Cloner 把 cloneURL 克隆到 dest 目录。
type Cloner interface {
	Clone(ctx context.Context, cloneURL string, dest string) error
}

// Measurer 统计 path 下各语言的行数。
type Measurer interface {
	Measure(path string) (map[string]model.LanguageCounts, error)
}

// Action 是单个仓库的处理决定。
type Action int

const (
	// ActionScanNew 表示缓存中没有该仓库，需要扫描并登记。
	ActionScanNew Action = iota
	// ActionReuse 表示仓库自上次登记后没有推送，直接复用缓存。
	ActionReuse
	// ActionRescan 表示仓库在上次登记时间点或之后有推送，需要重新扫描并覆盖。
	ActionRescan
)

// String 返回日志中使用的描述。
func (a Action) String() string {
	switch a {
	case ActionScanNew:
		return "new repository"
	case ActionReuse:
		return "unchanged, reusing cache"
	case ActionRescan:
		return "changed, rescanning"
	default:
		return "unknown"
	}
}

// Decide 实现新鲜度判定：只有 pushedAt 严格早于 lastUpdate 才复用缓存，
// 相等视为已变化。
func Decide(cached bool, pushedAt time.Time, lastUpdate time.Time) Action {
	if !cached {
		return ActionScanNew
	}
	if pushedAt.Before(lastUpdate) {
		return ActionReuse
	}
	return ActionRescan
}

// Summary 记录一次运行的处理数量。
type Summary struct {
	Scanned int
	Reused  int
}

// Walker 顺序处理仓库列表，独占持有总计报告。
type Walker struct {
	store    Store
	cloner   Cloner
	measurer Measurer
	logger   *slog.Logger
	tempDir  string
	total    *model.RepoReport
}

// Option 配置 Walker。
type Option func(*Walker)

// WithLogger 设置日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTempDir 设置克隆使用的临时目录根，默认 os.TempDir()。
func WithTempDir(dir string) Option {
	return func(w *Walker) {
		w.tempDir = dir
	}
}

// New 创建 Walker。store 必须已经打开，由调用方负责关闭。
func New(store Store, cloner Cloner, measurer Measurer, opts ...Option) *Walker {
	w := &Walker{
		store:    store,
		cloner:   cloner,
		measurer: measurer,
		logger:   logging.NewDiscardLogger(),
		total:    model.NewRepoReport(""),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run 按输入顺序处理 projects。任何仓库失败都会中止运行并返回错误，
// 已登记的条目保留在缓存中。
func (w *Walker) Run(ctx context.Context, projects []model.Project) (Summary, error) {
	var summary Summary

	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		report, action, err := w.visit(ctx, project)
		if err != nil {
			return summary, errors.WithContext(err, "repo", project.Name)
		}
		if action == ActionReuse {
			summary.Reused++
		} else {
			summary.Scanned++
		}

		w.total.Merge(report)
	}

	w.logger.Info("aggregation finished",
		"repos", len(projects),
		"scanned", summary.Scanned,
		"reused", summary.Reused,
		"languages", w.total.Len(),
	)
	return summary, nil
}

// Total 返回当前总计报告的副本。
func (w *Walker) Total() *model.RepoReport {
	return w.total.Clone()
}

// visit 按决策表处理单个仓库并返回其报告。
func (w *Walker) visit(ctx context.Context, project model.Project) (*model.RepoReport, Action, error) {
	cached, err := w.store.Contains(project.Name)
	if err != nil {
		return nil, 0, err
	}

	var lastUpdate time.Time
	if cached {
		if lastUpdate, err = w.store.LastUpdate(project.Name); err != nil {
			return nil, 0, err
		}
	}

	action := Decide(cached, project.PushedAt, lastUpdate)
	w.logger.Info(action.String(), "repo", project.Name, "pushed_at", project.PushedAt)

	if action == ActionReuse {
		report, err := w.store.Get(project.Name)
		return report, action, err
	}

	report, err := w.scan(ctx, project)
	if err != nil {
		return nil, action, err
	}
	if err := w.store.Register(report); err != nil {
		return nil, action, err
	}
	return report, action, nil
}

// scan 克隆仓库到临时目录下的 <name> 子目录并统计，结束后删除临时目录。
func (w *Walker) scan(ctx context.Context, project model.Project) (*model.RepoReport, error) {
	workDir, err := os.MkdirTemp(w.tempDir, "repoloc-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create temporary directory")
	}
	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			w.logger.Warn("failed to remove temporary directory", "path", workDir, "error", removeErr)
		}
	}()

	dest := filepath.Join(workDir, project.Name)
	w.logger.Debug("cloning repository", "repo", project.Name, "url", project.CloneURL, "dest", dest)
	if err := w.cloner.Clone(ctx, project.CloneURL, dest); err != nil {
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, "failed to clone repository")
	}

	counts, err := w.measurer.Measure(dest)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, "failed to measure repository")
	}
	return model.FromCounts(project.Name, counts), nil
}
