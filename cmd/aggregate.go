package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"repoloc/internal/cache"
	"repoloc/internal/config"
	"repoloc/internal/gitclone"
	"repoloc/internal/github"
	"repoloc/internal/languages"
	"repoloc/internal/model"
	"repoloc/internal/report"
	"repoloc/internal/scanner"
	"repoloc/internal/walker"
)

// newAggregateCmd 创建 aggregate 子命令。
// 示例：
//
//	repoloc aggregate --username alice --figure languages.svg --readme README.md
func newAggregateCmd(application *app) *cobra.Command {
	defaults := config.Default()

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "统计账号下全部非 fork 仓库并输出总计",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := application.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireUsername(); err != nil {
				return err
			}

			runID := uuid.NewString()
			logger = logger.With("run_id", runID)

			result, err := aggregate(cmd.Context(), application.registry, cfg, runID, logger)
			if err != nil {
				return err
			}
			return publish(cmd, cfg, result)
		},
	}

	flags := aggregateCmd.Flags()
	flags.String("username", defaults.Username, "GitHub 用户名")
	flags.String("token", defaults.Token, "GitHub 访问令牌，也可以使用 GITHUB_TOKEN")
	flags.String("api-url", defaults.APIURL, "GitHub API 地址，默认 https://api.github.com/")
	flags.String("cache", defaults.Cache, "SQLite 缓存文件路径，默认 checkpoint-<username>.db")
	flags.Int("workers", defaults.Workers, "单个仓库扫描的并发 worker 数量")
	flags.StringSlice("exclude", defaults.Exclude, "忽略的文件名模式")
	flags.String("format", defaults.Format, "输出格式: table 或 json")
	flags.String("output", defaults.Output, "json 导出文件路径")
	flags.String("figure", defaults.Figure, "SVG 图表输出路径，为空时不生成")
	flags.StringSlice("figure-metrics", defaults.FigureMetrics, "图表堆叠的指标: lines, code, comments, blanks")
	flags.String("readme", defaults.Readme, "README 输出路径，为空时不生成")
	flags.String("template", defaults.Template, "README 模板路径，为空时使用内置模板")

	return aggregateCmd
}

// aggregation 是一次聚合运行的结果。
type aggregation struct {
	total    *model.RepoReport
	projects int
	asOf     time.Time
}

// aggregate 列出仓库并在缓存的作用域内运行 walker，无论成败都会关闭缓存。
func aggregate(ctx context.Context, registry *languages.Registry, cfg *config.Config, runID string, logger *slog.Logger) (aggregation, error) {
	// 运行开始时间作为本次登记的 last_update。
	result := aggregation{asOf: time.Now().UTC()}

	lister, err := github.NewLister(github.WithToken(cfg.Token), github.WithBaseURL(cfg.APIURL))
	if err != nil {
		return result, err
	}
	projects, err := lister.ListProjects(ctx, cfg.Username)
	if err != nil {
		return result, err
	}
	result.projects = len(projects)
	logger.Info("repositories listed", "username", cfg.Username, "count", len(projects))

	cloner := gitclone.New(gitclone.WithToken(cfg.Token))
	measurer := scanner.NewService(registry, cfg.Workers, scanner.WithExcludes(cfg.Exclude), scanner.WithLogger(logger))

	err = cache.With(cfg.Cache, result.asOf, func(store *cache.Store) error {
		w := walker.New(store, cloner, measurer, walker.WithLogger(logger))
		_, runErr := w.Run(ctx, projects)
		result.total = w.Total()
		return runErr
	}, cache.WithRunID(runID), cache.WithAccount(cfg.Username))
	return result, err
}

// publish 输出总计报告以及可选的图表与 README。
func publish(cmd *cobra.Command, cfg *config.Config, result aggregation) error {
	if err := render(cmd.OutOrStdout(), cfg, result.total); err != nil {
		return err
	}

	if cfg.Figure != "" {
		options := report.FigureOptions{Metrics: cfg.FigureMetrics, Date: result.asOf}
		if err := report.WriteFigureFile(cfg.Figure, result.total, options); err != nil {
			return err
		}
	}

	if cfg.Readme == "" {
		return nil
	}
	tmpl, err := report.LoadReadmeTemplate(cfg.Template)
	if err != nil {
		return err
	}
	data := report.NewReadmeData(cfg.Username, result.total, result.projects, figureLink(cfg.Readme, cfg.Figure), result.asOf)

	if directory := filepath.Dir(cfg.Readme); directory != "." && directory != "" {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(cfg.Readme)
	if err != nil {
		return err
	}
	if err := report.WriteReadme(file, tmpl, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// figureLink 返回 README 中引用图表的相对路径。
func figureLink(readme string, figure string) string {
	if figure == "" {
		return ""
	}
	if relative, err := filepath.Rel(filepath.Dir(readme), figure); err == nil {
		return filepath.ToSlash(relative)
	}
	return filepath.ToSlash(figure)
}
