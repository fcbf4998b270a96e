package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"repoloc/internal/config"
	"repoloc/internal/model"
	"repoloc/internal/report"
	"repoloc/internal/scanner"
)

// newScanCmd 创建 scan 子命令，统计本地目录或文件，不读写缓存。
// 示例：
//
//	repoloc scan .
//	repoloc scan ./project --format json --output result.json
func newScanCmd(application *app) *cobra.Command {
	defaults := config.Default()

	scanCmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "扫描本地目录或文件并按语言输出代码度量",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := application.load(cmd)
			if err != nil {
				return err
			}

			service := scanner.NewService(
				application.registry,
				cfg.Workers,
				scanner.WithExcludes(cfg.Exclude),
				scanner.WithLogger(logger),
			)
			result, err := service.ScanPath(args[0])
			if err != nil {
				return err
			}

			repo := model.FromCounts(filepath.Base(result.ScannedPath), result.CountsByLanguage())
			if err := render(cmd.OutOrStdout(), cfg, repo); err != nil {
				return err
			}
			return report.PrintErrors(cmd.ErrOrStderr(), result.Errors)
		},
	}

	flags := scanCmd.Flags()
	flags.String("format", defaults.Format, "输出格式: table 或 json")
	flags.String("output", defaults.Output, "json 导出文件路径，为空时只输出到终端")
	flags.Int("workers", defaults.Workers, "并发 worker 数量")
	flags.StringSlice("exclude", defaults.Exclude, "忽略的文件名模式")

	return scanCmd
}
