// Package cmd 提供 repoloc 的命令行入口与子命令编排。
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repoloc/internal/config"
	"repoloc/internal/languages"
	"repoloc/internal/logging"
)

// app 是各子命令共享的依赖。
type app struct {
	registry   *languages.Registry
	viper      *viper.Viper
	configFile string
}

// Execute 组装根命令并执行，Ctrl-C 会取消正在进行的聚合。
// version 参数由 main 包注入，便于在 CI/CD 中打包不同版本。
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd(version, &app{
		registry: languages.NewRegistry(),
		viper:    config.New(),
	})
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd 创建根命令并注册全部子命令。
func newRootCmd(version string, application *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repoloc",
		Short: "统计 GitHub 账号下全部仓库的代码行数",
		Long: "repoloc 克隆某个 GitHub 账号的非 fork 仓库，按语言统计\n" +
			"files/lines/code/comments/blanks，并把每个仓库的结果缓存在 SQLite 中，\n" +
			"没有新推送的仓库下次直接复用。",
		SilenceUsage: true,
	}

	defaults := config.Default()
	rootCmd.PersistentFlags().StringVar(&application.configFile, "config", "", "配置文件路径（yaml/toml/json）")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "日志级别: debug, info, warn, error, quiet")

	rootCmd.AddCommand(newVersionCmd(version))
	rootCmd.AddCommand(newLanguageCmd(application.registry))
	rootCmd.AddCommand(newScanCmd(application))
	rootCmd.AddCommand(newAggregateCmd(application))
	rootCmd.AddCommand(newCacheCmd(application))

	return rootCmd
}

// load 绑定当前命令的 flag 并读取配置，日志写到 stderr。
func (a *app) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := config.BindFlags(a.viper, cmd.Flags()); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(a.viper, a.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), logging.LevelFromString(cfg.LogLevel))
	return cfg, logger, nil
}
