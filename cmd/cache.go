package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"repoloc/internal/cache"
	"repoloc/internal/config"
	"repoloc/internal/report"
)

// newCacheCmd 创建 cache 子命令组，用于查看已登记的仓库报告。
func newCacheCmd(application *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "查看 SQLite 缓存中的仓库报告",
	}
	defaults := config.Default()
	cacheCmd.PersistentFlags().String("cache", defaults.Cache, "SQLite 缓存文件路径，默认 checkpoint-<username>.db")
	cacheCmd.PersistentFlags().String("username", defaults.Username, "GitHub 用户名，用于推导缓存路径并校验所属账号")

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出缓存条目及其更新时间",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.loadCache(cmd)
			if err != nil {
				return err
			}

			return cache.With(cfg.Cache, time.Now().UTC(), func(store *cache.Store) error {
				entries, err := store.Entries()
				if err != nil {
					return err
				}

				writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				if _, err := fmt.Fprintln(writer, "NAME\tLAST UPDATE\tLANGUAGES\tLINES\tRUN ID"); err != nil {
					return err
				}
				for _, entry := range entries {
					if _, err := fmt.Fprintf(
						writer,
						"%s\t%s\t%d\t%d\t%s\n",
						entry.Name,
						entry.LastUpdate.Format(time.RFC3339),
						entry.Report.Len(),
						entry.Report.Totals().Lines,
						entry.RunID,
					); err != nil {
						return err
					}
				}
				return writer.Flush()
			}, cache.ReadOnly(), cache.WithAccount(cfg.Username))
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "展示某个仓库的缓存报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := application.loadCache(cmd)
			if err != nil {
				return err
			}

			return cache.With(cfg.Cache, time.Now().UTC(), func(store *cache.Store) error {
				repo, err := store.Get(args[0])
				if err != nil {
					return err
				}
				return report.PrintTable(cmd.OutOrStdout(), repo)
			}, cache.ReadOnly(), cache.WithAccount(cfg.Username))
		},
	})

	return cacheCmd
}

// loadCache 读取配置并确认可以定位缓存文件。
func (a *app) loadCache(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := a.load(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireCache(); err != nil {
		return nil, err
	}
	return cfg, nil
}
