package cmd

import (
	"fmt"
	"io"

	"repoloc/internal/config"
	"repoloc/internal/model"
	"repoloc/internal/report"
)

// render 按配置的格式输出报告；json 格式且配置了 output 时同时导出文件。
func render(writer io.Writer, cfg *config.Config, result *model.RepoReport) error {
	switch cfg.Format {
	case "table":
		return report.PrintTable(writer, result)
	case "json":
		if err := report.PrintJSON(writer, result); err != nil {
			return err
		}
		if cfg.Output == "" {
			return nil
		}
		if err := report.WriteJSONFile(cfg.Output, result); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(writer, "\nJSON exported to %s\n", cfg.Output)
		return nil
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}
