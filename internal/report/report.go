// Package report 提供 repoloc 的输出能力。
// 支持 table 控制台格式、JSON（含文件导出）、SVG 语言分布图与 Markdown README。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"repoloc/internal/model"
)

// PrintTable 使用表格展示报告，最后一行是合计。
func PrintTable(writer io.Writer, report *model.RepoReport) error {
	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)

	if report.Name != "" {
		if _, err := fmt.Fprintf(tw, "REPOSITORY\t%s\n\n", report.Name); err != nil {
			return err
		}
	}

	header, rows := report.AsTable()
	if _, err := fmt.Fprintln(tw, strings.ToUpper(strings.Join(header[:], "\t"))); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeRow(tw, row); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(tw); err != nil {
		return err
	}
	total := report.Totals().ReportLine()
	total.Language = strings.ToUpper(total.Language)
	if err := writeRow(tw, total); err != nil {
		return err
	}

	return tw.Flush()
}

func writeRow(writer io.Writer, row model.ReportLine) error {
	_, err := fmt.Fprintf(
		writer,
		"%s\t%d\t%d\t%d\t%d\t%d\n",
		row.Language,
		row.Files,
		row.Lines,
		row.Code,
		row.Comments,
		row.Blanks,
	)
	return err
}

// PrintErrors 列出扫描过程中无法读取的文件，没有错误时不输出。
func PrintErrors(writer io.Writer, scanErrors []model.ScanError) error {
	if len(scanErrors) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "\nERROR FILE\tMESSAGE"); err != nil {
		return err
	}
	for _, item := range scanErrors {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", item.Path, item.Error); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// PrintJSON 把报告按易读 JSON 输出到任意 writer。
func PrintJSON(writer io.Writer, report *model.RepoReport) error {
	content, err := marshal(report)
	if err != nil {
		return err
	}

	if _, err := writer.Write(content); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteJSONFile 将 JSON 结果导出到指定路径。
func WriteJSONFile(path string, report *model.RepoReport) error {
	content, err := marshal(report)
	if err != nil {
		return err
	}
	return writeFile(path, content)
}

func marshal(report *model.RepoReport) ([]byte, error) {
	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(content, '\n'), nil
}

// writeFile 写入文件，目录不存在时自动创建。
func writeFile(path string, content []byte) error {
	directory := filepath.Dir(path)
	if directory != "." && directory != "" {
		if mkErr := os.MkdirAll(directory, 0o755); mkErr != nil {
			return fmt.Errorf("create output directory: %w", mkErr)
		}
	}

	if writeErr := os.WriteFile(path, content, 0o644); writeErr != nil {
		return fmt.Errorf("write output file: %w", writeErr)
	}
	return nil
}
