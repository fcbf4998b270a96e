package report

import (
	"fmt"
	"io"
	"os"
	"text/template"
	"time"

	"repoloc/internal/model"
)

// ReadmeData 是 README 模板可以使用的全部字段。
type ReadmeData struct {
	Title        string
	Username     string
	Date         string
	Figure       string
	Repositories int
	Header       model.Header
	Rows         []model.ReportLine
	Total        model.ReportLine
}

// NewReadmeData 由总计报告构造模板数据，表格行保持报告顺序。
func NewReadmeData(username string, report *model.RepoReport, repositories int, figure string, date time.Time) ReadmeData {
	header, rows := report.AsTable()
	title := "Lines of code"
	if username != "" {
		title = fmt.Sprintf("Lines of code in %s's public repositories", username)
	}
	return ReadmeData{
		Title:        title,
		Username:     username,
		Date:         date.Format(time.DateOnly),
		Figure:       figure,
		Repositories: repositories,
		Header:       header,
		Rows:         rows,
		Total:        report.Totals().ReportLine(),
	}
}

// LoadReadmeTemplate 读取用户模板，path 为空时返回内置模板。
func LoadReadmeTemplate(path string) (*template.Template, error) {
	if path == "" {
		return template.ParseFS(templateFS, "templates/readme.md.tmpl")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read readme template: %w", err)
	}
	tmpl, err := template.New("readme").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse readme template: %w", err)
	}
	return tmpl, nil
}

// WriteReadme 用模板渲染 README。
func WriteReadme(writer io.Writer, tmpl *template.Template, data ReadmeData) error {
	if err := tmpl.Execute(writer, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return nil
}
