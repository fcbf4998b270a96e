package report

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"sort"
	"text/template"
	"time"

	"repoloc/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// 图表布局常量，单位为像素。
const (
	figureWidth  = 960
	labelWidth   = 150
	valueWidth   = 90
	titleHeight  = 90
	rowHeight    = 28
	barHeight    = 20
	footerHeight = 64
)

// metricColors 与图例顺序一致。
var metricColors = map[string]string{
	"lines":    "#fdaa48",
	"code":     "#6488ea",
	"comments": "#efc0fe",
	"blanks":   "#8cfd7e",
}

var figureTemplate = template.Must(template.New("figure.svg.tmpl").Funcs(template.FuncMap{
	"xml": template.HTMLEscapeString,
	"add": func(a, b int) int { return a + b },
	"mul": func(a, b int) int { return a * b },
}).ParseFS(templateFS, "templates/figure.svg.tmpl"))

// FigureOptions 控制 SVG 图表内容。
type FigureOptions struct {
	// Metrics 是堆叠显示的指标，取值 lines/code/comments/blanks，为空时使用 code/comments/blanks。
	Metrics []string
	// Date 显示在标题中，零值表示当天。
	Date time.Time
	// Title 是标题第一行。
	Title string
}

type figureSegment struct {
	X      float64
	Y      int
	Width  float64
	Color  string
	Metric string
	Value  int64
}

type figureRow struct {
	Label    string
	TextY    int
	Segments []figureSegment
	Total    int64
	TotalX   float64
}

type legendItem struct {
	X     int
	Y     int
	Color string
	Label string
}

type figureData struct {
	Width       int
	Height      int
	CenterX     int
	PlotCenterX int
	LabelX      int
	BarHeight   int
	AxisY       int
	Title       []string
	Rows        []figureRow
	Legend      []legendItem
}

// WriteFigure 绘制横向堆叠柱状图：每种语言一行，按总行数升序从下往上排列，
// 总行数最多的语言位于最上方。
func WriteFigure(writer io.Writer, report *model.RepoReport, options FigureOptions) error {
	metrics := options.Metrics
	if len(metrics) == 0 {
		metrics = []string{"code", "comments", "blanks"}
	}
	for _, metric := range metrics {
		if _, ok := metricColors[metric]; !ok {
			return fmt.Errorf("unsupported figure metric %q", metric)
		}
	}
	date := options.Date
	if date.IsZero() {
		date = time.Now()
	}
	title := options.Title
	if title == "" {
		title = "What languages should you expect in my public repos?"
	}

	_, lines := report.AsTable()
	// 稳定排序保证行数相同时保持报告中的先后顺序。
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Lines < lines[j].Lines
	})

	var maxTotal int64
	for _, line := range lines {
		if total := stackedTotal(line, metrics); total > maxTotal {
			maxTotal = total
		}
	}
	plotWidth := float64(figureWidth - labelWidth - valueWidth)
	scale := 0.0
	if maxTotal > 0 {
		scale = plotWidth / float64(maxTotal)
	}

	data := figureData{
		Width:       figureWidth,
		Height:      titleHeight + len(lines)*rowHeight + footerHeight,
		CenterX:     figureWidth / 2,
		PlotCenterX: labelWidth + int(plotWidth)/2,
		LabelX:      labelWidth - 8,
		BarHeight:   barHeight,
		Title:       []string{title, "last updated: " + date.Format(time.DateOnly)},
	}
	data.AxisY = titleHeight + len(lines)*rowHeight + 20

	// 从上往下输出，升序数组的最后一项在最上面。
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		top := titleHeight + (len(lines)-1-i)*rowHeight
		row := figureRow{Label: line.Language, TextY: top + barHeight - 5}

		x := float64(labelWidth)
		for _, metric := range metrics {
			value := metricValue(line, metric)
			width := float64(value) * scale
			row.Segments = append(row.Segments, figureSegment{
				X:      x,
				Y:      top,
				Width:  width,
				Color:  metricColors[metric],
				Metric: metric,
				Value:  value,
			})
			x += width
			row.Total += value
		}
		row.TotalX = x + 6
		data.Rows = append(data.Rows, row)
	}

	legendX := labelWidth
	for _, metric := range metrics {
		data.Legend = append(data.Legend, legendItem{
			X:     legendX,
			Y:     data.AxisY + 16,
			Color: metricColors[metric],
			Label: metric,
		})
		legendX += 110
	}

	return figureTemplate.Execute(writer, data)
}

// WriteFigureFile 把图表写入 path。
func WriteFigureFile(path string, report *model.RepoReport, options FigureOptions) error {
	var buffer bytes.Buffer
	if err := WriteFigure(&buffer, report, options); err != nil {
		return fmt.Errorf("render figure: %w", err)
	}
	return writeFile(path, buffer.Bytes())
}

func stackedTotal(line model.ReportLine, metrics []string) int64 {
	var total int64
	for _, metric := range metrics {
		total += metricValue(line, metric)
	}
	return total
}

func metricValue(line model.ReportLine, metric string) int64 {
	switch metric {
	case "lines":
		return line.Lines
	case "code":
		return line.Code
	case "comments":
		return line.Comments
	case "blanks":
		return line.Blanks
	default:
		return 0
	}
}
