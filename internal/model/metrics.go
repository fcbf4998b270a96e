// Package model 定义 repoloc 的核心数据模型。
// 扫描器产出文件级与语言级指标，聚合层把它们折叠成 LanguageReport/RepoReport，
// 缓存层与输出层共同使用这些结构。
package model

// LineMetrics 表示一组行级统计值。
//
// 注意：
// - Total 表示总行数（每行计 1）
// - Code/Comment 可以在同一行同时 +1（例如: x := 1 // note）
// - Blank 仅用于既不是代码也不是注释的空白行
type LineMetrics struct {
	Total   int64 `json:"total"`
	Code    int64 `json:"code"`
	Comment int64 `json:"comment"`
	Blank   int64 `json:"blank"`
}

// Add 将另一个统计结果叠加到当前对象。
func (m *LineMetrics) Add(other LineMetrics) {
	m.Total += other.Total
	m.Code += other.Code
	m.Comment += other.Comment
	m.Blank += other.Blank
}

// FileMetrics 表示单文件扫描结果。
type FileMetrics struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Metrics  LineMetrics `json:"metrics"`
}

// LanguageMetrics 表示某个语言在一次扫描中的聚合结果。
type LanguageMetrics struct {
	Language string      `json:"language"`
	Files    int64       `json:"files"`
	Metrics  LineMetrics `json:"metrics"`
}

// Counts 把扫描器的语言汇总转换为聚合层使用的五元计数。
func (m LanguageMetrics) Counts() LanguageCounts {
	return LanguageCounts{
		Files:    m.Files,
		Lines:    m.Metrics.Total,
		Code:     m.Metrics.Code,
		Comments: m.Metrics.Comment,
		Blanks:   m.Metrics.Blank,
	}
}

// ScanError 记录单文件扫描失败信息。
// 单文件失败不阻断整个目录的扫描。
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ScanResult 是一次目录扫描的完整输出。
type ScanResult struct {
	ScannedPath string            `json:"scanned_path"`
	Files       []FileMetrics     `json:"files"`
	Languages   []LanguageMetrics `json:"languages"`
	Errors      []ScanError       `json:"errors"`
}

// CountsByLanguage 返回 语言名 -> 计数 的映射，即 Measurer 约定的输出形态。
func (r ScanResult) CountsByLanguage() map[string]LanguageCounts {
	counts := make(map[string]LanguageCounts, len(r.Languages))
	for _, item := range r.Languages {
		counts[item.Language] = item.Counts()
	}
	return counts
}
