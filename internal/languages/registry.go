// Package languages 提供按语言划分的行分类状态机。
// 每种语言由一份 Syntax 描述驱动同一个 FSM 引擎，Registry 负责后缀到语言的映射。
package languages

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"repoloc/internal/model"
)

// Analyzer 定义单语言分析器接口。
type Analyzer interface {
	// Name 返回语言名称（例如 Go、JavaScript）。
	Name() string
	// Extensions 返回该语言支持的后缀列表（包含点号，如 .go）。
	Extensions() []string
	// Analyze 执行流式扫描并输出统计结果。
	Analyze(reader io.Reader) (model.LineMetrics, error)
}

// LanguageDescriptor 用于对外展示语言及后缀信息。
type LanguageDescriptor struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// Registry 管理语言分析器注册与后缀映射。
type Registry struct {
	analyzers      []Analyzer
	analyzerByExt  map[string]Analyzer
	analyzerByName map[string]Analyzer
}

// NewRegistry 创建并注册所有内置语言分析器。
func NewRegistry() *Registry {
	analyzers := builtinAnalyzers()

	registry := &Registry{
		analyzers:      analyzers,
		analyzerByExt:  make(map[string]Analyzer),
		analyzerByName: make(map[string]Analyzer, len(analyzers)),
	}

	for _, analyzer := range analyzers {
		registry.analyzerByName[analyzer.Name()] = analyzer
		for _, ext := range analyzer.Extensions() {
			registry.analyzerByExt[strings.ToLower(ext)] = analyzer
		}
	}

	return registry
}

// AnalyzerForFile 根据文件后缀查找分析器。
func (r *Registry) AnalyzerForFile(path string) (Analyzer, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	analyzer, ok := r.analyzerByExt[ext]
	return analyzer, ok
}

// Analyzer 根据语言名称查找分析器。
func (r *Registry) Analyzer(name string) (Analyzer, bool) {
	analyzer, ok := r.analyzerByName[name]
	return analyzer, ok
}

// Languages 返回按名称排序的已注册语言清单。
func (r *Registry) Languages() []LanguageDescriptor {
	result := make([]LanguageDescriptor, 0, len(r.analyzers))
	for _, analyzer := range r.analyzers {
		extensions := append([]string(nil), analyzer.Extensions()...)
		sort.Strings(extensions)
		result = append(result, LanguageDescriptor{
			Name:       analyzer.Name(),
			Extensions: extensions,
		})
	}

	sort.Slice(result, func(i int, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}
