package model

import (
	"encoding/json"
	"sort"
)

// Header 是 AsTable 的表头。
type Header [6]string

// ReportLine 是 AsTable 的一行：语言、文件数、总行数、代码、注释、空行。
type ReportLine struct {
	Language string
	Files    int64
	Lines    int64
	Code     int64
	Comments int64
	Blanks   int64
}

// TableHeader 是固定的表头顺序。
var TableHeader = Header{"Language", "Files", "Lines", "Code", "Comments", "Blanks"}

// LanguageCounts 是扫描器针对单个语言给出的五项计数。
type LanguageCounts struct {
	Files    int64 `json:"files"`
	Lines    int64 `json:"lines"`
	Code     int64 `json:"code"`
	Comments int64 `json:"comments"`
	Blanks   int64 `json:"blanks"`
}

// LanguageReport 表示某个仓库一次扫描中单个语言的统计。
// Lines == Code + Comments + Blanks 不做校验，扫描器的结果原样信任。
type LanguageReport struct {
	Language string `json:"language"`
	Files    int64  `json:"files"`
	Lines    int64  `json:"lines"`
	Code     int64  `json:"code"`
	Comments int64  `json:"comments"`
	Blanks   int64  `json:"blanks"`
}

// NewLanguageReport 由语言名与计数构造 LanguageReport。
func NewLanguageReport(language string, counts LanguageCounts) LanguageReport {
	return LanguageReport{
		Language: language,
		Files:    counts.Files,
		Lines:    counts.Lines,
		Code:     counts.Code,
		Comments: counts.Comments,
		Blanks:   counts.Blanks,
	}
}

// Merge 仅在语言相同时把 other 的各项计数累加到当前对象。
// 语言不同时静默忽略，不返回错误。
func (r *LanguageReport) Merge(other LanguageReport) {
	if other.Language != r.Language {
		return
	}
	r.Files += other.Files
	r.Lines += other.Lines
	r.Code += other.Code
	r.Comments += other.Comments
	r.Blanks += other.Blanks
}

// ReportLine 返回表格行形式。
func (r LanguageReport) ReportLine() ReportLine {
	return ReportLine{
		Language: r.Language,
		Files:    r.Files,
		Lines:    r.Lines,
		Code:     r.Code,
		Comments: r.Comments,
		Blanks:   r.Blanks,
	}
}

// RepoReport 是一个仓库（或全部仓库总计）按语言聚合的报告。
// 语言保持首次插入的顺序。Name 为空表示总计累加器。
//
// RepoReport 不是并发安全的：同一时间只能有一个持有者修改它。
type RepoReport struct {
	Name    string
	order   []string
	reports map[string]*LanguageReport
}

// NewRepoReport 创建空报告。
func NewRepoReport(name string) *RepoReport {
	return &RepoReport{
		Name:    name,
		reports: make(map[string]*LanguageReport),
	}
}

// FromCounts 用扫描器输出构造仓库报告，语言按名称排序插入以保证输出稳定。
func FromCounts(name string, counts map[string]LanguageCounts) *RepoReport {
	languages := make([]string, 0, len(counts))
	for language := range counts {
		languages = append(languages, language)
	}
	sort.Strings(languages)

	report := NewRepoReport(name)
	for _, language := range languages {
		report.Insert(NewLanguageReport(language, counts[language]))
	}
	return report
}

// Insert 插入一个语言报告；语言已存在时合并计数。
// 传入值会被复制，之后修改调用方的值不会影响本报告。
func (r *RepoReport) Insert(report LanguageReport) {
	if r.reports == nil {
		r.reports = make(map[string]*LanguageReport)
	}
	if existing, ok := r.reports[report.Language]; ok {
		existing.Merge(report)
		return
	}
	entry := report
	r.reports[report.Language] = &entry
	r.order = append(r.order, report.Language)
}

// Merge 按 other 的语言顺序把其全部条目 Insert 到当前报告。
// 该操作不是幂等的：同一个 other 合并两次会重复计数。
func (r *RepoReport) Merge(other *RepoReport) {
	if other == nil {
		return
	}
	// 先取快照，r.Merge(r) 时也只遍历合并前的条目。
	entries := other.Reports()
	for _, entry := range entries {
		r.Insert(entry)
	}
}

// Len 返回语言数量。
func (r *RepoReport) Len() int {
	return len(r.order)
}

// Languages 返回按插入顺序排列的语言名。
func (r *RepoReport) Languages() []string {
	return append([]string(nil), r.order...)
}

// Get 返回指定语言的报告副本。
func (r *RepoReport) Get(language string) (LanguageReport, bool) {
	entry, ok := r.reports[language]
	if !ok {
		return LanguageReport{}, false
	}
	return *entry, true
}

// Reports 返回按插入顺序排列的语言报告副本。
func (r *RepoReport) Reports() []LanguageReport {
	result := make([]LanguageReport, 0, len(r.order))
	for _, language := range r.order {
		result = append(result, *r.reports[language])
	}
	return result
}

// Clone 返回一个深拷贝。
func (r *RepoReport) Clone() *RepoReport {
	clone := NewRepoReport(r.Name)
	for _, entry := range r.Reports() {
		clone.Insert(entry)
	}
	return clone
}

// Totals 返回所有语言的合计，语言名固定为 Total。
func (r *RepoReport) Totals() LanguageReport {
	total := LanguageReport{Language: "Total"}
	for _, entry := range r.Reports() {
		entry.Language = total.Language
		total.Merge(entry)
	}
	return total
}

// AsTable 返回表头与按插入顺序排列的表格行，不修改报告。
func (r *RepoReport) AsTable() (Header, []ReportLine) {
	rows := make([]ReportLine, 0, len(r.order))
	for _, language := range r.order {
		rows = append(rows, r.reports[language].ReportLine())
	}
	return TableHeader, rows
}

// repoReportJSON 是 RepoReport 的 JSON 形态，languages 保持插入顺序。
type repoReportJSON struct {
	Name      string           `json:"name"`
	Languages []LanguageReport `json:"languages"`
}

// MarshalJSON 实现 json.Marshaler。
func (r *RepoReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(repoReportJSON{
		Name:      r.Name,
		Languages: r.Reports(),
	})
}

// UnmarshalJSON 实现 json.Unmarshaler，重复语言会按 Insert 语义合并。
func (r *RepoReport) UnmarshalJSON(data []byte) error {
	var decoded repoReportJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*r = *NewRepoReport(decoded.Name)
	for _, entry := range decoded.Languages {
		r.Insert(entry)
	}
	return nil
}
