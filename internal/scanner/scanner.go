// Package scanner 提供并发扫描调度能力。
// 该层负责目录遍历、任务分发、并发执行和结果聚合，不负责语法解析细节。
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"repoloc/internal/languages"
	"repoloc/internal/logging"
	"repoloc/internal/model"
)

// DefaultExcludes 是默认忽略的文件名模式。
var DefaultExcludes = []string{"*.json", "*.svg", "*.SVG"}

// skippedDirs 中的目录不会被遍历。
var skippedDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// Service 是扫描服务对象。
type Service struct {
	registry *languages.Registry
	workers  int
	excludes []string
	logger   *slog.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithExcludes 设置按文件名匹配的忽略模式（filepath.Match 语法）。
func WithExcludes(patterns []string) Option {
	return func(s *Service) {
		s.excludes = append([]string(nil), patterns...)
	}
}

// WithLogger 设置日志输出，单文件扫描失败会以 warn 级别记录。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// scanTask 表示一个待分析文件任务。
type scanTask struct {
	absolutePath string
	displayPath  string
	analyzer     languages.Analyzer
}

// workerResult 表示 worker 的执行产物。
type workerResult struct {
	fileMetrics *model.FileMetrics
	scanError   *model.ScanError
}

// NewService 创建扫描服务。workers <= 0 时使用 CPU 数。
func NewService(registry *languages.Registry, workers int, opts ...Option) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	service := &Service{
		registry: registry,
		workers:  workers,
		excludes: append([]string(nil), DefaultExcludes...),
		logger:   logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Measure 扫描 path 并返回按语言汇总的计数。
// 单文件读取失败只记录日志；路径不存在或遍历失败会返回错误。
func (s *Service) Measure(path string) (map[string]model.LanguageCounts, error) {
	result, err := s.ScanPath(path)
	if err != nil {
		return nil, err
	}

	for _, item := range result.Errors {
		s.logger.Warn("skipping unreadable file", "path", item.Path, "error", item.Error)
	}
	return result.CountsByLanguage(), nil
}

// ScanPath 扫描目录或单文件。
// 扫描过程默认并发执行，单文件解析过程采用流式读取。
func (s *Service) ScanPath(targetPath string) (model.ScanResult, error) {
	var result model.ScanResult

	trimmedPath := strings.TrimSpace(targetPath)
	if trimmedPath == "" {
		return result, errors.New("scan path is empty")
	}

	absoluteTarget, err := filepath.Abs(trimmedPath)
	if err != nil {
		return result, fmt.Errorf("resolve absolute path: %w", err)
	}

	info, err := os.Stat(absoluteTarget)
	if err != nil {
		return result, fmt.Errorf("stat path: %w", err)
	}

	result.ScannedPath = absoluteTarget

	tasks := make(chan scanTask, s.workers*4)
	results := make(chan workerResult, s.workers*4)
	walkErrChan := make(chan error, 1)

	var workerGroup sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		workerGroup.Add(1)
		go func() {
			defer workerGroup.Done()
			s.runWorker(tasks, results)
		}()
	}

	go func() {
		defer close(tasks)
		if info.IsDir() {
			walkErrChan <- s.enqueueDirectoryTasks(absoluteTarget, tasks)
			return
		}
		walkErrChan <- s.enqueueSingleFileTask(absoluteTarget, tasks)
	}()

	go func() {
		workerGroup.Wait()
		close(results)
	}()

	result.Files = make([]model.FileMetrics, 0)
	result.Errors = make([]model.ScanError, 0)

	for item := range results {
		if item.fileMetrics != nil {
			result.Files = append(result.Files, *item.fileMetrics)
		}
		if item.scanError != nil {
			result.Errors = append(result.Errors, *item.scanError)
		}
	}

	if walkErr := <-walkErrChan; walkErr != nil {
		return result, walkErr
	}

	buildSummaries(&result)
	return result, nil
}

// excluded 判断文件名是否命中忽略模式。
func (s *Service) excluded(name string) bool {
	for _, pattern := range s.excludes {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// enqueueDirectoryTasks 遍历目录并把可识别语言文件推入任务队列。
func (s *Service) enqueueDirectoryTasks(root string, tasks chan<- scanTask) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			if path != root && skippedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() || s.excluded(entry.Name()) {
			return nil
		}

		analyzer, ok := s.registry.AnalyzerForFile(path)
		if !ok {
			return nil
		}

		relativePath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			relativePath = path
		}

		tasks <- scanTask{
			absolutePath: path,
			displayPath:  filepath.ToSlash(relativePath),
			analyzer:     analyzer,
		}
		return nil
	})
}

// enqueueSingleFileTask 在用户给定单文件路径时创建任务。
func (s *Service) enqueueSingleFileTask(filePath string, tasks chan<- scanTask) error {
	analyzer, ok := s.registry.AnalyzerForFile(filePath)
	if !ok {
		return fmt.Errorf("unsupported file extension: %s", filepath.Ext(filePath))
	}

	tasks <- scanTask{
		absolutePath: filePath,
		displayPath:  filepath.Base(filePath),
		analyzer:     analyzer,
	}
	return nil
}

// runWorker 执行真实的文件读取和语言 FSM 分析。
func (s *Service) runWorker(tasks <-chan scanTask, results chan<- workerResult) {
	for task := range tasks {
		metrics, err := analyzeFile(task)
		if err != nil {
			results <- workerResult{
				scanError: &model.ScanError{
					Path:  task.displayPath,
					Error: err.Error(),
				},
			}
			continue
		}

		results <- workerResult{
			fileMetrics: &model.FileMetrics{
				Path:     task.displayPath,
				Language: task.analyzer.Name(),
				Metrics:  metrics,
			},
		}
	}
}

// analyzeFile 打开文件并交给分析器，关闭失败同样视为该文件失败。
func analyzeFile(task scanTask) (model.LineMetrics, error) {
	file, err := os.Open(task.absolutePath)
	if err != nil {
		return model.LineMetrics{}, err
	}

	metrics, analyzeErr := task.analyzer.Analyze(file)
	closeErr := file.Close()
	if analyzeErr != nil {
		return model.LineMetrics{}, analyzeErr
	}
	if closeErr != nil {
		return model.LineMetrics{}, closeErr
	}
	return metrics, nil
}

// buildSummaries 排序明细并计算语言级汇总。
func buildSummaries(result *model.ScanResult) {
	sort.Slice(result.Files, func(i int, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	sort.Slice(result.Errors, func(i int, j int) bool {
		return result.Errors[i].Path < result.Errors[j].Path
	})

	byLanguage := make(map[string]*model.LanguageMetrics)
	for _, item := range result.Files {
		summary, ok := byLanguage[item.Language]
		if !ok {
			summary = &model.LanguageMetrics{Language: item.Language}
			byLanguage[item.Language] = summary
		}

		summary.Files++
		summary.Metrics.Add(item.Metrics)
	}

	result.Languages = make([]model.LanguageMetrics, 0, len(byLanguage))
	for _, item := range byLanguage {
		result.Languages = append(result.Languages, *item)
	}

	sort.Slice(result.Languages, func(i int, j int) bool {
		return result.Languages[i].Language < result.Languages[j].Language
	})
}
