package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repoloc/internal/languages"
	"repoloc/internal/model"
)

// writeFixtureFile 是测试辅助函数，用于在临时目录快速落地测试文件。
func writeFixtureFile(t *testing.T, path string, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir fixture dir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture file failed: %v", err)
	}
}

// TestScanSingleFile 验证 scan 支持“直接传单文件路径”。
func TestScanSingleFile(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "single.go")

	writeFixtureFile(t, filePath, strings.Join([]string{
		"package main",
		"// top comment",
		"func main() { x := 1 // inline }",
	}, "\n"))

	service := NewService(languages.NewRegistry(), 2)
	result, err := service.ScanPath(filePath)
	if err != nil {
		t.Fatalf("scan single file failed: %v", err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("expected 1 scanned file, got %d", len(result.Files))
	}
	language := result.Languages[0]
	if language.Files != 1 {
		t.Fatalf("expected files=1, got %d", language.Files)
	}
	metrics := language.Metrics
	if metrics.Total != 3 || metrics.Code != 2 || metrics.Comment != 2 || metrics.Blank != 0 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}

	fileMetrics := result.Files[0]
	if fileMetrics.Path != "single.go" {
		t.Fatalf("expected display path single.go, got %s", fileMetrics.Path)
	}
	if fileMetrics.Language != "Go" {
		t.Fatalf("expected language Go, got %s", fileMetrics.Language)
	}
}

// TestScanDirectoryLanguages 验证目录扫描时按语言汇总。
func TestScanDirectoryLanguages(t *testing.T) {
	tempDir := t.TempDir()

	writeFixtureFile(t, filepath.Join(tempDir, "main.go"), strings.Join([]string{
		"package main",
		"func main() {}",
	}, "\n"))
	writeFixtureFile(t, filepath.Join(tempDir, "web", "app.js"), strings.Join([]string{
		"const x = 1; // js comment",
	}, "\n"))
	writeFixtureFile(t, filepath.Join(tempDir, "README.txt"), "not a source file")

	service := NewService(languages.NewRegistry(), 4)
	result, err := service.ScanPath(tempDir)
	if err != nil {
		t.Fatalf("scan directory failed: %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("expected 2 scanned files, got %d", len(result.Files))
	}
	if len(result.Languages) != 2 {
		t.Fatalf("expected 2 language summaries, got %d", len(result.Languages))
	}
	if result.Languages[0].Language != "Go" || result.Languages[1].Language != "JavaScript" {
		t.Fatalf("unexpected language order: %+v", result.Languages)
	}
}

// TestScanSkipsExcludedAndVCSFiles 验证默认忽略模式与 .git 目录。
func TestScanSkipsExcludedAndVCSFiles(t *testing.T) {
	tempDir := t.TempDir()

	writeFixtureFile(t, filepath.Join(tempDir, "main.py"), "print(1)\n")
	writeFixtureFile(t, filepath.Join(tempDir, ".git", "hooks", "pre-commit.sh"), "echo hook\n")
	writeFixtureFile(t, filepath.Join(tempDir, "data.json"), "{}\n")
	writeFixtureFile(t, filepath.Join(tempDir, "gen", "skip_me.py"), "print(2)\n")

	service := NewService(languages.NewRegistry(), 2, WithExcludes(append(DefaultExcludes, "skip_*")))
	result, err := service.ScanPath(tempDir)
	if err != nil {
		t.Fatalf("scan directory failed: %v", err)
	}

	if len(result.Files) != 1 || result.Files[0].Path != "main.py" {
		t.Fatalf("unexpected files: %+v", result.Files)
	}
}

// TestMeasureReturnsCounts 验证 Measure 输出语言 -> 计数映射。
func TestMeasureReturnsCounts(t *testing.T) {
	tempDir := t.TempDir()
	writeFixtureFile(t, filepath.Join(tempDir, "a.py"), "# c\nx = 1\n\n")
	writeFixtureFile(t, filepath.Join(tempDir, "pkg", "b.py"), "y = 2\n")

	counts, err := NewService(languages.NewRegistry(), 2).Measure(tempDir)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}

	want := model.LanguageCounts{Files: 2, Lines: 4, Code: 2, Comments: 1, Blanks: 1}
	if len(counts) != 1 || counts["Python"] != want {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

// TestMeasureMissingPath 验证路径不存在时返回错误。
func TestMeasureMissingPath(t *testing.T) {
	_, err := NewService(languages.NewRegistry(), 1).Measure(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatalf("expected error for missing path, got nil")
	}
}

// TestScanUnsupportedSingleFile 验证单文件模式下不支持后缀会返回错误。
func TestScanUnsupportedSingleFile(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "demo.txt")
	writeFixtureFile(t, filePath, "plain text")

	service := NewService(languages.NewRegistry(), 1)
	_, err := service.ScanPath(filePath)
	if err == nil {
		t.Fatalf("expected unsupported extension error, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("unexpected error: %v", err)
	}
}
