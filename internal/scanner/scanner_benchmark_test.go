package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"repoloc/internal/languages"
)

// prepareRepositoryTree 模拟一次克隆后的工作区：多种语言、.git 目录与默认忽略的文件。
func prepareRepositoryTree(b *testing.B, files int) string {
	b.Helper()

	root := filepath.Join(b.TempDir(), "repo")
	fixtures := map[string]string{
		"pkg/g%d.go":       "package p\n\n// doc\nvar x = 1 // c\n",
		"web/j%d.ts":       "/* header */\nconst x: number = 1;\n",
		"scripts/s%d.py":   "# comment\n\"\"\"doc\"\"\"\nprint(1)\n",
		"data/d%d.json":    "{\"skip\": true}\n",
		".git/objects/o%d": "binary",
	}

	for i := 0; i < files; i++ {
		for pattern, content := range fixtures {
			path := filepath.Join(root, fmt.Sprintf(pattern, i))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				b.Fatalf("mkdir fixture dir failed: %v", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				b.Fatalf("write fixture failed: %v", err)
			}
		}
	}
	return root
}

// BenchmarkMeasureRepository 衡量 walker 调用路径上的整仓统计性能。
func BenchmarkMeasureRepository(b *testing.B) {
	for _, workers := range []int{1, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			root := prepareRepositoryTree(b, 200)
			service := NewService(languages.NewRegistry(), workers, WithExcludes(DefaultExcludes))

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				counts, err := service.Measure(root)
				if err != nil {
					b.Fatalf("measure failed: %v", err)
				}
				if len(counts) != 3 {
					b.Fatalf("unexpected languages: %v", counts)
				}
			}
		})
	}
}
