package walker

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoloc/internal/cache"
	"repoloc/internal/languages"
	"repoloc/internal/model"
	"repoloc/internal/scanner"
)

// fakeCloner 按 URL 把预置文件写入目标目录。
type fakeCloner struct {
	files map[string]map[string]string
	calls []string
	err   error
}

func (c *fakeCloner) Clone(_ context.Context, cloneURL string, dest string) error {
	c.calls = append(c.calls, cloneURL)
	if c.err != nil {
		return c.err
	}
	for name, content := range c.files[cloneURL] {
		path := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// countingMeasurer 记录调用次数并委托给真实扫描器。
type countingMeasurer struct {
	inner Measurer
	calls []string
}

func (m *countingMeasurer) Measure(path string) (map[string]model.LanguageCounts, error) {
	m.calls = append(m.calls, filepath.Base(path))
	return m.inner.Measure(path)
}

var (
	t0 = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
)

func fixtures() *fakeCloner {
	return &fakeCloner{files: map[string]map[string]string{
		"https://example.com/a.git": {
			"main.py":     "# entry\nprint('a')\n\n",
			"lib/util.go": "package lib\n\nfunc F() {} // f\n",
		},
		"https://example.com/b.git": {
			"app.py": "x = 1\ny = 2\n",
		},
	}}
}

func projects() []model.Project {
	return []model.Project{
		{CloneURL: "https://example.com/a.git", PushedAt: t0, Name: "repo-a"},
		{CloneURL: "https://example.com/b.git", PushedAt: t1, Name: "repo-b"},
	}
}

func newMeasurer() *countingMeasurer {
	return &countingMeasurer{inner: scanner.NewService(languages.NewRegistry(), 2)}
}

func TestDecide(t *testing.T) {
	lastUpdate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, ActionScanNew, Decide(false, lastUpdate.Add(-time.Hour), lastUpdate))
	assert.Equal(t, ActionScanNew, Decide(false, lastUpdate.Add(time.Hour), lastUpdate))
	assert.Equal(t, ActionReuse, Decide(true, lastUpdate.Add(-time.Second), lastUpdate))
	assert.Equal(t, ActionRescan, Decide(true, lastUpdate, lastUpdate))
	assert.Equal(t, ActionRescan, Decide(true, lastUpdate.Add(time.Second), lastUpdate))
}

func TestRunEmptyCacheScansEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	runStart := t1.Add(time.Hour)
	cloner := fixtures()
	measurer := newMeasurer()

	var total *model.RepoReport
	err := cache.With(path, runStart, func(store *cache.Store) error {
		w := New(store, cloner, measurer, WithTempDir(t.TempDir()))
		summary, err := w.Run(context.Background(), projects())
		require.NoError(t, err)
		assert.Equal(t, Summary{Scanned: 2}, summary)

		for _, name := range []string{"repo-a", "repo-b"} {
			found, err := store.Contains(name)
			require.NoError(t, err)
			assert.True(t, found, name)
		}
		total = w.Total()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"repo-a", "repo-b"}, measurer.calls)
	assert.Empty(t, total.Name)
	assert.Equal(t, []string{"Go", "Python"}, total.Languages())

	python, _ := total.Get("Python")
	assert.Equal(t, model.LanguageReport{Language: "Python", Files: 2, Lines: 5, Code: 3, Comments: 1, Blanks: 1}, python)
	golang, _ := total.Get("Go")
	assert.Equal(t, model.LanguageReport{Language: "Go", Files: 1, Lines: 3, Code: 2, Comments: 1, Blanks: 1}, golang)
}

func TestRunTwiceReusesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first := runOnce(t, path, t1.Add(time.Hour), fixtures(), newMeasurer())

	cloner := fixtures()
	measurer := newMeasurer()
	second := runOnce(t, path, t1.Add(48*time.Hour), cloner, measurer)

	assert.Empty(t, cloner.calls)
	assert.Empty(t, measurer.calls)
	assert.Equal(t, first.Reports(), second.Reports())
}

func TestRunFreshnessBoundary(t *testing.T) {
	runStart := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		pushedAt time.Time
		scanned  bool
	}{
		{name: "one second before", pushedAt: runStart.Add(-time.Second), scanned: false},
		{name: "exactly equal", pushedAt: runStart, scanned: true},
		{name: "one second after", pushedAt: runStart.Add(time.Second), scanned: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			seed := []model.Project{{CloneURL: "https://example.com/a.git", PushedAt: runStart.Add(-time.Hour), Name: "repo-a"}}
			runProjects(t, path, runStart, fixtures(), newMeasurer(), seed)

			cloner := fixtures()
			visit := []model.Project{{CloneURL: "https://example.com/a.git", PushedAt: tc.pushedAt, Name: "repo-a"}}
			runProjects(t, path, runStart.Add(time.Minute), cloner, newMeasurer(), visit)

			assert.Equal(t, tc.scanned, len(cloner.calls) == 1)

			require.NoError(t, cache.With(path, runStart, func(store *cache.Store) error {
				lastUpdate, err := store.LastUpdate("repo-a")
				require.NoError(t, err)
				if tc.scanned {
					assert.True(t, lastUpdate.Equal(runStart.Add(time.Minute)))
				} else {
					assert.True(t, lastUpdate.Equal(runStart))
				}
				return nil
			}))
		})
	}
}

func TestRunOverwritesChangedRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	runStart := t1.Add(time.Hour)
	runOnce(t, path, runStart, fixtures(), newMeasurer())

	changed := fixtures()
	changed.files["https://example.com/b.git"] = map[string]string{"main.rs": "fn main() {}\n"}
	list := projects()
	list[1].PushedAt = runStart.Add(time.Hour)

	total := runProjects(t, path, runStart.Add(2*time.Hour), changed, newMeasurer(), list)

	assert.Equal(t, []string{"https://example.com/b.git"}, changed.calls)
	assert.Equal(t, []string{"Go", "Python", "Rust"}, total.Languages())
	python, _ := total.Get("Python")
	assert.Equal(t, int64(1), python.Files)
}

func TestRunCloneFailureAbortsAndKeepsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	boom := stderrors.New("exit status 128")

	cloner := &failingCloner{inner: fixtures(), failOn: "https://example.com/b.git", err: boom}
	err := cache.With(path, t1.Add(time.Hour), func(store *cache.Store) error {
		_, err := New(store, cloner, newMeasurer(), WithTempDir(t.TempDir())).Run(context.Background(), projects())
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))

	require.NoError(t, cache.With(path, t1, func(store *cache.Store) error {
		found, err := store.Contains("repo-a")
		require.NoError(t, err)
		assert.True(t, found)
		found, err = store.Contains("repo-b")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestRunMeasureFailureAbortsAndKeepsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	boom := stderrors.New("read failed")

	measurer := &failingMeasurer{inner: newMeasurer(), failOn: "repo-b", err: boom}
	var summary Summary
	err := cache.With(path, t1.Add(time.Hour), func(store *cache.Store) error {
		var runErr error
		summary, runErr = New(store, fixtures(), measurer, WithTempDir(t.TempDir())).Run(context.Background(), projects())
		return runErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))
	assert.Equal(t, Summary{Scanned: 1}, summary)

	require.NoError(t, cache.With(path, t1, func(store *cache.Store) error {
		found, err := store.Contains("repo-a")
		require.NoError(t, err)
		assert.True(t, found)
		found, err = store.Contains("repo-b")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemoryStore()
	cloner := fixtures()
	_, err := New(store, cloner, newMeasurer()).Run(ctx, projects())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cloner.calls)
}

func TestRunRemovesTemporaryDirectories(t *testing.T) {
	tempRoot := t.TempDir()
	_, err := New(newMemoryStore(), fixtures(), newMeasurer(), WithTempDir(tempRoot)).Run(context.Background(), projects())
	require.NoError(t, err)

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTotalIsACopy(t *testing.T) {
	w := New(newMemoryStore(), fixtures(), newMeasurer(), WithTempDir(t.TempDir()))
	_, err := w.Run(context.Background(), projects())
	require.NoError(t, err)

	snapshot := w.Total()
	snapshot.Insert(model.LanguageReport{Language: "Python", Files: 100})

	python, _ := w.Total().Get("Python")
	assert.Equal(t, int64(2), python.Files)
}

func runOnce(t *testing.T, path string, runStart time.Time, cloner Cloner, measurer Measurer) *model.RepoReport {
	t.Helper()
	return runProjects(t, path, runStart, cloner, measurer, projects())
}

func runProjects(t *testing.T, path string, runStart time.Time, cloner Cloner, measurer Measurer, list []model.Project) *model.RepoReport {
	t.Helper()

	var total *model.RepoReport
	err := cache.With(path, runStart, func(store *cache.Store) error {
		w := New(store, cloner, measurer, WithTempDir(t.TempDir()))
		if _, err := w.Run(context.Background(), list); err != nil {
			return err
		}
		total = w.Total()
		return nil
	})
	require.NoError(t, err)
	return total
}

type failingCloner struct {
	inner  Cloner
	failOn string
	err    error
}

func (c *failingCloner) Clone(ctx context.Context, cloneURL string, dest string) error {
	if cloneURL == c.failOn {
		return c.err
	}
	return c.inner.Clone(ctx, cloneURL, dest)
}

// failingMeasurer 在统计指定目录名时返回错误。
type failingMeasurer struct {
	inner  Measurer
	failOn string
	err    error
}

func (m *failingMeasurer) Measure(path string) (map[string]model.LanguageCounts, error) {
	if filepath.Base(path) == m.failOn {
		return nil, m.err
	}
	return m.inner.Measure(path)
}

// memoryStore 是不落盘的 Store 实现。
type memoryStore struct {
	reports map[string]*model.RepoReport
	updated map[string]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reports: make(map[string]*model.RepoReport),
		updated: make(map[string]time.Time),
	}
}

func (s *memoryStore) Contains(name string) (bool, error) {
	_, ok := s.reports[name]
	return ok, nil
}

func (s *memoryStore) LastUpdate(name string) (time.Time, error) {
	return s.updated[name], nil
}

func (s *memoryStore) Get(name string) (*model.RepoReport, error) {
	return s.reports[name].Clone(), nil
}

func (s *memoryStore) Register(report *model.RepoReport) error {
	s.reports[report.Name] = report.Clone()
	s.updated[report.Name] = time.Now()
	return nil
}
