// Package cache 提供按仓库名持久化 RepoReport 的缓存存储。
//
// 每个条目保存 {report, last_update}。last_update 是写入该条目的那次运行的
// 开始时间（asOf），而不是扫描完成时间：同一次运行的所有条目共享同一个
// 时间基准，下一次运行用它与仓库的 pushed_at 比较。
//
// 存储由一个 SQLite 文件承载，同一时间只允许一个进程打开。
// 条目只以仓库名为键，因此一个文件只服务一个账号：meta 表记录所属账号，
// 用另一个账号打开会被拒绝。
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动

	"repoloc/internal/model"
)

const (
	// SchemaVersion 是表结构版本，写入 meta 表。
	SchemaVersion = 1
	// ReportFormatVersion 是 report_json 文档的格式版本。
	ReportFormatVersion = 1
)

// Entry 是一条缓存记录。
type Entry struct {
	Name       string
	Report     *model.RepoReport
	LastUpdate time.Time
	RunID      string
}

// reportDocument 是 report_json 列的序列化格式。
type reportDocument struct {
	Version int               `json:"version"`
	Report  *model.RepoReport `json:"report"`
}

// Store 是已打开的缓存句柄。
type Store struct {
	conn     *sql.DB
	path     string
	asOf     time.Time
	runID    string
	account  string
	readOnly bool
}

// Option 配置 Store。
type Option func(*Store)

// WithRunID 设置写入条目的运行标识。
func WithRunID(runID string) Option {
	return func(s *Store) {
		s.runID = runID
	}
}

// WithAccount 把缓存绑定到 account。首次打开时记录账号，之后账号不一致会返回 CONFLICT。
// 账号比较不区分大小写，与 GitHub 用户名一致。
func WithAccount(account string) Option {
	return func(s *Store) {
		s.account = strings.TrimSpace(account)
	}
}

// ReadOnly 以只读方式打开已有缓存。文件不存在时返回 NOT_FOUND，不会创建任何文件。
func ReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}

// Open 打开（必要时创建）path 处的缓存文件。
// asOf 是本次运行的开始时间，Register 写入的 last_update 都取这个值。
func Open(path string, asOf time.Time, opts ...Option) (*Store, error) {
	store := &Store{
		path: path,
		asOf: asOf.UTC(),
	}
	for _, opt := range opts {
		opt(store)
	}

	dsn, err := store.dataSource()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to open cache")
	}
	// 单连接：缓存只被一个 walker 顺序访问。
	conn.SetMaxOpenConns(1)
	store.conn = conn

	if err := store.initialize(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return store, nil
}

// With 打开缓存、执行 fn，并在任何退出路径上关闭缓存。
func With(path string, asOf time.Time, fn func(*Store) error, opts ...Option) (err error) {
	store, err := Open(path, asOf, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(store)
}

// dataSource 返回驱动使用的 DSN。只读模式必须使用 file: URI，
// 否则驱动会丢弃 mode=ro 参数。
func (s *Store) dataSource() (string, error) {
	if s.readOnly {
		if _, err := os.Stat(s.path); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WithContext(errors.New(errors.CodeNotFound, "cache file not found"), "path", s.path)
			}
			return "", errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "failed to stat cache file"), "path", s.path)
		}
		return "file:" + filepath.ToSlash(s.path) + "?mode=ro", nil
	}

	if directory := filepath.Dir(s.path); directory != "." && directory != "" {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return "", errors.Wrap(err, errors.CodeDatabase, "failed to create cache directory")
		}
	}
	return s.path, nil
}

// initialize 设置 pragma、建表并校验表结构版本与所属账号。
// 只读模式只做校验。
func (s *Store) initialize() error {
	if s.readOnly {
		if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			return errors.Wrap(err, errors.CodeDatabase, "failed to configure cache")
		}
		if err := s.checkSchemaVersion(); err != nil {
			return err
		}
		return s.checkAccount()
	}

	statements := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS repo_reports (
			name        TEXT PRIMARY KEY,
			report_json TEXT NOT NULL,
			last_update TEXT NOT NULL,
			run_id      TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, statement := range statements {
		if _, err := s.conn.Exec(statement); err != nil {
			return errors.Wrap(err, errors.CodeDatabase, "failed to initialize cache schema")
		}
	}

	if err := s.checkSchemaVersion(); err != nil {
		return err
	}
	return s.checkAccount()
}

// checkSchemaVersion 校验 meta.schema_version，缺失时写入当前版本。
func (s *Store) checkSchemaVersion() error {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) && !s.readOnly {
		_, err = s.conn.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(SchemaVersion))
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabase, "failed to record schema version")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "failed to read schema version")
	}

	if version, convErr := strconv.Atoi(value); convErr != nil || version != SchemaVersion {
		err := errors.Newf(errors.CodeSchemaVersionIncompatible, "unsupported cache schema version %q", value)
		return errors.WithContext(err, "path", s.path)
	}
	return nil
}

// checkAccount 校验缓存所属账号，首次以可写方式打开时记录账号。
// 未指定账号时不做校验，供 cache list 等只按路径查看的场景使用。
func (s *Store) checkAccount() error {
	if s.account == "" {
		return nil
	}

	var owner string
	err := s.conn.QueryRow(`SELECT value FROM meta WHERE key = 'account'`).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		if s.readOnly {
			return nil
		}
		if _, err := s.conn.Exec(`INSERT INTO meta (key, value) VALUES ('account', ?)`, s.account); err != nil {
			return errors.Wrap(err, errors.CodeDatabase, "failed to record cache account")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "failed to read cache account")
	}

	if !strings.EqualFold(owner, s.account) {
		err := errors.Newf(errors.CodeConflict, "cache belongs to account %q, not %q", owner, s.account)
		return errors.WithContextMap(err, map[string]interface{}{"path": s.path, "account": s.account})
	}
	return nil
}

// AsOf 返回本次运行的时间基准。
func (s *Store) AsOf() time.Time {
	return s.asOf
}

// Contains 判断缓存中是否存在 name。
func (s *Store) Contains(name string) (bool, error) {
	var found int
	err := s.conn.QueryRow(`SELECT 1 FROM repo_reports WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.CodeDatabase, "failed to look up cache entry")
	}
	return true, nil
}

// Register 以 asOf 作为 last_update 写入报告，已存在的条目会被无条件覆盖。
func (s *Store) Register(report *model.RepoReport) error {
	content, err := json.Marshal(reportDocument{Version: ReportFormatVersion, Report: report})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode report")
	}

	_, err = s.conn.Exec(`
		INSERT OR REPLACE INTO repo_reports (name, report_json, last_update, run_id)
		VALUES (?, ?, ?, ?)
	`, report.Name, string(content), s.asOf.Format(time.RFC3339Nano), s.runID)
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "failed to register report"), "repo", report.Name)
	}
	return nil
}

// Get 返回 name 对应的报告；不存在时返回 NOT_FOUND 错误。
// 调用方应先用 Contains 判断。
func (s *Store) Get(name string) (*model.RepoReport, error) {
	entry, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.Report, nil
}

// LastUpdate 返回 name 对应条目的 last_update；不存在时返回 NOT_FOUND 错误。
func (s *Store) LastUpdate(name string) (time.Time, error) {
	var value string
	err := s.conn.QueryRow(`SELECT last_update FROM repo_reports WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, notFound(name)
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.CodeDatabase, "failed to read cache entry")
	}
	return parseTimestamp(name, value)
}

// Entries 返回按名称排序的全部条目。
func (s *Store) Entries() ([]Entry, error) {
	rows, err := s.conn.Query(`SELECT name, report_json, last_update, run_id FROM repo_reports ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to list cache entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var name, content, lastUpdate, runID string
		if err := rows.Scan(&name, &content, &lastUpdate, &runID); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabase, "failed to scan cache entry")
		}
		entry, err := decodeEntry(name, content, lastUpdate, runID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to list cache entries")
	}
	return entries, nil
}

// Close 关闭缓存，可重复调用。
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "failed to close cache")
	}
	return nil
}

// lookup 读取并解码单条记录。
func (s *Store) lookup(name string) (Entry, error) {
	var content, lastUpdate, runID string
	err := s.conn.QueryRow(`SELECT report_json, last_update, run_id FROM repo_reports WHERE name = ?`, name).
		Scan(&content, &lastUpdate, &runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, notFound(name)
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, errors.CodeDatabase, "failed to read cache entry")
	}
	return decodeEntry(name, content, lastUpdate, runID)
}

func decodeEntry(name, content, lastUpdate, runID string) (Entry, error) {
	var document reportDocument
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return Entry{}, errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "failed to decode cached report"), "repo", name)
	}
	if document.Version != ReportFormatVersion || document.Report == nil {
		err := errors.Newf(errors.CodeSchemaVersionIncompatible, "unsupported report format version %d", document.Version)
		return Entry{}, errors.WithContext(err, "repo", name)
	}

	timestamp, err := parseTimestamp(name, lastUpdate)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:       name,
		Report:     document.Report,
		LastUpdate: timestamp,
		RunID:      runID,
	}, nil
}

func parseTimestamp(name, value string) (time.Time, error) {
	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "invalid last_update"), "repo", name)
	}
	return timestamp, nil
}

func notFound(name string) error {
	return errors.WithContext(errors.New(errors.CodeNotFound, fmt.Sprintf("report not found: %s", name)), "repo", name)
}

// IsNotFound 判断 err 是否为条目不存在。
func IsNotFound(err error) bool {
	return errors.GetCode(err) == errors.CodeNotFound
}
