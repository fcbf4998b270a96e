// Package logging 创建 repoloc 使用的 slog 日志器。
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// levelSilent 高于所有标准级别，用于完全静默。
const levelSilent = slog.Level(100)

// NewLogger 创建写入 w 的文本日志器。
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger 创建丢弃全部输出的日志器，测试与默认值使用。
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelSilent}))
}

// LevelFromString 把 debug/info/warn/error（大小写不敏感）转换为 slog.Level。
// 无法识别时返回 info；quiet 与 silent 返回静默级别。
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "quiet", "silent":
		return levelSilent
	default:
		return slog.LevelInfo
	}
}
