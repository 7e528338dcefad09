package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options はロガーの設定です。
type Options struct {
	Filename   string // 空のときはファイルに出力しない
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Stderr     bool // 標準エラー出力にも書き出す
}

// Logger はファイル (ローテーション付き) と標準エラー出力に書き出す slog.Logger です。
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *lumberjack.Logger
}

var (
	logger   *Logger
	loggerMu sync.Mutex
)

func GetLogger() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// SetLogger は既定のロガーを差し替え、slog.Default にも設定します。
// 以前のロガーは閉じられます。
func SetLogger(l *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil && logger != l {
		_ = logger.Close()
	}
	logger = l
	if l != nil {
		slog.SetDefault(l.Logger)
	}
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// NewLogger は Options に従ってロガーを作成します。
func NewLogger(opts Options) (*Logger, error) {
	lv, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lv)

	var writers []io.Writer
	var file *lumberjack.Logger
	if opts.Filename != "" {
		f, err := os.OpenFile(opts.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("ログファイルを開けませんでした: %w", err)
		}
		_ = f.Close()

		file = &lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, file)
	}
	if opts.Stderr || file == nil {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		file:   file,
	}, nil
}

func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Rotate はログファイルを切り替えます。ファイル出力が無いときは何もしません。
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Rotate(); err != nil {
		return fmt.Errorf("ログファイルをローテーションできませんでした: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
