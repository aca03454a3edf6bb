package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/donsko1/DNS-case/pkg/config"
)

// Field names shared by every pipeline log line
const (
	FieldRunID  = "run_id"
	FieldJob    = "job"
	FieldTable  = "table"
	FieldRows   = "rows"
	FieldInput  = "input"
	FieldOutput = "output"
)

// Logger wraps zerolog with the fields the quality pipeline logs by
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New builds the process logger from config.
// LOG_FORMAT=console|pretty gives human-readable lines, anything else JSON.
func New(cfg *config.Config) *Logger {
	var out io.Writer = os.Stdout
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	return &Logger{zlog: zerolog.New(out).Level(level).With().
		Timestamp().
		Str("env", cfg.Env).
		Logger()}
}

// NewWithWriter builds a JSON logger on w filtered at level.
// 전역 레벨은 건드리지 않음 (테스트, import 보조 출력용)
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{zlog: zerolog.New(w).Level(parseLogLevel(level)).With().Timestamp().Logger()}
}

// parseLogLevel maps LOG_LEVEL onto zerolog; unknown values fall back to info
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// Fatal logs msg and exits the process
func (l *Logger) Fatal(msg string) { l.zlog.Fatal().Msg(msg) }

// WithField returns a child logger carrying key
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a child logger carrying every entry of fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	c := l.zlog.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return &Logger{zlog: c.Logger()}
}

// WithError returns a child logger carrying err under "error"
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// WithRun tags every line with the chain run id and the job name.
// An empty run id (job started outside a chain) is left out.
func (l *Logger) WithRun(runID, job string) *Logger {
	c := l.zlog.With().Str(FieldJob, job)
	if runID != "" {
		c = c.Str(FieldRunID, runID)
	}
	return &Logger{zlog: c.Logger()}
}

// WithTable tags a write of rows rows into table (a table name or a file path)
func (l *Logger) WithTable(table string, rows int) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldTable, table).Int(FieldRows, rows).Logger()}
}

// WithCounts tags a stage with the rows it read and the rows it produced
func (l *Logger) WithCounts(input, output int) *Logger {
	return &Logger{zlog: l.zlog.With().Int(FieldInput, input).Int(FieldOutput, output).Logger()}
}
