package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config is the declarative logger configuration carried by service config
// files and environment overlays.
type Config struct {
	// Level is the minimum level name: debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`
	// Format selects the formatter: text or json.
	Format string `json:"format" yaml:"format"`
	// File, when set, appends entries to the given path instead of the
	// console.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ParseLevel converts a level name to a Level. Names are case-insensitive;
// "warning" is accepted for WarnLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg. Unset fields fall back to info level
// and text format on the console.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		formatter = &JSONFormatter{}
	case "text", "":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var output Output
	if cfg.File != "" {
		output = NewFileOutput(cfg.File)
	} else {
		output = NewConsoleOutput()
	}

	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// stdWriter adapts a Logger to io.Writer for the standard library logger.
type stdWriter struct {
	logger Logger
	level  Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog routes the process-global standard library logger through l
// at InfoLevel. Libraries that log via the default std logger (including
// storage engine internals) are captured into the structured pipeline.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{logger: l, level: InfoLevel})
}
