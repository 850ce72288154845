// Package log provides Keel's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library's slog via a bridge handler, so entries flow through the package's
// formatter and output pipeline while remaining visible to slog tooling.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.WithComponent("server")
//	l.Info("server started", log.Str("addr", ":7070"))
//
// Use ApplyConfig to build a logger from a declarative Config, selecting
// text or JSON formatting and console or file output. RedirectStdLog
// captures the process-global standard library logger into the same
// pipeline.
package log
