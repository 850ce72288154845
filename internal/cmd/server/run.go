package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfgpkg "github.com/keeldb/keel/internal/config"
	"github.com/keeldb/keel/internal/runtime"
	httpserver "github.com/keeldb/keel/internal/server/http"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	logpkg "github.com/keeldb/keel/pkg/log"
)

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run opens the runtime and serves the HTTP API until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// don't pass a signal-aware context still shut down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	logCfg := opts.Config.Log
	if logCfg.Level == "" {
		logCfg.Level = "info"
	}
	if logCfg.Format == "" {
		logCfg.Format = "text"
	}
	procLogger, err := logpkg.ApplyConfig(&logCfg)
	if err != nil {
		// Fallback to a sane default
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(logCfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer func() {
		// Bounded close so final checkpoints cannot wedge shutdown.
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(cctx); err != nil {
			procLogger.Error("runtime close", logpkg.Err(err))
		}
	}()

	procLogger.Info("Starting Keel server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
		logpkg.Int("event_buffer", opts.Config.EventBufferSize),
		logpkg.Int("sub_buf", opts.Config.SubscriberBuffer),
	)

	hsrv := httpserver.New(rt, procLogger)
	err = hsrv.ListenAndServe(sctx, opts.HTTPAddr)
	// Stop the listener before the deferred runtime close so in-flight
	// handlers don't race the store shutdown.
	hsrv.Close()
	return err
}
