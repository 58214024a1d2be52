package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"applybot-engine/internal/config"
	"applybot-engine/internal/events"
	"applybot-engine/internal/httpapi"
	"applybot-engine/internal/logging"
	"applybot-engine/internal/store"
)

func main() {
	var (
		platformFlag = flag.String("platform", "all", "platform to run (gupy, linkedin, all)")
		addrFlag     = flag.String("addr", "127.0.0.1:38472", "status API listen address")
		dataFlag     = flag.String("data", "", "data directory (default $APPLYBOT_DATA_DIR or .)")
		serveFlag    = flag.Bool("serve", false, "keep the API up and wait for POST /run triggers instead of exiting after one run")
	)
	flag.Parse()

	dataDir := *dataFlag
	if dataDir == "" {
		dataDir = os.Getenv("APPLYBOT_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fatal("create data dir: %v", err)
	}

	// One engine instance per data dir: one browser session, one sqlite
	// writer.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		fatal("acquire lock: %v", err)
	}
	if !locked {
		fatal("another engine instance is already running in %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	userCfgPath, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
	if err != nil {
		fatal("config bootstrap failed: %v", err)
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		fatal("config load failed (%s): %v", userCfgPath, err)
	}
	config.Defaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal("%v", err)
	}

	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat)

	db, err := store.Open(filepath.Join(dataDir, "applybot.db"))
	if err != nil {
		fatal("open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db.Pool); err != nil {
		fatal("migrate store: %v", err)
	}
	if n, err := store.ReconcileStaleAttempts(context.Background(), db.Pool); err != nil {
		fatal("reconcile attempts: %v", err)
	} else if n > 0 {
		log.Warn("marked stale in-flight attempts as failed", slog.Int64("count", n))
	}

	hub := events.NewHub()

	var runStatus atomic.Value
	runStatus.Store(httpapi.RunStatus{})

	// Run requests carry the platform name; capacity 1 means at most one
	// queued run behind the active one.
	runRequests := make(chan string, 1)
	triggerRun := func(name string) error {
		select {
		case runRequests <- name:
			return nil
		default:
			return errors.New("a run is already pending")
		}
	}

	mux := httpapi.NewMux(httpapi.Deps{
		DB:         db.Pool,
		Hub:        hub,
		RunStatus:  &runStatus,
		TriggerRun: triggerRun,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addrFlag)
	if err != nil {
		fatal("listen: %v", err)
	}
	log.Info("engine listening", slog.String("addr", "http://"+ln.Addr().String()))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	eng := engine{
		cfg:       cfg,
		db:        db.Pool,
		hub:       hub,
		log:       log,
		runStatus: &runStatus,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		defer stop()

		if !*serveFlag {
			eng.runOnce(gctx, *platformFlag)
			return nil
		}

		for {
			select {
			case <-gctx.Done():
				return nil
			case name := <-runRequests:
				eng.runOnce(gctx, name)
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("engine stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "engine: "+format+"\n", args...)
	os.Exit(1)
}
