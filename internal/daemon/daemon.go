package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/knowndev/devmemory/internal/ingest"
	"github.com/knowndev/devmemory/internal/query"
	"github.com/knowndev/devmemory/internal/vectorindex"
)

// Watcher is the subset of internal/watcher's behavior the daemon drives:
// start watching the project root, stop, and report liveness for the
// /status payload. Kept as a narrow local interface so the daemon doesn't
// need to know fsnotify's shape.
type Watcher interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
}

// Daemon is the C4 WatcherDaemon (spec.md §4.4): singleton discipline, an
// optional filesystem watcher, and the HTTP control API, all scoped to one
// project's Ingestor/QueryRouter/VectorIndex.
type Daemon struct {
	cfg     Config
	pidFile *PIDFile
	server  *Server
	router  *query.Router
	ingest  *ingest.Ingestor
	vector  *vectorindex.Index
	watcher Watcher

	startedAt time.Time
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// New builds a Daemon. watcher may be nil if filesystem watching isn't
// wired yet; Status then reports watcherActive=false.
func New(cfg Config, ig *ingest.Ingestor, vec *vectorindex.Index, router *query.Router, watcher Watcher) *Daemon {
	return &Daemon{
		cfg:     cfg,
		pidFile: NewPIDFile(cfg.PIDPath()),
		router:  router,
		ingest:  ig,
		vector:  vec,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}
}

// Run claims the singleton slot, starts the watcher (if any) and the HTTP
// server, and blocks until SIGINT/SIGTERM, POST /stop, or ctx is done.
// Per spec.md §4.4's startup protocol: reclaim a stale PID file, fail fast
// on a live collision from a different project, and attempt one graceful
// takeover (via /stop) when the collision is the same project_id.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureStateDir(); err != nil {
		return err
	}

	port := d.cfg.EffectivePort()
	if err := d.claimSingleton(ctx, port); err != nil {
		return err
	}
	defer func() { _ = d.pidFile.Remove() }()

	if err := d.pidFile.Write(port, d.cfg.RootPath); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}

	d.startedAt = time.Now()
	d.server = NewServer(port, d)

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			slog.Warn("watcher failed to start, continuing without it", slog.String("error", err.Error()))
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.ListenAndServe(serveCtx) }()

	select {
	case <-sigCtx.Done():
	case <-d.stopCh:
	case err := <-errCh:
		if d.watcher != nil {
			d.watcher.Stop()
		}
		return err
	}

	cancelServe()
	if d.watcher != nil {
		d.watcher.Stop()
	}
	<-errCh
	return nil
}

// claimSingleton implements spec.md §4.4's startup reconciliation: verify
// any existing PID is alive; if dead, reclaim; if alive and serving this
// same project, attempt one graceful takeover via /stop and retry once;
// if alive and serving a different project, fail fast.
func (d *Daemon) claimSingleton(ctx context.Context, port int) error {
	others, _ := filepath.Glob(filepath.Join(d.cfg.StateDir, "daemon-*.pid"))
	for _, path := range others {
		if path == d.pidFile.Path() {
			continue
		}
		other, err := NewPIDFile(path).Read()
		if err == nil && other.Port == port && other.RootPath != d.cfg.RootPath && processExists(other.PID) {
			return fmt.Errorf("daemon: port %d already claimed by a different project (pid %d, root %s)", port, other.PID, other.RootPath)
		}
	}

	info, err := d.pidFile.Read()
	if err == ErrPIDFileNotFound {
		return nil
	}
	if err != nil {
		return nil
	}
	if !processExists(info.PID) {
		slog.Info("reclaiming stale pid file", slog.Int("pid", info.PID))
		return d.pidFile.Remove()
	}

	if info.RootPath != d.cfg.RootPath {
		return fmt.Errorf("daemon: port %d already claimed by a different project (pid %d, root %s)", port, info.PID, info.RootPath)
	}

	client := NewClient(info.Port, 5*time.Second)
	takeoverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Stop(takeoverCtx); err != nil {
		return fmt.Errorf("daemon: graceful takeover of pid %d failed: %w", info.PID, err)
	}

	for i := 0; i < 20; i++ {
		if !processExists(info.PID) {
			return d.pidFile.Remove()
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("daemon: pid %d did not exit after graceful takeover", info.PID)
}

// Status implements Handler.
func (d *Daemon) Status(ctx context.Context) StatusResult {
	stats := d.ingest.Stats()
	vstats := d.vector.Stats(d.cfg.ProjectID)

	status := "ok"
	if !d.vector.Available(ctx) {
		status = "degraded"
	}

	watcherActive := d.watcher != nil && d.watcher.Active()
	return StatusResult{
		Status:        status,
		RootPath:      d.cfg.RootPath,
		ProjectID:     d.cfg.ProjectID,
		WatcherActive: watcherActive,
		UptimeSeconds: time.Since(d.startedAt).Seconds(),
		Stats: IngestStats{
			IndexedFiles: stats.IndexedFiles,
			SkippedFiles: stats.SkippedFiles,
			Errors:       stats.Errors,
		},
		VectorStats: VectorStats{
			TotalDocuments: vstats.TotalDocuments,
			ByLanguage:     vstats.ByLanguage,
		},
	}
}

// Health implements Handler.
func (d *Daemon) Health(ctx context.Context) HealthResult {
	if !d.vector.Available(ctx) {
		return HealthResult{Status: "degraded"}
	}
	return HealthResult{Status: "ok"}
}

// Search implements Handler.
func (d *Daemon) Search(ctx context.Context, q string, opts query.Options) ([]query.Result, error) {
	opts.ProjectID = d.cfg.ProjectID
	return d.router.HybridSearch(ctx, q, opts)
}

// Reindex implements Handler. Runs in the background; callers observe
// progress via GET /status.
func (d *Daemon) Reindex(ctx context.Context, force bool) {
	if _, err := d.ingest.IndexAll(ctx, force); err != nil {
		slog.Warn("reindex failed", slog.String("error", err.Error()))
	}
}

// Stop implements Handler: triggers Run's graceful shutdown path.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}
