// Package daemon hosts the transform command surface: it owns the pipeline
// processor, the named-salt keystore, the management socket and the HTTP API.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teclabat/performance-go/pkg/appdir"
	"github.com/teclabat/performance-go/pkg/keystore"
	"github.com/teclabat/performance-go/pkg/log"
	"github.com/teclabat/performance-go/pkg/management"
	"github.com/teclabat/performance-go/pkg/transform"
)

const (
	// AppName names the management socket under the runtime socket dir.
	AppName = "performance"

	// PackageVersion is the version of the command package the daemon
	// provides to its clients.
	PackageVersion = "0.1"
)

// Version information - set at build time by the main package.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Daemon encapsulates the state of a running command host.
type Daemon struct {
	ID   string
	Cfg  Config
	Mgmt *management.ManagementServer
	Api  *DaemonApi

	processor *transform.PayloadProcessor
	keys      *keystore.Store

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	running   atomic.Bool
	startTime time.Time

	// Stats
	XorOps        atomic.Uint64
	PipelineOps   atomic.Uint64
	BytesIn       atomic.Uint64
	BytesOut      atomic.Uint64
	CommandErrors atomic.Uint64
}

// NewDaemon creates a new Daemon with a cancellable context. The keystore is
// opened and the pipeline built eagerly so misconfiguration surfaces here
// rather than on the first command.
func NewDaemon(cfg Config) (*Daemon, error) {
	if cfg.DaemonID == "" {
		return nil, fmt.Errorf("daemon: config has no daemon ID")
	}

	keys, err := keystore.Open(keystorePath(cfg.KeystoreFile))
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		ID:        cfg.DaemonID,
		Cfg:       cfg,
		keys:      keys,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	processor, err := transform.NewPipeline(cfg.Pipeline, d.keyFor)
	if err != nil {
		keys.Close()
		cancel()
		return nil, fmt.Errorf("daemon: building pipeline: %w", err)
	}
	d.processor = processor

	d.Mgmt = management.NewManagementServer(AppName, cfg.ManagementPassword)
	d.registerCommands()

	d.Api = NewDaemonApi(d)

	return d, nil
}

// keystorePath resolves the keystore location: absolute paths are honored,
// bare names land in the app state directory.
func keystorePath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(appdir.AppDir(), file)
}

// keyFor resolves key material for a pipeline stage from the daemon config.
func (d *Daemon) keyFor(name string) ([]byte, error) {
	switch name {
	case "xor":
		if d.Cfg.PipelineSalt == "" {
			return nil, fmt.Errorf("pipeline stage %q needs pipeline_salt in the config", name)
		}
		return d.resolveSalt(d.Cfg.PipelineSalt)
	case "aesgcm", "chacha20":
		if d.Cfg.PipelinePassphrase == "" {
			return nil, fmt.Errorf("pipeline stage %q needs pipeline_passphrase in the config", name)
		}
		return []byte(d.Cfg.PipelinePassphrase), nil
	}
	return nil, nil
}

// Stages returns the configured pipeline stage names in apply order.
func (d *Daemon) Stages() []string {
	return d.processor.Stages()
}

// Keystore exposes the named-salt store.
func (d *Daemon) Keystore() *keystore.Store {
	return d.keys
}

// Run starts the management socket and the HTTP API, then blocks until the
// daemon is closed.
func (d *Daemon) Run() error {
	if !d.running.CompareAndSwap(false, true) {
		log.Printf("daemon: already running, ignoring Run() call")
		return nil
	}

	if err := d.Mgmt.Start(); err != nil {
		d.running.Store(false)
		return fmt.Errorf("daemon: starting management server: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Api.Run(d.Cfg.APIListenAddr)
	}()

	log.Printf("daemon: %s running (pipeline: %v, api: %s)", d.ID, d.Stages(), d.Cfg.APIListenAddr)

	<-d.ctx.Done() // Block until context is cancelled
	return nil
}

// Close initiates a clean shutdown.
func (d *Daemon) Close() {
	d.closeOnce.Do(func() {
		d.cancel()

		d.Mgmt.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Api.Shutdown(shutdownCtx); err != nil {
			log.Printf("daemon: error shutting down API: %v", err)
		}

		d.wg.Wait()

		if err := d.keys.Close(); err != nil {
			log.Printf("daemon: error closing keystore: %v", err)
		}

		d.running.Store(false)
		log.Printf("daemon: shutdown complete")
	})
}

// Uptime reports how long the daemon has been up.
func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}

// EnsureDaemonLogger routes the log package into the daemon's SQLite log
// database. Safe to call more than once.
func EnsureDaemonLogger() {
	if err := log.Init(DefaultConfig().LogDBFile); err != nil {
		log.Printf("daemon: logger init: %v", err)
	}
}

// NewDaemonManagementClient returns a management client bound to the
// daemon's socket.
func NewDaemonManagementClient(password string) *management.ManagementClient {
	return management.NewManagementClient(AppName, password)
}
