// Package bridge assembles the execution bridge process: the scratch
// directories, the session, the shared interpreter, the job loop and the
// HTTP/WebSocket server.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michaelbrown/execbridge/internal/config"
	"github.com/michaelbrown/execbridge/internal/engine"
	"github.com/michaelbrown/execbridge/internal/loop"
	"github.com/michaelbrown/execbridge/internal/namespace"
	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/render"
	"github.com/michaelbrown/execbridge/internal/server"
	"github.com/michaelbrown/execbridge/internal/session"
	"github.com/michaelbrown/execbridge/internal/signal"
	"github.com/michaelbrown/execbridge/internal/storage"
	"github.com/michaelbrown/execbridge/internal/storage/sqlite"
	"github.com/michaelbrown/execbridge/internal/tempdir"
)

// configFragment points rendering at the reserved directory. It runs through
// the interpreter like any client fragment.
const configFragment = `if err := bridge.Configure(%q, %q); err != nil { panic(err) }`

// Bridge is a fully constructed bridge that has not started serving yet.
type Bridge struct {
	cfg   *config.Config
	log   *zap.Logger
	dirs  *tempdir.Registry
	store storage.Store
	sess  *session.Session
	in    *engine.Interpreter
	loop  *loop.Loop
	srv   *server.Server
	ln    net.Listener

	renderDir string
}

// New builds every component and binds the listening socket. On error
// everything created so far is released.
func New(cfg *config.Config, log *zap.Logger) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &Bridge{cfg: cfg, log: log}
	b.dirs = tempdir.NewRegistry(cfg.TempDir.Base, cfg.TempDir.Prefix, log.Named("tempdir"))
	ready := false
	defer func() {
		if !ready {
			b.close()
		}
	}()

	var err error
	b.renderDir, err = b.dirs.Get(cfg.Render.Tag)
	if err != nil {
		return nil, fmt.Errorf("reserving render directory: %w", err)
	}

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	b.store = store

	b.sess = session.New(store, log.Named("session"))

	ns := namespace.New()
	slot := push.NewSlot(ns)
	rend := render.New(b.sess)
	if err := rend.Configure(render.KeyExtension, cfg.Render.Extension); err != nil {
		return nil, fmt.Errorf("configuring renderer: %w", err)
	}

	in, err := engine.New(ns, engine.Options{
		Session:  b.sess,
		Renderer: rend,
		Slot:     slot,
		Logger:   log.Named("engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating interpreter: %w", err)
	}
	b.in = in

	if res := in.Execute(fmt.Sprintf(configFragment, render.KeyOutputDirectory, b.renderDir)); res.Failed() {
		return nil, fmt.Errorf("running configuration fragment:\n%s", res.Traceback)
	}

	b.loop = loop.New(log.Named("loop"))
	b.srv = server.New(server.Deps{
		Config:   cfg,
		Loop:     b.loop,
		Executor: in,
		Slot:     slot,
		Session:  b.sess,
		Signals:  signal.NewRouter(log.Named("signal")),
		TempDirs: b.dirs,
		Logger:   log,
	})

	b.ln, err = net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}

	log.Info("bridge ready",
		zap.String("addr", b.ln.Addr().String()),
		zap.String("session", b.sess.ID),
		zap.String("render_dir", b.renderDir),
	)
	ready = true
	return b, nil
}

// Addr is the address the bridge is listening on.
func (b *Bridge) Addr() string {
	return b.ln.Addr().String()
}

// RenderDir is the reserved directory rendered output is written to.
func (b *Bridge) RenderDir() string {
	return b.renderDir
}

// Run serves until ctx is cancelled or a component fails, then shuts the
// server down, stops the loop and removes every scratch directory.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.close()

	// The loop outlives the server so connection close events still run.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.loop.Run(loopCtx)
	})
	g.Go(func() error {
		if err := b.srv.Serve(b.ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		err := b.srv.Shutdown(context.Background())
		stopLoop()
		return err
	})

	err := g.Wait()
	b.log.Info("bridge stopped")
	return err
}

func (b *Bridge) close() {
	if b.ln != nil {
		b.ln.Close()
	}
	if b.in != nil {
		if err := b.in.Close(); err != nil {
			b.log.Warn("closing interpreter", zap.Error(err))
		}
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			b.log.Warn("closing document store", zap.Error(err))
		}
	}
	// Failures are logged by the registry.
	_ = b.dirs.RemoveAll()
}

// Run builds a bridge from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	b, err := New(cfg, log)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
