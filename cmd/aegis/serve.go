// The serve command: runs the local shell server with the asset cache,
// connectivity monitor, and automatic sync triggers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/aegis/internal/connectivity"
	"github.com/mesh-intelligence/aegis/internal/position"
	"github.com/mesh-intelligence/aegis/internal/shellcache"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the application shell and run the sync engine",
	Long: `Serve the cached application shell on the configured address, watch
connectivity, and reconcile pending reports with the remote authority
on every offline-to-online transition, on the optional cron schedule,
and on manual triggers.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	deps := apiDeps{store: db, log: log}

	// Positioning.
	var posSource types.PositionSource
	if cfg.PositionURL != "" {
		posSource = position.NewHTTPSource(cfg.PositionURL)
	}
	deps.resolver = position.NewResolver(posSource, cfg.PositionTimeout)

	// Sync engine plus its triggers, when an authority is configured.
	if cfg.AuthorityURL != "" {
		engine, err := newSyncEngine()
		if err != nil {
			return err
		}
		deps.engine = engine

		prober := connectivity.NewProber(cfg.AuthorityURL, cfg.ProbeInterval)
		prober.Start(ctx)
		defer prober.Stop()

		deps.monitor = connectivity.NewMonitor(prober)
		deps.monitor.OnChange(func(online bool) {
			if online {
				log.Info("connectivity regained; triggering sync")
				engine.Trigger()
			} else {
				log.Info("connectivity lost; reports will queue locally")
			}
		})

		if cfg.SyncSchedule != "" {
			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.SyncSchedule, engine.Trigger); err != nil {
				return fmt.Errorf("invalid sync_schedule: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()
		}

		// Reconcile anything left over from previous runs.
		if deps.monitor.IsOnline() {
			engine.Trigger()
		}
	} else {
		log.Warn("no authority_url configured; running record-only")
	}

	// Asset cache: install the shell for the current generation and
	// cut over. A failed install never activates; a previously cached
	// shell keeps serving.
	if cfg.OriginURL != "" {
		cache, err := shellcache.Open(cfg)
		if err != nil {
			return fmt.Errorf("open shell cache: %w", err)
		}
		defer cache.Close()

		if err := cache.Install(ctx, nil); err != nil {
			log.WithError(err).Warn("shell install failed; serving existing cache")
		} else if err := cache.Activate(); err != nil {
			return fmt.Errorf("activate shell cache: %w", err)
		} else {
			log.WithField("generation", cache.Generation()).Info("shell cache activated")
		}

		router.NoRoute(shellcache.Handler(cache, log))
	}

	registerAPI(router, deps)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("aegis serving")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
