package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/infra/storage"
	"github.com/MRamiBalles/factorysim/internal/network"
	"github.com/MRamiBalles/factorysim/internal/platform/config"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
	"github.com/MRamiBalles/factorysim/internal/platform/metrics"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation with the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Output)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, log)
		},
	}
}

// Serve runs the server until ctx is cancelled, then saves and shuts down.
func Serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	catalog, err := gamedata.Load(cfg.GameData.Path)
	if err != nil {
		return fmt.Errorf("failed to load game data: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage())
	if err != nil {
		return err
	}
	defer store.Close()

	gameID := cfg.Simulation.GameID
	logOpts := []events.Option{events.WithMaxEvents(cfg.Simulation.MaxEvents)}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		logOpts = append(logOpts, events.WithPersistHook(collector.EventPersisted))
	}
	eventLog := events.NewEventLog(storage.NewJournalPersister(store.Events, gameID), logOpts...)
	defer eventLog.Close()

	saver := storage.NewSnapshotSaver(store.Snapshots, gameID)
	engOpts := []engine.Option{
		engine.WithSettings(cfg.Settings()),
		engine.WithSaver(saver),
		engine.WithUnlockService(engine.UnlockFunc(func(id research.ID) {
			log.Infof("Technology %s unlocked", id)
		})),
	}
	if collector != nil {
		engOpts = append(engOpts, engine.WithRecorder(collector))
	}
	eng := engine.NewEngine(catalog, eventLog, log, engOpts...)

	recon := storage.NewReconstructor(store.Snapshots, store.Events)
	resumed, err := recon.Resume(ctx, gameID, eng)
	if err != nil {
		return fmt.Errorf("failed to resume %s: %w", gameID, err)
	}
	if resumed {
		log.Infof("Resumed game %s at %s", gameID, eng.Now())
	} else {
		log.Infof("Starting new game %s", gameID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eng.Start(runCtx)

	var obs network.Observer
	if collector != nil {
		obs = collector
	}
	hub := network.NewHub(eng, network.HubConfig{
		SendBuffer:       cfg.Server.ClientSendBuffer,
		ActionsPerSecond: cfg.Server.ActionsPerSecond,
		ActionBurst:      cfg.Server.ActionBurst,
		MaxClients:       cfg.Server.MaxClients,
		SnapshotInterval: cfg.Server.SnapshotInterval,
		EventPoll:        cfg.Server.EventPoll,
	}, obs, log)
	go hub.Run(runCtx)
	hub.StartEventPoller(runCtx)
	hub.StartSnapshotBroadcaster(runCtx)

	mux := http.NewServeMux()
	network.NewAPI(eng, log).RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, recon, gameID, log).RegisterRoutes(mux)
	mux.HandleFunc("/ws", hub.ServeWs)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if collector != nil {
		mux.Handle(cfg.Metrics.Path, collector.Handler())
	}

	go runFrames(runCtx, eng, cfg.Simulation.FrameInterval)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			cancel()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	cancel()
	eng.Close()

	if err := saver.Save(shutdownCtx, eng.Snapshot()); err != nil {
		log.Errorf("Final save failed: %v", err)
	} else {
		log.Infof("Saved game %s at %s", gameID, eng.Now())
	}
	return nil
}

// runFrames feeds wall-clock deltas into the engine at the frame interval.
func runFrames(ctx context.Context, eng *engine.Engine, frame time.Duration) {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			eng.Tick(now.Sub(last))
			last = now
		}
	}
}
