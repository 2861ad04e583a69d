package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"camclinic/internal/config"
	"camclinic/internal/logger"
	"camclinic/internal/metrics"
	"camclinic/internal/ports"
	"camclinic/internal/sink"
	"camclinic/internal/worklist"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	store, err := sink.NewStore(cfg.UploadDir)
	if err != nil {
		log.Error("upload directory unavailable", "error", err)
		os.Exit(1)
	}
	met := metrics.New()

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: newRouter(store, worklist.NewMockProvider(time.Now()), log, met)}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"upload_dir", store.Dir(),
		"log_level", cfg.Log.Level,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newRouter(store *sink.Store, patients ports.WorklistProvider, log *slog.Logger, met *metrics.Metrics) http.Handler {
	uploads := sink.NewHandler(store, log, met)
	wl := worklist.NewHandler(patients, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler().ServeHTTP)
	r.Route("/api/video", uploads.Routes)
	r.Route("/api/worklist", wl.Routes)
	return r
}
