package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/config"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer chat messages pushed to POST /webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	resp, err := buildResponder(cfg)
	if err != nil {
		return err
	}

	repo, closeRepo, err := buildRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	seenStore, closeSeen, err := buildSeen(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSeen()

	var outbound chat.Outbound
	if cfg.Outbound.URL != "" {
		outbound = chat.NewHTTPOutbound(cfg.Outbound.URL, cfg.Outbound.Token, cfg.Outbound.Timeout)
	}

	svc := chat.NewService(repo, resp, outbound, seenStore)
	handler := chat.NewHandler(svc, chat.HandlerOptions{
		Secret:    cfg.Server.WebhookSecret,
		RateRPS:   cfg.Server.RateRPS,
		RateBurst: cfg.Server.RateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting_down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	logger.Log.Info("server_stopped")
	return nil
}

func newRouter(h *chat.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.Requests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
	}))

	chat.RegisterRoutes(r, h)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}
