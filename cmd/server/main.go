package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/gomoonshine/internal/backend"
	"github.com/obiente/translate/gomoonshine/internal/config"
	serverhttp "github.com/obiente/translate/gomoonshine/internal/http"
	"github.com/obiente/translate/gomoonshine/internal/logging"
	"github.com/obiente/translate/gomoonshine/internal/metrics"
	"github.com/obiente/translate/gomoonshine/internal/socket"
	"github.com/obiente/translate/gomoonshine/internal/stt"
	"github.com/obiente/translate/gomoonshine/internal/translation"
	"github.com/obiente/translate/gomoonshine/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(cfg config.Config) error {
	m := metrics.NewMetrics("moonshine")
	start := time.Now()
	t, err := backend.Open(cfg, m)
	if err != nil {
		return fmt.Errorf("load %s backend: %w", cfg.Model.Backend, err)
	}
	svc := stt.NewService(t, m)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("backend close failed")
		}
	}()
	log.Info().
		Str("backend", cfg.Model.Backend).
		Str("model", cfg.Model.Name).
		Dur("load_time", time.Since(start)).
		Msg("model loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.Socket != "" {
		sock := socket.NewServer(cfg.Server.Socket, svc)
		g.Go(func() error { return sock.ListenAndServe(ctx) })
	}

	if cfg.Server.HTTPAddr != "" {
		wsOpts := ws.Options{
			TranslationTimeout: time.Duration(cfg.Translation.TimeoutSec) * time.Second,
			Metrics:            m,
		}
		if cfg.Translation.Enabled {
			wsOpts.Translator = translation.New(cfg.Translation.BaseURL, cfg.Translation.TimeoutSec)
		}
		srv := &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: serverhttp.NewRouter(serverhttp.Deps{
				STT:       svc,
				Websocket: ws.NewServer(svc, wsOpts).Handle,
				Metrics:   m.Handler(),
			}),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
