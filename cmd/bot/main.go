package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"videobot/internal/adapter/repo"
	"videobot/internal/bot"
	"videobot/internal/httpapi"
	"videobot/internal/infra"
	"videobot/internal/seedance"
	"videobot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	store := repo.NewStore(pool)

	photoStore, err := storage.NewFileStore(cfg.PhotoStoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure photo storage")
	}
	videoStore, err := storage.NewFileStore(cfg.VideoStoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video storage")
	}

	generator, err := newGenerator(cfg, logger, videoStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation backend")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to authorize telegram bot")
	}
	logger.Info().Str("username", api.Self.UserName).Bool("mock_mode", cfg.MockMode).Msg("bot authorized")

	transport := bot.NewTelegramTransport(api)
	b := bot.New(cfg, logger, store, generator, photoStore, videoStore, transport, transport)

	opsServer := infra.NewHTTPServer(cfg, httpapi.NewRouter(&httpapi.App{
		Pool:   pool,
		Store:  store,
		Logger: logger,
	}))

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := api.GetUpdatesChan(updateCfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Msg("bot is running")
		return b.Run(gctx, updates)
	})

	g.Go(func() error {
		logger.Info().Msgf("ops API listening on :%s", cfg.Port)
		if err := opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("stopped with error")
	}
	logger.Info().Msg("stopped")
}

// newGenerator selects the simulated or live backend from configuration.
func newGenerator(cfg *infra.Config, logger infra.Logger, videoStore *storage.FileStore) (seedance.Generator, error) {
	if cfg.MockMode {
		return seedance.NewMock(seedance.MockOptions{VideoStore: videoStore})
	}
	return seedance.NewClient(seedance.Options{
		APIKey:     cfg.SeedanceAPIKey,
		BaseURL:    cfg.SeedanceAPIURL,
		Logger:     &logger,
		VideoStore: videoStore,
	})
}
