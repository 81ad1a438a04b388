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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"server-presence-backend/config"
	"server-presence-backend/internal/api"
	"server-presence-backend/internal/db"
	"server-presence-backend/internal/logging"
	"server-presence-backend/internal/notification"
	"server-presence-backend/internal/notify"
	"server-presence-backend/internal/poller"
	"server-presence-backend/internal/report"
	"server-presence-backend/internal/roster"
	"server-presence-backend/internal/session"
	"server-presence-backend/internal/source"
	"server-presence-backend/internal/store"
	"server-presence-backend/internal/supervisor"
)

const taskRestartBackoff = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collectors and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Str("version", version).Str("config", configPath).Msg("starting presenced")

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		return fmt.Errorf("VAPID keys must be configured; generate them and add them to the config file")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")

	playerSessions := store.NewSessionStore(gormDB, db.PlayerSessionsTable)
	worldSessions := store.NewSessionStore(gormDB, db.WorldSessionsTable)
	playerSamples := store.NewSampleStore(gormDB, db.PlayerOnlineTable)
	worldSamples := store.NewSampleStore(gormDB, db.WorldOnlineTable)
	worldStatuses := store.NewWorldStatusStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, logger)
	pool.Start(ctx)

	playerTracker := session.NewTracker(session.KindPlayers, cfg.Sessions.PlayerThreshold, playerSessions, logger)
	playerTracker.OnSessionStart(func(entityID string) {
		pool.Dispatch(notification.Event{Kind: session.KindPlayers, EntityID: entityID})
	})
	worldTracker := session.NewTracker(session.KindWorlds, cfg.Sessions.WorldThreshold, worldSessions, logger)
	worldTracker.OnSessionStart(func(entityID string) {
		pool.Dispatch(notification.Event{Kind: session.KindWorlds, EntityID: entityID})
	})

	playerSource := source.NewSampClient(cfg.Samp.Host, cfg.Samp.Port, logger)
	worldSource := source.NewWorldPresence(
		source.NewWorldsClient(cfg.WorldsAPI, logger),
		worldStatuses,
		logger,
	)

	playerPoller := poller.New(session.KindPlayers, playerSource, cfg.Poller.Delay, cfg.Poller.QueryTimeout, logger).
		Recover(playerTracker).
		Handle(playerTracker, session.NewSampler(session.KindPlayers, playerSamples, logger))
	worldPoller := poller.New(session.KindWorlds, worldSource, cfg.Poller.Delay, cfg.Poller.QueryTimeout, logger).
		Recover(worldTracker).
		Handle(worldTracker, session.NewSampler(session.KindWorlds, worldSamples, logger))

	generator := report.NewGenerator(playerSessions, worldSessions, playerSamples, worldStatuses, logger)

	sup := supervisor.New(taskRestartBackoff, logger)
	sup.Add("player_poller", playerPoller.Run)
	sup.Add("world_poller", worldPoller.Run)

	if cfg.Roster.Enabled {
		rosterClient, err := source.NewRosterClient(cfg.Roster, logger)
		if err != nil {
			return err
		}
		collector := roster.NewCollector(rosterClient, store.NewRosterStore(gormDB), cfg.Roster.Interval, logger)
		sup.Add("roster_collector", collector.Run)
	}

	var bot *notify.TelegramBot
	if cfg.Telegram.Enabled {
		loc, err := time.LoadLocation(cfg.Telegram.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Telegram.Timezone, err)
		}
		bot = notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.ChannelID, logger)
		if err := bot.Init(ctx); err != nil {
			return err
		}
		scheduler := report.NewScheduler(generator, bot, loc, logger)
		sup.Add("digest_scheduler", scheduler.Run)
	}

	handler := api.NewHandler(
		gormDB,
		playerSessions, worldSessions,
		playerSamples, worldSamples,
		worldStatuses,
		generator,
		&webpushOptions,
	)
	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	sup.Add("http_server", func(ctx context.Context) error {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server starting")
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		}
	})

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")

	cancel()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("shutdown timed out, exiting anyway")
	}

	if bot != nil {
		bot.Shutdown()
	}

	logger.Info().Msg("presenced stopped")
	return nil
}
