package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/silostrike/backend/internal/admin"
	"github.com/silostrike/backend/internal/api"
	"github.com/silostrike/backend/internal/config"
	"github.com/silostrike/backend/internal/database"
	"github.com/silostrike/backend/internal/events"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/ledger"
	"github.com/silostrike/backend/internal/middleware"
	"github.com/silostrike/backend/internal/migrations"
	"github.com/silostrike/backend/internal/payout"
	"github.com/silostrike/backend/internal/presence"
	"github.com/silostrike/backend/internal/redis"
	"github.com/silostrike/backend/internal/store"
	"github.com/silostrike/backend/internal/worker"
	"github.com/silostrike/backend/internal/ws"
	log "github.com/sirupsen/logrus"
)

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	// Initialize configuration (loads .env when present)
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		log.Info("running database migrations on startup")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.WithError(err).Fatal("failed to run migrations")
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	// Storage
	players := ledger.NewGateway(db)
	queue := store.NewQueueStore(db)
	matches := store.NewMatchStore(db)
	withdrawals := store.NewWithdrawalStore(db)

	// Fee withdrawals
	var payer payout.Payer
	if client := payout.NewClient(cfg); client != nil {
		payer = client
	}
	collector := payout.NewCollector(withdrawals, payer, rdb, payout.CollectorConfig{
		Destination: cfg.FeeSettlementAddress,
		Threshold:   cfg.FeeWithdrawThreshold,
		MaxAttempts: cfg.FeeMaxAttempts,
	})

	// Game services
	tracker := presence.NewTracker(rdb)
	publisher := events.NewPublisher(rdb)
	settler := game.NewSettler(matches, players, tracker, publisher, collector, game.SettlerConfig{
		FeeRate:      cfg.FeeRate,
		FeeThreshold: cfg.FeeWithdrawThreshold,
	})
	turns := game.NewTurnEngine(matches, settler, tracker, publisher)
	matchmaker := game.NewMatchmaker(queue, players, matches, publisher, cfg.WagerTiers)
	sweeper := game.NewSweeper(matches, queue, tracker, settler, publisher, game.SweeperConfig{
		TurnTimeout:     cfg.TurnTimeout(),
		QueueStaleAfter: cfg.QueueStaleAfter(),
		MatchIdleAfter:  cfg.MatchIdleAfter(),
		PresenceGrace:   cfg.PresenceGrace(),
	})

	// Realtime push
	hub := ws.NewHub(turns, ws.Options{
		PingPeriod:     ws.PingPeriodFor(cfg.PresenceGrace()),
		AllowedOrigins: middleware.AllowedOrigins(cfg),
	})
	go hub.Run(ctx)
	go events.Subscribe(ctx, rdb, hub.HandleEvent)

	// Periodic jobs
	scheduler, err := worker.NewScheduler(worker.Jobs(cfg, matchmaker, sweeper, collector)...)
	if err != nil {
		log.WithError(err).Fatal("failed to create scheduler")
	}
	scheduler.Start()

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORSMiddleware(cfg))

	api.SetupRoutes(router, api.Dependencies{
		Config:      cfg,
		Players:     players,
		History:     matches,
		Matchmaking: matchmaker,
		Turns:       turns,
		Settlement:  settler,
		Forfeits:    sweeper,
		Collector:   collector,
		Withdrawals: withdrawals,
		Admins:      admin.NewService(db),
		Hub:         hub,
		DB:          db,
		RedisPing: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting silostrike server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	if err := scheduler.Shutdown(); err != nil {
		log.WithError(err).Error("scheduler shutdown failed")
	}
	collector.Wait()
}
