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

	"arena/internal/config"
	"arena/internal/db"
	"arena/internal/handlers"
	"arena/internal/logger"
	"arena/internal/metrics"
	"arena/internal/scheduler"
	"arena/internal/services"
	"arena/internal/storage"
	"arena/internal/store"
	"arena/internal/tokens"
	"arena/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.MetricsNamespace)
	hub := websocket.NewHub()
	txRunner := db.NewTxRunner(database, log)

	users := store.NewUserStore(database)
	admins := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	wallets := store.NewWalletStore(database)
	entries := store.NewLedgerStore(database)
	transactions := store.NewTransactionStore(database)
	tournaments := store.NewTournamentStore(database)
	registrations := store.NewRegistrationStore(database)
	winners := store.NewWinnerStore(database)
	rooms := store.NewRoomStore(database)
	announcements := store.NewAnnouncementStore(database)

	// Uploads and password resets are optional so a bare local setup still boots.
	var (
		proofRemover services.ProofRemover
		proofStore   handlers.ProofStore
		resetStore   handlers.ResetTokenStore
		tokenSweeper scheduler.TokenSweeper
	)
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		proofRemover, proofStore = s3Store, s3Store
	} else {
		log.Warnw("payment proof uploads disabled", "reason", "S3_BUCKET not set")
	}
	if cfg.Redis.Addr != "" {
		redisStore, err := tokens.NewRedisStore(ctx, cfg.Redis, cfg.ResetTokenTTL)
		if err != nil {
			return fmt.Errorf("init reset tokens: %w", err)
		}
		defer redisStore.Close()
		resetStore, tokenSweeper = redisStore, redisStore
	} else {
		log.Warnw("password reset disabled", "reason", "REDIS_ADDR not set")
	}

	walletService := services.NewWalletService(txRunner, wallets, entries, transactions, audit, proofRemover, hub, cfg.Wallet, log, m)
	registrationService := services.NewRegistrationService(txRunner, wallets, entries, transactions, tournaments, registrations, users, audit, hub, log, m)
	tournamentService := services.NewTournamentService(txRunner, tournaments, registrations, audit, log)
	roomService := services.NewRoomService(txRunner, rooms, tournaments, registrations, audit, hub, cfg.RoomPublishLead, log, m)
	settlementService := services.NewSettlementService(txRunner, wallets, entries, transactions, tournaments, registrations, winners, users, audit, hub, log, m)
	announcementService := services.NewAnnouncementService(txRunner, announcements, users, registrations, winners, hub, audit, log, m)

	var sockets handlers.SocketServer = websocket.NewServer(hub, cfg.AllowedOrigins, log)
	handler := handlers.New(handlers.Deps{
		TxRunner:      txRunner,
		Config:        cfg,
		Log:           log,
		Users:         users,
		Admin:         admins,
		Audit:         audit,
		Wallets:       wallets,
		Resets:        resetStore,
		Proofs:        proofStore,
		Sockets:       sockets,
		Metrics:       m.Handler(),
		Wallet:        walletService,
		Registrations: registrationService,
		Tournaments:   tournamentService,
		Rooms:         roomService,
		Settlement:    settlementService,
		Announcements: announcementService,
	})

	jobs, err := scheduler.New(log, m)
	if err != nil {
		return err
	}
	for _, job := range scheduler.Jobs(roomService, announcementService, tokenSweeper, cfg.SweepInterval) {
		if err := jobs.Add(job); err != nil {
			return err
		}
	}
	jobs.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("arena API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Infow("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
	defer cancel()
	if err := jobs.Shutdown(); err != nil {
		log.Warnw("scheduler shutdown", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
