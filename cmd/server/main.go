package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/99minutos/locker-system/internal/api"
	"github.com/99minutos/locker-system/internal/api/handler"
	"github.com/99minutos/locker-system/internal/core/hub"
	"github.com/99minutos/locker-system/internal/core/ports"
	"github.com/99minutos/locker-system/internal/core/service"
	"github.com/99minutos/locker-system/internal/infrastructure/config"
	mongodb "github.com/99minutos/locker-system/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/locker-system/internal/infrastructure/db/redis"
	"github.com/99minutos/locker-system/internal/infrastructure/queue"
	"github.com/99minutos/locker-system/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// @title                       Locker System API
// @version                     1.0
// @description                 Parcel admission, locker assignment and status tracking for the pickup locker bank.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "locker-system",
		Env:     cfg.Env,
	})
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("primary store unavailable")
	}
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:    cfg.Redis.Addr,
		DB:      cfg.Redis.DB,
		Timeout: cfg.Redis.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mirror store unavailable")
	}

	parcelRepo := mongodb.NewParcelRepository(db, cfg.Mongo.Timeout)
	capacityRepo := mongodb.NewCapacityRepository(db, cfg.Mongo.Timeout)
	activityRepo := mongodb.NewActivityRepository(db, cfg.Mongo.Timeout)
	if err := parcelRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create parcel indexes")
	}
	if err := capacityRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create capacity indexes")
	}

	mirrorStore := redisdb.NewMirrorStore(rdb)
	sequences := redisdb.NewSequenceAssigner(rdb)
	idempotency := redisdb.NewIdempotencyStore(rdb)

	// --- Core ---
	feed := hub.New(parcelRepo, capacityRepo, logger.Component("hub"))

	// With the change stream on, every write (local or not) reaches the hub
	// through it; publishing local writes as well would double the reloads.
	var publisher ports.ChangePublisher = feed
	if cfg.Mongo.ChangeStream {
		publisher = nil
	}
	mirror := service.NewDualStoreMirror(parcelRepo, mirrorStore, sequences, publisher, logger.Component("mirror"))

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	repairs := queue.NewDispatcher(cfg.Mirror.RepairWorkers, mirror, logger.Component("repair"))
	repairs.Start(workerCtx)
	mirror.SetRepairQueue(repairs)

	go drainWarnings(workerCtx, mirror)

	if cfg.Mongo.ChangeStream {
		watcher := mongodb.NewChangeStreamWatcher(db, feed, logger.Component("change_stream"))
		go watcher.Run(workerCtx)
	}

	activity := service.NewActivityRecorder(activityRepo, logger.Component("activity"))
	admission := service.NewAdmissionService(parcelRepo, mirror, capacityRepo, idempotency, activity,
		service.AdmissionOptions{MaxAttempts: cfg.Admission.MaxAttempts},
		logger.Component("admission"))
	transitions := service.NewTransitionService(parcelRepo, mirror, activity, logger.Component("transition"))
	parcels := service.NewParcelService(parcelRepo, mirror, capacityRepo, activity, logger.Component("parcel"))

	// --- HTTP ---
	router := api.NewRouter(api.Deps{
		Log:         logger.Component("http"),
		JWTSecret:   cfg.JWTSecret,
		Admission:   admission,
		Transitions: transitions,
		Parcels:     parcels,
		Repairer:    mirror,
		Watcher:     feed,
		Readiness: map[string]handler.Pinger{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	// No WriteTimeout: /v1/parcels/stream responses stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	feed.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	cancelWorkers()
	repairs.Wait()
	activity.Wait()

	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("mongo disconnect")
	}
	log.Info().Msg("bye")
}

// drainWarnings logs mirror drift at error level for alerting. Repairs are
// already queued by the mirror itself.
func drainWarnings(ctx context.Context, mirror *service.DualStoreMirror) {
	log := logger.Component("mirror")
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-mirror.Warnings():
			log.Error().Err(w.Err).
				Str("parcel_id", w.ParcelID).
				Str("op", w.Op).
				Time("at", w.At).
				Msg("mirror drift")
		}
	}
}
