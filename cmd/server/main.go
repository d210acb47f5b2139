// Command server runs the info broker: the Telegram front end, the lookup
// pipeline, and the admin HTTP API share one process and one set of stores.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"infobroker/internal/admin"
	"infobroker/internal/catalog"
	"infobroker/internal/dispatch"
	"infobroker/internal/history"
	"infobroker/internal/jwttoken"
	"infobroker/internal/ledger"
	"infobroker/internal/lookup"
	"infobroker/internal/moderation"
	"infobroker/internal/pipeline"
	"infobroker/internal/platform/config"
	"infobroker/internal/platform/httpserver"
	"infobroker/internal/platform/logger"
	"infobroker/internal/platform/metrics"
	"infobroker/internal/platform/middleware"
	platformpg "infobroker/internal/platform/postgres"
	platformredis "infobroker/internal/platform/redis"
	"infobroker/internal/ports"
	"infobroker/internal/session"
	"infobroker/internal/transport/telegram"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
	auditkafka "infobroker/pkg/audit/kafka"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		log.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.AdminID == 0 {
		log.Error("ADMIN_USER_ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Stores. An empty DATABASE_URL selects the in-memory variants, which is
	// the development mode; production runs against postgres.
	var (
		users     ports.UserStore
		hist      ports.HistoryStore
		protected ports.ProtectedStore
	)
	db, err := platformpg.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := platformpg.Migrate(ctx, db); err != nil {
			return err
		}
		users = user.NewPostgres(db)
		hist = history.NewPostgres(db)
		protected = moderation.NewPostgresProtectedStore(db)
		log.Info("using postgres stores")
	} else {
		users = user.NewMemoryStore()
		hist = history.NewMemoryStore()
		protected = moderation.NewMemoryProtectedStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var sessions session.Store
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient.Client)
		log.Info("using redis session store")
	} else {
		sessions = session.NewMemoryStore()
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := auditkafka.NewPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			kafkaPub.Close(closeCtx)
		}()
		publisher = kafkaPub
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	}

	m := metrics.New()

	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	led := ledger.New(users, m, publisher, log)
	mod := moderation.New(users, protected, cat, log)
	client := lookup.NewClient(cfg.LookupTimeout, m, log)
	pipe := pipeline.New(cat, mod, led, hist, users, client, m, publisher, log)
	controller := admin.NewController(cfg.AdminID, cfg.UnlimitedGrant, users, led, mod, hist, protected, cat, m, publisher, log)

	// Admin HTTP surface: login, management routes, health, metrics.
	tokens := jwttoken.NewService(cfg.JWTSigningKey, "infobroker")
	adminHandler := admin.NewHandler(controller, tokens, cfg.AdminSecretHash, cfg.AdminTokenTTL, cfg.AdminID, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	adminHandler.Register(router)

	srv := httpserver.New(cfg.AdminAddr, router)

	bot, err := telegram.New(cfg.TelegramToken, log)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(cat, pipe, controller, led, users, sessions, bot, publisher, m, log, cfg.AdminID, cfg.StartingCredits)
	bot.Attach(dispatcher)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("admin api listening", "addr", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("telegram bot polling")
		return bot.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
