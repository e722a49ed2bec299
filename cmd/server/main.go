// Command server runs the tax-lien certificate lifecycle service.
//
// Wiring only: stores, gateway, audit pipeline, service, HTTP router, and
// lifecycle. Business logic lives under internal/lien.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/taxlien-online/taxlien-nft/internal/http"
	"github.com/taxlien-online/taxlien-nft/internal/lien/gateway"
	lienhandler "github.com/taxlien-online/taxlien-nft/internal/lien/handler"
	"github.com/taxlien-online/taxlien-nft/internal/lien/idempotency"
	lienmetrics "github.com/taxlien-online/taxlien-nft/internal/lien/metrics"
	"github.com/taxlien-online/taxlien-nft/internal/lien/service"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	lienstore "github.com/taxlien-online/taxlien-nft/internal/lien/store/lien"
	registrystore "github.com/taxlien-online/taxlien-nft/internal/lien/store/registry"
	"github.com/taxlien-online/taxlien-nft/internal/platform/config"
	"github.com/taxlien-online/taxlien-nft/internal/platform/httpserver"
	"github.com/taxlien-online/taxlien-nft/internal/platform/logger"
	platformredis "github.com/taxlien-online/taxlien-nft/internal/platform/redis"
	"github.com/taxlien-online/taxlien-nft/internal/token"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
	audit "github.com/taxlien-online/taxlien-nft/pkg/platform/audit"
	auditpublisher "github.com/taxlien-online/taxlien-nft/pkg/platform/audit/publisher"
	auditkafka "github.com/taxlien-online/taxlien-nft/pkg/platform/audit/publishers/kafka"
	auditmemory "github.com/taxlien-online/taxlien-nft/pkg/platform/audit/store/memory"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]httpapi.HealthChecker{}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		registries store.RegistryStore
		liens      store.LienStore
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := registrystore.Migrate(ctx, db); err != nil {
			return err
		}
		if err := lienstore.Migrate(ctx, db); err != nil {
			return err
		}
		registries = registrystore.NewPostgres(db)
		liens = lienstore.NewPostgres(db)
		healthChecks["postgres"] = dbHealth{db}
		log.Info("using postgres stores")
	} else {
		registries = registrystore.NewInMemory()
		liens = lienstore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Issuance idempotency: Redis when configured.
	var idemStore idempotency.Store = idempotency.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		idemStore = idempotency.NewRedis(redisClient.Client)
		healthChecks["redis"] = redisClient
	}

	// Audit pipeline: in-memory primary, Kafka sink when configured.
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		auditStore = audit.NewFanout(auditStore, kafkaSink)
		log.Info("audit events shipping to kafka", "topic", cfg.KafkaTopic)
	}
	publisher := auditpublisher.NewPublisher(auditStore, auditpublisher.WithAsyncBuffer(256))
	defer publisher.Close()

	var escrowAccount id.AccountID
	if cfg.EscrowAccount != "" {
		escrowAccount, err = id.ParseAccountID(cfg.EscrowAccount)
		if err != nil {
			return err
		}
	} else {
		escrowAccount = id.AccountID(uuid.New())
		log.Warn("TAXLIEN_ESCROW_ACCOUNT not set, using ephemeral escrow account", "account", escrowAccount)
	}

	// The ledger is the payment-rail seam: an adapter for the external
	// settlement network plugs in here. Until one does, balances live in
	// process memory only.
	ledger := gateway.NewLedger()
	log.Warn("using in-memory settlement ledger; balances start empty and do not survive restarts")

	metrics := lienmetrics.New()
	svc := service.New(registries, liens, ledger, escrowAccount,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(metrics),
	)

	if err := bootstrapRegistry(ctx, cfg, svc, log); err != nil {
		return err
	}

	tokens := token.NewService(cfg.JWTSigningKey, "taxlien")
	liensHandler := lienhandler.New(svc, idemStore, log)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Liens:        liensHandler,
		Validator:    tokens,
		Logger:       log,
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting taxlien server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// bootstrapRegistry initializes the registry from configuration on first
// boot. An already-initialized registry is left alone.
func bootstrapRegistry(ctx context.Context, cfg config.Server, svc *service.Service, log *slog.Logger) error {
	if cfg.AdminAccount == "" || cfg.FeeAccount == "" {
		log.Warn("admin or fee account not configured, skipping registry bootstrap")
		return nil
	}
	admin, err := id.ParseAccountID(cfg.AdminAccount)
	if err != nil {
		return err
	}
	feeAccount, err := id.ParseAccountID(cfg.FeeAccount)
	if err != nil {
		return err
	}
	if _, err := svc.Initialize(ctx, admin, feeAccount); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			log.Info("registry already initialized")
			return nil
		}
		return err
	}
	log.Info("registry initialized", "admin", admin)
	return nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
