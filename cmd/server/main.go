package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/commitlog/export"
	"github.com/kedh/regcore/internal/label"
	"github.com/kedh/regcore/internal/platform/clock"
	"github.com/kedh/regcore/internal/platform/config"
	"github.com/kedh/regcore/internal/platform/httpserver"
	"github.com/kedh/regcore/internal/platform/logger"
	"github.com/kedh/regcore/internal/platform/postgres"
	redisplatform "github.com/kedh/regcore/internal/platform/redis"
	"github.com/kedh/regcore/internal/registry/index"
	"github.com/kedh/regcore/internal/registry/info"
	"github.com/kedh/regcore/internal/registry/lifecycle"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/internal/registry/transfer"
	httptransport "github.com/kedh/regcore/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New(false).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when a DSN is configured, otherwise the
	// in-memory stores (development and tests only).
	var (
		db         *sql.DB
		stores     store.Stores
		runner     store.TxRunner
		clStore    commitlog.Store
		idxStore   index.EntryStore
		labelStore label.Store
	)
	if cfg.PostgresDSN != "" {
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		pg := store.NewPostgres(db)
		stores = pg.Stores()
		runner = newPostgresTx(db)
		clStore = commitlog.NewPostgresStore(db)
		idxStore = index.NewPostgresStore(db)
		labelStore = label.NewPostgresStore(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		mem := store.NewMemory()
		stores = mem.Stores()
		runner = mem
		clStore = commitlog.NewMemoryStore()
		idxStore = index.NewMemoryStore()
		labelStore = label.NewMemoryStore()
	}

	// The cache serves lookups only; the merger keeps reading the
	// authoritative store so its read-union-write cycle can never write a
	// stale cached subset back.
	var idxLookup index.EntryStore = idxStore
	if redisClient, err := redisplatform.New(ctx, cfg.RedisURL); err != nil {
		log.Warn("redis unavailable, index reads uncached", "error", err)
	} else if redisClient != nil {
		idxLookup = index.NewCachedStore(idxStore, redisClient.Client, cfg.IndexCacheTTL, log)
	}

	commitLog, err := commitlog.NewLog(clStore, cfg.CommitLogBuckets)
	if err != nil {
		log.Error("commit log init failed", "error", err)
		os.Exit(1)
	}

	clk := clock.System{}
	merger := index.NewMerger(idxStore, stores.Resources).WithLookup(idxLookup)
	policy := transfer.Policy{
		PendingPeriod: cfg.TransferPendingPeriod,
		Cooldown:      cfg.TransferCooldown,
		CostCents:     cfg.TransferCostCents,
	}
	transferSvc := transfer.NewService(stores, runner, commitLog, clk, policy, transfer.NewMetrics(), log)
	infoSvc := info.NewService(stores.Resources)
	lifecycleSvc := lifecycle.NewService(stores, runner, commitLog, merger, clk, log)
	labelSvc := label.NewService(labelStore)

	handler := httptransport.NewHandler(
		log,
		transferSvc,
		infoSvc,
		lifecycleSvc,
		merger,
		labelSvc,
		commitlog.NewCheckpointer(commitLog),
		commitlog.NewKiller(commitLog, cfg.Environment, log),
		httptransport.NewAdminValidator(cfg.AdminTokenKey),
		clk.Now,
	)

	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := kgo.NewClient(kgo.SeedBrokers(cfg.KafkaBrokers...))
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		publisher := export.NewPublisher(commitLog, kafkaClient, cfg.KafkaExportTopic, log)
		go func() {
			if err := publisher.Run(ctx, cfg.ExportInterval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("export publisher stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))
	log.Info("starting registry server", "addr", cfg.Addr, "environment", cfg.Environment)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
