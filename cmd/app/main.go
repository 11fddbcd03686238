// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"universal-loyalty-ledger/internal/config"
	"universal-loyalty-ledger/internal/infra/api"
	"universal-loyalty-ledger/internal/infra/api/apiv1"
	pg "universal-loyalty-ledger/internal/infra/db/postgres"
	public "universal-loyalty-ledger/internal/infra/http"
	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/infra/metrics"
	red "universal-loyalty-ledger/internal/infra/redis"
	"universal-loyalty-ledger/internal/infra/web"
	"universal-loyalty-ledger/internal/onboarding"
	"universal-loyalty-ledger/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (verbose logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	if err := pg.RunMigrations(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	artifactCache := red.NewArtifactCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	partnerRepo := pg.NewPartnerRepo(pool)
	customerRepo := pg.NewCustomerRepo(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	shadowRepo := pg.NewShadowAccountRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	generator := onboarding.NewGenerator(cfg.Onboarding.Host)
	partnerUC := usecase.NewPartnerUseCase(partnerRepo, logger)
	identityUC := usecase.NewIdentityUseCase(partnerRepo, customerRepo, generator, txManager, logger)
	ledgerUC := usecase.NewLedgerUseCase(customerRepo, transactionRepo, txManager, logger)
	shadowUC := usecase.NewShadowUseCase(partnerRepo, customerRepo, shadowRepo, transactionRepo, identityUC, txManager, logger)
	statsUC := usecase.NewStatsUseCase(partnerRepo, customerRepo, shadowRepo, logger)

	// ---- Partner API ----
	apiServer := apiv1.NewServer(partnerUC, identityUC, ledgerUC, shadowUC, generator, apiv1.ServerOptions{
		Limiter:                rateLimiter,
		ArtifactCache:          artifactCache,
		ClaimAttemptsPerMinute: cfg.Onboarding.ClaimAttemptsPerMinute,
	}, logger)

	publicServer := public.NewServer(identityUC)
	apiMux := http.NewServeMux()
	publicServer.Register(apiMux)
	apiMux.Handle("/", apiServer.Router())

	apiHandler := api.Chain(apiMux,
		api.TraceID(logger),
		api.Recover(logger),
		api.RequestLog(logger),
		api.Timeout(cfg.Server.RequestTimeout),
	)
	partnerSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: apiHandler}
	go func() {
		logger.Info().Str("addr", partnerSrv.Addr).Msg("partner API listening")
		if err := partnerSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("partner API server stopped")
		}
	}()

	// ---- Admin API + metrics ----
	authMgr := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	adminServer := web.NewServer(statsUC, partnerUC, shadowUC, authMgr, cfg.Admin.APIKey, logger)
	adminMux := http.NewServeMux()
	adminServer.RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: adminMux}
	go func() {
		logger.Info().Str("addr", adminSrv.Addr).Msg("admin API listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = partnerSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
	cancel()
}
