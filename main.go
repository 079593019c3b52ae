package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	activitypg "receivables-cloud/internal/activity/infrastructure/postgres"
	apihttp "receivables-cloud/internal/api/http"
	"receivables-cloud/internal/audit"
	"receivables-cloud/internal/auth"
	"receivables-cloud/internal/eventing"
	ledgerpg "receivables-cloud/internal/ledger/infrastructure/postgres"
	"receivables-cloud/internal/observability/metrics"
	reconcileapp "receivables-cloud/internal/reconcile/application"
	reconcilepg "receivables-cloud/internal/reconcile/infrastructure/postgres"
	snapshotapp "receivables-cloud/internal/snapshot/application"
	statsapp "receivables-cloud/internal/stats/application"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	store := ledgerpg.NewStore(db)
	runRepo := reconcilepg.NewRunRepository(db)
	activityFeed := activitypg.NewFeed(db)

	snapshots, err := snapshotapp.NewSnapshotService(store, nil)
	if err != nil {
		logger.Fatalf("snapshot service error: %v", err)
	}
	aggregator, err := snapshotapp.NewAggregator(snapshots, store, nil)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}

	cache := statsapp.NewCache(cfg.TTLs, nil)
	stats, err := statsapp.NewService(cache, snapshots, aggregator, activityFeed)
	if err != nil {
		logger.Fatalf("stats service error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	corrector, err := reconcileapp.NewCorrector(snapshots, store, bus, nil)
	if err != nil {
		logger.Fatalf("corrector error: %v", err)
	}

	reconcileCfg, err := reconcileapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reconcile config error: %v", err)
	}
	bulk, err := reconcileapp.NewBulk(corrector, store, runRepo, bus, logger, nil, reconcileCfg.Workers, reconcileCfg.ProgressEvery)
	if err != nil {
		logger.Fatalf("bulk reconciler error: %v", err)
	}

	// A correction makes both the account's cached snapshot and the global
	// aggregate stale; a finished bulk run invalidates everything.
	eventing.On(bus, "stats.correction", logger, func(ctx context.Context, event reconcileapp.CorrectionApplied) error {
		stats.InvalidateAccount(event.AccountID)
		return nil
	})
	eventing.On(bus, "stats.run", logger, func(ctx context.Context, event reconcileapp.ReconciliationCompleted) error {
		_, err := stats.Invalidate(string(statsapp.ScopeAll))
		return err
	})
	eventing.On(bus, "audit.correction", logger, func(ctx context.Context, event reconcileapp.CorrectionApplied) error {
		logger.Printf("correction applied: account=%s previous=%s computed=%s delta=%s",
			event.AccountID, event.Previous, event.Computed, event.Delta)
		return nil
	})

	scheduler := reconcileapp.NewScheduler(bulk, reconcileCfg.Schedule.DailyAt, reconcileCfg.RunTimeout, logger)
	go scheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/summary", apihttp.NewSummaryHandler(stats))
	mux.Handle("/api/v1/accounts/", apihttp.NewAccountsHandler(stats, corrector, auditRepo))
	mux.Handle("/api/v1/reconciliation/run", apihttp.NewReconcileAllHandler(bulk, auditRepo, reconcileCfg.RunTimeout))
	mux.Handle("/api/v1/reconciliation/runs", apihttp.NewRunsHandler(runRepo))
	mux.Handle("/api/v1/reconciliation/report", apihttp.NewReportExportHandler(runRepo))
	mux.Handle("/api/v1/activities", apihttp.NewActivitiesHandler(stats))
	mux.Handle("/api/v1/cache/invalidate", apihttp.NewInvalidateHandler(stats, auditRepo))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.NewHealthHandler(db))

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	TTLs        statsapp.TTLConfig
}

func loadConfig() config {
	ttls := statsapp.DefaultTTLs()
	ttls.Global = getenvDuration("STATS_TTL_GLOBAL", ttls.Global)
	ttls.Representative = getenvDuration("STATS_TTL_REPRESENTATIVE", ttls.Representative)
	ttls.RecentActivities = getenvDuration("STATS_TTL_ACTIVITIES", ttls.RecentActivities)

	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		TTLs:        ttls,
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
