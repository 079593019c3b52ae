package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	ledgerpg "receivables-cloud/internal/ledger/infrastructure/postgres"
	reconcileapp "receivables-cloud/internal/reconcile/application"
	reconcile "receivables-cloud/internal/reconcile/domain"
	reconcilepg "receivables-cloud/internal/reconcile/infrastructure/postgres"
	snapshotapp "receivables-cloud/internal/snapshot/application"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL         string
	workers       int
	progressEvery int
	timeout       time.Duration
	outDir        string
	persistRun    bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	store := ledgerpg.NewStore(db)

	snapshots, err := snapshotapp.NewSnapshotService(store, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "snapshot service:", err)
		os.Exit(2)
	}
	corrector, err := reconcileapp.NewCorrector(snapshots, store, nil, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "corrector:", err)
		os.Exit(2)
	}

	var runs reconcileapp.RunRecorder
	if cfg.persistRun {
		runs = reconcilepg.NewRunRepository(db)
	}
	bulk, err := reconcileapp.NewBulk(corrector, store, runs, nil, logger, nil, cfg.workers, cfg.progressEvery)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bulk reconciler:", err)
		os.Exit(2)
	}

	ctx := context.Background()
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	report, err := bulk.ReconcileAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconcile:", err)
		os.Exit(1)
	}

	if err := writeReport(cfg.outDir, report); err != nil {
		fmt.Fprintln(os.Stderr, "write report:", err)
		os.Exit(1)
	}

	fmt.Printf("run=%s total=%d succeeded=%d failed=%d corrected=%d unchanged=%d canceled=%v elapsed_ms=%d\n",
		report.RunID, report.Total, report.Succeeded, report.Failed,
		report.Corrected, report.Unchanged, report.Canceled, report.ElapsedMs)
	fmt.Printf("report written to %s\n", filepath.Join(cfg.outDir, "reconciliation_report.csv"))
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.IntVar(&cfg.workers, "workers", 8, "worker pool size")
	flag.IntVar(&cfg.progressEvery, "progress-every", 100, "log progress every N accounts")
	flag.DurationVar(&cfg.timeout, "timeout", 10*time.Minute, "run timeout, 0 disables")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.BoolVar(&cfg.persistRun, "persist", true, "persist the run report to the database")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func writeReport(outDir string, report reconcile.Report) error {
	path := filepath.Join(outDir, "reconciliation_report.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"run_id",
		"account_id",
		"previous",
		"computed",
		"delta",
		"status",
		"reason",
		"at",
	}); err != nil {
		return err
	}

	for _, record := range report.Corrections {
		if err := writer.Write([]string{
			report.RunID,
			record.AccountID,
			record.Previous.String(),
			record.Computed.String(),
			record.Delta.String(),
			string(record.Status),
			record.Reason,
			record.At.Format(timeLayout),
		}); err != nil {
			return err
		}
	}
	return nil
}
