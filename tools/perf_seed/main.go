package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

type config struct {
	dsn           string
	accountPrefix string
	accountCount  int
	invoicesPer   int
	paymentsPer   int
	driftEvery    int
	seed          int64
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.accountCount <= 0 {
		log.Fatal("account-count must be > 0")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(cfg.seed))

	log.Printf("seeding ledger: accounts=%d invoices_per=%d payments_per=%d drift_every=%d",
		cfg.accountCount, cfg.invoicesPer, cfg.paymentsPer, cfg.driftEvery)

	drifted := 0
	for i := 0; i < cfg.accountCount; i++ {
		accountID := fmt.Sprintf("%s-%06d", cfg.accountPrefix, i+1)
		debt, err := seedAccount(ctx, db, rng, accountID, cfg.invoicesPer, cfg.paymentsPer)
		if err != nil {
			log.Fatalf("seed account %s: %v", accountID, err)
		}

		stored := debt
		if cfg.driftEvery > 0 && (i+1)%cfg.driftEvery == 0 {
			// Inject drift so reconciliation runs have work to do.
			stored = debt.Add(decimal.NewFromInt(int64(rng.Intn(200) - 100)))
			drifted++
		}
		if _, err := db.ExecContext(ctx, `
UPDATE accounts SET stored_debt = $2 WHERE id = $1`, accountID, stored); err != nil {
			log.Fatalf("set stored debt %s: %v", accountID, err)
		}

		if (i+1)%1000 == 0 {
			log.Printf("seeded %d/%d accounts", i+1, cfg.accountCount)
		}
	}

	log.Printf("done: accounts=%d drifted=%d", cfg.accountCount, drifted)
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.dsn, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.accountPrefix, "account-prefix", "perf-acct", "account id prefix")
	flag.IntVar(&cfg.accountCount, "account-count", 1000, "number of accounts to seed")
	flag.IntVar(&cfg.invoicesPer, "invoices-per", 10, "invoices per account")
	flag.IntVar(&cfg.paymentsPer, "payments-per", 6, "allocated payments per account")
	flag.IntVar(&cfg.driftEvery, "drift-every", 10, "inject stored-debt drift on every Nth account, 0 disables")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func seedAccount(ctx context.Context, db *sql.DB, rng *rand.Rand, accountID string, invoices, payments int) (decimal.Decimal, error) {
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, `
INSERT INTO accounts (id, name, status, stored_debt, updated_at)
VALUES ($1, $2, 'active', 0, $3)
ON CONFLICT (id) DO NOTHING`, accountID, "Perf "+accountID, now); err != nil {
		return decimal.Zero, err
	}

	invoiceTotal := decimal.Zero
	for i := 0; i < invoices; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(900) + 100))
		status := "unpaid"
		if rng.Intn(4) == 0 {
			status = "paid"
		}
		if status == "unpaid" {
			invoiceTotal = invoiceTotal.Add(amount)
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO invoices (id, account_id, amount, status, issued_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
			fmt.Sprintf("%s-inv-%04d", accountID, i+1), accountID, amount, status, now.AddDate(0, 0, -i)); err != nil {
			return decimal.Zero, err
		}
	}

	paymentTotal := decimal.Zero
	for i := 0; i < payments; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(300) + 50))
		allocated := rng.Intn(5) != 0
		if allocated {
			paymentTotal = paymentTotal.Add(amount)
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO payments (id, account_id, amount, allocated, received_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
			fmt.Sprintf("%s-pay-%04d", accountID, i+1), accountID, amount, allocated, now.AddDate(0, 0, -i)); err != nil {
			return decimal.Zero, err
		}
	}

	return invoiceTotal.Sub(paymentTotal), nil
}
