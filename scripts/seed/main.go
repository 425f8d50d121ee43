// Seeds a development database with operators and ledger records so the API
// can be exercised locally. Not for production use.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/stockgate/stockgate/internal/app"
	"github.com/stockgate/stockgate/internal/auth"
	"github.com/stockgate/stockgate/internal/ledger"
	"github.com/stockgate/stockgate/internal/platform/db"
)

func main() {
	ctx := context.Background()
	logger := slog.Default()

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	operators := []struct {
		id, name, secret string
		roles            []string
	}{
		{"op-001", "Warehouse Operator", "dev-operator-token", []string{"operator"}},
		{"ap-001", "Inventory Approver", "dev-approver-token", []string{"operator", "approver"}},
	}
	for _, op := range operators {
		hash, err := auth.HashToken(op.secret)
		if err != nil {
			logger.Error("hash token", slog.Any("error", err))
			os.Exit(1)
		}
		_, err = pool.Exec(ctx, `INSERT INTO operators (operator_id, operator_name, roles, token_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (operator_id) DO UPDATE SET roles=EXCLUDED.roles, token_hash=EXCLUDED.token_hash`,
			op.id, op.name, op.roles, hash)
		if err != nil {
			logger.Error("seed operator", slog.String("id", op.id), slog.Any("error", err))
			os.Exit(1)
		}
	}

	repo := ledger.NewRepository(pool)
	records := []ledger.Record{
		{SKUID: "SKU-1001", LocationID: "WH-A", OnHandQty: 50, AvailableQty: 50},
		{SKUID: "SKU-1002", LocationID: "WH-A", OnHandQty: 30, AvailableQty: 30},
		{SKUID: "SKU-2001", LocationID: "WH-B", OnHandQty: 120, AvailableQty: 100, ReservedQty: 20},
	}
	for _, rec := range records {
		rec.Version = 1
		if err := repo.Upsert(ctx, rec); err != nil {
			logger.Error("seed ledger record", slog.String("sku", rec.SKUID), slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.Info("seed complete",
		slog.Int("operators", len(operators)),
		slog.Int("ledger_records", len(records)))
}
