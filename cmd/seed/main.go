// Package main seeds a development database with demo catalog items and
// opening stock.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/ledger"
	"agrostock/internal/infrastructure/storage/postgres"
	"agrostock/internal/infrastructure/storage/postgres/catalog_repo"
	"agrostock/internal/infrastructure/storage/postgres/ledger_repo"
	"agrostock/pkg/logger"
)

type seedItem struct {
	sku       string
	name      string
	category  string
	unit      string
	reorder   float64
	batches   []seedBatch
	expiresIn time.Duration
}

type seedBatch struct {
	qty  float64
	cost string
	age  time.Duration
}

var catalog = []seedItem{
	{
		sku: "FEED-001", name: "Starter feed 40% protein", category: "feed", unit: "kg",
		reorder: 50, expiresIn: 90 * 24 * time.Hour,
		batches: []seedBatch{
			{qty: 100, cost: "5.50", age: 21 * 24 * time.Hour},
			{qty: 200, cost: "5.80", age: 10 * 24 * time.Hour},
			{qty: 150, cost: "6.10", age: 2 * 24 * time.Hour},
		},
	},
	{
		sku: "FEED-002", name: "Grower feed 32% protein", category: "feed", unit: "kg",
		reorder: 80, expiresIn: 120 * 24 * time.Hour,
		batches: []seedBatch{
			{qty: 400, cost: "4.20", age: 14 * 24 * time.Hour},
		},
	},
	{
		sku: "CHEM-001", name: "Sodium bicarbonate", category: "chemicals", unit: "kg",
		reorder: 20,
		batches: []seedBatch{
			{qty: 50, cost: "1.15", age: 30 * 24 * time.Hour},
			{qty: 25, cost: "1.30", age: 5 * 24 * time.Hour},
		},
	},
	{
		sku: "CHEM-002", name: "Probiotic culture", category: "chemicals", unit: "L",
		reorder: 10, expiresIn: 45 * 24 * time.Hour,
		batches: []seedBatch{
			{qty: 12, cost: "22.00", age: 7 * 24 * time.Hour},
		},
	},
	{
		sku: "EQUIP-001", name: "Air stone diffuser", category: "equipment", unit: "pcs",
		reorder: 5,
		batches: []seedBatch{
			{qty: 30, cost: "3.75", age: 60 * 24 * time.Hour},
		},
	},
}

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	itemService := item.NewService(catalog_repo.NewItemRepo(txManager))
	ledgerService := ledger.NewService(ledger_repo.NewLedgerRepo(txManager), txManager, nil)

	origin := entity.Origin{Module: "seed", ActorID: "seeder"}
	now := time.Now().UTC()

	for _, s := range catalog {
		it := item.NewItem(s.sku, s.name, s.category, s.unit)
		it.ReorderThreshold = types.NewQuantityFromFloat64(s.reorder)

		if err := itemService.Create(ctx, it); err != nil {
			log.Warnw("skipping item", "sku", s.sku, "error", err)
			continue
		}

		for i, b := range s.batches {
			acquired := now.Add(-b.age)
			var expires *time.Time
			if s.expiresIn > 0 {
				e := acquired.Add(s.expiresIn)
				expires = &e
			}
			batchNo := fmt.Sprintf("SEED-%s-%d", s.sku, i+1)

			_, err := ledgerService.Add(ctx, it.ID,
				types.NewQuantityFromFloat64(b.qty), types.MustMoney(b.cost),
				acquired, expires, batchNo, origin,
			)
			if err != nil {
				log.Fatalw("failed to seed batch", "sku", s.sku, "batch", batchNo, "error", err)
			}
		}

		log.Infow("seeded item", "sku", s.sku, "batches", len(s.batches))
	}

	log.Info("seed complete")
}
