package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/sarmap/internal/adapters/postgres"
	"github.com/samirrijal/sarmap/internal/pkg/config"
	"github.com/samirrijal/sarmap/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("sarmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	all, err := migrations.All()
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}

	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("bootstrap schema_migrations: %v", err)
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db, all, applied)
	case "status":
		for _, m := range all {
			state := "pending"
			if applied[m.Name] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, m.Name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func appliedMigrations(ctx context.Context, db *postgres.DB) (map[string]bool, error) {
	rows, err := db.Pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func runMigrations(ctx context.Context, db *postgres.DB, all []migrations.Migration, applied map[string]bool) {
	n := 0
	for _, m := range all {
		if applied[m.Name] {
			continue
		}
		err := db.InTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			log.Fatalf("apply %s: %v", m.Name, err)
		}
		fmt.Printf("OK  %s\n", m.Name)
		n++
	}

	log.Printf("%d migrations applied", n)
}
