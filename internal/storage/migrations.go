package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type dialect struct {
	migrationTable string
	migrations     []string
}

// Migrations are append-only: never edit or reorder an applied entry.
var dialects = map[string]dialect{
	DriverPostgres: {
		migrationTable: `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT NOT NULL)`,
		migrations: []string{
			`CREATE TABLE feeds (
id BIGSERIAL PRIMARY KEY,
feed_id VARCHAR(64) NOT NULL UNIQUE,
original_url TEXT NOT NULL,
rss_xml TEXT NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		},
	},
	DriverSQLite: {
		migrationTable: `CREATE TABLE IF NOT EXISTS migration
("id" INTEGER PRIMARY KEY AUTOINCREMENT, "query" TEXT NOT NULL)`,
		migrations: []string{
			`CREATE TABLE feeds (
id INTEGER PRIMARY KEY AUTOINCREMENT,
feed_id TEXT NOT NULL UNIQUE,
original_url TEXT NOT NULL,
rss_xml TEXT NOT NULL,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
		},
	},
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}

	if _, err := db.ExecContext(ctx, d.migrationTable); err != nil {
		return err
	}

	var existing []string
	if err := db.SelectContext(ctx, &existing, `SELECT query FROM migration ORDER BY id`); err != nil {
		return err
	}

	missing, err := compareMigrations(d.migrations, existing)
	if err != nil {
		return err
	}

	for _, query := range missing {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query); err != nil {
			tx.Rollback()
			return err
		}

		if _, err := tx.ExecContext(ctx, db.Rebind(`INSERT INTO migration (query) VALUES (?)`), query); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return nil, fmt.Errorf("database has %d migrations, only %d known", len(existing), len(wanted))
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// applied
		default:
			return nil, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}
