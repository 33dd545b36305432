package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step. Version is stored in PRAGMA user_version.
type migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE COLLATE NOCASE,
					default_useful_life INTEGER,
					default_property_class TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS assets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					description TEXT,
					category_id INTEGER REFERENCES categories(id),
					date_placed_in_service TEXT NOT NULL,
					cost TEXT NOT NULL,
					salvage_value TEXT NOT NULL DEFAULT '0.00',
					useful_life_years INTEGER NOT NULL,
					property_class TEXT,
					notes TEXT,
					disposed_date TEXT,
					disposed_value TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS depreciation_schedule (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
					year INTEGER NOT NULL,
					beginning_book_value TEXT NOT NULL,
					depreciation_expense TEXT NOT NULL,
					accumulated_depreciation TEXT NOT NULL,
					ending_book_value TEXT NOT NULL,
					UNIQUE(asset_id, year)
				)`,

				`CREATE INDEX IF NOT EXISTS idx_assets_category ON assets(category_id)`,
				`CREATE INDEX IF NOT EXISTS idx_assets_date ON assets(date_placed_in_service)`,
				`CREATE INDEX IF NOT EXISTS idx_schedule_year ON depreciation_schedule(year)`,
				`CREATE INDEX IF NOT EXISTS idx_schedule_asset ON depreciation_schedule(asset_id)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Index disposed assets for dashboard filtering",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_assets_disposed ON assets(disposed_date)`,
			)
		},
	},
}

// migrate applies every migration newer than the database's user_version,
// each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
