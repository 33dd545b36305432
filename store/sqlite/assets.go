package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/abacus/asset-engine/depreciation"
)

// =============================================================================
// ASSET STORE
// =============================================================================

const assetColumns = `id, name, description, category_id, date_placed_in_service,
	cost, salvage_value, useful_life_years, property_class, notes,
	disposed_date, disposed_value, created_at, updated_at`

func (s *Store) CreateAsset(ctx context.Context, a depreciation.Asset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAsset(ctx, s.db, a)
}

func (s *Store) UpdateAsset(ctx context.Context, a depreciation.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAsset(ctx, s.db, a)
}

func (s *Store) DeleteAsset(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAsset(ctx, s.db, id)
}

func (s *Store) GetAsset(ctx context.Context, id int64) (*depreciation.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAsset(ctx, s.db, id)
}

func (s *Store) ListAssets(ctx context.Context) ([]depreciation.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAssets(ctx, s.db)
}

func (ts *txStore) CreateAsset(ctx context.Context, a depreciation.Asset) (int64, error) {
	return createAsset(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAsset(ctx context.Context, a depreciation.Asset) error {
	return updateAsset(ctx, ts.tx, a)
}

func (ts *txStore) DeleteAsset(ctx context.Context, id int64) error {
	return deleteAsset(ctx, ts.tx, id)
}

func (ts *txStore) GetAsset(ctx context.Context, id int64) (*depreciation.Asset, error) {
	return getAsset(ctx, ts.tx, id)
}

func (ts *txStore) ListAssets(ctx context.Context) ([]depreciation.Asset, error) {
	return listAssets(ctx, ts.tx)
}

// -----------------------------------------------------------------------------

func createAsset(ctx context.Context, q querier, a depreciation.Asset) (int64, error) {
	ts := now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO assets
		(name, description, category_id, date_placed_in_service, cost, salvage_value,
		 useful_life_years, property_class, notes, disposed_date, disposed_value,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.Name,
		nullString(a.Description),
		nullInt64(a.CategoryID),
		a.DatePlacedInService,
		money(a.Cost),
		money(a.SalvageValue),
		a.UsefulLifeYears,
		nullString(a.PropertyClass),
		nullString(a.Notes),
		nullString(a.DisposedDate),
		nullMoney(a.DisposedValue),
		ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset: %w", err)
	}
	return res.LastInsertId()
}

func updateAsset(ctx context.Context, q querier, a depreciation.Asset) error {
	if a.ID == nil {
		return depreciation.ErrMissingID
	}
	res, err := q.ExecContext(ctx, `
		UPDATE assets SET
			name = ?, description = ?, category_id = ?, date_placed_in_service = ?,
			cost = ?, salvage_value = ?, useful_life_years = ?, property_class = ?,
			notes = ?, disposed_date = ?, disposed_value = ?, updated_at = ?
		WHERE id = ?
	`,
		a.Name,
		nullString(a.Description),
		nullInt64(a.CategoryID),
		a.DatePlacedInService,
		money(a.Cost),
		money(a.SalvageValue),
		a.UsefulLifeYears,
		nullString(a.PropertyClass),
		nullString(a.Notes),
		nullString(a.DisposedDate),
		nullMoney(a.DisposedValue),
		now(),
		*a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &depreciation.NotFoundError{Kind: "asset", ID: *a.ID}
	}
	return nil
}

func deleteAsset(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func getAsset(ctx context.Context, q querier, id int64) (*depreciation.Asset, error) {
	row := q.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func listAssets(ctx context.Context, q querier) ([]depreciation.Asset, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+assetColumns+" FROM assets ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []depreciation.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (depreciation.Asset, error) {
	var (
		a             depreciation.Asset
		id            int64
		description   sql.NullString
		categoryID    sql.NullInt64
		cost          string
		salvage       string
		propertyClass sql.NullString
		notes         sql.NullString
		disposedDate  sql.NullString
		disposedValue sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&id, &a.Name, &description, &categoryID, &a.DatePlacedInService,
		&cost, &salvage, &a.UsefulLifeYears, &propertyClass, &notes,
		&disposedDate, &disposedValue, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan asset: %w", err)
	}

	a.ID = &id
	a.Description = stringPtr(description)
	a.CategoryID = int64Ptr(categoryID)
	a.PropertyClass = stringPtr(propertyClass)
	a.Notes = stringPtr(notes)
	a.DisposedDate = stringPtr(disposedDate)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	if a.Cost, err = parseMoney(cost); err != nil {
		return a, err
	}
	if a.SalvageValue, err = parseMoney(salvage); err != nil {
		return a, err
	}
	if disposedValue.Valid {
		v, err := parseMoney(disposedValue.String)
		if err != nil {
			return a, err
		}
		a.DisposedValue = &v
	}
	return a, nil
}
