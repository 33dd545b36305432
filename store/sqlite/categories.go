package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/abacus/asset-engine/depreciation"
)

// =============================================================================
// CATEGORY STORE
// =============================================================================

// ErrDuplicateCategory is returned when a category name is already taken.
var ErrDuplicateCategory = errors.New("category name already exists")

func (s *Store) CreateCategory(ctx context.Context, c depreciation.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createCategory(ctx, s.db, c)
}

func (s *Store) UpdateCategory(ctx context.Context, c depreciation.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCategory(ctx, s.db, c)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCategory(ctx, s.db, id)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*depreciation.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCategory(ctx, s.db, "WHERE id = ?", id)
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*depreciation.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCategory(ctx, s.db, "WHERE name = ?", strings.TrimSpace(name))
}

func (s *Store) ListCategoriesWithCounts(ctx context.Context) ([]depreciation.CategoryWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCategoriesWithCounts(ctx, s.db)
}

func (s *Store) CountAssetsInCategory(ctx context.Context, categoryID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countAssetsInCategory(ctx, s.db, categoryID)
}

func (s *Store) ReassignCategory(ctx context.Context, from int64, to *int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reassignCategory(ctx, s.db, from, to)
}

func (ts *txStore) CreateCategory(ctx context.Context, c depreciation.Category) (int64, error) {
	return createCategory(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCategory(ctx context.Context, c depreciation.Category) error {
	return updateCategory(ctx, ts.tx, c)
}

func (ts *txStore) DeleteCategory(ctx context.Context, id int64) error {
	return deleteCategory(ctx, ts.tx, id)
}

func (ts *txStore) GetCategory(ctx context.Context, id int64) (*depreciation.Category, error) {
	return getCategory(ctx, ts.tx, "WHERE id = ?", id)
}

func (ts *txStore) FindCategoryByName(ctx context.Context, name string) (*depreciation.Category, error) {
	return getCategory(ctx, ts.tx, "WHERE name = ?", strings.TrimSpace(name))
}

func (ts *txStore) ListCategoriesWithCounts(ctx context.Context) ([]depreciation.CategoryWithCount, error) {
	return listCategoriesWithCounts(ctx, ts.tx)
}

func (ts *txStore) CountAssetsInCategory(ctx context.Context, categoryID int64) (int, error) {
	return countAssetsInCategory(ctx, ts.tx, categoryID)
}

func (ts *txStore) ReassignCategory(ctx context.Context, from int64, to *int64) (int, error) {
	return reassignCategory(ctx, ts.tx, from, to)
}

// -----------------------------------------------------------------------------

func createCategory(ctx context.Context, q querier, c depreciation.Category) (int64, error) {
	ts := now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO categories (name, default_useful_life, default_property_class, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.Name, nullInt(c.DefaultUsefulLife), nullString(c.DefaultPropertyClass), ts, ts)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicateCategory
		}
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	return res.LastInsertId()
}

func updateCategory(ctx context.Context, q querier, c depreciation.Category) error {
	if c.ID == nil {
		return depreciation.ErrMissingID
	}
	res, err := q.ExecContext(ctx, `
		UPDATE categories SET name = ?, default_useful_life = ?, default_property_class = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, nullInt(c.DefaultUsefulLife), nullString(c.DefaultPropertyClass), now(), *c.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateCategory
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &depreciation.NotFoundError{Kind: "category", ID: *c.ID}
	}
	return nil
}

// deleteCategory relies on the assets.category_id foreign key to refuse
// deleting a referenced category.
func deleteCategory(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func getCategory(ctx context.Context, q querier, where string, arg any) (*depreciation.Category, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, default_useful_life, default_property_class, created_at, updated_at
		FROM categories `+where, arg)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func listCategoriesWithCounts(ctx context.Context, q querier) ([]depreciation.CategoryWithCount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.name, c.default_useful_life, c.default_property_class, c.created_at, c.updated_at,
		       COUNT(a.id)
		FROM categories c
		LEFT JOIN assets a ON a.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []depreciation.CategoryWithCount{}
	for rows.Next() {
		var (
			c                    depreciation.CategoryWithCount
			id                   int64
			defaultLife          sql.NullInt64
			defaultClass         sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &c.Name, &defaultLife, &defaultClass, &createdAt, &updatedAt, &c.AssetCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.ID = &id
		c.DefaultUsefulLife = intPtr(defaultLife)
		c.DefaultPropertyClass = stringPtr(defaultClass)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func countAssetsInCategory(ctx context.Context, q querier, categoryID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets WHERE category_id = ?", categoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

func reassignCategory(ctx context.Context, q querier, from int64, to *int64) (int, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE assets SET category_id = ?, updated_at = ? WHERE category_id = ?",
		nullInt64(to), now(), from,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign assets: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanCategory(row scanner) (depreciation.Category, error) {
	var (
		c                    depreciation.Category
		id                   int64
		defaultLife          sql.NullInt64
		defaultClass         sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &c.Name, &defaultLife, &defaultClass, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("failed to scan category: %w", err)
	}
	c.ID = &id
	c.DefaultUsefulLife = intPtr(defaultLife)
	c.DefaultPropertyClass = stringPtr(defaultClass)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}
