/*
store.go - Persistence interface for assets, categories and schedules

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never issues queries of its own; it asks a Store for records and for
  all-or-nothing units of work.

KEY INTERFACES:
  AssetStore:    Asset records (authoritative)
  ScheduleStore: Schedule rows (derived, replaced wholesale)
  CategoryStore: Categories and their reference counts
  Store:         All three plus WithTx

REPLACE-ALL CONTRACT:
  ReplaceSchedule deletes every row for the asset and inserts the given
  entries. It returns how many rows it actually wrote so the synchronizer
  can detect a short write. Run it inside WithTx; outside a transaction a
  reader could observe the asset with no schedule.

ABSENT RECORDS:
  GetAsset and GetCategory return (nil, nil) when the record does not
  exist. Callers decide whether absence is an error.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - depreciation/store/memory.go: In-memory for testing

SEE ALSO:
  - sync.go: The only caller of ReplaceSchedule
  - registry.go: Higher-level operations using Store
*/
package depreciation

import "context"

// =============================================================================
// ASSETS
// =============================================================================

type AssetStore interface {
	// CreateAsset inserts a new asset and returns its generated ID.
	CreateAsset(ctx context.Context, a Asset) (int64, error)

	// UpdateAsset overwrites every mutable field of the asset with a.ID.
	UpdateAsset(ctx context.Context, a Asset) error

	// DeleteAsset removes the asset and, by cascade, its schedule.
	DeleteAsset(ctx context.Context, id int64) error

	GetAsset(ctx context.Context, id int64) (*Asset, error)

	// ListAssets returns every asset ordered by name.
	ListAssets(ctx context.Context) ([]Asset, error)
}

// =============================================================================
// SCHEDULES
// =============================================================================

type ScheduleStore interface {
	// ReplaceSchedule deletes all rows for assetID and writes entries.
	// Returns the number of rows written.
	ReplaceSchedule(ctx context.Context, assetID int64, entries []Entry) (int, error)

	// Schedule returns the persisted rows for assetID ordered by year.
	Schedule(ctx context.Context, assetID int64) ([]Entry, error)

	// ListScheduleEntries returns every persisted row ordered by asset, then year.
	ListScheduleEntries(ctx context.Context) ([]Entry, error)
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryStore interface {
	CreateCategory(ctx context.Context, c Category) (int64, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error
	GetCategory(ctx context.Context, id int64) (*Category, error)

	// FindCategoryByName matches case-insensitively on the trimmed name.
	FindCategoryByName(ctx context.Context, name string) (*Category, error)

	// ListCategoriesWithCounts returns categories ordered by name, each with
	// the number of assets referencing it.
	ListCategoriesWithCounts(ctx context.Context) ([]CategoryWithCount, error)

	CountAssetsInCategory(ctx context.Context, categoryID int64) (int, error)

	// ReassignCategory moves every asset in from to the target category,
	// or to uncategorized when to is nil. Returns the number of assets moved.
	ReassignCategory(ctx context.Context, from int64, to *int64) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence contract.
type Store interface {
	AssetStore
	ScheduleStore
	CategoryStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
