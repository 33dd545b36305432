/*
registry.go - Orchestration of asset and category operations

PURPOSE:
  The Registry is the only writer of assets, categories and schedules.
  Every mutation follows the same shape:

    normalize -> validate -> WithTx { write record -> SyncSchedule }

  Validation happens strictly before any write, and the schedule replace
  shares the transaction with the asset write, so an inconsistent schedule
  rolls the asset change back too.

CATEGORY DEFAULTS:
  On create, an asset without a useful life (0) or property class takes the
  referenced category's defaults. Changing a category later never touches
  existing assets or their schedules.

IMPORT:
  Rows are processed independently, each in its own transaction. A bad row
  adds "Row N: ..." messages to the result and the batch continues.

SEE ALSO:
  - store.go: Persistence contract
  - sync.go: Replace-all schedule writes
  - validate.go: Rules applied before every mutation
*/
package depreciation

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// REGISTRY
// =============================================================================

type Registry struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

type Option func(*Registry)

// WithClock sets the source of "today" for date validation and the
// default dashboard year.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(store Store, opts ...Option) *Registry {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	r := &Registry{store: store, now: time.Now, log: silent}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today is the registry's reference date.
func (r *Registry) Today() time.Time {
	return DateOf(r.now())
}

func (r *Registry) CurrentYear() int {
	return r.Today().Year()
}

// =============================================================================
// ASSETS
// =============================================================================

// CreateAsset validates a, persists it and writes its schedule.
func (r *Registry) CreateAsset(ctx context.Context, a Asset) (int64, error) {
	a = a.Normalized()
	a.ID = nil

	var id int64
	err := r.store.WithTx(ctx, func(tx Store) error {
		var err error
		id, err = r.createAsset(ctx, tx, a)
		return err
	})
	if err != nil {
		return 0, err
	}

	r.log.WithFields(logrus.Fields{"asset_id": id, "name": a.Name}).Info("asset created")
	return id, nil
}

func (r *Registry) createAsset(ctx context.Context, tx Store, a Asset) (int64, error) {
	if a.CategoryID != nil {
		cat, err := tx.GetCategory(ctx, *a.CategoryID)
		if err != nil {
			return 0, fmt.Errorf("load category: %w", err)
		}
		if cat == nil {
			return 0, &NotFoundError{Kind: "category", ID: *a.CategoryID}
		}
		a = applyCategoryDefaults(a, *cat)
	}

	if err := ValidateAsset(a, r.now()); err != nil {
		return 0, err
	}

	id, err := tx.CreateAsset(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("create asset: %w", err)
	}
	a.ID = &id

	entries, err := SyncSchedule(ctx, tx, a)
	if err != nil {
		return 0, err
	}
	r.log.WithFields(logrus.Fields{"asset_id": id, "rows": len(entries)}).Debug("schedule synced")
	return id, nil
}

// UpdateAsset overwrites an existing asset and regenerates its schedule.
func (r *Registry) UpdateAsset(ctx context.Context, a Asset) error {
	if a.ID == nil {
		return fmt.Errorf("update asset: %w", ErrMissingID)
	}
	a = a.Normalized()

	err := r.store.WithTx(ctx, func(tx Store) error {
		return r.updateAsset(ctx, tx, a)
	})
	if err != nil {
		return err
	}

	r.log.WithField("asset_id", *a.ID).Info("asset updated")
	return nil
}

func (r *Registry) updateAsset(ctx context.Context, tx Store, a Asset) error {
	existing, err := tx.GetAsset(ctx, *a.ID)
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	if existing == nil {
		return &NotFoundError{Kind: "asset", ID: *a.ID}
	}

	if a.CategoryID != nil {
		cat, err := tx.GetCategory(ctx, *a.CategoryID)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if cat == nil {
			return &NotFoundError{Kind: "category", ID: *a.CategoryID}
		}
	}

	if err := ValidateAsset(a, r.now()); err != nil {
		return err
	}

	a.CreatedAt = existing.CreatedAt
	if err := tx.UpdateAsset(ctx, a); err != nil {
		return fmt.Errorf("update asset: %w", err)
	}

	entries, err := SyncSchedule(ctx, tx, a)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"asset_id": *a.ID, "rows": len(entries)}).Debug("schedule synced")
	return nil
}

// DeleteAsset removes an asset together with its schedule.
func (r *Registry) DeleteAsset(ctx context.Context, id int64) error {
	err := r.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetAsset(ctx, id)
		if err != nil {
			return fmt.Errorf("load asset: %w", err)
		}
		if existing == nil {
			return &NotFoundError{Kind: "asset", ID: id}
		}
		if _, err := tx.ReplaceSchedule(ctx, id, nil); err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		if err := tx.DeleteAsset(ctx, id); err != nil {
			return fmt.Errorf("delete asset: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.WithField("asset_id", id).Info("asset deleted")
	return nil
}

// DisposeAsset records a disposal. It goes through the full update path,
// so the asset is revalidated and its schedule regenerated.
func (r *Registry) DisposeAsset(ctx context.Context, id int64, disposedDate string, disposedValue *decimal.Decimal) error {
	err := r.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetAsset(ctx, id)
		if err != nil {
			return fmt.Errorf("load asset: %w", err)
		}
		if existing == nil {
			return &NotFoundError{Kind: "asset", ID: id}
		}

		if err := ValidateDisposal(disposedDate, disposedValue, existing.DatePlacedInService, r.now()); err != nil {
			return err
		}

		a := *existing
		d := trim(disposedDate)
		a.DisposedDate = &d
		a.DisposedValue = disposedValue
		return r.updateAsset(ctx, tx, a.Normalized())
	})
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{"asset_id": id, "disposed_date": disposedDate}).Info("asset disposed")
	return nil
}

// GetAsset returns one asset with its persisted schedule.
func (r *Registry) GetAsset(ctx context.Context, id int64) (*AssetWithSchedule, error) {
	a, err := r.store.GetAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "asset", ID: id}
	}

	schedule, err := r.store.Schedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	result := &AssetWithSchedule{Asset: *a, Schedule: schedule}
	if a.CategoryID != nil {
		cat, err := r.store.GetCategory(ctx, *a.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("load category: %w", err)
		}
		if cat != nil {
			result.CategoryName = &cat.Name
		}
	}
	return result, nil
}

// ListAssets returns every asset, ordered by name, with its schedule.
func (r *Registry) ListAssets(ctx context.Context) ([]AssetWithSchedule, error) {
	assets, err := r.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	entries, err := r.store.ListScheduleEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	categories, err := r.store.ListCategoriesWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[*c.ID] = c.Name
	}
	schedules := groupByAsset(entries)

	result := make([]AssetWithSchedule, 0, len(assets))
	for _, a := range assets {
		item := AssetWithSchedule{Asset: a, Schedule: schedules[*a.ID]}
		if item.Schedule == nil {
			item.Schedule = []Entry{}
		}
		if a.CategoryID != nil {
			if name, ok := names[*a.CategoryID]; ok {
				item.CategoryName = &name
			}
		}
		result = append(result, item)
	}
	return result, nil
}

// Valuation is the point-in-time view of one asset.
type Valuation struct {
	AssetID      int64           `json:"asset_id"`
	Year         int             `json:"year"`
	BookValue    decimal.Decimal `json:"book_value"`
	Depreciation decimal.Decimal `json:"depreciation"`
}

func (r *Registry) Valuate(ctx context.Context, id int64, year int) (*Valuation, error) {
	a, err := r.store.GetAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "asset", ID: id}
	}
	return &Valuation{
		AssetID:      id,
		Year:         year,
		BookValue:    CurrentBookValue(*a, year),
		Depreciation: DepreciationForYear(*a, year),
	}, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (r *Registry) CreateCategory(ctx context.Context, c Category) (int64, error) {
	c = normalizeCategory(c)
	c.ID = nil
	if err := ValidateCategory(c); err != nil {
		return 0, err
	}

	var id int64
	err := r.store.WithTx(ctx, func(tx Store) error {
		if err := r.checkCategoryName(ctx, tx, c); err != nil {
			return err
		}
		var err error
		id, err = tx.CreateCategory(ctx, c)
		if err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.WithFields(logrus.Fields{"category_id": id, "name": c.Name}).Info("category created")
	return id, nil
}

// UpdateCategory changes a category's name or defaults. Assets already in
// the category keep their values and schedules.
func (r *Registry) UpdateCategory(ctx context.Context, c Category) error {
	if c.ID == nil {
		return fmt.Errorf("update category: %w", ErrMissingID)
	}
	c = normalizeCategory(c)
	if err := ValidateCategory(c); err != nil {
		return err
	}

	return r.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetCategory(ctx, *c.ID)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if existing == nil {
			return &NotFoundError{Kind: "category", ID: *c.ID}
		}
		if err := r.checkCategoryName(ctx, tx, c); err != nil {
			return err
		}
		c.CreatedAt = existing.CreatedAt
		if err := tx.UpdateCategory(ctx, c); err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		return nil
	})
}

// DeleteCategory removes an unreferenced category. While any asset uses it
// the delete is refused with a ReferentialError carrying the count.
func (r *Registry) DeleteCategory(ctx context.Context, id int64) error {
	err := r.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if existing == nil {
			return &NotFoundError{Kind: "category", ID: id}
		}

		count, err := tx.CountAssetsInCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("count assets: %w", err)
		}
		if count > 0 {
			return &ReferentialError{CategoryID: id, Count: count}
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}

	r.log.WithField("category_id", id).Info("category deleted")
	return nil
}

// ReassignAndDeleteCategory moves every asset out of category from, into
// category to or uncategorized when to is nil, then deletes from. Both
// steps share one transaction. Schedules are not regenerated.
func (r *Registry) ReassignAndDeleteCategory(ctx context.Context, from int64, to *int64) (int, error) {
	if to != nil && *to == from {
		return 0, newValidationError([]string{"Target category must differ from the category being deleted"})
	}

	var moved int
	err := r.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetCategory(ctx, from)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if existing == nil {
			return &NotFoundError{Kind: "category", ID: from}
		}
		if to != nil {
			target, err := tx.GetCategory(ctx, *to)
			if err != nil {
				return fmt.Errorf("load category: %w", err)
			}
			if target == nil {
				return &NotFoundError{Kind: "category", ID: *to}
			}
		}

		moved, err = tx.ReassignCategory(ctx, from, to)
		if err != nil {
			return fmt.Errorf("reassign assets: %w", err)
		}
		return tx.DeleteCategory(ctx, from)
	})
	if err != nil {
		return 0, err
	}

	r.log.WithFields(logrus.Fields{"category_id": from, "moved": moved}).Info("category reassigned and deleted")
	return moved, nil
}

func (r *Registry) ListCategories(ctx context.Context) ([]Category, error) {
	withCounts, err := r.store.ListCategoriesWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories := make([]Category, len(withCounts))
	for i, c := range withCounts {
		categories[i] = c.Category
	}
	return categories, nil
}

func (r *Registry) ListCategoriesWithCounts(ctx context.Context) ([]CategoryWithCount, error) {
	categories, err := r.store.ListCategoriesWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// checkCategoryName rejects a name already used by another category.
func (r *Registry) checkCategoryName(ctx context.Context, tx Store, c Category) error {
	clash, err := tx.FindCategoryByName(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}
	if clash != nil && (c.ID == nil || *clash.ID != *c.ID) {
		return newValidationError([]string{fmt.Sprintf("A category named '%s' already exists", c.Name)})
	}
	return nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Import creates an asset for every acceptable row. It never fails as a
// whole; per-row problems are reported in ImportResult.Errors.
func (r *Registry) Import(ctx context.Context, rows []ImportRow) ImportResult {
	return r.ImportWithProgress(ctx, rows, nil)
}

// ImportWithProgress is Import with a callback after each row, receiving
// the row and its error (nil on success).
func (r *Registry) ImportWithProgress(ctx context.Context, rows []ImportRow, progress func(ImportRow, error)) ImportResult {
	result := ImportResult{BatchID: uuid.NewString(), Errors: []string{}}
	log := r.log.WithField("batch_id", result.BatchID)

	for _, row := range rows {
		err := r.importRow(ctx, row)
		if err != nil {
			result.Errors = append(result.Errors, rowMessages(row.Row, err)...)
			log.WithFields(logrus.Fields{"row": row.Row, "error": err}).Warn("import row rejected")
		} else {
			result.Imported++
		}
		if progress != nil {
			progress(row, err)
		}
	}

	log.WithFields(logrus.Fields{"imported": result.Imported, "rejected": len(rows) - result.Imported}).Info("import finished")
	return result
}

// importRow returns either a ValidationError whose messages already carry
// the row prefix, or any other error to be prefixed by the caller.
func (r *Registry) importRow(ctx context.Context, row ImportRow) error {
	if row.Err != nil {
		return row.Err
	}
	c := row.Candidate
	if err := ValidateImportRow(c, row.Row, r.now()); err != nil {
		return err
	}

	a := Asset{
		Name:                c.Name,
		Description:         c.Description,
		DatePlacedInService: c.DatePlacedInService,
		Cost:                c.Cost,
		SalvageValue:        decimal.Zero,
		UsefulLifeYears:     c.UsefulLifeYears,
		PropertyClass:       c.PropertyClass,
		Notes:               c.Notes,
	}
	if c.SalvageValue != nil {
		a.SalvageValue = *c.SalvageValue
	}
	a = a.Normalized()

	err := r.store.WithTx(ctx, func(tx Store) error {
		if c.Category != nil && trim(*c.Category) != "" {
			id, err := findOrCreateCategory(ctx, tx, trim(*c.Category))
			if err != nil {
				return err
			}
			a.CategoryID = &id
		}
		_, err := r.createAsset(ctx, tx, a)
		return err
	})
	if msgs := ValidationMessages(err); msgs != nil {
		prefixed := make([]string, len(msgs))
		for i, m := range msgs {
			prefixed[i] = fmt.Sprintf("Row %d: %s", row.Row, m)
		}
		return newValidationError(prefixed)
	}
	return err
}

func rowMessages(row int, err error) []string {
	if msgs := ValidationMessages(err); msgs != nil {
		return msgs
	}
	return []string{fmt.Sprintf("Row %d: %v", row, err)}
}

func findOrCreateCategory(ctx context.Context, tx Store, name string) (int64, error) {
	existing, err := tx.FindCategoryByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("find category: %w", err)
	}
	if existing != nil {
		return *existing.ID, nil
	}
	c := Category{Name: name}
	if err := ValidateCategory(c); err != nil {
		return 0, err
	}
	id, err := tx.CreateCategory(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

// Dashboard totals the non-disposed portfolio for year.
func (r *Registry) Dashboard(ctx context.Context, year int) (DashboardStats, error) {
	assets, err := r.store.ListAssets(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list assets: %w", err)
	}
	return Dashboard(assets, year), nil
}

// AnnualSummary totals persisted schedule expense per year.
func (r *Registry) AnnualSummary(ctx context.Context) ([]AnnualSummary, error) {
	assets, err := r.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	entries, err := r.store.ListScheduleEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return SummarizeByYear(assets, entries), nil
}

// Report gathers everything the export workbook needs, valued at year.
func (r *Registry) Report(ctx context.Context, year int) (*Report, error) {
	assets, err := r.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{Year: year, Assets: make([]ReportAsset, 0, len(assets))}
	plain := make([]Asset, 0, len(assets))
	var entries []Entry
	for _, a := range assets {
		rep.Assets = append(rep.Assets, ReportAsset{
			AssetWithSchedule: a,
			CurrentBookValue:  CurrentBookValue(a.Asset, year),
		})
		plain = append(plain, a.Asset)
		entries = append(entries, a.Schedule...)
	}
	rep.AnnualSummary = SummarizeByYear(plain, entries)
	return rep, nil
}

// =============================================================================
// CONSISTENCY
// =============================================================================

// Discrepancy lists what is wrong with one asset's persisted schedule.
type Discrepancy struct {
	AssetID   int64    `json:"asset_id"`
	AssetName string   `json:"asset_name"`
	Problems  []string `json:"problems"`
}

// Verify compares every persisted schedule with a freshly generated one and
// checks the schedule invariants. An empty result means all schedules agree.
func (r *Registry) Verify(ctx context.Context) ([]Discrepancy, error) {
	assets, err := r.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	entries, err := r.store.ListScheduleEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	schedules := groupByAsset(entries)

	var found []Discrepancy
	for _, a := range assets {
		persisted := schedules[*a.ID]
		problems := compareSchedules(GenerateSchedule(a), persisted)
		problems = append(problems, CheckSchedule(a, persisted)...)
		if len(problems) > 0 {
			found = append(found, Discrepancy{AssetID: *a.ID, AssetName: a.Name, Problems: dedupe(problems)})
		}
	}

	for assetID := range schedules {
		if !containsAsset(assets, assetID) {
			found = append(found, Discrepancy{AssetID: assetID, Problems: []string{"schedule rows without an asset"}})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].AssetID < found[j].AssetID })

	if len(found) > 0 {
		r.log.WithField("assets", len(found)).Warn("schedule discrepancies found")
	}
	return found, nil
}

// Resync regenerates every asset's schedule in a single transaction and
// returns how many assets were synced.
func (r *Registry) Resync(ctx context.Context) (int, error) {
	var synced int
	err := r.store.WithTx(ctx, func(tx Store) error {
		assets, err := tx.ListAssets(ctx)
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		for _, a := range assets {
			if _, err := SyncSchedule(ctx, tx, a); err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.WithField("assets", synced).Info("schedules resynced")
	return synced, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func applyCategoryDefaults(a Asset, c Category) Asset {
	if a.UsefulLifeYears == 0 && c.DefaultUsefulLife != nil {
		a.UsefulLifeYears = *c.DefaultUsefulLife
	}
	if a.PropertyClass == nil && c.DefaultPropertyClass != nil {
		pc := *c.DefaultPropertyClass
		a.PropertyClass = &pc
	}
	return a
}

func normalizeCategory(c Category) Category {
	c.Name = trim(c.Name)
	if c.DefaultPropertyClass != nil {
		pc := trim(*c.DefaultPropertyClass)
		if pc == "" {
			c.DefaultPropertyClass = nil
		} else {
			c.DefaultPropertyClass = &pc
		}
	}
	return c
}

func groupByAsset(entries []Entry) map[int64][]Entry {
	grouped := make(map[int64][]Entry)
	for _, e := range entries {
		grouped[e.AssetID] = append(grouped[e.AssetID], e)
	}
	return grouped
}

func compareSchedules(expected, persisted []Entry) []string {
	var problems []string
	if len(expected) != len(persisted) {
		problems = append(problems, fmt.Sprintf("expected %d entries, found %d", len(expected), len(persisted)))
	}
	for i := 0; i < min(len(expected), len(persisted)); i++ {
		if !expected[i].SameValues(persisted[i]) {
			problems = append(problems, fmt.Sprintf("year %d differs from generated schedule", expected[i].Year))
		}
	}
	return problems
}

func containsAsset(assets []Asset, id int64) bool {
	for _, a := range assets {
		if *a.ID == id {
			return true
		}
	}
	return false
}

func dedupe(msgs []string) []string {
	seen := make(map[string]bool, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
