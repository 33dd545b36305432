package depreciation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abacus/asset-engine/depreciation"
	"github.com/abacus/asset-engine/depreciation/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRegistry(t *testing.T) (*depreciation.Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := depreciation.NewRegistry(mem, depreciation.WithClock(func() time.Time { return today }))
	return reg, mem
}

func laptop() depreciation.Asset {
	return depreciation.Asset{
		Name:                "Laptop",
		DatePlacedInService: "2024-01-15",
		Cost:                depreciation.Cents(2000),
		SalvageValue:        depreciation.Cents(200),
		UsefulLifeYears:     5,
	}
}

func mustCategory(t *testing.T, reg *depreciation.Registry, name string, life int, class string) int64 {
	t.Helper()
	id, err := reg.CreateCategory(context.Background(), depreciation.Category{
		Name:                 name,
		DefaultUsefulLife:    &life,
		DefaultPropertyClass: &class,
	})
	require.NoError(t, err)
	return id
}

// =============================================================================
// ASSET LIFECYCLE
// =============================================================================

func TestRegistry_CreateAsset_SyncsSchedule(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	entries, err := mem.Schedule(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, id, entries[0].AssetID)
	assert.Equal(t, "1640.00", entries[0].EndingBookValue.StringFixed(2))
}

func TestRegistry_CreateAsset_NormalizesInput(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	a := laptop()
	a.Name = "  Laptop  "
	a.Cost = decimal.RequireFromString("2000.004")
	a.PropertyClass = strPtr("")

	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	got, err := reg.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", got.Asset.Name)
	assert.Equal(t, "2000.00", got.Asset.Cost.StringFixed(2))
	assert.Nil(t, got.Asset.PropertyClass)
}

func TestRegistry_CreateAsset_ValidationWritesNothing(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()

	a := laptop()
	a.Cost = decimal.Zero

	_, err := reg.CreateAsset(ctx, a)
	require.Error(t, err)
	assert.True(t, depreciation.IsClientError(err))

	assets, _ := mem.ListAssets(ctx)
	entries, _ := mem.ListScheduleEntries(ctx)
	assert.Empty(t, assets)
	assert.Empty(t, entries)
}

func TestRegistry_CreateAsset_TakesCategoryDefaults(t *testing.T) {
	// GIVEN: A category with a 7-year default life and class "7"
	// WHEN: Creating an asset with no life or class in that category
	// THEN: The asset takes both defaults and gets a 7-row schedule

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Furniture", 7, "7")

	a := laptop()
	a.UsefulLifeYears = 0
	a.CategoryID = &catID

	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	got, err := reg.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Asset.UsefulLifeYears)
	require.NotNil(t, got.Asset.PropertyClass)
	assert.Equal(t, "7", *got.Asset.PropertyClass)
	assert.Len(t, got.Schedule, 7)
	require.NotNil(t, got.CategoryName)
	assert.Equal(t, "Furniture", *got.CategoryName)
}

func TestRegistry_CreateAsset_ExplicitValuesBeatDefaults(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Furniture", 7, "7")

	a := laptop()
	a.CategoryID = &catID
	a.PropertyClass = strPtr("5")

	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	got, _ := reg.GetAsset(ctx, id)
	assert.Equal(t, 5, got.Asset.UsefulLifeYears)
	assert.Equal(t, "5", *got.Asset.PropertyClass)
}

func TestRegistry_UpdateAsset(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	a := laptop()
	a.ID = &id
	a.UsefulLifeYears = 3
	require.NoError(t, reg.UpdateAsset(ctx, a))

	got, _ := reg.GetAsset(ctx, id)
	require.Len(t, got.Schedule, 3)
	assert.Equal(t, "600.00", got.Schedule[0].DepreciationExpense.StringFixed(2))
}

func TestRegistry_UpdateAsset_Errors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	err := reg.UpdateAsset(ctx, laptop())
	assert.ErrorIs(t, err, depreciation.ErrMissingID)

	missing := int64(404)
	a := laptop()
	a.ID = &missing
	err = reg.UpdateAsset(ctx, a)
	assert.True(t, depreciation.IsNotFound(err))
}

func TestRegistry_DeleteAsset_RemovesSchedule(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)
	require.NoError(t, reg.DeleteAsset(ctx, id))

	entries, _ := mem.ListScheduleEntries(ctx)
	assert.Empty(t, entries)
	_, err = reg.GetAsset(ctx, id)
	assert.True(t, depreciation.IsNotFound(err))

	assert.True(t, depreciation.IsNotFound(reg.DeleteAsset(ctx, id)))
}

func TestRegistry_DisposeAsset(t *testing.T) {
	// GIVEN: An active asset
	// WHEN: Disposing it in 2025 for 900
	// THEN: Disposal fields are stored and the full schedule is kept

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	value := depreciation.Cents(900)
	require.NoError(t, reg.DisposeAsset(ctx, id, " 2025-03-01 ", &value))

	got, _ := reg.GetAsset(ctx, id)
	require.NotNil(t, got.Asset.DisposedDate)
	assert.Equal(t, "2025-03-01", *got.Asset.DisposedDate)
	assert.Equal(t, "900.00", got.Asset.DisposedValue.StringFixed(2))
	assert.Len(t, got.Schedule, 5)

	v, err := reg.Valuate(ctx, id, 2026)
	require.NoError(t, err)
	assert.True(t, v.Depreciation.IsZero())
}

func TestRegistry_DisposeAsset_Rejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	err = reg.DisposeAsset(ctx, id, "2023-01-01", nil)
	assert.Equal(t, []string{"Disposal date must be on or after the date placed in service"},
		depreciation.ValidationMessages(err))

	got, _ := reg.GetAsset(ctx, id)
	assert.Nil(t, got.Asset.DisposedDate)

	assert.True(t, depreciation.IsNotFound(reg.DisposeAsset(ctx, 999, "2025-01-01", nil)))
}

func TestRegistry_ListAssets_OrderedWithCategoryNames(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Computers", 5, "5")

	b := laptop()
	b.Name = "Zebra Printer"
	_, err := reg.CreateAsset(ctx, b)
	require.NoError(t, err)

	a := laptop()
	a.Name = "Apple Laptop"
	a.CategoryID = &catID
	_, err = reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	list, err := reg.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Apple Laptop", list[0].Asset.Name)
	assert.Equal(t, "Computers", *list[0].CategoryName)
	assert.Nil(t, list[1].CategoryName)
	assert.Len(t, list[1].Schedule, 5)
}

// =============================================================================
// CONSISTENCY ON FAILURE
// =============================================================================

func TestRegistry_ShortScheduleWriteRollsBackCreate(t *testing.T) {
	// GIVEN: A store that silently drops schedule rows after the second
	// WHEN: Creating an asset
	// THEN: The create fails as inconsistent and nothing is left behind

	reg, mem := newTestRegistry(t)
	ctx := context.Background()
	mem.FailScheduleWrites = 2

	_, err := reg.CreateAsset(ctx, laptop())

	require.Error(t, err)
	assert.True(t, errors.Is(err, depreciation.ErrScheduleInconsistent))
	assets, _ := mem.ListAssets(ctx)
	entries, _ := mem.ListScheduleEntries(ctx)
	assert.Empty(t, assets)
	assert.Empty(t, entries)
}

func TestRegistry_ShortScheduleWriteRollsBackUpdate(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()
	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	mem.FailScheduleWrites = 1
	a := laptop()
	a.ID = &id
	a.Cost = depreciation.Cents(5000)
	err = reg.UpdateAsset(ctx, a)
	require.True(t, errors.Is(err, depreciation.ErrScheduleInconsistent))

	got, _ := reg.GetAsset(ctx, id)
	assert.Equal(t, "2000.00", got.Asset.Cost.StringFixed(2))
	assert.Len(t, got.Schedule, 5)
}

func TestRegistry_VerifyAndResync(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()
	id, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)
	_, err = reg.CreateAsset(ctx, depreciation.Asset{
		Name: "Desk", DatePlacedInService: "2023-02-01",
		Cost: depreciation.Cents(1000), UsefulLifeYears: 3,
	})
	require.NoError(t, err)

	found, err := reg.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)

	// Tamper with one year behind the registry's back.
	entries, _ := mem.Schedule(ctx, id)
	entries[1].DepreciationExpense = depreciation.Cents(1)
	_, err = mem.ReplaceSchedule(ctx, id, entries)
	require.NoError(t, err)

	found, err = reg.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].AssetID)
	assert.Equal(t, "Laptop", found[0].AssetName)
	assert.Contains(t, found[0].Problems, "year 2025 differs from generated schedule")

	n, err := reg.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err = reg.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func TestRegistry_DeleteCategory_BlockedWhileInUse(t *testing.T) {
	// GIVEN: A category referenced by three assets
	// WHEN: Deleting it
	// THEN: A ReferentialError carries the count and the category survives

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Computers", 5, "5")

	for i := 0; i < 3; i++ {
		a := laptop()
		a.CategoryID = &catID
		_, err := reg.CreateAsset(ctx, a)
		require.NoError(t, err)
	}

	err := reg.DeleteCategory(ctx, catID)

	var ref *depreciation.ReferentialError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, 3, ref.Count)
	assert.Equal(t, "Cannot delete category: 3 asset(s) are using this category. Please reassign them first.", err.Error())
	assert.True(t, depreciation.IsConflict(err))

	cats, _ := reg.ListCategoriesWithCounts(ctx)
	require.Len(t, cats, 1)
	assert.Equal(t, 3, cats[0].AssetCount)
}

func TestRegistry_DeleteCategory_Unused(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Spare", 3, "3")

	require.NoError(t, reg.DeleteCategory(ctx, catID))
	assert.True(t, depreciation.IsNotFound(reg.DeleteCategory(ctx, catID)))
}

func TestRegistry_ReassignAndDeleteCategory(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	from := mustCategory(t, reg, "Old", 5, "5")
	to := mustCategory(t, reg, "New", 7, "7")

	a := laptop()
	a.CategoryID = &from
	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	moved, err := reg.ReassignAndDeleteCategory(ctx, from, &to)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, _ := reg.GetAsset(ctx, id)
	assert.Equal(t, to, *got.Asset.CategoryID)
	assert.Equal(t, 5, got.Asset.UsefulLifeYears, "reassignment never applies the new category's defaults")

	cats, _ := reg.ListCategories(ctx)
	require.Len(t, cats, 1)
	assert.Equal(t, "New", cats[0].Name)
}

func TestRegistry_ReassignAndDeleteCategory_Uncategorize(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	from := mustCategory(t, reg, "Old", 5, "5")

	a := laptop()
	a.CategoryID = &from
	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	moved, err := reg.ReassignAndDeleteCategory(ctx, from, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, _ := reg.GetAsset(ctx, id)
	assert.Nil(t, got.Asset.CategoryID)
}

func TestRegistry_ReassignAndDeleteCategory_Errors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	from := mustCategory(t, reg, "Old", 5, "5")
	missing := int64(77)

	_, err := reg.ReassignAndDeleteCategory(ctx, from, &from)
	assert.True(t, depreciation.IsClientError(err))

	_, err = reg.ReassignAndDeleteCategory(ctx, from, &missing)
	assert.True(t, depreciation.IsNotFound(err))

	cats, _ := reg.ListCategories(ctx)
	assert.Len(t, cats, 1, "failed reassignment leaves the category in place")
}

func TestRegistry_UpdateCategory_LeavesAssetsAlone(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	catID := mustCategory(t, reg, "Computers", 5, "5")

	a := laptop()
	a.UsefulLifeYears = 0
	a.CategoryID = &catID
	id, err := reg.CreateAsset(ctx, a)
	require.NoError(t, err)

	life, class := 3, "3"
	require.NoError(t, reg.UpdateCategory(ctx, depreciation.Category{
		ID: &catID, Name: "Computers", DefaultUsefulLife: &life, DefaultPropertyClass: &class,
	}))

	got, _ := reg.GetAsset(ctx, id)
	assert.Equal(t, 5, got.Asset.UsefulLifeYears)
	assert.Len(t, got.Schedule, 5)
}

func TestRegistry_CategoryNamesUnique(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	mustCategory(t, reg, "Vehicles", 5, "5")
	other := mustCategory(t, reg, "Trucks", 5, "5")

	_, err := reg.CreateCategory(ctx, depreciation.Category{Name: " VEHICLES "})
	assert.Equal(t, []string{"A category named 'VEHICLES' already exists"}, depreciation.ValidationMessages(err))

	err = reg.UpdateCategory(ctx, depreciation.Category{ID: &other, Name: "vehicles"})
	assert.True(t, depreciation.IsClientError(err))

	assert.NoError(t, reg.UpdateCategory(ctx, depreciation.Category{ID: &other, Name: "trucks"}), "renaming to own name is allowed")
}

// =============================================================================
// IMPORT
// =============================================================================

func TestRegistry_Import_ContinuesPastBadRows(t *testing.T) {
	// GIVEN: Three rows, the second (row 7) with zero cost and the third unparseable
	// WHEN: Importing
	// THEN: One asset is imported and each bad row is reported by number

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	equipment := "equipment"

	rows := []depreciation.ImportRow{
		{Row: 2, Candidate: depreciation.ImportCandidate{
			Name: "Drill Press", Category: &equipment, DatePlacedInService: "2022-04-04",
			Cost: depreciation.Cents(1500), UsefulLifeYears: 7,
		}},
		{Row: 7, Candidate: depreciation.ImportCandidate{
			Name: "Broken", DatePlacedInService: "2022-04-04", Cost: decimal.Zero, UsefulLifeYears: 7,
		}},
		{Row: 9, Err: errors.New("Useful Life is required")},
	}

	var seen []int
	result := reg.ImportWithProgress(ctx, rows, func(r depreciation.ImportRow, _ error) {
		seen = append(seen, r.Row)
	})

	assert.Equal(t, 1, result.Imported)
	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, []int{2, 7, 9}, seen)
	require.Len(t, result.Errors, 2)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 7"))
	assert.Contains(t, result.Errors[0], "Cost must be greater than")
	assert.Equal(t, "Row 9: Useful Life is required", result.Errors[1])

	list, _ := reg.ListAssets(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "equipment", *list[0].CategoryName)
	assert.Equal(t, "0.00", list[0].Asset.SalvageValue.StringFixed(2), "missing salvage defaults to zero")
	assert.Len(t, list[0].Schedule, 7)
}

func TestRegistry_Import_ReusesCategoryCaseInsensitively(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	mustCategory(t, reg, "Equipment", 5, "5")
	lower, upper := "equipment", "EQUIPMENT "

	rows := []depreciation.ImportRow{
		{Row: 2, Candidate: depreciation.ImportCandidate{Name: "A", Category: &lower, DatePlacedInService: "2023-01-01", Cost: depreciation.Cents(100), UsefulLifeYears: 2}},
		{Row: 3, Candidate: depreciation.ImportCandidate{Name: "B", Category: &upper, DatePlacedInService: "2023-01-01", Cost: depreciation.Cents(100), UsefulLifeYears: 2}},
	}

	result := reg.Import(ctx, rows)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Errors)

	cats, _ := reg.ListCategoriesWithCounts(ctx)
	require.Len(t, cats, 1)
	assert.Equal(t, 2, cats[0].AssetCount)
}

func TestRegistry_Import_FailedRowLeavesNoCategory(t *testing.T) {
	reg, mem := newTestRegistry(t)
	ctx := context.Background()
	mem.FailScheduleWrites = 0
	fresh := "Fresh"

	result := reg.Import(ctx, []depreciation.ImportRow{
		{Row: 4, Candidate: depreciation.ImportCandidate{Name: "A", Category: &fresh, DatePlacedInService: "2023-01-01", Cost: depreciation.Cents(100), UsefulLifeYears: 2}},
	})

	assert.Zero(t, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 4: "))
	cats, _ := reg.ListCategories(ctx)
	assert.Empty(t, cats)
}

func TestRegistry_Import_RejectsInvalidCategoryName(t *testing.T) {
	// GIVEN: A row whose Category cell is longer than a category name may be
	// WHEN: Importing
	// THEN: The row fails with the category rule and nothing is written

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	long := strings.Repeat("c", 150)

	result := reg.Import(ctx, []depreciation.ImportRow{
		{Row: 5, Candidate: depreciation.ImportCandidate{Name: "A", Category: &long, DatePlacedInService: "2023-01-01", Cost: depreciation.Cents(100), UsefulLifeYears: 2}},
	})

	assert.Zero(t, result.Imported)
	assert.Equal(t, []string{"Row 5: Category name must be 100 characters or less"}, result.Errors)

	cats, err := reg.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
	assets, err := reg.ListAssets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestRegistry_DashboardAndSummary(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.CreateAsset(ctx, laptop())
	require.NoError(t, err)

	stats, err := reg.Dashboard(ctx, reg.CurrentYear())
	require.NoError(t, err)
	assert.Equal(t, 2025, stats.Year)
	assert.Equal(t, "1280.00", stats.TotalBookValue.StringFixed(2))

	summary, err := reg.AnnualSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 5)
	assert.Equal(t, "360.00", summary[4].TotalDepreciation.StringFixed(2))

	rep, err := reg.Report(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, rep.Assets, 1)
	assert.Equal(t, "1280.00", rep.Assets[0].CurrentBookValue.StringFixed(2))
	require.Len(t, rep.AnnualSummary, len(summary))
	for i := range summary {
		assert.Equal(t, summary[i].Year, rep.AnnualSummary[i].Year)
		assert.True(t, summary[i].TotalDepreciation.Equal(rep.AnnualSummary[i].TotalDepreciation))
	}
}

func TestRegistry_Valuate_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Valuate(context.Background(), 1, 2025)
	assert.True(t, depreciation.IsNotFound(err))
}
