/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Asset create/get with synced schedule
- Error mapping (400 with details, 404, 409)
- Spreadsheet import/export round trip
- Consistency endpoints, audit and scenarios
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abacus/asset-engine/depreciation"
	"github.com/abacus/asset-engine/depreciation/store"
	"github.com/abacus/asset-engine/spreadsheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testToday = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := store.NewMemory()
	reg := depreciation.NewRegistry(mem,
		depreciation.WithClock(func() time.Time { return testToday }),
		depreciation.WithLogger(log),
	)
	h := NewHandler(reg, log)
	return &testServer{handler: h, router: NewRouter(h, []string{"http://localhost:5173"}), store: mem}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func laptopRequest() map[string]any {
	return map[string]any{
		"name":                   "Laptop",
		"date_placed_in_service": "2024-01-15",
		"cost":                   2000,
		"salvage_value":          200,
		"useful_life_years":      5,
	}
}

// =============================================================================
// ASSET TESTS
// =============================================================================

func TestCreateAsset_ReturnsIDAndPersistsSchedule(t *testing.T) {
	// GIVEN: An empty register
	// WHEN: Creating a 2000/200/5 asset and fetching it back
	// THEN: The asset carries a five-year schedule ending at salvage

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/assets", laptopRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[CreatedResponse](t, rec)
	require.NotZero(t, created.ID)

	rec = s.do(t, http.MethodGet, "/api/assets/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[depreciation.AssetWithSchedule](t, rec)
	assert.Equal(t, "Laptop", got.Asset.Name)
	require.Len(t, got.Schedule, 5)
	assert.Equal(t, 2024, got.Schedule[0].Year)
	assert.Equal(t, "360.00", got.Schedule[0].DepreciationExpense.StringFixed(2))
	assert.Equal(t, "200.00", got.Schedule[4].EndingBookValue.StringFixed(2))
}

func TestCreateAsset_ValidationErrorListsEveryMessage(t *testing.T) {
	// GIVEN: An asset with no name, zero cost and salvage above cost
	// WHEN: Posting it
	// THEN: 400 with all violations in details, nothing persisted

	s := newTestServer(t)
	body := laptopRequest()
	body["name"] = "  "
	body["cost"] = 0

	rec := s.do(t, http.MethodPost, "/api/assets", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}](t, rec)
	assert.True(t, strings.HasPrefix(resp.Error, "Validation failed: "))
	assert.Contains(t, resp.Details, "Asset name is required")
	assert.Contains(t, resp.Details, "Cost must be greater than $0")
	assert.Contains(t, resp.Details, "Salvage value cannot exceed cost")

	assets, err := s.store.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestCreateAsset_UnknownCategoryIsNotFound(t *testing.T) {
	s := newTestServer(t)
	body := laptopRequest()
	body["category_id"] = 42

	rec := s.do(t, http.MethodPost, "/api/assets", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "category 42 not found")
}

func TestCreateAsset_NegativeCategoryIDRejectedByShapeCheck(t *testing.T) {
	s := newTestServer(t)
	body := laptopRequest()
	body["category_id"] = -3

	rec := s.do(t, http.MethodPost, "/api/assets", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
}

func TestGetAsset_Errors(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/assets/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/assets/abc", nil).Code)
}

func TestUpdateAsset_RegeneratesSchedule(t *testing.T) {
	// GIVEN: A 5-year asset
	// WHEN: Its useful life is changed to 3 years
	// THEN: The stored schedule has 3 rows

	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	body := laptopRequest()
	body["useful_life_years"] = 3
	rec := s.do(t, http.MethodPut, "/api/assets/1", body)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	got := decodeBody[depreciation.AssetWithSchedule](t, s.do(t, http.MethodGet, "/api/assets/1", nil))
	assert.Len(t, got.Schedule, 3)
}

func TestDisposeAsset_ThenValuation(t *testing.T) {
	// GIVEN: A 2000/200/5 asset placed in service in 2024
	// WHEN: It is disposed in 2025 and valued for 2026
	// THEN: Book value is still straight-line but no expense after disposal

	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	rec := s.do(t, http.MethodPost, "/api/assets/1/dispose", map[string]any{
		"disposed_date":  "2025-03-01",
		"disposed_value": 900,
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/assets/1/valuation?year=2026", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[depreciation.Valuation](t, rec)
	assert.Equal(t, "920.00", v.BookValue.StringFixed(2))
	assert.True(t, v.Depreciation.IsZero())
}

func TestDisposeAsset_FutureDateRejected(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	rec := s.do(t, http.MethodPost, "/api/assets/1/dispose", map[string]any{"disposed_date": "2030-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Disposal date cannot be in the future")
}

func TestDeleteAsset(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/assets/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/assets/1", nil).Code)

	entries, err := s.store.ListScheduleEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// CATEGORY TESTS
// =============================================================================

func TestDeleteCategory_InUseIsConflict(t *testing.T) {
	// GIVEN: A category used by two assets
	// WHEN: Deleting it
	// THEN: 409 with the asset count, category still present

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Computers"})
	require.Equal(t, http.StatusCreated, rec.Code)
	catID := decodeBody[CreatedResponse](t, rec).ID

	for i := 0; i < 2; i++ {
		body := laptopRequest()
		body["category_id"] = catID
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", body).Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/categories/1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 asset(s) are using this category")
	assert.Contains(t, rec.Body.String(), `"asset_count":2`)

	counts := decodeBody[[]depreciation.CategoryWithCount](t, s.do(t, http.MethodGet, "/api/categories/counts", nil))
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].AssetCount)
}

func TestReassignCategory_MovesAssetsAndDeletes(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Old"}).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "New"}).Code)

	body := laptopRequest()
	body["category_id"] = 1
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", body).Code)

	rec := s.do(t, http.MethodPost, "/api/categories/1/reassign", map[string]any{"target_id": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[ReassignResponse](t, rec).Moved)

	got := decodeBody[depreciation.AssetWithSchedule](t, s.do(t, http.MethodGet, "/api/assets/1", nil))
	require.NotNil(t, got.CategoryName)
	assert.Equal(t, "New", *got.CategoryName)
}

func TestCreateCategory_DuplicateNameRejected(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Vehicles"}).Code)

	rec := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "vehicles"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

// =============================================================================
// DASHBOARD TESTS
// =============================================================================

func TestDashboard_DefaultsToCurrentYear(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	rec := s.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(2025), stats["year"])
	assert.Equal(t, float64(1), stats["total_assets"])
	assert.Equal(t, float64(2000), stats["total_cost"])
	assert.Equal(t, float64(1280), stats["total_book_value"])
	assert.Equal(t, float64(360), stats["current_year_depreciation"])
}

func TestDashboard_InvalidYear(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/dashboard?year=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/dashboard?year=1200", nil).Code)
}

// =============================================================================
// SPREADSHEET TESTS
// =============================================================================

func TestImport_TemplateRoundTrip(t *testing.T) {
	// GIVEN: The downloadable template
	// WHEN: Uploading it unchanged as a raw body
	// THEN: The example row becomes one asset in a new category

	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/export/template", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(rec.Body.Bytes()))
	req.Header.Set("Content-Type", xlsxContentType)
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())

	result := decodeBody[depreciation.ImportResult](t, out)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.BatchID)

	cats := decodeBody[[]depreciation.Category](t, s.do(t, http.MethodGet, "/api/categories", nil))
	require.Len(t, cats, 1)
	assert.Equal(t, "Equipment", cats[0].Name)
}

func TestImport_MultipartUpload(t *testing.T) {
	s := newTestServer(t)

	var workbook bytes.Buffer
	require.NoError(t, spreadsheet.WriteTemplate(&workbook))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "assets.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[depreciation.ImportResult](t, rec).Imported)
}

func TestImport_GarbageBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("not a workbook"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportReport_HasThreeSheets(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	rec := s.do(t, http.MethodGet, "/api/export/report?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "depreciation_report_2025.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{spreadsheet.SheetAssets, spreadsheet.SheetSchedule, spreadsheet.SheetSummary}, f.GetSheetList())
}

// =============================================================================
// CONSISTENCY TESTS
// =============================================================================

func TestVerify_ReportsDriftAndResyncRepairs(t *testing.T) {
	// GIVEN: An asset whose stored schedule was truncated behind the registry's back
	// WHEN: Verifying, resyncing, then verifying again
	// THEN: The first check reports the asset, the second is clean

	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)

	ctx := context.Background()
	entries, err := s.store.Schedule(ctx, 1)
	require.NoError(t, err)
	_, err = s.store.ReplaceSchedule(ctx, 1, entries[:2])
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/schedules/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := decodeBody[VerifyResponse](t, rec)
	assert.False(t, before.Consistent)
	require.Len(t, before.Discrepancies, 1)
	assert.Equal(t, int64(1), before.Discrepancies[0].AssetID)

	rec = s.do(t, http.MethodPost, "/api/schedules/resync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ResyncResponse](t, rec).Synced)

	after := decodeBody[VerifyResponse](t, s.do(t, http.MethodGet, "/api/schedules/verify", nil))
	assert.True(t, after.Consistent)
	assert.Empty(t, after.Discrepancies)
}

func TestCreateAsset_ShortScheduleWriteIs500(t *testing.T) {
	s := newTestServer(t)
	s.store.FailScheduleWrites = 2

	rec := s.do(t, http.MethodPost, "/api/assets", laptopRequest())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assets, err := s.store.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets, "asset write must roll back with the schedule")
}

func TestAudit_DisabledWithoutAuditor(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/schedules/audit", nil).Code)
}

func TestAudit_RunNowWithRepair(t *testing.T) {
	s := newTestServer(t)
	auditor := NewScheduleAuditor(s.handler.Registry, time.Hour, s.handler.log)
	auditor.Repair = true
	s.handler.Auditor = auditor

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/assets", laptopRequest()).Code)
	_, err := s.store.ReplaceSchedule(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/schedules/audit", nil).Code)

	rec := s.do(t, http.MethodPost, "/api/schedules/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decodeBody[AuditRun](t, rec)
	assert.Len(t, run.Discrepancies, 1)
	assert.Equal(t, 1, run.Repaired)

	last, ok := auditor.LastRun()
	require.True(t, ok)
	assert.Equal(t, 1, last.Repaired)

	found, err := s.handler.Registry.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestLoadScenario_AllScenariosLoadCleanly(t *testing.T) {
	for _, sc := range Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			found, err := s.handler.Registry.Verify(context.Background())
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}
}

func TestLoadScenario_ReusesCategories(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, LoadScenario(ctx, s.handler.Registry, "small-office"))
	require.NoError(t, LoadScenario(ctx, s.handler.Registry, "small-office"))

	cats, err := s.handler.Registry.ListCategoriesWithCounts(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)
	for _, c := range cats {
		if c.Name == "Computers" {
			assert.Equal(t, 4, c.AssetCount)
		}
	}
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{}).Code)
}
