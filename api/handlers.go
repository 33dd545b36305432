/*
handlers.go - HTTP API handlers for the asset register

PURPOSE:
  Exposes depreciation.Registry over JSON. Handlers parse the request,
  delegate to the registry, and map errors to HTTP statuses. No business
  rule lives here.

ENDPOINTS:
  Dashboard:
    GET    /api/dashboard?year=              Portfolio totals
    GET    /api/reports/annual-summary       Depreciation per year

  Categories:
    GET    /api/categories                   List
    POST   /api/categories                   Create
    GET    /api/categories/counts            List with asset counts
    PUT    /api/categories/{id}              Update
    DELETE /api/categories/{id}              Delete (409 while in use)
    POST   /api/categories/{id}/reassign     Move assets, then delete

  Assets:
    GET    /api/assets                       List with schedules
    POST   /api/assets                       Create
    GET    /api/assets/{id}                  Get with schedule
    PUT    /api/assets/{id}                  Update
    DELETE /api/assets/{id}                  Delete
    POST   /api/assets/{id}/dispose          Record disposal
    GET    /api/assets/{id}/valuation?year=  Book value and expense

  Spreadsheets:
    POST   /api/import                       XLSX body or multipart "file"
    GET    /api/export/template              Import template
    GET    /api/export/report?year=          Depreciation report

  Consistency:
    GET    /api/schedules/verify             Compare persisted vs generated
    POST   /api/schedules/resync             Regenerate all schedules
    GET    /api/schedules/audit              Last background audit
    POST   /api/schedules/audit              Run an audit now

  Demo:
    GET    /api/scenarios                    List demo portfolios
    POST   /api/scenarios/load               Load one (scenarios.go)

ERROR HANDLING:
  - 400: Validation errors, invalid input (details lists every message)
  - 404: Asset or category not found
  - 409: Category still referenced
  - 500: Schedule inconsistency, internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/abacus/asset-engine/depreciation"
	"github.com/abacus/asset-engine/spreadsheet"
)

// maxUploadBytes bounds an imported workbook.
const maxUploadBytes = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry *depreciation.Registry
	Auditor  *ScheduleAuditor

	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewHandler creates a new handler around the registry.
func NewHandler(registry *depreciation.Registry, log logrus.FieldLogger) *Handler {
	return &Handler{
		Registry: registry,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// DASHBOARD & REPORTS
// =============================================================================

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}
	stats, err := h.Registry.Dashboard(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetAnnualSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Registry.AnnualSummary(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load annual summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Registry.ListCategories(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) ListCategoriesWithCounts(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Registry.ListCategoriesWithCounts(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.Registry.CreateCategory(r.Context(), req.toCategory(nil))
	if err != nil {
		h.writeDomainError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Registry.UpdateCategory(r.Context(), req.toCategory(&id)); err != nil {
		h.writeDomainError(w, "Failed to update category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Registry.DeleteCategory(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReassignCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ReassignRequest
	if !h.decode(w, r, &req) {
		return
	}
	moved, err := h.Registry.ReassignAndDeleteCategory(r.Context(), id, req.TargetID)
	if err != nil {
		h.writeDomainError(w, "Failed to reassign category", err)
		return
	}
	writeJSON(w, http.StatusOK, ReassignResponse{Moved: moved})
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Registry.ListAssets(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	asset, err := h.Registry.GetAsset(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to load asset", err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.Registry.CreateAsset(r.Context(), req.toAsset(nil))
	if err != nil {
		h.writeDomainError(w, "Failed to create asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req AssetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Registry.UpdateAsset(r.Context(), req.toAsset(&id)); err != nil {
		h.writeDomainError(w, "Failed to update asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Registry.DeleteAsset(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DisposeAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req DisposeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Registry.DisposeAsset(r.Context(), id, req.DisposedDate, req.DisposedValue); err != nil {
		h.writeDomainError(w, "Failed to dispose asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}
	v, err := h.Registry.Valuate(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, "Failed to value asset", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// =============================================================================
// SPREADSHEET HANDLERS
// =============================================================================

// ImportAssets accepts either a raw XLSX body or a multipart form whose
// "file" field holds the workbook.
func (h *Handler) ImportAssets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if r.ParseMultipartForm(maxUploadBytes) == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file field", err)
			return
		}
		defer file.Close()
		body = file
	}

	rows, err := spreadsheet.ReadAssets(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read workbook", err)
		return
	}

	result := h.Registry.Import(r.Context(), rows)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ExportTemplate(w http.ResponseWriter, r *http.Request) {
	setAttachment(w, "asset_import_template.xlsx")
	if err := spreadsheet.WriteTemplate(w); err != nil {
		h.log.WithError(err).Error("template export failed")
	}
}

func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}
	rep, err := h.Registry.Report(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	setAttachment(w, fmt.Sprintf("depreciation_report_%d.xlsx", year))
	if err := spreadsheet.WriteReport(w, rep); err != nil {
		h.log.WithError(err).Error("report export failed")
	}
}

// =============================================================================
// CONSISTENCY HANDLERS
// =============================================================================

func (h *Handler) VerifySchedules(w http.ResponseWriter, r *http.Request) {
	found, err := h.Registry.Verify(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to verify schedules", err)
		return
	}
	if found == nil {
		found = []depreciation.Discrepancy{}
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Consistent: len(found) == 0, Discrepancies: found})
}

func (h *Handler) ResyncSchedules(w http.ResponseWriter, r *http.Request) {
	n, err := h.Registry.Resync(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to resync schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, ResyncResponse{Synced: n})
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "Schedule audit is disabled", nil)
		return
	}
	run, ok := h.Auditor.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "No audit has run yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "Schedule audit is disabled", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Auditor.RunNow(r.Context()))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// yearParam reads ?year=, defaulting to the registry's current year.
func (h *Handler) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	q := yearQuery{Year: h.Registry.CurrentYear()}
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return 0, false
		}
		q.Year = y
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, false
	}
	return q.Year, true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// writeDomainError maps registry errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, fallback string, err error) {
	switch {
	case depreciation.IsClientError(err):
		resp := ErrorResponse{Error: err.Error()}
		if msgs := depreciation.ValidationMessages(err); msgs != nil {
			resp.Details = msgs
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case depreciation.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case depreciation.IsConflict(err):
		var ref *depreciation.ReferentialError
		resp := ErrorResponse{Error: err.Error()}
		if errors.As(err, &ref) {
			resp.Details = map[string]int{"asset_count": ref.Count}
		}
		writeJSON(w, http.StatusConflict, resp)
	default:
		h.log.WithError(err).Error(fallback)
		writeError(w, http.StatusInternalServerError, fallback, err)
	}
}

func setAttachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
