/*
scenarios.go - Demo portfolios for testing and demonstrations

PURPOSE:
  Provides pre-built portfolios that populate the register with realistic
  assets. Each scenario creates categories and assets through the Registry,
  so every asset gets a real, synced schedule.

AVAILABLE SCENARIOS:
  small-office:  Computers, furniture and a vehicle with category defaults
  disposals:     Assets retired part way through their life
  rounding:      Awkward amounts that exercise the final-year plug

HOW SCENARIOS WORK:
  1. Reuse or create each category by name
  2. Create assets (schedules are generated by the Registry)

  Scenarios add to whatever is already in the register. Loading one twice
  duplicates its assets but not its categories.

USAGE VIA API:
  GET  /api/scenarios
  POST /api/scenarios/load   {"scenario_id": "small-office"}

USAGE VIA CLI:
  abacus seed small-office

SEE ALSO:
  - depreciation/registry.go: CreateCategory, CreateAsset, DisposeAsset
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/abacus/asset-engine/depreciation"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{
		ID:          "small-office",
		Name:        "Small Office",
		Description: "Laptops, desks and a delivery van using category defaults",
	},
	{
		ID:          "disposals",
		Name:        "Disposals",
		Description: "Equipment sold or scrapped before the end of its life",
	},
	{
		ID:          "rounding",
		Name:        "Rounding",
		Description: "Amounts that do not divide evenly across the useful life",
	},
}

// Scenarios lists the demo portfolios.
func Scenarios() []Scenario {
	return scenarios
}

type demoCategory struct {
	name  string
	life  int
	class string
}

type demoAsset struct {
	name     string
	category string
	date     string
	cost     float64
	salvage  float64
	life     int // 0 takes the category default

	disposedDate  string
	disposedValue float64
}

var scenarioData = map[string]struct {
	categories []demoCategory
	assets     []demoAsset
}{
	"small-office": {
		categories: []demoCategory{
			{"Computers", 5, "5"},
			{"Furniture", 7, "7"},
			{"Vehicles", 5, "5"},
		},
		assets: []demoAsset{
			{name: "Design Laptop", category: "Computers", date: "2022-03-14", cost: 2400, salvage: 200},
			{name: "Accounting Laptop", category: "Computers", date: "2023-01-09", cost: 1850, salvage: 150},
			{name: "Standing Desks (6)", category: "Furniture", date: "2021-06-01", cost: 4200, salvage: 300},
			{name: "Conference Table", category: "Furniture", date: "2020-09-15", cost: 2750, salvage: 250},
			{name: "Delivery Van", category: "Vehicles", date: "2022-11-02", cost: 38500, salvage: 6000},
		},
	},
	"disposals": {
		categories: []demoCategory{
			{"Machinery", 10, "10"},
		},
		assets: []demoAsset{
			{name: "Packaging Line", category: "Machinery", date: "2018-04-01", cost: 52000, salvage: 4000,
				disposedDate: "2023-08-31", disposedValue: 21000},
			{name: "Forklift", category: "Machinery", date: "2019-02-11", cost: 27500, salvage: 2500, life: 7,
				disposedDate: "2024-01-20", disposedValue: 9000},
			{name: "Air Compressor", category: "Machinery", date: "2020-05-05", cost: 3900, salvage: 0},
		},
	},
	"rounding": {
		assets: []demoAsset{
			{name: "Server Rack", date: "2021-01-04", cost: 1000, salvage: 0, life: 3},
			{name: "Firewall Appliance", date: "2022-07-19", cost: 999.99, salvage: 0.01, life: 7},
			{name: "Signage", date: "2023-02-27", cost: 1234.56, salvage: 100, life: 9},
		},
	},
}

// LoadScenario creates the categories and assets of scenario id.
func LoadScenario(ctx context.Context, reg *depreciation.Registry, id string) error {
	data, ok := scenarioData[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	categoryIDs, err := ensureCategories(ctx, reg, data.categories)
	if err != nil {
		return err
	}

	for _, d := range data.assets {
		a := depreciation.Asset{
			Name:                d.name,
			DatePlacedInService: d.date,
			Cost:                depreciation.Cents(d.cost),
			SalvageValue:        depreciation.Cents(d.salvage),
			UsefulLifeYears:     d.life,
		}
		if d.category != "" {
			catID := categoryIDs[d.category]
			a.CategoryID = &catID
		}

		assetID, err := reg.CreateAsset(ctx, a)
		if err != nil {
			return fmt.Errorf("create %s: %w", d.name, err)
		}

		if d.disposedDate != "" {
			value := depreciation.Cents(d.disposedValue)
			if err := reg.DisposeAsset(ctx, assetID, d.disposedDate, &value); err != nil {
				return fmt.Errorf("dispose %s: %w", d.name, err)
			}
		}
	}
	return nil
}

func ensureCategories(ctx context.Context, reg *depreciation.Registry, wanted []demoCategory) (map[string]int64, error) {
	existing, err := reg.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(wanted))
	for _, w := range wanted {
		for _, c := range existing {
			if strings.EqualFold(c.Name, w.name) {
				ids[w.name] = *c.ID
			}
		}
		if _, ok := ids[w.name]; ok {
			continue
		}

		life, class := w.life, w.class
		id, err := reg.CreateCategory(ctx, depreciation.Category{
			Name:                 w.name,
			DefaultUsefulLife:    &life,
			DefaultPropertyClass: &class,
		})
		if err != nil {
			return nil, fmt.Errorf("create category %s: %w", w.name, err)
		}
		ids[w.name] = id
	}
	return ids, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// LoadScenario loads a predefined scenario into the register.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := scenarioData[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := LoadScenario(r.Context(), h.Registry, req.ScenarioID); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}
