// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abacus/asset-engine/depreciation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	memoryState

	// FailScheduleWrites makes ReplaceSchedule write only the first n entries
	// when set to n >= 0, to exercise consistency failures. Negative disables.
	FailScheduleWrites int
}

type memoryState struct {
	assets     map[int64]depreciation.Asset
	categories map[int64]depreciation.Category
	schedules  map[int64][]depreciation.Entry
	nextAsset  int64
	nextCat    int64
	nextEntry  int64
}

var _ depreciation.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		memoryState: memoryState{
			assets:     make(map[int64]depreciation.Asset),
			categories: make(map[int64]depreciation.Category),
			schedules:  make(map[int64][]depreciation.Entry),
		},
		FailScheduleWrites: -1,
	}
}

// -----------------------------------------------------------------------------
// Assets
// -----------------------------------------------------------------------------

func (m *Memory) CreateAsset(_ context.Context, a depreciation.Asset) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAsset(a), nil
}

func (m *Memory) UpdateAsset(_ context.Context, a depreciation.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAsset(a)
}

func (m *Memory) DeleteAsset(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteAsset(id)
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id int64) (*depreciation.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAsset(id), nil
}

func (m *Memory) ListAssets(_ context.Context) ([]depreciation.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAssets(), nil
}

// -----------------------------------------------------------------------------
// Schedules
// -----------------------------------------------------------------------------

func (m *Memory) ReplaceSchedule(_ context.Context, assetID int64, entries []depreciation.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceSchedule(assetID, entries, m.FailScheduleWrites)
}

func (m *Memory) Schedule(_ context.Context, assetID int64) ([]depreciation.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedule(assetID), nil
}

func (m *Memory) ListScheduleEntries(_ context.Context) ([]depreciation.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listScheduleEntries(), nil
}

// -----------------------------------------------------------------------------
// Categories
// -----------------------------------------------------------------------------

func (m *Memory) CreateCategory(_ context.Context, c depreciation.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCategory(c)
}

func (m *Memory) UpdateCategory(_ context.Context, c depreciation.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCategory(c)
}

func (m *Memory) DeleteCategory(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCategory(id)
}

func (m *Memory) GetCategory(_ context.Context, id int64) (*depreciation.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategory(id), nil
}

func (m *Memory) FindCategoryByName(_ context.Context, name string) (*depreciation.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findCategoryByName(name), nil
}

func (m *Memory) ListCategoriesWithCounts(_ context.Context) ([]depreciation.CategoryWithCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCategoriesWithCounts(), nil
}

func (m *Memory) CountAssetsInCategory(_ context.Context, categoryID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countAssetsInCategory(categoryID), nil
}

func (m *Memory) ReassignCategory(_ context.Context, from int64, to *int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reassignCategory(from, to), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so no reader observes a
// half-replaced schedule.
func (m *Memory) WithTx(ctx context.Context, fn func(depreciation.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.memoryState.clone()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.memoryState = snapshot
		return err
	}
	return nil
}

func (s *memoryState) clone() memoryState {
	c := *s
	c.assets = make(map[int64]depreciation.Asset, len(s.assets))
	for k, v := range s.assets {
		c.assets[k] = v
	}
	c.categories = make(map[int64]depreciation.Category, len(s.categories))
	for k, v := range s.categories {
		c.categories[k] = v
	}
	c.schedules = make(map[int64][]depreciation.Entry, len(s.schedules))
	for k, v := range s.schedules {
		c.schedules[k] = append([]depreciation.Entry(nil), v...)
	}
	return c
}

// txMemoryView operates on the parent's state without locking; the parent
// lock is already held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreateAsset(_ context.Context, a depreciation.Asset) (int64, error) {
	return tv.parent.createAsset(a), nil
}

func (tv *txMemoryView) UpdateAsset(_ context.Context, a depreciation.Asset) error {
	return tv.parent.updateAsset(a)
}

func (tv *txMemoryView) DeleteAsset(_ context.Context, id int64) error {
	tv.parent.deleteAsset(id)
	return nil
}

func (tv *txMemoryView) GetAsset(_ context.Context, id int64) (*depreciation.Asset, error) {
	return tv.parent.getAsset(id), nil
}

func (tv *txMemoryView) ListAssets(_ context.Context) ([]depreciation.Asset, error) {
	return tv.parent.listAssets(), nil
}

func (tv *txMemoryView) ReplaceSchedule(_ context.Context, assetID int64, entries []depreciation.Entry) (int, error) {
	return tv.parent.replaceSchedule(assetID, entries, tv.parent.FailScheduleWrites)
}

func (tv *txMemoryView) Schedule(_ context.Context, assetID int64) ([]depreciation.Entry, error) {
	return tv.parent.schedule(assetID), nil
}

func (tv *txMemoryView) ListScheduleEntries(_ context.Context) ([]depreciation.Entry, error) {
	return tv.parent.listScheduleEntries(), nil
}

func (tv *txMemoryView) CreateCategory(_ context.Context, c depreciation.Category) (int64, error) {
	return tv.parent.createCategory(c)
}

func (tv *txMemoryView) UpdateCategory(_ context.Context, c depreciation.Category) error {
	return tv.parent.updateCategory(c)
}

func (tv *txMemoryView) DeleteCategory(_ context.Context, id int64) error {
	return tv.parent.deleteCategory(id)
}

func (tv *txMemoryView) GetCategory(_ context.Context, id int64) (*depreciation.Category, error) {
	return tv.parent.getCategory(id), nil
}

func (tv *txMemoryView) FindCategoryByName(_ context.Context, name string) (*depreciation.Category, error) {
	return tv.parent.findCategoryByName(name), nil
}

func (tv *txMemoryView) ListCategoriesWithCounts(_ context.Context) ([]depreciation.CategoryWithCount, error) {
	return tv.parent.listCategoriesWithCounts(), nil
}

func (tv *txMemoryView) CountAssetsInCategory(_ context.Context, categoryID int64) (int, error) {
	return tv.parent.countAssetsInCategory(categoryID), nil
}

func (tv *txMemoryView) ReassignCategory(_ context.Context, from int64, to *int64) (int, error) {
	return tv.parent.reassignCategory(from, to), nil
}

// Nested transactions join the outer one.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(depreciation.Store) error) error {
	return fn(tv)
}

// =============================================================================
// UNLOCKED STATE OPERATIONS - Callers hold the lock
// =============================================================================

func (s *memoryState) createAsset(a depreciation.Asset) int64 {
	s.nextAsset++
	id := s.nextAsset
	now := time.Now().UTC()
	a.ID = &id
	a.CreatedAt, a.UpdatedAt = now, now
	s.assets[id] = a
	return id
}

func (s *memoryState) updateAsset(a depreciation.Asset) error {
	existing, ok := s.assets[*a.ID]
	if !ok {
		return fmt.Errorf("asset %d does not exist", *a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.assets[*a.ID] = a
	return nil
}

func (s *memoryState) deleteAsset(id int64) {
	delete(s.assets, id)
	delete(s.schedules, id)
}

func (s *memoryState) getAsset(id int64) *depreciation.Asset {
	a, ok := s.assets[id]
	if !ok {
		return nil
	}
	return &a
}

func (s *memoryState) listAssets() []depreciation.Asset {
	result := make([]depreciation.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return *result[i].ID < *result[j].ID
	})
	return result
}

// replaceSchedule writes at most limit entries when limit >= 0.
func (s *memoryState) replaceSchedule(assetID int64, entries []depreciation.Entry, limit int) (int, error) {
	delete(s.schedules, assetID)
	if len(entries) == 0 {
		return 0, nil
	}
	if _, ok := s.assets[assetID]; !ok {
		return 0, fmt.Errorf("asset %d does not exist", assetID)
	}

	n := len(entries)
	if limit >= 0 && limit < n {
		n = limit
	}

	rows := make([]depreciation.Entry, 0, n)
	for _, e := range entries[:n] {
		s.nextEntry++
		e.ID = s.nextEntry
		e.AssetID = assetID
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	s.schedules[assetID] = rows
	return len(rows), nil
}

func (s *memoryState) schedule(assetID int64) []depreciation.Entry {
	result := make([]depreciation.Entry, len(s.schedules[assetID]))
	copy(result, s.schedules[assetID])
	return result
}

func (s *memoryState) listScheduleEntries() []depreciation.Entry {
	ids := make([]int64, 0, len(s.schedules))
	for id := range s.schedules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []depreciation.Entry
	for _, id := range ids {
		result = append(result, s.schedules[id]...)
	}
	return result
}

func (s *memoryState) createCategory(c depreciation.Category) (int64, error) {
	if s.findCategoryByName(c.Name) != nil {
		return 0, fmt.Errorf("category %q already exists", c.Name)
	}
	s.nextCat++
	id := s.nextCat
	now := time.Now().UTC()
	c.ID = &id
	c.CreatedAt, c.UpdatedAt = now, now
	s.categories[id] = c
	return id, nil
}

func (s *memoryState) updateCategory(c depreciation.Category) error {
	existing, ok := s.categories[*c.ID]
	if !ok {
		return fmt.Errorf("category %d does not exist", *c.ID)
	}
	if clash := s.findCategoryByName(c.Name); clash != nil && *clash.ID != *c.ID {
		return fmt.Errorf("category %q already exists", c.Name)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.categories[*c.ID] = c
	return nil
}

func (s *memoryState) deleteCategory(id int64) error {
	if n := s.countAssetsInCategory(id); n > 0 {
		return fmt.Errorf("category %d still referenced by %d assets", id, n)
	}
	delete(s.categories, id)
	return nil
}

func (s *memoryState) getCategory(id int64) *depreciation.Category {
	c, ok := s.categories[id]
	if !ok {
		return nil
	}
	return &c
}

func (s *memoryState) findCategoryByName(name string) *depreciation.Category {
	name = strings.TrimSpace(name)
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return &c
		}
	}
	return nil
}

func (s *memoryState) listCategoriesWithCounts() []depreciation.CategoryWithCount {
	result := make([]depreciation.CategoryWithCount, 0, len(s.categories))
	for id, c := range s.categories {
		result = append(result, depreciation.CategoryWithCount{
			Category:   c,
			AssetCount: s.countAssetsInCategory(id),
		})
	}
	// Matches the NOCASE collation of the sqlite categories table.
	sort.Slice(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if a != b {
			return a < b
		}
		return *result[i].ID < *result[j].ID
	})
	return result
}

func (s *memoryState) countAssetsInCategory(categoryID int64) int {
	n := 0
	for _, a := range s.assets {
		if a.CategoryID != nil && *a.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (s *memoryState) reassignCategory(from int64, to *int64) int {
	moved := 0
	for id, a := range s.assets {
		if a.CategoryID == nil || *a.CategoryID != from {
			continue
		}
		if to == nil {
			a.CategoryID = nil
		} else {
			target := *to
			a.CategoryID = &target
		}
		a.UpdatedAt = time.Now().UTC()
		s.assets[id] = a
		moved++
	}
	return moved
}
