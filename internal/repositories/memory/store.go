// Package memory implements the repositories in memory, optionally backed by JSON files in a
// data directory. It serves local runs without a database and doubles as the test store.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/messforecast/internal/models"
)

const (
	AttendanceFile  = "attendance.json"
	MenuFile        = "menus.json"
	IngredientsFile = "ingredients.json"
	OrdersFile      = "orders.json"
)

// Store holds every collection. With a non-empty dir, Open loads the collections from their
// files and each write rewrites the affected file.
type Store struct {
	mu          sync.RWMutex
	dir         string
	attendance  map[int64]models.WeeklyAttendanceRecord
	menus       []models.MenuEntry
	ingredients []models.IngredientRule
	orders      []map[string]interface{}
}

func NewStore() *Store {
	return &Store{attendance: make(map[int64]models.WeeklyAttendanceRecord)}
}

// Open loads a store from dir. Missing files leave their collection empty.
func Open(dir string) (*Store, error) {
	s := NewStore()
	s.dir = dir

	var records []models.WeeklyAttendanceRecord
	if err := readJSON(filepath.Join(dir, AttendanceFile), &records); err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec.WeekStart = models.StartOfWeek(rec.WeekStart)
		s.attendance[rec.WeekStart.Unix()] = rec
	}
	if err := readJSON(filepath.Join(dir, MenuFile), &s.menus); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, IngredientsFile), &s.ingredients); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, OrdersFile), &s.orders); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Attendance() *AttendanceRepository { return &AttendanceRepository{s: s} }
func (s *Store) Menus() *MenuRepository { return &MenuRepository{s: s} }
func (s *Store) Ingredients() *IngredientRepository { return &IngredientRepository{s: s} }
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}

// persist must be called with s.mu held.
func (s *Store) persist(name string, v interface{}) error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("error creating data directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) sortedRecords() []models.WeeklyAttendanceRecord {
	out := make([]models.WeeklyAttendanceRecord, 0, len(s.attendance))
	for _, rec := range s.attendance {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out
}

type AttendanceRepository struct {
	s *Store
}

func (r *AttendanceRepository) Query(ctx context.Context, key models.SeriesKey) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var obs []models.Observation
	for _, rec := range r.s.sortedRecords() {
		if n, ok := rec.Count(key); ok {
			obs = append(obs, models.Observation{WeekStart: rec.WeekStart, Count: n})
		}
	}
	return obs, nil
}

func (r *AttendanceRepository) SaveWeek(ctx context.Context, record models.WeeklyAttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.WeekStart = models.StartOfWeek(record.WeekStart)
	r.s.attendance[record.WeekStart.Unix()] = record
	return r.s.persist(AttendanceFile, r.s.sortedRecords())
}

func (r *AttendanceRepository) BulkCreate(ctx context.Context, records []models.WeeklyAttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range records {
		rec.WeekStart = models.StartOfWeek(rec.WeekStart)
		r.s.attendance[rec.WeekStart.Unix()] = rec
	}
	return r.s.persist(AttendanceFile, r.s.sortedRecords())
}

func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.attendance), nil
}

func (r *AttendanceRepository) DeleteAll(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attendance = make(map[int64]models.WeeklyAttendanceRecord)
	return r.s.persist(AttendanceFile, []models.WeeklyAttendanceRecord{})
}

type MenuRepository struct {
	s *Store
}

func (r *MenuRepository) ListAll(ctx context.Context) ([]models.MenuEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]models.MenuEntry(nil), r.s.menus...), nil
}

func (r *MenuRepository) BulkCreate(ctx context.Context, entries []models.MenuEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.menus = append(r.s.menus, entries...)
	return r.s.persist(MenuFile, r.s.menus)
}

func (r *MenuRepository) DeleteAll(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.menus = nil
	return r.s.persist(MenuFile, []models.MenuEntry{})
}

type IngredientRepository struct {
	s *Store
}

func (r *IngredientRepository) ListAll(ctx context.Context) ([]models.IngredientRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]models.IngredientRule(nil), r.s.ingredients...), nil
}

// BulkCreate upserts by ingredient name.
func (r *IngredientRepository) BulkCreate(ctx context.Context, rules []models.IngredientRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rule := range rules {
		replaced := false
		for i := range r.s.ingredients {
			if r.s.ingredients[i].Name == rule.Name {
				r.s.ingredients[i] = rule
				replaced = true
				break
			}
		}
		if !replaced {
			r.s.ingredients = append(r.s.ingredients, rule)
		}
	}
	return r.s.persist(IngredientsFile, r.s.ingredients)
}

func (r *IngredientRepository) DeleteAll(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ingredients = nil
	return r.s.persist(IngredientsFile, []models.IngredientRule{})
}

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) ListRaw(ctx context.Context) ([]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]map[string]interface{}(nil), r.s.orders...), nil
}

// BulkCreate stores orders in the canonical selections shape.
func (r *OrderRepository) BulkCreate(ctx context.Context, orders []models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range orders {
		selections := make(map[string]interface{}, len(o.Selections))
		for day, meals := range o.Selections {
			m := make(map[string]interface{}, len(meals))
			for slot, chosen := range meals {
				m[string(slot)] = chosen
			}
			selections[string(day)] = m
		}
		r.s.orders = append(r.s.orders, map[string]interface{}{
			"id":         o.ID,
			"user_id":    o.UserID,
			"status":     o.Status,
			"created_at": o.CreatedAt.UTC().Format(time.RFC3339),
			"selections": selections,
		})
	}
	return r.s.persist(OrdersFile, r.s.orders)
}

// AddRaw stores documents as given, whatever their selection shape.
func (r *OrderRepository) AddRaw(docs ...map[string]interface{}) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders = append(r.s.orders, docs...)
}

func (r *OrderRepository) DeleteAll(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders = nil
	return r.s.persist(OrdersFile, []map[string]interface{}{})
}
