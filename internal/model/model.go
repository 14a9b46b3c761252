// Package model defines the shared domain types for the sync core:
// log entries, day snapshots, and the canonical day-key format.
//
// Types here carry no I/O and no locking. Aggregation invariants
// (totals match the entries currently present) are maintained by the
// logbook engine; RecomputeTotals exists so callers and tests can
// verify them independently.
package model

import (
	"strings"
	"time"
)

// DayKeyLayout is the canonical format for a logical calendar day.
// Lexicographic order of day keys is chronological order.
const DayKeyLayout = "2006-01-02"

// TempIDPrefix marks client-generated identifiers awaiting
// reconciliation against a server-assigned id.
const TempIDPrefix = "temp-"

// MealType identifies the meal slot a food entry belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// MealTypes lists all meal slots in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

// ValidMealType reports whether m is one of the known meal slots.
func ValidMealType(m MealType) bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// DayKey returns the canonical YYYY-MM-DD key for t's calendar date.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ValidDayKey reports whether key parses as a canonical day key.
func ValidDayKey(key string) bool {
	t, err := time.Parse(DayKeyLayout, key)
	return err == nil && DayKey(t) == key
}

// IsTempID reports whether id is a client-generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// FoodEntry records one consumed item within a meal slot.
//
// ID is either a server-assigned identifier or a temp- placeholder
// pending reconciliation. Entries are addressed by ID for removal, so
// an unreconciled entry cannot be deleted by server id later.
type FoodEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Calories int       `json:"calories"`
	ProteinG float64   `json:"protein_g"`
	CarbsG   float64   `json:"carbs_g"`
	FatG     float64   `json:"fat_g"`
	Meal     MealType  `json:"meal"`
	DateKey  string    `json:"date_key"`
	LoggedAt time.Time `json:"logged_at"`
}

// ExerciseEntry records one activity session.
type ExerciseEntry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DurationMin    int       `json:"duration_min"`
	CaloriesBurned int       `json:"calories_burned"`
	DateKey        string    `json:"date_key"`
	LoggedAt       time.Time `json:"logged_at"`
}

// MacroTotals is the running nutritional sum for one day.
type MacroTotals struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Add accumulates the macros of one food entry.
func (t *MacroTotals) Add(e FoodEntry) {
	t.Calories += e.Calories
	t.ProteinG += e.ProteinG
	t.CarbsG += e.CarbsG
	t.FatG += e.FatG
}

// Subtract removes the macros of one food entry.
func (t *MacroTotals) Subtract(e FoodEntry) {
	t.Calories -= e.Calories
	t.ProteinG -= e.ProteinG
	t.CarbsG -= e.CarbsG
	t.FatG -= e.FatG
}

// DaySnapshot aggregates everything logged for one day key.
//
// Totals, WaterML, and CaloriesBurned must always equal the arithmetic
// sum over the entries currently present; every insert or remove
// updates the entry list and the aggregate in the same transition.
type DaySnapshot struct {
	DateKey        string                   `json:"date_key"`
	Meals          map[MealType][]FoodEntry `json:"meals"`
	Totals         MacroTotals              `json:"totals"`
	WaterML        int                      `json:"water_ml"`
	Exercises      []ExerciseEntry          `json:"exercises"`
	CaloriesBurned int                      `json:"calories_burned"`
}

// NewDaySnapshot returns an empty snapshot for the given day key with
// all meal slots initialized.
func NewDaySnapshot(dateKey string) *DaySnapshot {
	meals := make(map[MealType][]FoodEntry, len(MealTypes))
	for _, m := range MealTypes {
		meals[m] = nil
	}
	return &DaySnapshot{DateKey: dateKey, Meals: meals}
}

// Clone returns a deep copy. Callers receive clones so the engine's
// cached snapshot can never be mutated behind its lock.
func (s *DaySnapshot) Clone() *DaySnapshot {
	c := &DaySnapshot{
		DateKey:        s.DateKey,
		Meals:          make(map[MealType][]FoodEntry, len(s.Meals)),
		Totals:         s.Totals,
		WaterML:        s.WaterML,
		CaloriesBurned: s.CaloriesBurned,
	}
	for m, entries := range s.Meals {
		c.Meals[m] = append([]FoodEntry(nil), entries...)
	}
	c.Exercises = append([]ExerciseEntry(nil), s.Exercises...)
	return c
}

// Entries returns all food entries across meal slots in display order.
func (s *DaySnapshot) Entries() []FoodEntry {
	var out []FoodEntry
	for _, m := range MealTypes {
		out = append(out, s.Meals[m]...)
	}
	return out
}

// RecomputeTotals derives the aggregates from scratch. The result must
// always match the incrementally maintained fields; tests use this as
// a consistency check.
func RecomputeTotals(s *DaySnapshot) (MacroTotals, int) {
	var totals MacroTotals
	for _, entries := range s.Meals {
		for _, e := range entries {
			totals.Add(e)
		}
	}
	burned := 0
	for _, e := range s.Exercises {
		burned += e.CaloriesBurned
	}
	return totals, burned
}
