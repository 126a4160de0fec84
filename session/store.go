// Package session keeps the meal plans completed during one process run.
package session

import (
	"log/slog"
	"sync"

	"mealprep"
)

// Store is an append-only, in-memory list of finished meal plans. Nothing
// survives a restart.
type Store struct {
	mu      sync.Mutex
	records []mealprep.MealPlanRecord
}

func NewStore() *Store {
	return &Store{}
}

// Save appends rec and returns "Success".
func (s *Store) Save(rec mealprep.MealPlanRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	slog.Debug("SESSION: Plan saved", "query", rec.Query, "records", len(s.records))
	return "Success"
}

// Records returns a copy of everything saved so far, oldest first.
func (s *Store) Records() []mealprep.MealPlanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mealprep.MealPlanRecord(nil), s.records...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
