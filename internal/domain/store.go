package domain

import (
	"fmt"
	"slices"
	"time"
)

// Store maps a typed key to a raster. Each key is written at most once; a
// stage populates its store completely before the next stage reads it.
type Store[K comparable] struct {
	name    string
	rasters map[K]*Raster
}

// NewStore creates an empty named store.
func NewStore[K comparable](name string) *Store[K] {
	return &Store[K]{name: name, rasters: make(map[K]*Raster)}
}

// Name identifies the stage that owns the store (used in logs).
func (s *Store[K]) Name() string { return s.name }

// Put stores r under k. Writing a key twice returns ErrDuplicateKey.
func (s *Store[K]) Put(k K, r *Raster) error {
	if _, ok := s.rasters[k]; ok {
		return fmt.Errorf("%s[%v]: %w", s.name, k, ErrDuplicateKey)
	}
	s.rasters[k] = r
	return nil
}

// Get returns the raster for k. A missing key is reported with ok=false.
func (s *Store[K]) Get(k K) (*Raster, bool) {
	r, ok := s.rasters[k]
	return r, ok
}

// Len returns the number of stored rasters.
func (s *Store[K]) Len() int { return len(s.rasters) }

// MonthlyStore holds one raster per (year, month).
type MonthlyStore = Store[MonthKey]

// ClimatologyStore holds one raster per calendar month.
type ClimatologyStore = Store[time.Month]

// NewMonthlyStore creates an empty MonthlyStore.
func NewMonthlyStore(name string) *MonthlyStore { return NewStore[MonthKey](name) }

// NewClimatologyStore creates an empty ClimatologyStore.
func NewClimatologyStore(name string) *ClimatologyStore { return NewStore[time.Month](name) }

// SortedKeys lists the keys of a MonthlyStore chronologically.
func SortedKeys(s *MonthlyStore) []MonthKey {
	keys := make([]MonthKey, 0, len(s.rasters))
	for k := range s.rasters {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, MonthKey.Compare)
	return keys
}

// ByCalendarMonth collects, in chronological order, every raster in s that
// falls on the given calendar month.
func ByCalendarMonth(s *MonthlyStore, m time.Month) []*Raster {
	var out []*Raster
	for _, k := range SortedKeys(s) {
		if k.Month == m {
			out = append(out, s.rasters[k])
		}
	}
	return out
}
