package store

import (
	"errors"
	"sync"
	"time"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

var (
	// ErrNotFound is returned when no data is available for a parameter or range.
	ErrNotFound = errors.New("no data for parameter")
	// ErrEmpty is returned before any dataset has been saved.
	ErrEmpty = errors.New("no dataset assembled")
)

// MemoryStore holds the assembled dataset for readers. The dataset is replaced
// as a whole and never mutated in place.
type MemoryStore struct {
	mu sync.RWMutex
	ds *station.Dataset
	at time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveDataset stores the result of an assembly run.
func (s *MemoryStore) SaveDataset(ds *station.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
	s.at = time.Now().UTC()
}

// Dataset returns the stored dataset and when it was saved.
func (s *MemoryStore) Dataset() (*station.Dataset, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, time.Time{}, ErrEmpty
	}
	return s.ds, s.at, nil
}

// GetSeries returns the full series for a parameter.
func (s *MemoryStore) GetSeries(p station.Parameter) (station.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return station.Series{}, ErrEmpty
	}
	series, ok := s.ds.Lookup(p)
	if !ok {
		return station.Series{}, ErrNotFound
	}
	return series, nil
}

// GetRange returns a parameter's samples between from and to (inclusive).
func (s *MemoryStore) GetRange(p station.Parameter, from, to time.Time) ([]station.Sample, error) {
	series, err := s.GetSeries(p)
	if err != nil {
		return nil, err
	}
	result := series.Range(from, to)
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
