package memory

import (
	"context"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ResultStore implements storage.ResultStore in memory.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.Result
	order   []string
}

// NewResultStore creates an empty in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// SaveResult stores a copy of the result. Returns ErrDuplicateKey if the
// run ID already exists.
func (s *ResultStore) SaveResult(_ context.Context, res *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[res.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *res
	cp.TradeLog = append([]domain.TradeLogEntry(nil), res.TradeLog...)
	cp.EquityCurve = append([]domain.EquityPoint(nil), res.EquityCurve...)
	s.results[res.RunID] = cp
	s.order = append(s.order, res.RunID)
	return nil
}

// Result retrieves a copy of a stored run. Returns ErrNotFound if absent.
func (s *ResultStore) Result(_ context.Context, runID string) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := res
	cp.TradeLog = append([]domain.TradeLogEntry(nil), res.TradeLog...)
	cp.EquityCurve = append([]domain.EquityPoint(nil), res.EquityCurve...)
	return &cp, nil
}

// ListRunIDs returns run IDs newest first.
func (s *ResultStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	for i, id := range s.order {
		out[len(s.order)-1-i] = id
	}
	return out, nil
}

// EquityCurveStore implements storage.EquityCurveStore in memory.
type EquityCurveStore struct {
	mu     sync.RWMutex
	curves map[string][]domain.EquityPoint
}

// NewEquityCurveStore creates an empty in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{curves: make(map[string][]domain.EquityPoint)}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// SaveEquityCurve stores a copy of the per-run curve.
func (s *EquityCurveStore) SaveEquityCurve(_ context.Context, runID string, points []domain.EquityPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curves[runID] = append([]domain.EquityPoint(nil), points...)
	return nil
}

// EquityCurve retrieves a copy of a run's curve. Returns ErrNotFound if
// absent.
func (s *EquityCurveStore) EquityCurve(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.curves[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]domain.EquityPoint(nil), points...), nil
}
