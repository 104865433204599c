package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/weather"
)

// SnapshotHistory holds a time-ordered list of weather snapshots for a location.
type SnapshotHistory struct {
	Snapshots []weather.WeatherSnapshot
}

// MemoryStore is a concurrency-safe in-memory Store.
type MemoryStore struct {
	mu sync.RWMutex

	plots     map[string]farm.Plot
	plotOrder []string

	prices      []pricing.Record
	predictions map[string]pricing.Prediction

	// key: location key, value: history
	weather map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per location
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional snapshot limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		plots:       make(map[string]farm.Plot),
		predictions: make(map[string]pricing.Prediction),
		weather:     make(map[string]*SnapshotHistory),
		maxHistory:  maxHistory,
		maxAge:      maxAge,
	}
}

func (s *MemoryStore) Close() error { return nil }

// --- plots

func (s *MemoryStore) CreatePlot(_ context.Context, p farm.Plot) (farm.Plot, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()

	s.plots[p.ID] = p
	s.plotOrder = append(s.plotOrder, p.ID)
	return p, nil
}

func (s *MemoryStore) GetPlot(_ context.Context, id string) (farm.Plot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plots[id]
	if !ok {
		return farm.Plot{}, ErrNotFound
	}
	return p, nil
}

// ListPlots returns plots in creation order.
func (s *MemoryStore) ListPlots(_ context.Context) ([]farm.Plot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]farm.Plot, 0, len(s.plotOrder))
	for _, id := range s.plotOrder {
		out = append(out, s.plots[id])
	}
	return out, nil
}

func (s *MemoryStore) UpdatePlot(_ context.Context, p farm.Plot) (farm.Plot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.plots[p.ID]
	if !ok {
		return farm.Plot{}, ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now()
	s.plots[p.ID] = p
	return p, nil
}

func (s *MemoryStore) DeletePlot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plots[id]; !ok {
		return ErrNotFound
	}
	delete(s.plots, id)
	for i, pid := range s.plotOrder {
		if pid == id {
			s.plotOrder = append(s.plotOrder[:i], s.plotOrder[i+1:]...)
			break
		}
	}
	return nil
}

// --- prices

// AddPrices stores records, assigning IDs and creation times.
func (s *MemoryStore) AddPrices(_ context.Context, records []pricing.Record) error {
	ts := now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		r.ID = uuid.NewString()
		r.CropName = pricing.NormalizeCropName(r.CropName)
		r.CreatedAt = ts
		s.prices = append(s.prices, r)
	}
	return nil
}

// PriceHistory returns a crop's records in ascending year order; records of
// the same year keep insertion order.
func (s *MemoryStore) PriceHistory(_ context.Context, crop string) ([]pricing.Record, error) {
	crop = pricing.NormalizeCropName(crop)

	s.mu.RLock()
	var out []pricing.Record
	for _, r := range s.prices {
		if r.CropName == crop {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// Crops returns the distinct crop names, sorted.
func (s *MemoryStore) Crops(_ context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.prices {
		if !seen[r.CropName] {
			seen[r.CropName] = true
			out = append(out, r.CropName)
		}
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out, nil
}

// ClearPrices removes every price record and cached prediction.
func (s *MemoryStore) ClearPrices(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices = nil
	s.predictions = make(map[string]pricing.Prediction)
	return nil
}

// --- predictions

func (s *MemoryStore) GetPrediction(_ context.Context, crop string, year int) (*pricing.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[predictionKey(pricing.NormalizeCropName(crop), year)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SavePrediction caches p, replacing any prediction for the same crop and year.
func (s *MemoryStore) SavePrediction(_ context.Context, p pricing.Prediction) error {
	p.CropName = pricing.NormalizeCropName(p.CropName)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.predictions[predictionKey(p.CropName, p.PredictionYear)] = p
	return nil
}

func (s *MemoryStore) DeletePredictions(_ context.Context, crop string) error {
	crop = pricing.NormalizeCropName(crop)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, p := range s.predictions {
		if p.CropName == crop {
			delete(s.predictions, k)
		}
	}
	return nil
}

// --- weather snapshots

// SaveSnapshot appends a new snapshot for a location and enforces retention.
func (s *MemoryStore) SaveSnapshot(_ context.Context, loc weather.Location, snapshot weather.WeatherSnapshot) error {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.weather[key]
	if !ok {
		history = &SnapshotHistory{}
		s.weather[key] = history
	}

	history.Snapshots = append(history.Snapshots, snapshot)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots); i++ {
			if !history.Snapshots[i].Timestamp.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
	return nil
}

// GetLatest returns the most recent snapshot for a location.
func (s *MemoryStore) GetLatest(_ context.Context, loc weather.Location) (weather.WeatherSnapshot, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.weather[key]
	if !ok || len(history.Snapshots) == 0 {
		return weather.WeatherSnapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(_ context.Context, loc weather.Location, from, to time.Time) ([]weather.WeatherSnapshot, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.weather[key]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.WeatherSnapshot
	for _, snap := range history.Snapshots {
		if !snap.Timestamp.Before(from) && !snap.Timestamp.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
