package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/observability"
)

var errNotStored = errors.New("not stored")

type mapStore struct {
	mu    sync.Mutex
	saved map[string][]WeatherSnapshot
}

func newMapStore() *mapStore { return &mapStore{saved: make(map[string][]WeatherSnapshot)} }

func (m *mapStore) SaveSnapshot(_ context.Context, loc Location, s WeatherSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[loc.Key()] = append(m.saved[loc.Key()], s)
	return nil
}

func (m *mapStore) GetLatest(_ context.Context, loc Location) (WeatherSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.saved[loc.Key()]
	if len(h) == 0 {
		return WeatherSnapshot{}, errNotStored
	}
	return h[len(h)-1], nil
}

func (m *mapStore) GetRange(context.Context, Location, time.Time, time.Time) ([]WeatherSnapshot, error) {
	return nil, errNotStored
}

type stubProvider struct {
	name     string
	reading  ProviderReading
	forecast []ProviderReading
	err      error
	seen     []Location
	mu       sync.Mutex
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(_ context.Context, loc Location) (ProviderReading, error) {
	p.mu.Lock()
	p.seen = append(p.seen, loc)
	p.mu.Unlock()
	r := p.reading
	r.ProviderName = p.name
	return r, p.err
}

type stubForecaster struct {
	*stubProvider
}

func (p stubForecaster) FetchForecast(context.Context, Location, int) ([]ProviderReading, error) {
	return p.forecast, p.err
}

type stubGeocoder struct{ lat, lon float64 }

func (g stubGeocoder) Geocode(_ context.Context, loc Location) (Location, error) {
	loc.Lat, loc.Lon = &g.lat, &g.lon
	return loc, nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store SnapshotStore, provs []Provider, geo Geocoder) *Service {
	return NewService(store, provs, geo, observability.NewMetricsForTesting(), zap.NewNop())
}

func TestFetchAndStore_AveragesSuccessfulProviders(t *testing.T) {
	store := newMapStore()
	svc := newTestService(store, []Provider{
		&stubProvider{name: "b", reading: ProviderReading{Timestamp: now, TemperatureC: 20.04, HumidityPct: 60, Condition: ConditionRain}},
		&stubProvider{name: "a", reading: ProviderReading{Timestamp: now.Add(-time.Minute), TemperatureC: 22, HumidityPct: 71, Condition: ConditionRain, Summary: "Light rain"}},
		&stubProvider{name: "c", err: errors.New("boom")},
	}, nil)

	loc := Location{City: "Nairobi", Country: "KE"}
	snap, err := svc.FetchAndStore(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, 21.0, snap.Temperature)
	assert.Equal(t, 66.0, snap.Humidity)
	assert.Equal(t, ConditionRain, snap.Condition)
	assert.Equal(t, "Light rain", snap.Summary)
	assert.Equal(t, now, snap.Timestamp)
	assert.Len(t, snap.Providers, 2)

	stored, err := store.GetLatest(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, snap, stored)
}

func TestFetchAndStore_AllProvidersFail(t *testing.T) {
	store := newMapStore()
	svc := newTestService(store, []Provider{&stubProvider{name: "a", err: errors.New("down")}}, nil)

	_, err := svc.FetchAndStore(context.Background(), Location{City: "Lima"})
	assert.ErrorIs(t, err, ErrNoReadings)
	assert.Empty(t, store.saved)

	_, err = newTestService(store, nil, nil).FetchAndStore(context.Background(), Location{City: "Lima"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestFetchAndStore_GeocodesButStoresUnderRequestedKey(t *testing.T) {
	store := newMapStore()
	p := &stubProvider{name: "a", reading: ProviderReading{Timestamp: now}}
	svc := newTestService(store, []Provider{p}, stubGeocoder{lat: -1.29, lon: 36.82})

	loc := Location{PostalCode: "00100"}
	_, err := svc.FetchAndStore(context.Background(), loc)
	require.NoError(t, err)

	require.Len(t, p.seen, 1)
	assert.True(t, p.seen[0].HasCoordinates())
	assert.Contains(t, store.saved, "zip:00100")
}

func TestCurrent_UsesFreshSnapshot(t *testing.T) {
	store := newMapStore()
	p := &stubProvider{name: "a", reading: ProviderReading{Timestamp: now, TemperatureC: 10}}
	svc := newTestService(store, []Provider{p}, nil)
	clock := clockwork.NewFakeClockAt(now)
	svc.SetClock(clock)

	loc := Location{City: "Oslo"}
	_, err := svc.Current(context.Background(), loc, 15*time.Minute)
	require.NoError(t, err)
	_, err = svc.Current(context.Background(), loc, 15*time.Minute)
	require.NoError(t, err)
	assert.Len(t, p.seen, 1)

	clock.Advance(time.Hour)
	_, err = svc.Current(context.Background(), loc, 15*time.Minute)
	require.NoError(t, err)
	assert.Len(t, p.seen, 2)
}

func TestGetForecast(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	a := stubForecaster{&stubProvider{name: "a", forecast: []ProviderReading{
		{Timestamp: day(2), TemperatureC: 20, PrecipMm: 1.26},
		{Timestamp: day(1), TemperatureC: 18},
		{Timestamp: day(3), TemperatureC: 25},
	}}}
	b := stubForecaster{&stubProvider{name: "b", forecast: []ProviderReading{
		{Timestamp: day(1).Add(6 * time.Hour), TemperatureC: 19},
	}}}
	plain := &stubProvider{name: "plain"}

	svc := newTestService(newMapStore(), []Provider{a, b, plain}, nil)

	f, err := svc.GetForecast(context.Background(), Location{City: "Rome"}, 2)
	require.NoError(t, err)
	require.Len(t, f, 2)
	assert.Equal(t, day(1), f[0].Timestamp)
	assert.Equal(t, 18.5, f[0].Temperature)
	assert.Equal(t, day(2), f[1].Timestamp)
	assert.Equal(t, 1.3, f[1].PrecipMM)

	_, err = svc.GetForecast(context.Background(), Location{City: "Rome"}, 8)
	assert.Error(t, err)

	_, err = newTestService(newMapStore(), []Provider{plain}, nil).GetForecast(context.Background(), Location{City: "Rome"}, 3)
	assert.ErrorIs(t, err, ErrNoForecast)
}

func TestAggregateReadings_TieGoesToFirstCondition(t *testing.T) {
	snap := AggregateReadings(Location{City: "x"}, []ProviderReading{
		{ProviderName: "a", Condition: ConditionCloudy, Timestamp: now},
		{ProviderName: "b", Condition: ConditionClear, Timestamp: now},
	})
	assert.Equal(t, ConditionCloudy, snap.Condition)
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "1.2346,-2.0000", Coordinates(1.23456, -2).Key())
	assert.Equal(t, "zip:10001", Location{PostalCode: "10001", City: "NYC"}.Key())
	assert.Equal(t, "Paris:FR", Location{City: "Paris", Country: "FR"}.Key())
	assert.True(t, Location{}.IsZero())
	assert.Equal(t, "Paris,FR", Location{City: "Paris", Country: "FR"}.Query())
}

func TestAggregateReadings_MajorityIgnoresUnknown(t *testing.T) {
	snap := AggregateReadings(Location{City: "x"}, []ProviderReading{
		{ProviderName: "a", Condition: ConditionUnknown, TemperatureC: 10, Timestamp: now},
		{ProviderName: "b", Condition: ConditionRain, TemperatureC: 14, Timestamp: now.Add(time.Minute)},
		{ProviderName: "c", Condition: ConditionUnknown, TemperatureC: 12, Timestamp: now},
	})
	assert.Equal(t, ConditionRain, snap.Condition)
	assert.Equal(t, 12.0, snap.Temperature)
	assert.True(t, snap.Timestamp.Equal(now.Add(time.Minute)))
	assert.Len(t, snap.Providers, 3)

	empty := AggregateReadings(Location{City: "x"}, nil)
	assert.Equal(t, ConditionUnknown, empty.Condition)
	assert.False(t, empty.Timestamp.IsZero())
}
