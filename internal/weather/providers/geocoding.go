package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/farm-insights/internal/weather"
)

var errEmptyGeocode = errors.New("geocoder returned no coordinates")

// GoogleGeocoder resolves postal codes and cities to coordinates through
// the Google Maps Geocoding API. Results are cached per location key.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)

	mu         sync.Mutex
	cache      map[string]weather.Location
	maxEntries int
}

// NewGoogleGeocoder configures the geocoder package with apiKey. The
// geocoder library keeps its key in a package variable, so one key serves
// the whole process.
func NewGoogleGeocoder(apiKey string, maxEntries int) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		lookup:     geocoder.Geocoding,
		cache:      make(map[string]weather.Location),
		maxEntries: maxEntries,
	}
}

// Geocode returns loc with Lat/Lon filled in. Locations that already carry
// coordinates are returned as is.
func (g *GoogleGeocoder) Geocode(ctx context.Context, loc weather.Location) (weather.Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}
	key := loc.Key()

	g.mu.Lock()
	cached, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return cached, nil
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	// The library call takes no context; run it aside so ctx still bounds us.
	done := make(chan result, 1)
	go func() {
		l, err := g.lookup(geocoder.Address{
			City:       loc.City,
			Country:    loc.Country,
			PostalCode: loc.PostalCode,
		})
		done <- result{l, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return loc, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return loc, fmt.Errorf("geocode %s: %w", key, res.err)
	}
	if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
		return loc, fmt.Errorf("geocode %s: %w", key, errEmptyGeocode)
	}

	resolved := loc
	lat, lon := res.loc.Latitude, res.loc.Longitude
	resolved.Lat, resolved.Lon = &lat, &lon

	g.mu.Lock()
	if g.maxEntries > 0 && len(g.cache) >= g.maxEntries {
		clear(g.cache)
	}
	g.cache[key] = resolved
	g.mu.Unlock()

	return resolved, nil
}
