package agronomy

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownCrop is returned when a crop is not part of the catalog.
	ErrUnknownCrop = errors.New("unknown crop")
	// ErrInvalidCatalog is returned when a catalog breaks one of its invariants.
	ErrInvalidCatalog = errors.New("invalid crop catalog")
)

// Catalog is an immutable, ordered set of crop profiles.
// It is built once at startup and is safe for concurrent reads.
type Catalog struct {
	profiles []Profile
	index    map[string]int
}

// NewCatalog validates the profiles and returns a catalog holding a private
// copy of them. The catalog must be non-empty, crop IDs must be unique, and
// every range must satisfy min <= optimal <= max.
func NewCatalog(profiles ...Profile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles", ErrInvalidCatalog)
	}

	c := &Catalog{
		profiles: make([]Profile, 0, len(profiles)),
		index:    make(map[string]int, len(profiles)),
	}
	for _, p := range profiles {
		p.CropID = normalizeCropID(p.CropID)
		if p.CropID == "" {
			return nil, fmt.Errorf("%w: profile without crop id", ErrInvalidCatalog)
		}
		if _, dup := c.index[p.CropID]; dup {
			return nil, fmt.Errorf("%w: duplicate crop %q", ErrInvalidCatalog, p.CropID)
		}
		for _, f := range p.factors() {
			if !f.rng.valid() {
				return nil, fmt.Errorf("%w: %s %s range %v..%v with optimal %v",
					ErrInvalidCatalog, p.CropID, f.name, f.rng.Min, f.rng.Max, f.rng.Optimal)
			}
		}
		c.index[p.CropID] = len(c.profiles)
		c.profiles = append(c.profiles, p)
	}
	return c, nil
}

// LoadCatalog decodes a YAML list of profiles and builds a catalog from it.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc struct {
		Crops []Profile `yaml:"crops"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode crop catalog: %w", err)
	}
	return NewCatalog(doc.Crops...)
}

// Len returns the number of crops in the catalog.
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Profiles returns a copy of the profiles in catalog order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Lookup finds a profile by crop ID, case-insensitively.
func (c *Catalog) Lookup(cropID string) (Profile, error) {
	i, ok := c.index[normalizeCropID(cropID)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownCrop, cropID)
	}
	return c.profiles[i], nil
}

func normalizeCropID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// DefaultCatalog returns the built-in crop profiles, derived from the
// crop recommendation training data.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultProfiles...)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultProfiles = []Profile{
	{
		CropID:      "rice",
		Temperature: Range{Min: 20, Max: 27, Optimal: 23.5},
		Humidity:    Range{Min: 80, Max: 84, Optimal: 82},
		PH:          Range{Min: 5.0, Max: 7.5, Optimal: 6.5},
		Rainfall:    Range{Min: 180, Max: 300, Optimal: 240},
		Description: "High humidity and moderate temperature crop",
	},
	{
		CropID:      "maize",
		Temperature: Range{Min: 18, Max: 27, Optimal: 22},
		Humidity:    Range{Min: 55, Max: 75, Optimal: 65},
		PH:          Range{Min: 5.5, Max: 7.0, Optimal: 6.2},
		Rainfall:    Range{Min: 50, Max: 120, Optimal: 85},
		Description: "Moderate climate versatile crop",
	},
	{
		CropID:      "chickpea",
		Temperature: Range{Min: 20, Max: 30, Optimal: 25},
		Humidity:    Range{Min: 10, Max: 30, Optimal: 20},
		PH:          Range{Min: 6.0, Max: 7.5, Optimal: 6.8},
		Rainfall:    Range{Min: 20, Max: 50, Optimal: 35},
		Description: "Drought-resistant legume for arid climates",
	},
	{
		CropID:      "kidneybeans",
		Temperature: Range{Min: 15, Max: 25, Optimal: 20},
		Humidity:    Range{Min: 18, Max: 25, Optimal: 21},
		PH:          Range{Min: 5.5, Max: 7.0, Optimal: 6.0},
		Rainfall:    Range{Min: 60, Max: 90, Optimal: 75},
		Description: "Cool climate legume with moderate water needs",
	},
	{
		CropID:      "pigeonpeas",
		Temperature: Range{Min: 18, Max: 30, Optimal: 24},
		Humidity:    Range{Min: 30, Max: 50, Optimal: 40},
		PH:          Range{Min: 4.5, Max: 8.5, Optimal: 6.5},
		Rainfall:    Range{Min: 50, Max: 100, Optimal: 75},
		Description: "Hardy legume tolerant to various conditions",
	},
	{
		CropID:      "cotton",
		Temperature: Range{Min: 21, Max: 30, Optimal: 25},
		Humidity:    Range{Min: 50, Max: 80, Optimal: 65},
		PH:          Range{Min: 5.8, Max: 8.0, Optimal: 6.5},
		Rainfall:    Range{Min: 50, Max: 100, Optimal: 75},
		Description: "Warm climate fiber crop",
	},
	{
		CropID:      "papaya",
		Temperature: Range{Min: 22, Max: 26, Optimal: 24},
		Humidity:    Range{Min: 60, Max: 70, Optimal: 65},
		PH:          Range{Min: 4.5, Max: 6.7, Optimal: 5.5},
		Rainfall:    Range{Min: 100, Max: 200, Optimal: 150},
		Description: "Tropical fruit requiring consistent moisture",
	},
	{
		CropID:      "coconut",
		Temperature: Range{Min: 23, Max: 28, Optimal: 25.5},
		Humidity:    Range{Min: 70, Max: 80, Optimal: 75},
		PH:          Range{Min: 5.2, Max: 8.0, Optimal: 6.0},
		Rainfall:    Range{Min: 150, Max: 250, Optimal: 200},
		Description: "Tropical palm requiring high humidity",
	},
}
