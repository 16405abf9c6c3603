// Package geo resolves city names to coordinates and projects them onto the map canvas.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/yashasviy/transfer-map/models"
)

// ErrCityNotFound is returned when a name is absent from the dataset.
var ErrCityNotFound = errors.New("city not found")

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
	Geometry *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// Places is an immutable name index over a set of places.
type Places struct {
	byName map[string]models.Place
}

// NewPlaces indexes places by lower-cased name. Later duplicates win.
func NewPlaces(places []models.Place) *Places {
	p := &Places{byName: make(map[string]models.Place, len(places))}
	for _, pl := range places {
		p.byName[strings.ToLower(pl.Name)] = pl
	}
	return p
}

// LoadFeatureCollection reads named Point features from a GeoJSON
// FeatureCollection. Features of any other geometry are skipped.
func LoadFeatureCollection(r io.Reader) ([]models.Place, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode feature collection: unexpected type %q", fc.Type)
	}

	places := make([]models.Place, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil || f.Geometry.Type != "Point" || f.Properties.Name == "" {
			continue
		}
		var coords []float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, f.Properties.Name, err)
		}
		if len(coords) < 2 {
			return nil, fmt.Errorf("feature %d (%s): point has %d coordinates", i, f.Properties.Name, len(coords))
		}
		places = append(places, models.Place{
			Name:        f.Properties.Name,
			Coordinates: models.Coordinates{coords[0], coords[1]},
		})
	}
	return places, nil
}

// LoadFile opens path and reads it with LoadFeatureCollection.
func LoadFile(path string) ([]models.Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFeatureCollection(f)
}

// Lookup finds the coordinates of name, ignoring case.
func (p *Places) Lookup(name string) (models.Coordinates, error) {
	pl, ok := p.byName[strings.ToLower(name)]
	if !ok {
		return models.Coordinates{}, fmt.Errorf("%w: %s", ErrCityNotFound, name)
	}
	return pl.Coordinates, nil
}

// Names returns the dataset's place names in sorted order.
func (p *Places) Names() []string {
	names := make([]string, 0, len(p.byName))
	for _, pl := range p.byName {
		names = append(names, pl.Name)
	}
	sort.Strings(names)
	return names
}

func (p *Places) Len() int { return len(p.byName) }
