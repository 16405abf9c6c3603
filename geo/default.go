package geo

import (
	"bytes"
	_ "embed"

	"github.com/yashasviy/transfer-map/models"
)

//go:embed uk_places.geojson
var embeddedPlaces []byte

// DefaultPlaces returns the bundled UK city dataset.
func DefaultPlaces() ([]models.Place, error) {
	return LoadFeatureCollection(bytes.NewReader(embeddedPlaces))
}
