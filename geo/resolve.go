package geo

import (
	"fmt"

	"github.com/yashasviy/transfer-map/models"
)

// Projector maps coordinates to canvas pixels.
type Projector interface {
	Project(models.Coordinates) (x, y float64)
}

// Resolve looks up both endpoints of req and projects them.
func Resolve(places *Places, proj Projector, req models.TransferRequest) (models.Line, error) {
	from, err := places.Lookup(req.From)
	if err != nil {
		return models.Line{}, fmt.Errorf("request %d origin: %w", req.ID, err)
	}
	to, err := places.Lookup(req.To)
	if err != nil {
		return models.Line{}, fmt.Errorf("request %d destination: %w", req.ID, err)
	}

	line := models.Line{
		TransferRequest: req,
		FromCoordinates: from,
		ToCoordinates:   to,
	}
	line.X1, line.Y1 = proj.Project(from)
	line.X2, line.Y2 = proj.Project(to)
	return line, nil
}

// ResolveAll resolves every request, stopping at the first failure.
func ResolveAll(places *Places, proj Projector, reqs []models.TransferRequest) ([]models.Line, error) {
	lines := make([]models.Line, 0, len(reqs))
	for _, r := range reqs {
		l, err := Resolve(places, proj, r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}
