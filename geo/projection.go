package geo

import (
	"math"

	"github.com/yashasviy/transfer-map/models"
)

const radians = math.Pi / 180

// Albers is a conic equal-area projection with a longitudinal rotation,
// centered and scaled onto a pixel canvas.
type Albers struct {
	rotate float64 // degrees added to longitude
	k      float64
	dx, dy float64

	n, c, rho0 float64
}

// AlbersConfig holds the projection parameters in degrees and pixels.
type AlbersConfig struct {
	Center    models.Coordinates
	Rotate    float64
	Parallels [2]float64
	Scale     float64
	Translate [2]float64
}

// UKAlbers returns the projection used for a width×height map of the UK.
func UKAlbers(width, height float64) *Albers {
	return NewAlbers(AlbersConfig{
		Center:    models.Coordinates{0, 55.4},
		Rotate:    4.4,
		Parallels: [2]float64{50, 60},
		Scale:     4000,
		Translate: [2]float64{width / 2, height / 2},
	})
}

func NewAlbers(cfg AlbersConfig) *Albers {
	sin0 := math.Sin(cfg.Parallels[0] * radians)
	n := (sin0 + math.Sin(cfg.Parallels[1]*radians)) / 2
	c := 1 + sin0*(2*n-sin0)

	a := &Albers{
		rotate: cfg.Rotate,
		k:      cfg.Scale,
		n:      n,
		c:      c,
		rho0:   math.Sqrt(c) / n,
	}

	// The center is given in the rotated frame.
	cx, cy := a.raw(cfg.Center[0]*radians, cfg.Center[1]*radians)
	a.dx = cfg.Translate[0] - cx*a.k
	a.dy = cfg.Translate[1] + cy*a.k
	return a
}

// Project maps a [longitude, latitude] pair to canvas pixels.
func (a *Albers) Project(p models.Coordinates) (x, y float64) {
	lambda := wrapLongitude((p[0] + a.rotate) * radians)
	rx, ry := a.raw(lambda, p[1]*radians)
	return rx*a.k + a.dx, a.dy - ry*a.k
}

func (a *Albers) raw(lambda, phi float64) (float64, float64) {
	rho := math.Sqrt(a.c-2*a.n*math.Sin(phi)) / a.n
	lambda *= a.n
	return rho * math.Sin(lambda), a.rho0 - rho*math.Cos(lambda)
}

func wrapLongitude(lambda float64) float64 {
	if lambda > math.Pi {
		return lambda - 2*math.Pi
	}
	if lambda < -math.Pi {
		return lambda + 2*math.Pi
	}
	return lambda
}
