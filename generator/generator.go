// Package generator produces synthetic transfer requests between cities.
package generator

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/yashasviy/transfer-map/models"
)

// MaxAmount is the exclusive upper bound of a generated amount
const MaxAmount = 1000

var (
	ErrNegativeCount        = errors.New("generator: count must not be negative")
	ErrPinnedEndpointsEqual = errors.New("generator: pinned origin and destination are the same city")
	ErrTooFewCities         = errors.New("generator: at least two cities are required")
)

// Generator draws requests from a fixed city set. The random source is
// guarded so a single Generator can be shared between handlers.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cities []string
}

// New returns a Generator over the default city set.
func New(rng *rand.Rand) *Generator {
	g, _ := NewWithCities(rng, Cities)
	return g
}

// NewWithCities returns a Generator over a custom city set.
func NewWithCities(rng *rand.Rand, cities []string) (*Generator, error) {
	distinct := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		distinct[strings.ToLower(c)] = struct{}{}
	}
	if len(distinct) < 2 {
		return nil, ErrTooFewCities
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		rng:    rng,
		cities: append([]string(nil), cities...),
	}, nil
}

// Cities returns a copy of the generator's city set.
func (g *Generator) Cities() []string {
	return append([]string(nil), g.cities...)
}

// Generate builds count requests with ids 0..count-1.
func (g *Generator) Generate(count int, pin *models.Pin) ([]models.TransferRequest, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}
	p, err := g.normalize(pin)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.TransferRequest, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.build(i, p))
	}
	return out, nil
}

// One builds a single request with the given id.
func (g *Generator) One(id int, pin *models.Pin) (models.TransferRequest, error) {
	p, err := g.normalize(pin)
	if err != nil {
		return models.TransferRequest{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.build(id, p), nil
}

// Intn returns a uniform integer in [0, n) from the generator's source.
func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) normalize(pin *models.Pin) (models.Pin, error) {
	if pin == nil {
		return models.Pin{}, nil
	}
	p := models.Pin{
		From: canonical(g.cities, pin.From),
		To:   canonical(g.cities, pin.To),
	}
	if p.From != "" && p.To != "" && strings.EqualFold(p.From, p.To) {
		return models.Pin{}, ErrPinnedEndpointsEqual
	}
	return p, nil
}

// build must be called with mu held.
func (g *Generator) build(id int, pin models.Pin) models.TransferRequest {
	var from, to string
	for {
		from, to = pin.From, pin.To
		if from == "" {
			from = g.cities[g.rng.IntN(len(g.cities))]
		}
		if to == "" {
			to = g.cities[g.rng.IntN(len(g.cities))]
		}
		if !strings.EqualFold(from, to) {
			break
		}
	}
	return models.TransferRequest{
		ID:       id,
		Amount:   g.rng.IntN(MaxAmount),
		Currency: models.Currency,
		From:     from,
		To:       to,
	}
}
