// Package store holds the ordered sequence of transfer requests shown on the map.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yashasviy/transfer-map/generator"
	"github.com/yashasviy/transfer-map/models"
)

// ErrEmpty is returned by RemoveRandom when there is nothing to remove.
var ErrEmpty = errors.New("store: no transfer requests to remove")

// Store owns an ordered sequence of transfer requests. Callers create one and
// pass it to whatever triggers mutations; there is no package-level state.
type Store struct {
	mu       sync.Mutex
	gen      *generator.Generator
	requests []models.TransferRequest
}

// New copies initial into a new store; later mutations never touch the
// caller's slice.
func New(gen *generator.Generator, initial []models.TransferRequest) *Store {
	return &Store{
		gen:      gen,
		requests: append([]models.TransferRequest{}, initial...),
	}
}

// RemoveRandom removes a uniformly chosen request and returns it.
func (s *Store) RemoveRandom() (models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return models.TransferRequest{}, ErrEmpty
	}

	i := s.gen.Intn(len(s.requests))
	removed := s.requests[i]
	s.requests = append(s.requests[:i], s.requests[i+1:]...)
	return removed, nil
}

// AddOne appends a freshly generated request whose id is the current length.
func (s *Store) AddOne() (models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.gen.One(len(s.requests), nil)
	if err != nil {
		return models.TransferRequest{}, fmt.Errorf("generate request: %w", err)
	}
	s.requests = append(s.requests, req)
	return req, nil
}

// List returns a copy of the sequence in order.
func (s *Store) List() []models.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransferRequest{}, s.requests...)
}

// Len returns the number of requests currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
