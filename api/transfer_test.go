package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashasviy/transfer-map/generator"
	"github.com/yashasviy/transfer-map/geo"
	"github.com/yashasviy/transfer-map/models"
	"github.com/yashasviy/transfer-map/store"
)

func newTestHandler(t *testing.T, initial []models.TransferRequest) (*Handler, *store.Store) {
	t.Helper()
	gen := generator.New(rand.New(rand.NewPCG(5, 8)))
	s := store.New(gen, initial)

	places, err := geo.DefaultPlaces()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(s, gen, geo.NewPlaces(places), geo.UKAlbers(600, 800), logger), s
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := serve(h.Routes(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRequests(t *testing.T) {
	initial := []models.TransferRequest{
		{ID: 0, Amount: 12, Currency: models.Currency, From: "London", To: "Leeds"},
		{ID: 1, Amount: 999, Currency: models.Currency, From: "London", To: "Wick"},
	}
	h, _ := newTestHandler(t, initial)

	rec := serve(h.Routes(), http.MethodGet, "/requests")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.TransferRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, initial, got)
}

func TestAdd(t *testing.T) {
	h, s := newTestHandler(t, nil)

	rec := serve(h.Routes(), http.MethodPost, "/actions/add")
	require.Equal(t, http.StatusCreated, rec.Code)

	var added models.TransferRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, 0, added.ID)
	assert.NotEqual(t, added.From, added.To)
	assert.Equal(t, 1, s.Len())
}

func TestRemove(t *testing.T) {
	initial := []models.TransferRequest{
		{ID: 0, Amount: 1, Currency: models.Currency, From: "Ayr", To: "Bath"},
	}
	h, s := newTestHandler(t, initial)
	routes := h.Routes()

	rec := serve(routes, http.MethodPost, "/actions/remove")
	require.Equal(t, http.StatusOK, rec.Code)

	var removed models.TransferRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removed))
	assert.Equal(t, initial[0], removed)
	assert.Equal(t, 0, s.Len())

	rec = serve(routes, http.MethodPost, "/actions/remove")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"empty"`)
}

func TestActionsRequirePost(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := serve(h.Routes(), http.MethodGet, "/actions/add")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestActionMiddlewareWrapsOnlyActions(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	var hits int
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			next.ServeHTTP(w, r)
		})
	}
	routes := h.Routes(mw)

	serve(routes, http.MethodGet, "/requests")
	serve(routes, http.MethodPost, "/actions/add")
	serve(routes, http.MethodPost, "/actions/remove")

	assert.Equal(t, 2, hits)
}

func TestListLines(t *testing.T) {
	h, _ := newTestHandler(t, []models.TransferRequest{
		{ID: 0, Amount: 5, Currency: models.Currency, From: "london", To: "Edinburgh"},
	})

	rec := serve(h.Routes(), http.MethodGet, "/lines")
	require.Equal(t, http.StatusOK, rec.Code)

	var lines []models.Line
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "london", lines[0].From)
	assert.Equal(t, models.Coordinates{-0.13, 51.51}, lines[0].FromCoordinates)
	assert.Greater(t, lines[0].Y1, lines[0].Y2)
}

func TestListLines_CityNotFound(t *testing.T) {
	h, _ := newTestHandler(t, []models.TransferRequest{
		{ID: 0, Amount: 5, Currency: models.Currency, From: "Atlantis", To: "Leeds"},
	})

	rec := serve(h.Routes(), http.MethodGet, "/lines")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "city not found: Atlantis")
}

func TestListCities(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := serve(h.Routes(), http.MethodGet, "/cities")
	require.Equal(t, http.StatusOK, rec.Code)

	var cities []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cities))
	assert.Equal(t, generator.Cities, cities)
}
