package models

// Currency is the symbol every generated transfer is denominated in.
const Currency = "£"

// TransferRequest is a synthetic money transfer between two cities
type TransferRequest struct {
	ID       int    `json:"id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Pin fixes one or both endpoints of a generated request.
// An empty field is sampled randomly.
type Pin struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Coordinates is a [longitude, latitude] pair in GeoJSON order
type Coordinates [2]float64

func (c Coordinates) Longitude() float64 { return c[0] }
func (c Coordinates) Latitude() float64  { return c[1] }

// Place is a named point from the geographic dataset
type Place struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// Line is a transfer request with both endpoints resolved and projected
// onto the map canvas.
type Line struct {
	TransferRequest
	FromCoordinates Coordinates `json:"fromCoordinates"`
	ToCoordinates   Coordinates `json:"toCoordinates"`
	X1              float64     `json:"x1"`
	Y1              float64     `json:"y1"`
	X2              float64     `json:"x2"`
	Y2              float64     `json:"y2"`
}
