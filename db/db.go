package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/yashasviy/transfer-map/models"
)

// Open connects to Postgres through the pgx stdlib driver and pings it.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Initialize creates the places table.
func Initialize(ctx context.Context, db *sql.DB) error {
	// Name is the lookup key; the service matches it case-insensitively.
	queryPlaces := `
	CREATE TABLE IF NOT EXISTS places (
		name TEXT PRIMARY KEY,
		longitude DOUBLE PRECISION NOT NULL,
		latitude DOUBLE PRECISION NOT NULL
	);`

	if _, err := db.ExecContext(ctx, queryPlaces); err != nil {
		return fmt.Errorf("create places table: %w", err)
	}
	return nil
}

// SeedPlaces upserts places in a single transaction.
func SeedPlaces(ctx context.Context, db *sql.DB, places []models.Place) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() // no-op if already committed

	for _, p := range places {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO places (name, longitude, latitude) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET longitude = EXCLUDED.longitude, latitude = EXCLUDED.latitude`,
			p.Name, p.Coordinates.Longitude(), p.Coordinates.Latitude())
		if err != nil {
			return fmt.Errorf("seed place %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.Debug("Seeded places", slog.Int("count", len(places)))
	return nil
}

// LoadPlaces reads every place ordered by name.
func LoadPlaces(ctx context.Context, db *sql.DB) ([]models.Place, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, longitude, latitude FROM places ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	var places []models.Place
	for rows.Next() {
		var p models.Place
		if err := rows.Scan(&p.Name, &p.Coordinates[0], &p.Coordinates[1]); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return places, nil
}
