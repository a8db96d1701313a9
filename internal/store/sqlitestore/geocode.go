package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
)

// GetGeocode returns the cached row for a normalized place text, if any.
func (s *Store) GetGeocode(ctx context.Context, placeText string) (*model.PlaceGeocode, error) {
	var g model.PlaceGeocode
	var status string
	var geocodedAt sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT place_text, lat, lng, display_name, status, geocoded_at FROM place_geocode WHERE place_text = ?
	`, placeText)
	if err := row.Scan(&g.PlaceText, &g.Lat, &g.Lng, &g.DisplayName, &status, &geocodedAt); err != nil {
		return nil, kinderr.WrapDB("get_geocode", placeText, err)
	}
	g.Status = model.GeocodeStatus(status)
	if geocodedAt.Valid {
		g.GeocodedAt = geocodedAt.Time
	}
	return &g, nil
}

// PutGeocode upserts a geocode row.
func (s *Store) PutGeocode(ctx context.Context, g model.PlaceGeocode) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO place_geocode (place_text, lat, lng, display_name, status, geocoded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(place_text) DO UPDATE SET
				lat = excluded.lat,
				lng = excluded.lng,
				display_name = excluded.display_name,
				status = excluded.status,
				geocoded_at = excluded.geocoded_at
		`, g.PlaceText, g.Lat, g.Lng, g.DisplayName, string(g.Status), g.GeocodedAt)
		if err != nil {
			return kinderr.WrapDB("put_geocode", g.PlaceText, err)
		}
		return nil
	})
}

// ResetNotFound resets every not_found row to pending, returning the number of rows reset.
func (s *Store) ResetNotFound(ctx context.Context) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE place_geocode SET status = 'pending' WHERE status = 'not_found'
		`)
		if err != nil {
			return kinderr.WrapDB("reset_not_found", "", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}
