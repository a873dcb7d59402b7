package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// PointZeroRepo implements ports.PointZeroRepository with pgx.
type PointZeroRepo struct {
	db *DB
}

// NewPointZeroRepo creates a new PointZeroRepo.
func NewPointZeroRepo(db *DB) *PointZeroRepo {
	return &PointZeroRepo{db: db}
}

// Save stores the incident's PointZero, replacing the previous one.
func (r *PointZeroRepo) Save(ctx context.Context, incidentID string, pz *domain.PointZero) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO point_zero (incident_id, lat, lng, address, locked, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (incident_id) DO UPDATE
		SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, address = EXCLUDED.address,
		    locked = EXCLUDED.locked, updated_at = EXCLUDED.updated_at
	`, incidentID, pz.Position.Lat, pz.Position.Lng, pz.Address, pz.Locked)
	return err
}

// Get returns nil, nil when the incident has no PointZero.
func (r *PointZeroRepo) Get(ctx context.Context, incidentID string) (*domain.PointZero, error) {
	var pz domain.PointZero
	err := r.db.Pool.QueryRow(ctx, `
		SELECT lat, lng, address, locked FROM point_zero WHERE incident_id = $1
	`, incidentID).Scan(&pz.Position.Lat, &pz.Position.Lng, &pz.Address, &pz.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pz, nil
}
