package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// ShapeRepo implements ports.ShapeRepository with pgx. The full shape is
// stored as jsonb next to the columns the queries filter on.
type ShapeRepo struct {
	db *DB
}

// NewShapeRepo creates a new ShapeRepo.
func NewShapeRepo(db *DB) *ShapeRepo {
	return &ShapeRepo{db: db}
}

// Upsert inserts or replaces a shape.
func (r *ShapeRepo) Upsert(ctx context.Context, incidentID string, s *domain.Shape) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode shape %s: %w", s.ID, err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO shapes (incident_id, id, kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (incident_id, id) DO UPDATE
		SET kind = EXCLUDED.kind, body = EXCLUDED.body
	`, incidentID, s.ID, string(s.Kind), body, s.CreatedAt)
	return err
}

// Delete removes a shape and any zone assignment pointing at it.
func (r *ShapeRepo) Delete(ctx context.Context, incidentID, shapeID string) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM zone_assignments WHERE incident_id = $1 AND polygon_id = $2`,
			incidentID, shapeID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM shapes WHERE incident_id = $1 AND id = $2`, incidentID, shapeID)
		return err
	})
}

// DeleteAll removes every shape and assignment of an incident.
func (r *ShapeRepo) DeleteAll(ctx context.Context, incidentID string) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM zone_assignments WHERE incident_id = $1`, incidentID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM shapes WHERE incident_id = $1`, incidentID)
		return err
	})
}

// ListByIncident returns shapes in creation order.
func (r *ShapeRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.Shape, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT body FROM shapes
		WHERE incident_id = $1
		ORDER BY created_at, id
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shapes []domain.Shape
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var s domain.Shape
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("decode shape: %w", err)
		}
		shapes = append(shapes, s)
	}
	return shapes, rows.Err()
}
