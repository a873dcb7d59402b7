package postgres

import (
	"context"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// AssignmentRepo implements ports.AssignmentRepository with pgx.
type AssignmentRepo struct {
	db *DB
}

// NewAssignmentRepo creates a new AssignmentRepo.
func NewAssignmentRepo(db *DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// Assign records or replaces the team of a zone.
func (r *AssignmentRepo) Assign(ctx context.Context, incidentID string, a domain.SearchZoneAssignment) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO zone_assignments (incident_id, polygon_id, team_id, assigned_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (incident_id, polygon_id) DO UPDATE
		SET team_id = EXCLUDED.team_id, assigned_at = EXCLUDED.assigned_at
	`, incidentID, a.PolygonID, a.TeamID)
	return err
}

// Unassign clears a zone's team.
func (r *AssignmentRepo) Unassign(ctx context.Context, incidentID, polygonID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM zone_assignments WHERE incident_id = $1 AND polygon_id = $2`,
		incidentID, polygonID)
	return err
}

// ListByIncident returns the incident's assignments.
func (r *AssignmentRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.SearchZoneAssignment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT polygon_id, team_id FROM zone_assignments
		WHERE incident_id = $1
		ORDER BY assigned_at, polygon_id
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchZoneAssignment
	for rows.Next() {
		var a domain.SearchZoneAssignment
		if err := rows.Scan(&a.PolygonID, &a.TeamID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
