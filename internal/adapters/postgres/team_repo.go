package postgres

import (
	"context"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// TeamRepo implements ports.TeamRepository with pgx.
type TeamRepo struct {
	db *DB
}

// NewTeamRepo creates a new TeamRepo.
func NewTeamRepo(db *DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// Upsert inserts or updates a team of the incident roster.
func (r *TeamRepo) Upsert(ctx context.Context, incidentID string, t *domain.Team) error {
	members := t.Members
	if members == nil {
		members = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO teams (incident_id, id, name, members)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (incident_id, id) DO UPDATE
		SET name = EXCLUDED.name, members = EXCLUDED.members
	`, incidentID, t.ID, t.Name, members)
	return err
}

// ListByIncident returns the roster ordered by name.
func (r *TeamRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.Team, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, members FROM teams
		WHERE incident_id = $1
		ORDER BY name, id
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Members); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
