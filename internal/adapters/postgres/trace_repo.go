package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// TraceRepo implements ports.TraceRepository with pgx.
type TraceRepo struct {
	db *DB
}

// NewTraceRepo creates a new TraceRepo.
func NewTraceRepo(db *DB) *TraceRepo {
	return &TraceRepo{db: db}
}

// Insert stores a trace. Re-inserting the same id is a no-op so both the
// recorder and the import CLI may write it.
func (r *TraceRepo) Insert(ctx context.Context, incidentID string, t *domain.ImportedTrace) error {
	geom, err := json.Marshal(t.Geometry)
	if err != nil {
		return fmt.Errorf("encode trace %s: %w", t.ID, err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO traces (incident_id, id, team_id, team_name, label, source_file_name, uploaded_at, visible, color, geometry)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (incident_id, id) DO NOTHING
	`, incidentID, t.ID, t.TeamID, t.TeamName, t.Label, t.SourceFileName, t.UploadedAt, t.Visible, t.Color, geom)
	return err
}

// Delete removes a trace.
func (r *TraceRepo) Delete(ctx context.Context, incidentID, traceID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM traces WHERE incident_id = $1 AND id = $2`, incidentID, traceID)
	return err
}

// ListByIncident returns traces in upload order.
func (r *TraceRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.ImportedTrace, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, COALESCE(team_id, ''), team_name, label, source_file_name, uploaded_at, visible, color, geometry
		FROM traces
		WHERE incident_id = $1
		ORDER BY uploaded_at, id
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []domain.ImportedTrace
	for rows.Next() {
		var t domain.ImportedTrace
		var geom []byte
		if err := rows.Scan(&t.ID, &t.TeamID, &t.TeamName, &t.Label, &t.SourceFileName,
			&t.UploadedAt, &t.Visible, &t.Color, &geom); err != nil {
			return nil, err
		}
		fc, err := geojson.UnmarshalFeatureCollection(geom)
		if err != nil {
			return nil, fmt.Errorf("decode trace %s geometry: %w", t.ID, err)
		}
		t.Geometry = fc
		traces = append(traces, t)
	}
	return traces, rows.Err()
}
