package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/imei-gateway/internal/model"
)

type LookupFilter struct {
	IMEI    string
	Outcome model.Outcome
	Limit   int
	Offset  int
}

// CHLookupsRepository writes and lists lookup history in ClickHouse.
type CHLookupsRepository interface {
	Insert(ctx context.Context, ev model.LookupEvent) error
	List(ctx context.Context, f LookupFilter) ([]model.LookupEvent, error)
}

type chLookupsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHLookupsRepository(ch *sqlx.DB) CHLookupsRepository {
	return &chLookupsRepository{ch: ch}
}

// BuildListQuery renders the filtered, newest-first listing query.
func BuildListQuery(f LookupFilter) (string, []any) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT id, imei, outcome, cached, simulated, provider_status, duration_ms, created_at
		FROM imeigw.lookups
		WHERE 1 = 1
	`
	var args []any

	if f.IMEI != "" {
		q += " AND imei = ?"
		args = append(args, f.IMEI)
	}
	if f.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, f.Outcome.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)
	return q, args
}

func (r *chLookupsRepository) List(ctx context.Context, f LookupFilter) ([]model.LookupEvent, error) {
	q, args := BuildListQuery(f)

	var rows []model.LookupEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert appends one row. Redelivered events collapse on merge
// (ReplacingMergeTree keyed by imei, created_at, id).
func (r *chLookupsRepository) Insert(ctx context.Context, ev model.LookupEvent) error {
	_, err := r.ch.ExecContext(ctx, `
		INSERT INTO imeigw.lookups (id, imei, outcome, cached, simulated, provider_status, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.IMEI, ev.Outcome.String(), ev.Cached, ev.Simulated, uint16(ev.ProviderStatus), ev.DurationMs, ev.CreatedAt.UTC())
	return err
}
