package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/imei-gateway/internal/model"
)

// LookupsRepository persists lookup history in MySQL.
type LookupsRepository interface {
	Insert(ctx context.Context, ev model.LookupEvent) error
}

type LookupsRepositoryImpl struct {
	db *sqlx.DB
}

func NewLookupsRepository(db *sqlx.DB) *LookupsRepositoryImpl {
	return &LookupsRepositoryImpl{db: db}
}

var _ LookupsRepository = (*LookupsRepositoryImpl)(nil)

// Insert is idempotent on the event ID, so redelivered Kafka messages are harmless.
func (r *LookupsRepositoryImpl) Insert(ctx context.Context, ev model.LookupEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT IGNORE INTO lookups (id, imei, outcome, cached, simulated, provider_status, duration_ms, created_at)
		VALUES (:id, :imei, :outcome, :cached, :simulated, :provider_status, :duration_ms, :created_at)
	`, ev)
	return err
}
