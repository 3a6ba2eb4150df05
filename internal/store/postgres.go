package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists explanation batches in Postgres.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS explanations (
//	    batch_id         TEXT NOT NULL,
//	    seq              INT NOT NULL,
//	    instance_id      TEXT NOT NULL,
//	    label            TEXT NOT NULL,
//	    feature          TEXT NOT NULL,
//	    weight           DOUBLE PRECISION NOT NULL,
//	    model_fit        DOUBLE PRECISION NOT NULL,
//	    model_prediction DOUBLE PRECISION NOT NULL,
//	    expires_at       TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (batch_id, seq)
//	);
//	CREATE INDEX IF NOT EXISTS explanations_expiry ON explanations (expires_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	ps := &PostgresStore{pool: pool}
	if err := ps.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS explanations (
			batch_id         TEXT NOT NULL,
			seq              INT NOT NULL,
			instance_id      TEXT NOT NULL,
			label            TEXT NOT NULL,
			feature          TEXT NOT NULL,
			weight           DOUBLE PRECISION NOT NULL,
			model_fit        DOUBLE PRECISION NOT NULL,
			model_prediction DOUBLE PRECISION NOT NULL,
			expires_at       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (batch_id, seq)
		)`)
	if err != nil {
		return fmt.Errorf("create explanations table: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS explanations_expiry ON explanations (expires_at)`)
	if err != nil {
		return fmt.Errorf("create expiry index: %w", err)
	}
	return nil
}

func (p *PostgresStore) Put(ctx context.Context, batchID string, recs []Record, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)

	batch := &pgx.Batch{}
	for i, rec := range recs {
		batch.Queue(`
			INSERT INTO explanations
				(batch_id, seq, instance_id, label, feature, weight, model_fit, model_prediction, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (batch_id, seq) DO NOTHING`,
			batchID, i, rec.InstanceID, rec.Label, rec.Feature,
			rec.Weight, rec.ModelFit, rec.ModelPrediction, expiresAt)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert explanation row: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, batchID string) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT instance_id, label, feature, weight, model_fit, model_prediction
		FROM explanations
		WHERE batch_id = $1 AND expires_at > now()
		ORDER BY seq`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query explanations: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.InstanceID, &r.Label, &r.Feature, &r.Weight, &r.ModelFit, &r.ModelPrediction); err != nil {
			return nil, fmt.Errorf("scan explanation row: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Cleanup removes expired rows; intended for a periodic background sweep.
func (p *PostgresStore) Cleanup(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM explanations WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired explanations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
