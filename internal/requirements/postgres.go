package requirements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists submitted requirements in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requirement_submissions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			product TEXT NOT NULL DEFAULT '',
			quantity TEXT NOT NULL DEFAULT '',
			customization TEXT[] NOT NULL DEFAULT '{}',
			lead_time TEXT NOT NULL DEFAULT '',
			incoterms TEXT NOT NULL DEFAULT '',
			shipping TEXT NOT NULL DEFAULT '',
			raw TEXT[] NOT NULL DEFAULT '{}',
			attachments TEXT[] NOT NULL DEFAULT '{}',
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requirement_submissions_session ON requirement_submissions (session_id, submitted_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const selectColumns = `id, session_id, product, quantity, customization, lead_time, incoterms, shipping, raw, attachments, submitted_at`

func (s *PostgresStore) Save(ctx context.Context, record Record) (Record, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now().UTC()
	}
	req := record.Requirements

	_, err := s.pool.Exec(ctx,
		`INSERT INTO requirement_submissions (`+selectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   product = EXCLUDED.product,
		   quantity = EXCLUDED.quantity,
		   customization = EXCLUDED.customization,
		   lead_time = EXCLUDED.lead_time,
		   incoterms = EXCLUDED.incoterms,
		   shipping = EXCLUDED.shipping,
		   raw = EXCLUDED.raw,
		   attachments = EXCLUDED.attachments`,
		record.ID,
		record.SessionID,
		req.Product,
		req.Quantity,
		nonNil(req.Customization),
		req.LeadTime,
		req.Incoterms,
		req.Shipping,
		nonNil(req.Raw),
		nonNil(record.Attachments),
		record.SubmittedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("save requirements: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM requirement_submissions WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get requirements: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM requirement_submissions
		 WHERE ($1 = '' OR session_id = $1)
		 ORDER BY submitted_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, limit)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirements row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.Requirements.Product,
		&r.Requirements.Quantity,
		&r.Requirements.Customization,
		&r.Requirements.LeadTime,
		&r.Requirements.Incoterms,
		&r.Requirements.Shipping,
		&r.Requirements.Raw,
		&r.Attachments,
		&r.SubmittedAt,
	)
	return r, err
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
