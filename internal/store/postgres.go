package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/haggle/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Cache using pgxpool.
type PostgresStore struct {
	pool Pool
}

// Statement names. Every pooled connection prepares them in AfterConnect,
// so queries pass the name in place of the SQL text.
const (
	stmtGetReport     = "get_report"
	stmtSetReport     = "set_report"
	stmtDeleteExpired = "delete_expired_reports"
)

var preparedStatements = map[string]string{
	stmtGetReport: `SELECT report FROM price_reports WHERE subject = $1 AND expires_at > now()`,
	stmtSetReport: `INSERT INTO price_reports (id, subject, report, found, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject) DO UPDATE SET report = $3, found = $4, cached_at = $5, expires_at = $6`,
	stmtDeleteExpired: `DELETE FROM price_reports WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price_reports (
	id         UUID PRIMARY KEY,
	subject    TEXT NOT NULL UNIQUE,
	report     JSONB NOT NULL,
	found      BOOLEAN NOT NULL DEFAULT false,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_reports_expires_at ON price_reports(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, subject string) (*model.PriceReport, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx, stmtGetReport, Key(subject)).Scan(&reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get report")
	}

	var r model.PriceReport
	if err := json.Unmarshal(reportJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &r, nil
}

func (s *PostgresStore) SetReport(ctx context.Context, report model.PriceReport, ttl time.Duration) error {
	now := time.Now().UTC()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx, stmtSetReport,
		uuid.New().String(), Key(report.Subject), reportJSON, report.Found, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set report")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, stmtDeleteExpired)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired reports")
	}
	return int(tag.RowsAffected()), nil
}
