package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/haggle/internal/model"
)

// SQLiteStore implements Cache using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS price_reports (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL UNIQUE,
	report     TEXT NOT NULL,
	found      INTEGER NOT NULL DEFAULT 0,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_reports_expires_at ON price_reports(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetReport(ctx context.Context, subject string) (*model.PriceReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM price_reports WHERE subject = ? AND expires_at > ?`,
		Key(subject), s.now().UTC().Unix(),
	)

	var reportJSON string
	err := row.Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get report")
	}

	var r model.PriceReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &r, nil
}

func (s *SQLiteStore) SetReport(ctx context.Context, report model.PriceReport, ttl time.Duration) error {
	now := s.now().UTC()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO price_reports (id, subject, report, found, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET report = excluded.report, found = excluded.found,
		 cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), Key(report.Subject), string(reportJSON), report.Found,
		now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set report")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_reports WHERE expires_at <= ?`, s.now().UTC().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired reports")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
