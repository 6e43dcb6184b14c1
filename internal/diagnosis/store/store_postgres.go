package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"akashic/internal/diagnosis"
	"akashic/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS diagnoses (
	token      TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	birth_date TEXT NOT NULL,
	result     TEXT NOT NULL,
	tier       TEXT NOT NULL,
	categories JSONB NOT NULL DEFAULT '[]',
	free_text  TEXT NOT NULL DEFAULT '',
	unlocked   BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists diagnosis records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a PostgreSQL-backed store and verifies connectivity, so a
// misconfigured database fails at startup rather than on the first request.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure diagnoses schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, record diagnosis.Record) error {
	categories, err := json.Marshal(record.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnoses (token, name, birth_date, result, tier, categories, free_text, unlocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.Token, record.Name, record.BirthDate, record.Result, string(record.Tier),
		categories, record.FreeText, record.Unlocked, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return translatePG(err, "put diagnosis")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, token string) (diagnosis.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, name, birth_date, result, tier, categories, free_text, unlocked, created_at, updated_at
		FROM diagnoses WHERE token = $1`, token)

	var (
		record     diagnosis.Record
		tier       string
		categories []byte
	)
	err := row.Scan(&record.Token, &record.Name, &record.BirthDate, &record.Result, &tier,
		&categories, &record.FreeText, &record.Unlocked, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return diagnosis.Record{}, sentinel.ErrNotFound
		}
		return diagnosis.Record{}, translatePG(err, "get diagnosis")
	}
	record.Tier = diagnosis.Tier(tier)
	if err := json.Unmarshal(categories, &record.Categories); err != nil {
		return diagnosis.Record{}, fmt.Errorf("unmarshal categories: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) SetUnlocked(ctx context.Context, token string) (bool, error) {
	// Idempotent field flip: the WHERE clause makes re-delivery a no-op and
	// only the first transition refreshes updated_at.
	res, err := s.db.ExecContext(ctx, `
		UPDATE diagnoses SET unlocked = TRUE, updated_at = $2
		WHERE token = $1 AND unlocked = FALSE`, token, time.Now())
	if err != nil {
		return false, translatePG(err, "unlock diagnosis")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock diagnosis rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Zero rows means already unlocked (fine) or unknown token (not found).
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM diagnoses WHERE token = $1)`, token).Scan(&exists); err != nil {
		return false, translatePG(err, "unlock diagnosis existence check")
	}
	if !exists {
		return false, sentinel.ErrNotFound
	}
	return false, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// translatePG wraps driver errors, surfacing connectivity problems as the
// unavailable sentinel so callers can distinguish outage from corruption.
func translatePG(err error, op string) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
