package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/harunnryd/mockview/pkg/report"
)

const createReportsTable = `CREATE TABLE IF NOT EXISTS interview_reports (
	session_id TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	overall_score DOUBLE PRECISION NOT NULL,
	report JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

const insertReport = `INSERT INTO interview_reports (session_id, role, overall_score, report, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO NOTHING`

const selectReport = `SELECT report FROM interview_reports WHERE session_id = $1`

// PostgresStore writes reports into the interview_reports table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("archive: postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createReportsTable); err != nil {
		return nil, fmt.Errorf("create interview_reports: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Save(ctx context.Context, r report.Report) error {
	data, err := json.Marshal(scrub(r))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertReport,
		r.SessionID, r.Role, r.Assessment.Scores.Overall, string(data), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (report.Report, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, selectReport, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, ErrNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("select report: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return report.Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ report.Sink = (*PostgresStore)(nil)
