// Package ledger persists run summaries to a local SQLite database so CI
// can track gate history across builds. The ledger sits outside the
// verification pipeline; report envelopes never reference its row ids.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// RunSummary is one persisted verification run.
type RunSummary struct {
	RunID               string
	GeneratedAt         time.Time
	Profile             string
	Mode                string
	VerifierGateOK      bool
	PMRGateOK           bool
	PMRScore            float64
	FindingCount        int
	DedupEventCount     int
	ContractFingerprint string
}

// Store is a SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		profile TEXT NOT NULL,
		mode TEXT NOT NULL,
		verifier_gate_ok INTEGER NOT NULL,
		pmr_gate_ok INTEGER NOT NULL,
		pmr_score REAL NOT NULL,
		finding_count INTEGER NOT NULL,
		dedup_event_count INTEGER NOT NULL,
		contract_fingerprint TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// Record inserts one run summary, assigning a fresh run id when none is
// set, and returns the id.
func (s *Store) Record(ctx context.Context, run *RunSummary) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	query := `INSERT INTO runs (
		run_id, generated_at, profile, mode, verifier_gate_ok, pmr_gate_ok,
		pmr_score, finding_count, dedup_event_count, contract_fingerprint
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.RunID,
		run.GeneratedAt.UTC().Format(time.RFC3339Nano),
		run.Profile,
		run.Mode,
		run.VerifierGateOK,
		run.PMRGateOK,
		run.PMRScore,
		run.FindingCount,
		run.DedupEventCount,
		run.ContractFingerprint,
	)
	if err != nil {
		return "", fmt.Errorf("ledger: record run: %w", err)
	}
	return run.RunID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*RunSummary, error) {
	query := `
	SELECT run_id, generated_at, profile, mode, verifier_gate_ok, pmr_gate_ok,
		pmr_score, finding_count, dedup_event_count, contract_fingerprint
	FROM runs
	ORDER BY generated_at DESC, run_id
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*RunSummary
	for rows.Next() {
		var run RunSummary
		var ts string
		if err := rows.Scan(
			&run.RunID, &ts, &run.Profile, &run.Mode,
			&run.VerifierGateOK, &run.PMRGateOK, &run.PMRScore,
			&run.FindingCount, &run.DedupEventCount, &run.ContractFingerprint,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		if run.GeneratedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("ledger: parse generated_at %q: %w", ts, err)
		}
		out = append(out, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
