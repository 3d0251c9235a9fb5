package report

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/johnsiilver/dispatchcost/measure"
	"github.com/johnsiilver/dispatchcost/strategy"
)

// Run is one recorded measurement run.
type Run struct {
	ID        uuid.UUID
	Timestamp time.Time
	Config    measure.Config
	Summaries []measure.Summary
}

// NewRun stamps sums taken with cfg with a new ID and the current time.
func NewRun(cfg measure.Config, sums []measure.Summary) Run {
	return Run{ID: uuid.New(), Timestamp: time.Now().UTC(), Config: cfg, Summaries: sums}
}

// Store keeps the history of runs in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the history database at path and applies migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection, so an in-memory database is the same database for every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		forks INTEGER NOT NULL,
		warmup INTEGER NOT NULL,
		measured INTEGER NOT NULL,
		batch INTEGER NOT NULL,
		workers INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS summaries (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		family INTEGER NOT NULL,
		samples INTEGER NOT NULL,
		score REAL NOT NULL,
		score_error REAL NOT NULL,
		stddev REAL NOT NULL,
		min REAL NOT NULL,
		max REAL NOT NULL,
		unit TEXT NOT NULL,
		forks INTEGER NOT NULL,
		failed_forks INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records r.
func (s *Store) Save(r Run) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		`INSERT INTO runs (id, created_at, forks, warmup, measured, batch, workers) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Timestamp.UnixNano(), r.Config.Forks, r.Config.Warmup, r.Config.Measured, r.Config.Batch, r.Config.Workers,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}

	for i, sum := range r.Summaries {
		_, err = tx.Exec(
			`INSERT INTO summaries (run_id, position, strategy, family, samples, score, score_error, stddev, min, max, unit, forks, failed_forks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), i, sum.Strategy, int(sum.Family), sum.Samples, sum.Mean, sum.Error, sum.StdDev, sum.Min, sum.Max, sum.Unit, sum.Forks, sum.FailedForks,
		)
		if err != nil {
			return fmt.Errorf("failed to save summary %s of run %s: %w", sum.Strategy, r.ID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, forks, warmup, measured, batch, workers FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r  Run
			id string
			ns int64
		)
		if err := rows.Scan(&id, &ns, &r.Config.Forks, &r.Config.Warmup, &r.Config.Measured, &r.Config.Batch, &r.Config.Workers); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run has a bad id %q: %w", id, err)
		}
		r.Timestamp = time.Unix(0, ns).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Summaries, err = s.summaries(runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) summaries(id uuid.UUID) ([]measure.Summary, error) {
	rows, err := s.db.Query(
		`SELECT strategy, family, samples, score, score_error, stddev, min, max, unit, forks, failed_forks
		FROM summaries WHERE run_id = ? ORDER BY position`,
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []measure.Summary
	for rows.Next() {
		var (
			sum    measure.Summary
			family int
		)
		err := rows.Scan(&sum.Strategy, &family, &sum.Samples, &sum.Mean, &sum.Error, &sum.StdDev, &sum.Min, &sum.Max, &sum.Unit, &sum.Forks, &sum.FailedForks)
		if err != nil {
			return nil, err
		}
		sum.Family = strategy.Family(family)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}
