// Package store keeps a history of probe runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hyp3rd/ewrap"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/NodePath81/slotprobe/internal/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	target       TEXT NOT NULL,
	bet          TEXT NOT NULL,
	planned      INTEGER NOT NULL,
	attempted    INTEGER NOT NULL,
	discarded    INTEGER NOT NULL,
	parse_errors INTEGER NOT NULL,
	stop_reason  TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS observations (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	win_amount      TEXT NOT NULL,
	current_balance TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

var (
	ErrRunNotFound = ewrap.New("run not found")
	ErrEmptyRunID  = ewrap.New("run id must not be empty")
)

// RunRecord is one persisted run. Observations is only filled when the
// record is built from a probe result; ListRuns reports ObservationCount.
type RunRecord struct {
	ID               string
	Target           string
	Bet              decimal.Decimal
	Planned          int
	Attempted        int
	Discarded        int
	ParseErrors      int
	StopReason       string
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
	ObservationCount int
	Observations     probe.ObservationSet
}

func NewRunRecord(id, target string, bet decimal.Decimal, res probe.Result) RunRecord {
	rec := RunRecord{
		ID:               id,
		Target:           target,
		Bet:              bet,
		Planned:          res.Planned,
		Attempted:        res.Attempted,
		Discarded:        res.Discarded,
		ParseErrors:      res.ParseErrors,
		StopReason:       string(res.StopReason),
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
		ObservationCount: len(res.Observations),
		Observations:     res.Observations,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, ewrap.Wrap(err, "open history db")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ewrap.Wrap(err, "init history schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes the run and its observations in one transaction.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return ErrEmptyRunID
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ewrap.Wrap(err, "begin")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, target, bet, planned, attempted, discarded, parse_errors, stop_reason, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Target, rec.Bet.String(), rec.Planned, rec.Attempted, rec.Discarded,
		rec.ParseErrors, rec.StopReason, rec.Error, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli())
	if err != nil {
		return ewrap.Wrapf(err, "insert run %s", rec.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations (run_id, seq, win_amount, current_balance) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return ewrap.Wrap(err, "prepare observation insert")
	}
	defer func() {
		_ = stmt.Close()
	}()
	for i, o := range rec.Observations {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, o.WinAmount.String(), o.CurrentBalance.String()); err != nil {
			return ewrap.Wrapf(err, "insert observation %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return ewrap.Wrap(err, "commit")
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.target, r.bet, r.planned, r.attempted, r.discarded,
			r.parse_errors, r.stop_reason, r.error, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM observations o WHERE o.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.id LIMIT ?`, limit)
	if err != nil {
		return nil, ewrap.Wrap(err, "query runs")
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                 RunRecord
			bet                 string
			startedMs, finished int64
		)
		if err := rows.Scan(&rec.ID, &rec.Target, &bet, &rec.Planned, &rec.Attempted, &rec.Discarded,
			&rec.ParseErrors, &rec.StopReason, &rec.Error, &startedMs, &finished, &rec.ObservationCount); err != nil {
			return nil, ewrap.Wrap(err, "scan run")
		}
		rec.Bet, err = decimal.NewFromString(bet)
		if err != nil {
			return nil, ewrap.Wrapf(err, "run %s bet", rec.ID)
		}
		rec.StartedAt = time.UnixMilli(startedMs)
		rec.FinishedAt = time.UnixMilli(finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ewrap.Wrap(err, "iterate runs")
	}
	return out, nil
}

// Observations returns a run's observations in call order.
func (s *Store) Observations(ctx context.Context, runID string) (probe.ObservationSet, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, ewrap.Wrap(err, "lookup run")
	}
	if exists == 0 {
		return nil, ewrap.Wrapf(ErrRunNotFound, "%s", runID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT win_amount, current_balance FROM observations WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, ewrap.Wrap(err, "query observations")
	}
	defer func() {
		_ = rows.Close()
	}()

	set := probe.ObservationSet{}
	for rows.Next() {
		var win, balance string
		if err := rows.Scan(&win, &balance); err != nil {
			return nil, ewrap.Wrap(err, "scan observation")
		}
		w, err := decimal.NewFromString(win)
		if err != nil {
			return nil, ewrap.Wrap(err, "parse win_amount")
		}
		b, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, ewrap.Wrap(err, "parse current_balance")
		}
		set = append(set, probe.Observation{WinAmount: w, CurrentBalance: b})
	}
	if err := rows.Err(); err != nil {
		return nil, ewrap.Wrap(err, "iterate observations")
	}
	return set, nil
}
