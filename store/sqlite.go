package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/everydev1618/swarm"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store           = (*SQLiteStore)(nil)
	_ swarm.EventSink = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates a SQLite database at the given path.
// The parent directory is created when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Event sinks publish from many goroutines; serialize writers on one connection.
	db.SetMaxOpenConns(1)
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL UNIQUE,
		program     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'running',
		error       TEXT NOT NULL DEFAULT '',
		started_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		type        TEXT NOT NULL,
		node_id     TEXT NOT NULL DEFAULT '',
		procedure   TEXT NOT NULL DEFAULT '',
		kind        TEXT NOT NULL DEFAULT '',
		vehicle     TEXT NOT NULL DEFAULT '',
		branch      INTEGER NOT NULL DEFAULT 0,
		iteration   INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS knowledge (
		run_id   TEXT PRIMARY KEY,
		data     TEXT NOT NULL DEFAULT '{}',
		saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertRun records the start of a run.
func (s *SQLiteStore) InsertRun(r Run) error {
	if r.Status == "" {
		r.Status = StatusRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, program, status, started_at) VALUES (?, ?, ?, ?)`,
		r.RunID, r.Program, r.Status, r.StartedAt,
	)
	return err
}

// FinishRun sets the final status and error of a run.
func (s *SQLiteStore) FinishRun(runID, status, errMsg string) error {
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		status, errMsg, time.Now(), runID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run by id.
func (s *SQLiteStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, program, status, error, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, program, status, error, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var finishedAt sql.NullTime
	if err := sc.Scan(&r.ID, &r.RunID, &r.Program, &r.Status, &r.Error, &r.StartedAt, &finishedAt); err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return r, nil
}

// InsertEvent records a procedure event.
func (s *SQLiteStore) InsertEvent(e swarm.Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO events (run_id, type, node_id, procedure, kind, vehicle, branch, iteration, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, string(e.Type), e.NodeID, e.Procedure, string(e.Kind), e.Vehicle,
		e.Branch, e.Iteration, e.Error, e.Timestamp,
	)
	return err
}

// Publish implements swarm.EventSink. Insert failures are logged and dropped.
func (s *SQLiteStore) Publish(e swarm.Event) {
	if err := s.InsertEvent(e); err != nil {
		slog.Warn("store: insert event failed", "run_id", e.RunID, "type", e.Type, "error", err)
	}
}

// ListEvents returns the events of a run in emission order.
func (s *SQLiteStore) ListEvents(runID string) ([]RunEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, type, node_id, procedure, kind, vehicle, branch, iteration, error, timestamp
		 FROM events WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.NodeID, &e.Procedure, &e.Kind, &e.Vehicle,
			&e.Branch, &e.Iteration, &e.Error, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveKnowledge stores the knowledge a run ended with, replacing any
// earlier snapshot of the same run.
func (s *SQLiteStore) SaveKnowledge(runID string, values map[string]any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO knowledge (run_id, data, saved_at) VALUES (?, ?, ?)`,
		runID, string(data), time.Now(),
	)
	return err
}

// LoadKnowledge returns the knowledge saved for a run.
func (s *SQLiteStore) LoadKnowledge(runID string) (map[string]any, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM knowledge WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode knowledge: %w", err)
	}
	for k, v := range values {
		values[k] = swarm.Normalize(v)
	}
	return values, nil
}

// Stats counts the stored rows.
type Stats struct {
	Runs      int
	Events    int
	Snapshots int
}

// Stats returns the number of runs, events and knowledge snapshots.
func (s *SQLiteStore) Stats() (Stats, error) {
	var st Stats
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"runs", &st.Runs},
		{"events", &st.Events},
		{"knowledge", &st.Snapshots},
	} {
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + c.table).Scan(c.dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

// Reset deletes every run, event and snapshot and compacts the file.
func (s *SQLiteStore) Reset() error {
	for _, table := range []string{"events", "knowledge", "runs"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	_, err := s.db.Exec(`VACUUM`)
	return err
}
