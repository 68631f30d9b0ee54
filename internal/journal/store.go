package journal

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/cloudblocks/internal/placement"
	"github.com/banshee-data/cloudblocks/internal/timeutil"
)

// Run is one placement run.
type Run struct {
	RunID       string
	SourcePath  string
	Fingerprint uint64
	CellSize    float64
	Threshold   int
	Origin      [3]float64
	PointCount  int
	Planned     int
	Placed      int
	Failed      int
	Skipped     int
	State       string
	Error       string
	StartedAt   int64  // unix nanoseconds
	FinishedAt  *int64 // nil while the run is in progress
}

// Placement is one journaled command.
type Placement struct {
	RunID      string
	Seq        int
	X, Y, Z    int
	Block      string
	PointCount int
	MeanL      float64
	MeanA      float64
	MeanB      float64
	Outcome    placement.Outcome
	Reply      string
	RecordedAt int64
}

// Store provides persistence for runs and their placements.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewStore creates a Store. A nil clock uses the real clock.
func NewStore(db *DB, clock timeutil.Clock) *Store {
	return &Store{db: db.DB, clock: timeutil.OrReal(clock)}
}

// fingerprints are stored as fixed-width hex so the full uint64 range
// survives SQLite's signed integers.
func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

func parseFingerprint(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// StartRun inserts run in state "connecting". If run.RunID is empty, a new
// UUID is generated.
func (s *Store) StartRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.State == "" {
		run.State = placement.Connecting.String()
	}
	run.StartedAt = s.clock.Now().UnixNano()

	_, err := s.db.Exec(`
		INSERT INTO runs (
			run_id, source_path, fingerprint, cell_size, threshold,
			origin_x, origin_y, origin_z, point_count, state, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.SourcePath, formatFingerprint(run.Fingerprint), run.CellSize, run.Threshold,
		run.Origin[0], run.Origin[1], run.Origin[2], run.PointCount, run.State, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and state of a run. runErr may be nil.
func (s *Store) FinishRun(sum placement.Summary, runErr error) error {
	finished := s.clock.Now().UnixNano()
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET planned = ?, placed = ?, failed = ?, skipped = ?,
		    state = ?, error = ?, finished_at = ?
		WHERE run_id = ?
	`,
		sum.Planned, sum.Placed, sum.Failed, sum.Skipped,
		sum.State.String(), errText, finished, sum.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: run %s not found", sum.RunID)
	}
	return nil
}

const runColumns = `
	run_id, source_path, fingerprint, cell_size, threshold,
	origin_x, origin_y, origin_z, point_count, planned, placed, failed, skipped,
	state, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var fp string
	var errText sql.NullString
	var finished sql.NullInt64
	err := row.Scan(
		&r.RunID, &r.SourcePath, &fp, &r.CellSize, &r.Threshold,
		&r.Origin[0], &r.Origin[1], &r.Origin[2], &r.PointCount,
		&r.Planned, &r.Placed, &r.Failed, &r.Skipped,
		&r.State, &errText, &r.StartedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	if r.Fingerprint, err = parseFingerprint(fp); err != nil {
		return nil, fmt.Errorf("parse fingerprint %q: %w", fp, err)
	}
	if errText.Valid {
		r.Error = errText.String
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return r, nil
}

// GetRun returns one run, or sql.ErrNoRows.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryRuns(query, args...)
}

// RunsForFingerprint returns earlier runs of the same source bytes, most
// recent first.
func (s *Store) RunsForFingerprint(fp uint64) ([]*Run, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM runs WHERE fingerprint = ? ORDER BY started_at DESC`,
		formatFingerprint(fp))
}

func (s *Store) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Placements returns the journaled commands of a run in plan order.
func (s *Store) Placements(runID string) ([]*Placement, error) {
	rows, err := s.db.Query(`
		SELECT run_id, seq, x, y, z, block, point_count,
		       mean_l, mean_a, mean_b, outcome, reply, recorded_at
		FROM placements
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	defer rows.Close()

	var out []*Placement
	for rows.Next() {
		p := &Placement{}
		var outcome string
		var reply sql.NullString
		if err := rows.Scan(&p.RunID, &p.Seq, &p.X, &p.Y, &p.Z, &p.Block, &p.PointCount,
			&p.MeanL, &p.MeanA, &p.MeanB, &outcome, &reply, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		p.Outcome = placement.Outcome(outcome)
		if reply.Valid {
			p.Reply = reply.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BlockUsage counts placed blocks per block id for a run.
func (s *Store) BlockUsage(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT block, COUNT(*)
		FROM placements
		WHERE run_id = ? AND outcome = ?
		GROUP BY block
	`, runID, string(placement.OutcomePlaced))
	if err != nil {
		return nil, fmt.Errorf("block usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var block string
		var n int
		if err := rows.Scan(&block, &n); err != nil {
			return nil, fmt.Errorf("scan block usage: %w", err)
		}
		usage[block] = n
	}
	return usage, rows.Err()
}

// Recorder journals the commands of one run. It satisfies placement.Journal.
type Recorder struct {
	store *Store
	runID string
	mu    sync.Mutex
}

// Recorder returns a command sink bound to runID.
func (s *Store) Recorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// RecordCommand inserts one placement row.
func (r *Recorder) RecordCommand(cmd placement.Command, outcome placement.Outcome, reply string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replyText sql.NullString
	if reply != "" {
		replyText = sql.NullString{String: reply, Valid: true}
	}
	_, err := r.store.db.Exec(`
		INSERT INTO placements (
			run_id, seq, x, y, z, block, point_count,
			mean_l, mean_a, mean_b, outcome, reply, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.runID, cmd.Seq, cmd.X, cmd.Y, cmd.Z, cmd.Block, cmd.PointCount,
		float64(cmd.Mean.L), float64(cmd.Mean.A), float64(cmd.Mean.B),
		string(outcome), replyText, r.store.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert placement %d: %w", cmd.Seq, err)
	}
	return nil
}
