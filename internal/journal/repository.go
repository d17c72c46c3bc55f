package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// Transition is one recorded state change.
type Transition struct {
	ID        int64
	Device    string
	State     string
	Source    string
	CreatedAt time.Time
}

// Decision is one recorded presence cycle outcome.
type Decision struct {
	ID            int64
	Outcome       string
	PositiveCount int
	DurationMS    int64
	CreatedAt     time.Time
}

// Repository writes and reads the journal tables.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a journal repository over an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordTransition appends one state change.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - device: What changed (gate, light, camera_connected, ...)
//   - state: The new value
//   - source: Which actor drove the change (device, chat, voice)
func (r *Repository) RecordTransition(ctx context.Context, device, state, source string) error {
	if device == "" {
		return fmt.Errorf("device is required")
	}
	if source == "" {
		source = "device"
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO state_transitions (device, state, source) VALUES (?, ?, ?)",
		device, state, source,
	)
	if err != nil {
		return fmt.Errorf("inserting state transition: %w", err)
	}
	return nil
}

// RecordDecision appends one presence cycle outcome.
func (r *Repository) RecordDecision(ctx context.Context, outcome string, positiveCount int, duration time.Duration) error {
	if outcome == "" {
		return fmt.Errorf("outcome is required")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO decisions (outcome, positive_count, duration_ms) VALUES (?, ?, ?)",
		outcome, positiveCount, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

// Transitions returns recent transitions for one device, newest first.
func (r *Repository) Transitions(ctx context.Context, device string, limit int) ([]Transition, error) {
	if device == "" {
		return nil, fmt.Errorf("device is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device, state, source, created_at
		 FROM state_transitions
		 WHERE device = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		device, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state transitions: %w", err)
	}
	defer rows.Close()

	out := make([]Transition, 0, limit)
	for rows.Next() {
		var tr Transition
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.Device, &tr.State, &tr.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state transition: %w", err)
		}
		if tr.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state transitions: %w", err)
	}
	return out, nil
}

// Decisions returns recent presence outcomes, newest first.
func (r *Repository) Decisions(ctx context.Context, limit int) ([]Decision, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, outcome, positive_count, duration_ms, created_at
		 FROM decisions
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	out := make([]Decision, 0, limit)
	for rows.Next() {
		var d Decision
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Outcome, &d.PositiveCount, &d.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}
	return out, nil
}

// Prune deletes journal rows older than the given retention window.
//
// Returns:
//   - int64: Total rows deleted across both tables
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02T15:04:05Z")

	var total int64
	for _, table := range []string{"state_transitions", "decisions"} {
		result, err := r.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", table), //nolint:gosec // table names are fixed constants
			cutoff,
		)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// parseTimestamp parses a created_at value stored by SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}
