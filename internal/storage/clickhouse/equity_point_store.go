package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// EquityPointStore implements storage.EquityPointStore using ClickHouse.
type EquityPointStore struct {
	conn *Conn
}

// NewEquityPointStore creates a new EquityPointStore.
func NewEquityPointStore(conn *Conn) *EquityPointStore {
	return &EquityPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityPointStore = (*EquityPointStore)(nil)

// InsertBulk adds an equity curve. Fails entire batch on duplicate
// (run_id, step, column). MergeTree does not enforce uniqueness, so
// duplicates are checked explicitly before the batch insert.
func (s *EquityPointStore) InsertBulk(ctx context.Context, points []*domain.EquityPoint) (err error) {
	defer func(start time.Time) { observeQuery("equity_points_insert_bulk", start, err) }(time.Now())

	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID  string
		step   int
		column int
	}
	seen := make(map[key]struct{}, len(points))
	runs := make(map[string]struct{})
	for _, p := range points {
		k := key{p.RunID, p.Step, p.Column}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[p.RunID] = struct{}{}
	}

	// A curve is written once per run, so a single existence check per run
	// replaces a per-point lookup.
	for runID := range runs {
		exists, err := s.runExists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_points (
			run_id, step, column_idx, price, cash, position, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, uint32(p.Step), uint32(p.Column),
			p.Price, p.Cash, p.Position, p.Value,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by (step, column) ASC.
func (s *EquityPointStore) GetByRunID(ctx context.Context, runID string) (points []*domain.EquityPoint, err error) {
	defer func(start time.Time) { observeQuery("equity_points_get_by_run_id", start, err) }(time.Now())

	query := `
		SELECT run_id, step, column_idx, price, cash, position, value
		FROM equity_points
		WHERE run_id = ?
		ORDER BY step ASC, column_idx ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get equity points by run id: %w", err)
	}
	defer rows.Close()

	return scanEquityPoints(rows)
}

// GetByColumn retrieves a single column's curve for a run, ordered by step ASC.
func (s *EquityPointStore) GetByColumn(ctx context.Context, runID string, column int) (points []*domain.EquityPoint, err error) {
	defer func(start time.Time) { observeQuery("equity_points_get_by_column", start, err) }(time.Now())

	query := `
		SELECT run_id, step, column_idx, price, cash, position, value
		FROM equity_points
		WHERE run_id = ? AND column_idx = ?
		ORDER BY step ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, uint32(column))
	if err != nil {
		return nil, fmt.Errorf("get equity points by column: %w", err)
	}
	defer rows.Close()

	return scanEquityPoints(rows)
}

func (s *EquityPointStore) runExists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM equity_points WHERE run_id = ?`, runID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEquityPoints(rows driver.Rows) ([]*domain.EquityPoint, error) {
	var points []*domain.EquityPoint

	for rows.Next() {
		var p domain.EquityPoint
		var step, column uint32

		err := rows.Scan(&p.RunID, &step, &column, &p.Price, &p.Cash, &p.Position, &p.Value)
		if err != nil {
			return nil, fmt.Errorf("scan equity point row: %w", err)
		}

		p.Step = int(step)
		p.Column = int(column)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity point rows: %w", err)
	}

	return points, nil
}
