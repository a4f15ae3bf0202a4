package persist

import (
	"context"
	"fmt"
	"time"
)

// FrameStatsRow is one flush interval's solver aggregates.
type FrameStatsRow struct {
	RecordedAt     time.Time
	SimName        string
	Frames         int64
	Iterations     int64
	CapHits        int64
	DroppedSeconds float64
	WallHits       int64
	Collisions     int64
	Overflows      int64
	Despawned      int64
	Entities       int32
}

// StatsRepo writes and reads the frame_stats table.
type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Insert writes a batch of rows in a single transaction.
func (r *StatsRepo) Insert(ctx context.Context, rows []FrameStatsRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("frame_stats begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frame_stats (recorded_at, sim_name, frames, iterations, cap_hits,
			                          dropped_seconds, wall_hits, collisions, overflows, despawned, entities)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.RecordedAt, s.SimName, s.Frames, s.Iterations, s.CapHits,
			s.DroppedSeconds, s.WallHits, s.Collisions, s.Overflows, s.Despawned, s.Entities,
		); err != nil {
			return fmt.Errorf("frame_stats insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Recent returns the newest rows, newest first.
func (r *StatsRepo) Recent(ctx context.Context, limit int) ([]FrameStatsRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT recorded_at, sim_name, frames, iterations, cap_hits,
		        dropped_seconds, wall_hits, collisions, overflows, despawned, entities
		 FROM frame_stats ORDER BY recorded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("frame_stats query: %w", err)
	}
	defer rows.Close()

	var out []FrameStatsRow
	for rows.Next() {
		var s FrameStatsRow
		if err := rows.Scan(&s.RecordedAt, &s.SimName, &s.Frames, &s.Iterations, &s.CapHits,
			&s.DroppedSeconds, &s.WallHits, &s.Collisions, &s.Overflows, &s.Despawned, &s.Entities); err != nil {
			return nil, fmt.Errorf("frame_stats scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
