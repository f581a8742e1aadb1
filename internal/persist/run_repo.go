package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FrameStats is one sampled frame of a run.
type FrameStats struct {
	Frame          uint64
	Entities       int
	Ships          int
	PendingDestroy int
	OverflowBlocks int
	TreeNodes      int
	TreeLeaves     int
	TreeDepth      int
	TreeSplits     int
	TreeMerges     int
	Spawned        int
	Expired        int
}

// RunRepo records simulation runs and their sampled frame statistics.
type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// StartRun inserts a new run row and returns its id.
func (r *RunRepo) StartRun(ctx context.Context, name string, seed uint64, scenario string) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("run id: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO sim_runs (id, name, seed, scenario) VALUES ($1, $2, $3, $4)`,
		id.String(), name, int64(seed), scenario,
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordFrames writes a batch of frame rows in a single transaction.
func (r *RunRepo) RecordFrames(ctx context.Context, run uuid.UUID, frames []FrameStats) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("frame stats begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range frames {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frame_stats (run_id, frame, entities, ships, pending_destroy, overflow_blocks,
			     tree_nodes, tree_leaves, tree_depth, tree_splits, tree_merges, spawned, expired)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			run.String(), int64(f.Frame), f.Entities, f.Ships, f.PendingDestroy, f.OverflowBlocks,
			f.TreeNodes, f.TreeLeaves, f.TreeDepth, f.TreeSplits, f.TreeMerges, f.Spawned, f.Expired,
		); err != nil {
			return fmt.Errorf("frame stats insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FinishRun stamps the run's end time and frame count.
func (r *RunRepo) FinishRun(ctx context.Context, run uuid.UUID, frames uint64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sim_runs SET finished_at = now(), frames = $2 WHERE id = $1`,
		run.String(), int64(frames),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// FrameWriter stores a batch of frame rows. *RunRepo implements it.
type FrameWriter interface {
	RecordFrames(ctx context.Context, run uuid.UUID, frames []FrameStats) error
}

// Recorder buffers frame rows for one run and flushes them through the
// writer in batches.
type Recorder struct {
	repo  FrameWriter
	run   uuid.UUID
	batch int
	buf   []FrameStats
}

func NewRecorder(repo FrameWriter, run uuid.UUID, batch int) *Recorder {
	if batch < 1 {
		batch = 1
	}
	return &Recorder{repo: repo, run: run, batch: batch, buf: make([]FrameStats, 0, batch)}
}

func (r *Recorder) Run() uuid.UUID { return r.run }

// RecordFrame queues s, flushing once a full batch is buffered.
func (r *Recorder) RecordFrame(ctx context.Context, s FrameStats) error {
	r.buf = append(r.buf, s)
	if len(r.buf) < r.batch {
		return nil
	}
	return r.Flush(ctx)
}

// Flush writes whatever is buffered. The buffer is kept on error so the
// next flush retries it.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := r.repo.RecordFrames(ctx, r.run, r.buf); err != nil {
		return err
	}
	r.buf = r.buf[:0]
	return nil
}

// Buffered returns the number of rows waiting to be written.
func (r *Recorder) Buffered() int { return len(r.buf) }
