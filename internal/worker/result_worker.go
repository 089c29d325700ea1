package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/model"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWriter persists graded results. Rows already stored for the same
// exam and student must be skipped, not overwritten.
type ResultWriter interface {
	InsertBatch(ctx context.Context, results []model.ExamResult) (int, error)
}

// ResultWorker drains persist_results_queue into PostgreSQL in batches.
type ResultWorker struct {
	repo ResultWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(repo ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.ExamResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(ResultPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.ExamResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, res)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.ExamResult) {
	if len(batch) == 0 {
		return
	}

	inserted, err := w.repo.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().
			Int("batch", len(batch)).
			Int("inserted", inserted).
			Msg("Results persisted")
		return
	}

	w.log.Warn().Err(err).Msg("bulk result insert failed, using fallback")

	for i := range batch {
		if _, err := w.repo.InsertBatch(ctx, batch[i:i+1]); err != nil {
			w.log.Error().
				Err(err).
				Int("student_id", batch[i].StudentID).
				Str("exam_id", batch[i].ExamID.String()).
				Msg("persist single result failed, requeueing")
			w.requeue(ctx, batch[i])
		}
	}
}

func (w *ResultWorker) requeue(ctx context.Context, res model.ExamResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		w.log.Error().Err(err).Msg("marshal for requeue failed")
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("requeue failed, result only in cache")
	}
}
