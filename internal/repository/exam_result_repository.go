package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-exam/internal/model"
)

// ExamResultRepository handles graded submission storage.
type ExamResultRepository struct {
	pool *pgxpool.Pool
}

// NewExamResultRepository creates a new ExamResultRepository.
func NewExamResultRepository(pool *pgxpool.Pool) *ExamResultRepository {
	return &ExamResultRepository{pool: pool}
}

// GetByExamAndStudent returns the stored result, or pgx.ErrNoRows.
func (r *ExamResultRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, score, passed, correct, total, answers, submitted_at
		 FROM exam_results
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&res.ID, &res.ExamID, &res.StudentID, &res.Score, &res.Passed,
		&res.Correct, &res.Total, &res.Answers, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InsertBatch stores results, ignoring ones already recorded for the same
// exam and student. It returns how many rows were new.
func (r *ExamResultRepository) InsertBatch(ctx context.Context, results []model.ExamResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range results {
		res := &results[i]
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		batch.Queue(
			`INSERT INTO exam_results (id, exam_id, student_id, score, passed, correct, total, answers, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (exam_id, student_id) DO NOTHING`,
			res.ID, res.ExamID, res.StudentID, res.Score, res.Passed,
			res.Correct, res.Total, res.Answers, res.SubmittedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range results {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert result %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
