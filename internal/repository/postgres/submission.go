package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/germanattanasio/answer-retrieval/internal/repository"
)

// Querier is the part of *pgxpool.Pool the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SubmissionRepo implements repository.SubmissionRepository
type SubmissionRepo struct {
	pool Querier
}

// NewSubmissionRepo creates a new submission repository, usually over DB.Pool
func NewSubmissionRepo(pool Querier) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, ranker_id, query, answer_path, document_count, status, stage, error_message, created_at, completed_at`

// Create inserts a new submission
func (r *SubmissionRepo) Create(ctx context.Context, sub *repository.Submission) error {
	query := `
		INSERT INTO rerank_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.RankerID, sub.Query, sub.AnswerPath, sub.DocumentCount,
		sub.Status, sub.Stage, sub.ErrorMessage, sub.CreatedAt, sub.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by ID
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM rerank_submissions WHERE id = $1`

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// List retrieves submissions, newest first, optionally filtered by ranker and status
func (r *SubmissionRepo) List(ctx context.Context, rankerID, status string, limit, offset int) ([]*repository.Submission, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if rankerID != "" {
		args = append(args, rankerID)
		where += fmt.Sprintf(` AND ranker_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rerank_submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	listQuery := `SELECT ` + submissionColumns + ` FROM rerank_submissions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*repository.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return subs, total, nil
}

// Update stores the outcome of a submission
func (r *SubmissionRepo) Update(ctx context.Context, sub *repository.Submission) error {
	query := `
		UPDATE rerank_submissions
		SET answer_path = $2, document_count = $3, status = $4, stage = $5,
		    error_message = $6, completed_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		sub.ID, sub.AnswerPath, sub.DocumentCount, sub.Status, sub.Stage,
		sub.ErrorMessage, sub.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanSubmission(row pgx.Row) (*repository.Submission, error) {
	var sub repository.Submission
	err := row.Scan(
		&sub.ID, &sub.RankerID, &sub.Query, &sub.AnswerPath, &sub.DocumentCount,
		&sub.Status, &sub.Stage, &sub.ErrorMessage, &sub.CreatedAt, &sub.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

var _ repository.SubmissionRepository = (*SubmissionRepo)(nil)
