// Package repository defines the audit record of rerank submissions and its
// persistence interface.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Submission statuses.
const (
	SubmissionPending = "pending"
	SubmissionRanked  = "ranked"
	SubmissionFailed  = "failed"
)

// Submission records one answer file sent to the ranker
type Submission struct {
	ID            uuid.UUID
	RankerID      string
	Query         string
	AnswerPath    string
	DocumentCount int
	Status        string
	Stage         string // stage that failed, empty unless Status is failed
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// SubmissionRepository defines operations for submission persistence
type SubmissionRepository interface {
	Create(ctx context.Context, sub *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	List(ctx context.Context, rankerID, status string, limit, offset int) ([]*Submission, int, error)
	Update(ctx context.Context, sub *Submission) error
}
