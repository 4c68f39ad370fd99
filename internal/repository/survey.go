package repository

import (
	"context"
	"time"

	"github.com/dfalcao/precario/internal/domain"
)

type ListSurveysInput struct {
	Status     domain.SurveyStatus // empty = all statuses
	CursorTime *time.Time          // nil = first page
	CursorID   string              // used only when CursorTime is non-nil
	Limit      int
}

// Usecases and the worker depend on the interface, not the pgx implementation,
// so tests can pass fakes.
type SurveyRepository interface {
	Create(ctx context.Context, s *domain.Survey) (*domain.Survey, error)
	GetByID(ctx context.Context, id string) (*domain.Survey, error)
	List(ctx context.Context, input ListSurveysInput) ([]*domain.Survey, error)
	Cancel(ctx context.Context, id string) error

	// Worker protocol: poll, claim a batch, heartbeat while running, then
	// settle the row with the outcome.
	Claim(ctx context.Context, workerID string, limit int) ([]*domain.Survey, error)
	UpdateHeartbeat(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, outcome *domain.Outcome) error
	Fail(ctx context.Context, id string, lastError string) error
	Reschedule(ctx context.Context, id string, lastError string, retryAt time.Time) error

	// Reaper methods recover surveys from crashed workers.
	RescheduleStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)
	FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)

	// Audit trail, written once per completed run.
	SaveCandidates(ctx context.Context, surveyID string, candidates []domain.SurveyCandidate) error
	SaveSources(ctx context.Context, surveyID string, sources []domain.SurveySource) error
	ListCandidates(ctx context.Context, surveyID string) ([]domain.SurveyCandidate, error)
	ListSources(ctx context.Context, surveyID string) ([]domain.SurveySource, error)
}
