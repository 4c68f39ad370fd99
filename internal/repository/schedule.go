package repository

import (
	"context"
	"time"

	"github.com/dfalcao/precario/internal/domain"
)

type ListSchedulesInput struct {
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.SurveySchedule) (*domain.SurveySchedule, error)
	GetByID(ctx context.Context, id string) (*domain.SurveySchedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.SurveySchedule, error)
	SetPaused(ctx context.Context, id string, paused bool) error
	Delete(ctx context.Context, id string) error
	// Atomic: claim due schedules, enqueue surveys, advance next_run_at — all in one tx
	ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.SurveySchedule) time.Time) ([]*domain.Survey, error)
}
