package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/repository"
	"github.com/dfalcao/precario/internal/usecase"
)

type fakeScheduleRepo struct {
	create    func(ctx context.Context, s *domain.SurveySchedule) (*domain.SurveySchedule, error)
	setPaused func(ctx context.Context, id string, paused bool) error
}

func (r *fakeScheduleRepo) Create(ctx context.Context, s *domain.SurveySchedule) (*domain.SurveySchedule, error) {
	return r.create(ctx, s)
}

func (r *fakeScheduleRepo) GetByID(context.Context, string) (*domain.SurveySchedule, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) List(context.Context, repository.ListSchedulesInput) ([]*domain.SurveySchedule, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) SetPaused(ctx context.Context, id string, paused bool) error {
	return r.setPaused(ctx, id, paused)
}

func (r *fakeScheduleRepo) Delete(context.Context, string) error { return nil }

func (r *fakeScheduleRepo) ClaimAndFire(context.Context, int, func(*domain.SurveySchedule) time.Time) ([]*domain.Survey, error) {
	return nil, nil
}

func TestCreateSchedule_RejectsBadCron(t *testing.T) {
	u := usecase.NewScheduleUsecase(&fakeScheduleRepo{})
	_, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		Name:     "monthly-it-sweep",
		Query:    "notebook dell latitude",
		CronExpr: "not a cron",
	})
	if !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Fatalf("expected ErrInvalidCronExpr, got %v", err)
	}
}

func TestCreateSchedule_ComputesNextRun(t *testing.T) {
	var captured *domain.SurveySchedule
	repo := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.SurveySchedule) (*domain.SurveySchedule, error) {
			captured = s
			return s, nil
		},
	}

	u := usecase.NewScheduleUsecase(repo)
	_, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		Name:     "monthly-it-sweep",
		Query:    "notebook dell latitude",
		CronExpr: "0 6 1 * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !captured.NextRunAt.After(time.Now()) {
		t.Errorf("next_run_at %v not in the future", captured.NextRunAt)
	}
	if captured.TargetCount != 3 {
		t.Errorf("target count = %d, want 3", captured.TargetCount)
	}
	if captured.Paused {
		t.Error("new schedule should not be paused")
	}
}

func TestPauseSchedule_PropagatesAlreadyPaused(t *testing.T) {
	repo := &fakeScheduleRepo{
		setPaused: func(context.Context, string, bool) error {
			return domain.ErrScheduleAlreadyPaused
		},
	}

	u := usecase.NewScheduleUsecase(repo)
	if err := u.PauseSchedule(context.Background(), "sched-1"); !errors.Is(err, domain.ErrScheduleAlreadyPaused) {
		t.Fatalf("expected ErrScheduleAlreadyPaused, got %v", err)
	}
}
