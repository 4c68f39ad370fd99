package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/repository"
	"github.com/robfig/cron/v3"
)

type ScheduleUsecase struct {
	repo repository.ScheduleRepository
}

func NewScheduleUsecase(repo repository.ScheduleRepository) *ScheduleUsecase {
	return &ScheduleUsecase{repo: repo}
}

type CreateScheduleInput struct {
	Name        string
	Query       string
	TargetCount int
	CronExpr    string
}

func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.SurveySchedule, error) {
	sched, err := cron.ParseStandard(input.CronExpr)
	if err != nil {
		return nil, domain.ErrInvalidCronExpr
	}

	if input.TargetCount == 0 {
		input.TargetCount = 3
	}

	s := &domain.SurveySchedule{
		Name:        input.Name,
		Query:       input.Query,
		TargetCount: input.TargetCount,
		CronExpr:    input.CronExpr,
		Paused:      false,
		NextRunAt:   sched.Next(time.Now()),
	}

	created, err := u.repo.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id string) (*domain.SurveySchedule, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

type ListSchedulesInput struct {
	Cursor string
	Limit  int
}

type ListSchedulesResult struct {
	Schedules  []*domain.SurveySchedule
	NextCursor *string
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context, input ListSchedulesInput) (ListSchedulesResult, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	repoInput := repository.ListSchedulesInput{Limit: limit + 1}

	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSchedulesResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	schedules, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}

	var nextCursor *string
	if len(schedules) == limit+1 {
		last := schedules[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		schedules = schedules[:limit]
	}

	return ListSchedulesResult{Schedules: schedules, NextCursor: nextCursor}, nil
}

func (u *ScheduleUsecase) PauseSchedule(ctx context.Context, id string) error {
	if err := u.repo.SetPaused(ctx, id, true); err != nil {
		return fmt.Errorf("pause schedule: %w", err)
	}
	return nil
}

func (u *ScheduleUsecase) ResumeSchedule(ctx context.Context, id string) error {
	if err := u.repo.SetPaused(ctx, id, false); err != nil {
		return fmt.Errorf("resume schedule: %w", err)
	}
	return nil
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id string) error {
	if err := u.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
