package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/repository"
)

type SurveyUsecase struct {
	repo repository.SurveyRepository
}

func NewSurveyUsecase(repo repository.SurveyRepository) *SurveyUsecase {
	return &SurveyUsecase{repo: repo}
}

type CreateSurveyInput struct {
	IdempotencyKey string
	Query          string
	TargetCount    int
	ScheduledAt    time.Time
	MaxRetries     int
}

func (u *SurveyUsecase) CreateSurvey(ctx context.Context, input CreateSurveyInput) (*domain.Survey, error) {
	if input.TargetCount == 0 {
		input.TargetCount = 3
	}
	if input.MaxRetries == 0 {
		input.MaxRetries = 3
	}
	if input.ScheduledAt.IsZero() {
		input.ScheduledAt = time.Now()
	}

	survey := &domain.Survey{
		IdempotencyKey: input.IdempotencyKey,
		Query:          input.Query,
		TargetCount:    input.TargetCount,
		Status:         domain.SurveyQueued,
		ScheduledAt:    input.ScheduledAt,
		MaxRetries:     input.MaxRetries,
	}

	created, err := u.repo.Create(ctx, survey)
	if err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	return created, nil
}

func (u *SurveyUsecase) GetSurvey(ctx context.Context, id string) (*domain.Survey, error) {
	survey, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return survey, nil
}

// GetSurveyAudit returns the persisted arena and accepted sources for one
// finished survey, in arena order.
func (u *SurveyUsecase) GetSurveyAudit(ctx context.Context, id string) ([]domain.SurveyCandidate, []domain.SurveySource, error) {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return nil, nil, fmt.Errorf("get survey: %w", err)
	}
	candidates, err := u.repo.ListCandidates(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list candidates: %w", err)
	}
	sources, err := u.repo.ListSources(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list sources: %w", err)
	}
	return candidates, sources, nil
}

func (u *SurveyUsecase) CancelSurvey(ctx context.Context, id string) error {
	if err := u.repo.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel survey: %w", err)
	}
	return nil
}

type ListSurveysInput struct {
	Status string
	Cursor string
	Limit  int
}

type ListSurveysResult struct {
	Surveys    []*domain.Survey
	NextCursor *string
}

var validStatuses = map[domain.SurveyStatus]bool{
	domain.SurveyQueued:    true,
	domain.SurveyRunning:   true,
	domain.SurveySuccess:   true,
	domain.SurveyPartial:   true,
	domain.SurveyFailure:   true,
	domain.SurveyCancelled: true,
}

type listCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func decodeCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c listCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c.CreatedAt, c.ID, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	b, _ := json.Marshal(listCursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

func (u *SurveyUsecase) ListSurveys(ctx context.Context, input ListSurveysInput) (ListSurveysResult, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	repoInput := repository.ListSurveysInput{Limit: limit + 1}

	if input.Status != "" {
		status := domain.SurveyStatus(input.Status)
		if !validStatuses[status] {
			return ListSurveysResult{}, domain.ErrInvalidStatus
		}
		repoInput.Status = status
	}

	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSurveysResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	surveys, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListSurveysResult{}, fmt.Errorf("list surveys: %w", err)
	}

	var nextCursor *string
	if len(surveys) == limit+1 {
		last := surveys[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		surveys = surveys[:limit]
	}

	return ListSurveysResult{Surveys: surveys, NextCursor: nextCursor}, nil
}
