package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCursor      = errors.New("invalid pagination cursor")
	ErrInvalidStatus      = errors.New("invalid status filter")
	ErrSurveyNotFound     = errors.New("survey not found")
	ErrSurveyNotQueued    = errors.New("survey is no longer queued")
	ErrDuplicateSurvey    = errors.New("survey with this idempotency key already exists")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrInvalidCronExpr    = errors.New("invalid cron expression")
	ErrScheduleAlreadyPaused = errors.New("schedule is already paused")
	ErrScheduleNotPaused  = errors.New("schedule is not paused")
	ErrScheduleNameConflict = errors.New("schedule with this name already exists")
)

type SurveyStatus string

const (
	SurveyQueued    SurveyStatus = "queued"
	SurveyRunning   SurveyStatus = "running"
	SurveySuccess   SurveyStatus = "success"
	SurveyPartial   SurveyStatus = "partial"
	SurveyFailure   SurveyStatus = "failure"
	SurveyCancelled SurveyStatus = "cancelled"
)

// SurveyStatusFor maps a search outcome status to the survey row status.
func SurveyStatusFor(s SearchStatus) SurveyStatus {
	switch s {
	case SearchSuccess:
		return SurveySuccess
	case SearchPartial:
		return SurveyPartial
	case SearchCancelled:
		return SurveyCancelled
	default:
		return SurveyFailure
	}
}

// Survey is one price-search request: an asset description already reduced to
// a search query, plus the target number of independent sources. The worker
// claims queued surveys, runs the search and writes the outcome back.
type Survey struct {
	ID             string
	IdempotencyKey string
	Query          string
	TargetCount    int

	Status      SurveyStatus
	ScheduledAt time.Time

	RetryCount int
	MaxRetries int

	// Outcome fields, populated on completion.
	MeanPrice    *decimal.Decimal
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	VariationPct *decimal.Decimal
	Diagnostics  *Diagnostics

	ClaimedAt   *time.Time
	ClaimedBy   *string // worker ID
	HeartbeatAt *time.Time
	CompletedAt *time.Time
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SurveySource is one accepted price source persisted for the audit trail.
type SurveySource struct {
	ID           string
	SurveyID     string
	Title        string
	Domain       string
	URL          string
	SettledPrice decimal.Decimal
	Evidence     string
	CreatedAt    time.Time
}

// SurveyCandidate is one arena entry persisted after the search finishes, so
// an auditor can see why every candidate was accepted or excluded.
type SurveyCandidate struct {
	ID          string
	SurveyID    string
	Position    int
	Title       string
	Source      string
	ListPrice   decimal.Decimal
	StoreURL    *string
	StoreDomain *string
	SitePrice   *decimal.Decimal
	Status      CandidateStatus
	FailReason  *FailReason
	CreatedAt   time.Time
}

// SurveySchedule re-enqueues a recurring revaluation sweep on a cron expression.
type SurveySchedule struct {
	ID          string
	Name        string
	Query       string
	TargetCount int
	CronExpr    string
	Paused      bool
	NextRunAt   time.Time
	LastRunAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
