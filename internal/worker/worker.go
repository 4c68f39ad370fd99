package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/email"
	ctxlog "github.com/dfalcao/precario/internal/log"
	"github.com/dfalcao/precario/internal/metrics"
	"github.com/dfalcao/precario/internal/repository"
	"github.com/dfalcao/precario/internal/search"
)

// Searcher queries the shopping index for raw candidate offers.
type Searcher interface {
	Search(ctx context.Context, query, locale string) ([]domain.RawResult, error)
}

// Deps bundles everything one survey run needs. The worker itself only owns
// the claim/heartbeat/settle lifecycle; the search internals come in here.
type Deps struct {
	Repo       repository.SurveyRepository
	Searcher   Searcher
	Resolver   search.Resolver
	Extractor  search.Extractor
	Classifier *classify.Classifier
	SearchCfg  search.Config
	Locale     string

	Sender      email.Sender
	ReviewEmail string
}

type Worker struct {
	id           string
	deps         Deps
	logger       *slog.Logger
	pollInterval time.Duration
	concurrency  int
	sem          chan struct{}
}

func NewWorker(deps Deps, logger *slog.Logger, pollInterval time.Duration, concurrency int) *Worker {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Worker{
		id:           id,
		deps:         deps,
		logger:       logger.With("worker_id", id),
		pollInterval: pollInterval,
		concurrency:  concurrency,
		sem:          make(chan struct{}, concurrency),
	}
}

func (w *Worker) Start(ctx context.Context) {
	metrics.WorkerStartTime.SetToCurrentTime()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker started", "concurrency", w.concurrency)

	for {
		select {
		case <-ctx.Done():
			metrics.WorkerShutdownsTotal.Inc()
			w.logger.Info("worker shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	available := cap(w.sem) - len(w.sem)
	if available == 0 {
		return
	}

	surveys, err := w.deps.Repo.Claim(ctx, w.id, available)
	if err != nil {
		w.logger.Error("claim surveys", "error", err)
		return
	}

	if len(surveys) == 0 {
		return
	}

	w.logger.Info("claimed surveys", "count", len(surveys), "slots_used", len(w.sem)+len(surveys), "slots_total", cap(w.sem))

	for _, survey := range surveys {
		w.sem <- struct{}{}
		go func(s *domain.Survey) {
			metrics.SurveysInFlight.Inc()
			defer metrics.SurveysInFlight.Dec()
			defer func() { <-w.sem }()
			w.runSurvey(ctxlog.WithSurveyID(ctx, s.ID), s)
		}(survey)
	}
}

func (w *Worker) runSurvey(ctx context.Context, survey *domain.Survey) {
	metrics.SurveyPickupLatency.Observe(time.Since(survey.CreatedAt).Seconds())

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.heartbeat(heartbeatCtx, survey.ID)

	w.logger.InfoContext(ctx, "running survey", "query", survey.Query, "target_count", survey.TargetCount)

	startedAt := time.Now()

	raw, err := w.deps.Searcher.Search(ctx, survey.Query, w.deps.Locale)
	if err != nil {
		// Index outage is an infrastructure failure, not a search result:
		// the survey goes back to the queue until retries run out.
		w.settleError(ctx, survey, fmt.Sprintf("search index: %v", err))
		return
	}

	cfg := w.deps.SearchCfg
	if survey.TargetCount > 0 {
		cfg.TargetCount = survey.TargetCount
	}

	engine, err := search.NewEngine(cfg, w.deps.Resolver, w.deps.Extractor, w.deps.Classifier, w.logger)
	if err != nil {
		w.settleError(ctx, survey, fmt.Sprintf("search config: %v", err))
		return
	}

	candidates := search.Normalize(raw, w.deps.Classifier, cfg.MaxCandidates)
	outcome := engine.Run(ctx, candidates)
	duration := time.Since(startedAt)

	metrics.SurveyDuration.WithLabelValues(string(outcome.Status)).Observe(duration.Seconds())
	metrics.SurveysCompletedTotal.WithLabelValues(string(outcome.Status)).Inc()
	metrics.SearchBlocksTried.Observe(float64(outcome.Diagnostics.BlocksTried))

	w.persistOutcome(ctx, survey, candidates, &outcome)

	w.logger.InfoContext(ctx, "survey finished",
		"status", outcome.Status,
		"accepted", len(outcome.Accepted),
		"blocks_tried", outcome.Diagnostics.BlocksTried,
		"escalations", outcome.Diagnostics.EscalationsUsed,
		"duration", duration,
	)

	if outcome.Status == domain.SearchPartial && w.deps.ReviewEmail != "" {
		survey.Status = domain.SurveyPartial
		if err := email.NotifyReview(ctx, w.deps.Sender, w.deps.ReviewEmail, survey); err != nil {
			w.logger.WarnContext(ctx, "send review email", "error", err)
		}
	}
}

// persistOutcome writes the audit trail and settles the survey row. The
// candidate arena is persisted even on failure so an auditor can see why every
// source was excluded.
func (w *Worker) persistOutcome(ctx context.Context, survey *domain.Survey, candidates []*domain.Candidate, outcome *domain.Outcome) {
	if err := w.deps.Repo.SaveCandidates(ctx, survey.ID, auditCandidates(survey.ID, candidates)); err != nil {
		w.logger.ErrorContext(ctx, "save candidates", "error", err)
	}
	if err := w.deps.Repo.SaveSources(ctx, survey.ID, auditSources(survey.ID, outcome.Accepted)); err != nil {
		w.logger.ErrorContext(ctx, "save sources", "error", err)
	}
	if err := w.deps.Repo.Complete(ctx, survey.ID, outcome); err != nil {
		w.logger.ErrorContext(ctx, "complete survey", "error", err)
	}
}

func (w *Worker) settleError(ctx context.Context, survey *domain.Survey, errMsg string) {
	if survey.RetryCount < survey.MaxRetries {
		retryAt := time.Now().Add(retryDelay(survey.RetryCount))
		if err := w.deps.Repo.Reschedule(ctx, survey.ID, errMsg, retryAt); err != nil {
			w.logger.ErrorContext(ctx, "reschedule survey", "error", err)
		}
		metrics.SurveysCompletedTotal.WithLabelValues("retry").Inc()
		w.logger.WarnContext(ctx, "survey failed, will retry",
			"error", errMsg,
			"attempt", survey.RetryCount+1,
			"max_retries", survey.MaxRetries,
			"retry_at", retryAt,
		)
		return
	}

	if err := w.deps.Repo.Fail(ctx, survey.ID, errMsg); err != nil {
		w.logger.ErrorContext(ctx, "mark survey failed", "error", err)
	}
	metrics.SurveysCompletedTotal.WithLabelValues("error").Inc()
	w.logger.WarnContext(ctx, "survey permanently failed", "error", errMsg)
}

func (w *Worker) heartbeat(ctx context.Context, surveyID string) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.deps.Repo.UpdateHeartbeat(ctx, surveyID); err != nil {
				w.logger.Warn("heartbeat failed", "survey_id", surveyID, "error", err)
			}
		}
	}
}

func auditCandidates(surveyID string, candidates []*domain.Candidate) []domain.SurveyCandidate {
	out := make([]domain.SurveyCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc := domain.SurveyCandidate{
			SurveyID:  surveyID,
			Position:  c.ID,
			Title:     c.Title,
			Source:    c.Source,
			ListPrice: c.ListPrice,
			SitePrice: c.SitePrice,
			Status:    c.Status,
		}
		if c.StoreURL != "" {
			sc.StoreURL = &c.StoreURL
		}
		if c.StoreDomain != "" {
			sc.StoreDomain = &c.StoreDomain
		}
		if c.Status == domain.CandidateFailed {
			reason := c.FailReason
			sc.FailReason = &reason
		}
		out = append(out, sc)
	}
	return out
}

func auditSources(surveyID string, accepted []domain.AcceptedSource) []domain.SurveySource {
	out := make([]domain.SurveySource, 0, len(accepted))
	for _, a := range accepted {
		out = append(out, domain.SurveySource{
			SurveyID:     surveyID,
			Title:        a.Title,
			Domain:       a.Domain,
			URL:          a.URL,
			SettledPrice: a.SettledPrice,
			Evidence:     a.Evidence,
		})
	}
	return out
}

// retryDelay is exponential with jitter, capped at an hour.
func retryDelay(retryCount int) time.Duration {
	base := 30 * time.Second
	delay := time.Duration(float64(base) * math.Pow(2, float64(retryCount)))
	delay = min(delay, time.Hour)
	jitter := time.Duration(rand.Int63n(int64(delay/2))) - delay/4
	return delay + jitter
}
