package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type SurveyRepository struct {
	pool *pgxpool.Pool
}

func NewSurveyRepository(pool *pgxpool.Pool) *SurveyRepository {
	return &SurveyRepository{pool: pool}
}

const surveyColumns = `id, idempotency_key, query, target_count, status, scheduled_at,
	       retry_count, max_retries, mean_price, min_price, max_price,
	       variation_pct, diagnostics, claimed_at, claimed_by, heartbeat_at,
	       completed_at, last_error, created_at, updated_at`

func (r *SurveyRepository) Create(ctx context.Context, s *domain.Survey) (*domain.Survey, error) {
	query := `
		INSERT INTO surveys (
			idempotency_key, query, target_count, status, scheduled_at, max_retries
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + surveyColumns

	row := r.pool.QueryRow(ctx, query,
		s.IdempotencyKey,
		s.Query,
		s.TargetCount,
		s.Status,
		s.ScheduledAt,
		s.MaxRetries,
	)

	created, err := scanSurvey(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateSurvey
		}
		return nil, err
	}
	return created, nil
}

func (r *SurveyRepository) GetByID(ctx context.Context, id string) (*domain.Survey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+surveyColumns+` FROM surveys WHERE id = $1`, id)
	return scanSurvey(row)
}

func (r *SurveyRepository) List(ctx context.Context, input repository.ListSurveysInput) ([]*domain.Survey, error) {
	var args []any
	var where []string

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`
		SELECT `+surveyColumns+`
		FROM surveys
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, clause, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()

	var surveys []*domain.Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, s)
	}
	return surveys, nil
}

func (r *SurveyRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE surveys SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return fmt.Errorf("cancel survey: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err // ErrSurveyNotFound
		}
		return domain.ErrSurveyNotQueued
	}
	return nil
}

func (r *SurveyRepository) Claim(ctx context.Context, workerID string, limit int) ([]*domain.Survey, error) {
	// FOR UPDATE SKIP LOCKED prevents double-execution across workers.
	query := `
		UPDATE surveys
		SET    status       = 'running',
		       claimed_at   = NOW(),
		       claimed_by   = $1,
		       heartbeat_at = NOW(),
		       updated_at   = NOW()
		WHERE id IN (
			SELECT id FROM surveys
			WHERE  status       = 'queued'
			  AND  scheduled_at <= NOW()
			ORDER BY scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + surveyColumns

	rows, err := r.pool.Query(ctx, query, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim surveys: %w", err)
	}
	defer rows.Close()

	var surveys []*domain.Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, s)
	}
	return surveys, nil
}

func (r *SurveyRepository) UpdateHeartbeat(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE surveys SET heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'`, id)
	return err
}

func (r *SurveyRepository) Complete(ctx context.Context, id string, outcome *domain.Outcome) error {
	diag, err := json.Marshal(outcome.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	var mean, minP, maxP, variation *decimal.Decimal
	if len(outcome.Accepted) > 0 {
		mean, minP, maxP, variation = &outcome.Mean, &outcome.Min, &outcome.Max, &outcome.VariationPct
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE surveys
		SET    status        = $2,
		       mean_price    = $3,
		       min_price     = $4,
		       max_price     = $5,
		       variation_pct = $6,
		       diagnostics   = $7,
		       completed_at  = NOW(),
		       updated_at    = NOW()
		WHERE id = $1`,
		id, domain.SurveyStatusFor(outcome.Status),
		decimalOrNil(mean), decimalOrNil(minP), decimalOrNil(maxP), decimalOrNil(variation),
		diag)
	return err
}

func (r *SurveyRepository) Fail(ctx context.Context, id string, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE surveys SET status = 'failure', last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, lastError)
	return err
}

func (r *SurveyRepository) Reschedule(ctx context.Context, id string, lastError string, retryAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE surveys
		SET    status       = 'queued',
		       retry_count  = retry_count + 1,
		       last_error   = $2,
		       scheduled_at = $3,
		       claimed_at   = NULL,
		       claimed_by   = NULL,
		       heartbeat_at = NULL,
		       updated_at   = NOW()
		WHERE id = $1`, id, lastError, retryAt)
	return err
}

func (r *SurveyRepository) RescheduleStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE surveys
		SET    status       = 'queued',
		       retry_count  = retry_count + 1,
		       last_error   = 'worker timeout',
		       claimed_at   = NULL,
		       claimed_by   = NULL,
		       heartbeat_at = NULL,
		       updated_at   = NOW()
		WHERE id IN (
			SELECT id FROM surveys
			WHERE  status       = 'running'
			  AND  heartbeat_at < $1
			  AND  retry_count  < max_retries
			ORDER BY heartbeat_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *SurveyRepository) FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE surveys
		SET    status      = 'failure',
		       last_error  = 'worker timeout: max retries exceeded',
		       updated_at  = NOW()
		WHERE id IN (
			SELECT id FROM surveys
			WHERE  status       = 'running'
			  AND  heartbeat_at < $1
			  AND  retry_count  >= max_retries
			ORDER BY heartbeat_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *SurveyRepository) SaveCandidates(ctx context.Context, surveyID string, candidates []domain.SurveyCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(`
			INSERT INTO survey_candidates (
				survey_id, position, title, source, list_price,
				store_url, store_domain, site_price, status, fail_reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			surveyID, c.Position, c.Title, c.Source, c.ListPrice,
			c.StoreURL, c.StoreDomain, decimalOrNil(c.SitePrice), c.Status, c.FailReason)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range candidates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert survey candidate: %w", err)
		}
	}
	return nil
}

func (r *SurveyRepository) SaveSources(ctx context.Context, surveyID string, sources []domain.SurveySource) error {
	if len(sources) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range sources {
		batch.Queue(`
			INSERT INTO survey_sources (
				survey_id, title, domain, url, settled_price, evidence
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			surveyID, s.Title, s.Domain, s.URL, s.SettledPrice, s.Evidence)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range sources {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert survey source: %w", err)
		}
	}
	return nil
}

func (r *SurveyRepository) ListCandidates(ctx context.Context, surveyID string) ([]domain.SurveyCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, survey_id, position, title, source, list_price,
		       store_url, store_domain, site_price, status, fail_reason, created_at
		FROM survey_candidates
		WHERE survey_id = $1
		ORDER BY position ASC`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.SurveyCandidate
	for rows.Next() {
		var c domain.SurveyCandidate
		var listPrice decimal.NullDecimal
		var sitePrice decimal.NullDecimal
		if err := rows.Scan(
			&c.ID, &c.SurveyID, &c.Position, &c.Title, &c.Source, &listPrice,
			&c.StoreURL, &c.StoreDomain, &sitePrice, &c.Status, &c.FailReason, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.ListPrice = listPrice.Decimal
		if sitePrice.Valid {
			c.SitePrice = &sitePrice.Decimal
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (r *SurveyRepository) ListSources(ctx context.Context, surveyID string) ([]domain.SurveySource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, survey_id, title, domain, url, settled_price, evidence, created_at
		FROM survey_sources
		WHERE survey_id = $1
		ORDER BY settled_price ASC`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.SurveySource
	for rows.Next() {
		var s domain.SurveySource
		if err := rows.Scan(
			&s.ID, &s.SurveyID, &s.Title, &s.Domain, &s.URL, &s.SettledPrice, &s.Evidence, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*domain.Survey, error) {
	var s domain.Survey
	var mean, minP, maxP, variation decimal.NullDecimal
	var diag []byte
	err := row.Scan(
		&s.ID, &s.IdempotencyKey, &s.Query, &s.TargetCount, &s.Status, &s.ScheduledAt,
		&s.RetryCount, &s.MaxRetries, &mean, &minP, &maxP,
		&variation, &diag, &s.ClaimedAt, &s.ClaimedBy, &s.HeartbeatAt,
		&s.CompletedAt, &s.LastError, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSurveyNotFound
		}
		return nil, fmt.Errorf("scan survey: %w", err)
	}

	if mean.Valid {
		s.MeanPrice = &mean.Decimal
	}
	if minP.Valid {
		s.MinPrice = &minP.Decimal
	}
	if maxP.Valid {
		s.MaxPrice = &maxP.Decimal
	}
	if variation.Valid {
		s.VariationPct = &variation.Decimal
	}
	if len(diag) > 0 {
		var d domain.Diagnostics
		if err := json.Unmarshal(diag, &d); err != nil {
			return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
		}
		s.Diagnostics = &d
	}
	return &s, nil
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
