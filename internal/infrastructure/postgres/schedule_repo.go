package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

const scheduleColumns = `id, name, query, target_count, cron_expr, paused,
	       next_run_at, last_run_at, created_at, updated_at`

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.SurveySchedule) (*domain.SurveySchedule, error) {
	query := `
		INSERT INTO survey_schedules (
			name, query, target_count, cron_expr, paused, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.Name, s.Query, s.TargetCount, s.CronExpr, s.Paused, s.NextRunAt,
	)

	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.SurveySchedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM survey_schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.SurveySchedule, error) {
	var args []any
	var where []string

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
		SELECT `+scheduleColumns+`
		FROM survey_schedules
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, clause, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.SurveySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (r *ScheduleRepository) SetPaused(ctx context.Context, id string, paused bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE survey_schedules SET paused = $2, updated_at = NOW()
		 WHERE id = $1 AND paused = $3`,
		id, paused, !paused)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish not-found vs already-in-desired-state
		if _, err := r.GetByID(ctx, id); err != nil {
			return err // ErrScheduleNotFound
		}
		if paused {
			return domain.ErrScheduleAlreadyPaused
		}
		return domain.ErrScheduleNotPaused
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM survey_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// ClaimAndFire atomically claims due schedules, enqueues a survey for each, and
// advances next_run_at. All in a single transaction, so a crash leaves no
// partial state.
func (r *ScheduleRepository) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.SurveySchedule) time.Time) ([]*domain.Survey, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// FOR UPDATE SKIP LOCKED prevents double-firing across replicas.
	rows, err := tx.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM survey_schedules
		WHERE next_run_at <= NOW() AND NOT paused
		ORDER BY next_run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim schedules: %w", err)
	}

	var schedules []*domain.SurveySchedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		schedules = append(schedules, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	var fired []*domain.Survey

	for _, s := range schedules {
		next := computeNext(s)
		idempotencyKey := fmt.Sprintf("sched:%s:%d", s.ID, s.NextRunAt.Unix())

		// The idempotency key guards against any edge-case duplicate fire.
		row := tx.QueryRow(ctx, `
			INSERT INTO surveys (
				idempotency_key, query, target_count, status, scheduled_at, max_retries, schedule_id
			) VALUES ($1, $2, $3, 'queued', NOW(), 3, $4)
			RETURNING `+surveyColumns,
			idempotencyKey, s.Query, s.TargetCount, s.ID,
		)
		survey, scanErr := scanSurvey(row)
		if scanErr != nil {
			var pgErr *pgconn.PgError
			if errors.As(scanErr, &pgErr) && pgErr.Code == "23505" {
				r.logger.Warn("duplicate survey for schedule, skipping",
					"schedule_id", s.ID,
					"idempotency_key", idempotencyKey,
				)
				// Still advance next_run_at so the schedule progresses.
			} else {
				return nil, fmt.Errorf("enqueue survey for schedule %s: %w", s.ID, scanErr)
			}
		} else {
			fired = append(fired, survey)
		}

		if _, updateErr := tx.Exec(ctx,
			`UPDATE survey_schedules SET next_run_at = $2, last_run_at = NOW(), updated_at = NOW() WHERE id = $1`,
			s.ID, next,
		); updateErr != nil {
			return nil, fmt.Errorf("advance schedule %s: %w", s.ID, updateErr)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return fired, nil
}

func scanSchedule(row rowScanner) (*domain.SurveySchedule, error) {
	var s domain.SurveySchedule
	err := row.Scan(
		&s.ID, &s.Name, &s.Query, &s.TargetCount, &s.CronExpr, &s.Paused,
		&s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
