// seed inserts a batch of demo surveys and one recurring schedule into the
// local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dfalcao/precario/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5"
)

type surveySpec struct {
	key    string
	query  string
	target int
}

var surveys = []surveySpec{
	// IT equipment — plenty of offers, should reach the target count
	{"seed-001", "notebook dell latitude 5440 16gb", 3},
	{"seed-002", "monitor lg 24 polegadas full hd", 3},
	{"seed-003", "impressora hp laserjet m404", 3},
	{"seed-004", "projetor epson powerlite x49", 3},

	// Office furniture — noisier market, expect partial outcomes
	{"seed-005", "cadeira de escritório presidente ergonômica", 3},
	{"seed-006", "mesa de reunião 10 lugares", 5},

	// Narrow queries — likely too few consistent sources
	{"seed-007", "autoclave horizontal 75 litros hospitalar", 3},
	{"seed-008", "trator cortador de grama husqvarna", 3},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	scheduledAt := time.Now().Add(time.Minute)

	// Insert surveys, skip any that already exist (idempotent re-runs)
	var inserted, skipped int
	var surveyIDs []string

	for _, spec := range surveys {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO surveys (
				idempotency_key, query, target_count, status, scheduled_at, max_retries
			) VALUES ($1, $2, $3, 'queued', $4, 3)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING id`,
			spec.key, spec.query, spec.target, scheduledAt,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("insert survey %s: %v", spec.key, err)
		}
		surveyIDs = append(surveyIDs, id)
		inserted++
	}

	// One recurring sweep: first Monday 6am of every month
	var scheduleID string
	err = pool.QueryRow(ctx, `
		INSERT INTO survey_schedules (name, query, target_count, cron_expr, paused, next_run_at)
		VALUES ('monthly-notebook-sweep', 'notebook dell latitude 5440 16gb', 3, '0 6 1 * *', false, NOW() + interval '1 month')
		ON CONFLICT (name) DO NOTHING
		RETURNING id`,
	).Scan(&scheduleID)
	if errors.Is(err, pgx.ErrNoRows) {
		scheduleID = "(already exists)"
	} else if err != nil {
		log.Fatalf("insert schedule: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Surveys created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  Scheduled at:    %s  (~1 minute from now)\n", scheduledAt.Format(time.RFC3339))
	fmt.Printf("  Schedule:        monthly-notebook-sweep %s\n", scheduleID)
	fmt.Println()

	if len(surveyIDs) > 0 {
		fmt.Println("  Sample survey IDs:")
		limit := min(len(surveyIDs), 5)
		for _, id := range surveyIDs[:limit] {
			fmt.Printf("    %s\n", id)
		}
	}

	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  export JWT=...   # HS256 token signed with JWT_SECRET, sub = your operator id")
	fmt.Println()
	fmt.Println("  curl -s http://localhost:8080/surveys/SURVEY_ID -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Wait ~1 minute for the worker to pick them up, then inspect the audit trail:")
	fmt.Println()
	fmt.Println("  curl -s http://localhost:8080/surveys/SURVEY_ID/audit -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  What to expect:")
	fmt.Println("    seed-001..004  →  success (3 consistent retail sources)")
	fmt.Println("    seed-005..006  →  partial (noisy market, fewer sources than target)")
	fmt.Println("    seed-007..008  →  partial or failure (thin market)")
}
