// Package search implements the block-formation and validation scheduler: it
// selects a price-consistent subset of noisy ranked candidates, validates each
// member against a sequence of fallible checks, and adaptively re-forms blocks
// and escalates the tolerance window until enough validated sources exist or
// the search provably fails.
package search

import (
	"context"
	"log/slog"

	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/metrics"
	"github.com/shopspring/decimal"
)

// state of the scheduler loop. Explicit rather than recursive so the tolerance
// and escalation count are inspectable values, not call-stack depth.
type state int

const (
	stateSelectBlock state = iota
	stateValidateBlock
	stateEscalate
	stateDone
)

type blockResult int

const (
	blockSucceeded blockResult = iota
	blockExhausted
	blockCancelled
)

// Engine drives one price search as a sequential state machine. An Engine is
// stateless across runs; each Run owns its candidate arena exclusively, so
// many searches can run concurrently on separate arenas.
type Engine struct {
	cfg       Config
	validator *Validator
	logger    *slog.Logger
}

func NewEngine(cfg Config, resolver Resolver, extractor Extractor, classifier *classify.Classifier, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		validator: NewValidator(cfg, resolver, extractor, classifier, logger),
		logger:    logger.With("component", "search_engine"),
	}, nil
}

// Run executes the search over an already-normalized candidate arena and
// always terminates with an outcome: exhaustion of blocks and escalations is
// a business result, not an error.
func (e *Engine) Run(ctx context.Context, candidates []*domain.Candidate) domain.Outcome {
	tolerance := e.cfg.VariationCeiling
	usedDomains := make(map[string]struct{})
	diag := domain.Diagnostics{FailuresByReason: make(map[domain.FailReason]int)}

	var (
		current *Block
		winning *Block
	)

	st := stateSelectBlock
	for st != stateDone {
		switch st {
		case stateSelectBlock:
			working := notFailed(candidates)
			blocks := FormBlocks(working, tolerance, e.cfg.TargetCount)
			if len(blocks) == 0 {
				st = stateEscalate
				continue
			}
			current = blocks[0]
			diag.BlocksTried++
			e.logger.Debug("block selected",
				"size", len(current.Members),
				"anchor", current.Min,
				"variation", current.Variation,
				"tolerance", tolerance,
			)
			st = stateValidateBlock

		case stateValidateBlock:
			switch e.validateBlock(ctx, current, usedDomains, &diag) {
			case blockSucceeded:
				winning = current
				st = stateDone
			case blockExhausted:
				st = stateSelectBlock
			case blockCancelled:
				e.logger.Info("search cancelled", "valid_discarded", len(allValid(candidates)))
				return domain.Outcome{Status: domain.SearchCancelled, Diagnostics: diag}
			}

		case stateEscalate:
			next := tolerance.Mul(decimal.NewFromInt(1).Add(e.cfg.VariationIncrement))
			if diag.EscalationsUsed >= e.cfg.MaxEscalations || next.GreaterThan(e.cfg.VariationMax) {
				st = stateDone
				continue
			}
			diag.EscalationsUsed++
			metrics.ToleranceEscalationsTotal.Inc()
			e.logger.Info("escalating tolerance", "from", tolerance, "to", next, "escalations_used", diag.EscalationsUsed)
			tolerance = next
			st = stateSelectBlock
		}
	}

	// Success is block-scoped: only the winning block's members are reported,
	// so the N accepted prices provably lie within one tolerance window. On
	// partial/failure everything accumulated counts, whatever block it came
	// from.
	var accepted []*domain.Candidate
	if winning != nil {
		accepted = winning.ValidMembers()
	} else {
		accepted = allValid(candidates)
	}
	return Aggregate(accepted, e.cfg.TargetCount, diag)
}

// validateBlock works through the block's pending members in ascending-price
// order, stopping the moment the block either reaches the target count of
// valid members or can no longer mathematically reach it.
func (e *Engine) validateBlock(ctx context.Context, b *Block, usedDomains map[string]struct{}, diag *domain.Diagnostics) blockResult {
	target := e.cfg.TargetCount

	for _, c := range b.Members {
		if b.ValidCount() >= target {
			return blockSucceeded
		}
		if c.Status != domain.CandidatePending {
			continue
		}

		// Cooperative cancellation, checked between validations only.
		if ctx.Err() != nil {
			return blockCancelled
		}

		e.validator.Validate(ctx, c, usedDomains)

		if c.Status == domain.CandidateValid {
			usedDomains[c.StoreDomain] = struct{}{}
			metrics.CandidateValidationsTotal.WithLabelValues("valid").Inc()
			if b.ValidCount() >= target {
				return blockSucceeded
			}
			continue
		}

		diag.FailuresByReason[c.FailReason]++
		metrics.CandidateValidationsTotal.WithLabelValues(string(c.FailReason)).Inc()
		e.logger.Debug("candidate failed", "candidate_id", c.ID, "reason", c.FailReason)

		if b.ValidCount()+b.PendingCount() < target {
			// Abandon immediately: every further validation would be a wasted
			// round-trip against a live extraction service.
			return blockExhausted
		}
	}

	if b.ValidCount() >= target {
		return blockSucceeded
	}
	return blockExhausted
}

func notFailed(candidates []*domain.Candidate) []*domain.Candidate {
	out := make([]*domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status != domain.CandidateFailed {
			out = append(out, c)
		}
	}
	return out
}

func allValid(candidates []*domain.Candidate) []*domain.Candidate {
	out := make([]*domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status == domain.CandidateValid {
			out = append(out, c)
		}
	}
	return out
}
