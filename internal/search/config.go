package search

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig marks configuration rejected before any external call.
// It is the only error class Run's constructor surfaces; everything the
// search itself encounters is outcome data.
var ErrInvalidConfig = errors.New("invalid search config")

// Config holds the tuning knobs for one price search.
type Config struct {
	// TargetCount is N: the number of validated, mutually-consistent sources
	// required for success.
	TargetCount int

	// VariationCeiling is the initial maximum relative price spread within a
	// block, in (0, 1]. Escalates multiplicatively when no block is viable.
	VariationCeiling   decimal.Decimal
	VariationIncrement decimal.Decimal
	VariationMax       decimal.Decimal
	MaxEscalations     int

	// MaxCandidates caps the normalized candidate list.
	MaxCandidates int

	// PriceMismatchEnabled compares the extracted site price against the
	// candidate's list price. When disabled, extraction still runs for
	// evidentiary capture but the list price is the settled price.
	PriceMismatchEnabled   bool
	PriceMismatchTolerance decimal.Decimal

	// Sanity window for extracted prices. Anything at or below the floor, or
	// above the ceiling, fails the candidate as an implausible extraction.
	PriceFloor   decimal.Decimal
	PriceCeiling decimal.Decimal
}

func (c Config) Validate() error {
	if c.TargetCount < 1 {
		return fmt.Errorf("%w: target_count must be >= 1", ErrInvalidConfig)
	}
	if !c.VariationCeiling.IsPositive() || c.VariationCeiling.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: variation_ceiling must be in (0, 1]", ErrInvalidConfig)
	}
	if !c.VariationIncrement.IsPositive() {
		return fmt.Errorf("%w: variation_increment must be > 0", ErrInvalidConfig)
	}
	if c.VariationMax.LessThan(c.VariationCeiling) {
		return fmt.Errorf("%w: variation_max must be >= variation_ceiling", ErrInvalidConfig)
	}
	if c.MaxEscalations < 0 {
		return fmt.Errorf("%w: max_escalations must be >= 0", ErrInvalidConfig)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("%w: max_candidates must be >= 1", ErrInvalidConfig)
	}
	if c.PriceMismatchEnabled && !c.PriceMismatchTolerance.IsPositive() {
		return fmt.Errorf("%w: price_mismatch_tolerance must be > 0", ErrInvalidConfig)
	}
	if c.PriceCeiling.LessThanOrEqual(c.PriceFloor) {
		return fmt.Errorf("%w: price_ceiling must be > price_floor", ErrInvalidConfig)
	}
	return nil
}
