package search

import (
	"context"
	"log/slog"

	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/domain"
	"github.com/shopspring/decimal"
)

// Resolver resolves a product token from the search index to a concrete
// seller URL. An empty URL means the index has no store link for the offer.
type Resolver interface {
	Resolve(ctx context.Context, productToken string) (string, error)
}

// Extraction is a price read off a live store page, with an opaque evidence
// reference (screenshot path, archived HTML, ...).
type Extraction struct {
	Price    decimal.Decimal
	Evidence string
}

// Extractor reads the current price from a seller URL. Implementations must
// be timeout-bounded; the validator treats any error as a failed candidate,
// never as a failed search.
type Extractor interface {
	Extract(ctx context.Context, url string) (Extraction, error)
}

// Validator runs the ordered check pipeline for one pending candidate:
// store-link resolution, blocked/foreign domain, duplicate domain, listing
// page, price extraction, and the configurable price-consistency check.
// The first failing check is terminal; every candidate fed in ends up valid
// or failed, never in between.
type Validator struct {
	cfg        Config
	resolver   Resolver
	extractor  Extractor
	classifier *classify.Classifier
	logger     *slog.Logger
}

func NewValidator(cfg Config, resolver Resolver, extractor Extractor, classifier *classify.Classifier, logger *slog.Logger) *Validator {
	return &Validator{
		cfg:        cfg,
		resolver:   resolver,
		extractor:  extractor,
		classifier: classifier,
		logger:     logger.With("component", "validator"),
	}
}

// Validate mutates c to its terminal status. usedDomains is read-only here;
// the scheduler records the domain after a success so the decision step stays
// serialized even if callers ever issue network calls concurrently.
func (v *Validator) Validate(ctx context.Context, c *domain.Candidate, usedDomains map[string]struct{}) {
	if c.ProductToken == "" {
		c.Fail(domain.ReasonNoStoreLink)
		return
	}

	storeURL, err := v.resolver.Resolve(ctx, c.ProductToken)
	if err != nil {
		// Infrastructure trouble and "no link" are indistinguishable to the
		// search: the candidate fails either way.
		v.logger.Warn("store link resolution failed", "candidate_id", c.ID, "error", err)
		storeURL = ""
	}
	if storeURL == "" {
		c.Fail(domain.ReasonNoStoreLink)
		return
	}
	c.StoreURL = storeURL
	c.StoreDomain = v.classifier.Domain(storeURL)

	verdict := v.classifier.Classify(storeURL)
	if verdict == classify.VerdictBlocked {
		c.Fail(domain.ReasonBlockedDomain)
		return
	}
	if verdict == classify.VerdictForeign {
		c.Fail(domain.ReasonForeignDomain)
		return
	}

	// One accepted source per domain per search.
	if _, dup := usedDomains[c.StoreDomain]; dup {
		c.Fail(domain.ReasonDuplicateDomain)
		return
	}

	if verdict == classify.VerdictListing {
		c.Fail(domain.ReasonListingURL)
		return
	}

	ext, err := v.extractor.Extract(ctx, storeURL)
	if err != nil {
		v.logger.Warn("price extraction failed", "candidate_id", c.ID, "url", storeURL, "error", err)
		c.Fail(domain.ReasonExtractionError)
		return
	}
	c.Evidence = ext.Evidence

	if ext.Price.LessThanOrEqual(v.cfg.PriceFloor) || ext.Price.GreaterThan(v.cfg.PriceCeiling) {
		c.Fail(domain.ReasonInvalidPrice)
		return
	}
	site := ext.Price
	c.SitePrice = &site

	if v.cfg.PriceMismatchEnabled {
		diff := site.Sub(c.ListPrice).Abs().Div(c.ListPrice)
		if diff.GreaterThan(v.cfg.PriceMismatchTolerance) {
			c.Fail(domain.ReasonPriceMismatch)
			return
		}
		c.SettledPrice = site
	} else {
		// Extraction ran for evidence only; the list price the block was
		// selected on stays authoritative so the reported variation matches
		// the window the block was formed under.
		c.SettledPrice = c.ListPrice
	}

	c.Status = domain.CandidateValid
}
