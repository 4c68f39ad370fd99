package domain

import (
	"github.com/shopspring/decimal"
)

type CandidateStatus string

const (
	CandidatePending CandidateStatus = "pending"
	CandidateValid   CandidateStatus = "valid"
	CandidateFailed  CandidateStatus = "failed"
)

// FailReason is the terminal reason a candidate was rejected. Rejections are
// expected data, not errors: the scheduler consumes them when deciding whether
// a block is still viable.
type FailReason string

const (
	ReasonNoStoreLink     FailReason = "no_store_link"
	ReasonBlockedDomain   FailReason = "blocked_domain"
	ReasonForeignDomain   FailReason = "foreign_domain"
	ReasonDuplicateDomain FailReason = "duplicate_domain"
	ReasonListingURL      FailReason = "listing_url"
	ReasonExtractionError FailReason = "extraction_error"
	ReasonInvalidPrice    FailReason = "invalid_price"
	ReasonPriceMismatch   FailReason = "price_mismatch"
)

// RawResult is one entry as returned by the search-index provider, before
// normalization. Price comes over the wire as a string and may be empty or
// garbage.
type RawResult struct {
	Title        string
	Source       string // source label as reported by the index, e.g. "Magazine Luiza"
	Price        string
	ProductToken string // opaque handle resolved later to a concrete seller URL
}

// Candidate is one product offer under consideration as a price source.
//
// A candidate is created once from raw search results and mutated exactly once,
// pending → valid or pending → failed, by the validator. It is never deleted:
// failed candidates stay in the arena so the audit trail records why each
// source was excluded.
type Candidate struct {
	ID           int
	Title        string
	Source       string
	ListPrice    decimal.Decimal
	ProductToken string

	// Filled in lazily by validation.
	StoreURL    string
	StoreDomain string
	SitePrice   *decimal.Decimal

	// SettledPrice is the price used for aggregation once the candidate is
	// valid: the extracted site price when the mismatch check is enabled,
	// the original list price otherwise.
	SettledPrice decimal.Decimal
	Evidence     string

	Status     CandidateStatus
	FailReason FailReason // set iff Status == CandidateFailed
}

// Fail moves the candidate to its terminal failed state.
func (c *Candidate) Fail(reason FailReason) {
	c.Status = CandidateFailed
	c.FailReason = reason
}
