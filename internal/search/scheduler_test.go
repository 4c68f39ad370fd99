package search_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/search"
	"github.com/shopspring/decimal"
)

// ---- fakes ----

type fakeResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	resolve func(token string) (string, error)
}

func (r *fakeResolver) Resolve(_ context.Context, token string) (string, error) {
	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[token]++
	r.mu.Unlock()
	return r.resolve(token)
}

func (r *fakeResolver) callCount(token string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[token]
}

func (r *fakeResolver) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

type fakeExtractor struct {
	extract func(url string) (search.Extraction, error)
}

func (e *fakeExtractor) Extract(_ context.Context, url string) (search.Extraction, error) {
	return e.extract(url)
}

// ---- helpers ----

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testClassifier() *classify.Classifier {
	return classify.New(classify.Config{
		BlockedDomains:      []string{"olx.com.br"},
		ComparatorDomains:   []string{"zoom.com.br"},
		ListingPathPatterns: []string{"/busca"},
	})
}

func testConfig(target int) search.Config {
	return search.Config{
		TargetCount:            target,
		VariationCeiling:       d("0.25"),
		VariationIncrement:     d("0.20"),
		VariationMax:           d("0.50"),
		MaxEscalations:         5,
		MaxCandidates:          30,
		PriceMismatchEnabled:   true,
		PriceMismatchTolerance: d("0.05"),
		PriceFloor:             d("1"),
		PriceCeiling:           d("100000000"),
	}
}

// arena builds an ascending, pending candidate list with one token per entry.
func arena(prices ...string) []*domain.Candidate {
	out := make([]*domain.Candidate, len(prices))
	for i, p := range prices {
		out[i] = &domain.Candidate{
			ID:           i + 1,
			Title:        fmt.Sprintf("item %d", i+1),
			Source:       fmt.Sprintf("Loja %d", i+1),
			ListPrice:    d(p),
			ProductToken: fmt.Sprintf("tok-%d", i+1),
			Status:       domain.CandidatePending,
		}
	}
	return out
}

// storeURL gives every token its own .br store domain.
func storeURL(token string) string {
	return fmt.Sprintf("https://%s.com.br/produto/1", token)
}

// listPriceExtractor answers every URL with the candidate's own list price.
func listPriceExtractor(candidates []*domain.Candidate) *fakeExtractor {
	byURL := make(map[string]decimal.Decimal)
	for _, c := range candidates {
		byURL[storeURL(c.ProductToken)] = c.ListPrice
	}
	return &fakeExtractor{extract: func(url string) (search.Extraction, error) {
		p, ok := byURL[url]
		if !ok {
			return search.Extraction{}, errors.New("unknown url")
		}
		return search.Extraction{Price: p, Evidence: "shot-" + url}, nil
	}}
}

func newEngine(t *testing.T, cfg search.Config, resolver search.Resolver, extractor search.Extractor) *search.Engine {
	t.Helper()
	e, err := search.NewEngine(cfg, resolver, extractor, testClassifier(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

// ---- tests ----

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(0)
	_, err := search.NewEngine(cfg, &fakeResolver{}, &fakeExtractor{}, testClassifier(), slog.New(slog.DiscardHandler))
	if !errors.Is(err, search.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// Prices [2000..3000], tolerance 25%, N=3: the cheapest anchor fails with
// no_store_link and the next three members validate, giving accepted prices
// {2100, 2200, 2400}.
func TestRun_CheapestAnchorFails(t *testing.T) {
	candidates := arena("2000", "2100", "2200", "2400", "2500", "3000")

	resolver := &fakeResolver{resolve: func(token string) (string, error) {
		if token == "tok-1" { // the 2000 candidate has no store link
			return "", nil
		}
		return storeURL(token), nil
	}}
	engine := newEngine(t, testConfig(3), resolver, listPriceExtractor(candidates))

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if len(out.Accepted) != 3 {
		t.Fatalf("expected 3 accepted, got %d", len(out.Accepted))
	}
	wantPrices := []string{"2100", "2200", "2400"}
	for i, want := range wantPrices {
		if !out.Accepted[i].SettledPrice.Equal(d(want)) {
			t.Fatalf("accepted[%d] = %s, want %s", i, out.Accepted[i].SettledPrice, want)
		}
	}
	if !out.Mean.Equal(d("2233.33")) {
		t.Fatalf("mean = %s, want 2233.33", out.Mean)
	}
	if !out.VariationPct.Equal(d("14.29")) {
		t.Fatalf("variation = %s, want 14.29", out.VariationPct)
	}
	if out.Diagnostics.EscalationsUsed != 0 {
		t.Fatalf("escalations = %d, want 0", out.Diagnostics.EscalationsUsed)
	}
	if got := out.Diagnostics.FailuresByReason[domain.ReasonNoStoreLink]; got != 1 {
		t.Fatalf("no_store_link failures = %d, want 1", got)
	}

	// No re-validation: every candidate hit the resolver at most once.
	for _, c := range candidates {
		if n := resolver.callCount(c.ProductToken); n > 1 {
			t.Fatalf("candidate %d resolved %d times", c.ID, n)
		}
	}
}

// No 25% window of size 3 exists, but one 20% escalation later a 30% window
// does: the run must succeed with exactly one escalation.
func TestRun_EscalatesTolerance(t *testing.T) {
	candidates := arena("1000", "1260", "1300")

	resolver := &fakeResolver{resolve: func(token string) (string, error) { return storeURL(token), nil }}
	engine := newEngine(t, testConfig(3), resolver, listPriceExtractor(candidates))

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if out.Diagnostics.EscalationsUsed != 1 {
		t.Fatalf("escalations = %d, want 1", out.Diagnostics.EscalationsUsed)
	}
	if !out.VariationPct.Equal(d("30")) {
		t.Fatalf("variation = %s, want 30", out.VariationPct)
	}
}

// Two candidates can never form a block of three: terminal failure with zero
// validations issued, bounded escalation.
func TestRun_ExhaustsWithTooFewCandidates(t *testing.T) {
	candidates := arena("1000", "1100")

	resolver := &fakeResolver{resolve: func(token string) (string, error) { return storeURL(token), nil }}
	engine := newEngine(t, testConfig(3), resolver, listPriceExtractor(candidates))

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchFailure {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if len(out.Accepted) != 0 {
		t.Fatalf("expected no accepted sources, got %d", len(out.Accepted))
	}
	if resolver.totalCalls() != 0 {
		t.Fatalf("expected no validations, got %d", resolver.totalCalls())
	}
	cfg := testConfig(3)
	if out.Diagnostics.EscalationsUsed > cfg.MaxEscalations {
		t.Fatalf("escalations %d exceed max %d", out.Diagnostics.EscalationsUsed, cfg.MaxEscalations)
	}
}

// Two candidates resolve to the same store domain; the second validated must
// fail duplicate_domain even though its other checks would pass.
func TestRun_DuplicateDomainRejected(t *testing.T) {
	candidates := arena("100", "104", "108")

	resolver := &fakeResolver{resolve: func(token string) (string, error) {
		if token == "tok-2" {
			return storeURL("tok-1"), nil // same domain as the first candidate
		}
		return storeURL(token), nil
	}}
	extractor := &fakeExtractor{extract: func(url string) (search.Extraction, error) {
		// Answer with whatever keeps the mismatch check quiet.
		for _, c := range candidates {
			if storeURL(c.ProductToken) == url || (c.ProductToken == "tok-2" && storeURL("tok-1") == url) {
				return search.Extraction{Price: c.ListPrice}, nil
			}
		}
		return search.Extraction{Price: d("100")}, nil
	}}
	engine := newEngine(t, testConfig(2), resolver, extractor)

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if candidates[1].FailReason != domain.ReasonDuplicateDomain {
		t.Fatalf("candidate 2 reason = %s, want duplicate_domain", candidates[1].FailReason)
	}
	seen := make(map[string]bool)
	for _, a := range out.Accepted {
		if seen[a.Domain] {
			t.Fatalf("duplicate accepted domain %s", a.Domain)
		}
		seen[a.Domain] = true
	}
}

// A block of five with target three must be abandoned after the third
// consecutive failure: 0 valid + 2 remaining can no longer reach 3.
func TestRun_AbandonsUnreachableBlock(t *testing.T) {
	candidates := arena("100", "100", "100", "100", "100")

	resolver := &fakeResolver{resolve: func(token string) (string, error) { return "", nil }}
	engine := newEngine(t, testConfig(3), resolver, &fakeExtractor{extract: func(string) (search.Extraction, error) {
		return search.Extraction{}, errors.New("should never be called")
	}})

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchFailure {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if resolver.totalCalls() != 3 {
		t.Fatalf("expected the block abandoned after 3 validations, got %d", resolver.totalCalls())
	}
	if candidates[3].Status != domain.CandidatePending || candidates[4].Status != domain.CandidatePending {
		t.Fatal("expected the last two members untouched")
	}
}

// Cancellation between validations discards accumulated sources and reports a
// distinct cancelled outcome.
func TestRun_Cancelled(t *testing.T) {
	candidates := arena("100", "102", "104")

	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{resolve: func(token string) (string, error) { return storeURL(token), nil }}
	extractor := &fakeExtractor{extract: func(url string) (search.Extraction, error) {
		defer cancel() // cancel once the first external call returns
		for _, c := range candidates {
			if storeURL(c.ProductToken) == url {
				return search.Extraction{Price: c.ListPrice}, nil
			}
		}
		return search.Extraction{}, errors.New("unknown url")
	}}
	engine := newEngine(t, testConfig(3), resolver, extractor)

	out := engine.Run(ctx, candidates)

	if out.Status != domain.SearchCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}
	if len(out.Accepted) != 0 {
		t.Fatalf("expected accumulated sources discarded, got %d", len(out.Accepted))
	}
}

// Validated members survive block re-formation: when a later block contains an
// already-valid candidate, it counts toward that block's threshold without
// being re-validated.
func TestRun_ValidSurvivesReformation(t *testing.T) {
	// Block 1 at 25%: [100, 110, 120, 125]. 110 and 120 resolve fine, 100 and
	// 125 fail, so block 1 exhausts with two valids. Re-formation over
	// [110, 120, 130] succeeds using the two existing valids plus 130.
	candidates := arena("100", "110", "120", "125", "130")

	resolver := &fakeResolver{resolve: func(token string) (string, error) {
		if token == "tok-1" || token == "tok-4" {
			return "", nil
		}
		return storeURL(token), nil
	}}
	engine := newEngine(t, testConfig(3), resolver, listPriceExtractor(candidates))

	out := engine.Run(context.Background(), candidates)

	if out.Status != domain.SearchSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	for _, token := range []string{"tok-2", "tok-3", "tok-5"} {
		if n := resolver.callCount(token); n != 1 {
			t.Fatalf("%s resolved %d times, want exactly 1", token, n)
		}
	}
	if len(out.Accepted) != 3 {
		t.Fatalf("expected 3 accepted, got %d", len(out.Accepted))
	}
}
