package search_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/search"
)

func newValidator(resolver search.Resolver, extractor search.Extractor, cfg search.Config) *search.Validator {
	return search.NewValidator(cfg, resolver, extractor, testClassifier(), slog.New(slog.DiscardHandler))
}

func pendingCandidate(price string) *domain.Candidate {
	return &domain.Candidate{
		ID:           1,
		Title:        "Notebook",
		ListPrice:    d(price),
		ProductToken: "tok-1",
		Status:       domain.CandidatePending,
	}
}

func okResolver(url string) *fakeResolver {
	return &fakeResolver{resolve: func(string) (string, error) { return url, nil }}
}

func okExtractor(price string) *fakeExtractor {
	return &fakeExtractor{extract: func(string) (search.Extraction, error) {
		return search.Extraction{Price: d(price), Evidence: "evidence.png"}, nil
	}}
}

func TestValidate_FailureReasons(t *testing.T) {
	noUsed := map[string]struct{}{}

	tests := []struct {
		name      string
		candidate *domain.Candidate
		resolver  search.Resolver
		extractor search.Extractor
		used      map[string]struct{}
		want      domain.FailReason
	}{
		{
			name:      "empty token",
			candidate: &domain.Candidate{ListPrice: d("100"), Status: domain.CandidatePending},
			resolver:  okResolver("https://loja.com.br/p/1"),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonNoStoreLink,
		},
		{
			name:      "resolver returns nothing",
			candidate: pendingCandidate("100"),
			resolver:  okResolver(""),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonNoStoreLink,
		},
		{
			name:      "resolver errors map to no store link",
			candidate: pendingCandidate("100"),
			resolver: &fakeResolver{resolve: func(string) (string, error) {
				return "", errors.New("connection refused")
			}},
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonNoStoreLink,
		},
		{
			name:      "blocked domain",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://www.olx.com.br/item/1"),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonBlockedDomain,
		},
		{
			name:      "foreign domain",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://www.bestbuy.com/site/1"),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonForeignDomain,
		},
		{
			name:      "duplicate domain beats listing check",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/busca/notebook"),
			extractor: okExtractor("100"),
			used:      map[string]struct{}{"loja.com.br": {}},
			want:      domain.ReasonDuplicateDomain,
		},
		{
			name:      "listing page",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/busca/notebook"),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonListingURL,
		},
		{
			name:      "comparator is a listing regardless of path",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://www.zoom.com.br/notebook/preco"),
			extractor: okExtractor("100"),
			used:      noUsed,
			want:      domain.ReasonListingURL,
		},
		{
			name:      "extraction failure",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/p/1"),
			extractor: &fakeExtractor{extract: func(string) (search.Extraction, error) {
				return search.Extraction{}, errors.New("timeout")
			}},
			used: noUsed,
			want: domain.ReasonExtractionError,
		},
		{
			name:      "price below sanity floor",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/p/1"),
			extractor: okExtractor("0.5"),
			used:      noUsed,
			want:      domain.ReasonInvalidPrice,
		},
		{
			name:      "price above sanity ceiling",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/p/1"),
			extractor: okExtractor("200000000"),
			used:      noUsed,
			want:      domain.ReasonInvalidPrice,
		},
		{
			name:      "site price drifted beyond tolerance",
			candidate: pendingCandidate("100"),
			resolver:  okResolver("https://loja.com.br/p/1"),
			extractor: okExtractor("110"),
			used:      noUsed,
			want:      domain.ReasonPriceMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(tt.resolver, tt.extractor, testConfig(3))
			v.Validate(context.Background(), tt.candidate, tt.used)

			if tt.candidate.Status != domain.CandidateFailed {
				t.Fatalf("status = %s, want failed", tt.candidate.Status)
			}
			if tt.candidate.FailReason != tt.want {
				t.Fatalf("reason = %s, want %s", tt.candidate.FailReason, tt.want)
			}
		})
	}
}

func TestValidate_SettledPriceWithMismatchEnabled(t *testing.T) {
	c := pendingCandidate("100")
	v := newValidator(okResolver("https://loja.com.br/p/1"), okExtractor("103"), testConfig(3))

	v.Validate(context.Background(), c, map[string]struct{}{})

	if c.Status != domain.CandidateValid {
		t.Fatalf("status = %s (%s), want valid", c.Status, c.FailReason)
	}
	if !c.SettledPrice.Equal(d("103")) {
		t.Fatalf("settled = %s, want the site price 103", c.SettledPrice)
	}
	if c.StoreDomain != "loja.com.br" {
		t.Fatalf("domain = %s, want loja.com.br", c.StoreDomain)
	}
	if c.Evidence == "" {
		t.Fatal("expected evidence recorded")
	}
}

func TestValidate_SettledPriceWithMismatchDisabled(t *testing.T) {
	c := pendingCandidate("100")
	cfg := testConfig(3)
	cfg.PriceMismatchEnabled = false

	calls := 0
	extractor := &fakeExtractor{extract: func(string) (search.Extraction, error) {
		calls++
		return search.Extraction{Price: d("180"), Evidence: "evidence.png"}, nil
	}}
	v := newValidator(okResolver("https://loja.com.br/p/1"), extractor, cfg)

	v.Validate(context.Background(), c, map[string]struct{}{})

	if c.Status != domain.CandidateValid {
		t.Fatalf("status = %s (%s), want valid", c.Status, c.FailReason)
	}
	// Extraction still ran for evidence, but the list price settles.
	if calls != 1 {
		t.Fatalf("extractor called %d times, want 1", calls)
	}
	if !c.SettledPrice.Equal(d("100")) {
		t.Fatalf("settled = %s, want the list price 100", c.SettledPrice)
	}
}
