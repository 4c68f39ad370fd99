package search_test

import (
	"reflect"
	"testing"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/search"
)

func rawResults() []domain.RawResult {
	return []domain.RawResult{
		{Title: "Notebook A", Source: "Kabum", Price: "3200.00", ProductToken: "a"},
		{Title: "Notebook B", Source: "OLX.com.br", Price: "2500.00", ProductToken: "b"}, // blocked source
		{Title: "Notebook C", Source: "Magazine Luiza", Price: "2999.90", ProductToken: "c"},
		{Title: "Notebook D", Source: "Americanas", Price: "", ProductToken: "d"},        // no price
		{Title: "Notebook E", Source: "Casas Bahia", Price: "R$ 3.100", ProductToken: "e"}, // non-numeric
		{Title: "Notebook F", Source: "Fast Shop", Price: "0", ProductToken: "f"},        // non-positive
		{Title: "Notebook G", Source: "Pichau", Price: "-10", ProductToken: "g"},
		{Title: "Notebook H", Source: "Terabyte", Price: "2999.90", ProductToken: "h"}, // tie with C
	}
}

func TestNormalize_DiscardsSortsAndCaps(t *testing.T) {
	got := search.Normalize(rawResults(), testClassifier(), 30)

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	// Ascending by price; the C/H tie keeps input order.
	wantTokens := []string{"c", "h", "a"}
	for i, want := range wantTokens {
		if got[i].ProductToken != want {
			t.Fatalf("candidate %d token = %s, want %s", i, got[i].ProductToken, want)
		}
		if got[i].Status != domain.CandidatePending {
			t.Fatalf("candidate %d status = %s, want pending", i, got[i].Status)
		}
		if got[i].ID != i+1 {
			t.Fatalf("candidate %d id = %d, want %d", i, got[i].ID, i+1)
		}
	}
}

func TestNormalize_TruncatesExpensiveTail(t *testing.T) {
	got := search.Normalize(rawResults(), testClassifier(), 2)

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[len(got)-1].ProductToken != "h" {
		t.Fatalf("expected the 3200 candidate dropped, last is %s", got[len(got)-1].ProductToken)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if got := search.Normalize(nil, testClassifier(), 30); len(got) != 0 {
		t.Fatalf("expected empty output, got %d", len(got))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := rawResults()
	first := search.Normalize(raw, testClassifier(), 30)
	second := search.Normalize(raw, testClassifier(), 30)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(*first[i], *second[i]) {
			t.Fatalf("candidate %d differs between runs", i)
		}
	}
}
