package serp_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dfalcao/precario/internal/provider/serp"
)

func TestSearch_DecodesShoppingResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "notebook dell" {
			t.Fatalf("unexpected query %q", r.URL.Query().Get("q"))
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Fatal("api key not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shopping_results":[
			{"title":"Notebook Dell","source":"Kabum","price":"3199.90","product_token":"abc"},
			{"title":"Notebook Dell 2","source":"Pichau","price":"3299.00","product_token":"def"}
		]}`))
	}))
	defer srv.Close()

	c := serp.NewClient(srv.URL, "test-key", 5*time.Second, slog.New(slog.DiscardHandler))
	raw, err := c.Search(context.Background(), "notebook dell", "br")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 results, got %d", len(raw))
	}
	if raw[0].ProductToken != "abc" || raw[0].Price != "3199.90" {
		t.Fatalf("first result decoded wrong: %+v", raw[0])
	}
}

func TestSearch_ErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := serp.NewClient(srv.URL, "test-key", 5*time.Second, slog.New(slog.DiscardHandler))
	if _, err := c.Search(context.Background(), "notebook", "br"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestResolve_FirstSellerWithLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product/abc/offers" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sellers":[
			{"name":"Marketplace","direct_link":""},
			{"name":"Kabum","direct_link":"https://www.kabum.com.br/produto/1"}
		]}`))
	}))
	defer srv.Close()

	c := serp.NewClient(srv.URL, "test-key", 5*time.Second, slog.New(slog.DiscardHandler))
	link, err := c.Resolve(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "https://www.kabum.com.br/produto/1" {
		t.Fatalf("link = %q", link)
	}
}

func TestResolve_NotFoundIsNoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := serp.NewClient(srv.URL, "test-key", 5*time.Second, slog.New(slog.DiscardHandler))
	link, err := c.Resolve(context.Background(), "gone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "" {
		t.Fatalf("expected empty link, got %q", link)
	}
}
