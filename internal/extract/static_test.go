package extract_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfalcao/precario/internal/extract"
	"github.com/shopspring/decimal"
)

const productPage = `<html><head>
	<meta property="og:price:amount" content="1899,90">
</head><body><h1>Furadeira de Impacto</h1></body></html>`

func TestStaticExtract_ParsesAndArchivesEvidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") == "" {
			t.Fatal("Accept-Language not set")
		}
		_, _ = w.Write([]byte(productPage))
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := extract.NewStaticExtractor(5*time.Second, dir, slog.New(slog.DiscardHandler))

	ext, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ext.Price.Equal(decimal.RequireFromString("1899.90")) {
		t.Fatalf("price = %s, want 1899.90", ext.Price)
	}
	if ext.Evidence == "" {
		t.Fatal("expected evidence path")
	}
	if filepath.Dir(ext.Evidence) != dir {
		t.Fatalf("evidence written outside dir: %s", ext.Evidence)
	}
	body, err := os.ReadFile(ext.Evidence)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	if string(body) != productPage {
		t.Fatal("evidence does not match fetched page")
	}
}

func TestStaticExtract_ErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := extract.NewStaticExtractor(5*time.Second, t.TempDir(), slog.New(slog.DiscardHandler))
	if _, err := e.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestStaticExtract_NoEvidenceDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(productPage))
	}))
	defer srv.Close()

	e := extract.NewStaticExtractor(5*time.Second, "", slog.New(slog.DiscardHandler))
	ext, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Evidence != "" {
		t.Fatalf("expected no evidence, got %q", ext.Evidence)
	}
}
