package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dfalcao/precario/internal/metrics"
	"github.com/dfalcao/precario/internal/search"
	"github.com/google/uuid"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodySize bounds how much of a store page we read: 5 MB is generous for
// any product page and keeps a misbehaving server from eating the worker.
const maxBodySize = 5 << 20

// StaticExtractor fetches the page with a plain HTTP GET and parses the HTML
// without executing scripts. Cheaper than the browser and enough for stores
// that render prices server-side; the browser extractor covers the rest.
type StaticExtractor struct {
	client      *http.Client
	evidenceDir string
	logger      *slog.Logger
}

func NewStaticExtractor(timeout time.Duration, evidenceDir string, logger *slog.Logger) *StaticExtractor {
	return &StaticExtractor{
		client:      &http.Client{Timeout: timeout},
		evidenceDir: evidenceDir,
		logger:      logger.With("component", "static_extractor"),
	}
}

func (e *StaticExtractor) Extract(ctx context.Context, pageURL string) (search.Extraction, error) {
	start := time.Now()
	ext, err := e.extract(ctx, pageURL)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExtractionDuration.WithLabelValues("static", status).Observe(time.Since(start).Seconds())
	return ext, err
}

func (e *StaticExtractor) extract(ctx context.Context, pageURL string) (search.Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return search.Extraction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return search.Extraction{}, fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return search.Extraction{}, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return search.Extraction{}, fmt.Errorf("read page: %w", err)
	}

	price, err := ParsePage(bytes.NewReader(body))
	if err != nil {
		return search.Extraction{}, err
	}

	evidence := e.saveEvidence(body)
	return search.Extraction{Price: price, Evidence: evidence}, nil
}

// saveEvidence archives the fetched HTML. Failure to write evidence is logged
// but never fails the extraction — the price is the product here.
func (e *StaticExtractor) saveEvidence(body []byte) string {
	if e.evidenceDir == "" {
		return ""
	}
	path := filepath.Join(e.evidenceDir, uuid.NewString()+".html")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		e.logger.Warn("write evidence file", "path", path, "error", err)
		return ""
	}
	return path
}
