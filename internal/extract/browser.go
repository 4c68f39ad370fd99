package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dfalcao/precario/internal/metrics"
	"github.com/dfalcao/precario/internal/search"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// BrowserExtractor drives a shared headless Chromium via rod. Stores that
// render prices client-side only give them up after scripts run, so this is
// the primary extractor; the evidence is a full-page screenshot.
type BrowserExtractor struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	timeout     time.Duration
	evidenceDir string
	logger      *slog.Logger
}

func NewBrowserExtractor(timeout time.Duration, evidenceDir string, logger *slog.Logger) (*BrowserExtractor, error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu").
		Set("lang", "pt-BR")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &BrowserExtractor{
		browser:     browser,
		launcher:    l,
		timeout:     timeout,
		evidenceDir: evidenceDir,
		logger:      logger.With("component", "browser_extractor"),
	}, nil
}

func (e *BrowserExtractor) Close() {
	if err := e.browser.Close(); err != nil {
		e.logger.Warn("close browser", "error", err)
	}
	e.launcher.Cleanup()
}

func (e *BrowserExtractor) Extract(ctx context.Context, pageURL string) (search.Extraction, error) {
	start := time.Now()
	ext, err := e.extract(ctx, pageURL)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExtractionDuration.WithLabelValues("browser", status).Observe(time.Since(start).Seconds())
	return ext, err
}

func (e *BrowserExtractor) extract(ctx context.Context, pageURL string) (search.Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return search.Extraction{}, fmt.Errorf("open page: %w", err)
	}
	page = page.Context(ctx)
	defer func() { _ = page.Close() }()

	if err := page.Navigate(pageURL); err != nil {
		return search.Extraction{}, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return search.Extraction{}, fmt.Errorf("wait load: %w", err)
	}
	// Give client-side price widgets a beat to settle.
	page.WaitRequestIdle(2*time.Second, nil, nil, nil)()

	html, err := page.HTML()
	if err != nil {
		return search.Extraction{}, fmt.Errorf("read html: %w", err)
	}

	price, err := ParsePage(strings.NewReader(html))
	if err != nil {
		return search.Extraction{}, err
	}

	return search.Extraction{Price: price, Evidence: e.screenshot(page)}, nil
}

func (e *BrowserExtractor) screenshot(page *rod.Page) string {
	if e.evidenceDir == "" {
		return ""
	}
	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		e.logger.Warn("capture screenshot", "error", err)
		return ""
	}
	path := filepath.Join(e.evidenceDir, uuid.NewString()+".png")
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		e.logger.Warn("write screenshot", "path", path, "error", err)
		return ""
	}
	return path
}
