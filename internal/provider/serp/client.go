// Package serp talks to the shopping-search API: full-text product search and
// the second round-trip that resolves a product token to a seller URL.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dfalcao/precario/internal/domain"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "serp_client"),
	}
}

type shoppingResult struct {
	Title        string `json:"title"`
	Source       string `json:"source"`
	Price        string `json:"price"`
	ProductToken string `json:"product_token"`
}

type searchResponse struct {
	ShoppingResults []shoppingResult `json:"shopping_results"`
}

// Search runs a shopping query against the index. The caller treats a failed
// call as zero candidates; this method just reports the error.
func (c *Client) Search(ctx context.Context, query, locale string) ([]domain.RawResult, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("gl", locale)

	var resp searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("shopping search: %w", err)
	}

	raw := make([]domain.RawResult, 0, len(resp.ShoppingResults))
	for _, r := range resp.ShoppingResults {
		raw = append(raw, domain.RawResult{
			Title:        r.Title,
			Source:       r.Source,
			Price:        r.Price,
			ProductToken: r.ProductToken,
		})
	}
	c.logger.Debug("shopping search done", "query", query, "results", len(raw))
	return raw, nil
}

type offersResponse struct {
	Sellers []struct {
		Name       string `json:"name"`
		DirectLink string `json:"direct_link"`
	} `json:"sellers"`
}

// Resolve implements search.Resolver: product token to concrete seller URL.
// A token the index no longer knows resolves to "" without error — the
// validator records it as a missing store link either way.
func (c *Client) Resolve(ctx context.Context, productToken string) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)

	endpoint := fmt.Sprintf("%s/product/%s/offers?%s", c.baseURL, url.PathEscape(productToken), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve offers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("resolve offers: unexpected status %d", resp.StatusCode)
	}

	var offers offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return "", fmt.Errorf("decode offers: %w", err)
	}
	for _, s := range offers.Sellers {
		if s.DirectLink != "" {
			return s.DirectLink, nil
		}
	}
	return "", nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
