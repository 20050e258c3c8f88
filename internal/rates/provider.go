package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Provider fetches a full rate table against the pivot currency.
type Provider interface {
	FetchRates(ctx context.Context) (map[string]float64, error)
}

// HTTPProvider fetches rates from an exchangerate-api style endpoint:
// a single GET returning {"result": "success", "rates": {"EUR": 0.92, ...}}.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

type providerResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// NewHTTPProvider creates a provider for the given endpoint URL. The
// timeout bounds the whole fetch; the cache's degradation paths take over
// when it trips.
func NewHTTPProvider(url string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchRates performs the fetch. Any non-success response or malformed
// body is a fetch failure; the caller decides how to degrade.
func (p *HTTPProvider) FetchRates(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create rates request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rates API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	if apiResp.Result != "" && apiResp.Result != "success" {
		return nil, fmt.Errorf("rates API returned result=%s", apiResp.Result)
	}
	if len(apiResp.Rates) == 0 {
		return nil, fmt.Errorf("rates API returned no rates")
	}

	// The pivot's own rate is 1 by definition; enforce it rather than
	// trust the payload.
	apiResp.Rates[PivotCurrency] = 1

	p.logger.Debug("fetched exchange rates", "count", len(apiResp.Rates))
	return apiResp.Rates, nil
}
