package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const lookupBaseURL = "https://finnhub.io/api/v1/search"

// SymbolLookup validates tickers against the vendor's symbol search.
type SymbolLookup struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewSymbolLookup builds a lookup client for the given API token.
func NewSymbolLookup(token string) *SymbolLookup {
	return &SymbolLookup{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    lookupBaseURL,
		token:      token,
	}
}

type lookupResponse struct {
	Result []struct {
		Symbol string `json:"symbol"`
	} `json:"result"`
}

// Validate reports whether the search results contain an exact symbol match.
func (l *SymbolLookup) Validate(ctx context.Context, ticker string) (bool, error) {
	params := url.Values{"q": {ticker}, "token": {l.token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("ingest: lookup request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ingest: lookup %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ingest: lookup %s: status %d", ticker, resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("ingest: lookup %s: decode: %w", ticker, err)
	}
	for _, r := range body.Result {
		if r.Symbol == ticker {
			return true, nil
		}
	}
	return false, nil
}
