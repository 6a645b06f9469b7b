package patents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"iprisk-backend/internal/retry"
)

const defaultResultsPerQuery = 10

// HTTPClient queries a JSON patent search endpoint:
// POST {query, focus, limit} -> {results: [Candidate]}.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	limit      int
	httpClient *http.Client
}

// NewHTTPClient builds a client for endpoint. apiKey is sent as a bearer token when set.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("PATENT_SEARCH_URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(apiKey),
		limit:      defaultResultsPerQuery,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	Focus string `json:"focus,omitempty"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []Candidate `json:"results"`
}

// HTTPError is a non-2xx response from the search endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	if msg == "" {
		msg = "<empty body>"
	}
	return fmt.Sprintf("patent search http %d: %s", e.StatusCode, msg)
}

// Search runs one query. Client errors other than 408/429 are permanent.
func (c *HTTPClient) Search(ctx context.Context, q Query) ([]Candidate, error) {
	payload, err := json.Marshal(searchRequest{Query: q.Text, Focus: q.Focus, Limit: c.limit})
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("patent search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("patent search read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if retry.PermanentStatus(resp.StatusCode) {
			return nil, retry.Permanent(herr)
		}
		return nil, herr
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("patent search parse: %w", err)
	}
	out := make([]Candidate, 0, len(parsed.Results))
	for _, c := range parsed.Results {
		if NormalizeNumber(c.PatentNumber) == "" {
			continue
		}
		c.LegalStatus = NormalizeStatus(c.LegalStatus)
		out = append(out, c)
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
