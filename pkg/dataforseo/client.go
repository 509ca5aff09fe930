// Package dataforseo provides a client for the DataForSEO v3 API.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dataforseo-mcp/internal/resilience"
)

// statusOK is the DataForSEO success status code, used both on the response
// envelope and on individual tasks.
const statusOK = 20000

// Client defines the DataForSEO operations used by the tool handlers.
type Client interface {
	// SearchVolume returns Google Ads search volume metrics for keywords.
	SearchVolume(ctx context.Context, req SearchVolumeRequest) ([]KeywordStat, error)
	// KeywordSuggestions returns Labs keyword suggestions seeded by one keyword.
	KeywordSuggestions(ctx context.Context, req SuggestionsRequest) ([]KeywordStat, error)
	// RankedKeywords returns the keywords a domain ranks for.
	RankedKeywords(ctx context.Context, req RankedKeywordsRequest) ([]RankedKeyword, error)
	// DomainRankOverview returns organic/paid visibility metrics for a domain.
	DomainRankOverview(ctx context.Context, req DomainOverviewRequest) (*DomainOverview, error)
	// BacklinksSummary returns backlink totals for a domain.
	BacklinksSummary(ctx context.Context, target string) (*BacklinksSummary, error)
}

// Option configures the DataForSEO client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryPolicy overrides the default retry backoff (for testing).
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	login    string
	password string
	baseURL  string
	limiter  *rate.Limiter
	retry    resilience.RetryPolicy
	breaker  *resilience.Breaker
	http     *http.Client
}

// NewClient creates a DataForSEO client authenticated with the account
// login and password (HTTP basic auth).
func NewClient(login, password string, opts ...Option) Client {
	c := &httpClient{
		login:    login,
		password: password,
		baseURL:  "https://api.dataforseo.com",
		limiter:  rate.NewLimiter(5, 5),
		retry:    resilience.DefaultRetryPolicy(),
		breaker: resilience.NewBreaker(5, 30*time.Second, func(from, to string) {
			zap.L().Warn("dataforseo breaker state change",
				zap.String("from", from),
				zap.String("to", to),
			)
		}),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the DataForSEO response envelope.
type apiResponse struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []apiTask `json:"tasks"`
}

type apiTask struct {
	StatusCode    int               `json:"status_code"`
	StatusMessage string            `json:"status_message"`
	Result        []json.RawMessage `json:"result"`
}

// post sends a DataForSEO task array to path and returns the first task's
// result entries. Transient failures (429, 5xx, transport errors) are
// retried with exponential backoff; a run of failed calls opens the breaker
// so an upstream outage fails fast instead of queuing behind timeouts.
func (c *httpClient) post(ctx context.Context, path string, payload any) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// The API accepts an array of task payloads; single-task requests wrap
	// the one payload.
	body, err := json.Marshal([]any{payload})
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: marshal request")
	}

	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	result, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) ([]json.RawMessage, error) {
		return c.postOnce(ctx, path, body)
	})
	c.breaker.Record(err)
	return result, err
}

// postOnce performs a single HTTP exchange and classifies its failures.
func (c *httpClient) postOnce(ctx context.Context, path string, body []byte) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: create request")
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "dataforseo: request failed"), 0)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("dataforseo: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, eris.Wrap(err, "dataforseo: unmarshal response")
	}
	if envelope.StatusCode != statusOK {
		return nil, eris.Errorf("dataforseo: api status %d: %s", envelope.StatusCode, envelope.StatusMessage)
	}
	if len(envelope.Tasks) == 0 {
		return nil, eris.New("dataforseo: empty task list in response")
	}
	task := envelope.Tasks[0]
	if task.StatusCode != statusOK {
		return nil, eris.Errorf("dataforseo: task status %d: %s", task.StatusCode, task.StatusMessage)
	}
	return task.Result, nil
}
