package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	getTimeout = 30 * time.Second
	putTimeout = 10 * time.Second

	// Idempotent GETs are retried a small fixed number of times with
	// exponential backoff; writes are attempted once.
	maxGetAttempts = 3
	retryBaseDelay = 2 * time.Second
)

// HTTPStatusError captures non-2xx platform responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("platform: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Credentials identify one organization's connection to the platform.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Client is a typed client for the recruitment platform REST API. Access
// tokens are minted and refreshed by an oauth2 TokenSource, replacing the
// manual refresh-on-401 dance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sleep      func(time.Duration)
}

type Option func(*Client)

// WithHTTPClient overrides the oauth2-derived client; used by tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSleep overrides the retry backoff sleeper; used by tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a platform client for one organization's credentials.
func NewClient(ctx context.Context, baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("platform: base URL must not be empty")
	}
	c := &Client{
		baseURL: baseURL,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		if creds.TokenURL == "" {
			return nil, errors.New("platform: token URL must not be empty")
		}
		conf := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: creds.TokenURL},
		}
		source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
		c.httpClient = oauth2.NewClient(ctx, source)
		c.httpClient.Timeout = getTimeout
	}
	return c, nil
}

// Candidates lists a page of candidates.
func (c *Client) Candidates(ctx context.Context, offset, limit int) (CandidatePage, error) {
	var page CandidatePage
	url := fmt.Sprintf("%s/candidates?offset=%d&limit=%d", c.baseURL, offset, limit)
	if err := c.getJSON(ctx, url, &page); err != nil {
		return CandidatePage{}, err
	}
	return page, nil
}

// CandidateDates fetches the creation dates of one candidate activity
// collection: "applications", "placements", "activities", or "notes".
func (c *Client) CandidateDates(ctx context.Context, candidateID int64, collection string) ([]time.Time, error) {
	var page DatedPage
	url := fmt.Sprintf("%s/candidates/%d/%s", c.baseURL, candidateID, collection)
	if err := c.getJSON(ctx, url, &page); err != nil {
		return nil, err
	}
	return page.Dates(), nil
}

// Placements lists a page of placements.
func (c *Client) Placements(ctx context.Context, offset, limit int) (PlacementPage, error) {
	var page PlacementPage
	url := fmt.Sprintf("%s/placements?offset=%d&limit=%d", c.baseURL, offset, limit)
	if err := c.getJSON(ctx, url, &page); err != nil {
		return PlacementPage{}, err
	}
	return page, nil
}

// Company fetches one company record.
func (c *Client) Company(ctx context.Context, companyID int64) (Company, error) {
	var company Company
	url := fmt.Sprintf("%s/companies/%d", c.baseURL, companyID)
	if err := c.getJSON(ctx, url, &company); err != nil {
		return Company{}, err
	}
	return company, nil
}

// CompanyMainContact fetches a company's main contact.
func (c *Client) CompanyMainContact(ctx context.Context, companyID int64) (Contact, error) {
	var contact Contact
	url := fmt.Sprintf("%s/companies/%d/maincontact", c.baseURL, companyID)
	if err := c.getJSON(ctx, url, &contact); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// UpdateApplicationStatus sets an application's status id. The operation is
// idempotent on the platform side, so the outbox drainer may safely retry it.
func (c *Client) UpdateApplicationStatus(ctx context.Context, applicationID, statusID int64) error {
	body, err := json.Marshal(map[string]int64{"statusId": statusID})
	if err != nil {
		return fmt.Errorf("platform: marshal status payload: %w", err)
	}

	url := fmt.Sprintf("%s/applications/%d", c.baseURL, applicationID)
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("platform: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform: update application %d: %w", applicationID, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxGetAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(retryBaseDelay << (attempt - 1))
		}
		raw, err := c.getOnce(ctx, url)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return err
			}
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("platform: decode %s: %w", url, err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: get %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("platform: read response body: %w", err)
	}
	return buf, nil
}

// retryable reports whether a GET failure is worth another attempt: network
// errors and 5xx/429 statuses are, other 4xx are not.
func retryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
