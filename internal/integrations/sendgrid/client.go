package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mailRequest is the minimal v3 mail send payload.
type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	ReplyTo          *emailAddress     `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Getter resolves named secrets; satisfied by the paramstore client.
type Getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses from the mail API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sendgrid: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client sends transactional email through the SendGrid v3 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	secretName string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given secret getter for API key
// retrieval.
func NewClient(getter Getter, secretName string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("sendgrid: secret getter must not be nil")
	}
	secretName = strings.TrimSpace(secretName)
	if secretName == "" {
		return nil, errors.New("sendgrid: secret name must not be empty")
	}
	c := &Client{
		baseURL:    "https://api.sendgrid.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		getter:     getter,
		secretName: secretName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send delivers one email and returns the provider message id. A non-2xx
// response surfaces as *HTTPStatusError; the caller decides whether the
// turn is recorded as sent or failed.
func (c *Client) Send(ctx context.Context, from, to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("sendgrid: recipient must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(mailRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: from},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	})
	if err != nil {
		return "", fmt.Errorf("sendgrid: marshal request: %w", err)
	}

	url := c.baseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sendgrid: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sendgrid: send to %s: %w", to, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	return res.Header.Get("X-Message-Id"), nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.getter.GetSecret(ctx, c.secretName)
		if c.keyErr == nil && strings.TrimSpace(c.apiKey) == "" {
			c.keyErr = errors.New("sendgrid: API key secret is empty")
		}
	})
	return c.apiKey, c.keyErr
}
