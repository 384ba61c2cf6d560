package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// messageResponse is the minimal shape of a Messages.json response.
type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Getter resolves named secrets; satisfied by the paramstore client.
type Getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses from the Twilio API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("twilio: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client sends SMS and WhatsApp messages through the Twilio Messages API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	accountSID string
	secretName string

	keyOnce   sync.Once
	authToken string
	keyErr    error
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

// NewClient creates a Client for one Twilio account. The auth token is
// resolved from the secret getter on first use.
func NewClient(getter Getter, accountSID, secretName string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("twilio: secret getter must not be nil")
	}
	if strings.TrimSpace(accountSID) == "" {
		return nil, errors.New("twilio: account SID must not be empty")
	}
	secretName = strings.TrimSpace(secretName)
	if secretName == "" {
		return nil, errors.New("twilio: secret name must not be empty")
	}
	c := &Client{
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		getter:     getter,
		accountSID: accountSID,
		secretName: secretName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendSMS delivers one SMS message and returns the message SID.
func (c *Client) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	return c.send(ctx, url.Values{
		"From": {from},
		"To":   {to},
		"Body": {body},
	})
}

// SendWhatsApp delivers one free-form WhatsApp message, valid inside the
// 24-hour customer service window, and returns the message SID.
func (c *Client) SendWhatsApp(ctx context.Context, from, to, body string) (string, error) {
	return c.send(ctx, url.Values{
		"From": {"whatsapp:" + from},
		"To":   {"whatsapp:" + to},
		"Body": {body},
	})
}

// SendWhatsAppTemplate delivers an approved template message, required for
// the first business-initiated WhatsApp contact. Twilio expects the
// template variables as a JSON string.
func (c *Client) SendWhatsAppTemplate(ctx context.Context, from, to, contentSID string, variables map[string]string) (string, error) {
	vars, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("twilio: marshal template variables: %w", err)
	}
	return c.send(ctx, url.Values{
		"From":             {"whatsapp:" + from},
		"To":               {"whatsapp:" + to},
		"ContentSid":       {contentSID},
		"ContentVariables": {string(vars)},
	})
}

func (c *Client) send(ctx context.Context, form url.Values) (string, error) {
	authToken, err := c.resolveAuthToken(ctx)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, authToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: send message: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("twilio: read response body: %w", err)
	}
	var payload messageResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("twilio: decode response: %w", err)
	}
	return payload.SID, nil
}

func (c *Client) resolveAuthToken(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.authToken, c.keyErr = c.getter.GetSecret(ctx, c.secretName)
		if c.keyErr == nil && strings.TrimSpace(c.authToken) == "" {
			c.keyErr = errors.New("twilio: auth token secret is empty")
		}
	})
	return c.authToken, c.keyErr
}
