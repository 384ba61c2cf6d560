package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface consumers (the OpenAI, Twilio, and SendGrid
// clients) should depend on rather than the concrete *Client so they remain
// testable without real AWS calls.
type Getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// secretPayload is the JSON shape secrets are stored under in SSM.
type secretPayload struct {
	Token string `json:"token"`
}

// Client wraps an AWS SSM API for secret retrieval. All lookups are scoped
// under a fixed parameter prefix, e.g. /recruit-agent/prod.
type Client struct {
	api    ssmAPI
	prefix string
}

// New creates a Client with the given SSM API implementation and parameter
// prefix.
func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: prefix must not be empty")
	}
	return &Client{api: api, prefix: prefix}, nil
}

// GetSecret fetches the named secret under the client's prefix with
// decryption and unwraps the stored JSON payload.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	raw, err := c.getParameter(ctx, c.prefix+"/"+strings.Trim(name, "/"))
	if err != nil {
		return "", err
	}
	var sp secretPayload
	if err := json.Unmarshal([]byte(raw), &sp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret %q as JSON: %w", name, err)
	}
	if sp.Token == "" {
		return "", fmt.Errorf("paramstore: secret %q is empty", name)
	}
	return sp.Token, nil
}

func (c *Client) getParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}
