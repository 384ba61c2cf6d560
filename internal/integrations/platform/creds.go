package platform

import (
	"context"
	"fmt"
)

// SecretGetter resolves named secrets; satisfied by the paramstore client.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadCredentials fetches one organization's platform connection secrets.
// They are stored as three parameters under org/<id>/platform/.
func LoadCredentials(ctx context.Context, secrets SecretGetter, orgID int64, tokenURL string) (Credentials, error) {
	base := fmt.Sprintf("org/%d/platform", orgID)
	clientID, err := secrets.GetSecret(ctx, base+"/client_id")
	if err != nil {
		return Credentials{}, fmt.Errorf("platform: load client id: %w", err)
	}
	clientSecret, err := secrets.GetSecret(ctx, base+"/client_secret")
	if err != nil {
		return Credentials{}, fmt.Errorf("platform: load client secret: %w", err)
	}
	refreshToken, err := secrets.GetSecret(ctx, base+"/refresh_token")
	if err != nil {
		return Credentials{}, fmt.Errorf("platform: load refresh token: %w", err)
	}
	return Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		TokenURL:     tokenURL,
	}, nil
}
