package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is Twitch's OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// NewTokenSource returns a cached app access (client credentials) token source.
// The token is fetched lazily and refreshed when it expires. ctx should outlive
// every call made through the source; hc, when non-nil, is used for token requests.
func NewTokenSource(ctx context.Context, clientID, clientSecret, tokenURL string, hc *http.Client) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		// Twitch expects the credentials in the form body.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return cc.TokenSource(ctx)
}
