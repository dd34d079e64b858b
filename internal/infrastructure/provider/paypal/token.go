package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/companionly/payments-service/internal/domain/provider"
)

// expirySlack is subtracted from the token lifetime so a token is never used
// right at its expiry boundary.
const expirySlack = 60 * time.Second

// tokenSource caches the OAuth2 client-credentials token and refreshes it
// when it is about to expire. now is injectable for tests.
type tokenSource struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(clientID, clientSecret, baseURL string, client *http.Client) *tokenSource {
	return &tokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		client:       client,
		now:          time.Now,
	}
}

// Token returns a valid bearer token, fetching a new one if the cached token
// has expired.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiresAt) {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create token request",
			Details: err.Error(),
		}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal token request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read token response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &provider.ProviderError{
			Code:    "AUTH_ERROR",
			Message: fmt.Sprintf("PayPal token request returned %d", resp.StatusCode),
			Details: string(body),
		}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse token response",
			Details: err.Error(),
		}
	}
	if result.AccessToken == "" {
		return "", &provider.ProviderError{
			Code:    "AUTH_ERROR",
			Message: "PayPal token response contained no access token",
		}
	}

	t.token = result.AccessToken
	t.expiresAt = t.now().Add(time.Duration(result.ExpiresIn)*time.Second - expirySlack)
	return t.token, nil
}
