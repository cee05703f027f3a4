package salute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultAuthURL is the SberDevices OAuth endpoint.
	DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

	// DefaultScope is the API scope requested for personal-use keys.
	DefaultScope = "SALUTE_SPEECH_PERS"

	// ExpiryMargin is subtracted from a token's expiry; a token is only handed
	// out while now < expiry - ExpiryMargin.
	ExpiryMargin = 30 * time.Second

	// msThreshold separates epoch milliseconds from epoch seconds in the
	// expires_at field. Epoch seconds stay below it until the year 5138.
	msThreshold = 100_000_000_000

	// maxErrorBody bounds how much of a failed response is kept in an APIError.
	maxErrorBody = 512
)

// TokenOption is a functional option for configuring a TokenCache.
type TokenOption func(*TokenCache)

// WithAuthURL overrides the token endpoint. Defaults to [DefaultAuthURL].
func WithAuthURL(u string) TokenOption {
	return func(c *TokenCache) {
		c.authURL = u
	}
}

// WithScope overrides the requested scope. Defaults to [DefaultScope].
func WithScope(scope string) TokenOption {
	return func(c *TokenCache) {
		c.scope = scope
	}
}

// WithTokenHTTPClient sets the HTTP client used for token exchanges.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(c *TokenCache) {
		c.httpClient = hc
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

// WithTokenMeterProvider sets the meter provider that receives the
// salutegw.token.refreshes counter. Defaults to the global provider.
func WithTokenMeterProvider(mp metric.MeterProvider) TokenOption {
	return func(c *TokenCache) {
		c.meterProvider = mp
	}
}

// TokenCache holds the current bearer token and refreshes it on demand.
//
// The token is replaced wholesale, never mutated. Concurrent callers that find
// the token stale share a single exchange: at most one request to the auth
// endpoint is in flight at any time and every waiter receives its result.
type TokenCache struct {
	authKey       string
	authURL       string
	scope         string
	httpClient    *http.Client
	now           func() time.Time
	meterProvider metric.MeterProvider
	refreshes     metric.Int64Counter

	group singleflight.Group

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewTokenCache creates a cache that exchanges authKey (the Base64 client
// credentials issued by SberDevices) for bearer tokens. authKey must be
// non-empty.
func NewTokenCache(authKey string, opts ...TokenOption) (*TokenCache, error) {
	if authKey == "" {
		return nil, ErrNoAuthKey
	}
	c := &TokenCache{
		authKey:    authKey,
		authURL:    DefaultAuthURL,
		scope:      DefaultScope,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	var err error
	c.refreshes, err = c.meterProvider.Meter(instrumentationName).Int64Counter("salutegw.token.refreshes",
		metric.WithDescription("Token exchanges with the auth endpoint by status."),
	)
	if err != nil {
		return nil, fmt.Errorf("salute: token counter: %w", err)
	}
	return c, nil
}

// AccessToken returns a usable bearer token, exchanging credentials first when
// the cached one is missing or about to expire. On failure it logs and returns
// "" while leaving the cache untouched; the following remote call then fails
// with an authorization error.
func (c *TokenCache) AccessToken(ctx context.Context) string {
	tok, err := c.Token(ctx)
	if err != nil {
		slog.Warn("salute: token exchange failed", "err", err)
		return ""
	}
	return tok.AccessToken
}

// Token returns the current token, refreshing it when stale.
func (c *TokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := c.fresh(); tok != nil {
		return tok, nil
	}

	// The exchange runs detached from any single caller so one cancelled
	// waiter does not fail the others.
	ch := c.group.DoChan("token", func() (any, error) {
		if tok := c.fresh(); tok != nil {
			return tok, nil
		}
		tok, err := c.exchange(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tok = tok
		c.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// fresh returns the cached token if it is still usable, otherwise nil.
func (c *TokenCache) fresh() *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok == nil || c.tok.AccessToken == "" {
		return nil
	}
	if !c.now().Before(c.tok.Expiry.Add(-ExpiryMargin)) {
		return nil
	}
	return c.tok
}

// tokenResponse is the JSON body returned by the auth endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (c *TokenCache) exchange(ctx context.Context) (tok *oauth2.Token, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}()

	form := url.Values{"scope": {c.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("salute: token: build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salute: token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, newAPIError("token", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("salute: token: decode response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, ErrEmptyToken
	}

	tok = &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      expiryTime(tr.ExpiresAt),
	}
	slog.Debug("salute: token refreshed", "expires", tok.Expiry.Format(time.TimeOnly))
	return tok, nil
}

// expiryTime converts expires_at to a time. The auth endpoint reports epoch
// milliseconds; plain epoch seconds are accepted too.
func expiryTime(v int64) time.Time {
	if v > msThreshold {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}

func newAPIError(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
