// Package quickbooks connects a user to QuickBooks Online over OAuth2 and
// proxies read-only accounting queries with the stored token bundle.
package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	authURL         = "https://appcenter.intuit.com/connect/oauth2"
	tokenURL        = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	sandboxBaseURL  = "https://sandbox-quickbooks.api.intuit.com"
	prodBaseURL     = "https://quickbooks.api.intuit.com"
	accountingScope = "com.intuit.quickbooks.accounting"
	minorVersion    = "65"
	maxErrorBody    = 512
)

var reportName = regexp.MustCompile(`^[A-Za-z]+$`)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Environment is "sandbox" or "production".
	Environment string
}

// TokenStore persists the bundle on the connecting user.
type TokenStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	SaveQuickBooksToken(ctx context.Context, id string, t *model.QuickBooksToken) error
	ClearQuickBooks(ctx context.Context, id string) error
}

type Status struct {
	Connected bool       `json:"connected"`
	RealmID   string     `json:"realmId,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

type Client struct {
	oauth      *oauth2.Config
	apiBase    string
	store      TokenStore
	httpClient *http.Client
	logger     logger.ZapLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoints overrides the Intuit hosts.
func WithEndpoints(auth, token, api string) Option {
	return func(c *Client) {
		c.oauth.Endpoint.AuthURL = auth
		c.oauth.Endpoint.TokenURL = token
		c.apiBase = strings.TrimRight(api, "/")
	}
}

func NewClient(cfg Config, store TokenStore, log logger.ZapLogger, opts ...Option) *Client {
	base := sandboxBaseURL
	if strings.EqualFold(cfg.Environment, "production") {
		base = prodBaseURL
	}
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{accountingScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBase:    base,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != ""
}

func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades the callback code for a token bundle and stores it on the user.
func (c *Client) Exchange(ctx context.Context, userID, code, realmID string) (*model.QuickBooksToken, error) {
	if !c.Configured() {
		return nil, apperr.NotConfigured("quickbooks")
	}
	if code == "" || realmID == "" {
		return nil, apperr.Validation("code and realmId are required")
	}
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, apperr.Upstream("quickbooks", err)
	}
	bundle := &model.QuickBooksToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		RealmID:      realmID,
		Expiry:       tok.Expiry,
		Connected:    true,
	}
	if err := c.store.SaveQuickBooksToken(ctx, userID, bundle); err != nil {
		return nil, err
	}
	c.logger.Info("quickbooks connected", zap.String("user_id", userID), zap.String("realm_id", realmID))
	return bundle, nil
}

func (c *Client) Status(ctx context.Context, userID string) (*Status, error) {
	bundle, err := c.bundle(ctx, userID)
	if errors.Is(err, apperr.ErrNotConfigured) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	expiry := bundle.Expiry
	return &Status{Connected: true, RealmID: bundle.RealmID, Expiry: &expiry}, nil
}

func (c *Client) Disconnect(ctx context.Context, userID string) error {
	if err := c.store.ClearQuickBooks(ctx, userID); err != nil {
		return err
	}
	c.logger.Info("quickbooks disconnected", zap.String("user_id", userID))
	return nil
}

// Query runs a QuickBooks query-language statement for the user's company.
func (c *Client) Query(ctx context.Context, userID, statement string) (json.RawMessage, error) {
	return c.get(ctx, userID, "query", url.Values{"query": {statement}})
}

func (c *Client) Report(ctx context.Context, userID, name string, params url.Values) (json.RawMessage, error) {
	if !reportName.MatchString(name) {
		return nil, apperr.Validation("report name must be letters only")
	}
	return c.get(ctx, userID, "reports/"+name, params)
}

func (c *Client) bundle(ctx context.Context, userID string) (*model.QuickBooksToken, error) {
	u, err := c.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user", userID)
	}
	if u.QuickBooks == nil || !u.QuickBooks.Connected || u.QuickBooks.RefreshToken == "" {
		return nil, apperr.NotConfigured("quickbooks")
	}
	return u.QuickBooks, nil
}

// token returns a valid access token, refreshing and persisting it when expired.
func (c *Client) token(ctx context.Context, userID string) (*oauth2.Token, string, error) {
	bundle, err := c.bundle(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	current := &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       bundle.Expiry,
	}
	tok, err := c.oauth.TokenSource(c.oauthContext(ctx), current).Token()
	if err != nil {
		return nil, "", apperr.Upstream("quickbooks", fmt.Errorf("refresh token: %w", err))
	}
	if tok.AccessToken != current.AccessToken {
		refreshed := &model.QuickBooksToken{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			RealmID:      bundle.RealmID,
			Expiry:       tok.Expiry,
			Connected:    true,
		}
		if err := c.store.SaveQuickBooksToken(ctx, userID, refreshed); err != nil {
			c.logger.Error("failed to persist refreshed quickbooks token", zap.String("user_id", userID), zap.Error(err))
		} else {
			c.logger.Debug("quickbooks token refreshed", zap.String("user_id", userID))
		}
	}
	return tok, bundle.RealmID, nil
}

func (c *Client) get(ctx context.Context, userID, path string, params url.Values) (json.RawMessage, error) {
	tok, realmID, err := c.token(ctx, userID)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("minorversion", minorVersion)
	endpoint := fmt.Sprintf("%s/v3/company/%s/%s?%s", c.apiBase, url.PathEscape(realmID), path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("quickbooks", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Upstream("quickbooks", fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(string(raw))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		return nil, apperr.Upstream("quickbooks", fmt.Errorf("http %d: %s", resp.StatusCode, body))
	}
	return json.RawMessage(raw), nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
