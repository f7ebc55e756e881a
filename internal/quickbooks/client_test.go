package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	saves int
}

func (s *memStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SaveQuickBooksToken(_ context.Context, id string, t *model.QuickBooksToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	cp := *t
	s.users[id].QuickBooks = &cp
	return nil
}

func (s *memStore) ClearQuickBooks(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].QuickBooks = nil
	return nil
}

func newTokenServer(t *testing.T, access string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "the-code", r.PostForm.Get("code"))
		case "refresh_token":
			assert.Equal(t, "rt1", r.PostForm.Get("refresh_token"))
		default:
			t.Errorf("unexpected grant %q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "rt1",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(store TokenStore, tokenURL, apiURL string) *Client {
	return NewClient(Config{ClientID: "client-id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"},
		store, logger.NewNop(), WithEndpoints("http://auth.test/authorize", tokenURL, apiURL))
}

func TestExchangeStoresBundle(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1"}}}
	tokens := newTokenServer(t, "at1")
	c := newClient(store, tokens.URL, "http://api.test")

	bundle, err := c.Exchange(context.Background(), "rec1", "the-code", "9130")
	require.NoError(t, err)
	assert.Equal(t, "at1", bundle.AccessToken)
	require.NotNil(t, store.users["rec1"].QuickBooks)
	assert.Equal(t, "9130", store.users["rec1"].QuickBooks.RealmID)
	assert.True(t, store.users["rec1"].QuickBooks.Connected)

	status, err := c.Status(context.Background(), "rec1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "9130", status.RealmID)

	_, err = c.Exchange(context.Background(), "rec1", "", "9130")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueryRefreshesExpiredToken(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1", QuickBooks: &model.QuickBooksToken{
		AccessToken: "stale", RefreshToken: "rt1", RealmID: "9130",
		Expiry: time.Now().Add(-time.Hour), Connected: true,
	}}}}
	tokens := newTokenServer(t, "at2")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at2", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/company/9130/query", r.URL.Path)
		assert.Equal(t, "SELECT * FROM Customer", r.URL.Query().Get("query"))
		assert.Equal(t, minorVersion, r.URL.Query().Get("minorversion"))
		_, _ = w.Write([]byte(`{"QueryResponse":{"Customer":[{"Id":"1"}]}}`))
	}))
	defer api.Close()
	c := newClient(store, tokens.URL, api.URL)

	raw, err := c.Query(context.Background(), "rec1", "SELECT * FROM Customer")
	require.NoError(t, err)
	assert.JSONEq(t, `{"QueryResponse":{"Customer":[{"Id":"1"}]}}`, string(raw))
	assert.Equal(t, "at2", store.users["rec1"].QuickBooks.AccessToken)
	assert.Equal(t, 1, store.saves)
}

func TestQueryWithValidTokenSkipsRefresh(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1", QuickBooks: &model.QuickBooksToken{
		AccessToken: "fresh", RefreshToken: "rt1", RealmID: "9130",
		Expiry: time.Now().Add(time.Hour), Connected: true,
	}}}}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/9130/reports/ProfitAndLoss", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{"Header":{}}`))
	}))
	defer api.Close()
	c := newClient(store, "http://tokens.invalid", api.URL)

	_, err := c.Report(context.Background(), "rec1", "ProfitAndLoss", map[string][]string{"start_date": {"2026-01-01"}})
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}

func TestRequestsNeedConnection(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1"}}}
	c := newClient(store, "http://tokens.invalid", "http://api.invalid")

	_, err := c.Query(context.Background(), "rec1", "SELECT * FROM Item")
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)

	status, err := c.Status(context.Background(), "rec1")
	require.NoError(t, err)
	assert.False(t, status.Connected)

	_, err = c.Report(context.Background(), "rec1", "../admin", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpstreamErrorsAreTagged(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1", QuickBooks: &model.QuickBooksToken{
		AccessToken: "fresh", RefreshToken: "rt1", RealmID: "9130",
		Expiry: time.Now().Add(time.Hour), Connected: true,
	}}}}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"fault":"AuthenticationFailed"}`))
	}))
	defer api.Close()
	c := newClient(store, "http://tokens.invalid", api.URL)

	_, err := c.Query(context.Background(), "rec1", "SELECT * FROM Invoice")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Contains(t, err.Error(), "http 401")
}

func TestDisconnect(t *testing.T) {
	store := &memStore{users: map[string]*model.User{"rec1": {ID: "rec1", QuickBooks: &model.QuickBooksToken{RefreshToken: "rt1", Connected: true}}}}
	c := newClient(store, "http://tokens.invalid", "http://api.invalid")

	require.NoError(t, c.Disconnect(context.Background(), "rec1"))
	assert.Nil(t, store.users["rec1"].QuickBooks)
}

func TestAuthCodeURLCarriesScopeAndState(t *testing.T) {
	c := NewClient(Config{ClientID: "client-id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}, &memStore{}, logger.NewNop())
	u := c.AuthCodeURL("signed-state")
	assert.Contains(t, u, authURL)
	assert.Contains(t, u, "scope=com.intuit.quickbooks.accounting")
	assert.Contains(t, u, "state=signed-state")
	assert.True(t, c.Configured())
	assert.False(t, NewClient(Config{}, &memStore{}, logger.NewNop()).Configured())
}
