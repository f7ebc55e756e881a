package weightlabel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visionServer(t *testing.T, status int, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	captured := &chatRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestRecognize(t *testing.T) {
	server, captured := visionServer(t, http.StatusOK, "```json\n{\"weight\": 4.2, \"unit\": \"KG\"}\n```")
	r := NewRecognizer(Config{APIKey: "test-key", BaseURL: server.URL, Model: "vision-model"})

	reading, err := r.Recognize(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, &Reading{Weight: 4.2, Unit: UnitKG}, reading)

	require.Len(t, captured.Messages, 1)
	msg := captured.Messages[0]
	assert.Equal(t, "user", msg.Role)
	require.Len(t, msg.Content, 2)
	assert.Contains(t, msg.Content[0].Text, "raw JSON object")
	assert.True(t, strings.HasPrefix(msg.Content[1].ImageURL.URL, "data:image/jpeg;base64,"))
	assert.Equal(t, "vision-model", captured.Model)
}

func TestRecognizeNotDetected(t *testing.T) {
	server, _ := visionServer(t, http.StatusOK, `{"weight": null, "unit": null, "error": "not found"}`)
	r := NewRecognizer(Config{APIKey: "test-key", BaseURL: server.URL})

	reading, err := r.Recognize(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Nil(t, reading)
}

func TestRecognizeUpstreamFailure(t *testing.T) {
	server, _ := visionServer(t, http.StatusUnauthorized, "")
	r := NewRecognizer(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := r.Recognize(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.ErrorContains(t, err, "http 401")
}

func TestRecognizeUnconfigured(t *testing.T) {
	r := NewRecognizer(Config{})
	_, err := r.Recognize(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = r.Recognize(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
