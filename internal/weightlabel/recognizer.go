package weightlabel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

const instruction = `You are reading a photographed weight label from a meat package or scale ticket.
Find the net weight and its unit.
Reply with ONLY a raw JSON object, no markdown and no explanation, in exactly this shape:
{"weight": <number>, "unit": "LBS" or "KG"}
If you cannot find a weight, reply with:
{"weight": null, "unit": null, "error": "not found"}`

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Recognizer turns label photos into readings via a vision chat-completion endpoint.
type Recognizer struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Recognizer)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Recognizer) {
		if client != nil {
			r.httpClient = client
		}
	}
}

func NewRecognizer(cfg Config, opts ...Option) *Recognizer {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	r := &Recognizer{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.BaseURL == "" {
		r.cfg.BaseURL = defaultBaseURL
	}
	return r
}

func (r *Recognizer) Configured() bool {
	return r.cfg.APIKey != ""
}

// Recognize sends one user turn with the instruction and the image. A nil
// reading with a nil error means the label was not detected.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, mimeType string) (*Reading, error) {
	if len(image) == 0 {
		return nil, apperr.Validation("image is required")
	}
	if !r.Configured() {
		return nil, apperr.Upstream("vision", errors.New("api key not configured"))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	text, err := r.complete(ctx, dataURL)
	if err != nil {
		return nil, apperr.Upstream("vision", err)
	}
	return ParseReply(text)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *Recognizer) complete(ctx context.Context, dataURL string) (string, error) {
	payload := chatRequest{
		Model: r.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature: 0,
		MaxTokens:   100,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
