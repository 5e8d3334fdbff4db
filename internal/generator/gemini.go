package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// #region config
const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel    = "gemini-3-flash-preview"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey        string
	Model         string
	Endpoint      string
	Timeout       time.Duration // per HTTP request; zero means no client-side timeout
	RatePerSecond float64       // zero or negative disables limiting
	HTTPClient    *http.Client
}
// #endregion config

// #region client
// Gemini calls the generateContent REST endpoint with a JSON response schema.
type Gemini struct {
	cfg     GeminiConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewGemini creates a Gemini client, filling unset fields with defaults.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGeminiEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Gemini{cfg: cfg, http: client, limiter: limiter}
}
// #endregion client

// #region request
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig"`
}

var insightSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"prompt":     map[string]string{"type": "STRING"},
		"suggestion": map[string]string{"type": "STRING"},
		"vision":     map[string]string{"type": "STRING"},
	},
	"required": []string{"prompt", "suggestion", "vision"},
}
// #endregion request

// #region generate
// Generate asks Gemini for an insight. Any transport error, non-2xx status,
// missing candidate or incomplete insight is returned as an error.
func (g *Gemini) Generate(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error) {
	if g.cfg.APIKey == "" {
		return insight.Insight{}, ErrNoCredentials
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return insight.Insight{}, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(b, tasks)}}}},
		GenerationConfig: map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   insightSchema,
		},
	})
	if err != nil {
		return insight.Insight{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.Endpoint, url.PathEscape(g.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return insight.Insight{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return insight.Insight{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return insight.Insight{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return insight.Insight{}, fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
	}

	return parseGeminiResponse(raw)
}

func parseGeminiResponse(raw []byte) (insight.Insight, error) {
	if !gjson.ValidBytes(raw) {
		return insight.Insight{}, fmt.Errorf("%w: response is not JSON", insight.ErrMalformed)
	}
	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		reason := gjson.GetBytes(raw, "promptFeedback.blockReason").String()
		if reason != "" {
			return insight.Insight{}, fmt.Errorf("%w: prompt blocked (%s)", insight.ErrMalformed, reason)
		}
		return insight.Insight{}, fmt.Errorf("%w: no candidate text", insight.ErrMalformed)
	}

	var out insight.Insight
	if err := json.Unmarshal([]byte(text.String()), &out); err != nil {
		return insight.Insight{}, fmt.Errorf("%w: candidate text: %v", insight.ErrMalformed, err)
	}
	if err := out.Validate(); err != nil {
		return insight.Insight{}, err
	}
	return out, nil
}
// #endregion generate
