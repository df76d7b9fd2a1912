package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"PocketAI/pkg/config"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var ErrGeminiDisabled = errors.New("gemini is disabled via config")

// ChatMessage is one dialogue turn as the Gemini API expects it: role is
// "user" or "model".
type ChatMessage struct {
	Role string
	Text string
}

// GeminiClient talks to the Generative Language API over plain HTTP. It is
// constructed explicitly and injected wherever model calls are needed, so
// tests can point BaseURL at an httptest server.
type GeminiClient struct {
	apiKey     string
	model      string
	imageModel string
	baseURL    string
	enabled    bool
	httpc      *http.Client
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string // defaults to the public endpoint
	Enabled    bool
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = config.GeminiModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = config.GeminiImageModel
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		enabled:    cfg.Enabled,
		httpc:      http.DefaultClient,
	}
}

// GeminiClientFromEnv builds a client from the package config vars.
func GeminiClientFromEnv() *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:  config.GeminiAPIKey,
		Enabled: config.IsGeminiEnabled,
	})
}

func (c *GeminiClient) ready() error {
	if !c.enabled {
		log.Printf("[gemini] disabled via config (IsGeminiEnabled=false)")
		return ErrGeminiDisabled
	}
	if strings.TrimSpace(c.apiKey) == "" {
		log.Printf("[gemini] GEMINI_API_KEY is not set")
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return nil
}

// GenerateText sends the ordered dialogue to the text model and returns the
// generated reply. Retries once after a short pause on retriable statuses
// (quota/overload), matching upstream guidance.
func (c *GeminiClient) GenerateText(ctx context.Context, chat []ChatMessage) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	contents := make([]any, 0, len(chat))
	for _, m := range chat {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "model" {
			role = "user"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": m.Text}},
		})
	}
	reqBody := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     0.6,
			"maxOutputTokens": 2048,
			"topK":            40,
			"topP":            0.9,
		},
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.generateContent(ctx, c.model, body)
	if err != nil && isRetriable(err) {
		sleepWithContext(ctx, 2*time.Second)
		resp, err = c.generateContent(ctx, c.model, body)
	}
	if err != nil {
		return "", err
	}
	text := resp.text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return strings.TrimSpace(text), nil
}

// GenerateImage asks the image model for the given prompt. The classified
// result distinguishes an inline image payload from a plain-text reply; see
// ClassifyImageResponse.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (ModelResult, error) {
	if err := c.ready(); err != nil {
		return ModelResult{}, err
	}

	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": []any{map[string]any{"text": prompt}},
			},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.generateContent(ctx, c.imageModel, body)
	if err != nil && isRetriable(err) {
		sleepWithContext(ctx, 2*time.Second)
		resp, err = c.generateContent(ctx, c.imageModel, body)
	}
	if err != nil {
		return ModelResult{}, err
	}
	return ClassifyImageResponse(resp), nil
}

// DescribeImage sends a multimodal request: the user's text alongside an
// inline base64 image, returning the model's textual answer.
func (c *GeminiClient) DescribeImage(ctx context.Context, text, mimeType, imageBase64 string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"role": "user",
				"parts": []any{
					map[string]any{"text": text},
					map[string]any{"inlineData": map[string]any{
						"mimeType": mimeType,
						"data":     imageBase64,
					}},
				},
			},
		},
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.generateContent(ctx, c.model, body)
	if err != nil && isRetriable(err) {
		sleepWithContext(ctx, 2*time.Second)
		resp, err = c.generateContent(ctx, c.model, body)
	}
	if err != nil {
		return "", err
	}
	text = resp.text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return strings.TrimSpace(text), nil
}

// generateResponse mirrors the candidates/content/parts shape of a
// generateContent reply; only the fields we read are declared.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type responsePart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
}

func (r *generateResponse) parts() []responsePart {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

func (r *generateResponse) text() string {
	var b strings.Builder
	for _, p := range r.parts() {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (c *GeminiClient) generateContent(ctx context.Context, model string, body []byte) (*generateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	log.Printf("[gemini] POST model=%s", model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected response body: %w", err)
	}
	return &parsed, nil
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
