package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songforge/internal/config"
	"songforge/internal/services"
)

// HTTPDoer describes the HTTP client used by the generator service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request carries everything the generation service needs to render a song.
type Request struct {
	SessionID         string `json:"session_id"`
	UserID            string `json:"user_id"`
	Title             string `json:"title"`
	Genre             string `json:"genre"`
	Mood              string `json:"mood"`
	Duration          string `json:"duration"`
	ArtistInspiration string `json:"artist_inspiration"`
	Language          string `json:"language"`
	Key               string `json:"key"`
	BPM               int    `json:"bpm"`
	VocalRange        string `json:"vocal_range,omitempty"`
}

// Artifact is the rendered output returned by the generation service.
type Artifact struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Key             string    `json:"key"`
	BPM             int       `json:"bpm"`
	DurationSeconds int       `json:"duration_seconds"`
	Format          string    `json:"format"`
	CreatedAt       time.Time `json:"created_at"`
}

// Client talks to the external song generation service.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient constructs a generator client from application config.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil {
		return &Client{client: http.DefaultClient}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Generator.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.Generator.APIKey),
		client:  &http.Client{Timeout: cfg.GeneratorTimeout()},
	}
}

// NewClientWithDoer constructs a client with an injected HTTP doer for tests.
func NewClientWithDoer(baseURL, apiKey string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  doer,
	}
}

// Generate renders a song. Any transport or service failure is tagged
// ErrGenerationFailed so the session engine can keep the session retryable.
func (c *Client) Generate(ctx context.Context, request Request) (*Artifact, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "generate", "base url not configured", nil)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrGenerationFailed, "generator", "generate", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrGenerationFailed, "generator", "generate",
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var artifact Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return nil, services.Wrap(services.ErrGenerationFailed, "generator", "generate", "decode response", err)
	}
	if artifact.ID == "" {
		return nil, services.Wrap(services.ErrGenerationFailed, "generator", "generate", "response missing artifact id", nil)
	}
	return &artifact, nil
}
