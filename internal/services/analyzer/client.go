package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"songforge/internal/config"
	"songforge/internal/music"
	"songforge/internal/services"
	"songforge/internal/voice"
)

// HTTPDoer describes the HTTP client used by the analyzer service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type analyzeRequest struct {
	UserID   string `json:"user_id"`
	AssetRef string `json:"asset_ref"`
}

type analyzeResponse struct {
	VocalRange      string   `json:"vocal_range"`
	RangeDetail     string   `json:"range_detail"`
	OptimalKeys     []string `json:"optimal_keys"`
	TempoMin        int      `json:"tempo_min"`
	TempoMax        int      `json:"tempo_max"`
	Characteristics []string `json:"characteristics"`
	Confidence      int      `json:"confidence"`
}

// Client talks to the external voice analysis service.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient constructs an analyzer client from application config.
// Returns nil when no analyzer is configured; profiles can still be
// ingested through the CLI.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || strings.TrimSpace(cfg.Analyzer.BaseURL) == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Analyzer.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.Analyzer.APIKey),
		client:  &http.Client{Timeout: cfg.AnalyzerTimeout()},
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

// Analyze submits a voice asset for analysis and maps the result onto a
// storable profile.
func (c *Client) Analyze(ctx context.Context, userID, assetRef string) (*voice.Profile, error) {
	if c == nil || c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "analyze", "base url not configured", nil)
	}

	body, err := json.Marshal(analyzeRequest{UserID: userID, AssetRef: assetRef})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze voice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	return buildProfile(userID, assetRef, decoded)
}

func buildProfile(userID, assetRef string, decoded analyzeResponse) (*voice.Profile, error) {
	vocalRange, ok := voice.ParseRange(decoded.VocalRange)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "analyzer", "analyze",
			"unknown vocal range "+decoded.VocalRange, nil)
	}

	keys := make([]music.Key, 0, len(decoded.OptimalKeys))
	for _, raw := range decoded.OptimalKeys {
		key, ok := music.ParseKey(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "analyzer", "analyze",
				"unsupported key "+raw, nil)
		}
		keys = append(keys, key)
	}

	profile := &voice.Profile{
		UserID:          userID,
		AssetRef:        assetRef,
		VocalRange:      vocalRange,
		RangeDetail:     decoded.RangeDetail,
		OptimalKeys:     keys,
		TempoBand:       music.BPMRange{Min: decoded.TempoMin, Max: decoded.TempoMax},
		Characteristics: decoded.Characteristics,
		Confidence:      decoded.Confidence,
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}
