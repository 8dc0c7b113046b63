package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"songforge/internal/music"
	"songforge/internal/services"
	"songforge/internal/services/analyzer"
	"songforge/internal/voice"
)

func TestAnalyzeMapsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vocal_range":     "mid-high",
			"range_detail":    "strong head voice",
			"optimal_keys":    []string{"G Major", "D"},
			"tempo_min":       110,
			"tempo_max":       140,
			"characteristics": []string{"warm"},
			"confidence":      88,
		})
	}))
	defer server.Close()

	client := analyzer.NewClientWithDoer(server.URL, "secret", server.Client())
	profile, err := client.Analyze(context.Background(), "user-1", "assets/u1/clip.wav")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.VocalRange != voice.RangeMidHigh {
		t.Fatalf("vocal range = %q", profile.VocalRange)
	}
	if len(profile.OptimalKeys) != 2 || profile.OptimalKeys[1] != music.KeyDMajor {
		t.Fatalf("optimal keys = %v", profile.OptimalKeys)
	}
	if profile.TempoBand.Midpoint() != 125 {
		t.Fatalf("tempo midpoint = %d", profile.TempoBand.Midpoint())
	}
	if profile.UserID != "user-1" || profile.AssetRef != "assets/u1/clip.wav" {
		t.Fatalf("identity fields = %q %q", profile.UserID, profile.AssetRef)
	}
}

func TestAnalyzeRejectsUnknownRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vocal_range": "soprano",
			"tempo_min":   100,
			"tempo_max":   120,
		})
	}))
	defer server.Close()

	client := analyzer.NewClientWithDoer(server.URL, "", server.Client())
	_, err := client.Analyze(context.Background(), "user-1", "clip.wav")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAnalyzeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad asset", http.StatusBadRequest)
	}))
	defer server.Close()

	client := analyzer.NewClientWithDoer(server.URL, "", server.Client())
	if _, err := client.Analyze(context.Background(), "user-1", "clip.wav"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
