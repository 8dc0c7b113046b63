package api

import "time"

const dateTimeFormat = time.RFC3339

// SessionView is the wire representation of a generation session.
type SessionView struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	Plan           string        `json:"plan"`
	Status         string        `json:"status"`
	Title          string        `json:"title"`
	Genre          string        `json:"genre"`
	Mood           string        `json:"mood"`
	Duration       string        `json:"duration"`
	Language       string        `json:"language"`
	SelectedKey    string        `json:"selected_key,omitempty"`
	SelectedBPM    int           `json:"selected_bpm,omitempty"`
	Personalized   bool          `json:"personalized"`
	TokensCharged  int           `json:"tokens_charged"`
	Artifact       *ArtifactView `json:"artifact,omitempty"`
	CreatedAt      string        `json:"created_at,omitempty"`
	UpdatedAt      string        `json:"updated_at,omitempty"`
	LastActivityAt string        `json:"last_activity_at,omitempty"`
}

// ArtifactView is the wire representation of a committed song.
type ArtifactView struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Key             string `json:"key"`
	BPM             int    `json:"bpm"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Format          string `json:"format,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// GuideView is the wire representation of an ephemeral melody preview.
type GuideView struct {
	Key          string `json:"key"`
	BPM          int    `json:"bpm"`
	VocalRange   string `json:"vocal_range,omitempty"`
	HookNotation string `json:"hook_notation"`
	Personalized bool   `json:"personalized"`
}

// QuotaView is the wire representation of a token balance.
type QuotaView struct {
	Remaining int  `json:"remaining"`
	Quota     int  `json:"quota"`
	Unlimited bool `json:"unlimited"`
}

// HumanRequestView is the wire representation of a production request.
type HumanRequestView struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Genre             string `json:"genre"`
	Mood              string `json:"mood"`
	ArtistInspiration string `json:"artist_inspiration,omitempty"`
	Theme             string `json:"theme"`
	Notes             string `json:"notes,omitempty"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at,omitempty"`
}
