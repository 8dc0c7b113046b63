package session

import (
	"strings"
	"time"

	"songforge/internal/music"
	"songforge/internal/plan"
	"songforge/internal/voice"
)

// Status represents the lifecycle of a generation session.
type Status string

const (
	StatusIntake       Status = "intake"
	StatusVoiceCheck   Status = "voice_check"
	StatusKeySelection Status = "key_selection"
	StatusPreview      Status = "preview"
	StatusCommitted    Status = "committed"
	StatusAbandoned    Status = "abandoned"
)

var allStatuses = []Status{
	StatusIntake,
	StatusVoiceCheck,
	StatusKeySelection,
	StatusPreview,
	StatusCommitted,
	StatusAbandoned,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every session status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus maps a stored status string onto a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// Terminal reports whether the status ends the session's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusAbandoned
}

func (s Status) String() string {
	return string(s)
}

// Artifact is a committed generation result. Once written it never changes.
type Artifact struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Key             music.Key `json:"key"`
	BPM             int       `json:"bpm"`
	DurationSeconds int       `json:"duration_seconds"`
	Format          string    `json:"format"`
	CreatedAt       time.Time `json:"created_at"`
}

// MelodyGuide is the ephemeral preview shown before commit. It is computed
// locally from the current selection and never persisted.
type MelodyGuide struct {
	Key          music.Key `json:"key"`
	BPM          int       `json:"bpm"`
	VocalRange   string    `json:"vocal_range,omitempty"`
	HookNotation string    `json:"hook_notation"`
	Personalized bool      `json:"personalized"`
}

// Session is one multi-stage generation attempt persisted in SQLite.
type Session struct {
	ID             string
	UserID         string
	Plan           plan.Plan
	Status         Status
	Intake         SongIntake
	VoiceProfile   *voice.Profile
	SelectedKey    music.Key
	SelectedBPM    int
	TokensCharged  int
	Artifact       *Artifact
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastActivityAt time.Time
}

// Personalized reports whether defaults came from a voice profile snapshot.
func (s *Session) Personalized() bool {
	return s.VoiceProfile != nil
}
