package humanreq

import (
	"strings"
	"time"

	"songforge/internal/services"
)

// Request is a custom-song brief routed to the human production team.
type Request struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Title             string    `json:"title"`
	Genre             string    `json:"genre"`
	Mood              string    `json:"mood"`
	ArtistInspiration string    `json:"artist_inspiration,omitempty"`
	Theme             string    `json:"theme"`
	Notes             string    `json:"notes,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// StatusReceived is the only status this service assigns; fulfillment
// happens outside the system.
const StatusReceived = "received"

// Normalize trims all fields and lowercases genre and mood.
func (r *Request) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Genre = strings.ToLower(strings.TrimSpace(r.Genre))
	r.Mood = strings.ToLower(strings.TrimSpace(r.Mood))
	r.ArtistInspiration = strings.TrimSpace(r.ArtistInspiration)
	r.Theme = strings.TrimSpace(r.Theme)
	r.Notes = strings.TrimSpace(r.Notes)
}

// Validate checks the required brief fields.
func (r *Request) Validate() error {
	var missing []string
	if r.Title == "" {
		missing = append(missing, "title")
	}
	if r.Genre == "" {
		missing = append(missing, "genre")
	}
	if r.Mood == "" {
		missing = append(missing, "mood")
	}
	if r.Theme == "" {
		missing = append(missing, "theme")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "human-request", "validate",
			"missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}
