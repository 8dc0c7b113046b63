package session

import (
	"strings"

	"golang.org/x/text/language"

	"songforge/internal/services"
)

// SongIntake collects the creative brief submitted at session start.
type SongIntake struct {
	Title             string `json:"title"`
	Genre             string `json:"genre"`
	Mood              string `json:"mood"`
	Duration          string `json:"duration"`
	ArtistInspiration string `json:"artist_inspiration"`
	Language          string `json:"language"`
	Theme             string `json:"theme,omitempty"`
}

// Common language names used by the product, mapped to BCP 47 base tags.
// Anything else falls through to golang.org/x/text parsing.
var languageNames = map[string]string{
	"english": "en",
	"pidgin":  "pcm",
	"yoruba":  "yo",
	"igbo":    "ig",
	"hausa":   "ha",
	"french":  "fr",
	"swahili": "sw",
}

// Normalize trims fields and canonicalizes the language to a base tag.
// An unrecognized language is left as-is for Validate to reject.
func (i *SongIntake) Normalize() {
	i.Title = strings.TrimSpace(i.Title)
	i.Genre = strings.ToLower(strings.TrimSpace(i.Genre))
	i.Mood = strings.ToLower(strings.TrimSpace(i.Mood))
	i.Duration = strings.TrimSpace(i.Duration)
	i.ArtistInspiration = strings.TrimSpace(i.ArtistInspiration)
	i.Theme = strings.TrimSpace(i.Theme)

	raw := strings.ToLower(strings.TrimSpace(i.Language))
	if raw == "" {
		i.Language = ""
		return
	}
	if code, ok := languageNames[raw]; ok {
		i.Language = code
		return
	}
	if tag, err := language.Parse(raw); err == nil {
		base, confidence := tag.Base()
		if confidence != language.No {
			i.Language = base.String()
			return
		}
	}
	i.Language = raw
}

// Validate checks every required field is present and the language is a
// recognizable tag. Callers should Normalize first.
func (i *SongIntake) Validate() error {
	missing := make([]string, 0, 6)
	if i.Title == "" {
		missing = append(missing, "title")
	}
	if i.Genre == "" {
		missing = append(missing, "genre")
	}
	if i.Mood == "" {
		missing = append(missing, "mood")
	}
	if i.Duration == "" {
		missing = append(missing, "duration")
	}
	if i.ArtistInspiration == "" {
		missing = append(missing, "artist_inspiration")
	}
	if i.Language == "" {
		missing = append(missing, "language")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrIncompleteIntake, "session", "intake",
			"missing "+strings.Join(missing, ", "), nil)
	}
	if _, err := language.Parse(i.Language); err != nil {
		return services.Wrap(services.ErrIncompleteIntake, "session", "intake",
			"unrecognized language "+i.Language, nil)
	}
	return nil
}
