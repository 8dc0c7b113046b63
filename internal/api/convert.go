package api

import (
	"time"

	"songforge/internal/humanreq"
	"songforge/internal/ledger"
	"songforge/internal/session"
)

// FromSession converts a session record to its API representation.
func FromSession(sess *session.Session) SessionView {
	if sess == nil {
		return SessionView{}
	}

	view := SessionView{
		ID:            sess.ID,
		UserID:        sess.UserID,
		Plan:          string(sess.Plan),
		Status:        string(sess.Status),
		Title:         sess.Intake.Title,
		Genre:         sess.Intake.Genre,
		Mood:          sess.Intake.Mood,
		Duration:      sess.Intake.Duration,
		Language:      sess.Intake.Language,
		SelectedKey:   string(sess.SelectedKey),
		SelectedBPM:   sess.SelectedBPM,
		Personalized:  sess.Personalized(),
		TokensCharged: sess.TokensCharged,
		CreatedAt:     FormatTime(sess.CreatedAt),
		UpdatedAt:     FormatTime(sess.UpdatedAt),
	}
	view.LastActivityAt = FormatTime(sess.LastActivityAt)
	if sess.Artifact != nil {
		artifact := FromArtifact(sess.Artifact)
		view.Artifact = &artifact
	}
	return view
}

// FromSessions converts a slice of session records into API DTOs.
func FromSessions(sessions []*session.Session) []SessionView {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, FromSession(sess))
	}
	return out
}

// FromArtifact converts a committed artifact to its API representation.
func FromArtifact(artifact *session.Artifact) ArtifactView {
	if artifact == nil {
		return ArtifactView{}
	}
	return ArtifactView{
		ID:              artifact.ID,
		URL:             artifact.URL,
		Key:             string(artifact.Key),
		BPM:             artifact.BPM,
		DurationSeconds: artifact.DurationSeconds,
		Format:          artifact.Format,
		CreatedAt:       FormatTime(artifact.CreatedAt),
	}
}

// FromGuide converts a melody guide to its API representation.
func FromGuide(guide *session.MelodyGuide) *GuideView {
	if guide == nil {
		return nil
	}
	return &GuideView{
		Key:          string(guide.Key),
		BPM:          guide.BPM,
		VocalRange:   guide.VocalRange,
		HookNotation: guide.HookNotation,
		Personalized: guide.Personalized,
	}
}

// FromBalance converts a ledger balance to its API representation.
func FromBalance(balance ledger.Balance) QuotaView {
	return QuotaView{
		Remaining: balance.Remaining,
		Quota:     balance.Quota,
		Unlimited: balance.Unlimited,
	}
}

// FromHumanRequest converts a production request to its API representation.
func FromHumanRequest(req *humanreq.Request) HumanRequestView {
	if req == nil {
		return HumanRequestView{}
	}
	return HumanRequestView{
		ID:                req.ID,
		Title:             req.Title,
		Genre:             req.Genre,
		Mood:              req.Mood,
		ArtistInspiration: req.ArtistInspiration,
		Theme:             req.Theme,
		Notes:             req.Notes,
		Status:            req.Status,
		CreatedAt:         FormatTime(req.CreatedAt),
	}
}

// FromHumanRequests converts a slice of production requests into API DTOs.
func FromHumanRequests(reqs []*humanreq.Request) []HumanRequestView {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]HumanRequestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, FromHumanRequest(req))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
