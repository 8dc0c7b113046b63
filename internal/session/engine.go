package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"songforge/internal/ledger"
	"songforge/internal/logging"
	"songforge/internal/music"
	"songforge/internal/plan"
	"songforge/internal/recommend"
	"songforge/internal/services"
	"songforge/internal/services/generator"
	"songforge/internal/voice"
)

// Generator renders committed songs.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Artifact, error)
}

// Engine drives sessions through intake, voice check, key selection,
// preview, and commit, enforcing plan gates and token spending at each
// transition.
type Engine struct {
	store       *Store
	tokens      *ledger.Store
	voices      *voice.Store
	generator   Generator
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine wires the session engine.
func NewEngine(store *Store, tokens *ledger.Store, voices *voice.Store, gen Generator, idleTimeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:       store,
		tokens:      tokens,
		voices:      voices,
		generator:   gen,
		idleTimeout: idleTimeout,
		logger:      logging.NewComponentLogger(logger, "session-engine"),
		now:         time.Now,
	}
}

// SubmitIntake validates the brief, routes the session past voice check
// when the plan or an existing profile allows, and spends tokens last so
// a rejected submit never charges.
func (e *Engine) SubmitIntake(ctx context.Context, userID string, p plan.Plan, intake SongIntake) (*Session, ledger.Balance, error) {
	if userID == "" {
		return nil, ledger.Balance{}, services.Wrap(services.ErrValidation, "session", "submit", "user id required", nil)
	}
	if !p.Valid() {
		return nil, ledger.Balance{}, services.Wrap(services.ErrValidation, "session", "submit", "unknown plan "+string(p), nil)
	}

	intake.Normalize()
	if err := intake.Validate(); err != nil {
		return nil, ledger.Balance{}, err
	}

	ents := plan.Entitlements(p)
	sess := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Plan:   p,
		Status: StatusIntake,
		Intake: intake,
	}

	if ents.Has(plan.CapVoiceUpload) {
		profile, err := e.voices.Get(ctx, userID)
		switch {
		case err == nil:
			sess.VoiceProfile = profile
			e.applyDefaults(sess)
			sess.Status = StatusKeySelection
		case errors.Is(err, services.ErrNotFound):
			sess.Status = StatusVoiceCheck
		default:
			return nil, ledger.Balance{}, err
		}
	} else {
		e.applyDefaults(sess)
		sess.Status = StatusKeySelection
	}

	// Debit last: everything above must succeed before tokens move.
	balance, err := e.tokens.TryDebit(ctx, userID, p, ents.CostPerGeneration)
	if err != nil {
		return nil, ledger.Balance{}, err
	}
	sess.TokensCharged = ents.CostPerGeneration

	if err := e.store.Create(ctx, sess); err != nil {
		return nil, ledger.Balance{}, err
	}

	e.logger.Info("session started",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldUserID, userID),
		logging.String(logging.FieldPlan, string(p)),
		logging.String(logging.FieldStatus, string(sess.Status)),
		logging.String(logging.FieldGenre, intake.Genre),
		logging.Int("tokens_charged", sess.TokensCharged))
	return sess, balance, nil
}

// Get returns the session after applying idle expiry.
func (e *Engine) Get(ctx context.Context, id string) (*Session, error) {
	return e.load(ctx, id)
}

// RecheckVoice resolves the voice-check pause. With a profile on file the
// session snapshots it and advances to key selection; without one it
// stays paused and reports ErrVoiceProfileMissing. Re-checking a session
// already past voice check is a no-op.
func (e *Engine) RecheckVoice(ctx context.Context, id string) (*Session, error) {
	sess, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case StatusKeySelection, StatusPreview, StatusCommitted:
		return sess, nil
	case StatusAbandoned:
		return sess, services.Wrap(services.ErrValidation, "session", "voice_check", "session abandoned", nil)
	}

	profile, err := e.voices.Get(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			if touchErr := e.store.Touch(ctx, sess.ID); touchErr != nil {
				return nil, touchErr
			}
			return sess, services.Wrap(services.ErrVoiceProfileMissing, "session", "voice_check",
				"upload a voice sample to continue", nil)
		}
		return nil, err
	}

	expected := sess.Status
	sess.VoiceProfile = profile
	e.applyDefaults(sess)
	sess.Status = StatusKeySelection
	if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
		return e.resolveStale(ctx, sess.ID, err)
	}

	e.logger.Info("voice check complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("selected_key", string(sess.SelectedKey)),
		logging.Int("selected_bpm", sess.SelectedBPM))
	return sess, nil
}

// SelectKeyAndTempo updates the working selection. Key overrides are
// plan-gated; tempo only has to fall inside the supported range. Calling
// from preview loops the session back to key selection without any new
// token spend.
func (e *Engine) SelectKeyAndTempo(ctx context.Context, id string, key *music.Key, bpm *int) (*Session, error) {
	sess, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case StatusCommitted:
		return sess, services.Wrap(services.ErrValidation, "session", "select", "session already committed", nil)
	case StatusAbandoned:
		return sess, services.Wrap(services.ErrValidation, "session", "select", "session abandoned", nil)
	case StatusVoiceCheck:
		return sess, services.Wrap(services.ErrValidation, "session", "select", "complete voice check first", nil)
	}

	ents := plan.Entitlements(sess.Plan)
	if key != nil {
		if !ents.Has(plan.CapKeyOverride) {
			return sess, services.Wrap(services.ErrNotEntitled, "session", "select",
				fmt.Sprintf("plan %s cannot override key", sess.Plan), nil)
		}
		if !key.Valid() {
			return sess, services.Wrap(services.ErrValidation, "session", "select", "unsupported key "+string(*key), nil)
		}
		sess.SelectedKey = *key
	}
	if bpm != nil {
		if !music.ValidTempo(*bpm) {
			return sess, services.Wrap(services.ErrValidation, "session", "select",
				fmt.Sprintf("tempo %d outside %d-%d", *bpm, music.MinBPM, music.MaxBPM), nil)
		}
		sess.SelectedBPM = *bpm
	}

	expected := sess.Status
	sess.Status = StatusKeySelection
	if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
		return e.resolveStale(ctx, sess.ID, err)
	}
	return sess, nil
}

// PreviewOrCommit either renders the ephemeral melody guide (finalize
// false) or calls the generator and seals the session (finalize true).
// Committing twice returns the identical stored artifact. A generator
// failure leaves the session in preview for retry, with no extra charge.
func (e *Engine) PreviewOrCommit(ctx context.Context, id string, finalize bool) (*Session, *MelodyGuide, error) {
	sess, err := e.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	switch sess.Status {
	case StatusCommitted:
		return sess, nil, nil
	case StatusAbandoned:
		return sess, nil, services.Wrap(services.ErrValidation, "session", "preview", "session abandoned", nil)
	case StatusVoiceCheck:
		return sess, nil, services.Wrap(services.ErrValidation, "session", "preview", "complete voice check first", nil)
	}

	if !finalize {
		if sess.Status != StatusPreview {
			expected := sess.Status
			sess.Status = StatusPreview
			if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
				current, resolveErr := e.resolveStale(ctx, sess.ID, err)
				return current, nil, resolveErr
			}
		} else if err := e.store.Touch(ctx, sess.ID); err != nil {
			return nil, nil, err
		}
		return sess, e.buildGuide(sess), nil
	}

	if sess.Status != StatusPreview {
		return sess, nil, services.Wrap(services.ErrValidation, "session", "commit", "preview before committing", nil)
	}

	artifact, err := e.generator.Generate(ctx, generator.Request{
		SessionID:         sess.ID,
		UserID:            sess.UserID,
		Title:             sess.Intake.Title,
		Genre:             sess.Intake.Genre,
		Mood:              sess.Intake.Mood,
		Duration:          sess.Intake.Duration,
		ArtistInspiration: sess.Intake.ArtistInspiration,
		Language:          sess.Intake.Language,
		Key:               string(sess.SelectedKey),
		BPM:               sess.SelectedBPM,
		VocalRange:        vocalRangeOf(sess),
	})
	if err != nil {
		if touchErr := e.store.Touch(ctx, sess.ID); touchErr != nil {
			e.logger.Warn("touch after failed generation",
				logging.String(logging.FieldSessionID, sess.ID), logging.Error(touchErr))
		}
		e.logger.Warn("generation failed, session stays in preview",
			logging.String(logging.FieldSessionID, sess.ID), logging.Error(err))
		return sess, nil, err
	}

	key, ok := music.ParseKey(artifact.Key)
	if !ok {
		key = sess.SelectedKey
	}
	sess.Artifact = &Artifact{
		ID:              artifact.ID,
		URL:             artifact.URL,
		Key:             key,
		BPM:             artifact.BPM,
		DurationSeconds: artifact.DurationSeconds,
		Format:          artifact.Format,
		CreatedAt:       artifact.CreatedAt,
	}
	expected := sess.Status
	sess.Status = StatusCommitted
	if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
		current, resolveErr := e.resolveStale(ctx, sess.ID, err)
		if current != nil && current.Status == StatusCommitted {
			// A concurrent commit won; its artifact is the session's truth.
			return current, nil, nil
		}
		return current, nil, resolveErr
	}

	e.logger.Info("session committed",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldUserID, sess.UserID),
		logging.String("artifact_id", sess.Artifact.ID))
	return sess, nil, nil
}

// Abandon closes the session. Tokens already spent stay spent. Abandoning
// an already terminal session returns it unchanged.
func (e *Engine) Abandon(ctx context.Context, id string) (*Session, error) {
	sess, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}

	expected := sess.Status
	sess.Status = StatusAbandoned
	if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
		return e.resolveStale(ctx, sess.ID, err)
	}

	e.logger.Info("session abandoned",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Int("tokens_charged", sess.TokensCharged))
	return sess, nil
}

// History lists the user's terminal sessions, most recent first.
func (e *Engine) History(ctx context.Context, userID string) ([]*Session, error) {
	return e.store.ListTerminalForUser(ctx, userID)
}

// RemainingQuota reports the user's token balance for the current UTC day.
func (e *Engine) RemainingQuota(ctx context.Context, userID string, p plan.Plan) (ledger.Balance, error) {
	return e.tokens.CurrentBalance(ctx, userID, p)
}

// SweepExpired abandons sessions idle past the configured window and
// returns them for notification.
func (e *Engine) SweepExpired(ctx context.Context) ([]*Session, error) {
	cutoff := e.now().Add(-e.idleTimeout)
	swept, err := e.store.SweepExpired(ctx, cutoff)
	if len(swept) > 0 {
		e.logger.Info("idle sessions abandoned", logging.Int("count", len(swept)))
	}
	return swept, err
}

// load fetches a session and converts idle-expired ones to abandoned
// before any operation sees them.
func (e *Engine) load(ctx context.Context, id string) (*Session, error) {
	sess, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	if e.now().Sub(sess.LastActivityAt) <= e.idleTimeout {
		return sess, nil
	}

	expected := sess.Status
	sess.Status = StatusAbandoned
	if err := e.store.ApplyTransition(ctx, sess, expected); err != nil {
		if errors.Is(err, services.ErrStaleTransition) {
			return e.store.GetByID(ctx, id)
		}
		return nil, err
	}
	e.logger.Info("session expired",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Duration("idle_timeout", e.idleTimeout))
	return sess, nil
}

// resolveStale reloads current state so callers can answer a lost race
// with what actually happened.
func (e *Engine) resolveStale(ctx context.Context, id string, err error) (*Session, error) {
	if !errors.Is(err, services.ErrStaleTransition) {
		return nil, err
	}
	current, getErr := e.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, err
	}
	return current, err
}

func (e *Engine) applyDefaults(sess *Session) {
	if sess.VoiceProfile != nil {
		key, band, _ := recommend.MatchToVoice(sess.VoiceProfile)
		sess.SelectedKey = key
		sess.SelectedBPM = band.Midpoint()
		return
	}
	band, _ := recommend.SuggestTempo(sess.Intake.Genre)
	sess.SelectedKey = music.DefaultKey
	sess.SelectedBPM = band.Midpoint()
}

var hookPatterns = []string{"1-3-5-3", "5-3-2-1", "1-2-3-5", "3-5-6-5"}

// buildGuide derives the preview melody guide from the current selection.
// Deterministic: the same selection always previews the same guide.
func (e *Engine) buildGuide(sess *Session) *MelodyGuide {
	guide := &MelodyGuide{
		Key:          sess.SelectedKey,
		BPM:          sess.SelectedBPM,
		Personalized: sess.Personalized(),
	}
	if sess.VoiceProfile != nil {
		guide.VocalRange = string(sess.VoiceProfile.VocalRange)
	}
	idx := 0
	for i, key := range music.AllKeys() {
		if key == sess.SelectedKey {
			idx = i
			break
		}
	}
	pattern := hookPatterns[(idx+sess.SelectedBPM)%len(hookPatterns)]
	guide.HookNotation = fmt.Sprintf("%s in %s", pattern, sess.SelectedKey)
	return guide
}

func vocalRangeOf(sess *Session) string {
	if sess.VoiceProfile == nil {
		return ""
	}
	return string(sess.VoiceProfile.VocalRange)
}
