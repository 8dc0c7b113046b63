package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"songforge/internal/ledger"
	"songforge/internal/logging"
	"songforge/internal/music"
	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/services/generator"
	"songforge/internal/session"
	"songforge/internal/testsupport"
	"songforge/internal/voice"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req generator.Request) (*generator.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, services.Wrap(services.ErrGenerationFailed, "generator", "generate", "model overloaded", nil)
	}
	return &generator.Artifact{
		ID:     "art-" + req.SessionID,
		URL:    "https://cdn.example/art-" + req.SessionID + ".mp3",
		Key:    req.Key,
		BPM:    req.BPM,
		Format: "mp3",
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type engineFixture struct {
	engine *session.Engine
	voices *voice.Store
	tokens *ledger.Store
	gen    *fakeGenerator
}

func newEngine(t *testing.T) *engineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	store := session.NewStore(db)
	tokens := ledger.NewStore(db)
	voices := voice.NewStore(db)
	gen := &fakeGenerator{}
	engine := session.NewEngine(store, tokens, voices, gen, 30*time.Minute, logging.NewNop())
	return &engineFixture{engine: engine, voices: voices, tokens: tokens, gen: gen}
}

func saveProfile(t *testing.T, voices *voice.Store, userID string) {
	t.Helper()
	err := voices.Save(context.Background(), &voice.Profile{
		UserID:      userID,
		AssetRef:    "assets/" + userID + "/sample.wav",
		VocalRange:  voice.RangeMidHigh,
		OptimalKeys: []music.Key{music.KeyGMajor, music.KeyDMajor},
		TempoBand:   music.BPMRange{Min: 110, Max: 140},
		Confidence:  90,
	})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
}

func TestSubmitIntakeBasicUsesGenreDefaults(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, balance, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if sess.Status != session.StatusKeySelection {
		t.Fatalf("status = %q, want key_selection (basic skips voice check)", sess.Status)
	}
	if sess.SelectedKey != music.DefaultKey {
		t.Fatalf("key = %q, want default", sess.SelectedKey)
	}
	if sess.SelectedBPM != 110 {
		t.Fatalf("bpm = %d, want afrobeats midpoint 110", sess.SelectedBPM)
	}
	if sess.TokensCharged != 4 {
		t.Fatalf("tokens charged = %d, want 4", sess.TokensCharged)
	}
	if balance.Remaining != 16 {
		t.Fatalf("remaining = %d, want 16", balance.Remaining)
	}
}

func TestSubmitIntakeIncompleteDoesNotCharge(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	intake := validIntake()
	intake.Mood = ""
	_, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, intake)
	if !errors.Is(err, services.ErrIncompleteIntake) {
		t.Fatalf("err = %v, want ErrIncompleteIntake", err)
	}

	balance, err := fx.tokens.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if balance.Remaining != 20 {
		t.Fatalf("remaining = %d, want untouched 20", balance.Remaining)
	}
}

func TestSubmitIntakeInsufficientTokens(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	if _, err := fx.tokens.TryDebit(ctx, "user-1", plan.Basic, 18); err != nil {
		t.Fatalf("setup debit: %v", err)
	}
	_, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if !errors.Is(err, services.ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
}

func TestSubmitIntakeProPausesAtVoiceCheck(t *testing.T) {
	fx := newEngine(t)

	sess, _, err := fx.engine.SubmitIntake(context.Background(), "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if sess.Status != session.StatusVoiceCheck {
		t.Fatalf("status = %q, want voice_check pause", sess.Status)
	}
	if sess.TokensCharged != 2 {
		t.Fatalf("tokens charged = %d, want 2", sess.TokensCharged)
	}
}

func TestSubmitIntakeProWithProfileSkipsVoiceCheck(t *testing.T) {
	fx := newEngine(t)
	saveProfile(t, fx.voices, "user-1")

	sess, _, err := fx.engine.SubmitIntake(context.Background(), "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if sess.Status != session.StatusKeySelection {
		t.Fatalf("status = %q, want key_selection", sess.Status)
	}
	if sess.SelectedKey != music.KeyGMajor {
		t.Fatalf("key = %q, want personalized G Major", sess.SelectedKey)
	}
	if sess.SelectedBPM != 125 {
		t.Fatalf("bpm = %d, want profile band midpoint 125", sess.SelectedBPM)
	}
	if !sess.Personalized() {
		t.Fatal("session should carry the profile snapshot")
	}
}

func TestRecheckVoiceResolvesPause(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	_, err = fx.engine.RecheckVoice(ctx, sess.ID)
	if !errors.Is(err, services.ErrVoiceProfileMissing) {
		t.Fatalf("err = %v, want ErrVoiceProfileMissing", err)
	}

	saveProfile(t, fx.voices, "user-1")
	resolved, err := fx.engine.RecheckVoice(ctx, sess.ID)
	if err != nil {
		t.Fatalf("RecheckVoice: %v", err)
	}
	if resolved.Status != session.StatusKeySelection {
		t.Fatalf("status = %q, want key_selection", resolved.Status)
	}
	if resolved.SelectedKey != music.KeyGMajor || resolved.SelectedBPM != 125 {
		t.Fatalf("defaults = %q %d, want personalized", resolved.SelectedKey, resolved.SelectedBPM)
	}

	// Re-checking after the pause resolved is a no-op.
	again, err := fx.engine.RecheckVoice(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second RecheckVoice: %v", err)
	}
	if again.Status != session.StatusKeySelection {
		t.Fatalf("status = %q after redundant recheck", again.Status)
	}
}

func TestProfileReplacementDoesNotRewriteSession(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()
	saveProfile(t, fx.voices, "user-1")

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	replacement := &voice.Profile{
		UserID:      "user-1",
		AssetRef:    "assets/user-1/new.wav",
		VocalRange:  voice.RangeLow,
		OptimalKeys: []music.Key{music.KeyCMajor},
		TempoBand:   music.BPMRange{Min: 60, Max: 80},
		Confidence:  70,
	}
	if err := fx.voices.Save(ctx, replacement); err != nil {
		t.Fatalf("replace profile: %v", err)
	}

	loaded, err := fx.engine.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.VoiceProfile.VocalRange != voice.RangeMidHigh {
		t.Fatal("session snapshot should not change when the profile is replaced")
	}
	if loaded.SelectedKey != music.KeyGMajor {
		t.Fatalf("key = %q, want snapshot default preserved", loaded.SelectedKey)
	}
}

func TestSelectKeyGatedByPlan(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	key := music.KeyEMajor
	_, err = fx.engine.SelectKeyAndTempo(ctx, sess.ID, &key, nil)
	if !errors.Is(err, services.ErrNotEntitled) {
		t.Fatalf("err = %v, want ErrNotEntitled", err)
	}

	loaded, err := fx.engine.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.SelectedKey != music.DefaultKey {
		t.Fatalf("key = %q, rejected override must not change state", loaded.SelectedKey)
	}

	// Basic users may still adjust tempo.
	bpm := 118
	updated, err := fx.engine.SelectKeyAndTempo(ctx, sess.ID, nil, &bpm)
	if err != nil {
		t.Fatalf("tempo select: %v", err)
	}
	if updated.SelectedBPM != 118 {
		t.Fatalf("bpm = %d, want 118", updated.SelectedBPM)
	}
}

func TestSelectKeyAllowedForPro(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()
	saveProfile(t, fx.voices, "user-1")

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	key := music.KeyAMajor
	bpm := 96
	updated, err := fx.engine.SelectKeyAndTempo(ctx, sess.ID, &key, &bpm)
	if err != nil {
		t.Fatalf("SelectKeyAndTempo: %v", err)
	}
	if updated.SelectedKey != music.KeyAMajor || updated.SelectedBPM != 96 {
		t.Fatalf("selection = %q %d", updated.SelectedKey, updated.SelectedBPM)
	}
}

func TestSelectTempoOutOfRange(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	bpm := 500
	_, err = fx.engine.SelectKeyAndTempo(ctx, sess.ID, nil, &bpm)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPreviewLoopDoesNotRecharge(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()
	saveProfile(t, fx.voices, "user-1")

	sess, balance, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Pro, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	charged := balance.Remaining

	_, guide1, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false)
	if err != nil {
		t.Fatalf("first preview: %v", err)
	}

	bpm := 120
	if _, err := fx.engine.SelectKeyAndTempo(ctx, sess.ID, nil, &bpm); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	_, guide2, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if guide2.BPM != 120 {
		t.Fatalf("guide bpm = %d, want updated 120", guide2.BPM)
	}
	if guide1.Key != guide2.Key {
		t.Fatalf("key changed across loop: %q vs %q", guide1.Key, guide2.Key)
	}

	after, err := fx.tokens.CurrentBalance(ctx, "user-1", plan.Pro)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if after.Remaining != charged {
		t.Fatalf("remaining = %d, want %d (loop must not re-debit)", after.Remaining, charged)
	}
}

func TestPreviewIsDeterministic(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	_, first, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false)
	if err != nil {
		t.Fatalf("first preview: %v", err)
	}
	_, second, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if *first != *second {
		t.Fatalf("guides differ for identical selection: %+v vs %+v", first, second)
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if _, _, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false); err != nil {
		t.Fatalf("preview: %v", err)
	}

	committed, _, err := fx.engine.PreviewOrCommit(ctx, sess.ID, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.Status != session.StatusCommitted || committed.Artifact == nil {
		t.Fatalf("committed = %+v", committed)
	}

	again, _, err := fx.engine.PreviewOrCommit(ctx, sess.ID, true)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if again.Artifact.ID != committed.Artifact.ID || again.Artifact.URL != committed.Artifact.URL {
		t.Fatalf("second commit returned a different artifact: %+v vs %+v", again.Artifact, committed.Artifact)
	}
	if fx.gen.callCount() != 1 {
		t.Fatalf("generator calls = %d, want exactly 1", fx.gen.callCount())
	}
}

func TestCommitRequiresPreview(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	_, _, err = fx.engine.PreviewOrCommit(ctx, sess.ID, true)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for commit from key_selection", err)
	}
}

func TestGenerationFailureKeepsSessionRetryable(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if _, _, err := fx.engine.PreviewOrCommit(ctx, sess.ID, false); err != nil {
		t.Fatalf("preview: %v", err)
	}

	fx.gen.fail = true
	_, _, err = fx.engine.PreviewOrCommit(ctx, sess.ID, true)
	if !errors.Is(err, services.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}

	loaded, err := fx.engine.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != session.StatusPreview {
		t.Fatalf("status = %q, want preview preserved for retry", loaded.Status)
	}

	fx.gen.fail = false
	committed, _, err := fx.engine.PreviewOrCommit(ctx, sess.ID, true)
	if err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if committed.Status != session.StatusCommitted {
		t.Fatalf("status = %q, want committed", committed.Status)
	}

	balance, err := fx.tokens.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if balance.Remaining != 16 {
		t.Fatalf("remaining = %d, retries must not charge again", balance.Remaining)
	}
}

func TestAbandonKeepsTokensSpent(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	sess, balance, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if balance.Remaining != 16 {
		t.Fatalf("remaining = %d, want 16", balance.Remaining)
	}

	abandoned, err := fx.engine.Abandon(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != session.StatusAbandoned {
		t.Fatalf("status = %q", abandoned.Status)
	}

	after, err := fx.tokens.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if after.Remaining != 16 {
		t.Fatalf("remaining = %d, abandon must not refund", after.Remaining)
	}

	// Idempotent.
	again, err := fx.engine.Abandon(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second Abandon: %v", err)
	}
	if again.Status != session.StatusAbandoned {
		t.Fatalf("status = %q", again.Status)
	}
}

func TestIdleSessionExpiresOnAccess(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	current := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	fx.engine.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	sess, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	mu.Lock()
	current = current.Add(31 * time.Minute)
	mu.Unlock()

	loaded, err := fx.engine.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != session.StatusAbandoned {
		t.Fatalf("status = %q, want abandoned after idle window", loaded.Status)
	}
}

func TestSweepExpired(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	current := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	fx.engine.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	stale, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	mu.Lock()
	current = current.Add(45 * time.Minute)
	mu.Unlock()

	fresh, _, err := fx.engine.SubmitIntake(ctx, "user-2", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("second SubmitIntake: %v", err)
	}

	swept, err := fx.engine.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(swept) != 1 || swept[0].ID != stale.ID {
		t.Fatalf("swept %d sessions, want only the stale one", len(swept))
	}

	loaded, err := fx.engine.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("Get fresh: %v", err)
	}
	if loaded.Status.Terminal() {
		t.Fatalf("fresh session status = %q, sweep must not touch it", loaded.Status)
	}
}

func TestUnlimitedPlanSubmitsFreely(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()
	saveProfile(t, fx.voices, "user-1")

	for i := 0; i < 10; i++ {
		sess, balance, err := fx.engine.SubmitIntake(ctx, "user-1", plan.ProPlus, validIntake())
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !balance.Unlimited {
			t.Fatal("expected unlimited balance")
		}
		if sess.TokensCharged != 0 {
			t.Fatalf("tokens charged = %d, want 0", sess.TokensCharged)
		}
	}
}

func TestConcurrentSubmitsAdmitOnlyBudget(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	// Leave exactly one generation's worth of tokens.
	if _, err := fx.tokens.TryDebit(ctx, "user-1", plan.Basic, 16); err != nil {
		t.Fatalf("setup debit: %v", err)
	}

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, services.ErrInsufficientTokens) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
}

func TestHistoryListsTerminalSessions(t *testing.T) {
	fx := newEngine(t)
	ctx := context.Background()

	first, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if _, _, err := fx.engine.PreviewOrCommit(ctx, first.ID, false); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, _, err := fx.engine.PreviewOrCommit(ctx, first.ID, true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	second, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("second SubmitIntake: %v", err)
	}
	if _, err := fx.engine.Abandon(ctx, second.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	active, _, err := fx.engine.SubmitIntake(ctx, "user-1", plan.Basic, validIntake())
	if err != nil {
		t.Fatalf("third SubmitIntake: %v", err)
	}

	history, err := fx.engine.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	for _, item := range history {
		if item.ID == active.ID {
			t.Fatal("active session leaked into history")
		}
		if !item.Status.Terminal() {
			t.Fatalf("history contains non-terminal status %q", item.Status)
		}
	}
}
