package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"songforge/internal/music"
	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/storage"
	"songforge/internal/voice"
)

// Store persists generation sessions. Terminal sessions double as the
// user's immutable history.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore creates a session store over the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewStoreWithNow creates a store with an injected clock for tests.
func NewStoreWithNow(db *storage.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	intakeJSON, profileJSON, artifactJSON, err := encodeBlobs(sess)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	sess.LastActivityAt = now

	_, err = s.db.ExecRetry(storage.EnsureContext(ctx), `
INSERT INTO sessions (
    id, user_id, plan, status, intake_json, voice_profile_json,
    selected_key, selected_bpm, tokens_charged, artifact_json,
    created_at, updated_at, last_activity_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(sess.Plan), string(sess.Status),
		intakeJSON, profileJSON, nullString(string(sess.SelectedKey)), nullInt(sess.SelectedBPM),
		sess.TokensCharged, artifactJSON,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID loads a session, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.Handle().QueryRowContext(storage.EnsureContext(ctx), selectColumns+" WHERE id = ?", id)
	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "session", "get", "no session "+id, nil)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// ApplyTransition persists the session's mutable fields, guarded by the
// status the caller observed. A lost race surfaces as ErrStaleTransition
// so callers can re-read and resolve against current state.
func (s *Store) ApplyTransition(ctx context.Context, sess *Session, expected Status) error {
	_, profileJSON, artifactJSON, err := encodeBlobs(sess)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.db.ExecRetry(storage.EnsureContext(ctx), `
UPDATE sessions SET
    status = ?, voice_profile_json = ?, selected_key = ?, selected_bpm = ?,
    tokens_charged = ?, artifact_json = ?, updated_at = ?, last_activity_at = ?
WHERE id = ? AND status = ?`,
		string(sess.Status), profileJSON, nullString(string(sess.SelectedKey)), nullInt(sess.SelectedBPM),
		sess.TokensCharged, artifactJSON,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		sess.ID, string(expected))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetByID(ctx, sess.ID); getErr != nil {
			return getErr
		}
		return services.Wrap(services.ErrStaleTransition, "session", "transition",
			fmt.Sprintf("session %s no longer in %s", sess.ID, expected), nil)
	}

	sess.UpdatedAt = now
	sess.LastActivityAt = now
	return nil
}

// Touch refreshes the idle clock on a non-terminal session.
func (s *Store) Touch(ctx context.Context, id string) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecRetry(storage.EnsureContext(ctx), `
UPDATE sessions SET last_activity_at = ?
WHERE id = ? AND status NOT IN (?, ?)`,
		now, id, string(StatusCommitted), string(StatusAbandoned))
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// ListTerminalForUser returns the user's committed and abandoned sessions,
// most recent first.
func (s *Store) ListTerminalForUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.Handle().QueryContext(storage.EnsureContext(ctx),
		selectColumns+` WHERE user_id = ? AND status IN (?, ?) ORDER BY updated_at DESC`,
		userID, string(StatusCommitted), string(StatusAbandoned))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return sessions, nil
}

// SweepExpired abandons every non-terminal session idle since before
// cutoff and returns the sessions it closed. Terminal rows are never
// touched.
func (s *Store) SweepExpired(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	ctx = storage.EnsureContext(ctx)
	rows, err := s.db.Handle().QueryContext(ctx,
		selectColumns+` WHERE status NOT IN (?, ?) AND last_activity_at < ?`,
		string(StatusCommitted), string(StatusAbandoned), cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("find expired sessions: %w", err)
	}
	candidates := make([]*Session, 0, 4)
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired row: %w", err)
		}
		candidates = append(candidates, sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("find expired sessions: %w", err)
	}
	rows.Close()

	swept := make([]*Session, 0, len(candidates))
	for _, sess := range candidates {
		expected := sess.Status
		sess.Status = StatusAbandoned
		if err := s.ApplyTransition(ctx, sess, expected); err != nil {
			if errors.Is(err, services.ErrStaleTransition) || errors.Is(err, services.ErrNotFound) {
				// Lost a race with a user action; leave it alone.
				continue
			}
			return swept, err
		}
		swept = append(swept, sess)
	}
	return swept, nil
}

const selectColumns = `
SELECT id, user_id, plan, status, intake_json, voice_profile_json,
       selected_key, selected_bpm, tokens_charged, artifact_json,
       created_at, updated_at, last_activity_at
FROM sessions`

func encodeBlobs(sess *Session) (string, any, any, error) {
	intakeJSON, err := json.Marshal(sess.Intake)
	if err != nil {
		return "", nil, nil, fmt.Errorf("encode intake: %w", err)
	}
	var profileJSON any
	if sess.VoiceProfile != nil {
		data, err := json.Marshal(sess.VoiceProfile)
		if err != nil {
			return "", nil, nil, fmt.Errorf("encode voice profile: %w", err)
		}
		profileJSON = string(data)
	}
	var artifactJSON any
	if sess.Artifact != nil {
		data, err := json.Marshal(sess.Artifact)
		if err != nil {
			return "", nil, nil, fmt.Errorf("encode artifact: %w", err)
		}
		artifactJSON = string(data)
	}
	return string(intakeJSON), profileJSON, artifactJSON, nil
}

func scanSession(scan func(dest ...any) error) (*Session, error) {
	var (
		sess         Session
		planName     string
		statusName   string
		intakeJSON   string
		profileJSON  sql.NullString
		selectedKey  sql.NullString
		selectedBPM  sql.NullInt64
		artifactJSON sql.NullString
		createdAt    string
		updatedAt    string
		lastActivity string
	)
	if err := scan(&sess.ID, &sess.UserID, &planName, &statusName, &intakeJSON, &profileJSON,
		&selectedKey, &selectedBPM, &sess.TokensCharged, &artifactJSON,
		&createdAt, &updatedAt, &lastActivity); err != nil {
		return nil, err
	}

	sess.Plan = plan.Plan(planName)
	status, ok := ParseStatus(statusName)
	if !ok {
		return nil, fmt.Errorf("unknown session status %q", statusName)
	}
	sess.Status = status

	if err := json.Unmarshal([]byte(intakeJSON), &sess.Intake); err != nil {
		return nil, fmt.Errorf("decode intake: %w", err)
	}
	if profileJSON.Valid && profileJSON.String != "" {
		var profile voice.Profile
		if err := json.Unmarshal([]byte(profileJSON.String), &profile); err != nil {
			return nil, fmt.Errorf("decode voice profile: %w", err)
		}
		sess.VoiceProfile = &profile
	}
	if selectedKey.Valid {
		sess.SelectedKey = music.Key(selectedKey.String)
	}
	if selectedBPM.Valid {
		sess.SelectedBPM = int(selectedBPM.Int64)
	}
	if artifactJSON.Valid && artifactJSON.String != "" {
		var artifact Artifact
		if err := json.Unmarshal([]byte(artifactJSON.String), &artifact); err != nil {
			return nil, fmt.Errorf("decode artifact: %w", err)
		}
		sess.Artifact = &artifact
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	sess.LastActivityAt = parseTime(lastActivity)
	return &sess, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}
