package voice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"songforge/internal/music"
	"songforge/internal/services"
	"songforge/internal/storage"
)

// Store persists voice profiles, one per user.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore creates a profile store over the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save inserts or atomically replaces the user's profile.
func (s *Store) Save(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return services.Wrap(services.ErrValidation, "voice", "save", "nil profile", nil)
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	keysJSON, err := json.Marshal(profile.OptimalKeys)
	if err != nil {
		return fmt.Errorf("encode optimal keys: %w", err)
	}
	charsJSON, err := json.Marshal(profile.Characteristics)
	if err != nil {
		return fmt.Errorf("encode characteristics: %w", err)
	}

	now := s.now().UTC()
	created := profile.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecRetry(storage.EnsureContext(ctx), `
INSERT INTO voice_profiles (
    user_id, asset_ref, vocal_range, range_detail, optimal_keys,
    tempo_min, tempo_max, characteristics, confidence, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    asset_ref = excluded.asset_ref,
    vocal_range = excluded.vocal_range,
    range_detail = excluded.range_detail,
    optimal_keys = excluded.optimal_keys,
    tempo_min = excluded.tempo_min,
    tempo_max = excluded.tempo_max,
    characteristics = excluded.characteristics,
    confidence = excluded.confidence,
    updated_at = excluded.updated_at`,
		profile.UserID, profile.AssetRef, string(profile.VocalRange), profile.RangeDetail,
		string(keysJSON), profile.TempoBand.Min, profile.TempoBand.Max,
		string(charsJSON), profile.Confidence,
		created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save voice profile: %w", err)
	}

	profile.CreatedAt = created
	profile.UpdatedAt = now
	return nil
}

// Get returns the user's profile, or ErrNotFound when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.Handle().QueryRowContext(storage.EnsureContext(ctx), `
SELECT user_id, asset_ref, vocal_range, range_detail, optimal_keys,
       tempo_min, tempo_max, characteristics, confidence, created_at, updated_at
FROM voice_profiles WHERE user_id = ?`, userID)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "voice", "get", "no profile for user "+userID, nil)
		}
		return nil, fmt.Errorf("load voice profile: %w", err)
	}
	return profile, nil
}

// Delete removes the user's profile. Deleting a missing profile is a no-op.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecRetry(storage.EnsureContext(ctx),
		"DELETE FROM voice_profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete voice profile: %w", err)
	}
	return nil
}

func scanProfile(row *sql.Row) (*Profile, error) {
	var (
		p          Profile
		vocalRange string
		keysJSON   string
		charsJSON  string
		tempoMin   int
		tempoMax   int
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&p.UserID, &p.AssetRef, &vocalRange, &p.RangeDetail, &keysJSON,
		&tempoMin, &tempoMax, &charsJSON, &p.Confidence, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	p.VocalRange = Range(vocalRange)
	p.TempoBand = music.BPMRange{Min: tempoMin, Max: tempoMax}
	if err := json.Unmarshal([]byte(keysJSON), &p.OptimalKeys); err != nil {
		return nil, fmt.Errorf("decode optimal keys: %w", err)
	}
	if err := json.Unmarshal([]byte(charsJSON), &p.Characteristics); err != nil {
		return nil, fmt.Errorf("decode characteristics: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		p.UpdatedAt = ts
	}
	return &p, nil
}
