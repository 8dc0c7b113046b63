package humanreq

import (
	"context"
	"fmt"
	"time"

	"songforge/internal/storage"
)

// Store persists human production requests.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore creates a request store over the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append records a new request.
func (s *Store) Append(ctx context.Context, req *Request) error {
	created := req.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}

	_, err := s.db.ExecRetry(storage.EnsureContext(ctx), `
INSERT INTO human_requests (
    id, user_id, title, genre, mood, artist_inspiration, theme, notes, status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Title, req.Genre, req.Mood,
		req.ArtistInspiration, req.Theme, req.Notes, req.Status,
		created.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append human request: %w", err)
	}
	req.CreatedAt = created
	return nil
}

// ListForUser returns the user's requests, most recent first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Request, error) {
	rows, err := s.db.Handle().QueryContext(storage.EnsureContext(ctx), `
SELECT id, user_id, title, genre, mood, artist_inspiration, theme, notes, status, created_at
FROM human_requests WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list human requests: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		var (
			req       Request
			createdAt string
		)
		if err := rows.Scan(&req.ID, &req.UserID, &req.Title, &req.Genre, &req.Mood,
			&req.ArtistInspiration, &req.Theme, &req.Notes, &req.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan human request: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			req.CreatedAt = ts
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate human requests: %w", err)
	}
	return requests, nil
}
