package humanreq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"songforge/internal/logging"
	"songforge/internal/plan"
	"songforge/internal/services"
)

// Service gates human production requests behind the plan entitlement
// and records accepted briefs.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService wires the human request service.
func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logging.NewComponentLogger(logger, "human-request"),
	}
}

// Submit validates the brief and records it. Plans without the human
// request entitlement are rejected before anything is written.
func (s *Service) Submit(ctx context.Context, userID string, p plan.Plan, req *Request) (*Request, error) {
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "human-request", "submit", "user id required", nil)
	}
	if !p.Valid() {
		return nil, services.Wrap(services.ErrValidation, "human-request", "submit", "unknown plan "+string(p), nil)
	}
	if !plan.Entitlements(p).Has(plan.CapHumanRequestForm) {
		return nil, services.Wrap(services.ErrNotEntitled, "human-request", "submit",
			fmt.Sprintf("plan %s cannot request human production", p), nil)
	}
	if req == nil {
		return nil, services.Wrap(services.ErrValidation, "human-request", "submit", "empty request", nil)
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	req.ID = uuid.NewString()
	req.UserID = userID
	req.Status = StatusReceived
	if err := s.store.Append(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("human request received",
		logging.String("request_id", req.ID),
		logging.String(logging.FieldUserID, userID),
		logging.String(logging.FieldGenre, req.Genre))
	return req, nil
}

// History lists the user's submitted requests, most recent first.
func (s *Service) History(ctx context.Context, userID string) ([]*Request, error) {
	return s.store.ListForUser(ctx, userID)
}
