package humanreq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"songforge/internal/humanreq"
	"songforge/internal/logging"
	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/testsupport"
)

func newService(t *testing.T) *humanreq.Service {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	return humanreq.NewService(humanreq.NewStore(db), logging.NewNop())
}

func validRequest() *humanreq.Request {
	return &humanreq.Request{
		Title: "Anniversary Song",
		Genre: "Highlife",
		Mood:  "Joyful",
		Theme: "Ten years together",
		Notes: "Mention the city of Accra",
	}
}

func TestSubmitRequiresTopTier(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, p := range []plan.Plan{plan.Basic, plan.Pro} {
		_, err := svc.Submit(ctx, "user-1", p, validRequest())
		if !errors.Is(err, services.ErrNotEntitled) {
			t.Fatalf("plan %s: err = %v, want ErrNotEntitled", p, err)
		}
	}

	history, err := svc.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected submits wrote %d requests", len(history))
	}
}

func TestSubmitRecordsRequest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	req, err := svc.Submit(ctx, "user-1", plan.ProPlus, validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.ID == "" {
		t.Fatal("missing request id")
	}
	if req.Status != humanreq.StatusReceived {
		t.Fatalf("status = %q", req.Status)
	}
	if req.Genre != "highlife" {
		t.Fatalf("genre = %q, want lowercased", req.Genre)
	}
	if req.CreatedAt.IsZero() {
		t.Fatal("missing created timestamp")
	}

	history, err := svc.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].ID != req.ID {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Notes != "Mention the city of Accra" {
		t.Fatalf("notes = %q", history[0].Notes)
	}
}

func TestSubmitValidatesBrief(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*humanreq.Request)
	}{
		{"title", func(r *humanreq.Request) { r.Title = "" }},
		{"genre", func(r *humanreq.Request) { r.Genre = "" }},
		{"mood", func(r *humanreq.Request) { r.Mood = " " }},
		{"theme", func(r *humanreq.Request) { r.Theme = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			_, err := svc.Submit(ctx, "user-1", plan.ProPlus, req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestHistoryOrdersRecentFirst(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "user-1", plan.ProPlus, validRequest())
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second := validRequest()
	second.Title = "Naming Ceremony"
	latest, err := svc.Submit(ctx, "user-1", plan.ProPlus, second)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	history, err := svc.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].ID != latest.ID || history[1].ID != first.ID {
		t.Fatal("history not ordered most recent first")
	}
}
