package server

import (
	"encoding/json"
	"net/http"

	"songforge/internal/api"
	"songforge/internal/humanreq"
	"songforge/internal/logging"
	"songforge/internal/music"
	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/session"
)

type submitIntakeRequest struct {
	UserID            string `json:"user_id"`
	Plan              string `json:"plan"`
	Title             string `json:"title"`
	Genre             string `json:"genre"`
	Mood              string `json:"mood"`
	Duration          string `json:"duration"`
	ArtistInspiration string `json:"artist_inspiration"`
	Language          string `json:"language"`
	Theme             string `json:"theme"`
}

type sessionResponse struct {
	Session api.SessionView `json:"session"`
	Quota   *api.QuotaView  `json:"quota,omitempty"`
	Guide   *api.GuideView  `json:"guide,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitIntake(w http.ResponseWriter, r *http.Request) {
	var req submitIntakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, ok := plan.Parse(req.Plan)
	if !ok {
		writeError(w, services.Wrap(services.ErrValidation, "api", "submit", "unknown plan "+req.Plan, nil))
		return
	}

	sess, balance, err := s.engine.SubmitIntake(r.Context(), req.UserID, p, session.SongIntake{
		Title:             req.Title,
		Genre:             req.Genre,
		Mood:              req.Mood,
		Duration:          req.Duration,
		ArtistInspiration: req.ArtistInspiration,
		Language:          req.Language,
		Theme:             req.Theme,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	quota := api.FromBalance(balance)
	writeJSON(w, http.StatusCreated, sessionResponse{Session: api.FromSession(sess), Quota: &quota})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: api.FromSession(sess)})
}

func (s *Server) handleRecheckVoice(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.RecheckVoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: api.FromSession(sess)})
}

type selectionRequest struct {
	Key *string `json:"key"`
	BPM *int    `json:"bpm"`
}

func (s *Server) handleSelectKeyAndTempo(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var key *music.Key
	if req.Key != nil {
		parsed, ok := music.ParseKey(*req.Key)
		if !ok {
			writeError(w, services.Wrap(services.ErrValidation, "api", "select", "unsupported key "+*req.Key, nil))
			return
		}
		key = &parsed
	}

	sess, err := s.engine.SelectKeyAndTempo(r.Context(), r.PathValue("id"), key, req.BPM)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: api.FromSession(sess)})
}

type previewRequest struct {
	Finalize bool `json:"finalize"`
}

func (s *Server) handlePreviewOrCommit(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, guide, err := s.engine.PreviewOrCommit(r.Context(), r.PathValue("id"), req.Finalize)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Finalize && sess.Artifact != nil {
		if notifyErr := s.notifier.NotifySongCommitted(r.Context(), sess); notifyErr != nil {
			s.logger.Warn("commit notification failed",
				logging.String(logging.FieldSessionID, sess.ID), logging.Error(notifyErr))
		}
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: api.FromSession(sess), Guide: api.FromGuide(guide)})
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Abandon(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: api.FromSession(sess)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, services.Wrap(services.ErrValidation, "api", "history", "user_id required", nil))
		return
	}
	sessions, err := s.engine.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": api.FromSessions(sessions)})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, services.Wrap(services.ErrValidation, "api", "quota", "user_id required", nil))
		return
	}
	p, ok := plan.Parse(r.URL.Query().Get("plan"))
	if !ok {
		writeError(w, services.Wrap(services.ErrValidation, "api", "quota", "unknown plan", nil))
		return
	}
	balance, err := s.engine.RemainingQuota(r.Context(), userID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromBalance(balance))
}

type planChangeRequest struct {
	UserID  string `json:"user_id"`
	OldPlan string `json:"old_plan"`
	NewPlan string `json:"new_plan"`
}

// handlePlanChange is the billing webhook: it adjusts the token ledger
// when a subscription moves between tiers.
func (s *Server) handlePlanChange(w http.ResponseWriter, r *http.Request) {
	var req planChangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" {
		writeError(w, services.Wrap(services.ErrValidation, "api", "plan_change", "user_id required", nil))
		return
	}
	oldPlan, ok := plan.Parse(req.OldPlan)
	if !ok {
		writeError(w, services.Wrap(services.ErrValidation, "api", "plan_change", "unknown old plan "+req.OldPlan, nil))
		return
	}
	newPlan, ok := plan.Parse(req.NewPlan)
	if !ok {
		writeError(w, services.Wrap(services.ErrValidation, "api", "plan_change", "unknown new plan "+req.NewPlan, nil))
		return
	}

	balance, err := s.tokens.ApplyPlanChange(r.Context(), req.UserID, oldPlan, newPlan)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("plan changed",
		logging.String(logging.FieldUserID, req.UserID),
		logging.String("old_plan", string(oldPlan)),
		logging.String("new_plan", string(newPlan)))
	writeJSON(w, http.StatusOK, api.FromBalance(balance))
}

type ingestProfileRequest struct {
	UserID   string `json:"user_id"`
	AssetRef string `json:"asset_ref"`
}

func (s *Server) handleIngestVoiceProfile(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "voice analyzer not configured")
		return
	}
	var req ingestProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" || req.AssetRef == "" {
		writeError(w, services.Wrap(services.ErrValidation, "api", "voice_profile", "user_id and asset_ref required", nil))
		return
	}

	profile, err := s.analyzer.Analyze(r.Context(), req.UserID, req.AssetRef)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.voices.Save(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("voice profile ingested",
		logging.String(logging.FieldUserID, req.UserID),
		logging.String("vocal_range", string(profile.VocalRange)))
	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id":     profile.UserID,
		"vocal_range": string(profile.VocalRange),
	})
}

type humanRequestBody struct {
	UserID            string `json:"user_id"`
	Plan              string `json:"plan"`
	Title             string `json:"title"`
	Genre             string `json:"genre"`
	Mood              string `json:"mood"`
	ArtistInspiration string `json:"artist_inspiration"`
	Theme             string `json:"theme"`
	Notes             string `json:"notes"`
}

func (s *Server) handleSubmitHumanRequest(w http.ResponseWriter, r *http.Request) {
	var body humanRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	p, ok := plan.Parse(body.Plan)
	if !ok {
		writeError(w, services.Wrap(services.ErrValidation, "api", "human_request", "unknown plan "+body.Plan, nil))
		return
	}

	req, err := s.requests.Submit(r.Context(), body.UserID, p, &humanreq.Request{
		Title:             body.Title,
		Genre:             body.Genre,
		Mood:              body.Mood,
		ArtistInspiration: body.ArtistInspiration,
		Theme:             body.Theme,
		Notes:             body.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if notifyErr := s.notifier.NotifyHumanRequestReceived(r.Context(), req); notifyErr != nil {
		s.logger.Warn("human request notification failed",
			logging.String("request_id", req.ID), logging.Error(notifyErr))
	}
	writeJSON(w, http.StatusCreated, api.FromHumanRequest(req))
}

func (s *Server) handleListHumanRequests(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, services.Wrap(services.ErrValidation, "api", "human_request", "user_id required", nil))
		return
	}
	requests, err := s.requests.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": api.FromHumanRequests(requests)})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "empty request body", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "malformed JSON body", err)
	}
	return nil
}
