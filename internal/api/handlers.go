package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
)

type triggerCallRequest struct {
	LeadID     int64  `json:"lead_id"`
	CampaignID int64  `json:"campaign_id"`
	Phone      string `json:"phone"`
}

type createLeadRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Language string `json:"language"`
}

type createCampaignRequest struct {
	Name           string `json:"name"`
	Goal           string `json:"goal"`
	Language       string `json:"language"`
	MaxTurns       int    `json:"max_turns"`
	TransferNumber string `json:"transfer_number"`
}

// handleTriggerCall places an outbound call and creates its session. The
// callee is either a stored lead or a bare phone number.
func (s *Server) handleTriggerCall(w http.ResponseWriter, r *http.Request) {
	var req triggerCallRequest
	if !readJSON(w, r, &req) {
		return
	}

	to := req.Phone
	language := ""
	if req.LeadID != 0 {
		lead, err := s.deps.Leads.GetByID(r.Context(), req.LeadID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load lead")
			return
		}
		if lead == nil {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		to = lead.Phone
		language = lead.Language
	}
	if to == "" {
		writeError(w, http.StatusBadRequest, "lead_id or phone is required")
		return
	}
	if req.CampaignID != 0 {
		campaign, err := s.deps.Campaigns.GetByID(r.Context(), req.CampaignID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load campaign")
			return
		}
		if campaign == nil {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		if campaign.Language != "" {
			language = campaign.Language
		}
	}

	ref, err := s.deps.Carrier.PlaceCall(r.Context(), to,
		s.deps.Config.WebhookURL("/webhooks/voice/answer"),
		s.deps.Config.WebhookURL("/webhooks/voice/status"),
	)
	if err != nil {
		s.logger.Error("failed to place call", slog.String("to", to), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to place call")
		return
	}

	seed := models.CallSession{
		State:      models.StateInitiated,
		LeadID:     req.LeadID,
		CampaignID: req.CampaignID,
		Language:   language,
	}
	sess, _, err := s.deps.Store.GetOrCreate(r.Context(), ref, seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create call session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	sess, err := s.deps.Store.Get(r.Context(), ref)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "call session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load call session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	turns, err := s.deps.Store.Turns(r.Context(), ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load turns")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	lead := &models.Lead{
		Name:     req.Name,
		Phone:    req.Phone,
		Language: req.Language,
	}
	if err := s.deps.Leads.Create(r.Context(), lead); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	lead, err := s.deps.Leads.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	campaign := &models.Campaign{
		Name:           req.Name,
		Goal:           req.Goal,
		Language:       req.Language,
		MaxTurns:       req.MaxTurns,
		TransferNumber: req.TransferNumber,
	}
	if err := s.deps.Campaigns.Create(r.Context(), campaign); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}
	campaign, err := s.deps.Campaigns.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if campaign == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// handleAudio serves a rendered audio asset for a Play verb. Access
// requires the token minted when the asset's URL was signed.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if err := s.deps.Signer.Verify(hash, r.URL.Query().Get("token")); err != nil {
		writeError(w, http.StatusForbidden, "invalid audio token")
		return
	}
	asset, err := s.deps.Cache.Get(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audio")
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, asset.Path)
}
