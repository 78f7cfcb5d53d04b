package handlers

import (
	"net/http"
	"strings"

	"arena/internal/models"
	"arena/internal/services"
	"arena/internal/validator"

	"github.com/go-chi/chi/v5"
)

type tournamentRegistrationRequest struct {
	TournamentID string `json:"tournament_id"`
	PlayerID     string `json:"player_id"`
	PlayerName   string `json:"player_name"`
	TeamType     string `json:"team_type"`
}

func (req tournamentRegistrationRequest) validate() error {
	var errs validator.Errors
	errs.Require(req.TournamentID, "tournament_id")
	errs.Require(req.PlayerName, "player_name")
	errs.Add(validator.ValidatePlayerID(req.PlayerID))
	if req.TeamType != "" {
		errs.Check(models.OneOf(req.TeamType, models.TeamTypes), "team_type must be one of "+strings.Join(models.TeamTypes, ", "))
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

// RegisterForTournament creates a pending registration. Payment is a separate call.
func (h *Handler) RegisterForTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req tournamentRegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	reg, err := h.registrations.Register(r.Context(), services.RegisterRequest{
		TournamentID: req.TournamentID,
		UserID:       userID,
		PlayerID:     req.PlayerID,
		PlayerName:   req.PlayerName,
		TeamType:     req.TeamType,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reg)
}

func (h *Handler) PayRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	reg, err := h.registrations.ProcessPayment(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reg)
}

func (h *Handler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rows, err := h.registrations.MyRegistrations(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) CheckRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID := r.URL.Query().Get("tournament_id")
	if tournamentID == "" {
		respondError(w, http.StatusBadRequest, "tournament_id_required")
		return
	}
	check, err := h.registrations.Check(r.Context(), userID, tournamentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

func (h *Handler) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.registrations.List(r.Context(), services.RegistrationQuery{
		Status:        query.Get("status"),
		PaymentStatus: query.Get("payment_status"),
		TournamentID:  query.Get("tournament_id"),
		PageRequest:   pageRequest(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) TournamentRegistrations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.registrations.ForTournament(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows)})
}

func (h *Handler) RegistrationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registrations.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	reg, err := h.registrations.Cancel(r.Context(), chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reg)
}

func (h *Handler) RefundRegistration(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	reg, err := h.registrations.Refund(r.Context(), chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reg)
}
