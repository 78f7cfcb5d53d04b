package handlers

import (
	"net/http"

	"arena/internal/services"

	"github.com/go-chi/chi/v5"
)

type winnerRequest struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Prize      rupees `json:"prize"`
}

type declareRequest struct {
	TournamentID string          `json:"tournament_id"`
	TotalPrize   rupees          `json:"total_prize"`
	Winners      []winnerRequest `json:"winners"`
}

func (req declareRequest) input() services.DeclareRequest {
	out := services.DeclareRequest{
		TournamentID: req.TournamentID,
		TotalPrize:   int64(req.TotalPrize),
		Winners:      make([]services.WinnerInput, 0, len(req.Winners)),
	}
	for _, w := range req.Winners {
		out.Winners = append(out.Winners, services.WinnerInput{
			Rank:       w.Rank,
			PlayerID:   w.PlayerID,
			PlayerName: w.PlayerName,
			Prize:      int64(w.Prize),
		})
	}
	return out
}

func (h *Handler) DeclareWinners(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req declareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.settlement.Declare(r.Context(), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateWinners(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req declareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.settlement.Update(r.Context(), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// DistributePrizes answers 207 when some winners could not be paid.
func (h *Handler) DistributePrizes(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	report, err := h.settlement.Distribute(r.Context(), chi.URLParam(r, "tournamentID"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	for _, outcome := range report.Outcomes {
		if outcome.Error != "" {
			status = http.StatusMultiStatus
			break
		}
	}
	respondJSON(w, status, report)
}

func (h *Handler) TournamentWinners(w http.ResponseWriter, r *http.Request) {
	d, err := h.settlement.ForTournament(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) GetDeclaration(w http.ResponseWriter, r *http.Request) {
	d, err := h.settlement.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) RecentWinners(w http.ResponseWriter, r *http.Request) {
	rows, err := h.settlement.Recent(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) WinnerHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.settlement.History(r.Context(), pageRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) WinnerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.settlement.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
