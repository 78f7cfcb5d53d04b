package handlers

import (
	"net/http"
	"time"

	"arena/internal/models"
	"arena/internal/services"

	"github.com/go-chi/chi/v5"
)

type prizeDistributionRequest struct {
	First  rupees `json:"first"`
	Second rupees `json:"second"`
	Third  rupees `json:"third"`
}

type tournamentRequest struct {
	Name              string                   `json:"name"`
	Type              string                   `json:"type"`
	Game              string                   `json:"game"`
	EntryFee          rupees                   `json:"entry_fee"`
	PrizePool         rupees                   `json:"prize_pool"`
	MaxPlayers        int                      `json:"max_players"`
	StartTime         time.Time                `json:"start_time"`
	Rules             string                   `json:"rules"`
	HowToPlay         string                   `json:"how_to_play"`
	PrizeDistribution prizeDistributionRequest `json:"prize_distribution"`
}

func (req tournamentRequest) input() services.TournamentInput {
	return services.TournamentInput{
		Name:       req.Name,
		Type:       req.Type,
		Game:       req.Game,
		EntryFee:   int64(req.EntryFee),
		PrizePool:  int64(req.PrizePool),
		MaxPlayers: req.MaxPlayers,
		StartTime:  req.StartTime,
		Rules:      req.Rules,
		HowToPlay:  req.HowToPlay,
		PrizeDistribution: models.PrizeDistribution{
			First:  int64(req.PrizeDistribution.First),
			Second: int64(req.PrizeDistribution.Second),
			Third:  int64(req.PrizeDistribution.Third),
		},
	}
}

func tournamentQuery(r *http.Request) services.TournamentQuery {
	query := r.URL.Query()
	return services.TournamentQuery{
		Status:      query.Get("status"),
		Type:        query.Get("type"),
		Game:        query.Get("game"),
		PageRequest: pageRequest(r),
	}
}

func (h *Handler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	page, err := h.tournaments.List(r.Context(), tournamentQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// AdminListTournaments is the admin view of the same listing.
func (h *Handler) AdminListTournaments(w http.ResponseWriter, r *http.Request) {
	h.ListTournaments(w, r)
}

func (h *Handler) ActiveTournaments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.tournaments.Active(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.tournaments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) GetTournamentBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.tournaments.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req tournamentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.tournaments.Create(r.Context(), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateTournament(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req tournamentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.tournaments.Update(r.Context(), chi.URLParam(r, "id"), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.tournaments.Delete(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tournamentTransition func(r *http.Request, tournamentID, adminID string) (models.Tournament, error)

func (h *Handler) transitionTournament(w http.ResponseWriter, r *http.Request, fn tournamentTransition) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	t, err := fn(r, chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) CloseTournament(w http.ResponseWriter, r *http.Request) {
	h.transitionTournament(w, r, func(r *http.Request, id, adminID string) (models.Tournament, error) {
		return h.tournaments.Close(r.Context(), id, adminID)
	})
}

func (h *Handler) StartTournament(w http.ResponseWriter, r *http.Request) {
	h.transitionTournament(w, r, func(r *http.Request, id, adminID string) (models.Tournament, error) {
		return h.tournaments.Start(r.Context(), id, adminID)
	})
}

func (h *Handler) EndTournament(w http.ResponseWriter, r *http.Request) {
	h.transitionTournament(w, r, func(r *http.Request, id, adminID string) (models.Tournament, error) {
		return h.tournaments.End(r.Context(), id, adminID)
	})
}

func (h *Handler) CancelTournament(w http.ResponseWriter, r *http.Request) {
	h.transitionTournament(w, r, func(r *http.Request, id, adminID string) (models.Tournament, error) {
		return h.tournaments.Cancel(r.Context(), id, adminID)
	})
}
