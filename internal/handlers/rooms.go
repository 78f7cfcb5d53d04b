package handlers

import (
	"net/http"

	"arena/internal/models"
	"arena/internal/services"

	"github.com/go-chi/chi/v5"
)

type roomRequest struct {
	RoomID     string `json:"room_id"`
	Password   string `json:"password"`
	Map        string `json:"map"`
	MaxPlayers int    `json:"max_players"`
	RoomStatus string `json:"room_status"`
	Notes      string `json:"notes"`
}

func (req roomRequest) input() services.RoomInput {
	return services.RoomInput{
		RoomID:     req.RoomID,
		Password:   req.Password,
		Map:        req.Map,
		MaxPlayers: req.MaxPlayers,
		RoomStatus: req.RoomStatus,
		Notes:      req.Notes,
	}
}

type roomDetailsRequest struct {
	TournamentID string        `json:"tournament_id"`
	Notes        string        `json:"notes"`
	AutoPublish  *bool         `json:"auto_publish"`
	Rooms        []roomRequest `json:"rooms"`
}

// input defaults auto_publish to true when the field is omitted.
func (req roomDetailsRequest) input() services.RoomDetailsInput {
	in := services.RoomDetailsInput{
		TournamentID: req.TournamentID,
		Notes:        req.Notes,
		AutoPublish:  req.AutoPublish == nil || *req.AutoPublish,
		Rooms:        make([]services.RoomInput, 0, len(req.Rooms)),
	}
	for _, room := range req.Rooms {
		in.Rooms = append(in.Rooms, room.input())
	}
	return in
}

// PlayerRooms returns credentials only to confirmed players once the rooms are published.
func (h *Handler) PlayerRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	access, err := h.rooms.ForPlayer(r.Context(), userID, chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, access)
}

func (h *Handler) CreateRooms(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req roomDetailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.rooms.Create(r.Context(), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateRooms(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req roomDetailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.rooms.Update(r.Context(), chi.URLParam(r, "id"), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteRooms(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.rooms.Delete(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddRoom(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.rooms.AddRoom(r.Context(), chi.URLParam(r, "id"), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) PublishRooms(w http.ResponseWriter, r *http.Request) {
	h.publishRooms(w, r, func(r *http.Request, id, adminID string) (models.RoomDetails, error) {
		return h.rooms.Publish(r.Context(), id, adminID)
	})
}

func (h *Handler) UnpublishRooms(w http.ResponseWriter, r *http.Request) {
	h.publishRooms(w, r, func(r *http.Request, id, adminID string) (models.RoomDetails, error) {
		return h.rooms.Unpublish(r.Context(), id, adminID)
	})
}

func (h *Handler) publishRooms(w http.ResponseWriter, r *http.Request, fn func(r *http.Request, id, adminID string) (models.RoomDetails, error)) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	d, err := fn(r, chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	d, err := h.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) TournamentRooms(w http.ResponseWriter, r *http.Request) {
	d, err := h.rooms.ForTournament(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) RecentRooms(w http.ResponseWriter, r *http.Request) {
	rows, err := h.rooms.Recent(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}
