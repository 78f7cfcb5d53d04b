package handlers

import (
	"net/http"
	"time"

	"arena/internal/services"

	"github.com/go-chi/chi/v5"
)

type announcementRequest struct {
	Title           string     `json:"title"`
	Type            string     `json:"type"`
	Target          string     `json:"target"`
	TournamentID    string     `json:"tournament_id"`
	Content         string     `json:"content"`
	SendImmediately bool       `json:"send_immediately"`
	ScheduleTime    *time.Time `json:"schedule_time"`
}

func (req announcementRequest) input() services.AnnouncementInput {
	return services.AnnouncementInput{
		Title:           req.Title,
		Type:            req.Type,
		Target:          req.Target,
		TournamentID:    req.TournamentID,
		Content:         req.Content,
		SendImmediately: req.SendImmediately,
		ScheduleTime:    req.ScheduleTime,
	}
}

func (h *Handler) ActiveAnnouncements(w http.ResponseWriter, r *http.Request) {
	rows, err := h.announcements.Active(r.Context(), r.URL.Query().Get("tournament_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) MarkAnnouncementRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	first, err := h.announcements.MarkRead(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"first_read": first})
}

func (h *Handler) AdminListAnnouncements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.announcements.List(r.Context(), services.AnnouncementQuery{
		Status:      query.Get("status"),
		Type:        query.Get("type"),
		PageRequest: pageRequest(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	a, err := h.announcements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req announcementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.announcements.Create(r.Context(), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req announcementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.announcements.Update(r.Context(), chi.URLParam(r, "id"), req.input(), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.announcements.Delete(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResendAnnouncement(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	a, err := h.announcements.Resend(r.Context(), chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) ProcessScheduledAnnouncements(w http.ResponseWriter, r *http.Request) {
	sent, err := h.announcements.ProcessScheduled(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"processed": sent})
}

func (h *Handler) AnnouncementStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.announcements.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
