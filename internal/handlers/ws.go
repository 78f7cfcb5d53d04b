package handlers

import "net/http"

// WS upgrades to the per-user push channel carrying balance updates and notifications.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.sockets == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket_disabled")
		return
	}
	h.sockets.ServeWS(w, r, userID)
}
