package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"arena/internal/models"
	"arena/internal/services"
	"arena/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

type promoteRequest struct {
	Identifier string `json:"identifier"`
}

// resolveUser accepts either an email address or a user id.
func (h *Handler) resolveUser(ctx context.Context, identifier string) (models.User, error) {
	var (
		user models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = h.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = h.users.GetByID(ctx, identifier)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, services.ErrUserNotFound
	}
	return user, err
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req promoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		respondError(w, http.StatusBadRequest, "identifier_required")
		return
	}
	target, err := h.resolveUser(r.Context(), req.Identifier)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if target.IsAdmin {
		respondError(w, http.StatusConflict, "already_admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, target.ID, false, &adminID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, adminID, "promote_admin", "admin", target.ID, auditData(map[string]any{
			"target_user_id": target.ID,
		}))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted", "user_id": target.ID})
}

type roleRequest struct {
	AdminUserID string `json:"admin_user_id"`
	Role        string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, "grant_role", h.admin.GrantRole)
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, "revoke_role", h.admin.RevokeRole)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request, action string, apply func(ctx context.Context, tx store.Execer, adminUserID, role string) error) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AdminUserID == "" || !models.OneOf(req.Role, models.AdminRoles) {
		respondError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	isAdmin, isSuper, err := h.admin.IsAdmin(r.Context(), req.AdminUserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !isAdmin {
		respondError(w, http.StatusBadRequest, "target_not_admin")
		return
	}
	if isSuper {
		respondError(w, http.StatusBadRequest, "target_is_super_admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := apply(r.Context(), tx, req.AdminUserID, req.Role); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, adminID, action, "admin_role", req.AdminUserID, auditData(map[string]any{
			"role": req.Role,
		}))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": action, "role": req.Role})
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	req := pageRequest(r)
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if req.Page < 1 {
		req.Page = 1
	}
	rows, err := h.users.List(r.Context(), search, store.Page{Limit: limit, Offset: (req.Page - 1) * limit})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	total, err := h.users.Count(r.Context(), search)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.User{}
	}
	pages := (total + limit - 1) / limit
	respondJSON(w, http.StatusOK, map[string]any{
		"items":       rows,
		"total":       total,
		"page":        req.Page,
		"limit":       limit,
		"total_pages": pages,
		"has_more":    req.Page < pages,
	})
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) AdminSetUserActive(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "id")
	if userID == adminID && !req.Active {
		respondError(w, http.StatusBadRequest, "cannot_disable_self")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		n, err := h.users.SetActive(r.Context(), tx, userID, req.Active)
		if err != nil {
			return err
		}
		if n == 0 {
			return services.ErrUserNotFound
		}
		return h.audit.Log(r.Context(), tx, adminID, "set_user_active", "user", userID, auditData(map[string]any{
			"active": req.Active,
		}))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "active": req.Active})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := parseInt(query.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	rows, err := h.audit.List(r.Context(), query.Get("entity_type"), store.Page{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []store.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows, "page": page, "limit": limit})
}

type dashboardResponse struct {
	Wallet        services.WalletDashboard     `json:"wallet"`
	Tournaments   services.TournamentDashboard `json:"tournaments"`
	Settlement    store.SettlementStats        `json:"settlement"`
	Announcements store.AnnouncementStats      `json:"announcements"`
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		resp dashboardResponse
		err  error
	)
	if resp.Wallet, err = h.wallet.DashboardStats(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if resp.Tournaments, err = h.tournaments.DashboardStats(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if resp.Settlement, err = h.settlement.Stats(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if resp.Announcements, err = h.announcements.Stats(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
