package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"arena/internal/auth"
	"arena/internal/models"
	"arena/internal/tokens"
	"arena/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (req registerRequest) validate() error {
	var errs validator.Errors
	errs.Add(validator.ValidateUsername(req.Username))
	errs.Add(validator.ValidateEmail(req.Email))
	errs.Add(validator.ValidatePassword(req.Password))
	if req.Phone != "" {
		errs.Add(validator.ValidatePhone(req.Phone))
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

func auditData(values map[string]any) string {
	data, _ := json.Marshal(values)
	return string(data)
}

// Register creates the user and its wallet. The first account on an empty
// installation becomes the super admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := req.validate(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorw("hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	userID := uuid.NewString()
	superAdmin := false
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, userID, req.Username, req.Email, passwordHash, optional(req.Phone)); err != nil {
			return err
		}
		if _, err := h.wallets.GetOrCreate(r.Context(), tx, uuid.NewString(), userID); err != nil {
			return err
		}
		hasAdmin, err := h.admin.HasAnyAdmin(r.Context(), tx)
		if err != nil {
			return err
		}
		superAdmin = !hasAdmin
		if superAdmin {
			if err := h.admin.CreateAdmin(r.Context(), tx, userID, true, nil); err != nil {
				return err
			}
		}
		return h.audit.Log(r.Context(), tx, userID, "register", "user", userID, auditData(map[string]any{
			"ip":          r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"super_admin": superAdmin,
		}))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.TokenTTL)
	if err != nil {
		h.log.Errorw("generate token", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "token_failed")
		return
	}
	h.log.Infow("user registered", "user_id", userID, "super_admin", superAdmin)
	respondJSON(w, http.StatusCreated, map[string]any{
		"token":   token,
		"user_id": userID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusForbidden, "account_disabled")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, user.ID, "login", "user", user.ID, auditData(map[string]any{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		}))
	}); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		h.log.Errorw("generate token", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "token_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

type meResponse struct {
	models.User
	IsSuperAdmin bool     `json:"is_super_admin"`
	Roles        []string `json:"roles"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user_not_found")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	resp := meResponse{User: user, Roles: []string{}}
	if user.IsAdmin {
		_, isSuper, err := h.admin.IsAdmin(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.IsSuperAdmin = isSuper
		if isSuper {
			resp.Roles = models.AdminRoles
		} else if resp.Roles, err = h.admin.Roles(r.Context(), userID); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.PublicProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user_not_found")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers the same way whether or not the email is known.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if h.resets == nil {
		respondError(w, http.StatusServiceUnavailable, "password_reset_disabled")
		return
	}
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp := map[string]any{"status": "reset_requested"}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSON(w, http.StatusAccepted, resp)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	token, expiresAt, err := h.resets.Issue(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.log.Infow("password reset issued", "user_id", user.ID, "expires_at", expiresAt)
	if !h.cfg.IsProduction() {
		resp["reset_token"] = token
		resp["expires_at"] = expiresAt
	}
	respondJSON(w, http.StatusAccepted, resp)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if h.resets == nil {
		respondError(w, http.StatusServiceUnavailable, "password_reset_disabled")
		return
	}
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		h.writeServiceError(w, r, validator.Errors{err.Error()})
		return
	}
	userID, err := h.resets.Consume(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			respondError(w, http.StatusBadRequest, "invalid_reset_token")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorw("hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.UpdatePassword(r.Context(), tx, userID, passwordHash); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "reset_password", "user", userID, auditData(map[string]any{
			"ip": r.RemoteAddr,
		}))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}

type profileRequest struct {
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone != "" {
		if err := validator.ValidatePhone(req.Phone); err != nil {
			h.writeServiceError(w, r, validator.Errors{err.Error()})
			return
		}
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.users.UpdateProfile(r.Context(), tx, userID, optional(req.Phone), optional(req.AvatarURL))
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
