package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arena/internal/db"
	"arena/internal/middleware"
	"arena/internal/money"
	"arena/internal/services"
	"arena/internal/validator"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{services.ErrTournamentNotFound, http.StatusNotFound, "tournament_not_found"},
	{services.ErrRegistrationNotFound, http.StatusNotFound, "registration_not_found"},
	{services.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{services.ErrWalletNotFound, http.StatusNotFound, "wallet_not_found"},
	{services.ErrDeclarationNotFound, http.StatusNotFound, "declaration_not_found"},
	{services.ErrRoomDetailsNotFound, http.StatusNotFound, "room_details_not_found"},
	{services.ErrAnnouncementNotFound, http.StatusNotFound, "announcement_not_found"},
	{services.ErrUserNotFound, http.StatusNotFound, "user_not_found"},

	{services.ErrForbidden, http.StatusForbidden, "forbidden"},

	{services.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{services.ErrTournamentClosed, http.StatusConflict, "tournament_closed"},
	{services.ErrTournamentNotCompleted, http.StatusConflict, "tournament_not_completed"},
	{services.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{services.ErrNotCancelled, http.StatusConflict, "registration_not_cancelled"},
	{services.ErrNothingToRefund, http.StatusConflict, "nothing_to_refund"},
	{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{services.ErrTournamentFull, http.StatusConflict, "tournament_full"},
	{services.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{services.ErrAlreadyDeclared, http.StatusConflict, "winners_already_declared"},
	{services.ErrDuplicateRoom, http.StatusConflict, "duplicate_room"},
	{services.ErrRoomDetailsExist, http.StatusConflict, "room_details_exist"},
	{services.ErrTournamentInUse, http.StatusConflict, "tournament_in_use"},

	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{services.ErrPrizeExceedsPool, http.StatusBadRequest, "prize_exceeds_pool"},
	{services.ErrPlayerNotRegistered, http.StatusBadRequest, "player_not_registered"},
	{money.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{money.ErrTooManyDecimals, http.StatusBadRequest, "invalid_amount"},

	{services.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
}

// writeServiceError maps service errors onto HTTP responses. Anything unmapped is logged and hidden.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var throttle *services.ThrottleError
	if errors.As(err, &throttle) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":                "withdrawal_limit_active",
			"hours_left":           throttle.HoursLeft(),
			"next_withdrawal_time": throttle.NextAvailableAt,
		})
		return
	}
	var invalid validator.Errors
	if errors.As(err, &invalid) {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_failed", "errors": []string(invalid)})
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code)
			return
		}
	}
	if db.IsUniqueViolation(err) {
		respondError(w, http.StatusConflict, "conflict")
		return
	}
	h.log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error")
}

// currentUser writes a 401 when the auth middleware did not run.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, money.ErrInvalidAmount) || errors.Is(err, money.ErrTooManyDecimals) {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return false
	}
	return true
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func pageRequest(r *http.Request) services.PageRequest {
	query := r.URL.Query()
	return services.PageRequest{
		Page:  parseInt(query.Get("page"), 1),
		Limit: parseInt(query.Get("limit"), 0),
	}
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, services.ErrInvalidInput
	}
	return &t, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// rupees decodes a rupee amount given either as a JSON string ("49.50") or a number into paise.
type rupees int64

func (v *rupees) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if raw == "" || raw == "null" {
		*v = 0
		return nil
	}
	minor, err := money.ParseMinor(raw)
	if err != nil {
		return err
	}
	*v = rupees(minor)
	return nil
}

func positiveAmount(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, services.ErrInvalidAmount
	}
	return amount, nil
}
