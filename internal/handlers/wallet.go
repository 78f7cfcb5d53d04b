package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"arena/internal/models"
	"arena/internal/money"
	"arena/internal/services"
	"arena/internal/validator"

	"github.com/go-chi/chi/v5"
)

const maxProofBytes = 5 << 20

type balanceResponse struct {
	models.Wallet
	Total     int64         `json:"total"`
	Formatted balanceLabels `json:"formatted"`
}

type balanceLabels struct {
	Main    string `json:"main"`
	Winning string `json:"winning"`
	Total   string `json:"total"`
}

func (h *Handler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	total := wallet.MainBalance + wallet.WinningBalance
	respondJSON(w, http.StatusOK, balanceResponse{
		Wallet: wallet,
		Total:  total,
		Formatted: balanceLabels{
			Main:    money.FormatMinor(wallet.MainBalance),
			Winning: money.FormatMinor(wallet.WinningBalance),
			Total:   money.FormatMinor(total),
		},
	})
}

// AddCash accepts a multipart form with amount, upi_id, upi_transaction_id and
// an optional screenshot file.
func (h *Handler) AddCash(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+1<<20)
	if err := r.ParseMultipartForm(maxProofBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form")
		return
	}
	amount, err := positiveAmount(r.FormValue("amount"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var errs validator.Errors
	errs.Require(r.FormValue("upi_transaction_id"), "upi_transaction_id")
	if upi := r.FormValue("upi_id"); upi != "" {
		errs.Add(validator.ValidateUPI(upi))
	}
	if !errs.Empty() {
		h.writeServiceError(w, r, errs)
		return
	}
	req := services.DepositRequest{
		UserID:           userID,
		Amount:           amount,
		UPIID:            strings.TrimSpace(r.FormValue("upi_id")),
		UPITransactionID: strings.TrimSpace(r.FormValue("upi_transaction_id")),
	}
	file, header, err := r.FormFile("screenshot")
	switch {
	case err == nil:
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			respondError(w, http.StatusBadRequest, "invalid_screenshot")
			return
		}
		if h.proofs == nil {
			respondError(w, http.StatusServiceUnavailable, "uploads_disabled")
			return
		}
		req.ScreenshotRef, err = h.proofs.SavePaymentProof(r.Context(), userID, header.Filename, contentType, file)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	case !errors.Is(err, http.ErrMissingFile):
		respondError(w, http.StatusBadRequest, "invalid_form")
		return
	}
	created, err := h.wallet.RequestDeposit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

type bankDetailsRequest struct {
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
	AccountName   string `json:"account_name"`
}

type withdrawRequest struct {
	Amount      rupees             `json:"amount"`
	Method      string             `json:"method"`
	UPIID       string             `json:"upi_id"`
	BankDetails bankDetailsRequest `json:"bank_details"`
}

func (req withdrawRequest) validate() error {
	var errs validator.Errors
	switch req.Method {
	case models.WithdrawMethodUPI:
		errs.Add(validator.ValidateUPI(req.UPIID))
	case models.WithdrawMethodBank:
		errs.Require(req.BankDetails.AccountName, "account_name")
		errs.Add(validator.ValidateBank(req.BankDetails.AccountNumber, req.BankDetails.IFSCCode))
	default:
		errs.Check(false, "method must be upi or bank")
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if err := req.validate(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	created, err := h.wallet.RequestWithdrawal(r.Context(), services.WithdrawalRequest{
		UserID: userID,
		Amount: int64(req.Amount),
		Method: req.Method,
		UPIID:  strings.TrimSpace(req.UPIID),
		Bank: models.BankDetails{
			AccountNumber: optional(req.BankDetails.AccountNumber),
			IFSCCode:      optional(strings.ToUpper(req.BankDetails.IFSCCode)),
			AccountName:   optional(req.BankDetails.AccountName),
		},
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) WithdrawalLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := h.wallet.WithdrawalLimit(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	limits := h.wallet.Limits()
	respondJSON(w, http.StatusOK, map[string]any{
		"withdrawal_blocked":   limit.Blocked,
		"next_withdrawal_time": limit.NextAvailableAt,
		"hours_left":           limit.HoursLeft,
		"min_withdrawal":       money.FormatMinor(limits.WithdrawMin),
		"max_withdrawal":       money.FormatMinor(limits.WithdrawMax),
		"tax_percent":          limits.WithdrawTax.String(),
		"cooldown_hours":       limits.WithdrawCooldown.Hours(),
	})
}

func transactionQuery(r *http.Request) (services.TransactionQuery, error) {
	query := r.URL.Query()
	from, err := parseDate(query.Get("from"))
	if err != nil {
		return services.TransactionQuery{}, err
	}
	to, err := parseDate(query.Get("to"))
	if err != nil {
		return services.TransactionQuery{}, err
	}
	return services.TransactionQuery{
		UserID:      query.Get("user_id"),
		Type:        query.Get("type"),
		Status:      query.Get("status"),
		From:        from,
		To:          to,
		PageRequest: pageRequest(r),
	}, nil
}

func (h *Handler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q, err := transactionQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	page, err := h.wallet.Transactions(r.Context(), userID, q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := transactionQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	page, err := h.wallet.AllTransactions(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) AdminGetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.wallet.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

func (h *Handler) PendingDeposits(w http.ResponseWriter, r *http.Request) {
	rows, err := h.wallet.PendingDeposits(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows)})
}

func (h *Handler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	rows, err := h.wallet.PendingWithdrawals(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows)})
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

// reviewNotes reads the optional admin notes. An empty body is allowed.
func reviewNotes(r *http.Request) (*string, error) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return optional(req.Notes), nil
}

type reviewFunc func(r *http.Request, transactionID, adminID string, notes *string) (models.Transaction, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	notes, err := reviewNotes(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	txn, err := fn(r, chi.URLParam(r, "id"), adminID, notes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

func (h *Handler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(r *http.Request, id, adminID string, notes *string) (models.Transaction, error) {
		return h.wallet.ApproveDeposit(r.Context(), id, adminID, notes)
	})
}

func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(r *http.Request, id, adminID string, notes *string) (models.Transaction, error) {
		return h.wallet.RejectDeposit(r.Context(), id, adminID, notes)
	})
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(r *http.Request, id, adminID string, notes *string) (models.Transaction, error) {
		return h.wallet.ApproveWithdrawal(r.Context(), id, adminID, notes)
	})
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(r *http.Request, id, adminID string, notes *string) (models.Transaction, error) {
		return h.wallet.RejectWithdrawal(r.Context(), id, adminID, notes)
	})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	onlyMismatched := r.URL.Query().Get("mismatched") == "true"
	rows, err := h.wallet.Reconcile(r.Context(), onlyMismatched)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	mismatched := 0
	for _, row := range rows {
		if !row.Balanced() {
			mismatched++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"wallets":    rows,
		"mismatched": mismatched,
	})
}
