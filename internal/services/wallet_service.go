package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"arena/internal/config"
	"arena/internal/db"
	"arena/internal/lifecycle"
	"arena/internal/metrics"
	"arena/internal/models"
	"arena/internal/money"
	"arena/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// WalletService owns deposits, withdrawals and the admin review of both.
type WalletService struct {
	txRunner db.TxRunner
	ledger   ledger
	wallets  WalletStore
	txStore  TransactionStore
	audit    AuditStore
	proofs   ProofRemover
	hub      BalanceHub
	limits   config.WalletLimits
	now      func() time.Time
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

func NewWalletService(txRunner db.TxRunner, wallets WalletStore, entries LedgerStore, txStore TransactionStore, audit AuditStore, proofs ProofRemover, hub BalanceHub, limits config.WalletLimits, log *zap.SugaredLogger, m *metrics.Metrics) *WalletService {
	return &WalletService{
		txRunner: txRunner,
		ledger:   ledger{wallets: wallets, entries: entries, txs: txStore},
		wallets:  wallets,
		txStore:  txStore,
		audit:    audit,
		proofs:   proofs,
		hub:      hub,
		limits:   limits,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
}

func (s *WalletService) Limits() config.WalletLimits {
	return s.limits
}

// Balance returns the caller's wallet, creating an empty one on first access.
func (s *WalletService) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), userID)
		return err
	})
	return wallet, err
}

type DepositRequest struct {
	UserID           string
	Amount           int64
	UPIID            string
	UPITransactionID string
	ScreenshotRef    string
}

// RequestDeposit records a pending add_cash request. The uploaded proof is
// removed whenever the request is not recorded.
func (s *WalletService) RequestDeposit(ctx context.Context, req DepositRequest) (models.Transaction, error) {
	created, err := s.requestDeposit(ctx, req)
	if err != nil {
		s.discardProof(ctx, req.ScreenshotRef)
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeAddCash, models.TxStatusPending, 0)
	s.log.Infow("deposit requested", "user_id", req.UserID, "transaction_id", created.ExternalID, "amount", req.Amount)
	return created, nil
}

func (s *WalletService) requestDeposit(ctx context.Context, req DepositRequest) (models.Transaction, error) {
	if req.Amount < s.limits.DepositMin || req.Amount > s.limits.DepositMax {
		return models.Transaction{}, ErrInvalidAmount
	}
	if strings.TrimSpace(req.UPITransactionID) == "" {
		return models.Transaction{}, ErrInvalidInput
	}
	now := s.now()
	var input store.TransactionInput
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), req.UserID); err != nil {
			return err
		}
		externalID, err := s.ledger.nextIdentifier(ctx, tx, prefixTransaction, now)
		if err != nil {
			return err
		}
		input = store.TransactionInput{
			ID:               uuid.NewString(),
			ExternalID:       externalID,
			UserID:           req.UserID,
			Type:             models.TxTypeAddCash,
			Status:           models.TxStatusPending,
			Amount:           req.Amount,
			NetAmount:        req.Amount,
			UPIID:            optionalString(req.UPIID),
			UPITransactionID: optionalString(req.UPITransactionID),
			Screenshot:       optionalString(req.ScreenshotRef),
			Description:      "Add cash request",
		}
		if err := s.txStore.Create(ctx, tx, input); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.UserID, "request_deposit", "transaction", input.ID, auditData(map[string]any{
			"transaction_id": externalID,
			"amount":         req.Amount,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return transactionFromInput(input, now), nil
}

func (s *WalletService) discardProof(ctx context.Context, ref string) {
	if ref == "" || s.proofs == nil {
		return
	}
	if err := s.proofs.Delete(ctx, ref); err != nil {
		s.log.Warnw("failed to delete payment proof", "ref", ref, "error", err)
	}
}

// ApproveDeposit credits main exactly once; a second call fails with ErrAlreadyProcessed.
func (s *WalletService) ApproveDeposit(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error) {
	var (
		txn    models.Transaction
		wallet models.Wallet
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		txn, err = s.review(ctx, tx, transactionID, models.TxTypeAddCash, lifecycle.EventApprove, adminID, notes)
		if err != nil {
			return err
		}
		wallet, err = s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), txn.UserID)
		if err != nil {
			return err
		}
		wallet, err = s.ledger.post(ctx, tx, wallet, txn.ID, store.WalletMovement{
			Main:      txn.Amount,
			Deposited: txn.Amount,
		}, "Deposit approved")
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "approve_deposit", "transaction", txn.ID, auditData(map[string]any{
			"transaction_id": txn.ExternalID,
			"amount":         txn.Amount,
			"user_id":        txn.UserID,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeAddCash, txn.Status, txn.Amount)
	s.log.Infow("deposit approved", "transaction_id", txn.ExternalID, "user_id", txn.UserID, "admin_id", adminID, "amount", txn.Amount)
	s.hub.BroadcastBalance(txn.UserID, balanceUpdate(wallet, "deposit_approved"))
	return txn, nil
}

// RejectDeposit closes a deposit request without touching the wallet.
func (s *WalletService) RejectDeposit(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error) {
	var txn models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		txn, err = s.review(ctx, tx, transactionID, models.TxTypeAddCash, lifecycle.EventReject, adminID, notes)
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "reject_deposit", "transaction", txn.ID, auditData(map[string]any{
			"transaction_id": txn.ExternalID,
			"notes":          notes,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeAddCash, txn.Status, 0)
	s.log.Infow("deposit rejected", "transaction_id", txn.ExternalID, "user_id", txn.UserID, "admin_id", adminID)
	return txn, nil
}

type WithdrawalRequest struct {
	UserID string
	Amount int64
	Method string
	UPIID  string
	Bank   models.BankDetails
}

// RequestWithdrawal reserves the gross amount from the winning balance immediately.
func (s *WalletService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (models.Transaction, error) {
	if req.Amount < s.limits.WithdrawMin || req.Amount > s.limits.WithdrawMax {
		return models.Transaction{}, ErrInvalidAmount
	}
	if err := validatePayoutMethod(req); err != nil {
		return models.Transaction{}, err
	}
	now := s.now()
	tax, net := money.SplitTax(req.Amount, s.limits.WithdrawTax)
	var (
		input  store.TransactionInput
		wallet models.Wallet
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), req.UserID)
		if err != nil {
			return err
		}
		last, err := s.txStore.LastApprovedWithdrawal(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if err := s.checkThrottle(last, now); err != nil {
			return err
		}
		if wallet.WinningBalance < req.Amount {
			return ErrInsufficientBalance
		}
		externalID, err := s.ledger.nextIdentifier(ctx, tx, prefixTransaction, now)
		if err != nil {
			return err
		}
		referenceID, err := s.ledger.nextIdentifier(ctx, tx, prefixReference, now)
		if err != nil {
			return err
		}
		input = store.TransactionInput{
			ID:          uuid.NewString(),
			ExternalID:  externalID,
			ReferenceID: &referenceID,
			UserID:      req.UserID,
			Type:        models.TxTypeWithdraw,
			Status:      models.TxStatusPending,
			Amount:      req.Amount,
			TaxAmount:   tax,
			NetAmount:   net,
			Description: "Withdrawal request",
		}
		if req.Method == models.WithdrawMethodUPI {
			input.UPIID = optionalString(req.UPIID)
		} else {
			input.Bank = req.Bank
		}
		if err := s.txStore.Create(ctx, tx, input); err != nil {
			return err
		}
		wallet, err = s.ledger.post(ctx, tx, wallet, input.ID, store.WalletMovement{Winning: -req.Amount}, "Withdrawal reserved")
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.UserID, "request_withdrawal", "transaction", input.ID, auditData(map[string]any{
			"transaction_id": externalID,
			"reference_id":   referenceID,
			"amount":         req.Amount,
			"method":         req.Method,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeWithdraw, models.TxStatusPending, 0)
	s.log.Infow("withdrawal requested", "user_id", req.UserID, "transaction_id", input.ExternalID, "amount", req.Amount, "net_amount", net)
	s.hub.BroadcastBalance(req.UserID, balanceUpdate(wallet, "withdrawal_requested"))
	return transactionFromInput(input, now), nil
}

func validatePayoutMethod(req WithdrawalRequest) error {
	switch req.Method {
	case models.WithdrawMethodUPI:
		if strings.TrimSpace(req.UPIID) == "" {
			return ErrInvalidInput
		}
	case models.WithdrawMethodBank:
		b := req.Bank
		if b.AccountNumber == nil || b.IFSCCode == nil || b.AccountName == nil {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

// ApproveWithdrawal finalizes a reservation. The balance was already debited at request time.
func (s *WalletService) ApproveWithdrawal(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error) {
	now := s.now()
	var txn models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.lockTransaction(ctx, tx, transactionID, models.TxTypeWithdraw)
		if err != nil {
			return err
		}
		if _, err := lifecycle.Transaction.Apply(current.Status, lifecycle.EventApprove); err != nil {
			return transition(err, ErrAlreadyProcessed)
		}
		last, err := s.txStore.LastApprovedWithdrawal(ctx, tx, current.UserID)
		if err != nil {
			return err
		}
		if err := s.checkThrottle(last, now); err != nil {
			return err
		}
		txn, err = s.review(ctx, tx, transactionID, models.TxTypeWithdraw, lifecycle.EventApprove, adminID, notes)
		if err != nil {
			return err
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, txn.UserID)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if _, err := s.ledger.post(ctx, tx, wallet, txn.ID, store.WalletMovement{Withdrawn: txn.Amount}, "Withdrawal approved"); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "approve_withdrawal", "transaction", txn.ID, auditData(map[string]any{
			"transaction_id": txn.ExternalID,
			"amount":         txn.Amount,
			"net_amount":     txn.NetAmount,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeWithdraw, txn.Status, txn.Amount)
	s.log.Infow("withdrawal approved", "transaction_id", txn.ExternalID, "user_id", txn.UserID, "admin_id", adminID, "amount", txn.Amount)
	return txn, nil
}

// RejectWithdrawal restores the reserved amount to the winning balance.
func (s *WalletService) RejectWithdrawal(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error) {
	var (
		txn    models.Transaction
		wallet models.Wallet
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		txn, err = s.review(ctx, tx, transactionID, models.TxTypeWithdraw, lifecycle.EventReject, adminID, notes)
		if err != nil {
			return err
		}
		wallet, err = s.wallets.GetForUpdate(ctx, tx, txn.UserID)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		wallet, err = s.ledger.post(ctx, tx, wallet, txn.ID, store.WalletMovement{Winning: txn.Amount}, "Withdrawal rejected, amount restored")
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "reject_withdrawal", "transaction", txn.ID, auditData(map[string]any{
			"transaction_id": txn.ExternalID,
			"amount":         txn.Amount,
			"notes":          notes,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.metrics.WalletTransaction(models.TxTypeWithdraw, txn.Status, 0)
	s.log.Infow("withdrawal rejected", "transaction_id", txn.ExternalID, "user_id", txn.UserID, "admin_id", adminID)
	s.hub.BroadcastBalance(txn.UserID, balanceUpdate(wallet, "withdrawal_rejected"))
	return txn, nil
}

func (s *WalletService) lockTransaction(ctx context.Context, tx *sqlx.Tx, transactionID, txType string) (models.Transaction, error) {
	txn, err := s.txStore.GetForUpdate(ctx, tx, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound)
	}
	if txn.Type != txType {
		return models.Transaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

// review moves a pending request to its reviewed state with a conditional update.
func (s *WalletService) review(ctx context.Context, tx *sqlx.Tx, transactionID, txType string, event lifecycle.Event, adminID string, notes *string) (models.Transaction, error) {
	txn, err := s.lockTransaction(ctx, tx, transactionID, txType)
	if err != nil {
		return models.Transaction{}, err
	}
	next, err := lifecycle.Transaction.Apply(txn.Status, event)
	if err != nil {
		return models.Transaction{}, transition(err, ErrAlreadyProcessed)
	}
	rows, err := s.txStore.Review(ctx, tx, txn.ID, txn.Status, next, adminID, notes)
	if err != nil {
		return models.Transaction{}, err
	}
	if rows == 0 {
		return models.Transaction{}, ErrAlreadyProcessed
	}
	at := s.now()
	txn.Status = next
	txn.ApprovedBy = &adminID
	txn.ApprovedAt = &at
	txn.AdminNotes = notes
	return txn, nil
}

func (s *WalletService) checkThrottle(lastApproved *time.Time, now time.Time) error {
	if lastApproved == nil || s.limits.WithdrawCooldown <= 0 {
		return nil
	}
	next := lastApproved.Add(s.limits.WithdrawCooldown)
	if now.Before(next) {
		return &ThrottleError{NextAvailableAt: next, Remaining: next.Sub(now)}
	}
	return nil
}

type WithdrawalLimit struct {
	Blocked         bool       `json:"withdrawal_blocked"`
	NextAvailableAt *time.Time `json:"next_withdrawal_time,omitempty"`
	HoursLeft       float64    `json:"hours_left"`
}

func (s *WalletService) WithdrawalLimit(ctx context.Context, userID string) (WithdrawalLimit, error) {
	var last *time.Time
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		last, err = s.txStore.LastApprovedWithdrawal(ctx, tx, userID)
		return err
	})
	if err != nil {
		return WithdrawalLimit{}, err
	}
	var throttle *ThrottleError
	if err := s.checkThrottle(last, s.now()); errors.As(err, &throttle) {
		return WithdrawalLimit{
			Blocked:         true,
			NextAvailableAt: &throttle.NextAvailableAt,
			HoursLeft:       throttle.HoursLeft(),
		}, nil
	}
	return WithdrawalLimit{}, nil
}

type TransactionQuery struct {
	UserID string
	Type   string
	Status string
	From   *time.Time
	To     *time.Time
	PageRequest
}

var transactionTypes = []string{
	models.TxTypeAddCash, models.TxTypeWithdraw, models.TxTypeEntryFee, models.TxTypePrizeWin, models.TxTypeRefund,
}

// Transactions lists the user's own history; Type "all" or empty means every type.
func (s *WalletService) Transactions(ctx context.Context, userID string, q TransactionQuery) (Paged[models.Transaction], error) {
	q.UserID = userID
	return s.listTransactions(ctx, q)
}

func (s *WalletService) AllTransactions(ctx context.Context, q TransactionQuery) (Paged[models.Transaction], error) {
	return s.listTransactions(ctx, q)
}

func (s *WalletService) listTransactions(ctx context.Context, q TransactionQuery) (Paged[models.Transaction], error) {
	if q.Type == "all" {
		q.Type = ""
	}
	if q.Type != "" && !models.OneOf(q.Type, transactionTypes) {
		return Paged[models.Transaction]{}, ErrInvalidInput
	}
	filter := store.TransactionFilter{
		UserID: q.UserID,
		Type:   q.Type,
		Status: q.Status,
		From:   q.From,
		To:     q.To,
		Page:   q.PageRequest.window(),
	}
	rows, err := s.txStore.List(ctx, filter)
	if err != nil {
		return Paged[models.Transaction]{}, err
	}
	total, err := s.txStore.Count(ctx, filter)
	if err != nil {
		return Paged[models.Transaction]{}, err
	}
	return newPaged(rows, total, q.PageRequest), nil
}

func (s *WalletService) Transaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	txn, err := s.txStore.GetByID(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound)
	}
	return txn, nil
}

func (s *WalletService) PendingDeposits(ctx context.Context) ([]store.PendingTransaction, error) {
	return s.pending(ctx, models.TxTypeAddCash)
}

func (s *WalletService) PendingWithdrawals(ctx context.Context) ([]store.PendingTransaction, error) {
	return s.pending(ctx, models.TxTypeWithdraw)
}

func (s *WalletService) pending(ctx context.Context, txType string) ([]store.PendingTransaction, error) {
	rows, err := s.txStore.ListPending(ctx, txType)
	if err != nil {
		return nil, err
	}
	s.metrics.SetPending(txType, len(rows))
	return rows, nil
}

type WalletDashboard struct {
	Transactions store.TransactionStats `json:"transactions"`
	Platform     store.PlatformBalance  `json:"platform"`
}

func (s *WalletService) DashboardStats(ctx context.Context) (WalletDashboard, error) {
	stats, err := s.txStore.Stats(ctx)
	if err != nil {
		return WalletDashboard{}, err
	}
	platform, err := s.wallets.PlatformBalance(ctx)
	if err != nil {
		return WalletDashboard{}, err
	}
	s.metrics.SetPending(models.TxTypeAddCash, stats.PendingDeposits)
	s.metrics.SetPending(models.TxTypeWithdraw, stats.PendingWithdrawals)
	return WalletDashboard{Transactions: stats, Platform: platform}, nil
}

// Reconcile compares each stored balance with the sum of its wallet entries.
func (s *WalletService) Reconcile(ctx context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error) {
	rows, err := s.wallets.Reconcile(ctx, onlyMismatched)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if !row.Balanced() {
			s.log.Warnw("wallet out of balance", "wallet_id", row.WalletID, "user_id", row.UserID,
				"stored_main", row.StoredMain, "calculated_main", row.CalculatedMain,
				"stored_winning", row.StoredWinning, "calculated_winning", row.CalculatedWinning)
		}
	}
	return rows, nil
}
