package store

import (
	"context"
	"database/sql"
	"time"

	"arena/internal/models"
)

type TransactionStore struct {
	db DB
}

type TransactionInput struct {
	ID               string
	ExternalID       string
	ReferenceID      *string
	UserID           string
	Type             string
	Status           string
	Amount           int64
	TaxAmount        int64
	NetAmount        int64
	UPIID            *string
	UPITransactionID *string
	Bank             models.BankDetails
	Screenshot       *string
	Description      string
	TournamentID     *string
	RegistrationID   *string
	IdempotencyKey   *string
}

type TransactionFilter struct {
	UserID string
	Type   string
	Status string
	From   *time.Time
	To     *time.Time
	Page
}

// PendingTransaction is a transaction joined with the requesting user.
type PendingTransaction struct {
	models.Transaction
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
}

type TransactionStats struct {
	PendingDeposits    int   `db:"pending_deposits" json:"pending_deposits"`
	PendingWithdrawals int   `db:"pending_withdrawals" json:"pending_withdrawals"`
	ApprovedDeposits   int64 `db:"approved_deposits" json:"approved_deposits"`
	ApprovedWithdrawn  int64 `db:"approved_withdrawn" json:"approved_withdrawn"`
	TaxCollected       int64 `db:"tax_collected" json:"tax_collected"`
	EntryFees          int64 `db:"entry_fees" json:"entry_fees"`
	PrizesPaid         int64 `db:"prizes_paid" json:"prizes_paid"`
}

const transactionColumns = `t.id, t.external_id, t.reference_id, t.user_id, t.type, t.status, t.amount, t.tax_amount, t.net_amount,
		       t.upi_id, t.upi_transaction_id, t.bank_account_number, t.bank_ifsc, t.bank_account_name,
		       t.screenshot, t.description, t.admin_notes, t.approved_by, t.approved_at,
		       t.tournament_id, t.registration_id, t.idempotency_key, t.created_at, t.updated_at`

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, external_id, reference_id, user_id, type, status, amount, tax_amount, net_amount,
		                          upi_id, upi_transaction_id, bank_account_number, bank_ifsc, bank_account_name,
		                          screenshot, description, tournament_id, registration_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.ExternalID, input.ReferenceID, input.UserID, input.Type, input.Status,
		input.Amount, input.TaxAmount, input.NetAmount,
		input.UPIID, input.UPITransactionID, input.Bank.AccountNumber, input.Bank.IFSCCode, input.Bank.AccountName,
		input.Screenshot, input.Description, input.TournamentID, input.RegistrationID, input.IdempotencyKey,
	)
	return err
}

// IdentifierTaken reports whether value is already used as an external or reference id.
func (s *TransactionStore) IdentifierTaken(ctx context.Context, q Getter, value string) (bool, error) {
	var taken bool
	err := q.GetContext(ctx, &taken, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE external_id = $1 OR reference_id = $1
		)
	`, value)
	return taken, err
}

func (s *TransactionStore) GetByID(ctx context.Context, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// GetByIdempotencyKey returns sql.ErrNoRows when nothing has been written under key.
func (s *TransactionStore) GetByIdempotencyKey(ctx context.Context, q Getter, key string) (models.Transaction, error) {
	var row models.Transaction
	err := q.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions t WHERE t.idempotency_key = $1`, key)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// Review moves a pending transaction to approved or rejected and stamps the reviewer.
func (s *TransactionStore) Review(ctx context.Context, tx Execer, transactionID, from, to, adminID string, notes *string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, approved_by = $2, approved_at = NOW(), admin_notes = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, to, adminID, notes, transactionID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) UpdateStatus(ctx context.Context, tx Execer, transactionID, from, to string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, transactionID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LastApprovedWithdrawal returns the approval time of the user's latest approved withdrawal, or nil.
func (s *TransactionStore) LastApprovedWithdrawal(ctx context.Context, q Getter, userID string) (*time.Time, error) {
	var last sql.NullTime
	err := q.GetContext(ctx, &last, `
		SELECT MAX(approved_at)
		FROM transactions
		WHERE user_id = $1 AND type = $2 AND status = $3
	`, userID, models.TxTypeWithdraw, models.TxStatusApproved)
	if err != nil || !last.Valid {
		return nil, err
	}
	return &last.Time, nil
}

func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	cond := filter.conditions()
	query, args := cond.paged(`SELECT `+transactionColumns+` FROM transactions t`+cond.where()+` ORDER BY t.created_at DESC`, filter.Page)
	var rows []models.Transaction
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) Count(ctx context.Context, filter TransactionFilter) (int, error) {
	cond := filter.conditions()
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM transactions t`+cond.where(), cond.args...)
	return total, err
}

func (s *TransactionStore) ListPending(ctx context.Context, txType string) ([]PendingTransaction, error) {
	var rows []PendingTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`, u.username, u.email
		FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE t.type = $1 AND t.status = $2
		ORDER BY t.created_at ASC
	`, txType, models.TxStatusPending)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) Stats(ctx context.Context) (TransactionStats, error) {
	var stats TransactionStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(1) FILTER (WHERE type = 'add_cash' AND status = 'pending') AS pending_deposits,
		       COUNT(1) FILTER (WHERE type = 'withdraw' AND status = 'pending') AS pending_withdrawals,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'add_cash' AND status = 'approved'), 0) AS approved_deposits,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'withdraw' AND status = 'approved'), 0) AS approved_withdrawn,
		       COALESCE(SUM(tax_amount) FILTER (WHERE type = 'withdraw' AND status = 'approved'), 0) AS tax_collected,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'entry_fee' AND status = 'completed'), 0) AS entry_fees,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'prize_win' AND status = 'completed'), 0) AS prizes_paid
		FROM transactions
	`)
	return stats, err
}

func (f TransactionFilter) conditions() *conditions {
	cond := &conditions{}
	if f.UserID != "" {
		cond.add("t.user_id = ?", f.UserID)
	}
	if f.Type != "" {
		cond.add("t.type = ?", f.Type)
	}
	if f.Status != "" {
		cond.add("t.status = ?", f.Status)
	}
	if f.From != nil {
		cond.add("t.created_at >= ?", *f.From)
	}
	if f.To != nil {
		cond.add("t.created_at <= ?", *f.To)
	}
	return cond
}
