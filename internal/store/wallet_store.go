package store

import (
	"context"

	"arena/internal/models"
)

type WalletStore struct {
	db DB
}

// WalletMovement is a set of signed deltas applied to one wallet row.
type WalletMovement struct {
	Main      int64
	Winning   int64
	Deposited int64
	Withdrawn int64
	Winnings  int64
}

type WalletReconciliation struct {
	WalletID          string `db:"wallet_id" json:"wallet_id"`
	UserID            string `db:"user_id" json:"user_id"`
	Username          string `db:"username" json:"username"`
	StoredMain        int64  `db:"stored_main" json:"stored_main"`
	CalculatedMain    int64  `db:"calculated_main" json:"calculated_main"`
	StoredWinning     int64  `db:"stored_winning" json:"stored_winning"`
	CalculatedWinning int64  `db:"calculated_winning" json:"calculated_winning"`
}

func (r WalletReconciliation) Balanced() bool {
	return r.StoredMain == r.CalculatedMain && r.StoredWinning == r.CalculatedWinning
}

type PlatformBalance struct {
	Wallets        int   `db:"wallets" json:"wallets"`
	Main           int64 `db:"main" json:"main"`
	Winning        int64 `db:"winning" json:"winning"`
	TotalDeposited int64 `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn int64 `db:"total_withdrawn" json:"total_withdrawn"`
	TotalWinnings  int64 `db:"total_winnings" json:"total_winnings"`
}

const walletColumns = `id, user_id, main_balance, winning_balance, total_deposited, total_withdrawn, total_winnings, created_at, updated_at`

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// GetOrCreate inserts a zero wallet if the user has none and returns the row locked.
func (s *WalletStore) GetOrCreate(ctx context.Context, tx Tx, id, userID string) (models.Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, id, userID); err != nil {
		return models.Wallet{}, err
	}
	return s.GetForUpdate(ctx, tx, userID)
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// Apply adds the movement to the wallet unless either bucket would go negative.
// Zero rows affected means the guard rejected it.
func (s *WalletStore) Apply(ctx context.Context, tx Execer, walletID string, m WalletMovement) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET main_balance = main_balance + $1,
		    winning_balance = winning_balance + $2,
		    total_deposited = total_deposited + $3,
		    total_withdrawn = total_withdrawn + $4,
		    total_winnings = total_winnings + $5,
		    updated_at = NOW()
		WHERE id = $6
		  AND main_balance + $1 >= 0
		  AND winning_balance + $2 >= 0
	`, m.Main, m.Winning, m.Deposited, m.Withdrawn, m.Winnings, walletID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reconcile compares stored bucket balances against the sum of wallet entries.
func (s *WalletStore) Reconcile(ctx context.Context, onlyMismatched bool) ([]WalletReconciliation, error) {
	query := `
		SELECT w.id AS wallet_id,
		       w.user_id,
		       COALESCE(u.username, '') AS username,
		       w.main_balance AS stored_main,
		       COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'main'), 0) AS calculated_main,
		       w.winning_balance AS stored_winning,
		       COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'winning'), 0) AS calculated_winning
		FROM wallets w
		LEFT JOIN users u ON u.id = w.user_id
		LEFT JOIN wallet_entries e ON e.wallet_id = w.id
		GROUP BY w.id, w.user_id, u.username, w.main_balance, w.winning_balance
	`
	if onlyMismatched {
		query += `
		HAVING w.main_balance <> COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'main'), 0)
		    OR w.winning_balance <> COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'winning'), 0)
		`
	}
	query += ` ORDER BY w.created_at`
	var rows []WalletReconciliation
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WalletStore) PlatformBalance(ctx context.Context) (PlatformBalance, error) {
	var row PlatformBalance
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(1) AS wallets,
		       COALESCE(SUM(main_balance), 0) AS main,
		       COALESCE(SUM(winning_balance), 0) AS winning,
		       COALESCE(SUM(total_deposited), 0) AS total_deposited,
		       COALESCE(SUM(total_withdrawn), 0) AS total_withdrawn,
		       COALESCE(SUM(total_winnings), 0) AS total_winnings
		FROM wallets
	`)
	return row, err
}
