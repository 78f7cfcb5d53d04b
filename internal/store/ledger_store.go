package store

import "context"

// LedgerStore writes the per-bucket wallet_entries that back every balance change.
type LedgerStore struct {
	db DB
}

type WalletEntryInput struct {
	ID            string
	TransactionID string
	WalletID      string
	Bucket        string
	Amount        int64
	Description   string
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []WalletEntryInput) error {
	query := `
		INSERT INTO wallet_entries (id, transaction_id, wallet_id, bucket, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.TransactionID, entry.WalletID, entry.Bucket, entry.Amount, entry.Description); err != nil {
			return err
		}
	}
	return nil
}
