package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"arena/internal/models"
	"arena/internal/money"
	"arena/internal/store"
	"arena/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	prefixTransaction = "TX"
	prefixReference   = "REF"

	maxIdentifierAttempts = 5
)

var errIdentifierExhausted = errors.New("could not generate a unique transaction identifier")

// ledger couples every wallet movement with its per-bucket entries.
type ledger struct {
	wallets WalletStore
	entries LedgerStore
	txs     TransactionStore
}

// nextIdentifier generates an external id and retries while it collides with an existing one.
func (l ledger) nextIdentifier(ctx context.Context, q store.Getter, prefix string, now time.Time) (string, error) {
	for attempt := 0; attempt < maxIdentifierAttempts; attempt++ {
		candidate := newIdentifier(prefix, now)
		taken, err := l.txs.IdentifierTaken(ctx, q, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errIdentifierExhausted
}

func newIdentifier(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}

// post applies m to wallet and records one entry per touched bucket.
// A zero-row update means a bucket would go negative.
func (l ledger) post(ctx context.Context, tx *sqlx.Tx, wallet models.Wallet, transactionID string, m store.WalletMovement, description string) (models.Wallet, error) {
	rows, err := l.wallets.Apply(ctx, tx, wallet.ID, m)
	if err != nil {
		return models.Wallet{}, err
	}
	if rows == 0 {
		return models.Wallet{}, ErrInsufficientBalance
	}
	var entries []store.WalletEntryInput
	if m.Main != 0 {
		entries = append(entries, store.WalletEntryInput{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			WalletID:      wallet.ID,
			Bucket:        models.BucketMain,
			Amount:        m.Main,
			Description:   description,
		})
	}
	if m.Winning != 0 {
		entries = append(entries, store.WalletEntryInput{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			WalletID:      wallet.ID,
			Bucket:        models.BucketWinning,
			Amount:        m.Winning,
			Description:   description,
		})
	}
	if len(entries) > 0 {
		if err := l.entries.InsertEntries(ctx, tx, entries); err != nil {
			return models.Wallet{}, err
		}
	}
	wallet.MainBalance += m.Main
	wallet.WinningBalance += m.Winning
	wallet.TotalDeposited += m.Deposited
	wallet.TotalWithdrawn += m.Withdrawn
	wallet.TotalWinnings += m.Winnings
	return wallet, nil
}

// debitSplit takes amount from main first and the remainder from winning.
func debitSplit(wallet models.Wallet, amount int64) (fromMain, fromWinning int64, err error) {
	if wallet.Total() < amount {
		return 0, 0, ErrInsufficientBalance
	}
	fromMain = min(wallet.MainBalance, amount)
	return fromMain, amount - fromMain, nil
}

func balanceUpdate(wallet models.Wallet, reason string) websocket.BalanceUpdate {
	return websocket.BalanceUpdate{
		Main:    money.FormatMinor(wallet.MainBalance),
		Winning: money.FormatMinor(wallet.WinningBalance),
		Total:   money.FormatMinor(wallet.Total()),
		Reason:  reason,
	}
}

// transactionFromInput is the row Create just wrote, for returning to callers without a re-read.
func transactionFromInput(in store.TransactionInput, at time.Time) models.Transaction {
	return models.Transaction{
		ID:               in.ID,
		ExternalID:       in.ExternalID,
		ReferenceID:      in.ReferenceID,
		UserID:           in.UserID,
		Type:             in.Type,
		Status:           in.Status,
		Amount:           in.Amount,
		TaxAmount:        in.TaxAmount,
		NetAmount:        in.NetAmount,
		UPIID:            in.UPIID,
		UPITransactionID: in.UPITransactionID,
		BankDetails:      in.Bank,
		Screenshot:       in.Screenshot,
		Description:      in.Description,
		TournamentID:     in.TournamentID,
		RegistrationID:   in.RegistrationID,
		IdempotencyKey:   in.IdempotencyKey,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func auditData(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func stringPtr(value string) *string {
	return &value
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// pageCount returns the number of pages of size limit needed for total rows.
func pageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
