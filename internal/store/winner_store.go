package store

import (
	"context"
	"time"

	"arena/internal/models"
)

// WinnerStore persists winner declarations and their per-winner payout rows.
type WinnerStore struct {
	db DB
}

// DeclarationView is a declaration with its tournament name, for listings.
type DeclarationView struct {
	models.WinnerDeclaration
	TournamentName string `db:"tournament_name" json:"tournament_name"`
}

type SettlementStats struct {
	Declarations     int   `db:"declarations" json:"declarations"`
	Completed        int   `db:"completed" json:"completed"`
	Pending          int   `db:"pending" json:"pending"`
	Processing       int   `db:"processing" json:"processing"`
	PrizeDistributed int64 `db:"prize_distributed" json:"prize_distributed"`
}

const declarationColumns = `d.id, d.tournament_id, d.total_prize, d.declared_by, d.declared_at, d.payment_status, d.payment_processed_at`

const winnerColumns = `id, declaration_id, rank, player_id, player_name, prize, user_id, payout_status, payout_transaction_id, failure_reason`

func NewWinnerStore(db DB) *WinnerStore {
	return &WinnerStore{db: db}
}

func (s *WinnerStore) CreateDeclaration(ctx context.Context, tx Execer, d models.WinnerDeclaration) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO winner_declarations (id, tournament_id, total_prize, declared_by, payment_status)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.TournamentID, d.TotalPrize, d.DeclaredBy, d.PaymentStatus)
	return err
}

func (s *WinnerStore) InsertWinners(ctx context.Context, tx Execer, winners []models.Winner) error {
	query := `
		INSERT INTO winner_entries (id, declaration_id, rank, player_id, player_name, prize, user_id, payout_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, w := range winners {
		if _, err := tx.ExecContext(ctx, query, w.ID, w.DeclarationID, w.Rank, w.PlayerID, w.PlayerName, w.Prize, w.UserID, w.PayoutStatus); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceWinners swaps the winner list and total of an unsettled declaration.
func (s *WinnerStore) ReplaceWinners(ctx context.Context, tx Execer, declarationID string, totalPrize int64, winners []models.Winner) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM winner_entries WHERE declaration_id = $1`, declarationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE winner_declarations
		SET total_prize = $1, payment_status = $2
		WHERE id = $3
	`, totalPrize, models.SettlementPending, declarationID); err != nil {
		return err
	}
	return s.InsertWinners(ctx, tx, winners)
}

func (s *WinnerStore) GetByTournament(ctx context.Context, tournamentID string) (models.WinnerDeclaration, error) {
	var d models.WinnerDeclaration
	if err := s.db.GetContext(ctx, &d, `SELECT `+declarationColumns+` FROM winner_declarations d WHERE d.tournament_id = $1`, tournamentID); err != nil {
		return models.WinnerDeclaration{}, err
	}
	winners, err := s.Winners(ctx, s.db, d.ID)
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	d.Winners = winners
	return d, nil
}

func (s *WinnerStore) GetByID(ctx context.Context, declarationID string) (models.WinnerDeclaration, error) {
	var d models.WinnerDeclaration
	if err := s.db.GetContext(ctx, &d, `SELECT `+declarationColumns+` FROM winner_declarations d WHERE d.id = $1`, declarationID); err != nil {
		return models.WinnerDeclaration{}, err
	}
	winners, err := s.Winners(ctx, s.db, d.ID)
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	d.Winners = winners
	return d, nil
}

// LockByTournament locks the declaration row of a tournament; winners are not loaded.
func (s *WinnerStore) LockByTournament(ctx context.Context, tx Getter, tournamentID string) (models.WinnerDeclaration, error) {
	var d models.WinnerDeclaration
	err := tx.GetContext(ctx, &d, `
		SELECT `+declarationColumns+`
		FROM winner_declarations d
		WHERE d.tournament_id = $1
		FOR UPDATE
	`, tournamentID)
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	return d, nil
}

func (s *WinnerStore) Winners(ctx context.Context, q Selecter, declarationID string) ([]models.Winner, error) {
	var rows []models.Winner
	err := q.SelectContext(ctx, &rows, `
		SELECT `+winnerColumns+`
		FROM winner_entries
		WHERE declaration_id = $1
		ORDER BY rank ASC, player_id ASC
	`, declarationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WinnerStore) GetWinnerForUpdate(ctx context.Context, tx Getter, winnerID string) (models.Winner, error) {
	var w models.Winner
	err := tx.GetContext(ctx, &w, `SELECT `+winnerColumns+` FROM winner_entries WHERE id = $1 FOR UPDATE`, winnerID)
	if err != nil {
		return models.Winner{}, err
	}
	return w, nil
}

// MarkWinnerPaid is a no-op (zero rows) for a winner that is already paid.
func (s *WinnerStore) MarkWinnerPaid(ctx context.Context, tx Execer, winnerID, transactionID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE winner_entries
		SET payout_status = $1, payout_transaction_id = $2, failure_reason = NULL
		WHERE id = $3 AND payout_status <> $1
	`, models.PayoutPaid, transactionID, winnerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WinnerStore) MarkWinnerFailed(ctx context.Context, tx Execer, winnerID, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE winner_entries
		SET payout_status = $1, failure_reason = $2
		WHERE id = $3 AND payout_status <> $4
	`, models.PayoutFailed, reason, winnerID, models.PayoutPaid)
	return err
}

func (s *WinnerStore) SetPaymentStatus(ctx context.Context, tx Execer, declarationID, from, to string, processedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE winner_declarations
		SET payment_status = $1, payment_processed_at = $2
		WHERE id = $3 AND payment_status = $4
	`, to, processedAt, declarationID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WinnerStore) History(ctx context.Context, page Page) ([]DeclarationView, error) {
	var rows []DeclarationView
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+declarationColumns+`, t.name AS tournament_name
		FROM winner_declarations d
		JOIN tournaments t ON t.id = d.tournament_id
		ORDER BY d.declared_at DESC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		winners, err := s.Winners(ctx, s.db, rows[i].ID)
		if err != nil {
			return nil, err
		}
		rows[i].Winners = winners
	}
	return rows, nil
}

func (s *WinnerStore) Count(ctx context.Context) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM winner_declarations`)
	return total, err
}

// UserIDs lists users named in any declaration, or only in the given tournament's.
func (s *WinnerStore) UserIDs(ctx context.Context, tournamentID *string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT e.user_id
		FROM winner_entries e
		JOIN winner_declarations d ON d.id = e.declaration_id
		WHERE $1::text IS NULL OR d.tournament_id = $1
	`, tournamentID)
	return ids, err
}

func (s *WinnerStore) Stats(ctx context.Context) (SettlementStats, error) {
	var stats SettlementStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(1) AS declarations,
		       COUNT(1) FILTER (WHERE payment_status = 'completed') AS completed,
		       COUNT(1) FILTER (WHERE payment_status = 'pending') AS pending,
		       COUNT(1) FILTER (WHERE payment_status = 'processing') AS processing,
		       COALESCE((SELECT SUM(prize) FROM winner_entries WHERE payout_status = 'paid'), 0) AS prize_distributed
		FROM winner_declarations
	`)
	return stats, err
}
