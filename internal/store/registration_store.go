package store

import (
	"context"
	"time"

	"arena/internal/lifecycle"
	"arena/internal/models"

	"github.com/lib/pq"
)

type RegistrationStore struct {
	db DB
}

type RegistrationFilter struct {
	Status        string
	PaymentStatus string
	TournamentID  string
	Page
}

// RegistrationView is a registration with the tournament and user names attached.
type RegistrationView struct {
	models.Registration
	TournamentName   string    `db:"tournament_name" json:"tournament_name"`
	TournamentStatus string    `db:"tournament_status" json:"tournament_status"`
	StartTime        time.Time `db:"start_time" json:"start_time"`
	Username         string    `db:"username" json:"username"`
}

type RegistrationStats struct {
	Total     int   `db:"total" json:"total"`
	Confirmed int   `db:"confirmed" json:"confirmed"`
	Pending   int   `db:"pending" json:"pending"`
	Cancelled int   `db:"cancelled" json:"cancelled"`
	Revenue   int64 `db:"revenue" json:"revenue"`
}

const registrationColumns = `r.id, r.tournament_id, r.user_id, r.player_id, r.player_name, r.team_type, r.status,
		       r.payment_status, r.entry_fee_paid, r.transaction_id, r.created_at, r.updated_at`

const registrationViewQuery = `
		SELECT ` + registrationColumns + `,
		       t.name AS tournament_name, t.status AS tournament_status, t.start_time, u.username
		FROM registrations r
		JOIN tournaments t ON t.id = r.tournament_id
		JOIN users u ON u.id = r.user_id`

func NewRegistrationStore(db DB) *RegistrationStore {
	return &RegistrationStore{db: db}
}

func (s *RegistrationStore) Create(ctx context.Context, tx Execer, r models.Registration) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO registrations (id, tournament_id, user_id, player_id, player_name, team_type, status, payment_status, entry_fee_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.TournamentID, r.UserID, r.PlayerID, r.PlayerName, r.TeamType, r.Status, r.PaymentStatus, r.EntryFeePaid)
	return err
}

// Exists reports whether userID or playerID already holds a registration in the tournament.
func (s *RegistrationStore) Exists(ctx context.Context, q Getter, tournamentID, userID, playerID string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE tournament_id = $1 AND (user_id = $2 OR player_id = $3)
		)
	`, tournamentID, userID, playerID)
	return exists, err
}

func (s *RegistrationStore) GetByID(ctx context.Context, registrationID string) (models.Registration, error) {
	var row models.Registration
	if err := s.db.GetContext(ctx, &row, `SELECT `+registrationColumns+` FROM registrations r WHERE r.id = $1`, registrationID); err != nil {
		return models.Registration{}, err
	}
	return row, nil
}

func (s *RegistrationStore) GetForUpdate(ctx context.Context, tx Getter, registrationID string) (models.Registration, error) {
	var row models.Registration
	err := tx.GetContext(ctx, &row, `
		SELECT `+registrationColumns+`
		FROM registrations r
		WHERE r.id = $1
		FOR UPDATE
	`, registrationID)
	if err != nil {
		return models.Registration{}, err
	}
	return row, nil
}

func (s *RegistrationStore) GetByUserAndTournament(ctx context.Context, userID, tournamentID string) (models.Registration, error) {
	var row models.Registration
	err := s.db.GetContext(ctx, &row, `
		SELECT `+registrationColumns+`
		FROM registrations r
		WHERE r.user_id = $1 AND r.tournament_id = $2
	`, userID, tournamentID)
	if err != nil {
		return models.Registration{}, err
	}
	return row, nil
}

// ConfirmedByPlayer resolves a player id to its confirmed registration.
func (s *RegistrationStore) ConfirmedByPlayer(ctx context.Context, q Getter, tournamentID, playerID string) (models.Registration, error) {
	var row models.Registration
	err := q.GetContext(ctx, &row, `
		SELECT `+registrationColumns+`
		FROM registrations r
		WHERE r.tournament_id = $1 AND r.player_id = $2 AND r.status = $3
	`, tournamentID, playerID, models.RegistrationConfirmed)
	if err != nil {
		return models.Registration{}, err
	}
	return row, nil
}

func (s *RegistrationStore) HasConfirmed(ctx context.Context, userID, tournamentID string) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE user_id = $1 AND tournament_id = $2 AND status = $3
		)
	`, userID, tournamentID, models.RegistrationConfirmed)
	return ok, err
}

func (s *RegistrationStore) ConfirmedUserIDs(ctx context.Context, tournamentID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id
		FROM registrations
		WHERE tournament_id = $1 AND status = $2
	`, tournamentID, models.RegistrationConfirmed)
	return ids, err
}

func (s *RegistrationStore) CountForTournament(ctx context.Context, q Getter, tournamentID string) (int, error) {
	var total int
	err := q.GetContext(ctx, &total, `SELECT COUNT(1) FROM registrations WHERE tournament_id = $1`, tournamentID)
	return total, err
}

// MarkPaid confirms a registration whose payment is still open.
func (s *RegistrationStore) MarkPaid(ctx context.Context, tx Execer, registrationID string, transactionID *string, entryFeePaid int64) (int64, error) {
	var payable []string
	for _, state := range lifecycle.RegistrationPayment.Sources(lifecycle.EventPay) {
		payable = append(payable, string(state))
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, payment_status = $2, transaction_id = $3, entry_fee_paid = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6 AND payment_status = ANY($7)
	`, models.RegistrationConfirmed, models.PaymentPaid, transactionID, entryFeePaid, registrationID,
		models.RegistrationPending, pq.Array(payable))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RegistrationStore) SetStatus(ctx context.Context, tx Execer, registrationID, from, to string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, registrationID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RegistrationStore) SetPaymentStatus(ctx context.Context, tx Execer, registrationID, from, to string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = $3
	`, to, registrationID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RegistrationStore) ListByUser(ctx context.Context, userID string) ([]RegistrationView, error) {
	var rows []RegistrationView
	err := s.db.SelectContext(ctx, &rows, registrationViewQuery+`
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RegistrationStore) List(ctx context.Context, filter RegistrationFilter) ([]RegistrationView, error) {
	cond := filter.conditions()
	query, args := cond.paged(registrationViewQuery+cond.where()+` ORDER BY r.created_at DESC`, filter.Page)
	var rows []RegistrationView
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RegistrationStore) Count(ctx context.Context, filter RegistrationFilter) (int, error) {
	cond := filter.conditions()
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM registrations r`+cond.where(), cond.args...)
	return total, err
}

func (s *RegistrationStore) Stats(ctx context.Context) (RegistrationStats, error) {
	var stats RegistrationStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(1) AS total,
		       COUNT(1) FILTER (WHERE status = 'confirmed') AS confirmed,
		       COUNT(1) FILTER (WHERE status = 'pending') AS pending,
		       COUNT(1) FILTER (WHERE status = 'cancelled') AS cancelled,
		       COALESCE(SUM(entry_fee_paid) FILTER (WHERE payment_status = 'paid'), 0) AS revenue
		FROM registrations
	`)
	return stats, err
}

func (f RegistrationFilter) conditions() *conditions {
	cond := &conditions{}
	if f.Status != "" {
		cond.add("r.status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		cond.add("r.payment_status = ?", f.PaymentStatus)
	}
	if f.TournamentID != "" {
		cond.add("r.tournament_id = ?", f.TournamentID)
	}
	return cond
}
