package store

import (
	"context"

	"arena/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// userProjection reads the user row plus the wallet balance and admin flag,
// neither of which is stored on users.
const userProjection = `
		SELECT u.id, u.username, u.email, u.phone, u.password_hash, u.avatar_url, u.is_active,
		       u.total_wins, u.total_earnings, u.total_matches, u.created_at,
		       COALESCE(w.main_balance + w.winning_balance, 0) AS wallet_balance,
		       (a.user_id IS NOT NULL) AS is_admin
		FROM users u
		LEFT JOIN wallets w ON w.user_id = u.id
		LEFT JOIN admins a ON a.user_id = u.id
`

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string, phone *string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, phone)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, id, username, email, passwordHash, phone)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	if err := s.db.GetContext(ctx, &row, userProjection+` WHERE lower(u.email) = lower($1)`, email); err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	if err := s.db.GetContext(ctx, &row, userProjection+` WHERE u.id = $1`, userID); err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) PublicProfile(ctx context.Context, userID string) (models.PublicProfile, error) {
	var row models.PublicProfile
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, avatar_url, total_wins, total_earnings, total_matches, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return models.PublicProfile{}, err
	}
	return row, nil
}

func (s *UserStore) List(ctx context.Context, search string, page Page) ([]models.User, error) {
	cond := &conditions{}
	if search != "" {
		cond.add("(u.username ILIKE ? OR u.email ILIKE ?)", "%"+search+"%")
	}
	query, args := cond.paged(userProjection+cond.where()+` ORDER BY u.created_at DESC`, page)
	var rows []models.User
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *UserStore) Count(ctx context.Context, search string) (int, error) {
	cond := &conditions{}
	if search != "" {
		cond.add("(u.username ILIKE ? OR u.email ILIKE ?)", "%"+search+"%")
	}
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM users u`+cond.where(), cond.args...)
	return total, err
}

func (s *UserStore) ActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE is_active = TRUE ORDER BY created_at`)
	return ids, err
}

func (s *UserStore) UpdateProfile(ctx context.Context, tx Execer, userID string, phone, avatarURL *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET phone = COALESCE($1, phone), avatar_url = COALESCE($2, avatar_url), updated_at = NOW()
		WHERE id = $3
	`, phone, avatarURL, userID)
	return err
}

func (s *UserStore) UpdatePassword(ctx context.Context, tx Execer, userID, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, userID)
	return err
}

func (s *UserStore) SetActive(ctx context.Context, tx Execer, userID string, active bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *UserStore) IncrementMatches(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET total_matches = total_matches + 1 WHERE id = $1`, userID)
	return err
}

// RecordPrize adds to total earnings and, for a first place finish, total wins.
func (s *UserStore) RecordPrize(ctx context.Context, tx Execer, userID string, amount int64, firstPlace bool) error {
	wins := 0
	if firstPlace {
		wins = 1
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_earnings = total_earnings + $1, total_wins = total_wins + $2
		WHERE id = $3
	`, amount, wins, userID)
	return err
}
