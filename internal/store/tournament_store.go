package store

import (
	"context"
	"time"

	"arena/internal/models"
)

type TournamentStore struct {
	db DB
}

type TournamentFilter struct {
	Status string
	Type   string
	Game   string
	Page
}

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

const tournamentColumns = `id, name, slug, type, game, entry_fee, prize_pool, max_players, registered_players,
		       start_time, end_time, status, rules, how_to_play, prize_first, prize_second, prize_third,
		       created_by, created_at, updated_at`

func NewTournamentStore(db DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) Create(ctx context.Context, tx Execer, t models.Tournament) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tournaments (id, name, slug, type, game, entry_fee, prize_pool, max_players, start_time,
		                         status, rules, how_to_play, prize_first, prize_second, prize_third, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, t.ID, t.Name, t.Slug, t.Type, t.Game, t.EntryFee, t.PrizePool, t.MaxPlayers, t.StartTime,
		t.Status, t.Rules, t.HowToPlay, t.First, t.Second, t.Third, t.CreatedBy)
	return err
}

// Update rewrites the editable fields; the capacity guard keeps max_players at or above registered_players.
func (s *TournamentStore) Update(ctx context.Context, tx Execer, t models.Tournament) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET name = $1, entry_fee = $2, prize_pool = $3, max_players = $4, start_time = $5,
		    rules = $6, how_to_play = $7, prize_first = $8, prize_second = $9, prize_third = $10,
		    updated_at = NOW()
		WHERE id = $11 AND registered_players <= $4
	`, t.Name, t.EntryFee, t.PrizePool, t.MaxPlayers, t.StartTime,
		t.Rules, t.HowToPlay, t.First, t.Second, t.Third, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) GetByID(ctx context.Context, tournamentID string) (models.Tournament, error) {
	var row models.Tournament
	if err := s.db.GetContext(ctx, &row, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, tournamentID); err != nil {
		return models.Tournament{}, err
	}
	return row, nil
}

func (s *TournamentStore) GetBySlug(ctx context.Context, slug string) (models.Tournament, error) {
	var row models.Tournament
	if err := s.db.GetContext(ctx, &row, `SELECT `+tournamentColumns+` FROM tournaments WHERE slug = $1`, slug); err != nil {
		return models.Tournament{}, err
	}
	return row, nil
}

func (s *TournamentStore) GetForUpdate(ctx context.Context, tx Getter, tournamentID string) (models.Tournament, error) {
	var row models.Tournament
	err := tx.GetContext(ctx, &row, `
		SELECT `+tournamentColumns+`
		FROM tournaments
		WHERE id = $1
		FOR UPDATE
	`, tournamentID)
	if err != nil {
		return models.Tournament{}, err
	}
	return row, nil
}

func (s *TournamentStore) List(ctx context.Context, filter TournamentFilter) ([]models.Tournament, error) {
	cond := filter.conditions()
	query, args := cond.paged(`SELECT `+tournamentColumns+` FROM tournaments`+cond.where()+` ORDER BY start_time ASC`, filter.Page)
	var rows []models.Tournament
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TournamentStore) Count(ctx context.Context, filter TournamentFilter) (int, error) {
	cond := filter.conditions()
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM tournaments`+cond.where(), cond.args...)
	return total, err
}

// Active lists tournaments that have not finished, soonest first.
func (s *TournamentStore) Active(ctx context.Context, limit int) ([]models.Tournament, error) {
	var rows []models.Tournament
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+tournamentColumns+`
		FROM tournaments
		WHERE status IN ('open', 'upcoming', 'live')
		ORDER BY start_time ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetStatus is conditional on the status the caller read; endTime is only written when non-nil.
func (s *TournamentStore) SetStatus(ctx context.Context, tx Execer, tournamentID, from, to string, endTime *time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET status = $1, end_time = COALESCE($2, end_time), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, to, endTime, tournamentID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IncrementRegistered claims one seat. Zero rows affected means the tournament is full.
func (s *TournamentStore) IncrementRegistered(ctx context.Context, tx Execer, tournamentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET registered_players = registered_players + 1, updated_at = NOW()
		WHERE id = $1 AND registered_players < max_players
	`, tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) DecrementRegistered(ctx context.Context, tx Execer, tournamentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET registered_players = registered_players - 1, updated_at = NOW()
		WHERE id = $1 AND registered_players > 0
	`, tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) Delete(ctx context.Context, tx Execer, tournamentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(1) AS count
		FROM tournaments
		GROUP BY status
		ORDER BY status
	`)
	return rows, err
}

func (f TournamentFilter) conditions() *conditions {
	cond := &conditions{}
	if f.Status != "" {
		cond.add("status = ?", f.Status)
	}
	if f.Type != "" {
		cond.add("type = ?", f.Type)
	}
	if f.Game != "" {
		cond.add("game = ?", f.Game)
	}
	return cond
}
