package store

import (
	"context"
	"time"

	"arena/internal/models"
)

type RoomStore struct {
	db DB
}

// RoomDetailsView adds the tournament name to room details.
type RoomDetailsView struct {
	models.RoomDetails
	TournamentName string `db:"tournament_name" json:"tournament_name"`
}

const roomDetailsColumns = `d.id, d.tournament_id, d.start_time, d.notes, d.auto_publish, d.is_published, d.published_at, d.created_by, d.created_at`

const roomColumns = `id, room_details_id, room_id, password, map, max_players, current_players, room_status, notes`

func NewRoomStore(db DB) *RoomStore {
	return &RoomStore{db: db}
}

func (s *RoomStore) CreateDetails(ctx context.Context, tx Execer, d models.RoomDetails) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO room_details (id, tournament_id, start_time, notes, auto_publish, is_published, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.TournamentID, d.StartTime, d.Notes, d.AutoPublish, d.IsPublished, d.CreatedBy)
	return err
}

func (s *RoomStore) InsertRooms(ctx context.Context, tx Execer, rooms []models.Room) error {
	query := `
		INSERT INTO rooms (id, room_details_id, room_id, password, map, max_players, current_players, room_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, r := range rooms {
		if _, err := tx.ExecContext(ctx, query, r.ID, r.RoomDetailsID, r.RoomID, r.Password, r.Map, r.MaxPlayers, r.CurrentPlayers, r.RoomStatus, r.Notes); err != nil {
			return err
		}
	}
	return nil
}

func (s *RoomStore) UpdateDetails(ctx context.Context, tx Execer, d models.RoomDetails) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE room_details
		SET start_time = $1, notes = $2, auto_publish = $3
		WHERE id = $4
	`, d.StartTime, d.Notes, d.AutoPublish, d.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RoomStore) ReplaceRooms(ctx context.Context, tx Execer, detailsID string, rooms []models.Room) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_details_id = $1`, detailsID); err != nil {
		return err
	}
	return s.InsertRooms(ctx, tx, rooms)
}

func (s *RoomStore) Delete(ctx context.Context, tx Execer, detailsID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM room_details WHERE id = $1`, detailsID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RoomStore) GetByTournament(ctx context.Context, tournamentID string) (models.RoomDetails, error) {
	var d models.RoomDetails
	if err := s.db.GetContext(ctx, &d, `SELECT `+roomDetailsColumns+` FROM room_details d WHERE d.tournament_id = $1`, tournamentID); err != nil {
		return models.RoomDetails{}, err
	}
	return s.withRooms(ctx, d)
}

func (s *RoomStore) GetByID(ctx context.Context, detailsID string) (models.RoomDetails, error) {
	var d models.RoomDetails
	if err := s.db.GetContext(ctx, &d, `SELECT `+roomDetailsColumns+` FROM room_details d WHERE d.id = $1`, detailsID); err != nil {
		return models.RoomDetails{}, err
	}
	return s.withRooms(ctx, d)
}

// Publish flips the publish gate once; zero rows means it was already published.
func (s *RoomStore) Publish(ctx context.Context, tx Execer, detailsID string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE room_details
		SET is_published = TRUE, published_at = $1
		WHERE id = $2 AND is_published = FALSE
	`, at, detailsID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Unpublish hides published credentials again; zero rows means they were not published.
func (s *RoomStore) Unpublish(ctx context.Context, tx Execer, detailsID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE room_details
		SET is_published = FALSE, published_at = NULL
		WHERE id = $1 AND is_published = TRUE
	`, detailsID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PublishDue publishes every auto-publish row whose start time is at or before cutoff
// and returns the tournament ids it published.
func (s *RoomStore) PublishDue(ctx context.Context, tx Selecter, cutoff, at time.Time) ([]string, error) {
	var ids []string
	err := tx.SelectContext(ctx, &ids, `
		UPDATE room_details
		SET is_published = TRUE, published_at = $1
		WHERE auto_publish = TRUE AND is_published = FALSE AND start_time <= $2
		RETURNING tournament_id
	`, at, cutoff)
	return ids, err
}

func (s *RoomStore) Recent(ctx context.Context, limit int) ([]RoomDetailsView, error) {
	var rows []RoomDetailsView
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+roomDetailsColumns+`, t.name AS tournament_name
		FROM room_details d
		JOIN tournaments t ON t.id = d.tournament_id
		ORDER BY d.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rooms, err := s.rooms(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		rows[i].Rooms = rooms
	}
	return rows, nil
}

func (s *RoomStore) withRooms(ctx context.Context, d models.RoomDetails) (models.RoomDetails, error) {
	rooms, err := s.rooms(ctx, d.ID)
	if err != nil {
		return models.RoomDetails{}, err
	}
	d.Rooms = rooms
	return d, nil
}

func (s *RoomStore) rooms(ctx context.Context, detailsID string) ([]models.Room, error) {
	var rows []models.Room
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE room_details_id = $1
		ORDER BY room_id
	`, detailsID)
	return rows, err
}
