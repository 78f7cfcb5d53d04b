package store

import (
	"context"
	"time"

	"arena/internal/models"
)

type AnnouncementStore struct {
	db DB
}

type AnnouncementFilter struct {
	Status string
	Type   string
	Page
}

type AnnouncementStats struct {
	Total     int `db:"total" json:"total"`
	Sent      int `db:"sent" json:"sent"`
	Scheduled int `db:"scheduled" json:"scheduled"`
	Draft     int `db:"draft" json:"draft"`
	Failed    int `db:"failed" json:"failed"`
	Reach     int `db:"reach" json:"reach"`
	Reads     int `db:"reads" json:"reads"`
}

const announcementColumns = `id, title, type, target, tournament_id, content, sent_by, sent_at, scheduled_for, status, sent_to, read_by, created_at`

func NewAnnouncementStore(db DB) *AnnouncementStore {
	return &AnnouncementStore{db: db}
}

func (s *AnnouncementStore) Create(ctx context.Context, tx Execer, a models.Announcement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO announcements (id, title, type, target, tournament_id, content, sent_by, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.Title, a.Type, a.Target, a.TournamentID, a.Content, a.SentBy, a.ScheduledFor, a.Status)
	return err
}

func (s *AnnouncementStore) Update(ctx context.Context, tx Execer, a models.Announcement) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE announcements
		SET title = $1, type = $2, target = $3, tournament_id = $4, content = $5, scheduled_for = $6, status = $7
		WHERE id = $8
	`, a.Title, a.Type, a.Target, a.TournamentID, a.Content, a.ScheduledFor, a.Status, a.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AnnouncementStore) Delete(ctx context.Context, tx Execer, announcementID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, announcementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AnnouncementStore) GetByID(ctx context.Context, announcementID string) (models.Announcement, error) {
	var row models.Announcement
	if err := s.db.GetContext(ctx, &row, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, announcementID); err != nil {
		return models.Announcement{}, err
	}
	return row, nil
}

// MarkSent records a dispatch; it is conditional on the status the caller read.
func (s *AnnouncementStore) MarkSent(ctx context.Context, tx Execer, announcementID, from string, sentTo int, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE announcements
		SET status = $1, sent_to = $2, sent_at = $3
		WHERE id = $4 AND status = $5
	`, models.AnnouncementSent, sentTo, at, announcementID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AnnouncementStore) MarkFailed(ctx context.Context, tx Execer, announcementID, from string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE announcements
		SET status = $1
		WHERE id = $2 AND status = $3
	`, models.AnnouncementFailed, announcementID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AnnouncementStore) DueScheduled(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	var rows []models.Announcement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+announcementColumns+`
		FROM announcements
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
	`, models.AnnouncementScheduled, now)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AnnouncementStore) List(ctx context.Context, filter AnnouncementFilter) ([]models.Announcement, error) {
	cond := filter.conditions()
	query, args := cond.paged(`SELECT `+announcementColumns+` FROM announcements`+cond.where()+` ORDER BY created_at DESC`, filter.Page)
	var rows []models.Announcement
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AnnouncementStore) Count(ctx context.Context, filter AnnouncementFilter) (int, error) {
	cond := filter.conditions()
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM announcements`+cond.where(), cond.args...)
	return total, err
}

// Active returns recently sent announcements, general ones plus those for tournamentID when set.
func (s *AnnouncementStore) Active(ctx context.Context, tournamentID *string, limit int) ([]models.Announcement, error) {
	var rows []models.Announcement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+announcementColumns+`
		FROM announcements
		WHERE status = $1
		  AND (target <> 'tournament' OR ($2::text IS NOT NULL AND tournament_id = $2))
		ORDER BY sent_at DESC
		LIMIT $3
	`, models.AnnouncementSent, tournamentID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead counts a user's first read only.
func (s *AnnouncementStore) MarkRead(ctx context.Context, tx Execer, announcementID, userID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO announcement_reads (announcement_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, announcementID, userID)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil || inserted == 0 {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE announcements SET read_by = read_by + 1 WHERE id = $1`, announcementID)
	return err == nil, err
}

func (s *AnnouncementStore) Stats(ctx context.Context) (AnnouncementStats, error) {
	var stats AnnouncementStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(1) AS total,
		       COUNT(1) FILTER (WHERE status = 'sent') AS sent,
		       COUNT(1) FILTER (WHERE status = 'scheduled') AS scheduled,
		       COUNT(1) FILTER (WHERE status = 'draft') AS draft,
		       COUNT(1) FILTER (WHERE status = 'failed') AS failed,
		       COALESCE(SUM(sent_to), 0) AS reach,
		       COALESCE(SUM(read_by), 0) AS reads
		FROM announcements
	`)
	return stats, err
}

func (f AnnouncementFilter) conditions() *conditions {
	cond := &conditions{}
	if f.Status != "" {
		cond.add("status = ?", f.Status)
	}
	if f.Type != "" {
		cond.add("type = ?", f.Type)
	}
	return cond
}
