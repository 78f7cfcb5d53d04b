package services

import (
	"context"
	"strings"
	"time"

	"arena/internal/db"
	"arena/internal/lifecycle"
	"arena/internal/metrics"
	"arena/internal/models"
	"arena/internal/store"
	"arena/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	targetAll        = "all"
	targetTournament = "tournament"
	targetWinners    = "winners"

	activeAnnouncementsLimit = 20
)

// AnnouncementService fans messages out to user cohorts. Dispatch is best effort
// and never touches wallet or registration state.
type AnnouncementService struct {
	txRunner      db.TxRunner
	announcements AnnouncementStore
	users         ActiveUserLister
	registrations RegistrationStore
	winners       WinnerStore
	notifier      Notifier
	audit         AuditStore
	now           func() time.Time
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
}

func NewAnnouncementService(txRunner db.TxRunner, announcements AnnouncementStore, users ActiveUserLister, registrations RegistrationStore, winners WinnerStore, notifier Notifier, audit AuditStore, log *zap.SugaredLogger, m *metrics.Metrics) *AnnouncementService {
	return &AnnouncementService{
		txRunner:      txRunner,
		announcements: announcements,
		users:         users,
		registrations: registrations,
		winners:       winners,
		notifier:      notifier,
		audit:         audit,
		now:           time.Now,
		log:           log,
		metrics:       m,
	}
}

type AnnouncementInput struct {
	Title           string
	Type            string
	Target          string
	TournamentID    string
	Content         string
	SendImmediately bool
	ScheduleTime    *time.Time
}

func (in AnnouncementInput) validate(now time.Time) error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return ErrInvalidInput
	}
	if !models.OneOf(in.Type, models.AnnouncementTypes) || !models.OneOf(in.Target, models.AnnouncementTargets) {
		return ErrInvalidInput
	}
	if in.Target == targetTournament && strings.TrimSpace(in.TournamentID) == "" {
		return ErrInvalidInput
	}
	if in.ScheduleTime != nil && !in.SendImmediately && !in.ScheduleTime.After(now) {
		return ErrInvalidInput
	}
	return nil
}

func (in AnnouncementInput) apply(a models.Announcement) models.Announcement {
	a.Title = strings.TrimSpace(in.Title)
	a.Type = in.Type
	a.Target = in.Target
	a.TournamentID = optionalString(in.TournamentID)
	a.Content = strings.TrimSpace(in.Content)
	a.ScheduledFor = nil
	a.Status = models.AnnouncementDraft
	if in.ScheduleTime != nil && !in.SendImmediately {
		at := *in.ScheduleTime
		a.ScheduledFor = &at
		a.Status = models.AnnouncementScheduled
	}
	return a
}

// Create stores a draft or scheduled announcement and dispatches it at once when asked to.
func (s *AnnouncementService) Create(ctx context.Context, in AnnouncementInput, adminID string) (models.Announcement, error) {
	now := s.now()
	if err := in.validate(now); err != nil {
		return models.Announcement{}, err
	}
	a := in.apply(models.Announcement{
		ID:        uuid.NewString(),
		SentBy:    adminID,
		CreatedAt: now,
	})
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.announcements.Create(ctx, tx, a); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "create_announcement", "announcement", a.ID, auditData(map[string]any{
			"type":   a.Type,
			"target": a.Target,
			"status": a.Status,
		}))
	})
	if err != nil {
		return models.Announcement{}, err
	}
	if in.SendImmediately {
		return s.dispatch(ctx, a)
	}
	return a, nil
}

// Update edits an announcement that has not been sent yet.
func (s *AnnouncementService) Update(ctx context.Context, announcementID string, in AnnouncementInput, adminID string) (models.Announcement, error) {
	if err := in.validate(s.now()); err != nil {
		return models.Announcement{}, err
	}
	current, err := s.Get(ctx, announcementID)
	if err != nil {
		return models.Announcement{}, err
	}
	if current.Status == models.AnnouncementSent {
		return models.Announcement{}, ErrInvalidTransition
	}
	a := in.apply(current)
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.announcements.Update(ctx, tx, a)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAnnouncementNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "update_announcement", "announcement", a.ID, auditData(map[string]any{"status": a.Status}))
	})
	if err != nil {
		return models.Announcement{}, err
	}
	if in.SendImmediately {
		return s.dispatch(ctx, a)
	}
	return a, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, announcementID, adminID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.announcements.Delete(ctx, tx, announcementID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAnnouncementNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "delete_announcement", "announcement", announcementID, "{}")
	})
}

// Resend dispatches an announcement again whatever its current status.
func (s *AnnouncementService) Resend(ctx context.Context, announcementID, adminID string) (models.Announcement, error) {
	a, err := s.Get(ctx, announcementID)
	if err != nil {
		return models.Announcement{}, err
	}
	s.log.Infow("announcement resend requested", "announcement_id", a.ID, "admin_id", adminID)
	return s.dispatch(ctx, a)
}

// ProcessScheduled sends every scheduled announcement that is due and returns how many went out.
func (s *AnnouncementService) ProcessScheduled(ctx context.Context) (int, error) {
	due, err := s.announcements.DueScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, a := range due {
		if _, err := s.dispatch(ctx, a); err != nil {
			s.log.Warnw("scheduled announcement failed", "announcement_id", a.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// dispatch resolves the audience, pushes the notification and records the reach.
// Audience failures mark the announcement failed.
func (s *AnnouncementService) dispatch(ctx context.Context, a models.Announcement) (models.Announcement, error) {
	if _, err := lifecycle.Announcement.Apply(a.Status, lifecycle.EventSend); err != nil {
		return models.Announcement{}, transition(err, ErrInvalidTransition)
	}
	userIDs, err := s.audience(ctx, a)
	if err != nil {
		s.markFailed(ctx, a, err)
		a.Status = models.AnnouncementFailed
		return a, err
	}
	now := s.now()
	reached := s.notifier.Notify(userIDs, websocket.Notification{
		ID:           a.ID,
		Title:        a.Title,
		Kind:         a.Type,
		Content:      a.Content,
		TournamentID: a.TournamentID,
		SentAt:       now,
	})
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.announcements.MarkSent(ctx, tx, a.ID, a.Status, reached, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return models.Announcement{}, err
	}
	s.metrics.AnnouncementReach(reached)
	s.log.Infow("announcement sent", "announcement_id", a.ID, "target", a.Target, "sent_to", reached)
	a.Status = models.AnnouncementSent
	a.SentAt = &now
	a.SentTo = reached
	return a, nil
}

func (s *AnnouncementService) audience(ctx context.Context, a models.Announcement) ([]string, error) {
	switch a.Target {
	case targetAll:
		return s.users.ActiveIDs(ctx)
	case targetTournament:
		if a.TournamentID == nil {
			return nil, ErrInvalidInput
		}
		return s.registrations.ConfirmedUserIDs(ctx, *a.TournamentID)
	case targetWinners:
		return s.winners.UserIDs(ctx, a.TournamentID)
	default:
		return nil, ErrInvalidInput
	}
}

func (s *AnnouncementService) markFailed(ctx context.Context, a models.Announcement, cause error) {
	s.log.Warnw("announcement audience failed", "announcement_id", a.ID, "error", cause)
	if _, err := lifecycle.Announcement.Apply(a.Status, lifecycle.EventFail); err != nil {
		return
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.announcements.MarkFailed(ctx, tx, a.ID, a.Status)
		return err
	})
	if err != nil {
		s.log.Warnw("failed to mark announcement failed", "announcement_id", a.ID, "error", err)
	}
}

func (s *AnnouncementService) Get(ctx context.Context, announcementID string) (models.Announcement, error) {
	a, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return models.Announcement{}, notFound(err, ErrAnnouncementNotFound)
	}
	return a, nil
}

type AnnouncementQuery struct {
	Status string
	Type   string
	PageRequest
}

func (s *AnnouncementService) List(ctx context.Context, q AnnouncementQuery) (Paged[models.Announcement], error) {
	filter := store.AnnouncementFilter{Status: q.Status, Type: q.Type, Page: q.PageRequest.window()}
	rows, err := s.announcements.List(ctx, filter)
	if err != nil {
		return Paged[models.Announcement]{}, err
	}
	total, err := s.announcements.Count(ctx, filter)
	if err != nil {
		return Paged[models.Announcement]{}, err
	}
	return newPaged(rows, total, q.PageRequest), nil
}

func (s *AnnouncementService) Active(ctx context.Context, tournamentID string) ([]models.Announcement, error) {
	return s.announcements.Active(ctx, optionalString(tournamentID), activeAnnouncementsLimit)
}

// MarkRead reports whether this was the user's first read.
func (s *AnnouncementService) MarkRead(ctx context.Context, announcementID, userID string) (bool, error) {
	if _, err := s.Get(ctx, announcementID); err != nil {
		return false, err
	}
	var first bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		first, err = s.announcements.MarkRead(ctx, tx, announcementID, userID)
		return err
	})
	return first, err
}

func (s *AnnouncementService) Stats(ctx context.Context) (store.AnnouncementStats, error) {
	return s.announcements.Stats(ctx)
}
