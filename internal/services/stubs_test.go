package services

import (
	"context"
	"sync"
	"time"

	"arena/internal/models"
	"arena/internal/store"
	"arena/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubHub struct {
	mu    sync.Mutex
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, update)
}

type stubNotifier struct {
	mu            sync.Mutex
	notified      [][]string
	notifications []websocket.Notification
	rooms         map[string][]string
}

func (s *stubNotifier) Notify(userIDs []string, n websocket.Notification) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, userIDs)
	s.notifications = append(s.notifications, n)
	return len(userIDs)
}

func (s *stubNotifier) RoomsPublished(userIDs []string, tournamentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms == nil {
		s.rooms = map[string][]string{}
	}
	s.rooms[tournamentID] = userIDs
}

type stubUsers struct {
	activeIDsFn func(ctx context.Context) ([]string, error)
}

func (s stubUsers) ActiveIDs(ctx context.Context) ([]string, error) {
	if s.activeIDsFn == nil {
		return nil, nil
	}
	return s.activeIDsFn(ctx)
}

type stubRoomStore struct {
	createDetailsFn   func(ctx context.Context, tx store.Execer, d models.RoomDetails) error
	insertRoomsFn     func(ctx context.Context, tx store.Execer, rooms []models.Room) error
	getByTournamentFn func(ctx context.Context, tournamentID string) (models.RoomDetails, error)
	getByIDFn         func(ctx context.Context, detailsID string) (models.RoomDetails, error)
	publishFn         func(ctx context.Context, tx store.Execer, detailsID string, at time.Time) (int64, error)
	publishDueFn      func(ctx context.Context, tx store.Selecter, cutoff, at time.Time) ([]string, error)
}

func (s stubRoomStore) CreateDetails(ctx context.Context, tx store.Execer, d models.RoomDetails) error {
	if s.createDetailsFn == nil {
		return nil
	}
	return s.createDetailsFn(ctx, tx, d)
}

func (s stubRoomStore) InsertRooms(ctx context.Context, tx store.Execer, rooms []models.Room) error {
	if s.insertRoomsFn == nil {
		return nil
	}
	return s.insertRoomsFn(ctx, tx, rooms)
}

func (s stubRoomStore) UpdateDetails(context.Context, store.Execer, models.RoomDetails) (int64, error) {
	return 1, nil
}

func (s stubRoomStore) ReplaceRooms(context.Context, store.Execer, string, []models.Room) error {
	return nil
}

func (s stubRoomStore) Delete(context.Context, store.Execer, string) (int64, error) {
	return 1, nil
}

func (s stubRoomStore) GetByTournament(ctx context.Context, tournamentID string) (models.RoomDetails, error) {
	return s.getByTournamentFn(ctx, tournamentID)
}

func (s stubRoomStore) GetByID(ctx context.Context, detailsID string) (models.RoomDetails, error) {
	return s.getByIDFn(ctx, detailsID)
}

func (s stubRoomStore) Publish(ctx context.Context, tx store.Execer, detailsID string, at time.Time) (int64, error) {
	if s.publishFn == nil {
		return 1, nil
	}
	return s.publishFn(ctx, tx, detailsID, at)
}

func (s stubRoomStore) Unpublish(context.Context, store.Execer, string) (int64, error) {
	return 1, nil
}

func (s stubRoomStore) PublishDue(ctx context.Context, tx store.Selecter, cutoff, at time.Time) ([]string, error) {
	if s.publishDueFn == nil {
		return nil, nil
	}
	return s.publishDueFn(ctx, tx, cutoff, at)
}

func (s stubRoomStore) Recent(context.Context, int) ([]store.RoomDetailsView, error) {
	return nil, nil
}

type stubAnnouncementStore struct {
	createFn       func(ctx context.Context, tx store.Execer, a models.Announcement) error
	updateFn       func(ctx context.Context, tx store.Execer, a models.Announcement) (int64, error)
	getByIDFn      func(ctx context.Context, announcementID string) (models.Announcement, error)
	markSentFn     func(ctx context.Context, tx store.Execer, announcementID, from string, sentTo int, at time.Time) (int64, error)
	markFailedFn   func(ctx context.Context, tx store.Execer, announcementID, from string) (int64, error)
	dueScheduledFn func(ctx context.Context, now time.Time) ([]models.Announcement, error)
	markReadFn     func(ctx context.Context, tx store.Execer, announcementID, userID string) (bool, error)
}

func (s stubAnnouncementStore) Create(ctx context.Context, tx store.Execer, a models.Announcement) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, a)
}

func (s stubAnnouncementStore) Update(ctx context.Context, tx store.Execer, a models.Announcement) (int64, error) {
	if s.updateFn == nil {
		return 1, nil
	}
	return s.updateFn(ctx, tx, a)
}

func (s stubAnnouncementStore) Delete(context.Context, store.Execer, string) (int64, error) {
	return 1, nil
}

func (s stubAnnouncementStore) GetByID(ctx context.Context, announcementID string) (models.Announcement, error) {
	return s.getByIDFn(ctx, announcementID)
}

func (s stubAnnouncementStore) MarkSent(ctx context.Context, tx store.Execer, announcementID, from string, sentTo int, at time.Time) (int64, error) {
	if s.markSentFn == nil {
		return 1, nil
	}
	return s.markSentFn(ctx, tx, announcementID, from, sentTo, at)
}

func (s stubAnnouncementStore) MarkFailed(ctx context.Context, tx store.Execer, announcementID, from string) (int64, error) {
	if s.markFailedFn == nil {
		return 1, nil
	}
	return s.markFailedFn(ctx, tx, announcementID, from)
}

func (s stubAnnouncementStore) DueScheduled(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	if s.dueScheduledFn == nil {
		return nil, nil
	}
	return s.dueScheduledFn(ctx, now)
}

func (s stubAnnouncementStore) List(context.Context, store.AnnouncementFilter) ([]models.Announcement, error) {
	return nil, nil
}

func (s stubAnnouncementStore) Count(context.Context, store.AnnouncementFilter) (int, error) {
	return 0, nil
}

func (s stubAnnouncementStore) Active(context.Context, *string, int) ([]models.Announcement, error) {
	return nil, nil
}

func (s stubAnnouncementStore) MarkRead(ctx context.Context, tx store.Execer, announcementID, userID string) (bool, error) {
	if s.markReadFn == nil {
		return true, nil
	}
	return s.markReadFn(ctx, tx, announcementID, userID)
}

func (s stubAnnouncementStore) Stats(context.Context) (store.AnnouncementStats, error) {
	return store.AnnouncementStats{}, nil
}
