package services

import (
	"context"
	"strings"
	"time"

	"arena/internal/db"
	"arena/internal/metrics"
	"arena/internal/models"
	"arena/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	defaultRoomPlayers = 50
	recentRoomsLimit   = 10
	roomStatusActive   = "active"
)

// RoomService manages match-room credentials and the gate that hides them until shortly before start.
type RoomService struct {
	txRunner      db.TxRunner
	rooms         RoomStore
	tournaments   TournamentStore
	registrations RegistrationStore
	audit         AuditStore
	notifier      Notifier
	lead          time.Duration
	now           func() time.Time
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
}

func NewRoomService(txRunner db.TxRunner, rooms RoomStore, tournaments TournamentStore, registrations RegistrationStore, audit AuditStore, notifier Notifier, lead time.Duration, log *zap.SugaredLogger, m *metrics.Metrics) *RoomService {
	return &RoomService{
		txRunner:      txRunner,
		rooms:         rooms,
		tournaments:   tournaments,
		registrations: registrations,
		audit:         audit,
		notifier:      notifier,
		lead:          lead,
		now:           time.Now,
		log:           log,
		metrics:       m,
	}
}

type RoomInput struct {
	RoomID     string
	Password   string
	Map        string
	MaxPlayers int
	RoomStatus string
	Notes      string
}

type RoomDetailsInput struct {
	TournamentID string
	Notes        string
	AutoPublish  bool
	Rooms        []RoomInput
}

func buildRooms(detailsID string, inputs []RoomInput) ([]models.Room, error) {
	if len(inputs) == 0 {
		return nil, ErrInvalidInput
	}
	seen := make(map[string]bool, len(inputs))
	rooms := make([]models.Room, 0, len(inputs))
	for _, in := range inputs {
		room, err := buildRoom(detailsID, in)
		if err != nil {
			return nil, err
		}
		if seen[room.RoomID] {
			return nil, ErrDuplicateRoom
		}
		seen[room.RoomID] = true
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func buildRoom(detailsID string, in RoomInput) (models.Room, error) {
	in.RoomID = strings.TrimSpace(in.RoomID)
	in.Password = strings.TrimSpace(in.Password)
	if in.RoomID == "" || in.Password == "" || !models.OneOf(in.Map, models.RoomMaps) {
		return models.Room{}, ErrInvalidInput
	}
	if in.MaxPlayers == 0 {
		in.MaxPlayers = defaultRoomPlayers
	}
	if in.MaxPlayers < 0 {
		return models.Room{}, ErrInvalidInput
	}
	if in.RoomStatus == "" {
		in.RoomStatus = roomStatusActive
	}
	if !models.OneOf(in.RoomStatus, models.RoomStatuses) {
		return models.Room{}, ErrInvalidInput
	}
	return models.Room{
		ID:            uuid.NewString(),
		RoomDetailsID: detailsID,
		RoomID:        in.RoomID,
		Password:      in.Password,
		Map:           in.Map,
		MaxPlayers:    in.MaxPlayers,
		RoomStatus:    in.RoomStatus,
		Notes:         optionalString(in.Notes),
	}, nil
}

// Create stores the single room-details record of a tournament, starting at the tournament's start time.
func (s *RoomService) Create(ctx context.Context, in RoomDetailsInput, adminID string) (models.RoomDetails, error) {
	detailsID := uuid.NewString()
	rooms, err := buildRooms(detailsID, in.Rooms)
	if err != nil {
		return models.RoomDetails{}, err
	}
	tournament, err := s.tournaments.GetByID(ctx, in.TournamentID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrTournamentNotFound)
	}
	d := models.RoomDetails{
		ID:           detailsID,
		TournamentID: tournament.ID,
		StartTime:    tournament.StartTime,
		Notes:        optionalString(in.Notes),
		AutoPublish:  in.AutoPublish,
		CreatedBy:    adminID,
		CreatedAt:    s.now(),
		Rooms:        rooms,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.rooms.CreateDetails(ctx, tx, d); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrRoomDetailsExist
			}
			return err
		}
		if err := s.rooms.InsertRooms(ctx, tx, rooms); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "create_rooms", "room_details", d.ID, auditData(map[string]any{
			"tournament_id": d.TournamentID,
			"rooms":         len(rooms),
		}))
	})
	if err != nil {
		return models.RoomDetails{}, err
	}
	return d, nil
}

// Update replaces notes, the auto-publish flag and the full room list.
func (s *RoomService) Update(ctx context.Context, detailsID string, in RoomDetailsInput, adminID string) (models.RoomDetails, error) {
	rooms, err := buildRooms(detailsID, in.Rooms)
	if err != nil {
		return models.RoomDetails{}, err
	}
	d, err := s.rooms.GetByID(ctx, detailsID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	d.Notes = optionalString(in.Notes)
	d.AutoPublish = in.AutoPublish
	d.Rooms = rooms
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.rooms.UpdateDetails(ctx, tx, d)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrRoomDetailsNotFound
		}
		if err := s.rooms.ReplaceRooms(ctx, tx, d.ID, rooms); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "update_rooms", "room_details", d.ID, auditData(map[string]any{"rooms": len(rooms)}))
	})
	if err != nil {
		return models.RoomDetails{}, err
	}
	return d, nil
}

func (s *RoomService) Delete(ctx context.Context, detailsID, adminID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.rooms.Delete(ctx, tx, detailsID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrRoomDetailsNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "delete_rooms", "room_details", detailsID, "{}")
	})
}

// AddRoom appends one room; room ids are unique within a tournament.
func (s *RoomService) AddRoom(ctx context.Context, detailsID string, in RoomInput, adminID string) (models.RoomDetails, error) {
	d, err := s.rooms.GetByID(ctx, detailsID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	room, err := buildRoom(d.ID, in)
	if err != nil {
		return models.RoomDetails{}, err
	}
	for _, existing := range d.Rooms {
		if existing.RoomID == room.RoomID {
			return models.RoomDetails{}, ErrDuplicateRoom
		}
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.rooms.InsertRooms(ctx, tx, []models.Room{room}); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateRoom
			}
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "add_room", "room_details", d.ID, auditData(map[string]any{"room_id": room.RoomID}))
	})
	if err != nil {
		return models.RoomDetails{}, err
	}
	d.Rooms = append(d.Rooms, room)
	return d, nil
}

// Publish opens the gate explicitly, regardless of auto-publish.
func (s *RoomService) Publish(ctx context.Context, detailsID, adminID string) (models.RoomDetails, error) {
	d, err := s.rooms.GetByID(ctx, detailsID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	now := s.now()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.rooms.Publish(ctx, tx, d.ID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		return s.audit.Log(ctx, tx, adminID, "publish_rooms", "room_details", d.ID, auditData(map[string]any{"tournament_id": d.TournamentID}))
	})
	if err != nil {
		return models.RoomDetails{}, err
	}
	d.IsPublished = true
	d.PublishedAt = &now
	s.metrics.RoomPublished("manual", 1)
	s.announce(ctx, d.TournamentID)
	return d, nil
}

func (s *RoomService) Unpublish(ctx context.Context, detailsID, adminID string) (models.RoomDetails, error) {
	d, err := s.rooms.GetByID(ctx, detailsID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.rooms.Unpublish(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		return s.audit.Log(ctx, tx, adminID, "unpublish_rooms", "room_details", d.ID, "{}")
	})
	if err != nil {
		return models.RoomDetails{}, err
	}
	d.IsPublished = false
	d.PublishedAt = nil
	return d, nil
}

// RoomAccess is what a confirmed player sees. Rooms stay empty until the gate opens.
type RoomAccess struct {
	Available   bool          `json:"available"`
	AvailableAt time.Time     `json:"available_at"`
	StartTime   time.Time     `json:"start_time"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	Rooms       []models.Room `json:"rooms"`
}

// ForPlayer requires a confirmed registration. Reading at or after the publish
// window opens the gate when auto-publish is on.
func (s *RoomService) ForPlayer(ctx context.Context, userID, tournamentID string) (RoomAccess, error) {
	confirmed, err := s.registrations.HasConfirmed(ctx, userID, tournamentID)
	if err != nil {
		return RoomAccess{}, err
	}
	if !confirmed {
		return RoomAccess{}, ErrForbidden
	}
	d, err := s.rooms.GetByTournament(ctx, tournamentID)
	if err != nil {
		return RoomAccess{}, notFound(err, ErrRoomDetailsNotFound)
	}
	now := s.now()
	opensAt := d.StartTime.Add(-s.lead)
	if !d.IsPublished && d.AutoPublish && !now.Before(opensAt) {
		var rows int64
		err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			rows, err = s.rooms.Publish(ctx, tx, d.ID, now)
			return err
		})
		if err != nil {
			return RoomAccess{}, err
		}
		d.IsPublished = true
		d.PublishedAt = &now
		if rows > 0 {
			s.metrics.RoomPublished("read", 1)
			s.log.Infow("room details auto-published on read", "tournament_id", tournamentID)
		}
	}
	access := RoomAccess{
		Available:   d.IsPublished,
		AvailableAt: opensAt,
		StartTime:   d.StartTime,
		Rooms:       []models.Room{},
	}
	if d.IsPublished {
		access.PublishedAt = d.PublishedAt
		access.Notes = d.Notes
		access.Rooms = d.Rooms
	}
	return access, nil
}

// SweepAutoPublish opens every auto-publish gate whose window has started and
// notifies the confirmed players of each tournament.
func (s *RoomService) SweepAutoPublish(ctx context.Context) (int, error) {
	now := s.now()
	var published []string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		published, err = s.rooms.PublishDue(ctx, tx, now.Add(s.lead), now)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RoomPublished("sweep", len(published))
	for _, tournamentID := range published {
		s.log.Infow("room details auto-published", "tournament_id", tournamentID)
		s.announce(ctx, tournamentID)
	}
	return len(published), nil
}

func (s *RoomService) announce(ctx context.Context, tournamentID string) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.registrations.ConfirmedUserIDs(ctx, tournamentID)
	if err != nil {
		s.log.Warnw("failed to resolve room audience", "tournament_id", tournamentID, "error", err)
		return
	}
	s.notifier.RoomsPublished(userIDs, tournamentID)
}

func (s *RoomService) Get(ctx context.Context, detailsID string) (models.RoomDetails, error) {
	d, err := s.rooms.GetByID(ctx, detailsID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	return d, nil
}

func (s *RoomService) ForTournament(ctx context.Context, tournamentID string) (models.RoomDetails, error) {
	d, err := s.rooms.GetByTournament(ctx, tournamentID)
	if err != nil {
		return models.RoomDetails{}, notFound(err, ErrRoomDetailsNotFound)
	}
	return d, nil
}

func (s *RoomService) Recent(ctx context.Context) ([]store.RoomDetailsView, error) {
	return s.rooms.Recent(ctx, recentRoomsLimit)
}
