package services

import (
	"context"
	"strings"
	"time"

	"arena/internal/db"
	"arena/internal/lifecycle"
	"arena/internal/models"
	"arena/internal/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	minTournamentPlayers = 2
	maxTournamentPlayers = 1000
	activeTournamentsCap = 20
)

type TournamentService struct {
	txRunner      db.TxRunner
	tournaments   TournamentStore
	registrations RegistrationStore
	audit         AuditStore
	now           func() time.Time
	log           *zap.SugaredLogger
}

func NewTournamentService(txRunner db.TxRunner, tournaments TournamentStore, registrations RegistrationStore, audit AuditStore, log *zap.SugaredLogger) *TournamentService {
	return &TournamentService{
		txRunner:      txRunner,
		tournaments:   tournaments,
		registrations: registrations,
		audit:         audit,
		now:           time.Now,
		log:           log,
	}
}

type TournamentInput struct {
	Name              string
	Type              string
	Game              string
	EntryFee          int64
	PrizePool         int64
	MaxPlayers        int
	StartTime         time.Time
	Rules             string
	HowToPlay         string
	PrizeDistribution models.PrizeDistribution
}

func (in TournamentInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || in.StartTime.IsZero() {
		return ErrInvalidInput
	}
	if !models.OneOf(in.Type, models.TournamentTypes) || !models.OneOf(in.Game, models.Games) {
		return ErrInvalidInput
	}
	if in.MaxPlayers < minTournamentPlayers || in.MaxPlayers > maxTournamentPlayers {
		return ErrInvalidInput
	}
	if in.EntryFee < 0 || in.PrizePool < 0 {
		return ErrInvalidAmount
	}
	d := in.PrizeDistribution
	if d.First < 0 || d.Second < 0 || d.Third < 0 {
		return ErrInvalidAmount
	}
	if d.First+d.Second+d.Third > in.PrizePool {
		return ErrPrizeExceedsPool
	}
	return nil
}

func (s *TournamentService) Create(ctx context.Context, in TournamentInput, adminID string) (models.Tournament, error) {
	if err := in.validate(); err != nil {
		return models.Tournament{}, err
	}
	now := s.now()
	status := models.TournamentOpen
	if !in.StartTime.After(now) {
		status = models.TournamentUpcoming
	}
	id := uuid.NewString()
	t := models.Tournament{
		ID:                id,
		Name:              strings.TrimSpace(in.Name),
		Slug:              slug.Make(in.Name) + "-" + id[:8],
		Type:              in.Type,
		Game:              in.Game,
		EntryFee:          in.EntryFee,
		PrizePool:         in.PrizePool,
		MaxPlayers:        in.MaxPlayers,
		StartTime:         in.StartTime,
		Status:            status,
		Rules:             in.Rules,
		HowToPlay:         in.HowToPlay,
		PrizeDistribution: in.PrizeDistribution,
		CreatedBy:         adminID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.tournaments.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "create_tournament", "tournament", t.ID, auditData(map[string]any{
			"name":       t.Name,
			"entry_fee":  t.EntryFee,
			"prize_pool": t.PrizePool,
		}))
	})
	if err != nil {
		return models.Tournament{}, err
	}
	s.log.Infow("tournament created", "tournament_id", t.ID, "slug", t.Slug, "admin_id", adminID)
	return t, nil
}

// Update rewrites the editable fields. Capacity can never drop below the seats already taken.
func (s *TournamentService) Update(ctx context.Context, tournamentID string, in TournamentInput, adminID string) (models.Tournament, error) {
	if err := in.validate(); err != nil {
		return models.Tournament{}, err
	}
	var t models.Tournament
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		t, err = s.tournaments.GetForUpdate(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		if t.Status == models.TournamentCompleted || t.Status == models.TournamentCancelled {
			return ErrInvalidTransition
		}
		if in.MaxPlayers < t.RegisteredPlayers {
			return ErrInvalidInput
		}
		t.Name = strings.TrimSpace(in.Name)
		t.Type = in.Type
		t.Game = in.Game
		t.EntryFee = in.EntryFee
		t.PrizePool = in.PrizePool
		t.MaxPlayers = in.MaxPlayers
		t.StartTime = in.StartTime
		t.Rules = in.Rules
		t.HowToPlay = in.HowToPlay
		t.PrizeDistribution = in.PrizeDistribution
		t.UpdatedAt = s.now()
		rows, err := s.tournaments.Update(ctx, tx, t)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInvalidInput
		}
		return s.audit.Log(ctx, tx, adminID, "update_tournament", "tournament", t.ID, auditData(map[string]any{
			"entry_fee":   t.EntryFee,
			"prize_pool":  t.PrizePool,
			"max_players": t.MaxPlayers,
		}))
	})
	if err != nil {
		return models.Tournament{}, err
	}
	return t, nil
}

func (s *TournamentService) Get(ctx context.Context, tournamentID string) (models.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return models.Tournament{}, notFound(err, ErrTournamentNotFound)
	}
	return t, nil
}

func (s *TournamentService) GetBySlug(ctx context.Context, value string) (models.Tournament, error) {
	t, err := s.tournaments.GetBySlug(ctx, value)
	if err != nil {
		return models.Tournament{}, notFound(err, ErrTournamentNotFound)
	}
	return t, nil
}

type TournamentQuery struct {
	Status string
	Type   string
	Game   string
	PageRequest
}

func (s *TournamentService) List(ctx context.Context, q TournamentQuery) (Paged[models.Tournament], error) {
	filter := store.TournamentFilter{
		Status: q.Status,
		Type:   q.Type,
		Game:   q.Game,
		Page:   q.PageRequest.window(),
	}
	rows, err := s.tournaments.List(ctx, filter)
	if err != nil {
		return Paged[models.Tournament]{}, err
	}
	total, err := s.tournaments.Count(ctx, filter)
	if err != nil {
		return Paged[models.Tournament]{}, err
	}
	return newPaged(rows, total, q.PageRequest), nil
}

// Active lists tournaments still accepting or running matches, soonest first.
func (s *TournamentService) Active(ctx context.Context) ([]models.Tournament, error) {
	return s.tournaments.Active(ctx, activeTournamentsCap)
}

func (s *TournamentService) Close(ctx context.Context, tournamentID, adminID string) (models.Tournament, error) {
	return s.transition(ctx, tournamentID, lifecycle.EventClose, adminID)
}

func (s *TournamentService) Start(ctx context.Context, tournamentID, adminID string) (models.Tournament, error) {
	return s.transition(ctx, tournamentID, lifecycle.EventStart, adminID)
}

func (s *TournamentService) End(ctx context.Context, tournamentID, adminID string) (models.Tournament, error) {
	return s.transition(ctx, tournamentID, lifecycle.EventEnd, adminID)
}

func (s *TournamentService) Cancel(ctx context.Context, tournamentID, adminID string) (models.Tournament, error) {
	return s.transition(ctx, tournamentID, lifecycle.EventCancel, adminID)
}

func (s *TournamentService) transition(ctx context.Context, tournamentID string, event lifecycle.Event, adminID string) (models.Tournament, error) {
	var t models.Tournament
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		t, err = s.tournaments.GetForUpdate(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		next, err := lifecycle.Tournament.Apply(t.Status, event)
		if err != nil {
			return transition(err, ErrInvalidTransition)
		}
		var endTime *time.Time
		if event == lifecycle.EventEnd {
			now := s.now()
			endTime = &now
			t.EndTime = endTime
		}
		rows, err := s.tournaments.SetStatus(ctx, tx, t.ID, t.Status, next, endTime)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		previous := t.Status
		t.Status = next
		return s.audit.Log(ctx, tx, adminID, string(event)+"_tournament", "tournament", t.ID, auditData(map[string]any{
			"from": previous,
			"to":   next,
		}))
	})
	if err != nil {
		return models.Tournament{}, err
	}
	s.log.Infow("tournament status changed", "tournament_id", t.ID, "event", event, "status", t.Status, "admin_id", adminID)
	return t, nil
}

// Delete refuses while any registration references the tournament.
func (s *TournamentService) Delete(ctx context.Context, tournamentID, adminID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.tournaments.GetForUpdate(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		count, err := s.registrations.CountForTournament(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrTournamentInUse
		}
		rows, err := s.tournaments.Delete(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTournamentNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "delete_tournament", "tournament", t.ID, auditData(map[string]any{"name": t.Name}))
	})
	if err != nil {
		return err
	}
	s.log.Infow("tournament deleted", "tournament_id", tournamentID, "admin_id", adminID)
	return nil
}

type TournamentDashboard struct {
	ByStatus      []store.StatusCount     `json:"by_status"`
	Registrations store.RegistrationStats `json:"registrations"`
}

func (s *TournamentService) DashboardStats(ctx context.Context) (TournamentDashboard, error) {
	byStatus, err := s.tournaments.CountByStatus(ctx)
	if err != nil {
		return TournamentDashboard{}, err
	}
	regs, err := s.registrations.Stats(ctx)
	if err != nil {
		return TournamentDashboard{}, err
	}
	return TournamentDashboard{ByStatus: byStatus, Registrations: regs}, nil
}
