package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"arena/internal/lifecycle"
	"arena/internal/logger"
	"arena/internal/models"
)

func newTournamentService(mem *memStore, now time.Time) *TournamentService {
	svc := NewTournamentService(mem, mem.tournaments(), mem.registrations(), mem, logger.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func validTournamentInput(start time.Time) TournamentInput {
	return TournamentInput{
		Name:              "Friday Night Squads",
		Type:              "squad-custom",
		Game:              "freefire",
		EntryFee:          5000,
		PrizePool:         100000,
		MaxPlayers:        48,
		StartTime:         start,
		PrizeDistribution: models.PrizeDistribution{First: 60000, Second: 30000, Third: 10000},
	}
}

func TestCreateTournament(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mem := newMemStore()
	svc := newTournamentService(mem, now)

	tour, err := svc.Create(context.Background(), validTournamentInput(now.Add(24*time.Hour)), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tour.Status != models.TournamentOpen {
		t.Fatalf("expected open, got %s", tour.Status)
	}
	if !strings.HasPrefix(tour.Slug, "friday-night-squads-") {
		t.Fatalf("unexpected slug %q", tour.Slug)
	}
	if stored := mem.tournament(tour.ID); stored.Slug != tour.Slug || stored.RegisteredPlayers != 0 {
		t.Fatalf("unexpected stored tournament %+v", stored)
	}

	late, err := svc.Create(context.Background(), validTournamentInput(now.Add(-time.Minute)), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if late.Status != models.TournamentUpcoming {
		t.Fatalf("expected upcoming for past start, got %s", late.Status)
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	svc := newTournamentService(newMemStore(), now)
	start := now.Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(*TournamentInput)
		want   error
	}{
		{name: "blank name", mutate: func(in *TournamentInput) { in.Name = " " }, want: ErrInvalidInput},
		{name: "unknown game", mutate: func(in *TournamentInput) { in.Game = "chess" }, want: ErrInvalidInput},
		{name: "too few players", mutate: func(in *TournamentInput) { in.MaxPlayers = 1 }, want: ErrInvalidInput},
		{name: "negative fee", mutate: func(in *TournamentInput) { in.EntryFee = -1 }, want: ErrInvalidAmount},
		{name: "prizes exceed pool", mutate: func(in *TournamentInput) { in.PrizeDistribution.Third = 10001 }, want: ErrPrizeExceedsPool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validTournamentInput(start)
			tc.mutate(&in)
			if _, err := svc.Create(context.Background(), in, "admin"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTournamentTransitions(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mem := newMemStore()
	mem.seedTournament(models.Tournament{ID: "t-1", Status: models.TournamentOpen, MaxPlayers: 10})
	svc := newTournamentService(mem, now)
	ctx := context.Background()

	_, err := svc.End(ctx, "t-1", "admin")
	if !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, lifecycle.ErrTransitionNotAllowed) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := svc.Start(ctx, "t-1", "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ended, err := svc.End(ctx, "t-1", "admin")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != models.TournamentCompleted || ended.EndTime == nil || !ended.EndTime.Equal(now) {
		t.Fatalf("unexpected ended tournament %+v", ended)
	}
	if _, err := svc.Cancel(ctx, "t-1", "admin"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completed tournament to refuse cancel, got %v", err)
	}
	if _, err := svc.Start(ctx, "missing", "admin"); !errors.Is(err, ErrTournamentNotFound) {
		t.Fatalf("expected ErrTournamentNotFound, got %v", err)
	}
}

func TestUpdateTournamentKeepsTakenSeats(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mem := newMemStore()
	mem.seedTournament(models.Tournament{ID: "t-1", Status: models.TournamentOpen, MaxPlayers: 48, RegisteredPlayers: 12})
	svc := newTournamentService(mem, now)

	in := validTournamentInput(now.Add(time.Hour))
	in.MaxPlayers = 10
	if _, err := svc.Update(context.Background(), "t-1", in, "admin"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	in.MaxPlayers = 12
	updated, err := svc.Update(context.Background(), "t-1", in, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.MaxPlayers != 12 || updated.RegisteredPlayers != 12 {
		t.Fatalf("unexpected update %+v", updated)
	}
}

func TestDeleteTournamentInUse(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mem := newMemStore()
	mem.seedTournament(models.Tournament{ID: "t-1", Status: models.TournamentOpen, MaxPlayers: 10})
	mem.seedTournament(models.Tournament{ID: "t-2", Status: models.TournamentOpen, MaxPlayers: 10})
	confirmRegistration(t, mem, "t-1", "u-1")
	svc := newTournamentService(mem, now)
	ctx := context.Background()

	if err := svc.Delete(ctx, "t-1", "admin"); !errors.Is(err, ErrTournamentInUse) {
		t.Fatalf("expected ErrTournamentInUse, got %v", err)
	}
	if err := svc.Delete(ctx, "t-2", "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, "t-2"); !errors.Is(err, ErrTournamentNotFound) {
		t.Fatalf("expected deleted tournament to be gone, got %v", err)
	}
}

func TestPagedWindow(t *testing.T) {
	req := PageRequest{Page: 3, Limit: 500}
	if w := req.window(); w.Limit != maxPageSize || w.Offset != 2*maxPageSize {
		t.Fatalf("unexpected window %+v", w)
	}
	p := newPaged[int](nil, 45, PageRequest{Page: 2, Limit: 20})
	if p.TotalPages != 3 || !p.HasMore || p.Items == nil {
		t.Fatalf("unexpected page %+v", p)
	}
	last := newPaged([]int{1}, 41, PageRequest{Page: 3, Limit: 20})
	if last.HasMore {
		t.Fatalf("last page reports more: %+v", last)
	}
}

func TestThrottleErrorHoursLeft(t *testing.T) {
	err := &ThrottleError{Remaining: 90*time.Minute + time.Second}
	if got := err.HoursLeft(); got != 1.6 {
		t.Fatalf("expected 1.6, got %v", got)
	}
	if !errors.Is(err, ErrThrottleActive) {
		t.Fatal("throttle error does not match sentinel")
	}
}
