package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arena/internal/db"
	"arena/internal/lifecycle"
	"arena/internal/metrics"
	"arena/internal/models"
	"arena/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	maxWinners          = 3
	recentWinnersLimit  = 10
	payoutPaid          = "paid"
	payoutAlreadyPaid   = "already_paid"
	payoutFailedOutcome = "failed"
)

// SettlementService declares tournament winners and pays their prizes into winning balances.
type SettlementService struct {
	txRunner      db.TxRunner
	ledger        ledger
	wallets       WalletStore
	txStore       TransactionStore
	tournaments   TournamentStore
	registrations RegistrationStore
	winners       WinnerStore
	users         UserStatsStore
	audit         AuditStore
	hub           BalanceHub
	now           func() time.Time
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
}

func NewSettlementService(txRunner db.TxRunner, wallets WalletStore, entries LedgerStore, txStore TransactionStore, tournaments TournamentStore, registrations RegistrationStore, winners WinnerStore, users UserStatsStore, audit AuditStore, hub BalanceHub, log *zap.SugaredLogger, m *metrics.Metrics) *SettlementService {
	return &SettlementService{
		txRunner:      txRunner,
		ledger:        ledger{wallets: wallets, entries: entries, txs: txStore},
		wallets:       wallets,
		txStore:       txStore,
		tournaments:   tournaments,
		registrations: registrations,
		winners:       winners,
		users:         users,
		audit:         audit,
		hub:           hub,
		now:           time.Now,
		log:           log,
		metrics:       m,
	}
}

type WinnerInput struct {
	Rank       int
	PlayerID   string
	PlayerName string
	Prize      int64
}

type DeclareRequest struct {
	TournamentID string
	TotalPrize   int64
	Winners      []WinnerInput
}

// normalize validates ranks and prizes and fills TotalPrize from the winners when it is zero.
func (r DeclareRequest) normalize() (DeclareRequest, error) {
	if len(r.Winners) == 0 || len(r.Winners) > maxWinners {
		return r, ErrInvalidInput
	}
	ranks := map[int]bool{}
	players := map[string]bool{}
	var sum int64
	for i, w := range r.Winners {
		w.PlayerID = strings.TrimSpace(w.PlayerID)
		if w.Rank < 1 || w.Rank > maxWinners || ranks[w.Rank] || w.PlayerID == "" || players[w.PlayerID] {
			return r, ErrInvalidInput
		}
		if w.Prize <= 0 {
			return r, ErrInvalidAmount
		}
		ranks[w.Rank] = true
		players[w.PlayerID] = true
		sum += w.Prize
		r.Winners[i] = w
	}
	if r.TotalPrize == 0 {
		r.TotalPrize = sum
	}
	if sum > r.TotalPrize {
		return r, ErrInvalidAmount
	}
	return r, nil
}

// Declare records the ranked winners of a completed tournament. Every player must hold a confirmed registration.
func (s *SettlementService) Declare(ctx context.Context, req DeclareRequest, adminID string) (models.WinnerDeclaration, error) {
	req, err := req.normalize()
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	var d models.WinnerDeclaration
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		tournament, err := s.tournaments.GetForUpdate(ctx, tx, req.TournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		if tournament.Status != models.TournamentCompleted {
			return ErrTournamentNotCompleted
		}
		if _, err := s.winners.LockByTournament(ctx, tx, tournament.ID); err == nil {
			return ErrAlreadyDeclared
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if req.TotalPrize > tournament.PrizePool {
			return ErrPrizeExceedsPool
		}
		d = models.WinnerDeclaration{
			ID:            uuid.NewString(),
			TournamentID:  tournament.ID,
			TotalPrize:    req.TotalPrize,
			DeclaredBy:    adminID,
			DeclaredAt:    s.now(),
			PaymentStatus: models.SettlementPending,
		}
		d.Winners, err = s.resolveWinners(ctx, tx, d.ID, tournament.ID, req.Winners)
		if err != nil {
			return err
		}
		if err := s.winners.CreateDeclaration(ctx, tx, d); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyDeclared
			}
			return err
		}
		if err := s.winners.InsertWinners(ctx, tx, d.Winners); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "declare_winners", "winner_declaration", d.ID, auditData(map[string]any{
			"tournament_id": d.TournamentID,
			"total_prize":   d.TotalPrize,
			"winners":       len(d.Winners),
		}))
	})
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	s.log.Infow("winners declared", "tournament_id", d.TournamentID, "declaration_id", d.ID, "total_prize", d.TotalPrize, "admin_id", adminID)
	return d, nil
}

// resolveWinners maps each player id onto the user behind its confirmed registration.
func (s *SettlementService) resolveWinners(ctx context.Context, tx *sqlx.Tx, declarationID, tournamentID string, inputs []WinnerInput) ([]models.Winner, error) {
	winners := make([]models.Winner, 0, len(inputs))
	for _, in := range inputs {
		reg, err := s.registrations.ConfirmedByPlayer(ctx, tx, tournamentID, in.PlayerID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotRegistered, in.PlayerID)
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(in.PlayerName)
		if name == "" {
			name = reg.PlayerName
		}
		winners = append(winners, models.Winner{
			ID:            uuid.NewString(),
			DeclarationID: declarationID,
			Rank:          in.Rank,
			PlayerID:      in.PlayerID,
			PlayerName:    name,
			Prize:         in.Prize,
			UserID:        reg.UserID,
			PayoutStatus:  models.PayoutPending,
		})
	}
	return winners, nil
}

// Update replaces the winner list. It is refused once settlement completed or any prize was paid.
func (s *SettlementService) Update(ctx context.Context, req DeclareRequest, adminID string) (models.WinnerDeclaration, error) {
	req, err := req.normalize()
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	var d models.WinnerDeclaration
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		tournament, err := s.tournaments.GetForUpdate(ctx, tx, req.TournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		d, err = s.winners.LockByTournament(ctx, tx, tournament.ID)
		if err != nil {
			return notFound(err, ErrDeclarationNotFound)
		}
		if d.PaymentStatus == models.SettlementCompleted {
			return ErrAlreadyCompleted
		}
		// Paid rows carry the idempotency key of their payout and must survive.
		current, err := s.winners.Winners(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		for _, w := range current {
			if w.PayoutStatus == models.PayoutPaid {
				return ErrAlreadyProcessed
			}
		}
		if req.TotalPrize > tournament.PrizePool {
			return ErrPrizeExceedsPool
		}
		d.Winners, err = s.resolveWinners(ctx, tx, d.ID, tournament.ID, req.Winners)
		if err != nil {
			return err
		}
		if err := s.winners.ReplaceWinners(ctx, tx, d.ID, req.TotalPrize, d.Winners); err != nil {
			return err
		}
		d.TotalPrize = req.TotalPrize
		d.PaymentStatus = models.SettlementPending
		return s.audit.Log(ctx, tx, adminID, "update_winners", "winner_declaration", d.ID, auditData(map[string]any{
			"total_prize": d.TotalPrize,
			"winners":     len(d.Winners),
		}))
	})
	if err != nil {
		return models.WinnerDeclaration{}, err
	}
	return d, nil
}

// PayoutOutcome is the per-winner result of a distribution run.
type PayoutOutcome struct {
	WinnerID      string `json:"winner_id"`
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	UserID        string `json:"user_id"`
	Prize         int64  `json:"prize"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type DistributionReport struct {
	DeclarationID string          `json:"declaration_id"`
	PaymentStatus string          `json:"payment_status"`
	Outcomes      []PayoutOutcome `json:"outcomes"`
}

// Distribute pays every outstanding winner independently. A failed winner does
// not stop the others; the declaration completes only when every winner is paid.
// Re-running it reports already paid winners and never credits them twice.
func (s *SettlementService) Distribute(ctx context.Context, tournamentID, adminID string) (DistributionReport, error) {
	d, err := s.winners.GetByTournament(ctx, tournamentID)
	if err != nil {
		return DistributionReport{}, notFound(err, ErrDeclarationNotFound)
	}
	if d.PaymentStatus == models.SettlementCompleted {
		return DistributionReport{}, ErrAlreadyCompleted
	}
	report := DistributionReport{DeclarationID: d.ID, Outcomes: make([]PayoutOutcome, 0, len(d.Winners))}
	allPaid := true
	for _, w := range d.Winners {
		outcome := s.payWinner(ctx, d, w, adminID)
		if outcome.Status == payoutFailedOutcome {
			allPaid = false
		}
		s.metrics.PrizePayout(outcome.Status)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	event := lifecycle.EventPartial
	if allPaid {
		event = lifecycle.EventSettle
	}
	next, err := lifecycle.Settlement.Apply(d.PaymentStatus, event)
	if err != nil {
		return DistributionReport{}, transition(err, ErrInvalidTransition)
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.winners.SetPaymentStatus(ctx, tx, d.ID, d.PaymentStatus, next, s.now())
		if err != nil {
			return err
		}
		if rows == 0 {
			s.log.Warnw("declaration status changed during distribution", "declaration_id", d.ID, "expected", d.PaymentStatus)
		}
		return s.audit.Log(ctx, tx, adminID, "distribute_prizes", "winner_declaration", d.ID, auditData(map[string]any{
			"payment_status": next,
			"winners":        len(report.Outcomes),
		}))
	})
	if err != nil {
		return DistributionReport{}, err
	}
	report.PaymentStatus = next
	s.log.Infow("prize distribution finished", "declaration_id", d.ID, "tournament_id", tournamentID, "payment_status", next)
	return report, nil
}

func (s *SettlementService) payWinner(ctx context.Context, d models.WinnerDeclaration, w models.Winner, adminID string) PayoutOutcome {
	outcome := PayoutOutcome{
		WinnerID: w.ID,
		Rank:     w.Rank,
		PlayerID: w.PlayerID,
		UserID:   w.UserID,
		Prize:    w.Prize,
	}
	if w.PayoutStatus == models.PayoutPaid {
		outcome.Status = payoutAlreadyPaid
		if w.PayoutTransactionID != nil {
			outcome.TransactionID = *w.PayoutTransactionID
		}
		return outcome
	}
	var (
		wallet      models.Wallet
		alreadyPaid bool
	)
	key := "prize:" + d.ID + ":" + w.ID
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		// The declaration lock orders this payout against Update replacing the list.
		locked, err := s.winners.LockByTournament(ctx, tx, d.TournamentID)
		if err != nil {
			return notFound(err, ErrDeclarationNotFound)
		}
		if locked.ID != d.ID || locked.PaymentStatus == models.SettlementCompleted {
			return ErrAlreadyProcessed
		}
		winner, err := s.winners.GetWinnerForUpdate(ctx, tx, w.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: winner list was replaced", ErrAlreadyProcessed)
		}
		if err != nil {
			return err
		}
		if _, err := lifecycle.Payout.Apply(winner.PayoutStatus, lifecycle.EventPay); err != nil {
			alreadyPaid = true
			if winner.PayoutTransactionID != nil {
				outcome.TransactionID = *winner.PayoutTransactionID
			}
			return nil
		}
		existing, err := s.txStore.GetByIdempotencyKey(ctx, tx, key)
		switch {
		case err == nil:
			alreadyPaid = true
			outcome.TransactionID = existing.ID
			_, err = s.winners.MarkWinnerPaid(ctx, tx, w.ID, existing.ID)
			return err
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		wallet, err = s.wallets.GetForUpdate(ctx, tx, w.UserID)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		externalID, err := s.ledger.nextIdentifier(ctx, tx, prefixTransaction, s.now())
		if err != nil {
			return err
		}
		input := store.TransactionInput{
			ID:             uuid.NewString(),
			ExternalID:     externalID,
			UserID:         w.UserID,
			Type:           models.TxTypePrizeWin,
			Status:         models.TxStatusCompleted,
			Amount:         w.Prize,
			NetAmount:      w.Prize,
			Description:    fmt.Sprintf("Prize for rank %d", w.Rank),
			TournamentID:   &d.TournamentID,
			IdempotencyKey: &key,
		}
		if err := s.txStore.Create(ctx, tx, input); err != nil {
			return err
		}
		wallet, err = s.ledger.post(ctx, tx, wallet, input.ID, store.WalletMovement{
			Winning:  w.Prize,
			Winnings: w.Prize,
		}, input.Description)
		if err != nil {
			return err
		}
		rows, err := s.winners.MarkWinnerPaid(ctx, tx, w.ID, input.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if err := s.users.RecordPrize(ctx, tx, w.UserID, w.Prize, w.Rank == 1); err != nil {
			return err
		}
		outcome.TransactionID = input.ID
		return s.audit.Log(ctx, tx, adminID, "pay_prize", "winner_entry", w.ID, auditData(map[string]any{
			"declaration_id": d.ID,
			"user_id":        w.UserID,
			"amount":         w.Prize,
			"transaction_id": externalID,
		}))
	})
	if err != nil {
		s.recordPayoutFailure(ctx, w, err)
		outcome.Status = payoutFailedOutcome
		outcome.Error = err.Error()
		outcome.TransactionID = ""
		return outcome
	}
	if alreadyPaid {
		outcome.Status = payoutAlreadyPaid
		return outcome
	}
	outcome.Status = payoutPaid
	s.metrics.WalletTransaction(models.TxTypePrizeWin, models.TxStatusCompleted, w.Prize)
	s.log.Infow("prize paid", "declaration_id", d.ID, "winner_id", w.ID, "user_id", w.UserID, "amount", w.Prize)
	s.hub.BroadcastBalance(w.UserID, balanceUpdate(wallet, "prize_win"))
	return outcome
}

func (s *SettlementService) recordPayoutFailure(ctx context.Context, w models.Winner, cause error) {
	s.log.Errorw("prize payout failed", "winner_id", w.ID, "user_id", w.UserID, "amount", w.Prize, "error", cause)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.winners.MarkWinnerFailed(ctx, tx, w.ID, cause.Error())
	})
	if err != nil {
		s.log.Warnw("failed to record payout failure", "winner_id", w.ID, "error", err)
	}
}

func (s *SettlementService) ForTournament(ctx context.Context, tournamentID string) (models.WinnerDeclaration, error) {
	d, err := s.winners.GetByTournament(ctx, tournamentID)
	if err != nil {
		return models.WinnerDeclaration{}, notFound(err, ErrDeclarationNotFound)
	}
	return d, nil
}

func (s *SettlementService) Get(ctx context.Context, declarationID string) (models.WinnerDeclaration, error) {
	d, err := s.winners.GetByID(ctx, declarationID)
	if err != nil {
		return models.WinnerDeclaration{}, notFound(err, ErrDeclarationNotFound)
	}
	return d, nil
}

func (s *SettlementService) Recent(ctx context.Context) ([]store.DeclarationView, error) {
	return s.winners.History(ctx, store.Page{Limit: recentWinnersLimit})
}

func (s *SettlementService) History(ctx context.Context, page PageRequest) (Paged[store.DeclarationView], error) {
	rows, err := s.winners.History(ctx, page.window())
	if err != nil {
		return Paged[store.DeclarationView]{}, err
	}
	total, err := s.winners.Count(ctx)
	if err != nil {
		return Paged[store.DeclarationView]{}, err
	}
	return newPaged(rows, total, page), nil
}

func (s *SettlementService) Stats(ctx context.Context) (store.SettlementStats, error) {
	return s.winners.Stats(ctx)
}
