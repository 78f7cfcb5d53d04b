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

// RegistrationService enrolls players and moves entry fees in and out of wallets.
type RegistrationService struct {
	txRunner      db.TxRunner
	ledger        ledger
	wallets       WalletStore
	txStore       TransactionStore
	tournaments   TournamentStore
	registrations RegistrationStore
	users         UserStatsStore
	audit         AuditStore
	hub           BalanceHub
	now           func() time.Time
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
}

func NewRegistrationService(txRunner db.TxRunner, wallets WalletStore, entries LedgerStore, txStore TransactionStore, tournaments TournamentStore, registrations RegistrationStore, users UserStatsStore, audit AuditStore, hub BalanceHub, log *zap.SugaredLogger, m *metrics.Metrics) *RegistrationService {
	return &RegistrationService{
		txRunner:      txRunner,
		ledger:        ledger{wallets: wallets, entries: entries, txs: txStore},
		wallets:       wallets,
		txStore:       txStore,
		tournaments:   tournaments,
		registrations: registrations,
		users:         users,
		audit:         audit,
		hub:           hub,
		now:           time.Now,
		log:           log,
		metrics:       m,
	}
}

type RegisterRequest struct {
	TournamentID string
	UserID       string
	PlayerID     string
	PlayerName   string
	TeamType     string
}

// Register creates a pending registration. No money moves and no seat is taken until payment.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (models.Registration, error) {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.TeamType == "" {
		req.TeamType = "solo"
	}
	if req.PlayerID == "" || req.PlayerName == "" || !models.OneOf(req.TeamType, models.TeamTypes) {
		return models.Registration{}, ErrInvalidInput
	}
	var reg models.Registration
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		tournament, err := s.tournaments.GetForUpdate(ctx, tx, req.TournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		if tournament.Status != models.TournamentOpen {
			return ErrTournamentClosed
		}
		if tournament.RegisteredPlayers >= tournament.MaxPlayers {
			return ErrTournamentFull
		}
		exists, err := s.registrations.Exists(ctx, tx, req.TournamentID, req.UserID, req.PlayerID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}
		wallet, err := s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), req.UserID)
		if err != nil {
			return err
		}
		if wallet.Total() < tournament.EntryFee {
			return ErrInsufficientBalance
		}
		now := s.now()
		reg = models.Registration{
			ID:            uuid.NewString(),
			TournamentID:  req.TournamentID,
			UserID:        req.UserID,
			PlayerID:      req.PlayerID,
			PlayerName:    req.PlayerName,
			TeamType:      req.TeamType,
			Status:        models.RegistrationPending,
			PaymentStatus: models.PaymentPending,
			EntryFeePaid:  tournament.EntryFee,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.registrations.Create(ctx, tx, reg); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return err
		}
		return s.audit.Log(ctx, tx, req.UserID, "register", "registration", reg.ID, auditData(map[string]any{
			"tournament_id": req.TournamentID,
			"player_id":     req.PlayerID,
		}))
	})
	if err != nil {
		return models.Registration{}, err
	}
	s.metrics.Registration("registered")
	s.log.Infow("registration created", "registration_id", reg.ID, "tournament_id", reg.TournamentID, "user_id", reg.UserID)
	return reg, nil
}

// ProcessPayment charges the entry fee snapshot, confirms the registration and
// claims a seat in one transaction. Running out of seats or funds marks the payment failed.
func (s *RegistrationService) ProcessPayment(ctx context.Context, registrationID, userID string) (models.Registration, error) {
	var (
		reg     models.Registration
		wallet  models.Wallet
		charged bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.registrations.GetForUpdate(ctx, tx, registrationID)
		if err != nil {
			return notFound(err, ErrRegistrationNotFound)
		}
		if reg.UserID != userID {
			return ErrForbidden
		}
		nextStatus, err := lifecycle.RegistrationStatus.Apply(reg.Status, lifecycle.EventConfirm)
		if err != nil {
			return transition(err, ErrInvalidTransition)
		}
		nextPayment, err := lifecycle.RegistrationPayment.Apply(reg.PaymentStatus, lifecycle.EventPay)
		if err != nil {
			return transition(err, ErrAlreadyProcessed)
		}
		tournament, err := s.tournaments.GetForUpdate(ctx, tx, reg.TournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		if tournament.Status != models.TournamentOpen {
			return ErrTournamentClosed
		}
		wallet, err = s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), userID)
		if err != nil {
			return err
		}
		fee := reg.EntryFeePaid
		fromMain, fromWinning, err := debitSplit(wallet, fee)
		if err != nil {
			return err
		}
		seats, err := s.tournaments.IncrementRegistered(ctx, tx, tournament.ID)
		if err != nil {
			return err
		}
		if seats == 0 {
			return ErrTournamentFull
		}
		var transactionID *string
		if fee > 0 {
			externalID, err := s.ledger.nextIdentifier(ctx, tx, prefixTransaction, s.now())
			if err != nil {
				return err
			}
			input := store.TransactionInput{
				ID:             uuid.NewString(),
				ExternalID:     externalID,
				UserID:         userID,
				Type:           models.TxTypeEntryFee,
				Status:         models.TxStatusCompleted,
				Amount:         fee,
				NetAmount:      fee,
				Description:    "Entry fee for tournament: " + tournament.Name,
				TournamentID:   &tournament.ID,
				RegistrationID: &reg.ID,
				IdempotencyKey: stringPtr("entry_fee:" + reg.ID),
			}
			if err := s.txStore.Create(ctx, tx, input); err != nil {
				return err
			}
			wallet, err = s.ledger.post(ctx, tx, wallet, input.ID, store.WalletMovement{
				Main:    -fromMain,
				Winning: -fromWinning,
			}, input.Description)
			if err != nil {
				return err
			}
			transactionID = &input.ID
			charged = true
		}
		rows, err := s.registrations.MarkPaid(ctx, tx, reg.ID, transactionID, fee)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if err := s.users.IncrementMatches(ctx, tx, userID); err != nil {
			return err
		}
		reg.Status = nextStatus
		reg.PaymentStatus = nextPayment
		reg.TransactionID = transactionID
		return s.audit.Log(ctx, tx, userID, "pay_entry_fee", "registration", reg.ID, auditData(map[string]any{
			"tournament_id": reg.TournamentID,
			"amount":        fee,
			"from_main":     fromMain,
			"from_winning":  fromWinning,
		}))
	})
	if err != nil {
		if errors.Is(err, ErrTournamentFull) || errors.Is(err, ErrInsufficientBalance) {
			s.markPaymentFailed(ctx, registrationID, err)
			s.metrics.Registration("payment_failed")
		}
		return models.Registration{}, err
	}
	s.metrics.Registration("confirmed")
	if charged {
		s.metrics.WalletTransaction(models.TxTypeEntryFee, models.TxStatusCompleted, reg.EntryFeePaid)
		s.hub.BroadcastBalance(userID, balanceUpdate(wallet, "entry_fee"))
	}
	s.log.Infow("entry fee paid", "registration_id", reg.ID, "tournament_id", reg.TournamentID, "user_id", userID, "amount", reg.EntryFeePaid)
	return reg, nil
}

func (s *RegistrationService) markPaymentFailed(ctx context.Context, registrationID string, cause error) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.registrations.SetPaymentStatus(ctx, tx, registrationID, models.PaymentPending, models.PaymentFailed)
		return err
	})
	if err != nil {
		s.log.Warnw("failed to mark payment failed", "registration_id", registrationID, "cause", cause, "error", err)
	}
}

// Cancel releases the seat only when the registration held one before cancelling.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, adminID string) (models.Registration, error) {
	var reg models.Registration
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.registrations.GetForUpdate(ctx, tx, registrationID)
		if err != nil {
			return notFound(err, ErrRegistrationNotFound)
		}
		previous := reg.Status
		next, err := lifecycle.RegistrationStatus.Apply(previous, lifecycle.EventCancel)
		if err != nil {
			return transition(err, ErrInvalidTransition)
		}
		rows, err := s.registrations.SetStatus(ctx, tx, reg.ID, previous, next)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if previous == models.RegistrationConfirmed {
			if _, err := s.tournaments.DecrementRegistered(ctx, tx, reg.TournamentID); err != nil {
				return err
			}
		}
		reg.Status = next
		return s.audit.Log(ctx, tx, adminID, "cancel_registration", "registration", reg.ID, auditData(map[string]any{
			"tournament_id":   reg.TournamentID,
			"previous_status": previous,
		}))
	})
	if err != nil {
		return models.Registration{}, err
	}
	s.metrics.Registration("cancelled")
	s.log.Infow("registration cancelled", "registration_id", reg.ID, "admin_id", adminID)
	return reg, nil
}

// Refund returns entryFeePaid to the main balance of a cancelled, paid registration. It is not repeatable.
func (s *RegistrationService) Refund(ctx context.Context, registrationID, adminID string) (models.Registration, error) {
	var (
		reg    models.Registration
		wallet models.Wallet
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.registrations.GetForUpdate(ctx, tx, registrationID)
		if err != nil {
			return notFound(err, ErrRegistrationNotFound)
		}
		if reg.PaymentStatus != models.PaymentPaid || reg.EntryFeePaid <= 0 {
			return ErrNothingToRefund
		}
		if reg.Status != models.RegistrationCancelled {
			return ErrNotCancelled
		}
		next, err := lifecycle.RegistrationPayment.Apply(reg.PaymentStatus, lifecycle.EventRefund)
		if err != nil {
			return transition(err, ErrNothingToRefund)
		}
		rows, err := s.registrations.SetPaymentStatus(ctx, tx, reg.ID, reg.PaymentStatus, next)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if reg.TransactionID != nil {
			refunded, err := lifecycle.Transaction.Apply(models.TxStatusCompleted, lifecycle.EventRefund)
			if err != nil {
				return err
			}
			rows, err := s.txStore.UpdateStatus(ctx, tx, *reg.TransactionID, models.TxStatusCompleted, refunded)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("%w: entry fee transaction is not completed", ErrAlreadyProcessed)
			}
		}
		tournament, err := s.tournaments.GetByID(ctx, reg.TournamentID)
		if err != nil {
			return notFound(err, ErrTournamentNotFound)
		}
		wallet, err = s.wallets.GetOrCreate(ctx, tx, uuid.NewString(), reg.UserID)
		if err != nil {
			return err
		}
		externalID, err := s.ledger.nextIdentifier(ctx, tx, prefixTransaction, s.now())
		if err != nil {
			return err
		}
		input := store.TransactionInput{
			ID:             uuid.NewString(),
			ExternalID:     externalID,
			UserID:         reg.UserID,
			Type:           models.TxTypeRefund,
			Status:         models.TxStatusCompleted,
			Amount:         reg.EntryFeePaid,
			NetAmount:      reg.EntryFeePaid,
			Description:    "Refund for tournament: " + tournament.Name,
			TournamentID:   &reg.TournamentID,
			RegistrationID: &reg.ID,
			IdempotencyKey: stringPtr("refund:" + reg.ID),
		}
		if err := s.txStore.Create(ctx, tx, input); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyProcessed
			}
			return err
		}
		wallet, err = s.ledger.post(ctx, tx, wallet, input.ID, store.WalletMovement{Main: reg.EntryFeePaid}, input.Description)
		if err != nil {
			return err
		}
		reg.PaymentStatus = next
		return s.audit.Log(ctx, tx, adminID, "refund_registration", "registration", reg.ID, auditData(map[string]any{
			"amount":         reg.EntryFeePaid,
			"transaction_id": externalID,
		}))
	})
	if err != nil {
		return models.Registration{}, err
	}
	s.metrics.Registration("refunded")
	s.metrics.WalletTransaction(models.TxTypeRefund, models.TxStatusCompleted, reg.EntryFeePaid)
	s.log.Infow("registration refunded", "registration_id", reg.ID, "user_id", reg.UserID, "amount", reg.EntryFeePaid, "admin_id", adminID)
	s.hub.BroadcastBalance(reg.UserID, balanceUpdate(wallet, "refund"))
	return reg, nil
}

func (s *RegistrationService) MyRegistrations(ctx context.Context, userID string) ([]store.RegistrationView, error) {
	return s.registrations.ListByUser(ctx, userID)
}

type RegistrationCheck struct {
	Registered   bool                 `json:"registered"`
	Registration *models.Registration `json:"registration,omitempty"`
}

func (s *RegistrationService) Check(ctx context.Context, userID, tournamentID string) (RegistrationCheck, error) {
	reg, err := s.registrations.GetByUserAndTournament(ctx, userID, tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RegistrationCheck{}, nil
		}
		return RegistrationCheck{}, err
	}
	return RegistrationCheck{Registered: true, Registration: &reg}, nil
}

func (s *RegistrationService) Get(ctx context.Context, registrationID string) (models.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return models.Registration{}, notFound(err, ErrRegistrationNotFound)
	}
	return reg, nil
}

type RegistrationQuery struct {
	Status        string
	PaymentStatus string
	TournamentID  string
	PageRequest
}

func (s *RegistrationService) List(ctx context.Context, q RegistrationQuery) (Paged[store.RegistrationView], error) {
	filter := store.RegistrationFilter{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		TournamentID:  q.TournamentID,
		Page:          q.PageRequest.window(),
	}
	rows, err := s.registrations.List(ctx, filter)
	if err != nil {
		return Paged[store.RegistrationView]{}, err
	}
	total, err := s.registrations.Count(ctx, filter)
	if err != nil {
		return Paged[store.RegistrationView]{}, err
	}
	return newPaged(rows, total, q.PageRequest), nil
}

// ForTournament lists every registration of one tournament.
func (s *RegistrationService) ForTournament(ctx context.Context, tournamentID string) ([]store.RegistrationView, error) {
	if _, err := s.tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, notFound(err, ErrTournamentNotFound)
	}
	return s.registrations.List(ctx, store.RegistrationFilter{
		TournamentID: tournamentID,
		Page:         store.Page{Limit: 1000},
	})
}

func (s *RegistrationService) Stats(ctx context.Context) (store.RegistrationStats, error) {
	return s.registrations.Stats(ctx)
}
