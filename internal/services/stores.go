package services

import (
	"context"
	"time"

	"arena/internal/models"
	"arena/internal/store"
	"arena/internal/websocket"
)

type WalletStore interface {
	GetOrCreate(ctx context.Context, tx store.Tx, id, userID string) (models.Wallet, error)
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	Apply(ctx context.Context, tx store.Execer, walletID string, m store.WalletMovement) (int64, error)
	Reconcile(ctx context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error)
	PlatformBalance(ctx context.Context) (store.PlatformBalance, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.WalletEntryInput) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	IdentifierTaken(ctx context.Context, q store.Getter, value string) (bool, error)
	GetByID(ctx context.Context, transactionID string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, q store.Getter, key string) (models.Transaction, error)
	Review(ctx context.Context, tx store.Execer, transactionID, from, to, adminID string, notes *string) (int64, error)
	UpdateStatus(ctx context.Context, tx store.Execer, transactionID, from, to string) (int64, error)
	LastApprovedWithdrawal(ctx context.Context, q store.Getter, userID string) (*time.Time, error)
	List(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, error)
	Count(ctx context.Context, filter store.TransactionFilter) (int, error)
	ListPending(ctx context.Context, txType string) ([]store.PendingTransaction, error)
	Stats(ctx context.Context) (store.TransactionStats, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type UserStatsStore interface {
	IncrementMatches(ctx context.Context, tx store.Execer, userID string) error
	RecordPrize(ctx context.Context, tx store.Execer, userID string, amount int64, firstPlace bool) error
}

type TournamentStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Tournament) error
	Update(ctx context.Context, tx store.Execer, t models.Tournament) (int64, error)
	GetByID(ctx context.Context, tournamentID string) (models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (models.Tournament, error)
	GetForUpdate(ctx context.Context, tx store.Getter, tournamentID string) (models.Tournament, error)
	List(ctx context.Context, filter store.TournamentFilter) ([]models.Tournament, error)
	Count(ctx context.Context, filter store.TournamentFilter) (int, error)
	Active(ctx context.Context, limit int) ([]models.Tournament, error)
	SetStatus(ctx context.Context, tx store.Execer, tournamentID, from, to string, endTime *time.Time) (int64, error)
	IncrementRegistered(ctx context.Context, tx store.Execer, tournamentID string) (int64, error)
	DecrementRegistered(ctx context.Context, tx store.Execer, tournamentID string) (int64, error)
	Delete(ctx context.Context, tx store.Execer, tournamentID string) (int64, error)
	CountByStatus(ctx context.Context) ([]store.StatusCount, error)
}

type RegistrationStore interface {
	Create(ctx context.Context, tx store.Execer, r models.Registration) error
	Exists(ctx context.Context, q store.Getter, tournamentID, userID, playerID string) (bool, error)
	GetByID(ctx context.Context, registrationID string) (models.Registration, error)
	GetForUpdate(ctx context.Context, tx store.Getter, registrationID string) (models.Registration, error)
	GetByUserAndTournament(ctx context.Context, userID, tournamentID string) (models.Registration, error)
	ConfirmedByPlayer(ctx context.Context, q store.Getter, tournamentID, playerID string) (models.Registration, error)
	HasConfirmed(ctx context.Context, userID, tournamentID string) (bool, error)
	ConfirmedUserIDs(ctx context.Context, tournamentID string) ([]string, error)
	CountForTournament(ctx context.Context, q store.Getter, tournamentID string) (int, error)
	MarkPaid(ctx context.Context, tx store.Execer, registrationID string, transactionID *string, entryFeePaid int64) (int64, error)
	SetStatus(ctx context.Context, tx store.Execer, registrationID, from, to string) (int64, error)
	SetPaymentStatus(ctx context.Context, tx store.Execer, registrationID, from, to string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]store.RegistrationView, error)
	List(ctx context.Context, filter store.RegistrationFilter) ([]store.RegistrationView, error)
	Count(ctx context.Context, filter store.RegistrationFilter) (int, error)
	Stats(ctx context.Context) (store.RegistrationStats, error)
}

type WinnerStore interface {
	CreateDeclaration(ctx context.Context, tx store.Execer, d models.WinnerDeclaration) error
	InsertWinners(ctx context.Context, tx store.Execer, winners []models.Winner) error
	ReplaceWinners(ctx context.Context, tx store.Execer, declarationID string, totalPrize int64, winners []models.Winner) error
	GetByTournament(ctx context.Context, tournamentID string) (models.WinnerDeclaration, error)
	GetByID(ctx context.Context, declarationID string) (models.WinnerDeclaration, error)
	LockByTournament(ctx context.Context, tx store.Getter, tournamentID string) (models.WinnerDeclaration, error)
	Winners(ctx context.Context, q store.Selecter, declarationID string) ([]models.Winner, error)
	GetWinnerForUpdate(ctx context.Context, tx store.Getter, winnerID string) (models.Winner, error)
	MarkWinnerPaid(ctx context.Context, tx store.Execer, winnerID, transactionID string) (int64, error)
	MarkWinnerFailed(ctx context.Context, tx store.Execer, winnerID, reason string) error
	SetPaymentStatus(ctx context.Context, tx store.Execer, declarationID, from, to string, processedAt time.Time) (int64, error)
	History(ctx context.Context, page store.Page) ([]store.DeclarationView, error)
	Count(ctx context.Context) (int, error)
	UserIDs(ctx context.Context, tournamentID *string) ([]string, error)
	Stats(ctx context.Context) (store.SettlementStats, error)
}

type RoomStore interface {
	CreateDetails(ctx context.Context, tx store.Execer, d models.RoomDetails) error
	InsertRooms(ctx context.Context, tx store.Execer, rooms []models.Room) error
	UpdateDetails(ctx context.Context, tx store.Execer, d models.RoomDetails) (int64, error)
	ReplaceRooms(ctx context.Context, tx store.Execer, detailsID string, rooms []models.Room) error
	Delete(ctx context.Context, tx store.Execer, detailsID string) (int64, error)
	GetByTournament(ctx context.Context, tournamentID string) (models.RoomDetails, error)
	GetByID(ctx context.Context, detailsID string) (models.RoomDetails, error)
	Publish(ctx context.Context, tx store.Execer, detailsID string, at time.Time) (int64, error)
	Unpublish(ctx context.Context, tx store.Execer, detailsID string) (int64, error)
	PublishDue(ctx context.Context, tx store.Selecter, cutoff, at time.Time) ([]string, error)
	Recent(ctx context.Context, limit int) ([]store.RoomDetailsView, error)
}

type AnnouncementStore interface {
	Create(ctx context.Context, tx store.Execer, a models.Announcement) error
	Update(ctx context.Context, tx store.Execer, a models.Announcement) (int64, error)
	Delete(ctx context.Context, tx store.Execer, announcementID string) (int64, error)
	GetByID(ctx context.Context, announcementID string) (models.Announcement, error)
	MarkSent(ctx context.Context, tx store.Execer, announcementID, from string, sentTo int, at time.Time) (int64, error)
	MarkFailed(ctx context.Context, tx store.Execer, announcementID, from string) (int64, error)
	DueScheduled(ctx context.Context, now time.Time) ([]models.Announcement, error)
	List(ctx context.Context, filter store.AnnouncementFilter) ([]models.Announcement, error)
	Count(ctx context.Context, filter store.AnnouncementFilter) (int, error)
	Active(ctx context.Context, tournamentID *string, limit int) ([]models.Announcement, error)
	MarkRead(ctx context.Context, tx store.Execer, announcementID, userID string) (bool, error)
	Stats(ctx context.Context) (store.AnnouncementStats, error)
}

// ActiveUserLister resolves the "all" announcement audience.
type ActiveUserLister interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type Notifier interface {
	Notify(userIDs []string, n websocket.Notification) int
	RoomsPublished(userIDs []string, tournamentID string)
}

// ProofRemover deletes an uploaded payment proof by reference.
type ProofRemover interface {
	Delete(ctx context.Context, ref string) error
}
