package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"arena/internal/config"
	"arena/internal/models"
	"arena/internal/services"
	"arena/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string, phone *string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	PublicProfile(ctx context.Context, userID string) (models.PublicProfile, error)
	List(ctx context.Context, search string, page store.Page) ([]models.User, error)
	Count(ctx context.Context, search string) (int, error)
	UpdateProfile(ctx context.Context, tx store.Execer, userID string, phone, avatarURL *string) error
	UpdatePassword(ctx context.Context, tx store.Execer, userID, passwordHash string) error
	SetActive(ctx context.Context, tx store.Execer, userID string, active bool) (int64, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	Roles(ctx context.Context, userID string) ([]string, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	RevokeRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context, tx store.Tx) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, entityType string, page store.Page) ([]store.AuditEntry, error)
}

// WalletOpener creates the wallet row of a new account inside the sign-up transaction.
type WalletOpener interface {
	GetOrCreate(ctx context.Context, tx store.Tx, id, userID string) (models.Wallet, error)
}

type ResetTokenStore interface {
	Issue(ctx context.Context, userID string) (string, time.Time, error)
	Consume(ctx context.Context, token string) (string, error)
}

type ProofStore interface {
	SavePaymentProof(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error)
}

type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

type WalletService interface {
	Limits() config.WalletLimits
	Balance(ctx context.Context, userID string) (models.Wallet, error)
	RequestDeposit(ctx context.Context, req services.DepositRequest) (models.Transaction, error)
	ApproveDeposit(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error)
	RejectDeposit(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error)
	RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.Transaction, error)
	ApproveWithdrawal(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error)
	RejectWithdrawal(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error)
	WithdrawalLimit(ctx context.Context, userID string) (services.WithdrawalLimit, error)
	Transactions(ctx context.Context, userID string, q services.TransactionQuery) (services.Paged[models.Transaction], error)
	AllTransactions(ctx context.Context, q services.TransactionQuery) (services.Paged[models.Transaction], error)
	Transaction(ctx context.Context, transactionID string) (models.Transaction, error)
	PendingDeposits(ctx context.Context) ([]store.PendingTransaction, error)
	PendingWithdrawals(ctx context.Context) ([]store.PendingTransaction, error)
	DashboardStats(ctx context.Context) (services.WalletDashboard, error)
	Reconcile(ctx context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error)
}

type RegistrationService interface {
	Register(ctx context.Context, req services.RegisterRequest) (models.Registration, error)
	ProcessPayment(ctx context.Context, registrationID, userID string) (models.Registration, error)
	Cancel(ctx context.Context, registrationID, adminID string) (models.Registration, error)
	Refund(ctx context.Context, registrationID, adminID string) (models.Registration, error)
	MyRegistrations(ctx context.Context, userID string) ([]store.RegistrationView, error)
	Check(ctx context.Context, userID, tournamentID string) (services.RegistrationCheck, error)
	List(ctx context.Context, q services.RegistrationQuery) (services.Paged[store.RegistrationView], error)
	ForTournament(ctx context.Context, tournamentID string) ([]store.RegistrationView, error)
	Stats(ctx context.Context) (store.RegistrationStats, error)
}

type TournamentService interface {
	Create(ctx context.Context, in services.TournamentInput, adminID string) (models.Tournament, error)
	Update(ctx context.Context, tournamentID string, in services.TournamentInput, adminID string) (models.Tournament, error)
	Get(ctx context.Context, tournamentID string) (models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (models.Tournament, error)
	List(ctx context.Context, q services.TournamentQuery) (services.Paged[models.Tournament], error)
	Active(ctx context.Context) ([]models.Tournament, error)
	Close(ctx context.Context, tournamentID, adminID string) (models.Tournament, error)
	Start(ctx context.Context, tournamentID, adminID string) (models.Tournament, error)
	End(ctx context.Context, tournamentID, adminID string) (models.Tournament, error)
	Cancel(ctx context.Context, tournamentID, adminID string) (models.Tournament, error)
	Delete(ctx context.Context, tournamentID, adminID string) error
	DashboardStats(ctx context.Context) (services.TournamentDashboard, error)
}

type RoomService interface {
	Create(ctx context.Context, in services.RoomDetailsInput, adminID string) (models.RoomDetails, error)
	Update(ctx context.Context, detailsID string, in services.RoomDetailsInput, adminID string) (models.RoomDetails, error)
	Delete(ctx context.Context, detailsID, adminID string) error
	AddRoom(ctx context.Context, detailsID string, in services.RoomInput, adminID string) (models.RoomDetails, error)
	Publish(ctx context.Context, detailsID, adminID string) (models.RoomDetails, error)
	Unpublish(ctx context.Context, detailsID, adminID string) (models.RoomDetails, error)
	ForPlayer(ctx context.Context, userID, tournamentID string) (services.RoomAccess, error)
	Get(ctx context.Context, detailsID string) (models.RoomDetails, error)
	ForTournament(ctx context.Context, tournamentID string) (models.RoomDetails, error)
	Recent(ctx context.Context) ([]store.RoomDetailsView, error)
}

type SettlementService interface {
	Declare(ctx context.Context, req services.DeclareRequest, adminID string) (models.WinnerDeclaration, error)
	Update(ctx context.Context, req services.DeclareRequest, adminID string) (models.WinnerDeclaration, error)
	Distribute(ctx context.Context, tournamentID, adminID string) (services.DistributionReport, error)
	ForTournament(ctx context.Context, tournamentID string) (models.WinnerDeclaration, error)
	Get(ctx context.Context, declarationID string) (models.WinnerDeclaration, error)
	Recent(ctx context.Context) ([]store.DeclarationView, error)
	History(ctx context.Context, page services.PageRequest) (services.Paged[store.DeclarationView], error)
	Stats(ctx context.Context) (store.SettlementStats, error)
}

type AnnouncementService interface {
	Create(ctx context.Context, in services.AnnouncementInput, adminID string) (models.Announcement, error)
	Update(ctx context.Context, announcementID string, in services.AnnouncementInput, adminID string) (models.Announcement, error)
	Delete(ctx context.Context, announcementID, adminID string) error
	Resend(ctx context.Context, announcementID, adminID string) (models.Announcement, error)
	ProcessScheduled(ctx context.Context) (int, error)
	Get(ctx context.Context, announcementID string) (models.Announcement, error)
	List(ctx context.Context, q services.AnnouncementQuery) (services.Paged[models.Announcement], error)
	Active(ctx context.Context, tournamentID string) ([]models.Announcement, error)
	MarkRead(ctx context.Context, announcementID, userID string) (bool, error)
	Stats(ctx context.Context) (store.AnnouncementStats, error)
}
