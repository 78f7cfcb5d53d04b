package models

import "time"

const (
	TxTypeAddCash  = "add_cash"
	TxTypeWithdraw = "withdraw"
	TxTypeEntryFee = "entry_fee"
	TxTypePrizeWin = "prize_win"
	TxTypeRefund   = "refund"

	TxStatusPending   = "pending"
	TxStatusApproved  = "approved"
	TxStatusRejected  = "rejected"
	TxStatusCompleted = "completed"
	TxStatusRefunded  = "refunded"

	BucketMain    = "main"
	BucketWinning = "winning"

	WithdrawMethodUPI  = "upi"
	WithdrawMethodBank = "bank"
)

const (
	RoleManageWallet        = "CanManageWallet"
	RoleManageTournaments   = "CanManageTournaments"
	RoleManageAnnouncements = "CanManageAnnouncements"
	RoleViewUsers           = "CanViewUsers"
)

var AdminRoles = []string{RoleManageWallet, RoleManageTournaments, RoleManageAnnouncements, RoleViewUsers}

const (
	TournamentOpen      = "open"
	TournamentUpcoming  = "upcoming"
	TournamentLive      = "live"
	TournamentCompleted = "completed"
	TournamentCancelled = "cancelled"

	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationCancelled = "cancelled"

	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"

	SettlementPending    = "pending"
	SettlementProcessing = "processing"
	SettlementCompleted  = "completed"
	SettlementFailed     = "failed"

	PayoutPending = "pending"
	PayoutPaid    = "paid"
	PayoutFailed  = "failed"

	AnnouncementDraft     = "draft"
	AnnouncementScheduled = "scheduled"
	AnnouncementSent      = "sent"
	AnnouncementFailed    = "failed"
)

var (
	TournamentTypes = []string{
		"solo-custom", "duo-custom", "squad-custom", "lone-wolf", "solo-kill",
		"squad-booyah", "duo-top2", "solo-top3", "looser-reward", "no-kill", "landmine",
	}
	Games               = []string{"freefire", "bgmi", "cod"}
	TeamTypes           = []string{"solo", "duo", "squad"}
	RoomMaps            = []string{"bermuda", "purgatory", "kalahari", "nexterra", "alpine"}
	RoomStatuses        = []string{"active", "full", "closed"}
	AnnouncementTypes   = []string{"tournament", "winner", "maintenance", "general"}
	AnnouncementTargets = []string{"all", "tournament", "winners"}
)

func OneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

type UserStats struct {
	TotalWins     int   `db:"total_wins" json:"total_wins"`
	TotalEarnings int64 `db:"total_earnings" json:"total_earnings"`
	TotalMatches  int   `db:"total_matches" json:"total_matches"`
}

// User.WalletBalance is projected from the wallets table at read time.
type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	AvatarURL     *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	IsAdmin       bool      `db:"is_admin" json:"is_admin"`
	WalletBalance int64     `db:"wallet_balance" json:"wallet_balance"`
	UserStats               `json:"stats"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PublicProfile is the part of a user any signed-in player may look up.
type PublicProfile struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	UserStats           `json:"stats"`
	CreatedAt time.Time `db:"created_at" json:"joined_at"`
}

type Wallet struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	MainBalance    int64     `db:"main_balance" json:"main_balance"`
	WinningBalance int64     `db:"winning_balance" json:"winning_balance"`
	TotalDeposited int64     `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn int64     `db:"total_withdrawn" json:"total_withdrawn"`
	TotalWinnings  int64     `db:"total_winnings" json:"total_winnings"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (w Wallet) Total() int64 {
	return w.MainBalance + w.WinningBalance
}

type BankDetails struct {
	AccountNumber *string `db:"bank_account_number" json:"account_number,omitempty"`
	IFSCCode      *string `db:"bank_ifsc" json:"ifsc_code,omitempty"`
	AccountName   *string `db:"bank_account_name" json:"account_name,omitempty"`
}

type Transaction struct {
	ID               string     `db:"id" json:"id"`
	ExternalID       string     `db:"external_id" json:"transaction_id"`
	ReferenceID      *string    `db:"reference_id" json:"reference_id,omitempty"`
	UserID           string     `db:"user_id" json:"user_id"`
	Type             string     `db:"type" json:"type"`
	Status           string     `db:"status" json:"status"`
	Amount           int64      `db:"amount" json:"amount"`
	TaxAmount        int64      `db:"tax_amount" json:"tax_amount"`
	NetAmount        int64      `db:"net_amount" json:"net_amount"`
	UPIID            *string    `db:"upi_id" json:"upi_id,omitempty"`
	UPITransactionID *string    `db:"upi_transaction_id" json:"upi_transaction_id,omitempty"`
	BankDetails                 `json:"bank_details"`
	Screenshot       *string    `db:"screenshot" json:"screenshot,omitempty"`
	Description      string     `db:"description" json:"description"`
	AdminNotes       *string    `db:"admin_notes" json:"admin_notes,omitempty"`
	ApprovedBy       *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	TournamentID     *string    `db:"tournament_id" json:"tournament_id,omitempty"`
	RegistrationID   *string    `db:"registration_id" json:"registration_id,omitempty"`
	IdempotencyKey   *string    `db:"idempotency_key" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type PrizeDistribution struct {
	First  int64 `db:"prize_first" json:"first"`
	Second int64 `db:"prize_second" json:"second"`
	Third  int64 `db:"prize_third" json:"third"`
}

type Tournament struct {
	ID                string     `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Slug              string     `db:"slug" json:"slug"`
	Type              string     `db:"type" json:"type"`
	Game              string     `db:"game" json:"game"`
	EntryFee          int64      `db:"entry_fee" json:"entry_fee"`
	PrizePool         int64      `db:"prize_pool" json:"prize_pool"`
	MaxPlayers        int        `db:"max_players" json:"max_players"`
	RegisteredPlayers int        `db:"registered_players" json:"registered_players"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           *time.Time `db:"end_time" json:"end_time,omitempty"`
	Status            string     `db:"status" json:"status"`
	Rules             string     `db:"rules" json:"rules"`
	HowToPlay         string     `db:"how_to_play" json:"how_to_play"`
	PrizeDistribution            `json:"prize_distribution"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

type Registration struct {
	ID            string    `db:"id" json:"id"`
	TournamentID  string    `db:"tournament_id" json:"tournament_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	PlayerID      string    `db:"player_id" json:"player_id"`
	PlayerName    string    `db:"player_name" json:"player_name"`
	TeamType      string    `db:"team_type" json:"team_type"`
	Status        string    `db:"status" json:"status"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	EntryFeePaid  int64     `db:"entry_fee_paid" json:"entry_fee_paid"`
	TransactionID *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type Winner struct {
	ID                  string  `db:"id" json:"id"`
	DeclarationID       string  `db:"declaration_id" json:"-"`
	Rank                int     `db:"rank" json:"rank"`
	PlayerID            string  `db:"player_id" json:"player_id"`
	PlayerName          string  `db:"player_name" json:"player_name"`
	Prize               int64   `db:"prize" json:"prize"`
	UserID              string  `db:"user_id" json:"user_id"`
	PayoutStatus        string  `db:"payout_status" json:"payout_status"`
	PayoutTransactionID *string `db:"payout_transaction_id" json:"payout_transaction_id,omitempty"`
	FailureReason       *string `db:"failure_reason" json:"failure_reason,omitempty"`
}

type WinnerDeclaration struct {
	ID                 string     `db:"id" json:"id"`
	TournamentID       string     `db:"tournament_id" json:"tournament_id"`
	TotalPrize         int64      `db:"total_prize" json:"total_prize"`
	DeclaredBy         string     `db:"declared_by" json:"declared_by"`
	DeclaredAt         time.Time  `db:"declared_at" json:"declared_at"`
	PaymentStatus      string     `db:"payment_status" json:"payment_status"`
	PaymentProcessedAt *time.Time `db:"payment_processed_at" json:"payment_processed_at,omitempty"`
	Winners            []Winner   `db:"-" json:"winners"`
}

type Room struct {
	ID             string  `db:"id" json:"-"`
	RoomDetailsID  string  `db:"room_details_id" json:"-"`
	RoomID         string  `db:"room_id" json:"room_id"`
	Password       string  `db:"password" json:"password"`
	Map            string  `db:"map" json:"map"`
	MaxPlayers     int     `db:"max_players" json:"max_players"`
	CurrentPlayers int     `db:"current_players" json:"current_players"`
	RoomStatus     string  `db:"room_status" json:"room_status"`
	Notes          *string `db:"notes" json:"notes,omitempty"`
}

type RoomDetails struct {
	ID           string     `db:"id" json:"id"`
	TournamentID string     `db:"tournament_id" json:"tournament_id"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	AutoPublish  bool       `db:"auto_publish" json:"auto_publish"`
	IsPublished  bool       `db:"is_published" json:"is_published"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	Rooms        []Room     `db:"-" json:"rooms"`
}

type AnnouncementStats struct {
	SentTo int `db:"sent_to" json:"sent_to"`
	ReadBy int `db:"read_by" json:"read_by"`
}

type Announcement struct {
	ID                string     `db:"id" json:"id"`
	Title             string     `db:"title" json:"title"`
	Type              string     `db:"type" json:"type"`
	Target            string     `db:"target" json:"target"`
	TournamentID      *string    `db:"tournament_id" json:"tournament_id,omitempty"`
	Content           string     `db:"content" json:"content"`
	SentBy            string     `db:"sent_by" json:"sent_by"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ScheduledFor      *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	Status            string     `db:"status" json:"status"`
	AnnouncementStats            `json:"stats"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}
