package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrDeclarationNotFound  = errors.New("winner declaration not found")
	ErrRoomDetailsNotFound  = errors.New("room details not found")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrForbidden = errors.New("forbidden")

	ErrAlreadyProcessed       = errors.New("already processed")
	ErrTournamentClosed       = errors.New("tournament is not open for registration")
	ErrTournamentNotCompleted = errors.New("tournament is not completed")
	ErrAlreadyCompleted       = errors.New("prize distribution already completed")
	ErrNotCancelled           = errors.New("registration is not cancelled")
	ErrNothingToRefund        = errors.New("registration has no payment to refund")
	ErrInvalidTransition      = errors.New("invalid state transition")

	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInput        = errors.New("invalid input")
	ErrPrizeExceedsPool    = errors.New("total prize exceeds prize pool")
	ErrPlayerNotRegistered = errors.New("player has no confirmed registration")

	ErrAlreadyRegistered = errors.New("already registered")
	ErrAlreadyDeclared   = errors.New("winners already declared")
	ErrDuplicateRoom     = errors.New("room id already exists")
	ErrRoomDetailsExist  = errors.New("room details already exist for tournament")
	ErrTournamentInUse   = errors.New("tournament has registrations")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTournamentFull      = errors.New("tournament is full")
	ErrThrottleActive      = errors.New("withdrawal limit active")
)

// ThrottleError reports when the next withdrawal becomes possible.
type ThrottleError struct {
	NextAvailableAt time.Time
	Remaining       time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s: %.1f hours left", ErrThrottleActive, e.HoursLeft())
}

func (e *ThrottleError) Is(target error) bool {
	return target == ErrThrottleActive
}

// HoursLeft rounds the remaining time up to a tenth of an hour.
func (e *ThrottleError) HoursLeft() float64 {
	return math.Ceil(e.Remaining.Hours()*10) / 10
}

// notFound maps a missing row onto the caller's sentinel.
func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// transition wraps a lifecycle rejection so callers can match both errors.
func transition(err error, sentinel error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}
