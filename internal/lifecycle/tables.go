package lifecycle

import "arena/internal/models"

const (
	EventClose    Event = "close"
	EventStart    Event = "start"
	EventEnd      Event = "end"
	EventCancel   Event = "cancel"
	EventConfirm  Event = "confirm"
	EventPay      Event = "pay"
	EventFail     Event = "fail"
	EventRefund   Event = "refund"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventSettle   Event = "settle"
	EventPartial  Event = "partial"
	EventSend     Event = "send"
	EventSchedule Event = "schedule"
)

var Tournament = NewTable("tournament").
	Allow(EventClose, models.TournamentUpcoming, models.TournamentOpen).
	Allow(EventStart, models.TournamentLive, models.TournamentOpen, models.TournamentUpcoming).
	Allow(EventEnd, models.TournamentCompleted, models.TournamentLive).
	Allow(EventCancel, models.TournamentCancelled, models.TournamentOpen, models.TournamentUpcoming, models.TournamentLive)

var RegistrationStatus = NewTable("registration").
	Allow(EventConfirm, models.RegistrationConfirmed, models.RegistrationPending).
	Allow(EventCancel, models.RegistrationCancelled, models.RegistrationPending, models.RegistrationConfirmed)

var RegistrationPayment = NewTable("registration payment").
	Allow(EventPay, models.PaymentPaid, models.PaymentPending, models.PaymentFailed).
	Allow(EventFail, models.PaymentFailed, models.PaymentPending).
	Allow(EventRefund, models.PaymentRefunded, models.PaymentPaid)

var Transaction = NewTable("transaction").
	Allow(EventApprove, models.TxStatusApproved, models.TxStatusPending).
	Allow(EventReject, models.TxStatusRejected, models.TxStatusPending).
	Allow(EventRefund, models.TxStatusRefunded, models.TxStatusCompleted)

var Settlement = NewTable("winner declaration").
	Allow(EventSettle, models.SettlementCompleted, models.SettlementPending, models.SettlementProcessing).
	Allow(EventPartial, models.SettlementProcessing, models.SettlementPending, models.SettlementProcessing)

var Payout = NewTable("winner payout").
	Allow(EventPay, models.PayoutPaid, models.PayoutPending, models.PayoutFailed).
	Allow(EventFail, models.PayoutFailed, models.PayoutPending, models.PayoutFailed)

var Announcement = NewTable("announcement").
	Allow(EventSchedule, models.AnnouncementScheduled, models.AnnouncementDraft).
	Allow(EventSend, models.AnnouncementSent, models.AnnouncementDraft, models.AnnouncementScheduled, models.AnnouncementFailed, models.AnnouncementSent).
	Allow(EventFail, models.AnnouncementFailed, models.AnnouncementDraft, models.AnnouncementScheduled, models.AnnouncementSent)
