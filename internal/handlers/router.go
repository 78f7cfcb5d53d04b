package handlers

import (
	"net/http"
	"strings"

	"arena/internal/config"
	"arena/internal/db"
	"arena/internal/middleware"
	"arena/internal/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	log           *zap.SugaredLogger
	users         UserStore
	admin         AdminStore
	audit         AuditStore
	wallets       WalletOpener
	resets        ResetTokenStore
	proofs        ProofStore
	sockets       SocketServer
	metrics       http.Handler
	wallet        WalletService
	registrations RegistrationService
	tournaments   TournamentService
	rooms         RoomService
	settlement    SettlementService
	announcements AnnouncementService
}

// Deps collects the collaborators of the HTTP layer. Resets, Proofs, Sockets
// and Metrics are optional; their routes answer 503 when unset.
type Deps struct {
	TxRunner      db.TxRunner
	Config        config.Config
	Log           *zap.SugaredLogger
	Users         UserStore
	Admin         AdminStore
	Audit         AuditStore
	Wallets       WalletOpener
	Resets        ResetTokenStore
	Proofs        ProofStore
	Sockets       SocketServer
	Metrics       http.Handler
	Wallet        WalletService
	Registrations RegistrationService
	Tournaments   TournamentService
	Rooms         RoomService
	Settlement    SettlementService
	Announcements AnnouncementService
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		txRunner:      d.TxRunner,
		cfg:           d.Config,
		log:           log,
		users:         d.Users,
		admin:         d.Admin,
		audit:         d.Audit,
		wallets:       d.Wallets,
		resets:        d.Resets,
		proofs:        d.Proofs,
		sockets:       d.Sockets,
		metrics:       d.Metrics,
		wallet:        d.Wallet,
		registrations: d.Registrations,
		tournaments:   d.Tournaments,
		rooms:         d.Rooms,
		settlement:    d.Settlement,
		announcements: d.Announcements,
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Auth(h.cfg.JWTSecret)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/metrics", h.Metrics)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.With(authenticate).Get("/me", h.Me)
	})
	router.With(authenticate).Put("/profile", h.UpdateProfile)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.ListTournaments)
		r.Get("/active", h.ActiveTournaments)
		r.Get("/slug/{slug}", h.GetTournamentBySlug)
		r.Get("/{id}", h.GetTournament)
	})
	router.Route("/winners", func(r chi.Router) {
		r.Get("/recent", h.RecentWinners)
		r.Get("/tournament/{tournamentID}", h.TournamentWinners)
	})
	router.Get("/announcements/active", h.ActiveAnnouncements)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.WalletBalance)
			r.Post("/add-cash", h.AddCash)
			r.Post("/withdraw", h.Withdraw)
			r.Get("/transactions", h.MyTransactions)
			r.Get("/withdrawal-limit", h.WithdrawalLimit)
		})
		r.Route("/registrations", func(r chi.Router) {
			r.Post("/", h.RegisterForTournament)
			r.Get("/mine", h.MyRegistrations)
			r.Get("/check", h.CheckRegistration)
			r.Post("/{id}/pay", h.PayRegistration)
		})
		r.Get("/rooms/{tournamentID}", h.PlayerRooms)
		r.Get("/users/{id}", h.UserProfile)
		r.Post("/announcements/{id}/read", h.MarkAnnouncementRead)
	})
	// Browsers cannot set headers on the upgrade request; Auth also accepts ?token= there.
	router.With(authenticate).Get("/ws", h.WS)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin(h.admin, ""))

		r.With(middleware.RequireAdmin(h.admin, models.RoleViewUsers)).Group(func(r chi.Router) {
			r.Get("/users", h.AdminListUsers)
			r.Put("/users/{id}/active", h.AdminSetUserActive)
			r.Get("/audit", h.ListAuditLogs)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin(h.admin))
			r.Post("/promote", h.PromoteAdmin)
			r.Post("/roles/grant", h.GrantRole)
			r.Post("/roles/revoke", h.RevokeRole)
		})

		r.Get("/dashboard", h.AdminDashboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, models.RoleManageWallet))
			r.Get("/transactions", h.AdminListTransactions)
			r.Get("/transactions/{id}", h.AdminGetTransaction)
			r.Get("/reconcile", h.Reconcile)
			r.Get("/deposits/pending", h.PendingDeposits)
			r.Post("/deposits/{id}/approve", h.ApproveDeposit)
			r.Post("/deposits/{id}/reject", h.RejectDeposit)
			r.Get("/withdrawals/pending", h.PendingWithdrawals)
			r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, models.RoleManageTournaments))
			r.Route("/tournaments", func(r chi.Router) {
				r.Get("/", h.AdminListTournaments)
				r.Post("/", h.CreateTournament)
				r.Put("/{id}", h.UpdateTournament)
				r.Delete("/{id}", h.DeleteTournament)
				r.Post("/{id}/close", h.CloseTournament)
				r.Post("/{id}/start", h.StartTournament)
				r.Post("/{id}/end", h.EndTournament)
				r.Post("/{id}/cancel", h.CancelTournament)
				r.Get("/{id}/registrations", h.TournamentRegistrations)
			})
			r.Route("/registrations", func(r chi.Router) {
				r.Get("/", h.AdminListRegistrations)
				r.Get("/stats", h.RegistrationStats)
				r.Post("/{id}/cancel", h.CancelRegistration)
				r.Post("/{id}/refund", h.RefundRegistration)
			})
			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", h.CreateRooms)
				r.Get("/recent", h.RecentRooms)
				r.Get("/tournament/{tournamentID}", h.TournamentRooms)
				r.Get("/{id}", h.GetRooms)
				r.Put("/{id}", h.UpdateRooms)
				r.Delete("/{id}", h.DeleteRooms)
				r.Post("/{id}/rooms", h.AddRoom)
				r.Post("/{id}/publish", h.PublishRooms)
				r.Post("/{id}/unpublish", h.UnpublishRooms)
			})
			r.Route("/winners", func(r chi.Router) {
				r.Post("/", h.DeclareWinners)
				r.Put("/", h.UpdateWinners)
				r.Get("/history", h.WinnerHistory)
				r.Get("/stats", h.WinnerStats)
				r.Post("/tournament/{tournamentID}/distribute", h.DistributePrizes)
				r.Get("/{id}", h.GetDeclaration)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, models.RoleManageAnnouncements))
			r.Route("/announcements", func(r chi.Router) {
				r.Get("/", h.AdminListAnnouncements)
				r.Post("/", h.CreateAnnouncement)
				r.Get("/stats", h.AnnouncementStats)
				r.Post("/process-scheduled", h.ProcessScheduledAnnouncements)
				r.Get("/{id}", h.GetAnnouncement)
				r.Put("/{id}", h.UpdateAnnouncement)
				r.Delete("/{id}", h.DeleteAnnouncement)
				r.Post("/{id}/resend", h.ResendAnnouncement)
			})
		})
	})
	return router
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		respondError(w, http.StatusServiceUnavailable, "metrics_disabled")
		return
	}
	h.metrics.ServeHTTP(w, r)
}
