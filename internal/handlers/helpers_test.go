package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arena/internal/auth"
	"arena/internal/config"
	"arena/internal/models"
	"arena/internal/services"
	"arena/internal/store"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn         func(ctx context.Context, id, username, email, passwordHash string, phone *string) error
	getByEmailFn     func(ctx context.Context, email string) (models.User, error)
	getByIDFn        func(ctx context.Context, userID string) (models.User, error)
	profileFn        func(ctx context.Context, userID string) (models.PublicProfile, error)
	listFn           func(ctx context.Context, search string, page store.Page) ([]models.User, error)
	countFn          func(ctx context.Context, search string) (int, error)
	updateProfileFn  func(ctx context.Context, userID string, phone, avatarURL *string) error
	updatePasswordFn func(ctx context.Context, userID, passwordHash string) error
	setActiveFn      func(ctx context.Context, userID string, active bool) (int64, error)
}

func (s stubUserStore) Create(ctx context.Context, _ store.Execer, id, username, email, passwordHash string, phone *string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, id, username, email, passwordHash, phone)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID, IsActive: true}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) PublicProfile(ctx context.Context, userID string) (models.PublicProfile, error) {
	if s.profileFn == nil {
		return models.PublicProfile{ID: userID}, nil
	}
	return s.profileFn(ctx, userID)
}

func (s stubUserStore) List(ctx context.Context, search string, page store.Page) ([]models.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, search, page)
}

func (s stubUserStore) Count(ctx context.Context, search string) (int, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, search)
}

func (s stubUserStore) UpdateProfile(ctx context.Context, _ store.Execer, userID string, phone, avatarURL *string) error {
	if s.updateProfileFn == nil {
		return nil
	}
	return s.updateProfileFn(ctx, userID, phone, avatarURL)
}

func (s stubUserStore) UpdatePassword(ctx context.Context, _ store.Execer, userID, passwordHash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, userID, passwordHash)
}

func (s stubUserStore) SetActive(ctx context.Context, _ store.Execer, userID string, active bool) (int64, error) {
	if s.setActiveFn == nil {
		return 1, nil
	}
	return s.setActiveFn(ctx, userID, active)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	rolesFn       func(ctx context.Context, userID string) ([]string, error)
	createAdminFn func(ctx context.Context, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, adminUserID, role string) error
	revokeRoleFn  func(ctx context.Context, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

// superAdmins treats every caller as a super admin.
func superAdmins() stubAdminStore {
	return stubAdminStore{isAdminFn: func(context.Context, string) (bool, bool, error) { return true, true, nil }}
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) Roles(ctx context.Context, userID string) ([]string, error) {
	if s.rolesFn == nil {
		return nil, nil
	}
	return s.rolesFn(ctx, userID)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, _ store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, _ store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, adminUserID, role)
}

func (s stubAdminStore) RevokeRole(ctx context.Context, _ store.Execer, adminUserID, role string) error {
	if s.revokeRoleFn == nil {
		return nil
	}
	return s.revokeRoleFn(ctx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context, _ store.Tx) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, entityType string, page store.Page) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, entityType string, page store.Page) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, entityType, page)
}

type stubWalletOpener struct {
	getOrCreateFn func(ctx context.Context, userID string) (models.Wallet, error)
}

func (s stubWalletOpener) GetOrCreate(ctx context.Context, _ store.Tx, id, userID string) (models.Wallet, error) {
	if s.getOrCreateFn == nil {
		return models.Wallet{ID: id, UserID: userID}, nil
	}
	return s.getOrCreateFn(ctx, userID)
}

type stubResetTokens struct {
	issueFn   func(ctx context.Context, userID string) (string, time.Time, error)
	consumeFn func(ctx context.Context, token string) (string, error)
}

func (s stubResetTokens) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	return s.issueFn(ctx, userID)
}

func (s stubResetTokens) Consume(ctx context.Context, token string) (string, error) {
	return s.consumeFn(ctx, token)
}

type stubProofStore struct {
	saveFn func(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error)
}

func (s stubProofStore) SavePaymentProof(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	return s.saveFn(ctx, userID, filename, contentType, body)
}

// The service stubs embed their interface; calling a method without an fn field panics.

type stubWalletService struct {
	WalletService
	balanceFn           func(ctx context.Context, userID string) (models.Wallet, error)
	requestDepositFn    func(ctx context.Context, req services.DepositRequest) (models.Transaction, error)
	requestWithdrawalFn func(ctx context.Context, req services.WithdrawalRequest) (models.Transaction, error)
	approveDepositFn    func(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error)
	withdrawalLimitFn   func(ctx context.Context, userID string) (services.WithdrawalLimit, error)
	reconcileFn         func(ctx context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error)
}

func (s stubWalletService) Limits() config.WalletLimits {
	return config.WalletLimits{WithdrawMin: 1000, WithdrawMax: 5000, WithdrawCooldown: 24 * time.Hour}
}

func (s stubWalletService) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	return s.balanceFn(ctx, userID)
}

func (s stubWalletService) RequestDeposit(ctx context.Context, req services.DepositRequest) (models.Transaction, error) {
	return s.requestDepositFn(ctx, req)
}

func (s stubWalletService) RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.Transaction, error) {
	return s.requestWithdrawalFn(ctx, req)
}

func (s stubWalletService) ApproveDeposit(ctx context.Context, transactionID, adminID string, notes *string) (models.Transaction, error) {
	return s.approveDepositFn(ctx, transactionID, adminID, notes)
}

func (s stubWalletService) WithdrawalLimit(ctx context.Context, userID string) (services.WithdrawalLimit, error) {
	return s.withdrawalLimitFn(ctx, userID)
}

func (s stubWalletService) Reconcile(ctx context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error) {
	return s.reconcileFn(ctx, onlyMismatched)
}

type stubRegistrationService struct {
	RegistrationService
	registerFn func(ctx context.Context, req services.RegisterRequest) (models.Registration, error)
	payFn      func(ctx context.Context, registrationID, userID string) (models.Registration, error)
}

func (s stubRegistrationService) Register(ctx context.Context, req services.RegisterRequest) (models.Registration, error) {
	return s.registerFn(ctx, req)
}

func (s stubRegistrationService) ProcessPayment(ctx context.Context, registrationID, userID string) (models.Registration, error) {
	return s.payFn(ctx, registrationID, userID)
}

type stubTournamentService struct {
	TournamentService
	createFn func(ctx context.Context, in services.TournamentInput, adminID string) (models.Tournament, error)
	endFn    func(ctx context.Context, tournamentID, adminID string) (models.Tournament, error)
}

func (s stubTournamentService) Create(ctx context.Context, in services.TournamentInput, adminID string) (models.Tournament, error) {
	return s.createFn(ctx, in, adminID)
}

func (s stubTournamentService) End(ctx context.Context, tournamentID, adminID string) (models.Tournament, error) {
	return s.endFn(ctx, tournamentID, adminID)
}

type stubRoomService struct {
	RoomService
	forPlayerFn func(ctx context.Context, userID, tournamentID string) (services.RoomAccess, error)
	createFn    func(ctx context.Context, in services.RoomDetailsInput, adminID string) (models.RoomDetails, error)
}

func (s stubRoomService) ForPlayer(ctx context.Context, userID, tournamentID string) (services.RoomAccess, error) {
	return s.forPlayerFn(ctx, userID, tournamentID)
}

func (s stubRoomService) Create(ctx context.Context, in services.RoomDetailsInput, adminID string) (models.RoomDetails, error) {
	return s.createFn(ctx, in, adminID)
}

type stubSettlementService struct {
	SettlementService
	declareFn    func(ctx context.Context, req services.DeclareRequest, adminID string) (models.WinnerDeclaration, error)
	distributeFn func(ctx context.Context, tournamentID, adminID string) (services.DistributionReport, error)
}

func (s stubSettlementService) Declare(ctx context.Context, req services.DeclareRequest, adminID string) (models.WinnerDeclaration, error) {
	return s.declareFn(ctx, req, adminID)
}

func (s stubSettlementService) Distribute(ctx context.Context, tournamentID, adminID string) (services.DistributionReport, error) {
	return s.distributeFn(ctx, tournamentID, adminID)
}

type stubAnnouncementService struct {
	AnnouncementService
	createFn   func(ctx context.Context, in services.AnnouncementInput, adminID string) (models.Announcement, error)
	markReadFn func(ctx context.Context, announcementID, userID string) (bool, error)
}

func (s stubAnnouncementService) Create(ctx context.Context, in services.AnnouncementInput, adminID string) (models.Announcement, error) {
	return s.createFn(ctx, in, adminID)
}

func (s stubAnnouncementService) MarkRead(ctx context.Context, announcementID, userID string) (bool, error) {
	return s.markReadFn(ctx, announcementID, userID)
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
}

// newTestHandler fills the store collaborators with permissive stubs.
func newTestHandler(d Deps) *Handler {
	if d.TxRunner == nil {
		d.TxRunner = fakeTxRunner{}
	}
	if d.Config.JWTSecret == "" {
		d.Config = testConfig()
	}
	if d.Users == nil {
		d.Users = stubUserStore{}
	}
	if d.Admin == nil {
		d.Admin = stubAdminStore{}
	}
	if d.Audit == nil {
		d.Audit = stubAuditStore{}
	}
	if d.Wallets == nil {
		d.Wallets = stubWalletOpener{}
	}
	return New(d)
}

// serve sends a request through the full router. A non-empty userID adds a bearer token.
func serve(t *testing.T, h *Handler, method, target string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serveRequest(t, h, req, userID)
}

func serveRequest(t *testing.T, h *Handler, req *http.Request, userID string) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["error"]; got != code {
		t.Fatalf("expected error %q, got %v", code, got)
	}
}
