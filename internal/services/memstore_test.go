package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"arena/internal/models"
	"arena/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// memState is the table contents of memStore. WithTx snapshots it and restores
// the snapshot when the closure fails, which gives the fake rollback semantics.
type memState struct {
	wallets       map[string]models.Wallet
	entries       []store.WalletEntryInput
	txs           map[string]models.Transaction
	tournaments   map[string]models.Tournament
	registrations map[string]models.Registration
	declarations  map[string]models.WinnerDeclaration
	winners       map[string]models.Winner
	stats         map[string]models.UserStats
	audits        []string
}

func (s memState) clone() memState {
	c := memState{
		wallets:       make(map[string]models.Wallet, len(s.wallets)),
		entries:       append([]store.WalletEntryInput(nil), s.entries...),
		txs:           make(map[string]models.Transaction, len(s.txs)),
		tournaments:   make(map[string]models.Tournament, len(s.tournaments)),
		registrations: make(map[string]models.Registration, len(s.registrations)),
		declarations:  make(map[string]models.WinnerDeclaration, len(s.declarations)),
		winners:       make(map[string]models.Winner, len(s.winners)),
		stats:         make(map[string]models.UserStats, len(s.stats)),
		audits:        append([]string(nil), s.audits...),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.tournaments {
		c.tournaments[k] = v
	}
	for k, v := range s.registrations {
		c.registrations[k] = v
	}
	for k, v := range s.declarations {
		c.declarations[k] = v
	}
	for k, v := range s.winners {
		c.winners[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	return c
}

// memStore backs every ledger-side store interface in memory. Transactions are
// serialized, which is the guarantee SERIALIZABLE isolation gives the real stores.
type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state memState
	now   func() time.Time

	missingWallets map[string]bool
	seeded         map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		state:          memState{}.clone(),
		now:            time.Now,
		missingWallets: map[string]bool{},
		seeded:         map[string]int64{},
	}
}

func (m *memStore) lock() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	unlock := m.lock()
	snapshot := m.state.clone()
	unlock()
	if err := fn(nil); err != nil {
		unlock = m.lock()
		m.state = snapshot
		unlock()
		return err
	}
	return nil
}

func (m *memStore) wallets() memWallets             { return memWallets{m} }
func (m *memStore) txs() memTxs                     { return memTxs{m} }
func (m *memStore) tournaments() memTournaments     { return memTournaments{m} }
func (m *memStore) registrations() memRegistrations { return memRegistrations{m} }
func (m *memStore) winners() memWinners             { return memWinners{m} }

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

func (m *memStore) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	defer m.lock()()
	m.state.audits = append(m.state.audits, action)
	return nil
}

func (m *memStore) IncrementMatches(_ context.Context, _ store.Execer, userID string) error {
	defer m.lock()()
	s := m.state.stats[userID]
	s.TotalMatches++
	m.state.stats[userID] = s
	return nil
}

func (m *memStore) RecordPrize(_ context.Context, _ store.Execer, userID string, amount int64, firstPlace bool) error {
	defer m.lock()()
	s := m.state.stats[userID]
	s.TotalEarnings += amount
	if firstPlace {
		s.TotalWins++
	}
	m.state.stats[userID] = s
	return nil
}

func (m *memStore) InsertEntries(_ context.Context, _ store.Execer, entries []store.WalletEntryInput) error {
	defer m.lock()()
	m.state.entries = append(m.state.entries, entries...)
	return nil
}

func (m *memStore) userStats(userID string) models.UserStats {
	defer m.lock()()
	return m.state.stats[userID]
}

func (m *memStore) wallet(userID string) models.Wallet {
	defer m.lock()()
	return m.state.wallets[userID]
}

// seedWallet creates a wallet together with the entries that justify its balances.
func (m *memStore) seedWallet(userID string, main, winning int64) {
	defer m.lock()()
	walletID := "wallet-" + userID
	m.seeded[userID] = main + winning
	m.state.wallets[userID] = models.Wallet{ID: walletID, UserID: userID, MainBalance: main, WinningBalance: winning}
	m.state.entries = append(m.state.entries,
		store.WalletEntryInput{ID: "seed-main-" + userID, WalletID: walletID, Bucket: models.BucketMain, Amount: main},
		store.WalletEntryInput{ID: "seed-winning-" + userID, WalletID: walletID, Bucket: models.BucketWinning, Amount: winning},
	)
}

func (m *memStore) seededBalance(userID string) int64 {
	defer m.lock()()
	return m.seeded[userID]
}

func (m *memStore) seedTournament(t models.Tournament) {
	defer m.lock()()
	m.state.tournaments[t.ID] = t
}

func (m *memStore) tournament(id string) models.Tournament {
	defer m.lock()()
	return m.state.tournaments[id]
}

func (m *memStore) registration(id string) models.Registration {
	defer m.lock()()
	return m.state.registrations[id]
}

func (m *memStore) setTransactionStatus(id, status string) {
	defer m.lock()()
	t := m.state.txs[id]
	t.Status = status
	m.state.txs[id] = t
}

func (m *memStore) transactions() []models.Transaction {
	rows, _ := m.txs().List(context.Background(), store.TransactionFilter{})
	return rows
}

// entrySum is the signed sum of every entry of the user's wallet.
func (m *memStore) entrySum(userID string) int64 {
	defer m.lock()()
	walletID := m.state.wallets[userID].ID
	var sum int64
	for _, e := range m.state.entries {
		if e.WalletID == walletID {
			sum += e.Amount
		}
	}
	return sum
}

type memWallets struct{ m *memStore }

func (v memWallets) GetOrCreate(_ context.Context, _ store.Tx, id, userID string) (models.Wallet, error) {
	defer v.m.lock()()
	if w, ok := v.m.state.wallets[userID]; ok {
		return w, nil
	}
	w := models.Wallet{ID: id, UserID: userID, CreatedAt: v.m.now(), UpdatedAt: v.m.now()}
	v.m.state.wallets[userID] = w
	return w, nil
}

func (v memWallets) GetByUser(_ context.Context, userID string) (models.Wallet, error) {
	defer v.m.lock()()
	w, ok := v.m.state.wallets[userID]
	if !ok {
		return models.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (v memWallets) GetForUpdate(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
	defer v.m.lock()()
	w, ok := v.m.state.wallets[userID]
	if !ok || v.m.missingWallets[userID] {
		return models.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (v memWallets) Apply(_ context.Context, _ store.Execer, walletID string, mv store.WalletMovement) (int64, error) {
	defer v.m.lock()()
	for userID, w := range v.m.state.wallets {
		if w.ID != walletID {
			continue
		}
		if w.MainBalance+mv.Main < 0 || w.WinningBalance+mv.Winning < 0 {
			return 0, nil
		}
		w.MainBalance += mv.Main
		w.WinningBalance += mv.Winning
		w.TotalDeposited += mv.Deposited
		w.TotalWithdrawn += mv.Withdrawn
		w.TotalWinnings += mv.Winnings
		v.m.state.wallets[userID] = w
		return 1, nil
	}
	return 0, nil
}

func (v memWallets) Reconcile(_ context.Context, onlyMismatched bool) ([]store.WalletReconciliation, error) {
	defer v.m.lock()()
	var rows []store.WalletReconciliation
	for _, w := range v.m.state.wallets {
		row := store.WalletReconciliation{WalletID: w.ID, UserID: w.UserID, StoredMain: w.MainBalance, StoredWinning: w.WinningBalance}
		for _, e := range v.m.state.entries {
			if e.WalletID != w.ID {
				continue
			}
			if e.Bucket == models.BucketMain {
				row.CalculatedMain += e.Amount
			} else {
				row.CalculatedWinning += e.Amount
			}
		}
		if onlyMismatched && row.Balanced() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (v memWallets) PlatformBalance(context.Context) (store.PlatformBalance, error) {
	defer v.m.lock()()
	var p store.PlatformBalance
	for _, w := range v.m.state.wallets {
		p.Wallets++
		p.Main += w.MainBalance
		p.Winning += w.WinningBalance
		p.TotalDeposited += w.TotalDeposited
		p.TotalWithdrawn += w.TotalWithdrawn
		p.TotalWinnings += w.TotalWinnings
	}
	return p, nil
}

type memTxs struct{ m *memStore }

func (v memTxs) Create(_ context.Context, _ store.Execer, in store.TransactionInput) error {
	defer v.m.lock()()
	for _, t := range v.m.state.txs {
		if t.ExternalID == in.ExternalID {
			return uniqueViolation()
		}
		if in.ReferenceID != nil && t.ReferenceID != nil && *t.ReferenceID == *in.ReferenceID {
			return uniqueViolation()
		}
		if in.IdempotencyKey != nil && t.IdempotencyKey != nil && *t.IdempotencyKey == *in.IdempotencyKey {
			return uniqueViolation()
		}
	}
	v.m.state.txs[in.ID] = transactionFromInput(in, v.m.now())
	return nil
}

func (v memTxs) IdentifierTaken(_ context.Context, _ store.Getter, value string) (bool, error) {
	defer v.m.lock()()
	for _, t := range v.m.state.txs {
		if t.ExternalID == value || (t.ReferenceID != nil && *t.ReferenceID == value) {
			return true, nil
		}
	}
	return false, nil
}

func (v memTxs) GetByID(_ context.Context, transactionID string) (models.Transaction, error) {
	defer v.m.lock()()
	t, ok := v.m.state.txs[transactionID]
	if !ok {
		return models.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (v memTxs) GetForUpdate(ctx context.Context, _ store.Getter, transactionID string) (models.Transaction, error) {
	return v.GetByID(ctx, transactionID)
}

func (v memTxs) GetByIdempotencyKey(_ context.Context, _ store.Getter, key string) (models.Transaction, error) {
	defer v.m.lock()()
	for _, t := range v.m.state.txs {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			return t, nil
		}
	}
	return models.Transaction{}, sql.ErrNoRows
}

func (v memTxs) Review(_ context.Context, _ store.Execer, transactionID, from, to, adminID string, notes *string) (int64, error) {
	defer v.m.lock()()
	t, ok := v.m.state.txs[transactionID]
	if !ok || t.Status != from {
		return 0, nil
	}
	at := v.m.now()
	t.Status = to
	t.ApprovedBy = &adminID
	t.ApprovedAt = &at
	t.AdminNotes = notes
	v.m.state.txs[transactionID] = t
	return 1, nil
}

func (v memTxs) UpdateStatus(_ context.Context, _ store.Execer, transactionID, from, to string) (int64, error) {
	defer v.m.lock()()
	t, ok := v.m.state.txs[transactionID]
	if !ok || t.Status != from {
		return 0, nil
	}
	t.Status = to
	v.m.state.txs[transactionID] = t
	return 1, nil
}

func (v memTxs) LastApprovedWithdrawal(_ context.Context, _ store.Getter, userID string) (*time.Time, error) {
	defer v.m.lock()()
	var last *time.Time
	for _, t := range v.m.state.txs {
		if t.UserID != userID || t.Type != models.TxTypeWithdraw || t.Status != models.TxStatusApproved || t.ApprovedAt == nil {
			continue
		}
		if last == nil || t.ApprovedAt.After(*last) {
			at := *t.ApprovedAt
			last = &at
		}
	}
	return last, nil
}

func (v memTxs) List(_ context.Context, filter store.TransactionFilter) ([]models.Transaction, error) {
	defer v.m.lock()()
	var rows []models.Transaction
	for _, t := range v.m.state.txs {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		rows = append(rows, t)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExternalID < rows[j].ExternalID })
	return rows, nil
}

func (v memTxs) Count(ctx context.Context, filter store.TransactionFilter) (int, error) {
	rows, err := v.List(ctx, filter)
	return len(rows), err
}

func (v memTxs) ListPending(ctx context.Context, txType string) ([]store.PendingTransaction, error) {
	rows, err := v.List(ctx, store.TransactionFilter{Type: txType, Status: models.TxStatusPending})
	if err != nil {
		return nil, err
	}
	pending := make([]store.PendingTransaction, 0, len(rows))
	for _, t := range rows {
		pending = append(pending, store.PendingTransaction{Transaction: t})
	}
	return pending, nil
}

func (v memTxs) Stats(ctx context.Context) (store.TransactionStats, error) {
	deposits, _ := v.Count(ctx, store.TransactionFilter{Type: models.TxTypeAddCash, Status: models.TxStatusPending})
	withdrawals, _ := v.Count(ctx, store.TransactionFilter{Type: models.TxTypeWithdraw, Status: models.TxStatusPending})
	return store.TransactionStats{PendingDeposits: deposits, PendingWithdrawals: withdrawals}, nil
}

type memTournaments struct{ m *memStore }

func (v memTournaments) Create(_ context.Context, _ store.Execer, t models.Tournament) error {
	defer v.m.lock()()
	v.m.state.tournaments[t.ID] = t
	return nil
}

func (v memTournaments) Update(_ context.Context, _ store.Execer, t models.Tournament) (int64, error) {
	defer v.m.lock()()
	if _, ok := v.m.state.tournaments[t.ID]; !ok {
		return 0, nil
	}
	v.m.state.tournaments[t.ID] = t
	return 1, nil
}

func (v memTournaments) GetByID(_ context.Context, tournamentID string) (models.Tournament, error) {
	defer v.m.lock()()
	t, ok := v.m.state.tournaments[tournamentID]
	if !ok {
		return models.Tournament{}, sql.ErrNoRows
	}
	return t, nil
}

func (v memTournaments) GetBySlug(_ context.Context, slug string) (models.Tournament, error) {
	defer v.m.lock()()
	for _, t := range v.m.state.tournaments {
		if t.Slug == slug {
			return t, nil
		}
	}
	return models.Tournament{}, sql.ErrNoRows
}

func (v memTournaments) GetForUpdate(ctx context.Context, _ store.Getter, tournamentID string) (models.Tournament, error) {
	return v.GetByID(ctx, tournamentID)
}

func (v memTournaments) List(_ context.Context, filter store.TournamentFilter) ([]models.Tournament, error) {
	defer v.m.lock()()
	var rows []models.Tournament
	for _, t := range v.m.state.tournaments {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		rows = append(rows, t)
	}
	return rows, nil
}

func (v memTournaments) Count(ctx context.Context, filter store.TournamentFilter) (int, error) {
	rows, err := v.List(ctx, filter)
	return len(rows), err
}

func (v memTournaments) Active(ctx context.Context, limit int) ([]models.Tournament, error) {
	return v.List(ctx, store.TournamentFilter{Status: models.TournamentOpen})
}

func (v memTournaments) SetStatus(_ context.Context, _ store.Execer, tournamentID, from, to string, endTime *time.Time) (int64, error) {
	defer v.m.lock()()
	t, ok := v.m.state.tournaments[tournamentID]
	if !ok || t.Status != from {
		return 0, nil
	}
	t.Status = to
	if endTime != nil {
		t.EndTime = endTime
	}
	v.m.state.tournaments[tournamentID] = t
	return 1, nil
}

func (v memTournaments) IncrementRegistered(_ context.Context, _ store.Execer, tournamentID string) (int64, error) {
	defer v.m.lock()()
	t, ok := v.m.state.tournaments[tournamentID]
	if !ok || t.RegisteredPlayers >= t.MaxPlayers {
		return 0, nil
	}
	t.RegisteredPlayers++
	v.m.state.tournaments[tournamentID] = t
	return 1, nil
}

func (v memTournaments) DecrementRegistered(_ context.Context, _ store.Execer, tournamentID string) (int64, error) {
	defer v.m.lock()()
	t, ok := v.m.state.tournaments[tournamentID]
	if !ok || t.RegisteredPlayers <= 0 {
		return 0, nil
	}
	t.RegisteredPlayers--
	v.m.state.tournaments[tournamentID] = t
	return 1, nil
}

func (v memTournaments) Delete(_ context.Context, _ store.Execer, tournamentID string) (int64, error) {
	defer v.m.lock()()
	if _, ok := v.m.state.tournaments[tournamentID]; !ok {
		return 0, nil
	}
	delete(v.m.state.tournaments, tournamentID)
	return 1, nil
}

func (v memTournaments) CountByStatus(context.Context) ([]store.StatusCount, error) {
	defer v.m.lock()()
	counts := map[string]int{}
	for _, t := range v.m.state.tournaments {
		counts[t.Status]++
	}
	var rows []store.StatusCount
	for status, n := range counts {
		rows = append(rows, store.StatusCount{Status: status, Count: n})
	}
	return rows, nil
}

type memRegistrations struct{ m *memStore }

func (v memRegistrations) Create(_ context.Context, _ store.Execer, r models.Registration) error {
	defer v.m.lock()()
	for _, existing := range v.m.state.registrations {
		if existing.TournamentID != r.TournamentID {
			continue
		}
		if existing.UserID == r.UserID || existing.PlayerID == r.PlayerID {
			return uniqueViolation()
		}
	}
	v.m.state.registrations[r.ID] = r
	return nil
}

func (v memRegistrations) Exists(_ context.Context, _ store.Getter, tournamentID, userID, playerID string) (bool, error) {
	defer v.m.lock()()
	for _, r := range v.m.state.registrations {
		if r.TournamentID == tournamentID && (r.UserID == userID || r.PlayerID == playerID) {
			return true, nil
		}
	}
	return false, nil
}

func (v memRegistrations) GetByID(_ context.Context, registrationID string) (models.Registration, error) {
	defer v.m.lock()()
	r, ok := v.m.state.registrations[registrationID]
	if !ok {
		return models.Registration{}, sql.ErrNoRows
	}
	return r, nil
}

func (v memRegistrations) GetForUpdate(ctx context.Context, _ store.Getter, registrationID string) (models.Registration, error) {
	return v.GetByID(ctx, registrationID)
}

func (v memRegistrations) GetByUserAndTournament(_ context.Context, userID, tournamentID string) (models.Registration, error) {
	defer v.m.lock()()
	for _, r := range v.m.state.registrations {
		if r.UserID == userID && r.TournamentID == tournamentID {
			return r, nil
		}
	}
	return models.Registration{}, sql.ErrNoRows
}

func (v memRegistrations) ConfirmedByPlayer(_ context.Context, _ store.Getter, tournamentID, playerID string) (models.Registration, error) {
	defer v.m.lock()()
	for _, r := range v.m.state.registrations {
		if r.TournamentID == tournamentID && r.PlayerID == playerID && r.Status == models.RegistrationConfirmed {
			return r, nil
		}
	}
	return models.Registration{}, sql.ErrNoRows
}

func (v memRegistrations) HasConfirmed(ctx context.Context, userID, tournamentID string) (bool, error) {
	r, err := v.GetByUserAndTournament(ctx, userID, tournamentID)
	if err != nil {
		return false, nil
	}
	return r.Status == models.RegistrationConfirmed, nil
}

func (v memRegistrations) ConfirmedUserIDs(_ context.Context, tournamentID string) ([]string, error) {
	defer v.m.lock()()
	var ids []string
	for _, r := range v.m.state.registrations {
		if r.TournamentID == tournamentID && r.Status == models.RegistrationConfirmed {
			ids = append(ids, r.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (v memRegistrations) CountForTournament(_ context.Context, _ store.Getter, tournamentID string) (int, error) {
	defer v.m.lock()()
	n := 0
	for _, r := range v.m.state.registrations {
		if r.TournamentID == tournamentID {
			n++
		}
	}
	return n, nil
}

func (v memRegistrations) MarkPaid(_ context.Context, _ store.Execer, registrationID string, transactionID *string, entryFeePaid int64) (int64, error) {
	defer v.m.lock()()
	r, ok := v.m.state.registrations[registrationID]
	if !ok || r.Status != models.RegistrationPending {
		return 0, nil
	}
	if r.PaymentStatus != models.PaymentPending && r.PaymentStatus != models.PaymentFailed {
		return 0, nil
	}
	r.Status = models.RegistrationConfirmed
	r.PaymentStatus = models.PaymentPaid
	r.TransactionID = transactionID
	r.EntryFeePaid = entryFeePaid
	v.m.state.registrations[registrationID] = r
	return 1, nil
}

func (v memRegistrations) SetStatus(_ context.Context, _ store.Execer, registrationID, from, to string) (int64, error) {
	defer v.m.lock()()
	r, ok := v.m.state.registrations[registrationID]
	if !ok || r.Status != from {
		return 0, nil
	}
	r.Status = to
	v.m.state.registrations[registrationID] = r
	return 1, nil
}

func (v memRegistrations) SetPaymentStatus(_ context.Context, _ store.Execer, registrationID, from, to string) (int64, error) {
	defer v.m.lock()()
	r, ok := v.m.state.registrations[registrationID]
	if !ok || r.PaymentStatus != from {
		return 0, nil
	}
	r.PaymentStatus = to
	v.m.state.registrations[registrationID] = r
	return 1, nil
}

func (v memRegistrations) ListByUser(ctx context.Context, userID string) ([]store.RegistrationView, error) {
	defer v.m.lock()()
	var rows []store.RegistrationView
	for _, r := range v.m.state.registrations {
		if r.UserID == userID {
			rows = append(rows, store.RegistrationView{Registration: r})
		}
	}
	return rows, nil
}

func (v memRegistrations) List(_ context.Context, filter store.RegistrationFilter) ([]store.RegistrationView, error) {
	defer v.m.lock()()
	var rows []store.RegistrationView
	for _, r := range v.m.state.registrations {
		if filter.TournamentID != "" && r.TournamentID != filter.TournamentID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		rows = append(rows, store.RegistrationView{Registration: r})
	}
	return rows, nil
}

func (v memRegistrations) Count(ctx context.Context, filter store.RegistrationFilter) (int, error) {
	rows, err := v.List(ctx, filter)
	return len(rows), err
}

func (v memRegistrations) Stats(context.Context) (store.RegistrationStats, error) {
	defer v.m.lock()()
	var s store.RegistrationStats
	for _, r := range v.m.state.registrations {
		s.Total++
		switch r.Status {
		case models.RegistrationConfirmed:
			s.Confirmed++
		case models.RegistrationPending:
			s.Pending++
		case models.RegistrationCancelled:
			s.Cancelled++
		}
		if r.PaymentStatus == models.PaymentPaid {
			s.Revenue += r.EntryFeePaid
		}
	}
	return s, nil
}

type memWinners struct{ m *memStore }

func (v memWinners) CreateDeclaration(_ context.Context, _ store.Execer, d models.WinnerDeclaration) error {
	defer v.m.lock()()
	for _, existing := range v.m.state.declarations {
		if existing.TournamentID == d.TournamentID {
			return uniqueViolation()
		}
	}
	d.Winners = nil
	v.m.state.declarations[d.ID] = d
	return nil
}

func (v memWinners) InsertWinners(_ context.Context, _ store.Execer, winners []models.Winner) error {
	defer v.m.lock()()
	for _, w := range winners {
		v.m.state.winners[w.ID] = w
	}
	return nil
}

func (v memWinners) ReplaceWinners(_ context.Context, _ store.Execer, declarationID string, totalPrize int64, winners []models.Winner) error {
	defer v.m.lock()()
	for id, w := range v.m.state.winners {
		if w.DeclarationID == declarationID {
			delete(v.m.state.winners, id)
		}
	}
	for _, w := range winners {
		v.m.state.winners[w.ID] = w
	}
	d := v.m.state.declarations[declarationID]
	d.TotalPrize = totalPrize
	d.PaymentStatus = models.SettlementPending
	v.m.state.declarations[declarationID] = d
	return nil
}

// withWinners must be called with the lock held.
func (v memWinners) withWinners(d models.WinnerDeclaration) models.WinnerDeclaration {
	d.Winners = nil
	for _, w := range v.m.state.winners {
		if w.DeclarationID == d.ID {
			d.Winners = append(d.Winners, w)
		}
	}
	sort.Slice(d.Winners, func(i, j int) bool { return d.Winners[i].Rank < d.Winners[j].Rank })
	return d
}

func (v memWinners) GetByTournament(_ context.Context, tournamentID string) (models.WinnerDeclaration, error) {
	defer v.m.lock()()
	for _, d := range v.m.state.declarations {
		if d.TournamentID == tournamentID {
			return v.withWinners(d), nil
		}
	}
	return models.WinnerDeclaration{}, sql.ErrNoRows
}

func (v memWinners) GetByID(_ context.Context, declarationID string) (models.WinnerDeclaration, error) {
	defer v.m.lock()()
	d, ok := v.m.state.declarations[declarationID]
	if !ok {
		return models.WinnerDeclaration{}, sql.ErrNoRows
	}
	return v.withWinners(d), nil
}

func (v memWinners) LockByTournament(ctx context.Context, _ store.Getter, tournamentID string) (models.WinnerDeclaration, error) {
	return v.GetByTournament(ctx, tournamentID)
}

func (v memWinners) Winners(_ context.Context, _ store.Selecter, declarationID string) ([]models.Winner, error) {
	defer v.m.lock()()
	return v.withWinners(models.WinnerDeclaration{ID: declarationID}).Winners, nil
}

func (v memWinners) GetWinnerForUpdate(_ context.Context, _ store.Getter, winnerID string) (models.Winner, error) {
	defer v.m.lock()()
	w, ok := v.m.state.winners[winnerID]
	if !ok {
		return models.Winner{}, sql.ErrNoRows
	}
	return w, nil
}

func (v memWinners) MarkWinnerPaid(_ context.Context, _ store.Execer, winnerID, transactionID string) (int64, error) {
	defer v.m.lock()()
	w, ok := v.m.state.winners[winnerID]
	if !ok || w.PayoutStatus == models.PayoutPaid {
		return 0, nil
	}
	w.PayoutStatus = models.PayoutPaid
	w.PayoutTransactionID = &transactionID
	w.FailureReason = nil
	v.m.state.winners[winnerID] = w
	return 1, nil
}

func (v memWinners) MarkWinnerFailed(_ context.Context, _ store.Execer, winnerID, reason string) error {
	defer v.m.lock()()
	w, ok := v.m.state.winners[winnerID]
	if !ok || w.PayoutStatus == models.PayoutPaid {
		return nil
	}
	w.PayoutStatus = models.PayoutFailed
	w.FailureReason = &reason
	v.m.state.winners[winnerID] = w
	return nil
}

func (v memWinners) SetPaymentStatus(_ context.Context, _ store.Execer, declarationID, from, to string, processedAt time.Time) (int64, error) {
	defer v.m.lock()()
	d, ok := v.m.state.declarations[declarationID]
	if !ok || d.PaymentStatus != from {
		return 0, nil
	}
	d.PaymentStatus = to
	d.PaymentProcessedAt = &processedAt
	v.m.state.declarations[declarationID] = d
	return 1, nil
}

func (v memWinners) History(_ context.Context, page store.Page) ([]store.DeclarationView, error) {
	defer v.m.lock()()
	var rows []store.DeclarationView
	for _, d := range v.m.state.declarations {
		rows = append(rows, store.DeclarationView{WinnerDeclaration: v.withWinners(d)})
	}
	return rows, nil
}

func (v memWinners) Count(context.Context) (int, error) {
	defer v.m.lock()()
	return len(v.m.state.declarations), nil
}

func (v memWinners) UserIDs(_ context.Context, tournamentID *string) ([]string, error) {
	defer v.m.lock()()
	var ids []string
	for _, w := range v.m.state.winners {
		d := v.m.state.declarations[w.DeclarationID]
		if tournamentID != nil && d.TournamentID != *tournamentID {
			continue
		}
		ids = append(ids, w.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (v memWinners) Stats(context.Context) (store.SettlementStats, error) {
	return store.SettlementStats{}, nil
}
