// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func ptr[T any](v T) *T { return &v }

// ---- in-memory store shared by the repositories below ----

// memStore keeps every table in memory. Transactions opened through
// memTxManager are serialised and rolled back on error.
type memStore struct {
	txMu sync.Mutex

	mu    sync.Mutex
	lots  map[string]*model.CreditLot
	subs  map[string]*model.UserSubscription
	plans map[string]*model.SubscriptionPlan
	usage []*model.UsageRecord
}

func newMemStore() *memStore {
	return &memStore{
		lots:  map[string]*model.CreditLot{},
		subs:  map[string]*model.UserSubscription{},
		plans: map[string]*model.SubscriptionPlan{},
	}
}

type memSnapshot struct {
	lots  map[string]model.CreditLot
	subs  map[string]model.UserSubscription
	usage []*model.UsageRecord
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		lots:  make(map[string]model.CreditLot, len(s.lots)),
		subs:  make(map[string]model.UserSubscription, len(s.subs)),
		usage: append([]*model.UsageRecord(nil), s.usage...),
	}
	for k, v := range s.lots {
		snap.lots[k] = *v
	}
	for k, v := range s.subs {
		snap.subs[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots = make(map[string]*model.CreditLot, len(snap.lots))
	for k, v := range snap.lots {
		cp := v
		s.lots[k] = &cp
	}
	s.subs = make(map[string]*model.UserSubscription, len(snap.subs))
	for k, v := range snap.subs {
		cp := v
		s.subs[k] = &cp
	}
	s.usage = snap.usage
}

// seedLot stores a copy of lot as-is.
func (s *memStore) seedLot(lot *model.CreditLot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lot
	s.lots[lot.ID] = &cp
}

func (s *memStore) lot(id string) model.CreditLot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.lots[id]
}

func (s *memStore) lotsOf(userID string) []*model.CreditLot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.CreditLot
	for _, l := range s.lots {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	model.SortLots(out)
	return out
}

func (s *memStore) records() []*model.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.UsageRecord(nil), s.usage...)
}

// ---- Transaction manager & locker ----

type memTxManager struct {
	store *memStore
	calls atomic.Int32
}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls.Add(1)
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(ctx, "mem-tx"); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type mockLocker struct {
	mu     sync.Mutex
	locked []string
	Err    error
}

var _ repository.UserLocker = (*mockLocker)(nil)

func (l *mockLocker) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if l.Err != nil {
		return l.Err
	}
	if tx == repository.NoTX {
		return domain.ErrInvalidExecContext
	}
	l.mu.Lock()
	l.locked = append(l.locked, userID)
	l.mu.Unlock()
	return nil
}

// ---- Credit repository ----

type memCreditRepo struct {
	s *memStore

	ListUsableErr      error
	IncrementUsedFunc  func(lotID string, delta int64) error
	InsertErr          error
	listForUpdateCalls atomic.Int32
}

var _ repository.CreditRepository = (*memCreditRepo)(nil)

func (r *memCreditRepo) Insert(ctx context.Context, tx repository.Tx, lot *model.CreditLot) error {
	if r.InsertErr != nil {
		return r.InsertErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lots[lot.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *lot
	r.s.lots[lot.ID] = &cp
	return nil
}

func (r *memCreditRepo) ListUsableByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time, forUpdate bool) ([]*model.CreditLot, error) {
	if r.ListUsableErr != nil {
		return nil, r.ListUsableErr
	}
	if forUpdate {
		if tx == repository.NoTX {
			return nil, domain.ErrInvalidExecContext
		}
		r.listForUpdateCalls.Add(1)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.CreditLot
	for _, l := range r.s.lots {
		if l.UserID == userID && l.IsUsable(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	model.SortLots(out)
	return out, nil
}

func (r *memCreditRepo) IncrementUsed(ctx context.Context, tx repository.Tx, lotID string, delta int64, now time.Time) error {
	if r.IncrementUsedFunc != nil {
		if err := r.IncrementUsedFunc(lotID, delta); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[lotID]
	if !ok {
		return domain.ErrNotFound
	}
	if l.Used+delta > l.Amount {
		return domain.ErrOperationFailed
	}
	l.Used += delta
	l.UpdatedAt = now
	return nil
}

func (r *memCreditRepo) CountByUserAndType(ctx context.Context, tx repository.Tx, userID string, t model.CreditType) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.lots {
		if l.UserID == userID && l.Type == t {
			n++
		}
	}
	return n, nil
}

func (r *memCreditRepo) Deactivate(ctx context.Context, tx repository.Tx, lotID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[lotID]
	if !ok {
		return domain.ErrNotFound
	}
	l.IsActive = false
	l.UpdatedAt = now
	return nil
}

// ---- Usage repository ----

type memUsageRepo struct {
	s *memStore

	InsertFunc   func(rec *model.UsageRecord) error
	AggregateErr error
}

var _ repository.UsageRepository = (*memUsageRepo)(nil)

func (r *memUsageRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.UsageRecord) error {
	if r.InsertFunc != nil {
		if err := r.InsertFunc(rec); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *rec
	r.s.usage = append(r.s.usage, &cp)
	return nil
}

func (r *memUsageRepo) Aggregate(ctx context.Context, tx repository.Tx, userID string) (model.UsageAggregate, error) {
	if r.AggregateErr != nil {
		return model.UsageAggregate{}, r.AggregateErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var agg model.UsageAggregate
	for _, rec := range r.s.usage {
		if rec.UserID == userID {
			agg.TotalCreditsUsed += rec.CreditsUsed
			agg.TotalRecords++
		}
	}
	return agg, nil
}

func (r *memUsageRepo) CountByAction(ctx context.Context, tx repository.Tx, userID string, action model.UsageAction) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, rec := range r.s.usage {
		if rec.UserID == userID && rec.Action == action {
			n++
		}
	}
	return n, nil
}

// ---- Subscription repository ----

type memSubRepo struct {
	s *memStore

	FindActiveErr error
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func (r *memSubRepo) Save(ctx context.Context, tx repository.Tx, sub *model.UserSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub.Status == model.SubscriptionStatusActive {
		for _, other := range r.s.subs {
			if other.ID != sub.ID && other.UserID == sub.UserID && other.Status == model.SubscriptionStatusActive {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *sub
	cp.Plan = nil
	r.s.subs[sub.ID] = &cp
	return nil
}

func (r *memSubRepo) withPlan(sub *model.UserSubscription) *model.UserSubscription {
	cp := *sub
	if p, ok := r.s.plans[sub.PlanID]; ok {
		pc := *p
		cp.Plan = &pc
	}
	return &cp
}

func (r *memSubRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.UserSubscription, error) {
	if r.FindActiveErr != nil {
		return nil, r.FindActiveErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.UserID == userID && sub.IsActiveAt(now) {
			return r.withPlan(sub), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.UserSubscription
	for _, sub := range r.s.subs {
		if sub.UserID == userID {
			all = append(all, sub)
		}
	}
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return r.withPlan(all[0]), nil
}

func (r *memSubRepo) ExpireStale(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sub := range r.s.subs {
		if sub.Status == model.SubscriptionStatusActive && sub.CurrentPeriodEnd.Before(now) {
			sub.Status = model.SubscriptionStatusExpired
			sub.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memSubRepo) ExpireStaleByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sub := range r.s.subs {
		if sub.UserID == userID && sub.Status == model.SubscriptionStatusActive && sub.CurrentPeriodEnd.Before(now) {
			sub.Status = model.SubscriptionStatusExpired
			sub.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memSubRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, sub := range r.s.subs {
		out[sub.Status]++
	}
	return out, nil
}

func (r *memSubRepo) get(id string) model.UserSubscription {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return *r.s.subs[id]
}

// ---- Plan repository ----

type memPlanRepo struct {
	s *memStore
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

func (r *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.plans[p.ID] = &cp
	return nil
}

func (r *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range r.s.plans {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

// ---- Providers ----

type MockTextGenerator struct {
	GenerateFunc func(ctx context.Context, p adapter.Prompt) (adapter.Generation, error)
	calls        atomic.Int32
}

func (m *MockTextGenerator) Name() string { return "mock" }

func (m *MockTextGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, p)
	}
	return adapter.Generation{Text: "A great product.", Provider: "mock", Model: "mock-1"}, nil
}

type MockBackgroundRemover struct {
	RemoveFunc func(ctx context.Context, img adapter.Image) (adapter.Image, error)
	calls      atomic.Int32
}

func (m *MockBackgroundRemover) RemoveBackground(ctx context.Context, img adapter.Image) (adapter.Image, error) {
	m.calls.Add(1)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, img)
	}
	return adapter.Image{Filename: "out.png", ContentType: "image/png", Data: []byte("png")}, nil
}

// ---- fixture ----

type fixture struct {
	store   *memStore
	tm      *memTxManager
	locker  *mockLocker
	credits *memCreditRepo
	usage   *memUsageRepo
	subs    *memSubRepo
	plans   *memPlanRepo
}

func newFixture() *fixture {
	s := newMemStore()
	return &fixture{
		store:   s,
		tm:      &memTxManager{store: s},
		locker:  &mockLocker{},
		credits: &memCreditRepo{s: s},
		usage:   &memUsageRepo{s: s},
		subs:    &memSubRepo{s: s},
		plans:   &memPlanRepo{s: s},
	}
}

// lot builds a seeded lot with deterministic timestamps.
func (f *fixture) lot(id, userID string, t model.CreditType, amount, used int64, expiresAt *time.Time) *model.CreditLot {
	l := &model.CreditLot{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Used:      used,
		Type:      t,
		ExpiresAt: expiresAt,
		IsActive:  true,
		CreatedAt: baseTime.Add(-48 * time.Hour),
		UpdatedAt: baseTime.Add(-48 * time.Hour),
	}
	f.store.seedLot(l)
	return l
}

func (f *fixture) proPlan() *model.SubscriptionPlan {
	p := &model.SubscriptionPlan{
		ID:              "plan-pro",
		Name:            "Pro",
		CreditsIncluded: 100,
		PeriodDays:      30,
		PriceCents:      1700,
		Active:          true,
		CreatedAt:       baseTime.Add(-720 * time.Hour),
	}
	_ = f.plans.Save(context.Background(), repository.NoTX, p)
	return p
}

func (f *fixture) activeSub(id, userID string, plan *model.SubscriptionPlan, end time.Time) *model.UserSubscription {
	s := &model.UserSubscription{
		ID:                 id,
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: end.Add(-plan.Period()),
		CurrentPeriodEnd:   end,
		CreatedAt:          end.Add(-plan.Period()),
		UpdatedAt:          end.Add(-plan.Period()),
	}
	_ = f.subs.Save(context.Background(), repository.NoTX, s)
	return s
}
