//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// memPartnerRepo is a small in-memory implementation used by unit tests.
type memPartnerRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Partner
	saveErr error // used by tests to simulate save failures
}

func newMemPartnerRepo() *memPartnerRepo {
	return &memPartnerRepo{store: make(map[string]*model.Partner)}
}

func (r *memPartnerRepo) Save(_ context.Context, _ repository.Tx, p *model.Partner) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.store[p.ID] = &cp
	return nil
}

func (r *memPartnerRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPartnerRepo) List(_ context.Context, _ repository.Tx) ([]*model.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Partner, 0, len(r.store))
	for _, p := range r.store {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type custKey struct{ partnerID, externalID string }

// memCustomerRepo keys rows both by id and by the partner-scoped pair.
type memCustomerRepo struct {
	mu    sync.RWMutex
	byID  map[string]*model.Customer
	byExt map[custKey]string
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{
		byID:  make(map[string]*model.Customer),
		byExt: make(map[custKey]string),
	}
}

func (r *memCustomerRepo) Save(_ context.Context, _ repository.Tx, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	if existing, ok := r.byID[c.ID]; ok {
		// Upsert keeps the stored balance; Save never mutates it.
		cp.PointsBalance = existing.PointsBalance
	}
	r.byID[c.ID] = &cp
	r.byExt[custKey{c.PartnerID, c.ExternalCustomerID}] = c.ID
	return nil
}

func (r *memCustomerRepo) FindByExternalID(_ context.Context, _ repository.Tx, partnerID, externalCustomerID string) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExt[custKey{partnerID, externalCustomerID}]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *memCustomerRepo) FindByUniversalID(_ context.Context, _ repository.Tx, universalID string) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c.UniversalID == universalID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrCustomerNotFound
}

func (r *memCustomerRepo) AdjustBalance(_ context.Context, _ repository.Tx, customerID string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[customerID]
	if !ok {
		return 0, domain.ErrCustomerNotFound
	}
	if c.PointsBalance+delta < 0 {
		return 0, domain.ErrInsufficientBalance
	}
	c.PointsBalance += delta
	return c.PointsBalance, nil
}

func (r *memCustomerRepo) CountByPartner(_ context.Context, _ repository.Tx, partnerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.byID {
		if c.PartnerID == partnerID {
			n++
		}
	}
	return n, nil
}

type memTransactionRepo struct {
	mu      sync.RWMutex
	entries []*model.PointsTransaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{}
}

func (r *memTransactionRepo) Append(_ context.Context, _ repository.Tx, t *model.PointsTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memTransactionRepo) ListByCustomer(_ context.Context, _ repository.Tx, partnerID, externalCustomerID string, limit int) ([]*model.PointsTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.PointsTransaction
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if e.PartnerID == partnerID && e.ExternalCustomerID == externalCustomerID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) SumByUniversalID(_ context.Context, _ repository.Tx, universalID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.UniversalID == universalID {
			sum += e.Points
		}
	}
	return sum, nil
}

type memShadowRepo struct {
	mu     sync.RWMutex
	byExt  map[custKey]*model.ShadowAccount
	byCode map[string]*model.ShadowAccount
}

func newMemShadowRepo() *memShadowRepo {
	return &memShadowRepo{
		byExt:  make(map[custKey]*model.ShadowAccount),
		byCode: make(map[string]*model.ShadowAccount),
	}
}

func (r *memShadowRepo) Save(_ context.Context, _ repository.Tx, s *model.ShadowAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	if s.ClaimedAt != nil {
		t := *s.ClaimedAt
		cp.ClaimedAt = &t
	}
	r.byExt[custKey{s.PartnerID, s.ExternalCustomerID}] = &cp
	r.byCode[s.ClaimCode] = &cp
	return nil
}

func (r *memShadowRepo) FindByExternalID(_ context.Context, _ repository.Tx, partnerID, externalCustomerID string) (*model.ShadowAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byExt[custKey{partnerID, externalCustomerID}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memShadowRepo) FindByClaimCode(_ context.Context, _ repository.Tx, claimCode string) (*model.ShadowAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCode[claimCode]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memShadowRepo) ListByPartner(_ context.Context, _ repository.Tx, partnerID string) ([]*model.ShadowAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ShadowAccount
	for _, s := range r.byExt {
		if s.PartnerID == partnerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memTxManager runs the function directly and serializes callers per lock key
// with ordinary mutexes, mirroring the advisory-lock semantics closely enough
// for unit tests.
type memTxManager struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newMemTxManager() *memTxManager {
	return &memTxManager{locks: make(map[int64]*sync.Mutex)}
}

type memTxHandle struct {
	held []*sync.Mutex
	keys map[int64]bool
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	h := &memTxHandle{keys: make(map[int64]bool)}
	defer func() {
		// Locks release when the "transaction" ends, like advisory xact locks.
		for i := len(h.held) - 1; i >= 0; i-- {
			h.held[i].Unlock()
		}
	}()
	return fn(ctx, h)
}

func (m *memTxManager) Lock(_ context.Context, tx repository.Tx, key int64) error {
	h, _ := tx.(*memTxHandle)
	// Re-acquiring a key already held by this transaction is a no-op, same
	// as pg_advisory_xact_lock within one session.
	if h != nil && h.keys[key] {
		return nil
	}
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	if h != nil {
		h.held = append(h.held, l)
		h.keys[key] = true
	}
	return nil
}

var _ repository.PartnerRepository = (*memPartnerRepo)(nil)
var _ repository.CustomerRepository = (*memCustomerRepo)(nil)
var _ repository.TransactionRepository = (*memTransactionRepo)(nil)
var _ repository.ShadowAccountRepository = (*memShadowRepo)(nil)
var _ repository.TransactionManager = (*memTxManager)(nil)
