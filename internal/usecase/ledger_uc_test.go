//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/onboarding"
)

type ledgerFixture struct {
	ledger    LedgerUseCase
	identity  IdentityUseCase
	entries   *memTransactionRepo
	customers *memCustomerRepo
	partnerID string
	customer  *model.Customer
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	partners := newMemPartnerRepo()
	customers := newMemCustomerRepo()
	entries := newMemTransactionRepo()
	tm := newMemTxManager()
	gen := onboarding.NewGenerator("join.loyalty.test")

	p, _, err := NewPartnerUseCase(partners, nopLogger()).Register(ctx, "Coffee Chain", "")
	if err != nil {
		t.Fatalf("register partner: %v", err)
	}
	identity := NewIdentityUseCase(partners, customers, gen, tm, nopLogger())
	c, err := identity.Onboard(ctx, p.ID, "cust-1", "Sam", "")
	if err != nil {
		t.Fatalf("onboard customer: %v", err)
	}
	uc := NewLedgerUseCase(customers, entries, tm, nopLogger())
	return &ledgerFixture{ledger: uc, identity: identity, entries: entries, customers: customers, partnerID: p.ID, customer: c}
}

func TestAwardAppendsEntryAndUpdatesBalance(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	txn, balance, err := f.ledger.Award(ctx, f.partnerID, "cust-1", 50, map[string]string{"purchase": "latte"})
	if err != nil {
		t.Fatalf("Award: %v", err)
	}
	if balance != 50 {
		t.Fatalf("balance = %d, want 50", balance)
	}
	if txn.Type != model.TransactionAward || txn.Points != 50 {
		t.Fatalf("unexpected entry: %+v", txn)
	}
	if txn.TransferID == "" {
		t.Fatal("expected a transfer id")
	}

	got, err := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
	if err != nil || got != 50 {
		t.Fatalf("GetBalance = (%d, %v), want (50, nil)", got, err)
	}
}

func TestAwardRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	for _, pts := range []int64{0, -10} {
		if _, _, err := f.ledger.Award(ctx, f.partnerID, "cust-1", pts, nil); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Award(%d): got %v, want ErrInvalidAmount", pts, err)
		}
	}
	if len(f.entries.entries) != 0 {
		t.Fatal("rejected award still appended a ledger entry")
	}
}

func TestAwardUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	if _, _, err := f.ledger.Award(ctx, f.partnerID, "nobody", 10, nil); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("got %v, want ErrCustomerNotFound", err)
	}
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	if _, _, err := f.ledger.Award(ctx, f.partnerID, "cust-1", 100, nil); err != nil {
		t.Fatalf("Award: %v", err)
	}

	t.Run("happy path", func(t *testing.T) {
		txn, balance, err := f.ledger.Redeem(ctx, f.partnerID, "cust-1", 30, "free drink", nil)
		if err != nil {
			t.Fatalf("Redeem: %v", err)
		}
		if balance != 70 {
			t.Fatalf("balance = %d, want 70", balance)
		}
		if txn.Points != -30 {
			t.Fatalf("entry points = %d, want -30", txn.Points)
		}
		if txn.Purpose != "free drink" {
			t.Fatalf("purpose = %q", txn.Purpose)
		}
	})

	t.Run("missing purpose", func(t *testing.T) {
		if _, _, err := f.ledger.Redeem(ctx, f.partnerID, "cust-1", 10, "  ", nil); !errors.Is(err, domain.ErrMissingPurpose) {
			t.Fatalf("got %v, want ErrMissingPurpose", err)
		}
	})

	t.Run("overdraft", func(t *testing.T) {
		before, _ := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
		_, _, err := f.ledger.Redeem(ctx, f.partnerID, "cust-1", before+1, "too much", nil)
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("got %v, want ErrInsufficientBalance", err)
		}
		after, _ := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
		if after != before {
			t.Fatalf("failed redeem changed the balance: %d -> %d", before, after)
		}
	})
}

func TestConcurrentAwardsAllLand(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.ledger.Award(ctx, f.partnerID, "cust-1", 5, nil); err != nil {
				t.Errorf("Award: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, err := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != workers*5 {
		t.Fatalf("balance = %d, want %d", balance, workers*5)
	}
	if len(f.entries.entries) != workers {
		t.Fatalf("ledger entries = %d, want %d", len(f.entries.entries), workers)
	}
}

func TestBalanceMatchesLedgerReplay(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	moves := []struct {
		points  int64
		redeem  bool
		purpose string
	}{
		{120, false, ""},
		{40, true, "voucher"},
		{15, false, ""},
		{60, true, "upgrade"},
	}
	for _, m := range moves {
		var err error
		if m.redeem {
			_, _, err = f.ledger.Redeem(ctx, f.partnerID, "cust-1", m.points, m.purpose, nil)
		} else {
			_, _, err = f.ledger.Award(ctx, f.partnerID, "cust-1", m.points, nil)
		}
		if err != nil {
			t.Fatalf("move %+v: %v", m, err)
		}
	}

	balance, err := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	replayed, err := f.entries.SumByUniversalID(ctx, nil, f.customer.UniversalID)
	if err != nil {
		t.Fatalf("SumByUniversalID: %v", err)
	}
	if balance != replayed {
		t.Fatalf("materialized balance %d diverged from ledger replay %d", balance, replayed)
	}
}

func TestHistoryNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	for i := 0; i < 5; i++ {
		if _, _, err := f.ledger.Award(ctx, f.partnerID, "cust-1", int64(i+1), nil); err != nil {
			t.Fatalf("Award: %v", err)
		}
	}

	hist, err := f.ledger.History(ctx, f.partnerID, "cust-1", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len = %d, want 3", len(hist))
	}
	if hist[0].Points != 5 {
		t.Fatalf("newest entry has %d points, want 5", hist[0].Points)
	}
}

func TestCustomersDoNotShareBalances(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	if _, err := f.identity.Onboard(ctx, f.partnerID, "cust-2", "", ""); err != nil {
		t.Fatalf("onboard second customer: %v", err)
	}

	var wg sync.WaitGroup
	for _, move := range []struct {
		ext string
		pts int64
	}{{"cust-1", 100}, {"cust-2", 40}, {"cust-1", 1}, {"cust-2", 2}} {
		wg.Add(1)
		go func(ext string, pts int64) {
			defer wg.Done()
			if _, _, err := f.ledger.Award(ctx, f.partnerID, ext, pts, nil); err != nil {
				t.Errorf("Award(%s): %v", ext, err)
			}
		}(move.ext, move.pts)
	}
	wg.Wait()

	b1, _ := f.ledger.GetBalance(ctx, f.partnerID, "cust-1")
	b2, _ := f.ledger.GetBalance(ctx, f.partnerID, "cust-2")
	if b1 != 101 || b2 != 42 {
		t.Fatalf("balances = (%d, %d), want (101, 42)", b1, b2)
	}
}
