package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
	"github.com/shopspring/decimal"
)

const buyerAddr = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1111"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteAffordable(t *testing.T) {
	desk := NewDesk(store.NewMemory(nil))

	q, err := desk.QuoteFor(dec("10"), dec("50.00"))
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !q.CanAfford {
		t.Fatalf("quote not affordable: %+v", q)
	}
	if !q.TotalCost.Equal(dec("500.00")) {
		t.Fatalf("total=%s want 500.00", q.TotalCost)
	}
	if !q.Shortfall.IsZero() {
		t.Fatalf("shortfall=%s want 0", q.Shortfall)
	}
}

func TestQuoteShortfallIsExact(t *testing.T) {
	desk := NewDesk(store.NewMemory(nil))

	// 40 tokens at 50.00 against the 1500.00 starting balance
	q, err := desk.QuoteFor(dec("40"), dec("50.00"))
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if q.CanAfford {
		t.Fatalf("quote affordable: %+v", q)
	}
	if !q.TotalCost.Equal(dec("2000.00")) {
		t.Fatalf("total=%s want 2000.00", q.TotalCost)
	}
	if !q.Shortfall.Equal(dec("500.00")) {
		t.Fatalf("shortfall=%s want exactly 500.00", q.Shortfall)
	}
}

func TestQuoteRejectsNonPositiveInputs(t *testing.T) {
	desk := NewDesk(store.NewMemory(nil))

	if _, err := desk.QuoteFor(dec("0"), dec("50.00")); !errors.Is(err, ErrBadAmount) {
		t.Fatalf("err=%v want ErrBadAmount", err)
	}
	if _, err := desk.QuoteFor(dec("-5"), dec("50.00")); !errors.Is(err, ErrBadAmount) {
		t.Fatalf("err=%v want ErrBadAmount", err)
	}
	if _, err := desk.QuoteFor(dec("10"), dec("0")); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("err=%v want ErrBadPrice", err)
	}
}

func TestBuyDebitsBalanceAndRecordsActivity(t *testing.T) {
	st := store.NewMemory(nil)
	desk := NewDesk(st)
	ctx := context.Background()

	q, err := desk.Buy(ctx, buyerAddr, "BTC", dec("10"), dec("50.00"))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if !q.Balance.Equal(dec("1000.00")) {
		t.Fatalf("balance=%s want 1000.00", q.Balance)
	}
	if !desk.Balance().Equal(dec("1000.00")) {
		t.Fatalf("desk balance=%s want 1000.00", desk.Balance())
	}

	entries, err := st.ListRecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != models.ActivityBuy {
		t.Fatalf("activity=%+v", entries)
	}
	if entries[0].Amount == nil || *entries[0].Amount != 10 {
		t.Fatalf("amount=%v want 10", entries[0].Amount)
	}
}

func TestBuyRejectsBeyondBalance(t *testing.T) {
	st := store.NewMemory(nil)
	desk := NewDesk(st)
	ctx := context.Background()

	q, err := desk.Buy(ctx, buyerAddr, "BTC", dec("40"), dec("50.00"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if !q.Shortfall.Equal(dec("500.00")) {
		t.Fatalf("shortfall=%s want 500.00", q.Shortfall)
	}
	// A failed buy leaves the balance and the feed untouched
	if !desk.Balance().Equal(DefaultBalance) {
		t.Fatalf("balance=%s want %s", desk.Balance(), DefaultBalance)
	}
	entries, _ := st.ListRecentActivity(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("activity=%+v want none", entries)
	}
}

func TestBuySpendsDownToZero(t *testing.T) {
	desk := NewDesk(store.NewMemory(nil))
	ctx := context.Background()

	// Quick-amount sizes drain the balance exactly
	for _, amount := range []string{"500", "500", "500"} {
		if _, err := desk.Buy(ctx, buyerAddr, "ETH", dec(amount), dec("1.00")); err != nil {
			t.Fatalf("buy %s failed: %v", amount, err)
		}
	}
	if !desk.Balance().IsZero() {
		t.Fatalf("balance=%s want 0", desk.Balance())
	}
	if _, err := desk.Buy(ctx, buyerAddr, "ETH", dec("1"), dec("1.00")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
}
