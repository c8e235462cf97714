package domain

import (
	"testing"
	"time"
)

var (
	due   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	today = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	late  = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

func newAssignment(amount, discount, paid int64) *FeeAssignment {
	a := &FeeAssignment{
		AmountMinor:     amount,
		DiscountMinor:   discount,
		AmountPaidMinor: paid,
		DueDate:         due,
		Status:          FeeStatusPending,
	}
	a.Recompute(today)
	return a
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		paid, net int64
		today     time.Time
		want      FeeStatus
	}{
		{"unpaid before due", 0, 50000, today, FeeStatusPending},
		{"unpaid after due", 0, 50000, late, FeeStatusOverdue},
		{"partially paid", 20000, 50000, today, FeeStatusPartial},
		{"partially paid after due", 20000, 50000, late, FeeStatusPartial},
		{"exactly paid", 50000, 50000, today, FeeStatusPaid},
		{"overpaid", 60000, 50000, today, FeeStatusPaid},
		{"net amount zero", 0, 0, today, FeeStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusFor(tt.paid, tt.net, due, tt.today)
			if got != tt.want {
				t.Fatalf("expected %s; got %s", tt.want, got)
			}
		})
	}
}

func TestBalanceInvariant(t *testing.T) {
	a := newAssignment(50000, 5000, 20000)
	if got := a.NetAmountMinor(); got != 45000 {
		t.Fatalf("expected net 45000; got %d", got)
	}
	if got := a.BalanceMinor(); got != 25000 {
		t.Fatalf("expected balance 25000; got %d", got)
	}
}

func TestFullCashPayment(t *testing.T) {
	// amount=500.00, no discount; pay 500.00
	a := newAssignment(50000, 0, 0)
	a.AddPayment(50000, today)

	if a.Status != FeeStatusPaid {
		t.Fatalf("expected PAID; got %s", a.Status)
	}
	if a.BalanceMinor() != 0 {
		t.Fatalf("expected zero balance; got %d", a.BalanceMinor())
	}
}

func TestPartialThenFullPayment(t *testing.T) {
	a := newAssignment(50000, 0, 0)

	a.AddPayment(20000, today)
	if a.Status != FeeStatusPartial {
		t.Fatalf("expected PARTIAL; got %s", a.Status)
	}
	if a.BalanceMinor() != 30000 {
		t.Fatalf("expected balance 30000; got %d", a.BalanceMinor())
	}

	a.AddPayment(30000, today)
	if a.Status != FeeStatusPaid {
		t.Fatalf("expected PAID; got %s", a.Status)
	}
	if a.BalanceMinor() != 0 {
		t.Fatalf("expected zero balance; got %d", a.BalanceMinor())
	}
}

func TestFullDiscountDrivesStatusToPaid(t *testing.T) {
	a := newAssignment(50000, 0, 0)
	a.DiscountMinor = a.AmountMinor
	a.Recompute(today)

	if a.Status != FeeStatusPaid {
		t.Fatalf("expected PAID with zero net amount; got %s", a.Status)
	}
}

func TestWaivedIsSticky(t *testing.T) {
	a := newAssignment(50000, 0, 0)
	a.Waive("scholarship")

	if a.Status != FeeStatusWaived {
		t.Fatalf("expected WAIVED; got %s", a.Status)
	}
	if a.BalanceMinor() != 0 {
		t.Fatalf("expected zero balance after waiver; got %d", a.BalanceMinor())
	}

	// a late-arriving payment is still credited but must not clear the waiver
	a.AddPayment(10000, today)
	if a.Status != FeeStatusWaived {
		t.Fatalf("expected WAIVED to survive late payment; got %s", a.Status)
	}
	if a.AmountPaidMinor != 10000 {
		t.Fatalf("expected late payment recorded; got %d", a.AmountPaidMinor)
	}
}

func TestOverdueIsNotSticky(t *testing.T) {
	a := newAssignment(50000, 0, 0)
	a.Recompute(late)
	if a.Status != FeeStatusOverdue {
		t.Fatalf("expected OVERDUE; got %s", a.Status)
	}

	// a payment pulls it back out of OVERDUE
	a.AddPayment(10000, late)
	if a.Status != FeeStatusPartial {
		t.Fatalf("expected PARTIAL; got %s", a.Status)
	}
}
