package domain

import "time"

type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPartial FeeStatus = "PARTIAL"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusOverdue FeeStatus = "OVERDUE"
	FeeStatusWaived  FeeStatus = "WAIVED"
)

// FeeAssignment binds a fee to a student for an academic year and owns the
// authoritative "what is owed" state. Rows are never deleted, only
// status-transitioned. Unique per (student, fee, academic year).
type FeeAssignment struct {
	ID              int64
	StudentID       int64
	FeeID           int64
	AcademicYear    string
	DueDate         time.Time
	AmountMinor     int64
	DiscountMinor   int64
	DiscountReason  *string
	AmountPaidMinor int64
	Status          FeeStatus

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func (a *FeeAssignment) NetAmountMinor() int64 {
	return a.AmountMinor - a.DiscountMinor
}

func (a *FeeAssignment) BalanceMinor() int64 {
	return a.NetAmountMinor() - a.AmountPaidMinor
}

// StatusFor computes the fee status from scratch. It is a pure function of its
// inputs; callers pass "today" explicitly so the overdue check is testable.
func StatusFor(amountPaid, netAmount int64, dueDate, today time.Time) FeeStatus {
	switch {
	case amountPaid >= netAmount:
		return FeeStatusPaid
	case amountPaid > 0:
		return FeeStatusPartial
	case today.After(dueDate):
		return FeeStatusOverdue
	default:
		return FeeStatusPending
	}
}

// Recompute re-derives Status from the current paid/net amounts. WAIVED is
// terminal: once an assignment is waived no later mutation may change its
// status, even if a late payment still credits AmountPaidMinor.
func (a *FeeAssignment) Recompute(today time.Time) {
	if a.Status == FeeStatusWaived {
		return
	}
	a.Status = StatusFor(a.AmountPaidMinor, a.NetAmountMinor(), a.DueDate, today)
}

// AddPayment credits a completed payment against the assignment and
// recomputes the status. This is the only mutation path for AmountPaidMinor.
func (a *FeeAssignment) AddPayment(amountMinor int64, today time.Time) {
	a.AmountPaidMinor += amountMinor
	a.Recompute(today)
}

// Waive writes off the full remaining amount. Sets the discount to the gross
// amount so the balance reads zero, and pins the status to WAIVED.
func (a *FeeAssignment) Waive(reason string) {
	a.DiscountMinor = a.AmountMinor
	a.DiscountReason = &reason
	a.Status = FeeStatusWaived
}
