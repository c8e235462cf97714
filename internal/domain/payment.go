package domain

import "time"

type PaymentMethod string

const (
	MethodCash              PaymentMethod = "CASH"
	MethodBankTransfer      PaymentMethod = "BANK_TRANSFER"
	MethodMobileMoneyMTN    PaymentMethod = "MOBILE_MONEY_MTN"
	MethodMobileMoneyAirtel PaymentMethod = "MOBILE_MONEY_AIRTEL"
	MethodMobileMoneyZamtel PaymentMethod = "MOBILE_MONEY_ZAMTEL"
	MethodVisa              PaymentMethod = "VISA"
	MethodMastercard        PaymentMethod = "MASTERCARD"
	MethodCheque            PaymentMethod = "CHEQUE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoneyMTN, MethodMobileMoneyAirtel,
		MethodMobileMoneyZamtel, MethodVisa, MethodMastercard, MethodCheque:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Payment is one attempt to satisfy part of an assignment's balance.
// TransactionRef is generated locally and immutable once set; GatewayRef is
// assigned by the external processor for electronic methods.
type Payment struct {
	ID             int64
	AssignmentID   int64
	AmountMinor    int64
	Method         PaymentMethod
	TransactionRef string
	GatewayRef     *string
	Status         PaymentStatus
	PaidAt         *time.Time
	PayerName      *string
	PayerPhone     *string
	PayerEmail     *string
	Notes          *string
	FailureReason  *string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
