package domain

import "time"

type TransactionType string

const (
	TxInitiation TransactionType = "INITIATION"
	TxCallback   TransactionType = "CALLBACK"
	TxWebhook    TransactionType = "WEBHOOK"
	TxQuery      TransactionType = "QUERY"
	TxRefund     TransactionType = "REFUND"
)

type TransactionStatus string

const (
	TxStatusPending TransactionStatus = "PENDING"
	TxStatusSuccess TransactionStatus = "SUCCESS"
	TxStatusFailed  TransactionStatus = "FAILED"
	TxStatusTimeout TransactionStatus = "TIMEOUT"
)

// PaymentTransaction is one row of the append-only gateway audit trail. Rows
// are never mutated after insertion. For WEBHOOK rows GatewayRef holds the
// gateway's transaction id and is unique, which is what makes webhook
// processing idempotent.
type PaymentTransaction struct {
	ID              int64
	PaymentID       int64
	GatewayRef      *string
	TransactionType TransactionType
	Status          TransactionStatus
	GatewayResponse *string
	WebhookPayload  *string
	ProcessedAt     time.Time
	ErrorMessage    *string
}
