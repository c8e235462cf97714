package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eduflow-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

type PaymentsFilter struct {
	Status    *string
	Method    *string
	StudentID *int64
	From      *time.Time
	To        *time.Time
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, assignment_id, amount_minor, method, transaction_ref, gateway_ref, status, paid_at, payer_name, payer_phone, payer_email, notes, failure_reason, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	var p domain.Payment
	var method, status string
	if err := row.Scan(
		&p.ID, &p.AssignmentID, &p.AmountMinor, &method, &p.TransactionRef,
		&p.GatewayRef, &status, &p.PaidAt, &p.PayerName, &p.PayerPhone,
		&p.PayerEmail, &p.Notes, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

// Initiate validates the assignment balance under a row lock and creates the
// payment in the same transaction, so two concurrent initiations cannot
// jointly overdraw the balance. Cash payments settle immediately inside the
// same transaction; everything else is left PENDING for the gateway leg.
func (r *PaymentRepository) Initiate(ctx context.Context, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	a, err := lockAssignment(ctx, tx, p.AssignmentID)
	if err != nil {
		return err
	}
	balance := a.BalanceMinor()
	if balance <= 0 {
		return domain.ErrAlreadySettled
	}
	if p.AmountMinor > balance {
		return domain.ErrInsufficientBalance
	}

	p.Status = domain.PaymentPending
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (assignment_id, amount_minor, method, transaction_ref, status, payer_name, payer_phone, payer_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.AssignmentID, p.AmountMinor, string(p.Method), p.TransactionRef,
		string(p.Status), p.PayerName, p.PayerPhone, p.PayerEmail, p.Notes,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	if p.Method == domain.MethodCash {
		if err := settlePaymentTx(ctx, tx, p, a, true, ""); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AttachGatewayRef records a successful gateway initiation: the payment moves
// to PROCESSING and an INITIATION transaction is appended, atomically.
func (r *PaymentRepository) AttachGatewayRef(ctx context.Context, paymentID int64, gatewayRef string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET gateway_ref = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		paymentID, gatewayRef, string(domain.PaymentProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (payment_id, gateway_ref, transaction_type, status, processed_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		paymentID, gatewayRef, string(domain.TxInitiation), string(domain.TxStatusSuccess),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkFailed records a gateway initiation failure. The assignment balance is
// untouched.
func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID int64, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1`,
		paymentID, string(domain.PaymentFailed), reason)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompleteByGatewayRef is the direct-callback completion path: it appends a
// CALLBACK transaction and settles the payment in one transaction.
func (r *PaymentRepository) CompleteByGatewayRef(ctx context.Context, gatewayRef string, success bool, rawResponse string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := lockPaymentByGatewayRef(ctx, tx, gatewayRef)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentCompleted {
		if err := callbackSettleTx(ctx, tx, p, success, rawResponse); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// WebhookArgs carries one verified, classified webhook delivery.
type WebhookArgs struct {
	PaymentID    int64
	GatewayTxID  string // gateway's transaction id; dedup key when non-empty
	RawPayload   string
	Status       domain.TransactionStatus
	ErrorMessage *string
	Dispatch     bool // classification was SUCCESS or FAILED
	Success      bool
}

// ProcessWebhook records the WEBHOOK transaction and, when the classification
// calls for it, settles the payment in the same DB transaction, so a crash
// can never leave the webhook marked processed without the balance credited.
// A second delivery of the same gateway transaction id hits the partial
// unique index and returns domain.ErrDuplicateWebhook.
func (r *PaymentRepository) ProcessWebhook(ctx context.Context, args WebhookArgs) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var gatewayTxID *string
	if args.GatewayTxID != "" {
		gatewayTxID = &args.GatewayTxID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (payment_id, gateway_ref, transaction_type, status, webhook_payload, processed_at, error_message)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)`,
		args.PaymentID, gatewayTxID, string(domain.TxWebhook),
		string(args.Status), args.RawPayload, args.ErrorMessage)
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateWebhook
	}
	if err != nil {
		return nil, err
	}

	p, err := lockPaymentByID(ctx, tx, args.PaymentID)
	if err != nil {
		return nil, err
	}

	// The terminal check must sit behind the row lock: two deliveries with
	// distinct gateway transaction ids both pass the dedup index, and only
	// the lock serializes the status read against a concurrent settlement.
	if args.Dispatch && p.Status != domain.PaymentCompleted {
		if err := callbackSettleTx(ctx, tx, p, args.Success, args.RawPayload); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// WebhookProcessed reports whether a WEBHOOK transaction already exists for
// the gateway transaction id. A fast-path check only; the unique index is
// what actually serializes concurrent deliveries.
func (r *PaymentRepository) WebhookProcessed(ctx context.Context, gatewayTxID string) (bool, error) {
	if gatewayTxID == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_transactions
			WHERE transaction_type = $1 AND gateway_ref = $2
		)`,
		string(domain.TxWebhook), gatewayTxID,
	).Scan(&exists)
	return exists, err
}

// Cancel terminally cancels a payment that has not completed. Completed
// payments must be refunded instead.
func (r *PaymentRepository) Cancel(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := lockPaymentByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentCompleted {
		return nil, domain.ErrInvalidState
	}

	p.Status = domain.PaymentCancelled
	p.FailureReason = &reason
	if err := updatePayment(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Refund reverses a completed payment atomically: a REFUND transaction is
// appended, the payment flips to REFUNDED, and the assignment is debited.
// WAIVED assignments keep their status; everything else recomputes.
func (r *PaymentRepository) Refund(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := lockPaymentByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentCompleted {
		return nil, domain.ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (payment_id, gateway_ref, transaction_type, status, gateway_response, processed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		p.ID, p.GatewayRef, string(domain.TxRefund), string(domain.TxStatusSuccess), reason,
	); err != nil {
		return nil, err
	}

	p.Status = domain.PaymentRefunded
	p.FailureReason = &reason
	if err := updatePayment(ctx, tx, p); err != nil {
		return nil, err
	}

	a, err := lockAssignment(ctx, tx, p.AssignmentID)
	if err != nil {
		return nil, err
	}
	a.AmountPaidMinor -= p.AmountMinor
	if a.AmountPaidMinor < 0 {
		a.AmountPaidMinor = 0
	}
	a.Recompute(time.Now())
	if err := updateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordQuery appends a QUERY transaction for a gateway status check.
func (r *PaymentRepository) RecordQuery(ctx context.Context, paymentID int64, gatewayRef string, success bool) error {
	status := domain.TxStatusSuccess
	if !success {
		status = domain.TxStatusFailed
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (payment_id, gateway_ref, transaction_type, status, processed_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		paymentID, gatewayRef, string(domain.TxQuery), string(status))
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *PaymentRepository) FindByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_ref = $1`, ref)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *PaymentRepository) FindByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_ref = $1`, ref)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *PaymentRepository) ListByAssignment(ctx context.Context, assignmentID int64) ([]domain.Payment, error) {
	return r.listWhere(ctx, `assignment_id = $1`, assignmentID)
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	base := `SELECT p.` + strings.ReplaceAll(paymentColumns, ", ", ", p.") + `
		FROM payments p
		JOIN student_fee_assignments a ON a.id = p.assignment_id`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.Status != nil {
		where = append(where, fmt.Sprintf("p.status = $%d", i))
		args = append(args, *f.Status)
		i++
	}
	if f.Method != nil {
		where = append(where, fmt.Sprintf("p.method = $%d", i))
		args = append(args, *f.Method)
		i++
	}
	if f.StudentID != nil {
		where = append(where, fmt.Sprintf("a.student_id = $%d", i))
		args = append(args, *f.StudentID)
		i++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("p.created_at >= $%d", i))
		args = append(args, *f.From)
		i++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("p.created_at <= $%d", i))
		args = append(args, *f.To)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) listWhere(ctx context.Context, cond string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+cond+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) ListTransactions(ctx context.Context, paymentID int64) ([]domain.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, gateway_ref, transaction_type, status, gateway_response, webhook_payload, processed_at, error_message
		FROM payment_transactions
		WHERE payment_id = $1
		ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentTransaction
	for rows.Next() {
		var t domain.PaymentTransaction
		var txType, status string
		if err := rows.Scan(
			&t.ID, &t.PaymentID, &t.GatewayRef, &txType, &status,
			&t.GatewayResponse, &t.WebhookPayload, &t.ProcessedAt, &t.ErrorMessage,
		); err != nil {
			return nil, err
		}
		t.TransactionType = domain.TransactionType(txType)
		t.Status = domain.TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// callbackSettleTx appends the CALLBACK transaction and settles the payment.
// Both the direct-callback and webhook paths run through here; no other code
// path moves a payment to COMPLETED/FAILED off a gateway result.
func callbackSettleTx(ctx context.Context, tx *sql.Tx, p *domain.Payment, success bool, rawResponse string) error {
	txStatus := domain.TxStatusSuccess
	if !success {
		txStatus = domain.TxStatusFailed
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (payment_id, gateway_ref, transaction_type, status, gateway_response, processed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		p.ID, p.GatewayRef, string(domain.TxCallback), string(txStatus), rawResponse,
	); err != nil {
		return err
	}

	failureReason := ""
	if !success {
		failureReason = "Payment declined by gateway"
	}

	a, err := lockAssignment(ctx, tx, p.AssignmentID)
	if err != nil {
		return err
	}
	return settlePaymentTx(ctx, tx, p, a, success, failureReason)
}

// settlePaymentTx is the single balance-mutation path: it flips the payment
// to its terminal state and, on success, credits the locked assignment.
func settlePaymentTx(ctx context.Context, tx *sql.Tx, p *domain.Payment, a *domain.FeeAssignment, success bool, failureReason string) error {
	now := time.Now()
	if success {
		p.Status = domain.PaymentCompleted
		p.PaidAt = &now
		if err := updatePayment(ctx, tx, p); err != nil {
			return err
		}
		a.AddPayment(p.AmountMinor, now)
		return updateAssignment(ctx, tx, a)
	}

	p.Status = domain.PaymentFailed
	p.FailureReason = &failureReason
	return updatePayment(ctx, tx, p)
}

func updatePayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, paid_at = $3, failure_reason = $4, updated_at = NOW()
		WHERE id = $1`,
		p.ID, string(p.Status), p.PaidAt, p.FailureReason)
	return err
}

func lockPaymentByID(ctx context.Context, tx *sql.Tx, id int64) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func lockPaymentByGatewayRef(ctx context.Context, tx *sql.Tx, ref string) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_ref = $1 FOR UPDATE`, ref)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
