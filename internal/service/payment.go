package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"eduflow-backend/internal/clients"
	"eduflow-backend/internal/domain"
	"eduflow-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type PaymentStore interface {
	Initiate(ctx context.Context, p *domain.Payment) error
	AttachGatewayRef(ctx context.Context, paymentID int64, gatewayRef string) error
	MarkFailed(ctx context.Context, paymentID int64, reason string) error
	CompleteByGatewayRef(ctx context.Context, gatewayRef string, success bool, rawResponse string) (*domain.Payment, error)
	ProcessWebhook(ctx context.Context, args repository.WebhookArgs) (*domain.Payment, error)
	WebhookProcessed(ctx context.Context, gatewayTxID string) (bool, error)
	Cancel(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error)
	Refund(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error)
	RecordQuery(ctx context.Context, paymentID int64, gatewayRef string, success bool) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	FindByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error)
	FindByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error)
	ListByAssignment(ctx context.Context, assignmentID int64) ([]domain.Payment, error)
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	ListTransactions(ctx context.Context, paymentID int64) ([]domain.PaymentTransaction, error)
}

type PaymentGateway interface {
	Initiate(ctx context.Context, p *domain.Payment) (string, error)
	Verify(ctx context.Context, gatewayRef string) (bool, error)
	Refund(ctx context.Context, gatewayRef string, amountMinor int64) error
}

type PaymentService struct {
	repo    PaymentStore
	gateway PaymentGateway
	redis   *clients.RedisClient
	storage ExportStorage
	ws      *clients.WebSocketClient
}

func NewPaymentService(
	repo PaymentStore,
	gateway PaymentGateway,
	redis *clients.RedisClient,
	storage ExportStorage,
	ws *clients.WebSocketClient,
) *PaymentService {
	return &PaymentService{
		repo:    repo,
		gateway: gateway,
		redis:   redis,
		storage: storage,
		ws:      ws,
	}
}

// NewTransactionRef mints the merchant-side payment reference: "PAY", the
// unix millisecond timestamp, and six random uppercase characters.
func NewTransactionRef() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("PAY%d%s", time.Now().UnixMilli(), suffix)
}

type InitiatePaymentInput struct {
	AssignmentID int64
	AmountMinor  int64
	Method       string
	PayerName    *string
	PayerPhone   *string
	PayerEmail   *string
	Notes        *string
}

// InitiatePayment records the payment and, for electronic methods, registers
// it with the gateway. Cash settles immediately. A gateway initiation failure
// is not an error to the caller: the payment comes back FAILED with the
// reason attached and the assignment balance untouched.
func (s *PaymentService) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (*domain.Payment, error) {
	method := domain.PaymentMethod(in.Method)
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidArgument, in.Method)
	}
	if in.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidArgument)
	}

	p := &domain.Payment{
		AssignmentID:   in.AssignmentID,
		AmountMinor:    in.AmountMinor,
		Method:         method,
		TransactionRef: NewTransactionRef(),
		PayerName:      in.PayerName,
		PayerPhone:     in.PayerPhone,
		PayerEmail:     in.PayerEmail,
		Notes:          in.Notes,
	}

	if err := s.repo.Initiate(ctx, p); err != nil {
		return nil, err
	}

	if method == domain.MethodCash {
		if s.ws != nil {
			_ = s.ws.NotifyPaymentCompleted(ctx, p)
		}
		return p, nil
	}

	gatewayRef, err := s.gateway.Initiate(ctx, p)
	if err != nil {
		reason := fmt.Sprintf("Gateway initiation failed: %v", err)
		if markErr := s.repo.MarkFailed(ctx, p.ID, reason); markErr != nil {
			log.Printf("payment %d: mark failed error: %v", p.ID, markErr)
		}
		p.Status = domain.PaymentFailed
		p.FailureReason = &reason
		if s.ws != nil {
			_ = s.ws.NotifyPaymentFailed(ctx, p)
		}
		return p, nil
	}

	if err := s.repo.AttachGatewayRef(ctx, p.ID, gatewayRef); err != nil {
		return nil, err
	}
	p.GatewayRef = &gatewayRef
	p.Status = domain.PaymentProcessing
	return p, nil
}

// ProcessCallback settles a payment off the gateway's synchronous callback.
func (s *PaymentService) ProcessCallback(ctx context.Context, gatewayRef string, success bool, rawResponse string) (*domain.Payment, error) {
	p, err := s.repo.CompleteByGatewayRef(ctx, gatewayRef, success, rawResponse)
	if err != nil {
		return nil, err
	}
	s.notifySettled(ctx, p)
	return p, nil
}

// VerifyPayment queries the gateway for the authoritative status of a
// PROCESSING payment and records the check in the transaction log. A mismatch
// settles the payment the same way a callback would.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.GatewayRef == nil {
		return nil, fmt.Errorf("%w: payment %d has no gateway reference", domain.ErrInvalidState, p.ID)
	}

	ok, err := s.gateway.Verify(ctx, *p.GatewayRef)
	if err != nil {
		return nil, err
	}
	if recErr := s.repo.RecordQuery(ctx, p.ID, *p.GatewayRef, ok); recErr != nil {
		log.Printf("payment %d: record query error: %v", p.ID, recErr)
	}

	if p.Status == domain.PaymentProcessing && ok {
		return s.ProcessCallback(ctx, *p.GatewayRef, true, `{"source":"verify"}`)
	}
	return p, nil
}

func (s *PaymentService) CancelPayment(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by administrator"
	}
	return s.repo.Cancel(ctx, paymentID, reason)
}

// RefundPayment reverses a completed payment: the gateway refund goes out
// first, then the local reversal debits the assignment.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentCompleted {
		return nil, fmt.Errorf("%w: only completed payments can be refunded", domain.ErrInvalidState)
	}

	if p.GatewayRef != nil {
		if err := s.gateway.Refund(ctx, *p.GatewayRef, p.AmountMinor); err != nil {
			return nil, err
		}
	}
	return s.repo.Refund(ctx, paymentID, reason)
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PaymentService) GetByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error) {
	return s.repo.FindByTransactionRef(ctx, ref)
}

func (s *PaymentService) ListPayments(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error) {
	return s.repo.List(ctx, f)
}

func (s *PaymentService) ListByAssignment(ctx context.Context, assignmentID int64) ([]domain.Payment, error) {
	return s.repo.ListByAssignment(ctx, assignmentID)
}

func (s *PaymentService) ListTransactions(ctx context.Context, paymentID int64) ([]domain.PaymentTransaction, error) {
	return s.repo.ListTransactions(ctx, paymentID)
}

func (s *PaymentService) notifySettled(ctx context.Context, p *domain.Payment) {
	if s.ws == nil {
		return
	}
	switch p.Status {
	case domain.PaymentCompleted:
		_ = s.ws.NotifyPaymentCompleted(ctx, p)
	case domain.PaymentFailed:
		_ = s.ws.NotifyPaymentFailed(ctx, p)
	}
}

type PaymentColumn struct {
	Header string
	Value  func(p domain.Payment) any
}

var paymentColumns = map[string]PaymentColumn{
	"id":              {Header: "ID", Value: func(p domain.Payment) any { return p.ID }},
	"assignment_id":   {Header: "Assignment ID", Value: func(p domain.Payment) any { return p.AssignmentID }},
	"amount":          {Header: "Amount", Value: func(p domain.Payment) any { return float64(p.AmountMinor) / 100 }},
	"method":          {Header: "Method", Value: func(p domain.Payment) any { return string(p.Method) }},
	"transaction_ref": {Header: "Transaction Ref", Value: func(p domain.Payment) any { return p.TransactionRef }},
	"gateway_ref":     {Header: "Gateway Ref", Value: func(p domain.Payment) any { return strPtr(p.GatewayRef) }},
	"status":          {Header: "Status", Value: func(p domain.Payment) any { return string(p.Status) }},
	"paid_at":         {Header: "Paid At", Value: func(p domain.Payment) any { return timePtr(p.PaidAt) }},
	"payer_name":      {Header: "Payer", Value: func(p domain.Payment) any { return strPtr(p.PayerName) }},
	"payer_phone":     {Header: "Payer Phone", Value: func(p domain.Payment) any { return strPtr(p.PayerPhone) }},
	"created_at":      {Header: "Created", Value: func(p domain.Payment) any { return timePtr(p.CreatedAt) }},
}

var defaultPaymentExportFields = []string{
	"id", "assignment_id", "amount", "method", "transaction_ref",
	"gateway_ref", "status", "paid_at", "payer_name", "payer_phone", "created_at",
}

// StartPaymentsExport kicks off an XLSX export of the payments matching the
// filter and returns the export id immediately; progress streams over the
// websocket hub and the status lives in redis.
func (s *PaymentService) StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = defaultPaymentExportFields
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  buildPaymentsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  now,
	}
	_ = saveExportStatus(ctx, s.redis, status)

	go s.runPaymentsExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *PaymentService) runPaymentsExport(ctx context.Context, exportID string, selected []string, filter repository.PaymentsFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  buildPaymentsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  createdAt,
	}

	fail := func(errStr string) {
		log.Printf("export %s: %s", exportID, errStr)
		status.Error = &errStr
		status.Progress = 100
		_ = saveExportStatus(ctx, s.redis, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		fail(fmt.Sprintf("list payments failed: %v", err))
		return
	}

	var cols []PaymentColumn
	for _, key := range selected {
		col, ok := paymentColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		fail("no known columns selected")
		return
	}

	f := excelize.NewFile()
	sheet := "Payments"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(payments)
	rowIdx := 2
	chunkSize := 1000
	for i, p := range payments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
		}
		rowIdx++

		if (i+1)%chunkSize == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = saveExportStatus(ctx, s.redis, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail(fmt.Sprintf("write workbook failed: %v", err))
		return
	}

	fileName := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("20060102_150405"))

	if s.storage == nil {
		fail("export storage not configured")
		return
	}

	status.Progress = 95
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail(fmt.Sprintf("save export failed: %v", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func buildPaymentsFiltersMap(f repository.PaymentsFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.Status != nil {
		m["status"] = *f.Status
	} else {
		m["status"] = nil
	}
	if f.Method != nil {
		m["method"] = *f.Method
	} else {
		m["method"] = nil
	}
	if f.StudentID != nil {
		m["student_id"] = *f.StudentID
	} else {
		m["student_id"] = nil
	}
	if f.From != nil {
		m["from"] = f.From.Format("2006-01-02")
	} else {
		m["from"] = nil
	}
	if f.To != nil {
		m["to"] = f.To.Format("2006-01-02")
	} else {
		m["to"] = nil
	}
	m["fields"] = fields
	return m
}
