package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eduflow-backend/internal/domain"
	"eduflow-backend/internal/repository"
	"eduflow-backend/internal/service"
)

type FeeManager interface {
	CreateFee(ctx context.Context, in service.CreateFeeInput) (*domain.Fee, error)
	UpdateFee(ctx context.Context, id int64, in service.CreateFeeInput) (*domain.Fee, error)
	GetFee(ctx context.Context, id int64) (*domain.Fee, error)
	ListFees(ctx context.Context, academicYear string) ([]domain.Fee, error)
	DeactivateFee(ctx context.Context, id int64) error
	AssignFee(ctx context.Context, in service.AssignFeeInput) ([]domain.FeeAssignment, error)
	GetAssignment(ctx context.Context, id int64) (*domain.FeeAssignment, error)
	ListAssignments(ctx context.Context) ([]domain.FeeAssignment, error)
	GetStudentFees(ctx context.Context, studentID int64, academicYear string) ([]domain.FeeAssignment, error)
	ApplyDiscount(ctx context.Context, assignmentID, discountMinor int64, reason string) (*domain.FeeAssignment, error)
	WaiveFee(ctx context.Context, assignmentID int64, reason string) (*domain.FeeAssignment, error)
	CollectionStats(ctx context.Context) (*repository.CollectionStats, error)
}

type PaymentManager interface {
	InitiatePayment(ctx context.Context, in service.InitiatePaymentInput) (*domain.Payment, error)
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	GetByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error)
	ListPayments(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	ListByAssignment(ctx context.Context, assignmentID int64) ([]domain.Payment, error)
	ListTransactions(ctx context.Context, paymentID int64) ([]domain.PaymentTransaction, error)
	VerifyPayment(ctx context.Context, paymentID int64) (*domain.Payment, error)
	CancelPayment(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error)
	RefundPayment(ctx context.Context, paymentID int64, reason string) (*domain.Payment, error)
	StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, rawBody []byte, signature, timestamp string) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	fees       FeeManager
	payments   PaymentManager
	webhooks   WebhookProcessor
	exportList ExportListService
}

func NewHandler(fees FeeManager, payments PaymentManager, webhooks WebhookProcessor, exportList ExportListService) *Handler {
	return &Handler{
		fees:       fees,
		payments:   payments,
		webhooks:   webhooks,
		exportList: exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/fees", func(r chi.Router) {
			r.Post("/", h.createFee)
			r.Get("/", h.listFees)
			r.Post("/assign", h.assignFee)
			r.Get("/{id}", h.getFee)
			r.Put("/{id}", h.updateFee)
			r.Delete("/{id}", h.deactivateFee)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.listAssignments)
			r.Get("/{id}", h.getAssignment)
			r.Get("/{id}/payments", h.assignmentPayments)
			r.Post("/{id}/discount", h.applyDiscount)
			r.Post("/{id}/waive", h.waiveFee)
		})

		r.Get("/students/{id}/fees", h.studentFees)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.initiatePayment)
			r.Get("/", h.listPayments)
			r.Get("/ref/{ref}", h.getPaymentByRef)
			r.Get("/{id}", h.getPayment)
			r.Get("/{id}/transactions", h.paymentTransactions)
			r.Post("/{id}/verify", h.verifyPayment)
			r.Post("/{id}/cancel", h.cancelPayment)
			r.Post("/{id}/refund", h.refundPayment)
		})

		r.Get("/reports/collection", h.collectionStats)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/payments", h.exportPayments)
	})

	return r
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: name, Message: name + " must be a positive integer"}
	}
	return id, nil
}
