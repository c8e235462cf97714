package rest

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eduflow-backend/internal/transport/auth"
)

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateInitiatePaymentRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	p, err := h.payments.InitiatePayment(r.Context(), req.ToServiceInput())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "Payment initiated", p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	p, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", p)
}

func (h *Handler) getPaymentByRef(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		ErrorBadRequest(w, "ref is required")
		return
	}

	p, err := h.payments.GetByTransactionRef(r.Context(), ref)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := paymentsFilterFromQuery(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	payments, err := h.payments.ListPayments(r.Context(), filter)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", payments)
}

func (h *Handler) paymentTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	transactions, err := h.payments.ListTransactions(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", transactions)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	p, err := h.payments.VerifyPayment(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Payment verified", p)
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateReasonRequest(r, false)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	p, err := h.payments.CancelPayment(r.Context(), id, req.Reason)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Payment cancelled", p)
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateReasonRequest(r, true)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	p, err := h.payments.RefundPayment(r.Context(), id, req.Reason)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Payment refunded", p)
}

func (h *Handler) exportPayments(w http.ResponseWriter, r *http.Request) {
	req, err := ValidatePaymentsExportRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID, err := h.payments.StartPaymentsExport(r.Context(), req.Fields, req.ToRepositoryFilter(), userID)
	if err != nil {
		log.Printf("[HTTP] startPaymentsExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "Export queued", map[string]interface{}{"export_id": exportID})
}
