package rest

import (
	"net/http"

	"eduflow-backend/internal/service"
)

func (h *Handler) createFee(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateFeeRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	fee, err := h.fees.CreateFee(r.Context(), req.ToServiceInput())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "Fee created", fee)
}

func (h *Handler) updateFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateFeeRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	fee, err := h.fees.UpdateFee(r.Context(), id, req.ToServiceInput())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Fee updated", fee)
}

func (h *Handler) getFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	fee, err := h.fees.GetFee(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", fee)
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.fees.ListFees(r.Context(), r.URL.Query().Get("academic_year"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", fees)
}

func (h *Handler) deactivateFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if err := h.fees.DeactivateFee(r.Context(), id); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Fee deactivated", nil)
}

func (h *Handler) assignFee(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateAssignFeeRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	assignments, err := h.fees.AssignFee(r.Context(), service.AssignFeeInput{
		FeeID:          req.FeeID,
		StudentIDs:     req.StudentIDs,
		ClassIDs:       req.ClassIDs,
		DueDate:        req.DueDate,
		DiscountMinor:  req.DiscountMinor,
		DiscountReason: req.DiscountReason,
	})
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "Fee assigned", map[string]interface{}{
		"created":     len(assignments),
		"assignments": assignments,
	})
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.fees.ListAssignments(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", assignments)
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	a, err := h.fees.GetAssignment(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", a)
}

func (h *Handler) assignmentPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	payments, err := h.payments.ListByAssignment(r.Context(), id)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", payments)
}

func (h *Handler) studentFees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	assignments, err := h.fees.GetStudentFees(r.Context(), id, r.URL.Query().Get("academic_year"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", assignments)
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateDiscountRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	a, err := h.fees.ApplyDiscount(r.Context(), id, req.AmountMinor, req.Reason)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Discount applied", a)
}

func (h *Handler) waiveFee(w http.ResponseWriter, r *http.Request) {
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

	a, err := h.fees.WaiveFee(r.Context(), id, req.Reason)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Fee waived", a)
}

func (h *Handler) collectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.fees.CollectionStats(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", stats)
}
