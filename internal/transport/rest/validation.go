package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"eduflow-backend/internal/repository"
	"eduflow-backend/internal/service"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type FeeRequest struct {
	Category           string  `json:"category"`
	Name               string  `json:"name"`
	AmountMinor        int64   `json:"amount_minor"`
	AcademicYear       string  `json:"academic_year"`
	Term               string  `json:"term"`
	Description        *string `json:"description,omitempty"`
	Mandatory          bool    `json:"mandatory"`
	ApplicableClassIDs []int64 `json:"applicable_class_ids,omitempty"`
}

type rawFeeRequest struct {
	Category           interface{} `json:"category"`
	Name               interface{} `json:"name"`
	AmountMinor        interface{} `json:"amount_minor"`
	AcademicYear       interface{} `json:"academic_year"`
	Term               interface{} `json:"term"`
	Description        interface{} `json:"description"`
	Mandatory          bool        `json:"mandatory"`
	ApplicableClassIDs []int64     `json:"applicable_class_ids"`
}

func ValidateFeeRequest(r *http.Request) (*FeeRequest, error) {
	var raw rawFeeRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	category, err := toStringPtr(raw.Category)
	if err != nil || category == nil {
		return nil, &ValidationError{Field: "category", Message: "category is required and must be a string"}
	}

	name, err := toStringPtr(raw.Name)
	if err != nil || name == nil {
		return nil, &ValidationError{Field: "name", Message: "name is required and must be a string"}
	}

	amount, err := toInt64Ptr(raw.AmountMinor)
	if err != nil || amount == nil {
		return nil, &ValidationError{Field: "amount_minor", Message: "amount_minor is required and must be an integer"}
	}

	year, err := toStringPtr(raw.AcademicYear)
	if err != nil || year == nil {
		return nil, &ValidationError{Field: "academic_year", Message: "academic_year is required and must be a string"}
	}

	term, err := toStringPtr(raw.Term)
	if err != nil || term == nil {
		return nil, &ValidationError{Field: "term", Message: "term is required and must be a string"}
	}

	description, err := toStringPtr(raw.Description)
	if err != nil {
		return nil, &ValidationError{Field: "description", Message: "description must be string or empty"}
	}

	return &FeeRequest{
		Category:           *category,
		Name:               *name,
		AmountMinor:        *amount,
		AcademicYear:       *year,
		Term:               *term,
		Description:        description,
		Mandatory:          raw.Mandatory,
		ApplicableClassIDs: raw.ApplicableClassIDs,
	}, nil
}

func (r *FeeRequest) ToServiceInput() service.CreateFeeInput {
	return service.CreateFeeInput{
		Category:           r.Category,
		Name:               r.Name,
		AmountMinor:        r.AmountMinor,
		AcademicYear:       r.AcademicYear,
		Term:               r.Term,
		Description:        r.Description,
		Mandatory:          r.Mandatory,
		ApplicableClassIDs: r.ApplicableClassIDs,
	}
}

type AssignFeeRequest struct {
	FeeID          int64     `json:"fee_id"`
	StudentIDs     []int64   `json:"student_ids,omitempty"`
	ClassIDs       []int64   `json:"class_ids,omitempty"`
	DueDate        time.Time `json:"due_date"`
	DiscountMinor  int64     `json:"discount_minor,omitempty"`
	DiscountReason string    `json:"discount_reason,omitempty"`
}

type rawAssignFeeRequest struct {
	FeeID          interface{} `json:"fee_id"`
	StudentIDs     []int64     `json:"student_ids"`
	ClassIDs       []int64     `json:"class_ids"`
	DueDate        interface{} `json:"due_date"`
	DiscountMinor  interface{} `json:"discount_minor"`
	DiscountReason interface{} `json:"discount_reason"`
}

func ValidateAssignFeeRequest(r *http.Request) (*AssignFeeRequest, error) {
	var raw rawAssignFeeRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	feeID, err := toInt64Ptr(raw.FeeID)
	if err != nil || feeID == nil {
		return nil, &ValidationError{Field: "fee_id", Message: "fee_id is required and must be an integer"}
	}

	dueDate, err := toDatePtr(raw.DueDate)
	if err != nil || dueDate == nil {
		return nil, &ValidationError{Field: "due_date", Message: "due_date is required and must be YYYY-MM-DD"}
	}

	discount, err := toInt64Ptr(raw.DiscountMinor)
	if err != nil {
		return nil, &ValidationError{Field: "discount_minor", Message: "discount_minor must be an integer"}
	}
	discountReason, err := toStringPtr(raw.DiscountReason)
	if err != nil {
		return nil, &ValidationError{Field: "discount_reason", Message: "discount_reason must be string or empty"}
	}

	out := &AssignFeeRequest{
		FeeID:      *feeID,
		StudentIDs: raw.StudentIDs,
		ClassIDs:   raw.ClassIDs,
		DueDate:    *dueDate,
	}
	if discount != nil {
		out.DiscountMinor = *discount
	}
	if discountReason != nil {
		out.DiscountReason = *discountReason
	}
	return out, nil
}

type InitiatePaymentRequest struct {
	AssignmentID int64   `json:"assignment_id"`
	AmountMinor  int64   `json:"amount_minor"`
	Method       string  `json:"method"`
	PayerName    *string `json:"payer_name,omitempty"`
	PayerPhone   *string `json:"payer_phone,omitempty"`
	PayerEmail   *string `json:"payer_email,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type rawInitiatePaymentRequest struct {
	AssignmentID interface{} `json:"assignment_id"`
	AmountMinor  interface{} `json:"amount_minor"`
	Method       interface{} `json:"method"`
	PayerName    interface{} `json:"payer_name"`
	PayerPhone   interface{} `json:"payer_phone"`
	PayerEmail   interface{} `json:"payer_email"`
	Notes        interface{} `json:"notes"`
}

func ValidateInitiatePaymentRequest(r *http.Request) (*InitiatePaymentRequest, error) {
	var raw rawInitiatePaymentRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	assignmentID, err := toInt64Ptr(raw.AssignmentID)
	if err != nil || assignmentID == nil {
		return nil, &ValidationError{Field: "assignment_id", Message: "assignment_id is required and must be an integer"}
	}

	amount, err := toInt64Ptr(raw.AmountMinor)
	if err != nil || amount == nil {
		return nil, &ValidationError{Field: "amount_minor", Message: "amount_minor is required and must be an integer"}
	}

	method, err := toStringPtr(raw.Method)
	if err != nil || method == nil {
		return nil, &ValidationError{Field: "method", Message: "method is required and must be a string"}
	}

	payerName, err := toStringPtr(raw.PayerName)
	if err != nil {
		return nil, &ValidationError{Field: "payer_name", Message: "payer_name must be string or empty"}
	}
	payerPhone, err := toStringPtr(raw.PayerPhone)
	if err != nil {
		return nil, &ValidationError{Field: "payer_phone", Message: "payer_phone must be string or empty"}
	}
	payerEmail, err := toStringPtr(raw.PayerEmail)
	if err != nil {
		return nil, &ValidationError{Field: "payer_email", Message: "payer_email must be string or empty"}
	}
	notes, err := toStringPtr(raw.Notes)
	if err != nil {
		return nil, &ValidationError{Field: "notes", Message: "notes must be string or empty"}
	}

	return &InitiatePaymentRequest{
		AssignmentID: *assignmentID,
		AmountMinor:  *amount,
		Method:       *method,
		PayerName:    payerName,
		PayerPhone:   payerPhone,
		PayerEmail:   payerEmail,
		Notes:        notes,
	}, nil
}

func (r *InitiatePaymentRequest) ToServiceInput() service.InitiatePaymentInput {
	return service.InitiatePaymentInput{
		AssignmentID: r.AssignmentID,
		AmountMinor:  r.AmountMinor,
		Method:       r.Method,
		PayerName:    r.PayerName,
		PayerPhone:   r.PayerPhone,
		PayerEmail:   r.PayerEmail,
		Notes:        r.Notes,
	}
}

type DiscountRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

type rawDiscountRequest struct {
	AmountMinor interface{} `json:"amount_minor"`
	Reason      interface{} `json:"reason"`
}

func ValidateDiscountRequest(r *http.Request) (*DiscountRequest, error) {
	var raw rawDiscountRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	amount, err := toInt64Ptr(raw.AmountMinor)
	if err != nil || amount == nil {
		return nil, &ValidationError{Field: "amount_minor", Message: "amount_minor is required and must be an integer"}
	}

	reason, err := toStringPtr(raw.Reason)
	if err != nil || reason == nil {
		return nil, &ValidationError{Field: "reason", Message: "reason is required and must be a string"}
	}

	return &DiscountRequest{AmountMinor: *amount, Reason: *reason}, nil
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type rawReasonRequest struct {
	Reason interface{} `json:"reason"`
}

// ValidateReasonRequest parses bodies that carry only a reason. The reason
// may be empty unless required is set.
func ValidateReasonRequest(r *http.Request, required bool) (*ReasonRequest, error) {
	var raw rawReasonRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	reason, err := toStringPtr(raw.Reason)
	if err != nil {
		return nil, &ValidationError{Field: "reason", Message: "reason must be string or empty"}
	}
	if required && reason == nil {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}

	out := &ReasonRequest{}
	if reason != nil {
		out.Reason = *reason
	}
	return out, nil
}

type PaymentsExportRequest struct {
	Fields    []string   `json:"fields"`
	Status    *string    `json:"status,omitempty"`
	Method    *string    `json:"method,omitempty"`
	StudentID *int64     `json:"student_id,omitempty"`
	From      *time.Time `json:"from_date,omitempty"`
	To        *time.Time `json:"to_date,omitempty"`
}

type rawPaymentsExportRequest struct {
	Fields    []string    `json:"fields"`
	Status    interface{} `json:"status"`
	Method    interface{} `json:"method"`
	StudentID interface{} `json:"student_id"`
	From      interface{} `json:"from_date"`
	To        interface{} `json:"to_date"`
}

func ValidatePaymentsExportRequest(r *http.Request) (*PaymentsExportRequest, error) {
	var raw rawPaymentsExportRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	status, err := toStringPtr(raw.Status)
	if err != nil {
		return nil, &ValidationError{Field: "status", Message: "status must be string or empty"}
	}

	method, err := toStringPtr(raw.Method)
	if err != nil {
		return nil, &ValidationError{Field: "method", Message: "method must be string or empty"}
	}

	studentID, err := toInt64Ptr(raw.StudentID)
	if err != nil {
		return nil, &ValidationError{Field: "student_id", Message: "student_id must be integer or empty"}
	}

	from, err := toDatePtr(raw.From)
	if err != nil {
		return nil, &ValidationError{Field: "from_date", Message: "from_date must be YYYY-MM-DD or empty"}
	}

	to, err := toDatePtr(raw.To)
	if err != nil {
		return nil, &ValidationError{Field: "to_date", Message: "to_date must be YYYY-MM-DD or empty"}
	}

	return &PaymentsExportRequest{
		Fields:    raw.Fields,
		Status:    status,
		Method:    method,
		StudentID: studentID,
		From:      from,
		To:        to,
	}, nil
}

func (r *PaymentsExportRequest) ToRepositoryFilter() repository.PaymentsFilter {
	return repository.PaymentsFilter{
		Status:    r.Status,
		Method:    r.Method,
		StudentID: r.StudentID,
		From:      r.From,
		To:        r.To,
	}
}

// paymentsFilterFromQuery builds the list filter from query parameters. All
// parameters are optional; bad values are reported, not ignored.
func paymentsFilterFromQuery(r *http.Request) (repository.PaymentsFilter, error) {
	f := repository.PaymentsFilter{}
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		f.Status = &v
	}
	if v := q.Get("method"); v != "" {
		f.Method = &v
	}
	if v := q.Get("student_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, &ValidationError{Field: "student_id", Message: "student_id must be an integer"}
		}
		f.StudentID = &id
	}
	if v := q.Get("from_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "from_date", Message: "from_date must be YYYY-MM-DD"}
		}
		f.From = &parsed
	}
	if v := q.Get("to_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "to_date", Message: "to_date must be YYYY-MM-DD"}
		}
		f.To = &parsed
	}

	return f, nil
}

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		i := int64(t)
		s := strconv.FormatInt(i, 10)
		return &s, nil
	default:
		return nil, &ValidationError{Message: "invalid type for string field"}
	}
}

func toInt64Ptr(v interface{}) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		i := int64(t)
		return &i, nil
	case string:
		if t == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, err
		}
		return &i, nil
	default:
		return nil, &ValidationError{Message: "invalid type for int field"}
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, &ValidationError{Message: "invalid type for date field"}
	}
}
