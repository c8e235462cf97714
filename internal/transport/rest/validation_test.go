package rest

import (
	"bytes"
	"net/http/httptest"
	"testing"
)

func TestValidateFeeRequest(t *testing.T) {
	body := `{"category":"TUITION","name":"Term 1 Tuition","amount_minor":150000,"academic_year":"2026","term":"TERM_1","mandatory":true,"applicable_class_ids":[10,11]}`
	req := httptest.NewRequest("POST", "/v1/fees", bytes.NewBufferString(body))

	parsed, err := ValidateFeeRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Category != "TUITION" || parsed.Name != "Term 1 Tuition" {
		t.Errorf("unexpected fee fields: %+v", parsed)
	}
	if parsed.AmountMinor != 150000 {
		t.Errorf("expected amount 150000, got %d", parsed.AmountMinor)
	}
	if len(parsed.ApplicableClassIDs) != 2 {
		t.Errorf("expected 2 class ids, got %d", len(parsed.ApplicableClassIDs))
	}
}

func TestValidateFeeRequestMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing category", `{"name":"x","amount_minor":100,"academic_year":"2026","term":"TERM_1"}`},
		{"missing name", `{"category":"TUITION","amount_minor":100,"academic_year":"2026","term":"TERM_1"}`},
		{"missing amount", `{"category":"TUITION","name":"x","academic_year":"2026","term":"TERM_1"}`},
		{"empty body", `{}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/v1/fees", bytes.NewBufferString(tc.body))
		if _, err := ValidateFeeRequest(req); err == nil {
			t.Errorf("%s: expected validation error, got nil", tc.name)
		}
	}
}

func TestValidateAssignFeeRequest(t *testing.T) {
	body := `{"fee_id":3,"student_ids":[1,2],"class_ids":[10],"due_date":"2026-10-01"}`
	req := httptest.NewRequest("POST", "/v1/fees/assign", bytes.NewBufferString(body))

	parsed, err := ValidateAssignFeeRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.FeeID != 3 {
		t.Errorf("expected fee_id 3, got %d", parsed.FeeID)
	}
	if parsed.DueDate.Format("2006-01-02") != "2026-10-01" {
		t.Errorf("unexpected due date: %v", parsed.DueDate)
	}
}

func TestValidateAssignFeeRequestWithDiscount(t *testing.T) {
	body := `{"fee_id":3,"student_ids":[1],"due_date":"2026-10-01","discount_minor":"10000","discount_reason":"Sibling discount"}`
	req := httptest.NewRequest("POST", "/v1/fees/assign", bytes.NewBufferString(body))

	parsed, err := ValidateAssignFeeRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.DiscountMinor != 10000 {
		t.Errorf("expected discount 10000, got %d", parsed.DiscountMinor)
	}
	if parsed.DiscountReason != "Sibling discount" {
		t.Errorf("unexpected discount reason %q", parsed.DiscountReason)
	}
}

func TestValidateAssignFeeRequestBadDate(t *testing.T) {
	body := `{"fee_id":3,"due_date":"01/10/2026"}`
	req := httptest.NewRequest("POST", "/v1/fees/assign", bytes.NewBufferString(body))

	if _, err := ValidateAssignFeeRequest(req); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestValidateInitiatePaymentRequestCoercesStrings(t *testing.T) {
	// numeric fields arrive as strings from some clients
	body := `{"assignment_id":"12","amount_minor":"50000","method":"MOBILE_MONEY_MTN","payer_phone":"+260971234567"}`
	req := httptest.NewRequest("POST", "/v1/payments", bytes.NewBufferString(body))

	parsed, err := ValidateInitiatePaymentRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.AssignmentID != 12 || parsed.AmountMinor != 50000 {
		t.Errorf("string coercion failed: %+v", parsed)
	}
	if parsed.PayerPhone == nil || *parsed.PayerPhone != "+260971234567" {
		t.Errorf("expected payer phone to be set")
	}
}

func TestValidatePaymentsExportRequestFilter(t *testing.T) {
	body := `{"fields":["transaction_ref","amount"],"status":"COMPLETED","student_id":7,"from_date":"2026-01-01"}`
	req := httptest.NewRequest("POST", "/export/payments", bytes.NewBufferString(body))

	parsed, err := ValidatePaymentsExportRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := parsed.ToRepositoryFilter()
	if f.Status == nil || *f.Status != "COMPLETED" {
		t.Errorf("expected status filter COMPLETED")
	}
	if f.StudentID == nil || *f.StudentID != 7 {
		t.Errorf("expected student_id filter 7")
	}
	if f.From == nil {
		t.Errorf("expected from filter to be set")
	}
	if f.Method != nil || f.To != nil {
		t.Errorf("unset fields must stay nil")
	}
}

func TestPaymentsFilterFromQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/payments?status=PENDING&student_id=4&from_date=2026-02-01", nil)

	f, err := paymentsFilterFromQuery(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status == nil || *f.Status != "PENDING" {
		t.Errorf("expected status PENDING")
	}
	if f.StudentID == nil || *f.StudentID != 4 {
		t.Errorf("expected student_id 4")
	}

	req = httptest.NewRequest("GET", "/v1/payments?student_id=abc", nil)
	if _, err := paymentsFilterFromQuery(req); err == nil {
		t.Fatal("expected error for non-integer student_id")
	}
}
