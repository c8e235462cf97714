package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eduflow-backend/internal/service"
)

type stubWebhookProcessor struct {
	message string
	err     error

	gotBody      []byte
	gotSignature string
	gotTimestamp string
}

func (s *stubWebhookProcessor) Process(_ context.Context, rawBody []byte, signature, timestamp string) (string, error) {
	s.gotBody = rawBody
	s.gotSignature = signature
	s.gotTimestamp = timestamp
	return s.message, s.err
}

func postWebhook(t *testing.T, h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.PaymentWebhook(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestPaymentWebhookProcessed(t *testing.T) {
	stub := &stubWebhookProcessor{message: "Webhook processed"}
	h := NewHandler(nil, nil, stub, nil)

	rec := postWebhook(t, h, `{"eventType":"payment.success","transactionId":"tx-1"}`, map[string]string{
		"X-Webhook-Signature": "sig",
		"X-Webhook-Timestamp": "1700000000",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("expected status success, got %s", resp.Status)
	}
	if resp.Message != "Webhook processed" {
		t.Errorf("expected message 'Webhook processed', got %q", resp.Message)
	}

	if string(stub.gotBody) != `{"eventType":"payment.success","transactionId":"tx-1"}` {
		t.Errorf("handler should pass the raw body through unchanged, got %s", stub.gotBody)
	}
	if stub.gotSignature != "sig" || stub.gotTimestamp != "1700000000" {
		t.Errorf("handler should forward signature headers, got %q / %q", stub.gotSignature, stub.gotTimestamp)
	}
}

func TestPaymentWebhookDuplicateStillReturns200(t *testing.T) {
	stub := &stubWebhookProcessor{message: "Already processed"}
	h := NewHandler(nil, nil, stub, nil)

	rec := postWebhook(t, h, `{"transactionId":"tx-1"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for duplicate delivery, got %d", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Message != "Already processed" {
		t.Errorf("expected message 'Already processed', got %q", resp.Message)
	}
}

func TestPaymentWebhookUnauthorized(t *testing.T) {
	stub := &stubWebhookProcessor{err: service.ErrWebhookUnauthorized}
	h := NewHandler(nil, nil, stub, nil)

	rec := postWebhook(t, h, `{}`, map[string]string{"X-Webhook-Signature": "bad"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for failed verification, got %d", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Status != "error" {
		t.Errorf("expected status error, got %s", resp.Status)
	}
}

func TestPaymentWebhookProcessingError(t *testing.T) {
	stub := &stubWebhookProcessor{err: errors.New("db connection lost")}
	h := NewHandler(nil, nil, stub, nil)

	rec := postWebhook(t, h, `{"transactionId":"tx-1"}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 for processing error, got %d", rec.Code)
	}
}

type panickingWebhookProcessor struct{}

func (panickingWebhookProcessor) Process(context.Context, []byte, string, string) (string, error) {
	panic("settlement went sideways")
}

// The webhook route is mounted on the public router behind
// middleware.Recoverer; a panic must come back as a 500 rather than a
// dropped connection, or the gateway retries forever.
func TestPaymentWebhookPanicReturns500(t *testing.T) {
	h := NewHandler(nil, nil, panickingWebhookProcessor{}, nil)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/webhooks/payment", h.PaymentWebhook)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment",
		bytes.NewBufferString(`{"transactionId":"tx-1"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 after panic, got %d", rec.Code)
	}
}
