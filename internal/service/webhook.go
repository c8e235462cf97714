package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"eduflow-backend/internal/clients"
	"eduflow-backend/internal/domain"
	"eduflow-backend/internal/repository"
)

// ErrWebhookUnauthorized marks signature/timestamp verification failures;
// the transport layer maps it to 400.
var ErrWebhookUnauthorized = errors.New("webhook verification failed")

type WebhookConfig struct {
	Secret             string
	RequireSignature   bool
	TimestampTolerance time.Duration
}

type WebhookService struct {
	payments PaymentStore
	ws       *clients.WebSocketClient
	cfg      WebhookConfig

	// now is swappable for timestamp tests
	now func() time.Time
}

func NewWebhookService(payments PaymentStore, ws *clients.WebSocketClient, cfg WebhookConfig) *WebhookService {
	if cfg.TimestampTolerance == 0 {
		cfg.TimestampTolerance = 5 * time.Minute
	}
	return &WebhookService{
		payments: payments,
		ws:       ws,
		cfg:      cfg,
		now:      time.Now,
	}
}

// webhookPayload is the gateway's delivery format. Money amounts arrive in
// minor units like everywhere else.
type webhookPayload struct {
	EventType         string `json:"eventType"`
	TransactionID     string `json:"transactionId"`
	GatewayReference  string `json:"gatewayReference"`
	MerchantReference string `json:"merchantReference"`
	Status            string `json:"status"`
	AmountMinor       int64  `json:"amountMinor"`
	FailureReason     string `json:"failureReason"`
}

// Process handles one webhook delivery end to end: verify, parse, dedup,
// resolve, classify, settle. The returned message is the response body for a
// 200; ErrWebhookUnauthorized means 400, any other error means 500.
//
// Duplicate deliveries and unknown payment references both return success:
// the gateway must stop retrying in either case.
func (s *WebhookService) Process(ctx context.Context, rawBody []byte, signature, timestamp string) (string, error) {
	if s.cfg.RequireSignature && signature == "" {
		return "", fmt.Errorf("%w: missing signature", ErrWebhookUnauthorized)
	}
	if timestamp != "" {
		if err := s.verifyTimestamp(timestamp); err != nil {
			return "", err
		}
	}
	if signature != "" {
		if err := s.verifySignature(rawBody, signature); err != nil {
			return "", err
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return "", fmt.Errorf("malformed webhook payload: %w", err)
	}

	if payload.TransactionID != "" {
		processed, err := s.payments.WebhookProcessed(ctx, payload.TransactionID)
		if err != nil {
			return "", err
		}
		if processed {
			return "Already processed", nil
		}
	}

	p, err := s.resolvePayment(ctx, payload)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("webhook: no payment for gatewayReference=%q merchantReference=%q",
			payload.GatewayReference, payload.MerchantReference)
		return "Payment not found", nil
	}
	if err != nil {
		return "", err
	}

	dispatch, success := classify(payload)

	txStatus := domain.TxStatusPending
	var errMsg *string
	if dispatch {
		if success {
			txStatus = domain.TxStatusSuccess
		} else {
			txStatus = domain.TxStatusFailed
			if payload.FailureReason != "" {
				errMsg = &payload.FailureReason
			}
		}
	}

	updated, err := s.payments.ProcessWebhook(ctx, repository.WebhookArgs{
		PaymentID:    p.ID,
		GatewayTxID:  payload.TransactionID,
		RawPayload:   string(rawBody),
		Status:       txStatus,
		ErrorMessage: errMsg,
		Dispatch:     dispatch,
		Success:      success,
	})
	if errors.Is(err, domain.ErrDuplicateWebhook) {
		return "Already processed", nil
	}
	if err != nil {
		return "", err
	}

	if dispatch && s.ws != nil {
		switch updated.Status {
		case domain.PaymentCompleted:
			_ = s.ws.NotifyPaymentCompleted(ctx, updated)
		case domain.PaymentFailed:
			_ = s.ws.NotifyPaymentFailed(ctx, updated)
		}
	}

	return "Webhook processed", nil
}

// verifyTimestamp rejects deliveries whose timestamp header falls outside
// the configured tolerance window, in either direction.
func (s *WebhookService) verifyTimestamp(timestamp string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrWebhookUnauthorized)
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age > s.cfg.TimestampTolerance || age < -s.cfg.TimestampTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrWebhookUnauthorized)
	}
	return nil
}

// verifySignature checks the HMAC-SHA256 signature over the raw body,
// compared in constant time.
func (s *WebhookService) verifySignature(rawBody []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not valid base64", ErrWebhookUnauthorized)
	}
	if !hmac.Equal(expected, provided) {
		return fmt.Errorf("%w: signature mismatch", ErrWebhookUnauthorized)
	}
	return nil
}

// Signature computes the header value the gateway sends for a body; used by
// tests and by gateway simulators.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *WebhookService) resolvePayment(ctx context.Context, payload webhookPayload) (*domain.Payment, error) {
	if payload.GatewayReference != "" {
		p, err := s.payments.FindByGatewayRef(ctx, payload.GatewayReference)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if payload.MerchantReference != "" {
		return s.payments.FindByTransactionRef(ctx, payload.MerchantReference)
	}
	return nil, domain.ErrNotFound
}

// classify maps the gateway's event taxonomy onto ours. The event type wins;
// the status field is the fallback for gateways that omit events. Anything
// unrecognized is recorded as PENDING without touching the payment.
func classify(payload webhookPayload) (dispatch, success bool) {
	key := payload.EventType
	if key == "" {
		key = payload.Status
	}
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "PAYMENT.SUCCESS", "PAYMENT.COMPLETED", "SUCCESS", "COMPLETED":
		return true, true
	case "PAYMENT.FAILED", "PAYMENT.DECLINED", "FAILED", "DECLINED":
		return true, false
	case "PAYMENT.PENDING", "PENDING":
		return false, false
	default:
		return false, false
	}
}
