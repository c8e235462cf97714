package rest

import (
	"errors"
	"io"
	"log"
	"net/http"

	"eduflow-backend/internal/service"
)

// maxWebhookBody caps gateway webhook bodies at 1 MiB.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives gateway delivery notifications. It is mounted on
// the public router: the gateway authenticates with an HMAC signature over
// the raw body, not with an API token.
//
// The gateway retries on any non-2xx answer, so business outcomes the
// gateway cannot fix (unknown payment, duplicate delivery) still return 200.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		ErrorBadRequest(w, "failed to read request body")
		return
	}

	message, err := h.webhooks.Process(
		r.Context(),
		body,
		r.Header.Get("X-Webhook-Signature"),
		r.Header.Get("X-Webhook-Timestamp"),
	)
	if err != nil {
		if errors.Is(err, service.ErrWebhookUnauthorized) {
			ErrorBadRequest(w, "webhook verification failed")
			return
		}
		log.Printf("[WEBHOOK] processing error: %v", err)
		ErrorInternal(w, "webhook processing failed")
		return
	}

	Success(w, message, nil)
}
