package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eduflow-backend/internal/domain"

	"github.com/google/uuid"
)

type GatewayConfig struct {
	BaseURL     string // empty enables stub mode
	APIKey      string
	CallbackURL string
	Currency    string
	Timeout     time.Duration
}

// GatewayClient talks to the external payment processor. With no BaseURL
// configured it runs in stub mode and fabricates gateway references, which is
// enough for local development and tests.
type GatewayClient struct {
	cfg  GatewayConfig
	http *http.Client
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "ZMW"
	}
	return &GatewayClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *GatewayClient) stubMode() bool {
	return c.cfg.BaseURL == ""
}

// Initiate registers the payment with the processor and returns its gateway
// reference.
func (c *GatewayClient) Initiate(ctx context.Context, p *domain.Payment) (string, error) {
	if c.stubMode() {
		return stubGatewayRef(), nil
	}

	body := map[string]any{
		"amount_minor":   p.AmountMinor,
		"currency":       c.cfg.Currency,
		"reference":      p.TransactionRef,
		"payment_method": gatewayMethod(p.Method),
		"callback_url":   c.cfg.CallbackURL,
	}
	if p.PayerPhone != nil {
		body["customer_phone"] = *p.PayerPhone
	}
	if p.PayerEmail != nil {
		body["customer_email"] = *p.PayerEmail
	}
	if p.PayerName != nil {
		body["customer_name"] = *p.PayerName
	}

	var resp struct {
		GatewayReference string `json:"gateway_reference"`
	}
	if err := c.post(ctx, "/payments/initiate", body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if resp.GatewayReference == "" {
		return "", fmt.Errorf("%w: empty gateway reference", domain.ErrGateway)
	}
	return resp.GatewayReference, nil
}

// Verify asks the processor whether a transaction actually succeeded.
func (c *GatewayClient) Verify(ctx context.Context, gatewayRef string) (bool, error) {
	if c.stubMode() {
		return true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/payments/"+gatewayRef+"/verify", nil)
	if err != nil {
		return false, err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer res.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	return strings.EqualFold(out.Status, "SUCCESS"), nil
}

func (c *GatewayClient) Refund(ctx context.Context, gatewayRef string, amountMinor int64) error {
	if c.stubMode() {
		return nil
	}

	body := map[string]any{
		"gateway_reference": gatewayRef,
		"amount_minor":      amountMinor,
	}
	if err := c.post(ctx, "/payments/refund", body, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	return nil
}

func (c *GatewayClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *GatewayClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
}

func gatewayMethod(m domain.PaymentMethod) string {
	switch m {
	case domain.MethodMobileMoneyMTN:
		return "mtn_momo"
	case domain.MethodMobileMoneyAirtel:
		return "airtel_money"
	case domain.MethodMobileMoneyZamtel:
		return "zamtel_money"
	case domain.MethodBankTransfer:
		return "bank_transfer"
	case domain.MethodVisa, domain.MethodMastercard:
		return "card"
	case domain.MethodCheque:
		return "cheque"
	default:
		return strings.ToLower(string(m))
	}
}

func stubGatewayRef() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "GW" + id[:12]
}
