package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eduflow-backend/internal/domain"
)

func TestStubModeGeneratesRef(t *testing.T) {
	c := NewGatewayClient(GatewayConfig{})

	ref, err := c.Initiate(context.Background(), &domain.Payment{
		AmountMinor:    50000,
		Method:         domain.MethodMobileMoneyMTN,
		TransactionRef: "PAY1",
	})
	if err != nil {
		t.Fatalf("stub initiate: %v", err)
	}
	if !strings.HasPrefix(ref, "GW") || len(ref) != 14 {
		t.Fatalf("expected GW-prefixed 14-char ref; got %q", ref)
	}

	ok, err := c.Verify(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("expected stub verify true; got %v, %v", ok, err)
	}
}

func TestInitiateAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/initiate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "key123" {
			t.Fatalf("expected api key header; got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["payment_method"] != "mtn_momo" {
			t.Fatalf("expected mtn_momo; got %v", body["payment_method"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"gateway_reference": "GWTEST123"})
	}))
	defer srv.Close()

	c := NewGatewayClient(GatewayConfig{BaseURL: srv.URL, APIKey: "key123"})
	ref, err := c.Initiate(context.Background(), &domain.Payment{
		AmountMinor:    50000,
		Method:         domain.MethodMobileMoneyMTN,
		TransactionRef: "PAY1",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if ref != "GWTEST123" {
		t.Fatalf("expected GWTEST123; got %q", ref)
	}
}

func TestInitiateGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGatewayClient(GatewayConfig{BaseURL: srv.URL})
	_, err := c.Initiate(context.Background(), &domain.Payment{Method: domain.MethodVisa})
	if err == nil {
		t.Fatal("expected error from failing gateway")
	}
}
