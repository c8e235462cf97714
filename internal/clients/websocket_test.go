package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eduflow-backend/internal/domain"
	ws "eduflow-backend/internal/transport/websocket"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *ws.Hub, userID int64) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, userID)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Give time for registration
	time.Sleep(100 * time.Millisecond)

	return conn
}

func readData(t *testing.T, conn *websocket.Conn) (ws.Message, map[string]interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	dataBytes, err := json.Marshal(received.Data)
	if err != nil {
		t.Fatalf("Failed to marshal data: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}

	return received, data
}

func TestWebSocketClient_NotifyPaymentCompleted(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	paidAt := time.Now()
	payment := &domain.Payment{
		ID:             7,
		AssignmentID:   3,
		AmountMinor:    50000,
		Method:         domain.MethodMobileMoneyMTN,
		TransactionRef: "PAY1700000000000ABCDEF",
		Status:         domain.PaymentCompleted,
		PaidAt:         &paidAt,
	}
	if err := client.NotifyPaymentCompleted(context.Background(), payment); err != nil {
		t.Fatalf("Failed to notify: %v", err)
	}

	received, data := readData(t, conn)

	if received.Type != "payment_completed" {
		t.Errorf("Expected type 'payment_completed', got '%s'", received.Type)
	}
	if received.Channel != "payments" {
		t.Errorf("Expected channel 'payments', got '%s'", received.Channel)
	}
	if int64(data["payment_id"].(float64)) != 7 {
		t.Errorf("Expected payment_id 7, got %v", data["payment_id"])
	}
	if int64(data["amount_minor"].(float64)) != 50000 {
		t.Errorf("Expected amount_minor 50000, got %v", data["amount_minor"])
	}
	if data["transaction_ref"] != "PAY1700000000000ABCDEF" {
		t.Errorf("Expected transaction_ref 'PAY1700000000000ABCDEF', got '%v'", data["transaction_ref"])
	}
}

func TestWebSocketClient_NotifyPaymentFailed(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	reason := "Payment declined by gateway"
	payment := &domain.Payment{
		ID:             8,
		AssignmentID:   3,
		AmountMinor:    25000,
		Method:         domain.MethodVisa,
		TransactionRef: "PAY1700000000001ABCDEF",
		Status:         domain.PaymentFailed,
		FailureReason:  &reason,
	}
	if err := client.NotifyPaymentFailed(context.Background(), payment); err != nil {
		t.Fatalf("Failed to notify: %v", err)
	}

	received, data := readData(t, conn)

	if received.Type != "payment_failed" {
		t.Errorf("Expected type 'payment_failed', got '%s'", received.Type)
	}
	if data["reason"] != "Payment declined by gateway" {
		t.Errorf("Expected reason 'Payment declined by gateway', got '%v'", data["reason"])
	}
}

func TestWebSocketClient_NotifyExportProgress(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, "")
	if err != nil {
		t.Fatalf("Failed to notify progress: %v", err)
	}

	received, data := readData(t, conn)

	if received.Type != "export_progress" {
		t.Errorf("Expected type 'export_progress', got '%s'", received.Type)
	}
	if received.UserID != 1 {
		t.Errorf("Expected userID 1, got %d", received.UserID)
	}
	if received.Channel != "export_progress#1" {
		t.Errorf("Expected channel 'export_progress#1', got '%s'", received.Channel)
	}
	if data["id"] != "export-123" {
		t.Errorf("Expected id 'export-123', got '%v'", data["id"])
	}
	if data["progress"].(float64) != 50.5 {
		t.Errorf("Expected progress 50.5, got %v", data["progress"])
	}
}

func TestWebSocketClient_NotifyExportComplete(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportComplete(context.Background(), 1, "export-123", "https://example.com/file.xlsx", "payments_20260101.xlsx")
	if err != nil {
		t.Fatalf("Failed to notify complete: %v", err)
	}

	received, data := readData(t, conn)

	if received.Type != "export_complete" {
		t.Errorf("Expected type 'export_complete', got '%s'", received.Type)
	}
	if received.Channel != "export_complete#1" {
		t.Errorf("Expected channel 'export_complete#1', got '%s'", received.Channel)
	}
	if data["url"] != "https://example.com/file.xlsx" {
		t.Errorf("Expected url 'https://example.com/file.xlsx', got '%v'", data["url"])
	}
	if data["filename"] != "payments_20260101.xlsx" {
		t.Errorf("Expected filename 'payments_20260101.xlsx', got '%v'", data["filename"])
	}
}

func TestWebSocketClient_NotifyExportFailed(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportFailed(context.Background(), 1, "export-123", "upload failed")
	if err != nil {
		t.Fatalf("Failed to notify failed: %v", err)
	}

	received, data := readData(t, conn)

	if received.Type != "export_failed" {
		t.Errorf("Expected type 'export_failed', got '%s'", received.Type)
	}
	if received.Channel != "export_failed#1" {
		t.Errorf("Expected channel 'export_failed#1', got '%s'", received.Channel)
	}
	if data["message"] != "upload failed" {
		t.Errorf("Expected message 'upload failed', got '%v'", data["message"])
	}
}

func TestWebSocketClient_NilHub(t *testing.T) {
	client := NewWebSocketClient(nil)

	if err := client.NotifyPaymentCompleted(context.Background(), &domain.Payment{ID: 1}); err != nil {
		t.Errorf("Should not return error with nil hub, got: %v", err)
	}

	if err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, ""); err != nil {
		t.Errorf("Should not return error with nil hub, got: %v", err)
	}

	if err := client.NotifyExportComplete(context.Background(), 1, "export-123", "https://example.com/file.xlsx", "file.xlsx"); err != nil {
		t.Errorf("Should not return error with nil hub, got: %v", err)
	}
}
