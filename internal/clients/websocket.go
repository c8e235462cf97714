package clients

import (
	"context"
	"fmt"

	"eduflow-backend/internal/domain"
	ws "eduflow-backend/internal/transport/websocket"
)

type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// NotifyPaymentCompleted fans a settled payment out to every connected
// dashboard so balances refresh without polling.
func (c *WebSocketClient) NotifyPaymentCompleted(ctx context.Context, p *domain.Payment) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "payment_completed",
		Channel: "payments",
		Data: map[string]interface{}{
			"payment_id":      p.ID,
			"assignment_id":   p.AssignmentID,
			"amount_minor":    p.AmountMinor,
			"method":          string(p.Method),
			"transaction_ref": p.TransactionRef,
		},
	}

	c.hub.BroadcastAll(message)
	return nil
}

// NotifyPaymentFailed mirrors NotifyPaymentCompleted for declined payments.
func (c *WebSocketClient) NotifyPaymentFailed(ctx context.Context, p *domain.Payment) error {
	if c.hub == nil {
		return nil
	}

	reason := ""
	if p.FailureReason != nil {
		reason = *p.FailureReason
	}
	message := &ws.Message{
		Type:    "payment_failed",
		Channel: "payments",
		Data: map[string]interface{}{
			"payment_id":      p.ID,
			"assignment_id":   p.AssignmentID,
			"transaction_ref": p.TransactionRef,
			"reason":          reason,
		},
	}

	c.hub.BroadcastAll(message)
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(
	ctx context.Context,
	userID int64,
	exportID string,
	progress float64,
	stage string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("export_progress#%d", userID)
	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	message := &ws.Message{
		Type:    "export_progress",
		Channel: channel,
		Data:    data,
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(
	ctx context.Context,
	userID int64,
	exportID string,
	url string,
	filename string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("export_complete#%d", userID)
	message := &ws.Message{
		Type:    "export_complete",
		Channel: channel,
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("export_failed#%d", userID)
	message := &ws.Message{
		Type:    "export_failed",
		Channel: channel,
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}
