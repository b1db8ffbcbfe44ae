package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	eventMessageAck = "message.ack"
	eventMessage    = "message"
)

type AckApplier interface {
	Reconcile(ctx context.Context, transportMessageID string, ackCode int)
}

type InboundHandler interface {
	Handle(ctx context.Context, event gateway.InboundEvent)
}

// WebhookHandler receives the gateway's event callbacks: delivery
// acknowledgements for messages we sent and messages received by the session.
// The gateway retries on non-2xx, so everything that parses is acknowledged
// even when it turns out to be irrelevant.
type WebhookHandler struct {
	acks    AckApplier
	inbound InboundHandler
	logger  *zap.Logger
}

func NewWebhookHandler(acks AckApplier, inbound InboundHandler, logger *zap.Logger) (*WebhookHandler, error) {
	if acks == nil {
		return nil, fmt.Errorf("ack applier is required")
	}
	if inbound == nil {
		return nil, fmt.Errorf("inbound handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{acks: acks, inbound: inbound, logger: logger}, nil
}

func RegisterWebhookRoutes(router fiber.Router, acks AckApplier, inbound InboundHandler, logger *zap.Logger) error {
	h, err := NewWebhookHandler(acks, inbound, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/transport/events", h.HandleEvent)

	return nil
}

type transportEventRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (h *WebhookHandler) HandleEvent(c *fiber.Ctx) error {
	var req transportEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	switch strings.TrimSpace(req.Event) {
	case eventMessageAck:
		var ack gateway.AckEvent
		if err := json.Unmarshal(req.Payload, &ack); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid ack payload")
		}
		h.acks.Reconcile(c.Context(), ack.TransportMessageID, ack.Ack)

	case eventMessage:
		var event gateway.InboundEvent
		if err := json.Unmarshal(req.Payload, &event); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid message payload")
		}
		h.inbound.Handle(c.Context(), event)

	default:
		// Gateways emit many event kinds we do not consume; acknowledge them
		// so the gateway does not retry.
		h.logger.Debug("unhandled transport event", zap.String("event", req.Event))
	}

	return c.SendStatus(fiber.StatusNoContent)
}
