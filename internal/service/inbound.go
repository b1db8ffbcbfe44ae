package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/observability"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"go.uber.org/zap"
)

// InboundService records messages received by the session and optionally
// reacts to them: a fixed auto-response back to the sender and/or a copy
// forwarded to an operator number. Reactions are best effort and never
// propagate failures back to the transport callback.
type InboundService struct {
	ledger         *Ledger
	transport      gateway.Client
	logger         *zap.Logger
	metrics        *observability.Metrics
	selfAddress    string
	autoReplyText  string
	forwardAddress string
}

func NewInboundService(
	ledger *Ledger,
	transport gateway.Client,
	selfAddress string,
	autoReplyText string,
	forwardNumber string,
	logger *zap.Logger,
) (*InboundService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	forwardAddress := ""
	if strings.TrimSpace(forwardNumber) != "" {
		addr, _ := domain.NormalizeAddress(forwardNumber)
		if !domain.SendableAddress(addr) {
			return nil, fmt.Errorf("%w: forward number %q is not sendable", domain.ErrValidation, forwardNumber)
		}
		forwardAddress = addr
	}

	return &InboundService{
		ledger:         ledger,
		transport:      transport,
		logger:         logger,
		selfAddress:    selfAddress,
		autoReplyText:  strings.TrimSpace(autoReplyText),
		forwardAddress: forwardAddress,
	}, nil
}

func (s *InboundService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Handle processes one inbound message from the transport's event stream.
func (s *InboundService) Handle(ctx context.Context, event gateway.InboundEvent) {
	transportID := event.TransportMessageID
	record := &domain.Message{
		SenderAddress:    event.From,
		RecipientAddress: s.selfAddress,
		Body:             event.Body,
		Outgoing:         false,
		Status:           domain.StatusReceived,
		Kind:             domain.KindIncoming,
		HasAttachment:    event.HasAttachment,
	}
	if strings.TrimSpace(transportID) != "" {
		record.TransportMessageID = &transportID
	}
	if event.Timestamp > 0 {
		record.CreatedAt = time.Unix(event.Timestamp, 0).UTC()
	}

	if err := s.ledger.Record(ctx, record); err != nil {
		s.logger.Error("failed to record inbound message",
			zap.String("from", event.From),
			zap.Error(err),
		)
		return
	}

	if s.autoReplyText != "" {
		s.react(ctx, domain.KindAutoResponse, event.From, s.autoReplyText)
	}

	if s.forwardAddress != "" && event.From != s.forwardAddress {
		body := fmt.Sprintf("From %s: %s", event.From, event.Body)
		s.react(ctx, domain.KindForwarded, s.forwardAddress, body)
	}
}

// react sends a system-originated message through the normal pending/sent
// path so it is reconciled like any other outbound record.
func (s *InboundService) react(ctx context.Context, kind domain.Kind, address, text string) {
	msg := &domain.Message{
		SenderAddress:    s.selfAddress,
		RecipientAddress: address,
		Body:             text,
		Outgoing:         true,
		Status:           domain.StatusPending,
		Kind:             kind,
	}

	if err := s.ledger.Record(ctx, msg); err != nil {
		s.logger.Error("failed to persist reaction record",
			zap.String("kind", kind.String()),
			zap.String("address", address),
			zap.Error(err),
		)
		return
	}

	result, sendErr := s.transport.SendText(ctx, address, text)
	if sendErr != nil {
		s.metrics.IncMessageFailed(kind.String(), "transport")
		errText := sendErr.Error()
		if _, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
			Status:       domain.StatusError,
			ErrorMessage: &errText,
		}); err != nil {
			s.logger.Error("failed to record reaction failure", zap.String("messageId", msg.ID), zap.Error(err))
		}
		return
	}

	s.metrics.IncMessageSent(kind.String())
	if _, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
		Status:             domain.StatusSent,
		TransportMessageID: &result.TransportMessageID,
	}); err != nil {
		s.logger.Error("failed to record reaction sent transition", zap.String("messageId", msg.ID), zap.Error(err))
	}
}
