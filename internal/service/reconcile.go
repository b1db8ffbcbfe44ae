package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/observability"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"go.uber.org/zap"
)

// Reconciler folds the transport's asynchronous delivery acknowledgements
// into the status ledger. It runs concurrently with an in-progress dispatch
// loop; the ledger's atomic transition is the only thing they contend on.
type Reconciler struct {
	ledger   *Ledger
	messages repository.MessageRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewReconciler(ledger *Ledger, messages repository.MessageRepository, logger *zap.Logger) (*Reconciler, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		ledger:   ledger,
		messages: messages,
		logger:   logger,
	}, nil
}

func (r *Reconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Reconcile applies one acknowledgement. Unknown codes and unresolvable
// message ids are expected conditions: the transport also acks messages sent
// from the phone itself and messages older than our retention, so both are
// dropped without error.
func (r *Reconciler) Reconcile(ctx context.Context, transportMessageID string, ackCode int) {
	status, ok := statusFromAck(ackCode)
	if !ok {
		r.metrics.IncAckDropped("unknown_code")
		r.logger.Warn("unrecognized acknowledgement code dropped",
			zap.String("transportMessageId", transportMessageID),
			zap.Int("ack", ackCode),
		)
		return
	}

	msg, err := r.messages.FindByTransportMessageID(ctx, transportMessageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.metrics.IncAckDropped("unresolved")
			r.logger.Debug("acknowledgement for unknown message dropped",
				zap.String("transportMessageId", transportMessageID),
				zap.Int("ack", ackCode),
			)
			return
		}
		r.metrics.IncAckDropped("lookup_error")
		r.logger.Error("acknowledgement lookup failed",
			zap.String("transportMessageId", transportMessageID),
			zap.Error(err),
		)
		return
	}

	update := repository.TransitionUpdate{Status: status}
	if status == domain.StatusError {
		cause := fmt.Sprintf("transport reported delivery failure (ack %d)", ackCode)
		update.ErrorMessage = &cause
	}

	_, applied, err := r.ledger.Transition(ctx, msg.ID, update)
	if err != nil {
		r.logger.Error("acknowledgement transition failed",
			zap.String("messageId", msg.ID),
			zap.String("proposed", status.String()),
			zap.Error(err),
		)
		return
	}

	if applied {
		r.metrics.IncAckApplied(status.String())
		return
	}
	r.metrics.IncAckDropped("suppressed")
}

// statusFromAck maps the transport's acknowledgement code onto the ledger's
// status ladder. Played and read collapse onto READ.
func statusFromAck(ackCode int) (domain.Status, bool) {
	switch ackCode {
	case gateway.AckFailed:
		return domain.StatusError, true
	case gateway.AckPending:
		return domain.StatusPending, true
	case gateway.AckServer:
		return domain.StatusSent, true
	case gateway.AckDevice:
		return domain.StatusDelivered, true
	case gateway.AckRead, gateway.AckPlayed:
		return domain.StatusRead, true
	}
	return "", false
}
