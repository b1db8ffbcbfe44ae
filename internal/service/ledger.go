package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/events"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the authoritative state machine over message records. It owns
// every status mutation after creation: callers propose transitions, the
// ledger applies them through the hierarchy-rank rule and notifies observers
// of each applied change. Suppressed transitions write nothing and notify
// nobody.
type Ledger struct {
	messages  repository.MessageRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewLedger(messages repository.MessageRepository, publisher events.Publisher, logger *zap.Logger) (*Ledger, error) {
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ledger{
		messages:  messages,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Record creates the message row and announces it. The row's id is assigned
// here and is the stable key for all later transitions.
func (l *Ledger) Record(ctx context.Context, m *domain.Message) error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", domain.ErrValidation)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now().UTC()
	}
	if err := m.Validate(); err != nil {
		return err
	}

	if err := l.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to create message record: %w", err)
	}

	l.publisher.Notify(ctx, events.KindNewMessage, events.ToMessagePayload(m))
	return nil
}

// Transition proposes a status change for the record with the given id. The
// rank check runs atomically against the stored status, so a racing
// acknowledgement cannot regress a record. Returns the resulting record and
// whether the proposal was applied.
func (l *Ledger) Transition(ctx context.Context, id string, update repository.TransitionUpdate) (*domain.Message, bool, error) {
	updated, applied, err := l.messages.ApplyTransition(ctx, id, update)
	if err != nil {
		return nil, false, err
	}

	if !applied {
		l.logger.Debug("status transition suppressed",
			zap.String("messageId", id),
			zap.String("current", updated.Status.String()),
			zap.String("proposed", update.Status.String()),
		)
		return updated, false, nil
	}

	l.publisher.Notify(ctx, events.KindMessageUpdate, events.ToMessagePayload(updated))
	return updated, true, nil
}
