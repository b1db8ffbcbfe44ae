package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/events"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/observability"
	"github.com/DouglasAntonni/serverwpp/internal/pacing"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The template placeholder is replaced with the recipient's display name,
// matched case-insensitively.
var namePlaceholderRx = regexp.MustCompile(`(?i)\{name\}`)

const maxAttachmentBytes = 16 << 20

// AttachmentInput is an undecoded shared attachment as received from the
// caller.
type AttachmentInput struct {
	Base64Data string
	MimeType   string
	Filename   string
}

// BulkRequest describes one dispatch job.
type BulkRequest struct {
	Recipients []domain.Recipient
	Template   string
	Attachment *AttachmentInput
}

// BulkSummary is returned to the caller of a completed job. The same numbers
// go out on the bulk_complete event.
type BulkSummary struct {
	JobID  string
	Total  int
	Sent   int
	Failed int
}

// DispatchService runs bulk jobs against the transport's single outbound
// channel. Recipients are processed strictly sequentially in input order; a
// per-recipient failure never aborts the job. At most one job may be active:
// the busy token is acquired up front and a second dispatch (or a manual
// single send) is rejected while it is held.
type DispatchService struct {
	ledger        *Ledger
	transport     gateway.Client
	pacer         pacing.Pacer
	publisher     events.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	senderAddress string

	busy chan struct{}
	now  func() time.Time
}

func NewDispatchService(
	ledger *Ledger,
	transport gateway.Client,
	pacer pacing.Pacer,
	publisher events.Publisher,
	senderAddress string,
	logger *zap.Logger,
) (*DispatchService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if pacer == nil {
		return nil, fmt.Errorf("pacer is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		ledger:        ledger,
		transport:     transport,
		pacer:         pacer,
		publisher:     publisher,
		logger:        logger,
		senderAddress: senderAddress,
		busy:          make(chan struct{}, 1),
		now:           time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Dispatch runs one bulk job to completion. A completion event is emitted in
// every case, including zero-work and total-failure runs, so no job is left
// silently unresolved from the caller's perspective.
func (s *DispatchService) Dispatch(ctx context.Context, req BulkRequest) (*BulkSummary, error) {
	if !s.tryAcquire() {
		return nil, domain.ErrDispatchBusy
	}
	defer s.release()

	return s.run(ctx, uuid.NewString(), req)
}

// StartDispatch acquires the busy token synchronously and runs the job in the
// background, detached from the caller's request lifetime. The job id is
// returned immediately so the caller can correlate progress events.
func (s *DispatchService) StartDispatch(ctx context.Context, req BulkRequest) (string, error) {
	if !s.tryAcquire() {
		return "", domain.ErrDispatchBusy
	}

	jobID := uuid.NewString()
	go func() {
		defer s.release()
		if _, err := s.run(context.WithoutCancel(ctx), jobID, req); err != nil {
			s.logger.Error("background dispatch failed",
				zap.String("jobId", jobID),
				zap.Error(err),
			)
		}
	}()

	return jobID, nil
}

func (s *DispatchService) run(ctx context.Context, jobID string, req BulkRequest) (*BulkSummary, error) {
	logger := observability.WithContextLogger(s.logger, ctx)
	total := len(req.Recipients)

	ready, err := s.transport.Ready(ctx)
	if err != nil || !ready {
		s.metrics.IncDispatchJob("rejected")
		s.completeWithFailure(ctx, jobID, total, domain.ErrTransportNotReady.Error())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransportNotReady, err)
		}
		return nil, domain.ErrTransportNotReady
	}

	attachment, err := prepareAttachment(req.Attachment)
	if err != nil {
		s.metrics.IncDispatchJob("rejected")
		s.completeWithFailure(ctx, jobID, total, err.Error())
		return nil, err
	}

	logger.Info("bulk dispatch started",
		zap.String("jobId", jobID),
		zap.Int("total", total),
		zap.Bool("hasAttachment", attachment != nil),
	)

	summary := &BulkSummary{JobID: jobID, Total: total}
	for i, recipient := range req.Recipients {
		if i > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				logger.Debug("pacing wait interrupted", zap.Error(err))
			}
		}

		s.sendToRecipient(ctx, jobID, recipient, req.Template, attachment, summary)

		s.publisher.Notify(ctx, events.KindBulkProgress, events.BulkProgressPayload{
			Current:      i + 1,
			Total:        total,
			SuccessCount: summary.Sent,
			FailureCount: summary.Failed,
		})
	}

	s.publisher.Notify(ctx, events.KindBulkComplete, events.BulkCompletePayload{
		Total:  summary.Total,
		Sent:   summary.Sent,
		Failed: summary.Failed,
		JobID:  jobID,
	})
	s.metrics.IncDispatchJob("completed")

	logger.Info("bulk dispatch finished",
		zap.String("jobId", jobID),
		zap.Int("total", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}

// sendToRecipient handles one recipient end to end. Every outcome increments
// exactly one of the summary counters; nothing here may abort the loop.
func (s *DispatchService) sendToRecipient(
	ctx context.Context,
	jobID string,
	recipient domain.Recipient,
	template string,
	attachment *gateway.Attachment,
	summary *BulkSummary,
) {
	text := PersonalizeTemplate(template, recipient.Name)

	address, short := domain.NormalizeAddress(recipient.RawNumber)
	if short {
		s.logger.Warn("recipient number below sanity length",
			zap.String("jobId", jobID),
			zap.String("address", address),
		)
	}
	if !domain.SendableAddress(address) {
		summary.Failed++
		s.metrics.IncMessageFailed(domain.KindBulk.String(), "unsendable_address")
		s.logger.Warn("recipient skipped, unsendable address",
			zap.String("jobId", jobID),
			zap.String("name", recipient.Name),
			zap.String("address", address),
		)
		return
	}

	name := recipient.Name
	msg := &domain.Message{
		SenderAddress:    s.senderAddress,
		RecipientAddress: address,
		RecipientName:    &name,
		Body:             text,
		Outgoing:         true,
		Status:           domain.StatusPending,
		Kind:             domain.KindBulk,
		BulkJobID:        &jobID,
	}
	if attachment != nil {
		msg.HasAttachment = true
		mime := attachment.MimeType
		msg.AttachmentMimeType = &mime
	}

	// The send is never issued without a persisted pending record; an
	// unrecorded message could not be reconciled later.
	if err := s.ledger.Record(ctx, msg); err != nil {
		summary.Failed++
		s.metrics.IncMessageFailed(domain.KindBulk.String(), "persistence")
		s.logger.Error("failed to persist pending record, recipient skipped",
			zap.String("jobId", jobID),
			zap.String("address", address),
			zap.Error(err),
		)
		return
	}

	result, sendErr := s.send(ctx, domain.KindBulk, address, text, attachment)
	if sendErr != nil {
		summary.Failed++
		s.metrics.IncMessageFailed(domain.KindBulk.String(), "transport")
		errText := sendErr.Error()
		if _, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
			Status:       domain.StatusError,
			ErrorMessage: &errText,
		}); err != nil {
			s.logger.Error("failed to record send failure",
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
		}
		return
	}

	summary.Sent++
	s.metrics.IncMessageSent(domain.KindBulk.String())
	if _, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
		Status:             domain.StatusSent,
		TransportMessageID: &result.TransportMessageID,
	}); err != nil {
		s.logger.Error("failed to record sent transition",
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
	}
}

// SendSingle sends one manual message outside a bulk job. It takes the same
// busy token as Dispatch: the transport serializes its outbound channel, so
// a manual send must not interleave with an active job.
func (s *DispatchService) SendSingle(ctx context.Context, rawNumber, name, text string) (*domain.Message, error) {
	if !s.tryAcquire() {
		return nil, domain.ErrDispatchBusy
	}
	defer s.release()

	ready, err := s.transport.Ready(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportNotReady, err)
	}
	if !ready {
		return nil, domain.ErrTransportNotReady
	}

	address, _ := domain.NormalizeAddress(rawNumber)
	if !domain.SendableAddress(address) {
		return nil, fmt.Errorf("%w: unsendable address %q", domain.ErrValidation, address)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}

	msg := &domain.Message{
		SenderAddress:    s.senderAddress,
		RecipientAddress: address,
		Body:             text,
		Outgoing:         true,
		Status:           domain.StatusPending,
		Kind:             domain.KindManualSingle,
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		msg.RecipientName = &trimmed
	}

	if err := s.ledger.Record(ctx, msg); err != nil {
		return nil, err
	}

	result, sendErr := s.send(ctx, domain.KindManualSingle, address, text, nil)
	if sendErr != nil {
		s.metrics.IncMessageFailed(domain.KindManualSingle.String(), "transport")
		errText := sendErr.Error()
		updated, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
			Status:       domain.StatusError,
			ErrorMessage: &errText,
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	s.metrics.IncMessageSent(domain.KindManualSingle.String())
	updated, _, err := s.ledger.Transition(ctx, msg.ID, repository.TransitionUpdate{
		Status:             domain.StatusSent,
		TransportMessageID: &result.TransportMessageID,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DispatchService) send(ctx context.Context, kind domain.Kind, address, text string, attachment *gateway.Attachment) (*gateway.SendResult, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveSendDuration(kind.String(), s.now().Sub(start))
	}()

	if attachment != nil {
		return s.transport.SendAttachment(ctx, address, text, *attachment)
	}
	return s.transport.SendText(ctx, address, text)
}

func (s *DispatchService) tryAcquire() bool {
	select {
	case s.busy <- struct{}{}:
		s.metrics.SetDispatchInFlight(true)
		return true
	default:
		return false
	}
}

func (s *DispatchService) release() {
	<-s.busy
	s.metrics.SetDispatchInFlight(false)
}

func (s *DispatchService) completeWithFailure(ctx context.Context, jobID string, total int, cause string) {
	s.publisher.Notify(ctx, events.KindBulkComplete, events.BulkCompletePayload{
		Total:  total,
		Sent:   0,
		Failed: total,
		JobID:  jobID,
		Error:  cause,
	})
}

// PersonalizeTemplate substitutes the recipient's name into the template at
// every {name} placeholder, case-insensitively.
func PersonalizeTemplate(template, name string) string {
	return namePlaceholderRx.ReplaceAllLiteralString(template, name)
}

// prepareAttachment decodes and validates the shared attachment once, before
// the loop starts. Any failure here covers all recipients.
func prepareAttachment(input *AttachmentInput) (*gateway.Attachment, error) {
	if input == nil {
		return nil, nil
	}

	if strings.TrimSpace(input.MimeType) == "" {
		return nil, fmt.Errorf("%w: attachment mime type is required", domain.ErrAttachmentPreparation)
	}

	data, err := base64.StdEncoding.DecodeString(input.Base64Data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", domain.ErrAttachmentPreparation, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", domain.ErrAttachmentPreparation)
	}
	if len(data) > maxAttachmentBytes {
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrAttachmentPreparation, maxAttachmentBytes)
	}

	return &gateway.Attachment{
		Data:     data,
		MimeType: input.MimeType,
		Filename: input.Filename,
	}, nil
}
