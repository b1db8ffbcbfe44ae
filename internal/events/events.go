// Package events carries real-time notifications out of the dispatch core.
package events

import (
	"context"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
)

// Kind identifies an event on the outbound notification stream.
type Kind string

const (
	KindNewMessage    Kind = "new_message"
	KindMessageUpdate Kind = "message_update"
	KindBulkProgress  Kind = "bulk_progress"
	KindBulkComplete  Kind = "bulk_complete"
	KindError         Kind = "error"
)

// Publisher is the observer boundary. Implementations must not block the
// dispatch loop for long and must swallow their own delivery failures.
type Publisher interface {
	Notify(ctx context.Context, kind Kind, payload any)
}

// MessagePayload accompanies new_message and message_update events.
type MessagePayload struct {
	ID                 string  `json:"id"`
	TransportMessageID *string `json:"transportMessageId,omitempty"`
	SenderAddress      string  `json:"senderAddress"`
	RecipientAddress   string  `json:"recipientAddress"`
	RecipientName      *string `json:"recipientName,omitempty"`
	Body               string  `json:"body"`
	Outgoing           bool    `json:"outgoing"`
	Status             string  `json:"status"`
	Kind               string  `json:"kind"`
	BulkJobID          *string `json:"bulkJobId,omitempty"`
	ErrorMessage       *string `json:"errorMessage,omitempty"`
	HasAttachment      bool    `json:"hasAttachment"`
	Timestamp          int64   `json:"timestamp"`
}

// BulkProgressPayload is emitted after every recipient of a bulk job.
type BulkProgressPayload struct {
	Current      int `json:"current"`
	Total        int `json:"total"`
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// BulkCompletePayload is emitted exactly once per bulk job, including
// zero-work and total-failure runs.
type BulkCompletePayload struct {
	Total  int    `json:"total"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	JobID  string `json:"jobId"`
	Error  string `json:"error,omitempty"`
}

// ErrorPayload is emitted for operator-visible failures outside a job.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ToMessagePayload projects the full updated record onto the wire shape.
func ToMessagePayload(m *domain.Message) MessagePayload {
	if m == nil {
		return MessagePayload{}
	}
	return MessagePayload{
		ID:                 m.ID,
		TransportMessageID: m.TransportMessageID,
		SenderAddress:      m.SenderAddress,
		RecipientAddress:   m.RecipientAddress,
		RecipientName:      m.RecipientName,
		Body:               m.Body,
		Outgoing:           m.Outgoing,
		Status:             m.Status.String(),
		Kind:               m.Kind.String(),
		BulkJobID:          m.BulkJobID,
		ErrorMessage:       m.ErrorMessage,
		HasAttachment:      m.HasAttachment,
		Timestamp:          m.CreatedAt.Unix(),
	}
}
