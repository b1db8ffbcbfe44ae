package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the delivery lifecycle state of a message.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
	StatusError     Status = "ERROR"

	// StatusReceived marks inbound records. They are written once and are
	// never subject to outbound transitions.
	StatusReceived Status = "RECEIVED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusError, StatusReceived:
		return true
	}
	return false
}

// Rank is the total order used to decide whether a proposed status update
// represents forward progress. Statuses outside the outbound ladder have no
// rank and report -1.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// CanTransition reports whether a record currently in status current may move
// to proposed. ERROR may always be forced in over any outbound status, even
// READ. Otherwise the update applies only when the current status is
// non-terminal and the proposed rank is strictly ahead of the stored one.
// Re-applying the same or an earlier status is suppressed, which makes
// acknowledgement handling idempotent: only the first application of a given
// status changes the row. RECEIVED marks an inbound record and never
// transitions anywhere.
func CanTransition(current, proposed Status) bool {
	if current == StatusReceived {
		return false
	}
	if proposed == StatusError {
		return current != StatusError
	}
	if current == StatusRead || current == StatusError {
		return false
	}
	if proposed.Rank() < 0 {
		return false
	}
	return proposed.Rank() > current.Rank()
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Kind classifies how a message entered the system.
type Kind string

const (
	KindIncoming     Kind = "INCOMING"
	KindAutoResponse Kind = "AUTO_RESPONSE"
	KindForwarded    Kind = "FORWARDED"
	KindManualSingle Kind = "MANUAL_SINGLE"
	KindBulk         Kind = "BULK"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindIncoming, KindAutoResponse, KindForwarded, KindManualSingle, KindBulk:
		return true
	}
	return false
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid kind %q", ErrValidation, s)
	}
	return k, nil
}

// Message is one send or receive attempt. One row per attempt, not per
// conversation turn. After creation only the status ledger mutates Status,
// TransportMessageID and ErrorMessage.
type Message struct {
	ID                 string
	TransportMessageID *string
	SenderAddress      string
	RecipientAddress   string
	RecipientName      *string
	Body               string
	Outgoing           bool
	Status             Status
	Kind               Kind
	BulkJobID          *string
	ErrorMessage       *string
	HasAttachment      bool
	AttachmentMimeType *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrValidation)
	}
	if strings.TrimSpace(m.RecipientAddress) == "" {
		return fmt.Errorf("%w: recipient address is required", ErrValidation)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, m.Status)
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", ErrValidation, m.Kind)
	}
	if m.Outgoing && m.Status == StatusReceived {
		return fmt.Errorf("%w: outgoing message cannot be in RECEIVED status", ErrValidation)
	}
	return nil
}
