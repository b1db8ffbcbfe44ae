// Package gateway talks to the WhatsApp HTTP gateway that owns the actual
// session: authentication, pairing and network transmission live there. This
// package only covers the send/ready surface and the shapes of the ack and
// inbound callbacks the gateway posts back to us.
package gateway

import "context"

// Attachment is a decoded, ready-to-send media payload shared by every
// recipient of a bulk job.
type Attachment struct {
	Data     []byte
	MimeType string
	Filename string
}

// SendResult carries the transport-assigned identifier required to correlate
// later acknowledgements.
type SendResult struct {
	TransportMessageID string
}

// Client is the outbound transport port.
type Client interface {
	// Ready reports whether the gateway session can accept sends.
	Ready(ctx context.Context) (bool, error)
	SendText(ctx context.Context, address, text string) (*SendResult, error)
	SendAttachment(ctx context.Context, address, caption string, attachment Attachment) (*SendResult, error)
}

// Acknowledgement codes as reported by the transport.
const (
	AckFailed  = -1
	AckPending = 0
	AckServer  = 1
	AckDevice  = 2
	AckRead    = 3
	AckPlayed  = 4
)

// AckEvent is one delivery-status change for a message we originated.
type AckEvent struct {
	TransportMessageID string `json:"id"`
	Ack                int    `json:"ack"`
}

// InboundEvent is one message received by the session.
type InboundEvent struct {
	From               string `json:"from"`
	Body               string `json:"body"`
	HasAttachment      bool   `json:"hasMedia"`
	Timestamp          int64  `json:"timestamp"`
	TransportMessageID string `json:"id"`
}
