package domain

import (
	"errors"
	"testing"
)

func TestStatusRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   int
	}{
		{StatusPending, 0},
		{StatusSent, 1},
		{StatusDelivered, 2},
		{StatusRead, 3},
		{StatusError, -1},
		{StatusReceived, -1},
	}

	for _, tt := range tests {
		if got := tt.status.Rank(); got != tt.want {
			t.Errorf("Rank(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  Status
		proposed Status
		want     bool
	}{
		{name: "pending to sent", current: StatusPending, proposed: StatusSent, want: true},
		{name: "sent to delivered", current: StatusSent, proposed: StatusDelivered, want: true},
		{name: "delivered to read", current: StatusDelivered, proposed: StatusRead, want: true},
		{name: "pending straight to read", current: StatusPending, proposed: StatusRead, want: true},
		{name: "same status is suppressed", current: StatusSent, proposed: StatusSent, want: false},
		{name: "pending reapplied is suppressed", current: StatusPending, proposed: StatusPending, want: false},
		{name: "delivered back to pending", current: StatusDelivered, proposed: StatusPending, want: false},
		{name: "read back to delivered", current: StatusRead, proposed: StatusDelivered, want: false},
		{name: "read is terminal", current: StatusRead, proposed: StatusSent, want: false},
		{name: "error is terminal", current: StatusError, proposed: StatusSent, want: false},
		{name: "error overrides read", current: StatusRead, proposed: StatusError, want: true},
		{name: "repeated error ack is suppressed", current: StatusError, proposed: StatusError, want: false},
		{name: "any state to error", current: StatusPending, proposed: StatusError, want: true},
		{name: "received never transitions", current: StatusReceived, proposed: StatusSent, want: false},
		{name: "received not even to error", current: StatusReceived, proposed: StatusError, want: false},
		{name: "received cannot be proposed", current: StatusPending, proposed: StatusReceived, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CanTransition(tt.current, tt.proposed); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.current, tt.proposed, got, tt.want)
			}
		})
	}
}

func TestCanTransitionNeverRegresses(t *testing.T) {
	t.Parallel()

	ladder := []Status{StatusPending, StatusSent, StatusDelivered, StatusRead}
	for _, current := range ladder {
		for _, proposed := range ladder {
			if CanTransition(current, proposed) && proposed.Rank() < current.Rank() {
				t.Errorf("regression allowed: %s -> %s", current, proposed)
			}
		}
	}
}

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseStatusFromString(" delivered ")
	if err != nil {
		t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
	}
	if got != StatusDelivered {
		t.Fatalf("ParseStatusFromString() = %s, want %s", got, StatusDelivered)
	}

	_, err = ParseStatusFromString("teleported")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	valid := Message{
		RecipientAddress: "996555112233@c.us",
		Status:           StatusPending,
		Kind:             KindBulk,
		Outgoing:         true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{name: "missing recipient", mutate: func(m *Message) { m.RecipientAddress = " " }},
		{name: "invalid status", mutate: func(m *Message) { m.Status = "LOST" }},
		{name: "invalid kind", mutate: func(m *Message) { m.Kind = "CARRIER_PIGEON" }},
		{name: "outgoing in received", mutate: func(m *Message) { m.Status = StatusReceived }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := valid
			tt.mutate(&m)
			if err := m.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}
