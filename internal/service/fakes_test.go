package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/events"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
)

// fakeMessageRepo is an in-memory MessageRepository applying the same
// transition rule as the real one.
type fakeMessageRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Message
	order   []string

	createErrFor func(m *domain.Message) error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{records: map[string]*domain.Message{}}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErrFor != nil {
		if err := f.createErrFor(m); err != nil {
			return err
		}
	}

	clone := *m
	f.records[m.ID] = &clone
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (f *fakeMessageRepo) FindByTransportMessageID(ctx context.Context, transportMessageID string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.records {
		if m.Outgoing && m.TransportMessageID != nil && *m.TransportMessageID == transportMessageID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMessageRepo) ApplyTransition(ctx context.Context, id string, update repository.TransitionUpdate) (*domain.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.records[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}

	if !domain.CanTransition(m.Status, update.Status) {
		clone := *m
		return &clone, false, nil
	}

	m.Status = update.Status
	if update.TransportMessageID != nil {
		m.TransportMessageID = update.TransportMessageID
	}
	if update.ErrorMessage != nil {
		m.ErrorMessage = update.ErrorMessage
	}

	clone := *m
	return &clone, true, nil
}

func (f *fakeMessageRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Message
	for _, id := range f.order {
		out = append(out, *f.records[id])
	}
	return out, int64(len(out)), nil
}

func (f *fakeMessageRepo) all() []*domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*domain.Message, 0, len(f.order))
	for _, id := range f.order {
		clone := *f.records[id]
		out = append(out, &clone)
	}
	return out
}

type publishedEvent struct {
	kind    events.Kind
	payload any
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []publishedEvent
	onNotify func(kind events.Kind)
}

func (f *fakePublisher) Notify(ctx context.Context, kind events.Kind, payload any) {
	f.mu.Lock()
	f.events = append(f.events, publishedEvent{kind: kind, payload: payload})
	hook := f.onNotify
	f.mu.Unlock()

	if hook != nil {
		hook(kind)
	}
}

func (f *fakePublisher) ofKind(kind events.Kind) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []publishedEvent
	for _, e := range f.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeTransport struct {
	mu              sync.Mutex
	readyFn         func(ctx context.Context) (bool, error)
	sendTextFn      func(ctx context.Context, address, text string) (*gateway.SendResult, error)
	sendAttachFn    func(ctx context.Context, address, caption string, attachment gateway.Attachment) (*gateway.SendResult, error)
	sentTo          []string
	nextTransportID int
}

func (f *fakeTransport) Ready(ctx context.Context) (bool, error) {
	if f.readyFn != nil {
		return f.readyFn(ctx)
	}
	return true, nil
}

func (f *fakeTransport) SendText(ctx context.Context, address, text string) (*gateway.SendResult, error) {
	f.mu.Lock()
	f.sentTo = append(f.sentTo, address)
	f.mu.Unlock()

	if f.sendTextFn != nil {
		return f.sendTextFn(ctx, address, text)
	}
	return &gateway.SendResult{TransportMessageID: f.nextID()}, nil
}

func (f *fakeTransport) SendAttachment(ctx context.Context, address, caption string, attachment gateway.Attachment) (*gateway.SendResult, error) {
	f.mu.Lock()
	f.sentTo = append(f.sentTo, address)
	f.mu.Unlock()

	if f.sendAttachFn != nil {
		return f.sendAttachFn(ctx, address, caption, attachment)
	}
	return &gateway.SendResult{TransportMessageID: f.nextID()}, nil
}

func (f *fakeTransport) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTransportID++
	return fmt.Sprintf("transport-%d", f.nextTransportID)
}

func (f *fakeTransport) sends() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentTo...)
}

type fakePacer struct {
	mu    sync.Mutex
	waits int
}

func (f *fakePacer) Wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return nil
}

func (f *fakePacer) waitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}
