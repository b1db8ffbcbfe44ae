package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *GormMessageRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	if err := db.AutoMigrate(&MessageModel{}); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	return NewGormMessageRepo(db)
}

func outgoingMessage(id string) *domain.Message {
	return &domain.Message{
		ID:               id,
		SenderAddress:    "15550000000@c.us",
		RecipientAddress: "15551234567@c.us",
		Body:             "hello",
		Outgoing:         true,
		Status:           domain.StatusPending,
		Kind:             domain.KindBulk,
	}
}

func TestGormMessageRepoCreateAndGet(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	name := "Ana"
	mime := "image/png"
	msg := outgoingMessage("11111111-1111-1111-1111-111111111111")
	msg.RecipientName = &name
	msg.HasAttachment = true
	msg.AttachmentMimeType = &mime

	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("Create() should backfill CreatedAt")
	}

	got, err := repo.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RecipientAddress != msg.RecipientAddress || got.Status != domain.StatusPending {
		t.Fatalf("round trip = %+v", got)
	}
	if got.RecipientName == nil || *got.RecipientName != "Ana" {
		t.Fatal("recipient name lost in round trip")
	}
	if !got.HasAttachment || got.AttachmentMimeType == nil || *got.AttachmentMimeType != "image/png" {
		t.Fatal("attachment columns lost in round trip")
	}
}

func TestGormMessageRepoGetByIDNotFound(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "22222222-2222-2222-2222-222222222222")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGormMessageRepoFindByTransportMessageID(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)

	wireID := "true_15551234567@c.us_AAA"
	outgoing := outgoingMessage("33333333-3333-3333-3333-333333333333")
	outgoing.Status = domain.StatusSent
	outgoing.TransportMessageID = &wireID
	if err := repo.Create(context.Background(), outgoing); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// An inbound record with its own transport id must never resolve.
	inboundWireID := "false_15551234567@c.us_BBB"
	inbound := &domain.Message{
		ID:                 "44444444-4444-4444-4444-444444444444",
		SenderAddress:      "15551234567@c.us",
		RecipientAddress:   "15550000000@c.us",
		Body:               "reply",
		Outgoing:           false,
		Status:             domain.StatusReceived,
		Kind:               domain.KindIncoming,
		TransportMessageID: &inboundWireID,
	}
	if err := repo.Create(context.Background(), inbound); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.FindByTransportMessageID(context.Background(), wireID)
	if err != nil {
		t.Fatalf("FindByTransportMessageID() error = %v", err)
	}
	if got.ID != outgoing.ID {
		t.Fatalf("resolved id = %s, want %s", got.ID, outgoing.ID)
	}

	if _, err := repo.FindByTransportMessageID(context.Background(), inboundWireID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("inbound lookup error = %v, want ErrNotFound", err)
	}
	if _, err := repo.FindByTransportMessageID(context.Background(), "  "); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("blank lookup error = %v, want ErrNotFound", err)
	}
}

func TestGormMessageRepoListFilters(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	jobID := "55555555-5555-5555-5555-555555555555"

	seed := []*domain.Message{
		{ID: "m-1", SenderAddress: "self@c.us", RecipientAddress: "15551000001@c.us", Body: "a", Outgoing: true, Status: domain.StatusSent, Kind: domain.KindBulk, BulkJobID: &jobID},
		{ID: "m-2", SenderAddress: "self@c.us", RecipientAddress: "15551000002@c.us", Body: "b", Outgoing: true, Status: domain.StatusError, Kind: domain.KindBulk, BulkJobID: &jobID},
		{ID: "m-3", SenderAddress: "15551000001@c.us", RecipientAddress: "self@c.us", Body: "c", Outgoing: false, Status: domain.StatusReceived, Kind: domain.KindIncoming},
	}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, m := range seed {
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("Create(%s) error = %v", m.ID, err)
		}
	}

	status := domain.StatusError
	got, total, err := repo.List(context.Background(), ListParams{Status: &status})
	if err != nil {
		t.Fatalf("List(status) error = %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != "m-2" {
		t.Fatalf("status filter = %d rows, total %d", len(got), total)
	}

	got, total, err = repo.List(context.Background(), ListParams{BulkJobID: &jobID})
	if err != nil {
		t.Fatalf("List(bulkJobId) error = %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("job filter = %d rows, total %d", len(got), total)
	}

	// Chat filter matches both directions of the conversation.
	chat := "15551000001@c.us"
	got, total, err = repo.List(context.Background(), ListParams{ChatAddress: &chat})
	if err != nil {
		t.Fatalf("List(chat) error = %v", err)
	}
	if total != 2 {
		t.Fatalf("chat filter total = %d, want 2", total)
	}
	for _, m := range got {
		if m.SenderAddress != chat && m.RecipientAddress != chat {
			t.Fatalf("chat filter returned unrelated row %s", m.ID)
		}
	}

	kind := domain.KindIncoming
	got, _, err = repo.List(context.Background(), ListParams{Kind: &kind})
	if err != nil {
		t.Fatalf("List(kind) error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "m-3" {
		t.Fatalf("kind filter = %+v", got)
	}
}

func TestGormMessageRepoListPagination(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m := outgoingMessage(fmt.Sprintf("p-%d", i))
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, total, err := repo.List(context.Background(), ListParams{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(got) != 2 {
		t.Fatalf("page rows = %d, want 2", len(got))
	}
	// Newest first: page 2 of size 2 holds the third and fourth newest.
	if got[0].ID != "p-2" || got[1].ID != "p-1" {
		t.Fatalf("page order = %s, %s", got[0].ID, got[1].ID)
	}
}
