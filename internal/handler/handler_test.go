package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/gateway"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/DouglasAntonni/serverwpp/internal/roster"
	"github.com/DouglasAntonni/serverwpp/internal/service"
	"github.com/DouglasAntonni/serverwpp/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubDispatcher struct {
	startFn func(ctx context.Context, req service.BulkRequest) (string, error)
	sendFn  func(ctx context.Context, rawNumber, name, text string) (*domain.Message, error)
}

func (s *stubDispatcher) StartDispatch(ctx context.Context, req service.BulkRequest) (string, error) {
	if s.startFn != nil {
		return s.startFn(ctx, req)
	}
	return "job-1", nil
}

func (s *stubDispatcher) SendSingle(ctx context.Context, rawNumber, name, text string) (*domain.Message, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, rawNumber, name, text)
	}
	return &domain.Message{
		ID:               "m-1",
		RecipientAddress: "15551000001@c.us",
		Body:             text,
		Outgoing:         true,
		Status:           domain.StatusSent,
		Kind:             domain.KindManualSingle,
	}, nil
}

type stubMessageReader struct {
	getFn  func(ctx context.Context, id string) (*domain.Message, error)
	listFn func(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error)
}

func (s *stubMessageReader) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubMessageReader) List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, 0, nil
}

type stubAckApplier struct {
	calls []gateway.AckEvent
}

func (s *stubAckApplier) Reconcile(ctx context.Context, transportMessageID string, ackCode int) {
	s.calls = append(s.calls, gateway.AckEvent{TransportMessageID: transportMessageID, Ack: ackCode})
}

type stubInboundHandler struct {
	calls []gateway.InboundEvent
}

func (s *stubInboundHandler) Handle(ctx context.Context, event gateway.InboundEvent) {
	s.calls = append(s.calls, event)
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	return fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
}

func performRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return performHTTP(t, app, req)
}

func performHTTP(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

// dispatchForm builds the multipart body the dispatch endpoint accepts.
func dispatchForm(t *testing.T, template, csvData string, attachment []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if template != "" {
		if err := writer.WriteField("template", template); err != nil {
			t.Fatalf("WriteField error = %v", err)
		}
	}
	if csvData != "" {
		part, err := writer.CreateFormFile("recipients", "recipients.csv")
		if err != nil {
			t.Fatalf("CreateFormFile error = %v", err)
		}
		if _, err := part.Write([]byte(csvData)); err != nil {
			t.Fatalf("write csv error = %v", err)
		}
	}
	if attachment != nil {
		part, err := writer.CreateFormFile("attachment", "photo.png")
		if err != nil {
			t.Fatalf("CreateFormFile error = %v", err)
		}
		if _, err := part.Write(attachment); err != nil {
			t.Fatalf("write attachment error = %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func newRosterParser() *roster.Parser {
	return roster.NewParser(zap.NewNop())
}
