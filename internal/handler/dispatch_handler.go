package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/observability"
	"github.com/DouglasAntonni/serverwpp/internal/roster"
	"github.com/DouglasAntonni/serverwpp/internal/service"
	"github.com/gofiber/fiber/v2"
)

type Dispatcher interface {
	StartDispatch(ctx context.Context, req service.BulkRequest) (string, error)
	SendSingle(ctx context.Context, rawNumber, name, text string) (*domain.Message, error)
}

type RosterParser interface {
	Parse(r io.Reader) (*roster.Result, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
	roster     RosterParser
}

func NewDispatchHandler(dispatcher Dispatcher, rosterParser RosterParser) (*DispatchHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if rosterParser == nil {
		return nil, fmt.Errorf("roster parser is required")
	}
	return &DispatchHandler{dispatcher: dispatcher, roster: rosterParser}, nil
}

func RegisterDispatchRoutes(router fiber.Router, dispatcher Dispatcher, rosterParser RosterParser) error {
	h, err := NewDispatchHandler(dispatcher, rosterParser)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/dispatch", h.StartDispatch)
	v1.Post("/messages", h.SendMessage)

	return nil
}

type startDispatchResponse struct {
	JobID    string `json:"jobId"`
	Total    int    `json:"total"`
	Rejected int    `json:"rejected"`
	Status   string `json:"status"`
}

type sendMessageRequest struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// StartDispatch accepts a multipart form with a "recipients" CSV file, a
// "template" field and an optional "attachment" file, and starts the bulk job
// in the background. Progress is observed on the event stream, not this
// response.
func (h *DispatchHandler) StartDispatch(c *fiber.Ctx) error {
	template := strings.TrimSpace(c.FormValue("template"))
	if template == "" {
		return toHTTPError(fmt.Errorf("%w: template is required", domain.ErrValidation))
	}

	fileHeader, err := c.FormFile("recipients")
	if err != nil {
		return toHTTPError(fmt.Errorf("%w: recipients file is required", domain.ErrValidation))
	}

	parsed, err := h.parseRoster(fileHeader)
	if err != nil {
		return toHTTPError(err)
	}

	req := service.BulkRequest{
		Recipients: parsed.Recipients,
		Template:   template,
	}

	if attachmentHeader, err := c.FormFile("attachment"); err == nil && attachmentHeader != nil {
		attachment, err := readAttachment(attachmentHeader)
		if err != nil {
			return toHTTPError(err)
		}
		req.Attachment = attachment
	}

	ctx := observability.WithCorrelationID(c.Context(), requestCorrelationID(c))
	jobID, err := h.dispatcher.StartDispatch(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(startDispatchResponse{
		JobID:    jobID,
		Total:    len(parsed.Recipients),
		Rejected: parsed.Rejected,
		Status:   "started",
	})
}

func (h *DispatchHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := observability.WithCorrelationID(c.Context(), requestCorrelationID(c))
	msg, err := h.dispatcher.SendSingle(ctx, req.Number, req.Name, req.Text)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(msg))
}

func (h *DispatchHandler) parseRoster(fileHeader *multipart.FileHeader) (*roster.Result, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: could not open recipients file: %v", domain.ErrValidation, err)
	}
	defer file.Close()

	return h.roster.Parse(file)
}

func readAttachment(fileHeader *multipart.FileHeader) (*service.AttachmentInput, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: could not open attachment: %v", domain.ErrAttachmentPreparation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read attachment: %v", domain.ErrAttachmentPreparation, err)
	}

	mimeType := fileHeader.Header.Get(fiber.HeaderContentType)
	return &service.AttachmentInput{
		Base64Data: base64.StdEncoding.EncodeToString(data),
		MimeType:   mimeType,
		Filename:   fileHeader.Filename,
	}, nil
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDispatchBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAttachmentPreparation):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrTransportNotReady):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
