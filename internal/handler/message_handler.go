package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 200
)

type MessageReader interface {
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error)
}

type MessageHandler struct {
	messages MessageReader
}

func NewMessageHandler(messages MessageReader) (*MessageHandler, error) {
	if messages == nil {
		return nil, fmt.Errorf("message reader is required")
	}
	return &MessageHandler{messages: messages}, nil
}

func RegisterMessageRoutes(router fiber.Router, messages MessageReader) error {
	h, err := NewMessageHandler(messages)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/messages", h.ListMessages)
	v1.Get("/messages/:id", h.GetMessage)

	return nil
}

type messageResponse struct {
	ID                 string    `json:"id"`
	TransportMessageID *string   `json:"transportMessageId,omitempty"`
	SenderAddress      string    `json:"senderAddress"`
	RecipientAddress   string    `json:"recipientAddress"`
	RecipientName      *string   `json:"recipientName,omitempty"`
	Body               string    `json:"body"`
	Outgoing           bool      `json:"outgoing"`
	Status             string    `json:"status"`
	Kind               string    `json:"kind"`
	BulkJobID          *string   `json:"bulkJobId,omitempty"`
	ErrorMessage       *string   `json:"errorMessage,omitempty"`
	HasAttachment      bool      `json:"hasAttachment"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt,omitempty"`
}

type listMessagesResponse struct {
	Data []messageResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	msg, err := h.messages.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMessageResponse(msg))
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	messages, total, err := h.messages.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]messageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, toMessageResponse(&messages[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listMessagesResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawKind := strings.TrimSpace(c.Query("kind")); rawKind != "" {
		kind, err := domain.ParseKindFromString(rawKind)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Kind = &kind
	}

	if rawChat := strings.TrimSpace(c.Query("chat")); rawChat != "" {
		address, _ := domain.NormalizeAddress(rawChat)
		params.ChatAddress = &address
	}

	if rawJob := strings.TrimSpace(c.Query("bulkJobId")); rawJob != "" {
		params.BulkJobID = &rawJob
	}

	return params, nil
}

func toMessageResponse(m *domain.Message) messageResponse {
	if m == nil {
		return messageResponse{}
	}

	return messageResponse{
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
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
