package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPClient implements Client against a WAHA-compatible HTTP gateway.
type HTTPClient struct {
	client  *resty.Client
	baseURL string
	session string
}

func NewHTTPClient(baseURL, apiKey, session string) (*HTTPClient, error) {
	client := resty.New()
	client.SetTimeout(defaultRequestTimeout)
	client.SetRetryCount(0)
	if apiKey != "" {
		client.SetHeader("X-Api-Key", apiKey)
	}

	return NewHTTPClientWithResty(baseURL, session, client)
}

func NewHTTPClientWithResty(baseURL, session string, client *resty.Client) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if strings.TrimSpace(session) == "" {
		return nil, fmt.Errorf("gateway session is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRequestTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPClient{
		client:  client,
		baseURL: trimmed,
		session: session,
	}, nil
}

type sessionStatusResponse struct {
	Status string `json:"status"`
}

func (c *HTTPClient) Ready(ctx context.Context) (bool, error) {
	if c == nil || c.client == nil {
		return false, fmt.Errorf("gateway client is not initialized")
	}

	response, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/api/sessions/%s", c.baseURL, c.session))
	if err != nil {
		return false, fmt.Errorf("session status request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return false, nil
	}

	var status sessionStatusResponse
	if err := json.Unmarshal(response.Body(), &status); err != nil {
		return false, fmt.Errorf("malformed session status response: %w", err)
	}

	return strings.EqualFold(status.Status, "WORKING"), nil
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

type sendFileRequest struct {
	Session string   `json:"session"`
	ChatID  string   `json:"chatId"`
	Caption string   `json:"caption,omitempty"`
	File    filePart `json:"file"`
}

type filePart struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     string `json:"data"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) SendText(ctx context.Context, address, text string) (*SendResult, error) {
	return c.post(ctx, "/api/sendText", sendTextRequest{
		Session: c.session,
		ChatID:  address,
		Text:    text,
	})
}

func (c *HTTPClient) SendAttachment(ctx context.Context, address, caption string, attachment Attachment) (*SendResult, error) {
	return c.post(ctx, "/api/sendFile", sendFileRequest{
		Session: c.session,
		ChatID:  address,
		Caption: caption,
		File: filePart{
			MimeType: attachment.MimeType,
			Filename: attachment.Filename,
			Data:     base64.StdEncoding.EncodeToString(attachment.Data),
		},
	})
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*SendResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("gateway client is not initialized")
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.baseURL + path)
	if err != nil {
		return nil, &SendError{
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &SendError{
			StatusCode: statusCode,
			Message:    sendErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var sent sendResponse
	if err := json.Unmarshal(response.Body(), &sent); err != nil || strings.TrimSpace(sent.ID) == "" {
		return nil, &SendError{
			StatusCode: statusCode,
			Message:    "gateway accepted the send but returned no message id",
			Transient:  false,
		}
	}

	return &SendResult{TransportMessageID: sent.ID}, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sendErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
