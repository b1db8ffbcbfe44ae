package domain

import "errors"

var (
	// ErrValidation marks malformed input that the caller must fix.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup that matched no record.
	ErrNotFound = errors.New("not found")

	// ErrTransportNotReady marks a dispatch attempted while the transport
	// session is not connected. Nothing is sent in this case.
	ErrTransportNotReady = errors.New("transport not ready")

	// ErrAttachmentPreparation marks a shared attachment that could not be
	// decoded or validated before the dispatch loop started.
	ErrAttachmentPreparation = errors.New("attachment preparation failed")

	// ErrDispatchBusy marks a dispatch rejected because another job already
	// holds the transport's outbound channel.
	ErrDispatchBusy = errors.New("dispatch already in progress")
)
