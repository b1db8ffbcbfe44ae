package repository

import (
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
)

// MessageModel is the persistence model for the messages table.
type MessageModel struct {
	ID                 string        `gorm:"type:uuid;primaryKey"`
	TransportMessageID *string       `gorm:"type:varchar(255)"`
	SenderAddress      string        `gorm:"type:varchar(255);not null"`
	RecipientAddress   string        `gorm:"type:varchar(255);not null"`
	RecipientName      *string       `gorm:"type:varchar(255)"`
	Body               string        `gorm:"type:text;not null"`
	Outgoing           bool          `gorm:"not null"`
	Status             domain.Status `gorm:"type:varchar(20);not null"`
	Kind               domain.Kind   `gorm:"type:varchar(20);not null"`
	BulkJobID          *string       `gorm:"type:uuid"`
	ErrorMessage       *string       `gorm:"type:text"`
	HasAttachment      bool          `gorm:"not null;default:false"`
	AttachmentMimeType *string       `gorm:"type:varchar(100)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

func messageModelFromDomain(m *domain.Message) *MessageModel {
	if m == nil {
		return nil
	}

	return &MessageModel{
		ID:                 m.ID,
		TransportMessageID: m.TransportMessageID,
		SenderAddress:      m.SenderAddress,
		RecipientAddress:   m.RecipientAddress,
		RecipientName:      m.RecipientName,
		Body:               m.Body,
		Outgoing:           m.Outgoing,
		Status:             m.Status,
		Kind:               m.Kind,
		BulkJobID:          m.BulkJobID,
		ErrorMessage:       m.ErrorMessage,
		HasAttachment:      m.HasAttachment,
		AttachmentMimeType: m.AttachmentMimeType,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:                 m.ID,
		TransportMessageID: m.TransportMessageID,
		SenderAddress:      m.SenderAddress,
		RecipientAddress:   m.RecipientAddress,
		RecipientName:      m.RecipientName,
		Body:               m.Body,
		Outgoing:           m.Outgoing,
		Status:             m.Status,
		Kind:               m.Kind,
		BulkJobID:          m.BulkJobID,
		ErrorMessage:       m.ErrorMessage,
		HasAttachment:      m.HasAttachment,
		AttachmentMimeType: m.AttachmentMimeType,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
