package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionUpdate is the payload of one status-ledger transition attempt.
type TransitionUpdate struct {
	Status             domain.Status
	TransportMessageID *string
	ErrorMessage       *string
}

type ListParams struct {
	ChatAddress *string
	Status      *domain.Status
	Kind        *domain.Kind
	BulkJobID   *string
	Page        int
	PageSize    int
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// FindByTransportMessageID resolves an acknowledgement to its record.
	// Only outgoing records are considered; inbound messages never receive
	// outbound acks.
	FindByTransportMessageID(ctx context.Context, transportMessageID string) (*domain.Message, error)
	// ApplyTransition evaluates the hierarchy-rank rule against the stored
	// status and applies the update in one atomic read-modify-write. It
	// returns the resulting record and whether the update was applied; a
	// suppressed transition writes nothing.
	ApplyTransition(ctx context.Context, id string, update TransitionUpdate) (*domain.Message, bool, error)
	List(ctx context.Context, params ListParams) ([]domain.Message, int64, error)
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m != nil && m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	model := messageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if m != nil {
		*m = *messageModelToDomain(model)
	}
	return nil
}

func (r *GormMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) FindByTransportMessageID(ctx context.Context, transportMessageID string) (*domain.Message, error) {
	if strings.TrimSpace(transportMessageID) == "" {
		return nil, domain.ErrNotFound
	}

	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("transport_message_id = ? AND outgoing = ?", transportMessageID, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) ApplyTransition(ctx context.Context, id string, update TransitionUpdate) (*domain.Message, bool, error) {
	var result *MessageModel
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model MessageModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if !domain.CanTransition(model.Status, update.Status) {
			result = &model
			return nil
		}

		changes := map[string]any{
			"status":     update.Status,
			"updated_at": time.Now().UTC(),
		}
		if update.TransportMessageID != nil {
			changes["transport_message_id"] = *update.TransportMessageID
			model.TransportMessageID = update.TransportMessageID
		}
		if update.ErrorMessage != nil {
			changes["error_message"] = *update.ErrorMessage
			model.ErrorMessage = update.ErrorMessage
		}

		if err := tx.Model(&model).Updates(changes).Error; err != nil {
			return err
		}

		model.Status = update.Status
		result = &model
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return messageModelToDomain(result), applied, nil
}

func (r *GormMessageRepo) List(ctx context.Context, params ListParams) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&MessageModel{})

	if params.ChatAddress != nil {
		query = query.Where("sender_address = ? OR recipient_address = ?", *params.ChatAddress, *params.ChatAddress)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.BulkJobID != nil {
		query = query.Where("bulk_job_id = ?", *params.BulkJobID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 200)

	var models []MessageModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, total, nil
}
