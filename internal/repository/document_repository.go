package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/utils"
	"gorm.io/gorm"
)

// DocumentQuery narrows a document listing. VisibleTo restricts results to
// public documents and those owned by that user.
type DocumentQuery struct {
	RFPID      *uuid.UUID
	ResponseID *string
	VisibleTo  *uuid.UUID
	Page       utils.Page
}

type DocumentRepository interface {
	BaseRepository[models.Document]
	List(ctx context.Context, q DocumentQuery) ([]models.Document, int64, error)
}

type documentRepository struct {
	BaseRepository[models.Document]
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{BaseRepository: NewBaseRepository[models.Document](db), db: db}
}

func (r *documentRepository) List(ctx context.Context, q DocumentQuery) ([]models.Document, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Document{})
	if q.RFPID != nil {
		tx = tx.Where("rfp_id = ?", *q.RFPID)
	}
	if q.ResponseID != nil {
		tx = tx.Where("response_id = ?", *q.ResponseID)
	}
	if q.VisibleTo != nil {
		tx = tx.Where("(is_public = ? OR user_id = ?)", true, *q.VisibleTo)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count documents failed")
	}

	var out []models.Document
	if err := tx.Order("created_at DESC").Offset(q.Page.Skip).Limit(q.Page.Limit).Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list documents failed")
	}
	return out, total, nil
}
