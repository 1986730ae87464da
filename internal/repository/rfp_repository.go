package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RFPQuery narrows an RFP listing. Nil fields are not filtered on.
type RFPQuery struct {
	BuyerID  *uuid.UUID
	Status   *models.RFPStatus
	Category *string
	Page     utils.Page
}

type RFPRepository interface {
	BaseRepository[models.RFP]
	List(ctx context.Context, q RFPQuery) ([]models.RFP, int64, error)
	// UpdateFields writes fields only while the RFP is still in expectedStatus.
	// It reports false when the row no longer matches.
	UpdateFields(ctx context.Context, rfpID uuid.UUID, expectedStatus models.RFPStatus, fields map[string]any) (bool, error)
	// AppendResponse adds resp only if the RFP is Published and has no response from
	// resp.SupplierID. It reports false when that condition does not hold.
	AppendResponse(ctx context.Context, rfpID uuid.UUID, resp models.Response) (bool, error)
	// MutateResponses loads the RFP under a row lock and persists its responses if fn reports a change.
	MutateResponses(ctx context.Context, rfpID uuid.UUID, fn func(rfp *models.RFP) (bool, error)) (*models.RFP, error)
	AppendAttachment(ctx context.Context, rfpID, documentID uuid.UUID) error
}

type rfpRepository struct {
	BaseRepository[models.RFP]
	db *gorm.DB
}

func NewRFPRepository(db *gorm.DB) RFPRepository {
	return &rfpRepository{BaseRepository: NewBaseRepository[models.RFP](db), db: db}
}

func (r *rfpRepository) List(ctx context.Context, q RFPQuery) ([]models.RFP, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.RFP{})
	if q.BuyerID != nil {
		tx = tx.Where("buyer_id = ?", *q.BuyerID)
	}
	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}
	if q.Category != nil {
		tx = tx.Where("category = ?", *q.Category)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count rfps failed")
	}

	var out []models.RFP
	if err := tx.Order("created_at DESC").Offset(q.Page.Skip).Limit(q.Page.Limit).Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list rfps failed")
	}
	return out, total, nil
}

func (r *rfpRepository) UpdateFields(ctx context.Context, rfpID uuid.UUID, expectedStatus models.RFPStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RFP{}).
		Where("id = ? AND status = ?", rfpID, expectedStatus).
		Updates(fields)
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "update rfp failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *rfpRepository) AppendResponse(ctx context.Context, rfpID uuid.UUID, resp models.Response) (bool, error) {
	payload, err := json.Marshal([]models.Response{resp})
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInvalid, "invalid response content")
	}
	probe, _ := json.Marshal([]map[string]string{{"supplier_id": resp.SupplierID.String()}})

	res := r.db.WithContext(ctx).Model(&models.RFP{}).
		Where("id = ? AND status = ?", rfpID, models.RFPStatusPublished).
		Where("NOT (COALESCE(responses, '[]'::jsonb) @> ?::jsonb)", string(probe)).
		Updates(map[string]any{
			"responses":  gorm.Expr("COALESCE(NULLIF(responses, 'null'::jsonb), '[]'::jsonb) || ?::jsonb", string(payload)),
			"updated_at": resp.CreatedAt,
		})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "append response failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *rfpRepository) MutateResponses(ctx context.Context, rfpID uuid.UUID, fn func(rfp *models.RFP) (bool, error)) (*models.RFP, error) {
	var rfp models.RFP
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rfp, "id = ?", rfpID).Error; err != nil {
			return notFoundOr(err, "rfp not found", "lock rfp failed")
		}
		changed, err := fn(&rfp)
		if err != nil || !changed {
			return err
		}
		err = tx.Model(&models.RFP{}).Where("id = ?", rfpID).Updates(map[string]any{
			"responses":  rfp.Responses,
			"updated_at": rfp.UpdatedAt,
		}).Error
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "save responses failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rfp, nil
}

func (r *rfpRepository) AppendAttachment(ctx context.Context, rfpID, documentID uuid.UUID) error {
	payload, _ := json.Marshal([]uuid.UUID{documentID})
	res := r.db.WithContext(ctx).Model(&models.RFP{}).
		Where("id = ?", rfpID).
		Updates(map[string]any{
			"attachments": gorm.Expr("COALESCE(NULLIF(attachments, 'null'::jsonb), '[]'::jsonb) || ?::jsonb", string(payload)),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "append attachment failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "rfp not found")
	}
	return nil
}
