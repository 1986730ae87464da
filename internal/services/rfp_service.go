package services

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/repository"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/rfp-studio/engine/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// RFPService owns RFPs and their embedded responses.
type RFPService interface {
	CreateRFP(ctx context.Context, actor *models.User, input *CreateRFPInput) (*models.RFP, error)
	ListRFPs(ctx context.Context, actor *models.User, filters *RFPFilters) ([]models.RFP, int64, error)
	GetRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID) (*models.RFP, error)
	UpdateRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID, input *UpdateRFPInput) (*models.RFP, error)

	SubmitResponse(ctx context.Context, actor *models.User, rfpID uuid.UUID, content map[string]any) (*models.Response, error)
	ListResponses(ctx context.Context, actor *models.User, rfpID uuid.UUID) ([]models.Response, error)
	UpdateResponseStatus(ctx context.Context, actor *models.User, rfpID, supplierID uuid.UUID, input *UpdateResponseStatusInput) (*models.Response, error)
}

// RFPNotifier receives workflow events. Errors are logged by the caller and never
// fail the originating request.
type RFPNotifier interface {
	FanOutNewRFP(ctx context.Context, rfp *models.RFP) (*FanOutResult, error)
	NotifyResponseSubmitted(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID) error
	NotifyResponseStatusChanged(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID, status models.ResponseStatus) error
}

type CreateRFPInput struct {
	Title        string
	Description  string
	Requirements map[string]any
	Deadline     *time.Time
	Category     *string
	Tags         []string
}

// UpdateRFPInput is a partial update. Nil fields are left unchanged.
type UpdateRFPInput struct {
	Title        *string
	Description  *string
	Requirements map[string]any
	Deadline     *time.Time
	Category     *string
	Tags         []string
	Status       *models.RFPStatus
}

type RFPFilters struct {
	Status   *models.RFPStatus
	Category *string
	Page     utils.Page
}

type UpdateResponseStatusInput struct {
	Status   models.ResponseStatus
	Feedback *string
}

type rfpService struct {
	rfpRepo  repository.RFPRepository
	notifier RFPNotifier
	now      func() time.Time
}

func NewRFPService(rfpRepo repository.RFPRepository, notifier RFPNotifier) RFPService {
	return &rfpService{
		rfpRepo:  rfpRepo,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ RFPService = (*rfpService)(nil)

func (s *rfpService) CreateRFP(ctx context.Context, actor *models.User, input *CreateRFPInput) (*models.RFP, error) {
	logger.L().Info("create rfp", zap.String("user_id", actor.ID.String()), zap.String("title", input.Title))

	if !actor.IsBuyer() {
		return nil, appErr.New(appErr.CodeForbidden, "only buyers can create rfps")
	}

	requirements := input.Requirements
	if requirements == nil {
		requirements = map[string]any{}
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	rfp := &models.RFP{
		BuyerID:      actor.ID,
		Title:        input.Title,
		Description:  input.Description,
		Requirements: datatypes.JSONMap(requirements),
		Deadline:     input.Deadline,
		Category:     input.Category,
		Tags:         datatypes.JSONSlice[string](tags),
		Status:       models.RFPStatusDraft,
		Attachments:  datatypes.JSONSlice[uuid.UUID]{},
		Responses:    datatypes.JSONSlice[models.Response]{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.rfpRepo.Create(ctx, rfp); err != nil {
		return nil, err
	}

	logger.L().Info("rfp created", zap.String("rfp_id", rfp.ID.String()), zap.String("user_id", actor.ID.String()))
	return rfp, nil
}

func (s *rfpService) ListRFPs(ctx context.Context, actor *models.User, filters *RFPFilters) ([]models.RFP, int64, error) {
	logger.L().Info("list rfps", zap.String("user_id", actor.ID.String()), zap.String("role", string(actor.Role)))

	q := repository.RFPQuery{Category: filters.Category, Page: filters.Page}
	if actor.IsSupplier() {
		published := models.RFPStatusPublished
		q.Status = &published
	} else {
		q.BuyerID = &actor.ID
		q.Status = filters.Status
	}

	items, total, err := s.rfpRepo.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		scopeResponses(actor, &items[i])
	}
	return items, total, nil
}

func (s *rfpService) GetRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID) (*models.RFP, error) {
	logger.L().Info("get rfp", zap.String("rfp_id", rfpID.String()), zap.String("user_id", actor.ID.String()))

	rfp, err := s.load(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	if actor.IsSupplier() && rfp.Status != models.RFPStatusPublished {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to access this rfp")
	}
	if actor.IsBuyer() && rfp.BuyerID != actor.ID {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to access this rfp")
	}
	scopeResponses(actor, rfp)
	return rfp, nil
}

func (s *rfpService) UpdateRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID, input *UpdateRFPInput) (*models.RFP, error) {
	logger.L().Info("update rfp", zap.String("rfp_id", rfpID.String()), zap.String("user_id", actor.ID.String()))

	rfp, err := s.load(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	if !actor.IsBuyer() || rfp.BuyerID != actor.ID {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to update this rfp")
	}

	fields := map[string]any{}
	if input.Title != nil && *input.Title != rfp.Title {
		rfp.Title = *input.Title
		fields["title"] = rfp.Title
	}
	if input.Description != nil && *input.Description != rfp.Description {
		rfp.Description = *input.Description
		fields["description"] = rfp.Description
	}
	if input.Requirements != nil && !reflect.DeepEqual(map[string]any(rfp.Requirements), input.Requirements) {
		rfp.Requirements = datatypes.JSONMap(input.Requirements)
		fields["requirements"] = rfp.Requirements
	}
	if input.Deadline != nil && (rfp.Deadline == nil || !rfp.Deadline.Equal(*input.Deadline)) {
		rfp.Deadline = input.Deadline
		fields["deadline"] = rfp.Deadline
	}
	if input.Category != nil && (rfp.Category == nil || *rfp.Category != *input.Category) {
		rfp.Category = input.Category
		fields["category"] = rfp.Category
	}
	if input.Tags != nil && !reflect.DeepEqual([]string(rfp.Tags), input.Tags) {
		rfp.Tags = datatypes.JSONSlice[string](input.Tags)
		fields["tags"] = rfp.Tags
	}

	now := s.now()
	prevStatus := rfp.Status
	publishing := false
	if input.Status != nil && *input.Status != rfp.Status {
		next := *input.Status
		if !next.Valid() {
			return nil, appErr.New(appErr.CodeInvalid, "invalid rfp status")
		}
		if !rfp.Status.CanTransitionTo(next) {
			return nil, appErr.New(appErr.CodeInvalidState, "cannot change rfp status from "+string(rfp.Status)+" to "+string(next))
		}
		rfp.Status = next
		fields["status"] = next
		if next == models.RFPStatusPublished && rfp.PublishedAt == nil {
			rfp.PublishedAt = &now
			fields["published_at"] = now
			publishing = true
		}
	}

	if len(fields) == 0 {
		scopeResponses(actor, rfp)
		return rfp, nil
	}
	rfp.UpdatedAt = now
	fields["updated_at"] = now

	ok, err := s.rfpRepo.UpdateFields(ctx, rfpID, prevStatus, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.New(appErr.CodeConflict, "rfp was modified concurrently, retry the update")
	}
	logger.L().Info("rfp updated", zap.String("rfp_id", rfpID.String()), zap.String("status", string(rfp.Status)))

	if publishing {
		if _, err := s.notifier.FanOutNewRFP(ctx, rfp); err != nil {
			logger.L().Error("new rfp fan out failed", zap.String("rfp_id", rfpID.String()), zap.Error(err))
		}
	}
	return rfp, nil
}

func (s *rfpService) SubmitResponse(ctx context.Context, actor *models.User, rfpID uuid.UUID, content map[string]any) (*models.Response, error) {
	logger.L().Info("submit response", zap.String("rfp_id", rfpID.String()), zap.String("user_id", actor.ID.String()))

	if !actor.IsSupplier() {
		return nil, appErr.New(appErr.CodeForbidden, "only suppliers can submit responses")
	}
	rfp, err := s.load(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	if err := checkAcceptsResponse(rfp, actor.ID); err != nil {
		return nil, err
	}

	if content == nil {
		content = map[string]any{}
	}
	now := s.now()
	resp := models.Response{
		ID:          models.ResponseID(rfp.ID, actor.ID),
		RFPID:       rfp.ID,
		SupplierID:  actor.ID,
		Content:     content,
		Attachments: []uuid.UUID{},
		Status:      models.ResponseStatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	appended, err := s.rfpRepo.AppendResponse(ctx, rfp.ID, resp)
	if err != nil {
		return nil, err
	}
	if !appended {
		// Lost a race: classify against the current state.
		current, err := s.load(ctx, rfpID)
		if err != nil {
			return nil, err
		}
		if err := checkAcceptsResponse(current, actor.ID); err != nil {
			return nil, err
		}
		return nil, appErr.New(appErr.CodeConflict, "you have already submitted a response to this rfp")
	}
	logger.L().Info("response submitted", zap.String("rfp_id", rfpID.String()), zap.String("supplier_id", actor.ID.String()))

	if err := s.notifier.NotifyResponseSubmitted(ctx, rfp, actor.ID); err != nil {
		logger.L().Error("response submitted notification failed", zap.String("rfp_id", rfpID.String()), zap.Error(err))
	}
	return &resp, nil
}

func (s *rfpService) ListResponses(ctx context.Context, actor *models.User, rfpID uuid.UUID) ([]models.Response, error) {
	logger.L().Info("list responses", zap.String("rfp_id", rfpID.String()), zap.String("user_id", actor.ID.String()))

	rfp, err := s.load(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	if actor.IsBuyer() {
		if rfp.BuyerID != actor.ID {
			return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to view responses for this rfp")
		}
		return append([]models.Response{}, rfp.Responses...), nil
	}

	own := ownResponses(rfp, actor.ID)
	if len(own) == 0 && rfp.Status != models.RFPStatusPublished {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to view responses for this rfp")
	}
	return own, nil
}

func (s *rfpService) UpdateResponseStatus(ctx context.Context, actor *models.User, rfpID, supplierID uuid.UUID, input *UpdateResponseStatusInput) (*models.Response, error) {
	logger.L().Info("update response status",
		zap.String("rfp_id", rfpID.String()),
		zap.String("supplier_id", supplierID.String()),
		zap.String("status", string(input.Status)),
		zap.String("user_id", actor.ID.String()),
	)

	if !input.Status.ReviewTarget() {
		return nil, appErr.New(appErr.CodeInvalid, "status must be one of: Under Review, Approved, Rejected")
	}
	if !actor.IsBuyer() {
		return nil, appErr.New(appErr.CodeForbidden, "only the rfp owner can review responses")
	}

	var (
		result        models.Response
		statusChanged bool
	)
	rfp, err := s.rfpRepo.MutateResponses(ctx, rfpID, func(rfp *models.RFP) (bool, error) {
		if rfp.BuyerID != actor.ID {
			return false, appErr.New(appErr.CodeForbidden, "only the rfp owner can review responses")
		}
		_, resp := rfp.FindResponse(supplierID)
		if resp == nil {
			return false, appErr.New(appErr.CodeNotFound, "response not found")
		}

		dirty := false
		if resp.Status != input.Status {
			if !resp.Status.CanTransitionTo(input.Status) {
				return false, appErr.New(appErr.CodeInvalidState, "cannot change response status from "+string(resp.Status)+" to "+string(input.Status))
			}
			resp.Status = input.Status
			statusChanged = true
			dirty = true
		}
		if input.Feedback != nil && (resp.Feedback == nil || *resp.Feedback != *input.Feedback) {
			fb := *input.Feedback
			resp.Feedback = &fb
			dirty = true
		}
		if dirty {
			now := s.now()
			resp.UpdatedAt = now
			rfp.UpdatedAt = now
		}
		result = *resp
		return dirty, nil
	})
	if err != nil {
		return nil, err
	}

	if statusChanged {
		if err := s.notifier.NotifyResponseStatusChanged(ctx, rfp, supplierID, input.Status); err != nil {
			logger.L().Error("response status notification failed", zap.String("rfp_id", rfpID.String()), zap.Error(err))
		}
	}
	return &result, nil
}

func (s *rfpService) load(ctx context.Context, rfpID uuid.UUID) (*models.RFP, error) {
	var rfp models.RFP
	if err := s.rfpRepo.GetByID(ctx, rfpID, &rfp); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "rfp not found")
		}
		return nil, err
	}
	return &rfp, nil
}

func checkAcceptsResponse(rfp *models.RFP, supplierID uuid.UUID) error {
	if rfp.Status != models.RFPStatusPublished {
		return appErr.New(appErr.CodeInvalidState, "cannot submit response to an rfp that is not published")
	}
	if rfp.HasResponseFrom(supplierID) {
		return appErr.New(appErr.CodeConflict, "you have already submitted a response to this rfp")
	}
	return nil
}

func ownResponses(rfp *models.RFP, supplierID uuid.UUID) []models.Response {
	out := []models.Response{}
	for _, r := range rfp.Responses {
		if r.SupplierID == supplierID {
			out = append(out, r)
		}
	}
	return out
}

// scopeResponses hides other suppliers' responses from a supplier actor.
func scopeResponses(actor *models.User, rfp *models.RFP) {
	if actor.IsSupplier() {
		rfp.Responses = ownResponses(rfp, actor.ID)
	}
}
