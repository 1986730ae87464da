package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/notify"
	"github.com/rfp-studio/engine/internal/repository"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/rfp-studio/engine/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// TypeNotificationSend is the asynq task that delivers one stored notification.
const TypeNotificationSend = "notification:send"

const (
	notificationTemplate = "notification"
	fanOutPageSize       = 1000
)

var notificationsSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rfp_notifications_sent_total",
		Help: "Notification delivery attempts by type and result.",
	},
	[]string{"type", "result"},
)

type NotificationService interface {
	Create(ctx context.Context, input *CreateNotificationInput) (*models.Notification, error)
	// CreateAs creates a notification on behalf of actor. Buyers may address anyone,
	// suppliers only themselves.
	CreateAs(ctx context.Context, actor *models.User, input *CreateNotificationInput) (*models.Notification, error)
	// Send delivers a stored notification. It never returns an error; failures are
	// logged and reported as false.
	Send(ctx context.Context, notificationID uuid.UUID) bool

	Get(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, actor *models.User, filters *NotificationFilters) ([]models.Notification, int64, error)
	Update(ctx context.Context, actor *models.User, notificationID uuid.UUID, input *UpdateNotificationInput) (*models.Notification, error)
	MarkRead(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actor *models.User) (int64, error)

	FanOutNewRFP(ctx context.Context, rfp *models.RFP) (*FanOutResult, error)
	NotifyResponseSubmitted(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID) error
	NotifyResponseStatusChanged(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID, status models.ResponseStatus) error
}

type CreateNotificationInput struct {
	UserID          uuid.UUID
	Type            models.NotificationType
	Title           string
	Message         string
	Data            map[string]any
	SendImmediately bool
}

type UpdateNotificationInput struct {
	IsRead *bool
	IsSent *bool
}

type NotificationFilters struct {
	IsRead *bool
	Page   utils.Page
}

// FanOutResult summarizes a broadcast. Failed counts recipients that were skipped.
type FanOutResult struct {
	Created []uuid.UUID
	Failed  int
}

// Renderer turns a named template and its data into an HTML body.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type emailTemplateData struct {
	Title   string
	Message string
	User    *models.User
	Data    map[string]any
}

type notificationService struct {
	repo     repository.NotificationRepository
	users    repository.UserRepository
	channel  notify.DeliveryChannel
	renderer Renderer
	sender   string
	queue    TaskEnqueuer
	now      func() time.Time
}

// NewNotificationService wires the dispatcher. A nil queue delivers inline.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, channel notify.DeliveryChannel, renderer Renderer, sender string, queue TaskEnqueuer) NotificationService {
	return &notificationService{
		repo:     repo,
		users:    users,
		channel:  channel,
		renderer: renderer,
		sender:   sender,
		queue:    queue,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ NotificationService = (*notificationService)(nil)

func (s *notificationService) Create(ctx context.Context, input *CreateNotificationInput) (*models.Notification, error) {
	logger.L().Info("create notification", zap.String("user_id", input.UserID.String()), zap.String("type", string(input.Type)))

	if !input.Type.Valid() {
		return nil, appErr.New(appErr.CodeInvalid, "type must be one of: email, in_app, sms")
	}
	data := input.Data
	if data == nil {
		data = map[string]any{}
	}

	n := &models.Notification{
		UserID:    input.UserID,
		Type:      input.Type,
		Title:     input.Title,
		Message:   input.Message,
		Data:      datatypes.JSONMap(data),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if input.SendImmediately {
		s.dispatch(ctx, n)
	}
	return n, nil
}

func (s *notificationService) CreateAs(ctx context.Context, actor *models.User, input *CreateNotificationInput) (*models.Notification, error) {
	if input.UserID != actor.ID && !actor.IsBuyer() {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to create notifications for other users")
	}
	return s.Create(ctx, input)
}

// dispatch hands n to the task queue when one is configured and sends inline otherwise.
func (s *notificationService) dispatch(ctx context.Context, n *models.Notification) {
	if s.queue != nil {
		payload, _ := json.Marshal(map[string]string{"notification_id": n.ID.String()})
		task := asynq.NewTask(TypeNotificationSend, payload)
		_, err := s.queue.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.TaskID(n.ID.String()))
		if err == nil {
			return
		}
		logger.L().Warn("enqueue notification failed, sending inline", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
	s.send(ctx, n)
}

func (s *notificationService) Send(ctx context.Context, notificationID uuid.UUID) bool {
	var n models.Notification
	if err := s.repo.GetByID(ctx, notificationID, &n); err != nil {
		logger.L().Error("load notification for send failed", zap.String("notification_id", notificationID.String()), zap.Error(err))
		return false
	}
	return s.send(ctx, &n)
}

// send delivers n and records it as sent. n is updated in place on success.
func (s *notificationService) send(ctx context.Context, n *models.Notification) bool {
	if n.IsSent {
		return true
	}
	log := logger.L().With(zap.String("notification_id", n.ID.String()), zap.String("type", string(n.Type)))

	var u models.User
	if err := s.users.GetByID(ctx, n.UserID, &u); err != nil {
		log.Warn("notification recipient not found", zap.String("user_id", n.UserID.String()), zap.Error(err))
		notificationsSent.WithLabelValues(string(n.Type), "failed").Inc()
		return false
	}

	switch n.Type {
	case models.NotificationEmail:
		if err := s.deliverEmail(ctx, n, &u); err != nil {
			log.Error("email delivery failed", zap.String("channel", s.channel.Name()), zap.Error(err))
			notificationsSent.WithLabelValues(string(n.Type), "failed").Inc()
			return false
		}
	case models.NotificationInApp:
	default:
		log.Warn("unsupported notification channel")
		notificationsSent.WithLabelValues(string(n.Type), "unsupported").Inc()
		return false
	}

	at := s.now()
	if _, err := s.repo.MarkSent(ctx, n.ID, at); err != nil {
		log.Error("mark notification sent failed", zap.Error(err))
		notificationsSent.WithLabelValues(string(n.Type), "failed").Inc()
		return false
	}
	n.IsSent = true
	n.SentAt = &at
	notificationsSent.WithLabelValues(string(n.Type), "sent").Inc()
	return true
}

func (s *notificationService) deliverEmail(ctx context.Context, n *models.Notification, u *models.User) error {
	html, err := s.renderer.Render(notificationTemplate, emailTemplateData{
		Title:   n.Title,
		Message: n.Message,
		User:    u,
		Data:    n.Data,
	})
	if err != nil {
		return err
	}
	return s.channel.Deliver(ctx, notify.Message{
		From:    s.sender,
		To:      u.Email,
		Subject: n.Title,
		HTML:    html,
	})
}

func (s *notificationService) Get(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error) {
	logger.L().Info("get notification", zap.String("notification_id", notificationID.String()), zap.String("user_id", actor.ID.String()))
	var n models.Notification
	if err := s.repo.GetByID(ctx, notificationID, &n); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "notification not found")
		}
		return nil, err
	}
	if n.UserID != actor.ID {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to access this notification")
	}
	return &n, nil
}

func (s *notificationService) List(ctx context.Context, actor *models.User, filters *NotificationFilters) ([]models.Notification, int64, error) {
	logger.L().Info("list notifications", zap.String("user_id", actor.ID.String()))
	return s.repo.ListByUser(ctx, actor.ID, filters.IsRead, filters.Page)
}

func (s *notificationService) Update(ctx context.Context, actor *models.User, notificationID uuid.UUID, input *UpdateNotificationInput) (*models.Notification, error) {
	if (input.IsRead != nil && !*input.IsRead) || (input.IsSent != nil && !*input.IsSent) {
		return nil, appErr.New(appErr.CodeInvalid, "notification flags cannot be reset to false")
	}

	n, err := s.Get(ctx, actor, notificationID)
	if err != nil {
		return nil, err
	}

	// A concurrent writer may flip a flag first; its timestamps are then re-read.
	now := s.now()
	stale := false
	if input.IsRead != nil && !n.IsRead {
		changed, err := s.repo.MarkRead(ctx, n.ID, now)
		if err != nil {
			return nil, err
		}
		n.IsRead, n.ReadAt = true, &now
		stale = stale || !changed
	}
	if input.IsSent != nil && !n.IsSent {
		changed, err := s.repo.MarkSent(ctx, n.ID, now)
		if err != nil {
			return nil, err
		}
		n.IsSent, n.SentAt = true, &now
		stale = stale || !changed
	}
	if stale {
		var fresh models.Notification
		if err := s.repo.GetByID(ctx, n.ID, &fresh); err != nil {
			return nil, err
		}
		return &fresh, nil
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error) {
	read := true
	return s.Update(ctx, actor, notificationID, &UpdateNotificationInput{IsRead: &read})
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	logger.L().Info("mark all notifications read", zap.String("user_id", actor.ID.String()))
	return s.repo.MarkAllRead(ctx, actor.ID, s.now())
}

func (s *notificationService) FanOutNewRFP(ctx context.Context, rfp *models.RFP) (*FanOutResult, error) {
	logger.L().Info("fan out new rfp", zap.String("rfp_id", rfp.ID.String()))

	res := &FanOutResult{}
	for skip := 0; ; skip += fanOutPageSize {
		suppliers, err := s.users.ListByRole(ctx, models.RoleSupplier, utils.Page{Skip: skip, Limit: fanOutPageSize})
		if err != nil {
			return res, err
		}
		for _, sup := range suppliers {
			n, err := s.Create(ctx, &CreateNotificationInput{
				UserID:  sup.ID,
				Type:    models.NotificationEmail,
				Title:   "New RFP Available",
				Message: fmt.Sprintf("A new RFP '%s' has been published that may be of interest to you.", rfp.Title),
				Data: map[string]any{
					"rfp_id":    rfp.ID.String(),
					"rfp_title": rfp.Title,
				},
				SendImmediately: true,
			})
			if err != nil {
				logger.L().Warn("fan out notification skipped", zap.String("supplier_id", sup.ID.String()), zap.Error(err))
				res.Failed++
				continue
			}
			res.Created = append(res.Created, n.ID)
		}
		if len(suppliers) < fanOutPageSize {
			break
		}
	}

	logger.L().Info("fan out completed", zap.String("rfp_id", rfp.ID.String()), zap.Int("created", len(res.Created)), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *notificationService) NotifyResponseSubmitted(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID) error {
	var supplier models.User
	if err := s.users.GetByID(ctx, supplierID, &supplier); err != nil {
		return err
	}
	_, err := s.Create(ctx, &CreateNotificationInput{
		UserID:  rfp.BuyerID,
		Type:    models.NotificationEmail,
		Title:   fmt.Sprintf("New Response to RFP: %s", rfp.Title),
		Message: fmt.Sprintf("A new response has been submitted by %s for your RFP '%s'.", supplier.DisplayName(), rfp.Title),
		Data: map[string]any{
			"rfp_id":      rfp.ID.String(),
			"rfp_title":   rfp.Title,
			"supplier_id": supplierID.String(),
		},
		SendImmediately: true,
	})
	return err
}

func (s *notificationService) NotifyResponseStatusChanged(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID, status models.ResponseStatus) error {
	_, err := s.Create(ctx, &CreateNotificationInput{
		UserID:  supplierID,
		Type:    models.NotificationEmail,
		Title:   fmt.Sprintf("RFP Response Status Update: %s", rfp.Title),
		Message: fmt.Sprintf("Your response to RFP '%s' has been %s.", rfp.Title, strings.ToLower(string(status))),
		Data: map[string]any{
			"rfp_id":    rfp.ID.String(),
			"rfp_title": rfp.Title,
			"status":    string(status),
		},
		SendImmediately: true,
	})
	return err
}
