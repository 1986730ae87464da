package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rfp-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// NotificationPayload is the payload of services.TypeNotificationSend tasks.
type NotificationPayload struct {
	NotificationID string `json:"notification_id"`
}

// Sender delivers a stored notification and reports whether it went out.
type Sender interface {
	Send(ctx context.Context, notificationID uuid.UUID) bool
}

// NotificationTaskHandler delivers queued notifications.
type NotificationTaskHandler struct {
	sender Sender
}

func NewNotificationTaskHandler(sender Sender) *NotificationTaskHandler {
	return &NotificationTaskHandler{sender: sender}
}

// HandleSend never asks asynq to retry: a failed delivery stays unsent and is
// visible through the notification's is_sent flag.
func (h *NotificationTaskHandler) HandleSend(ctx context.Context, t *asynq.Task) error {
	var p NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid notification task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(p.NotificationID)
	if err != nil {
		logger.L().Error("invalid notification id in task", zap.Error(err))
		return fmt.Errorf("parse notification id: %v: %w", err, asynq.SkipRetry)
	}

	logger.L().Info("handling notification task", zap.String("notification_id", id.String()))

	if !h.sender.Send(ctx, id) {
		return fmt.Errorf("notification %s not delivered: %w", id, asynq.SkipRetry)
	}
	return nil
}
