package worker

import (
	"context"

	"github.com/fieldops/maintenance-ticketing/internal/service"
)

// StartNotificationWorker starts webhook delivery and registers notification handlers.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, webhook *WebhookWorker) {
	if webhook != nil {
		webhook.Start(ctx)
	}
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
