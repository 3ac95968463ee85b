package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fieldops/maintenance-ticketing/internal/events"
)

// WebhookSender accepts events for asynchronous delivery.
type WebhookSender interface {
	Enqueue(event events.Event) bool
}

// NotificationService forwards lifecycle events to outbound channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhook    WebhookSender
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, webhook WebhookSender) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		webhook:    webhook,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.forward)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.forward)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.forward)
	n.dispatcher.Subscribe(events.EventTicketLocationOverride, n.forward)
	n.dispatcher.Subscribe(events.EventTicketRetired, n.forward)
	n.dispatcher.Subscribe(events.EventTicketHistoryCorrection, n.forward)
}

// forward never fails the publishing request; a notification that cannot be
// queued is logged by the sender and forgotten.
func (n *NotificationService) forward(_ context.Context, event events.Event) error {
	n.logger.Debug("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("reference_code", event.ReferenceCode))
	if n.webhook != nil {
		n.webhook.Enqueue(event)
	}
	return nil
}
