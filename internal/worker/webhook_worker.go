package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/maintenance-ticketing/internal/config"
	"github.com/fieldops/maintenance-ticketing/internal/events"
)

const (
	defaultQueueSize      = 256
	defaultWebhookTimeout = 5 * time.Second
)

// WebhookWorker delivers lifecycle events to an outbound webhook. Delivery is
// fire-and-forget: a full queue drops the event and a failed POST is logged,
// never retried.
type WebhookWorker struct {
	url        string
	httpClient *http.Client
	queue      chan events.Event
	logger     *zap.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebhookWorker builds a worker from notification settings. An empty URL
// yields a worker that accepts nothing.
func NewWebhookWorker(cfg config.NotificationConfig, logger *zap.Logger) *WebhookWorker {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookWorker{
		url:        strings.TrimSpace(cfg.WebhookURL),
		httpClient: &http.Client{Timeout: timeout},
		queue:      make(chan events.Event, size),
		logger:     logger,
	}
}

// Enabled reports whether a webhook endpoint is configured.
func (w *WebhookWorker) Enabled() bool {
	return w != nil && w.url != ""
}

// Enqueue hands the event to the delivery goroutine without blocking.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	if !w.Enabled() {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- event:
		return true
	default:
		w.dropped.Add(1)
		w.logger.Warn("webhook queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return false
	}
}

// Start launches the delivery loop. It returns once ctx is cancelled or Stop
// drains the queue.
func (w *WebhookWorker) Start(ctx context.Context) {
	if !w.Enabled() {
		return
	}
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-w.queue:
					if !ok {
						return
					}
					w.deliver(ctx, event)
				}
			}
		}()
	})
}

// Stop closes the queue and waits for in-flight deliveries.
func (w *WebhookWorker) Stop() {
	if !w.Enabled() {
		return
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Delivered, Dropped and Failed expose delivery counters for metrics.
func (w *WebhookWorker) Delivered() uint64 { return w.delivered.Load() }
func (w *WebhookWorker) Dropped() uint64   { return w.dropped.Load() }
func (w *WebhookWorker) Failed() uint64    { return w.failed.Load() }

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.post(ctx, event); err != nil {
		w.failed.Add(1)
		w.logger.Warn("webhook delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return
	}
	w.delivered.Add(1)
	w.logger.Debug("webhook delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
}

func (w *WebhookWorker) post(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
