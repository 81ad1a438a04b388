package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"server-presence-backend/internal/metrics"
	"server-presence-backend/internal/model"
	"server-presence-backend/internal/session"
)

// Event is one presence transition worth notifying about: an entity of the
// given kind opened a new session.
type Event struct {
	Kind     string
	EntityID string
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans presence events out to everyone watching the entity.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger zerolog.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Dispatch enqueues an event without blocking the poll loop. Events are
// dropped when the queue is full; presence notifications are best effort.
func (wp *WorkerPool) Dispatch(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		wp.logger.Warn().Str("kind", ev.Kind).Str("entity", ev.EntityID).Msg("notification_queue_full_event_dropped")
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug().Int("worker", id).Msg("worker_started")
	for {
		select {
		case ev := <-wp.jobs:
			wp.notifyWatchers(ctx, ev)
		case <-ctx.Done():
			wp.logger.Debug().Int("worker", id).Msg("worker_stopped")
			return
		}
	}
}

// notifyWatchers fetches the subscriptions watching the entity and pushes to
// each of them.
func (wp *WorkerPool) notifyWatchers(ctx context.Context, ev Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN watches w ON w.subscription_endpoint = push_subscriptions.endpoint").
		Where("w.kind = ? AND w.entity_id = ?", ev.Kind, ev.EntityID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error().Err(err).Str("entity", ev.EntityID).Msg("watch_lookup_failed")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var message string
	if ev.Kind == session.KindWorlds {
		message = fmt.Sprintf("World %s is now active!", ev.EntityID)
	} else {
		message = fmt.Sprintf("%s is now online!", ev.EntityID)
	}

	wp.logger.Debug().
		Int("watchers", len(subscriptions)).
		Str("kind", ev.Kind).
		Str("entity", ev.EntityID).
		Msg("sending_watch_notifications")

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, ev.Kind, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, kind string, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("push_send_failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info().Str("endpoint", sub.Endpoint).Msg("subscription_expired_deleting")
		if err := wp.db.WithContext(ctx).Select("Watches").Delete(&sub).Error; err != nil {
			wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("subscription_delete_failed")
		}
		return
	}

	metrics.NotificationsSent.WithLabelValues(kind).Inc()
}
