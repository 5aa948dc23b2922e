package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/jobs"
)

const notificationJobType = "notification"

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, int, error)
	MarkAllSeen(ctx context.Context, userID string) (int64, error)
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

// NotificationDispatcher persists notifications off the request path. Notify
// never blocks: when the queue is full or stopped the notification is dropped.
type NotificationDispatcher struct {
	store   notificationWriter
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue
}

// NewNotificationDispatcher wires a dispatcher to its own worker queue.
func NewNotificationDispatcher(store notificationWriter, cache *CacheService, metrics *MetricsService, cfg jobs.QueueConfig) *NotificationDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &NotificationDispatcher{store: store, cache: cache, metrics: metrics, logger: cfg.Logger}
	d.queue = jobs.NewQueue("notifications", d.deliver, cfg)
	return d
}

// Start launches the delivery workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for workers to drain buffered notifications.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Notify enqueues a message for userID.
func (d *NotificationDispatcher) Notify(_ context.Context, userID, message string) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    notificationJobType,
		Payload: models.Notification{UserID: userID, Message: message},
	}
	if err := d.queue.TryEnqueue(job); err != nil {
		d.metrics.RecordNotification(NotificationDropped)
		d.logger.Warn("notification dropped", zap.String("user_id", userID), zap.Error(err))
		return
	}
	d.metrics.RecordNotification(NotificationQueued)
}

func (d *NotificationDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(models.Notification)
	if !ok {
		d.metrics.RecordNotification(NotificationFailed)
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	notification := payload
	if err := d.store.Create(ctx, &notification); err != nil {
		d.metrics.RecordNotification(NotificationFailed)
		return err
	}
	d.metrics.RecordNotification(NotificationDelivered)
	d.cache.InvalidateUser(ctx, notification.UserID)
	return nil
}

// NotificationService lists and acknowledges a user's notifications.
type NotificationService struct {
	repo   notificationRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, cache *CacheService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, cache: cache, logger: logger}
}

// List returns a page of the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor models.Identity, paging models.Paging) (*models.NotificationPage, error) {
	paging = paging.Normalize(10, 100)
	items, total, err := s.repo.ListByUser(ctx, actor.ID, paging.Limit, paging.Offset())
	if err != nil {
		return nil, internalError(err, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &models.NotificationPage{Notifications: items, Meta: models.NewPageMeta(total, paging.Page, paging.Limit)}, nil
}

// MarkAllSeen flags every unseen notification of the actor and returns the count.
func (s *NotificationService) MarkAllSeen(ctx context.Context, actor models.Identity) (int64, error) {
	updated, err := s.repo.MarkAllSeen(ctx, actor.ID)
	if err != nil {
		return 0, internalError(err, "failed to mark notifications as seen")
	}
	if updated > 0 {
		s.cache.InvalidateUser(ctx, actor.ID)
	}
	return updated, nil
}

var _ notifier = (*NotificationDispatcher)(nil)
