package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/push"
	"github.com/loleg/couchers/internal/repository"
	apperrors "github.com/loleg/couchers/pkg/errors"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/metrics"
)

// Resolver yields the effective channel set for a user and topic action.
type Resolver interface {
	Resolve(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction) (model.DeliveryTypeSet, error)
}

// Service routes a raised notification to its delivery channels: push is
// sent synchronously, email and digest become pending delivery rows picked
// up by the batch processors.
type Service struct {
	store         repository.Store
	users         repository.UserRepository
	notifications repository.NotificationRepository
	deliveries    repository.DeliveryRepository
	resolver      Resolver
	push          push.Sender
	logger        *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewService(
	store repository.Store,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	deliveries repository.DeliveryRepository,
	resolver Resolver,
	pushSender push.Sender,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:         store,
		users:         users,
		notifications: notifications,
		deliveries:    deliveries,
		resolver:      resolver,
		push:          pushSender,
		logger:        log,
		metrics:       m,
		now:           time.Now,
	}
}

// Route processes one raised notification inside a single transaction.
// Routing is not exactly-once under retries; the batch processors tolerate
// duplicate delivery rows through their own dedup.
func (s *Service) Route(ctx context.Context, notificationID int64) error {
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		return s.route(ctx, q, notificationID)
	})
	if err != nil {
		s.metrics.RoutingErrors.Inc()
	}
	return err
}

func (s *Service) route(ctx context.Context, q repository.Querier, notificationID int64) error {
	n, err := s.notifications.Get(ctx, q, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load notification %d: %w", notificationID, err)
	}

	user, err := s.users.Get(ctx, q, n.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// A notification pointing at a missing user is a data
			// integrity problem, not a routine miss.
			return apperrors.NewIntegrity(
				fmt.Sprintf("notification %d references nonexistent user %s", n.ID, n.UserID), err)
		}
		return fmt.Errorf("failed to load user %s: %w", n.UserID, err)
	}

	if !user.NotificationsEnabled {
		s.logger.Info("skipping notification, user has notifications disabled",
			"user_id", user.ID.String(),
			"notification_id", n.ID)
		s.metrics.RoutingSkipped.Inc()
		return nil
	}

	types, err := s.resolver.Resolve(ctx, q, user.ID, n.TopicAction)
	if err != nil {
		return fmt.Errorf("failed to resolve channels: %w", err)
	}

	for _, dt := range types.Slice() {
		switch dt {
		case model.DeliveryTypePush:
			if err := s.routePush(ctx, q, user, n); err != nil {
				return err
			}
		case model.DeliveryTypeEmail, model.DeliveryTypeDigest:
			// Deferred to the batch processors: email dedup needs
			// visibility across notifications, which a single-event
			// router cannot evaluate.
			if err := s.createPending(ctx, q, n.ID, dt); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unhandled delivery type %q", dt)
		}
	}
	return nil
}

func (s *Service) routePush(ctx context.Context, q repository.Querier, user *model.User, n *model.Notification) error {
	// Push is best-effort: a failed send is logged and dropped rather
	// than left behind as a pending row.
	if err := s.push.Send(ctx, user, n); err != nil {
		s.logger.Warn(err, "push send failed",
			"user_id", user.ID.String(),
			"notification_id", n.ID)
		s.metrics.DeliveryFailures.WithLabelValues(string(model.DeliveryTypePush)).Inc()
		return nil
	}

	now := s.now()
	if err := s.deliveries.Create(ctx, q, &model.NotificationDelivery{
		NotificationID: n.ID,
		DeliveryType:   model.DeliveryTypePush,
		Delivered:      &now,
	}); err != nil {
		return fmt.Errorf("failed to record push delivery: %w", err)
	}

	s.metrics.NotificationsRouted.WithLabelValues(string(model.DeliveryTypePush)).Inc()
	s.metrics.DeliveriesSent.WithLabelValues(string(model.DeliveryTypePush)).Inc()
	return nil
}

func (s *Service) createPending(ctx context.Context, q repository.Querier, notificationID int64, dt model.DeliveryType) error {
	if err := s.deliveries.Create(ctx, q, &model.NotificationDelivery{
		NotificationID: notificationID,
		DeliveryType:   dt,
	}); err != nil {
		return fmt.Errorf("failed to create pending %s delivery: %w", dt, err)
	}
	s.metrics.NotificationsRouted.WithLabelValues(string(dt)).Inc()
	return nil
}
