package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/catalog"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	apperrors "github.com/loleg/couchers/pkg/errors"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/messaging"
	"github.com/loleg/couchers/pkg/security"
)

// Service is the notification intake: it persists raised notifications and
// hands their ids to the delivery worker over the broker. It also resolves
// unsubscribe tokens back to users.
type Service struct {
	store         repository.Store
	notifications repository.NotificationRepository
	users         repository.UserRepository
	catalog       *catalog.Catalog
	broker        messaging.Broker
	signer        *security.Signer
	logger        *logger.Logger
	now           func() time.Time
}

func NewService(
	store repository.Store,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	cat *catalog.Catalog,
	broker messaging.Broker,
	signer *security.Signer,
	log *logger.Logger,
) *Service {
	return &Service{
		store:         store,
		notifications: notifications,
		users:         users,
		catalog:       cat,
		broker:        broker,
		signer:        signer,
		logger:        log,
		now:           time.Now,
	}
}

// Raise persists one notification and publishes its id for routing.
// Delivery is asynchronous: producers never observe delivery failures.
func (s *Service) Raise(ctx context.Context, userID uuid.UUID, ta model.TopicAction, key, payloadRef string) (int64, error) {
	if !s.catalog.Known(ta) {
		return 0, apperrors.NewBadRequest(fmt.Sprintf("unknown topic action %s", ta), nil)
	}
	if key == "" {
		return 0, apperrors.NewBadRequest("notification key is required", nil)
	}

	n := &model.Notification{
		UserID:      userID,
		TopicAction: ta,
		Key:         key,
		PayloadRef:  payloadRef,
		CreatedAt:   s.now(),
	}
	if err := s.notifications.Create(ctx, s.store.Querier(), n); err != nil {
		return 0, err
	}

	// The row is committed either way; a lost publish only delays
	// routing until the id is re-raised or swept.
	if err := s.broker.Publish(ctx, messaging.ChannelNotificationRaised, n.ID); err != nil {
		s.logger.Error(err, "failed to publish raised notification",
			"notification_id", n.ID)
	}

	return n.ID, nil
}

// Unsubscribe verifies a signed unsubscribe token and disables all
// notifications for the embedded user.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	payload, err := s.signer.Verify(token)
	if err != nil {
		return apperrors.NewBadRequest("invalid unsubscribe token", err)
	}

	userID, err := uuid.Parse(string(payload))
	if err != nil {
		return apperrors.NewBadRequest("invalid unsubscribe token", err)
	}

	if err := s.users.SetNotificationsEnabled(ctx, s.store.Querier(), userID, false); err != nil {
		return err
	}

	s.logger.Info("user unsubscribed from notifications", "user_id", userID.String())
	return nil
}
