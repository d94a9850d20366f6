package email

import (
	"context"

	"github.com/loleg/couchers/internal/model"
)

// Service sends notification emails. Implementations either accept the
// message for delivery or return an error; callers treat a nil error as
// sufficient to mark the delivery sent.
type Service interface {
	// SendNotification sends one email for a single notification.
	SendNotification(ctx context.Context, user *model.User, n *model.Notification) error
	// SendDigest sends one compound email aggregating the given
	// notifications; the slice is already in creation order.
	SendDigest(ctx context.Context, user *model.User, notifications []*model.Notification) error
}
