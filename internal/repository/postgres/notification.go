package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/loleg/couchers/pkg/errors"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
)

type notificationRepository struct{}

func NewNotificationRepository() repository.NotificationRepository {
	return &notificationRepository{}
}

func (r *notificationRepository) Create(ctx context.Context, q repository.Querier, n *model.Notification) error {
	query := `
		INSERT INTO notifications (user_id, topic_action, key, payload_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := q.GetContext(ctx, &n.ID, query,
		n.UserID,
		n.TopicAction,
		n.Key,
		n.PayloadRef,
		n.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, q repository.Querier, id int64) (*model.Notification, error) {
	query := `
		SELECT id, user_id, topic_action, key, payload_ref, created_at
		FROM notifications
		WHERE id = $1
	`

	var n model.Notification
	if err := q.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("notification %d not found", id), err)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}
