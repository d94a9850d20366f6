package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
)

type deliveryRepository struct{}

func NewDeliveryRepository() repository.DeliveryRepository {
	return &deliveryRepository{}
}

func (r *deliveryRepository) Create(ctx context.Context, q repository.Querier, d *model.NotificationDelivery) error {
	query := `
		INSERT INTO notification_deliveries (notification_id, delivery_type, delivered)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := q.GetContext(ctx, &d.ID, query,
		d.NotificationID,
		d.DeliveryType,
		d.Delivered,
	); err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

func (r *deliveryRepository) ClaimPending(ctx context.Context, q repository.Querier, id int64, at time.Time) (bool, error) {
	// The delivered IS NULL guard makes the transition monotonic: a row
	// is marked sent at most once, regardless of concurrent runs.
	query := `
		UPDATE notification_deliveries
		SET delivered = $2
		WHERE id = $1 AND delivered IS NULL
	`

	res, err := q.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *deliveryRepository) CoveredEmailGroups(ctx context.Context, q repository.Querier, since time.Time) ([]model.DeliveryGroup, error) {
	query := `
		SELECT n.user_id, n.topic_action, n.key
		FROM notifications n
		JOIN notification_deliveries nd ON nd.notification_id = n.id
		WHERE nd.delivery_type = $1
		AND nd.delivered IS NOT NULL
		AND n.created_at > $2
		GROUP BY n.user_id, n.topic_action, n.key
	`

	var groups []model.DeliveryGroup
	if err := q.SelectContext(ctx, &groups, query, model.DeliveryTypeEmail, since); err != nil {
		return nil, fmt.Errorf("failed to list covered email groups: %w", err)
	}
	return groups, nil
}

func (r *deliveryRepository) EmailCandidates(ctx context.Context, q repository.Querier, since time.Time) ([]*model.EmailCandidate, error) {
	// Delivered rows stay in the candidate set on purpose: dedup against
	// already-sent groups happens in the processor via CoveredEmailGroups.
	query := `
		SELECT n.user_id, u.email, u.name, n.topic_action, n.key,
			MIN(n.id) AS notification_id,
			MIN(nd.id) AS delivery_id
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		JOIN notification_deliveries nd ON nd.notification_id = n.id
		WHERE nd.delivery_type = $1
		AND n.created_at > $2
		GROUP BY n.user_id, u.email, u.name, n.topic_action, n.key
		ORDER BY MIN(n.id)
	`

	var candidates []*model.EmailCandidate
	if err := q.SelectContext(ctx, &candidates, query, model.DeliveryTypeEmail, since); err != nil {
		return nil, fmt.Errorf("failed to list email candidates: %w", err)
	}
	return candidates, nil
}

func (r *deliveryRepository) PendingDigest(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.DigestItem, error) {
	query := `
		SELECT n.id, n.user_id, n.topic_action, n.key, n.payload_ref, n.created_at,
			nd.id AS delivery_id
		FROM notifications n
		JOIN notification_deliveries nd ON nd.notification_id = n.id
		WHERE n.user_id = $1
		AND nd.delivery_type = $2
		AND nd.delivered IS NULL
		AND NOT EXISTS (
			SELECT 1
			FROM notification_deliveries other
			WHERE other.notification_id = n.id
			AND other.delivery_type = $2
			AND other.delivered IS NOT NULL
		)
		ORDER BY n.created_at ASC
	`

	rows, err := q.QueryxContext(ctx, query, userID, model.DeliveryTypeDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending digest items: %w", err)
	}
	defer rows.Close()

	var items []*model.DigestItem
	for rows.Next() {
		var item model.DigestItem
		if err := rows.Scan(
			&item.Notification.ID,
			&item.Notification.UserID,
			&item.Notification.TopicAction,
			&item.Notification.Key,
			&item.Notification.PayloadRef,
			&item.Notification.CreatedAt,
			&item.DeliveryID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan digest item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
