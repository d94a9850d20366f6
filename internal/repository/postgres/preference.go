package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
)

type preferenceRepository struct{}

func NewPreferenceRepository() repository.PreferenceRepository {
	return &preferenceRepository{}
}

func (r *preferenceRepository) ListForTopicAction(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction) ([]*model.NotificationPreference, error) {
	query := `
		SELECT id, user_id, topic_action, delivery_type, deliver
		FROM notification_preferences
		WHERE user_id = $1 AND topic_action = $2
	`

	var prefs []*model.NotificationPreference
	if err := q.SelectContext(ctx, &prefs, query, userID, ta); err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	return prefs, nil
}

func (r *preferenceRepository) ListForUser(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	query := `
		SELECT id, user_id, topic_action, delivery_type, deliver
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY topic_action, delivery_type
	`

	var prefs []*model.NotificationPreference
	if err := q.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user preferences: %w", err)
	}
	return prefs, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, q repository.Querier, p *model.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (user_id, topic_action, delivery_type, deliver)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, topic_action, delivery_type)
		DO UPDATE SET deliver = EXCLUDED.deliver
		RETURNING id
	`

	if err := q.GetContext(ctx, &p.ID, query,
		p.UserID,
		p.TopicAction,
		p.DeliveryType,
		p.Deliver,
	); err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}
