package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/loleg/couchers/pkg/errors"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
)

type userRepository struct{}

func NewUserRepository() repository.UserRepository {
	return &userRepository{}
}

func (r *userRepository) Get(ctx context.Context, q repository.Querier, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, name, notifications_enabled, last_digest_sent, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	if err := q.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("user %s not found", id), err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) SetNotificationsEnabled(ctx context.Context, q repository.Querier, id uuid.UUID, enabled bool) error {
	query := `
		UPDATE users
		SET notifications_enabled = $2
		WHERE id = $1
	`

	res, err := q.ExecContext(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to update notifications_enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("user %s not found", id), nil)
	}
	return nil
}

func (r *userRepository) SetLastDigestSent(ctx context.Context, q repository.Querier, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET last_digest_sent = $2
		WHERE id = $1
	`

	if _, err := q.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to update last_digest_sent: %w", err)
	}
	return nil
}

func (r *userRepository) ListDigestEligible(ctx context.Context, q repository.Querier, cutoff time.Time) ([]*model.User, error) {
	query := `
		SELECT u.id, u.email, u.name, u.notifications_enabled, u.last_digest_sent, u.created_at
		FROM users u
		WHERE u.last_digest_sent < $1
		AND EXISTS (
			SELECT 1
			FROM notifications n
			JOIN notification_deliveries nd ON nd.notification_id = n.id
			WHERE n.user_id = u.id
			AND nd.delivery_type = $2
			AND nd.delivered IS NULL
		)
		ORDER BY u.last_digest_sent ASC
	`

	var users []*model.User
	if err := q.SelectContext(ctx, &users, query, cutoff, model.DeliveryTypeDigest); err != nil {
		return nil, fmt.Errorf("failed to list digest-eligible users: %w", err)
	}
	return users, nil
}
