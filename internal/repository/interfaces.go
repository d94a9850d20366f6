package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loleg/couchers/internal/model"
)

// Querier is the subset of sqlx satisfied by both *sqlx.DB and *sqlx.Tx.
// Repository methods take a Querier so callers decide the transaction
// boundary; the preference resolver in particular must see the same
// snapshot as the routing transaction it runs inside.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store hands out queriers and runs functions inside a transaction.
type Store interface {
	Querier() Querier
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type UserRepository interface {
	Get(ctx context.Context, q Querier, id uuid.UUID) (*model.User, error)
	SetNotificationsEnabled(ctx context.Context, q Querier, id uuid.UUID, enabled bool) error
	SetLastDigestSent(ctx context.Context, q Querier, id uuid.UUID, at time.Time) error
	// ListDigestEligible returns users whose last digest predates cutoff
	// and who have at least one pending digest delivery.
	ListDigestEligible(ctx context.Context, q Querier, cutoff time.Time) ([]*model.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, q Querier, n *model.Notification) error
	Get(ctx context.Context, q Querier, id int64) (*model.Notification, error)
}

type PreferenceRepository interface {
	ListForTopicAction(ctx context.Context, q Querier, userID uuid.UUID, ta model.TopicAction) ([]*model.NotificationPreference, error)
	ListForUser(ctx context.Context, q Querier, userID uuid.UUID) ([]*model.NotificationPreference, error)
	Upsert(ctx context.Context, q Querier, p *model.NotificationPreference) error
}

type DeliveryRepository interface {
	Create(ctx context.Context, q Querier, d *model.NotificationDelivery) error
	// ClaimPending sets delivered on a still-pending row and reports
	// whether this caller won the claim. Two concurrent batch runs can
	// never both mark the same delivery sent.
	ClaimPending(ctx context.Context, q Querier, id int64, at time.Time) (bool, error)
	// CoveredEmailGroups returns the (user, topic action, key) triples
	// that already received an email for a notification created after
	// since; candidates in these groups are suppressed.
	CoveredEmailGroups(ctx context.Context, q Querier, since time.Time) ([]model.DeliveryGroup, error)
	// EmailCandidates groups email deliveries on notifications created
	// after since, picking the earliest notification and delivery row of
	// each group as representatives.
	EmailCandidates(ctx context.Context, q Querier, since time.Time) ([]*model.EmailCandidate, error)
	// PendingDigest returns a user's undelivered digest items in
	// notification creation order, skipping notifications already covered
	// by another delivered digest row.
	PendingDigest(ctx context.Context, q Querier, userID uuid.UUID) ([]*model.DigestItem, error)
}
