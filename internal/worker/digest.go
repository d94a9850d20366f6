package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loleg/couchers/internal/email"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/metrics"
)

type DigestProcessorConfig struct {
	// Cadence is the minimum interval between digests to one user.
	Cadence time.Duration
}

// DigestProcessor aggregates a user's pending digest deliveries into one
// compound email, at most once per cadence per user.
type DigestProcessor struct {
	store      repository.Store
	users      repository.UserRepository
	deliveries repository.DeliveryRepository
	sender     email.Service
	config     DigestProcessorConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewDigestProcessor(
	store repository.Store,
	users repository.UserRepository,
	deliveries repository.DeliveryRepository,
	sender email.Service,
	config DigestProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *DigestProcessor {
	if config.Cadence <= 0 {
		panic("Cadence must be greater than 0")
	}

	return &DigestProcessor{
		store:      store,
		users:      users,
		deliveries: deliveries,
		sender:     sender,
		config:     config,
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// Run executes one batch pass. Each user is processed in their own
// transaction; a failed digest leaves that user's deliveries pending and
// their cadence timestamp untouched, to be retried next cycle.
func (p *DigestProcessor) Run(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.BatchRunDuration.WithLabelValues("digest"))
	defer timer.ObserveDuration()

	users, err := p.users.ListDigestEligible(ctx, p.store.Querier(), p.now().Add(-p.config.Cadence))
	if err != nil {
		p.metrics.BatchRunErrors.WithLabelValues("digest").Inc()
		return fmt.Errorf("failed to list digest-eligible users: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.sendDigest(ctx, user); err != nil {
			p.logger.Error(err, "failed to send digest",
				"user_id", user.ID.String())
			p.metrics.DeliveryFailures.WithLabelValues(string(model.DeliveryTypeDigest)).Inc()
			continue
		}
	}
	return nil
}

func (p *DigestProcessor) sendDigest(ctx context.Context, user *model.User) error {
	return p.store.WithTx(ctx, func(q repository.Querier) error {
		items, err := p.deliveries.PendingDigest(ctx, q, user.ID)
		if err != nil {
			return err
		}

		now := p.now()
		notifications := make([]*model.Notification, 0, len(items))
		for _, item := range items {
			claimed, err := p.deliveries.ClaimPending(ctx, q, item.DeliveryID, now)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}
			n := item.Notification
			notifications = append(notifications, &n)
		}

		// Nothing to send: leave last_digest_sent alone so the user is
		// re-checked every run until something accrues.
		if len(notifications) == 0 {
			return nil
		}

		if err := p.sender.SendDigest(ctx, user, notifications); err != nil {
			return err
		}

		if err := p.users.SetLastDigestSent(ctx, q, user.ID, now); err != nil {
			return err
		}

		p.logger.Info("sent digest",
			"user_id", user.ID.String(),
			"notifications", len(notifications))
		p.metrics.DeliveriesSent.WithLabelValues(string(model.DeliveryTypeDigest)).Inc()
		p.metrics.DigestSize.Observe(float64(len(notifications)))
		return nil
	})
}
