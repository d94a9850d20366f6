// Package worker contains the periodic batch processors that drain pending
// notification deliveries: one for deduplicated emails, one for per-user
// digests. Both are invoked on a fixed schedule by cmd/worker and commit
// each group or user independently, so an interrupted run resumes safely
// on the next cycle.
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

type EmailProcessorConfig struct {
	// CandidateWindow bounds how far back a run looks for new email
	// deliveries to send.
	CandidateWindow time.Duration
	// DedupWindow bounds how long a sent email suppresses a repeat of
	// the same (user, topic action, key) group. Independent of the
	// candidate window.
	DedupWindow time.Duration
}

// EmailProcessor sends outstanding email deliveries, collapsing each
// (user, topic action, key) group to at most one send per dedup window.
type EmailProcessor struct {
	store         repository.Store
	deliveries    repository.DeliveryRepository
	notifications repository.NotificationRepository
	sender        email.Service
	config        EmailProcessorConfig
	logger        *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewEmailProcessor(
	store repository.Store,
	deliveries repository.DeliveryRepository,
	notifications repository.NotificationRepository,
	sender email.Service,
	config EmailProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *EmailProcessor {
	if config.CandidateWindow <= 0 {
		panic("CandidateWindow must be greater than 0")
	}
	if config.DedupWindow <= 0 {
		panic("DedupWindow must be greater than 0")
	}

	return &EmailProcessor{
		store:         store,
		deliveries:    deliveries,
		notifications: notifications,
		sender:        sender,
		config:        config,
		logger:        log,
		metrics:       m,
		now:           time.Now,
	}
}

// Run executes one batch pass. Covered groups and candidates are computed
// as two separate queries and subtracted in memory; each remaining group
// is sent and committed in its own transaction, so one group's failure
// never aborts the rest of the run.
func (p *EmailProcessor) Run(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.BatchRunDuration.WithLabelValues("email"))
	defer timer.ObserveDuration()

	now := p.now()

	covered, err := p.deliveries.CoveredEmailGroups(ctx, p.store.Querier(), now.Add(-p.config.DedupWindow))
	if err != nil {
		p.metrics.BatchRunErrors.WithLabelValues("email").Inc()
		return fmt.Errorf("failed to compute covered groups: %w", err)
	}
	coveredSet := make(map[model.DeliveryGroup]struct{}, len(covered))
	for _, g := range covered {
		coveredSet[g] = struct{}{}
	}

	candidates, err := p.deliveries.EmailCandidates(ctx, p.store.Querier(), now.Add(-p.config.CandidateWindow))
	if err != nil {
		p.metrics.BatchRunErrors.WithLabelValues("email").Inc()
		return fmt.Errorf("failed to list candidates: %w", err)
	}

	for _, c := range candidates {
		if _, ok := coveredSet[c.Group()]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.sendGroup(ctx, c); err != nil {
			p.logger.Error(err, "failed to send notification email",
				"user_id", c.UserID.String(),
				"topic_action", c.TopicAction.String(),
				"key", c.Key)
			p.metrics.DeliveryFailures.WithLabelValues(string(model.DeliveryTypeEmail)).Inc()
			continue
		}
	}
	return nil
}

func (p *EmailProcessor) sendGroup(ctx context.Context, c *model.EmailCandidate) error {
	return p.store.WithTx(ctx, func(q repository.Querier) error {
		claimed, err := p.deliveries.ClaimPending(ctx, q, c.DeliveryID, p.now())
		if err != nil {
			return err
		}
		if !claimed {
			// Another run already sent this group.
			return nil
		}

		n, err := p.notifications.Get(ctx, q, c.NotificationID)
		if err != nil {
			return err
		}

		user := &model.User{ID: c.UserID, Email: c.Email, Name: c.Name}
		// A failed send rolls back the claim, leaving the delivery
		// pending for the next run.
		if err := p.sender.SendNotification(ctx, user, n); err != nil {
			return err
		}

		p.logger.Info("sent notification email",
			"user_id", c.UserID.String(),
			"notification_id", c.NotificationID,
			"topic_action", c.TopicAction.String(),
			"key", c.Key)
		p.metrics.DeliveriesSent.WithLabelValues(string(model.DeliveryTypeEmail)).Inc()
		return nil
	})
}
