package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/metrics"
)

type fakeStore struct{}

func (fakeStore) Querier() repository.Querier { return nil }

func (fakeStore) WithTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return fn(nil)
}

type mockDeliveryRepo struct {
	coveredEmailGroups func(ctx context.Context, q repository.Querier, since time.Time) ([]model.DeliveryGroup, error)
	emailCandidates    func(ctx context.Context, q repository.Querier, since time.Time) ([]*model.EmailCandidate, error)
	claimPending       func(ctx context.Context, q repository.Querier, id int64, at time.Time) (bool, error)
	pendingDigest      func(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.DigestItem, error)
}

func (m *mockDeliveryRepo) Create(ctx context.Context, q repository.Querier, d *model.NotificationDelivery) error {
	return nil
}

func (m *mockDeliveryRepo) ClaimPending(ctx context.Context, q repository.Querier, id int64, at time.Time) (bool, error) {
	if m.claimPending != nil {
		return m.claimPending(ctx, q, id, at)
	}
	return true, nil
}

func (m *mockDeliveryRepo) CoveredEmailGroups(ctx context.Context, q repository.Querier, since time.Time) ([]model.DeliveryGroup, error) {
	if m.coveredEmailGroups != nil {
		return m.coveredEmailGroups(ctx, q, since)
	}
	return nil, nil
}

func (m *mockDeliveryRepo) EmailCandidates(ctx context.Context, q repository.Querier, since time.Time) ([]*model.EmailCandidate, error) {
	if m.emailCandidates != nil {
		return m.emailCandidates(ctx, q, since)
	}
	return nil, nil
}

func (m *mockDeliveryRepo) PendingDigest(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.DigestItem, error) {
	if m.pendingDigest != nil {
		return m.pendingDigest(ctx, q, userID)
	}
	return nil, nil
}

type mockNotificationRepo struct {
	notifications map[int64]*model.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, q repository.Querier, n *model.Notification) error {
	return nil
}

func (m *mockNotificationRepo) Get(ctx context.Context, q repository.Querier, id int64) (*model.Notification, error) {
	n, ok := m.notifications[id]
	if !ok {
		return nil, errors.New("notification not found")
	}
	return n, nil
}

type mockEmailService struct {
	notificationErr error
	digestErr       error
	sent            []*model.Notification
	digests         [][]*model.Notification
	digestUsers     []uuid.UUID
}

func (m *mockEmailService) SendNotification(ctx context.Context, user *model.User, n *model.Notification) error {
	if m.notificationErr != nil {
		return m.notificationErr
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockEmailService) SendDigest(ctx context.Context, user *model.User, notifications []*model.Notification) error {
	if m.digestErr != nil {
		return m.digestErr
	}
	m.digests = append(m.digests, notifications)
	m.digestUsers = append(m.digestUsers, user.ID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func candidate(userID uuid.UUID, ta model.TopicAction, key string, notificationID, deliveryID int64) *model.EmailCandidate {
	return &model.EmailCandidate{
		UserID:         userID,
		Email:          "user@example.com",
		Name:           "Test User",
		TopicAction:    ta,
		Key:            key,
		NotificationID: notificationID,
		DeliveryID:     deliveryID,
	}
}

func TestEmailProcessorSendsUncoveredGroups(t *testing.T) {
	userID := uuid.New()
	ta := model.NewTopicAction("friend_request", "create")
	n := &model.Notification{ID: 1, UserID: userID, TopicAction: ta, Key: "u/9"}

	var claimed []int64
	deliveries := &mockDeliveryRepo{
		emailCandidates: func(context.Context, repository.Querier, time.Time) ([]*model.EmailCandidate, error) {
			return []*model.EmailCandidate{candidate(userID, ta, "u/9", 1, 10)}, nil
		},
		claimPending: func(_ context.Context, _ repository.Querier, id int64, _ time.Time) (bool, error) {
			claimed = append(claimed, id)
			return true, nil
		},
	}
	sender := &mockEmailService{}

	p := NewEmailProcessor(fakeStore{}, deliveries,
		&mockNotificationRepo{notifications: map[int64]*model.Notification{1: n}},
		sender,
		EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 24 * time.Hour},
		testLogger(), metrics.New("test"))

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, n, sender.sent[0])
	assert.Equal(t, []int64{10}, claimed)
}

func TestEmailProcessorSuppressesCoveredGroups(t *testing.T) {
	userID := uuid.New()
	ta := model.NewTopicAction("chat", "message")

	deliveries := &mockDeliveryRepo{
		coveredEmailGroups: func(context.Context, repository.Querier, time.Time) ([]model.DeliveryGroup, error) {
			return []model.DeliveryGroup{{UserID: userID, TopicAction: ta, Key: "c/3"}}, nil
		},
		emailCandidates: func(context.Context, repository.Querier, time.Time) ([]*model.EmailCandidate, error) {
			return []*model.EmailCandidate{candidate(userID, ta, "c/3", 1, 10)}, nil
		},
		claimPending: func(context.Context, repository.Querier, int64, time.Time) (bool, error) {
			t.Fatal("covered group must not be claimed")
			return false, nil
		},
	}
	sender := &mockEmailService{}

	p := NewEmailProcessor(fakeStore{}, deliveries,
		&mockNotificationRepo{},
		sender,
		EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 24 * time.Hour},
		testLogger(), metrics.New("test"))

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, sender.sent)
}

// A second run over the same state must not send again: the first run's
// send makes the group covered, and its claim makes the delivery row lost
// to ClaimPending.
func TestEmailProcessorSecondRunIsIdempotent(t *testing.T) {
	userID := uuid.New()
	ta := model.NewTopicAction("chat", "message")
	n := &model.Notification{ID: 1, UserID: userID, TopicAction: ta, Key: "c/3"}

	claimed := map[int64]bool{}
	deliveries := &mockDeliveryRepo{
		coveredEmailGroups: func(context.Context, repository.Querier, time.Time) ([]model.DeliveryGroup, error) {
			if claimed[10] {
				return []model.DeliveryGroup{{UserID: userID, TopicAction: ta, Key: "c/3"}}, nil
			}
			return nil, nil
		},
		emailCandidates: func(context.Context, repository.Querier, time.Time) ([]*model.EmailCandidate, error) {
			return []*model.EmailCandidate{candidate(userID, ta, "c/3", 1, 10)}, nil
		},
		claimPending: func(_ context.Context, _ repository.Querier, id int64, _ time.Time) (bool, error) {
			if claimed[id] {
				return false, nil
			}
			claimed[id] = true
			return true, nil
		},
	}
	sender := &mockEmailService{}

	p := NewEmailProcessor(fakeStore{}, deliveries,
		&mockNotificationRepo{notifications: map[int64]*model.Notification{1: n}},
		sender,
		EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 24 * time.Hour},
		testLogger(), metrics.New("test"))

	require.NoError(t, p.Run(context.Background()))
	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestEmailProcessorLostClaimSkipsSend(t *testing.T) {
	userID := uuid.New()
	ta := model.NewTopicAction("chat", "message")

	deliveries := &mockDeliveryRepo{
		emailCandidates: func(context.Context, repository.Querier, time.Time) ([]*model.EmailCandidate, error) {
			return []*model.EmailCandidate{candidate(userID, ta, "c/3", 1, 10)}, nil
		},
		claimPending: func(context.Context, repository.Querier, int64, time.Time) (bool, error) {
			return false, nil
		},
	}
	sender := &mockEmailService{}

	p := NewEmailProcessor(fakeStore{}, deliveries,
		&mockNotificationRepo{},
		sender,
		EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 24 * time.Hour},
		testLogger(), metrics.New("test"))

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestEmailProcessorIsolatesGroupFailures(t *testing.T) {
	user1, user2 := uuid.New(), uuid.New()
	ta := model.NewTopicAction("chat", "message")
	n2 := &model.Notification{ID: 2, UserID: user2, TopicAction: ta, Key: "c/5"}

	deliveries := &mockDeliveryRepo{
		emailCandidates: func(context.Context, repository.Querier, time.Time) ([]*model.EmailCandidate, error) {
			return []*model.EmailCandidate{
				candidate(user1, ta, "c/4", 1, 10),
				candidate(user2, ta, "c/5", 2, 11),
			}, nil
		},
	}
	sender := &mockEmailService{}

	// Notification 1 is missing, so the first group errors inside its own
	// transaction; the second group still goes out and Run reports success.
	p := NewEmailProcessor(fakeStore{}, deliveries,
		&mockNotificationRepo{notifications: map[int64]*model.Notification{2: n2}},
		sender,
		EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 24 * time.Hour},
		testLogger(), metrics.New("test"))

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, n2, sender.sent[0])
}

func TestNewEmailProcessorRejectsZeroWindows(t *testing.T) {
	assert.Panics(t, func() {
		NewEmailProcessor(fakeStore{}, &mockDeliveryRepo{}, &mockNotificationRepo{}, &mockEmailService{},
			EmailProcessorConfig{CandidateWindow: 0, DedupWindow: 24 * time.Hour},
			testLogger(), metrics.New("test"))
	})
	assert.Panics(t, func() {
		NewEmailProcessor(fakeStore{}, &mockDeliveryRepo{}, &mockNotificationRepo{}, &mockEmailService{},
			EmailProcessorConfig{CandidateWindow: time.Hour, DedupWindow: 0},
			testLogger(), metrics.New("test"))
	})
}
