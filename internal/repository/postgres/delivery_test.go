package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loleg/couchers/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })
	return sqlxDB, mock
}

func TestDeliveryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notification_deliveries")).
		WithArgs(int64(42), "email", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	d := &model.NotificationDelivery{NotificationID: 42, DeliveryType: model.DeliveryTypeEmail}
	require.NoError(t, repo.Create(context.Background(), db, d))
	assert.Equal(t, int64(7), d.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_deliveries")).
		WithArgs(int64(7), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimPending(context.Background(), db, 7, at)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingAlreadyDelivered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_deliveries")).
		WithArgs(int64(7), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimPending(context.Background(), db, 7, at)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoveredEmailGroups(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()
	userID := uuid.New()
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT n.user_id, n.topic_action, n.key")).
		WithArgs("email", since).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "topic_action", "key"}).
			AddRow(userID.String(), "chat:message", "conversation/3"))

	groups, err := repo.CoveredEmailGroups(context.Background(), db, since)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, model.DeliveryGroup{
		UserID:      userID,
		TopicAction: model.NewTopicAction("chat", "message"),
		Key:         "conversation/3",
	}, groups[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailCandidates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()
	userID := uuid.New()
	since := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows([]string{
		"user_id", "email", "name", "topic_action", "key", "notification_id", "delivery_id",
	}).AddRow(userID.String(), "a@example.com", "Alice", "friend_request:create", "u/2", int64(3), int64(30))

	mock.ExpectQuery(regexp.QuoteMeta("MIN(n.id) AS notification_id")).
		WithArgs("email", since).
		WillReturnRows(rows)

	candidates, err := repo.EmailCandidates(context.Background(), db, since)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, userID, c.UserID)
	assert.Equal(t, "a@example.com", c.Email)
	assert.Equal(t, int64(3), c.NotificationID)
	assert.Equal(t, int64(30), c.DeliveryID)
	assert.Equal(t, model.DeliveryGroup{
		UserID:      userID,
		TopicAction: model.NewTopicAction("friend_request", "create"),
		Key:         "u/2",
	}, c.Group())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingDigest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository()
	userID := uuid.New()
	base := time.Now().Add(-3 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "topic_action", "key", "payload_ref", "created_at", "delivery_id",
	}).
		AddRow(int64(1), userID.String(), "event:invite", "e/1", "", base, int64(10)).
		AddRow(int64(2), userID.String(), "chat:message", "c/4", "", base.Add(time.Minute), int64(11))

	mock.ExpectQuery(regexp.QuoteMeta("AND nd.delivered IS NULL")).
		WithArgs(userID.String(), "digest").
		WillReturnRows(rows)

	items, err := repo.PendingDigest(context.Background(), db, userID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].Notification.ID)
	assert.Equal(t, int64(10), items[0].DeliveryID)
	assert.Equal(t, model.NewTopicAction("chat", "message"), items[1].Notification.TopicAction)
	assert.True(t, items[0].Notification.CreatedAt.Before(items[1].Notification.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
