package preference

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loleg/couchers/internal/catalog"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	apperrors "github.com/loleg/couchers/pkg/errors"
)

type mockPreferenceRepo struct {
	listForTopicAction func(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction) ([]*model.NotificationPreference, error)
	upsert             func(ctx context.Context, q repository.Querier, p *model.NotificationPreference) error
}

func (m *mockPreferenceRepo) ListForTopicAction(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction) ([]*model.NotificationPreference, error) {
	return m.listForTopicAction(ctx, q, userID, ta)
}

func (m *mockPreferenceRepo) ListForUser(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	return nil, nil
}

func (m *mockPreferenceRepo) Upsert(ctx context.Context, q repository.Querier, p *model.NotificationPreference) error {
	if m.upsert != nil {
		return m.upsert(ctx, q, p)
	}
	return nil
}

var testTopicAction = model.NewTopicAction("chat", "message")

func testCatalog() *catalog.Catalog {
	return catalog.New(map[model.TopicAction][]model.DeliveryType{
		testTopicAction: {model.DeliveryTypeEmail, model.DeliveryTypePush},
	})
}

func override(dt model.DeliveryType, deliver bool) *model.NotificationPreference {
	return &model.NotificationPreference{
		TopicAction:  testTopicAction,
		DeliveryType: dt,
		Deliver:      deliver,
	}
}

func TestResolve(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		overrides []*model.NotificationPreference
		want      []model.DeliveryType
	}{
		{
			name:      "no overrides returns exactly the defaults",
			overrides: nil,
			want:      []model.DeliveryType{model.DeliveryTypeEmail, model.DeliveryTypePush},
		},
		{
			name:      "override disables a default channel",
			overrides: []*model.NotificationPreference{override(model.DeliveryTypeEmail, false)},
			want:      []model.DeliveryType{model.DeliveryTypePush},
		},
		{
			name:      "override enables a non-default channel",
			overrides: []*model.NotificationPreference{override(model.DeliveryTypeDigest, true)},
			want:      []model.DeliveryType{model.DeliveryTypeEmail, model.DeliveryTypePush, model.DeliveryTypeDigest},
		},
		{
			name: "each type falls back to its own default independently",
			overrides: []*model.NotificationPreference{
				override(model.DeliveryTypeEmail, false),
				override(model.DeliveryTypeDigest, true),
			},
			// push has no override row and keeps its default.
			want: []model.DeliveryType{model.DeliveryTypePush, model.DeliveryTypeDigest},
		},
		{
			name: "all channels disabled",
			overrides: []*model.NotificationPreference{
				override(model.DeliveryTypeEmail, false),
				override(model.DeliveryTypePush, false),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPreferenceRepo{
				listForTopicAction: func(_ context.Context, _ repository.Querier, gotUser uuid.UUID, gotTA model.TopicAction) ([]*model.NotificationPreference, error) {
					assert.Equal(t, userID, gotUser)
					assert.Equal(t, testTopicAction, gotTA)
					return tt.overrides, nil
				},
			}
			svc := NewService(repo, testCatalog())

			got, err := svc.Resolve(context.Background(), nil, userID, testTopicAction)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got.Slice())
		})
	}
}

func TestResolveUnknownTopicAction(t *testing.T) {
	svc := NewService(&mockPreferenceRepo{}, testCatalog())

	_, err := svc.Resolve(context.Background(), nil, uuid.New(), model.NewTopicAction("nope", "never"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.Code(err))
}

func TestSetValidation(t *testing.T) {
	var saved *model.NotificationPreference
	repo := &mockPreferenceRepo{
		upsert: func(_ context.Context, _ repository.Querier, p *model.NotificationPreference) error {
			saved = p
			return nil
		},
	}
	svc := NewService(repo, testCatalog())
	userID := uuid.New()

	err := svc.Set(context.Background(), nil, userID, testTopicAction, model.DeliveryTypeEmail, false)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, userID, saved.UserID)
	assert.False(t, saved.Deliver)

	err = svc.Set(context.Background(), nil, userID, model.NewTopicAction("nope", "never"), model.DeliveryTypeEmail, true)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.Code(err))

	err = svc.Set(context.Background(), nil, userID, testTopicAction, model.DeliveryType("fax"), true)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.Code(err))
}
