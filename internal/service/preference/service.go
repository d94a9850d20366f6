package preference

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/catalog"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	apperrors "github.com/loleg/couchers/pkg/errors"
)

// Service resolves the effective delivery channels for a user and topic
// action, and manages the user's explicit overrides.
type Service struct {
	prefs   repository.PreferenceRepository
	catalog *catalog.Catalog
}

func NewService(prefs repository.PreferenceRepository, cat *catalog.Catalog) *Service {
	return &Service{prefs: prefs, catalog: cat}
}

// Resolve returns the effective channel set: for every delivery type an
// explicit override wins, and a type with no override row falls back to
// the catalog default for that type alone. Resolve has no side effects and
// runs against the caller's querier so it observes the same snapshot as
// the surrounding transaction.
func (s *Service) Resolve(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction) (model.DeliveryTypeSet, error) {
	defaults, ok := s.catalog.Defaults(ta)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown topic action %s", ta), nil)
	}

	rows, err := s.prefs.ListForTopicAction(ctx, q, userID, ta)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference overrides: %w", err)
	}

	overrides := make(map[model.DeliveryType]bool, len(rows))
	for _, row := range rows {
		overrides[row.DeliveryType] = row.Deliver
	}

	out := model.NewDeliveryTypeSet()
	for _, dt := range model.AllDeliveryTypes {
		if deliver, ok := overrides[dt]; ok {
			if deliver {
				out.Add(dt)
			}
			continue
		}
		if defaults.Contains(dt) {
			out.Add(dt)
		}
	}
	return out, nil
}

// Set records an explicit override for one (topic action, delivery type).
func (s *Service) Set(ctx context.Context, q repository.Querier, userID uuid.UUID, ta model.TopicAction, dt model.DeliveryType, deliver bool) error {
	if !s.catalog.Known(ta) {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown topic action %s", ta), nil)
	}
	if !dt.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown delivery type %q", dt), nil)
	}

	return s.prefs.Upsert(ctx, q, &model.NotificationPreference{
		UserID:       userID,
		TopicAction:  ta,
		DeliveryType: dt,
		Deliver:      deliver,
	})
}

// Overrides lists the user's explicit override rows.
func (s *Service) Overrides(ctx context.Context, q repository.Querier, userID uuid.UUID) ([]*model.NotificationPreference, error) {
	return s.prefs.ListForUser(ctx, q, userID)
}
