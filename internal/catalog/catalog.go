// Package catalog holds the static registry of known topic/action
// classifiers and their default delivery channels. The registry is built
// once at process start and never mutated afterwards.
package catalog

import (
	"github.com/loleg/couchers/internal/model"
)

type Catalog struct {
	defaults map[model.TopicAction]model.DeliveryTypeSet
}

// New builds an immutable catalog from the given entries. The entry map is
// copied so later mutation of the argument cannot leak into the catalog.
func New(entries map[model.TopicAction][]model.DeliveryType) *Catalog {
	defaults := make(map[model.TopicAction]model.DeliveryTypeSet, len(entries))
	for ta, types := range entries {
		defaults[ta] = model.NewDeliveryTypeSet(types...)
	}
	return &Catalog{defaults: defaults}
}

// Default returns the built-in topic/action registry.
func Default() *Catalog {
	return New(map[model.TopicAction][]model.DeliveryType{
		model.NewTopicAction("friend_request", "create"): {model.DeliveryTypeEmail, model.DeliveryTypePush, model.DeliveryTypeDigest},
		model.NewTopicAction("friend_request", "accept"): {model.DeliveryTypePush, model.DeliveryTypeDigest},
		model.NewTopicAction("host_request", "create"):   {model.DeliveryTypeEmail, model.DeliveryTypePush},
		model.NewTopicAction("host_request", "accept"):   {model.DeliveryTypeEmail, model.DeliveryTypePush},
		model.NewTopicAction("host_request", "reject"):   {model.DeliveryTypePush, model.DeliveryTypeDigest},
		model.NewTopicAction("host_request", "message"):  {model.DeliveryTypeEmail, model.DeliveryTypePush},
		model.NewTopicAction("chat", "message"):          {model.DeliveryTypeEmail, model.DeliveryTypePush},
		model.NewTopicAction("chat", "mention"):          {model.DeliveryTypeEmail, model.DeliveryTypePush, model.DeliveryTypeDigest},
		model.NewTopicAction("event", "invite"):          {model.DeliveryTypeEmail, model.DeliveryTypeDigest},
		model.NewTopicAction("event", "update"):          {model.DeliveryTypeDigest},
		model.NewTopicAction("reference", "receive"):     {model.DeliveryTypeEmail, model.DeliveryTypePush},
		model.NewTopicAction("account", "password_change"): {
			model.DeliveryTypeEmail, model.DeliveryTypePush,
		},
	})
}

// Defaults returns the default channel set for a classifier. The returned
// set must not be modified by callers.
func (c *Catalog) Defaults(ta model.TopicAction) (model.DeliveryTypeSet, bool) {
	s, ok := c.defaults[ta]
	return s, ok
}

// Known reports whether the classifier exists in the registry.
func (c *Catalog) Known(ta model.TopicAction) bool {
	_, ok := c.defaults[ta]
	return ok
}

// TopicActions lists every registered classifier.
func (c *Catalog) TopicActions() []model.TopicAction {
	out := make([]model.TopicAction, 0, len(c.defaults))
	for ta := range c.defaults {
		out = append(out, ta)
	}
	return out
}
