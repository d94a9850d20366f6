package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryType is a delivery channel's latency class: push is synchronous,
// email is near-real-time with window deduplication, digest is a periodic
// aggregate.
type DeliveryType string

const (
	DeliveryTypeEmail  DeliveryType = "email"
	DeliveryTypePush   DeliveryType = "push"
	DeliveryTypeDigest DeliveryType = "digest"
)

// AllDeliveryTypes enumerates every channel. Preference resolution iterates
// the whole enum so each channel's override falls back to its own default
// independently of the others.
var AllDeliveryTypes = []DeliveryType{
	DeliveryTypeEmail,
	DeliveryTypePush,
	DeliveryTypeDigest,
}

func (d DeliveryType) Valid() bool {
	switch d {
	case DeliveryTypeEmail, DeliveryTypePush, DeliveryTypeDigest:
		return true
	}
	return false
}

// DeliveryTypeSet is the effective set of enabled channels for one
// (user, topic action) pair.
type DeliveryTypeSet map[DeliveryType]struct{}

func NewDeliveryTypeSet(types ...DeliveryType) DeliveryTypeSet {
	s := make(DeliveryTypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s DeliveryTypeSet) Contains(t DeliveryType) bool {
	_, ok := s[t]
	return ok
}

func (s DeliveryTypeSet) Add(t DeliveryType) {
	s[t] = struct{}{}
}

// Slice returns the members in enum order, for stable iteration and logs.
func (s DeliveryTypeSet) Slice() []DeliveryType {
	out := make([]DeliveryType, 0, len(s))
	for _, t := range AllDeliveryTypes {
		if s.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// Notification is one raised event. Rows are created by producers and never
// mutated; Key identifies the logical subject of the event and drives email
// deduplication.
type Notification struct {
	ID          int64       `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	TopicAction TopicAction `json:"topic_action" db:"topic_action"`
	Key         string      `json:"key" db:"key"`
	PayloadRef  string      `json:"payload_ref" db:"payload_ref"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// NotificationDelivery is one attempted delivery of a notification over one
// channel. Delivered is nil while pending and set exactly once; a row is
// never un-delivered.
type NotificationDelivery struct {
	ID             int64        `json:"id" db:"id"`
	NotificationID int64        `json:"notification_id" db:"notification_id"`
	DeliveryType   DeliveryType `json:"delivery_type" db:"delivery_type"`
	Delivered      *time.Time   `json:"delivered" db:"delivered"`
}

// NotificationPreference is a user's explicit per-channel override for one
// topic action. When present it takes precedence over the catalog default.
type NotificationPreference struct {
	ID           int64        `json:"id" db:"id"`
	UserID       uuid.UUID    `json:"user_id" db:"user_id"`
	TopicAction  TopicAction  `json:"topic_action" db:"topic_action"`
	DeliveryType DeliveryType `json:"delivery_type" db:"delivery_type"`
	Deliver      bool         `json:"deliver" db:"deliver"`
}

// DeliveryGroup identifies one logical email: all notifications sharing a
// (user, topic action, key) triple collapse to at most one send per dedup
// window.
type DeliveryGroup struct {
	UserID      uuid.UUID   `db:"user_id"`
	TopicAction TopicAction `db:"topic_action"`
	Key         string      `db:"key"`
}

// EmailCandidate is one group of email deliveries eligible for sending,
// represented by its earliest notification and earliest delivery row.
type EmailCandidate struct {
	UserID         uuid.UUID   `db:"user_id"`
	Email          string      `db:"email"`
	Name           string      `db:"name"`
	TopicAction    TopicAction `db:"topic_action"`
	Key            string      `db:"key"`
	NotificationID int64       `db:"notification_id"`
	DeliveryID     int64       `db:"delivery_id"`
}

func (c *EmailCandidate) Group() DeliveryGroup {
	return DeliveryGroup{UserID: c.UserID, TopicAction: c.TopicAction, Key: c.Key}
}

// DigestItem pairs a pending digest delivery with its notification.
type DigestItem struct {
	Notification Notification
	DeliveryID   int64
}
