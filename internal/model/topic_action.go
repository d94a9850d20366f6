package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// TopicAction classifies what kind of event a notification represents,
// e.g. {Topic: "friend_request", Action: "create"}. The catalog maps each
// classifier to its default delivery channels.
type TopicAction struct {
	Topic  string
	Action string
}

func NewTopicAction(topic, action string) TopicAction {
	return TopicAction{Topic: topic, Action: action}
}

// ParseTopicAction parses the "topic:action" wire form.
func ParseTopicAction(s string) (TopicAction, error) {
	topic, action, ok := strings.Cut(s, ":")
	if !ok || topic == "" || action == "" {
		return TopicAction{}, fmt.Errorf("invalid topic action %q", s)
	}
	return TopicAction{Topic: topic, Action: action}, nil
}

func (ta TopicAction) String() string {
	return ta.Topic + ":" + ta.Action
}

func (ta TopicAction) IsZero() bool {
	return ta.Topic == "" && ta.Action == ""
}

// MarshalText renders the "topic:action" form for JSON payloads.
func (ta TopicAction) MarshalText() ([]byte, error) {
	return []byte(ta.String()), nil
}

func (ta *TopicAction) UnmarshalText(b []byte) error {
	parsed, err := ParseTopicAction(string(b))
	if err != nil {
		return err
	}
	*ta = parsed
	return nil
}

// Value stores the classifier as a single "topic:action" column.
func (ta TopicAction) Value() (driver.Value, error) {
	return ta.String(), nil
}

func (ta *TopicAction) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return ta.UnmarshalText([]byte(v))
	case []byte:
		return ta.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into TopicAction", src)
	}
}
