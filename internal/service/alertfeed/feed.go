// Package alertfeed broadcasts emergency-alert changes to dashboards over
// Redis pub/sub. Every subscription must be closed by its owner.
package alertfeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lifeline-plus/internal/domain/entity"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultChannel = "emergency-alerts"

	subscriptionBuffer = 32
)

type EventType string

const (
	EventAlertCreated  EventType = "alert.created"
	EventAlertAssigned EventType = "alert.assigned"
	EventAlertResolved EventType = "alert.resolved"
)

type Event struct {
	Type  EventType             `json:"type"`
	Alert entity.EmergencyAlert `json:"alert"`
	At    time.Time             `json:"at"`
}

// Publisher is what the alert usecase depends on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Feed struct {
	redisClient *redis.Client
	channel     string
	log         *logrus.Logger
}

func NewFeed(redisClient *redis.Client, channel string, log *logrus.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Feed{redisClient: redisClient, channel: channel, log: log}
}

func (f *Feed) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.redisClient.Publish(ctx, f.channel, payload).Err()
}

// Subscribe blocks until Redis confirms the subscription, so no event
// published after it returns is missed.
func (f *Feed) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := f.redisClient.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
		log:    f.log,
	}
	go sub.run()
	return sub, nil
}

// Subscription is a cancellable stream of feed events.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
	log    *logrus.Logger
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *Subscription) run() {
	defer close(s.events)

	messages := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.Warnf("Dropping malformed alert feed message: %+v", err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			default:
				s.log.Warnf("Alert feed subscriber is slow, dropping %s for %s", event.Type, event.Alert.ID)
			}
		}
	}
}
