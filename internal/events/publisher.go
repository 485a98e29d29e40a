// Package events fans pipeline events out to Redis pub/sub and NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/observability"
)

const (
	// TypeStudentNeedsHelp is published when the classifier opens an at-risk record.
	TypeStudentNeedsHelp = "student.needs_help"
	// TypeAssignmentPublished is published for every assignment the sweep activates.
	TypeAssignmentPublished = "assignment.published"
	// TypeTaskFinished is published after every scheduled or manual task run.
	TypeTaskFinished = "task.finished"
)

// Event is the envelope written to every broker.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher emits pipeline events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, map[string]interface{}) error { return nil }

// BrokerPublisher writes events to a Redis channel and a NATS subject derived from one base name.
type BrokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBrokerPublisher builds a publisher. Either client may be nil.
func NewBrokerPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *BrokerPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &BrokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		now:          time.Now,
	}
}

// Channel returns the Redis channel events are published on.
func (p *BrokerPublisher) Channel() string {
	return p.redisChannel
}

// Subject returns the NATS subject events are published on.
func (p *BrokerPublisher) Subject() string {
	return p.natsSubject
}

// Publish serialises the event once and sends it to every configured broker.
// Broker errors are joined so one failing broker does not hide the other.
func (p *BrokerPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     p.nodeID,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, data).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, data); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		p.logger.Warn().Err(errors.Join(errs...)).Str("type", eventType).Msg("failed to publish pipeline event")
		return errors.Join(errs...)
	}

	observability.EventsPublished().WithLabelValues(eventType).Inc()
	return nil
}

// Decode parses an event envelope received from a broker.
func Decode(data []byte) (Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return event, err
}
