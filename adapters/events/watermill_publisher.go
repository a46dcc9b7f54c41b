package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

// TopicPrefix prefixes the topic of every published event
const TopicPrefix = "walletsso."

// Payload is the wire form of a lifecycle event
type Payload struct {
	Type    core.EventType `json:"type"`
	At      time.Time      `json:"at"`
	User    *core.User     `json:"user,omitempty"`
	Error   string         `json:"error,omitempty"`
	State   string         `json:"state,omitempty"`
	Address string         `json:"address,omitempty"`
	Wallet  string         `json:"wallet,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		prefix:    TopicPrefix,
	}
}

// Topic returns the topic events of type t are published on
func Topic(t core.EventType) string {
	return TopicPrefix + string(t)
}

// NewPayload converts event to its wire form
func NewPayload(event core.Event) Payload {
	payload := Payload{
		Type:    event.Type,
		At:      event.At,
		User:    event.User,
		Address: event.Address,
		Wallet:  event.Wallet,
	}
	if event.Err != nil {
		payload.Error = core.UserMessage(event.Err)
	}
	if event.Type == core.EventStateChanged {
		payload.State = event.State.String()
	}
	return payload
}

// Publish publishes event on its topic
func (p *WatermillPublisher) Publish(ctx context.Context, event core.Event) error {
	payload := NewPayload(event)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.prefix+string(event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
