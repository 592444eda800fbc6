package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// Message is an encoded event delivered to a subscriber.
type Message struct {
	Type EventType
	Data []byte
}

// Broker is an in-process pub/sub keyed by channel name.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Message]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Message]struct{}),
	}
}

// Subscribe returns a channel receiving messages published on channel.
func (b *Broker) Subscribe(channel string) chan Message {
	ch := make(chan Message, subscriberBuffer)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan Message]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber from channel.
func (b *Broker) Unsubscribe(channel string, ch chan Message) {
	b.mu.Lock()
	delete(b.subs[channel], ch)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of subscribers on channel.
func (b *Broker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Publish sends an event to every subscriber of channel.
// Subscribers whose buffer is full miss the event.
func (b *Broker) Publish(channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := Message{Type: event.Type, Data: data}

	b.mu.RLock()
	for ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
	return nil
}

// PublishJourney publishes an event on the journey channel.
func (b *Broker) PublishJourney(_ context.Context, journeyID string, event Event) error {
	return b.Publish(JourneyChannel(journeyID), event)
}

// PublishTraveler publishes an event on the traveler channel.
func (b *Broker) PublishTraveler(_ context.Context, travelerID string, event Event) error {
	return b.Publish(TravelerChannel(travelerID), event)
}

var _ Broadcaster = (*Broker)(nil)
