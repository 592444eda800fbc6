package realtime

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Fanout publishes every event to all of its broadcasters concurrently.
type Fanout struct {
	targets []Broadcaster
}

// NewFanout creates a fanout over the given broadcasters. Nil entries are ignored.
func NewFanout(targets ...Broadcaster) *Fanout {
	f := &Fanout{}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

// PublishJourney publishes on every target, joining their errors.
func (f *Fanout) PublishJourney(ctx context.Context, journeyID string, event Event) error {
	return f.each(func(b Broadcaster) error {
		return b.PublishJourney(ctx, journeyID, event)
	})
}

// PublishTraveler publishes on every target, joining their errors.
func (f *Fanout) PublishTraveler(ctx context.Context, travelerID string, event Event) error {
	return f.each(func(b Broadcaster) error {
		return b.PublishTraveler(ctx, travelerID, event)
	})
}

func (f *Fanout) each(fn func(Broadcaster) error) error {
	p := pool.New().WithErrors()
	for _, t := range f.targets {
		p.Go(func() error { return fn(t) })
	}
	return p.Wait()
}

var _ Broadcaster = (*Fanout)(nil)
