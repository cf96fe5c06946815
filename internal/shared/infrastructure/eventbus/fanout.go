package eventbus

import (
	"context"
	"errors"
)

// Fanout publishes every message to each publisher in order. The first
// failure stops the fan-out so the outbox retries the whole message; later
// publishers must therefore tolerate duplicates.
type Fanout struct {
	publishers []Publisher
}

// NewFanout combines publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) Publish(ctx context.Context, routingKey string, payload []byte) error {
	for _, p := range f.publishers {
		if err := p.Publish(ctx, routingKey, payload); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
