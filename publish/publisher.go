// Package publish forwards readings to their consumers, one channel per
// physical quantity.
package publish

import (
	"context"

	"go.uber.org/multierr"

	"github.com/luma/imubridge/protocol"
)

type Publisher interface {
	Publish(ctx context.Context, reading protocol.Reading) error
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(ctx context.Context, reading protocol.Reading) error

func (f PublisherFunc) Publish(ctx context.Context, reading protocol.Reading) error {
	return f(ctx, reading)
}

type multiPublisher struct {
	publishers []Publisher
}

// Multi publishes every reading to all publishers. A failing publisher does
// not prevent the others from receiving the reading; all errors are returned
// combined.
func Multi(publishers ...Publisher) Publisher {
	return &multiPublisher{publishers: publishers}
}

func (m *multiPublisher) Publish(ctx context.Context, reading protocol.Reading) (err error) {
	for _, p := range m.publishers {
		err = multierr.Append(err, p.Publish(ctx, reading))
	}

	return err
}

// Discard drops every reading.
var Discard Publisher = PublisherFunc(func(context.Context, protocol.Reading) error {
	return nil
})
