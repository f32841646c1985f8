package conversation

import "context"

// Sink consumes messages delivered by a Follower.
//
// Deliver is called synchronously from the follow loop, one message at a time,
// in ledger append order. It is the loop's backpressure point: nothing is
// buffered between the subscription and the Sink, so a slow Deliver delays
// every later message. Returning an error stops the follow.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function, closures with captured state included, to a Sink.
type SinkFunc func(ctx context.Context, msg Message) error

// Deliver calls f(ctx, msg).
func (f SinkFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type multiSink []Sink

// MultiSink fans each message out to every sink in order, stopping at the first
// error.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Deliver(ctx context.Context, msg Message) error {
	for _, s := range m {
		if err := s.Deliver(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
