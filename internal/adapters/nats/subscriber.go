package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// Subscriber consumes gpspath events from JetStream with durable consumers.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, js, err := connectJetStream(url, "gpspath-subscriber")
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// maxDeliver bounds redelivery of a message whose handler keeps failing.
const maxDeliver = 3

// handleMsg decodes msg into T and acks, naks or terminates it depending on
// the outcome. Undecodable payloads are terminated rather than redelivered.
func handleMsg[T any](ctx context.Context, msg *nats.Msg, handler func(context.Context, *T) error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		slog.Warn("dropping malformed event", "subject", msg.Subject, "error", err)
		_ = msg.Term()
		return
	}
	if err := handler(ctx, &v); err != nil {
		slog.Warn("event handler failed", "subject", msg.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// SubscribeTrajectoryComputed delivers each newly computed trajectory to
// handler. Only events published after the consumer is first created are
// delivered.
func (s *Subscriber) SubscribeTrajectoryComputed(ctx context.Context, handler func(ctx context.Context, summary *domain.TrajectorySummary) error) error {
	sub, err := s.js.Subscribe(SubjectTrajectoryComputed,
		func(msg *nats.Msg) { handleMsg(ctx, msg, handler) },
		nats.Durable(durableSimulationGenerator),
		nats.ManualAck(),
		nats.MaxDeliver(maxDeliver),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
