package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

const (
	SubjectAll                = "gpspath.>"
	SubjectTrajectoryComputed = "gpspath.trajectory.computed"
	subjectSimulationPrefix   = "gpspath.simulation."

	durableSimulationGenerator = "simulation-generator"
)

// SimulationSubject returns the subject a run of tool is published on.
func SimulationSubject(tool string) string {
	return subjectSimulationPrefix + tool
}

// streams lists the JetStream streams gpspath publishes into. Trajectory
// events only drive auto-generation so they expire quickly; run records
// are kept for a week of auditing.
var streams = []nats.StreamConfig{
	{
		Name:      "GPSPATH_TRAJECTORIES",
		Subjects:  []string{"gpspath.trajectory.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "GPSPATH_SIMULATIONS",
		Subjects:  []string{subjectSimulationPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

func ensureStreams(js nats.JetStreamContext) error {
	for i := range streams {
		cfg := streams[i]
		if _, err := js.AddStream(&cfg); err == nil {
			continue
		}
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// connectJetStream dials NATS, enables JetStream and makes sure the
// streams exist.
func connectJetStream(url, name string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := dial(url, name)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, js, nil
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, js, err := connectJetStream(url, "gpspath-publisher")
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, js: js}, nil
}

// publish sends v as JSON. id doubles as the JetStream dedupe key.
func (p *Publisher) publish(ctx context.Context, subject, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(id))
	return err
}

func (p *Publisher) PublishTrajectoryComputed(ctx context.Context, s *domain.TrajectorySummary) error {
	return p.publish(ctx, SubjectTrajectoryComputed, s.ID, s)
}

func (p *Publisher) PublishSimulationRun(ctx context.Context, run *domain.SimulationRun) error {
	return p.publish(ctx, SimulationSubject(run.Tool), run.ID, run)
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain core NATS connection, used by the WebSocket relay.
func RawConn(url string) (*nats.Conn, error) {
	return dial(url, "gpspath-relay")
}

func dial(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
