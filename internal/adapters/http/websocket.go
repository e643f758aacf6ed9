package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/gpspath/internal/adapters/nats"
	"github.com/samirrijal/gpspath/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is a client command, e.g.
// {"action":"subscribe","channel":"simulations","tool":"hackrf"}.
type wsMessage struct {
	Action  string `json:"action"`  // subscribe or unsubscribe
	Channel string `json:"channel"` // all, trajectories or simulations
	Tool    string `json:"tool"`    // narrows simulations to one tool
}

// wsReply acknowledges a command or reports an error.
type wsReply struct {
	Status  string `json:"status,omitempty"`
	Subject string `json:"subject,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsEvent wraps a relayed NATS message.
type wsEvent struct {
	Subject string          `json:"subject"`
	Event   json.RawMessage `json:"event"`
}

// wsSubject maps a client channel to a NATS subject.
func wsSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "all":
		return natsadapter.SubjectAll, true
	case "trajectories":
		return natsadapter.SubjectTrajectoryComputed, true
	case "simulations":
		if m.Tool != "" {
			return natsadapter.SimulationSubject(m.Tool), true
		}
		return natsadapter.SimulationSubject(">"), true
	}
	return "", false
}

// wsSession is one client connection and its NATS subscriptions.
type wsSession struct {
	conn *websocket.Conn
	nc   *nats.Conn
	mu   sync.Mutex // serializes writes
	subs map[string]*nats.Subscription
}

func (s *wsSession) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *wsSession) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.write(websocket.TextMessage, data)
}

func (s *wsSession) relay(msg *nats.Msg) {
	s.send(wsEvent{Subject: msg.Subject, Event: msg.Data})
}

func (s *wsSession) subscribe(subject string) wsReply {
	if _, ok := s.subs[subject]; ok {
		return wsReply{Status: "already subscribed", Subject: subject}
	}
	sub, err := s.nc.Subscribe(subject, s.relay)
	if err != nil {
		return wsReply{Error: "subscribe failed: " + err.Error()}
	}
	s.subs[subject] = sub
	return wsReply{Status: "subscribed", Subject: subject}
}

func (s *wsSession) unsubscribe(subject string) wsReply {
	sub, ok := s.subs[subject]
	if !ok {
		return wsReply{Error: "not subscribed to " + subject}
	}
	_ = sub.Unsubscribe()
	delete(s.subs, subject)
	return wsReply{Status: "unsubscribed", Subject: subject}
}

func (s *wsSession) handle(raw []byte) wsReply {
	var m wsMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return wsReply{Error: "invalid JSON"}
	}
	subject, ok := wsSubject(m)
	if !ok {
		return wsReply{Error: "unknown channel: " + m.Channel}
	}
	switch m.Action {
	case "subscribe":
		return s.subscribe(subject)
	case "unsubscribe":
		return s.unsubscribe(subject)
	}
	return wsReply{Error: "unknown action: " + m.Action}
}

func (s *wsSession) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *wsSession) close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

// WebSocketHandler relays trajectory and simulation events from NATS to
// connected clients. Every connection starts subscribed to all events.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		s := &wsSession{conn: c, nc: nc, subs: make(map[string]*nats.Subscription)}
		if nc == nil {
			s.send(wsReply{Error: "event stream not configured"})
			return
		}

		remote := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remote)
		defer slog.Info("ws client disconnected", "remote", remote)

		all, _ := wsSubject(wsMessage{})
		if reply := s.subscribe(all); reply.Error != "" {
			slog.Warn("ws default subscribe failed", "error", reply.Error)
			return
		}
		defer s.close()

		done := make(chan struct{})
		defer close(done)
		go s.keepAlive(done)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			s.send(s.handle(raw))
		}
	}
}
