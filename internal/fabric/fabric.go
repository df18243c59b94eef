// Package fabric implements the topic-based publish/subscribe layer that
// distributes state-change events to live observers.
//
// Observers register with the hub, subscribe to named topics, and read
// events from a bounded per-observer queue. Delivery is fire-and-forget:
// publishing never blocks on a slow observer. When an observer's queue is
// full the oldest queued event is dropped to make room. There is no
// buffering or replay for observers that join late.
//
// Topics carry no enumeration enforcement: subscribing to an unknown topic
// is accepted and simply receives no events.
package fabric

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Topics published by the lifecycle engine.
const (
	TopicAgents   = "agents"   // agent status changes
	TopicTasks    = "tasks"    // task updates
	TopicMessages = "messages" // new messages
	TopicSystem   = "system"   // logs and alerts
)

// Event names carried on the topics above.
const (
	EventAgentStatus = "agent.status"
	EventTaskUpdated = "task.updated"
	EventMessageNew  = "message.new"
	EventSystemLog   = "system.log"
	EventSystemAlert = "system.alert"
	EventCommand     = "command"
)

// AgentTopic returns the reserved point-to-point topic for one agent.
func AgentTopic(agentID string) string { return "agent:" + agentID }

// Event is one published state change. Payload is JSON-serializable and is
// a copy taken at publish time; the fabric holds no ownership over entities.
type Event struct {
	Topic     string    `json:"topic"`
	Name      string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultQueueSize bounds each observer's outbound queue.
const DefaultQueueSize = 64

// ── Subscriber ──────────────────────────────────────────────

// Subscriber is one registered observer connection. Events arrive on
// Events() in publish order per topic; when the queue overflows the oldest
// event is dropped.
type Subscriber struct {
	id string

	mu      sync.Mutex
	queue   chan Event
	closed  bool
	dropped uint64
}

// ID returns the observer id the subscriber was registered with.
func (s *Subscriber) ID() string { return s.id }

// Events is the subscriber's receive channel. It is closed when the
// subscriber disconnects.
func (s *Subscriber) Events() <-chan Event { return s.queue }

// Dropped returns how many events were discarded due to queue overflow.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// push enqueues ev, evicting the oldest queued event when full.
func (s *Subscriber) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.queue <- ev:
			return
		default:
		}
		select {
		case <-s.queue:
			s.dropped++
			log.Debug().Str("subscriber", s.id).Uint64("dropped", s.dropped).Msg("observer queue full, dropped oldest event")
		default:
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

// ── Hub ─────────────────────────────────────────────────────

// Hub maps topic names to the set of currently-subscribed observers.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscriber]struct{}
	members   map[*Subscriber]map[string]struct{}
	queueSize int
}

// NewHub creates a hub whose observers buffer up to queueSize events each.
// queueSize <= 0 selects DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		topics:    make(map[string]map[*Subscriber]struct{}),
		members:   make(map[*Subscriber]map[string]struct{}),
		queueSize: queueSize,
	}
}

// Register creates a new observer connection. The subscriber receives no
// events until it subscribes to at least one topic.
func (h *Hub) Register(id string) *Subscriber {
	sub := &Subscriber{
		id:    id,
		queue: make(chan Event, h.queueSize),
	}
	h.mu.Lock()
	h.members[sub] = make(map[string]struct{})
	h.mu.Unlock()
	log.Debug().Str("subscriber", id).Msg("observer registered")
	return sub
}

// Subscribe adds sub to each named topic. Idempotent; already-held
// memberships are unchanged.
func (h *Hub) Subscribe(sub *Subscriber, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	held, ok := h.members[sub]
	if !ok {
		return // disconnected
	}
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*Subscriber]struct{})
		}
		h.topics[topic][sub] = struct{}{}
		held[topic] = struct{}{}
	}
	log.Debug().Str("subscriber", sub.id).Strs("topics", topics).Msg("observer subscribed")
}

// Unsubscribe removes sub from each named topic. Removing a membership the
// observer never held is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	held, ok := h.members[sub]
	if !ok {
		return
	}
	for _, topic := range topics {
		if set := h.topics[topic]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.topics, topic)
			}
		}
		delete(held, topic)
	}
}

// Publish delivers the event to every observer currently subscribed to
// topic. Fire-and-forget: no acknowledgment, no retry, never blocks.
func (h *Hub) Publish(topic, name string, payload any) {
	ev := Event{
		Topic:     topic,
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.push(ev)
	}
}

// RouteCommand publishes a point-to-point command on the reserved
// agent:<id> topic only.
func (h *Hub) RouteCommand(agentID string, payload any) {
	h.Publish(AgentTopic(agentID), EventCommand, payload)
}

// Disconnect removes sub from every topic and closes its queue. Safe to
// call more than once.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	held, ok := h.members[sub]
	if ok {
		for topic := range held {
			if set := h.topics[topic]; set != nil {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.topics, topic)
				}
			}
		}
		delete(h.members, sub)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
		log.Debug().Str("subscriber", sub.id).Msg("observer disconnected")
	}
}

// SubscriberCount returns the current membership size of a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
