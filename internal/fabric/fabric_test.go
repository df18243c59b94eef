package fabric_test

import (
	"fmt"
	"testing"

	"github.com/fleetglass/fleetglass/internal/fabric"
)

func drain(sub *fabric.Subscriber) []fabric.Event {
	var events []fabric.Event
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestPublishReachesSubscribedTopicsOnly(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, fabric.TopicAgents)

	hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, "a")
	hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, "t")

	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("received %d events, want 1", len(events))
	}
	if events[0].Topic != fabric.TopicAgents || events[0].Name != fabric.EventAgentStatus {
		t.Errorf("event = %s/%s, want %s/%s", events[0].Topic, events[0].Name, fabric.TopicAgents, fabric.EventAgentStatus)
	}
}

func TestPublishOrderPreservedPerTopic(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, fabric.TopicTasks)

	for i := 0; i < 10; i++ {
		hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, i)
	}

	events := drain(sub)
	if len(events) != 10 {
		t.Fatalf("received %d events, want 10", len(events))
	}
	for i, ev := range events {
		if ev.Payload != i {
			t.Errorf("events[%d].Payload = %v, want %d", i, ev.Payload, i)
		}
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	hub := fabric.NewHub(4)
	sub := hub.Register("slow")
	hub.Subscribe(sub, fabric.TopicSystem)

	for i := 0; i < 10; i++ {
		hub.Publish(fabric.TopicSystem, fabric.EventSystemLog, i)
	}

	events := drain(sub)
	if len(events) != 4 {
		t.Fatalf("received %d events, want 4", len(events))
	}
	// The newest four survive.
	for i, ev := range events {
		want := 6 + i
		if ev.Payload != want {
			t.Errorf("events[%d].Payload = %v, want %d", i, ev.Payload, want)
		}
	}
	if sub.Dropped() != 6 {
		t.Errorf("Dropped() = %d, want 6", sub.Dropped())
	}
}

func TestSubscribeIdempotentNoDoubleDelivery(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, fabric.TopicAgents)
	hub.Subscribe(sub, fabric.TopicAgents)

	hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, "x")

	if got := len(drain(sub)); got != 1 {
		t.Errorf("received %d events after double subscribe, want 1", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, fabric.TopicAgents, fabric.TopicTasks)
	hub.Unsubscribe(sub, fabric.TopicAgents)

	hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, "a")
	hub.Publish(fabric.TopicTasks, fabric.EventTaskUpdated, "t")

	events := drain(sub)
	if len(events) != 1 || events[0].Topic != fabric.TopicTasks {
		t.Errorf("events after unsubscribe = %v, want only tasks", events)
	}

	// Unsubscribing a topic never held is a no-op.
	hub.Unsubscribe(sub, fabric.TopicMessages)
}

func TestUnknownTopicSubscriptionReceivesNothing(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, "no-such-topic")

	hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, "a")

	if got := len(drain(sub)); got != 0 {
		t.Errorf("received %d events on unknown topic, want 0", got)
	}
}

func TestRouteCommandTargetsOneAgentTopic(t *testing.T) {
	hub := fabric.NewHub(0)
	one := hub.Register("one")
	other := hub.Register("other")
	hub.Subscribe(one, fabric.AgentTopic("a1"))
	hub.Subscribe(other, fabric.AgentTopic("a2"))

	hub.RouteCommand("a1", map[string]string{"command": "restart"})

	if got := len(drain(one)); got != 1 {
		t.Errorf("target agent topic received %d events, want 1", got)
	}
	if got := len(drain(other)); got != 0 {
		t.Errorf("other agent topic received %d events, want 0", got)
	}
}

func TestDisconnectClosesQueueAndRemovesMemberships(t *testing.T) {
	hub := fabric.NewHub(0)
	sub := hub.Register("obs-1")
	hub.Subscribe(sub, fabric.TopicAgents)

	if got := hub.SubscriberCount(fabric.TopicAgents); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	hub.Disconnect(sub)

	if got := hub.SubscriberCount(fabric.TopicAgents); got != 0 {
		t.Errorf("SubscriberCount() after disconnect = %d, want 0", got)
	}
	if _, open := <-sub.Events(); open {
		t.Errorf("Events() channel still open after disconnect")
	}

	// Publishing after disconnect must not panic.
	hub.Publish(fabric.TopicAgents, fabric.EventAgentStatus, "x")
	// Double disconnect is safe.
	hub.Disconnect(sub)
}

func TestPublishFanOut(t *testing.T) {
	hub := fabric.NewHub(0)
	var subs []*fabric.Subscriber
	for i := 0; i < 3; i++ {
		sub := hub.Register(fmt.Sprintf("obs-%d", i))
		hub.Subscribe(sub, fabric.TopicMessages)
		subs = append(subs, sub)
	}

	hub.Publish(fabric.TopicMessages, fabric.EventMessageNew, "m")

	for i, sub := range subs {
		if got := len(drain(sub)); got != 1 {
			t.Errorf("subscriber %d received %d events, want 1", i, got)
		}
	}
}
