package service_test

import (
	"testing"

	"github.com/photosnap/forge/internal/model"
	"github.com/photosnap/forge/internal/service"
)

func event(status string) model.GenerationEvent {
	return model.GenerationEvent{GenerationID: "g1", Status: status}
}

func TestBrokerSingleSubscriber(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("g1")
	defer unsub()

	statuses := []string{"pending", "running", "complete"}
	for _, s := range statuses {
		b.Publish("g1", event(s))
	}
	b.Close("g1")

	var got []string
	for e := range ch {
		got = append(got, e.Status)
	}

	if len(got) != len(statuses) {
		t.Fatalf("got %d events, want %d", len(got), len(statuses))
	}
	for i, s := range got {
		if s != statuses[i] {
			t.Errorf("event[%d].Status = %q, want %q", i, s, statuses[i])
		}
	}
}

func TestBrokerMultipleSubscribers(t *testing.T) {
	b := service.NewBroker()
	ch1, unsub1 := b.Subscribe("g1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("g1")
	defer unsub2()

	b.Publish("g1", event("running"))
	b.Close("g1")

	var got1, got2 []model.GenerationEvent
	for e := range ch1 {
		got1 = append(got1, e)
	}
	for e := range ch2 {
		got2 = append(got2, e)
	}

	if len(got1) != 1 || got1[0].Status != "running" {
		t.Errorf("subscriber 1 got %v, want one running event", got1)
	}
	if len(got2) != 1 || got2[0].Status != "running" {
		t.Errorf("subscriber 2 got %v, want one running event", got2)
	}
}

func TestBrokerCloseClosesChannels(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("g1")
	defer unsub()

	b.Close("g1")

	// Channel should be closed; reading should return zero value immediately.
	_, ok := <-ch
	if ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := service.NewBroker()
	b.Publish("g1", event("running"))
	b.Close("g1")

	// Subscribe after Close — should get a closed channel.
	ch, unsub := b.Subscribe("g1")
	defer unsub()

	_, ok := <-ch
	if ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("g1")
	unsub()

	b.Publish("g1", event("running"))
	b.Close("g1")

	select {
	case e, ok := <-ch:
		if ok {
			t.Errorf("got unexpected event %v after unsubscribe", e)
		}
	default:
		// No data — expected.
	}
}

func TestBrokerPublishToUnknownGenerationIsNoop(t *testing.T) {
	b := service.NewBroker()
	// Should not panic.
	b.Publish("nonexistent", event("running"))
	b.Close("nonexistent")
}

func TestBrokerLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := service.NewBroker()
	ch1, unsub1 := b.Subscribe("g1")
	defer unsub1()

	b.Publish("g1", event("pending"))

	// Late subscriber joins after the first event.
	ch2, unsub2 := b.Subscribe("g1")
	defer unsub2()

	b.Publish("g1", event("running"))
	b.Close("g1")

	var got1, got2 []model.GenerationEvent
	for e := range ch1 {
		got1 = append(got1, e)
	}
	for e := range ch2 {
		got2 = append(got2, e)
	}

	if len(got1) != 2 {
		t.Errorf("subscriber 1 got %d events, want 2", len(got1))
	}
	if len(got2) != 1 || got2[0].Status != "running" {
		t.Errorf("late subscriber got %v, want only the running event", got2)
	}
}
