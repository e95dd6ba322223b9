package broker_test

import (
	"testing"
	"time"

	"github.com/onestore/picokv/broker"
)

func TestSubscribePublish(t *testing.T) {
	t.Parallel()

	b := broker.New(4)
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(broker.Event{Cmd: "GET", Args: []string{"foo"}})

	select {
	case ev := <-ch:
		if ev.Cmd != "GET" {
			t.Errorf("Cmd = %q, want GET", ev.Cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	t.Parallel()

	b := broker.New(1)
	_, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(broker.Event{Cmd: "SET"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	b := broker.New(4)
	ch, unsub := b.Subscribe()
	unsub()

	b.Publish(broker.Event{Cmd: "PING"})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}

	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", n)
	}
}
