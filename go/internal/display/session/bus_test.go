package session

import (
	"testing"
	"time"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	defer b.Close()

	a, cancelA := b.Subscribe(4)
	defer cancelA()
	c, cancelC := b.Subscribe(4)
	defer cancelC()

	b.Publish(Notice{Kind: NoticeOverlay, Visible: true})

	for _, ch := range []<-chan Notice{a, c} {
		select {
		case n := <-ch:
			if n.Kind != NoticeOverlay || !n.Visible {
				t.Fatalf("got %+v", n)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the notice")
		}
	}
}

func TestBusFullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, cancel := b.Subscribe(0) // never drained, zero buffer
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.Publish(Notice{Kind: NoticeReload})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, cancel := b.Subscribe(1)
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}

	cancel() // second cancel is a no-op
	b.Publish(Notice{Kind: NoticeSound})
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe(1)

	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after bus close")
	}

	// Publishing and subscribing after close must be safe.
	b.Publish(Notice{Kind: NoticeFatal})
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("late subscriber should get a closed channel")
	}
}
