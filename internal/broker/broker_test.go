package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

func change(sec int64) Notification {
	return Notification{
		Type:      Change,
		Kind:      device.Audio,
		Timestamp: time.Unix(sec, 0),
	}
}

func TestPublishFansOut(t *testing.T) {
	b := New(4, zerolog.Nop())

	s1, err := b.Subscribe()
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	s2, err := b.Subscribe()
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	b.Publish(change(1))

	for _, s := range []*Subscription{s1, s2} {
		select {
		case n := <-s.C():
			if n.Timestamp.Unix() != 1 {
				t.Errorf("unexpected notification %+v", n)
			}
		default:
			t.Fatal("expected a queued notification")
		}
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := New(2, zerolog.Nop())
	sub, _ := b.Subscribe()

	for i := int64(1); i <= 5; i++ {
		b.Publish(change(i))
	}

	if got := sub.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped, got %d", got)
	}

	first := <-sub.C()
	second := <-sub.C()
	if first.Timestamp.Unix() != 4 || second.Timestamp.Unix() != 5 {
		t.Fatalf("expected newest two notifications (4,5), got (%d,%d)",
			first.Timestamp.Unix(), second.Timestamp.Unix())
	}
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	b := New(1, zerolog.Nop())
	slow, _ := b.Subscribe()
	fast, _ := b.Subscribe()

	for i := int64(1); i <= 3; i++ {
		b.Publish(change(i))
		<-fast.C()
	}

	if fast.Dropped() != 0 {
		t.Errorf("expected fast subscriber to drop nothing, got %d", fast.Dropped())
	}
	if slow.Dropped() != 2 {
		t.Errorf("expected slow subscriber to drop 2, got %d", slow.Dropped())
	}
}

func TestUnsubscribeStopsDeliveryAndReleases(t *testing.T) {
	b := New(4, zerolog.Nop())
	keep, _ := b.Subscribe()
	gone, _ := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	gone.Cancel()
	gone.Cancel() // idempotent

	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after cancel, got %d", b.Count())
	}

	b.Publish(change(1))

	if _, ok := <-gone.C(); ok {
		t.Fatal("expected cancelled subscription channel to be closed and empty")
	}
	if n := <-keep.C(); n.Timestamp.Unix() != 1 {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestCloseFlushesAndRejectsNewSubscribers(t *testing.T) {
	b := New(4, zerolog.Nop())
	sub, _ := b.Subscribe()

	b.Publish(change(1))
	b.Publish(change(2))
	b.Close()
	b.Close()
	b.Publish(change(3))

	var got []int64
	for n := range sub.C() {
		got = append(got, n.Timestamp.Unix())
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected buffered notifications [1 2] after close, got %v", got)
	}

	if _, err := b.Subscribe(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if b.Count() != 0 {
		t.Errorf("expected no subscribers after close, got %d", b.Count())
	}

	// Cancelling after close must not panic on a double close
	sub.Cancel()
}
