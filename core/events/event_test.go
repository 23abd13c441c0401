package events

import (
	"context"
	"testing"

	"rentalchain/core/types"
)

func TestBufferRollbackAndFlush(t *testing.T) {
	buf := &Buffer{}
	rec := &Recorder{}

	buf.Emit(Wrap(&types.Event{Type: "a"}))
	mark := buf.Mark()
	buf.Emit(Wrap(&types.Event{Type: "b"}))
	buf.Rollback(mark)
	buf.Emit(Wrap(&types.Event{Type: "c"}))
	buf.Flush(rec)

	got := rec.Events()
	if len(got) != 2 || got[0].Type != "a" || got[1].Type != "c" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if buf.Mark() != 0 {
		t.Fatalf("expected empty buffer after flush")
	}
	if len(rec.OfType("c")) != 1 {
		t.Fatalf("expected one event of type c")
	}
}

func TestRecorderIgnoresNil(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(nil)
	rec.Emit(Wrap(nil))
	if len(rec.Events()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestFeedBacklogAndLiveDelivery(t *testing.T) {
	feed := NewFeed(2)
	feed.Publish(1, []Event{Wrap(&types.Event{Type: "a"}), Wrap(&types.Event{Type: "b"})})
	feed.Publish(2, []Event{Wrap(&types.Event{Type: "c"})})

	updates, cancel, backlog := feed.Subscribe(context.Background(), "")
	if len(backlog) != 2 || backlog[0].Event.Type != "b" || backlog[1].Event.Type != "c" {
		t.Fatalf("unexpected backlog: %+v", backlog)
	}
	if backlog[1].Height != 2 || backlog[1].Cursor != "3" {
		t.Fatalf("unexpected entry: %+v", backlog[1])
	}

	_, stop, resumed := feed.Subscribe(context.Background(), "2")
	if len(resumed) != 1 || resumed[0].Sequence != 3 {
		t.Fatalf("unexpected resumed backlog: %+v", resumed)
	}
	stop()

	feed.Publish(3, []Event{Wrap(&types.Event{Type: "d"}), Wrap(nil)})
	got := <-updates
	if got.Event.Type != "d" || got.Sequence != 4 {
		t.Fatalf("unexpected live entry: %+v", got)
	}
	if feed.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", feed.Subscribers())
	}
	cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}
