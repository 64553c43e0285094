package memory

import (
	"context"
	"errors"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "game-updates", map[string]string{"game_key": "20250701LTOB0"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "game-updates", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Data) != `{"game_key":"20250701LTOB0"}` {
		t.Fatalf("unexpected JSON body %s", msgs[0].Data)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("broker down")
	pub.FailWith(boom)
	if _, err := pub.Publish(context.Background(), "t", 1); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	pub.FailWith(nil)
	if _, err := pub.Publish(context.Background(), "t", 1); err != nil {
		t.Fatalf("unexpected error after clearing failure: %v", err)
	}
	if n := len(pub.Messages()); n != 1 {
		t.Fatalf("expected 1 recorded message, got %d", n)
	}
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	if _, err := New().Publish(context.Background(), "t", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
