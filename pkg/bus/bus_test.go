package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx := context.Background()
	received := make(chan *Message, 1)

	sub, err := b.Subscribe(ctx, "aura.hitl.sess-1.pending_operation", func(msg *Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, "aura.hitl.sess-1.pending_operation", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Data) != `{"x":1}` {
			t.Errorf("unexpected payload: %q", msg.Data)
		}
		if msg.ID == "" {
			t.Error("message should carry an id")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestMemoryBus_Wildcards(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx := context.Background()
	var single, rest atomic.Int32

	s1, _ := b.Subscribe(ctx, "aura.hitl.sess-1.*", func(msg *Message) { single.Add(1) })
	defer s1.Unsubscribe()
	s2, _ := b.Subscribe(ctx, "aura.hitl.>", func(msg *Message) { rest.Add(1) })
	defer s2.Unsubscribe()

	b.Publish(ctx, SubjectHITL("sess-1", "pending_operation"), []byte("1"))
	b.Publish(ctx, SubjectHITL("sess-1", "status_update"), []byte("2"))
	b.Publish(ctx, SubjectHITL("sess-2", "status_update"), []byte("3"))

	time.Sleep(100 * time.Millisecond)

	if got := single.Load(); got != 2 {
		t.Errorf("session wildcard expected 2, got %d", got)
	}
	if got := rest.Load(); got != 3 {
		t.Errorf("tail wildcard expected 3, got %d", got)
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx := context.Background()
	var count atomic.Int32
	sub, _ := b.Subscribe(ctx, "aura.test", func(msg *Message) { count.Add(1) })

	b.Publish(ctx, "aura.test", []byte("1"))
	time.Sleep(50 * time.Millisecond)
	sub.Unsubscribe()
	b.Publish(ctx, "aura.test", []byte("2"))
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := NewMemoryBus()
	b.Close()

	if err := b.Publish(context.Background(), "aura.test", nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe(context.Background(), "aura.test", func(*Message) {}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := b.Close(); err != ErrClosed {
		t.Errorf("double close should report ErrClosed, got %v", err)
	}
}
