package queue

import (
	"context"
	"testing"
	"time"
)

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
	}{
		{"typed", "attendance.marked|{\"roll_no\":\"A1\"}", Message{Type: "attendance.marked", Body: []byte(`{"roll_no":"A1"}`)}},
		{"pipe in body", "t|a|b", Message{Type: "t", Body: []byte("a|b")}},
		{"untyped", "plain", Message{Body: []byte("plain")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deserialize(tt.in)
			if got.Type != tt.want.Type || string(got.Body) != string(tt.want.Body) {
				t.Errorf("deserialize(%q) = %q/%q, want %q/%q", tt.in, got.Type, got.Body, tt.want.Type, tt.want.Body)
			}
			if tt.want.Type != "" && serialize(got) != tt.in {
				t.Errorf("serialize(deserialize(%q)) = %q", tt.in, serialize(got))
			}
		})
	}
}

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, Message{Type: "a", Body: []byte("1")}); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, Message{Type: "b", Body: []byte("2")}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"a", "b"} {
		select {
		case got := <-msgs:
			if got.Type != want {
				t.Errorf("got type %q, want %q", got.Type, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("expected channel to close after cancel")
		}
	case <-time.After(time.Second):
		t.Error("consumer did not stop after cancel")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Publish(ctx, Message{Type: "fill"}); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, Message{Type: "overflow"}); err == nil {
		t.Error("Publish on a full queue should fail once the context expires")
	}
}
