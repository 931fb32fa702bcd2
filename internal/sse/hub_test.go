package sse

import (
	"testing"

	"github.com/edulens/edulens-backend/internal/logger"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewSSEHub(log)
}

func TestBroadcastReachesSubscribedClient(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, "req_1")

	hub.Broadcast(SSEMessage{
		Channel: "req_1",
		Event:   SSEEventJobProgress,
		Data:    map[string]any{"progress": 25},
	})

	select {
	case msg := <-client.Outbound:
		if msg.Event != SSEEventJobProgress {
			t.Fatalf("event: want %q, got %q", SSEEventJobProgress, msg.Event)
		}
	default:
		t.Fatal("expected a buffered message for the subscribed client")
	}
}

func TestBroadcastSkipsOtherChannels(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, "req_1")

	hub.Broadcast(SSEMessage{Channel: "req_2", Event: SSEEventJobCompleted})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message on foreign channel: %+v", msg)
	default:
	}
}

func TestBroadcastToEmptyOrUnknownChannelIsNoop(t *testing.T) {
	hub := newTestHub(t)
	hub.Broadcast(SSEMessage{Channel: "", Event: SSEEventJobFailed})
	hub.Broadcast(SSEMessage{Channel: "req_nobody", Event: SSEEventJobFailed})
}

func TestRemoveClientUnsubscribes(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, "req_1")
	hub.RemoveClient(client)

	hub.Broadcast(SSEMessage{Channel: "req_1", Event: SSEEventJobProgress})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message after removal: %+v", msg)
	default:
	}
	select {
	case <-client.done:
	default:
		t.Fatal("done channel should be closed after removal")
	}
}

func TestFullOutboundBufferDoesNotBlockBroadcast(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, "req_1")

	for i := 0; i < cap(client.Outbound)+4; i++ {
		hub.Broadcast(SSEMessage{Channel: "req_1", Event: SSEEventJobProgress, Data: i})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("buffered: want %d, got %d", cap(client.Outbound), got)
	}
}
