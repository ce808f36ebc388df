package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if !hub.clients[client] {
		t.Fatal("client not registered")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.clients[client] {
		t.Fatal("client still registered after unregister")
	}

	// Send channel should be closed
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	default:
		t.Fatal("send channel not closed")
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"sale_id":"test-123"}`)
	event := Event{
		Type:    "sale.created",
		Payload: testPayload,
	}
	hub.Broadcast(event)

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "sale.created" {
			t.Errorf("expected type 'sale.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}

func TestBroadcastToMultipleClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub)
	client2 := mockClient(hub)
	client3 := mockClient(hub)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"status":"COMPLETED"}`)
	event := Event{
		Type:    "sale.updated",
		Payload: testPayload,
	}
	hub.Broadcast(event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "sale.updated" {
				t.Errorf("client%d: expected type 'sale.updated', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestUnregisteredClientReceivesNothing(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	stayer := mockClient(hub)
	leaver := mockClient(hub)

	hub.register <- stayer
	hub.register <- leaver
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- leaver
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    "payment.added",
		Payload: json.RawMessage(`{"amount":"250.00"}`),
	}
	hub.Broadcast(event)

	select {
	case <-stayer.send:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Fatal("remaining client did not receive message")
	}

	select {
	case msg, ok := <-leaver.send:
		if ok && len(msg) > 0 {
			t.Fatal("unregistered client should not receive message")
		}
	default:
	}
}

func TestEventSerialization(t *testing.T) {
	testCases := []struct {
		name  string
		event Event
	}{
		{
			name: "sale created event",
			event: Event{
				Type:    "sale.created",
				Payload: json.RawMessage(`{"id":"abc","total_amount":"1500.00"}`),
			},
		},
		{
			name: "sale updated event",
			event: Event{
				Type:    "sale.updated",
				Payload: json.RawMessage(`{"id":"def","status":"COMPLETED"}`),
			},
		},
		{
			name: "sale deleted event",
			event: Event{
				Type:    "sale.deleted",
				Payload: json.RawMessage(`{"id":"ghi"}`),
			},
		},
		{
			name: "payment added event",
			event: Event{
				Type:    "payment.added",
				Payload: json.RawMessage(`{"sale_id":"jkl","amount":"500.00"}`),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.event)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var decoded Event
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}

			if decoded.Type != tc.event.Type {
				t.Errorf("Type mismatch: got %s, want %s", decoded.Type, tc.event.Type)
			}
			if string(decoded.Payload) != string(tc.event.Payload) {
				t.Errorf("Payload mismatch: got %s, want %s", decoded.Payload, tc.event.Payload)
			}
		})
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Client with no buffer fills immediately
	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    "sale.created",
		Payload: json.RawMessage(`{"id":"x"}`),
	}
	hub.Broadcast(event)
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.clients[slow] {
		t.Fatal("slow client should have been dropped")
	}
}
