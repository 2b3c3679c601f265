package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEHub_Subscribe_Publish_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	hub.PublishEvent(EventHandoffCreated, map[string]any{"id": "h-1", "project": "metapm"})
	msg := <-ch
	var ev map[string]any
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev["type"] != EventHandoffCreated || ev["id"] != "h-1" {
		t.Errorf("PublishEvent: got %s", msg)
	}
	hub.Unsubscribe(ch)
	// After unsubscribe, channel is closed
	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestSSEHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	// Never read from ch; fill the buffer past capacity. Publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.PublishEvent(EventHandoffUpdated, map[string]any{"seq": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	hub.Unsubscribe(ch)
}

func TestSSEHub_Handler(t *testing.T) {
	hub := NewSSEHub()
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()
	// Wait for handler to send "connected" then stop (avoid reading rec.Body while handler writes - race).
	time.Sleep(50 * time.Millisecond)
	hub.PublishEvent(EventSyncFinished, map[string]any{"imported": 2})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	// Read response body only after handler has finished writing.
	sc := bufio.NewScanner(rec.Body)
	var connected, syncEvent bool
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "connected") {
			connected = true
		}
		if strings.Contains(line, EventSyncFinished) {
			syncEvent = true
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !connected {
		t.Error("expected response to contain \"connected\"")
	}
	if !syncEvent {
		t.Error("expected response to contain a sync_finished event")
	}
}
