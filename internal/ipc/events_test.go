package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestSubscribeStreamsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	setEnv(t, eventSocketEnv, path)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("territory>>132\n\nconditionset.moved>>1,3\nprovider.unloaded\n"))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := Subscribe(ctx, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	want := []Event{
		{Kind: EventTerritory, Payload: "132"},
		{Kind: EventConditionMoved, Payload: "1,3"},
		{Kind: EventProviderUnloaded},
	}
	for i, w := range want {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream closed after %d events", i)
			}
			if ev != w {
				t.Fatalf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestParsePayloads(t *testing.T) {
	from, to, err := ParseMoved(" 2, 0 ")
	if err != nil || from != 2 || to != 0 {
		t.Fatalf("ParseMoved = %d, %d, %v", from, to, err)
	}
	if _, _, err := ParseMoved("2"); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	idx, err := ParseRemoved("4")
	if err != nil || idx != 4 {
		t.Fatalf("ParseRemoved = %d, %v", idx, err)
	}
	if _, err := ParseRemoved("x"); err == nil {
		t.Fatalf("expected error")
	}
}
