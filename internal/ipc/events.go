package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hudman/hudman/internal/util"
)

// Event kinds emitted by the bridge.
const (
	EventTerritory        = "territory"
	EventConditionMoved   = "conditionset.moved"
	EventConditionRemoved = "conditionset.removed"
	EventProviderLoaded   = "provider.loaded"
	EventProviderUnloaded = "provider.unloaded"
)

// Event is one line of the bridge event stream.
type Event struct {
	Kind    string
	Payload string
}

// Subscribe connects to the bridge event socket and streams events until
// context cancellation or until the bridge closes the stream.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	socket, err := EventSocketPath()
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	events := make(chan Event)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			ev, ok := ParseEvent(scanner.Text())
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil && logger != nil {
			logger.Warnf("event stream error: %v", err)
		}
	}()
	return events, nil
}

// ParseEvent splits a "kind>>payload" line. Blank lines are rejected.
func ParseEvent(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	parts := strings.SplitN(line, ">>", 2)
	ev := Event{Kind: parts[0]}
	if len(parts) == 2 {
		ev.Payload = parts[1]
	}
	return ev, true
}

// ParseMoved decodes a conditionset.moved payload "from,to".
func ParseMoved(payload string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(payload), ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid moved payload %q", payload)
	}
	from, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid source index %q: %w", parts[0], err)
	}
	to, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid target index %q: %w", parts[1], err)
	}
	return from, to, nil
}

// ParseRemoved decodes a conditionset.removed payload.
func ParseRemoved(payload string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("invalid removed index %q: %w", payload, err)
	}
	return idx, nil
}
