package ipc

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	bridgeSocketEnv = "HUDMAN_BRIDGE_SOCKET"
	eventSocketEnv  = "HUDMAN_BRIDGE_EVENTS_SOCKET"
)

// SocketPath returns the bridge request socket. HUDMAN_BRIDGE_SOCKET
// overrides the default under $XDG_RUNTIME_DIR/hudman.
func SocketPath() (string, error) {
	if path := os.Getenv(bridgeSocketEnv); path != "" {
		return path, nil
	}
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bridge.sock"), nil
}

// EventSocketPath returns the bridge event stream socket.
func EventSocketPath() (string, error) {
	if path := os.Getenv(eventSocketEnv); path != "" {
		return path, nil
	}
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bridge-events.sock"), nil
}

func runtimeDir() (string, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR not set")
	}
	return filepath.Join(dir, "hudman"), nil
}
