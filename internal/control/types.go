package control

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// Action names supported by the control protocol.
	ActionStatus  = "status"
	ActionInspect = "inspect"
	ActionCommand = "command"
	ActionLock    = "lock"
	ActionUnlock  = "unlock"
	ActionReload  = "reload"
	ActionResolve = "resolve"
	ActionImport  = "import"
	ActionMetrics = "metrics"

	// Configuration edits. Each is validated and persisted by the daemon.
	ActionLayoutRename     = "layout.rename"
	ActionLayoutParent     = "layout.parent"
	ActionLayoutDelete     = "layout.delete"
	ActionLayoutElement    = "layout.element"
	ActionSwapAdd          = "swap.add"
	ActionConditionAdd     = "condition.add"
	ActionConditionUpdate  = "condition.update"
	ActionConditionOperand = "condition.operand"
	ActionConditionRemove  = "condition.remove"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// CommandResult is the reply to a chat command.
type CommandResult struct {
	Message string `json:"message"`
}

// ImportResult names the layout a slot was imported into.
type ImportResult struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DefaultSocketPath returns the expected location of the hudman control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("HUDMAN_CONTROL_SOCKET"); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "hudman", SocketFileName), nil
}
