package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/hudman/hudman/internal/command"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/metrics"
	"github.com/hudman/hudman/internal/util"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	// SocketPath overrides DefaultSocketPath.
	SocketPath string
	Engine     *engine.Engine
	Metrics    *metrics.Collector
	Logger     *util.Logger
	Reload     func(reason string) error
}

// Server hosts the hudman control socket and serves requests.
type Server struct {
	engine     *engine.Engine
	metrics    *metrics.Collector
	logger     *util.Logger
	reload     func(reason string) error
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new control server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("control server requires an engine")
	}
	path := opts.SocketPath
	if path == "" {
		var err error
		if path, err = DefaultSocketPath(); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(util.LevelInfo)
	}
	return &Server{
		engine:     opts.Engine,
		metrics:    opts.Metrics,
		logger:     logger,
		reload:     opts.Reload,
		socketPath: path,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve listens on the control socket until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept error: %v", err)
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, context.Canceled
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.writeError(conn, fmt.Errorf("decode request: %w", err))
		return
	}
	switch req.Action {
	case ActionStatus:
		s.writeOK(conn, s.engine.Status())
	case ActionInspect:
		s.writeOK(conn, s.engine.Inspect())
	case ActionCommand:
		s.handleCommand(ctx, conn, req.Params)
	case ActionLock:
		s.engine.Lock()
		s.writeOK(conn, nil)
	case ActionUnlock:
		s.engine.Unlock()
		s.writeOK(conn, nil)
	case ActionReload:
		s.handleReload(conn)
	case ActionResolve:
		s.handleResolve(conn, req.Params)
	case ActionImport:
		s.handleImport(conn, req.Params)
	case ActionMetrics:
		s.writeOK(conn, s.metrics.Snapshot())
	case ActionLayoutRename, ActionLayoutParent, ActionLayoutDelete, ActionLayoutElement,
		ActionSwapAdd, ActionConditionAdd, ActionConditionUpdate, ActionConditionOperand, ActionConditionRemove:
		s.handleEdit(conn, req.Action, req.Params)
	default:
		s.writeError(conn, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) handleCommand(ctx context.Context, conn net.Conn, params map[string]any) {
	input, _ := params["input"].(string)
	cmd, err := command.Parse(input)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	msg, err := s.engine.Execute(ctx, cmd)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	s.logger.Infof("command %q: %s", cmd, msg)
	s.writeOK(conn, CommandResult{Message: msg})
}

func (s *Server) handleReload(conn net.Conn) {
	if s.reload == nil {
		s.writeError(conn, errors.New("reload not supported"))
		return
	}
	if err := s.reload("control request"); err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, nil)
}

func (s *Server) handleResolve(conn net.Conn, params map[string]any) {
	ref, _ := params["layout"].(string)
	if ref == "" {
		s.writeError(conn, errors.New("missing layout"))
		return
	}
	var layers []string
	if raw, ok := params["layers"].([]any); ok {
		for _, item := range raw {
			if name, ok := item.(string); ok && name != "" {
				layers = append(layers, name)
			}
		}
	}
	eff, err := s.engine.Resolve(ref, layers)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, eff)
}

func (s *Server) handleImport(conn net.Conn, params map[string]any) {
	name, _ := params["name"].(string)
	slot, _ := params["slot"].(float64)
	if name == "" || slot == 0 {
		s.writeError(conn, errors.New("name and slot are required"))
		return
	}
	id, err := s.engine.ImportSlot(name, int(slot))
	if err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, ImportResult{ID: id, Name: name})
}

func (s *Server) writeOK(conn net.Conn, data any) {
	resp := Response{Status: StatusOK}
	if data != nil {
		resp.Data = data
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := Response{Status: StatusError}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
