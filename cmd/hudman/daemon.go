package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/control"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/ipc"
	"github.com/hudman/hudman/internal/metrics"
	"github.com/hudman/hudman/internal/util"
)

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var bridgeSocket string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the layout swapper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts, bridgeSocket)
		},
	}
	cmd.Flags().StringVar(&bridgeSocket, "bridge-socket", "", "path to the game bridge socket")
	return cmd
}

func runDaemon(parent context.Context, opts *rootOptions, bridgeSocket string) error {
	logger := util.NewLogger(util.ParseLogLevel(opts.logLevel))

	cfgPath, err := filepath.Abs(opts.configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfgPath = filepath.Clean(cfgPath)
	cfg, serialized, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bridge, err := ipc.NewClient(bridgeSocket)
	if err != nil {
		return fmt.Errorf("configure bridge: %w", err)
	}
	logger.Infof("using bridge socket %s", bridge.Path())

	collector := metrics.NewCollector(cfg.Telemetry.Enabled)
	reloader := newConfigReloader(cfgPath, logger, serialized)
	eng := engine.New(engine.Options{
		Config:   cfg,
		Source:   bridge,
		Sink:     bridge,
		Provider: bridge,
		Logger:   logger,
		Metrics:  collector,
		Persist:  reloader.Persist,
	})
	reloader.engine = eng

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(cfgPath)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	if err := watcher.Add(cfgPath); err != nil {
		logger.Debugf("unable to watch config file directly: %v", err)
	}
	reloadRequests := make(chan string, 1)
	go watchConfig(logger, watcher, cfgPath, reloadRequests)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ctrlSrv, err := control.NewServer(control.ServerOptions{
		SocketPath: opts.socket,
		Engine:     eng,
		Metrics:    collector,
		Logger:     logger,
		Reload:     reloader.Reload,
	})
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	for {
		select {
		case err := <-errs:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("engine exited: %w", err)
			}
			logger.Infof("engine stopped")
			return nil
		case reason := <-reloadRequests:
			if err := reloader.Reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := reloader.Reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			default:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}

func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}
