package main

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/util"
)

// configReloader applies edits of the config file to a running engine and
// writes engine-side edits back. Rejected files leave the engine untouched.
type configReloader struct {
	path   string
	logger *util.Logger
	engine *engine.Engine

	mu             sync.Mutex
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the config file. The engine lock is never taken while
// r.mu is held since the engine calls Persist with its own lock held.
func (r *configReloader) Reload(reason string) error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	r.mu.Lock()
	last := r.lastSerialized
	r.mu.Unlock()
	if bytes.Equal(raw, last) {
		r.logger.Debugf("%s, config unchanged", reason)
		return nil
	}
	r.logger.Infof("%s, reloading config", reason)

	cfg, err := config.Parse(raw)
	if err != nil {
		r.logDiff(last, raw)
		return err
	}
	if lintErrs := cfg.Lint(); len(lintErrs) > 0 {
		r.logLintErrors(lintErrs)
		r.logDiff(last, raw)
		return lintErrs[0]
	}

	r.mu.Lock()
	r.lastSerialized = append([]byte(nil), raw...)
	r.mu.Unlock()
	if r.engine != nil {
		r.engine.ApplyConfig(cfg)
	}
	return nil
}

// Persist saves cfg and remembers the bytes so the resulting file event is
// not treated as an external edit.
func (r *configReloader) Persist(cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := cfg.Save(r.path)
	if err != nil {
		return err
	}
	r.lastSerialized = data
	return nil
}

func (r *configReloader) logDiff(previous, current []byte) {
	diff := config.DiffSerialized(previous, current)
	if diff.Empty() {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}

func (r *configReloader) logLintErrors(errs []config.LintError) {
	r.logger.Warnf("config validation failed with %d issue(s):", len(errs))
	for _, lintErr := range errs {
		if lintErr.Path != "" {
			r.logger.Warnf(" - %s: %s", lintErr.Path, lintErr.Message)
			continue
		}
		r.logger.Warnf(" - %s", lintErr.Message)
	}
}
