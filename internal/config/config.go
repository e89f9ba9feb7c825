package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/rules"
)

// CurrentVersion is the newest document version this build understands.
const CurrentVersion = 1

const (
	defaultStagingSlot    = 4
	defaultTickIntervalMs = 100
	minTickIntervalMs     = 10
)

// PositioningMode selects how element positions are shown and entered.
type PositioningMode string

const (
	PositionPercent PositioningMode = "percent"
	PositionPixels  PositioningMode = "pixels"
)

// Telemetry toggles the in-process counters.
type Telemetry struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the top-level configuration document.
type Config struct {
	Version          int                           `yaml:"version"`
	UnderstandsRisks bool                          `yaml:"understandsRisks"`
	SwapsEnabled     bool                          `yaml:"swapsEnabled"`
	AdvancedSwapMode bool                          `yaml:"advancedSwapMode"`
	StagingSlot      int                           `yaml:"stagingSlot"`
	PositioningMode  PositioningMode               `yaml:"positioningMode"`
	TickIntervalMs   int                           `yaml:"tickIntervalMs"`
	Telemetry        Telemetry                     `yaml:"telemetry"`
	Layouts          map[uuid.UUID]hud.SavedLayout `yaml:"layouts"`
	Swaps            []rules.Match                 `yaml:"swaps"`
	CustomConditions []rules.CustomCondition       `yaml:"customConditions"`
}

// UnmarshalYAML handles deprecated fields while decoding configuration files.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Version          int                           `yaml:"version"`
		UnderstandsRisks bool                          `yaml:"understandsRisks"`
		SwapsEnabled     bool                          `yaml:"swapsEnabled"`
		AdvancedSwapMode bool                          `yaml:"advancedSwapMode"`
		StagingSlot      int                           `yaml:"stagingSlot"`
		PositioningMode  PositioningMode               `yaml:"positioningMode"`
		TickIntervalMs   int                           `yaml:"tickIntervalMs"`
		Telemetry        Telemetry                     `yaml:"telemetry"`
		Layouts          map[uuid.UUID]hud.SavedLayout `yaml:"layouts"`
		Swaps            []rules.Match                 `yaml:"swaps"`
		LegacySwaps      []rules.Match                 `yaml:"hudConditionMatches"`
		CustomConditions []rules.CustomCondition       `yaml:"customConditions"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Version = raw.Version
	c.UnderstandsRisks = raw.UnderstandsRisks
	c.SwapsEnabled = raw.SwapsEnabled
	c.AdvancedSwapMode = raw.AdvancedSwapMode
	c.StagingSlot = raw.StagingSlot
	c.PositioningMode = raw.PositioningMode
	c.TickIntervalMs = raw.TickIntervalMs
	c.Telemetry = raw.Telemetry
	c.Layouts = raw.Layouts
	c.CustomConditions = raw.CustomConditions

	switch {
	case raw.Swaps != nil:
		c.Swaps = raw.Swaps
	case raw.LegacySwaps != nil:
		c.Swaps = raw.LegacySwaps
	default:
		c.Swaps = nil
	}
	return nil
}

// Default returns an empty document with defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns $XDG_CONFIG_HOME/hudman/config.yaml, falling back to
// ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hudman", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "hudman", "config.yaml")
	}
	return filepath.Join(home, ".config", "hudman", "config.yaml")
}

// Parse decodes a configuration document and applies defaults. It does not
// validate; call Lint or Validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		serialized, merr := cfg.Marshal()
		return cfg, serialized, merr
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.StagingSlot == 0 {
		c.StagingSlot = defaultStagingSlot
	}
	if c.PositioningMode == "" {
		c.PositioningMode = PositionPercent
	}
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = defaultTickIntervalMs
	}
	if c.Layouts == nil {
		c.Layouts = make(map[uuid.UUID]hud.SavedLayout)
	}
	for id, l := range c.Layouts {
		l.Normalize()
		c.Layouts[id] = l
	}
}

// Validate performs the checks of Lint and returns the first issue.
func (c *Config) Validate() error {
	if errs := c.Lint(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Marshal encodes the document as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Save writes the document atomically: a temporary file in the same
// directory is renamed over path.
func (c *Config) Save(path string) ([]byte, error) {
	data, err := c.Marshal()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("replace config: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy, used to apply edits before committing them.
func (c *Config) Clone() *Config {
	out := *c
	out.Layouts = make(map[uuid.UUID]hud.SavedLayout, len(c.Layouts))
	for id, l := range c.Layouts {
		out.Layouts[id] = l.Clone()
	}
	out.Swaps = append([]rules.Match(nil), c.Swaps...)
	out.CustomConditions = make([]rules.CustomCondition, len(c.CustomConditions))
	for i, cond := range c.CustomConditions {
		out.CustomConditions[i] = cond.Clone()
	}
	return &out
}

// LayoutIDs returns the layout ids ordered by name.
func (c *Config) LayoutIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Layouts))
	for id := range c.Layouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := c.Layouts[ids[i]].Name, c.Layouts[ids[j]].Name
		if ni != nj {
			return ni < nj
		}
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// FindLayout looks up a layout by name or id string.
func (c *Config) FindLayout(ref string) (uuid.UUID, bool) {
	for id, l := range c.Layouts {
		if l.Name == ref {
			return id, true
		}
	}
	if id, err := uuid.Parse(ref); err == nil {
		if _, ok := c.Layouts[id]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// LayoutName returns the name of id, or the id itself when unknown.
func (c *Config) LayoutName(id uuid.UUID) string {
	if l, ok := c.Layouts[id]; ok && l.Name != "" {
		return l.Name
	}
	return id.String()
}
