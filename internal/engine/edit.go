package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/layout"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/util"
)

// edit applies fn to a copy of the configuration. The copy replaces the
// active configuration only when fn and validation succeed; it is then
// persisted and the next tick performs a full write.
func (e *Engine) edit(fn func(*config.Config) (string, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.cfg.Clone()
	what, err := fn(next)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.applyConfigLocked(next)
	e.writer.Force(staging.ForceConfigReloaded)
	e.logf(util.LevelInfo, "%s", what)
	return e.persistLocked()
}

func findLayout(cfg *config.Config, ref string) (uuid.UUID, error) {
	id, ok := cfg.FindLayout(ref)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", layout.ErrNotFound, ref)
	}
	return id, nil
}

// ImportSlot stores the contents of a live slot as a layout named name,
// reusing the id of an existing layout with that name.
func (e *Engine) ImportSlot(name string, slot int) (uuid.UUID, error) {
	if slot < 1 || slot > 4 {
		return uuid.Nil, fmt.Errorf("slot must be between 1 and 4, got %d", slot)
	}
	elements, err := e.sink.ReadSlot(slot)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read slot %d: %w", slot, err)
	}
	var id uuid.UUID
	err = e.edit(func(cfg *config.Config) (string, error) {
		var err error
		id, err = cfg.ImportLayout(name, elements)
		return fmt.Sprintf("imported slot %d as %s", slot, name), err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// RenameLayout renames the layout ref.
func (e *Engine) RenameLayout(ref, name string) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		id, err := findLayout(cfg, ref)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("renamed layout %s to %s", ref, name), cfg.RenameLayout(id, name)
	})
}

// SetLayoutParent moves ref under parentRef. An empty parentRef makes it a
// root layout.
func (e *Engine) SetLayoutParent(ref, parentRef string) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		id, err := findLayout(cfg, ref)
		if err != nil {
			return "", err
		}
		parent := uuid.Nil
		if parentRef != "" {
			if parent, err = findLayout(cfg, parentRef); err != nil {
				return "", err
			}
		}
		if err := cfg.SetParent(id, parent); err != nil {
			return "", err
		}
		if parent == uuid.Nil {
			return fmt.Sprintf("layout %s is now a root layout", ref), nil
		}
		return fmt.Sprintf("layout %s now inherits from %s", ref, parentRef), nil
	})
}

// DeleteLayout removes ref. Its children become root layouts and swap rules
// targeting it are dropped.
func (e *Engine) DeleteLayout(ref string) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		id, err := findLayout(cfg, ref)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted layout %s", ref), cfg.DeleteLayout(id)
	})
}

// SetElement edits the kind override of layout ref. update receives the
// existing override, or an override with no enabled fields.
func (e *Engine) SetElement(ref string, kind hud.ElementKind, update func(*hud.Element)) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		id, err := findLayout(cfg, ref)
		if err != nil {
			return "", err
		}
		el, ok := cfg.Layouts[id].Elements[kind]
		if !ok {
			el = hud.NewElement(kind)
			el.Enabled = 0
		}
		update(&el)
		return fmt.Sprintf("updated %s in layout %s", kind, ref), cfg.SetElement(id, el)
	})
}

// AddSwap appends a swap rule targeting layoutRef.
func (e *Engine) AddSwap(layoutRef string, m rules.Match) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		id, err := findLayout(cfg, layoutRef)
		if err != nil {
			return "", err
		}
		m.LayoutID = id
		return fmt.Sprintf("added swap rule %d: %s -> %s", len(cfg.Swaps), m.Describe(), layoutRef), cfg.AddSwap(m)
	})
}

// AddCondition stores a new custom condition and returns its name.
func (e *Engine) AddCondition(cond rules.CustomCondition) (string, error) {
	var name string
	err := e.edit(func(cfg *config.Config) (string, error) {
		var err error
		name, err = cfg.AddCondition(cond)
		return fmt.Sprintf("added %s condition %s", cond.Kind, name), err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// UpdateCondition edits the condition called name. A rename follows every
// reference to it.
func (e *Engine) UpdateCondition(name string, update func(*rules.CustomCondition)) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		idx := rules.FindCondition(cfg.CustomConditions, name)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", rules.ErrUnknownCondition, name)
		}
		cond := cfg.CustomConditions[idx].Clone()
		update(&cond)
		return fmt.Sprintf("updated condition %s", cond.Name), cfg.UpdateCondition(name, cond)
	})
}

// AddOperand appends item to the multi-condition name.
func (e *Engine) AddOperand(name string, item rules.MultiItem) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		return fmt.Sprintf("condition %s: added %s %s", name, item.Junction, item.Operand), cfg.AddOperand(name, item)
	})
}

// RemoveCondition deletes an unused condition.
func (e *Engine) RemoveCondition(name string) error {
	return e.edit(func(cfg *config.Config) (string, error) {
		return fmt.Sprintf("removed condition %s", name), cfg.RemoveCondition(name)
	})
}
