package config

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/layout"
	"github.com/hudman/hudman/internal/rules"
)

// LintError is one configuration issue with the YAML path it refers to.
type LintError struct {
	Path    string
	Message string
	Err     error
}

func (e LintError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e LintError) Unwrap() error {
	return e.Err
}

// Lint reports every issue in the document.
func (c *Config) Lint() []LintError {
	var errs []LintError
	add := func(path string, err error, format string, args ...interface{}) {
		errs = append(errs, LintError{Path: path, Message: fmt.Sprintf(format, args...), Err: err})
	}

	if c.Version > CurrentVersion {
		add("version", nil, "version %d is newer than supported version %d", c.Version, CurrentVersion)
	}
	if c.StagingSlot < 1 || c.StagingSlot > 4 {
		add("stagingSlot", nil, "must be between 1 and 4, got %d", c.StagingSlot)
	}
	if c.PositioningMode != PositionPercent && c.PositioningMode != PositionPixels {
		add("positioningMode", nil, "must be %q or %q, got %q", PositionPercent, PositionPixels, c.PositioningMode)
	}
	if c.TickIntervalMs < minTickIntervalMs {
		add("tickIntervalMs", nil, "must be at least %d, got %d", minTickIntervalMs, c.TickIntervalMs)
	}

	names := make(map[string]uuid.UUID, len(c.Layouts))
	for _, id := range c.LayoutIDs() {
		l := c.Layouts[id]
		path := fmt.Sprintf("layouts.%s", id)
		if id == uuid.Nil {
			add(path, nil, "layout id must not be the nil uuid")
		}
		if l.Name == "" {
			add(path+".name", nil, "layout name cannot be empty")
		} else if other, dup := names[l.Name]; dup {
			add(path+".name", ErrDuplicateName, "duplicate layout name %q (also %s)", l.Name, other)
		} else {
			names[l.Name] = id
		}
		if l.HasParent() {
			if _, ok := c.Layouts[l.Parent]; !ok {
				add(path+".parent", ErrUnknownLayout, "unknown parent layout %s", l.Parent)
			}
		}
		for kind := range l.Elements {
			if kind.Immutable() {
				add(fmt.Sprintf("%s.elements.%s", path, kind), nil, "element %s cannot be edited", kind)
			}
		}
	}
	forest := layout.BuildTree(c.Layouts)
	for _, id := range c.LayoutIDs() {
		l := c.Layouts[id]
		if !l.HasParent() {
			continue
		}
		if node, ok := forest.Find(id); ok && node.Parent == nil {
			if _, exists := c.Layouts[l.Parent]; exists {
				add(fmt.Sprintf("layouts.%s.parent", id), ErrParentCycle, "parent chain of %q forms a cycle", l.Name)
			}
		}
	}

	condNames := make(map[string]bool, len(c.CustomConditions))
	for i, cond := range c.CustomConditions {
		path := fmt.Sprintf("customConditions[%d]", i)
		if err := cond.Validate(); err != nil {
			add(path, err, "%v", err)
			continue
		}
		if condNames[cond.Name] {
			add(path+".name", ErrDuplicateName, "duplicate condition name %q", cond.Name)
			continue
		}
		condNames[cond.Name] = true
	}
	for i, cond := range c.CustomConditions {
		if cond.Kind != rules.KindMulti {
			continue
		}
		for j, item := range cond.Items {
			if err := rules.ValidateOperand(c.CustomConditions, cond.Name, item.Operand); err != nil {
				add(fmt.Sprintf("customConditions[%d].items[%d]", i, j), err, "%v", err)
			}
		}
	}

	for i, m := range c.Swaps {
		path := fmt.Sprintf("swaps[%d]", i)
		if _, ok := c.Layouts[m.LayoutID]; !ok {
			add(path+".layout", ErrUnknownLayout, "unknown layout %s", m.LayoutID)
		}
		if m.CustomCondition != "" && rules.FindCondition(c.CustomConditions, m.CustomCondition) < 0 {
			add(path+".customCondition", rules.ErrUnknownCondition, "unknown custom condition %q", m.CustomCondition)
		}
	}
	return errs
}

// HasLintError reports whether errs contains an issue wrapping target.
func HasLintError(errs []LintError, target error) bool {
	for _, e := range errs {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}
