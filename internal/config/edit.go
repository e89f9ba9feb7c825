package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/layout"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/rules"
)

var (
	ErrDuplicateName  = errors.New("name already in use")
	ErrUnknownLayout  = errors.New("unknown layout")
	ErrParentCycle    = errors.New("parent would create a cycle")
	ErrConditionInUse = errors.New("condition is in use")
)

// AddLayout stores a new layout under a fresh id.
func (c *Config) AddLayout(l hud.SavedLayout) (uuid.UUID, error) {
	if err := c.checkLayoutName(uuid.Nil, l.Name); err != nil {
		return uuid.Nil, err
	}
	if l.HasParent() {
		if _, ok := c.Layouts[l.Parent]; !ok {
			return uuid.Nil, fmt.Errorf("%w: parent %s", ErrUnknownLayout, l.Parent)
		}
	}
	id := uuid.New()
	l.Normalize()
	c.Layouts[id] = l
	return id, nil
}

// ImportLayout stores elements read from a live slot as a root layout.
// A layout with the same name is overwritten in place and keeps its id,
// parent and windows.
func (c *Config) ImportLayout(name string, elements []hud.Element) (uuid.UUID, error) {
	imported := hud.LayoutFromElements(name, elements)
	if id, ok := c.layoutByName(name); ok {
		existing := c.Layouts[id]
		existing.Elements = imported.Elements
		c.Layouts[id] = existing
		return id, nil
	}
	return c.AddLayout(imported)
}

// RenameLayout changes the name of id.
func (c *Config) RenameLayout(id uuid.UUID, name string) error {
	l, ok := c.Layouts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayout, id)
	}
	if err := c.checkLayoutName(id, name); err != nil {
		return err
	}
	l.Name = name
	c.Layouts[id] = l
	return nil
}

// SetParent re-parents id. The parent must be unset or neither id nor one
// of its descendants.
func (c *Config) SetParent(id, parent uuid.UUID) error {
	l, ok := c.Layouts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayout, id)
	}
	if parent != uuid.Nil {
		if _, ok := c.Layouts[parent]; !ok {
			return fmt.Errorf("%w: parent %s", ErrUnknownLayout, parent)
		}
		valid := false
		for _, candidate := range layout.BuildTree(c.Layouts).ValidParents(id) {
			if candidate == parent {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %q under %q", ErrParentCycle, l.Name, c.LayoutName(parent))
		}
	}
	l.Parent = parent
	c.Layouts[id] = l
	return nil
}

// DeleteLayout removes id, re-roots its children and drops the swap rules
// that target it.
func (c *Config) DeleteLayout(id uuid.UUID) error {
	if _, ok := c.Layouts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayout, id)
	}
	for _, child := range layout.BuildTree(c.Layouts).Orphan(id) {
		l := c.Layouts[child]
		l.Parent = uuid.Nil
		c.Layouts[child] = l
	}
	delete(c.Layouts, id)
	kept := c.Swaps[:0]
	for _, m := range c.Swaps {
		if m.LayoutID != id {
			kept = append(kept, m)
		}
	}
	c.Swaps = kept
	return nil
}

// SetElement stores one element override in a layout.
func (c *Config) SetElement(id uuid.UUID, el hud.Element) error {
	l, ok := c.Layouts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayout, id)
	}
	if el.Kind.Immutable() {
		return fmt.Errorf("element %s cannot be edited", el.Kind)
	}
	if l.Elements == nil {
		l.Elements = make(map[hud.ElementKind]hud.Element)
	}
	l.Elements[el.Kind] = el.Clone()
	c.Layouts[id] = l
	return nil
}

func (c *Config) layoutByName(name string) (uuid.UUID, bool) {
	for id, l := range c.Layouts {
		if l.Name == name {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (c *Config) checkLayoutName(self uuid.UUID, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("layout name cannot be empty")
	}
	if id, ok := c.layoutByName(name); ok && id != self {
		return fmt.Errorf("%w: layout %q", ErrDuplicateName, name)
	}
	return nil
}

// AddSwap appends a swap rule.
func (c *Config) AddSwap(m rules.Match) error {
	if _, ok := c.Layouts[m.LayoutID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayout, m.LayoutID)
	}
	if m.CustomCondition != "" && rules.FindCondition(c.CustomConditions, m.CustomCondition) < 0 {
		return fmt.Errorf("%w: %q", rules.ErrUnknownCondition, m.CustomCondition)
	}
	c.Swaps = append(c.Swaps, m)
	return nil
}

// AddCondition appends a custom condition. An empty name is replaced by
// the first free default name.
func (c *Config) AddCondition(cond rules.CustomCondition) (string, error) {
	if cond.Name == "" {
		cond.Name = rules.DefaultConditionName(c.CustomConditions)
	}
	if rules.FindCondition(c.CustomConditions, cond.Name) >= 0 {
		return "", fmt.Errorf("%w: condition %q", ErrDuplicateName, cond.Name)
	}
	candidate := append(append([]rules.CustomCondition(nil), c.CustomConditions...), cond)
	if err := rules.ValidateConditions(candidate); err != nil {
		return "", err
	}
	c.CustomConditions = candidate
	return cond.Name, nil
}

// UpdateCondition replaces the condition named name. A rename is applied to
// swap rules and multi-condition operands that reference it.
func (c *Config) UpdateCondition(name string, cond rules.CustomCondition) error {
	idx := rules.FindCondition(c.CustomConditions, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", rules.ErrUnknownCondition, name)
	}
	if cond.Name != name && rules.FindCondition(c.CustomConditions, cond.Name) >= 0 {
		return fmt.Errorf("%w: condition %q", ErrDuplicateName, cond.Name)
	}
	candidate := make([]rules.CustomCondition, len(c.CustomConditions))
	for i, existing := range c.CustomConditions {
		if i == idx {
			candidate[i] = cond.Clone()
			continue
		}
		candidate[i] = existing.Clone()
	}
	if cond.Name != name {
		for i := range candidate {
			for j, item := range candidate[i].Items {
				if item.Operand.Kind == rules.OperandCondition && item.Operand.Condition == name {
					candidate[i].Items[j].Operand.Condition = cond.Name
				}
			}
		}
	}
	if err := rules.ValidateConditions(candidate); err != nil {
		return err
	}
	c.CustomConditions = candidate
	if cond.Name != name {
		for i := range c.Swaps {
			if c.Swaps[i].CustomCondition == name {
				c.Swaps[i].CustomCondition = cond.Name
			}
		}
	}
	return nil
}

// AddOperand appends an item to a multi-condition after checking that it
// cannot make the condition reach itself.
func (c *Config) AddOperand(name string, item rules.MultiItem) error {
	idx := rules.FindCondition(c.CustomConditions, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", rules.ErrUnknownCondition, name)
	}
	if c.CustomConditions[idx].Kind != rules.KindMulti {
		return fmt.Errorf("%w: %q is not a multi-condition", rules.ErrInvalidCondition, name)
	}
	if err := rules.ValidateOperand(c.CustomConditions, name, item.Operand); err != nil {
		return err
	}
	c.CustomConditions[idx].Items = append(c.CustomConditions[idx].Items, item)
	return nil
}

// RemoveCondition deletes a condition. It is refused while a swap rule or
// another condition references it.
func (c *Config) RemoveCondition(name string) error {
	idx := rules.FindCondition(c.CustomConditions, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", rules.ErrUnknownCondition, name)
	}
	for i, m := range c.Swaps {
		if m.CustomCondition == name {
			return fmt.Errorf("%w: swap rule %d uses %q", ErrConditionInUse, i, name)
		}
	}
	for _, cond := range c.CustomConditions {
		for _, item := range cond.Items {
			if item.Operand.Kind == rules.OperandCondition && item.Operand.Condition == name {
				return fmt.Errorf("%w: condition %q uses %q", ErrConditionInUse, cond.Name, name)
			}
		}
	}
	c.CustomConditions = append(c.CustomConditions[:idx], c.CustomConditions[idx+1:]...)
	return nil
}

// RemapProviderMoved updates stored condition set indexes after the
// provider moved a set. It reports whether anything changed.
func (c *Config) RemapProviderMoved(from, to int) bool {
	return c.remapProvider(func(idx int) int { return provider.RemapMoved(idx, from, to) })
}

// RemapProviderRemoved updates stored condition set indexes after the
// provider removed a set.
func (c *Config) RemapProviderRemoved(removed int) bool {
	return c.remapProvider(func(idx int) int { return provider.RemapRemoved(idx, removed) })
}

func (c *Config) remapProvider(remap func(int) int) bool {
	changed := false
	for i, cond := range c.CustomConditions {
		if cond.Kind != rules.KindProvider {
			continue
		}
		if next := remap(cond.ProviderIndex); next != cond.ProviderIndex {
			c.CustomConditions[i].ProviderIndex = next
			changed = true
		}
	}
	return changed
}
