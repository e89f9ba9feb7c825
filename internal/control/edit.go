package control

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/state"
)

type params map[string]any

func (p params) str(key string) string {
	v, _ := p[key].(string)
	return strings.TrimSpace(v)
}

func (p params) required(key string) (string, error) {
	if v := p.str(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("missing %s", key)
}

func (p params) number(key string) (float64, bool) {
	v, ok := p[key].(float64)
	return v, ok
}

func (p params) flag(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (s *Server) handleEdit(conn net.Conn, action string, raw map[string]any) {
	msg, err := s.edit(action, params(raw))
	if err != nil {
		s.writeError(conn, err)
		return
	}
	s.logger.Infof("%s: %s", action, msg)
	s.writeOK(conn, CommandResult{Message: msg})
}

func (s *Server) edit(action string, p params) (string, error) {
	if action == ActionConditionAdd {
		return s.addCondition(p)
	}
	if action == ActionSwapAdd {
		return s.addSwap(p)
	}
	if strings.HasPrefix(action, "layout.") {
		ref, err := p.required("layout")
		if err != nil {
			return "", err
		}
		switch action {
		case ActionLayoutRename:
			name, err := p.required("name")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("renamed %s to %s", ref, name), s.engine.RenameLayout(ref, name)
		case ActionLayoutParent:
			parent := p.str("parent")
			if parent == "" {
				return fmt.Sprintf("%s is now a root layout", ref), s.engine.SetLayoutParent(ref, "")
			}
			return fmt.Sprintf("%s now inherits from %s", ref, parent), s.engine.SetLayoutParent(ref, parent)
		case ActionLayoutDelete:
			return fmt.Sprintf("deleted %s", ref), s.engine.DeleteLayout(ref)
		case ActionLayoutElement:
			return s.setElement(ref, p)
		}
	}
	name, err := p.required("name")
	if err != nil {
		return "", err
	}
	switch action {
	case ActionConditionUpdate:
		rename := p.str("rename")
		hold, hasHold := p.number("holdTime")
		if rename == "" && !hasHold {
			return "", errors.New("nothing to update: set rename or holdTime")
		}
		err := s.engine.UpdateCondition(name, func(c *rules.CustomCondition) {
			if rename != "" {
				c.Name = rename
			}
			if hasHold {
				c.HoldTime = hold
			}
		})
		return fmt.Sprintf("updated condition %s", name), err
	case ActionConditionOperand:
		raw, err := p.required("operand")
		if err != nil {
			return "", err
		}
		operand, err := rules.ParseOperand(raw)
		if err != nil {
			return "", err
		}
		item := rules.MultiItem{Negate: p.flag("negate"), Operand: operand}
		if j := p.str("junction"); j != "" {
			if err := item.Junction.UnmarshalText([]byte(j)); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("condition %s: added %s %s", name, item.Junction, operand), s.engine.AddOperand(name, item)
	case ActionConditionRemove:
		return fmt.Sprintf("removed condition %s", name), s.engine.RemoveCondition(name)
	}
	return "", fmt.Errorf("unknown action %q", action)
}

func (s *Server) setElement(ref string, p params) (string, error) {
	kind, err := hud.ParseElementKind(p.str("element"))
	if err != nil {
		return "", err
	}
	var vis hud.VisibilityFlags
	visSet := false
	switch strings.ToLower(p.str("visibility")) {
	case "":
	case "keyboard":
		vis, visSet = hud.VisibleKeyboard, true
	case "gamepad":
		vis, visSet = hud.VisibleGamepad, true
	case "both":
		vis, visSet = hud.VisibleKeyboard|hud.VisibleGamepad, true
	case "none":
		visSet = true
	default:
		return "", fmt.Errorf("visibility must be keyboard, gamepad, both or none")
	}
	x, hasX := p.number("x")
	y, hasY := p.number("y")
	scale, hasScale := p.number("scale")
	opacity, hasOpacity := p.number("opacity")
	if !hasX && !hasY && !hasScale && !hasOpacity && !visSet {
		return "", errors.New("nothing to set: give x, y, scale, opacity or visibility")
	}
	if hasOpacity && (opacity < 0 || opacity > 255) {
		return "", fmt.Errorf("opacity must be between 0 and 255, got %v", opacity)
	}
	err = s.engine.SetElement(ref, kind, func(el *hud.Element) {
		if hasX {
			el.X = float32(x)
			el.Enabled |= hud.ComponentX
		}
		if hasY {
			el.Y = float32(y)
			el.Enabled |= hud.ComponentY
		}
		if hasScale {
			el.Scale = float32(scale)
			el.Enabled |= hud.ComponentScale
		}
		if hasOpacity {
			el.Opacity = uint8(opacity)
			el.Enabled |= hud.ComponentOpacity
		}
		if visSet {
			el.Visibility = vis
			el.Enabled |= hud.ComponentVisibility
		}
	})
	return fmt.Sprintf("updated %s in %s", kind, ref), err
}

func (s *Server) addSwap(p params) (string, error) {
	ref, err := p.required("layout")
	if err != nil {
		return "", err
	}
	m := rules.Match{CustomCondition: p.str("condition"), IsLayer: p.flag("layer")}
	if job := p.str("job"); job != "" {
		if m.ClassJob, err = jobs.ParseCategory(job); err != nil {
			return "", err
		}
	}
	if st := p.str("status"); st != "" {
		if m.Status, err = rules.ParseStatus(st); err != nil {
			return "", err
		}
	}
	if err := s.engine.AddSwap(ref, m); err != nil {
		return "", err
	}
	return fmt.Sprintf("added swap rule %s -> %s", m.Describe(), ref), nil
}

func (s *Server) addCondition(p params) (string, error) {
	kind, err := rules.ParseConditionKind(p.str("kind"))
	if err != nil {
		return "", err
	}
	cond := rules.NewCondition(p.str("name"), kind)
	if hold, ok := p.number("holdTime"); ok {
		cond.HoldTime = hold
	}
	if idx, ok := p.number("providerIndex"); ok {
		cond.ProviderIndex = int(idx)
	}
	if zones, ok := p["zones"].([]any); ok {
		for _, z := range zones {
			if id, ok := z.(float64); ok {
				cond.MapIDs = append(cond.MapIDs, uint32(id))
			}
		}
	}
	if key := p.str("key"); key != "" {
		if cond.Keybind.Key, err = state.ParseVirtualKey(key); err != nil {
			return "", err
		}
	}
	if mod := p.str("modifier"); mod != "" {
		if cond.Keybind.Modifier, err = state.ParseVirtualKey(mod); err != nil {
			return "", err
		}
	}
	name, err := s.engine.AddCondition(cond)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("added %s condition %s", kind, name), nil
}
