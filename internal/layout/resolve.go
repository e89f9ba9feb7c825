package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/util"
)

// ErrNotFound is returned when a referenced layout does not exist.
var ErrNotFound = errors.New("layout not found")

// Resolver computes effective layouts from a layout collection.
type Resolver struct {
	forest   *Forest
	advanced bool
	logger   *util.Logger
}

// NewResolver builds the tree over layouts. Layers are only applied when
// advanced is set.
func NewResolver(layouts map[uuid.UUID]hud.SavedLayout, advanced bool, logger *util.Logger) *Resolver {
	return &Resolver{forest: BuildTree(layouts), advanced: advanced, logger: logger}
}

// Forest exposes the tree the resolver works on.
func (r *Resolver) Forest() *Forest {
	return r.forest
}

// Resolve merges the ancestors of target root first, then target, then each
// layer in reverse order so the first layer has the highest priority. A
// missing layer stops layer processing; the partial result is returned.
func (r *Resolver) Resolve(target uuid.UUID, layers []uuid.UUID) (*hud.EffectiveLayout, error) {
	node, ok := r.forest.Find(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}

	ancestors := node.Ancestors()
	out := hud.NewEffectiveLayout()
	for i := len(ancestors) - 1; i >= 0; i-- {
		Apply(out, ancestors[i].Value)
	}
	Apply(out, node.Value)

	var applied []string
	if r.advanced && len(layers) > 0 {
		for i := len(layers) - 1; i >= 0; i-- {
			layer, ok := r.forest.Find(layers[i])
			if !ok {
				if r.logger != nil {
					r.logger.Warnf("layer %s of %s not found, skipping remaining layers", layers[i], displayName(node))
				}
				break
			}
			Apply(out, layer.Value)
			applied = append(applied, displayName(layer))
		}
	}

	out.Name = displayName(node)
	if len(applied) > 0 {
		for i, j := 0, len(applied)-1; i < j; i, j = i+1, j-1 {
			applied[i], applied[j] = applied[j], applied[i]
		}
		out.Name = fmt.Sprintf("%s [%s]", out.Name, strings.Join(applied, ", "))
	}
	return out, nil
}

func displayName(n *Node) string {
	if n.Value.Name != "" {
		return n.Value.Name
	}
	return n.ID.String()
}

// Apply merges one layout into acc. An incoming element, window or overlay
// replaces the accumulated one when it is a full override or the first of
// its key; otherwise only its enabled fields are copied. External config is
// taken wholesale.
func Apply(acc *hud.EffectiveLayout, layout hud.SavedLayout) {
	for kind, incoming := range layout.Elements {
		incoming.Kind = kind
		current, ok := acc.Elements[kind]
		if !ok || incoming.Enabled == hud.AllEnabled {
			acc.Elements[kind] = incoming.Clone()
			continue
		}
		current.UpdateEnabled(incoming)
		acc.Elements[kind] = current
	}

	for name, incoming := range layout.Windows {
		current, ok := acc.Windows[name]
		if !ok || incoming.Enabled == hud.WindowAllEnabled {
			acc.Windows[name] = incoming.Clone()
			continue
		}
		current.UpdateEnabled(incoming)
		acc.Windows[name] = current
	}

	for _, incoming := range layout.Overlays {
		idx := -1
		for i, o := range acc.Overlays {
			if o.CommandName == incoming.CommandName {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			acc.Overlays = append(acc.Overlays, incoming.Clone())
		case incoming.Enabled == hud.OverlayAllEnabled:
			acc.Overlays[idx] = incoming.Clone()
		default:
			acc.Overlays[idx].UpdateEnabled(incoming)
		}
	}

	acc.External = layout.External.Clone()
}
