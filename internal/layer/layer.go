// Package layer resolves scancodes to keycodes through the layer stack.
//
// Layer keys (Fn and LLck) maintain a four bit modifier mask. Whenever the
// mask changes the condition table is scanned in order and the first entry
// whose pattern equals the whole mask selects the current layer. When no entry
// matches, the previous layer stays selected.
package layer

import (
	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/matrix"
)

const (
	// NumLayers is the number of keymap layers a configuration carries.
	NumLayers = 8
	// ModMask covers the four layer modifier bits.
	ModMask = 0x0F

	lockingBit = 0x04
)

// Map assigns a keycode to every scancode of one layer.
type Map [matrix.Size]uint8

// Condition selects Layer when the modifier mask equals Mods.
type Condition struct {
	Mods  uint8
	Layer uint8
}

// Resolver holds the layer state for one device session.
type Resolver struct {
	layers     []Map
	conditions []Condition

	mods    uint8
	current uint8
}

// New returns a resolver over layers, with layer 0 at index 0.
func New(layers []Map, conditions []Condition) *Resolver {
	r := &Resolver{}
	r.Load(layers, conditions)
	return r
}

// Load replaces the layer tables and clears the layer state.
func (r *Resolver) Load(layers []Map, conditions []Condition) {
	r.layers = layers
	r.conditions = conditions
	r.Reset()
}

// Reset drops all active layer modifiers and returns to layer 0.
func (r *Resolver) Reset() {
	r.mods = 0
	r.current = 0
}

// Current returns the selected layer.
func (r *Resolver) Current() uint8 { return r.current }

// Mods returns the active layer modifier mask.
func (r *Resolver) Mods() uint8 { return r.mods }

// Resolve maps scancode through the stack, starting at the current layer and
// falling through transparent cells. Scancodes outside the matrix resolve to
// the no-event code.
func (r *Resolver) Resolve(scancode uint8) uint8 {
	if int(scancode) >= matrix.Size || len(r.layers) == 0 {
		return keyboard.KeyNoEvent
	}
	l := int(r.current)
	if l >= len(r.layers) {
		l = len(r.layers) - 1
	}
	for ; l >= 0; l-- {
		if code := r.layers[l][scancode]; code != keyboard.KeyTransparent {
			return code
		}
	}
	// layer 0 has a transparent cell
	return keyboard.KeyNoEvent
}

// Update applies a layer key transition. It reports whether the modifier mask
// changed.
func (r *Resolver) Update(flags uint8, keycode uint8) bool {
	if !keyboard.IsLayerMod(keycode) {
		return false
	}
	bit := uint8(1) << (keycode & 0x03)
	released := flags&matrix.FlagReleased != 0
	prev := r.mods
	switch {
	case keycode&lockingBit != 0:
		if !released {
			r.mods ^= bit
		}
	case released:
		r.mods &^= bit
	default:
		r.mods |= bit
	}
	if r.mods == prev {
		return false
	}
	for _, c := range r.conditions {
		if c.Mods == r.mods {
			r.current = c.Layer
			break
		}
	}
	return true
}
