// Package block reads and writes the persisted configuration block.
//
// The block is a raw 2048 byte image loaded wholesale at boot:
//
//	[0]          matrix rows
//	[1]          matrix cols
//	[2:8]        reserved
//	[8:40]       delay table, 16 x uint16 little-endian milliseconds
//	[40:56]      layer conditions, mods<<4 | layer, 0xFF unused
//	[56:1080]    8 layers x 128 keycodes
//	[1080:2048]  macro records, 0xFF terminated
//
// No versioning is performed; an image written for another layout decodes to
// garbage.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/layer"
	"github.com/commonsense-kb/commonsense/macro"
	"github.com/commonsense-kb/commonsense/matrix"
)

const (
	Size          = 2048
	NumDelays     = 16
	NumConditions = 16

	offRows       = 0
	offCols       = 1
	offDelays     = 8
	offConditions = offDelays + NumDelays*2
	offLayers     = offConditions + NumConditions
	offMacros     = offLayers + layer.NumLayers*matrix.Size

	// MacroAreaSize is the space available to macro records.
	MacroAreaSize = Size - offMacros

	unusedCondition = 0xFF
)

// Well-known delay table slots.
const (
	DelayCooldown    = 0
	DelayTapDeadline = 1
)

var (
	ErrSize          = errors.New("block: image must be exactly 2048 bytes")
	ErrMatrixBounds  = errors.New("block: matrix dimensions out of range")
	ErrTransparentL0 = errors.New("block: layer 0 contains transparent cells")
	ErrLayerIndex    = errors.New("block: condition selects a missing layer")
)

// Block is the decoded configuration.
type Block struct {
	Rows       uint8
	Cols       uint8
	Delays     [NumDelays]uint16
	Conditions []layer.Condition
	Layers     [layer.NumLayers]layer.Map
	Macros     *macro.Table
}

// Parse decodes a raw image.
func Parse(raw []byte) (*Block, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("%w: got %d", ErrSize, len(raw))
	}
	b := &Block{
		Rows: raw[offRows],
		Cols: raw[offCols],
	}
	for i := range b.Delays {
		b.Delays[i] = binary.LittleEndian.Uint16(raw[offDelays+2*i:])
	}
	for _, c := range raw[offConditions:offLayers] {
		if c == unusedCondition {
			continue
		}
		b.Conditions = append(b.Conditions, layer.Condition{Mods: c >> 4, Layer: c & 0x0F})
	}
	for l := range b.Layers {
		copy(b.Layers[l][:], raw[offLayers+l*matrix.Size:])
	}
	tbl, err := macro.ParseTable(raw[offMacros:])
	if err != nil {
		return nil, err
	}
	b.Macros = tbl
	return b, nil
}

// Encode serializes the block into a raw image.
func (b *Block) Encode() ([]byte, error) {
	if len(b.Conditions) > NumConditions {
		return nil, fmt.Errorf("block: %d layer conditions, at most %d fit", len(b.Conditions), NumConditions)
	}
	raw := make([]byte, Size)
	raw[offRows] = b.Rows
	raw[offCols] = b.Cols
	for i, d := range b.Delays {
		binary.LittleEndian.PutUint16(raw[offDelays+2*i:], d)
	}
	for i := 0; i < NumConditions; i++ {
		raw[offConditions+i] = unusedCondition
		if i < len(b.Conditions) {
			c := b.Conditions[i]
			raw[offConditions+i] = c.Mods<<4 | c.Layer&0x0F
		}
	}
	for l := range b.Layers {
		copy(raw[offLayers+l*matrix.Size:], b.Layers[l][:])
	}
	tbl := b.Macros
	if tbl == nil {
		tbl = &macro.Table{}
	}
	area, err := tbl.Encode(MacroAreaSize)
	if err != nil {
		return nil, err
	}
	copy(raw[offMacros:], area)
	return raw, nil
}

// Validate reports every configuration error that would make the pipeline
// misbehave.
func (b *Block) Validate() error {
	var errs []error
	if b.Rows == 0 || b.Rows > matrix.MaxRows || b.Cols == 0 || b.Cols > matrix.MaxCols {
		errs = append(errs, fmt.Errorf("%w: %dx%d", ErrMatrixBounds, b.Rows, b.Cols))
	}
	for sc, code := range b.Layers[0] {
		if code == keyboard.KeyTransparent {
			errs = append(errs, fmt.Errorf("%w: scancode %d", ErrTransparentL0, sc))
			break
		}
	}
	for i, c := range b.Conditions {
		if c.Layer >= layer.NumLayers || c.Mods > layer.ModMask {
			errs = append(errs, fmt.Errorf("%w: condition %d -> layer %d", ErrLayerIndex, i, c.Layer))
		}
	}
	if b.Macros != nil {
		if err := b.Macros.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delay returns the delay table entry for idx in ticks (milliseconds).
func (b *Block) Delay(idx uint8) uint32 {
	return uint32(b.Delays[idx&(NumDelays-1)])
}

// LayerMaps returns the layer stack for the resolver.
func (b *Block) LayerMaps() []layer.Map {
	return b.Layers[:]
}
