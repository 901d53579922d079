package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/layer"
	"github.com/commonsense-kb/commonsense/macro"
	"github.com/commonsense-kb/commonsense/matrix"
)

// Source is the human editable form of a configuration block.
//
// Each layer is a list of rows, each row a whitespace separated list of key
// names. Cells left out default to None on layer 0 and to "_" above it.
type Source struct {
	Matrix     MatrixSource      `json:"matrix" yaml:"matrix" toml:"matrix"`
	Delays     []uint16          `json:"delays" yaml:"delays" toml:"delays"`
	Conditions []ConditionSource `json:"conditions,omitempty" yaml:"conditions,omitempty" toml:"conditions,omitempty"`
	Layers     [][]string        `json:"layers" yaml:"layers" toml:"layers"`
	Macros     []MacroSource     `json:"macros,omitempty" yaml:"macros,omitempty" toml:"macros,omitempty"`
}

type MatrixSource struct {
	Rows uint8 `json:"rows" yaml:"rows" toml:"rows"`
	Cols uint8 `json:"cols" yaml:"cols" toml:"cols"`
}

// ConditionSource selects Layer when exactly the named layer keys are active.
type ConditionSource struct {
	Mods  []string `json:"mods" yaml:"mods,flow" toml:"mods"`
	Layer uint8    `json:"layer" yaml:"layer" toml:"layer"`
}

// MacroSource is one macro in step notation, e.g. "tap A 2".
type MacroSource struct {
	Key     string   `json:"key" yaml:"key" toml:"key"`
	Trigger string   `json:"trigger" yaml:"trigger" toml:"trigger"`
	Steps   []string `json:"steps" yaml:"steps" toml:"steps"`
}

var ErrNoLayers = errors.New("block: source defines no layers")

// Compile builds a validated block from src.
func Compile(src Source) (*Block, error) {
	if len(src.Layers) == 0 {
		return nil, ErrNoLayers
	}
	if len(src.Layers) > layer.NumLayers {
		return nil, fmt.Errorf("block: %d layers, at most %d supported", len(src.Layers), layer.NumLayers)
	}
	if len(src.Delays) > NumDelays {
		return nil, fmt.Errorf("block: %d delays, at most %d supported", len(src.Delays), NumDelays)
	}

	b := &Block{
		Rows:   src.Matrix.Rows,
		Cols:   src.Matrix.Cols,
		Macros: &macro.Table{},
	}
	copy(b.Delays[:], src.Delays)

	for l := range b.Layers {
		fill := uint8(keyboard.KeyTransparent)
		if l == 0 {
			fill = keyboard.KeyNoEvent
		}
		for sc := range b.Layers[l] {
			b.Layers[l][sc] = fill
		}
	}
	for l, rows := range src.Layers {
		if len(rows) > int(b.Rows) {
			return nil, fmt.Errorf("layer %d: %d rows, matrix has %d", l, len(rows), b.Rows)
		}
		for r, row := range rows {
			cells := strings.Fields(row)
			if len(cells) > int(b.Cols) {
				return nil, fmt.Errorf("layer %d row %d: %d cells, matrix has %d columns", l, r, len(cells), b.Cols)
			}
			for c, cell := range cells {
				code, err := keyboard.Parse(cell)
				if err != nil {
					return nil, fmt.Errorf("layer %d row %d col %d: %w", l, r, c, err)
				}
				b.Layers[l][matrix.Scancode(uint8(r), uint8(c))] = code
			}
		}
	}

	if len(src.Conditions) == 0 {
		b.Conditions = defaultConditions(len(src.Layers))
	}
	for i, cs := range src.Conditions {
		var mods uint8
		for _, name := range cs.Mods {
			code, err := keyboard.Parse(name)
			if err != nil || !keyboard.IsLayerMod(code) {
				return nil, fmt.Errorf("condition %d: %q is not a layer key", i, name)
			}
			mods |= 1 << (code & 0x03)
		}
		b.Conditions = append(b.Conditions, layer.Condition{Mods: mods, Layer: cs.Layer})
	}

	for i, ms := range src.Macros {
		r, err := compileMacro(ms)
		if err != nil {
			return nil, fmt.Errorf("macro %d (%s): %w", i, ms.Key, err)
		}
		if err := b.Macros.Insert(r); err != nil {
			return nil, fmt.Errorf("macro %d (%s): %w", i, ms.Key, err)
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// defaultConditions maps no active layer key to layer 0 and each single Fn
// key to the layer above it.
func defaultConditions(layers int) []layer.Condition {
	conds := []layer.Condition{{Mods: 0, Layer: 0}}
	for i := 0; i < 4 && i+1 < layers; i++ {
		conds = append(conds, layer.Condition{Mods: 1 << i, Layer: uint8(i + 1)})
	}
	return conds
}

func compileMacro(ms MacroSource) (macro.Record, error) {
	key, err := keyboard.Parse(ms.Key)
	if err != nil {
		return macro.Record{}, err
	}
	flags, err := macro.ParseTrigger(ms.Trigger)
	if err != nil {
		return macro.Record{}, err
	}
	steps := make([]macro.Step, 0, len(ms.Steps))
	for _, line := range ms.Steps {
		s, err := macro.ParseStep(line)
		if err != nil {
			return macro.Record{}, err
		}
		steps = append(steps, s)
	}
	body, err := macro.EncodeSteps(steps)
	if err != nil {
		return macro.Record{}, err
	}
	return macro.Record{Keycode: key, Flags: flags, Body: body}, nil
}

// Decompile turns a block back into its source form. Layers above the last
// one carrying a non-transparent cell are omitted.
func Decompile(b *Block) (Source, error) {
	src := Source{
		Matrix: MatrixSource{Rows: b.Rows, Cols: b.Cols},
		Delays: append([]uint16(nil), b.Delays[:]...),
	}
	for _, c := range b.Conditions {
		cs := ConditionSource{Mods: []string{}, Layer: c.Layer}
		for bit := uint8(0); bit < 4; bit++ {
			if c.Mods&(1<<bit) != 0 {
				cs.Mods = append(cs.Mods, keyboard.Name(keyboard.KeyFn1+bit))
			}
		}
		src.Conditions = append(src.Conditions, cs)
	}

	last := 0
	for l := 1; l < layer.NumLayers; l++ {
		for _, code := range b.Layers[l] {
			if code != keyboard.KeyTransparent {
				last = l
				break
			}
		}
	}
	for l := 0; l <= last; l++ {
		rows := make([]string, 0, b.Rows)
		for r := uint8(0); r < b.Rows; r++ {
			cells := make([]string, 0, b.Cols)
			for c := uint8(0); c < b.Cols; c++ {
				cells = append(cells, keyboard.Name(b.Layers[l][matrix.Scancode(r, c)]))
			}
			rows = append(rows, strings.Join(cells, " "))
		}
		src.Layers = append(src.Layers, rows)
	}

	if b.Macros != nil {
		for i, r := range b.Macros.Records() {
			steps, err := macro.DecodeSteps(r.Body)
			if err != nil {
				return Source{}, fmt.Errorf("macro %d: %w", i, err)
			}
			ms := MacroSource{Key: keyboard.Name(r.Keycode), Trigger: r.Trigger(), Steps: []string{}}
			for _, s := range steps {
				ms.Steps = append(ms.Steps, s.String())
			}
			src.Macros = append(src.Macros, ms)
		}
	}
	return src, nil
}

// DecodeSource parses src in the given format (json, yaml or toml).
func DecodeSource(data []byte, format string) (Source, error) {
	var src Source
	var err error
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&src)
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&src)
	case "toml":
		err = toml.Unmarshal(data, &src)
	default:
		return src, fmt.Errorf("unsupported source format %q", format)
	}
	if err != nil {
		return src, fmt.Errorf("decode %s source: %w", format, err)
	}
	return src, nil
}

// EncodeSource renders src in the given format.
func EncodeSource(src Source, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(src, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(src)
	case "toml":
		return toml.Marshal(src)
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
}
