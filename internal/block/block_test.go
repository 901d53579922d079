package block_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/block"
	"github.com/commonsense-kb/commonsense/internal/layer"
	"github.com/commonsense-kb/commonsense/macro"
	"github.com/commonsense-kb/commonsense/matrix"
)

const yamlSource = `
matrix:
  rows: 2
  cols: 4
delays: [30, 200, 10, 50]
conditions:
  - mods: []
    layer: 0
  - mods: [Fn1]
    layer: 1
  - mods: [Fn1, LLck2]
    layer: 2
layers:
  - - "Escape A B Fn1"
    - "LShift C D LLck2"
  - - "_ MediaVolumeUp SysPower"
  - - "_ _ _ _"
    - "_ Z"
macros:
  - key: C
    trigger: press
    steps: ["press LShift", "tap H 2", "release LShift"]
  - key: C
    trigger: tap
    steps: ["tap I", "wait 3"]
`

func TestCompile(t *testing.T) {
	src, err := block.DecodeSource([]byte(yamlSource), "yaml")
	require.NoError(t, err)

	b, err := block.Compile(src)
	require.NoError(t, err)

	assert.Equal(t, uint8(2), b.Rows)
	assert.Equal(t, uint32(30), b.Delay(block.DelayCooldown))
	assert.Equal(t, uint32(200), b.Delay(block.DelayTapDeadline))
	assert.Equal(t, uint32(0), b.Delay(15))
	assert.Equal(t, []layer.Condition{{Mods: 0, Layer: 0}, {Mods: 1, Layer: 1}, {Mods: 3, Layer: 2}}, b.Conditions)

	assert.Equal(t, uint8(keyboard.KeyEscape), b.Layers[0][matrix.Scancode(0, 0)])
	assert.Equal(t, uint8(keyboard.KeyLLck2), b.Layers[0][matrix.Scancode(1, 3)])
	assert.Equal(t, uint8(keyboard.KeyNoEvent), b.Layers[0][matrix.Scancode(0, 5)], "layer 0 padding")
	assert.Equal(t, uint8(keyboard.KeyTransparent), b.Layers[1][matrix.Scancode(1, 0)], "upper layer padding")
	assert.Equal(t, uint8(keyboard.KeySystemPower), b.Layers[1][matrix.Scancode(0, 2)])
	assert.Equal(t, uint8(keyboard.KeyZ), b.Layers[2][matrix.Scancode(1, 1)])

	recs := b.Macros.Records()
	require.Len(t, recs, 2)
	assert.True(t, recs[0].IsTap(), "tap record moved in front")
	assert.Equal(t, macro.Flags(0), recs[1].Flags)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	src, err := block.DecodeSource([]byte(yamlSource), "yaml")
	require.NoError(t, err)
	b, err := block.Compile(src)
	require.NoError(t, err)

	raw, err := b.Encode()
	require.NoError(t, err)
	require.Len(t, raw, block.Size)
	assert.Equal(t, byte(0xFF), raw[block.Size-1])

	back, err := block.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, b.Delays, back.Delays)
	assert.Equal(t, b.Conditions, back.Conditions)
	assert.Equal(t, b.Layers, back.Layers)
	assert.Equal(t, b.Macros.Records(), back.Macros.Records())
	assert.NoError(t, back.Validate())

	again, err := back.Encode()
	require.NoError(t, err)
	assert.Equal(t, block.Fingerprint(raw), block.Fingerprint(again))
}

func TestDecompile(t *testing.T) {
	src, err := block.DecodeSource([]byte(yamlSource), "yaml")
	require.NoError(t, err)
	b, err := block.Compile(src)
	require.NoError(t, err)

	out, err := block.Decompile(b)
	require.NoError(t, err)
	require.Len(t, out.Layers, 3)
	assert.Equal(t, "Escape A B Fn1", out.Layers[0][0])
	assert.Equal(t, []string{"Fn1", "Fn2"}, out.Conditions[2].Mods)
	assert.Equal(t, "tap", out.Macros[0].Trigger)
	assert.Equal(t, []string{"tap H 2"}, out.Macros[1].Steps[1:2])

	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			data, err := block.EncodeSource(out, format)
			require.NoError(t, err)
			parsed, err := block.DecodeSource(data, format)
			require.NoError(t, err)
			rebuilt, err := block.Compile(parsed)
			require.NoError(t, err)
			assert.Equal(t, b.Layers, rebuilt.Layers)
			assert.Equal(t, b.Conditions, rebuilt.Conditions)
			assert.Equal(t, b.Macros.Records(), rebuilt.Macros.Records())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  block.Source
	}{
		{name: "no layers", src: block.Source{Matrix: block.MatrixSource{Rows: 1, Cols: 1}}},
		{
			name: "too many rows",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 1, Cols: 2},
				Layers: [][]string{{"A B", "C D"}},
			},
		},
		{
			name: "too many cells",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 1, Cols: 2},
				Layers: [][]string{{"A B C"}},
			},
		},
		{
			name: "unknown key",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 1, Cols: 2},
				Layers: [][]string{{"A Nope"}},
			},
		},
		{
			name: "transparent on layer 0",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 1, Cols: 2},
				Layers: [][]string{{"A _"}},
			},
		},
		{
			name: "condition names a plain key",
			src: block.Source{
				Matrix:     block.MatrixSource{Rows: 1, Cols: 2},
				Layers:     [][]string{{"A B"}},
				Conditions: []block.ConditionSource{{Mods: []string{"A"}, Layer: 1}},
			},
		},
		{
			name: "condition selects missing layer",
			src: block.Source{
				Matrix:     block.MatrixSource{Rows: 1, Cols: 2},
				Layers:     [][]string{{"A B"}},
				Conditions: []block.ConditionSource{{Mods: []string{"Fn1"}, Layer: 9}},
			},
		},
		{
			name: "duplicate macro",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 1, Cols: 2},
				Layers: [][]string{{"A B"}},
				Macros: []block.MacroSource{
					{Key: "A", Trigger: "release", Steps: []string{"tap B"}},
					{Key: "A", Trigger: "release", Steps: []string{"tap C"}},
				},
			},
		},
		{
			name: "matrix too large",
			src: block.Source{
				Matrix: block.MatrixSource{Rows: 9, Cols: 2},
				Layers: [][]string{{"A B"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := block.Compile(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestDefaultConditions(t *testing.T) {
	b, err := block.Compile(block.Source{
		Matrix: block.MatrixSource{Rows: 1, Cols: 1},
		Layers: [][]string{{"A"}, {"B"}, {"C"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []layer.Condition{
		{Mods: 0, Layer: 0},
		{Mods: 1, Layer: 1},
		{Mods: 2, Layer: 2},
	}, b.Conditions)
}

func TestParseErrors(t *testing.T) {
	_, err := block.Parse(make([]byte, 10))
	assert.ErrorIs(t, err, block.ErrSize)

	raw := make([]byte, block.Size)
	for i := range raw {
		raw[i] = 0xFF
	}
	// chain maximal records until the last one runs past the image
	for off := block.Size - block.MacroAreaSize; off+3 <= block.Size; off += 3 + 0xFF {
		raw[off] = keyboard.KeyA
		raw[off+1] = 0
		raw[off+2] = 0xFF
	}
	_, err = block.Parse(raw)
	assert.ErrorIs(t, err, macro.ErrTableTruncated)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "keymap.yaml")
	require.NoError(t, os.WriteFile(srcPath, []byte(yamlSource), 0o644))

	b, raw, err := block.Load(srcPath)
	require.NoError(t, err)
	assert.Len(t, raw, block.Size)
	assert.Equal(t, uint8(4), b.Cols)

	binPath := filepath.Join(dir, "keymap.bin")
	require.NoError(t, os.WriteFile(binPath, raw, 0o644))
	b2, raw2, err := block.Load(binPath)
	require.NoError(t, err)
	assert.Equal(t, raw, raw2)
	assert.Equal(t, b.Layers, b2.Layers)

	_, _, err = block.Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	assert.Equal(t, "toml", block.FormatOf("x.TOML"))
	assert.Equal(t, "yaml", block.FormatOf("x.yml"))
	assert.Equal(t, "bin", block.FormatOf("x.img"))
}
