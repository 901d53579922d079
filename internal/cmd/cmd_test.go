package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/commonsense-kb/commonsense/internal/block"
	"github.com/commonsense-kb/commonsense/internal/log"
	"github.com/commonsense-kb/commonsense/internal/power"
	"github.com/commonsense-kb/commonsense/internal/sim"
)

const keymap = `
matrix:
  rows: 1
  cols: 4
delays: [0, 200]
layers:
  - - "Escape A B C"
macros:
  - key: C
    trigger: press
    steps: ["tap H", "tap I"]
`

const scenario = `
steps:
  - at: 5
    down: [0, 1]
  - at: 20
    up: [0, 1]
  - at: 25
    command: [7, 0]
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFlagName(t *testing.T) {
	tests := []struct{ in, expected string }{
		{in: "QueueSize", expected: "queue-size"},
		{in: "Addr", expected: "addr"},
		{in: "WatchDivisor", expected: "watch-divisor"},
		{in: "RawFile", expected: "raw-file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, flagName(tt.in))
		})
	}
}

func TestConfigTemplate(t *testing.T) {
	data, err := template("run", "yaml")
	require.NoError(t, err)

	var root map[string]any
	require.NoError(t, yaml.Unmarshal(data, &root))
	assert.NotContains(t, root, "keymap", "positional arguments are skipped")
	assert.Equal(t, "reject", root["overflow"])
	assert.Equal(t, 64, root["queue-size"])
	assert.Equal(t, true, root["keyboard"])
	assert.Equal(t, map[string]any{"watch-divisor": 10, "resume-delay": "50ms"}, root["power"])
	assert.Contains(t, root, "serial")

	for _, format := range []string{"json", "toml"} {
		_, err := template("run", format)
		assert.NoError(t, err, format)
	}
	_, err = template("server", "yaml")
	assert.Error(t, err)
	_, err = template("run", "ini")
	assert.Error(t, err)
}

func TestConfigInitWritesFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "conf", "run.toml")
	c := &ConfigInit{Command: "run", Format: "toml", Output: dest}
	require.NoError(t, c.Run())
	assert.FileExists(t, dest)
	assert.Error(t, c.Run(), "refuses to overwrite")
	c.Force = true
	assert.NoError(t, c.Run())
}

func TestBlockCommands(t *testing.T) {
	src := writeTemp(t, "board.yaml", keymap)
	img := strings.TrimSuffix(src, ".yaml") + ".bin"

	require.NoError(t, (&BlockBuild{Source: src}).Run(slog.Default()))
	raw, err := os.ReadFile(img)
	require.NoError(t, err)
	assert.Len(t, raw, block.Size)

	require.NoError(t, (&BlockCheck{Image: img}).Run(slog.Default()))

	b, _, err := block.Load(img)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, describe(&out, b, raw))
	assert.Contains(t, out.String(), "matrix       1 rows x 4 cols")
	assert.Contains(t, out.String(), "tap deadline 200 ms")
	assert.Contains(t, out.String(), "layer 0      4 keys")
	assert.Contains(t, out.String(), "macros       1 records, 7/968 bytes")

	dumped := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, (&BlockDump{Image: img, Format: "json", Output: dumped}).Run())
	rebuilt, raw2, err := block.Load(dumped)
	require.NoError(t, err)
	assert.Equal(t, raw, raw2)
	assert.Equal(t, b.Layers, rebuilt.Layers)

	assert.Error(t, (&BlockBuild{Source: img}).Run(slog.Default()), "image is not a source")
}

func TestMacroAsmDisasm(t *testing.T) {
	body, err := assemble([]string{"# shifted h", "press LShift", "tap H 2", "", "release LShift", "wait 5"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, disassemble(&out, hex.EncodeToString(body), false))
	assert.Equal(t, "press LShift\ntap H 2\nrelease LShift\nwait 5\n", out.String())

	out.Reset()
	require.NoError(t, disassemble(&out, hex.EncodeToString(body), true))
	assert.Equal(t, 4, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "ChangeMods down LShift d0")

	_, err = assemble([]string{"hold A"})
	assert.ErrorContains(t, err, "line 1")
	assert.Error(t, disassemble(&out, "zz", false))

	lines, err := readLines(strings.NewReader("tap A\nwait 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tap A", "wait 1"}, lines)
}

func TestRunnerPlaysScenario(t *testing.T) {
	r := &Runner{
		Keymap:    writeTemp(t, "board.yaml", keymap),
		Script:    writeTemp(t, "typing.yaml", scenario),
		Keyboard:  true,
		Direction: "usb",
		QueueSize: 16,
		Overflow:  "reject",
		Power:     power.Config{WatchDivisor: 10, ResumeDelay: time.Millisecond},
		Platform:  sim.Config{Tick: time.Millisecond},
	}

	var trace bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Start(ctx, slog.Default(), log.NewRaw(&trace)))
	require.NoError(t, ctx.Err(), "run stops once the scenario is played out")

	lines := trace.String()
	assert.Contains(t, lines, "34 bytes: 00 00 10 00", "A pressed")
	assert.Contains(t, lines, "34 bytes: 00 00 00 00", "A released")
	assert.Contains(t, lines, "consumer", "all-keys-up resets every channel")
}

func TestRunnerSerialNeedsPort(t *testing.T) {
	r := &Runner{
		Keymap:    writeTemp(t, "board.yaml", keymap),
		Direction: "serial",
		QueueSize: 16,
		Overflow:  "reject",
	}
	err := r.Start(context.Background(), slog.Default(), log.NewRaw(io.Discard))
	assert.ErrorContains(t, err, "--serial.port")
}
