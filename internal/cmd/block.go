package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/block"
	"github.com/commonsense-kb/commonsense/internal/configpaths"
)

// BlockCommand groups configuration block tooling.
type BlockCommand struct {
	Build BlockBuild `cmd:"" help:"Compile a keymap source into a block image"`
	Info  BlockInfo  `cmd:"" help:"Describe a block image or keymap source"`
	Check BlockCheck `cmd:"" help:"Validate a block image or keymap source"`
	Dump  BlockDump  `cmd:"" help:"Decompile a block image into a keymap source"`
}

// BlockBuild compiles a keymap source.
type BlockBuild struct {
	Source string `arg:"" help:"Keymap source (yaml, toml, json)" type:"existingfile"`
	Output string `short:"o" help:"Destination image (defaults to the source name with .bin)"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *BlockBuild) Run(logger *slog.Logger) error {
	if block.FormatOf(c.Source) == "bin" {
		return fmt.Errorf("%s: not a keymap source", c.Source)
	}
	b, raw, err := block.Load(c.Source)
	if err != nil {
		return err
	}
	dest := c.Output
	if dest == "" {
		dest = strings.TrimSuffix(c.Source, filepath.Ext(c.Source)) + ".bin"
	}
	if err := writeFile(dest, raw, c.Force); err != nil {
		return err
	}
	logger.Info("block written", "path", dest, "fingerprint", block.Fingerprint(raw), "macros", b.Macros.Len())
	return nil
}

// BlockInfo prints a summary of a block.
type BlockInfo struct {
	Image string `arg:"" help:"Block image or keymap source" type:"existingfile"`
}

func (c *BlockInfo) Run() error {
	b, raw, err := block.Load(c.Image)
	if err != nil {
		return err
	}
	return describe(os.Stdout, b, raw)
}

func describe(w io.Writer, b *block.Block, raw []byte) error {
	fmt.Fprintf(w, "fingerprint  %s\n", block.Fingerprint(raw))
	fmt.Fprintf(w, "matrix       %d rows x %d cols\n", b.Rows, b.Cols)
	fmt.Fprintf(w, "cooldown     %d ms\n", b.Delay(block.DelayCooldown))
	fmt.Fprintf(w, "tap deadline %d ms\n", b.Delay(block.DelayTapDeadline))
	for i, c := range b.Conditions {
		fmt.Fprintf(w, "condition %-2d mods %04b -> layer %d\n", i, c.Mods, c.Layer)
	}
	for i, m := range b.Layers {
		keys := 0
		for _, code := range m {
			if code != keyboard.KeyNoEvent && code != keyboard.KeyTransparent {
				keys++
			}
		}
		if keys > 0 {
			fmt.Fprintf(w, "layer %d      %d keys\n", i, keys)
		}
	}
	_, err := fmt.Fprintf(w, "macros       %d records, %d/%d bytes\n", b.Macros.Len(), b.Macros.Size(), block.MacroAreaSize)
	return err
}

// BlockCheck validates a block.
type BlockCheck struct {
	Image string `arg:"" help:"Block image or keymap source" type:"existingfile"`
}

func (c *BlockCheck) Run(logger *slog.Logger) error {
	b, raw, err := block.Load(c.Image)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Image, err)
	}
	logger.Info("block valid", "path", c.Image, "fingerprint", block.Fingerprint(raw))
	return nil
}

// BlockDump decompiles a block into an editable source.
type BlockDump struct {
	Image  string `arg:"" help:"Block image" type:"existingfile"`
	Format string `help:"Output format" enum:"json,yaml,toml" default:"yaml"`
	Output string `short:"o" help:"Destination file (defaults to stdout)"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *BlockDump) Run() error {
	b, _, err := block.Load(c.Image)
	if err != nil {
		return err
	}
	src, err := block.Decompile(b)
	if err != nil {
		return err
	}
	data, err := block.EncodeSource(src, c.Format)
	if err != nil {
		return err
	}
	if c.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return writeFile(c.Output, data, c.Force)
}

func writeFile(dest string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
