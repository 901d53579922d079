package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/commonsense-kb/commonsense/macro"
)

// MacroCommand groups macro bytecode tooling.
type MacroCommand struct {
	Asm    MacroAsm    `cmd:"" help:"Assemble macro steps into bytecode"`
	Disasm MacroDisasm `cmd:"" help:"Disassemble macro bytecode into steps"`
}

// MacroAsm assembles steps such as "press LShift", "tap A 2" or "wait 5".
type MacroAsm struct {
	Steps []string `arg:"" optional:"" help:"Macro steps; read one per line from stdin when omitted"`
}

func (c *MacroAsm) Run() error {
	lines := c.Steps
	if len(lines) == 0 {
		var err error
		if lines, err = readLines(os.Stdin); err != nil {
			return err
		}
	}
	body, err := assemble(lines)
	if err != nil {
		return err
	}
	_, err = fmt.Println(hex.EncodeToString(body))
	return err
}

func assemble(lines []string) ([]byte, error) {
	steps := make([]macro.Step, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := macro.ParseStep(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		steps = append(steps, s)
	}
	return macro.EncodeSteps(steps)
}

// MacroDisasm disassembles a hex encoded macro body.
type MacroDisasm struct {
	Body string `arg:"" help:"Hex encoded macro body"`
	Raw  bool   `help:"Print bytecode instructions instead of editor steps"`
}

func (c *MacroDisasm) Run() error {
	return disassemble(os.Stdout, c.Body, c.Raw)
}

func disassemble(w io.Writer, body string, raw bool) error {
	b, err := hex.DecodeString(strings.ReplaceAll(body, " ", ""))
	if err != nil {
		return fmt.Errorf("macro body: %w", err)
	}
	if raw {
		ins, err := macro.Disassemble(b)
		for _, in := range ins {
			fmt.Fprintln(w, in)
		}
		return err
	}
	steps, err := macro.DecodeSteps(b)
	if err != nil {
		return err
	}
	for _, s := range steps {
		fmt.Fprintln(w, s)
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
