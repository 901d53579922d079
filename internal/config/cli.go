// Package config declares the command line and config file surface.
package config

import "github.com/commonsense-kb/commonsense/internal/cmd"

// Log selects the log level and destinations.
type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"COMMONSENSE_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"COMMONSENSE_LOG_FILE"`
	RawFile string `help:"Write a hex trace of every report to this file" env:"COMMONSENSE_LOG_RAW_FILE"`
}

// CLI is the root command.
type CLI struct {
	ConfigFile string `name:"config" help:"Config file (json, yaml or toml)" env:"COMMONSENSE_CONFIG"`
	Log        Log    `embed:"" prefix:"log."`

	Run    cmd.Runner        `cmd:"" help:"Run the controller core against a scripted or interactive scanner"`
	Block  cmd.BlockCommand  `cmd:"" help:"Build and inspect configuration blocks"`
	Macro  cmd.MacroCommand  `cmd:"" help:"Assemble and disassemble macro bytecode"`
	Config cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
}
