// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for pintos. Each setting is defined by a field of Config and one flag;
// settings may also be read from a TOML file.
package config

import (
	"fmt"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/log"
	"pintos.dev/userprog/pkg/refs"
)

// Config holds configuration that is not part of the command line of a
// single command.
//
// Fields with a flag tag are set from the flag of that name. Fields with a
// toml tag may also be set from the configuration file; flags given
// explicitly on the command line take precedence over the file.
type Config struct {
	// ConfigFile is the TOML file settings were read from, if any.
	ConfigFile string `flag:"config" toml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFilename is the filename to log to, if not empty. It may contain
	// the variables %TIMESTAMP% and %COMMAND%.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// Strace indicates that every syscall should be logged.
	Strace bool `flag:"strace" toml:"strace"`

	// MaxOpenFiles limits the open files of each process. Zero selects the
	// kernel default.
	MaxOpenFiles int `flag:"max-open-files" toml:"max_open_files"`

	// MaxThreads limits the threads of each process besides its main
	// thread. Zero selects the kernel default.
	MaxThreads int `flag:"max-threads" toml:"max_threads"`

	// ReferenceLeak sets the reference leak check mode.
	ReferenceLeak refs.LeakMode `flag:"ref-leak-mode" toml:"ref_leak_mode"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if c.MaxOpenFiles < 0 {
		return fmt.Errorf("max-open-files must be non-negative, got %d", c.MaxOpenFiles)
	}
	if c.MaxThreads < 0 || c.MaxThreads > pintos.MaxThreads {
		return fmt.Errorf("max-threads must be between 0 and %d, got %d", pintos.MaxThreads, c.MaxThreads)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("Config file: %q", c.ConfigFile)
	log.Infof("Debug: %t, log file: %q, log format: %s", c.Debug, c.LogFilename, c.LogFormat)
	log.Infof("Strace: %t", c.Strace)
	log.Infof("Max open files: %d, max threads: %d", c.MaxOpenFiles, c.MaxThreads)
	log.Infof("Reference leak mode: %v", c.ReferenceLeak)
}
