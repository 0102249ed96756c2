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

package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"pintos.dev/userprog/pintos/config"
	"pintos.dev/userprog/pkg/devices"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/kernel"
	"pintos.dev/userprog/pkg/log"
	syscalls "pintos.dev/userprog/pkg/syscalls/pintos"
	"pintos.dev/userprog/pkg/user/programs"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	// files is a host directory whose regular files are copied into the
	// filesystem before the first process starts.
	files string

	// raw puts a terminal on stdin into raw mode, so that programs see
	// each key as it is typed.
	raw bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot the machine and run the given command lines as initial processes"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <command line>... - boot the machine and run each command line.

Each command line is loaded as an initial process; all of them run
concurrently and share the console and filesystem. The exit status is the
first non-zero exit status in command line order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.files, "files", "", "host directory whose files are loaded into the filesystem")
	f.BoolVar(&r.raw, "raw", false, "put a terminal on stdin into raw mode")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	status := args[1].(*int32)

	fsys := memfs.New()
	if r.files != "" {
		if err := loadFiles(fsys, r.files); err != nil {
			return Errorf("%v", err)
		}
	}

	var out io.Writer = os.Stdout
	if r.raw && term.IsTerminal(int(os.Stdin.Fd())) {
		old, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return Errorf("setting terminal to raw mode: %v", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), old)
		out = crlfWriter{os.Stdout}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	ws, err := runCommands(ctx, conf, fsys, devices.NewConsole(os.Stdin, out), f.Args())
	if err != nil {
		return Errorf("%v", err)
	}
	*status = ws
	return subcommands.ExitSuccess
}

// newKernel returns a kernel running the built-in programs over fsys.
func newKernel(conf *config.Config, fsys *memfs.FS, console *devices.Console) (*kernel.Kernel, error) {
	return kernel.NewKernel(kernel.Config{
		FS:           fsys,
		Console:      console,
		Loader:       programs.NewRegistry(fsys),
		SyscallTable: syscalls.Pintos,
		MaxOpenFiles: conf.MaxOpenFiles,
		MaxThreads:   conf.MaxThreads,
		Strace:       conf.Strace,
	})
}

// runCommands boots a kernel and runs each command line as an initial
// process. It returns the first non-zero exit status in command line order.
// A process interrupted by halt counts as a success.
func runCommands(ctx context.Context, conf *config.Config, fsys *memfs.FS, console *devices.Console, cmdlines []string) (int32, error) {
	k, err := newKernel(conf, fsys, console)
	if err != nil {
		return -1, fmt.Errorf("creating kernel: %w", err)
	}

	statuses := make([]int32, len(cmdlines))
	var g errgroup.Group
	for i, cmdline := range cmdlines {
		g.Go(func() error {
			status, err := k.RunTask(ctx, cmdline)
			if errors.Is(err, kernel.ErrHalted) {
				log.Infof("%q interrupted by halt", cmdline)
				return nil
			}
			if err != nil {
				return err
			}
			log.Infof("%q exited with status %d", cmdline, status)
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		k.Halt()
		return -1, err
	}
	for _, status := range statuses {
		if status != 0 {
			return status, nil
		}
	}
	return 0, nil
}

// loadFiles copies the regular files of the host directory dir into fsys.
func loadFiles(fsys *memfs.FS, dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading files directory: %w", err)
	}
	for _, ent := range ents {
		if !ent.Type().IsRegular() {
			log.Debugf("Skipping %q: not a regular file", ent.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return fmt.Errorf("reading %q: %w", ent.Name(), err)
		}
		if err := fsys.WriteFile(ent.Name(), data); err != nil {
			return fmt.Errorf("loading %q: %w", ent.Name(), err)
		}
		log.Infof("Loaded %q (%d bytes)", ent.Name(), len(data))
	}
	return nil
}

// crlfWriter translates line feeds into carriage return and line feed for a
// terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

// Write implements io.Writer.Write.
func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
