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

package programs

import (
	"fmt"
	"strings"

	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/user"
)

// Run executes its arguments as a command line, waits for it and exits with
// its status.
var Run = user.NewProgram("run", "run a command and report its status", func(e *user.Env) int32 {
	cmdline := strings.Join(e.Args()[1:], " ")
	pid := e.Exec(cmdline)
	if pid == user.TIDError {
		e.Print(fmt.Sprintf("run: cannot exec %q\n", cmdline))
		return -1
	}
	status := e.Wait(pid)
	e.Print(fmt.Sprintf("run: %s: exit status %d\n", e.Arg(1), status))
	return status
}, nil)

// forkChildStatus is the exit status of the child of ForkDemo.
const forkChildStatus = 7

// ForkDemo forks, and the parent waits for the child.
var ForkDemo = user.NewProgram("fork", "fork and wait for the child", func(e *user.Env) int32 {
	pid := e.Fork("fork_child")
	if pid == user.TIDError {
		e.Print("fork: failed\n")
		return -1
	}
	status := e.Wait(pid)
	e.Print(fmt.Sprintf("fork: child exited with %d\n", status))
	return 0
}, map[string]arch.Entry{
	"fork_child": user.Forked(func(e *user.Env) int32 {
		e.Print("fork: in child\n")
		return forkChildStatus
	}),
})
