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
	"strconv"
	"strings"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/user"
)

// ioBufSize is the buffer size of programs that copy data.
const ioBufSize = 512

// Echo prints its arguments.
var Echo = user.NewProgram("echo", "print the arguments", func(e *user.Env) int32 {
	e.Print(strings.Join(e.Args()[1:], " ") + "\n")
	return 0
}, nil)

// Cat copies files, or the console input if there are none, to the console.
var Cat = user.NewProgram("cat", "copy files to the console", func(e *user.Env) int32 {
	buf := e.Alloc(ioBufSize)
	copyFD := func(fd int32) {
		for {
			n := e.Read(fd, buf, ioBufSize)
			if n <= 0 {
				return
			}
			e.Write(pintos.STDOUT_FILENO, buf, uint32(n))
		}
	}
	if len(e.Args()) == 1 {
		copyFD(pintos.STDIN_FILENO)
		return 0
	}
	var status int32
	for _, name := range e.Args()[1:] {
		fd := e.Open(name)
		if fd < 0 {
			e.Print("cat: " + name + ": cannot open\n")
			status = 1
			continue
		}
		copyFD(fd)
		e.Close(fd)
	}
	return status
}, nil)

// Exit exits with the status given as its argument.
var Exit = user.NewProgram("exit", "exit with a status", func(e *user.Env) int32 {
	status, err := strconv.Atoi(e.Arg(1))
	if err != nil {
		return 0
	}
	return int32(status)
}, nil)

// Halt powers off the machine.
var Halt = user.NewProgram("halt", "power off", func(e *user.Env) int32 {
	e.Halt()
	return 0
}, nil)
