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

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/user"
)

// Shell reads command lines from the console and runs each of them until
// "exit" or the end of input.
var Shell = user.NewProgram("sh", "run command lines read from the console", func(e *user.Env) int32 {
	c := e.Alloc(1)
	var line strings.Builder
	for {
		e.Print("$ ")
		line.Reset()
		eof := false
		for {
			if e.Read(pintos.STDIN_FILENO, c, 1) != 1 {
				eof = true
				break
			}
			// The console does not echo.
			b := e.Bytes(c, 1)[0]
			if b == '\n' || b == '\r' {
				e.Print("\n")
				break
			}
			e.Write(pintos.STDOUT_FILENO, c, 1)
			line.WriteByte(b)
		}

		cmdline := strings.TrimSpace(line.String())
		switch {
		case cmdline == "exit":
			return 0
		case cmdline != "":
			pid := e.Exec(cmdline)
			if pid == user.TIDError {
				e.Print(fmt.Sprintf("sh: %s: not found\n", strings.Fields(cmdline)[0]))
			} else {
				e.Wait(pid)
			}
		}
		if eof {
			return 0
		}
	}
}, nil)
