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

package loader

import (
	"bytes"
	"errors"

	"pintos.dev/userprog/pkg/fs"
)

const (
	// interpreterScriptMagic identifies an interpreter script.
	interpreterScriptMagic = "#!"

	// interpMaxLineLength is the maximum length for the first line of an
	// interpreter script.
	interpMaxLineLength = 127
)

var errNotScript = errors.New("not an interpreter script")

// parseInterpreterScript returns the argv that runs the script filename with
// its interpreter.
func parseInterpreterScript(fsys fs.FileSystem, filename string, argv []string) (newargv []string, err error) {
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	line := make([]byte, interpMaxLineLength)
	n, err := f.Read(line)
	if err != nil {
		return nil, err
	}
	line = line[:n]

	if !bytes.HasPrefix(line, []byte(interpreterScriptMagic)) {
		return nil, errNotScript
	}
	// Ignore #!.
	line = line[2:]

	// Ignore everything after newline.
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	// Words after the interpreter are passed as separate arguments, as
	// exec splits every command line on white space.
	words := bytes.Fields(line)
	if len(words) == 0 {
		return nil, errNotScript
	}
	for _, w := range words {
		newargv = append(newargv, string(w))
	}

	// The original argv[0] is replaced with the script filename.
	newargv = append(newargv, filename)
	newargv = append(newargv, argv[1:]...)
	return newargv, nil
}
