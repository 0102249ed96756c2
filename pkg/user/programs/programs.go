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

// Package programs contains the user programs built into the pintos tool.
package programs

import (
	"pintos.dev/userprog/pkg/fs"
	"pintos.dev/userprog/pkg/loader"
)

// All returns every built-in program.
func All() []*loader.Program {
	return []*loader.Program{
		Echo,
		Cat,
		Exit,
		Halt,
		Run,
		ForkDemo,
		Threads,
		SemaDemo,
		Shell,
	}
}

// NewRegistry returns a registry of the built-in programs that runs
// interpreter scripts from fsys, which may be nil.
func NewRegistry(fsys fs.FileSystem) *loader.Registry {
	r := loader.NewRegistry(All()...)
	r.FS = fsys
	return r
}
