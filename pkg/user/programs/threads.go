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
	"strconv"

	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/user"
)

const (
	defaultThreads = 4

	// increments is the number of times each Threads worker increments
	// the shared counter.
	increments = 100
)

// Threads starts workers that increment a counter under a user lock, joins
// them and prints the total.
var Threads = user.NewProgram("threads", "increment a counter from several threads", func(e *user.Env) int32 {
	n := defaultThreads
	if v, err := strconv.Atoi(e.Arg(1)); err == nil {
		n = v
	}

	// The worker argument points at {lock address, counter address}.
	shared := e.Alloc(8)
	lock, counter := e.Alloc(1), e.Alloc(4)
	e.Poke(shared, uint32(lock))
	e.Poke(shared+4, uint32(counter))
	if !e.LockInit(lock) {
		e.Print("threads: lock_init failed\n")
		return 1
	}

	tids := make([]user.ThreadID, 0, n)
	for i := 0; i < n; i++ {
		tid := e.PthreadCreate("threads_worker", uint32(shared))
		if tid == user.TIDError {
			e.Print(fmt.Sprintf("threads: pthread_create %d failed\n", i))
			break
		}
		tids = append(tids, tid)
	}
	for _, tid := range tids {
		if e.PthreadJoin(tid) != tid {
			e.Print(fmt.Sprintf("threads: join %d failed\n", tid))
			return 1
		}
	}
	e.Print(fmt.Sprintf("threads: %d threads counted %d\n", len(tids), e.Peek(counter)))
	return 0
}, map[string]arch.Entry{
	"threads_worker": user.ThreadFunc(func(e *user.Env, arg uint32) {
		lock := hostarch.Addr(e.Peek(hostarch.Addr(arg)))
		counter := hostarch.Addr(e.Peek(hostarch.Addr(arg) + 4))
		for i := 0; i < increments; i++ {
			e.LockAcquire(lock)
			e.Poke(counter, e.Peek(counter)+1)
			e.LockRelease(lock)
		}
	}),
})

// SemaDemo orders two threads with a semaphore.
var SemaDemo = user.NewProgram("sema", "order two threads with a semaphore", func(e *user.Env) int32 {
	sema := e.Alloc(1)
	if !e.SemaInit(sema, 0) {
		e.Print("sema: sema_init failed\n")
		return 1
	}
	tid := e.PthreadCreate("sema_worker", uint32(sema))
	if tid == user.TIDError {
		e.Print("sema: pthread_create failed\n")
		return 1
	}
	e.SemaDown(sema)
	e.Print("sema: main woke up\n")
	e.PthreadJoin(tid)
	return 0
}, map[string]arch.Entry{
	"sema_worker": user.ThreadFunc(func(e *user.Env, arg uint32) {
		e.Print("sema: worker signals\n")
		e.SemaUp(hostarch.Addr(arg))
	}),
})
