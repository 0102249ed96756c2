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

package kernel

import (
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
)

// PthreadCreate starts a thread in the process of t. The thread starts at
// stub with fun and arg above a fake return address on a fresh one page
// stack, and inherits the priority of t. It fails with EAGAIN if the
// process has no free stack slot.
func (t *Thread) PthreadCreate(stub, fun hostarch.Addr, arg uint32) (ThreadID, error) {
	p := t.p
	p.threadsMu.Lock()
	defer p.threadsMu.Unlock()
	if p.doomed() {
		return TIDError, linuxerr.ErrInterrupted
	}
	slot := -1
	for i := 1; i < len(p.slots); i++ {
		if p.slots[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return TIDError, linuxerr.EAGAIN
	}

	top := slotTop(slot)
	if err := p.mm.Map(top-pintos.PageSize, pintos.PageSize, hostarch.ReadWrite); err != nil {
		t.Debugf("Mapping stack of slot %d: %v", slot, err)
		return TIDError, linuxerr.ENOMEM
	}
	st := arch.Stack{IO: p.mm, Bottom: top}
	for _, v := range []uint32{arg, uint32(fun), 0} {
		if err := st.PushUint32(t.k.ctx, v); err != nil {
			p.mm.Unmap(top-pintos.PageSize, pintos.PageSize)
			return TIDError, linuxerr.ENOMEM
		}
	}

	tid := t.k.allocTID()
	nt := p.newThread(tid, slot, int32(t.Priority()), arch.Registers{
		EIP: uint32(stub),
		ESP: uint32(st.Bottom),
	})
	p.threads[tid] = nt
	p.slots[slot] = nt
	t.Debugf("Created thread %v in slot %d", nt, slot)
	t.k.start(nt)
	return tid, nil
}

// PthreadJoin blocks until thread tid of the process of t finishes and
// returns tid. It fails with ESRCH if tid is not in the process, is t
// itself, or has already been joined.
func (t *Thread) PthreadJoin(tid ThreadID) (ThreadID, error) {
	p := t.p
	p.threadsMu.Lock()
	target, ok := p.threads[tid]
	if !ok || target == t || target.joined {
		p.threadsMu.Unlock()
		return TIDError, linuxerr.ESRCH
	}
	target.joined = true
	p.threadsMu.Unlock()

	select {
	case <-target.done:
	case <-p.dying:
		return TIDError, linuxerr.ErrInterrupted
	}

	if !target.isMain() {
		p.threadsMu.Lock()
		delete(p.threads, tid)
		p.threadsMu.Unlock()
	}
	return tid, nil
}

// PthreadExit ends t. A thread other than the main thread releases its
// stack and wakes its joiner; the process continues. The main thread wakes
// its joiner, joins every thread not yet joined and then exits the process
// with status 0.
func (t *Thread) PthreadExit() (*SyscallControl, error) {
	if t.isMain() {
		return t.exitMain()
	}
	p := t.p
	p.threadsMu.Lock()
	top := slotTop(t.slot)
	p.mm.Unmap(top-pintos.MaxStackPages*pintos.PageSize, pintos.MaxStackPages*pintos.PageSize)
	p.slots[t.slot] = nil
	p.threadsMu.Unlock()
	t.signalJoiners()
	return CtrlThreadExit, nil
}

func (t *Thread) exitMain() (*SyscallControl, error) {
	p := t.p
	t.signalJoiners()
	for {
		p.threadsMu.Lock()
		var pending []*Thread
		for _, other := range p.threads {
			if other != t && !other.joined {
				other.joined = true
				pending = append(pending, other)
			}
		}
		p.threadsMu.Unlock()
		if len(pending) == 0 {
			break
		}
		for _, other := range pending {
			select {
			case <-other.done:
			case <-p.dying:
				return nil, linuxerr.ErrInterrupted
			}
			p.threadsMu.Lock()
			delete(p.threads, other.tid)
			p.threadsMu.Unlock()
		}
	}
	t.PrepareExit(0)
	return CtrlDoExit, nil
}
