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

package refs

import (
	"fmt"
	"testing"
)

type counted struct {
	AtomicRefCount
	destroyed int
}

func (c *counted) RefType() string     { return "counted" }
func (c *counted) LeakMessage() string { return fmt.Sprintf("[counted %p] leaked", c) }

func (c *counted) DecRef() {
	c.DecRefWithDestructor(func() {
		c.destroyed++
		Unregister(c)
	})
}

func TestTwoOwners(t *testing.T) {
	c := &counted{}
	c.IncRef()
	if got := c.ReadRefs(); got != 2 {
		t.Fatalf("ReadRefs() = %d, want 2", got)
	}
	c.DecRef()
	if c.destroyed != 0 {
		t.Fatalf("destroyed with one reference left")
	}
	c.DecRef()
	if c.destroyed != 1 {
		t.Errorf("destroyed %d times, want 1", c.destroyed)
	}
	if c.TryIncRef() {
		t.Errorf("TryIncRef succeeded on a destroyed object")
	}
}

func TestDecRefPanicsBelowZero(t *testing.T) {
	c := &counted{}
	c.DecRef()
	defer func() {
		if recover() == nil {
			t.Errorf("DecRef of a destroyed object did not panic")
		}
	}()
	c.DecRef()
}

func TestLeakCheck(t *testing.T) {
	SetLeakMode(LeaksLogWarning)
	defer SetLeakMode(NoLeakChecking)

	a, b := &counted{}, &counted{}
	Register(a)
	Register(b)
	if got := LiveObjects("counted"); got != 2 {
		t.Fatalf("LiveObjects = %d, want 2", got)
	}
	a.DecRef()
	if got := DoRepeatedLeakCheck(); got != 1 {
		t.Errorf("DoRepeatedLeakCheck() = %d, want 1", got)
	}
	b.DecRef()
	if got := DoRepeatedLeakCheck(); got != 0 {
		t.Errorf("DoRepeatedLeakCheck() = %d, want 0", got)
	}
}

func TestLeakModeSet(t *testing.T) {
	for _, mode := range []LeakMode{NoLeakChecking, LeaksLogWarning, LeaksPanic} {
		var got LeakMode
		if err := got.Set(mode.String()); err != nil {
			t.Errorf("Set(%q) failed: %v", mode, err)
		}
		if got != mode {
			t.Errorf("Set(%q) got %v, want %v", mode, got, mode)
		}
	}
	var l LeakMode
	if err := l.Set("sometimes"); err == nil {
		t.Errorf("Set of an invalid mode succeeded")
	}
}
