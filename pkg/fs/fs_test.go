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

package fs

import (
	"testing"
	"time"
)

func TestLockHolder(t *testing.T) {
	var l Lock
	if l.Holder() != NoHolder {
		t.Fatalf("new lock has holder %d", l.Holder())
	}
	l.Lock(3)
	if !l.HeldBy(3) || l.HeldBy(4) {
		t.Errorf("HeldBy(3) = %t, HeldBy(4) = %t; want true, false", l.HeldBy(3), l.HeldBy(4))
	}

	acquired := make(chan struct{})
	go func() {
		l.Lock(4)
		close(acquired)
		l.Unlock()
	}()
	select {
	case <-acquired:
		t.Fatalf("second holder acquired a held lock")
	case <-time.After(10 * time.Millisecond):
	}
	l.Unlock()
	<-acquired
	if l.HeldBy(NoHolder) {
		t.Errorf("HeldBy(NoHolder) = true")
	}
}

func TestLockReentryPanics(t *testing.T) {
	var l Lock
	l.Lock(7)
	defer l.Unlock()
	defer func() {
		if recover() == nil {
			t.Errorf("re-acquiring the lock did not panic")
		}
	}()
	l.Lock(7)
}
