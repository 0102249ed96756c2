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

package devices

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestGetc(t *testing.T) {
	c := NewConsole(strings.NewReader("hi"), nil)
	for _, want := range []byte("hi") {
		b, ok := c.Getc()
		if !ok || b != want {
			t.Fatalf("Getc() = %q, %t; want %q, true", b, ok, want)
		}
	}
	if _, ok := c.Getc(); ok {
		t.Errorf("Getc() at end of input succeeded")
	}
}

func TestNullInput(t *testing.T) {
	c := NewConsole(nil, nil)
	if _, ok := c.Getc(); ok {
		t.Errorf("Getc() on a null console succeeded")
	}
}

func TestPutbufIsAtomic(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(nil, &out)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Printf("%s: exit(%d)\n", "child", 0)
		}()
	}
	wg.Wait()
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line != "child: exit(0)" {
			t.Errorf("interleaved output line %q", line)
		}
	}
	if got, want := c.Written(), int64(8*len("child: exit(0)\n")); got != want {
		t.Errorf("Written() = %d, want %d", got, want)
	}
}
