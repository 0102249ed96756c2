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

// Package devices implements the devices the kernel exposes to user
// programs: the console used for standard input and output.
package devices

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Console is the system console. Input is read one byte at a time; output
// is written in whole buffers so that lines from different threads do not
// interleave.
type Console struct {
	// inMu protects in.
	inMu sync.Mutex
	in   *bufio.Reader

	// outMu protects out and written.
	outMu   sync.Mutex
	out     io.Writer
	written int64
}

// NewConsole returns a console reading from in and writing to out. A nil in
// behaves like /dev/null: it is always at end of input.
func NewConsole(in io.Reader, out io.Writer) *Console {
	if in == nil {
		in = nullReader{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Getc returns the next input byte. ok is false once the input is exhausted.
func (c *Console) Getc() (b byte, ok bool) {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	b, err := c.in.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

// Putbuf writes buf to the console in one piece.
func (c *Console) Putbuf(buf []byte) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	n, _ := c.out.Write(buf)
	c.written += int64(n)
}

// Printf formats to the console in one piece.
func (c *Console) Printf(format string, v ...any) {
	c.Putbuf([]byte(fmt.Sprintf(format, v...)))
}

// Written returns the number of bytes written so far.
func (c *Console) Written() int64 {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.written
}

// nullReader is an input that is always at end of input.
type nullReader struct{}

// Read implements io.Reader.Read.
func (nullReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
