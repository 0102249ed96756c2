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

package memfs

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pkg/errors/linuxerr"
)

func TestCreateOpen(t *testing.T) {
	f := New()
	if err := f.Create("sample.txt", 16); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.Create("sample.txt", 16); err != linuxerr.EEXIST {
		t.Errorf("second Create: got %v, want %v", err, linuxerr.EEXIST)
	}
	for _, tc := range []struct {
		name string
		want error
	}{
		{"", linuxerr.ENOENT},
		{"a-very-long-file-name", linuxerr.ENAMETOOLONG},
		{"missing", linuxerr.ENOENT},
	} {
		if _, err := f.Open(tc.name); err != tc.want {
			t.Errorf("Open(%q): got %v, want %v", tc.name, err, tc.want)
		}
	}
	file, err := f.Open("sample.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer file.Close()
	if got := file.Length(); got != 16 {
		t.Errorf("Length() = %d, want 16", got)
	}
}

func TestWriteIsTruncatedAtEOF(t *testing.T) {
	f := New()
	if err := f.Create("log", 8); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	file, _ := f.Open("log")
	defer file.Close()

	n, err := file.Write([]byte("0123456789"))
	if n != 8 || err != nil {
		t.Errorf("Write: got (%d, %v), want (8, nil)", n, err)
	}
	if n, _ := file.Write([]byte("x")); n != 0 {
		t.Errorf("Write at EOF wrote %d bytes", n)
	}
	if got := file.Tell(); got != 8 {
		t.Errorf("Tell() = %d, want 8", got)
	}

	file.Seek(100)
	if n, _ := file.Read(make([]byte, 4)); n != 0 {
		t.Errorf("Read past EOF returned %d bytes", n)
	}
	file.Seek(2)
	buf := make([]byte, 4)
	if n, _ := file.Read(buf); n != 4 || !bytes.Equal(buf, []byte("2345")) {
		t.Errorf("Read: got %d %q, want 4 \"2345\"", n, buf)
	}
}

func TestRemoveKeepsOpenFiles(t *testing.T) {
	f := New()
	if err := f.WriteFile("data", []byte("payload")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	file, err := f.Open("data")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := f.Remove("data"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := f.Remove("data"); err != linuxerr.ENOENT {
		t.Errorf("second Remove: got %v, want %v", err, linuxerr.ENOENT)
	}
	if _, err := f.Open("data"); err != linuxerr.ENOENT {
		t.Errorf("Open after Remove: got %v, want %v", err, linuxerr.ENOENT)
	}
	buf := make([]byte, 7)
	if n, _ := file.Read(buf); n != 7 || string(buf) != "payload" {
		t.Errorf("Read from removed file: got %d %q", n, buf)
	}
	if got := f.LiveInodes(); got != 1 {
		t.Errorf("LiveInodes() = %d before close, want 1", got)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := f.LiveInodes(); got != 0 {
		t.Errorf("LiveInodes() = %d after close, want 0", got)
	}
	if err := file.Close(); err != linuxerr.EBADF {
		t.Errorf("second Close: got %v, want %v", err, linuxerr.EBADF)
	}
}

func TestReopenHasOwnPosition(t *testing.T) {
	f := New()
	if err := f.WriteFile("shared", []byte("abcdef")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	a, _ := f.Open("shared")
	defer a.Close()
	a.Seek(3)
	b, err := a.Reopen()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer b.Close()
	if got := b.Tell(); got != 0 {
		t.Errorf("reopened file at %d, want 0", got)
	}
	if _, err := b.Write([]byte("XY")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf := make([]byte, 3)
	a.Seek(0)
	a.Read(buf)
	if string(buf) != "XYc" {
		t.Errorf("writes through a reopened file are not shared: %q", buf)
	}
}

func TestNames(t *testing.T) {
	f := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := f.Create(name, 0); err != nil {
			t.Fatalf("Create(%q) failed: %v", name, err)
		}
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, f.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if got, err := f.ReadFile("mid"); err != nil || len(got) != 0 {
		t.Errorf("ReadFile(mid) = %q, %v", got, err)
	}
}
