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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pkg/refs"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%v) failed: %v", args, err)
	}
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pintos.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{LogFormat: "text"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "-debug", "-strace", "-max-open-files=16", "-log-format=json", "-ref-leak-mode=log-names"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Debug:         true,
		LogFormat:     "json",
		Strace:        true,
		MaxOpenFiles:  16,
		ReferenceLeak: refs.LeaksLogWarning,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	orig := &Config{
		Debug:         true,
		LogFilename:   "/tmp/pintos-%COMMAND%.log",
		LogFormat:     "json",
		Strace:        true,
		MaxOpenFiles:  8,
		MaxThreads:    4,
		ReferenceLeak: refs.LeaksPanic,
	}
	c, err := NewFromFlags(newFlagSet(t, orig.ToFlags()...))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
log_format = "json"
max_open_files = 32
max_threads = 8
ref_leak_mode = "log-names"
`)
	// Flags on the command line win over the file.
	c, err := NewFromFlags(newFlagSet(t, "-config="+path, "-max-threads=2", "-log-format=text"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:    path,
		Debug:         true,
		LogFormat:     "text",
		MaxOpenFiles:  32,
		MaxThreads:    2,
		ReferenceLeak: refs.LeaksLogWarning,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		want     string
	}{
		{name: "unknown key", contents: "colour = \"blue\"\n", want: "unknown keys"},
		{name: "bad syntax", contents: "debug = \n", want: "reading config file"},
		{name: "bad leak mode", contents: "ref_leak_mode = \"sometimes\"\n", want: "reading config file"},
		{name: "invalid value", contents: "max_threads = 1000\n", want: "max-threads"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			_, err := NewFromFlags(newFlagSet(t, "-config="+path))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("NewFromFlags got err %v, want one containing %q", err, tc.want)
			}
		})
	}
	if _, err := NewFromFlags(newFlagSet(t, "-config=/nonexistent/pintos.toml")); err == nil {
		t.Errorf("NewFromFlags with a missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	for _, args := range [][]string{
		{"-log-format=xml"},
		{"-max-open-files=-1"},
		{"-max-threads=-1"},
		{"-max-threads=128"},
	} {
		if _, err := NewFromFlags(newFlagSet(t, args...)); err == nil {
			t.Errorf("NewFromFlags(%v) succeeded", args)
		}
	}
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse([]string{"-ref-leak-mode=sometimes"}); err == nil {
		t.Errorf("Parse of an invalid leak mode succeeded")
	}
}
