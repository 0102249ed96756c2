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
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"pintos.dev/userprog/pkg/refs"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file to read settings from. Flags given on the command line take precedence.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("strace", false, "log every syscall with its arguments and result.")
	flagSet.Var(leakModePtr(refs.NoLeakChecking), "ref-leak-mode", "sets reference leak check mode: disabled (default), log-names, panic.")

	// Flags that control kernel limits.
	flagSet.Int("max-open-files", 0, "maximum number of open files per process. 0 selects the kernel default.")
	flagSet.Int("max-threads", 0, "maximum number of threads per process besides the main thread. 0 selects the kernel default.")
}

func leakModePtr(v refs.LeakMode) *refs.LeakMode {
	return &v
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if the config flag names one, the configuration file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		setField(obj.Field(i), lookup(flagSet, name))
	}

	if conf.ConfigFile != "" {
		md, err := toml.DecodeFile(conf.ConfigFile, conf)
		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", conf.ConfigFile, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown keys in config file %q: %s", conf.ConfigFile, strings.Join(keys, ", "))
		}

		// Flags set on the command line override the file.
		set := make(map[string]bool)
		flagSet.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
		for i := 0; i < st.NumField(); i++ {
			name, ok := st.Field(i).Tag.Lookup("flag")
			if !ok || !set[name] {
				continue
			}
			setField(obj.Field(i), lookup(flagSet, name))
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func lookup(flagSet *flag.FlagSet, name string) *flag.Flag {
	fl := flagSet.Lookup(name)
	if fl == nil {
		panic(fmt.Sprintf("Flag %q not found", name))
	}
	return fl
}

func setField(field reflect.Value, fl *flag.Flag) {
	x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
	field.Set(x)
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Settings at their default value are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))
		fl := lookup(flagSet, name)
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
