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

package log

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// jsonLog is one line of JSON output.
type jsonLog struct {
	Msg    string    `json:"msg"`
	Level  string    `json:"level"`
	Time   time.Time `json:"time"`
	Thread string    `json:"thread,omitempty"`
	Caller string    `json:"caller,omitempty"`
}

// splitThread separates the "[tid:pid] " prefix that thread loggers put in
// front of their messages from the rest of msg.
func splitThread(msg string) (thread, rest string) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg
	}
	end := strings.Index(msg, "] ")
	if end < 0 {
		return "", msg
	}
	id := msg[1:end]
	if strings.Count(id, ":") != 1 || strings.Trim(id, "-0123456789:") != "" {
		return "", msg
	}
	return id, msg[end+2:]
}

// JSONEmitter logs messages in json format, one object per line. Messages of
// user threads carry the thread and process ids in a separate field.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	thread, msg := splitThread(fmt.Sprintf(format, v...))
	j := jsonLog{
		Msg:    msg,
		Level:  strings.ToLower(level.String()),
		Time:   timestamp,
		Thread: thread,
	}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(file, byte('/')); slash >= 0 {
			file = file[slash+1:]
		}
		j.Caller = fmt.Sprintf("%s:%d", file, line)
	}
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	e.Writer.Write(b)
}
