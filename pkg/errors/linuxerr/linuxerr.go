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

// Package linuxerr contains syscall error codes exported as an error interface
// pointers. This allows for fast comparison and return operations comperable
// to unix.Errno constants.
//
// The user ABI only distinguishes success from failure; the errno carried by
// a handler's error decides how the dispatcher reacts to it.
package linuxerr

import (
	"fmt"

	"golang.org/x/sys/unix"
	"pintos.dev/userprog/pkg/errors"
)

// The following errors are semantically identical to Errno of type unix.Errno
// or sycall.Errno. However, since the type are distinct ( these are
// *errors.Error), they are not directly comperable. However, the Errno method
// returns an Errno number such that the error can be compared to unix/syscall.Errno
// (e.g. unix.Errno(EPERM.Errno()) == unix.EPERM is true). Converting unix/syscall.Errno
// to the errors should be done via the lookup methods provided.
var (
	noError      *errors.Error = nil
	EPERM                      = errors.New(unix.EPERM, "operation not permitted")
	ENOENT                     = errors.New(unix.ENOENT, "no such file or directory")
	ESRCH                      = errors.New(unix.ESRCH, "no such process")
	EINTR                      = errors.New(unix.EINTR, "interrupted system call")
	E2BIG                      = errors.New(unix.E2BIG, "argument list too long")
	ENOEXEC                    = errors.New(unix.ENOEXEC, "exec format error")
	EBADF                      = errors.New(unix.EBADF, "bad file number")
	ECHILD                     = errors.New(unix.ECHILD, "no child processes")
	EAGAIN                     = errors.New(unix.EAGAIN, "try again")
	ENOMEM                     = errors.New(unix.ENOMEM, "out of memory")
	EFAULT                     = errors.New(unix.EFAULT, "bad address")
	EINVAL                     = errors.New(unix.EINVAL, "invalid argument")
	EMFILE                     = errors.New(unix.EMFILE, "too many open files")
	EEXIST                     = errors.New(unix.EEXIST, "file exists")
	EDEADLK                    = errors.New(unix.EDEADLK, "resource deadlock would occur")
	ENAMETOOLONG               = errors.New(unix.ENAMETOOLONG, "file name too long")
	ENOSYS                     = errors.New(unix.ENOSYS, "invalid system call number")
)

var errorTable = map[unix.Errno]*errors.Error{
	unix.EPERM:        EPERM,
	unix.ENOENT:       ENOENT,
	unix.ESRCH:        ESRCH,
	unix.EINTR:        EINTR,
	unix.E2BIG:        E2BIG,
	unix.ENOEXEC:      ENOEXEC,
	unix.EBADF:        EBADF,
	unix.ECHILD:       ECHILD,
	unix.EAGAIN:       EAGAIN,
	unix.ENOMEM:       ENOMEM,
	unix.EFAULT:       EFAULT,
	unix.EINVAL:       EINVAL,
	unix.EMFILE:       EMFILE,
	unix.EEXIST:       EEXIST,
	unix.EDEADLK:      EDEADLK,
	unix.ENAMETOOLONG: ENAMETOOLONG,
	unix.ENOSYS:       ENOSYS,
}

// ErrorFromUnix returns a linuxerr from a unix.Errno.
func ErrorFromUnix(err unix.Errno) error {
	if err == unix.Errno(0) {
		return nil
	}
	e, ok := errorTable[err]
	if !ok {
		panic(fmt.Sprintf("invalid error requested with errno: %v", err))
	}
	return e
}

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	return unixErr
}

// Equals compars a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	if err == nil {
		err = noError
	}
	return e == err || unixErr == err
}
