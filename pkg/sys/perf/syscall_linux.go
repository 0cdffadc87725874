// Copyright 2017 Capsule8, Inc.
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

//go:build linux
// +build linux

package perf

import (
	"bytes"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func enable(fd int, flags uintptr) error {
	return unix.IoctlSetInt(fd, uint(PERF_EVENT_IOC_ENABLE), int(flags))
}

func disable(fd int, flags uintptr) error {
	return unix.IoctlSetInt(fd, uint(PERF_EVENT_IOC_DISABLE), int(flags))
}

func reset(fd int, flags uintptr) error {
	return unix.IoctlSetInt(fd, uint(PERF_EVENT_IOC_RESET), int(flags))
}

func setOutput(fd int, outputFd int) error {
	return unix.IoctlSetInt(fd, uint(PERF_EVENT_IOC_SET_OUTPUT), outputFd)
}

func streamID(fd int) (uint64, error) {
	var id uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd),
		PERF_EVENT_IOC_ID, uintptr(unsafe.Pointer(&id)))
	if errno != 0 {
		return 0, os.NewSyscallError("ioctl", errno)
	}
	return id, nil
}

func open(attr *EventAttr, pid int, cpu int, groupFd int, flags uintptr) (int, error) {
	buf := new(bytes.Buffer)
	if err := attr.write(buf); err != nil {
		return -1, err
	}
	b := buf.Bytes()

	r1, _, errno := unix.Syscall6(unix.SYS_PERF_EVENT_OPEN,
		uintptr(unsafe.Pointer(&b[0])), uintptr(pid), uintptr(cpu),
		uintptr(groupFd), flags, 0)
	if errno != 0 {
		return -1, os.NewSyscallError("perf_event_open", errno)
	}
	return int(r1), nil
}

func mmap(fd int, length int) ([]byte, error) {
	return unix.Mmap(fd, 0, length, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

func newWakeupPipe() ([2]int, error) {
	var p [2]int
	err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK)
	return p, err
}

// poll waits for fd to become readable or for the wakeup pipe to be
// written to or closed. It returns whether fd is readable and whether the
// kernel reported a hangup on it.
func poll(fd int, wakeFd int, timeoutMillis int) (ready bool, hup bool, err error) {
	pollFds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
		{Fd: int32(wakeFd), Events: unix.POLLIN},
	}

	n, err := unix.Poll(pollFds, timeoutMillis)
	if err == unix.EINTR {
		return false, false, nil
	}
	if err != nil {
		return false, false, os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return false, false, nil
	}

	ready = pollFds[0].Revents&unix.POLLIN != 0
	hup = pollFds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0
	return ready, hup, nil
}
