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

package procfs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
)

var (
	// Default procfs mounted on /proc
	procFSOnce sync.Once
	procFS     *FileSystem
)

// FileSystem represents data accessible through the proc pseudo-filesystem.
type FileSystem struct {
	MountPoint string

	numCPU     int
	numCPUOnce sync.Once
}

// NewFileSystem returns a new concrete procfs FileSystem instance attached to
// the specified mount point. If the mount point is unspecified, the shared
// instance for the default /proc mount point is returned.
func NewFileSystem(mountPoint string) (*FileSystem, error) {
	if mountPoint == "" {
		procFSOnce.Do(func() {
			var err error
			if procFS, err = NewFileSystem("/proc"); err != nil {
				glog.Fatal(err)
			}
		})
		return procFS, nil
	}

	fi, err := os.Stat(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("Cannot stat mount point %q: %v",
			mountPoint, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("Mount point %q is not a directory",
			mountPoint)
	}

	return &FileSystem{
		MountPoint: mountPoint,
	}, nil
}

// ReadFile returns the contents of the procfs file indicated by the
// given relative path.
func (fs *FileSystem) ReadFile(relativePath string) ([]byte, error) {
	filename := filepath.Join(fs.MountPoint, relativePath)
	return os.ReadFile(filename)
}

// NumCPU returns the number of CPUs on the system. This differs from
// runtime.NumCPU in that runtime.NumCPU returns the number of logical CPUs
// available to the calling process. It returns 0 if cpuinfo cannot be read.
func (fs *FileSystem) NumCPU() int {
	fs.numCPUOnce.Do(func() {
		data, err := fs.ReadFile("cpuinfo")
		if err != nil {
			glog.Warningf("Cannot read cpuinfo: %v", err)
			return
		}
		ncpu := 0
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			x := strings.Split(scanner.Text(), ":")
			if len(x) == 2 && strings.TrimSpace(x[0]) == "processor" {
				ncpu++
			}
		}
		if err := scanner.Err(); err != nil {
			glog.Warningf("Could not parse cpuinfo data: %v", err)
		}
		fs.numCPU = ncpu
	})

	return fs.numCPU
}

// PerfEventParanoid returns the value of kernel.perf_event_paranoid, which
// limits what unprivileged users may do with perf_event_open().
func (fs *FileSystem) PerfEventParanoid() (int, error) {
	data, err := fs.ReadFile("sys/kernel/perf_event_paranoid")
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("Cannot parse perf_event_paranoid: %v", err)
	}
	return value, nil
}
