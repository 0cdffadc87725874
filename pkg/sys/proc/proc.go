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

package proc

// FileSystem is an interface for obtaining system information from the Linux
// proc filesystem.
type FileSystem interface {
	// NumCPU returns the number of CPUs on the system. This differs from
	// runtime.NumCPU in that runtime.NumCPU returns the number of logical
	// CPUs available to the calling process.
	NumCPU() int

	// PerfEventParanoid returns the kernel.perf_event_paranoid sysctl.
	PerfEventParanoid() (int, error)

	// ProcessCommand returns the command name of the specified process.
	ProcessCommand(pid int) (string, error)

	// ProcessCommandLine returns the full command-line arguments of the
	// specified process.
	ProcessCommandLine(pid int) ([]string, error)

	// FindProcesses returns the pids of every process whose command name
	// matches a glob pattern.
	FindProcesses(pattern string) ([]int, error)

	// WalkProcesses calls the specified function for each process present
	// in the proc FileSystem.
	WalkProcesses(walkFunc ProcessWalkFunc) error

	// ReadProcessStatus reads the status of a process, storing the
	// information into the supplied struct. The supplied struct must be a
	// pointer.
	ReadProcessStatus(pid int, i interface{}) error
}

// ProcessWalkFunc is a function that is called by WalkProcesses for each
// process encountered during the walk. The return is a boolean indicator of
// whether walk should continue.
type ProcessWalkFunc func(pid int) bool

// ProcessStatus holds the fields of /proc/[pid]/status that are logged
// when sampling starts.
type ProcessStatus struct {
	Name    string `Name`
	State   string `State`
	Threads int    `Threads`
}
