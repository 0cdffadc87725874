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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethandmd/tracem/pkg/sys/proc"

	"github.com/gobwas/glob"
	"github.com/golang/glog"
)

// ProcessCommand returns the command name of the specified process, as the
// kernel reports it in comm.
func (fs *FileSystem) ProcessCommand(pid int) (string, error) {
	comm, err := fs.ReadFile(fmt.Sprintf("%d/comm", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(comm)), nil
}

// ProcessCommandLine returns the full command-line arguments of the
// specified process.
func (fs *FileSystem) ProcessCommandLine(pid int) ([]string, error) {
	filename := fmt.Sprintf("%d/cmdline", pid)
	cmdline, err := fs.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var commandLine []string
	reader := bufio.NewReader(bytes.NewReader(cmdline[:]))
	for {
		s, err := reader.ReadString(0)
		if err != nil || len(s) <= 1 {
			break
		}

		commandLine = append(commandLine, s[:len(s)-1])
	}

	return commandLine, nil
}

// WalkProcesses calls walkFunc for each process present in the proc
// FileSystem, in no particular order.
func (fs *FileSystem) WalkProcesses(walkFunc proc.ProcessWalkFunc) error {
	d, err := os.Open(fs.MountPoint)
	if err != nil {
		return fmt.Errorf("Cannot open %q: %v", fs.MountPoint, err)
	}
	procNames, err := d.Readdirnames(0)
	d.Close()
	if err != nil {
		return fmt.Errorf("Cannot read directory names from %q: %v",
			fs.MountPoint, err)
	}

	for _, procName := range procNames {
		i, err := strconv.ParseInt(procName, 10, 32)
		if err != nil {
			continue
		}
		if !walkFunc(int(i)) {
			return nil
		}
	}

	return nil
}

// FindProcesses returns the pids of every process whose command name
// matches the glob pattern, in ascending order.
func (fs *FileSystem) FindProcesses(pattern string) ([]int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("Invalid process pattern %q: %v", pattern, err)
	}

	var pids []int
	err = fs.WalkProcesses(func(pid int) bool {
		comm, err := fs.ProcessCommand(pid)
		if err != nil {
			// This is not fatal; the process may have gone away
			glog.V(2).Infof("Cannot read comm of pid %d: %v", pid, err)
			return true
		}
		if g.Match(comm) {
			pids = append(pids, pid)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.Ints(pids)
	return pids, nil
}

// ReadProcessStatus reads the status of a process, storing the information
// into the supplied struct. The supplied struct must be a pointer. Fields
// are matched by their whole tag, e.g. `Threads`.
func (fs *FileSystem) ReadProcessStatus(pid int, i interface{}) error {
	filename := fmt.Sprintf("%d/status", pid)
	f, err := os.Open(filepath.Join(fs.MountPoint, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	v := reflect.ValueOf(i)
	if v.Kind() != reflect.Ptr {
		return errors.New("Destination must be a pointer to struct")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("Destination pointer must be to a struct")
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			field := findFieldByTag(v, parts[0])
			if !field.IsValid() {
				continue
			}
			err := setValueFromString(field, parts[0],
				strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func findFieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := t.NumField() - 1; i >= 0; i-- {
		f := t.Field(i)
		if f.Tag == reflect.StructTag(name) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func setValueFromString(v reflect.Value, name, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if x, err := strconv.ParseInt(s, 0, 64); err == nil {
			v.SetInt(x)
		} else {
			return err
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		if x, err := strconv.ParseUint(s, 0, 64); err == nil {
			v.SetUint(x)
		} else {
			return err
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Slice {
			return fmt.Errorf("Nested arrays are unsupported (%s)", name)
		}
		l := strings.Fields(s)
		a := reflect.MakeSlice(v.Type(), len(l), len(l))
		for i, x := range l {
			n := fmt.Sprintf("%s[%d]", name, i)
			if err := setValueFromString(a.Index(i), n, x); err != nil {
				return err
			}
		}
		v.Set(a)
	default:
		return fmt.Errorf("Cannot set field %s", name)
	}

	return nil
}
