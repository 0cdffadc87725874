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

package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethandmd/tracem/pkg/config"
	"github.com/ethandmd/tracem/pkg/sys/perf"
	"github.com/ethandmd/tracem/pkg/sys/proc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFileSystem answers every process lookup with a fixed set of pids.
type fakeFileSystem struct {
	proc.FileSystem
	pids []int
}

func (fs *fakeFileSystem) FindProcesses(pattern string) ([]int, error) {
	return fs.pids, nil
}

func TestResolveTargetPid(t *testing.T) {
	fs := &fakeFileSystem{}

	pid, err := resolveTarget(fs, "", []string{"4242"})
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	for _, args := range [][]string{nil, {"0"}, {"-1"}, {"redis"}} {
		_, err = resolveTarget(fs, "", args)
		assert.Error(t, err, "%v", args)
	}
}

func TestResolveTargetMatch(t *testing.T) {
	pid, err := resolveTarget(&fakeFileSystem{pids: []int{812}}, "redis*", nil)
	require.NoError(t, err)
	assert.Equal(t, 812, pid)

	_, err = resolveTarget(&fakeFileSystem{}, "redis*", nil)
	assert.Error(t, err)

	_, err = resolveTarget(&fakeFileSystem{pids: []int{812, 1290}}, "redis*", nil)
	assert.Error(t, err)

	_, err = resolveTarget(&fakeFileSystem{pids: []int{812}}, "redis*", []string{"812"})
	assert.Error(t, err)
}

func TestNewEventAttrs(t *testing.T) {
	eventAttrs, err := newEventAttrs([]string{"l3-miss", "r82d0"}, 500)
	require.NoError(t, err)
	require.Len(t, eventAttrs, 2)
	assert.Equal(t, perf.RawEventL3Miss, eventAttrs[0].Config)
	assert.Equal(t, perf.RawEventAllStores, eventAttrs[1].Config)
	assert.Equal(t, uint64(500), eventAttrs[1].SamplePeriod)

	_, err = newEventAttrs([]string{"cycles"}, 500)
	assert.Error(t, err)
	_, err = newEventAttrs([]string{"l3-miss"}, 0)
	assert.Error(t, err)
}

func TestRootCommandFlags(t *testing.T) {
	saved := config.Global
	defer func() {
		config.Global = saved
	}()

	cmd := NewRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	err := cmd.ParseFlags([]string{
		"--period", "20000",
		"-e", "l3-miss,all-stores",
		"--cpu", "2",
		"--pages", "64",
		"--page-size", "2097152",
		"--wait", "spin",
		"--poll-timeout", "10ms",
		"--summary", "5",
		"--match", "redis*",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(20000), config.Global.SamplePeriod)
	assert.Equal(t, []string{"l3-miss", "all-stores"}, config.Global.Events)
	assert.Equal(t, 2, config.Global.CPU)
	assert.Equal(t, 64, config.Global.RingBufferNumPages)
	assert.Equal(t, 2097152, config.Global.PageSize)
	assert.Equal(t, config.WaitModeSpin, config.Global.WaitMode)
	assert.Equal(t, 10*time.Millisecond, config.Global.PollTimeout)
	assert.Equal(t, 5, config.Global.SummaryPages)
	assert.NoError(t, config.Validate())

	assert.NotNil(t, cmd.Flags().Lookup("v"), "glog flags are not bound")
}

func TestRootCommandInvalidConfig(t *testing.T) {
	saved := config.Global
	defer func() {
		config.Global = saved
	}()

	errOut := &bytes.Buffer{}
	cmd := NewRootCommand(&bytes.Buffer{}, errOut)
	cmd.SetArgs([]string{"--pages", "100", "1"})
	assert.Error(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "not a power of two")
}
