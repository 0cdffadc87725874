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

package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEventGroupWait(t *testing.T) {
	// The read end of a pipe stands in for the counter fd.
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK))
	wakeup, err := newWakeupPipe()
	require.NoError(t, err)

	eg := &EventGroup{fds: []int{p[0]}, wakeup: wakeup}
	defer eg.Close()

	start := time.Now()
	require.NoError(t, eg.Wait(20*time.Millisecond))
	assert.True(t, time.Since(start) >= 10*time.Millisecond,
		"Wait returned after %s", time.Since(start))

	_, err = unix.Write(p[1], []byte{1})
	require.NoError(t, err)
	require.NoError(t, eg.Wait(-1))
	var buf [1]byte
	_, err = unix.Read(p[0], buf[:])
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		result <- eg.Wait(-1)
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, eg.Wakeup())

	select {
	case err = <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Wakeup")
	}

	// Once woken, waits no longer block.
	assert.NoError(t, eg.Wait(-1))
	assert.NoError(t, eg.Wakeup())

	require.NoError(t, unix.Close(p[1]))
	assert.Equal(t, ErrHangup, eg.Wait(-1))
}
