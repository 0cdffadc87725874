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
	"unsafe"

	"github.com/ethandmd/tracem/pkg/sys/perf/perftest"

	"github.com/stretchr/testify/require"
)

const testPageSize = perftest.PageSize

func newTestRingBuffer(t *testing.T, ring *perftest.Ring) *ringBuffer {
	rb, err := newRingBufferFromMemory(ring.Memory(), testPageSize)
	require.NoError(t, err)
	return rb
}

// ringMetadata returns the metadata page of ring for tests that need to
// corrupt it.
func ringMetadata(ring *perftest.Ring) *metadata {
	return (*metadata)(unsafe.Pointer(&ring.Memory()[0]))
}

func encodeRecord(recordType uint32, payload ...interface{}) []byte {
	return perftest.Record(recordType, payload...)
}

// encodeAddressSample encodes a record for DefaultSampleType.
func encodeAddressSample(ip uint64, pid, tid uint32, time, addr uint64) []byte {
	return encodeRecord(PERF_RECORD_SAMPLE, ip, pid, tid, time, addr)
}

func encodeHeader(recordType uint32, size uint16) []byte {
	return perftest.RecordWithSize(recordType, size, nil)
}
