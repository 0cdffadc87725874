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
	"errors"
	"testing"
	"unsafe"

	"github.com/ethandmd/tracem/pkg/sys/perf/perftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, rb *ringBuffer) ([][]byte, error) {
	var records [][]byte
	err := rb.read(func(record []byte) error {
		records = append(records, append([]byte(nil), record...))
		return nil
	})
	return records, err
}

func TestRingBufferReadInOrder(t *testing.T) {
	tr := perftest.NewRing(256)
	rb := newTestRingBuffer(t, tr)

	first := encodeAddressSample(1, 2, 3, 4, 5)
	second := encodeRecord(PERF_RECORD_LOST, uint64(7), uint64(11))
	tr.Write(first)
	tr.Write(second)

	records, err := collect(t, rb)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0])
	assert.Equal(t, second, records[1])
	assert.Equal(t, tr.Head(), tr.Tail())

	// Nothing new has been produced.
	records, err = collect(t, rb)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRingBufferWraparound(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	// A 40 byte record starting 16 bytes before the end of the region.
	tr.SetCursors(48, 48)
	record := encodeAddressSample(0x401000, 100, 101, 999, 0x7fff0000)
	tr.Write(record)

	records, err := collect(t, rb)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])
	assert.Equal(t, uint64(88), tr.Tail())
}

func TestRingBufferWrapsHeader(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	// The header itself straddles the end of the region.
	tr.SetCursors(60, 60)
	record := encodeAddressSample(1, 1, 1, 1, 0x1000)
	tr.Write(record)

	records, err := collect(t, rb)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])
}

func TestRingBufferCursorsAreMonotonic(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	var last uint64
	for i := 0; i < 20; i++ {
		tr.Write(encodeAddressSample(uint64(i), 1, 1, uint64(i), 0x1000))
		records, err := collect(t, rb)
		require.NoError(t, err)
		require.Len(t, records, 1)

		sample, err := DecodeSample(records[0], DefaultSampleType)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), sample.Record.(*SampleRecord).IP)

		tail := tr.Tail()
		assert.True(t, tail > last)
		assert.Equal(t, tr.Head(), tail)
		last = tail
	}
}

func TestRingBufferZeroSizeRecord(t *testing.T) {
	tr := perftest.NewRing(256)
	rb := newTestRingBuffer(t, tr)

	tr.Write(encodeHeader(PERF_RECORD_SAMPLE, 0))
	tr.Write(make([]byte, 8))

	_, err := collect(t, rb)
	assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.Equal(t, uint64(0), tr.Tail())
}

func TestRingBufferOversizeRecord(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	tr.Write(encodeHeader(PERF_RECORD_SAMPLE, 128))

	_, err := collect(t, rb)
	assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.Equal(t, uint64(0), tr.Tail())
}

func TestRingBufferOverrun(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	// The producer lapped the consumer.
	tr.SetCursors(200, 8)

	_, err := collect(t, rb)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverrun))

	var overrun *OverrunError
	require.True(t, errors.As(err, &overrun))
	assert.Equal(t, uint64(192), overrun.Lost())
	assert.Equal(t, uint64(200), tr.Tail())

	// The consumer keeps going after resynchronizing.
	record := encodeAddressSample(1, 2, 3, 4, 0x1000)
	tr.Write(record)
	records, err := collect(t, rb)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])
}

func TestRingBufferRecordPastHead(t *testing.T) {
	tr := perftest.NewRing(256)
	rb := newTestRingBuffer(t, tr)

	// The header claims more bytes than have been published.
	tr.Write(encodeHeader(PERF_RECORD_SAMPLE, 40))
	tr.Write(make([]byte, 8))

	_, err := collect(t, rb)
	assert.True(t, errors.Is(err, ErrOverrun), "got %v", err)
	assert.Equal(t, tr.Head(), tr.Tail())
}

func TestRingBufferHeadBehindTail(t *testing.T) {
	tr := perftest.NewRing(64)
	rb := newTestRingBuffer(t, tr)

	tr.SetCursors(16, 40)

	_, err := collect(t, rb)
	assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.False(t, errors.Is(err, ErrOverrun))
	assert.Equal(t, uint64(40), tr.Tail())
}

func TestRingBufferMisalignedRecord(t *testing.T) {
	tr := perftest.NewRing(256)
	rb := newTestRingBuffer(t, tr)

	tr.Write(perftest.RecordWithSize(PERF_RECORD_SAMPLE, 12, make([]byte, 4)))
	tr.Write(encodeAddressSample(1, 2, 3, 4, 0x1000))

	records, err := collect(t, rb)
	assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.Empty(t, records)
	assert.Equal(t, uint64(0), tr.Tail())
}

func TestRingBufferCallbackError(t *testing.T) {
	tr := perftest.NewRing(256)
	rb := newTestRingBuffer(t, tr)

	tr.Write(encodeAddressSample(1, 2, 3, 4, 5))
	tr.Write(encodeAddressSample(6, 7, 8, 9, 10))

	stop := errors.New("stop")
	calls := 0
	err := rb.read(func(record []byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(40), tr.Tail())
}

func TestRingBufferFromMemoryValidation(t *testing.T) {
	tr := perftest.NewRing(64)
	ringMetadata(tr).DataSize = 48
	_, err := newRingBufferFromMemory(tr.Memory(), testPageSize)
	assert.True(t, errors.Is(err, ErrInvalidMmapSize), "got %v", err)

	ringMetadata(tr).DataSize = 128
	_, err = newRingBufferFromMemory(tr.Memory(), testPageSize)
	assert.True(t, errors.Is(err, ErrInvalidMmapSize), "got %v", err)

	_, err = newRingBufferFromMemory(tr.Memory()[:testPageSize], testPageSize)
	assert.True(t, errors.Is(err, ErrInvalidMmapSize), "got %v", err)
}

func TestRingBufferLegacyMetadata(t *testing.T) {
	words := make([]uint64, 2*testPageSize/8)
	memory := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)

	rb, err := newRingBufferFromMemory(memory, testPageSize)
	require.NoError(t, err)
	assert.Len(t, rb.data, testPageSize)
	assert.Equal(t, uint64(testPageSize-1), rb.mask)
}

func TestNewRingBufferPageCount(t *testing.T) {
	for _, pages := range []int{0, -1, 3, 12} {
		_, err := newRingBuffer(-1, pages)
		assert.True(t, errors.Is(err, ErrInvalidMmapSize), "%d pages: %v", pages, err)
	}
}
