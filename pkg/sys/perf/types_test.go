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
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventAttrWriteSizes(t *testing.T) {
	// Sizes are chosen based on fields in use. New fields have been added
	// in different kernel versions.
	sizeTestCases := []struct {
		size uint32
		attr EventAttr
	}{
		{sizeofPerfEventAttrVer0, EventAttr{}},
		{sizeofPerfEventAttrVer1, EventAttr{Type: PERF_TYPE_BREAKPOINT}},
		{sizeofPerfEventAttrVer1, EventAttr{Config2: 8}},
		{sizeofPerfEventAttrVer2, EventAttr{SampleType: PERF_SAMPLE_BRANCH_STACK}},
		{sizeofPerfEventAttrVer3, EventAttr{UseClockID: true}},
		{sizeofPerfEventAttrVer4, EventAttr{SampleType: PERF_SAMPLE_REGS_INTR}},
		{sizeofPerfEventAttrVer5, EventAttr{SampleMaxStack: 32768}},
	}

	for _, tc := range sizeTestCases {
		buf := &bytes.Buffer{}
		require.NoError(t, tc.attr.write(buf))

		b := buf.Bytes()
		actualSize := byteOrder.Uint32(b[4:])
		assert.Equal(t, tc.size, actualSize)
		assert.True(t, int(actualSize) <= len(b),
			"attr.Size %d larger than bytes written %d", actualSize, len(b))
	}
}

func TestEventAttrWriteFailures(t *testing.T) {
	failAttrs := []EventAttr{
		{Freq: false, SampleFreq: 1},
		{Freq: true, SamplePeriod: 1},
		{Watermark: false, WakeupWatermark: 1},
		{Watermark: true, WakeupEvents: 1},
		{Type: PERF_TYPE_BREAKPOINT, Config1: 1},
		{Type: PERF_TYPE_RAW, BPAddr: 1},
		{PreciseIP: 4},
	}
	for _, attr := range failAttrs {
		err := attr.write(&bytes.Buffer{})
		assert.Error(t, err, "%+v", attr)
	}
}

func TestAddressSamplingAttrEncoding(t *testing.T) {
	attr, err := NewAddressSamplingAttr(RawEventL3Miss, 1000)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, attr.write(buf))
	b := buf.Bytes()

	assert.Equal(t, PERF_TYPE_RAW, byteOrder.Uint32(b[0:]))
	assert.Equal(t, uint64(0x20d1), byteOrder.Uint64(b[8:]))
	assert.Equal(t, uint64(1000), byteOrder.Uint64(b[16:]))
	assert.Equal(t, DefaultSampleType, byteOrder.Uint64(b[24:]))

	bitfield := eventAttrBitfield(byteOrder.Uint64(b[40:]))
	for _, bit := range []uint64{
		eaDisabled, eaExcludeKernel, eaExcludeHV, eaPreciseIP2,
		eaExcludeCallchainKernel, eaExcludeCallchainUser,
	} {
		assert.NotZero(t, uint64(bitfield)&bit, "bit %#x not set", bit)
	}
	assert.Zero(t, uint64(bitfield)&eaPreciseIP1)
	assert.Zero(t, uint64(bitfield)&eaFreq)

	assert.Equal(t, uint32(250), byteOrder.Uint32(b[48:]))
}

func TestMetadataLayout(t *testing.T) {
	var m metadata
	assert.Equal(t, uintptr(1024), unsafe.Offsetof(m.DataHead))
	assert.Equal(t, uintptr(1032), unsafe.Offsetof(m.DataTail))
	assert.Equal(t, uintptr(1040), unsafe.Offsetof(m.DataOffset))
	assert.Equal(t, uintptr(1048), unsafe.Offsetof(m.DataSize))
}
