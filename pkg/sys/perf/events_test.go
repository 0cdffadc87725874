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
	"time"

	"github.com/ethandmd/tracem/pkg/sys/perf/perftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawEvent(t *testing.T) {
	testCases := map[string]uint64{
		"l3-miss":    0x20d1,
		"L3-Miss":    0x20d1,
		"all-stores": 0x82d0,
		"r20d1":      0x20d1,
		" r1c0 ":     0x1c0,
	}
	for name, want := range testCases {
		config, err := ParseRawEvent(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, config, name)
	}

	for _, name := range []string{"", "r", "cycles", "rxyz"} {
		_, err := ParseRawEvent(name)
		assert.Error(t, err, name)
	}
}

func TestNewAddressSamplingAttr(t *testing.T) {
	attr, err := NewAddressSamplingAttr(RawEventAllStores, 2)
	require.NoError(t, err)
	assert.Equal(t, PERF_TYPE_RAW, attr.Type)
	assert.Equal(t, uint64(2), attr.SamplePeriod)
	assert.Equal(t, uint32(1), attr.WakeupEvents)
	assert.Equal(t, uint8(2), attr.PreciseIP)
	assert.True(t, attr.ExcludeKernel)

	_, err = NewAddressSamplingAttr(RawEventAllStores, 0)
	assert.Error(t, err)
}

func TestNewEventGroup(t *testing.T) {
	_, err := NewEventGroup(nil)
	assert.Error(t, err)

	l3, err := NewAddressSamplingAttr(RawEventL3Miss, 1000)
	require.NoError(t, err)
	eg, err := NewEventGroup([]*EventAttr{l3})
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleType, eg.SampleType())

	l3, _ = NewAddressSamplingAttr(RawEventL3Miss, 1000)
	stores, _ := NewAddressSamplingAttr(RawEventAllStores, 1000)
	eg, err = NewEventGroup([]*EventAttr{l3, stores})
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleType|PERF_SAMPLE_IDENTIFIER, eg.SampleType())
	assert.Equal(t, eg.SampleType(), stores.SampleType)

	l3, _ = NewAddressSamplingAttr(RawEventL3Miss, 1000)
	stores, _ = NewAddressSamplingAttr(RawEventAllStores, 1000)
	stores.SampleType |= PERF_SAMPLE_CPU
	_, err = NewEventGroup([]*EventAttr{l3, stores})
	assert.Error(t, err)

	l3, _ = NewAddressSamplingAttr(RawEventL3Miss, 1000)
	l3.SampleType |= PERF_SAMPLE_CALLCHAIN
	_, err = NewEventGroup([]*EventAttr{l3})
	assert.True(t, errors.Is(err, ErrUnsupportedSampleType), "got %v", err)
}

func TestEventGroupNotOpen(t *testing.T) {
	l3, err := NewAddressSamplingAttr(RawEventL3Miss, 1000)
	require.NoError(t, err)
	eg, err := NewEventGroup([]*EventAttr{l3})
	require.NoError(t, err)

	assert.Error(t, eg.Open(-1, -1))
	assert.Error(t, eg.Enable())
	assert.Error(t, eg.Wait(time.Millisecond))
	assert.Error(t, eg.Read(func(Sample, error) error { return nil }))
	assert.NoError(t, eg.Wakeup())
	assert.NoError(t, eg.Close())
}

func TestMemoryStream(t *testing.T) {
	tr := perftest.NewRing(256)
	tr.Write(encodeAddressSample(10, 20, 20, 30, 0x1000))
	tr.Write(encodeRecord(PERF_RECORD_LOST, uint64(0), uint64(3)))

	ms, err := NewMemoryStream(tr.Memory(), testPageSize, DefaultSampleType)
	require.NoError(t, err)
	assert.NoError(t, ms.Wait(0))

	var samples []Sample
	err = ms.Read(func(sample Sample, err error) error {
		require.NoError(t, err)
		samples = append(samples, sample)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.IsType(t, &SampleRecord{}, samples[0].Record)
	assert.IsType(t, &LostRecord{}, samples[1].Record)

	assert.Equal(t, ms.Head(), ms.Tail())
	assert.Equal(t, ErrHangup, ms.Wait(time.Second))

	_, err = NewMemoryStream(tr.Memory(), testPageSize, PERF_SAMPLE_RAW)
	assert.Error(t, err)
}
