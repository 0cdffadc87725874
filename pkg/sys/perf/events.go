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
	"fmt"
	"strconv"
	"strings"
)

// Raw PMU event codes (event | umask<<8). Same encoding on Skylake-X and
// Tiger Lake.
const (
	// MEM_LOAD_RETIRED.L3_MISS
	RawEventL3Miss uint64 = 0xd1 | (0x20 << 8)

	// MEM_INST_RETIRED.ALL_STORES
	RawEventAllStores uint64 = 0xd0 | (0x82 << 8)
)

var namedRawEvents = map[string]uint64{
	"l3-miss":    RawEventL3Miss,
	"all-stores": RawEventAllStores,
}

// DefaultSampleType is the field mask requested for address sampling.
const DefaultSampleType = PERF_SAMPLE_IP | PERF_SAMPLE_TID |
	PERF_SAMPLE_TIME | PERF_SAMPLE_ADDR

// ParseRawEvent resolves an event name to a raw PMU config value. Known
// names are "l3-miss" and "all-stores"; anything else must be written the
// way perf(1) spells raw events, e.g. "r20d1".
func ParseRawEvent(name string) (uint64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if config, ok := namedRawEvents[name]; ok {
		return config, nil
	}

	if !strings.HasPrefix(name, "r") || len(name) < 2 {
		return 0, fmt.Errorf("unknown event %q", name)
	}
	config, err := strconv.ParseUint(name[1:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid raw event %q: %v", name, err)
	}
	return config, nil
}

// NewAddressSamplingAttr returns an EventAttr that samples the raw PMU
// event config every samplePeriod occurrences, recording the instruction
// pointer, thread, time and data address in user space only.
func NewAddressSamplingAttr(config uint64, samplePeriod uint64) (*EventAttr, error) {
	if samplePeriod == 0 {
		return nil, errors.New("sample period must be greater than zero")
	}

	wakeupEvents := uint32(samplePeriod / 4)
	if wakeupEvents == 0 {
		wakeupEvents = 1
	}

	return &EventAttr{
		Type:                   PERF_TYPE_RAW,
		Config:                 config,
		SamplePeriod:           samplePeriod,
		SampleType:             DefaultSampleType,
		Disabled:               true,
		ExcludeKernel:          true,
		ExcludeHV:              true,
		ExcludeCallchainKernel: true,
		ExcludeCallchainUser:   true,
		PreciseIP:              2,
		WakeupEvents:           wakeupEvents,
	}, nil
}
