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
	"time"
)

// MemoryStream reads records from a ring buffer that lives in memory the
// caller already owns, such as a mapping obtained elsewhere or a captured
// buffer image. It has the same Read/Wait/Wakeup surface as EventGroup.
// There is no producer behind it, so Wait reports ErrHangup once the
// buffer is drained.
type MemoryStream struct {
	rb         *ringBuffer
	sampleType uint64
}

// NewMemoryStream lays a stream over memory, whose first page must be laid
// out as a perf_event_mmap_page. memory must be 8 byte aligned.
func NewMemoryStream(memory []byte, pageSize int, sampleType uint64) (*MemoryStream, error) {
	if err := ValidateSampleType(sampleType); err != nil {
		return nil, err
	}
	rb, err := newRingBufferFromMemory(memory, pageSize)
	if err != nil {
		return nil, err
	}
	return &MemoryStream{
		rb:         rb,
		sampleType: sampleType,
	}, nil
}

// SampleType returns the field mask the stream is decoded with.
func (ms *MemoryStream) SampleType() uint64 {
	return ms.sampleType
}

// Read decodes every record currently in the buffer.
func (ms *MemoryStream) Read(f func(Sample, error) error) error {
	return ms.rb.readSamples(ms.sampleType, f)
}

// Wait returns ErrHangup when nothing is left to read.
func (ms *MemoryStream) Wait(timeout time.Duration) error {
	if ms.rb.dataHead() == ms.rb.dataTail() {
		return ErrHangup
	}
	return nil
}

// Wakeup does nothing; Wait never blocks.
func (ms *MemoryStream) Wakeup() error {
	return nil
}

// Head and Tail expose the cursors, mainly for diagnostics.
func (ms *MemoryStream) Head() uint64 { return ms.rb.dataHead() }

func (ms *MemoryStream) Tail() uint64 { return ms.rb.dataTail() }
