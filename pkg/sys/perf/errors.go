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
)

var (
	// ErrInvalidMmapSize is returned when a ring buffer mapping is not one
	// metadata page followed by a power of two number of data pages.
	ErrInvalidMmapSize = errors.New("invalid perf ring buffer size")

	// ErrUnsupportedSampleType is returned when a sample type requests
	// fields that cannot be decoded as fixed width values.
	ErrUnsupportedSampleType = errors.New("unsupported sample type")

	// ErrCorruptRecord is returned when a record header declares a size
	// that cannot be valid. The ring buffer cannot be trusted afterwards.
	ErrCorruptRecord = errors.New("corrupt perf record")

	// ErrTruncatedRecord is returned by the decoder when a record is
	// smaller than the fields its sample type implies. Only that record
	// is lost.
	ErrTruncatedRecord = errors.New("truncated perf record")

	// ErrOverrun is returned when the producer has moved past data the
	// consumer has not read yet.
	ErrOverrun = errors.New("perf ring buffer overrun")

	// ErrHangup is returned by Wait when the monitored event will not
	// produce any more records, e.g. because the target process exited.
	ErrHangup = errors.New("perf event hung up")
)

// OverrunError describes the cursor positions observed when an overrun was
// detected. It matches ErrOverrun with errors.Is.
type OverrunError struct {
	Head uint64
	Tail uint64
	Size uint64
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("%s: head=%d tail=%d size=%d", ErrOverrun,
		e.Head, e.Tail, e.Size)
}

// Unwrap returns ErrOverrun.
func (e *OverrunError) Unwrap() error {
	return ErrOverrun
}

// Lost returns the number of unread bytes that were discarded.
func (e *OverrunError) Lost() uint64 {
	if e.Head < e.Tail {
		return 0
	}
	return e.Head - e.Tail
}
