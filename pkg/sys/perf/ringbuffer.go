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
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/golang/glog"
)

// data_head continuously increases and is wrapped by the size of the data
// region; data_tail is written back by us to tell the kernel how far we have
// read. The region starts at data_offset, normally one page into the
// mapping, and is 2^n pages long.
type ringBuffer struct {
	memory   []byte
	metadata *metadata
	data     []byte
	mask     uint64

	// scratch holds records that wrap around the end of data
	scratch []byte

	unmapFn func([]byte) error
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// newRingBuffer maps the ring buffer of the perf event open on fd. The
// mapping is one metadata page followed by pageCount data pages.
func newRingBuffer(fd int, pageCount int) (*ringBuffer, error) {
	if pageCount <= 0 || !isPowerOfTwo(uint64(pageCount)) {
		return nil, fmt.Errorf("%w: %d data pages is not a power of two",
			ErrInvalidMmapSize, pageCount)
	}

	pageSize := os.Getpagesize()
	memory, err := mmap(fd, (pageCount+1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("mmap perf ring buffer: %w", err)
	}

	rb, err := newRingBufferFromMemory(memory, pageSize)
	if err != nil {
		munmap(memory)
		return nil, err
	}
	rb.unmapFn = munmap

	glog.V(1).Infof("Mapped %d byte perf ring buffer (version %d, data %d@%d)",
		len(memory), rb.metadata.Version, len(rb.data),
		len(memory)-len(rb.data))

	return rb, nil
}

// newRingBufferFromMemory lays a ringBuffer over an existing mapping. The
// first page must hold a perf_event_mmap_page.
func newRingBufferFromMemory(memory []byte, pageSize int) (*ringBuffer, error) {
	if pageSize <= 0 || len(memory) <= pageSize ||
		uintptr(len(memory)) < unsafe.Sizeof(metadata{}) {
		return nil, fmt.Errorf("%w: %d bytes with %d byte pages",
			ErrInvalidMmapSize, len(memory), pageSize)
	}
	if uintptr(unsafe.Pointer(&memory[0]))%8 != 0 {
		return nil, errors.New("perf ring buffer memory is not 8 byte aligned")
	}

	meta := (*metadata)(unsafe.Pointer(&memory[0]))

	// Kernels before 4.1 do not fill in data_offset and data_size.
	offset, size := meta.DataOffset, meta.DataSize
	if offset == 0 && size == 0 {
		offset = uint64(pageSize)
		size = uint64(len(memory) - pageSize)
	}
	if !isPowerOfTwo(size) || offset+size > uint64(len(memory)) {
		return nil, fmt.Errorf("%w: data %d@%d in %d byte mapping",
			ErrInvalidMmapSize, size, offset, len(memory))
	}

	return &ringBuffer{
		memory:   memory,
		metadata: meta,
		data:     memory[offset : offset+size],
		mask:     size - 1,
	}, nil
}

func (rb *ringBuffer) unmap() error {
	if rb.unmapFn == nil || rb.memory == nil {
		return nil
	}
	err := rb.unmapFn(rb.memory)
	rb.memory, rb.metadata, rb.data = nil, nil, nil
	return err
}

// dataHead loads the producer cursor. The load orders every later read of
// the data region after it.
func (rb *ringBuffer) dataHead() uint64 {
	return atomic.LoadUint64(&rb.metadata.DataHead)
}

func (rb *ringBuffer) dataTail() uint64 {
	return atomic.LoadUint64(&rb.metadata.DataTail)
}

// setDataTail publishes the consumer cursor. Everything before tail must
// have been read already; the kernel may overwrite it as soon as the store
// is visible.
func (rb *ringBuffer) setDataTail(tail uint64) {
	atomic.StoreUint64(&rb.metadata.DataTail, tail)
}

// copyAt copies len(dst) bytes starting at logical offset pos, wrapping
// around the end of the data region.
func (rb *ringBuffer) copyAt(dst []byte, pos uint64) {
	start := pos & rb.mask
	n := copy(dst, rb.data[start:])
	copy(dst[n:], rb.data)
}

// peek returns the record at tail without consuming it. head is the value
// most recently loaded with dataHead. The returned slice is only valid
// until the tail is advanced.
func (rb *ringBuffer) peek(head, tail uint64) ([]byte, error) {
	size := uint64(len(rb.data))
	if head < tail {
		return nil, fmt.Errorf("%w: head %d behind tail %d",
			ErrCorruptRecord, head, tail)
	}
	available := head - tail
	if available > size {
		return nil, &OverrunError{Head: head, Tail: tail, Size: size}
	}
	if available < sizeofEventHeader {
		return nil, fmt.Errorf("%w: %d bytes left before head",
			ErrCorruptRecord, available)
	}

	var header [sizeofEventHeader]byte
	rb.copyAt(header[:], tail)
	recordSize := uint64(byteOrder.Uint16(header[6:]))

	if recordSize < sizeofEventHeader || recordSize > size ||
		recordSize%8 != 0 {
		return nil, fmt.Errorf("%w: type %d size %d at tail %d",
			ErrCorruptRecord, byteOrder.Uint32(header[0:]),
			recordSize, tail)
	}
	if recordSize > available {
		// Advancing past this record would move tail beyond head.
		return nil, &OverrunError{Head: head, Tail: tail, Size: size}
	}

	start := tail & rb.mask
	if start+recordSize <= size {
		return rb.data[start : start+recordSize], nil
	}

	if uint64(cap(rb.scratch)) < recordSize {
		rb.scratch = make([]byte, recordSize)
	}
	record := rb.scratch[:recordSize]
	rb.copyAt(record, tail)
	return record, nil
}

// read calls f once for each record that was available when read was
// called, advancing the tail after each call returns. If f returns an error
// the record is not consumed and read stops. On overrun the tail is moved
// forward to head, discarding everything unread, and an *OverrunError is
// returned. The tail never moves backwards.
func (rb *ringBuffer) read(f func([]byte) error) error {
	head := rb.dataHead()
	tail := rb.dataTail()

	for tail != head {
		record, err := rb.peek(head, tail)
		if err != nil {
			var overrun *OverrunError
			if errors.As(err, &overrun) && head > tail {
				rb.setDataTail(head)
			}
			return err
		}

		if err = f(record); err != nil {
			return err
		}

		tail += uint64(len(record))
		rb.setDataTail(tail)
	}

	return nil
}

// readSamples decodes every available record with sampleType. Decode
// errors are handed to f together with the partially decoded sample; the
// record is consumed regardless.
func (rb *ringBuffer) readSamples(sampleType uint64, f func(Sample, error) error) error {
	return rb.read(func(data []byte) error {
		var sample Sample
		err := sample.read(data, sampleType)
		return f(sample, err)
	})
}
