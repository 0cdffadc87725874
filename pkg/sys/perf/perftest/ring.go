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

// Package perftest provides an in-memory perf ring buffer for tests. It
// plays the kernel's part: records are appended at data_head and the
// memory can be handed to perf.NewMemoryStream.
package perftest

import (
	"bytes"
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// PageSize is the size of the metadata page of every Ring.
const PageSize = 4096

// Offsets of the cursor fields in perf_event_mmap_page.
const (
	dataHeadOffset   = 1024
	dataTailOffset   = 1032
	dataOffsetOffset = 1040
	dataSizeOffset   = 1048
)

const sizeofEventHeader = 8

var byteOrder = binary.NativeEndian

// Ring is a fake perf mapping: one metadata page followed by a data region.
type Ring struct {
	memory []byte
	data   []byte
}

// NewRing returns a Ring with dataSize bytes of data, which must be a
// power of two for the consumer to accept it.
func NewRing(dataSize int) *Ring {
	words := make([]uint64, (PageSize+dataSize+7)/8)
	memory := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), PageSize+dataSize)

	byteOrder.PutUint64(memory[dataOffsetOffset:], PageSize)
	byteOrder.PutUint64(memory[dataSizeOffset:], uint64(dataSize))

	return &Ring{
		memory: memory,
		data:   memory[PageSize:],
	}
}

// Memory returns the whole mapping, metadata page included.
func (r *Ring) Memory() []byte {
	return r.memory
}

func (r *Ring) cursor(offset int) *uint64 {
	return (*uint64)(unsafe.Pointer(&r.memory[offset]))
}

// Head returns data_head.
func (r *Ring) Head() uint64 {
	return atomic.LoadUint64(r.cursor(dataHeadOffset))
}

// Tail returns data_tail.
func (r *Ring) Tail() uint64 {
	return atomic.LoadUint64(r.cursor(dataTailOffset))
}

// SetCursors moves data_head and data_tail without touching the data.
func (r *Ring) SetCursors(head, tail uint64) {
	atomic.StoreUint64(r.cursor(dataTailOffset), tail)
	atomic.StoreUint64(r.cursor(dataHeadOffset), head)
}

// Write copies record in at data_head, wrapping at the end of the data
// region, and then publishes the new head.
func (r *Ring) Write(record []byte) {
	size := uint64(len(r.data))
	head := r.Head()
	for i, b := range record {
		r.data[(head+uint64(i))%size] = b
	}
	atomic.StoreUint64(r.cursor(dataHeadOffset), head+uint64(len(record)))
}

// Record encodes a record of the given type whose body is fields written
// in native byte order. The header size is computed from the body.
func Record(recordType uint32, fields ...interface{}) []byte {
	body := &bytes.Buffer{}
	for _, v := range fields {
		binary.Write(body, byteOrder, v)
	}
	return RecordWithSize(recordType, uint16(sizeofEventHeader+body.Len()),
		body.Bytes())
}

// RecordWithSize encodes a record whose header declares size regardless
// of how long body is. It is used to build malformed records.
func RecordWithSize(recordType uint32, size uint16, body []byte) []byte {
	record := make([]byte, sizeofEventHeader, sizeofEventHeader+len(body))
	byteOrder.PutUint32(record[0:], recordType)
	byteOrder.PutUint16(record[6:], size)
	return append(record, body...)
}
