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
	"encoding/binary"
	"fmt"
)

// Sample type bits whose fields are all fixed width and that can appear
// together without a variable length field in between.
const supportedSampleType = PERF_SAMPLE_IDENTIFIER | PERF_SAMPLE_IP |
	PERF_SAMPLE_TID | PERF_SAMPLE_TIME | PERF_SAMPLE_ADDR | PERF_SAMPLE_ID |
	PERF_SAMPLE_STREAM_ID | PERF_SAMPLE_CPU | PERF_SAMPLE_PERIOD |
	PERF_SAMPLE_WEIGHT | PERF_SAMPLE_DATA_SRC | PERF_SAMPLE_TRANSACTION |
	PERF_SAMPLE_PHYS_ADDR

// ValidateSampleType reports whether records produced with the given
// sample type can be decoded.
func ValidateSampleType(sampleType uint64) error {
	if bits := sampleType &^ supportedSampleType; bits != 0 {
		return fmt.Errorf("%w: bits %#x", ErrUnsupportedSampleType, bits)
	}
	return nil
}

// SampleRecord is a translation of the structure used by the Linux kernel for
// PERF_RECORD_SAMPLE samples into Go. Only the fields selected by the sample
// type are populated.
type SampleRecord struct {
	SampleID    uint64
	IP          uint64
	Pid         uint32
	Tid         uint32
	Time        uint64
	Addr        uint64
	ID          uint64
	StreamID    uint64
	CPU         uint32
	Period      uint64
	Weight      uint64
	DataSrc     uint64
	Transaction uint64
	PhysAddr    uint64
}

// LostRecord is a translation of the structure used by the Linux kernel for
// PERF_RECORD_LOST samples into Go.
type LostRecord struct {
	ID   uint64
	Lost uint64
}

// Sample is one record taken from a ring buffer. Record is a *SampleRecord
// for PERF_RECORD_SAMPLE, a *LostRecord for PERF_RECORD_LOST, and nil for
// every other record type, which callers are expected to skip.
type Sample struct {
	eventHeader
	Record interface{}
}

// Ignored reports whether the record carries nothing the decoder
// understands.
func (sample *Sample) Ignored() bool {
	return sample.Record == nil
}

// fieldReader reads fixed width fields in order. The first short read is
// remembered and every later read becomes a no-op.
type fieldReader struct {
	reader *bytes.Reader
	err    error
}

func (fr *fieldReader) read(v interface{}) {
	if fr.err != nil {
		return
	}
	if err := binary.Read(fr.reader, byteOrder, v); err != nil {
		fr.err = fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
}

func (fr *fieldReader) readIf(sampleType, bit uint64, v interface{}) {
	if sampleType&bit != 0 {
		fr.read(v)
	}
}

func (s *SampleRecord) read(fr *fieldReader, sampleType uint64) {
	var reserved uint32

	fr.readIf(sampleType, PERF_SAMPLE_IDENTIFIER, &s.SampleID)
	fr.readIf(sampleType, PERF_SAMPLE_IP, &s.IP)
	fr.readIf(sampleType, PERF_SAMPLE_TID, &s.Pid)
	fr.readIf(sampleType, PERF_SAMPLE_TID, &s.Tid)
	fr.readIf(sampleType, PERF_SAMPLE_TIME, &s.Time)
	fr.readIf(sampleType, PERF_SAMPLE_ADDR, &s.Addr)
	fr.readIf(sampleType, PERF_SAMPLE_ID, &s.ID)
	fr.readIf(sampleType, PERF_SAMPLE_STREAM_ID, &s.StreamID)
	fr.readIf(sampleType, PERF_SAMPLE_CPU, &s.CPU)
	fr.readIf(sampleType, PERF_SAMPLE_CPU, &reserved)
	fr.readIf(sampleType, PERF_SAMPLE_PERIOD, &s.Period)
	fr.readIf(sampleType, PERF_SAMPLE_WEIGHT, &s.Weight)
	fr.readIf(sampleType, PERF_SAMPLE_DATA_SRC, &s.DataSrc)
	fr.readIf(sampleType, PERF_SAMPLE_TRANSACTION, &s.Transaction)
	fr.readIf(sampleType, PERF_SAMPLE_PHYS_ADDR, &s.PhysAddr)
}

func (lr *LostRecord) read(fr *fieldReader) {
	fr.read(&lr.ID)
	fr.read(&lr.Lost)
}

// read decodes one record. data must start with the record header; bytes
// beyond the declared size are never looked at.
func (sample *Sample) read(data []byte, sampleType uint64) error {
	if len(data) < sizeofEventHeader {
		return fmt.Errorf("%w: %d bytes", ErrTruncatedRecord, len(data))
	}
	sample.Type = byteOrder.Uint32(data[0:])
	sample.Misc = byteOrder.Uint16(data[4:])
	sample.Size = byteOrder.Uint16(data[6:])

	if int(sample.Size) < sizeofEventHeader || int(sample.Size) > len(data) {
		return fmt.Errorf("%w: declared size %d, have %d bytes",
			ErrTruncatedRecord, sample.Size, len(data))
	}

	fr := fieldReader{
		reader: bytes.NewReader(data[sizeofEventHeader:sample.Size]),
	}

	switch sample.Type {
	case PERF_RECORD_SAMPLE:
		if err := ValidateSampleType(sampleType); err != nil {
			return err
		}
		record := &SampleRecord{}
		record.read(&fr, sampleType)
		if fr.err != nil {
			return fr.err
		}
		sample.Record = record

	case PERF_RECORD_LOST:
		record := &LostRecord{}
		record.read(&fr)
		if fr.err != nil {
			return fr.err
		}
		sample.Record = record
	}

	return nil
}

// DecodeSample decodes the record at the start of data using the sample type
// negotiated when the event was opened. A record that is too short for the
// fields it should carry yields ErrTruncatedRecord; the caller drops it and
// moves on.
func DecodeSample(data []byte, sampleType uint64) (Sample, error) {
	var sample Sample
	err := sample.read(data, sampleType)
	return sample, err
}
