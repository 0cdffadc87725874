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

package sampler

import (
	"bufio"
	"io"
	"strconv"
)

// Sink receives accepted rows in the order they were sampled.
type Sink interface {
	WriteHeader() error
	WriteRow(Row) error
	Flush() error
}

// CSVHeader is the first line written by CSVSink.
const CSVHeader = "ip,tid,time,addr"

// CSVSink writes rows as comma separated text. ip, tid and time are
// decimal; addr is lower case hex without a prefix.
type CSVSink struct {
	w   *bufio.Writer
	buf []byte
}

// NewCSVSink returns a CSVSink writing to w. Output is buffered until
// Flush.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, 64),
	}
}

// WriteHeader writes the column names.
func (s *CSVSink) WriteHeader() error {
	_, err := s.w.WriteString(CSVHeader + "\n")
	return err
}

// WriteRow writes one row.
func (s *CSVSink) WriteRow(row Row) error {
	b := s.buf[:0]
	b = strconv.AppendUint(b, row.IP, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, uint64(row.Tid), 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, row.Time, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, row.AddrPage, 16)
	b = append(b, '\n')
	s.buf = b

	_, err := s.w.Write(b)
	return err
}

// Flush writes any buffered rows to the underlying writer.
func (s *CSVSink) Flush() error {
	return s.w.Flush()
}
