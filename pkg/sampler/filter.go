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
	"fmt"

	"github.com/ethandmd/tracem/pkg/sys/perf"
)

// Row is one accepted sample as written to a Sink. AddrPage is the data
// address with the page offset bits cleared.
type Row struct {
	IP       uint64
	Tid      uint32
	Time     uint64
	AddrPage uint64
}

// Filter drops samples without a data address and normalizes the rest to
// page granularity.
type Filter struct {
	pageMask uint64
}

// NewFilter returns a Filter for pages of pageSize bytes, which must be a
// power of two.
func NewFilter(pageSize int) (*Filter, error) {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("page size %d is not a power of two", pageSize)
	}
	return &Filter{
		pageMask: uint64(pageSize) - 1,
	}, nil
}

// Accept returns the row for record, or false when the record has no data
// address. The kernel reports 0 when it could not attribute one.
func (f *Filter) Accept(record *perf.SampleRecord) (Row, bool) {
	if record.Addr == 0 {
		return Row{}, false
	}
	return Row{
		IP:       record.IP,
		Tid:      record.Tid,
		Time:     record.Time,
		AddrPage: record.Addr &^ f.pageMask,
	}, true
}
