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
)

// Stats counts what a Sampler has seen.
type Stats struct {
	// Records consumed from the ring buffer, of any type
	Records uint64

	// PERF_RECORD_SAMPLE records decoded
	Samples uint64

	// Samples written to the sink
	Accepted uint64

	// Samples dropped because they had no data address
	ZeroAddress uint64

	// Records of a type the sampler does not use
	Ignored uint64

	// Samples dropped because they were shorter than their sample type
	DecodeSkips uint64

	// Samples the kernel reported as lost in PERF_RECORD_LOST
	Lost uint64

	// Times the consumer fell behind and discarded unread data, and the
	// number of bytes discarded
	Overruns     uint64
	OverrunBytes uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("records=%d samples=%d accepted=%d zero_addr=%d "+
		"ignored=%d decode_skips=%d lost=%d overruns=%d overrun_bytes=%d",
		s.Records, s.Samples, s.Accepted, s.ZeroAddress, s.Ignored,
		s.DecodeSkips, s.Lost, s.Overruns, s.OverrunBytes)
}
