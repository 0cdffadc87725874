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

package config

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks Global for values the sampler cannot work with.
func Validate() error {
	if Global.SamplePeriod == 0 {
		return errors.New("sample period must be greater than zero")
	}
	if !isPowerOfTwo(Global.RingBufferNumPages) {
		return fmt.Errorf("ring buffer page count %d is not a power of two",
			Global.RingBufferNumPages)
	}
	if Global.PageSize != 0 && !isPowerOfTwo(Global.PageSize) {
		return fmt.Errorf("page size %d is not a power of two",
			Global.PageSize)
	}
	if Global.CPU < -1 {
		return fmt.Errorf("invalid cpu %d", Global.CPU)
	}
	if len(Global.Events) == 0 {
		return errors.New("no events configured")
	}

	switch Global.WaitMode {
	case WaitModePoll:
		if Global.PollTimeout <= 0 {
			return fmt.Errorf("poll timeout %s must be positive",
				Global.PollTimeout)
		}
	case WaitModeSpin:
		glog.V(1).Infoln("Wait mode set to spin, sampler will busy poll")
	default:
		return fmt.Errorf("unknown wait mode %q", Global.WaitMode)
	}

	if Global.SummaryPages < 0 {
		return fmt.Errorf("summary page count %d is negative",
			Global.SummaryPages)
	}
	return nil
}
