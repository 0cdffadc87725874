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

// Package config holds the tracem configuration, read from TRACEM_*
// environment variables when the package is initialized.
package config

import (
	"time"

	"github.com/golang/glog"
	"github.com/kelseyhightower/envconfig"
)

// Wait modes for the sampling loop.
const (
	WaitModePoll = "poll"
	WaitModeSpin = "spin"
)

// Global contains the configuration shared by every tracem component.
var Global struct {
	// Number of event occurrences between samples
	SamplePeriod uint64 `split_words:"true" default:"1000"`

	// Number of data pages in the perf ring buffer. Must be a power of two.
	RingBufferNumPages int `split_words:"true" default:"128"`

	// Page size sampled addresses are masked to. 0 means the host's.
	PageSize int `split_words:"true" default:"0"`

	// CPU to sample on, or -1 for any CPU the target runs on
	CPU int `default:"-1"`

	// Comma separated events to sample: l3-miss, all-stores or r<hex>
	Events []string `default:"l3-miss"`

	// How the sampling loop waits for data: poll or spin
	WaitMode string `split_words:"true" default:"poll"`

	// Longest time the loop blocks before checking for shutdown
	PollTimeout time.Duration `split_words:"true" default:"250ms"`

	// Number of hottest and coldest pages to log at exit. 0 disables
	// the summary.
	SummaryPages int `split_words:"true" default:"0"`

	// Address for an HTTP endpoint serving pprof, e.g. 127.0.0.1:6060.
	// Empty disables it.
	ProfilingListenAddr string `split_words:"true"`
}

// Load reads TRACEM_* environment variables into Global.
func Load() error {
	return envconfig.Process("TRACEM", &Global)
}

func init() {
	err := Load()
	if err != nil {
		glog.Fatal(err)
	}
}
