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

// Package sampler drains a perf ring buffer of address samples, filters
// and normalizes them, and writes them to a Sink.
package sampler

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ethandmd/tracem/pkg/sys/perf"

	"github.com/golang/glog"
)

const defaultPollTimeout = 250 * time.Millisecond

// Source is a stream of perf records. *perf.EventGroup and
// *perf.MemoryStream both implement it.
type Source interface {
	// Read calls f for every record currently available.
	Read(f func(perf.Sample, error) error) error

	// Wait blocks until more records may be available, the timeout
	// expires or Wakeup is called. It returns perf.ErrHangup once the
	// source will not produce more records.
	Wait(timeout time.Duration) error

	// Wakeup makes Wait return. It may be called from any goroutine.
	Wakeup() error
}

type samplerOptions struct {
	pageSize    int
	pollTimeout time.Duration
	busyPoll    bool
	tracker     *PageTracker
}

// Option is used to implement optional arguments for New.
type Option func(*samplerOptions)

// WithPageSize sets the page size addresses are masked to. The default is
// the host's page size.
func WithPageSize(pageSize int) Option {
	return func(o *samplerOptions) {
		o.pageSize = pageSize
	}
}

// WithPollTimeout sets how long to block waiting for records before
// checking for cancellation again.
func WithPollTimeout(timeout time.Duration) Option {
	return func(o *samplerOptions) {
		o.pollTimeout = timeout
	}
}

// WithBusyPoll makes the sampler spin on the ring buffer instead of
// blocking in Wait.
func WithBusyPoll(busyPoll bool) Option {
	return func(o *samplerOptions) {
		o.busyPoll = busyPoll
	}
}

// WithPageTracker counts every accepted sample in tracker.
func WithPageTracker(tracker *PageTracker) Option {
	return func(o *samplerOptions) {
		o.tracker = tracker
	}
}

// Sampler is the consumer loop. Only one goroutine may call Run.
type Sampler struct {
	source  Source
	sink    Sink
	filter  *Filter
	options samplerOptions
	stats   Stats
}

// New returns a Sampler reading from source and writing to sink.
func New(source Source, sink Sink, options ...Option) (*Sampler, error) {
	s := &Sampler{
		source: source,
		sink:   sink,
		options: samplerOptions{
			pageSize:    os.Getpagesize(),
			pollTimeout: defaultPollTimeout,
		},
	}
	for _, o := range options {
		o(&s.options)
	}

	filter, err := NewFilter(s.options.pageSize)
	if err != nil {
		return nil, err
	}
	s.filter = filter

	return s, nil
}

// Stats returns the counters accumulated so far. It must not be called
// while Run is running.
func (s *Sampler) Stats() Stats {
	return s.stats
}

// Run writes the sink header and then drains the source until ctx is
// cancelled or the source hangs up. Overruns are counted and the loop
// carries on; a corrupt record or a sink failure ends it with an error.
// Cancellation is only observed between records.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.sink.WriteHeader(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.source.Wakeup(); err != nil {
				glog.Warningf("Couldn't wake up sampler: %s", err)
			}
		case <-done:
		}
	}()

	timeout := s.options.pollTimeout
	if s.options.busyPoll {
		timeout = 0
	}

	for {
		if err := s.drain(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return s.sink.Flush()
			}
			s.sink.Flush()
			return err
		}
		if err := s.sink.Flush(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		err := s.source.Wait(timeout)
		if errors.Is(err, perf.ErrHangup) {
			glog.V(1).Info("Sample source hung up, draining")
			if err = s.drain(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				s.sink.Flush()
				return err
			}
			return s.sink.Flush()
		}
		if err != nil {
			return err
		}
	}
}

// drain consumes every record that is available now. A record is only
// counted once it has been handed off, since a failed hand-off leaves it
// in the ring buffer.
func (s *Sampler) drain(ctx context.Context) error {
	err := s.source.Read(func(sample perf.Sample, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = s.consume(sample, err); err != nil {
			return err
		}
		s.stats.Records++
		return nil
	})

	var overrun *perf.OverrunError
	if errors.As(err, &overrun) {
		s.stats.Overruns++
		s.stats.OverrunBytes += overrun.Lost()
		glog.Warningf("Sampler fell behind, discarded %d bytes: %s",
			overrun.Lost(), err)
		return nil
	}
	return err
}

func (s *Sampler) consume(sample perf.Sample, err error) error {
	if err != nil {
		if errors.Is(err, perf.ErrTruncatedRecord) {
			s.stats.DecodeSkips++
			glog.V(1).Infof("Dropping record: %s", err)
			return nil
		}
		return err
	}

	switch record := sample.Record.(type) {
	case *perf.SampleRecord:
		row, ok := s.filter.Accept(record)
		if !ok {
			s.stats.Samples++
			s.stats.ZeroAddress++
			return nil
		}
		if err = s.sink.WriteRow(row); err != nil {
			return err
		}
		s.stats.Samples++
		s.stats.Accepted++
		if s.options.tracker != nil {
			s.options.tracker.Update(row.AddrPage)
		}

	case *perf.LostRecord:
		s.stats.Lost += record.Lost
		glog.Warningf("Kernel lost %d samples", record.Lost)

	default:
		s.stats.Ignored++
		glog.V(2).Infof("Ignoring record type %d (%d bytes)",
			sample.Type, sample.Size)
	}
	return nil
}
