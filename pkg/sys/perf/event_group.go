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
	"sync"
	"time"

	"github.com/golang/glog"
)

const defaultRingBufferNumPages = 128

type eventGroupOptions struct {
	flags              uintptr
	ringBufferNumPages int
}

// EventGroupOption is used to implement optional arguments for
// NewEventGroup.
type EventGroupOption func(*eventGroupOptions)

// WithFlags is used to set optional flags passed to perf_event_open() for
// every event in the group. PERF_FLAG_FD_CLOEXEC is always set.
func WithFlags(flags uintptr) EventGroupOption {
	return func(o *eventGroupOptions) {
		o.flags = flags
	}
}

// WithRingBufferNumPages is used to set the number of data pages in the
// ring buffer. It must be a power of two.
func WithRingBufferNumPages(numPages int) EventGroupOption {
	return func(o *eventGroupOptions) {
		o.ringBufferNumPages = numPages
	}
}

// EventGroup is a set of sampling events opened on one target. The first
// event leads the group and owns the ring buffer; the output of every other
// event is redirected into it, so the group produces a single stream.
type EventGroup struct {
	eventAttrs []*EventAttr
	options    eventGroupOptions
	sampleType uint64

	fds []int
	rb  *ringBuffer

	// EventAttrsByID maps stream IDs to events when the group has more
	// than one member. Samples carry the ID in SampleRecord.SampleID.
	EventAttrsByID map[uint64]*EventAttr

	lock   sync.Mutex
	wakeup [2]int
}

// NewEventGroup validates eventAttrs and prepares a group for opening. All
// events share the leader's sample type; PERF_SAMPLE_IDENTIFIER is added
// when there is more than one event.
func NewEventGroup(eventAttrs []*EventAttr, options ...EventGroupOption) (*EventGroup, error) {
	if len(eventAttrs) == 0 {
		return nil, errors.New("event group needs at least one event")
	}

	eg := EventGroup{
		eventAttrs: eventAttrs,
		options: eventGroupOptions{
			ringBufferNumPages: defaultRingBufferNumPages,
		},
		wakeup: [2]int{-1, -1},
	}
	for _, o := range options {
		o(&eg.options)
	}

	sampleType := eventAttrs[0].SampleType
	if len(eventAttrs) > 1 {
		sampleType |= PERF_SAMPLE_IDENTIFIER
	}
	if err := ValidateSampleType(sampleType); err != nil {
		return nil, err
	}
	for i, ea := range eventAttrs {
		if i > 0 && ea.SampleType|PERF_SAMPLE_IDENTIFIER != sampleType {
			return nil, fmt.Errorf("event %d sample type %#x differs from leader %#x",
				i, ea.SampleType, eventAttrs[0].SampleType)
		}
		ea.SampleType = sampleType
	}
	eg.sampleType = sampleType

	return &eg, nil
}

// SampleType returns the field mask every sample in the stream is encoded
// with.
func (eg *EventGroup) SampleType() uint64 {
	return eg.sampleType
}

// Open opens every event on the target pid and cpu (-1 meaning any) and
// maps the leader's ring buffer. The events are left disabled.
func (eg *EventGroup) Open(pid, cpu int) error {
	if pid == -1 && cpu == -1 {
		return errors.New("pid and cpu cannot both be -1")
	}

	flags := eg.options.flags | PERF_FLAG_FD_CLOEXEC
	groupFd := -1
	if len(eg.eventAttrs) > 1 {
		eg.EventAttrsByID = make(map[uint64]*EventAttr, len(eg.eventAttrs))
	}

	for i, ea := range eg.eventAttrs {
		ea.Disabled = i == 0
		fd, err := open(ea, pid, cpu, groupFd, flags)
		if err != nil {
			eg.Close()
			return fmt.Errorf("open event %d (type %d config %#x): %w",
				i, ea.Type, ea.Config, err)
		}
		eg.fds = append(eg.fds, fd)

		if groupFd < 0 {
			// NB: We must open ring buffer before we can redirect output to it
			eg.rb, err = newRingBuffer(fd, eg.options.ringBufferNumPages)
			if err != nil {
				eg.Close()
				return err
			}
			groupFd = fd
		} else if err = setOutput(fd, groupFd); err != nil {
			eg.Close()
			return fmt.Errorf("redirect event %d output: %w", i, err)
		}

		if eg.EventAttrsByID != nil {
			id, err := streamID(fd)
			if err != nil {
				eg.Close()
				return fmt.Errorf("read event %d stream id: %w", i, err)
			}
			eg.EventAttrsByID[id] = ea
		}

		glog.V(1).Infof("Opened event %d (config %#x) on pid %d cpu %d as fd %d",
			i, ea.Config, pid, cpu, fd)
	}

	wakeup, err := newWakeupPipe()
	if err != nil {
		eg.Close()
		return fmt.Errorf("create wakeup pipe: %w", err)
	}
	eg.lock.Lock()
	eg.wakeup = wakeup
	eg.lock.Unlock()

	return nil
}

func (eg *EventGroup) leader() (int, error) {
	if len(eg.fds) == 0 {
		return -1, errors.New("event group is not open")
	}
	return eg.fds[0], nil
}

// Enable resets and enables every event in the group.
func (eg *EventGroup) Enable() error {
	fd, err := eg.leader()
	if err != nil {
		return err
	}
	if err = reset(fd, PERF_IOC_FLAG_GROUP); err != nil {
		return fmt.Errorf("reset event group: %w", err)
	}
	if err = enable(fd, PERF_IOC_FLAG_GROUP); err != nil {
		return fmt.Errorf("enable event group: %w", err)
	}
	glog.V(1).Info("Enabled event group")
	return nil
}

// Disable stops every event in the group from counting.
func (eg *EventGroup) Disable() error {
	fd, err := eg.leader()
	if err != nil {
		return err
	}
	if err = disable(fd, PERF_IOC_FLAG_GROUP); err != nil {
		return fmt.Errorf("disable event group: %w", err)
	}
	return nil
}

// Read decodes every record currently in the ring buffer and calls f for
// each one. See ringBuffer.read for the error contract.
func (eg *EventGroup) Read(f func(Sample, error) error) error {
	if eg.rb == nil {
		return errors.New("event group is not open")
	}
	return eg.rb.readSamples(eg.sampleType, f)
}

// Wait blocks until the ring buffer has data, the timeout expires, or
// Wakeup is called. A negative timeout waits forever. ErrHangup is returned
// once the kernel reports that the event will not produce more data; any
// records already in the ring buffer can still be read.
func (eg *EventGroup) Wait(timeout time.Duration) error {
	fd, err := eg.leader()
	if err != nil {
		return err
	}

	timeoutMillis := -1
	if timeout >= 0 {
		timeoutMillis = int(timeout / time.Millisecond)
	}

	eg.lock.Lock()
	wakeFd := eg.wakeup[0]
	eg.lock.Unlock()

	_, hup, err := poll(fd, wakeFd, timeoutMillis)
	if err != nil {
		return err
	}
	if hup {
		return ErrHangup
	}
	return nil
}

// Wakeup makes a pending or future Wait return immediately. It is safe to
// call from any goroutine.
func (eg *EventGroup) Wakeup() error {
	eg.lock.Lock()
	defer eg.lock.Unlock()

	if eg.wakeup[1] == -1 {
		return nil
	}
	fd := eg.wakeup[1]
	eg.wakeup[1] = -1
	return closeFd(fd)
}

// Close disables the group, unmaps the ring buffer and closes every file
// descriptor. It is safe to call on a partially opened group.
func (eg *EventGroup) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(eg.fds) > 0 {
		record(disable(eg.fds[0], PERF_IOC_FLAG_GROUP))
	}
	if eg.rb != nil {
		record(eg.rb.unmap())
		eg.rb = nil
	}
	for i := len(eg.fds) - 1; i >= 0; i-- {
		record(closeFd(eg.fds[i]))
	}
	eg.fds = nil

	eg.lock.Lock()
	for i, fd := range eg.wakeup {
		if fd != -1 {
			closeFd(fd)
			eg.wakeup[i] = -1
		}
	}
	eg.lock.Unlock()

	return firstErr
}
