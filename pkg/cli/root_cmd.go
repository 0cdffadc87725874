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

// Package cli implements the tracem command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethandmd/tracem/pkg/config"
	"github.com/ethandmd/tracem/pkg/sampler"
	"github.com/ethandmd/tracem/pkg/services"
	"github.com/ethandmd/tracem/pkg/sys"
	"github.com/ethandmd/tracem/pkg/sys/perf"
	"github.com/ethandmd/tracem/pkg/sys/proc"
	"github.com/ethandmd/tracem/pkg/sys/proc/procfs"
	"github.com/ethandmd/tracem/pkg/version"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

type options struct {
	match     string
	procMount string
}

// NewRootCommand creates the tracem command and returns it to be executed.
// CSV goes to out; errors that end the run go to errorOut.
func NewRootCommand(out, errorOut io.Writer) *cobra.Command {
	opts := options{}

	var rootCommand = &cobra.Command{
		Use:   "tracem [flags] <pid>",
		Short: "Sample the data addresses a process touches",
		Long: "tracem samples memory events of one process with the CPU's " +
			"performance counters and writes ip,tid,time,addr rows to " +
			"standard output until interrupted or the process exits.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Values were set through pflag; this only marks the
			// standard flag set parsed for glog.
			flag.CommandLine.Parse([]string{})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.Run(cmd.Context(), out, args)
			if err != nil {
				fmt.Fprintf(errorOut, "tracem: %s\n", err)
			}
			return err
		},
	}

	flags := rootCommand.Flags()
	flags.StringVar(&opts.match, "match", "",
		"select the target by command name glob instead of pid")
	flags.StringVar(&opts.procMount, "proc", "",
		"procfs mount point (default /proc)")
	flags.Uint64Var(&config.Global.SamplePeriod, "period",
		config.Global.SamplePeriod, "events between samples")
	flags.StringSliceVarP(&config.Global.Events, "events", "e",
		config.Global.Events, "events to sample: l3-miss, all-stores or r<hex>")
	flags.IntVar(&config.Global.CPU, "cpu", config.Global.CPU,
		"only sample on this CPU (-1 for any)")
	flags.IntVar(&config.Global.RingBufferNumPages, "pages",
		config.Global.RingBufferNumPages, "ring buffer data pages, a power of two")
	flags.IntVar(&config.Global.PageSize, "page-size", config.Global.PageSize,
		"page size addresses are masked to (0 for the host's)")
	flags.StringVar(&config.Global.WaitMode, "wait", config.Global.WaitMode,
		"how to wait for samples: poll or spin")
	flags.DurationVar(&config.Global.PollTimeout, "poll-timeout",
		config.Global.PollTimeout, "longest single wait in poll mode")
	flags.IntVar(&config.Global.SummaryPages, "summary",
		config.Global.SummaryPages, "log this many hottest and coldest pages at exit")
	flags.StringVar(&config.Global.ProfilingListenAddr, "profiling-addr",
		config.Global.ProfilingListenAddr, "serve pprof on this address")

	// glog and version register themselves with the standard flag set.
	rootCommand.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	return rootCommand
}

// Run executes tracem with the current configuration.
func (opts *options) Run(ctx context.Context, out io.Writer, args []string) error {
	version.InitialBuildLog("tracem")

	if err := config.Validate(); err != nil {
		return err
	}

	fs, err := procfs.NewFileSystem(opts.procMount)
	if err != nil {
		return err
	}

	pid, err := resolveTarget(fs, opts.match, args)
	if err != nil {
		return err
	}
	logTarget(fs, pid)

	if n := fs.NumCPU(); n > 0 && config.Global.CPU >= n {
		return fmt.Errorf("cpu %d out of range, system has %d",
			config.Global.CPU, n)
	}

	if kv, err := sys.KernelVersion(); err == nil {
		glog.V(1).Infof("Running on Linux %s", kv)
		if !kv.AtLeast(4, 1) {
			glog.Warningf("Linux %s is older than 4.1; ring buffer "+
				"layout will be assumed", kv)
		}
	}

	eventAttrs, err := newEventAttrs(config.Global.Events,
		config.Global.SamplePeriod)
	if err != nil {
		return err
	}

	eg, err := perf.NewEventGroup(eventAttrs,
		perf.WithRingBufferNumPages(config.Global.RingBufferNumPages))
	if err != nil {
		return err
	}
	if err = eg.Open(pid, config.Global.CPU); err != nil {
		logPermissionHint(fs, err)
		return err
	}
	defer eg.Close()

	var tracker *sampler.PageTracker
	samplerOptions := []sampler.Option{
		sampler.WithPollTimeout(config.Global.PollTimeout),
		sampler.WithBusyPoll(config.Global.WaitMode == config.WaitModeSpin),
	}
	if config.Global.PageSize != 0 {
		samplerOptions = append(samplerOptions,
			sampler.WithPageSize(config.Global.PageSize))
	}
	if config.Global.SummaryPages > 0 {
		tracker = sampler.NewPageTracker()
		samplerOptions = append(samplerOptions,
			sampler.WithPageTracker(tracker))
	}

	s, err := sampler.New(eg, sampler.NewCSVSink(out), samplerOptions...)
	if err != nil {
		return err
	}

	manager := services.NewServiceManager()
	if len(config.Global.ProfilingListenAddr) > 0 {
		manager.RegisterService(services.NewProfilingService(
			config.Global.ProfilingListenAddr))
	}
	manager.Start()
	defer manager.Stop()

	if err = eg.Enable(); err != nil {
		return err
	}
	glog.Infof("Sampling %s every %d events on pid %d",
		config.Global.Events, config.Global.SamplePeriod, pid)

	err = s.Run(ctx)
	if derr := eg.Disable(); derr != nil {
		glog.V(1).Infof("Couldn't disable events: %s", derr)
	}

	glog.Infof("Sampling stopped: %s", s.Stats())
	if tracker != nil {
		logSummary(tracker, config.Global.SummaryPages)
	}
	return err
}

// resolveTarget returns the pid named on the command line or the single
// process matching pattern.
func resolveTarget(fs proc.FileSystem, pattern string, args []string) (int, error) {
	if pattern != "" {
		if len(args) > 0 {
			return 0, errors.New("give either a pid or --match, not both")
		}
		pids, err := fs.FindProcesses(pattern)
		if err != nil {
			return 0, err
		}
		switch len(pids) {
		case 0:
			return 0, fmt.Errorf("no process matches %q", pattern)
		case 1:
			return pids[0], nil
		default:
			return 0, fmt.Errorf("%d processes match %q: %v",
				len(pids), pattern, pids)
		}
	}

	if len(args) == 0 {
		return 0, errors.New("no target pid given")
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", args[0])
	}
	return pid, nil
}

func logTarget(fs proc.FileSystem, pid int) {
	var status proc.ProcessStatus
	if err := fs.ReadProcessStatus(pid, &status); err != nil {
		glog.Warningf("Cannot read status of pid %d: %s", pid, err)
		return
	}
	cmdline, _ := fs.ProcessCommandLine(pid)
	glog.Infof("Target pid %d (%s, %d threads): %q", pid, status.Name,
		status.Threads, cmdline)
}

func newEventAttrs(events []string, samplePeriod uint64) ([]*perf.EventAttr, error) {
	eventAttrs := make([]*perf.EventAttr, 0, len(events))
	for _, name := range events {
		rawEvent, err := perf.ParseRawEvent(name)
		if err != nil {
			return nil, err
		}
		ea, err := perf.NewAddressSamplingAttr(rawEvent, samplePeriod)
		if err != nil {
			return nil, err
		}
		eventAttrs = append(eventAttrs, ea)
	}
	return eventAttrs, nil
}

func logPermissionHint(fs proc.FileSystem, err error) {
	if !errors.Is(err, os.ErrPermission) {
		return
	}
	paranoid, perr := fs.PerfEventParanoid()
	if perr != nil {
		glog.Errorf("Permission denied opening perf events; run with " +
			"CAP_PERFMON or as root")
		return
	}
	glog.Errorf("Permission denied opening perf events "+
		"(kernel.perf_event_paranoid = %d); lower it with "+
		"'sysctl kernel.perf_event_paranoid=1' or run with CAP_PERFMON",
		paranoid)
}

func logSummary(tracker *sampler.PageTracker, n int) {
	glog.Infof("%d pages sampled", tracker.Len())
	for _, pc := range tracker.Hottest(n) {
		glog.Infof("hot  %x: %d samples", pc.Page, pc.Count)
	}
	for _, pc := range tracker.Coldest(n) {
		glog.Infof("cold %x: %d samples", pc.Page, pc.Count)
	}
}
