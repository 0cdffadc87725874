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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethandmd/tracem/pkg/cli"

	"github.com/golang/glog"
)

func main() {
	// Log to stderr so that stdout only carries samples
	flag.Set("logtostderr", "true")

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	rootCommand := cli.NewRootCommand(os.Stdout, os.Stderr)
	err := rootCommand.ExecuteContext(ctx)

	stop()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
