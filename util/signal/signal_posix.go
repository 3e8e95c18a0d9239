// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.
// +build linux darwin freebsd unix

package signal

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"go.uber.org/zap"
)

// SetupSignalHandler installs the signal handlers of a query process.
// SIGUSR1 dumps the goroutine stacks to the log. Every SIGHUP, SIGINT,
// SIGTERM or SIGQUIT calls interruptFunc, with force set for SIGQUIT.
func SetupSignalHandler(interruptFunc func(force bool)) {
	usrDefSignalChan := make(chan os.Signal, 1)

	signal.Notify(usrDefSignalChan, syscall.SIGUSR1)
	go func() {
		buf := make([]byte, 1<<16)
		for range usrDefSignalChan {
			stackLen := runtime.Stack(buf, true)
			logutil.Logger(context.Background()).Info("dump goroutine stack", zap.ByteString("stack", buf[:stackLen]))
		}
	}()

	closeSignalChan := make(chan os.Signal, 1)
	signal.Notify(closeSignalChan,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		for sig := range closeSignalChan {
			logutil.Logger(context.Background()).Info("got signal to interrupt", zap.Stringer("signal", sig))
			interruptFunc(sig == syscall.SIGQUIT)
		}
	}()
}
