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
// +build windows

package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"go.uber.org/zap"
)

// SetupSignalHandler installs the signal handlers of a query process. Every
// SIGHUP, SIGINT, SIGTERM or SIGQUIT calls interruptFunc, with force set
// for SIGQUIT.
func SetupSignalHandler(interruptFunc func(force bool)) {
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
