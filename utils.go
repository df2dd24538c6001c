/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// ShutdownContext is cancelled on SIGINT or SIGTERM, cancellation fires the run signal
// so workers commit and the final count is still reported
func ShutdownContext(parent context.Context, l *Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			l.Infof("exit signal received, stopping workers")
		}
	}()
	return ctx, cancel
}

// CreateFileOrReplace creates file and missing parent dirs, existing file is truncated
func CreateFileOrReplace(fname string) (*os.File, error) {
	fpath, err := filepath.Abs(fname)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fpath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, reportFileAccess)
}

func MaxValue(array []float64) float64 {
	if len(array) == 0 {
		return 1
	}
	var max = array[0]
	for _, value := range array {
		if max < value {
			max = value
		}
	}
	return max
}
