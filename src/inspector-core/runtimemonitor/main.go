package runtimemonitor

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Start periodically logs memory and goroutine counts until ctx is cancelled.
func Start(ctx context.Context, log *logrus.Entry) {
	var m runtime.MemStats

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runtime.ReadMemStats(&m)
			log.WithField("sysMem", m.Sys/1024).WithField("routines", runtime.NumGoroutine()).Info("Monitoring runtime")
		}
	}
}
