package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "offsched/pkg/logx"
)

const (
	standaloneBanner = "Starting serverless-offline-schedule in standalone process. Press CTRL+C to stop."
	drainTimeout     = 10 * time.Second
)

// RunStandalone schedules like Start, then blocks until SIGINT or SIGTERM
// arrives, stops the timers and returns the received signal. The caller is
// expected to exit the process with a success status afterwards.
//
// If ctx is cancelled first, timers are stopped and ctx.Err() is returned.
func (e *Engine) RunStandalone(ctx context.Context, cfg Config) (os.Signal, error) {
	e.notice(standaloneBanner)
	if err := e.Start(ctx, cfg); err != nil {
		return nil, err
	}
	sdNotify(e.log, daemon.SdNotifyReady)

	sig, err := e.waitSignal(ctx)

	sdNotify(e.log, daemon.SdNotifyStopping)
	if err == nil {
		e.notice(fmt.Sprintf("Got %s signal. Stopping serverless-offline-schedule...", signalName(sig)))
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	e.Stop(stopCtx)
	return sig, err
}

// waitForTermination races two one-shot listeners; the first signal wins and
// the other is never observed.
func waitForTermination(ctx context.Context) (os.Signal, error) {
	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	signal.Notify(sigterm, syscall.SIGTERM)
	defer signal.Stop(sigint)
	defer signal.Stop(sigterm)

	select {
	case s := <-sigint:
		return s, nil
	case s := <-sigterm:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func signalName(s os.Signal) string {
	switch s {
	case os.Interrupt:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case nil:
		return "unknown"
	default:
		return s.String()
	}
}

// sdNotify is a no-op outside systemd (NOTIFY_SOCKET unset).
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
