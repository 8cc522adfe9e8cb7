package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"swapflow/pkg/swap"
)

// monitor is the handle of the goroutine polling one swap.
type monitor struct {
	swapUUID string
	cancel   context.CancelFunc
	done     chan struct{}
}

// startMonitor must be called with o.mu held.
func (o *Orchestrator) startMonitor(swapUUID string) {
	if o.monitor != nil {
		o.logger.Error("monitor already running; refusing to start another",
			slog.String("running", o.monitor.swapUUID),
			slog.String("requested", swapUUID),
		)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &monitor{
		swapUUID: swapUUID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	o.monitor = m
	go o.runMonitor(ctx, m)
}

// stopMonitor must be called with o.mu held. It returns the stopped monitor
// so the caller can wait for it outside the lock.
func (o *Orchestrator) stopMonitor() *monitor {
	m := o.monitor
	if m == nil {
		return nil
	}
	o.monitor = nil
	m.cancel()
	return m
}

func (o *Orchestrator) runMonitor(ctx context.Context, m *monitor) {
	defer close(m.done)
	defer m.cancel()

	logger := o.logger.With(slog.String("swap_uuid", m.swapUUID))
	logger.Debug("monitor started", slog.Duration("interval", o.pollInterval))

	delay := o.pollInterval
	failures := 0
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("monitor stopped")
			return
		case <-timer.C:
		}

		status, err := o.engine.PollSwapStatus(ctx, m.swapUUID)
		if ctx.Err() != nil {
			logger.Debug("monitor stopped")
			return
		}

		switch {
		case err == nil:
			failures = 0
			delay = o.pollInterval
			if o.applyStatus(m, status) {
				logger.Info("swap reached terminal stage", slog.String("stage", status.Stage.String()))
				return
			}

		case errors.Is(err, swap.ErrUnknownStage):
			failures = 0
			delay = o.pollInterval
			logger.Error("engine reported a stage this client does not know",
				slog.String("error", err.Error()),
			)
			if !o.recordMonitorError(m, ErrorUnknownStage, err.Error()) {
				return
			}

		default:
			failures++
			delay *= 2
			if delay > o.backoffMax {
				delay = o.backoffMax
			}
			logger.Warn("swap status poll failed",
				slog.Int("attempt", failures),
				slog.Duration("retry_in", delay),
				slog.String("error", err.Error()),
			)
			if failures == o.maxPollFailures {
				msg := fmt.Sprintf("swap status unavailable after %d attempts: %s", failures, engineMessage(err))
				if !o.recordMonitorError(m, ErrorPollFailure, msg) {
					return
				}
			}
		}

		timer.Reset(delay)
	}
}

// applyStatus folds an observed status into the flow. It reports whether the
// monitor should exit, either because the swap is terminal or because the
// monitor no longer owns the flow.
func (o *Orchestrator) applyStatus(m *monitor, status swap.Status) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.monitor != m || o.state.Progress == nil {
		return true
	}

	current := *o.state.Progress
	if status.Stage == current.Stage {
		if o.state.ErrKind == ErrorPollFailure || o.state.ErrKind == ErrorUnknownStage {
			o.commit(o.state.clearError())
		}
		return false
	}
	if !status.Stage.IsTerminal() && status.Stage < current.Stage {
		o.logger.Warn("ignoring stage regression",
			slog.String("swap_uuid", m.swapUUID),
			slog.String("current", current.Stage.String()),
			slog.String("observed", status.Stage.String()),
		)
		return false
	}

	next := current.Advance(status, o.now())
	st := o.state.withProgress(next).clearError()
	if next.IsTerminal() {
		st = st.withStep(StepReceipt)
		o.monitor = nil
	}
	o.logger.Info("swap stage changed",
		slog.String("swap_uuid", m.swapUUID),
		slog.String("stage", next.Stage.String()),
		slog.Int("percent", next.Percent()),
	)
	o.commit(st)
	return next.IsTerminal()
}

// recordMonitorError surfaces a monitor-side problem without touching the
// swap progress. It reports false when the monitor no longer owns the flow.
func (o *Orchestrator) recordMonitorError(m *monitor, kind ErrorKind, msg string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.monitor != m {
		return false
	}
	if o.state.ErrKind == kind && o.state.Err == msg {
		return true
	}
	o.commit(o.state.withError(kind, msg))
	return true
}
