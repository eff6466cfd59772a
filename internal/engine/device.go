package engine

import (
	"fmt"
	"time"
)

// ensureDevice starts the device if it is not running. Failed starts are
// throttled with exponential backoff and logged once per failure streak;
// force skips the throttle.
func (e *Engine) ensureDevice(force bool) error {
	e.devMu.Lock()
	defer e.devMu.Unlock()

	if e.interrupted.Load() {
		return ErrInterrupted
	}
	if e.device.Running() {
		return nil
	}

	now := e.now()
	if !force && now.Before(e.nextAttempt) {
		return fmt.Errorf("%w: retry in %s", ErrDeviceUnavailable, e.nextAttempt.Sub(now).Round(time.Millisecond))
	}

	if err := e.device.Start(); err != nil {
		e.deviceFailures.Add(1)
		e.nextAttempt = now.Add(e.backoff)

		if !e.failing {
			e.failing = true
			e.logger.Warn("audio device failed to start",
				"device", e.device.Name(),
				"error", err,
				"retry_in", e.backoff,
			)
			e.reportLocked(false, err.Error())
		} else {
			e.logger.Debug("audio device still unavailable", "error", err, "retry_in", e.backoff)
		}

		e.backoff *= 2
		if e.backoff > e.cfg.MaxRestartBackoff {
			e.backoff = e.cfg.MaxRestartBackoff
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if e.failing {
		e.logger.Info("audio device recovered", "device", e.device.Name())
	} else {
		e.logger.Info("audio device started", "device", e.device.Name())
	}
	e.failing = false
	e.backoff = e.cfg.RestartBackoff
	e.nextAttempt = time.Time{}
	e.reportLocked(true, "running")
	return nil
}

func (e *Engine) reportLocked(healthy bool, msg string) {
	if e.health != nil {
		e.health.SetComponent(HealthComponent, healthy, msg)
	}
}

// Interrupt pauses audio, e.g. when another application takes the output.
// Voices stay tracked and keep following updates while silent.
func (e *Engine) Interrupt() error {
	e.devMu.Lock()
	defer e.devMu.Unlock()

	if e.interrupted.Swap(true) {
		return nil
	}

	e.logger.Info("audio interrupted")
	e.reportLocked(true, "interrupted")

	if err := e.device.Pause(); err != nil {
		return fmt.Errorf("pause device: %w", err)
	}
	return nil
}

// Interrupted reports whether audio is paused by Interrupt
func (e *Engine) Interrupted() bool {
	return e.interrupted.Load()
}

// Resume ends an interruption, restarts the device and re-attaches every
// voice that is still active
func (e *Engine) Resume() error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.interrupted.Swap(false) {
		e.logger.Info("audio interruption ended")
	}
	return e.restartLocked()
}

// Restart forces a device start attempt now, resetting the backoff, and
// re-attaches every voice that is still active
func (e *Engine) Restart() error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.devMu.Lock()
	e.backoff = e.cfg.RestartBackoff
	e.nextAttempt = time.Time{}
	e.devMu.Unlock()

	return e.restartLocked()
}

func (e *Engine) restartLocked() error {
	if err := e.ensureDevice(true); err != nil {
		return err
	}
	e.attachDetached()
	e.publish()
	return nil
}
