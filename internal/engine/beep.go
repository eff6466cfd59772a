package engine

import (
	"time"

	"github.com/teslashibe/go-cue/internal/tone"
	"github.com/teslashibe/go-cue/internal/voice"
)

// startLoop starts the voice's beep loop unless one is already pending
func (e *Engine) startLoop(v *voice.Voice) {
	if !v.MarkScheduled() {
		return
	}

	e.wg.Add(1)
	go e.beepLoop(v)
}

// beepLoop plays a beep, waits out the beep plus the inter-beep gap and
// repeats until the voice is killed. Liveness is re-checked under the
// voice lock on every play.
func (e *Engine) beepLoop(v *voice.Voice) {
	defer e.wg.Done()
	defer v.ClearScheduled()

	period := e.cfg.BeepDuration + e.cfg.BeepInterval
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		e.beep(v)

		select {
		case <-v.Done():
			return
		case <-e.ctx.Done():
			return
		case <-timer.C:
			timer.Reset(period)
		}
	}
}

func (e *Engine) beep(v *voice.Voice) {
	if e.interrupted.Load() {
		e.beepsSkipped.Add(1)
		return
	}

	buf, err := e.buffer(v)
	if err != nil {
		e.beepsSkipped.Add(1)
		e.logger.Warn("beep generation failed", "identity", v.Identity, "error", err)
		return
	}

	played, err := v.PlayIfAlive(buf)
	if err != nil {
		e.beepsSkipped.Add(1)
		e.logger.Debug("beep play failed", "identity", v.Identity, "error", err)
		return
	}
	if !played {
		e.beepsSkipped.Add(1)
		return
	}
	e.beepsPlayed.Add(1)
}

// buffer returns the next beep for v at its current pitch
func (e *Engine) buffer(v *voice.Voice) (*tone.Buffer, error) {
	if e.cfg.PitchMode == PitchFixed {
		return e.cache.Get(e.cfg.ReferenceFrequency, e.cfg.BeepDuration, e.cfg.SampleRate, e.cfg.Channels)
	}
	return e.synth.Generate(v.Params().Frequency, e.cfg.BeepDuration, e.cfg.SampleRate, e.cfg.Channels)
}
