package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
)

// ExecSink pipes the stream into an external playback command (aplay by
// default). The command's blocking stdin paces the mixer.
type ExecSink struct {
	cfg    SinkConfig
	logger *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd

	// Stats
	bytesWritten   atomic.Uint64
	playbackErrors atomic.Uint64
}

// NewExecSink creates a command-backed sink
func NewExecSink(cfg SinkConfig, logger *slog.Logger) *ExecSink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PlaybackCmd == "" {
		cfg.PlaybackCmd = "aplay"
	}

	return &ExecSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the playback command and feeds it from src
func (e *ExecSink) Start(src io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return nil
	}

	// aplay -f FLOAT_LE -r <rate> -c 2 -t raw -q
	cmd := exec.Command(e.cfg.PlaybackCmd,
		"-f", "FLOAT_LE",
		"-r", fmt.Sprintf("%d", e.cfg.SampleRate),
		"-c", fmt.Sprintf("%d", e.cfg.Channels),
		"-t", "raw",
		"-q",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.playbackErrors.Add(1)
		return fmt.Errorf("stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		e.playbackErrors.Add(1)
		return fmt.Errorf("start playback: %w", err)
	}

	e.cmd = cmd
	e.logger.Info("exec sink started",
		"cmd", e.cfg.PlaybackCmd,
		"sample_rate", e.cfg.SampleRate,
	)

	chunk := e.cfg.SampleRate * BytesPerFrame * int(e.cfg.Buffer.Milliseconds()) / 1000
	if chunk < BytesPerFrame {
		chunk = BytesPerFrame * 256
	}

	go e.feed(cmd, stdin, src, chunk)
	return nil
}

func (e *ExecSink) feed(cmd *exec.Cmd, stdin io.WriteCloser, src io.Reader, chunk int) {
	buf := make([]byte, chunk)
	for {
		n, err := src.Read(buf)
		if err != nil {
			break
		}
		if _, err := stdin.Write(buf[:n]); err != nil {
			// Killed by Pause/Close, or the device went away
			e.logger.Debug("exec sink write stopped", "error", err)
			break
		}
		e.bytesWritten.Add(uint64(n))
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		e.playbackErrors.Add(1)
		e.logger.Debug("playback command exited", "error", err)
	}

	e.mu.Lock()
	if e.cmd == cmd {
		e.cmd = nil
	}
	e.mu.Unlock()
}

// Pause kills the playback command
func (e *ExecSink) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd = nil
	return nil
}

// Name returns the backend name
func (e *ExecSink) Name() string { return "exec" }

// Close stops playback
func (e *ExecSink) Close() error {
	return e.Pause()
}

// IsAvailable checks if the playback command is installed
func (e *ExecSink) IsAvailable() bool {
	_, err := exec.LookPath(e.cfg.PlaybackCmd)
	return err == nil
}

// Stats returns sink statistics
func (e *ExecSink) Stats() SinkStats {
	e.mu.Lock()
	running := e.cmd != nil
	e.mu.Unlock()

	return SinkStats{
		Running: running,
		Bytes:   e.bytesWritten.Load(),
		Errors:  e.playbackErrors.Load(),
	}
}
