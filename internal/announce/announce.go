// Package announce speaks newly activated objects, e.g. "chair, 2 o'clock,
// 3 meters", so the user hears what a new beep belongs to.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/voice"
)

// ErrNoCommand is returned when a CommandSpeaker has nothing to run
var ErrNoCommand = errors.New("announce: speech command required")

// Speaker turns text into speech
type Speaker interface {
	// Speak blocks until the utterance is finished or ctx is done
	Speak(ctx context.Context, text string) error

	// Name returns the speaker type name
	Name() string
}

// LogSpeaker writes announcements to the log instead of speaking them
type LogSpeaker struct {
	logger *slog.Logger
}

// NewLogSpeaker creates a log speaker
func NewLogSpeaker(logger *slog.Logger) *LogSpeaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSpeaker{logger: logger}
}

// Speak logs the text
func (s *LogSpeaker) Speak(ctx context.Context, text string) error {
	s.logger.Info("announce", "text", text)
	return nil
}

// Name returns the speaker type name
func (s *LogSpeaker) Name() string { return "log" }

// CommandSpeaker runs an external TTS program (espeak, say, piper wrapper)
// with the text as its last argument
type CommandSpeaker struct {
	path string
	args []string
}

// NewCommandSpeaker parses a command line such as "espeak -s 160"
func NewCommandSpeaker(command string) (*CommandSpeaker, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}

	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", fields[0], err)
	}

	return &CommandSpeaker{path: path, args: fields[1:]}, nil
}

// Speak runs the command and waits for it to exit
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), s.args...), text)
	out, err := exec.CommandContext(ctx, s.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("speak: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Name returns the speaker type name
func (s *CommandSpeaker) Name() string { return "command" }

// ClockHour converts a listener-relative azimuth (radians, positive to the
// right) to the nearest clock-face hour, 12 being straight ahead
func ClockHour(azimuth float64) int {
	hour := int(math.Round(spatial.NormalizeAngle(azimuth)/(math.Pi/6))) % 12
	if hour <= 0 {
		hour += 12
	}
	return hour
}

// Phrase builds the spoken description of an object
func Phrase(label string, dir spatial.Direction) string {
	if label == "" {
		label = "object"
	}

	var dist string
	switch meters := int(math.Round(dir.Distance)); {
	case dir.Distance < 1:
		dist = "less than 1 meter"
	case meters == 1:
		dist = "1 meter"
	default:
		dist = fmt.Sprintf("%d meters", meters)
	}

	return fmt.Sprintf("%s, %d o'clock, %s", label, ClockHour(dir.Azimuth), dist)
}

// ListenerSource provides the pose announcements are phrased against
type ListenerSource interface {
	Listener() spatial.Pose
}

// Config configures the announcer
type Config struct {
	Cooldown time.Duration // Minimum gap between announcements of one label
	Timeout  time.Duration // Limit for a single utterance
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Cooldown: 5 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Announcer speaks voice activations, suppressing repeats of the same
// label within the cooldown
type Announcer struct {
	speaker  Speaker
	listener ListenerSource
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastSpoke map[string]time.Time

	spoken     atomic.Uint64
	suppressed atomic.Uint64
	failed     atomic.Uint64
}

// New creates an announcer
func New(speaker Speaker, listener ListenerSource, cfg Config, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Announcer{
		speaker:   speaker,
		listener:  listener,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		lastSpoke: make(map[string]time.Time),
	}
}

// Run announces activations until ctx is done or events is closed
func (a *Announcer) Run(ctx context.Context, events <-chan voice.Event) error {
	a.logger.Info("announcer started", "speaker", a.speaker.Name(), "cooldown", a.cfg.Cooldown)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *Announcer) handle(ctx context.Context, ev voice.Event) {
	if ev.Kind != voice.EventActivated {
		return
	}

	if !a.claim(ev.Label) {
		a.suppressed.Add(1)
		return
	}

	pose := spatial.DefaultPose()
	if a.listener != nil {
		pose = a.listener.Listener()
	}
	text := Phrase(ev.Label, pose.DirectionTo(ev.Position))

	speakCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if err := a.speaker.Speak(speakCtx, text); err != nil {
		a.failed.Add(1)
		a.logger.Warn("announcement failed", "text", text, "error", err)
		return
	}
	a.spoken.Add(1)
}

// claim records an announcement of label unless one is within the cooldown
func (a *Announcer) claim(label string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if last, ok := a.lastSpoke[label]; ok && now.Sub(last) < a.cfg.Cooldown {
		return false
	}
	a.lastSpoke[label] = now
	return true
}

// Stats contains announcer statistics
type Stats struct {
	Speaker    string `json:"speaker"`
	Spoken     uint64 `json:"spoken"`
	Suppressed uint64 `json:"suppressed"`
	Failed     uint64 `json:"failed"`
}

// Stats returns announcer statistics
func (a *Announcer) Stats() Stats {
	return Stats{
		Speaker:    a.speaker.Name(),
		Spoken:     a.spoken.Load(),
		Suppressed: a.suppressed.Load(),
		Failed:     a.failed.Load(),
	}
}
