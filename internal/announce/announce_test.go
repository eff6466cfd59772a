package announce

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/voice"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSpeaker) Name() string { return "recording" }

func (s *recordingSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fixedListener spatial.Pose

func (l fixedListener) Listener() spatial.Pose { return spatial.Pose(l) }

func TestClockHour(t *testing.T) {
	tests := []struct {
		azimuth float64
		want    int
	}{
		{0, 12},
		{math.Pi / 6, 1},
		{math.Pi / 2, 3},
		{math.Pi, 6},
		{-math.Pi, 6},
		{-math.Pi / 2, 9},
		{-math.Pi / 6, 11},
		{0.2, 12},
		{math.NaN(), 12},
	}

	for _, tt := range tests {
		if got := ClockHour(tt.azimuth); got != tt.want {
			t.Errorf("ClockHour(%v) = %d, want %d", tt.azimuth, got, tt.want)
		}
	}
}

func TestPhrase(t *testing.T) {
	tests := []struct {
		label string
		dir   spatial.Direction
		want  string
	}{
		{"chair", spatial.Direction{Azimuth: math.Pi / 3, Distance: 3.2}, "chair, 2 o'clock, 3 meters"},
		{"door", spatial.Direction{Azimuth: 0, Distance: 1.2}, "door, 12 o'clock, 1 meter"},
		{"cup", spatial.Direction{Azimuth: -math.Pi / 2, Distance: 0.4}, "cup, 9 o'clock, less than 1 meter"},
		{"", spatial.Direction{Azimuth: math.Pi, Distance: 8}, "object, 6 o'clock, 8 meters"},
	}

	for _, tt := range tests {
		if got := Phrase(tt.label, tt.dir); got != tt.want {
			t.Errorf("Phrase(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestAnnouncerSpeaksActivations(t *testing.T) {
	speaker := &recordingSpeaker{}
	a := New(speaker, fixedListener(spatial.DefaultPose()), DefaultConfig(), nil)

	events := make(chan voice.Event, 4)
	events <- voice.Event{Kind: voice.EventActivated, Identity: "1", Label: "chair", Position: spatial.Vec3{X: 2}}
	events <- voice.Event{Kind: voice.EventDeactivated, Identity: "1", Label: "chair"}
	events <- voice.Event{Kind: voice.EventActivated, Identity: "2", Label: "door", Position: spatial.Vec3{Z: -4}}
	close(events)

	if err := a.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := speaker.spoken()
	want := []string{"chair, 3 o'clock, 2 meters", "door, 12 o'clock, 4 meters"}
	if len(got) != len(want) {
		t.Fatalf("spoke %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("announcement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnnouncerPhrasesAgainstListener(t *testing.T) {
	speaker := &recordingSpeaker{}
	// Listener turned to face +X
	pose := spatial.Pose{Orientation: spatial.QuatFromYaw(-math.Pi / 2)}
	a := New(speaker, fixedListener(pose), DefaultConfig(), nil)

	events := make(chan voice.Event, 1)
	events <- voice.Event{Kind: voice.EventActivated, Label: "chair", Position: spatial.Vec3{X: 2}}
	close(events)
	a.Run(context.Background(), events)

	if got := speaker.spoken(); len(got) != 1 || got[0] != "chair, 12 o'clock, 2 meters" {
		t.Errorf("spoke %v", got)
	}
}

func TestAnnouncerCooldown(t *testing.T) {
	speaker := &recordingSpeaker{}
	a := New(speaker, nil, Config{Cooldown: 5 * time.Second}, nil)

	now := time.Unix(1700000000, 0)
	a.now = func() time.Time { return now }

	chair := voice.Event{Kind: voice.EventActivated, Label: "chair", Position: spatial.Vec3{Z: -2}}
	ctx := context.Background()

	a.handle(ctx, chair)
	a.handle(ctx, chair)
	a.handle(ctx, voice.Event{Kind: voice.EventActivated, Label: "door", Position: spatial.Vec3{Z: -2}})

	now = now.Add(6 * time.Second)
	a.handle(ctx, chair)

	if n := len(speaker.spoken()); n != 3 {
		t.Errorf("spoke %d times, want 3", n)
	}
	if s := a.Stats(); s.Suppressed != 1 || s.Spoken != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAnnouncerCountsFailures(t *testing.T) {
	speaker := &recordingSpeaker{err: errors.New("no audio")}
	a := New(speaker, nil, DefaultConfig(), nil)

	a.handle(context.Background(), voice.Event{Kind: voice.EventActivated, Label: "chair"})

	if s := a.Stats(); s.Failed != 1 || s.Spoken != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAnnouncerStopsOnCancel(t *testing.T) {
	a := New(&recordingSpeaker{}, nil, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Run(ctx, make(chan voice.Event)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestLogSpeaker(t *testing.T) {
	s := NewLogSpeaker(nil)
	if err := s.Speak(context.Background(), "chair, 12 o'clock, 2 meters"); err != nil {
		t.Errorf("Speak: %v", err)
	}
	if s.Name() != "log" {
		t.Errorf("Name = %q", s.Name())
	}
}

func TestCommandSpeaker(t *testing.T) {
	if _, err := NewCommandSpeaker("   "); !errors.Is(err, ErrNoCommand) {
		t.Errorf("empty command: %v, want ErrNoCommand", err)
	}
	if _, err := NewCommandSpeaker("definitely-not-a-tts-binary"); err == nil {
		t.Error("expected error for missing binary")
	}

	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	s, err := NewCommandSpeaker("true --ignored")
	if err != nil {
		t.Fatalf("NewCommandSpeaker: %v", err)
	}
	if err := s.Speak(context.Background(), "hello"); err != nil {
		t.Errorf("Speak: %v", err)
	}
}
