package core

import (
	"testing"
	"time"
)

func TestFrameMetrics_AverageAndFPS(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < AVG_COUNT-1; i++ {
		m.Update(10 * time.Millisecond)
	}
	if m.FrameTime() != 0 {
		t.Fatalf("average published before the window filled: %s", m.FrameTime())
	}
	m.Update(10 * time.Millisecond)
	if m.FrameTime() != 10*time.Millisecond {
		t.Fatalf("average = %s, want 10ms", m.FrameTime())
	}

	// 100 frames of 10ms make one second.
	for i := 0; i < 100-AVG_COUNT; i++ {
		m.Update(10 * time.Millisecond)
	}
	if m.FPS() != 100 {
		t.Fatalf("fps = %v, want 100", m.FPS())
	}

	// The window only remembers the last AVG_COUNT frames.
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(20 * time.Millisecond)
	}
	if m.FrameTime() != 20*time.Millisecond {
		t.Fatalf("average = %s, want 20ms", m.FrameTime())
	}
}

func TestFrameMetrics_Counters(t *testing.T) {
	m := NewFrameMetrics()
	m.CountSubmission()
	m.CountSubmission()
	m.CountPresent()
	m.CountRebuild()
	m.CountSuboptimal()
	m.CountOutOfDate()
	m.CountSuspended()

	s := m.Snapshot()
	want := MetricsSnapshot{Submissions: 2, Presents: 1, Rebuilds: 1, Suboptimal: 1, OutOfDate: 1, Suspended: 1}
	if s != want {
		t.Fatalf("snapshot = %+v, want %+v", s, want)
	}
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("unstarted clock elapsed %s", c.Elapsed())
	}
	c.Start()
	now = now.Add(16 * time.Millisecond)
	c.Update()
	if c.Elapsed() != 16*time.Millisecond {
		t.Fatalf("elapsed = %s, want 16ms", c.Elapsed())
	}
	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	if c.Elapsed() != 16*time.Millisecond {
		t.Fatalf("stopped clock kept counting: %s", c.Elapsed())
	}
}
