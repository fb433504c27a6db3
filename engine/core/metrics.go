package core

import (
	"sync"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/containers"
)

const AVG_COUNT int = 30

// FrameMetrics keeps a rolling average of frame times, an FPS estimate and
// the swapchain event counters. It is owned by a coordinator, not global.
type FrameMetrics struct {
	mutex sync.RWMutex

	frameTimes         *containers.RingQueue[time.Duration]
	avg                time.Duration
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	counters MetricsSnapshot
}

type MetricsSnapshot struct {
	Submissions uint64
	Presents    uint64
	Rebuilds    uint64
	Suboptimal  uint64
	OutOfDate   uint64
	Suspended   uint64
	FPS         float64
	FrameTime   time.Duration
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		frameTimes: containers.NewRingQueue[time.Duration](AVG_COUNT),
	}
}

func (m *FrameMetrics) Update(frameElapsed time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.frameTimes.Push(frameElapsed)
	if m.frameTimes.IsFull() {
		var sum time.Duration
		m.frameTimes.Each(func(d time.Duration) { sum += d })
		m.avg = sum / time.Duration(m.frameTimes.Len())
	}

	// Calculate frames per second.
	m.accumulatedFrameMS += float64(frameElapsed) / float64(time.Millisecond)
	m.frames++
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
}

func (m *FrameMetrics) CountSubmission() { m.add(&m.counters.Submissions) }
func (m *FrameMetrics) CountPresent()    { m.add(&m.counters.Presents) }
func (m *FrameMetrics) CountRebuild()    { m.add(&m.counters.Rebuilds) }
func (m *FrameMetrics) CountSuboptimal() { m.add(&m.counters.Suboptimal) }
func (m *FrameMetrics) CountOutOfDate()  { m.add(&m.counters.OutOfDate) }
func (m *FrameMetrics) CountSuspended()  { m.add(&m.counters.Suspended) }

func (m *FrameMetrics) add(counter *uint64) {
	m.mutex.Lock()
	*counter++
	m.mutex.Unlock()
}

func (m *FrameMetrics) FPS() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.fps
}

func (m *FrameMetrics) FrameTime() time.Duration {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.avg
}

func (m *FrameMetrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s := m.counters
	s.FPS = m.fps
	s.FrameTime = m.avg
	return s
}
