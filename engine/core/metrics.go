package core

import "sync"

// Number of frames folded into the rolling frame-time average.
const metricsWindow = 30

type frameMetrics struct {
	mu sync.Mutex

	window      [metricsWindow]float64
	windowIndex int
	avgFrameMS  float64

	frames      int
	secondAccum float64
	fps         float64
}

var onceMetrics sync.Once
var metrics *frameMetrics

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metrics = &frameMetrics{}
	})
	return nil
}

// MetricsUpdate folds one frame's duration, in seconds, into the rolling
// frame-time average and the per-second FPS counter. Call once per frame.
func MetricsUpdate(frameSeconds float64) {
	m := metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window[m.windowIndex] = frameSeconds * 1000.0
	m.windowIndex = (m.windowIndex + 1) % metricsWindow
	if m.windowIndex == 0 {
		var sum float64
		for _, ms := range m.window {
			sum += ms
		}
		m.avgFrameMS = sum / metricsWindow
	}

	m.frames++
	m.secondAccum += frameSeconds
	if m.secondAccum >= 1.0 {
		m.fps = float64(m.frames) / m.secondAccum
		m.frames = 0
		m.secondAccum = 0
	}
}

// MetricsFPS is the frame rate measured over the last full second.
func MetricsFPS() float64 {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return metrics.fps
}

// MetricsFrameTime is the rolling average frame duration in milliseconds.
func MetricsFrameTime() float64 {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return metrics.avgFrameMS
}

func MetricsFrame() (float64, float64) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return metrics.fps, metrics.avgFrameMS
}
