package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMetrics(t *testing.T) {
	t.Helper()
	require.NoError(t, MetricsInitialize())
	metrics = &frameMetrics{}
}

func TestMetricsFrameTimeAveragesOverTheWindow(t *testing.T) {
	resetMetrics(t)

	for i := 0; i < metricsWindow; i++ {
		MetricsUpdate(0.016)
	}
	assert.InDelta(t, 16.0, MetricsFrameTime(), 0.01)
}

func TestMetricsFrameTimeWaitsForAFullWindow(t *testing.T) {
	resetMetrics(t)

	for i := 0; i < metricsWindow-1; i++ {
		MetricsUpdate(0.016)
	}
	assert.Zero(t, MetricsFrameTime())
}

func TestMetricsFPSOverOneSecond(t *testing.T) {
	resetMetrics(t)

	for i := 0; i < 120; i++ {
		MetricsUpdate(0.010)
	}
	fps, _ := MetricsFrame()
	assert.InDelta(t, 100.0, fps, 1.0)
}
