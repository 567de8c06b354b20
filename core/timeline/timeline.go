// Package timeline derives the shared-timeline visuals: tick labels for the
// scrubber, the playhead position, and render-ready waveform bands.
package timeline

import (
	"fmt"
	"math"

	"clipsync/model"
)

// targetTickCount is the rough number of visible tick marks; the interval
// is widened so long timelines do not overcrowd the scrubber.
const (
	targetTickCount = 12
	minTickInterval = 5.0
)

// FormatTime renders a position in seconds as m:ss.
// Zero, negative, and NaN inputs all render as "0:00".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds <= 0 {
		return "0:00"
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// TickInterval returns the spacing between tick marks for the given
// shared duration: max(5, ceil(duration/12)).
func TickInterval(sharedDuration float64) float64 {
	interval := math.Ceil(sharedDuration / targetTickCount)
	if interval < minTickInterval {
		interval = minTickInterval
	}
	return interval
}

// TickMarkers returns the ordered tick labels for t = 0, interval,
// 2*interval, ... while t <= sharedDuration.
func TickMarkers(sharedDuration float64) []string {
	if math.IsNaN(sharedDuration) || sharedDuration < 0 {
		sharedDuration = 0
	}
	interval := TickInterval(sharedDuration)
	var markers []string
	for t := 0.0; t <= sharedDuration; t += interval {
		markers = append(markers, FormatTime(t))
	}
	return markers
}

// PlayheadPercent maps the current position onto the shared timeline,
// clamped to [0,100]. sharedDuration is never zero in practice (the
// registry enforces a floor) but a zero guard is kept anyway.
func PlayheadPercent(currentTime, sharedDuration float64) float64 {
	if sharedDuration <= 0 {
		return 0
	}
	percent := currentTime / sharedDuration * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// State assembles the derived timeline state for one playback position.
func State(currentTime, sharedDuration float64) model.TimelineState {
	return model.TimelineState{
		SharedDuration:  sharedDuration,
		TickMarkers:     TickMarkers(sharedDuration),
		PlayheadPercent: PlayheadPercent(currentTime, sharedDuration),
	}
}

// WaveformBand builds a mirrored filled band for one track canvas: the top
// edge runs left to right, then the bottom edge runs back right to left so
// the polyline closes into a fillable shape. Amplitudes are expected in
// [0,1]; out-of-range values are clamped.
func WaveformBand(amplitudes []float64, width, height float64) []model.Point {
	n := len(amplitudes)
	if n == 0 || width <= 0 || height <= 0 {
		return nil
	}

	mid := height / 2
	step := width / float64(n)
	points := make([]model.Point, 0, 2*n)

	for i, a := range amplitudes {
		if a < 0 {
			a = 0
		} else if a > 1 {
			a = 1
		}
		x := float64(i) * step
		points = append(points, model.Point{X: x, Y: mid - a*mid})
	}
	for i := n - 1; i >= 0; i-- {
		a := amplitudes[i]
		if a < 0 {
			a = 0
		} else if a > 1 {
			a = 1
		}
		x := float64(i) * step
		points = append(points, model.Point{X: x, Y: mid + a*mid})
	}
	return points
}
