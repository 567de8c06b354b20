package timeline

import (
	"math"
	"testing"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{125, "2:05"},
		{125.9, "2:05"},
		{3600, "60:00"},
		{-3, "0:00"},
		{math.NaN(), "0:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		duration float64
		want     float64
	}{
		{0, 5},
		{30, 5},
		{60, 5},
		{61, 6},
		{120, 10},
		{600, 50},
	}
	for _, tt := range tests {
		if got := TickInterval(tt.duration); got != tt.want {
			t.Errorf("TickInterval(%v) = %v, want %v", tt.duration, got, tt.want)
		}
	}
}

func TestTickMarkers(t *testing.T) {
	tests := []struct {
		duration  float64
		wantCount int
		wantFirst string
		wantLast  string
	}{
		{60, 13, "0:00", "1:00"},
		{90, 12, "0:00", "1:28"}, // interval 8: last tick at 88
		{120, 13, "0:00", "2:00"},
	}
	for _, tt := range tests {
		markers := TickMarkers(tt.duration)
		if len(markers) != tt.wantCount {
			t.Errorf("TickMarkers(%v) count = %d, want %d", tt.duration, len(markers), tt.wantCount)
		}
		if markers[0] != tt.wantFirst {
			t.Errorf("TickMarkers(%v) first = %q, want %q", tt.duration, markers[0], tt.wantFirst)
		}
		if markers[len(markers)-1] != tt.wantLast {
			t.Errorf("TickMarkers(%v) last = %q, want %q", tt.duration, markers[len(markers)-1], tt.wantLast)
		}
	}
}

func TestTickMarkersLastWithinDuration(t *testing.T) {
	for _, duration := range []float64{60, 61, 87.3, 90, 300, 3601} {
		interval := TickInterval(duration)
		markers := TickMarkers(duration)
		lastTick := float64(len(markers)-1) * interval
		if lastTick > duration {
			t.Errorf("duration %v: last tick at %v exceeds duration", duration, lastTick)
		}
		approx := duration/interval + 1
		if float64(len(markers)) > approx+1 || float64(len(markers)) < approx-1 {
			t.Errorf("duration %v: %d markers, expected about %.1f", duration, len(markers), approx)
		}
	}
}

func TestPlayheadPercent(t *testing.T) {
	tests := []struct {
		current, duration, want float64
	}{
		{0, 60, 0},
		{30, 60, 50},
		{60, 60, 100},
		{90, 60, 100},  // clamped
		{-5, 60, 0},    // clamped
		{10, 0, 0},     // zero guard
	}
	for _, tt := range tests {
		if got := PlayheadPercent(tt.current, tt.duration); got != tt.want {
			t.Errorf("PlayheadPercent(%v, %v) = %v, want %v", tt.current, tt.duration, got, tt.want)
		}
	}
}

func TestPlayheadPercentMonotonic(t *testing.T) {
	prev := 0.0
	for i := 0; i <= 200; i++ {
		current := float64(i) * 0.5
		got := PlayheadPercent(current, 60)
		if got < prev {
			t.Fatalf("playhead went backwards at t=%v: %v < %v", current, got, prev)
		}
		if got > 100 {
			t.Fatalf("playhead exceeds 100 at t=%v: %v", current, got)
		}
		prev = got
	}
}

func TestState(t *testing.T) {
	state := State(30, 60)
	if state.SharedDuration != 60 {
		t.Errorf("SharedDuration = %v, want 60", state.SharedDuration)
	}
	if state.PlayheadPercent != 50 {
		t.Errorf("PlayheadPercent = %v, want 50", state.PlayheadPercent)
	}
	if len(state.TickMarkers) == 0 {
		t.Error("expected tick markers")
	}
}

func TestWaveformBand(t *testing.T) {
	amps := []float64{0, 0.5, 1, 1.5, -0.2}
	points := WaveformBand(amps, 100, 40)

	if len(points) != 2*len(amps) {
		t.Fatalf("band has %d points, want %d", len(points), 2*len(amps))
	}
	for i, p := range points {
		if p.Y < 0 || p.Y > 40 {
			t.Errorf("point %d y=%v outside canvas", i, p.Y)
		}
		if p.X < 0 || p.X > 100 {
			t.Errorf("point %d x=%v outside canvas", i, p.X)
		}
	}

	// Mirrored: top edge point i and bottom edge point (2n-1-i) share x
	// and are symmetric around the mid line.
	n := len(amps)
	for i := 0; i < n; i++ {
		top := points[i]
		bottom := points[2*n-1-i]
		if top.X != bottom.X {
			t.Errorf("point %d: top x=%v bottom x=%v", i, top.X, bottom.X)
		}
		if diff := (20 - top.Y) - (bottom.Y - 20); math.Abs(diff) > 1e-9 {
			t.Errorf("point %d not mirrored: top=%v bottom=%v", i, top.Y, bottom.Y)
		}
	}
}

func TestWaveformBandEmpty(t *testing.T) {
	if got := WaveformBand(nil, 100, 40); got != nil {
		t.Errorf("expected nil band for empty input, got %d points", len(got))
	}
	if got := WaveformBand([]float64{0.5}, 0, 40); got != nil {
		t.Errorf("expected nil band for zero width, got %d points", len(got))
	}
}
