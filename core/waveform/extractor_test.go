package waveform

import (
	"context"
	"math"
	"testing"
)

func TestSummarizeLengthAndRange(t *testing.T) {
	samples := make([]float64, 44100)
	for i := range samples {
		samples[i] = math.Sin(float64(i) / 50)
	}

	out := Summarize(samples)
	if len(out) != Bins {
		t.Fatalf("got %d bins, want %d", len(out), Bins)
	}
	for i, a := range out {
		if a < 0 || a > 1 {
			t.Errorf("bin %d = %v outside [0,1]", i, a)
		}
	}
}

func TestSummarizeMeanAbsolute(t *testing.T) {
	// Bins*3 samples alternating +-0.5: every block means to 0.5 exactly.
	samples := make([]float64, Bins*3)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}

	out := Summarize(samples)
	for i, a := range out {
		if math.Abs(a-0.5) > 1e-12 {
			t.Fatalf("bin %d = %v, want 0.5", i, a)
		}
	}
}

func TestSummarizeDropsRemainder(t *testing.T) {
	// blockSize = 2, so the 3 loud trailing samples beyond Bins*2 must
	// not influence any bin.
	samples := make([]float64, Bins*2+3)
	for i := Bins * 2; i < len(samples); i++ {
		samples[i] = 1.0
	}

	out := Summarize(samples)
	for i, a := range out {
		if a != 0 {
			t.Fatalf("bin %d = %v, trailing samples leaked in", i, a)
		}
	}
}

func TestSummarizeTooShortFallsBack(t *testing.T) {
	out := Summarize([]float64{0.1, 0.2, 0.3})
	if len(out) != Bins {
		t.Fatalf("got %d bins, want %d", len(out), Bins)
	}

	again := Summarize([]float64{0.1, 0.2, 0.3})
	for i := range out {
		if out[i] != again[i] {
			t.Fatal("short-input fallback is not deterministic")
		}
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	media := []byte("definitely not decodable media")

	a := Placeholder(media)
	b := Placeholder(media)
	if len(a) != Bins {
		t.Fatalf("got %d bins, want %d", len(a), Bins)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("placeholder differs between calls for identical input")
		}
		if a[i] < 0 || a[i] > 1 {
			t.Errorf("bin %d = %v outside [0,1]", i, a[i])
		}
	}

	other := Placeholder([]byte("different payload"))
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("placeholders for different payloads should differ")
	}
}

func TestVideoPlaceholderRange(t *testing.T) {
	out := VideoPlaceholder([]byte("some video clip bytes"))
	if len(out) != Bins {
		t.Fatalf("got %d bins, want %d", len(out), Bins)
	}
	for i, a := range out {
		if a < 0.2 || a > 1.0 {
			t.Errorf("bin %d = %v outside [0.2,1.0]", i, a)
		}
	}
}

func TestExtractNeverFails(t *testing.T) {
	e := NewExtractor("ffmpeg")
	media := []byte("garbage that no decoder will accept")

	out := e.Extract(context.Background(), media)
	if len(out) != Bins {
		t.Fatalf("got %d bins, want %d", len(out), Bins)
	}

	again := e.Extract(context.Background(), media)
	for i := range out {
		if out[i] != again[i] {
			t.Fatal("extraction of identical undecodable input is not deterministic")
		}
	}
}

func TestContentKeyStable(t *testing.T) {
	media := []byte("clip payload")
	if ContentKey(media) != ContentKey(media) {
		t.Fatal("content key not stable")
	}
	if ContentKey(media) == ContentKey([]byte("other payload")) {
		t.Fatal("distinct payloads share a content key")
	}
}
