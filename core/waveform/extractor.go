// Package waveform turns raw media bytes into fixed-length amplitude
// summaries for track visualization. Extraction is best-effort: decode
// failures fall back to a deterministic placeholder instead of erroring,
// since a wrong-looking waveform is better than a broken editor.
package waveform

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"clipsync/logger"
)

// Bins is the fixed length of every amplitude summary.
const Bins = 200

// Extractor decodes media through ffmpeg and summarizes amplitudes.
type Extractor struct {
	ffmpegPath string
}

// NewExtractor creates an Extractor using the given ffmpeg binary.
func NewExtractor(ffmpegPath string) *Extractor {
	return &Extractor{ffmpegPath: ffmpegPath}
}

// ContentKey returns a stable cache key for a media payload.
func ContentKey(media []byte) string {
	sum := sha1.Sum(media)
	return hex.EncodeToString(sum[:])
}

// Extract returns Bins amplitudes in [0,1] for an audio payload. It never
// fails: when ffmpeg cannot decode the input the result is a placeholder
// seeded from the payload so repeated calls agree.
func (e *Extractor) Extract(ctx context.Context, media []byte) []float64 {
	samples, err := e.decodePCM(ctx, media)
	if err != nil {
		logger.Warn("waveform decode failed, using placeholder",
			logger.Int("mediaSize", len(media)),
			logger.ErrorField(err))
		return Placeholder(media)
	}
	return Summarize(samples)
}

// VideoPlaceholder returns the summary used for the video track. No audio
// is extracted from video clips; the band is a seeded pseudo-random shape
// with values uniformly in [0.2,1.0].
func VideoPlaceholder(media []byte) []float64 {
	r := seededRand(media)
	out := make([]float64, Bins)
	for i := range out {
		out[i] = 0.2 + r.Float64()*0.8
	}
	return out
}

// Placeholder is the decode-failure fallback: seeded pseudo-random values
// in [0,1].
func Placeholder(media []byte) []float64 {
	r := seededRand(media)
	out := make([]float64, Bins)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

// Summarize partitions samples into Bins contiguous equal-size blocks and
// returns the mean absolute amplitude of each. Trailing samples beyond
// Bins*blockSize are dropped. Inputs shorter than Bins samples produce a
// placeholder derived from what is there.
func Summarize(samples []float64) []float64 {
	blockSize := len(samples) / Bins
	if blockSize == 0 {
		buf := make([]byte, 8*len(samples))
		for i, s := range samples {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(s))
		}
		return Placeholder(buf)
	}

	out := make([]float64, Bins)
	for i := 0; i < Bins; i++ {
		block := samples[i*blockSize : (i+1)*blockSize]
		sum := 0.0
		for _, s := range block {
			sum += math.Abs(s)
		}
		mean := sum / float64(blockSize)
		if mean > 1 {
			mean = 1
		}
		out[i] = mean
	}
	return out
}

// decodePCM shells out to ffmpeg to decode the payload to mono 16-bit PCM
// and converts it to normalized float samples. The temp file is the
// decoding context and is released before returning.
func (e *Extractor) decodePCM(ctx context.Context, media []byte) ([]float64, error) {
	if len(media) == 0 {
		return nil, fmt.Errorf("empty media payload")
	}

	tmp, err := os.CreateTemp("", "clipsync-decode-*")
	if err != nil {
		return nil, fmt.Errorf("create temp media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(media); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp media file: %w", err)
	}

	args := []string{
		"-i", tmp.Name(),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "44100",
		"-loglevel", "error",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w\nFFmpeg Error: %s", err, stderr.String())
	}

	raw := out.Bytes()
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no samples")
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:i*2+2]))) / 32768.0
	}
	return samples, nil
}

// ProbeDuration uses ffprobe to read the payload's duration in seconds.
// Unlike Extract this can fail; callers treat failure as metadata that
// never resolves server-side.
func (e *Extractor) ProbeDuration(ctx context.Context, media []byte) (float64, error) {
	tmp, err := os.CreateTemp("", "clipsync-probe-*")
	if err != nil {
		return 0, fmt.Errorf("create temp media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(media); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write temp media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp media file: %w", err)
	}

	ffprobePath := strings.Replace(e.ffmpegPath, "ffmpeg", "ffprobe", 1)
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		tmp.Name(),
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed: %w\nFFprobe Error: %s", err, stderr.String())
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	return duration, nil
}

// seededRand builds a deterministic source from a payload hash so
// placeholder waveforms are stable per clip.
func seededRand(media []byte) *rand.Rand {
	sum := sha1.Sum(media)
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed))
}
