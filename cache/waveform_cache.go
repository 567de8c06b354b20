package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clipsync/logger"

	"github.com/go-redis/redis/v8"
)

// waveformTTL keeps computed summaries around long enough to cover a
// working session plus re-uploads of the same clip.
const waveformTTL = 24 * time.Hour

// WaveformKey builds the cache key for a clip content hash.
func WaveformKey(contentKey string) string {
	return fmt.Sprintf("waveform:%s", contentKey)
}

// SetWaveform stores a computed amplitude summary.
func SetWaveform(ctx context.Context, contentKey string, amplitudes []float64) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(amplitudes)
	if err != nil {
		return fmt.Errorf("failed to marshal waveform: %w", err)
	}

	key := WaveformKey(contentKey)
	if err := RedisClient.Set(ctx, key, data, waveformTTL).Err(); err != nil {
		logger.Warn("waveform cache set failed",
			logger.String("key", key),
			logger.ErrorField(err))
		return err
	}

	logger.Debug("waveform cached",
		logger.String("key", key),
		logger.Int("bins", len(amplitudes)))
	return nil
}

// GetWaveform fetches a cached summary. A miss returns (nil, nil) so the
// caller falls through to extraction.
func GetWaveform(ctx context.Context, contentKey string) ([]float64, error) {
	if RedisClient == nil {
		return nil, nil
	}

	key := WaveformKey(contentKey)
	data, err := RedisClient.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logger.Warn("waveform cache get failed",
			logger.String("key", key),
			logger.ErrorField(err))
		return nil, nil
	}

	var amplitudes []float64
	if err := json.Unmarshal(data, &amplitudes); err != nil {
		logger.Warn("corrupt waveform cache entry",
			logger.String("key", key),
			logger.ErrorField(err))
		return nil, nil
	}

	return amplitudes, nil
}
