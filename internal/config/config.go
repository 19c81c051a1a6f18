// Package config loads process configuration from the environment, the
// same getEnv/getEnvInt-with-typed-defaults shape the teacher's
// internal/config/config.go used for its HTTP server settings.
package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/zopieux/rthumbd/internal/cachepath"
)

// Config holds every knob the daemon reads before it starts serving.
type Config struct {
	// CacheRoot is the XDG thumbnail cache directory (spec §4.A).
	CacheRoot string
	// ChunkSize bounds how many same-MIME items are dispatched together
	// within one parallel fan-out (spec §4.F step 2).
	ChunkSize int
	// RequestChannelCapacity bounds the broker's inbound queue depth
	// (spec §9 open question #6).
	RequestChannelCapacity int
	// ReplyChannelCapacity bounds the broker's outbound signal queue.
	ReplyChannelCapacity int
	// WorkerPoolSize bounds how many batches run on the blocking compute
	// layer concurrently (spec §5 layer 2).
	WorkerPoolSize int
}

// Load reads Config from the environment. Call godotenv.Load before this so
// a local .env file, if any, has already populated os.Environ.
func Load() (*Config, error) {
	cacheRoot, err := cachepath.Root()
	if err != nil {
		return nil, err
	}

	return &Config{
		CacheRoot:               cacheRoot,
		ChunkSize:               getEnvInt("RTHUMB_CHUNK_SIZE", 2),
		RequestChannelCapacity:  getEnvInt("RTHUMB_REQUEST_CHANNEL_CAPACITY", 64),
		ReplyChannelCapacity:    getEnvInt("RTHUMB_REPLY_CHANNEL_CAPACITY", 256),
		WorkerPoolSize:          getEnvInt("RTHUMB_WORKER_POOL_SIZE", runtime.NumCPU()),
	}, nil
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}
