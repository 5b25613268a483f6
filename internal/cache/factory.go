// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docport/docport/internal/config"
)

// janitorInterval bounds how often the memory backend sweeps expired pages.
const janitorInterval = 5 * time.Minute

// New creates the page cache selected by the configuration.
func New(cfg *config.AppConfig, logger zerolog.Logger) (Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory, "":
		return NewMemoryCache(janitorInterval), nil
	case config.CacheBackendRedis:
		return NewRedisCache(cfg.Redis, logger)
	case config.CacheBackendBadger:
		return NewBadgerCache(cfg.CachePath, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.CacheBackend)
	}
}
