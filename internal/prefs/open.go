package prefs

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/debug"
)

// Open builds the store selected by the preferences configuration.
func Open(cfg config.PreferencesConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		debug.Info("Using in-memory preferences")
		return NewMemoryStore(nil), nil
	case "redis":
		debug.Info("Using Redis preferences at %s (hash %s)", cfg.RedisAddr, cfg.RedisKey)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.RedisKey), nil
	case "file", "":
		debug.Info("Using file preferences at %s", cfg.Path)
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported preferences backend: %s", cfg.Backend)
	}
}
