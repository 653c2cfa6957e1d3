// Package cache stores fetched model assets keyed by URL.
//
// Three implementations share the Cache interface: FileCache under the OS
// cache directory, RedisCache for a shared server, and NullCache to disable
// caching.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the data and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data; a zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Kind selects a Cache implementation.
type Kind string

const (
	KindFile  Kind = "file"
	KindRedis Kind = "redis"
	KindNone  Kind = "none"
)

// Config is the cache section of the viewer options.
type Config struct {
	Kind          Kind          `json:"kind" yaml:"kind" toml:"kind"`
	Dir           string        `json:"dir" yaml:"dir" toml:"dir"`
	RedisAddr     string        `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string        `json:"redis_password" yaml:"redis_password" toml:"redis_password"`
	RedisDB       int           `json:"redis_db" yaml:"redis_db" toml:"redis_db"`
	TTL           time.Duration `json:"ttl" yaml:"ttl" toml:"ttl"`
}

// Open builds the cache described by cfg. An empty kind means file.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Kind {
	case KindFile, "":
		dir := cfg.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	case KindRedis:
		rc, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case KindNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Kind)
	}
}

// DefaultDir determines the OS-specific asset cache directory.
func DefaultDir() (string, error) {
	var base string
	var err error

	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			err = fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			err = fmt.Errorf("HOME environment variable not set")
		} else {
			base = filepath.Join(home, "Library", "Caches")
		}
	default: // linux, bsd, etc.
		base = os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home := os.Getenv("HOME")
			if home == "" {
				err = fmt.Errorf("HOME environment variable not set")
			} else {
				base = filepath.Join(home, ".cache")
			}
		}
	}
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gosketch", "assets"), nil
}
