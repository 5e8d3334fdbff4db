package store

import (
	"fmt"
	"strings"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend  string // "memory" | "sqlite" | "redis"
	Path     string // sqlite database path
	RedisURL string
}

// Open constructs the configured backend.
func Open(opts Options) (Backend, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "sqlite":
		s, err := NewSQLiteStore(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		r, err := NewRedisStore(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
