package quarry

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Config tunes world, scheduler, and engine construction. The zero value is
// not usable directly; start from DefaultConfig or LowResourceConfig and
// override fields. JSON keys follow the engine's camelCase config file
// convention.
type Config struct {
	// Threads fixes the worker count. Zero derives it from the host CPU
	// count minus ReservedCPUs; negative values are rejected at pool
	// construction.
	Threads      int `json:"threads"`
	ReservedCPUs int `json:"reservedCpus"`
	MinThreads   int `json:"minThreads"`

	// QueryCacheSize bounds the per-world query plan cache.
	QueryCacheSize int `json:"queryCacheSize"`

	// CellSize is the spatial index cell edge length in world units.
	CellSize float64 `json:"cellSize"`

	// EnableProfiling makes the engine log tick statistics periodically.
	EnableProfiling bool `json:"ecsProfiling"`

	// Logger and Pool are injected by embedding callers; a nil Logger gets
	// the standard one and a nil Pool gets a freshly owned pool.
	Logger *Logger `json:"-"`
	Pool   *Pool   `json:"-"`
}

// DefaultConfig sizes the pool to the host CPU count, keeping two CPUs free
// for the render and main threads and never dropping below two workers.
func DefaultConfig() *Config {
	return &Config{
		ReservedCPUs:   2,
		MinThreads:     2,
		QueryCacheSize: 128,
		CellSize:       ChunkSize,
	}
}

// LowResourceConfig pins everything to one worker with a small plan cache,
// for constrained hosts and deterministic tests.
func LowResourceConfig() *Config {
	return &Config{
		Threads:        1,
		MinThreads:     1,
		QueryCacheSize: 32,
		CellSize:       ChunkSize,
	}
}

// ConfigFromJSON decodes a config document over DefaultConfig, so absent
// keys keep their defaults.
func ConfigFromJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func normalizeConfig(cfg *Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return cfg
}

func (c *Config) threads() int {
	if c.Threads != 0 {
		return c.Threads
	}
	n := runtime.NumCPU() - c.ReservedCPUs
	if n < c.MinThreads {
		n = c.MinThreads
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Config) logger() *Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return NewLogger()
}

func (c *Config) queryCacheSize() int {
	if c.QueryCacheSize < 1 {
		return 128
	}
	return c.QueryCacheSize
}

func (c *Config) cellSize() float64 {
	if c.CellSize <= 0 {
		return ChunkSize
	}
	return c.CellSize
}
