package config

import (
	"os"
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware. It is
// mounted on the catalog routes only; availability is never cached.
// When Enabled is false or no Redis client is configured, caching is off.
// KeyStrategy determines which parts of the request contribute to the
// cache key.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	MethodList   []string      `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`

	Methods map[string]bool
}

// LoadCacheConfig reads the CACHE_* variables. Methods are upper-cased.
func LoadCacheConfig() (CacheConfig, error) {
	var cfg CacheConfig
	if err := ParseEnv(&cfg); err != nil {
		return CacheConfig{}, err
	}
	cfg.Methods = parseMethods(cfg.MethodList)
	return cfg, nil
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
